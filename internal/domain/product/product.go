package product

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for catalog operations.
var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound      = errors.New("product not found")
	ErrNameRequired  = errors.New("product name required")
	ErrInvalidPrice  = errors.New("price must not be negative")
	ErrInvalidStock  = errors.New("stock must not be negative")
	ErrInvalidFilter = errors.New("invalid product filter")
	// ErrInUse is returned when deleting a product that was already ordered.
	ErrInUse         = errors.New("product is referenced by orders")
)

// ProductUnavailableError indicates a product that is switched off for sale.
type ProductUnavailableError struct {
	ProductID string
	Name      string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %s is no longer available", e.Name)
}

// InsufficientStockError indicates that fewer units are in stock than requested.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: only %d available", e.Name, e.Available)
}

// Product represents a catalog item listed by a seller.
type Product struct {
	ID          string
	SKU         string
	Name        string
	Description string
	Category    string
	Price       decimal.Decimal
	Stock       int
	IsAvailable bool
	SellerID    string
	ImageURL    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CanFulfil checks that qty units can be sold right now. Availability is
// checked first, so a switched off product never reports its stock.
func (p *Product) CanFulfil(qty int) error {
	if !p.IsAvailable {
		return &ProductUnavailableError{ProductID: p.ID, Name: p.Name}
	}
	if p.Stock < qty {
		return &InsufficientStockError{ProductID: p.ID, Name: p.Name, Available: p.Stock}
	}
	return nil
}

// SortBy selects the ordering of product listings.
type SortBy string

const (
	SortNewest    SortBy = "newest"
	SortPriceAsc  SortBy = "price_asc"
	SortPriceDesc SortBy = "price_desc"
	SortName      SortBy = "name"
)

const (
	defaultLimit = 10
	maxLimit     = 100

	// priceScale matches the NUMERIC(14, 2) price column.
	priceScale = 2
)

// Filter narrows product listings. Zero values mean "no constraint".
type Filter struct {
	Search      string
	Category    string
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
	IsAvailable *bool
	SellerID    string
	SortBy      SortBy
	Page        int
	Limit       int
}

// Normalize applies paging defaults and validates the filter.
func (f *Filter) Normalize() error {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	switch f.SortBy {
	case "":
		f.SortBy = SortNewest
	case SortNewest, SortPriceAsc, SortPriceDesc, SortName:
	default:
		return errors.Wrapf(ErrInvalidFilter, "sort %q", f.SortBy)
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return errors.Wrap(ErrInvalidFilter, "minPrice greater than maxPrice")
	}
	return nil
}

// Offset returns the number of rows skipped for the filter's page.
func (f *Filter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Page is one page of a product listing.
type Page struct {
	Products []Product
	Total    int
	Page     int
	Limit    int
}

// TotalPages returns the number of pages available for the listing.
func (p *Page) TotalPages() int {
	if p.Limit <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	List(ctx context.Context, f Filter) ([]Product, int, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
	// SetStock overwrites the stock and couples availability to it, returning
	// the updated product.
	SetStock(ctx context.Context, id string, stock int) (*Product, error)
	// LowStock lists available products of the seller with stock under threshold.
	LowStock(ctx context.Context, sellerID string, threshold int) ([]Product, error)
}
