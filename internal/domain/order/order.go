package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/product"
)

// Sentinel errors for order operations.
var (
	ErrEmptyCart               = errors.New("cart is empty")
	ErrOrderNotFound           = errors.New("order not found")
	ErrInvalidStatus           = errors.New("invalid order status")
	ErrShippingAddressRequired = errors.New("shipping address required")
	// ErrUnauthorized is returned on buyer or seller ownership mismatch.
	ErrUnauthorized = auth.ErrUnauthorized
	// ErrStockConflict is returned by Tx.DecrementStock when the product no
	// longer has the requested quantity.
	ErrStockConflict = errors.New("stock conflict")
)

type (
	// ProductUnavailableError names a cart product that is not for sale.
	ProductUnavailableError = product.ProductUnavailableError
	// InsufficientStockError names a cart product with too little stock.
	InsufficientStockError = product.InsufficientStockError
)

// InvalidTransitionError indicates a status change the state machine forbids.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot change order status from %s to %s", e.From, e.To)
}

// Order is a placed purchase. Only Status and UpdatedAt change after creation.
type Order struct {
	ID              string
	Number          string
	BuyerID         string
	ShippingAddress string
	Total           decimal.Decimal
	Status          Status
	Items           []Item
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Item is an immutable order line. Price is the product price at placement.
type Item struct {
	ID          string
	OrderID     string
	ProductID   string
	ProductName string
	SellerID    string
	Quantity    int
	Price       decimal.Decimal
}

// Subtotal returns price * quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// SellerItems is the subset of an order's items listed by one seller.
type SellerItems struct {
	SellerID string
	Items    []Item
}

// Subtotal sums the seller's items.
func (s SellerItems) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// BySeller groups items by seller in order of first appearance.
func (o *Order) BySeller() []SellerItems {
	var groups []SellerItems
	index := make(map[string]int)
	for _, item := range o.Items {
		i, ok := index[item.SellerID]
		if !ok {
			i = len(groups)
			index[item.SellerID] = i
			groups = append(groups, SellerItems{SellerID: item.SellerID})
		}
		groups[i].Items = append(groups[i].Items, item)
	}
	return groups
}

const (
	defaultLimit = 10
	maxLimit     = 100
)

// ListQuery filters order listings. Zero values mean "no constraint".
type ListQuery struct {
	Status Status
	From   time.Time
	To     time.Time
	Page   int
	Limit  int
}

// Normalize applies paging defaults and validates the query.
func (q *ListQuery) Normalize() error {
	if q.Status != "" && !q.Status.Valid() {
		return ErrInvalidStatus
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return nil
}

// Offset returns the number of rows skipped for the query's page.
func (q *ListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// Page is one page of an order listing.
type Page struct {
	Orders []Order
	Total  int
	Page   int
	Limit  int
}

// TotalPages returns the number of pages available for the listing.
func (p *Page) TotalPages() int {
	if p.Limit <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

// Store is the persistence boundary of the order workflow.
type Store interface {
	// Atomic runs fn in a single transaction. The transaction commits when fn
	// returns nil and rolls back otherwise; fn's error is returned unchanged.
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetForBuyer(ctx context.Context, orderID, buyerID string) (*Order, error)
	ListForBuyer(ctx context.Context, buyerID string, q ListQuery) ([]Order, int, error)
	// ListForSeller returns orders with at least one of the seller's products;
	// each order only carries the seller's items.
	ListForSeller(ctx context.Context, sellerID string, q ListQuery) ([]Order, int, error)
}

// Tx is the set of writes that must commit or roll back together.
type Tx interface {
	// CartForBuyer loads the buyer's cart with the current products and locks
	// those products until the end of the transaction. It returns nil when the
	// buyer has no cart.
	CartForBuyer(ctx context.Context, buyerID string) (*cart.Cart, error)
	InsertOrder(ctx context.Context, o *Order) error
	// DecrementStock removes qty units when at least qty are in stock and
	// returns the remaining stock, or ErrStockConflict otherwise. Stock reaching
	// zero switches the product off.
	DecrementStock(ctx context.Context, productID string, qty int) (int, error)
	// RestoreStock adds qty units back and returns the new stock.
	RestoreStock(ctx context.Context, productID string, qty int) (int, error)
	ClearCart(ctx context.Context, cartID string) error
	// OrderForBuyer loads and locks the buyer's order or returns ErrOrderNotFound.
	OrderForBuyer(ctx context.Context, orderID, buyerID string) (*Order, error)
	// OrderForSeller loads and locks an order with all of its items when the
	// seller owns at least one of them, or returns ErrOrderNotFound.
	OrderForSeller(ctx context.Context, orderID, sellerID string) (*Order, error)
	SetStatus(ctx context.Context, orderID string, status Status, at time.Time) error
}
