package product

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/notification"
	"github.com/xenking/storefront/internal/domain/user"
)

// CreateInput holds the seller-provided fields of a new product.
type CreateInput struct {
	Name        string
	Description string
	Category    string
	Price       decimal.Decimal
	Stock       int
	ImageURL    string
	// IsAvailable overrides the default availability (stock > 0).
	IsAvailable *bool
}

// UpdateInput holds a partial product update. Nil fields are left unchanged.
type UpdateInput struct {
	Name        *string
	Description *string
	Category    *string
	Price       *decimal.Decimal
	ImageURL    *string
	IsAvailable *bool
}

// Service encapsulates catalog management by sellers.
type Service struct {
	products  Repository
	contacts  user.Directory
	notifier  notification.Notifier
	threshold int
	now       func() time.Time
}

// NewService creates a product Service. Stock alerts fire when stock drops
// below lowStock.
func NewService(
	products Repository,
	contacts user.Directory,
	notifier notification.Notifier,
	lowStock int,
) *Service {
	if lowStock <= 0 {
		lowStock = notification.DefaultLowStockThreshold
	}
	return &Service{
		products:  products,
		contacts:  contacts,
		notifier:  notifier,
		threshold: lowStock,
		now:       time.Now,
	}
}

// Get returns a single product.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	return s.products.GetByID(ctx, id)
}

// List returns one page of products matching f.
func (s *Service) List(ctx context.Context, f Filter) (*Page, error) {
	if err := f.Normalize(); err != nil {
		return nil, err
	}
	products, total, err := s.products.List(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return &Page{
		Products: products,
		Total:    total,
		Page:     f.Page,
		Limit:    f.Limit,
	}, nil
}

// Create lists a new product for sellerID.
func (s *Service) Create(ctx context.Context, sellerID string, in CreateInput) (*Product, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, ErrNameRequired
	}
	if in.Price.IsNegative() {
		return nil, ErrInvalidPrice
	}
	if in.Stock < 0 {
		return nil, ErrInvalidStock
	}

	now := s.now()
	p := &Product{
		ID:          uuid.New().String(),
		SKU:         generateSKU(in.Category, in.Name, now),
		Name:        in.Name,
		Description: in.Description,
		Category:    in.Category,
		Price:       in.Price.Round(priceScale),
		Stock:       in.Stock,
		IsAvailable: in.Stock > 0,
		SellerID:    sellerID,
		ImageURL:    in.ImageURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.IsAvailable != nil {
		p.IsAvailable = *in.IsAvailable && in.Stock > 0
	}

	if err := s.products.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	return p, nil
}

// Update applies in to a product owned by sellerID.
func (s *Service) Update(ctx context.Context, sellerID, id string, in UpdateInput) (*Product, error) {
	p, err := s.owned(ctx, sellerID, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, ErrNameRequired
		}
		p.Name = *in.Name
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Category != nil {
		p.Category = *in.Category
	}
	if in.Price != nil {
		if in.Price.IsNegative() {
			return nil, ErrInvalidPrice
		}
		p.Price = in.Price.Round(priceScale)
	}
	if in.ImageURL != nil {
		p.ImageURL = *in.ImageURL
	}
	if in.IsAvailable != nil {
		p.IsAvailable = *in.IsAvailable
	}
	p.UpdatedAt = s.now()

	if err := s.products.Update(ctx, p); err != nil {
		return nil, errors.Wrap(err, "update product")
	}
	return p, nil
}

// Delete removes a product owned by sellerID.
func (s *Service) Delete(ctx context.Context, sellerID, id string) error {
	if _, err := s.owned(ctx, sellerID, id); err != nil {
		return err
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "delete product")
	}
	return nil
}

// UpdateStock overwrites the stock of a product owned by sellerID and alerts
// the seller when the new level crosses the low or out-of-stock boundary.
func (s *Service) UpdateStock(ctx context.Context, sellerID, id string, stock int) (*Product, error) {
	if stock < 0 {
		return nil, ErrInvalidStock
	}
	existing, err := s.owned(ctx, sellerID, id)
	if err != nil {
		return nil, err
	}

	updated, err := s.products.SetStock(ctx, id, stock)
	if err != nil {
		return nil, errors.Wrap(err, "set stock")
	}

	change := notification.StockChange{
		Product:  notification.ProductRef{ID: updated.ID, Name: updated.Name},
		SellerID: updated.SellerID,
		Before:   existing.Stock,
		After:    updated.Stock,
	}
	if change.OutOfStock() || change.LowStock(s.threshold) {
		seller, err := s.contacts.Contact(ctx, updated.SellerID)
		if err != nil {
			zctx.From(ctx).Warn("Skipping stock alert",
				zap.String("product_id", updated.ID),
				zap.String("seller_id", updated.SellerID),
				zap.Error(err),
			)
			return updated, nil
		}
		notification.AlertStock(ctx, s.notifier, seller.Email, change, s.threshold)
	}
	return updated, nil
}

func (s *Service) owned(ctx context.Context, sellerID, id string) (*Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.SellerID != sellerID {
		return nil, auth.ErrUnauthorized
	}
	return p, nil
}

// generateSKU builds CAT-NAM-<ms suffix>-<random> from category and name.
func generateSKU(category, name string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%06d-%03d",
		skuCode(category),
		skuCode(name),
		now.UnixMilli()%1_000_000,
		rand.IntN(1000),
	)
}

func skuCode(s string) string {
	r := []rune(s)
	if len(r) > 3 {
		r = r[:3]
	}
	return strings.ToUpper(strings.ReplaceAll(string(r), " ", ""))
}
