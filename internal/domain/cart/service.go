package cart

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/product"
)

// Service encapsulates cart manipulation by buyers.
type Service struct {
	carts    Repository
	products product.Repository
}

// NewService creates a cart Service.
func NewService(carts Repository, products product.Repository) *Service {
	return &Service{
		carts:    carts,
		products: products,
	}
}

// Get returns the buyer's cart, creating it when missing.
func (s *Service) Get(ctx context.Context, buyerID string) (*Cart, error) {
	c, err := s.carts.GetOrCreate(ctx, buyerID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	return c, nil
}

// AddItem puts qty units of a product into the buyer's cart. Adding a product
// that is already in the cart increases its quantity.
func (s *Service) AddItem(ctx context.Context, buyerID, productID string, qty int) (*Item, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	c, err := s.Get(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	want := qty
	if existing, ok := c.Find(productID); ok {
		want += existing.Quantity
	}
	if err := p.CanFulfil(want); err != nil {
		return nil, err
	}

	item, err := s.carts.AddItem(ctx, c.ID, productID, qty)
	if err != nil {
		return nil, errors.Wrap(err, "add cart item")
	}
	return item, nil
}

// UpdateItem sets the quantity of an item in the buyer's cart.
func (s *Service) UpdateItem(ctx context.Context, buyerID, itemID string, qty int) (*Item, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	item, err := s.ownedItem(ctx, buyerID, itemID)
	if err != nil {
		return nil, err
	}
	if item.Product.Stock < qty {
		return nil, &product.InsufficientStockError{
			ProductID: item.ProductID,
			Name:      item.Product.Name,
			Available: item.Product.Stock,
		}
	}

	updated, err := s.carts.SetQuantity(ctx, itemID, qty)
	if err != nil {
		return nil, errors.Wrap(err, "set cart item quantity")
	}
	return updated, nil
}

// RemoveItem deletes an item from the buyer's cart.
func (s *Service) RemoveItem(ctx context.Context, buyerID, itemID string) error {
	if _, err := s.ownedItem(ctx, buyerID, itemID); err != nil {
		return err
	}
	if err := s.carts.RemoveItem(ctx, itemID); err != nil {
		return errors.Wrap(err, "remove cart item")
	}
	return nil
}

// Clear empties the buyer's cart.
func (s *Service) Clear(ctx context.Context, buyerID string) error {
	c, err := s.Get(ctx, buyerID)
	if err != nil {
		return err
	}
	if err := s.carts.Clear(ctx, c.ID); err != nil {
		return errors.Wrap(err, "clear cart")
	}
	return nil
}

func (s *Service) ownedItem(ctx context.Context, buyerID, itemID string) (*Item, error) {
	item, err := s.carts.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	c, err := s.Get(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if item.CartID != c.ID {
		return nil, auth.ErrUnauthorized
	}
	return item, nil
}
