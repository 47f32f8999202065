package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

// Sentinel errors for cart operations.
var (
	ErrItemNotFound    = errors.New("cart item not found")
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
)

// Item is a product selection in a cart. At most one item exists per
// (cart, product) pair.
type Item struct {
	ID        string
	CartID    string
	ProductID string
	Quantity  int
	// Product is the current catalog state of the referenced product.
	Product product.Product
}

// Subtotal returns the live price of the item times its quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is the buyer-scoped staging area of an order.
type Cart struct {
	ID      string
	BuyerID string
	Items   []Item
}

// Total sums the subtotals of all items at current prices.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Find returns the item referencing productID, if any.
func (c *Cart) Find(productID string) (Item, bool) {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return Item{}, false
}

// Repository defines persistence operations for carts.
type Repository interface {
	// GetOrCreate returns the buyer's cart with items and products loaded,
	// creating an empty cart on first use.
	GetOrCreate(ctx context.Context, buyerID string) (*Cart, error)
	GetItem(ctx context.Context, itemID string) (*Item, error)
	// AddItem inserts the item or increments the quantity of the existing
	// (cart, product) row.
	AddItem(ctx context.Context, cartID, productID string, qty int) (*Item, error)
	SetQuantity(ctx context.Context, itemID string, qty int) (*Item, error)
	RemoveItem(ctx context.Context, itemID string) error
	Clear(ctx context.Context, cartID string) error
}
