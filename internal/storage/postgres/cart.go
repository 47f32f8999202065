package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/cart"
)

const cartItemColumns = `ci.id, ci.cart_id, ci.product_id, ci.quantity,
	p.id, p.sku, p.name, p.description, p.category, p.price, p.stock, p.is_available,
	p.seller_id, p.image_url, p.created_at, p.updated_at`

const (
	ensureCartSQL = `INSERT INTO carts (id, buyer_id) VALUES ($1, $2)
		ON CONFLICT (buyer_id) DO NOTHING`

	getCartIDSQL = `SELECT id FROM carts WHERE buyer_id = $1`

	lockCartSQL = getCartIDSQL + ` FOR UPDATE`

	cartItemsSQL = `SELECT ` + cartItemColumns + `
		FROM cart_items ci JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at, ci.id`

	// Locks products in id order so concurrent placements cannot deadlock.
	lockCartItemsSQL = `SELECT ` + cartItemColumns + `
		FROM cart_items ci JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY p.id
		FOR UPDATE OF p`

	getCartItemSQL = `SELECT ` + cartItemColumns + `
		FROM cart_items ci JOIN products p ON p.id = ci.product_id
		WHERE ci.id = $1`

	upsertCartItemSQL = `INSERT INTO cart_items (id, cart_id, product_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		RETURNING id`

	setCartItemQuantitySQL = `UPDATE cart_items SET quantity = $2 WHERE id = $1`

	deleteCartItemSQL = `DELETE FROM cart_items WHERE id = $1`

	clearCartSQL = `DELETE FROM cart_items WHERE cart_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// GetOrCreate returns the buyer's cart with its items, creating the cart on
// first use.
func (r *CartRepository) GetOrCreate(ctx context.Context, buyerID string) (*cart.Cart, error) {
	if _, err := r.pool.Exec(ctx, ensureCartSQL, uuid.New().String(), buyerID); err != nil {
		return nil, fmt.Errorf("creating cart for %q: %w", buyerID, err)
	}
	c, err := loadCart(ctx, r.pool, buyerID, false)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// loadCart reads the buyer's cart. It returns nil when the buyer has none.
// With lock set the cart row and its products stay locked until the end of
// the transaction, so a concurrent placement by the same buyer sees the
// emptied cart.
func loadCart(ctx context.Context, q querier, buyerID string, lock bool) (*cart.Cart, error) {
	cartSQL, itemsSQL := getCartIDSQL, cartItemsSQL
	if lock {
		cartSQL, itemsSQL = lockCartSQL, lockCartItemsSQL
	}

	c := &cart.Cart{BuyerID: buyerID}
	if err := q.QueryRow(ctx, cartSQL, buyerID).Scan(&c.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting cart for %q: %w", buyerID, err)
	}

	rows, err := q.Query(ctx, itemsSQL, c.ID)
	if err != nil {
		return nil, fmt.Errorf("listing cart items: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanCartItem)
	if err != nil {
		return nil, fmt.Errorf("listing cart items: %w", err)
	}
	c.Items = items
	return c, nil
}

// GetItem returns a cart item with its product.
func (r *CartRepository) GetItem(ctx context.Context, itemID string) (*cart.Item, error) {
	rows, err := r.pool.Query(ctx, getCartItemSQL, itemID)
	if err != nil {
		return nil, fmt.Errorf("getting cart item %q: %w", itemID, err)
	}
	item, err := pgx.CollectExactlyOneRow(rows, scanCartItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrItemNotFound
		}
		return nil, fmt.Errorf("getting cart item %q: %w", itemID, err)
	}
	return &item, nil
}

// AddItem inserts the product into the cart or increments the quantity of
// the existing row.
func (r *CartRepository) AddItem(ctx context.Context, cartID, productID string, qty int) (*cart.Item, error) {
	var id string
	err := r.pool.QueryRow(ctx, upsertCartItemSQL, uuid.New().String(), cartID, productID, qty).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("adding %q to cart: %w", productID, err)
	}
	return r.GetItem(ctx, id)
}

// SetQuantity overwrites the quantity of a cart item.
func (r *CartRepository) SetQuantity(ctx context.Context, itemID string, qty int) (*cart.Item, error) {
	tag, err := r.pool.Exec(ctx, setCartItemQuantitySQL, itemID, qty)
	if err != nil {
		return nil, fmt.Errorf("updating cart item %q: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, cart.ErrItemNotFound
	}
	return r.GetItem(ctx, itemID)
}

// RemoveItem deletes a cart item.
func (r *CartRepository) RemoveItem(ctx context.Context, itemID string) error {
	tag, err := r.pool.Exec(ctx, deleteCartItemSQL, itemID)
	if err != nil {
		return fmt.Errorf("removing cart item %q: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrItemNotFound
	}
	return nil
}

// Clear deletes every item of the cart.
func (r *CartRepository) Clear(ctx context.Context, cartID string) error {
	if _, err := r.pool.Exec(ctx, clearCartSQL, cartID); err != nil {
		return fmt.Errorf("clearing cart %q: %w", cartID, err)
	}
	return nil
}

func scanCartItem(row pgx.CollectableRow) (cart.Item, error) {
	var (
		item cart.Item
		p    = &item.Product
	)
	err := row.Scan(
		&item.ID, &item.CartID, &item.ProductID, &item.Quantity,
		&p.ID, &p.SKU, &p.Name, &p.Description, &p.Category, &p.Price, &p.Stock, &p.IsAvailable,
		&p.SellerID, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt,
	)
	return item, err
}
