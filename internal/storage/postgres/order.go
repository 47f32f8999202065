package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
)

const (
	orderColumns = `o.id, o.order_number, o.buyer_id, o.shipping_address, o.total_amount, o.status,
		o.created_at, o.updated_at`

	orderItemColumns = `id, order_id, product_id, product_name, seller_id, quantity, price`
)

const (
	insertOrderSQL = `INSERT INTO orders
		(id, order_number, buyer_id, shipping_address, total_amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	insertOrderItemSQL = `INSERT INTO order_items
		(id, order_id, line_no, product_id, product_name, seller_id, quantity, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	// Conditional decrement: zero rows means the stock moved under the caller.
	decrementStockSQL = `UPDATE products
		SET stock = stock - $2, is_available = is_available AND stock - $2 > 0, updated_at = now()
		WHERE id = $1 AND stock >= $2
		RETURNING stock`

	// Only a product emptied to zero is switched back on. A product the seller
	// switched off while it still had stock stays off.
	restoreStockSQL = `UPDATE products
		SET stock = stock + $2, is_available = CASE WHEN stock = 0 THEN TRUE ELSE is_available END,
			updated_at = now()
		WHERE id = $1
		RETURNING stock`

	buyerOrderSQL = `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1 AND o.buyer_id = $2`

	sellerOrderSQL = `SELECT ` + orderColumns + ` FROM orders o
		WHERE o.id = $1
			AND EXISTS (SELECT 1 FROM order_items i WHERE i.order_id = o.id AND i.seller_id = $2)`

	orderItemsSQL = `SELECT ` + orderItemColumns + ` FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, line_no`

	sellerOrderItemsSQL = `SELECT ` + orderItemColumns + ` FROM order_items
		WHERE order_id = ANY($1) AND seller_id = $2
		ORDER BY order_id, line_no`

	setOrderStatusSQL = `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`
)

var _ order.Store = (*OrderStore)(nil)

// OrderStore implements order.Store backed by PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Atomic runs fn in a transaction, committing when fn returns nil.
func (s *OrderStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &orderTx{tx: tx})
	})
}

// GetForBuyer returns an order of the buyer with all items.
func (s *OrderStore) GetForBuyer(ctx context.Context, orderID, buyerID string) (*order.Order, error) {
	return getOrder(ctx, s.pool, buyerOrderSQL, orderID, buyerID)
}

// ListForBuyer returns one page of the buyer's orders, newest first.
func (s *OrderStore) ListForBuyer(ctx context.Context, buyerID string, q order.ListQuery) ([]order.Order, int, error) {
	return s.list(ctx, `o.buyer_id = $1`, buyerID, q, false)
}

// ListForSeller returns one page of orders containing the seller's products.
// Each order only carries the seller's items.
func (s *OrderStore) ListForSeller(ctx context.Context, sellerID string, q order.ListQuery) ([]order.Order, int, error) {
	return s.list(ctx,
		`EXISTS (SELECT 1 FROM order_items i WHERE i.order_id = o.id AND i.seller_id = $1)`,
		sellerID, q, true,
	)
}

func (s *OrderStore) list(
	ctx context.Context,
	owner string,
	ownerID string,
	q order.ListQuery,
	sellerItems bool,
) ([]order.Order, int, error) {
	conds := []string{owner}
	args := []any{ownerID}
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, cond+strconv.Itoa(len(args)))
	}
	if q.Status != "" {
		add(`o.status = $`, string(q.Status))
	}
	if !q.From.IsZero() {
		add(`o.created_at >= $`, q.From)
	}
	if !q.To.IsZero() {
		add(`o.created_at <= $`, q.To)
	}
	where := ` WHERE ` + strings.Join(conds, ` AND `)

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM orders o`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting orders: %w", err)
	}

	args = append(args, q.Limit, q.Offset())
	sql := `SELECT ` + orderColumns + ` FROM orders o` + where +
		` ORDER BY o.created_at DESC, o.id` +
		` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}

	itemsSQL, itemArgs := orderItemsSQL, []any{orderIDs(orders)}
	if sellerItems {
		itemsSQL, itemArgs = sellerOrderItemsSQL, append(itemArgs, ownerID)
	}
	if err := attachItems(ctx, s.pool, orders, itemsSQL, itemArgs...); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// orderTx implements order.Tx on a pgx transaction.
type orderTx struct {
	tx pgx.Tx
}

func (t *orderTx) CartForBuyer(ctx context.Context, buyerID string) (*cart.Cart, error) {
	return loadCart(ctx, t.tx, buyerID, true)
}

func (t *orderTx) InsertOrder(ctx context.Context, o *order.Order) error {
	b := &pgx.Batch{}
	b.Queue(insertOrderSQL,
		o.ID, o.Number, o.BuyerID, o.ShippingAddress, o.Total, string(o.Status), o.CreatedAt, o.UpdatedAt,
	)
	for i, item := range o.Items {
		b.Queue(insertOrderItemSQL,
			item.ID, o.ID, i+1, item.ProductID, item.ProductName, item.SellerID, item.Quantity, item.Price,
		)
	}

	br := t.tx.SendBatch(ctx, b)
	for range b.Len() {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("inserting order %q: %w", o.ID, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("inserting order %q: %w", o.ID, err)
	}
	return nil
}

func (t *orderTx) DecrementStock(ctx context.Context, productID string, qty int) (int, error) {
	var stock int
	if err := t.tx.QueryRow(ctx, decrementStockSQL, productID, qty).Scan(&stock); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, order.ErrStockConflict
		}
		return 0, fmt.Errorf("decrementing stock of %q: %w", productID, err)
	}
	return stock, nil
}

func (t *orderTx) RestoreStock(ctx context.Context, productID string, qty int) (int, error) {
	var stock int
	if err := t.tx.QueryRow(ctx, restoreStockSQL, productID, qty).Scan(&stock); err != nil {
		return 0, fmt.Errorf("restoring stock of %q: %w", productID, err)
	}
	return stock, nil
}

func (t *orderTx) ClearCart(ctx context.Context, cartID string) error {
	if _, err := t.tx.Exec(ctx, clearCartSQL, cartID); err != nil {
		return fmt.Errorf("clearing cart %q: %w", cartID, err)
	}
	return nil
}

func (t *orderTx) OrderForBuyer(ctx context.Context, orderID, buyerID string) (*order.Order, error) {
	return getOrder(ctx, t.tx, buyerOrderSQL+` FOR UPDATE`, orderID, buyerID)
}

func (t *orderTx) OrderForSeller(ctx context.Context, orderID, sellerID string) (*order.Order, error) {
	return getOrder(ctx, t.tx, sellerOrderSQL+` FOR UPDATE`, orderID, sellerID)
}

func (t *orderTx) SetStatus(ctx context.Context, orderID string, status order.Status, at time.Time) error {
	if _, err := t.tx.Exec(ctx, setOrderStatusSQL, orderID, string(status), at); err != nil {
		return fmt.Errorf("updating status of %q: %w", orderID, err)
	}
	return nil
}

// getOrder loads a single order with all of its items.
func getOrder(ctx context.Context, q querier, sql, orderID, ownerID string) (*order.Order, error) {
	rows, err := q.Query(ctx, sql, orderID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", orderID, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", orderID, err)
	}

	orders := []order.Order{o}
	if err := attachItems(ctx, q, orders, orderItemsSQL, []string{o.ID}); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func attachItems(ctx context.Context, q querier, orders []order.Order, sql string, args ...any) error {
	if len(orders) == 0 {
		return nil
	}
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanOrderItem)
	if err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}

	index := make(map[string]int, len(orders))
	for i := range orders {
		index[orders[i].ID] = i
	}
	for _, item := range items {
		if i, ok := index[item.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, item)
		}
	}
	return nil
}

func orderIDs(orders []order.Order) []string {
	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	return ids
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.BuyerID, &o.ShippingAddress, &o.Total, &status,
		&o.CreatedAt, &o.UpdatedAt,
	)
	o.Status = order.Status(status)
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var item order.Item
	err := row.Scan(
		&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.SellerID,
		&item.Quantity, &item.Price,
	)
	return item, err
}
