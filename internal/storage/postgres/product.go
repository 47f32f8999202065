package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/product"
)

const productColumns = `id, sku, name, description, category, price, stock, is_available,
	seller_id, image_url, created_at, updated_at`

const (
	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	createProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	updateProductSQL = `UPDATE products
		SET name = $2, description = $3, category = $4, price = $5, image_url = $6,
			is_available = $7 AND stock > 0, updated_at = $8
		WHERE id = $1`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`

	setStockSQL = `UPDATE products
		SET stock = $2, is_available = CASE WHEN $2 = 0 THEN FALSE WHEN stock = 0 THEN TRUE ELSE is_available END,
			updated_at = now()
		WHERE id = $1
		RETURNING ` + productColumns

	lowStockSQL = `SELECT ` + productColumns + ` FROM products
		WHERE seller_id = $1 AND stock < $2 AND is_available
		ORDER BY stock, name`
)

var sortClauses = map[product.SortBy]string{
	product.SortNewest:    "created_at DESC, id",
	product.SortPriceAsc:  "price ASC, id",
	product.SortPriceDesc: "price DESC, id",
	product.SortName:      "name ASC, id",
}

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns one page of products matching f and the total match count.
// f must be normalized.
func (r *ProductRepository) List(ctx context.Context, f product.Filter) ([]product.Product, int, error) {
	where, args := productWhere(f)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting products: %w", err)
	}

	order, ok := sortClauses[f.SortBy]
	if !ok {
		order = sortClauses[product.SortNewest]
	}
	args = append(args, f.Limit, f.Offset())
	sql := `SELECT ` + productColumns + ` FROM products` + where +
		` ORDER BY ` + order +
		` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing products: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, 0, fmt.Errorf("listing products: %w", err)
	}
	return products, total, nil
}

func productWhere(f product.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}

	if s := strings.TrimSpace(f.Search); s != "" {
		add(`(name ILIKE ? OR description ILIKE ?)`, "%"+escapeLike(s)+"%")
	}
	if f.Category != "" {
		add(`category = ?`, f.Category)
	}
	if f.MinPrice != nil {
		add(`price >= ?`, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add(`price <= ?`, *f.MaxPrice)
	}
	if f.IsAvailable != nil {
		add(`is_available = ?`, *f.IsAvailable)
	}
	if f.SellerID != "" {
		add(`seller_id = ?`, f.SellerID)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	return getProduct(ctx, r.pool, getProductByIDSQL, id)
}

// getProduct runs a single-product query whose first argument is the id.
func getProduct(ctx context.Context, q querier, sql string, args ...any) (*product.Product, error) {
	id := args[0]
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// Create inserts a new product.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	_, err := r.pool.Exec(ctx, createProductSQL,
		p.ID, p.SKU, p.Name, p.Description, p.Category, p.Price, p.Stock, p.IsAvailable,
		p.SellerID, p.ImageURL, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

// Update writes the editable fields of p. Stock is only changed through
// SetStock and the order workflow; availability stays off without stock.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	tag, err := r.pool.Exec(ctx, updateProductSQL,
		p.ID, p.Name, p.Description, p.Category, p.Price, p.ImageURL, p.IsAvailable, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating product %q: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	if p.Stock == 0 {
		p.IsAvailable = false
	}
	return nil
}

// Delete removes a product. Products that appear in orders cannot be deleted.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		if pgErrorCode(err) == codeForeignKeyViolation {
			return product.ErrInUse
		}
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// SetStock overwrites the stock. Emptying the stock switches the product off
// and restocking an empty product switches it back on.
func (r *ProductRepository) SetStock(ctx context.Context, id string, stock int) (*product.Product, error) {
	return getProduct(ctx, r.pool, setStockSQL, id, stock)
}

// LowStock lists available products of the seller with stock under threshold,
// lowest stock first.
func (r *ProductRepository) LowStock(ctx context.Context, sellerID string, threshold int) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, lowStockSQL, sellerID, threshold)
	if err != nil {
		return nil, fmt.Errorf("listing low stock products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.SKU, &p.Name, &p.Description, &p.Category, &p.Price, &p.Stock, &p.IsAvailable,
		&p.SellerID, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
