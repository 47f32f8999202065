package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/report"
)

const (
	sellerLinesSQL = `SELECT o.id, o.created_at, i.product_id, i.product_name, i.quantity, i.price
		FROM order_items i JOIN orders o ON o.id = i.order_id
		WHERE i.seller_id = $1 AND o.status <> 'CANCELLED'
			AND o.created_at >= $2 AND o.created_at <= $3
		ORDER BY o.created_at, i.line_no`

	statusBreakdownSQL = `SELECT o.status, count(*) FROM orders o
		WHERE EXISTS (SELECT 1 FROM order_items i WHERE i.order_id = o.id AND i.seller_id = $1)
		GROUP BY o.status
		ORDER BY o.status`
)

var _ report.Repository = (*ReportRepository)(nil)

// ReportRepository reads seller sales from PostgreSQL.
type ReportRepository struct {
	pool *pgxpool.Pool
}

// NewReportRepository returns a ReportRepository that uses the given pool.
func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

// SellerLines returns the seller's items of non-cancelled orders created in
// [from, to].
func (r *ReportRepository) SellerLines(ctx context.Context, sellerID string, from, to time.Time) ([]report.Line, error) {
	rows, err := r.pool.Query(ctx, sellerLinesSQL, sellerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing sales of %q: %w", sellerID, err)
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (report.Line, error) {
		var l report.Line
		err := row.Scan(&l.OrderID, &l.CreatedAt, &l.ProductID, &l.Name, &l.Quantity, &l.Price)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing sales of %q: %w", sellerID, err)
	}
	return lines, nil
}

// StatusBreakdown counts the orders containing the seller's products by status.
func (r *ReportRepository) StatusBreakdown(ctx context.Context, sellerID string) ([]report.StatusCount, error) {
	rows, err := r.pool.Query(ctx, statusBreakdownSQL, sellerID)
	if err != nil {
		return nil, fmt.Errorf("counting orders of %q: %w", sellerID, err)
	}
	counts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (report.StatusCount, error) {
		var c report.StatusCount
		err := row.Scan(&c.Status, &c.Count)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("counting orders of %q: %w", sellerID, err)
	}
	return counts, nil
}
