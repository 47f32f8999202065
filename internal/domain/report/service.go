package report

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/notification"
)

const dashboardTopProducts = 10

// Service builds seller dashboards.
type Service struct {
	sales     Repository
	products  LowStockLister
	threshold int
	loc       *time.Location
	now       func() time.Time
}

// NewService creates a report Service. Period boundaries and trend days are
// computed in loc.
func NewService(sales Repository, products LowStockLister, lowStock int, loc *time.Location) *Service {
	if lowStock <= 0 {
		lowStock = notification.DefaultLowStockThreshold
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		sales:     sales,
		products:  products,
		threshold: lowStock,
		loc:       loc,
		now:       time.Now,
	}
}

// Dashboard returns the seller overview for period.
func (s *Service) Dashboard(ctx context.Context, sellerID string, period Period) (*Dashboard, error) {
	now := s.now().In(s.loc)
	from := period.Start(now)

	lines, err := s.sales.SellerLines(ctx, sellerID, from, now)
	if err != nil {
		return nil, errors.Wrap(err, "seller lines")
	}
	lowStock, err := s.products.LowStock(ctx, sellerID, s.threshold)
	if err != nil {
		return nil, errors.Wrap(err, "low stock")
	}
	breakdown, err := s.sales.StatusBreakdown(ctx, sellerID)
	if err != nil {
		return nil, errors.Wrap(err, "status breakdown")
	}

	totals := Summarize(lines)
	return &Dashboard{
		Period:          period,
		Revenue:         totals.Revenue,
		OrderCount:      totals.Orders,
		TopProducts:     TopByQuantity(totals.Products, dashboardTopProducts),
		LowStock:        lowStock,
		StatusBreakdown: breakdown,
		Trend:           Trend(lines, s.loc),
	}, nil
}
