// Package report aggregates seller sales for the dashboard and the weekly
// summary email.
package report

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/notification"
	"github.com/xenking/storefront/internal/domain/product"
)

// ErrInvalidPeriod is returned for an unknown dashboard period.
var ErrInvalidPeriod = errors.New("period must be daily, weekly or monthly")

// Period is the dashboard time window.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// ParsePeriod parses a period name; the empty string means daily.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PeriodDaily, nil
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return p, nil
	default:
		return "", ErrInvalidPeriod
	}
}

// Start returns the beginning of the period ending at now: midnight for
// daily, seven days back for weekly and the first of the month for monthly.
func (p Period) Start(now time.Time) time.Time {
	y, m, d := now.Date()
	switch p {
	case PeriodWeekly:
		return now.AddDate(0, 0, -7)
	case PeriodMonthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	}
}

// Line is a sold order item of a seller.
type Line struct {
	OrderID   string
	CreatedAt time.Time
	ProductID string
	Name      string
	Quantity  int
	Price     decimal.Decimal
}

// Revenue returns price * quantity.
func (l Line) Revenue() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// StatusCount is the number of a seller's orders in one status.
type StatusCount struct {
	Status string
	Count  int
}

// DailySales is the trend point of one calendar day.
type DailySales struct {
	Date    string
	Revenue decimal.Decimal
	Orders  int
}

// Totals summarizes a set of lines.
type Totals struct {
	Revenue   decimal.Decimal
	Orders    int
	ItemsSold int
	// Products holds per-product sales in no particular order.
	Products []notification.ProductSales
}

// Dashboard is the seller overview for one period.
type Dashboard struct {
	Period          Period
	Revenue         decimal.Decimal
	OrderCount      int
	TopProducts     []notification.ProductSales
	LowStock        []product.Product
	StatusBreakdown []StatusCount
	Trend           []DailySales
}

// Repository reads seller sales.
type Repository interface {
	// SellerLines returns the seller's order items of non-cancelled orders
	// created in [from, to].
	SellerLines(ctx context.Context, sellerID string, from, to time.Time) ([]Line, error)
	// StatusBreakdown counts all orders containing the seller's products by status.
	StatusBreakdown(ctx context.Context, sellerID string) ([]StatusCount, error)
}

// LowStockLister lists a seller's available products under a stock threshold.
type LowStockLister interface {
	LowStock(ctx context.Context, sellerID string, threshold int) ([]product.Product, error)
}

// Summarize aggregates lines into totals.
func Summarize(lines []Line) Totals {
	t := Totals{Revenue: decimal.Zero}
	orders := make(map[string]struct{})
	index := make(map[string]int)
	for _, l := range lines {
		rev := l.Revenue()
		t.Revenue = t.Revenue.Add(rev)
		t.ItemsSold += l.Quantity
		orders[l.OrderID] = struct{}{}

		i, ok := index[l.ProductID]
		if !ok {
			i = len(t.Products)
			index[l.ProductID] = i
			t.Products = append(t.Products, notification.ProductSales{
				ProductID: l.ProductID,
				Name:      l.Name,
				Revenue:   decimal.Zero,
			})
		}
		t.Products[i].Quantity += l.Quantity
		t.Products[i].Revenue = t.Products[i].Revenue.Add(rev)
	}
	t.Orders = len(orders)
	return t
}

// TopByQuantity returns up to n products sorted by units sold.
func TopByQuantity(sales []notification.ProductSales, n int) []notification.ProductSales {
	out := slices.Clone(sales)
	slices.SortStableFunc(out, func(a, b notification.ProductSales) int {
		return cmp.Compare(b.Quantity, a.Quantity)
	})
	return out[:min(n, len(out))]
}

// TopByRevenue returns up to n products sorted by revenue.
func TopByRevenue(sales []notification.ProductSales, n int) []notification.ProductSales {
	out := slices.Clone(sales)
	slices.SortStableFunc(out, func(a, b notification.ProductSales) int {
		return b.Revenue.Cmp(a.Revenue)
	})
	return out[:min(n, len(out))]
}

// Trend groups lines by calendar day in loc, oldest first.
func Trend(lines []Line, loc *time.Location) []DailySales {
	type day struct {
		revenue decimal.Decimal
		orders  map[string]struct{}
	}
	days := make(map[string]*day)
	for _, l := range lines {
		key := l.CreatedAt.In(loc).Format(time.DateOnly)
		d, ok := days[key]
		if !ok {
			d = &day{revenue: decimal.Zero, orders: make(map[string]struct{})}
			days[key] = d
		}
		d.revenue = d.revenue.Add(l.Revenue())
		d.orders[l.OrderID] = struct{}{}
	}

	out := make([]DailySales, 0, len(days))
	for key, d := range days {
		out = append(out, DailySales{Date: key, Revenue: d.revenue, Orders: len(d.orders)})
	}
	slices.SortFunc(out, func(a, b DailySales) int {
		return strings.Compare(a.Date, b.Date)
	})
	return out
}
