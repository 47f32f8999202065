// Package notification defines the fire-and-forget sink used by the domain
// services to reach buyers and sellers.
//
// Notifier methods return nothing: delivery problems are the sink's concern
// and must never affect the outcome of the operation that triggered them.
package notification

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultLowStockThreshold is the stock level under which sellers get a
// low stock alert.
const DefaultLowStockThreshold = 10

// LineItem is a purchased product as shown in order emails.
type LineItem struct {
	ProductID string
	Name      string
	Quantity  int
	Price     decimal.Decimal
}

// Subtotal returns price * quantity.
func (l LineItem) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// OrderSummary is the part of an order communicated by email. For seller
// notifications Items and Total only cover that seller's products.
type OrderSummary struct {
	Number string
	Items  []LineItem
	Total  decimal.Decimal
}

// ProductRef identifies a product in stock alerts.
type ProductRef struct {
	ID   string
	Name string
}

// ProductSales aggregates sales of one product over a period.
type ProductSales struct {
	ProductID string
	Name      string
	Quantity  int
	Revenue   decimal.Decimal
}

// SalesSummary is the weekly report mailed to sellers.
type SalesSummary struct {
	Username       string
	TotalRevenue   decimal.Decimal
	TotalOrders    int
	TotalItemsSold int
	TopProducts    []ProductSales
	WeekStart      time.Time
	WeekEnd        time.Time
}

// Notifier delivers buyer and seller notifications by email address.
type Notifier interface {
	OrderConfirmation(ctx context.Context, to string, order OrderSummary)
	NewOrderToSeller(ctx context.Context, to string, order OrderSummary)
	LowStock(ctx context.Context, to string, p ProductRef, stock int)
	OutOfStock(ctx context.Context, to string, p ProductRef)
	OrderStatusChanged(ctx context.Context, to, orderNumber, oldStatus, newStatus string)
	WeeklySalesSummary(ctx context.Context, to string, summary SalesSummary)
}

// StockChange records the stock of a product before and after a write.
type StockChange struct {
	Product  ProductRef
	SellerID string
	Before   int
	After    int
}

// OutOfStock reports whether the change emptied the product.
func (c StockChange) OutOfStock() bool {
	return c.After == 0 && c.Before != 0
}

// LowStock reports whether the change moved the product under threshold
// without emptying it. Products already under the threshold do not alert
// again.
func (c StockChange) LowStock(threshold int) bool {
	return c.After > 0 && c.After < threshold && c.Before >= threshold
}

// AlertStock sends the out-of-stock or low-stock alert for c, if any.
func AlertStock(ctx context.Context, n Notifier, to string, c StockChange, threshold int) {
	switch {
	case c.OutOfStock():
		n.OutOfStock(ctx, to, c.Product)
	case c.LowStock(threshold):
		n.LowStock(ctx, to, c.Product, c.After)
	}
}

// Nop discards every notification.
type Nop struct{}

var _ Notifier = Nop{}

func (Nop) OrderConfirmation(context.Context, string, OrderSummary) {}
func (Nop) NewOrderToSeller(context.Context, string, OrderSummary) {}
func (Nop) LowStock(context.Context, string, ProductRef, int) {}
func (Nop) OutOfStock(context.Context, string, ProductRef) {}
func (Nop) OrderStatusChanged(context.Context, string, string, string, string) {}
func (Nop) WeeklySalesSummary(context.Context, string, SalesSummary) {}
