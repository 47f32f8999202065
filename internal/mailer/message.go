// Package mailer delivers buyer and seller notifications by email.
package mailer

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/notification"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

var statusMessages = map[string]string{
	"PENDING":    "Your order is pending confirmation.",
	"PROCESSING": "Your order is being processed.",
	"SHIPPED":    "Your order has been shipped!",
	"DELIVERED":  "Your order has been delivered.",
	"CANCELLED":  "Your order has been cancelled.",
}

// oneLine folds s onto a single line so it is safe in a header.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// composer renders notification payloads into messages.
type composer struct {
	currency string
	loc      *time.Location
}

func (c composer) money(d decimal.Decimal) string {
	return c.currency + " " + formatAmount(d)
}

func (c composer) items(items []notification.LineItem) string {
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s x%d @ %s", item.Name, item.Quantity, c.money(item.Price))
	}
	return b.String()
}

func (c composer) orderConfirmation(to string, o notification.OrderSummary) Message {
	return Message{
		To:      to,
		Subject: "Order Confirmation - " + o.Number,
		Body: lines(
			"Hello!",
			"",
			fmt.Sprintf("Your order %s has been confirmed.", o.Number),
			"",
			"Order Details:",
			c.items(o.Items),
			"",
			"Total: "+c.money(o.Total),
			"",
			"Thank you for your purchase!",
		),
	}
}

func (c composer) newOrderToSeller(to string, o notification.OrderSummary) Message {
	return Message{
		To:      to,
		Subject: "New Order - " + o.Number,
		Body: lines(
			"Hello!",
			"",
			"You have received a new order: "+o.Number,
			"",
			"Items:",
			c.items(o.Items),
			"",
			"Total: "+c.money(o.Total),
			"",
			"Please process this order from your seller dashboard.",
		),
	}
}

func (c composer) lowStock(to string, p notification.ProductRef, stock int) Message {
	return Message{
		To:      to,
		Subject: "Low Stock Alert - " + oneLine(p.Name),
		Body: lines(
			"Hello!",
			"",
			fmt.Sprintf("ALERT: Your product %q is running low on stock.", p.Name),
			"",
			fmt.Sprintf("Current Stock: %d units", stock),
			"",
			"Please restock this product to avoid running out of inventory.",
			"",
			"You can update the stock from your seller dashboard.",
		),
	}
}

func (c composer) outOfStock(to string, p notification.ProductRef) Message {
	return Message{
		To:      to,
		Subject: "OUT OF STOCK Alert - " + oneLine(p.Name),
		Body: lines(
			"Hello!",
			"",
			fmt.Sprintf("URGENT: Your product %q is now OUT OF STOCK!", p.Name),
			"",
			"This product is no longer available for purchase.",
			"Please restock immediately to resume sales.",
			"",
			"You can update the stock from your seller dashboard.",
		),
	}
}

func (c composer) statusChanged(to, number, oldStatus, newStatus string) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Order %s - Status Update", number),
		Body: lines(
			"Hello!",
			"",
			fmt.Sprintf("Your order %s status has been updated.", number),
			"",
			"Previous Status: "+oldStatus,
			"New Status: "+newStatus,
			"",
			statusMessages[newStatus],
			"",
			"Thank you for shopping with us!",
		),
	}
}

func (c composer) weeklySummary(to string, s notification.SalesSummary) Message {
	start := s.WeekStart.In(c.loc).Format(time.DateOnly)
	end := s.WeekEnd.In(c.loc).Format(time.DateOnly)

	top := "No sales this week"
	if len(s.TopProducts) > 0 {
		var b strings.Builder
		for i, p := range s.TopProducts {
			if i > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "%d. %s: %d sold, %s revenue", i+1, p.Name, p.Quantity, c.money(p.Revenue))
		}
		top = b.String()
	}

	return Message{
		To:      to,
		Subject: "Weekly Sales Summary - " + start,
		Body: lines(
			fmt.Sprintf("Hello %s!", s.Username),
			"",
			"Here's your weekly sales summary:",
			"",
			fmt.Sprintf("Period: %s - %s", start, end),
			"",
			"Sales Overview:",
			"- Total Revenue: "+c.money(s.TotalRevenue),
			fmt.Sprintf("- Total Orders: %d", s.TotalOrders),
			fmt.Sprintf("- Total Items Sold: %d", s.TotalItemsSold),
			"",
			"Top Selling Products:",
			top,
			"",
			"Keep up the great work!",
			"",
			"View detailed analytics in your seller dashboard.",
		),
	}
}

func lines(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

// formatAmount renders d with comma thousands separators and at most two
// decimal places, dropping the fraction of whole amounts: 1234567.5 is
// "1,234,567.50" and 2500 is "2,500".
func formatAmount(d decimal.Decimal) string {
	s := d.Round(2).StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	b.WriteString(sign)
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if frac != "00" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}
