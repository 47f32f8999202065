package order

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/notification"
	"github.com/xenking/storefront/internal/domain/user"
)

// resolver returns a per-call contact lookup. Each user is resolved at most
// once; failed lookups are logged and skipped.
func (s *Service) resolver(ctx context.Context) func(userID string) (*user.Contact, bool) {
	cache := make(map[string]*user.Contact)
	return func(userID string) (*user.Contact, bool) {
		if c, ok := cache[userID]; ok {
			return c, c != nil
		}
		c, err := s.contacts.Contact(ctx, userID)
		if err != nil {
			zctx.From(ctx).Warn("Resolve contact",
				zap.String("user_id", userID),
				zap.Error(err),
			)
			c = nil
		}
		cache[userID] = c
		return c, c != nil
	}
}

func (s *Service) notifyPlaced(ctx context.Context, o *Order, changes []notification.StockChange) {
	contacts := s.resolver(ctx)

	for _, c := range changes {
		if !c.OutOfStock() && !c.LowStock(s.threshold) {
			continue
		}
		if seller, ok := contacts(c.SellerID); ok {
			notification.AlertStock(ctx, s.notifier, seller.Email, c, s.threshold)
		}
	}

	if buyer, ok := contacts(o.BuyerID); ok {
		s.notifier.OrderConfirmation(ctx, buyer.Email, notification.OrderSummary{
			Number: o.Number,
			Items:  lineItems(o.Items),
			Total:  o.Total,
		})
	}

	for _, group := range o.BySeller() {
		seller, ok := contacts(group.SellerID)
		if !ok {
			continue
		}
		s.notifier.NewOrderToSeller(ctx, seller.Email, notification.OrderSummary{
			Number: o.Number,
			Items:  lineItems(group.Items),
			Total:  group.Subtotal(),
		})
	}
}

func lineItems(items []Item) []notification.LineItem {
	out := make([]notification.LineItem, 0, len(items))
	for _, item := range items {
		out = append(out, notification.LineItem{
			ProductID: item.ProductID,
			Name:      item.ProductName,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return out
}
