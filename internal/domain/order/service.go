package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/storefront/internal/domain/notification"
	"github.com/xenking/storefront/internal/domain/user"
)

const instrumentationName = "github.com/xenking/storefront/internal/domain/order"

// PlaceOrderRequest holds the input for converting a cart into an order.
type PlaceOrderRequest struct {
	BuyerID         string
	ShippingAddress string
}

// Option configures a Service.
type Option func(*Service)

// WithTracerProvider sets the tracer provider used for workflow spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider used for workflow counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meterProvider = mp }
}

// WithLowStockThreshold sets the stock level under which sellers are alerted.
func WithLowStockThreshold(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.threshold = n
		}
	}
}

// WithNumberGenerator replaces the order number generator.
func WithNumberGenerator(g *NumberGenerator) Option {
	return func(s *Service) { s.numbers = g }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service is the order workflow: placement, cancellation and fulfilment
// status changes. State changes run inside Store.Atomic; notifications are
// sent after commit and never affect the result.
type Service struct {
	store     Store
	contacts  user.Directory
	notifier  notification.Notifier
	numbers   *NumberGenerator
	threshold int
	now       func() time.Time

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	tracer         trace.Tracer
	placed         metric.Int64Counter
	rejected       metric.Int64Counter
	statusChanged  metric.Int64Counter
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	store Store,
	contacts user.Directory,
	notifier notification.Notifier,
	opts ...Option,
) *Service {
	s := &Service{
		store:          store,
		contacts:       contacts,
		notifier:       notifier,
		threshold:      notification.DefaultLowStockThreshold,
		now:            time.Now,
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.numbers == nil {
		s.numbers = NewNumberGenerator(0)
	}

	s.tracer = s.tracerProvider.Tracer(instrumentationName)
	meter := s.meterProvider.Meter(instrumentationName)
	s.placed = newCounter(meter, "storefront.orders.placed", "Orders placed")
	s.rejected = newCounter(meter, "storefront.orders.rejected", "Order placements rejected")
	s.statusChanged = newCounter(meter, "storefront.orders.status_changed", "Order status transitions")
	return s
}

func newCounter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}

// PlaceOrder converts the buyer's cart into a PENDING order.
//
// The cart is validated, the order and its price snapshot are written, stock is
// decremented and the cart is emptied in one transaction; any failure leaves
// no trace. Stock alerts, the buyer confirmation and one summary per seller are
// sent after commit.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Place",
		trace.WithAttributes(attribute.String("buyer.id", req.BuyerID)),
	)
	defer span.End()

	if strings.TrimSpace(req.ShippingAddress) == "" {
		s.reject(ctx, span, ErrShippingAddressRequired)
		return nil, ErrShippingAddressRequired
	}

	var (
		placed  *Order
		changes []notification.StockChange
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		placed, changes = nil, nil

		c, err := tx.CartForBuyer(ctx, req.BuyerID)
		if err != nil {
			return errors.Wrap(err, "load cart")
		}
		if c == nil || len(c.Items) == 0 {
			return ErrEmptyCart
		}

		// Validate every item before writing anything.
		total := decimal.Zero
		for _, item := range c.Items {
			if err := item.Product.CanFulfil(item.Quantity); err != nil {
				return err
			}
			total = total.Add(item.Subtotal())
		}

		now := s.now()
		o := &Order{
			ID:              uuid.New().String(),
			Number:          s.numbers.Next(now),
			BuyerID:         req.BuyerID,
			ShippingAddress: req.ShippingAddress,
			Total:           total,
			Status:          StatusPending,
			Items:           make([]Item, 0, len(c.Items)),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		for _, item := range c.Items {
			o.Items = append(o.Items, Item{
				ID:          uuid.New().String(),
				OrderID:     o.ID,
				ProductID:   item.ProductID,
				ProductName: item.Product.Name,
				SellerID:    item.Product.SellerID,
				Quantity:    item.Quantity,
				Price:       item.Product.Price,
			})
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return errors.Wrap(err, "insert order")
		}

		for _, item := range c.Items {
			remaining, err := tx.DecrementStock(ctx, item.ProductID, item.Quantity)
			if errors.Is(err, ErrStockConflict) {
				return &InsufficientStockError{
					ProductID: item.ProductID,
					Name:      item.Product.Name,
					Available: item.Product.Stock,
				}
			}
			if err != nil {
				return errors.Wrapf(err, "decrement stock of %s", item.ProductID)
			}
			changes = append(changes, notification.StockChange{
				Product:  notification.ProductRef{ID: item.ProductID, Name: item.Product.Name},
				SellerID: item.Product.SellerID,
				Before:   item.Product.Stock,
				After:    remaining,
			})
		}

		if err := tx.ClearCart(ctx, c.ID); err != nil {
			return errors.Wrap(err, "clear cart")
		}

		placed = o
		return nil
	})
	if err != nil {
		s.reject(ctx, span, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("order.id", placed.ID),
		attribute.String("order.number", placed.Number),
	)
	s.placed.Add(ctx, 1)
	s.notifyPlaced(ctx, placed, changes)
	return placed, nil
}

// CancelOrder cancels a PENDING order of the buyer and puts its items back
// into stock.
func (s *Service) CancelOrder(ctx context.Context, buyerID, orderID string) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Cancel",
		trace.WithAttributes(
			attribute.String("buyer.id", buyerID),
			attribute.String("order.id", orderID),
		),
	)
	defer span.End()

	var cancelled *Order
	err := s.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.OrderForBuyer(ctx, orderID, buyerID)
		if err != nil {
			return err
		}
		if o.Status != StatusPending {
			return &InvalidTransitionError{From: o.Status, To: StatusCancelled}
		}
		if err := restoreStock(ctx, tx, o.Items); err != nil {
			return err
		}

		now := s.now()
		if err := tx.SetStatus(ctx, o.ID, StatusCancelled, now); err != nil {
			return errors.Wrap(err, "set status")
		}
		o.Status = StatusCancelled
		o.UpdatedAt = now
		cancelled = o
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.statusChanged.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(StatusCancelled))))
	return cancelled, nil
}

// UpdateStatus moves an order containing at least one of the seller's
// products to target. Cancelling restores stock for every item of the order.
// The buyer is notified after commit.
func (s *Service) UpdateStatus(ctx context.Context, sellerID, orderID string, target Status) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.UpdateStatus",
		trace.WithAttributes(
			attribute.String("seller.id", sellerID),
			attribute.String("order.id", orderID),
			attribute.String("order.status", string(target)),
		),
	)
	defer span.End()

	if !target.Valid() {
		return nil, ErrInvalidStatus
	}

	var (
		updated *Order
		old     Status
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.OrderForSeller(ctx, orderID, sellerID)
		if err != nil {
			return err
		}
		old = o.Status
		if !old.CanTransition(target) {
			return &InvalidTransitionError{From: old, To: target}
		}
		if target == StatusCancelled {
			if err := restoreStock(ctx, tx, o.Items); err != nil {
				return err
			}
		}

		now := s.now()
		if err := tx.SetStatus(ctx, o.ID, target, now); err != nil {
			return errors.Wrap(err, "set status")
		}
		o.Status = target
		o.UpdatedAt = now
		updated = o
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.statusChanged.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(target))))

	contacts := s.resolver(ctx)
	if buyer, ok := contacts(updated.BuyerID); ok {
		s.notifier.OrderStatusChanged(ctx, buyer.Email, updated.Number, string(old), string(target))
	}
	return updated, nil
}

// Get returns an order of the buyer.
func (s *Service) Get(ctx context.Context, buyerID, orderID string) (*Order, error) {
	return s.store.GetForBuyer(ctx, orderID, buyerID)
}

// ListMine returns the buyer's orders, newest first.
func (s *Service) ListMine(ctx context.Context, buyerID string, q ListQuery) (*Page, error) {
	if err := q.Normalize(); err != nil {
		return nil, err
	}
	orders, total, err := s.store.ListForBuyer(ctx, buyerID, q)
	if err != nil {
		return nil, errors.Wrap(err, "list buyer orders")
	}
	return &Page{Orders: orders, Total: total, Page: q.Page, Limit: q.Limit}, nil
}

// ListForSeller returns orders containing the seller's products, newest first.
func (s *Service) ListForSeller(ctx context.Context, sellerID string, q ListQuery) (*Page, error) {
	if err := q.Normalize(); err != nil {
		return nil, err
	}
	orders, total, err := s.store.ListForSeller(ctx, sellerID, q)
	if err != nil {
		return nil, errors.Wrap(err, "list seller orders")
	}
	return &Page{Orders: orders, Total: total, Page: q.Page, Limit: q.Limit}, nil
}

func restoreStock(ctx context.Context, tx Tx, items []Item) error {
	for _, item := range items {
		if _, err := tx.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
			return errors.Wrapf(err, "restore stock of %s", item.ProductID)
		}
	}
	return nil
}

func (s *Service) reject(ctx context.Context, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", rejectReason(err))))
}

func rejectReason(err error) string {
	var (
		unavailable  *ProductUnavailableError
		insufficient *InsufficientStockError
	)
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrShippingAddressRequired):
		return "invalid_request"
	case errors.As(err, &unavailable):
		return "unavailable"
	case errors.As(err, &insufficient):
		return "insufficient_stock"
	default:
		return "error"
	}
}
