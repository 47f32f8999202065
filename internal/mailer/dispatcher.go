package mailer

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/notification"
)

// Options configures a Dispatcher.
type Options struct {
	// QueueSize bounds the number of messages waiting for a worker.
	QueueSize int
	Workers   int
	// Currency prefixes money amounts, "Rp" by default.
	Currency string
	// Location renders dates in summaries.
	Location *time.Location
	// SendTimeout bounds a single delivery.
	SendTimeout time.Duration
}

func (o *Options) setDefaults() {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.Currency == "" {
		o.Currency = "Rp"
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = 30 * time.Second
	}
}

// Dispatcher is a notification.Notifier that queues messages for
// asynchronous delivery. When the queue is full new messages are dropped.
type Dispatcher struct {
	transport Transport
	compose   composer
	queue     chan Message
	workers   int
	timeout   time.Duration
	lg        *zap.Logger

	closeOnce sync.Once
	done      chan struct{}
}

var _ notification.Notifier = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher delivering through t. Call Run to start
// the workers.
func NewDispatcher(t Transport, lg *zap.Logger, opts Options) *Dispatcher {
	opts.setDefaults()
	return &Dispatcher{
		transport: t,
		compose:   composer{currency: opts.Currency, loc: opts.Location},
		queue:     make(chan Message, opts.QueueSize),
		workers:   opts.Workers,
		timeout:   opts.SendTimeout,
		lg:        lg,
		done:      make(chan struct{}),
	}
}

// Run delivers queued messages until ctx is done or Close is called, then
// delivers whatever is still queued and returns.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for range d.workers {
		g.Go(func() error {
			d.work(gctx)
			return nil
		})
	}
	err := g.Wait()

	// Drain with a fresh context: the caller's one is already cancelled.
	drain := context.WithoutCancel(ctx)
	for {
		select {
		case m := <-d.queue:
			d.deliver(drain, m)
		default:
			return err
		}
	}
}

// Close stops the workers started by Run.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() { close(d.done) })
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.done:
			return
		case m := <-d.queue:
			d.deliver(ctx, m)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, m Message) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.transport.Send(ctx, m); err != nil {
		d.lg.Error("Send email",
			zap.String("to", m.To),
			zap.String("subject", m.Subject),
			zap.Error(err),
		)
		return
	}
	d.lg.Debug("Email sent",
		zap.String("to", m.To),
		zap.String("subject", m.Subject),
	)
}

func (d *Dispatcher) enqueue(ctx context.Context, m Message) {
	select {
	case d.queue <- m:
	default:
		zctx.From(ctx).Warn("Email queue full, dropping message",
			zap.String("to", m.To),
			zap.String("subject", m.Subject),
		)
	}
}

func (d *Dispatcher) OrderConfirmation(ctx context.Context, to string, o notification.OrderSummary) {
	d.enqueue(ctx, d.compose.orderConfirmation(to, o))
}

func (d *Dispatcher) NewOrderToSeller(ctx context.Context, to string, o notification.OrderSummary) {
	d.enqueue(ctx, d.compose.newOrderToSeller(to, o))
}

func (d *Dispatcher) LowStock(ctx context.Context, to string, p notification.ProductRef, stock int) {
	d.enqueue(ctx, d.compose.lowStock(to, p, stock))
}

func (d *Dispatcher) OutOfStock(ctx context.Context, to string, p notification.ProductRef) {
	d.enqueue(ctx, d.compose.outOfStock(to, p))
}

func (d *Dispatcher) OrderStatusChanged(ctx context.Context, to, orderNumber, oldStatus, newStatus string) {
	d.enqueue(ctx, d.compose.statusChanged(to, orderNumber, oldStatus, newStatus))
}

func (d *Dispatcher) WeeklySalesSummary(ctx context.Context, to string, s notification.SalesSummary) {
	d.enqueue(ctx, d.compose.weeklySummary(to, s))
}
