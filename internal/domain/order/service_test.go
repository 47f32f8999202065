package order

import (
	"context"
	"maps"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/notification"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
)

// --- Fake store ---

type cartLine struct {
	productID string
	qty       int
}

type memState struct {
	products map[string]product.Product
	carts    map[string][]cartLine // by buyer
	orders   map[string]Order
}

func (s memState) clone() memState {
	c := memState{
		products: maps.Clone(s.products),
		carts:    make(map[string][]cartLine, len(s.carts)),
		orders:   make(map[string]Order, len(s.orders)),
	}
	for k, v := range s.carts {
		c.carts[k] = slices.Clone(v)
	}
	for k, v := range s.orders {
		v.Items = slices.Clone(v.Items)
		c.orders[k] = v
	}
	return c
}

// memStore serializes transactions and rolls back by restoring a snapshot.
type memStore struct {
	mu    sync.Mutex
	state memState

	insertErr error
	clearErr  error
}

func newMemStore(products ...product.Product) *memStore {
	s := &memStore{state: memState{
		products: make(map[string]product.Product),
		carts:    make(map[string][]cartLine),
		orders:   make(map[string]Order),
	}}
	for _, p := range products {
		s.state.products[p.ID] = p
	}
	return s
}

func (s *memStore) addToCart(buyerID, productID string, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.carts[buyerID] = append(s.state.carts[buyerID], cartLine{productID: productID, qty: qty})
}

func (s *memStore) product(id string) product.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.products[id]
}

func (s *memStore) setPrice(id string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.state.products[id]
	p.Price = price
	s.state.products[id] = p
}

func (s *memStore) setAvailable(id string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.state.products[id]
	p.IsAvailable = on
	s.state.products[id] = p
}

func (s *memStore) cartLen(buyerID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.carts[buyerID])
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.orders)
}

func (s *memStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(ctx, &memTx{s: s}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

func (s *memStore) GetForBuyer(_ context.Context, orderID, buyerID string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.state.orders[orderID]
	if !ok || o.BuyerID != buyerID {
		return nil, ErrOrderNotFound
	}
	return &o, nil
}

func (s *memStore) ListForBuyer(_ context.Context, buyerID string, q ListQuery) ([]Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Order
	for _, o := range s.state.orders {
		if o.BuyerID == buyerID && (q.Status == "" || o.Status == q.Status) {
			out = append(out, o)
		}
	}
	return out, len(out), nil
}

func (s *memStore) ListForSeller(_ context.Context, sellerID string, q ListQuery) ([]Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Order
	for _, o := range s.state.orders {
		var mine []Item
		for _, item := range o.Items {
			if item.SellerID == sellerID {
				mine = append(mine, item)
			}
		}
		if len(mine) > 0 {
			o.Items = mine
			out = append(out, o)
		}
	}
	return out, len(out), nil
}

type memTx struct {
	s *memStore
}

func (t *memTx) CartForBuyer(_ context.Context, buyerID string) (*cart.Cart, error) {
	lines, ok := t.s.state.carts[buyerID]
	if !ok {
		return nil, nil
	}
	c := &cart.Cart{ID: "cart-" + buyerID, BuyerID: buyerID}
	for i, l := range lines {
		c.Items = append(c.Items, cart.Item{
			ID:        string(rune('a' + i)),
			CartID:    c.ID,
			ProductID: l.productID,
			Quantity:  l.qty,
			Product:   t.s.state.products[l.productID],
		})
	}
	return c, nil
}

func (t *memTx) InsertOrder(_ context.Context, o *Order) error {
	if t.s.insertErr != nil {
		return t.s.insertErr
	}
	stored := *o
	stored.Items = slices.Clone(o.Items)
	t.s.state.orders[o.ID] = stored
	return nil
}

func (t *memTx) DecrementStock(_ context.Context, productID string, qty int) (int, error) {
	p := t.s.state.products[productID]
	if p.Stock < qty {
		return 0, ErrStockConflict
	}
	p.Stock -= qty
	if p.Stock == 0 {
		p.IsAvailable = false
	}
	t.s.state.products[productID] = p
	return p.Stock, nil
}

func (t *memTx) RestoreStock(_ context.Context, productID string, qty int) (int, error) {
	p := t.s.state.products[productID]
	if p.Stock == 0 {
		p.IsAvailable = true
	}
	p.Stock += qty
	t.s.state.products[productID] = p
	return p.Stock, nil
}

func (t *memTx) ClearCart(_ context.Context, cartID string) error {
	if t.s.clearErr != nil {
		return t.s.clearErr
	}
	for buyer := range t.s.state.carts {
		if "cart-"+buyer == cartID {
			t.s.state.carts[buyer] = nil
		}
	}
	return nil
}

func (t *memTx) OrderForBuyer(_ context.Context, orderID, buyerID string) (*Order, error) {
	o, ok := t.s.state.orders[orderID]
	if !ok || o.BuyerID != buyerID {
		return nil, ErrOrderNotFound
	}
	o.Items = slices.Clone(o.Items)
	return &o, nil
}

func (t *memTx) OrderForSeller(_ context.Context, orderID, sellerID string) (*Order, error) {
	o, ok := t.s.state.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	for _, item := range o.Items {
		if item.SellerID == sellerID {
			o.Items = slices.Clone(o.Items)
			return &o, nil
		}
	}
	return nil, ErrOrderNotFound
}

func (t *memTx) SetStatus(_ context.Context, orderID string, status Status, at time.Time) error {
	o := t.s.state.orders[orderID]
	o.Status = status
	o.UpdatedAt = at
	t.s.state.orders[orderID] = o
	return nil
}

// --- Fake collaborators ---

type mockDirectory struct {
	contacts map[string]user.Contact
}

func (m *mockDirectory) Contact(_ context.Context, userID string) (*user.Contact, error) {
	c, ok := m.contacts[userID]
	if !ok {
		return nil, user.ErrNotFound
	}
	return &c, nil
}

func (m *mockDirectory) Sellers(context.Context, string) ([]user.Contact, error) {
	return slices.Collect(maps.Values(m.contacts)), nil
}

type sentMail struct {
	kind  string
	to    string
	order notification.OrderSummary
	ref   notification.ProductRef
	stock int
	old   string
	new   string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMail
}

func (r *recordingNotifier) add(m sentMail) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, m)
}

func (r *recordingNotifier) OrderConfirmation(_ context.Context, to string, o notification.OrderSummary) {
	r.add(sentMail{kind: "confirmation", to: to, order: o})
}

func (r *recordingNotifier) NewOrderToSeller(_ context.Context, to string, o notification.OrderSummary) {
	r.add(sentMail{kind: "new_order", to: to, order: o})
}

func (r *recordingNotifier) LowStock(_ context.Context, to string, p notification.ProductRef, stock int) {
	r.add(sentMail{kind: "low_stock", to: to, ref: p, stock: stock})
}

func (r *recordingNotifier) OutOfStock(_ context.Context, to string, p notification.ProductRef) {
	r.add(sentMail{kind: "out_of_stock", to: to, ref: p})
}

func (r *recordingNotifier) OrderStatusChanged(_ context.Context, to, number, old, next string) {
	r.add(sentMail{kind: "status", to: to, order: notification.OrderSummary{Number: number}, old: old, new: next})
}

func (r *recordingNotifier) WeeklySalesSummary(context.Context, string, notification.SalesSummary) {}

func (r *recordingNotifier) byKind(kind string) []sentMail {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sentMail
	for _, m := range r.sent {
		if m.kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// --- Helpers ---

const (
	buyerID   = "buyer-1"
	sellerAID = "seller-a"
	sellerBID = "seller-b"
)

func newTestProduct(id, sellerID string, price string, stock int) product.Product {
	return product.Product{
		ID:          id,
		Name:        "Product " + id,
		Category:    "test",
		Price:       decimal.RequireFromString(price),
		Stock:       stock,
		IsAvailable: stock > 0,
		SellerID:    sellerID,
	}
}

func newDirectory() *mockDirectory {
	return &mockDirectory{contacts: map[string]user.Contact{
		buyerID:   {UserID: buyerID, Email: "buyer@example.com"},
		"buyer-2": {UserID: "buyer-2", Email: "buyer2@example.com"},
		sellerAID: {UserID: sellerAID, Email: "a@example.com"},
		sellerBID: {UserID: sellerBID, Email: "b@example.com"},
	}}
}

func newTestService(store *memStore) (*Service, *recordingNotifier) {
	n := &recordingNotifier{}
	return NewService(store, newDirectory(), n), n
}

func place(t *testing.T, svc *Service) *Order {
	t.Helper()
	o, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		BuyerID:         buyerID,
		ShippingAddress: "Jl. Sudirman 1, Jakarta",
	})
	require.NoError(t, err)
	return o
}

// --- PlaceOrder ---

func TestPlaceOrder_Scenario(t *testing.T) {
	store := newMemStore(
		newTestProduct("A", sellerAID, "1000", 5),
		newTestProduct("B", sellerBID, "500", 1),
	)
	store.addToCart(buyerID, "A", 2)
	store.addToCart(buyerID, "B", 1)
	svc, n := newTestService(store)

	o := place(t, svc)

	assert.True(t, decimal.NewFromInt(2500).Equal(o.Total), "total: %s", o.Total)
	assert.Equal(t, StatusPending, o.Status)
	assert.NotEmpty(t, o.Number)
	require.Len(t, o.Items, 2)

	a, b := store.product("A"), store.product("B")
	assert.Equal(t, 3, a.Stock)
	assert.True(t, a.IsAvailable)
	assert.Equal(t, 0, b.Stock)
	assert.False(t, b.IsAvailable)
	assert.Zero(t, store.cartLen(buyerID))

	oos := n.byKind("out_of_stock")
	require.Len(t, oos, 1)
	assert.Equal(t, "b@example.com", oos[0].to)
	assert.Equal(t, "B", oos[0].ref.ID)
	assert.Empty(t, n.byKind("low_stock"))

	conf := n.byKind("confirmation")
	require.Len(t, conf, 1)
	assert.Equal(t, "buyer@example.com", conf[0].to)
	assert.Equal(t, o.Number, conf[0].order.Number)
	assert.Len(t, conf[0].order.Items, 2)

	sellers := n.byKind("new_order")
	require.Len(t, sellers, 2)
	totals := map[string]decimal.Decimal{}
	for _, m := range sellers {
		totals[m.to] = m.order.Total
		assert.Len(t, m.order.Items, 1)
	}
	assert.True(t, decimal.NewFromInt(2000).Equal(totals["a@example.com"]))
	assert.True(t, decimal.NewFromInt(500).Equal(totals["b@example.com"]))
}

func TestPlaceOrder_TotalMatchesSnapshotPrices(t *testing.T) {
	store := newMemStore(
		newTestProduct("A", sellerAID, "19.99", 50),
		newTestProduct("B", sellerAID, "5.01", 50),
	)
	store.addToCart(buyerID, "A", 3)
	store.addToCart(buyerID, "B", 7)
	svc, _ := newTestService(store)

	o := place(t, svc)

	sum := decimal.Zero
	for _, item := range o.Items {
		sum = sum.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	assert.True(t, sum.Equal(o.Total))

	store.setPrice("A", decimal.RequireFromString("99.00"))
	got, err := svc.Get(context.Background(), buyerID, o.ID)
	require.NoError(t, err)
	for _, item := range got.Items {
		if item.ProductID == "A" {
			assert.True(t, decimal.RequireFromString("19.99").Equal(item.Price))
		}
	}
}

func TestPlaceOrder_OneEmailPerSeller(t *testing.T) {
	store := newMemStore(
		newTestProduct("A1", sellerAID, "10", 50),
		newTestProduct("A2", sellerAID, "20", 50),
		newTestProduct("B1", sellerBID, "30", 50),
	)
	store.addToCart(buyerID, "A1", 1)
	store.addToCart(buyerID, "B1", 1)
	store.addToCart(buyerID, "A2", 2)
	svc, n := newTestService(store)

	place(t, svc)

	sellers := n.byKind("new_order")
	require.Len(t, sellers, 2)
	for _, m := range sellers {
		switch m.to {
		case "a@example.com":
			assert.Len(t, m.order.Items, 2)
			assert.True(t, decimal.NewFromInt(50).Equal(m.order.Total))
		case "b@example.com":
			assert.Len(t, m.order.Items, 1)
			assert.True(t, decimal.NewFromInt(30).Equal(m.order.Total))
		default:
			t.Fatalf("unexpected recipient %q", m.to)
		}
	}
}

func TestPlaceOrder_LowStockOnlyWhenCrossing(t *testing.T) {
	store := newMemStore(
		newTestProduct("crossing", sellerAID, "1", 12),
		newTestProduct("already-low", sellerAID, "1", 8),
	)
	store.addToCart(buyerID, "crossing", 3)
	store.addToCart(buyerID, "already-low", 1)
	svc, n := newTestService(store)

	place(t, svc)

	low := n.byKind("low_stock")
	require.Len(t, low, 1)
	assert.Equal(t, "crossing", low[0].ref.ID)
	assert.Equal(t, 9, low[0].stock)
	assert.Empty(t, n.byKind("out_of_stock"))
}

func TestPlaceOrder_Errors(t *testing.T) {
	disabled := newTestProduct("off", sellerAID, "10", 5)
	disabled.IsAvailable = false
	soldOut := newTestProduct("gone", sellerAID, "10", 0)

	tests := []struct {
		name    string
		cart    []cartLine
		address string
		check   func(t *testing.T, err error)
	}{
		{
			name:    "no cart",
			address: "somewhere",
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrEmptyCart)
			},
		},
		{
			name:    "missing address",
			cart:    []cartLine{{"A", 1}},
			address: "  ",
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrShippingAddressRequired)
			},
		},
		{
			name:    "unavailable",
			cart:    []cartLine{{"A", 1}, {"off", 1}},
			address: "somewhere",
			check: func(t *testing.T, err error) {
				var e *ProductUnavailableError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "off", e.ProductID)
			},
		},
		{
			name:    "sold out and switched off",
			cart:    []cartLine{{"gone", 1}},
			address: "somewhere",
			check: func(t *testing.T, err error) {
				var e *ProductUnavailableError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "gone", e.ProductID)
				assert.NotContains(t, err.Error(), "insufficient")
			},
		},
		{
			name:    "insufficient stock",
			cart:    []cartLine{{"A", 1}, {"B", 4}},
			address: "somewhere",
			check: func(t *testing.T, err error) {
				var e *InsufficientStockError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "B", e.ProductID)
				assert.Equal(t, 3, e.Available)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore(
				newTestProduct("A", sellerAID, "10", 5),
				newTestProduct("B", sellerBID, "10", 3),
				disabled,
				soldOut,
			)
			for _, l := range tt.cart {
				store.addToCart(buyerID, l.productID, l.qty)
			}
			svc, n := newTestService(store)

			_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
				BuyerID:         buyerID,
				ShippingAddress: tt.address,
			})
			tt.check(t, err)

			assert.Equal(t, 5, store.product("A").Stock)
			assert.Equal(t, 3, store.product("B").Stock)
			assert.Equal(t, len(tt.cart), store.cartLen(buyerID))
			assert.Zero(t, store.orderCount())
			assert.Empty(t, n.sent)
		})
	}
}

func TestPlaceOrder_RollbackOnStoreFailure(t *testing.T) {
	store := newMemStore(newTestProduct("A", sellerAID, "10", 5))
	store.addToCart(buyerID, "A", 2)
	store.clearErr = errors.New("connection reset")
	svc, n := newTestService(store)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		BuyerID:         buyerID,
		ShippingAddress: "somewhere",
	})
	require.Error(t, err)

	assert.Equal(t, 5, store.product("A").Stock)
	assert.Equal(t, 1, store.cartLen(buyerID))
	assert.Zero(t, store.orderCount())
	assert.Empty(t, n.sent)
}

func TestPlaceOrder_ConcurrentExactlyOneSucceeds(t *testing.T) {
	store := newMemStore(newTestProduct("A", sellerAID, "10", 3))
	store.addToCart(buyerID, "A", 3)
	store.addToCart("buyer-2", "A", 3)
	svc, _ := newTestService(store)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i, buyer := range []string{buyerID, "buyer-2"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.PlaceOrder(context.Background(), PlaceOrderRequest{
				BuyerID:         buyer,
				ShippingAddress: "somewhere",
			})
		}()
	}
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		var (
			stock       *InsufficientStockError
			unavailable *ProductUnavailableError
		)
		switch {
		case err == nil:
			succeeded++
		case errors.As(err, &stock), errors.As(err, &unavailable):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 0, store.product("A").Stock)
	assert.Equal(t, 1, store.orderCount())
}

func TestPlaceOrder_MissingContactStillPlaces(t *testing.T) {
	store := newMemStore(newTestProduct("A", "ghost-seller", "10", 5))
	store.addToCart(buyerID, "A", 1)
	svc, n := newTestService(store)

	place(t, svc)

	assert.Len(t, n.byKind("confirmation"), 1)
	assert.Empty(t, n.byKind("new_order"))
}

// --- CancelOrder ---

func TestCancelOrder_RestoresStock(t *testing.T) {
	store := newMemStore(
		newTestProduct("A", sellerAID, "1000", 5),
		newTestProduct("B", sellerBID, "500", 1),
	)
	store.addToCart(buyerID, "A", 2)
	store.addToCart(buyerID, "B", 1)
	svc, n := newTestService(store)

	o := place(t, svc)
	sentBefore := len(n.sent)

	cancelled, err := svc.CancelOrder(context.Background(), buyerID, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	assert.Equal(t, 5, store.product("A").Stock)
	assert.Equal(t, 1, store.product("B").Stock)
	assert.True(t, store.product("B").IsAvailable)
	assert.Len(t, n.sent, sentBefore)
}

func TestCancelOrder_KeepsSellerSwitchOff(t *testing.T) {
	store := newMemStore(newTestProduct("A", sellerAID, "1000", 5))
	store.addToCart(buyerID, "A", 2)
	svc, _ := newTestService(store)

	o := place(t, svc)
	store.setAvailable("A", false)

	_, err := svc.CancelOrder(context.Background(), buyerID, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, store.product("A").Stock)
	assert.False(t, store.product("A").IsAvailable)
}

func TestCancelOrder_NotPending(t *testing.T) {
	store := newMemStore(newTestProduct("A", sellerAID, "10", 5))
	store.addToCart(buyerID, "A", 2)
	svc, _ := newTestService(store)
	ctx := context.Background()

	o := place(t, svc)
	_, err := svc.UpdateStatus(ctx, sellerAID, o.ID, StatusProcessing)
	require.NoError(t, err)

	_, err = svc.CancelOrder(ctx, buyerID, o.ID)
	var e *InvalidTransitionError
	require.ErrorAs(t, err, &e)
	assert.Equal(t, StatusProcessing, e.From)

	got, err := svc.Get(ctx, buyerID, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, got.Status)
	assert.Equal(t, 3, store.product("A").Stock)
}

func TestCancelOrder_OtherBuyer(t *testing.T) {
	store := newMemStore(newTestProduct("A", sellerAID, "10", 5))
	store.addToCart(buyerID, "A", 1)
	svc, _ := newTestService(store)

	o := place(t, svc)

	_, err := svc.CancelOrder(context.Background(), "buyer-2", o.ID)
	require.ErrorIs(t, err, ErrOrderNotFound)
}

// --- UpdateStatus ---

func TestUpdateStatus_ProcessingToCancelled(t *testing.T) {
	store := newMemStore(
		newTestProduct("A", sellerAID, "1000", 5),
		newTestProduct("B", sellerBID, "500", 1),
	)
	store.addToCart(buyerID, "A", 2)
	store.addToCart(buyerID, "B", 1)
	svc, n := newTestService(store)
	ctx := context.Background()

	o := place(t, svc)
	_, err := svc.UpdateStatus(ctx, sellerAID, o.ID, StatusProcessing)
	require.NoError(t, err)

	// Seller B cancels: stock comes back for every item, including seller A's.
	updated, err := svc.UpdateStatus(ctx, sellerBID, o.ID, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, updated.Status)
	assert.Equal(t, 5, store.product("A").Stock)
	assert.Equal(t, 1, store.product("B").Stock)

	status := n.byKind("status")
	require.Len(t, status, 2)
	last := status[1]
	assert.Equal(t, "buyer@example.com", last.to)
	assert.Equal(t, o.Number, last.order.Number)
	assert.Equal(t, "PROCESSING", last.old)
	assert.Equal(t, "CANCELLED", last.new)
}

func TestUpdateStatus_ForwardLeavesStock(t *testing.T) {
	store := newMemStore(newTestProduct("A", sellerAID, "10", 5))
	store.addToCart(buyerID, "A", 2)
	svc, _ := newTestService(store)
	ctx := context.Background()

	o := place(t, svc)
	for _, st := range []Status{StatusProcessing, StatusShipped, StatusDelivered} {
		updated, err := svc.UpdateStatus(ctx, sellerAID, o.ID, st)
		require.NoError(t, err)
		assert.Equal(t, st, updated.Status)
	}
	assert.Equal(t, 3, store.product("A").Stock)
}

func TestUpdateStatus_Rejected(t *testing.T) {
	store := newMemStore(
		newTestProduct("A", sellerAID, "10", 5),
		newTestProduct("B", sellerBID, "10", 5),
	)
	store.addToCart(buyerID, "A", 1)
	svc, n := newTestService(store)
	ctx := context.Background()

	o := place(t, svc)

	_, err := svc.UpdateStatus(ctx, sellerBID, o.ID, StatusProcessing)
	require.ErrorIs(t, err, ErrOrderNotFound)

	_, err = svc.UpdateStatus(ctx, sellerAID, o.ID, StatusShipped)
	var e *InvalidTransitionError
	require.ErrorAs(t, err, &e)
	assert.Equal(t, StatusPending, e.From)
	assert.Equal(t, StatusShipped, e.To)

	_, err = svc.UpdateStatus(ctx, sellerAID, o.ID, Status("LOST"))
	require.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.UpdateStatus(ctx, sellerAID, o.ID, StatusCancelled)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, sellerAID, o.ID, StatusCancelled)
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 5, store.product("A").Stock)

	assert.Len(t, n.byKind("status"), 1)
}

// --- Reads ---

func TestListForSeller_OnlySellerItems(t *testing.T) {
	store := newMemStore(
		newTestProduct("A", sellerAID, "10", 5),
		newTestProduct("B", sellerBID, "10", 5),
	)
	store.addToCart(buyerID, "A", 1)
	store.addToCart(buyerID, "B", 1)
	svc, _ := newTestService(store)

	place(t, svc)

	page, err := svc.ListForSeller(context.Background(), sellerAID, ListQuery{})
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	require.Len(t, page.Orders[0].Items, 1)
	assert.Equal(t, "A", page.Orders[0].Items[0].ProductID)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 10, page.Limit)

	_, err = svc.ListMine(context.Background(), buyerID, ListQuery{Status: "bogus"})
	require.ErrorIs(t, err, ErrInvalidStatus)
}
