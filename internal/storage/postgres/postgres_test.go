//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go/modules/compose"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/notification"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/report"
	"github.com/xenking/storefront/internal/storage/postgres"
)

var pool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	dc, err := tc.NewDockerCompose("testdata/docker-compose.yml")
	if err != nil {
		log.Fatalf("compose init: %v", err)
	}
	defer func() {
		if err := dc.Down(context.Background(), tc.RemoveOrphans(true)); err != nil {
			log.Printf("compose down: %v", err)
		}
	}()

	err = dc.
		WaitForService("postgres", wait.ForLog("database system is ready to accept connections").WithOccurrence(2)).
		Up(ctx, tc.Wait(true))
	if err != nil {
		log.Fatalf("compose up: %v", err)
	}

	container, err := dc.ServiceContainer(ctx, "postgres")
	if err != nil {
		log.Fatalf("postgres container: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://storefront:storefront@%s:%s/storefront?sslmode=disable", host, port.Port())
	pool, err = postgres.NewPool(ctx, dsn)
	if err != nil {
		log.Fatalf("pool: %v", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	return m.Run()
}

type fixture struct {
	seller string
	buyer  string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	f := fixture{seller: uuid.NewString(), buyer: uuid.NewString()}
	for id, role := range map[string]auth.Role{f.seller: auth.RoleSeller, f.buyer: auth.RoleBuyer} {
		_, err := pool.Exec(ctx,
			`INSERT INTO users (id, username, email, role) VALUES ($1, $2, $3, $4)`,
			id, "u-"+id, id+"@example.com", string(role),
		)
		require.NoError(t, err)
	}
	return f
}

func createProduct(t *testing.T, sellerID string, price int64, stock int) *product.Product {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	p := &product.Product{
		ID:          uuid.NewString(),
		SKU:         "SKU-" + uuid.NewString(),
		Name:        "Kopi " + uuid.NewString()[:8],
		Category:    "Beverages",
		Price:       decimal.NewFromInt(price),
		Stock:       stock,
		IsAvailable: stock > 0,
		SellerID:    sellerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, postgres.NewProductRepository(pool).Create(context.Background(), p))
	return p
}

func newOrderService(opts ...order.Option) *order.Service {
	return order.NewService(
		postgres.NewOrderStore(pool),
		postgres.NewUserDirectory(pool),
		notification.Nop{},
		opts...,
	)
}

func fillCart(t *testing.T, buyerID string, items map[string]int) {
	t.Helper()
	ctx := context.Background()
	carts := postgres.NewCartRepository(pool)
	c, err := carts.GetOrCreate(ctx, buyerID)
	require.NoError(t, err)
	for productID, qty := range items {
		_, err := carts.AddItem(ctx, c.ID, productID, qty)
		require.NoError(t, err)
	}
}

func TestProductRepository(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	repo := postgres.NewProductRepository(pool)

	p := createProduct(t, f.seller, 1500, 3)

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	assert.True(t, p.Price.Equal(got.Price))

	p.Name = "Kopi Susu"
	p.IsAvailable = true
	require.NoError(t, repo.Update(ctx, p))

	emptied, err := repo.SetStock(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.False(t, emptied.IsAvailable)
	assert.Equal(t, "Kopi Susu", emptied.Name)

	restocked, err := repo.SetStock(ctx, p.ID, 4)
	require.NoError(t, err)
	assert.True(t, restocked.IsAvailable)

	low, err := repo.LowStock(ctx, f.seller, 5)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, p.ID, low[0].ID)

	page, total, err := repo.List(ctx, product.Filter{SellerID: f.seller, Search: "susu", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, page, 1)

	require.NoError(t, repo.Delete(ctx, p.ID))
	_, err = repo.GetByID(ctx, p.ID)
	require.ErrorIs(t, err, product.ErrNotFound)
	require.ErrorIs(t, repo.Delete(ctx, p.ID), product.ErrNotFound)
}

func TestProductRepository_DeleteOrdered(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := createProduct(t, f.seller, 1000, 5)
	fillCart(t, f.buyer, map[string]int{p.ID: 1})

	_, err := newOrderService().PlaceOrder(ctx, order.PlaceOrderRequest{BuyerID: f.buyer, ShippingAddress: "Jl. Sudirman 1"})
	require.NoError(t, err)

	require.ErrorIs(t, postgres.NewProductRepository(pool).Delete(ctx, p.ID), product.ErrInUse)
}

func TestCartRepository(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := createProduct(t, f.seller, 1000, 10)
	carts := postgres.NewCartRepository(pool)

	c, err := carts.GetOrCreate(ctx, f.buyer)
	require.NoError(t, err)
	assert.Empty(t, c.Items)

	again, err := carts.GetOrCreate(ctx, f.buyer)
	require.NoError(t, err)
	assert.Equal(t, c.ID, again.ID)

	first, err := carts.AddItem(ctx, c.ID, p.ID, 2)
	require.NoError(t, err)
	second, err := carts.AddItem(ctx, c.ID, p.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 5, second.Quantity)
	assert.Equal(t, p.Name, second.Product.Name)

	updated, err := carts.SetQuantity(ctx, first.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Quantity)

	require.NoError(t, carts.RemoveItem(ctx, first.ID))
	require.ErrorIs(t, carts.RemoveItem(ctx, first.ID), cart.ErrItemNotFound)
	_, err = carts.GetItem(ctx, first.ID)
	require.ErrorIs(t, err, cart.ErrItemNotFound)
}

func TestOrderStore_PlaceAndCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	kopi := createProduct(t, f.seller, 1000, 10)
	teh := createProduct(t, f.seller, 500, 5)
	fillCart(t, f.buyer, map[string]int{kopi.ID: 2, teh.ID: 1})

	svc := newOrderService()
	placed, err := svc.PlaceOrder(ctx, order.PlaceOrderRequest{BuyerID: f.buyer, ShippingAddress: "Jl. Sudirman 1"})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(2500).Equal(placed.Total))

	products := postgres.NewProductRepository(pool)
	got, err := products.GetByID(ctx, kopi.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, got.Stock)

	c, err := postgres.NewCartRepository(pool).GetOrCreate(ctx, f.buyer)
	require.NoError(t, err)
	assert.Empty(t, c.Items)

	loaded, err := svc.Get(ctx, f.buyer, placed.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 2)
	assert.Equal(t, order.StatusPending, loaded.Status)

	_, err = svc.Get(ctx, f.seller, placed.ID)
	require.ErrorIs(t, err, order.ErrOrderNotFound)

	cancelled, err := svc.CancelOrder(ctx, f.buyer, placed.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, cancelled.Status)

	got, err = products.GetByID(ctx, kopi.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Stock)

	var target *order.InvalidTransitionError
	_, err = svc.CancelOrder(ctx, f.buyer, placed.ID)
	require.ErrorAs(t, err, &target)
}

func TestOrderStore_CancelRestoresAvailability(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	kept := createProduct(t, f.seller, 1000, 5)
	emptied := createProduct(t, f.seller, 500, 1)
	fillCart(t, f.buyer, map[string]int{kept.ID: 2, emptied.ID: 1})

	svc := newOrderService()
	placed, err := svc.PlaceOrder(ctx, order.PlaceOrderRequest{BuyerID: f.buyer, ShippingAddress: "x"})
	require.NoError(t, err)

	products := postgres.NewProductRepository(pool)
	kept.IsAvailable = false
	require.NoError(t, products.Update(ctx, kept))

	_, err = svc.CancelOrder(ctx, f.buyer, placed.ID)
	require.NoError(t, err)

	got, err := products.GetByID(ctx, kept.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)
	assert.False(t, got.IsAvailable, "switched off by the seller")

	got, err = products.GetByID(ctx, emptied.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stock)
	assert.True(t, got.IsAvailable, "switched off only by selling out")
}

func TestOrderStore_PriceSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := createProduct(t, f.seller, 1000, 10)
	fillCart(t, f.buyer, map[string]int{p.ID: 1})

	svc := newOrderService()
	placed, err := svc.PlaceOrder(ctx, order.PlaceOrderRequest{BuyerID: f.buyer, ShippingAddress: "x"})
	require.NoError(t, err)

	p.Price = decimal.NewFromInt(9999)
	require.NoError(t, postgres.NewProductRepository(pool).Update(ctx, p))

	loaded, err := svc.Get(ctx, f.buyer, placed.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1000).Equal(loaded.Items[0].Price))
	assert.True(t, decimal.NewFromInt(1000).Equal(loaded.Total))
}

func TestOrderStore_ConcurrentLastUnit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	other := newFixture(t)
	p := createProduct(t, f.seller, 1000, 1)
	fillCart(t, f.buyer, map[string]int{p.ID: 1})
	fillCart(t, other.buyer, map[string]int{p.ID: 1})

	svc := newOrderService()
	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i, buyer := range []string{f.buyer, other.buyer} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.PlaceOrder(ctx, order.PlaceOrderRequest{BuyerID: buyer, ShippingAddress: "x"})
		}()
	}
	wg.Wait()

	var (
		succeeded   int
		stockErr    *order.InsufficientStockError
		unavailable *order.ProductUnavailableError
	)
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.True(t, errors.As(err, &stockErr) || errors.As(err, &unavailable), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)

	got, err := postgres.NewProductRepository(pool).GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
	assert.False(t, got.IsAvailable)
}

func TestOrderStore_SellerView(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	second := newFixture(t)
	mine := createProduct(t, f.seller, 1000, 10)
	theirs := createProduct(t, second.seller, 2000, 10)
	fillCart(t, f.buyer, map[string]int{mine.ID: 1, theirs.ID: 2})

	svc := newOrderService()
	placed, err := svc.PlaceOrder(ctx, order.PlaceOrderRequest{BuyerID: f.buyer, ShippingAddress: "x"})
	require.NoError(t, err)

	page, err := svc.ListForSeller(ctx, f.seller, order.ListQuery{})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	require.Len(t, page.Orders[0].Items, 1)
	assert.Equal(t, mine.ID, page.Orders[0].Items[0].ProductID)

	_, err = svc.UpdateStatus(ctx, f.seller, placed.ID, order.StatusProcessing)
	require.NoError(t, err)

	// The other seller cancels; every item goes back to stock.
	cancelled, err := svc.UpdateStatus(ctx, second.seller, placed.ID, order.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, cancelled.Status)

	products := postgres.NewProductRepository(pool)
	for _, id := range []string{mine.ID, theirs.ID} {
		got, err := products.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 10, got.Stock)
	}

	_, err = svc.UpdateStatus(ctx, newFixture(t).seller, placed.ID, order.StatusShipped)
	require.ErrorIs(t, err, order.ErrOrderNotFound)

	mineOnly, err := svc.ListMine(ctx, f.buyer, order.ListQuery{Status: order.StatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, 1, mineOnly.Total)
}

func TestReportRepository(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := createProduct(t, f.seller, 1000, 20)
	svc := newOrderService()

	fillCart(t, f.buyer, map[string]int{p.ID: 2})
	kept, err := svc.PlaceOrder(ctx, order.PlaceOrderRequest{BuyerID: f.buyer, ShippingAddress: "x"})
	require.NoError(t, err)

	fillCart(t, f.buyer, map[string]int{p.ID: 3})
	dropped, err := svc.PlaceOrder(ctx, order.PlaceOrderRequest{BuyerID: f.buyer, ShippingAddress: "x"})
	require.NoError(t, err)
	_, err = svc.CancelOrder(ctx, f.buyer, dropped.ID)
	require.NoError(t, err)

	reports := postgres.NewReportRepository(pool)
	lines, err := reports.SellerLines(ctx, f.seller, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, kept.ID, lines[0].OrderID)
	assert.Equal(t, 2, lines[0].Quantity)

	counts, err := reports.StatusBreakdown(ctx, f.seller)
	require.NoError(t, err)
	assert.ElementsMatch(t, []report.StatusCount{
		{Status: "CANCELLED", Count: 1},
		{Status: "PENDING", Count: 1},
	}, counts)
}

func TestUserDirectory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	dir := postgres.NewUserDirectory(pool)

	c, err := dir.Contact(ctx, f.seller)
	require.NoError(t, err)
	assert.Equal(t, f.seller+"@example.com", c.Email)
	assert.Equal(t, auth.RoleSeller, c.Role)

	sellers, err := dir.Sellers(ctx, "u-"+f.seller)
	require.NoError(t, err)
	require.Len(t, sellers, 1)

	none, err := dir.Sellers(ctx, "u-"+f.buyer)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAPIKeyRepository(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	hash := uuid.NewString()
	_, err := pool.Exec(ctx, `INSERT INTO api_keys (id, key_hash, user_id) VALUES ($1, $2, $3)`,
		uuid.NewString(), hash, f.seller)
	require.NoError(t, err)

	repo := postgres.NewAPIKeyRepository(pool)
	info, err := repo.FindByHash(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, f.seller, info.UserID)
	assert.Equal(t, auth.RoleSeller, info.Role)

	_, err = repo.FindByHash(ctx, "missing")
	require.Error(t, err)
}
