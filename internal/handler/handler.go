// Package handler exposes the storefront over HTTP with JSON bodies.
package handler

import (
	"context"
	"net/http"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/report"
)

// ProductService is the catalog surface used by the handlers.
type ProductService interface {
	Get(ctx context.Context, id string) (*product.Product, error)
	List(ctx context.Context, f product.Filter) (*product.Page, error)
	Create(ctx context.Context, sellerID string, in product.CreateInput) (*product.Product, error)
	Update(ctx context.Context, sellerID, id string, in product.UpdateInput) (*product.Product, error)
	Delete(ctx context.Context, sellerID, id string) error
	UpdateStock(ctx context.Context, sellerID, id string, stock int) (*product.Product, error)
}

// CartService is the cart surface used by the handlers.
type CartService interface {
	Get(ctx context.Context, buyerID string) (*cart.Cart, error)
	AddItem(ctx context.Context, buyerID, productID string, qty int) (*cart.Item, error)
	UpdateItem(ctx context.Context, buyerID, itemID string, qty int) (*cart.Item, error)
	RemoveItem(ctx context.Context, buyerID, itemID string) error
	Clear(ctx context.Context, buyerID string) error
}

// OrderService is the order workflow surface used by the handlers.
type OrderService interface {
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.Order, error)
	CancelOrder(ctx context.Context, buyerID, orderID string) (*order.Order, error)
	UpdateStatus(ctx context.Context, sellerID, orderID string, target order.Status) (*order.Order, error)
	Get(ctx context.Context, buyerID, orderID string) (*order.Order, error)
	ListMine(ctx context.Context, buyerID string, q order.ListQuery) (*order.Page, error)
	ListForSeller(ctx context.Context, sellerID string, q order.ListQuery) (*order.Page, error)
}

// ReportService builds seller dashboards.
type ReportService interface {
	Dashboard(ctx context.Context, sellerID string, period report.Period) (*report.Dashboard, error)
}

// SummaryRunner sends weekly summaries on demand.
type SummaryRunner interface {
	RunOnce(ctx context.Context, username string) (int, error)
}

// IdempotencyStore remembers which order an Idempotency-Key produced.
type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Remember(ctx context.Context, scope, key, orderID string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
	Release(ctx context.Context, scope, key string) error
}

// Config holds the handler dependencies. Idempotency is optional.
type Config struct {
	Products      ProductService
	Carts         CartService
	Orders        OrderService
	Reports       ReportService
	Summaries     SummaryRunner
	Idempotency   IdempotencyStore
	Authenticator *Authenticator
}

// Handler serves the /api routes.
type Handler struct {
	products  ProductService
	carts     CartService
	orders    OrderService
	reports   ReportService
	summaries SummaryRunner
	idem      IdempotencyStore
	auth      *Authenticator
}

// New creates a Handler.
func New(cfg Config) *Handler {
	return &Handler{
		products:  cfg.Products,
		carts:     cfg.Carts,
		orders:    cfg.Orders,
		reports:   cfg.Reports,
		summaries: cfg.Summaries,
		idem:      cfg.Idempotency,
		auth:      cfg.Authenticator,
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	var (
		anyone = h.auth.Require()
		seller = h.auth.Require(auth.RoleSeller, auth.RoleAdmin)
		admin  = h.auth.Require(auth.RoleAdmin)
	)

	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)
	mux.Handle("POST /api/products", seller(h.createProduct))
	mux.Handle("PUT /api/products/{id}", seller(h.updateProduct))
	mux.Handle("DELETE /api/products/{id}", seller(h.deleteProduct))
	mux.Handle("PATCH /api/products/{id}/stock", seller(h.updateStock))

	mux.Handle("GET /api/cart", anyone(h.getCart))
	mux.Handle("DELETE /api/cart", anyone(h.clearCart))
	mux.Handle("POST /api/cart/items", anyone(h.addCartItem))
	mux.Handle("PATCH /api/cart/items/{id}", anyone(h.updateCartItem))
	mux.Handle("DELETE /api/cart/items/{id}", anyone(h.removeCartItem))

	mux.Handle("POST /api/orders", anyone(h.placeOrder))
	mux.Handle("GET /api/orders", anyone(h.listMyOrders))
	mux.Handle("GET /api/orders/{id}", anyone(h.getOrder))
	mux.Handle("POST /api/orders/{id}/cancel", anyone(h.cancelOrder))

	mux.Handle("GET /api/seller/orders", seller(h.listSellerOrders))
	mux.Handle("PATCH /api/seller/orders/{id}/status", seller(h.updateOrderStatus))
	mux.Handle("GET /api/seller/dashboard", seller(h.dashboard))

	mux.Handle("POST /api/email/weekly-summary", admin(h.weeklySummary))
}

func caller(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFrom(r.Context())
	return p
}
