package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/order"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"
	maxIdempotencyKeyLen = 255
)

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	buyerID := caller(r).UserID

	var address string
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		if key != "shippingAddress" {
			return d.Skip()
		}
		var err error
		address, err = d.Str()
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	key := r.Header.Get(idempotencyKeyHeader)
	if len(key) > maxIdempotencyKeyLen {
		fail(w, r, badRequest("%s is too long", idempotencyKeyHeader))
		return
	}
	if key == "" || h.idem == nil {
		h.writePlaced(w, r, order.PlaceOrderRequest{BuyerID: buyerID, ShippingAddress: address})
		return
	}

	lg := zctx.From(ctx).With(zap.String("idempotency_key", key))
	if h.replay(w, r, buyerID, key, lg) {
		return
	}

	locked, err := h.idem.TryLock(ctx, buyerID, key)
	if err != nil {
		lg.Warn("Idempotency lock failed", zap.Error(err))
		h.writePlaced(w, r, order.PlaceOrderRequest{BuyerID: buyerID, ShippingAddress: address})
		return
	}
	if !locked {
		// The holder may have finished between the lookup and the lock.
		if h.replay(w, r, buyerID, key, lg) {
			return
		}
		fail(w, r, errIdempotencyInFlight)
		return
	}

	o := h.writePlaced(w, r, order.PlaceOrderRequest{BuyerID: buyerID, ShippingAddress: address})

	// The response is already written; bookkeeping outlives the request.
	bg := context.WithoutCancel(ctx)
	if o == nil {
		if err := h.idem.Release(bg, buyerID, key); err != nil {
			lg.Warn("Idempotency release failed", zap.Error(err))
		}
		return
	}
	if err := h.idem.Remember(bg, buyerID, key, o.ID); err != nil {
		lg.Warn("Idempotency remember failed", zap.Error(err))
	}
}

// replay answers with the order remembered for key, if any. It reports
// whether a response was written.
func (h *Handler) replay(w http.ResponseWriter, r *http.Request, buyerID, key string, lg *zap.Logger) bool {
	ctx := r.Context()
	orderID, ok, err := h.idem.Recall(ctx, buyerID, key)
	if err != nil {
		lg.Warn("Idempotency lookup failed", zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	o, err := h.orders.Get(ctx, buyerID, orderID)
	if err != nil {
		fail(w, r, err)
		return true
	}
	w.Header().Set(replayedHeader, "true")
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
	return true
}

// writePlaced places the order and writes the response. It returns the order
// on success.
func (h *Handler) writePlaced(w http.ResponseWriter, r *http.Request, req order.PlaceOrderRequest) *order.Order {
	o, err := h.orders.PlaceOrder(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return nil
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
	return o
}

func listQuery(r *http.Request) (order.ListQuery, error) {
	var (
		q   order.ListQuery
		err error
	)
	if raw := r.URL.Query().Get("status"); raw != "" {
		if q.Status, err = order.ParseStatus(raw); err != nil {
			return q, errors.Wrapf(err, "status %q", raw)
		}
	}
	if q.From, err = queryTime(r, "startDate", false); err != nil {
		return q, err
	}
	if q.To, err = queryTime(r, "endDate", true); err != nil {
		return q, err
	}
	if q.Page, err = queryInt(r, "page"); err != nil {
		return q, err
	}
	if q.Limit, err = queryInt(r, "limit"); err != nil {
		return q, err
	}
	return q, nil
}

func (h *Handler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	q, err := listQuery(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	page, err := h.orders.ListMine(r.Context(), caller(r).UserID, q)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrderPage(e, page) })
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), caller(r).UserID, r.PathValue("id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.CancelOrder(r.Context(), caller(r).UserID, r.PathValue("id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}
