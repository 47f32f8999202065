package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/report"
)

func (h *Handler) listSellerOrders(w http.ResponseWriter, r *http.Request) {
	q, err := listQuery(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	page, err := h.orders.ListForSeller(r.Context(), caller(r).UserID, q)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrderPage(e, page) })
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var raw string
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		if key != "status" {
			return d.Skip()
		}
		var err error
		raw, err = d.Str()
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	status, err := order.ParseStatus(raw)
	if err != nil {
		fail(w, r, err)
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), caller(r).UserID, r.PathValue("id"), status)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	period, err := report.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		fail(w, r, err)
		return
	}
	d, err := h.reports.Dashboard(r.Context(), caller(r).UserID, period)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeDashboard(e, d) })
}

func (h *Handler) weeklySummary(w http.ResponseWriter, r *http.Request) {
	sent, err := h.summaries.RunOnce(r.Context(), r.URL.Query().Get("username"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("sent", func(e *jx.Encoder) { e.Int(sent) })
		})
	})
}
