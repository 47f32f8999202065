package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	f, err := productFilter(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	page, err := h.products.List(r.Context(), f)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProductPage(e, page) })
}

func productFilter(r *http.Request) (product.Filter, error) {
	q := r.URL.Query()
	f := product.Filter{
		Search:   strings.TrimSpace(q.Get("search")),
		Category: q.Get("category"),
		SellerID: q.Get("sellerId"),
		SortBy:   product.SortBy(q.Get("sortBy")),
	}
	for name, dst := range map[string]**decimal.Decimal{
		"minPrice": &f.MinPrice,
		"maxPrice": &f.MaxPrice,
	} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return f, badRequest("%s must be a number", name)
		}
		*dst = &v
	}
	if raw := q.Get("isAvailable"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return f, badRequest("isAvailable must be a boolean")
		}
		f.IsAvailable = &v
	}

	var err error
	if f.Page, err = queryInt(r, "page"); err != nil {
		return f, err
	}
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		return f, err
	}
	return f, nil
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProduct(e, p) })
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var in product.CreateInput
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			in.Name, err = d.Str()
		case "description":
			in.Description, err = d.Str()
		case "category":
			in.Category, err = d.Str()
		case "price":
			in.Price, err = decodeMoney(d)
		case "stock":
			in.Stock, err = d.Int()
		case "imageUrl":
			in.ImageURL, err = d.Str()
		case "isAvailable":
			var v bool
			v, err = d.Bool()
			in.IsAvailable = &v
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	p, err := h.products.Create(r.Context(), caller(r).UserID, in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeProduct(e, p) })
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var in product.UpdateInput
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "name":
			return decodeOptStr(d, &in.Name)
		case "description":
			return decodeOptStr(d, &in.Description)
		case "category":
			return decodeOptStr(d, &in.Category)
		case "imageUrl":
			return decodeOptStr(d, &in.ImageURL)
		case "price":
			v, err := decodeMoney(d)
			if err != nil {
				return err
			}
			in.Price = &v
		case "isAvailable":
			v, err := d.Bool()
			if err != nil {
				return err
			}
			in.IsAvailable = &v
		case "stock":
			return badRequest("stock is changed with PATCH /api/products/{id}/stock")
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	p, err := h.products.Update(r.Context(), caller(r).UserID, r.PathValue("id"), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProduct(e, p) })
}

func decodeOptStr(d *jx.Decoder, dst **string) error {
	s, err := d.Str()
	if err != nil {
		return err
	}
	*dst = &s
	return nil
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), caller(r).UserID, r.PathValue("id")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) updateStock(w http.ResponseWriter, r *http.Request) {
	stock := -1
	seen := false
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		if key != "stock" {
			return d.Skip()
		}
		var err error
		stock, err = d.Int()
		seen = true
		return err
	})
	if err == nil && !seen {
		err = badRequest("stock is required")
	}
	if err != nil {
		fail(w, r, err)
		return
	}

	p, err := h.products.UpdateStock(r.Context(), caller(r).UserID, r.PathValue("id"), stock)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProduct(e, p) })
}
