package handler

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/report"
)

const maxBodySize = 1 << 20

// badRequestError marks malformed input.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &badRequestError{msg: errors.Errorf(format, args...).Error()}
}

func writeJSON(w http.ResponseWriter, code int, fn func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	fn(e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(code) })
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
		})
	})
}

// decodeObject reads a JSON object body and calls fn for every field.
func decodeObject(r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return badRequest("request body is required")
	}
	if err := jx.DecodeBytes(data).Obj(fn); err != nil {
		var bad *badRequestError
		if errors.As(err, &bad) {
			return bad
		}
		return badRequest("invalid request body: %s", err)
	}
	return nil
}

// decodeMoney accepts a JSON number or a numeric string.
func decodeMoney(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = n.String()
	default:
		return decimal.Decimal{}, badRequest("expected a number")
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, badRequest("invalid amount %q", raw)
	}
	return v, nil
}

func encodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(2)))
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeProduct(e *jx.Encoder, p *product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("sku", func(e *jx.Encoder) { e.Str(p.SKU) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
		e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
		e.Field("price", func(e *jx.Encoder) { encodeMoney(e, p.Price) })
		e.Field("stock", func(e *jx.Encoder) { e.Int(p.Stock) })
		e.Field("imageUrl", func(e *jx.Encoder) { e.Str(p.ImageURL) })
		e.Field("isAvailable", func(e *jx.Encoder) { e.Bool(p.IsAvailable) })
		e.Field("sellerId", func(e *jx.Encoder) { e.Str(p.SellerID) })
		e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, p.CreatedAt) })
		e.Field("updatedAt", func(e *jx.Encoder) { encodeTime(e, p.UpdatedAt) })
	})
}

func encodeProductPage(e *jx.Encoder, page *product.Page) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("data", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range page.Products {
					encodeProduct(e, &page.Products[i])
				}
			})
		})
		e.Field("total", func(e *jx.Encoder) { e.Int(page.Total) })
		e.Field("page", func(e *jx.Encoder) { e.Int(page.Page) })
		e.Field("limit", func(e *jx.Encoder) { e.Int(page.Limit) })
		e.Field("totalPages", func(e *jx.Encoder) { e.Int(page.TotalPages()) })
	})
}

func encodeCartItem(e *jx.Encoder, item *cart.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(item.ID) })
		e.Field("productId", func(e *jx.Encoder) { e.Str(item.ProductID) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(item.Quantity) })
		e.Field("subtotal", func(e *jx.Encoder) { encodeMoney(e, item.Subtotal()) })
		e.Field("product", func(e *jx.Encoder) { encodeProduct(e, &item.Product) })
	})
}

func encodeCart(e *jx.Encoder, c *cart.Cart) {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(c.ID) })
		e.Field("buyerId", func(e *jx.Encoder) { e.Str(c.BuyerID) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range c.Items {
					encodeCartItem(e, &c.Items[i])
				}
			})
		})
		e.Field("total", func(e *jx.Encoder) { encodeMoney(e, c.Total()) })
		e.Field("itemCount", func(e *jx.Encoder) { e.Int(count) })
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("orderNumber", func(e *jx.Encoder) { e.Str(o.Number) })
		e.Field("buyerId", func(e *jx.Encoder) { e.Str(o.BuyerID) })
		e.Field("shippingAddress", func(e *jx.Encoder) { e.Str(o.ShippingAddress) })
		e.Field("totalAmount", func(e *jx.Encoder) { encodeMoney(e, o.Total) })
		e.Field("status", func(e *jx.Encoder) { e.Str(o.Status.String()) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, item := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("id", func(e *jx.Encoder) { e.Str(item.ID) })
						e.Field("productId", func(e *jx.Encoder) { e.Str(item.ProductID) })
						e.Field("productName", func(e *jx.Encoder) { e.Str(item.ProductName) })
						e.Field("sellerId", func(e *jx.Encoder) { e.Str(item.SellerID) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(item.Quantity) })
						e.Field("price", func(e *jx.Encoder) { encodeMoney(e, item.Price) })
						e.Field("subtotal", func(e *jx.Encoder) { encodeMoney(e, item.Subtotal()) })
					})
				}
			})
		})
		e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, o.CreatedAt) })
		e.Field("updatedAt", func(e *jx.Encoder) { encodeTime(e, o.UpdatedAt) })
	})
}

func encodeOrderPage(e *jx.Encoder, page *order.Page) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("orders", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range page.Orders {
					encodeOrder(e, &page.Orders[i])
				}
			})
		})
		e.Field("pagination", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("page", func(e *jx.Encoder) { e.Int(page.Page) })
				e.Field("limit", func(e *jx.Encoder) { e.Int(page.Limit) })
				e.Field("total", func(e *jx.Encoder) { e.Int(page.Total) })
				e.Field("totalPages", func(e *jx.Encoder) { e.Int(page.TotalPages()) })
			})
		})
	})
}

func encodeDashboard(e *jx.Encoder, d *report.Dashboard) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("period", func(e *jx.Encoder) { e.Str(string(d.Period)) })
		e.Field("revenue", func(e *jx.Encoder) { encodeMoney(e, d.Revenue) })
		e.Field("orderCount", func(e *jx.Encoder) { e.Int(d.OrderCount) })
		e.Field("topProducts", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, s := range d.TopProducts {
					e.Obj(func(e *jx.Encoder) {
						e.Field("productId", func(e *jx.Encoder) { e.Str(s.ProductID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(s.Name) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(s.Quantity) })
						e.Field("revenue", func(e *jx.Encoder) { encodeMoney(e, s.Revenue) })
					})
				}
			})
		})
		e.Field("lowStock", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range d.LowStock {
					encodeProduct(e, &d.LowStock[i])
				}
			})
		})
		e.Field("statusBreakdown", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, s := range d.StatusBreakdown {
					e.Obj(func(e *jx.Encoder) {
						e.Field("status", func(e *jx.Encoder) { e.Str(s.Status) })
						e.Field("count", func(e *jx.Encoder) { e.Int(s.Count) })
					})
				}
			})
		})
		e.Field("salesTrend", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, s := range d.Trend {
					e.Obj(func(e *jx.Encoder) {
						e.Field("date", func(e *jx.Encoder) { e.Str(s.Date) })
						e.Field("revenue", func(e *jx.Encoder) { encodeMoney(e, s.Revenue) })
						e.Field("orders", func(e *jx.Encoder) { e.Int(s.Orders) })
					})
				}
			})
		})
	})
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("%s must be an integer", name)
	}
	return v, nil
}

// queryTime parses an optional RFC 3339 timestamp or YYYY-MM-DD date. A bare
// date used as an upper bound covers the whole day.
func queryTime(r *http.Request, name string, upper bool) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, badRequest("%s must be a date", name)
	}
	if upper {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return t, nil
}
