package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/report"
	"github.com/xenking/storefront/internal/domain/user"
)

var errIdempotencyInFlight = errors.New("a request with this Idempotency-Key is already in progress")

// statusOf maps a domain error to an HTTP status code.
func statusOf(err error) int {
	var (
		bad          *badRequestError
		unavailable  *product.ProductUnavailableError
		insufficient *product.InsufficientStockError
		transition   *order.InvalidTransitionError
	)
	switch {
	case errors.As(err, &bad),
		errors.Is(err, product.ErrNameRequired),
		errors.Is(err, product.ErrInvalidPrice),
		errors.Is(err, product.ErrInvalidStock),
		errors.Is(err, product.ErrInvalidFilter),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, order.ErrShippingAddressRequired),
		errors.Is(err, report.ErrInvalidPeriod):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, user.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &transition),
		errors.As(err, &insufficient),
		errors.Is(err, product.ErrInUse),
		errors.Is(err, errIdempotencyInFlight):
		return http.StatusConflict
	case errors.Is(err, order.ErrEmptyCart),
		errors.As(err, &unavailable):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error. Internal errors are logged and hidden.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		msg = http.StatusText(code)
	}
	writeError(w, code, msg)
}
