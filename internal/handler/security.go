package handler

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"slices"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
)

var (
	errUnauthenticated = errors.New("missing or invalid API key")
	errForbidden       = errors.New("insufficient role")
)

// Authenticator resolves API keys to principals. Keys are sent in the
// api_key header or as a bearer token.
type Authenticator struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewAuthenticator creates an Authenticator with the given API key
// repository and HMAC pepper.
func NewAuthenticator(apikeys auth.Repository, pepper []byte) *Authenticator {
	return &Authenticator{apikeys: apikeys, pepper: pepper}
}

// Authenticate looks up the HMAC-SHA256 of key and compares the stored hash
// in constant time.
func (a *Authenticator) Authenticate(ctx context.Context, key string) (auth.Principal, error) {
	if key == "" {
		return auth.Principal{}, errUnauthenticated
	}
	hexHash := auth.HashKey(a.pepper, key)

	info, err := a.apikeys.FindByHash(ctx, hexHash)
	if err != nil {
		zctx.From(ctx).Debug("API key lookup failed", zap.Error(err))
		return auth.Principal{}, errUnauthenticated
	}

	want, err := hex.DecodeString(info.KeyHash)
	if err != nil {
		return auth.Principal{}, errUnauthenticated
	}
	got, _ := hex.DecodeString(hexHash)
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return auth.Principal{}, errUnauthenticated
	}

	return auth.Principal{UserID: info.UserID, Role: info.Role}, nil
}

// Require returns a wrapper that authenticates the request and, when roles
// are given, rejects callers holding none of them.
func (a *Authenticator) Require(roles ...auth.Role) func(http.HandlerFunc) http.Handler {
	return func(next http.HandlerFunc) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := a.Authenticate(r.Context(), requestKey(r))
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			if len(roles) > 0 && !slices.Contains(roles, p.Role) {
				writeError(w, http.StatusForbidden, errForbidden.Error())
				return
			}

			ctx := auth.WithPrincipal(r.Context(), p)
			ctx = zctx.With(ctx, zap.String("user_id", p.UserID))
			next(w, r.WithContext(ctx))
		})
	}
}

func requestKey(r *http.Request) string {
	if key := r.Header.Get("api_key"); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
