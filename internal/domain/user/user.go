package user

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/auth"
)

// ErrNotFound is returned when no user exists for the given identifier.
var ErrNotFound = errors.New("user not found")

// Contact is the reachable identity of a buyer or seller.
type Contact struct {
	UserID   string
	Username string
	Email    string
	Role     auth.Role
}

// Directory resolves user identities to contacts.
type Directory interface {
	Contact(ctx context.Context, userID string) (*Contact, error)
	// Sellers returns every SELLER and ADMIN contact, optionally narrowed to a
	// single username when username is not empty.
	Sellers(ctx context.Context, username string) ([]Contact, error)
}
