package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/user"
)

const (
	contactSQL = `SELECT id, username, email, role FROM users WHERE id = $1`

	sellersSQL = `SELECT id, username, email, role FROM users
		WHERE role IN ('SELLER', 'ADMIN') AND ($1 = '' OR username = $1)
		ORDER BY username`
)

var _ user.Directory = (*UserDirectory)(nil)

// UserDirectory resolves users to contacts from PostgreSQL.
type UserDirectory struct {
	pool *pgxpool.Pool
}

// NewUserDirectory returns a UserDirectory that uses the given pool.
func NewUserDirectory(pool *pgxpool.Pool) *UserDirectory {
	return &UserDirectory{pool: pool}
}

// Contact returns the contact of a single user.
func (d *UserDirectory) Contact(ctx context.Context, userID string) (*user.Contact, error) {
	rows, err := d.pool.Query(ctx, contactSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("getting user %q: %w", userID, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanContact)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("getting user %q: %w", userID, err)
	}
	return &c, nil
}

// Sellers lists sellers and admins, all of them when username is empty.
func (d *UserDirectory) Sellers(ctx context.Context, username string) ([]user.Contact, error) {
	rows, err := d.pool.Query(ctx, sellersSQL, username)
	if err != nil {
		return nil, fmt.Errorf("listing sellers: %w", err)
	}
	contacts, err := pgx.CollectRows(rows, scanContact)
	if err != nil {
		return nil, fmt.Errorf("listing sellers: %w", err)
	}
	return contacts, nil
}

func scanContact(row pgx.CollectableRow) (user.Contact, error) {
	var (
		c    user.Contact
		role string
	)
	err := row.Scan(&c.UserID, &c.Username, &c.Email, &role)
	c.Role = auth.Role(role)
	return c, err
}
