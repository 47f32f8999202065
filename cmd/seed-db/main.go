package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/storage/postgres"
)

type seedFile struct {
	Users    []userJSON    `json:"users"`
	Products []productJSON `json:"products"`
}

type userJSON struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

type productJSON struct {
	ID          string          `json:"id"`
	SKU         string          `json:"sku"`
	Seller      string          `json:"seller"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	IsAvailable bool            `json:"isAvailable"`
	ImageURL    string          `json:"imageUrl"`
}

const (
	upsertUserSQL = `INSERT INTO users (id, username, email, role) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username, email = EXCLUDED.email, role = EXCLUDED.role`
	upsertProductSQL = `INSERT INTO products
		(id, sku, name, description, category, price, stock, is_available, seller_id, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, description = EXCLUDED.description, category = EXCLUDED.category,
			price = EXCLUDED.price, stock = EXCLUDED.stock, is_available = EXCLUDED.is_available,
			image_url = EXCLUDED.image_url, updated_at = now()`
	upsertAPIKeySQL = `INSERT INTO api_keys (id, key_hash, user_id) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET key_hash = EXCLUDED.key_hash`
)

func main() {
	var (
		databaseURL  string
		seedPath     string
		apiKeys      string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/seed.json", "path to the seed JSON file, optionally gzipped (.gz)")
	flag.StringVar(&apiKeys, "api-keys", "", "comma separated username=key pairs (or STOREFRONT_SEED_API_KEYS env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or STOREFRONT_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKeys == "" {
		apiKeys = os.Getenv("STOREFRONT_SEED_API_KEYS")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("STOREFRONT_API_KEY_PEPPER")
	}
	keys, err := parseKeys(apiKeys)
	if err != nil {
		slog.Error("invalid API keys", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if len(keys) > 0 && apiKeyPepper == "" {
		slog.Error("API key pepper is required when seeding API keys")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath, keys, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

// parseKeys parses "alice=key1,bob=key2".
func parseKeys(s string) (map[string]string, error) {
	keys := make(map[string]string)
	for pair := range strings.SplitSeq(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		username, key, ok := strings.Cut(pair, "=")
		if !ok || username == "" || key == "" {
			return nil, errors.Errorf("malformed pair %q", pair)
		}
		keys[username] = key
	}
	return keys, nil
}

func run(ctx context.Context, databaseURL, seedPath string, keys map[string]string, pepper string) error {
	seed, err := readSeed(seedPath)
	if err != nil {
		return err
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		userIDs, err := seedUsers(ctx, tx, seed.Users)
		if err != nil {
			return errors.Wrap(err, "seed users")
		}
		if err := seedProducts(ctx, tx, seed.Products, userIDs); err != nil {
			return errors.Wrap(err, "seed products")
		}
		if err := seedAPIKeys(ctx, tx, keys, userIDs, pepper); err != nil {
			return errors.Wrap(err, "seed api keys")
		}
		return nil
	})
}

func readSeed(path string) (*seedFile, error) {
	slog.Info("reading seed file", slog.String("path", path))

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open seed file")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip stream")
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}

	var seed seedFile
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return nil, errors.Wrap(err, "parse seed JSON")
	}
	return &seed, nil
}

func seedUsers(ctx context.Context, tx pgx.Tx, users []userJSON) (map[string]string, error) {
	ids := make(map[string]string, len(users))
	for _, u := range users {
		switch auth.Role(u.Role) {
		case auth.RoleBuyer, auth.RoleSeller, auth.RoleAdmin:
		default:
			return nil, errors.Errorf("user %s: unknown role %q", u.Username, u.Role)
		}
		if _, err := tx.Exec(ctx, upsertUserSQL, u.ID, u.Username, u.Email, u.Role); err != nil {
			return nil, errors.Wrapf(err, "upsert user %s", u.Username)
		}
		ids[u.Username] = u.ID

		slog.Info("upserted user", slog.String("username", u.Username), slog.String("role", u.Role))
	}
	return ids, nil
}

func seedProducts(ctx context.Context, tx pgx.Tx, products []productJSON, userIDs map[string]string) error {
	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		sellerID, ok := userIDs[p.Seller]
		if !ok {
			return errors.Errorf("product %s: unknown seller %q", p.ID, p.Seller)
		}
		if _, err := tx.Exec(ctx, upsertProductSQL,
			p.ID, p.SKU, p.Name, p.Description, p.Category,
			p.Price, p.Stock, p.IsAvailable && p.Stock > 0, sellerID, p.ImageURL,
		); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}
	return nil
}

func seedAPIKeys(ctx context.Context, tx pgx.Tx, keys map[string]string, userIDs map[string]string, pepper string) error {
	for username, key := range keys {
		userID, ok := userIDs[username]
		if !ok {
			return errors.Errorf("api key for unknown user %q", username)
		}
		id := "key_" + username
		if _, err := tx.Exec(ctx, upsertAPIKeySQL, id, auth.HashKey([]byte(pepper), key), userID); err != nil {
			return errors.Wrapf(err, "upsert api key for %s", username)
		}

		slog.Info("upserted API key", slog.String("id", id), slog.String("username", username))
	}
	return nil
}
