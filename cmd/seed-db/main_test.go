package main

import (
	"os"
	"path/filepath"
	"testing"

	pgzip "github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeys(t *testing.T) {
	keys, err := parseKeys(" admin=a1, seller=s1 ,,buyer=b=1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"admin": "a1", "seller": "s1", "buyer": "b=1"}, keys)

	keys, err = parseKeys("")
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = parseKeys("admin")
	assert.Error(t, err)
	_, err = parseKeys("=key")
	assert.Error(t, err)
}

func TestReadSeed(t *testing.T) {
	seed, err := readSeed(filepath.Join("..", "..", "db", "seed", "seed.json"))
	require.NoError(t, err)
	require.NotEmpty(t, seed.Users)
	require.NotEmpty(t, seed.Products)

	users := make(map[string]bool)
	for _, u := range seed.Users {
		users[u.Username] = true
	}
	for _, p := range seed.Products {
		assert.True(t, users[p.Seller], "product %s references unknown seller %s", p.ID, p.Seller)
		assert.True(t, p.Price.IsPositive(), p.ID)
	}
}

func TestReadSeed_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := pgzip.NewWriter(f)
	_, err = zw.Write([]byte(`{"users":[{"id":"u1","username":"ann","email":"ann@x","role":"SELLER"}],
		"products":[{"id":"p1","sku":"S-1","seller":"ann","name":"Mug","price":"12.50","stock":2}]}`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	seed, err := readSeed(path)
	require.NoError(t, err)
	require.Len(t, seed.Products, 1)
	assert.Equal(t, "12.5", seed.Products[0].Price.String())
	assert.Equal(t, "ann", seed.Users[0].Username)
}
