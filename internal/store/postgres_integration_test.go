//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/donaldgifford/buybox/internal/cache"
	"github.com/donaldgifford/buybox/internal/store"
	domain "github.com/donaldgifford/buybox/pkg/types"
)

func setupPostgres(t *testing.T) *store.PostgresStore {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("buybox_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := store.NewPostgresStore(ctx, connStr, store.WithMaxConns(4))
	require.NoError(t, err)

	t.Cleanup(func() {
		s.Close()
	})

	require.NoError(t, s.Migrate(ctx))

	return s
}

func testOffer(id, vendor, price string, stock int) *domain.Offer {
	return &domain.Offer{
		ID:                 id,
		ProductID:          "SKU-1",
		VendorID:           vendor,
		Price:              decimal.RequireFromString(price),
		StockQuantity:      stock,
		SLAInDays:          2,
		HandlingTimeInDays: 1,
	}
}

func TestPostgresStore_Offers(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	require.NoError(t, store.SeedOffer(ctx, s, testOffer("o-b", "v2", "110.00", 200)))
	require.NoError(t, store.SeedOffer(ctx, s, testOffer("o-a", "v1", "89.99", 10)))
	require.NoError(t, store.SeedOffer(ctx, s, testOffer("o-c", "v3", "95.00", 0)))

	offers, err := s.ListActiveOffers(ctx, "SKU-1")
	require.NoError(t, err)
	require.Len(t, offers, 2, "out-of-stock offers are excluded")
	assert.Equal(t, "o-a", offers[0].ID)
	assert.True(t, decimal.RequireFromString("89.99").Equal(offers[0].Price))
	assert.Equal(t, 3, offers[0].TotalDeliveryDays())

	ids, err := s.ProductIDsForVendor(ctx, "v2")
	require.NoError(t, err)
	assert.Equal(t, []string{"SKU-1"}, ids)

	require.NoError(t, store.DeactivateOffer(ctx, s, "o-a"))
	offers, err = s.ListActiveOffers(ctx, "SKU-1")
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, "o-b", offers[0].ID)

	require.Error(t, store.DeactivateOffer(ctx, s, "missing"))

	offers, err = s.ListActiveOffers(ctx, "SKU-unknown")
	require.NoError(t, err)
	assert.Empty(t, offers)
}

func TestPostgresStore_KV(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "buybox:result:p1")
	require.ErrorIs(t, err, cache.ErrMiss)

	require.NoError(t, s.Set(ctx, "buybox:result:p1", []byte(`{"a":1}`), time.Minute))
	got, err := s.Get(ctx, "buybox:result:p1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(got))

	require.NoError(t, s.Set(ctx, "buybox:result:p1", []byte(`{"a":2}`), 0))
	got, err = s.Get(ctx, "buybox:result:p1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(got))

	require.NoError(t, s.Delete(ctx, "buybox:result:p1"))
	require.NoError(t, s.Delete(ctx, "buybox:result:p1"))
	_, err = s.Get(ctx, "buybox:result:p1")
	require.ErrorIs(t, err, cache.ErrMiss)
}

func TestPostgresStore_KVExpiryAndPurge(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "short", []byte("1"), 50*time.Millisecond))
	require.NoError(t, s.Set(ctx, "forever", []byte("2"), 0))

	time.Sleep(200 * time.Millisecond)

	_, err := s.Get(ctx, "short")
	require.ErrorIs(t, err, cache.ErrMiss, "expired rows are invisible before purge")

	n, err := s.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.Get(ctx, "forever")
	require.NoError(t, err)
}

func TestPostgresStore_KVExpiryUsesDatabaseClock(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "ttl", []byte("1"), time.Hour))
	expiresAt, dbNow, err := store.KVExpiry(ctx, s, "ttl")
	require.NoError(t, err)
	require.NotNil(t, expiresAt)
	assert.WithinDuration(t, dbNow.Add(time.Hour), *expiresAt, 5*time.Second)

	require.NoError(t, s.Set(ctx, "ttl", []byte("2"), 0))
	expiresAt, _, err = store.KVExpiry(ctx, s, "ttl")
	require.NoError(t, err)
	assert.Nil(t, expiresAt, "zero ttl clears the expiry")
}

func TestPostgresStore_MigrateIsIdempotent(t *testing.T) {
	s := setupPostgres(t)
	require.NoError(t, s.Migrate(context.Background()))
}

var _ store.Store = (*store.PostgresStore)(nil)
