package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/donaldgifford/buybox/internal/cache"
	domain "github.com/donaldgifford/buybox/pkg/types"
)

const defaultPoolSize = 10

// PostgresStore implements Store using pgxpool (connection-pooled PostgreSQL).
// KV expiry is computed and compared on the database clock.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*pgxpool.Config)

// WithMaxConns overrides the connection pool size.
func WithMaxConns(n int32) PostgresOption {
	return func(cfg *pgxpool.Config) {
		if n > 0 {
			cfg.MaxConns = n
		}
	}
}

// NewPostgresStore creates a new PostgresStore with connection pooling.
func NewPostgresStore(ctx context.Context, connString string, opts ...PostgresOption) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	cfg.MaxConns = defaultPoolSize
	for _, opt := range opts {
		opt(cfg)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close gracefully shuts down the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping verifies the database connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies pending SQL schema migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return RunMigrations(ctx, s.pool)
}

// ListActiveOffers returns the in-stock, active offers for a product ordered
// by offer ID.
func (s *PostgresStore) ListActiveOffers(ctx context.Context, productID string) ([]domain.Offer, error) {
	rows, err := s.pool.Query(ctx, queryListActiveOffers, productID)
	if err != nil {
		return nil, fmt.Errorf("listing offers for %s: %w", productID, err)
	}
	defer rows.Close()

	offers := []domain.Offer{}
	for rows.Next() {
		var (
			o     domain.Offer
			price string
		)
		if err := rows.Scan(
			&o.ID, &o.ProductID, &o.VendorID, &price,
			&o.StockQuantity, &o.SLAInDays, &o.HandlingTimeInDays,
		); err != nil {
			return nil, fmt.Errorf("scanning offer: %w", err)
		}
		if o.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parsing price %q of offer %s: %w", price, o.ID, err)
		}
		offers = append(offers, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating offers: %w", err)
	}

	return offers, nil
}

// ProductIDsForVendor returns the products the vendor has active offers for.
func (s *PostgresStore) ProductIDsForVendor(ctx context.Context, vendorID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, queryProductIDsForVendor, vendorID)
	if err != nil {
		return nil, fmt.Errorf("listing products for vendor %s: %w", vendorID, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning products for vendor %s: %w", vendorID, err)
	}
	return ids, nil
}

// Get implements cache.Store against the buybox_kv table.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, queryKVGet, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, cache.ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading key %s: %w", key, err)
	}
	return value, nil
}

// Set implements cache.Store. A zero ttl stores the value without expiry.
func (s *PostgresStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var ttlSeconds *float64
	if ttl > 0 {
		secs := ttl.Seconds()
		ttlSeconds = &secs
	}
	if _, err := s.pool.Exec(ctx, queryKVSet, key, value, ttlSeconds); err != nil {
		return fmt.Errorf("writing key %s: %w", key, err)
	}
	return nil
}

// Delete implements cache.Store. Deleting an absent key is not an error.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, queryKVDelete, key); err != nil {
		return fmt.Errorf("deleting key %s: %w", key, err)
	}
	return nil
}

// PurgeExpired implements cache.Purger.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, queryKVPurgeExpired)
	if err != nil {
		return 0, fmt.Errorf("purging expired keys: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
