//go:build integration

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	domain "github.com/donaldgifford/buybox/pkg/types"
)

// Offers belong to the catalog; the service only reads them. These fixtures
// write the offers table directly for integration tests.

const (
	querySeedOffer = `
		INSERT INTO offers (
			id, product_id, vendor_id, price,
			stock_quantity, sla_in_days, handling_time_in_days,
			active, created_at, updated_at
		) VALUES (
			@id, @product_id, @vendor_id, @price::numeric,
			@stock_quantity, @sla_in_days, @handling_time_in_days,
			true, now(), now()
		)
		ON CONFLICT (id) DO UPDATE SET
			product_id = EXCLUDED.product_id,
			vendor_id = EXCLUDED.vendor_id,
			price = EXCLUDED.price,
			stock_quantity = EXCLUDED.stock_quantity,
			sla_in_days = EXCLUDED.sla_in_days,
			handling_time_in_days = EXCLUDED.handling_time_in_days,
			active = true,
			updated_at = now()`

	queryDeactivateOffer = `
		UPDATE offers SET active = false, updated_at = now()
		WHERE id = $1`
)

// SeedOffer inserts or replaces an active offer.
func SeedOffer(ctx context.Context, s *PostgresStore, o *domain.Offer) error {
	args := pgx.NamedArgs{
		"id":                    o.ID,
		"product_id":            o.ProductID,
		"vendor_id":             o.VendorID,
		"price":                 o.Price.String(),
		"stock_quantity":        o.StockQuantity,
		"sla_in_days":           o.SLAInDays,
		"handling_time_in_days": o.HandlingTimeInDays,
	}
	if _, err := s.pool.Exec(ctx, querySeedOffer, args); err != nil {
		return fmt.Errorf("seeding offer %s: %w", o.ID, err)
	}
	return nil
}

// DeactivateOffer hides an offer from ListActiveOffers.
func DeactivateOffer(ctx context.Context, s *PostgresStore, offerID string) error {
	tag, err := s.pool.Exec(ctx, queryDeactivateOffer, offerID)
	if err != nil {
		return fmt.Errorf("deactivating offer %s: %w", offerID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("offer %s: %w", offerID, pgx.ErrNoRows)
	}
	return nil
}

// KVExpiry returns the stored expires_at of key and the database clock.
// expiresAt is nil for keys without expiry.
func KVExpiry(ctx context.Context, s *PostgresStore, key string) (expiresAt *time.Time, dbNow time.Time, err error) {
	err = s.pool.QueryRow(ctx,
		`SELECT expires_at, now() FROM buybox_kv WHERE key = $1`, key,
	).Scan(&expiresAt, &dbNow)
	return expiresAt, dbNow, err
}
