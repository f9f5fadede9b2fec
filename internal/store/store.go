// Package store defines the datastore abstractions the Buy Box engine reads
// from and the PostgreSQL implementation behind them. Business logic depends
// on the interfaces, never on PostgresStore, so it can be tested with mocks.
package store

import (
	"context"

	"github.com/donaldgifford/buybox/internal/cache"
	domain "github.com/donaldgifford/buybox/pkg/types"
)

// OfferSource returns the active offers competing for a product. Offers that
// are out of stock or deactivated are never returned. An empty slice is a
// valid answer.
type OfferSource interface {
	ListActiveOffers(ctx context.Context, productID string) ([]domain.Offer, error)
}

// Store is everything PostgresStore provides to the service.
type Store interface {
	OfferSource
	cache.Store
	cache.Purger

	ProductIDsForVendor(ctx context.Context, vendorID string) ([]string, error)

	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close()
}
