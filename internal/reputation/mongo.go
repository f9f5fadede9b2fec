package reputation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domain "github.com/donaldgifford/buybox/pkg/types"
)

const (
	// DefaultCollection is the collection vendor metrics are read from.
	DefaultCollection = "vendor_metrics"

	defaultMongoTimeout = 5 * time.Second
)

// MongoProvider reads vendor metrics from a MongoDB collection keyed by
// vendor_id.
type MongoProvider struct {
	coll    *mongo.Collection
	timeout time.Duration
}

// MongoOption configures a MongoProvider.
type MongoOption func(*MongoProvider)

// WithMongoTimeout sets the per-call timeout.
func WithMongoTimeout(d time.Duration) MongoOption {
	return func(p *MongoProvider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewMongoProvider creates a provider over dbName.collection.
func NewMongoProvider(client *mongo.Client, dbName, collection string, opts ...MongoOption) *MongoProvider {
	if collection == "" {
		collection = DefaultCollection
	}
	p := &MongoProvider{
		coll:    client.Database(dbName).Collection(collection),
		timeout: defaultMongoTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// EnsureIndexes creates the unique vendor_id index.
func (p *MongoProvider) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err := p.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "vendor_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("creating vendor_id index: %w", err)
	}
	return nil
}

// GetMetrics implements MetricsProvider.
func (p *MongoProvider) GetMetrics(ctx context.Context, vendorID string) (*domain.VendorMetrics, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var m domain.VendorMetrics
	err := p.coll.FindOne(ctx, bson.M{"vendor_id": vendorID}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", ErrVendorNotFound, vendorID)
	}
	if err != nil {
		return nil, fmt.Errorf("finding metrics for vendor %s: %w", vendorID, err)
	}
	if err := validate(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// UpsertMetrics writes a vendor's metrics, replacing any existing document.
func (p *MongoProvider) UpsertMetrics(ctx context.Context, m *domain.VendorMetrics) error {
	if err := validate(m); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err := p.coll.ReplaceOne(ctx,
		bson.M{"vendor_id": m.VendorID},
		m,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upserting metrics for vendor %s: %w", m.VendorID, err)
	}
	return nil
}
