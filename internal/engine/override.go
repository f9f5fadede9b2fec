package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/donaldgifford/buybox/internal/cache"
	"github.com/donaldgifford/buybox/internal/metrics"
	"github.com/donaldgifford/buybox/internal/notify"
	domain "github.com/donaldgifford/buybox/pkg/types"
)

// ErrInvalidOverride is returned when an override is missing required fields
// or is already expired.
var ErrInvalidOverride = errors.New("invalid override")

// OverrideRegistry persists admin overrides in the shared KV store under
// <prefix>:override:<productID>, so every instance sees the same overrides.
// Setting or clearing an override invalidates the product's cached result.
type OverrideRegistry struct {
	store    cache.Store
	prefix   string
	results  *ResultCache
	notifier notify.Notifier
	log      *slog.Logger
	nowFunc  func() time.Time
}

// OverrideOption configures an OverrideRegistry.
type OverrideOption func(*OverrideRegistry)

// WithOverrideLogger sets a custom logger.
func WithOverrideLogger(l *slog.Logger) OverrideOption {
	return func(r *OverrideRegistry) {
		r.log = l
	}
}

// WithNotifier sends an audit event on every set and clear.
func WithNotifier(n notify.Notifier) OverrideOption {
	return func(r *OverrideRegistry) {
		r.notifier = n
	}
}

// WithOverrideNowFunc overrides the time function for testing.
func WithOverrideNowFunc(f func() time.Time) OverrideOption {
	return func(r *OverrideRegistry) {
		r.nowFunc = f
	}
}

// NewOverrideRegistry creates a registry over s. results may be nil, in
// which case nothing is invalidated.
func NewOverrideRegistry(
	s cache.Store,
	prefix string,
	results *ResultCache,
	opts ...OverrideOption,
) *OverrideRegistry {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	r := &OverrideRegistry{
		store:   s,
		prefix:  prefix,
		results: results,
		log:     slog.Default(),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.notifier == nil {
		r.notifier = notify.NewNoOpNotifier(r.log)
	}
	return r
}

func (r *OverrideRegistry) key(productID string) string {
	return cache.Key(r.prefix, "override", productID)
}

// Set stores o, replacing any existing override for the product. SetAt
// defaults to now. The store entry expires with the override.
func (r *OverrideRegistry) Set(ctx context.Context, o *domain.Override) error {
	now := r.nowFunc()
	if err := validateOverride(o, now); err != nil {
		return err
	}

	stored := *o
	if stored.SetAt.IsZero() {
		stored.SetAt = now
	}

	var ttl time.Duration
	if stored.ExpiresAt != nil {
		ttl = stored.ExpiresAt.Sub(now)
	}

	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("encoding override for %s: %w", o.ProductID, err)
	}
	if err := r.store.Set(ctx, r.key(o.ProductID), data, ttl); err != nil {
		metrics.OverrideStoreErrorsTotal.WithLabelValues("set").Inc()
		return fmt.Errorf("storing override for %s: %w", o.ProductID, err)
	}
	*o = stored

	metrics.OverrideOperationsTotal.WithLabelValues("set").Inc()
	r.log.Info("override set",
		"product_id", o.ProductID,
		"offer_id", o.OfferID,
		"set_by", o.SetBy,
	)

	r.invalidate(ctx, o.ProductID)
	r.notify(ctx, &notify.OverrideEvent{
		Action:     notify.OverrideSet,
		ProductID:  o.ProductID,
		Override:   &stored,
		OccurredAt: now,
	})
	return nil
}

// Get returns the active override for productID, or nil when there is none.
// An expired override found in the store is deleted.
func (r *OverrideRegistry) Get(ctx context.Context, productID string) (*domain.Override, error) {
	data, err := r.store.Get(ctx, r.key(productID))
	if errors.Is(err, cache.ErrMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading override for %s: %w", productID, err)
	}

	var o domain.Override
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("decoding override for %s: %w", productID, err)
	}

	if o.Expired(r.nowFunc()) {
		if err := r.store.Delete(ctx, r.key(productID)); err != nil {
			r.log.Warn("deleting expired override failed", "product_id", productID, "error", err)
		}
		return nil, nil
	}
	return &o, nil
}

// Clear removes any override for productID. Clearing an absent override is
// not an error.
func (r *OverrideRegistry) Clear(ctx context.Context, productID string) error {
	if productID == "" {
		return fmt.Errorf("%w: product_id is required", ErrInvalidOverride)
	}
	if err := r.store.Delete(ctx, r.key(productID)); err != nil {
		metrics.OverrideStoreErrorsTotal.WithLabelValues("clear").Inc()
		return fmt.Errorf("clearing override for %s: %w", productID, err)
	}

	metrics.OverrideOperationsTotal.WithLabelValues("clear").Inc()
	r.log.Info("override cleared", "product_id", productID)

	r.invalidate(ctx, productID)
	r.notify(ctx, &notify.OverrideEvent{
		Action:     notify.OverrideCleared,
		ProductID:  productID,
		OccurredAt: r.nowFunc(),
	})
	return nil
}

// invalidate drops the cached result. A failure is logged, not returned: the
// override check runs before the cache check, so precedence already holds.
func (r *OverrideRegistry) invalidate(ctx context.Context, productID string) {
	if r.results == nil {
		return
	}
	if err := r.results.Invalidate(ctx, productID); err != nil {
		r.log.Warn("invalidating cached result after override change failed",
			"product_id", productID,
			"error", err,
		)
	}
}

func (r *OverrideRegistry) notify(ctx context.Context, ev *notify.OverrideEvent) {
	if err := r.notifier.SendOverrideEvent(ctx, ev); err != nil {
		metrics.NotificationFailuresTotal.Inc()
		r.log.Warn("override notification failed",
			"product_id", ev.ProductID,
			"action", string(ev.Action),
			"error", err,
		)
	}
}

func validateOverride(o *domain.Override, now time.Time) error {
	if o == nil {
		return fmt.Errorf("%w: override is required", ErrInvalidOverride)
	}
	var errs []error
	if o.ProductID == "" {
		errs = append(errs, errors.New("product_id is required"))
	}
	if o.OfferID == "" {
		errs = append(errs, errors.New("offer_id is required"))
	}
	if o.ExpiresAt != nil && !o.ExpiresAt.After(now) {
		errs = append(errs, fmt.Errorf("expires_at %s is not in the future", o.ExpiresAt.Format(time.RFC3339)))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidOverride, errors.Join(errs...))
}
