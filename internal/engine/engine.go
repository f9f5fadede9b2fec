// Package engine selects the Buy Box winner for a product. It scores the
// competing offers, applies the tie-break and admin overrides, and caches
// computed results.
package engine

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/donaldgifford/buybox/internal/metrics"
	"github.com/donaldgifford/buybox/internal/reputation"
	"github.com/donaldgifford/buybox/internal/store"
	score "github.com/donaldgifford/buybox/pkg/scorer"
	domain "github.com/donaldgifford/buybox/pkg/types"
)

const (
	// DefaultCacheTTL is how long a computed result stays cached.
	DefaultCacheTTL = 300 * time.Second
	// DefaultTieBreakThreshold is the score gap below which the runner-up
	// can take the Buy Box on review count.
	DefaultTieBreakThreshold = 0.5

	// DefaultComputeTimeout bounds one shared computation of a product.
	DefaultComputeTimeout = 30 * time.Second

	defaultMetricsConcurrency = 8
	defaultBatchConcurrency   = 16

	tracerName = "github.com/donaldgifford/buybox/internal/engine"
)

// Engine runs the Buy Box decision procedure.
type Engine struct {
	offers    store.OfferSource
	vendors   reputation.MetricsProvider
	results   *ResultCache
	overrides *OverrideRegistry
	log       *slog.Logger
	tracer    trace.Tracer

	weights            score.Weights
	cacheTTL           time.Duration
	computeTimeout     time.Duration
	tieBreakThreshold  float64
	metricsConcurrency int
	batchConcurrency   int
	nowFunc            func() time.Time

	inflight singleflight.Group
}

// NewEngine creates a new Engine with injected dependencies.
func NewEngine(
	offers store.OfferSource,
	vendors reputation.MetricsProvider,
	results *ResultCache,
	overrides *OverrideRegistry,
	opts ...EngineOption,
) *Engine {
	eng := &Engine{
		offers:             offers,
		vendors:            vendors,
		results:            results,
		overrides:          overrides,
		log:                slog.Default(),
		tracer:             otel.Tracer(tracerName),
		weights:            score.DefaultWeights(),
		cacheTTL:           DefaultCacheTTL,
		computeTimeout:     DefaultComputeTimeout,
		tieBreakThreshold:  DefaultTieBreakThreshold,
		metricsConcurrency: defaultMetricsConcurrency,
		batchConcurrency:   defaultBatchConcurrency,
		nowFunc:            time.Now,
	}
	for _, opt := range opts {
		opt(eng)
	}
	return eng
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.log = l
	}
}

// WithCacheTTL sets how long computed results are cached.
func WithCacheTTL(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.cacheTTL = d
		}
	}
}

// WithComputeTimeout bounds a shared computation. The computation is detached
// from the caller that started it, so this is its only deadline.
func WithComputeTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.computeTimeout = d
		}
	}
}

// WithTieBreakThreshold sets the score gap that triggers the review-count
// tie-break. Zero disables the tie-break.
func WithTieBreakThreshold(v float64) EngineOption {
	return func(e *Engine) {
		if v >= 0 {
			e.tieBreakThreshold = v
		}
	}
}

// WithWeights sets the scoring weights. Callers validate them first.
func WithWeights(w score.Weights) EngineOption {
	return func(e *Engine) {
		e.weights = w
	}
}

// WithMetricsConcurrency caps concurrent vendor metrics lookups per product.
func WithMetricsConcurrency(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.metricsConcurrency = n
		}
	}
}

// WithBatchConcurrency caps concurrent products in BatchCalculate.
func WithBatchConcurrency(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.batchConcurrency = n
		}
	}
}

// WithNowFunc overrides the time function for testing.
func WithNowFunc(f func() time.Time) EngineOption {
	return func(e *Engine) {
		e.nowFunc = f
	}
}

// Calculate returns the Buy Box result for productID, or nil when the product
// has no active offers. An active admin override always wins. Unless force is
// set, a cached result is returned when present.
func (eng *Engine) Calculate(ctx context.Context, productID string, force bool) (*domain.Result, error) {
	ctx, span := eng.tracer.Start(ctx, "engine.Calculate", trace.WithAttributes(
		attribute.String("product_id", productID),
		attribute.Bool("force", force),
	))
	defer span.End()

	res, err := eng.calculate(ctx, productID, force)
	if err != nil {
		metrics.CalculationErrorsTotal.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if res == nil {
		span.SetAttributes(attribute.Bool("found", false))
		return nil, nil
	}

	metrics.CalculationsTotal.WithLabelValues(string(res.Source)).Inc()
	span.SetAttributes(
		attribute.String("source", string(res.Source)),
		attribute.String("winner_offer_id", res.WinnerOfferID),
	)
	return res, nil
}

func (eng *Engine) calculate(ctx context.Context, productID string, force bool) (*domain.Result, error) {
	if productID == "" {
		return nil, errors.New("product_id is required")
	}

	// Override store failures fail open to the computed ranking.
	ov, err := eng.overrides.Get(ctx, productID)
	if err != nil {
		metrics.OverrideStoreErrorsTotal.WithLabelValues("get").Inc()
		eng.log.Warn("override lookup failed, ignoring overrides", "product_id", productID, "error", err)
	}
	if ov != nil {
		return overrideResult(ov), nil
	}

	if !force {
		cached, err := eng.results.Get(ctx, productID)
		switch {
		case err != nil:
			metrics.CacheErrorsTotal.WithLabelValues("get").Inc()
			eng.log.Warn("cache read failed, recalculating", "product_id", productID, "error", err)
		case cached != nil:
			metrics.CacheHitsTotal.Inc()
			cached.Source = domain.SourceCached
			return cached, nil
		default:
			metrics.CacheMissesTotal.Inc()
		}
	}

	// Concurrent computations of the same product share one run. The run
	// keeps going when the caller that started it goes away; each caller
	// stops waiting on its own context.
	ch := eng.inflight.DoChan(productID, func() (any, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eng.computeTimeout)
		defer cancel()
		return eng.compute(cctx, productID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		res, _ := r.Val.(*domain.Result)
		return res.Clone(), nil
	}
}

// overrideResult builds the result reported while an override is active.
// No scoring happens.
func overrideResult(o *domain.Override) *domain.Result {
	return &domain.Result{
		ProductID:     o.ProductID,
		WinnerOfferID: o.OfferID,
		WinnerScore:   100,
		AllScores:     []domain.ScoreBreakdown{},
		CalculatedAt:  o.SetAt,
		Source:        domain.SourceAdminOverride,
	}
}

func (eng *Engine) compute(ctx context.Context, productID string) (*domain.Result, error) {
	start := time.Now()
	defer func() {
		metrics.CalculationDuration.Observe(time.Since(start).Seconds())
	}()

	offers, err := eng.offers.ListActiveOffers(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("listing offers for %s: %w", productID, err)
	}
	if len(offers) == 0 {
		return nil, nil
	}
	for i := range offers {
		if err := offers[i].Validate(); err != nil {
			return nil, err
		}
		if offers[i].ProductID != productID {
			return nil, fmt.Errorf("%w %q: belongs to product %s, not %s",
				domain.ErrMalformedOffer, offers[i].ID, offers[i].ProductID, productID)
		}
	}
	metrics.OffersPerCalculation.Observe(float64(len(offers)))

	var scores []domain.ScoreBreakdown
	if len(offers) == 1 {
		scores = []domain.ScoreBreakdown{breakdown(&offers[0], score.Perfect())}
	} else {
		scores, err = eng.rank(ctx, productID, offers)
		if err != nil {
			return nil, err
		}
	}

	now := eng.nowFunc()
	expires := now.Add(eng.cacheTTL)
	res := &domain.Result{
		ProductID:      productID,
		WinnerOfferID:  scores[0].OfferID,
		WinnerScore:    scores[0].TotalScore,
		AllScores:      scores,
		CalculatedAt:   now,
		Source:         domain.SourceCalculated,
		CacheExpiresAt: &expires,
	}
	metrics.WinnerScoreDistribution.Observe(res.WinnerScore)

	// Cache write failures are swallowed; the next call recalculates.
	if err := eng.results.Set(ctx, productID, res, eng.cacheTTL); err != nil {
		metrics.CacheErrorsTotal.WithLabelValues("set").Inc()
		eng.log.Warn("cache write failed", "product_id", productID, "error", err)
	}

	eng.log.Debug("buy box calculated",
		"product_id", productID,
		"winner_offer_id", res.WinnerOfferID,
		"winner_score", res.WinnerScore,
		"offers", len(offers),
	)
	return res, nil
}

// rank scores every offer against the set's price bounds, sorts them best
// first and applies the tie-break. AllScores[0] is always the winner.
func (eng *Engine) rank(ctx context.Context, productID string, offers []domain.Offer) ([]domain.ScoreBreakdown, error) {
	vm, err := eng.vendorMetrics(ctx, offers)
	if err != nil {
		return nil, err
	}

	prices := make([]float64, len(offers))
	for i := range offers {
		prices[i] = offers[i].Price.InexactFloat64()
	}
	bounds := score.Bounds(prices)

	scores := make([]domain.ScoreBreakdown, len(offers))
	for i := range offers {
		o := &offers[i]
		m := vm[o.VendorID]
		scores[i] = breakdown(o, score.Score(score.OfferData{
			Price:             prices[i],
			StockQuantity:     o.StockQuantity,
			TotalDeliveryDays: o.TotalDeliveryDays(),
			Rating:            m.Rating,
			CancellationRate:  m.CancellationRate,
		}, bounds, eng.weights))
	}

	slices.SortFunc(scores, func(a, b domain.ScoreBreakdown) int {
		if c := cmp.Compare(b.TotalScore, a.TotalScore); c != 0 {
			return c
		}
		return cmp.Compare(a.OfferID, b.OfferID)
	})

	if tieBreak(scores, vm, eng.tieBreakThreshold) {
		metrics.TieBreaksTotal.Inc()
		eng.log.Debug("tie-break promoted runner-up",
			"product_id", productID,
			"winner_offer_id", scores[0].OfferID,
			"runner_up_offer_id", scores[1].OfferID,
		)
	}
	return scores, nil
}

// tieBreak swaps the top two entries when their scores are within threshold
// and the runner-up's vendor has strictly more reviews. Lower ranks are never
// considered.
func tieBreak(scores []domain.ScoreBreakdown, vm map[string]*domain.VendorMetrics, threshold float64) bool {
	if len(scores) < 2 {
		return false
	}
	if scores[0].TotalScore-scores[1].TotalScore >= threshold {
		return false
	}
	if vm[scores[1].VendorID].TotalReviews <= vm[scores[0].VendorID].TotalReviews {
		return false
	}
	scores[0], scores[1] = scores[1], scores[0]
	return true
}

// vendorMetrics fetches metrics once per distinct vendor, concurrently. A
// vendor whose lookup fails is scored with neutral metrics. Only caller
// cancellation aborts the fan-out, so a dead context never produces a
// neutral-metrics result that would then be cached.
func (eng *Engine) vendorMetrics(ctx context.Context, offers []domain.Offer) (map[string]*domain.VendorMetrics, error) {
	vendorIDs := make([]string, 0, len(offers))
	for i := range offers {
		if !slices.Contains(vendorIDs, offers[i].VendorID) {
			vendorIDs = append(vendorIDs, offers[i].VendorID)
		}
	}

	var (
		mu  sync.Mutex
		out = make(map[string]*domain.VendorMetrics, len(vendorIDs))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(eng.metricsConcurrency)

	for _, id := range vendorIDs {
		g.Go(func() error {
			m, err := eng.vendors.GetMetrics(gctx, id)
			if err != nil || m == nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				metrics.VendorMetricsFailuresTotal.Inc()
				eng.log.Warn("vendor metrics unavailable, using neutral metrics",
					"vendor_id", id,
					"error", err,
				)
				m = domain.NeutralVendorMetrics(id)
			}
			mu.Lock()
			out[id] = m
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetching vendor metrics: %w", err)
	}
	return out, nil
}

func breakdown(o *domain.Offer, b score.Breakdown) domain.ScoreBreakdown {
	return domain.ScoreBreakdown{
		OfferID:           o.ID,
		VendorID:          o.VendorID,
		PriceScore:        b.Price,
		VendorRatingScore: b.VendorRating,
		DeliverySLAScore:  b.DeliverySLA,
		CancellationScore: b.Cancellation,
		StockScore:        b.Stock,
		TotalScore:        b.Total,
	}
}

// Winner returns the winning offer ID for productID, or "" when the product
// has no offers.
func (eng *Engine) Winner(ctx context.Context, productID string) (string, error) {
	res, err := eng.Calculate(ctx, productID, false)
	if err != nil || res == nil {
		return "", err
	}
	return res.WinnerOfferID, nil
}

// ProductError is one product's failure within a batch.
type ProductError struct {
	ProductID string
	Err       error
}

func (e *ProductError) Error() string {
	return fmt.Sprintf("product %s: %v", e.ProductID, e.Err)
}

func (e *ProductError) Unwrap() error { return e.Err }

// ProductErrors splits a BatchCalculate error into per-product failures.
func ProductErrors(err error) []*ProductError {
	if err == nil {
		return nil
	}
	var list []error
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		list = j.Unwrap()
	} else {
		list = []error{err}
	}
	out := make([]*ProductError, 0, len(list))
	for _, e := range list {
		var pe *ProductError
		if errors.As(e, &pe) {
			out = append(out, pe)
		}
	}
	return out
}

// BatchCalculate computes every product independently and concurrently.
// Every requested ID is a key of the returned map; its value is nil when the
// product has no offers or its calculation failed. The error joins the
// per-product failures as *ProductError values.
func (eng *Engine) BatchCalculate(ctx context.Context, productIDs []string) (map[string]*domain.Result, error) {
	ctx, span := eng.tracer.Start(ctx, "engine.BatchCalculate", trace.WithAttributes(
		attribute.Int("products", len(productIDs)),
	))
	defer span.End()

	var (
		mu   sync.Mutex
		out  = make(map[string]*domain.Result, len(productIDs))
		errs []error
	)

	// A plain group: one product's failure must not cancel the others.
	var g errgroup.Group
	g.SetLimit(eng.batchConcurrency)

	ids := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		if _, seen := out[id]; !seen {
			out[id] = nil
			ids = append(ids, id)
		}
	}

	for _, id := range ids {
		g.Go(func() error {
			res, err := eng.Calculate(ctx, id, false)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, &ProductError{ProductID: id, Err: err})
				return nil
			}
			out[id] = res
			return nil
		})
	}
	_ = g.Wait()

	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
	}
	return out, err
}

// SetOverride makes o's offer the product's winner until cleared or expired.
func (eng *Engine) SetOverride(ctx context.Context, o *domain.Override) error {
	return eng.overrides.Set(ctx, o)
}

// ClearOverride reverts the product to its computed ranking.
func (eng *Engine) ClearOverride(ctx context.Context, productID string) error {
	return eng.overrides.Clear(ctx, productID)
}

// GetOverride returns the product's active override, or nil.
func (eng *Engine) GetOverride(ctx context.Context, productID string) (*domain.Override, error) {
	return eng.overrides.Get(ctx, productID)
}

// InvalidateCache drops the product's cached result so the next call
// recalculates.
func (eng *Engine) InvalidateCache(ctx context.Context, productID string) error {
	return eng.results.Invalidate(ctx, productID)
}
