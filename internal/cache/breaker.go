package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerState represents the state of a BreakerStore. The values are
// exported as the breaker_state gauge.
type BreakerState int

// Breaker states.
const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

// String returns the string representation of the breaker state.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

func fromGobreaker(s gobreaker.State) BreakerState {
	switch s {
	case gobreaker.StateOpen:
		return BreakerOpen
	case gobreaker.StateHalfOpen:
		return BreakerHalfOpen
	default:
		return BreakerClosed
	}
}

// BreakerConfig holds the circuit breaker thresholds.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures int
	// ResetTimeout is how long the circuit stays open before a trial call.
	ResetTimeout time.Duration
}

// DefaultBreakerConfig returns the default breaker thresholds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures:  5,
		ResetTimeout: 30 * time.Second,
	}
}

// BreakerStore wraps a Store with a circuit breaker. While open, every call
// fails immediately with ErrUnavailable instead of waiting on the backend.
//
// Only backend faults count against the circuit. ErrMiss is a normal answer,
// and a call whose context is done says nothing about the backend. A call
// made with an already finished context never reaches the breaker.
type BreakerStore struct {
	next Store
	name string
	cb   *gobreaker.CircuitBreaker[any]
	log  *slog.Logger

	onStateChange func(name string, from, to BreakerState)
}

// BreakerOption configures a BreakerStore.
type BreakerOption func(*BreakerStore)

// WithBreakerLogger sets a custom logger.
func WithBreakerLogger(l *slog.Logger) BreakerOption {
	return func(b *BreakerStore) {
		b.log = l
	}
}

// WithStateChangeHook registers a callback invoked on every state transition.
func WithStateChangeHook(f func(name string, from, to BreakerState)) BreakerOption {
	return func(b *BreakerStore) {
		b.onStateChange = f
	}
}

// NewBreakerStore wraps next with a circuit breaker named name.
func NewBreakerStore(next Store, name string, cfg BreakerConfig, opts ...BreakerOption) *BreakerStore {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultBreakerConfig().MaxFailures
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultBreakerConfig().ResetTimeout
	}
	b := &BreakerStore{
		next: next,
		name: name,
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}

	maxFailures := uint32(cfg.MaxFailures) //nolint:gosec // validated positive above
	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: isBackendHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.stateChanged(name, fromGobreaker(from), fromGobreaker(to), cfg)
		},
	})
	return b
}

// callerGone marks an error produced after the caller's context finished.
type callerGone struct{ err error }

func (e callerGone) Error() string { return e.err.Error() }
func (e callerGone) Unwrap() error { return e.err }

func isBackendHealthy(err error) bool {
	var gone callerGone
	return err == nil || errors.Is(err, ErrMiss) || errors.As(err, &gone)
}

// State returns the current breaker state.
func (b *BreakerStore) State() BreakerState {
	return fromGobreaker(b.cb.State())
}

// Get implements Store.
func (b *BreakerStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := b.do(ctx, func() (any, error) {
		return b.next.Get(ctx, key)
	})
	out, _ := v.([]byte)
	return out, err
}

// Set implements Store.
func (b *BreakerStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := b.do(ctx, func() (any, error) {
		return nil, b.next.Set(ctx, key, value, ttl)
	})
	return err
}

// Delete implements Store.
func (b *BreakerStore) Delete(ctx context.Context, key string) error {
	_, err := b.do(ctx, func() (any, error) {
		return nil, b.next.Delete(ctx, key)
	})
	return err
}

// PurgeExpired forwards to the wrapped store when it supports purging.
func (b *BreakerStore) PurgeExpired(ctx context.Context) (int, error) {
	p, ok := b.next.(Purger)
	if !ok {
		return 0, nil
	}
	v, err := b.do(ctx, func() (any, error) {
		return p.PurgeExpired(ctx)
	})
	n, _ := v.(int)
	return n, err
}

func (b *BreakerStore) do(ctx context.Context, op func() (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v, err := b.cb.Execute(func() (any, error) {
		v, err := op()
		if err != nil && ctx.Err() != nil {
			return v, callerGone{err: err}
		}
		return v, err
	})

	var gone callerGone
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%w: breaker %s is %s", ErrUnavailable, b.name, b.State())
	case errors.As(err, &gone):
		return v, gone.err
	default:
		return v, err
	}
}

func (b *BreakerStore) stateChanged(name string, from, to BreakerState, cfg BreakerConfig) {
	if to == BreakerOpen {
		b.log.Warn("cache breaker opened",
			"breaker", name,
			"from", from.String(),
			"max_failures", cfg.MaxFailures,
			"reset_timeout", cfg.ResetTimeout,
		)
	} else {
		b.log.Info("cache breaker state change", "breaker", name, "from", from.String(), "to", to.String())
	}
	if b.onStateChange != nil {
		b.onStateChange(name, from, to)
	}
}
