package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/segmentio/kafka-go"

	"github.com/donaldgifford/buybox/internal/metrics"
)

const (
	defaultPollTimeout  = 5 * time.Second
	defaultRetryInitial = 500 * time.Millisecond
	defaultRetryMax     = 30 * time.Second
)

// Invalidator drops a product's cached Buy Box result.
type Invalidator interface {
	InvalidateCache(ctx context.Context, productID string) error
}

// ProductResolver lists the products a vendor currently has offers for. It
// resolves vendor.metrics.updated events that carry no product IDs.
type ProductResolver interface {
	ProductIDsForVendor(ctx context.Context, vendorID string) ([]string, error)
}

// messageReader is the subset of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerConfig holds Kafka connection settings.
type ConsumerConfig struct {
	Brokers     []string
	Topic       string
	GroupID     string
	PollTimeout time.Duration
}

// Consumer reads change events and invalidates the affected products.
type Consumer struct {
	cfg      ConsumerConfig
	reader   messageReader
	inv      Invalidator
	resolver ProductResolver
	log      *slog.Logger
	poll     time.Duration
	retry    *backoff.ExponentialBackOff
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		c.log = l
	}
}

// WithProductResolver resolves vendor events that name no products.
func WithProductResolver(r ProductResolver) ConsumerOption {
	return func(c *Consumer) {
		c.resolver = r
	}
}

// WithRetryBackoff sets the wait after a failed fetch. The wait grows from
// initial up to maxWait while fetches keep failing and resets on success.
func WithRetryBackoff(initial, maxWait time.Duration) ConsumerOption {
	return func(c *Consumer) {
		if initial > 0 {
			c.retry.InitialInterval = initial
		}
		if maxWait > 0 {
			c.retry.MaxInterval = maxWait
		}
	}
}

// NewConsumer creates a consumer-group reader for cfg.Topic.
func NewConsumer(cfg ConsumerConfig, inv Invalidator, opts ...ConsumerOption) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("topic must not be empty")
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		return nil, errors.New("consumer group must not be empty")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return newConsumer(cfg, reader, inv, opts...), nil
}

func newConsumer(cfg ConsumerConfig, r messageReader, inv Invalidator, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		cfg:    cfg,
		reader: r,
		inv:    inv,
		log:    slog.Default(),
		poll:   cfg.PollTimeout,
	}
	if c.poll <= 0 {
		c.poll = defaultPollTimeout
	}
	c.retry = backoff.NewExponentialBackOff()
	c.retry.InitialInterval = defaultRetryInitial
	c.retry.MaxInterval = defaultRetryMax
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.MaxInterval < c.retry.InitialInterval {
		c.retry.MaxInterval = c.retry.InitialInterval
	}
	c.retry.Reset()
	return c
}

// Close shuts down the underlying reader.
func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// Run consumes until ctx is canceled or the reader is closed. Every fetched
// message is committed, including ones that could not be decoded, so a bad
// payload never blocks the partition.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info("invalidation consumer started",
		"topic", c.cfg.Topic,
		"group", c.cfg.GroupID,
		"brokers", strings.Join(c.cfg.Brokers, ","),
		"poll_timeout", c.poll,
	)
	defer c.log.Info("invalidation consumer stopped")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		fetchCtx, cancel := context.WithTimeout(ctx, c.poll)
		msg, err := c.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				continue
			case errors.Is(err, context.Canceled):
				if ctx.Err() != nil {
					return ctx.Err()
				}
				continue
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe), errors.Is(err, kafka.ErrGroupClosed):
				return nil
			}
			wait := c.retry.NextBackOff()
			c.log.Error("fetching event failed", "error", err, "retry_in", wait)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		c.retry.Reset()

		c.handle(ctx, msg)

		commitCtx, commitCancel := context.WithTimeout(ctx, c.poll)
		if err := c.reader.CommitMessages(commitCtx, msg); err != nil {
			if !errors.Is(err, context.Canceled) || ctx.Err() == nil {
				c.log.Error("committing event failed", "offset", msg.Offset, "error", err)
			}
		}
		commitCancel()
	}
}

// handle applies one message. Failures are logged, never returned.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	ev, err := Decode(msg.Value)
	if err != nil {
		metrics.InvalidationEventErrorsTotal.Inc()
		c.log.Warn("skipping event", "offset", msg.Offset, "partition", msg.Partition, "error", err)
		return
	}
	metrics.InvalidationEventsTotal.WithLabelValues(string(ev.Type)).Inc()

	products, err := c.products(ctx, ev)
	if err != nil {
		metrics.InvalidationEventErrorsTotal.Inc()
		c.log.Warn("resolving event products failed", "type", string(ev.Type), "vendor_id", ev.VendorID, "error", err)
		return
	}

	for _, id := range products {
		if err := c.inv.InvalidateCache(ctx, id); err != nil {
			metrics.InvalidationEventErrorsTotal.Inc()
			c.log.Warn("invalidating product failed", "product_id", id, "type", string(ev.Type), "error", err)
			continue
		}
		c.log.Debug("invalidated product", "product_id", id, "type", string(ev.Type))
	}
}

func (c *Consumer) products(ctx context.Context, ev *Event) ([]string, error) {
	ids := ev.Products()
	if len(ids) > 0 || ev.Type != VendorMetricsUpdated {
		return ids, nil
	}
	if c.resolver == nil {
		return nil, fmt.Errorf("no product resolver for vendor %s", ev.VendorID)
	}
	return c.resolver.ProductIDsForVendor(ctx, ev.VendorID)
}
