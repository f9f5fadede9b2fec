package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/donaldgifford/buybox/internal/cache"
	"github.com/donaldgifford/buybox/internal/metrics"
)

// DefaultPurgeInterval is how often expired KV entries are removed.
const DefaultPurgeInterval = 10 * time.Minute

// Scheduler runs periodic maintenance of the shared KV store.
type Scheduler struct {
	cron    *cron.Cron
	purger  cache.Purger
	timeout time.Duration
	log     *slog.Logger
}

// NewScheduler creates a Scheduler that purges expired entries from p every
// purgeInterval.
func NewScheduler(p cache.Purger, purgeInterval time.Duration, log *slog.Logger) (*Scheduler, error) {
	if purgeInterval <= 0 {
		purgeInterval = DefaultPurgeInterval
	}
	if log == nil {
		log = slog.Default()
	}

	c := cron.New()

	s := &Scheduler{
		cron:    c,
		purger:  p,
		timeout: purgeInterval,
		log:     log,
	}

	if _, err := c.AddFunc(
		"@every "+purgeInterval.String(),
		s.runPurge,
	); err != nil {
		return nil, err
	}

	return s, nil
}

// Start begins running scheduled tasks.
func (s *Scheduler) Start() {
	s.log.Info("scheduler started")
	s.cron.Start()
}

// Stop gracefully stops the scheduler, waiting for running jobs to finish.
func (s *Scheduler) Stop() context.Context {
	s.log.Info("scheduler stopping")
	return s.cron.Stop()
}

// Entries returns the registered cron entries for inspection.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

func (s *Scheduler) runPurge() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		s.log.Error("scheduled purge failed", "error", err)
		return
	}
	metrics.CachePurgedTotal.Add(float64(n))
	s.log.Debug("scheduled purge complete", "purged", n)
}
