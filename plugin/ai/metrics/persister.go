package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/nova/plugin/ai/aitime"
	"github.com/hrygo/nova/plugin/ai/loop"
	"github.com/hrygo/nova/store"
)

// Persister periodically moves completed hour buckets into the store.
type Persister struct {
	store      *store.Store
	aggregator *Aggregator
	clock      aitime.Clock
	loop       *loop.Loop

	retentionPeriod time.Duration

	// mu serializes read-modify-write of the persisted list.
	mu sync.Mutex
}

// PersisterConfig configures the metrics persister.
type PersisterConfig struct {
	FlushInterval   time.Duration // How often to flush metrics (default: 1 hour)
	RetentionPeriod time.Duration // How long to keep metrics (default: 30 days)
}

// DefaultPersisterConfig returns default persister configuration.
func DefaultPersisterConfig() PersisterConfig {
	return PersisterConfig{
		FlushInterval:   time.Hour,
		RetentionPeriod: 30 * 24 * time.Hour,
	}
}

// NewPersister creates a stopped persister.
func NewPersister(s *store.Store, agg *Aggregator, cfg PersisterConfig, clock aitime.Clock) *Persister {
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = time.Hour
	}
	if cfg.RetentionPeriod == 0 {
		cfg.RetentionPeriod = 30 * 24 * time.Hour
	}

	p := &Persister{
		store:           s,
		aggregator:      agg,
		clock:           aitime.OrSystem(clock),
		retentionPeriod: cfg.RetentionPeriod,
	}
	p.loop = loop.New("metrics.persister", cfg.FlushInterval, func(ctx context.Context) {
		if err := p.Flush(ctx); err != nil {
			slog.Error("periodic metrics flush failed", "error", err)
		}
	})
	return p
}

// Start begins periodic flushing.
func (p *Persister) Start(ctx context.Context) {
	p.loop.Start(ctx)
}

// Close stops the loop and flushes once more.
func (p *Persister) Close() {
	p.loop.Stop()
	if err := p.Flush(context.Background()); err != nil {
		slog.Error("final metrics flush failed", "error", err)
	}
}

// Flush persists all completed hour buckets and drops entries past retention.
func (p *Persister) Flush(ctx context.Context) error {
	now := p.clock.Now()
	snapshots := p.aggregator.Flush(truncateToHour(now))

	p.mu.Lock()
	defer p.mu.Unlock()

	existing, err := p.loadLocked(ctx)
	if err != nil {
		return err
	}

	cutoff := now.Add(-p.retentionPeriod)
	all := append(existing, snapshots...)
	kept := make([]Snapshot, 0, len(all))
	for _, s := range all {
		if !s.HourBucket.Before(cutoff) {
			kept = append(kept, s)
		}
	}
	if len(snapshots) == 0 && len(kept) == len(existing) {
		return nil
	}

	if err := p.store.SetJSON(ctx, store.KeyMetrics, kept); err != nil {
		return errors.Wrap(err, "failed to persist metrics")
	}
	slog.Debug("metrics flushed", "snapshots", len(snapshots), "retained", len(kept))
	return nil
}

// Load returns the persisted snapshots.
func (p *Persister) Load(ctx context.Context) ([]Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadLocked(ctx)
}

func (p *Persister) loadLocked(ctx context.Context) ([]Snapshot, error) {
	var snapshots []Snapshot
	if _, err := p.store.GetJSON(ctx, store.KeyMetrics, &snapshots); err != nil {
		return nil, errors.Wrap(err, "failed to load metrics")
	}
	return snapshots, nil
}
