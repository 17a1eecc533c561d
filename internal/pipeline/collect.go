package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/elonfeng/trendfit/internal/metrics"
	"github.com/elonfeng/trendfit/internal/store"
	"github.com/elonfeng/trendfit/pkg/classify"
	"github.com/elonfeng/trendfit/pkg/signal"
	"github.com/elonfeng/trendfit/pkg/source"
)

// Collector gathers entries from every source, clusters them into signals,
// tags them and stores them with their mention velocity.
type Collector struct {
	store      store.Store
	sources    []source.Source
	classifier *classify.Classifier
	logger     *slog.Logger
	now        func() time.Time
}

// NewCollector creates a collector.
func NewCollector(s store.Store, sources []source.Source, classifier *classify.Classifier, logger *slog.Logger) *Collector {
	return &Collector{
		store:      s,
		sources:    sources,
		classifier: classifier,
		logger:     logger,
		now:        time.Now,
	}
}

// Collect runs one collection round and returns the stored signals. A failing
// source is logged and skipped.
func (c *Collector) Collect(ctx context.Context) ([]signal.TrendSignal, error) {
	var entries []source.Entry
	for _, src := range c.sources {
		got, err := src.Collect(ctx)
		if err != nil {
			metrics.RecordCollect(src.Name(), "error", 0)
			c.logger.Warn("source failed", "source", src.Name(), "error", err)
			continue
		}
		metrics.RecordCollect(src.Name(), "success", len(got))
		entries = append(entries, got...)
		c.logger.Info("collected", "source", src.Name(), "entries", len(got))
	}

	now := c.now()
	sigs := source.Cluster(entries, now)
	if c.classifier != nil {
		sigs = c.classifier.Classify(ctx, sigs)
	}
	if err := c.Store(ctx, sigs); err != nil {
		return nil, err
	}
	c.logger.Info("signals stored", "entries", len(entries), "signals", len(sigs))
	return sigs, nil
}

// Import tags and stores signals that were produced elsewhere, such as a
// signal file. Signals that already carry domains keep them.
func (c *Collector) Import(ctx context.Context, sigs []signal.TrendSignal) ([]signal.TrendSignal, error) {
	if c.classifier != nil {
		sigs = c.classifier.Classify(ctx, sigs)
	}
	if err := c.Store(ctx, sigs); err != nil {
		return nil, err
	}
	c.logger.Info("signals imported", "signals", len(sigs))
	return sigs, nil
}

// Store fills in each signal's velocity against its previous snapshot, then
// persists the signals and records a new snapshot. sigs is updated in place.
func (c *Collector) Store(ctx context.Context, sigs []signal.TrendSignal) error {
	now := c.now()
	for i := range sigs {
		v, err := c.velocity(ctx, sigs[i].ID, sigs[i].Momentum.Mentions, now)
		if err != nil {
			return err
		}
		if v != 0 {
			sigs[i].Momentum.VelocityPct = v
		}
	}

	if err := c.store.UpsertSignals(ctx, sigs); err != nil {
		return fmt.Errorf("store signals: %w", err)
	}
	metrics.SignalsStored.Add(float64(len(sigs)))
	for _, s := range sigs {
		if err := c.store.AddSnapshot(ctx, s.ID, s.Momentum.Mentions); err != nil {
			return err
		}
	}
	return nil
}

// velocity is the percent change in mentions since the latest snapshot taken
// before now. A signal seen for the first time has no velocity.
func (c *Collector) velocity(ctx context.Context, id string, mentions int, now time.Time) (float64, error) {
	prev, err := c.store.LatestSnapshot(ctx, id, now)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if prev.Mentions <= 0 {
		return 0, nil
	}
	return float64(mentions-prev.Mentions) / float64(prev.Mentions) * 100, nil
}
