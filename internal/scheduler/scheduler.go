package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/elonfeng/trendfit/internal/metrics"
	"github.com/elonfeng/trendfit/internal/pipeline"
	"github.com/elonfeng/trendfit/internal/store"
	"github.com/elonfeng/trendfit/pkg/alert"
)

// Scheduler runs periodic collection, recommendation and act_now alerting.
type Scheduler struct {
	store        store.Store
	collector    *pipeline.Collector
	pipeline     *pipeline.Pipeline
	alertMgr     *alert.Manager
	collectInt   time.Duration
	recommendInt time.Duration
	alertActNow  bool
	logger       *slog.Logger
}

// New creates a new scheduler.
func New(
	s store.Store,
	collector *pipeline.Collector,
	p *pipeline.Pipeline,
	alertMgr *alert.Manager,
	collectInt, recommendInt time.Duration,
	alertActNow bool,
	logger *slog.Logger,
) *Scheduler {
	if collectInt == 0 {
		collectInt = 15 * time.Minute
	}
	if recommendInt == 0 {
		recommendInt = time.Hour
	}
	return &Scheduler{
		store:        s,
		collector:    collector,
		pipeline:     p,
		alertMgr:     alertMgr,
		collectInt:   collectInt,
		recommendInt: recommendInt,
		alertActNow:  alertActNow,
		logger:       logger,
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	collectTicker := time.NewTicker(s.collectInt)
	recommendTicker := time.NewTicker(s.recommendInt)
	defer collectTicker.Stop()
	defer recommendTicker.Stop()

	s.logger.Info("scheduler starting", "collect_every", s.collectInt, "recommend_every", s.recommendInt)
	s.collect(ctx)
	s.RecommendAndAlert(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-collectTicker.C:
			s.collect(ctx)
		case <-recommendTicker.C:
			s.RecommendAndAlert(ctx)
		}
	}
}

func (s *Scheduler) collect(ctx context.Context) {
	if s.collector == nil {
		return
	}
	if _, err := s.collector.Collect(ctx); err != nil {
		s.logger.Error("collection failed", "error", err)
	}
}

// RecommendAndAlert runs the pipeline for every organization, then alerts.
func (s *Scheduler) RecommendAndAlert(ctx context.Context) {
	if _, err := s.pipeline.Run(ctx, nil); err != nil {
		s.logger.Error("recommendation run failed", "error", err)
		return
	}
	s.Alert(ctx)
}

// Alert broadcasts every act_now recommendation not alerted yet and marks it
// alerted once delivered.
func (s *Scheduler) Alert(ctx context.Context) {
	if !s.alertActNow || s.alertMgr == nil || !s.alertMgr.HasNotifiers() {
		return
	}

	recs, err := s.store.ListUnalertedActNow(ctx)
	if err != nil {
		s.logger.Error("list pending alerts", "error", err)
		return
	}

	names := make(map[string]string)
	for _, rec := range recs {
		name, ok := names[rec.OrgID]
		if !ok {
			if org, err := s.store.GetOrganization(ctx, rec.OrgID); err == nil {
				name = org.Name
			}
			names[rec.OrgID] = name
		}

		n := &alert.Notification{
			OrgID:     rec.OrgID,
			OrgName:   name,
			TrendID:   rec.TrendID,
			Title:     rec.Title,
			Tier:      rec.Tier,
			Composite: rec.Composite,
			Relevance: rec.Score,
			Flags:     rec.Flags,
			Reasons:   rec.Reasons,
		}
		if err := s.alertMgr.Broadcast(ctx, n); err != nil {
			metrics.RecordAlert("error")
			s.logger.Warn("alert failed", "org", rec.OrgID, "trend", rec.TrendID, "error", err)
			continue
		}
		metrics.RecordAlert("success")

		if err := s.store.MarkAlerted(ctx, rec.ID); err != nil {
			s.logger.Error("mark alerted", "id", rec.ID, "error", err)
			continue
		}
		s.logger.Info("alerted", "org", rec.OrgID, "trend", rec.TrendID, "composite", rec.Composite)
	}
}
