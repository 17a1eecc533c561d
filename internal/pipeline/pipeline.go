// Package pipeline turns stored signals into persisted, diversity-checked
// recommendations for every organization.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/trendfit/internal/metrics"
	"github.com/elonfeng/trendfit/internal/store"
	"github.com/elonfeng/trendfit/pkg/decision"
	"github.com/elonfeng/trendfit/pkg/diversity"
	"github.com/elonfeng/trendfit/pkg/relevance"
	"github.com/elonfeng/trendfit/pkg/signal"
)

// InterestAffinityMin is the affinity score from which a topic counts as an
// interest topic for decision fit scoring.
const InterestAffinityMin = 0.5

// Options configures a Pipeline.
type Options struct {
	MaxCount     int
	DecisionTopN int
	Workers      int
	SignalWindow time.Duration
	SignalLimit  int
	Selection    diversity.Config
	Decision     decision.Options
}

// Pipeline scores, selects and persists recommendations.
type Pipeline struct {
	store    store.Store
	scorer   *decision.Scorer
	selector *diversity.Selector
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

// OrgReport is the outcome of one organization's run.
type OrgReport struct {
	RunID           string                 `json:"run_id"`
	OrgID           string                 `json:"org_id"`
	OrgName         string                 `json:"org_name"`
	Scored          int                    `json:"scored"`
	Recommendations []store.Recommendation `json:"recommendations"`
	Metrics         diversity.Metrics      `json:"metrics"`
	Error           string                 `json:"error,omitempty"`

	selected []diversity.ScoredTrend
}

// Selected returns the selected trends with their scores.
func (r OrgReport) Selected() []diversity.ScoredTrend { return r.selected }

// New creates a pipeline.
func New(s store.Store, opts Options, logger *slog.Logger) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.SignalWindow <= 0 {
		opts.SignalWindow = 48 * time.Hour
	}
	if opts.SignalLimit <= 0 {
		opts.SignalLimit = 500
	}
	return &Pipeline{
		store:    s,
		scorer:   decision.NewScorer(opts.Decision),
		selector: diversity.NewSelector(opts.Selection),
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// Run recommends for orgIDs, or for every stored organization when orgIDs is
// empty. A failing organization is logged and reported in its OrgReport; the
// returned error covers loading failures and cancellation only. Reports are
// sorted by organization ID.
func (p *Pipeline) Run(ctx context.Context, orgIDs []string) ([]OrgReport, error) {
	if len(orgIDs) == 0 {
		orgs, err := p.store.ListOrganizations(ctx)
		if err != nil {
			return nil, fmt.Errorf("list organizations: %w", err)
		}
		for _, o := range orgs {
			orgIDs = append(orgIDs, o.ID)
		}
	}
	if len(orgIDs) == 0 {
		return nil, nil
	}

	sigs, err := p.store.ListSignals(ctx, store.SignalListOpts{
		Since: p.now().Add(-p.opts.SignalWindow),
		Limit: p.opts.SignalLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("load signals: %w", err)
	}

	runID := uuid.NewString()
	reports := make([]OrgReport, len(orgIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, id := range orgIDs {
		g.Go(func() error {
			start := time.Now()
			report, err := p.runOrg(gctx, runID, id, sigs)
			elapsed := time.Since(start).Seconds()
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				metrics.RecordRecommend(id, "error", elapsed, 0)
				p.logger.Error("recommend failed", "run_id", runID, "org", id, "error", err)
				reports[i] = OrgReport{RunID: runID, OrgID: id, Error: err.Error()}
				return nil
			}
			metrics.RecordRecommend(id, "success", elapsed, report.Metrics.DiversityScore)
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(reports, func(i, j int) bool { return reports[i].OrgID < reports[j].OrgID })
	p.logger.Info("recommendation run complete",
		"run_id", runID, "orgs", len(reports), "signals", len(sigs))
	return reports, nil
}

// RunOrg recommends for a single organization.
func (p *Pipeline) RunOrg(ctx context.Context, orgID string) (OrgReport, error) {
	reports, err := p.Run(ctx, []string{orgID})
	if err != nil {
		return OrgReport{}, err
	}
	r := reports[0]
	if r.Error != "" {
		return r, errors.New(r.Error)
	}
	return r, nil
}

// Score ranks the stored signals for one organization without selecting or
// persisting anything. Signals with zero relevance are omitted.
func (p *Pipeline) Score(ctx context.Context, orgID string) ([]diversity.ScoredTrend, error) {
	profile, err := p.store.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	watchlist, err := p.store.ListWatchlist(ctx, orgID)
	if err != nil {
		return nil, err
	}
	affinities, err := p.store.ListAffinities(ctx, orgID)
	if err != nil {
		return nil, err
	}
	sigs, err := p.store.ListSignals(ctx, store.SignalListOpts{
		Since: p.now().Add(-p.opts.SignalWindow),
		Limit: p.opts.SignalLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("load signals: %w", err)
	}
	return p.scoreAll(*profile, watchlist, affinities, sigs), nil
}

func (p *Pipeline) runOrg(ctx context.Context, runID, orgID string, sigs []signal.TrendSignal) (OrgReport, error) {
	profile, err := p.store.GetOrganization(ctx, orgID)
	if err != nil {
		return OrgReport{}, err
	}
	watchlist, err := p.store.ListWatchlist(ctx, orgID)
	if err != nil {
		return OrgReport{}, err
	}
	affinities, err := p.store.ListAffinities(ctx, orgID)
	if err != nil {
		return OrgReport{}, err
	}

	pool := p.scoreAll(*profile, watchlist, affinities, sigs)
	selected := p.selector.Select(pool, *profile, p.opts.MaxCount)
	m := diversity.ComputeMetrics(selected, profile.Domains)

	recs := make([]store.Recommendation, len(selected))
	strategies := make([]string, len(selected))
	tiers := make([]string, len(selected))
	for i, s := range selected {
		recs[i] = recommendation(runID, orgID, s)
		strategies[i] = s.SelectedBy
		tiers[i] = recs[i].Tier
	}
	if err := ctx.Err(); err != nil {
		return OrgReport{}, err
	}
	if err := p.store.SaveRecommendations(ctx, recs); err != nil {
		return OrgReport{}, err
	}
	if err := p.store.SaveDiversityReport(ctx, &store.DiversityReport{RunID: runID, OrgID: orgID, Metrics: m}); err != nil {
		return OrgReport{}, err
	}
	metrics.RecordSelection(strategies, tiers)

	p.logger.Info("recommended",
		"run_id", runID,
		"org", orgID,
		"scored", len(pool),
		"selected", len(selected),
		"diversity_score", m.DiversityScore,
		"domains_missing", len(m.DomainsMissing))

	return OrgReport{
		RunID:           runID,
		OrgID:           orgID,
		OrgName:         profile.Name,
		Scored:          len(pool),
		Recommendations: recs,
		Metrics:         m,
		selected:        selected,
	}, nil
}

// scoreAll relevance-scores every signal and decision-scores the best
// DecisionTopN. Signals with no relevance at all are dropped.
func (p *Pipeline) scoreAll(
	profile signal.OrganizationProfile,
	watchlist []signal.WatchlistEntity,
	affinities []signal.TopicAffinity,
	sigs []signal.TrendSignal,
) []diversity.ScoredTrend {
	pool := make([]diversity.ScoredTrend, 0, len(sigs))
	for _, sig := range sigs {
		rel := relevance.Score(sig, profile, watchlist, affinities)
		if rel.Score == 0 {
			continue
		}
		pool = append(pool, diversity.ScoredTrend{Trend: sig, Relevance: rel})
	}
	metrics.TrendsScored.Add(float64(len(sigs)))

	sort.SliceStable(pool, func(i, j int) bool { return pool[i].Score() > pool[j].Score() })

	topics, entities := interests(watchlist, affinities)
	n := min(p.opts.DecisionTopN, len(pool))
	for i := 0; i < n; i++ {
		rel := pool[i].Relevance
		d := p.scorer.Score(decision.InputFromSignal(pool[i].Trend, &rel), profile, topics, entities)
		pool[i].Decision = &d
	}
	return pool
}

// interests derives the decision scorer's interest topics and entities from
// the organization's affinities and active watchlist.
func interests(watchlist []signal.WatchlistEntity, affinities []signal.TopicAffinity) ([]string, []string) {
	var topics, entities []string
	for _, a := range affinities {
		if a.Score >= InterestAffinityMin {
			topics = append(topics, a.Topic)
		}
	}
	for _, w := range watchlist {
		if w.Active {
			entities = append(entities, w.Name)
		}
	}
	return topics, entities
}

func recommendation(runID, orgID string, s diversity.ScoredTrend) store.Recommendation {
	r := store.Recommendation{
		RunID:      runID,
		OrgID:      orgID,
		TrendID:    s.Trend.ID,
		Title:      s.Trend.Title,
		Score:      s.Relevance.Score,
		Priority:   string(s.Relevance.Priority),
		Flags:      s.Relevance.Flags.String(),
		SelectedBy: s.SelectedBy,
		Reasons:    s.Relevance.Reasons,
		Decision:   s.Decision,
	}
	if s.Decision != nil {
		r.Tier = string(s.Decision.Tier)
		r.Composite = s.Decision.Composite
	}
	return r
}
