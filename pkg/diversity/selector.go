// Package diversity reduces a scored batch of trends to a bounded
// recommendation set that covers the organization's declared domains and
// reserves room for untried topics, instead of a plain top-N by score.
package diversity

import (
	"math"
	"sort"

	"github.com/elonfeng/trendfit/pkg/decision"
	"github.com/elonfeng/trendfit/pkg/relevance"
	"github.com/elonfeng/trendfit/pkg/signal"
)

// ScoredTrend is a trend with its relevance result for one organization.
type ScoredTrend struct {
	Trend     signal.TrendSignal `json:"trend"`
	Relevance relevance.Result   `json:"relevance"`
	Decision  *decision.Result   `json:"decision,omitempty"`

	// SelectedBy names the strategy that picked the trend.
	SelectedBy string `json:"selected_by,omitempty"`
}

// Score is the relevance score.
func (s ScoredTrend) Score() int { return s.Relevance.Score }

// Config toggles the optional phases.
type Config struct {
	IncludeBreaking   bool
	MaxBreaking       int
	BreakingMinScore  int
	EnableExploration bool
	ExplorationRatio  float64
}

// DefaultConfig enables every phase with the standard quotas.
func DefaultConfig() Config {
	return Config{
		IncludeBreaking:   true,
		MaxBreaking:       3,
		BreakingMinScore:  40,
		EnableExploration: true,
		ExplorationRatio:  0.2,
	}
}

// Selector runs its strategies in order over a shared Selection.
type Selector struct {
	strategies []Strategy
}

// NewSelector builds the standard chain: breaking, domain coverage,
// exploration, fill. Disabled phases are left out of the chain.
func NewSelector(cfg Config) *Selector {
	var chain []Strategy
	if cfg.IncludeBreaking {
		chain = append(chain, BreakingCarveOut{Max: cfg.MaxBreaking, MinScore: cfg.BreakingMinScore})
	}
	chain = append(chain, DomainCoverage{})
	if cfg.EnableExploration {
		chain = append(chain, Exploration{Ratio: cfg.ExplorationRatio})
	}
	chain = append(chain, Fill{})
	return NewChain(chain...)
}

// NewChain builds a selector from an explicit strategy order.
func NewChain(strategies ...Strategy) *Selector {
	return &Selector{strategies: strategies}
}

// Strategies returns the chain in execution order.
func (s *Selector) Strategies() []Strategy {
	return s.strategies
}

// Select returns at most maxCount distinct trends, sorted by score descending.
func (s *Selector) Select(trends []ScoredTrend, profile signal.OrganizationProfile, maxCount int) []ScoredTrend {
	sel := newSelection(trends, profile, maxCount)
	for _, st := range s.strategies {
		if sel.Full() {
			break
		}
		st.Apply(sel)
	}

	out := sel.Selected()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score() > out[j].Score()
	})
	return out
}

// Select runs the standard chain for cfg.
func Select(trends []ScoredTrend, profile signal.OrganizationProfile, maxCount int, cfg Config) []ScoredTrend {
	return NewSelector(cfg).Select(trends, profile, maxCount)
}

// Selection is the state shared by strategies: the unselected pool, ordered
// by score descending, and the picks so far.
type Selection struct {
	Profile  signal.OrganizationProfile
	MaxCount int

	pool   []ScoredTrend
	picked []ScoredTrend
	taken  map[string]bool
}

func newSelection(trends []ScoredTrend, profile signal.OrganizationProfile, maxCount int) *Selection {
	pool := make([]ScoredTrend, len(trends))
	copy(pool, trends)
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].Score() > pool[j].Score()
	})

	// Keep the best-scored copy of a repeated ID.
	seen := make(map[string]bool, len(pool))
	uniq := pool[:0]
	for _, t := range pool {
		if seen[t.Trend.ID] {
			continue
		}
		seen[t.Trend.ID] = true
		uniq = append(uniq, t)
	}

	return &Selection{
		Profile:  profile,
		MaxCount: max(maxCount, 0),
		pool:     uniq,
		taken:    make(map[string]bool),
	}
}

// Full reports whether MaxCount trends have been picked.
func (s *Selection) Full() bool {
	return len(s.picked) >= s.MaxCount
}

// Remaining returns the unpicked candidates, best first.
func (s *Selection) Remaining() []ScoredTrend {
	out := make([]ScoredTrend, 0, len(s.pool))
	for _, t := range s.pool {
		if !s.taken[t.Trend.ID] {
			out = append(out, t)
		}
	}
	return out
}

// Selected returns a copy of the picks in pick order.
func (s *Selection) Selected() []ScoredTrend {
	out := make([]ScoredTrend, len(s.picked))
	copy(out, s.picked)
	return out
}

// Take picks the trend with id on behalf of strategy. It refuses when the
// selection is full, the id is unknown, or it was already picked.
func (s *Selection) Take(id, strategy string) bool {
	if s.Full() || s.taken[id] {
		return false
	}
	for _, t := range s.pool {
		if t.Trend.ID == id {
			t.SelectedBy = strategy
			s.picked = append(s.picked, t)
			s.taken[id] = true
			return true
		}
	}
	return false
}

// Covers reports whether a picked trend is tagged with domain.
func (s *Selection) Covers(domain string) bool {
	for _, t := range s.picked {
		if t.Trend.HasDomain(domain) {
			return true
		}
	}
	return false
}

func explorationQuota(maxCount int, ratio float64) int {
	if ratio <= 0 {
		return 0
	}
	return int(math.Floor(float64(maxCount) * ratio))
}
