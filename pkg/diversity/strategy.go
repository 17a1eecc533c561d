package diversity

import "github.com/elonfeng/trendfit/pkg/relevance"

// Strategy is one phase of the selection chain. Apply picks from the
// remaining pool and must stop once the selection is full.
type Strategy interface {
	Name() string
	Apply(s *Selection)
}

// BreakingCarveOut picks up to Max breaking trends scoring at least MinScore.
type BreakingCarveOut struct {
	Max      int
	MinScore int
}

func (BreakingCarveOut) Name() string { return "breaking" }

func (b BreakingCarveOut) Apply(s *Selection) {
	n := 0
	for _, t := range s.Remaining() {
		if n >= b.Max || s.Full() {
			return
		}
		if t.Relevance.Flags.Has(relevance.Breaking) && t.Score() >= b.MinScore {
			if s.Take(t.Trend.ID, b.Name()) {
				n++
			}
		}
	}
}

// DomainCoverage picks the best remaining trend for every declared domain
// that no pick covers yet. Domains without candidates stay uncovered.
type DomainCoverage struct{}

func (DomainCoverage) Name() string { return "domain_coverage" }

func (d DomainCoverage) Apply(s *Selection) {
	for _, domain := range s.Profile.Domains {
		if s.Full() {
			return
		}
		if s.Covers(domain) {
			continue
		}
		for _, t := range s.Remaining() {
			if t.Trend.HasDomain(domain) {
				s.Take(t.Trend.ID, d.Name())
				break
			}
		}
	}
}

// Exploration picks up to floor(MaxCount*Ratio) new-opportunity trends.
type Exploration struct {
	Ratio float64
}

func (Exploration) Name() string { return "exploration" }

func (e Exploration) Apply(s *Selection) {
	quota := explorationQuota(s.MaxCount, e.Ratio)
	n := 0
	for _, t := range s.Remaining() {
		if n >= quota || s.Full() {
			return
		}
		if t.Relevance.Flags.Has(relevance.NewOpportunity) && s.Take(t.Trend.ID, e.Name()) {
			n++
		}
	}
}

// Fill tops the selection up by score.
type Fill struct{}

func (Fill) Name() string { return "fill" }

func (f Fill) Apply(s *Selection) {
	for _, t := range s.Remaining() {
		if !s.Take(t.Trend.ID, f.Name()) {
			return
		}
	}
}
