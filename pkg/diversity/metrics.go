package diversity

import (
	"math"
	"strings"

	"github.com/elonfeng/trendfit/pkg/relevance"
)

// ExplorationTarget is the share of new-opportunity trends that earns full
// exploration credit in the diversity score.
const ExplorationTarget = 0.2

const (
	weightCoverage    = 0.5
	weightExploration = 0.2
	weightBalance     = 0.3
)

// Metrics audits a selection against the declared domains.
type Metrics struct {
	TotalTrends         int      `json:"total_trends"`
	UniqueDomains       int      `json:"unique_domains"`
	DomainsRepresented  []string `json:"domains_represented"`
	DomainsMissing      []string `json:"domains_missing"`
	NewOpportunityCount int      `json:"new_opportunity_count"`
	ProvenTopicCount    int      `json:"proven_topic_count"`
	CoverageRatio       float64  `json:"coverage_ratio"`
	ExplorationRatio    float64  `json:"exploration_ratio"`
	BalanceScore        float64  `json:"balance_score"`
	DiversityScore      int      `json:"diversity_score"`
}

// ComputeMetrics aggregates selected. An empty selection yields zero counts
// and a zero score, with every declared domain reported missing.
func ComputeMetrics(selected []ScoredTrend, declaredDomains []string) Metrics {
	declared := dedupeFold(declaredDomains)
	m := Metrics{
		TotalTrends:        len(selected),
		DomainsRepresented: []string{},
		DomainsMissing:     []string{},
	}
	if len(selected) == 0 {
		m.DomainsMissing = append(m.DomainsMissing, declared...)
		return m
	}

	unique := make(map[string]bool)
	for _, t := range selected {
		for _, d := range t.Trend.Domains {
			if k := strings.ToLower(strings.TrimSpace(d)); k != "" {
				unique[k] = true
			}
		}
		if t.Relevance.Flags.Has(relevance.NewOpportunity) {
			m.NewOpportunityCount++
		}
		if t.Relevance.Flags.Has(relevance.ProvenTopic) {
			m.ProvenTopicCount++
		}
	}
	m.UniqueDomains = len(unique)

	counts := make([]int, len(declared))
	for i, d := range declared {
		for _, t := range selected {
			if t.Trend.HasDomain(d) {
				counts[i]++
			}
		}
		if counts[i] > 0 {
			m.DomainsRepresented = append(m.DomainsRepresented, d)
		} else {
			m.DomainsMissing = append(m.DomainsMissing, d)
		}
	}

	m.CoverageRatio = 1
	if len(declared) > 0 {
		m.CoverageRatio = float64(len(m.DomainsRepresented)) / float64(len(declared))
	}
	m.ExplorationRatio = float64(m.NewOpportunityCount) / float64(m.TotalTrends)
	m.BalanceScore = balance(counts, len(declared))

	capped := math.Min(m.ExplorationRatio/ExplorationTarget, 1)
	raw := 100 * (m.CoverageRatio*weightCoverage + capped*weightExploration + m.BalanceScore*weightBalance)
	m.DiversityScore = max(0, min(100, int(math.Round(raw))))
	return m
}

// balance is 1 - (max-min)/max over the per-domain counts. No declared
// domains counts as perfectly balanced; declared domains with no picks as 0.
func balance(counts []int, declared int) float64 {
	if declared == 0 {
		return 1
	}
	lo, hi := counts[0], counts[0]
	for _, c := range counts[1:] {
		lo = min(lo, c)
		hi = max(hi, c)
	}
	if hi == 0 {
		return 0
	}
	return 1 - float64(hi-lo)/float64(hi)
}

func dedupeFold(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		k := strings.ToLower(v)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}
