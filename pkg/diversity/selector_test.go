package diversity

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/trendfit/pkg/relevance"
	"github.com/elonfeng/trendfit/pkg/signal"
)

func scored(id string, score int, flags relevance.FlagSet, domains ...string) ScoredTrend {
	return ScoredTrend{
		Trend:     signal.TrendSignal{ID: id, Title: id, Domains: domains},
		Relevance: relevance.Result{Score: score, Flags: flags},
	}
}

func ids(trends []ScoredTrend) []string {
	out := make([]string, len(trends))
	for i, t := range trends {
		out[i] = t.Trend.ID
	}
	return out
}

func assertSortedUnique(t *testing.T, out []ScoredTrend) {
	t.Helper()
	seen := make(map[string]bool)
	for i, s := range out {
		assert.False(t, seen[s.Trend.ID], "duplicate %s", s.Trend.ID)
		seen[s.Trend.ID] = true
		if i > 0 {
			assert.GreaterOrEqual(t, out[i-1].Score(), s.Score())
		}
	}
}

func TestSelect_CoversEveryDeclaredDomain(t *testing.T) {
	domains := []string{"Healthcare", "Education", "Environment", "Labor", "Housing"}
	profile := signal.OrganizationProfile{Domains: domains}

	var batch []ScoredTrend
	for i, d := range domains {
		for j := 0; j < 3; j++ {
			// Healthcare dominates on score; the rest trail far behind.
			score := 10 + j
			if i == 0 {
				score = 90 - j
			}
			batch = append(batch, scored(fmt.Sprintf("%s-%d", d, j), score, 0, d))
		}
	}
	// Plenty of extra high scorers in a single domain.
	for j := 0; j < 10; j++ {
		batch = append(batch, scored(fmt.Sprintf("extra-%d", j), 80, 0, "Healthcare"))
	}

	out := Select(batch, profile, 10, DefaultConfig())

	require.Len(t, out, 10)
	assertSortedUnique(t, out)
	m := ComputeMetrics(out, domains)
	assert.ElementsMatch(t, domains, m.DomainsRepresented)
	assert.Empty(t, m.DomainsMissing)
}

func TestSelect_PlainTopNWouldCollapse(t *testing.T) {
	profile := signal.OrganizationProfile{Domains: []string{"A", "B"}}
	batch := []ScoredTrend{
		scored("a1", 90, 0, "A"),
		scored("a2", 85, 0, "A"),
		scored("a3", 80, 0, "A"),
		scored("b1", 5, 0, "B"),
	}

	out := NewChain(Fill{}).Select(batch, profile, 3)
	assert.Equal(t, []string{"a1", "a2", "a3"}, ids(out))

	out = Select(batch, profile, 3, DefaultConfig())
	assert.Equal(t, []string{"a1", "a2", "b1"}, ids(out))
	assert.Equal(t, "domain_coverage", out[2].SelectedBy)
}

func TestSelect_BreakingCarveOut(t *testing.T) {
	breaking := relevance.FlagSet(0).With(relevance.Breaking)
	batch := []ScoredTrend{
		scored("top1", 95, 0, "X"),
		scored("top2", 94, 0, "X"),
		scored("b-low", 39, breaking, "Y"),
		scored("b1", 45, breaking, "Y"),
		scored("b2", 44, breaking, "Y"),
		scored("b3", 43, breaking, "Y"),
		scored("b4", 42, breaking, "Y"),
	}

	out := Select(batch, signal.OrganizationProfile{}, 4, DefaultConfig())

	assert.Equal(t, []string{"top1", "b1", "b2", "b3"}, ids(out))
	for _, s := range out[1:] {
		assert.Equal(t, "breaking", s.SelectedBy)
	}

	cfg := DefaultConfig()
	cfg.IncludeBreaking = false
	out = Select(batch, signal.OrganizationProfile{}, 4, cfg)
	assert.Equal(t, []string{"top1", "top2", "b1", "b2"}, ids(out))
}

func TestSelect_ExplorationQuota(t *testing.T) {
	newOpp := relevance.FlagSet(0).With(relevance.NewOpportunity)
	var batch []ScoredTrend
	for i := 0; i < 10; i++ {
		batch = append(batch, scored(fmt.Sprintf("hi-%d", i), 90-i, 0))
	}
	for i := 0; i < 5; i++ {
		batch = append(batch, scored(fmt.Sprintf("new-%d", i), 20-i, newOpp))
	}

	out := Select(batch, signal.OrganizationProfile{}, 10, DefaultConfig())

	require.Len(t, out, 10)
	explored := 0
	for _, s := range out {
		if s.Relevance.Flags.Has(relevance.NewOpportunity) {
			explored++
			assert.Equal(t, "exploration", s.SelectedBy)
		}
	}
	// floor(10 * 0.2)
	assert.Equal(t, 2, explored)
	assert.Equal(t, "new-1", out[len(out)-1].Trend.ID)

	cfg := DefaultConfig()
	cfg.EnableExploration = false
	out = Select(batch, signal.OrganizationProfile{}, 10, cfg)
	for _, s := range out {
		assert.False(t, s.Relevance.Flags.Has(relevance.NewOpportunity))
	}
}

func TestSelect_CardinalityAndDuplicates(t *testing.T) {
	batch := []ScoredTrend{
		scored("dup", 50, 0, "A"),
		scored("dup", 70, 0, "A"),
		scored("x", 60, 0, "B"),
		scored("y", 40, 0, "C"),
	}
	profile := signal.OrganizationProfile{Domains: []string{"A", "B", "C"}}

	for n := 0; n <= 6; n++ {
		out := Select(batch, profile, n, DefaultConfig())
		assert.LessOrEqual(t, len(out), n)
		assert.LessOrEqual(t, len(out), 3)
		assertSortedUnique(t, out)
	}

	out := Select(batch, profile, 5, DefaultConfig())
	require.Len(t, out, 3)
	assert.Equal(t, 70, out[0].Score())
}

func TestSelect_EmptyAndNegative(t *testing.T) {
	assert.Empty(t, Select(nil, signal.OrganizationProfile{Domains: []string{"A"}}, 10, DefaultConfig()))
	assert.Empty(t, Select([]ScoredTrend{scored("a", 1, 0)}, signal.OrganizationProfile{}, -1, DefaultConfig()))
}

func TestSelect_UncoveredDomainIsNotAnError(t *testing.T) {
	profile := signal.OrganizationProfile{Domains: []string{"A", "Missing"}}
	batch := []ScoredTrend{scored("a1", 30, 0, "A"), scored("a2", 20, 0, "A")}

	out := Select(batch, profile, 5, DefaultConfig())
	assert.Equal(t, []string{"a1", "a2"}, ids(out))
	assert.Equal(t, []string{"Missing"}, ComputeMetrics(out, profile.Domains).DomainsMissing)
}

func TestSelect_DoesNotMutateInput(t *testing.T) {
	batch := []ScoredTrend{scored("low", 1, 0), scored("high", 99, 0)}
	_ = Select(batch, signal.OrganizationProfile{}, 2, DefaultConfig())
	assert.Equal(t, []string{"low", "high"}, ids(batch))
	assert.Empty(t, batch[0].SelectedBy)
}

func TestSelectorStrategiesOrder(t *testing.T) {
	var names []string
	for _, s := range NewSelector(DefaultConfig()).Strategies() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"breaking", "domain_coverage", "exploration", "fill"}, names)
}
