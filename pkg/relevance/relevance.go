// Package relevance scores how well a trend signal fits one organization.
//
// The score is a sum of independently capped factors. Profile-declared intent
// (domains, focus areas, watchlist) can reach 70 points; learned affinity is
// capped at 20 so history never outweighs what the organization asked for.
package relevance

import (
	"fmt"
	"math"
	"strings"

	"github.com/elonfeng/trendfit/pkg/signal"
	"github.com/elonfeng/trendfit/pkg/textmatch"
)

// Priority is the coarse bucket derived from the score.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

const (
	domainPoints   = 12
	domainCap      = 35
	focusPoints    = 10
	focusCap       = 20
	entityPoints   = 8
	entityCap      = 15
	affinityScale  = 25
	affinityCap    = 20
	explorationPts = 10
	geoPoints      = 5
	breakingPoints = 5

	// Breaking news only counts once the trend is already somewhat relevant.
	breakingFloor = 20

	highThreshold   = 55
	mediumThreshold = 30
)

// Result explains a relevance score.
type Result struct {
	Score           int      `json:"score"`
	Reasons         []string `json:"reasons"`
	Flags           FlagSet  `json:"flags"`
	MatchedDomains  []string `json:"matched_domains"`
	MatchedEntities []string `json:"matched_entities"`
	Priority        Priority `json:"priority"`
}

// Score computes the fit between trend and the organization. It is pure and
// deterministic; missing profile data contributes zero points.
func Score(
	trend signal.TrendSignal,
	profile signal.OrganizationProfile,
	watchlist []signal.WatchlistEntity,
	affinities []signal.TopicAffinity,
) Result {
	var r Result
	total := 0

	add := func(points int, reason string) {
		total += points
		r.Reasons = append(r.Reasons, reason)
	}

	// 1. Policy domains.
	r.MatchedDomains = matchDomains(trend.Domains, profile.Domains)
	if n := len(r.MatchedDomains); n > 0 {
		pts := min(n*domainPoints, domainCap)
		add(pts, fmt.Sprintf("Policy domain match: %s (+%d)", strings.Join(r.MatchedDomains, ", "), pts))
	}

	// 2. Focus areas against title and context.
	text := trend.Text()
	var focus []string
	for _, area := range profile.FocusAreas {
		if textmatch.ContainsPhrase(text, area) {
			focus = append(focus, area)
		}
	}
	if n := len(focus); n > 0 {
		pts := min(n*focusPoints, focusCap)
		add(pts, fmt.Sprintf("Focus area match: %s (+%d)", strings.Join(focus, ", "), pts))
	}

	// 3. Watchlist.
	r.MatchedEntities = matchWatchlist(trend, watchlist)
	if n := len(r.MatchedEntities); n > 0 {
		pts := min(n*entityPoints, entityCap)
		add(pts, fmt.Sprintf("Watchlist entity mentioned: %s (+%d)", strings.Join(r.MatchedEntities, ", "), pts))
		r.Flags = r.Flags.With(WatchlistMatch)
	}

	// 4. Learned affinity, averaged over every matched topic.
	if m := matchAffinities(trend, affinities); len(m.topics) > 0 {
		if m.proven {
			r.Flags = r.Flags.With(ProvenTopic)
		}
		pts := min(int(math.Round(m.avg*affinityScale)), affinityCap)
		if pts > 0 {
			add(pts, fmt.Sprintf("Topic affinity: %s, avg %.2f (+%d)", strings.Join(m.topics, ", "), m.avg, pts))
		}
	}

	// 5. Exploration of declared but untried domains.
	if untried := untriedDomains(r.MatchedDomains, affinities); len(untried) > 0 {
		add(explorationPts, fmt.Sprintf("Exploration bonus: untried declared domain %s (+%d)", strings.Join(untried, ", "), explorationPts))
		r.Flags = r.Flags.With(NewOpportunity)
	}

	// 6. Geography.
	if reason, ok := geographyMatch(trend, profile); ok {
		add(geoPoints, fmt.Sprintf("%s (+%d)", reason, geoPoints))
	}

	// 7. Breaking news.
	if trend.Breaking && total >= breakingFloor {
		add(breakingPoints, fmt.Sprintf("Breaking news (+%d)", breakingPoints))
		r.Flags = r.Flags.With(Breaking)
	}

	r.Score = clamp(total)
	r.Priority = PriorityFor(r.Score)
	return r
}

// PriorityFor maps a score to its priority bucket.
func PriorityFor(score int) Priority {
	switch {
	case score >= highThreshold:
		return PriorityHigh
	case score >= mediumThreshold:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

func matchDomains(trendDomains, declared []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, d := range trendDomains {
		key := strings.ToLower(strings.TrimSpace(d))
		if key == "" || seen[key] {
			continue
		}
		for _, p := range declared {
			if strings.EqualFold(strings.TrimSpace(p), key) {
				seen[key] = true
				out = append(out, d)
				break
			}
		}
	}
	return out
}

func matchWatchlist(trend signal.TrendSignal, watchlist []signal.WatchlistEntity) []string {
	candidates := append(trend.Entities(), trend.ContextTerms...)
	var out []string
	for _, e := range watchlist {
		if !e.Active {
			continue
		}
		for _, c := range candidates {
			if textmatch.Fuzzy(e.Name, c) {
				out = append(out, e.Name)
				break
			}
		}
	}
	return out
}

type affinityMatch struct {
	topics []string
	avg    float64
	proven bool // at least one matched topic has MinProvenUses uses
}

func matchAffinities(trend signal.TrendSignal, affinities []signal.TopicAffinity) affinityMatch {
	var (
		m    affinityMatch
		sum  float64
		seen = make(map[string]bool)
	)
	for _, a := range affinities {
		key := strings.ToLower(a.Topic)
		if seen[key] || !affinityMatches(trend, a.Topic) {
			continue
		}
		seen[key] = true
		m.topics = append(m.topics, a.Topic)
		m.proven = m.proven || a.Proven()
		sum += math.Max(0, math.Min(1, a.Score))
	}
	if len(m.topics) > 0 {
		m.avg = sum / float64(len(m.topics))
	}
	return m
}

func affinityMatches(trend signal.TrendSignal, topic string) bool {
	if trend.HasDomain(topic) {
		return true
	}
	for _, term := range trend.ContextTerms {
		if textmatch.ContainsPhrase(term, topic) {
			return true
		}
	}
	return false
}

// untriedDomains returns matched domains that have affinity history with
// fewer than MinProvenUses uses.
func untriedDomains(matched []string, affinities []signal.TopicAffinity) []string {
	var out []string
	for _, d := range matched {
		for _, a := range affinities {
			if strings.EqualFold(a.Topic, d) && !a.Proven() {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

func geographyMatch(trend signal.TrendSignal, profile signal.OrganizationProfile) (string, bool) {
	for _, g := range profile.Geographies {
		for _, tg := range trend.Geographies {
			if strings.EqualFold(strings.TrimSpace(g), strings.TrimSpace(tg)) {
				return "Geography match: " + tg, true
			}
		}
	}
	if trend.GeoLevel == signal.GeoNational && profile.GeoSensitivity == signal.GeoNational {
		return "National scope matches organization reach", true
	}
	return "", false
}

func clamp(v int) int {
	return max(0, min(100, v))
}
