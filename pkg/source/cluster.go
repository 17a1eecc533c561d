package source

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/elonfeng/trendfit/pkg/signal"
	"github.com/elonfeng/trendfit/pkg/textmatch"
)

// ClusterThreshold is the title similarity from which two entries are
// treated as the same story.
const ClusterThreshold = 0.3

const maxContextTerms = 20

// Cluster groups entries with similar titles and turns each group into an
// untagged TrendSignal. The result is ordered by mention count, then title.
func Cluster(entries []Entry, now time.Time) []signal.TrendSignal {
	n := len(entries)
	if n == 0 {
		return nil
	}

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(x, y int) {
		px, py := find(x), find(y)
		if px != py {
			parent[px] = py
		}
	}

	tokens := make([][]string, n)
	for i, e := range entries {
		tokens[i] = textmatch.SignificantTokens(e.Title)
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if textmatch.Jaccard(tokens[i], tokens[j]) >= ClusterThreshold {
				union(i, j)
			}
		}
	}

	groups := make(map[int][]int)
	var roots []int
	for i := 0; i < n; i++ {
		root := find(i)
		if _, ok := groups[root]; !ok {
			roots = append(roots, root)
		}
		groups[root] = append(groups[root], i)
	}

	out := make([]signal.TrendSignal, 0, len(roots))
	for _, root := range roots {
		out = append(out, buildSignal(entries, groups[root], now))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Momentum.Mentions != out[j].Momentum.Mentions {
			return out[i].Momentum.Mentions > out[j].Momentum.Mentions
		}
		return out[i].Title < out[j].Title
	})
	return out
}

func buildSignal(entries []Entry, idx []int, now time.Time) signal.TrendSignal {
	// The most recent entry names the story; the earliest dates it.
	rep := entries[idx[0]]
	detected := rep.PublishedAt
	feeds := make(map[string]bool)
	terms := make(map[string]bool)
	var termList []string
	addTerm := func(t string) {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || terms[t] || len(termList) >= maxContextTerms {
			return
		}
		terms[t] = true
		termList = append(termList, t)
	}

	for _, i := range idx {
		e := entries[i]
		if e.PublishedAt.After(rep.PublishedAt) {
			rep = e
		}
		if !e.PublishedAt.IsZero() && (detected.IsZero() || e.PublishedAt.Before(detected)) {
			detected = e.PublishedAt
		}
		feeds[e.Feed] = true
	}
	for _, i := range idx {
		for _, t := range textmatch.SignificantTokens(entries[i].Title) {
			addTerm(t)
		}
		for _, c := range entries[i].Categories {
			addTerm(c)
		}
	}

	sourceTypes := make([]string, 0, len(feeds))
	for f := range feeds {
		if f != "" {
			sourceTypes = append(sourceTypes, f)
		}
	}
	sort.Strings(sourceTypes)

	if detected.IsZero() {
		detected = now.UTC()
	}

	return signal.TrendSignal{
		ID:           SignalID(rep.Title),
		Title:        rep.Title,
		ContextTerms: termList,
		Momentum: signal.Momentum{
			Mentions:       len(idx),
			SourceTypes:    sourceTypes,
			SourceMentions: len(idx),
			DetectedAt:     detected,
		},
	}
}

// SignalID derives a stable ID from the wording of a title, so the same story
// collected twice keeps its ID.
func SignalID(title string) string {
	key := textmatch.Key(title)
	if key == "" {
		key = strings.ToLower(strings.TrimSpace(title))
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("trendfit:"+key)).String()
}
