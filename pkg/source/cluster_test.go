package source

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCluster(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	entries := []Entry{
		{Feed: "NPR", Title: "Senate passes rail safety bill", PublishedAt: now.Add(-3 * time.Hour)},
		{Feed: "Politico", Title: "Rail safety bill passes Senate after long fight", PublishedAt: now.Add(-time.Hour), Categories: []string{"Transportation"}},
		{Feed: "NPR", Title: "Senate rail safety bill heads to House", PublishedAt: now.Add(-2 * time.Hour)},
		{Feed: "The Hill", Title: "Drought hits Kansas wheat farmers", PublishedAt: now.Add(-30 * time.Minute)},
	}

	sigs := Cluster(entries, now)
	require.Len(t, sigs, 2)

	rail := sigs[0]
	assert.Equal(t, "Rail safety bill passes Senate after long fight", rail.Title)
	assert.Equal(t, 3, rail.Momentum.Mentions)
	assert.Equal(t, []string{"NPR", "Politico"}, rail.Momentum.SourceTypes)
	assert.Equal(t, 3, rail.Momentum.SourceMentions)
	assert.True(t, now.Add(-3*time.Hour).Equal(rail.Momentum.DetectedAt))
	assert.Contains(t, rail.ContextTerms, "transportation")
	assert.Contains(t, rail.ContextTerms, "rail")
	assert.Empty(t, rail.Domains)

	assert.Equal(t, "Drought hits Kansas wheat farmers", sigs[1].Title)
	assert.Equal(t, 1, sigs[1].Momentum.Mentions)
}

func TestClusterCountsEveryMention(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	var entries []Entry
	for i := 0; i < 12; i++ {
		entries = append(entries, Entry{
			Feed:        "NPR",
			Title:       "Ohio rent freeze bill advances",
			PublishedAt: now.Add(-time.Duration(i+1) * time.Minute),
		})
	}

	sigs := Cluster(entries, now)
	require.Len(t, sigs, 1)
	assert.Equal(t, 12, sigs[0].Momentum.Mentions)
	assert.Equal(t, 12, sigs[0].Momentum.SourceMentions)
	assert.Equal(t, []string{"NPR"}, sigs[0].Momentum.SourceTypes)
}

func TestClusterEmpty(t *testing.T) {
	assert.Nil(t, Cluster(nil, time.Now()))
}

func TestSignalIDStable(t *testing.T) {
	a := SignalID("Senate passes the rail bill")
	b := SignalID("rail bill: Senate passes")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, SignalID("House passes the rail bill"))
	assert.Len(t, a, 36)
}
