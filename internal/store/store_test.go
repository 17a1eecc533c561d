package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/trendfit/pkg/decision"
	"github.com/elonfeng/trendfit/pkg/diversity"
	"github.com/elonfeng/trendfit/pkg/signal"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOrganizationRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := &signal.OrganizationProfile{
		ID:             "acme",
		Name:           "Acme Advocacy",
		OrgType:        "nonprofit",
		FocusAreas:     []string{"clean energy"},
		Domains:        []string{"Environment", "Energy"},
		Geographies:    []string{"Ohio"},
		GeoSensitivity: signal.GeoState,
	}
	require.NoError(t, s.UpsertOrganization(ctx, p))

	got, err := s.GetOrganization(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, p.Domains, got.Domains)
	assert.Equal(t, []string{}, got.KeyIssues)
	assert.Equal(t, signal.GeoState, got.GeoSensitivity)

	p.Name = "Acme"
	require.NoError(t, s.UpsertOrganization(ctx, p))
	orgs, err := s.ListOrganizations(ctx)
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	assert.Equal(t, "Acme", orgs[0].Name)

	_, err = s.GetOrganization(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWatchlistAndAffinities(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertOrganization(ctx, &signal.OrganizationProfile{ID: "acme"}))

	require.NoError(t, s.ReplaceWatchlist(ctx, "acme", []signal.WatchlistEntity{
		{Name: "Jane Smith", Type: "politician", Active: true},
		{Name: "HB 101", Type: "legislation", Active: false},
	}))
	require.NoError(t, s.ReplaceWatchlist(ctx, "acme", []signal.WatchlistEntity{
		{Name: "Jane Smith", Type: "politician", Active: true},
	}))
	wl, err := s.ListWatchlist(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, []signal.WatchlistEntity{{Name: "Jane Smith", Type: "politician", Active: true}}, wl)

	affs := []signal.TopicAffinity{
		{Topic: "wind power", Score: 0.8, TimesUsed: 3, AvgPerformance: 0.5, Source: signal.AffinityLearned},
		{Topic: "air quality", Score: 0.2, TimesUsed: 0, Source: signal.AffinitySelfDeclared},
	}
	require.NoError(t, s.ReplaceAffinities(ctx, "acme", affs))
	got, err := s.ListAffinities(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "air quality", got[0].Topic)
	assert.Equal(t, signal.AffinityLearned, got[1].Source)
	assert.True(t, got[1].Proven())
}

func TestSignalsAndSnapshots(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	older := time.Now().Add(-3 * time.Hour).UTC().Truncate(time.Second)
	newer := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	sigs := []signal.TrendSignal{
		{ID: "s1", Title: "Old story", Domains: []string{"Labor"}, Momentum: signal.Momentum{Mentions: 3, DetectedAt: older}},
		{ID: "s2", Title: "New story", Breaking: true, Momentum: signal.Momentum{Mentions: 7, DetectedAt: newer}},
	}
	require.NoError(t, s.UpsertSignals(ctx, sigs))
	require.NoError(t, s.UpsertSignals(ctx, sigs[:1]))

	got, err := s.ListSignals(ctx, SignalListOpts{Since: time.Now().Add(-time.Minute)})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "s2", got[0].ID)
	assert.True(t, got[0].Breaking)
	assert.Equal(t, []string{"Labor"}, got[1].Domains)
	assert.True(t, older.Equal(got[1].Momentum.DetectedAt))

	_, err = s.LatestSnapshot(ctx, "s1", time.Now().Add(time.Minute))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.AddSnapshot(ctx, "s1", 3))
	require.NoError(t, s.AddSnapshot(ctx, "s1", 5))
	snap, err := s.LatestSnapshot(ctx, "s1", time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 5, snap.Mentions)
}

func TestRecommendationsLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := time.Now().Add(-time.Hour).UTC()
	require.NoError(t, s.SaveRecommendations(ctx, []Recommendation{
		{RunID: "r1", OrgID: "acme", TrendID: "old", Score: 90, CreatedAt: first},
	}))
	require.NoError(t, s.SaveDiversityReport(ctx, &DiversityReport{RunID: "r1", OrgID: "acme", CreatedAt: first}))

	recs := []Recommendation{
		{RunID: "r2", OrgID: "acme", TrendID: "t1", Score: 40, Reasons: []string{"Breaking news (+5)"}},
		{
			RunID: "r2", OrgID: "acme", TrendID: "t2", Score: 70,
			Tier: string(decision.TierActNow), Composite: 80,
			Decision: &decision.Result{TrendID: "t2", Composite: 80, Tier: decision.TierActNow},
		},
	}
	require.NoError(t, s.SaveRecommendations(ctx, recs))
	require.NoError(t, s.SaveDiversityReport(ctx, &DiversityReport{RunID: "r2", OrgID: "acme"}))
	assert.NotZero(t, recs[1].ID)

	latest, err := s.LatestRecommendations(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "t2", latest[0].TrendID)
	require.NotNil(t, latest[0].Decision)
	assert.Equal(t, decision.TierActNow, latest[0].Decision.Tier)
	assert.Equal(t, []string{"Breaking news (+5)"}, latest[1].Reasons)
	assert.Nil(t, latest[1].Decision)

	pending, err := s.ListUnalertedActNow(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NoError(t, s.MarkAlerted(ctx, pending[0].ID))
	pending, err = s.ListUnalertedActNow(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestLatestRecommendationsFollowsLatestRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	latest, err := s.LatestRecommendations(ctx, "acme")
	require.NoError(t, err)
	assert.Empty(t, latest)

	first := time.Now().Add(-time.Hour).UTC()
	require.NoError(t, s.SaveRecommendations(ctx, []Recommendation{
		{RunID: "r1", OrgID: "acme", TrendID: "old", Score: 90, CreatedAt: first},
	}))
	require.NoError(t, s.SaveDiversityReport(ctx, &DiversityReport{RunID: "r1", OrgID: "acme", CreatedAt: first}))

	latest, err = s.LatestRecommendations(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, latest, 1)

	// r2 selected nothing: only its report is written.
	require.NoError(t, s.SaveRecommendations(ctx, nil))
	require.NoError(t, s.SaveDiversityReport(ctx, &DiversityReport{RunID: "r2", OrgID: "acme"}))

	latest, err = s.LatestRecommendations(ctx, "acme")
	require.NoError(t, err)
	assert.Empty(t, latest)
}

func TestActNowAlertedOncePerTrend(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	actNow := func(run string) Recommendation {
		return Recommendation{RunID: run, OrgID: "acme", TrendID: "hot", Score: 70,
			Tier: string(decision.TierActNow), Composite: 81}
	}

	require.NoError(t, s.SaveRecommendations(ctx, []Recommendation{actNow("r1")}))
	require.NoError(t, s.SaveRecommendations(ctx, []Recommendation{actNow("r2")}))

	pending, err := s.ListUnalertedActNow(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1, "one row per org and trend")
	assert.Equal(t, "r2", pending[0].RunID)
	require.NoError(t, s.MarkAlerted(ctx, pending[0].ID))

	require.NoError(t, s.SaveRecommendations(ctx, []Recommendation{actNow("r3")}))
	pending, err = s.ListUnalertedActNow(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	other := actNow("r3")
	other.OrgID = "beta"
	require.NoError(t, s.SaveRecommendations(ctx, []Recommendation{other}))
	pending, err = s.ListUnalertedActNow(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "beta", pending[0].OrgID)
}

func TestDiversityReports(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.LatestDiversityReport(ctx, "acme")
	assert.ErrorIs(t, err, ErrNotFound)

	r := &DiversityReport{
		RunID: "r1",
		OrgID: "acme",
		Metrics: diversity.Metrics{
			TotalTrends:        2,
			DomainsRepresented: []string{"Labor"},
			DomainsMissing:     []string{"Housing"},
			DiversityScore:     55,
		},
	}
	require.NoError(t, s.SaveDiversityReport(ctx, r))

	got, err := s.LatestDiversityReport(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 55, got.DiversityScore)
	assert.Equal(t, []string{"Housing"}, got.Metrics.DomainsMissing)
}
