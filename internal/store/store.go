package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/elonfeng/trendfit/pkg/decision"
	"github.com/elonfeng/trendfit/pkg/diversity"
	"github.com/elonfeng/trendfit/pkg/signal"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Snapshot records the mention count of a signal at one collection.
type Snapshot struct {
	ID        int64     `db:"id"`
	SignalID  string    `db:"signal_id"`
	Mentions  int       `db:"mentions"`
	CheckedAt time.Time `db:"checked_at"`
}

// Recommendation is one persisted pick of a selection run.
type Recommendation struct {
	ID           int64            `db:"id" json:"id"`
	RunID        string           `db:"run_id" json:"run_id"`
	OrgID        string           `db:"org_id" json:"org_id"`
	TrendID      string           `db:"trend_id" json:"trend_id"`
	Title        string           `db:"title" json:"title"`
	Score        int              `db:"score" json:"score"`
	Priority     string           `db:"priority" json:"priority"`
	Flags        string           `db:"flags" json:"flags"`
	SelectedBy   string           `db:"selected_by" json:"selected_by"`
	ReasonsJSON  string           `db:"reasons" json:"-"`
	Reasons      []string         `db:"-" json:"reasons"`
	Tier         string           `db:"tier" json:"tier,omitempty"`
	Composite    int              `db:"composite" json:"composite,omitempty"`
	DecisionJSON string           `db:"decision" json:"-"`
	Decision     *decision.Result `db:"-" json:"decision,omitempty"`
	Alerted      bool             `db:"alerted" json:"alerted"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
}

// DiversityReport is the metrics audit of one selection run.
type DiversityReport struct {
	ID             int64             `db:"id" json:"id"`
	RunID          string            `db:"run_id" json:"run_id"`
	OrgID          string            `db:"org_id" json:"org_id"`
	DiversityScore int               `db:"diversity_score" json:"diversity_score"`
	MetricsJSON    string            `db:"metrics" json:"-"`
	Metrics        diversity.Metrics `db:"-" json:"metrics"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
}

// SignalListOpts controls signal listing.
type SignalListOpts struct {
	Since time.Time
	Limit int
}

// Store is the persistence interface.
type Store interface {
	UpsertOrganization(ctx context.Context, p *signal.OrganizationProfile) error
	GetOrganization(ctx context.Context, id string) (*signal.OrganizationProfile, error)
	ListOrganizations(ctx context.Context) ([]signal.OrganizationProfile, error)
	ReplaceWatchlist(ctx context.Context, orgID string, entities []signal.WatchlistEntity) error
	ListWatchlist(ctx context.Context, orgID string) ([]signal.WatchlistEntity, error)
	ReplaceAffinities(ctx context.Context, orgID string, affinities []signal.TopicAffinity) error
	ListAffinities(ctx context.Context, orgID string) ([]signal.TopicAffinity, error)

	UpsertSignals(ctx context.Context, signals []signal.TrendSignal) error
	ListSignals(ctx context.Context, opts SignalListOpts) ([]signal.TrendSignal, error)
	AddSnapshot(ctx context.Context, signalID string, mentions int) error
	LatestSnapshot(ctx context.Context, signalID string, before time.Time) (*Snapshot, error)

	SaveRecommendations(ctx context.Context, recs []Recommendation) error
	LatestRecommendations(ctx context.Context, orgID string) ([]Recommendation, error)
	ListUnalertedActNow(ctx context.Context) ([]Recommendation, error)
	MarkAlerted(ctx context.Context, recID int64) error
	SaveDiversityReport(ctx context.Context, r *DiversityReport) error
	LatestDiversityReport(ctx context.Context, orgID string) (*DiversityReport, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type orgRow struct {
	ID             string    `db:"id"`
	Name           string    `db:"name"`
	OrgType        string    `db:"org_type"`
	Mission        string    `db:"mission"`
	FocusAreas     string    `db:"focus_areas"`
	KeyIssues      string    `db:"key_issues"`
	Domains        string    `db:"domains"`
	Geographies    string    `db:"geographies"`
	GeoSensitivity string    `db:"geo_sensitivity"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (r orgRow) profile() signal.OrganizationProfile {
	p := signal.OrganizationProfile{
		ID:             r.ID,
		Name:           r.Name,
		OrgType:        r.OrgType,
		Mission:        r.Mission,
		GeoSensitivity: signal.ParseGeoLevel(r.GeoSensitivity),
	}
	json.Unmarshal([]byte(r.FocusAreas), &p.FocusAreas)
	json.Unmarshal([]byte(r.KeyIssues), &p.KeyIssues)
	json.Unmarshal([]byte(r.Domains), &p.Domains)
	json.Unmarshal([]byte(r.Geographies), &p.Geographies)
	return p
}

func jsonText(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func (s *SQLiteStore) UpsertOrganization(ctx context.Context, p *signal.OrganizationProfile) error {
	if p.ID == "" {
		return errors.New("upsert organization: empty id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO organizations (id, name, org_type, mission, focus_areas, key_issues, domains, geographies, geo_sensitivity, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			org_type = excluded.org_type,
			mission = excluded.mission,
			focus_areas = excluded.focus_areas,
			key_issues = excluded.key_issues,
			domains = excluded.domains,
			geographies = excluded.geographies,
			geo_sensitivity = excluded.geo_sensitivity,
			updated_at = excluded.updated_at
	`, p.ID, p.Name, p.OrgType, p.Mission,
		jsonText(nonNil(p.FocusAreas)), jsonText(nonNil(p.KeyIssues)),
		jsonText(nonNil(p.Domains)), jsonText(nonNil(p.Geographies)),
		string(p.GeoSensitivity), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert organization %s: %w", p.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetOrganization(ctx context.Context, id string) (*signal.OrganizationProfile, error) {
	var row orgRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM organizations WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("organization %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get organization %s: %w", id, err)
	}
	p := row.profile()
	return &p, nil
}

func (s *SQLiteStore) ListOrganizations(ctx context.Context) ([]signal.OrganizationProfile, error) {
	var rows []orgRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT * FROM organizations ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	out := make([]signal.OrganizationProfile, len(rows))
	for i, r := range rows {
		out[i] = r.profile()
	}
	return out, nil
}

func (s *SQLiteStore) ReplaceWatchlist(ctx context.Context, orgID string, entities []signal.WatchlistEntity) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace watchlist %s: %w", orgID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM watchlist WHERE org_id = ?", orgID); err != nil {
		return fmt.Errorf("clear watchlist %s: %w", orgID, err)
	}
	for _, e := range entities {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO watchlist (org_id, name, entity_type, active) VALUES (?, ?, ?, ?)",
			orgID, e.Name, e.Type, e.Active)
		if err != nil {
			return fmt.Errorf("insert watchlist entity %q: %w", e.Name, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListWatchlist(ctx context.Context, orgID string) ([]signal.WatchlistEntity, error) {
	var out []signal.WatchlistEntity
	err := s.db.SelectContext(ctx, &out,
		"SELECT name, entity_type, active FROM watchlist WHERE org_id = ? ORDER BY id", orgID)
	if err != nil {
		return nil, fmt.Errorf("list watchlist %s: %w", orgID, err)
	}
	return out, nil
}

func (s *SQLiteStore) ReplaceAffinities(ctx context.Context, orgID string, affinities []signal.TopicAffinity) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace affinities %s: %w", orgID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM affinities WHERE org_id = ?", orgID); err != nil {
		return fmt.Errorf("clear affinities %s: %w", orgID, err)
	}
	for _, a := range affinities {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO affinities (org_id, topic, score, times_used, avg_performance, source)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(org_id, topic) DO UPDATE SET
				score = excluded.score,
				times_used = excluded.times_used,
				avg_performance = excluded.avg_performance,
				source = excluded.source
		`, orgID, a.Topic, a.Score, a.TimesUsed, a.AvgPerformance, string(a.Source))
		if err != nil {
			return fmt.Errorf("insert affinity %q: %w", a.Topic, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListAffinities(ctx context.Context, orgID string) ([]signal.TopicAffinity, error) {
	var out []signal.TopicAffinity
	err := s.db.SelectContext(ctx, &out,
		"SELECT topic, score, times_used, avg_performance, source FROM affinities WHERE org_id = ? ORDER BY topic", orgID)
	if err != nil {
		return nil, fmt.Errorf("list affinities %s: %w", orgID, err)
	}
	return out, nil
}

type signalRow struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	Payload     string    `db:"payload"`
	Mentions    int       `db:"mentions"`
	DetectedAt  time.Time `db:"detected_at"`
	CollectedAt time.Time `db:"collected_at"`
}

func (s *SQLiteStore) UpsertSignals(ctx context.Context, signals []signal.TrendSignal) error {
	now := time.Now().UTC()
	for i := range signals {
		sig := &signals[i]
		payload, err := json.Marshal(sig)
		if err != nil {
			return fmt.Errorf("encode signal %s: %w", sig.ID, err)
		}
		detected := sig.Momentum.DetectedAt
		if detected.IsZero() {
			detected = now
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO signals (id, title, payload, mentions, detected_at, collected_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				payload = excluded.payload,
				mentions = excluded.mentions,
				collected_at = excluded.collected_at
		`, sig.ID, sig.Title, string(payload), sig.Momentum.Mentions, detected.UTC(), now)
		if err != nil {
			return fmt.Errorf("upsert signal %s: %w", sig.ID, err)
		}
	}
	return nil
}

func (s *SQLiteStore) ListSignals(ctx context.Context, opts SignalListOpts) ([]signal.TrendSignal, error) {
	query := "SELECT * FROM signals WHERE 1=1"
	var args []any

	if !opts.Since.IsZero() {
		query += " AND collected_at >= ?"
		args = append(args, opts.Since.UTC())
	}

	query += " ORDER BY detected_at DESC, id"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var rows []signalRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}

	out := make([]signal.TrendSignal, 0, len(rows))
	for _, r := range rows {
		var sig signal.TrendSignal
		if err := json.Unmarshal([]byte(r.Payload), &sig); err != nil {
			return nil, fmt.Errorf("decode signal %s: %w", r.ID, err)
		}
		out = append(out, sig)
	}
	return out, nil
}

func (s *SQLiteStore) AddSnapshot(ctx context.Context, signalID string, mentions int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO signal_snapshots (signal_id, mentions, checked_at)
		VALUES (?, ?, ?)
	`, signalID, mentions, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("add snapshot %s: %w", signalID, err)
	}
	return nil
}

// LatestSnapshot returns the newest snapshot of signalID taken before the
// given time.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context, signalID string, before time.Time) (*Snapshot, error) {
	var snap Snapshot
	err := s.db.GetContext(ctx, &snap, `
		SELECT * FROM signal_snapshots
		WHERE signal_id = ? AND checked_at < ?
		ORDER BY checked_at DESC, id DESC LIMIT 1
	`, signalID, before.UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %s: %w", signalID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot %s: %w", signalID, err)
	}
	return &snap, nil
}

func (s *SQLiteStore) SaveRecommendations(ctx context.Context, recs []Recommendation) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save recommendations: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for i := range recs {
		r := &recs[i]
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		decisionJSON := ""
		if r.Decision != nil {
			decisionJSON = jsonText(r.Decision)
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO recommendations (run_id, org_id, trend_id, title, score, priority, flags, selected_by, reasons, tier, composite, decision, alerted, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, r.RunID, r.OrgID, r.TrendID, r.Title, r.Score, r.Priority, r.Flags, r.SelectedBy,
			jsonText(nonNil(r.Reasons)), r.Tier, r.Composite, decisionJSON, r.Alerted, r.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert recommendation %s/%s: %w", r.OrgID, r.TrendID, err)
		}
		r.ID, _ = res.LastInsertId()
	}
	return tx.Commit()
}

// LatestRecommendations returns the picks of the most recent run for orgID,
// best score first. A run is identified by its diversity report, so a run that
// selected nothing yields an empty list.
func (s *SQLiteStore) LatestRecommendations(ctx context.Context, orgID string) ([]Recommendation, error) {
	var recs []Recommendation
	err := s.db.SelectContext(ctx, &recs, `
		SELECT * FROM recommendations
		WHERE org_id = ? AND run_id = (
			SELECT run_id FROM diversity_reports WHERE org_id = ?
			ORDER BY created_at DESC, id DESC LIMIT 1
		)
		ORDER BY score DESC, id
	`, orgID, orgID)
	if err != nil {
		return nil, fmt.Errorf("latest recommendations %s: %w", orgID, err)
	}
	decodeRecommendations(recs)
	return recs, nil
}

// ListUnalertedActNow returns the newest act_now recommendation of every
// (org, trend) pair that has never been alerted.
func (s *SQLiteStore) ListUnalertedActNow(ctx context.Context) ([]Recommendation, error) {
	var recs []Recommendation
	err := s.db.SelectContext(ctx, &recs, `
		SELECT r.* FROM recommendations r
		WHERE r.tier = ? AND r.alerted = 0
		AND r.id = (
			SELECT MAX(x.id) FROM recommendations x
			WHERE x.org_id = r.org_id AND x.trend_id = r.trend_id AND x.tier = r.tier
		)
		AND NOT EXISTS (
			SELECT 1 FROM recommendations a
			WHERE a.org_id = r.org_id AND a.trend_id = r.trend_id AND a.alerted = 1
		)
		ORDER BY r.composite DESC, r.id
	`, string(decision.TierActNow))
	if err != nil {
		return nil, fmt.Errorf("list unalerted act_now: %w", err)
	}
	decodeRecommendations(recs)
	return recs, nil
}

func decodeRecommendations(recs []Recommendation) {
	for i := range recs {
		json.Unmarshal([]byte(recs[i].ReasonsJSON), &recs[i].Reasons)
		if recs[i].DecisionJSON != "" {
			var d decision.Result
			if json.Unmarshal([]byte(recs[i].DecisionJSON), &d) == nil {
				recs[i].Decision = &d
			}
		}
	}
}

// MarkAlerted flags recID and every other recommendation of the same
// organization and trend as alerted.
func (s *SQLiteStore) MarkAlerted(ctx context.Context, recID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE recommendations SET alerted = 1
		WHERE org_id = (SELECT org_id FROM recommendations WHERE id = ?)
		AND trend_id = (SELECT trend_id FROM recommendations WHERE id = ?)
	`, recID, recID)
	if err != nil {
		return fmt.Errorf("mark alerted %d: %w", recID, err)
	}
	return nil
}

func (s *SQLiteStore) SaveDiversityReport(ctx context.Context, r *DiversityReport) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	r.DiversityScore = r.Metrics.DiversityScore
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO diversity_reports (run_id, org_id, diversity_score, metrics, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, r.RunID, r.OrgID, r.DiversityScore, jsonText(r.Metrics), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("save diversity report %s: %w", r.OrgID, err)
	}
	r.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) LatestDiversityReport(ctx context.Context, orgID string) (*DiversityReport, error) {
	var r DiversityReport
	err := s.db.GetContext(ctx, &r, `
		SELECT * FROM diversity_reports WHERE org_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1
	`, orgID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("diversity report %s: %w", orgID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest diversity report %s: %w", orgID, err)
	}
	json.Unmarshal([]byte(r.MetricsJSON), &r.Metrics)
	return &r, nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
