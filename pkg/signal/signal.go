// Package signal holds the read-only inputs of the scoring engine: detected
// trend signals and the organization data they are scored against.
package signal

import (
	"strings"
	"time"
)

// GeoLevel is the geographic specificity of a trend.
type GeoLevel string

const (
	GeoLocal         GeoLevel = "local"
	GeoState         GeoLevel = "state"
	GeoNational      GeoLevel = "national"
	GeoInternational GeoLevel = "international"
)

// ParseGeoLevel normalizes s into a GeoLevel. Unknown values yield "".
func ParseGeoLevel(s string) GeoLevel {
	switch GeoLevel(strings.ToLower(strings.TrimSpace(s))) {
	case GeoLocal:
		return GeoLocal
	case GeoState:
		return GeoState
	case GeoNational:
		return GeoNational
	case GeoInternational:
		return GeoInternational
	}
	return ""
}

// TrendSignal is a detected topical event. The engine never mutates it.
type TrendSignal struct {
	ID            string   `json:"id" yaml:"id"`
	Title         string   `json:"title" yaml:"title"`
	Domains       []string `json:"domains" yaml:"domains"`
	Geographies   []string `json:"geographies" yaml:"geographies"`
	GeoLevel      GeoLevel `json:"geo_level" yaml:"geo_level"`
	Politicians   []string `json:"politicians" yaml:"politicians"`
	Organizations []string `json:"organizations" yaml:"organizations"`
	Legislation   []string `json:"legislation" yaml:"legislation"`
	ContextTerms  []string `json:"context_terms" yaml:"context_terms"`
	Breaking      bool     `json:"breaking" yaml:"breaking"`
	Confidence    float64  `json:"confidence" yaml:"confidence"`
	Momentum      Momentum `json:"momentum" yaml:"momentum"`
}

// Momentum is the ingestion statistics attached to a signal. Every field is
// optional; zero values contribute nothing to decision scoring.
type Momentum struct {
	VelocityPct     float64   `json:"velocity_pct" yaml:"velocity_pct"`
	Mentions        int       `json:"mentions" yaml:"mentions"`
	Sentiment       float64   `json:"sentiment" yaml:"sentiment"`
	SentimentShift  float64   `json:"sentiment_shift" yaml:"sentiment_shift"`
	SourceTypes     []string  `json:"source_types" yaml:"source_types"`
	SourceMentions  int       `json:"source_mentions" yaml:"source_mentions"`
	ActionableScore *float64  `json:"actionable_score,omitempty" yaml:"actionable_score,omitempty"`
	AlertType       string    `json:"alert_type" yaml:"alert_type"`
	DetectedAt      time.Time `json:"detected_at" yaml:"detected_at"`
}

// Entities returns every person, organization and bill the trend mentions.
func (t TrendSignal) Entities() []string {
	out := make([]string, 0, len(t.Politicians)+len(t.Organizations)+len(t.Legislation))
	out = append(out, t.Politicians...)
	out = append(out, t.Organizations...)
	out = append(out, t.Legislation...)
	return out
}

// Text is the title followed by the context terms, used for free-text matching.
func (t TrendSignal) Text() string {
	if len(t.ContextTerms) == 0 {
		return t.Title
	}
	return t.Title + " " + strings.Join(t.ContextTerms, " ")
}

// HasDomain reports whether the trend is tagged with domain (case-insensitive).
func (t TrendSignal) HasDomain(domain string) bool {
	for _, d := range t.Domains {
		if strings.EqualFold(d, domain) {
			return true
		}
	}
	return false
}

// OrganizationProfile is one organization's declared interests.
type OrganizationProfile struct {
	ID             string   `json:"id" yaml:"id"`
	Name           string   `json:"name" yaml:"name"`
	OrgType        string   `json:"org_type" yaml:"org_type"`
	Mission        string   `json:"mission" yaml:"mission"`
	FocusAreas     []string `json:"focus_areas" yaml:"focus_areas"`
	KeyIssues      []string `json:"key_issues" yaml:"key_issues"`
	Domains        []string `json:"domains" yaml:"domains"`
	Geographies    []string `json:"geographies" yaml:"geographies"`
	GeoSensitivity GeoLevel `json:"geo_sensitivity,omitempty" yaml:"geo_sensitivity,omitempty"`
}

// WatchlistEntity is a person, organization or bill an organization tracks.
type WatchlistEntity struct {
	Name   string `json:"name" yaml:"name" db:"name"`
	Type   string `json:"type" yaml:"type" db:"entity_type"`
	Active bool   `json:"active" yaml:"active" db:"active"`
}

// AffinitySource records where a topic affinity came from.
type AffinitySource string

const (
	AffinityLearned       AffinitySource = "learned_outcome"
	AffinitySelfDeclared  AffinitySource = "self_declared"
	AffinityAdminOverride AffinitySource = "admin_override"
)

// TopicAffinity is a learned preference for a topic, produced elsewhere.
type TopicAffinity struct {
	Topic          string         `json:"topic" yaml:"topic" db:"topic"`
	Score          float64        `json:"score" yaml:"score" db:"score"`
	TimesUsed      int            `json:"times_used" yaml:"times_used" db:"times_used"`
	AvgPerformance float64        `json:"avg_performance" yaml:"avg_performance" db:"avg_performance"`
	Source         AffinitySource `json:"source" yaml:"source" db:"source"`
}

// MinProvenUses is the usage count from which an affinity counts as proven.
const MinProvenUses = 2

// Proven reports whether the topic has enough history to count as proven.
func (a TopicAffinity) Proven() bool {
	return a.TimesUsed >= MinProvenUses
}
