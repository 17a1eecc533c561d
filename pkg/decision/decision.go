// Package decision grades a trend for action readiness.
//
// Four sub-scores are computed independently and blended into a composite:
// opportunity (why now), fit (why this organization), risk (higher is safer)
// and confidence (how reliable the signal is). The tier is gated on risk and
// confidence as well as the composite, so volume alone never reaches act_now.
package decision

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/elonfeng/trendfit/pkg/relevance"
	"github.com/elonfeng/trendfit/pkg/signal"
	"github.com/elonfeng/trendfit/pkg/textmatch"
)

// Tier is the discrete action-readiness class.
type Tier string

const (
	TierActNow   Tier = "act_now"
	TierConsider Tier = "consider"
	TierWatch    Tier = "watch"
)

// Keys of Result.Signals.
const (
	SignalOpportunity = "opportunity"
	SignalFit         = "fit"
	SignalRisk        = "risk"
	SignalConfidence  = "confidence"
)

const (
	weightOpportunity = 0.30
	weightFit         = 0.35
	weightRisk        = 0.20
	weightConfidence  = 0.15

	riskBase       = 85
	confidenceBase = 50
)

// Input is everything the scorer knows about one trend.
type Input struct {
	TrendID         string
	Title           string
	Topics          []string
	Entities        []string
	VelocityPct     float64
	Mentions        int
	Sentiment       float64
	SentimentShift  float64
	SourceTypes     []string
	SourceMentions  int
	ActionableScore *float64
	AlertType       string
	DetectedAt      time.Time

	// Relevance, when set, is used as the fit score instead of the fallback.
	Relevance *relevance.Result
}

// InputFromSignal builds an Input from a trend and its optional relevance result.
func InputFromSignal(t signal.TrendSignal, rel *relevance.Result) Input {
	m := t.Momentum
	return Input{
		TrendID:         t.ID,
		Title:           t.Title,
		Topics:          t.Domains,
		Entities:        t.Entities(),
		VelocityPct:     m.VelocityPct,
		Mentions:        m.Mentions,
		Sentiment:       m.Sentiment,
		SentimentShift:  m.SentimentShift,
		SourceTypes:     m.SourceTypes,
		SourceMentions:  m.SourceMentions,
		ActionableScore: m.ActionableScore,
		AlertType:       m.AlertType,
		DetectedAt:      m.DetectedAt,
		Relevance:       rel,
	}
}

// Result is the graded decision for one trend.
type Result struct {
	TrendID     string              `json:"trend_id"`
	Opportunity int                 `json:"opportunity"`
	Fit         int                 `json:"fit"`
	Risk        int                 `json:"risk"`
	Confidence  int                 `json:"confidence"`
	Composite   int                 `json:"composite"`
	Tier        Tier                `json:"tier"`
	Signals     map[string][]string `json:"signals"`
}

// Options tunes the risk keyword lists and supplies the clock.
type Options struct {
	SensitiveKeywords       []string
	ControversialAlertTypes []string
	Now                     func() time.Time
}

// DefaultSensitiveKeywords mark topics where a fundraising response is risky.
var DefaultSensitiveKeywords = []string{
	"shooting", "killed", "death", "died", "tragedy", "disaster",
	"suicide", "terrorist", "terror attack", "massacre", "victims",
	"funeral", "overdose", "abuse",
}

// DefaultControversialAlertTypes are alert types that warrant caution.
var DefaultControversialAlertTypes = []string{
	"controversy", "scandal", "backlash", "misinformation",
}

// DefaultOptions returns the default keyword lists and the wall clock.
func DefaultOptions() Options {
	return Options{
		SensitiveKeywords:       DefaultSensitiveKeywords,
		ControversialAlertTypes: DefaultControversialAlertTypes,
		Now:                     time.Now,
	}
}

// Scorer computes decision grades. It holds no mutable state.
type Scorer struct {
	opts Options
}

// NewScorer creates a scorer. Empty option fields take their defaults.
func NewScorer(opts Options) *Scorer {
	def := DefaultOptions()
	if opts.SensitiveKeywords == nil {
		opts.SensitiveKeywords = def.SensitiveKeywords
	}
	if opts.ControversialAlertTypes == nil {
		opts.ControversialAlertTypes = def.ControversialAlertTypes
	}
	if opts.Now == nil {
		opts.Now = def.Now
	}
	return &Scorer{opts: opts}
}

// Score grades in for the organization. interestTopics and interestEntities
// only feed the fit fallback used when in.Relevance is nil.
func (s *Scorer) Score(in Input, profile signal.OrganizationProfile, interestTopics, interestEntities []string) Result {
	now := s.opts.Now()
	age, hasAge := signalAge(in.DetectedAt, now)

	r := Result{
		TrendID: in.TrendID,
		Signals: make(map[string][]string, 4),
	}

	var ev []string
	r.Opportunity, ev = opportunity(in, age, hasAge)
	r.Signals[SignalOpportunity] = ev

	r.Fit, ev = fit(in, profile, interestTopics, interestEntities)
	r.Signals[SignalFit] = ev

	r.Risk, ev = s.risk(in)
	r.Signals[SignalRisk] = ev

	r.Confidence, ev = confidence(in, age, hasAge)
	r.Signals[SignalConfidence] = ev

	r.Composite = Composite(r.Opportunity, r.Fit, r.Risk, r.Confidence)
	r.Tier = ClassifyTier(r.Composite, r.Risk, r.Confidence)
	return r
}

// Composite blends the four sub-scores.
func Composite(opportunity, fit, risk, confidence int) int {
	v := float64(opportunity)*weightOpportunity +
		float64(fit)*weightFit +
		float64(risk)*weightRisk +
		float64(confidence)*weightConfidence
	return clamp(int(math.Round(v)))
}

// ClassifyTier applies the gates. act_now needs all three of composite >= 65,
// risk >= 50 and confidence >= 40; consider needs composite >= 40 and risk >= 30.
func ClassifyTier(composite, risk, confidence int) Tier {
	switch {
	case composite >= 65 && risk >= 50 && confidence >= 40:
		return TierActNow
	case composite >= 40 && risk >= 30:
		return TierConsider
	default:
		return TierWatch
	}
}

func opportunity(in Input, age time.Duration, hasAge bool) (int, []string) {
	var (
		score int
		ev    []string
	)

	var velocity int
	switch v := in.VelocityPct; {
	case v >= 200:
		velocity = 40
	case v >= 100:
		velocity = 30
	case v >= 50:
		velocity = 20
	case v > 0:
		velocity = 10
	}
	if velocity > 0 {
		score += velocity
		ev = append(ev, fmt.Sprintf("Velocity %.0f%% above baseline (+%d)", in.VelocityPct, velocity))
	}

	var volume int
	switch m := in.Mentions; {
	case m >= 1000:
		volume = 30
	case m >= 500:
		volume = 20
	case m >= 100:
		volume = 10
	}
	if volume > 0 {
		score += volume
		ev = append(ev, fmt.Sprintf("%d mentions (+%d)", in.Mentions, volume))
	}

	if shift := math.Abs(in.SentimentShift); shift > 0.2 {
		pts := int(math.Round(math.Min(shift*40, 20)))
		score += pts
		ev = append(ev, fmt.Sprintf("Sentiment shift of %.2f (+%d)", in.SentimentShift, pts))
	}

	if hasAge {
		var recency int
		switch {
		case age <= 2*time.Hour:
			recency = 10
		case age <= 6*time.Hour:
			recency = 6
		case age <= 24*time.Hour:
			recency = 3
		}
		if recency > 0 {
			score += recency
			ev = append(ev, fmt.Sprintf("Detected %s ago (+%d)", age.Truncate(time.Minute), recency))
		}
	}

	return clamp(score), ev
}

func fit(in Input, profile signal.OrganizationProfile, interestTopics, interestEntities []string) (int, []string) {
	if in.Relevance != nil {
		return clamp(in.Relevance.Score), []string{fmt.Sprintf("Relevance score %d", in.Relevance.Score)}
	}

	var (
		score int
		ev    []string
	)
	text := in.Title + " " + strings.Join(in.Topics, " ")

	var topics []string
	for _, t := range interestTopics {
		if textmatch.ContainsPhrase(text, t) {
			topics = append(topics, t)
		}
	}
	if len(topics) > 0 {
		pts := min(len(topics)*20, 40)
		score += pts
		ev = append(ev, fmt.Sprintf("Interest topics: %s (+%d)", strings.Join(topics, ", "), pts))
	}

	var entities []string
	for _, e := range interestEntities {
		if textmatch.ContainsPhrase(in.Title, e) || anyFuzzy(e, in.Entities) {
			entities = append(entities, e)
		}
	}
	if len(entities) > 0 {
		pts := min(len(entities)*15, 30)
		score += pts
		ev = append(ev, fmt.Sprintf("Interest entities: %s (+%d)", strings.Join(entities, ", "), pts))
	}

	var issues []string
	for _, p := range append(append([]string{}, profile.FocusAreas...), profile.KeyIssues...) {
		if textmatch.ContainsPhrase(text, p) {
			issues = append(issues, p)
		}
	}
	if len(issues) > 0 {
		pts := min(len(issues)*10, 20)
		score += pts
		ev = append(ev, fmt.Sprintf("Profile issues: %s (+%d)", strings.Join(issues, ", "), pts))
	}

	for _, d := range profile.Domains {
		if containsFold(in.Topics, d) {
			score += 10
			ev = append(ev, fmt.Sprintf("Declared domain %s (+10)", d))
			break
		}
	}

	if len(ev) == 0 {
		ev = append(ev, "No profile overlap")
	}
	return clamp(score), ev
}

func (s *Scorer) risk(in Input) (int, []string) {
	score := riskBase
	var ev []string

	text := in.Title + " " + strings.Join(in.Topics, " ")
	var hits []string
	for _, kw := range s.opts.SensitiveKeywords {
		if textmatch.ContainsPhrase(text, kw) {
			hits = append(hits, kw)
		}
	}
	if len(hits) > 0 {
		score -= 15
		ev = append(ev, fmt.Sprintf("Sensitive topic: %s (-15)", strings.Join(hits, ", ")))
	}

	if in.AlertType != "" && containsFold(s.opts.ControversialAlertTypes, in.AlertType) {
		score -= 10
		ev = append(ev, fmt.Sprintf("Controversial alert type %q (-10)", in.AlertType))
	}

	if in.Sentiment < -0.5 {
		score -= 10
		ev = append(ev, fmt.Sprintf("Strongly negative sentiment %.2f (-10)", in.Sentiment))
	}

	if len(ev) == 0 {
		ev = append(ev, "No risk factors detected")
	}
	return clamp(score), ev
}

func confidence(in Input, age time.Duration, hasAge bool) (int, []string) {
	score := confidenceBase
	var ev []string

	switch n := distinctCount(in.SourceTypes); {
	case n >= 3:
		score += 25
		ev = append(ev, fmt.Sprintf("%d distinct source types (+25)", n))
	case n == 2:
		score += 15
		ev = append(ev, "2 distinct source types (+15)")
	}

	switch m := in.SourceMentions; {
	case m >= 10:
		score += 15
		ev = append(ev, fmt.Sprintf("%d source mentions (+15)", m))
	case m >= 5:
		score += 10
		ev = append(ev, fmt.Sprintf("%d source mentions (+10)", m))
	}

	if in.ActionableScore != nil && *in.ActionableScore >= 70 {
		score += 10
		ev = append(ev, fmt.Sprintf("Actionable score %.0f (+10)", *in.ActionableScore))
	}

	if hasAge && age <= 24*time.Hour {
		score += 10
		ev = append(ev, "Fresh signal within 24h (+10)")
	}

	return clamp(score), ev
}

func signalAge(detected, now time.Time) (time.Duration, bool) {
	if detected.IsZero() {
		return 0, false
	}
	age := now.Sub(detected)
	if age < 0 {
		age = 0
	}
	return age, true
}

func distinctCount(values []string) int {
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			seen[v] = true
		}
	}
	return len(seen)
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(v)) {
			return true
		}
	}
	return false
}

func anyFuzzy(name string, candidates []string) bool {
	for _, c := range candidates {
		if textmatch.Fuzzy(name, c) {
			return true
		}
	}
	return false
}

func clamp(v int) int {
	return max(0, min(100, v))
}
