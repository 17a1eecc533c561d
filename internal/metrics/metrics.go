// Package metrics provides Prometheus metrics for trendfit.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CollectTotal counts collection runs by outcome.
	CollectTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trendfit",
			Name:      "collect_total",
			Help:      "Total number of signal collection runs",
		},
		[]string{"source", "status"},
	)

	// EntriesCollected counts entries returned by each source.
	EntriesCollected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trendfit",
			Name:      "entries_collected_total",
			Help:      "Total number of entries returned by each source",
		},
		[]string{"source"},
	)

	// SignalsStored counts clustered signals written to storage.
	SignalsStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trendfit",
			Name:      "signals_stored_total",
			Help:      "Total number of clustered trend signals stored",
		},
	)

	// RecommendDuration measures one organization's recommendation run.
	RecommendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trendfit",
			Name:      "recommend_duration_seconds",
			Help:      "Duration of per-organization recommendation runs in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	// TrendsScored counts relevance scorings.
	TrendsScored = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trendfit",
			Name:      "trends_scored_total",
			Help:      "Total number of trend relevance scorings",
		},
	)

	// Selected counts selected trends by the strategy that picked them.
	Selected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trendfit",
			Name:      "selected_total",
			Help:      "Total number of selected trends by selection strategy",
		},
		[]string{"strategy"},
	)

	// DecisionTiers counts decision results by tier.
	DecisionTiers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trendfit",
			Name:      "decision_tier_total",
			Help:      "Total number of decision results by tier",
		},
		[]string{"tier"},
	)

	// DiversityScore is the latest diversity score per organization.
	DiversityScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "trendfit",
			Name:      "diversity_score",
			Help:      "Diversity score of the latest selection (0-100)",
		},
		[]string{"org"},
	)

	// AlertsTotal counts act_now alert deliveries by outcome.
	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trendfit",
			Name:      "alerts_total",
			Help:      "Total number of act_now alert broadcasts",
		},
		[]string{"status"},
	)
)

// RecordCollect records a collection run of one source.
func RecordCollect(source, status string, entries int) {
	CollectTotal.WithLabelValues(source, status).Inc()
	EntriesCollected.WithLabelValues(source).Add(float64(entries))
}

// RecordRecommend records one organization's recommendation run.
func RecordRecommend(org, status string, duration float64, diversityScore int) {
	RecommendDuration.WithLabelValues(status).Observe(duration)
	if status == "success" {
		DiversityScore.WithLabelValues(org).Set(float64(diversityScore))
	}
}

// RecordSelection records the strategy and tier of every selected trend.
func RecordSelection(strategies, tiers []string) {
	for _, s := range strategies {
		Selected.WithLabelValues(s).Inc()
	}
	for _, t := range tiers {
		if t != "" {
			DecisionTiers.WithLabelValues(t).Inc()
		}
	}
}

// RecordAlert records an alert broadcast.
func RecordAlert(status string) {
	AlertsTotal.WithLabelValues(status).Inc()
}
