// Package classify tags raw trend signals with policy domains, geography,
// entities and the breaking flag.
package classify

import (
	"context"
	"log/slog"

	"github.com/elonfeng/trendfit/pkg/signal"
)

// Classifier runs the keyword tagger on every signal and, when configured,
// asks the LLM tagger about the signals left without a domain.
type Classifier struct {
	keyword *Keyword
	llm     *LLM // optional, nil = disabled
	logger  *slog.Logger
}

// New creates a classifier. llm may be nil.
func New(keyword *Keyword, llm *LLM, logger *slog.Logger) *Classifier {
	return &Classifier{keyword: keyword, llm: llm, logger: logger}
}

// Classify returns tagged copies of sigs in the same order. An LLM failure is
// logged and the keyword tags are kept.
func (c *Classifier) Classify(ctx context.Context, sigs []signal.TrendSignal) []signal.TrendSignal {
	out := make([]signal.TrendSignal, len(sigs))
	var untagged []int
	for i, s := range sigs {
		out[i] = c.keyword.Classify(s)
		if len(out[i].Domains) == 0 {
			untagged = append(untagged, i)
		}
	}

	if c.llm == nil || len(untagged) == 0 {
		return out
	}

	batch := make([]signal.TrendSignal, len(untagged))
	for j, i := range untagged {
		batch[j] = out[i]
	}
	tags, err := c.llm.TagSignals(ctx, batch, c.keyword.Domains())
	if err != nil {
		c.logger.Warn("llm tagging failed, keeping keyword tags", "signals", len(batch), "error", err)
		return out
	}

	byID := make(map[string]LLMTag, len(tags))
	for _, t := range tags {
		byID[t.ID] = t
	}
	tagged := 0
	for _, i := range untagged {
		t, ok := byID[out[i].ID]
		if !ok {
			continue
		}
		for _, d := range t.Domains {
			out[i].Domains = appendUnique(out[i].Domains, d)
		}
		if out[i].GeoLevel == "" {
			out[i].GeoLevel = signal.ParseGeoLevel(t.GeoLevel)
		}
		if out[i].Momentum.Sentiment == 0 {
			out[i].Momentum.Sentiment = t.Sentiment
		}
		if len(t.Domains) > 0 {
			tagged++
		}
	}
	c.logger.Debug("llm tagging done", "asked", len(batch), "tagged", tagged)
	return out
}
