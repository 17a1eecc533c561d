package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/elonfeng/trendfit/pkg/signal"
)

const batchPrompt = `You are a public-policy news analyst. You tag news stories for civic organizations that track policy areas.

Allowed policy domains (use these names exactly, never invent new ones):
%s

For each story, return:
1. "domains": zero to three allowed domains the story is substantively about
2. "geo_level": one of "local", "state", "national", "international", or "" if unclear
3. "sentiment": overall tone from -1.0 (very negative) to 1.0 (very positive)

Stories:
%s

Respond with a JSON array. Each element must have: "id" (the story ID), "domains" (array of strings), "geo_level" (string), "sentiment" (number).
Example: [{"id":"abc","domains":["Housing"],"geo_level":"state","sentiment":-0.4}]

Return ONLY the JSON array, no other text.`

// LLM tags signals by asking a chat-completion model.
type LLM struct {
	client   *http.Client
	provider string // "openai" or "anthropic"
	model    string
	apiKey   string
	baseURL  string
}

// LLMTag is the per-signal answer from the model.
type LLMTag struct {
	ID        string   `json:"id"`
	Domains   []string `json:"domains"`
	GeoLevel  string   `json:"geo_level"`
	Sentiment float64  `json:"sentiment"`
}

// NewLLM creates a new LLM tagger.
func NewLLM(provider, model, apiKey, baseURL string) *LLM {
	if model == "" {
		switch provider {
		case "anthropic":
			model = "claude-sonnet-4-20250514"
		default:
			model = "gpt-4o-mini"
		}
	}
	return &LLM{
		client:   &http.Client{Timeout: 60 * time.Second},
		provider: provider,
		model:    model,
		apiKey:   apiKey,
		baseURL:  baseURL,
	}
}

// TagSignals sends all signals in one batch and returns the model's tags,
// with domains restricted to allowed.
func (l *LLM) TagSignals(ctx context.Context, sigs []signal.TrendSignal, allowed []string) ([]LLMTag, error) {
	if len(sigs) == 0 {
		return nil, nil
	}

	var lines []string
	for _, s := range sigs {
		line := fmt.Sprintf("- ID: %s | Title: %s", s.ID, s.Title)
		if len(s.ContextTerms) > 0 {
			line += " | Terms: " + strings.Join(s.ContextTerms, ", ")
		}
		lines = append(lines, line)
	}

	prompt := fmt.Sprintf(batchPrompt, strings.Join(allowed, ", "), strings.Join(lines, "\n"))

	var raw string
	var err error

	switch l.provider {
	case "anthropic":
		raw, err = l.callAnthropic(ctx, prompt)
	default:
		raw, err = l.callOpenAI(ctx, prompt)
	}
	if err != nil {
		return nil, err
	}

	raw = stripCodeFence(strings.TrimSpace(raw))

	var tags []LLMTag
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("parse llm response: %w (raw: %s)", err, truncate(raw, 500))
	}

	canon := make(map[string]string, len(allowed))
	for _, d := range allowed {
		canon[strings.ToLower(d)] = d
	}
	for i := range tags {
		var kept []string
		for _, d := range tags[i].Domains {
			if c, ok := canon[strings.ToLower(strings.TrimSpace(d))]; ok {
				kept = appendUnique(kept, c)
			}
		}
		tags[i].Domains = kept
		tags[i].Sentiment = math.Max(-1, math.Min(1, tags[i].Sentiment))
	}
	return tags, nil
}

func stripCodeFence(raw string) string {
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	if idx := strings.Index(raw[3:], "\n"); idx >= 0 {
		raw = raw[3+idx+1:]
	}
	raw = strings.TrimSuffix(raw, "```")
	return strings.TrimSpace(raw)
}

func (l *LLM) callOpenAI(ctx context.Context, prompt string) (string, error) {
	baseURL := l.baseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}

	payload := map[string]any{
		"model": l.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": 0.1,
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create openai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.apiKey)

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call openai: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp map[string]any
		json.NewDecoder(resp.Body).Decode(&errResp)
		return "", fmt.Errorf("openai status %d: %v", resp.StatusCode, errResp)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", errors.New("openai: no choices returned")
	}
	return result.Choices[0].Message.Content, nil
}

func (l *LLM) callAnthropic(ctx context.Context, prompt string) (string, error) {
	baseURL := l.baseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	payload := map[string]any{
		"model":      l.model,
		"max_tokens": 4096,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create anthropic request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", l.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call anthropic: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp map[string]any
		json.NewDecoder(resp.Body).Decode(&errResp)
		return "", fmt.Errorf("anthropic status %d: %v", resp.StatusCode, errResp)
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode anthropic response: %w", err)
	}

	if len(result.Content) == 0 {
		return "", errors.New("anthropic: no content returned")
	}
	return result.Content[0].Text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
