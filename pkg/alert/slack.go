package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Slack posts act_now alerts as Block Kit messages to an incoming webhook.
type Slack struct {
	client     *http.Client
	webhookURL string
}

// NewSlack creates a new Slack notifier.
func NewSlack(webhookURL string) *Slack {
	return &Slack{
		client:     &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
	}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Send(ctx context.Context, n *Notification) error {
	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{"type": "plain_text", "text": n.Heading()},
		},
		{
			"type": "section",
			"text": map[string]any{"type": "mrkdwn", "text": "*" + n.Summary() + "*"},
		},
	}

	if reasons := n.topReasons(5); len(reasons) > 0 {
		elements := make([]map[string]any, len(reasons))
		for i, r := range reasons {
			elements[i] = map[string]any{"type": "mrkdwn", "text": r}
		}
		blocks = append(blocks, map[string]any{
			"type":     "context",
			"elements": elements,
		})
	}

	body, err := json.Marshal(map[string]any{"blocks": blocks})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}
	return postJSON(ctx, s.client, "slack webhook", s.webhookURL, body, nil)
}
