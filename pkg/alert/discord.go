package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Discord posts act_now alerts as a single embed.
type Discord struct {
	client     *http.Client
	webhookURL string
	now        func() time.Time
}

// NewDiscord creates a new Discord notifier.
func NewDiscord(webhookURL string) *Discord {
	return &Discord{
		client:     &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
		now:        time.Now,
	}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, n *Notification) error {
	description := "**" + n.Summary() + "**"
	if reasons := n.topReasons(5); len(reasons) > 0 {
		description += "\n\n• " + strings.Join(reasons, "\n• ")
	}

	embed := map[string]any{
		"title":       n.Heading(),
		"description": description,
		"color":       0xD62828,
		"timestamp":   d.now().UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(map[string]any{"embeds": []map[string]any{embed}})
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}
	return postJSON(ctx, d.client, "discord webhook", d.webhookURL, body, nil)
}
