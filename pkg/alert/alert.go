package alert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Notification announces one act_now recommendation to an organization.
type Notification struct {
	OrgID     string   `json:"org_id"`
	OrgName   string   `json:"org_name"`
	TrendID   string   `json:"trend_id"`
	Title     string   `json:"title"`
	Tier      string   `json:"tier"`
	Composite int      `json:"composite"`
	Relevance int      `json:"relevance"`
	Flags     string   `json:"flags,omitempty"`
	Reasons   []string `json:"reasons"`
}

// Summary is the one-line score header shared by the chat notifiers.
func (n *Notification) Summary() string {
	s := fmt.Sprintf("Tier: %s | Composite: %d | Relevance: %d", n.Tier, n.Composite, n.Relevance)
	if n.Flags != "" {
		s += " | " + n.Flags
	}
	return s
}

// Heading prefixes the trend title with the organization name when known.
func (n *Notification) Heading() string {
	if n.OrgName == "" {
		return n.Title
	}
	return fmt.Sprintf("[%s] %s", n.OrgName, n.Title)
}

// topReasons returns at most limit reasons.
func (n *Notification) topReasons(limit int) []string {
	if len(n.Reasons) < limit {
		limit = len(n.Reasons)
	}
	return n.Reasons[:limit]
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// Broadcast sends a notification to all registered notifiers.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// postJSON posts body to url and expects a 2xx answer. kind prefixes errors.
func postJSON(ctx context.Context, client *http.Client, kind, url string, body []byte, header http.Header) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", kind, err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s: %w", kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s status %d", kind, resp.StatusCode)
	}
	return nil
}
