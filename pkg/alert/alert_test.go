package alert

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNotification() *Notification {
	return &Notification{
		OrgID:     "acme",
		OrgName:   "Acme",
		TrendID:   "t1",
		Title:     "Rent freeze vote",
		Tier:      "act_now",
		Composite: 82,
		Relevance: 64,
		Flags:     "breaking",
		Reasons:   []string{"Policy domain match: Housing (+12)", "Breaking news (+5)"},
	}
}

type stubNotifier struct {
	name string
	err  error
	got  []*Notification
}

func (s *stubNotifier) Name() string { return s.name }

func (s *stubNotifier) Send(_ context.Context, n *Notification) error {
	s.got = append(s.got, n)
	return s.err
}

func TestManagerBroadcast(t *testing.T) {
	ok := &stubNotifier{name: "ok"}
	bad := &stubNotifier{name: "bad", err: errors.New("boom")}
	m := NewManager([]Notifier{bad, ok})

	err := m.Broadcast(context.Background(), testNotification())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: boom")
	assert.Len(t, ok.got, 1)

	assert.True(t, m.HasNotifiers())
	assert.False(t, NewManager(nil).HasNotifiers())
	assert.NoError(t, NewManager(nil).Broadcast(context.Background(), testNotification()))
}

func TestSummary(t *testing.T) {
	n := testNotification()
	assert.Equal(t, "Tier: act_now | Composite: 82 | Relevance: 64 | breaking", n.Summary())
	n.Flags = ""
	assert.Equal(t, "Tier: act_now | Composite: 82 | Relevance: 64", n.Summary())

	assert.Equal(t, "[Acme] Rent freeze vote", n.Heading())
	n.OrgName = ""
	assert.Equal(t, "Rent freeze vote", n.Heading())
}

func TestWebhookSignsPayload(t *testing.T) {
	var gotBody []byte
	var gotSig, gotDelivery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Signature-256")
		gotDelivery = r.Header.Get("X-Delivery-ID")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	require.NoError(t, NewWebhook(srv.URL, "s3cret").Send(context.Background(), testNotification()))

	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write(gotBody)
	assert.Equal(t, "sha256="+hex.EncodeToString(mac.Sum(nil)), gotSig)
	assert.Len(t, gotDelivery, 36)

	var decoded Notification
	require.NoError(t, json.Unmarshal(gotBody, &decoded))
	assert.Equal(t, "acme", decoded.OrgID)
	assert.Equal(t, 82, decoded.Composite)
}

func TestWebhookErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, "").Send(context.Background(), testNotification())
	assert.EqualError(t, err, "webhook status 500")
}

func TestSlackPayload(t *testing.T) {
	var payload struct {
		Blocks []map[string]any `json:"blocks"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
	}))
	defer srv.Close()

	require.NoError(t, NewSlack(srv.URL).Send(context.Background(), testNotification()))
	require.Len(t, payload.Blocks, 3)
	header := payload.Blocks[0]["text"].(map[string]any)
	assert.Equal(t, "[Acme] Rent freeze vote", header["text"])
	assert.Len(t, payload.Blocks[2]["elements"], 2)
}

func TestDiscordPayload(t *testing.T) {
	var payload struct {
		Embeds []map[string]any `json:"embeds"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewDiscord(srv.URL).Send(context.Background(), testNotification()))
	require.Len(t, payload.Embeds, 1)
	assert.Equal(t, "[Acme] Rent freeze vote", payload.Embeds[0]["title"])
	assert.Contains(t, payload.Embeds[0]["description"], "• Breaking news (+5)")
}
