package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanmeadows/recheck/internal/config"
	"github.com/alanmeadows/recheck/internal/recheck"
)

var testEvent = recheck.Event{
	Repo:    "owner/repo",
	PR:      "42",
	Action:  recheck.ActionRecheck,
	HeadSHA: "abc123",
}

func TestNewTeams_NoWebhook(t *testing.T) {
	assert.Nil(t, NewTeams(config.NotificationsConfig{}))
}

func TestNotify_SendsCard(t *testing.T) {
	var receivedBody []byte
	var receivedContentType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedContentType = r.Header.Get("Content-Type")
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		receivedBody = body
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewTeams(config.NotificationsConfig{TeamsWebhookURL: srv.URL})
	require.NoError(t, n.Notify(t.Context(), testEvent))

	assert.Equal(t, "application/json", receivedContentType)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(receivedBody, &envelope))
	assert.Equal(t, "message", envelope["type"])

	attachments := envelope["attachments"].([]any)
	require.Len(t, attachments, 1)
	content := attachments[0].(map[string]any)["content"].(map[string]any)
	assert.Equal(t, "AdaptiveCard", content["type"])

	body := content["body"].([]any)
	header := body[0].(map[string]any)
	assert.Contains(t, header["text"], "recheck posted on owner/repo#42")
}

func TestNotify_EventFiltering(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewTeams(config.NotificationsConfig{
		TeamsWebhookURL: srv.URL,
		Events:          []string{EventRegate},
	})

	require.NoError(t, n.Notify(t.Context(), testEvent))
	assert.False(t, called, "webhook should not be called for filtered event")

	regate := testEvent
	regate.Action = recheck.ActionRegate
	require.NoError(t, n.Notify(t.Context(), regate))
	assert.True(t, called)
}

func TestNotify_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad card"))
	}))
	defer srv.Close()

	n := NewTeams(config.NotificationsConfig{TeamsWebhookURL: srv.URL})
	err := n.Notify(t.Context(), testEvent)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "bad card")
}
