package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/alanmeadows/recheck/internal/config"
	"github.com/alanmeadows/recheck/internal/recheck"
)

// Event names accepted in the notifications.events filter.
const (
	EventRecheck = "recheck"
	EventRegate  = "regate"
)

// Teams posts an Adaptive Card to a Teams (Power Automate) webhook for every
// comment the bot posts.
type Teams struct {
	cfg    config.NotificationsConfig
	client *http.Client
}

// NewTeams returns a Teams notifier, or nil when no webhook is configured.
func NewTeams(cfg config.NotificationsConfig) *Teams {
	if cfg.TeamsWebhookURL == "" {
		return nil
	}
	return &Teams{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Notify sends the event unless it is filtered out by the configured events.
func (t *Teams) Notify(ctx context.Context, event recheck.Event) error {
	name := event.Action.Comment()
	if len(t.cfg.Events) > 0 && !slices.Contains(t.cfg.Events, name) {
		slog.Debug("notification event filtered out", "event", name)
		return nil
	}

	body, err := json.Marshal(buildAdaptiveCard(event))
	if err != nil {
		return fmt.Errorf("marshaling notification payload: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, t.cfg.TeamsWebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	defer resp.Body.Close()

	// Drain the body so the connection can be reused.
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}

	slog.Debug("notification sent", "event", name, "repo", event.Repo, "pr", event.PR)
	return nil
}

// buildAdaptiveCard constructs an Adaptive Card wrapped in the Power Automate envelope.
func buildAdaptiveCard(event recheck.Event) map[string]any {
	headerText := fmt.Sprintf("🔁 %s posted on %s#%s", event.Action.Comment(), event.Repo, event.PR)

	facts := []map[string]any{
		{"title": "Repository", "value": event.Repo},
		{"title": "Pull Request", "value": event.PR},
		{"title": "Comment", "value": event.Action.Comment()},
	}
	if event.HeadSHA != "" {
		facts = append(facts, map[string]any{"title": "Head", "value": event.HeadSHA})
	}

	card := map[string]any{
		"$schema": "http://adaptivecards.io/schemas/adaptive-card.json",
		"type":    "AdaptiveCard",
		"version": "1.4",
		"body": []map[string]any{
			{
				"type":   "TextBlock",
				"size":   "Medium",
				"weight": "Bolder",
				"text":   headerText,
			},
			{
				"type":  "FactSet",
				"facts": facts,
			},
		},
	}

	return map[string]any{
		"type": "message",
		"attachments": []map[string]any{
			{
				"contentType": "application/vnd.microsoft.card.adaptive",
				"content":     card,
			},
		},
	}
}

var _ recheck.Notifier = (*Teams)(nil)
