package config

import (
	"fmt"
	"time"
)

// Config is the top-level recheck configuration. Every field can also be
// set on the command line; the CLI wins over the file and the environment.
type Config struct {
	// User is the basic-auth user. Empty switches to bearer-token auth.
	User  string `json:"user" yaml:"user"`
	Token string `json:"token" yaml:"token"`
	// Org is the API host, e.g. "github.example.com".
	Org  string   `json:"org" yaml:"org"`
	Repo string   `json:"repo" yaml:"repo"`
	PRs  []string `json:"prs" yaml:"prs"`

	// Time is the poll interval in seconds.
	Time                int  `json:"time" yaml:"time"`
	RecheckOnAnyFailure bool `json:"recheck_on_any_failure" yaml:"recheck_on_any_failure"`
	DryRun              bool `json:"dry_run" yaml:"dry_run"`
	ContinueOnError     bool `json:"continue_on_error" yaml:"continue_on_error"`
	RespectRateLimits   bool `json:"respect_rate_limits" yaml:"respect_rate_limits"`

	Log           LogConfig           `json:"log" yaml:"log"`
	Lock          LockConfig          `json:"lock" yaml:"lock"`
	Notifications NotificationsConfig `json:"notifications" yaml:"notifications"`
}

// LogConfig controls log output.
type LogConfig struct {
	// Format is "auto" (text on a TTY, JSON otherwise), "text" or "json".
	Format string `json:"format" yaml:"format"`
}

// LockConfig controls the per-repo single-instance lock.
type LockConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Dir holds the lock files. Empty means $XDG_RUNTIME_DIR/recheck or the
	// system temp dir.
	Dir string `json:"dir" yaml:"dir"`
}

// NotificationsConfig holds notification settings.
type NotificationsConfig struct {
	TeamsWebhookURL string   `json:"teams_webhook_url" yaml:"teams_webhook_url"`
	Events          []string `json:"events" yaml:"events"`
}

// PollInterval returns the poll interval as a time.Duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Time) * time.Second
}

// Validate checks that everything needed to start polling is present.
func (c Config) Validate() error {
	switch {
	case c.Token == "":
		return fmt.Errorf("token is required")
	case c.Org == "":
		return fmt.Errorf("org (API host) is required")
	case c.Repo == "":
		return fmt.Errorf("repo is required")
	case len(c.PRs) == 0:
		return fmt.Errorf("at least one PR number is required")
	case c.Time <= 0:
		return fmt.Errorf("time must be a positive number of seconds, got %d", c.Time)
	}
	switch c.Log.Format {
	case "", "auto", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Time: 600,
		Log: LogConfig{
			Format: "auto",
		},
		Lock: LockConfig{
			Enabled: true,
		},
	}
}
