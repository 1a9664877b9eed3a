package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"dario.cat/mergo"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Load builds the configuration from defaults, the optional config file at
// path (JSONC, or YAML for .yaml/.yml) and environment overrides.
// Command-line values are applied by the caller on top.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		fileMap, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		if err := mergeIntoConfig(&cfg, fileMap); err != nil {
			return nil, fmt.Errorf("merging config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// loadFile reads a config file into a map, choosing the parser by extension.
func loadFile(path string) (map[string]any, error) {
	var (
		m   map[string]any
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		m, err = loadYAML(path)
	default:
		m, err = loadJSONC(path)
	}
	if err != nil {
		return nil, err
	}
	normalizePRs(m)
	return m, nil
}

// normalizePRs turns numeric PR entries (prs: [12, 34]) into strings.
func normalizePRs(m map[string]any) {
	list, ok := m["prs"].([]any)
	if !ok {
		return
	}
	for i, v := range list {
		switch n := v.(type) {
		case int:
			list[i] = strconv.Itoa(n)
		case float64:
			list[i] = strconv.FormatFloat(n, 'f', -1, 64)
		}
	}
}

// loadJSONC reads a JSONC file and returns it as a map.
func loadJSONC(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	jsonData := jsonc.ToJSON(data)
	var m map[string]any
	if err := json.Unmarshal(jsonData, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return m, nil
}

// loadYAML reads a YAML file and returns it as a map.
func loadYAML(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return m, nil
}

// mergeIntoConfig marshals the config to a map, deep-merges the source map over it,
// then unmarshals back to the Config struct.
func mergeIntoConfig(cfg *Config, src map[string]any) error {
	cfgBytes, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	var dst map[string]any
	if err := json.Unmarshal(cfgBytes, &dst); err != nil {
		return err
	}

	// src overrides dst; slices are replaced, not appended.
	if err := mergo.Merge(&dst, src, mergo.WithOverride); err != nil {
		return err
	}

	merged, err := json.Marshal(dst)
	if err != nil {
		return err
	}
	return json.Unmarshal(merged, cfg)
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	if user := os.Getenv("RECHECK_USER"); user != "" {
		cfg.User = user
	}
	if token := os.Getenv("RECHECK_TOKEN"); token != "" {
		cfg.Token = token
	}
	if org := os.Getenv("RECHECK_ORG"); org != "" {
		cfg.Org = org
	}
	if repo := os.Getenv("RECHECK_REPO"); repo != "" {
		cfg.Repo = repo
	}
	if url := os.Getenv("RECHECK_TEAMS_WEBHOOK_URL"); url != "" {
		cfg.Notifications.TeamsWebhookURL = url
	}
}

// Redacted returns a copy of the config with secrets masked.
func (c Config) Redacted() Config {
	out := c
	if out.Token != "" {
		out.Token = "***"
	}
	if out.Notifications.TeamsWebhookURL != "" {
		out.Notifications.TeamsWebhookURL = "***"
	}
	return out
}
