package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/jsonc"
	"github.com/tidwall/sjson"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage recheck configuration",
	Long:  `Show and modify recheck configuration values.`,
}

var configJSONFlag bool

func init() {
	configShowCmd.Flags().BoolVar(&configJSONFlag, "json", false, "Output raw JSON without formatting")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show merged configuration",
	Long:  `Print the configuration merged from defaults, --config and the environment, with secrets masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		redacted := appConfig.Redacted()

		var data []byte
		var err error
		if configJSONFlag {
			data, err = json.Marshal(redacted)
		} else {
			data, err = json.MarshalIndent(redacted, "", "  ")
		}
		if err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value",
	Long: `Set a configuration value using a dotted key path.

The value is written to the JSON/JSONC file named by --config, which is
created if it does not exist.

Note: JSONC comments are not preserved on write.`,
	Example: `  recheck --config recheck.jsonc config set time 300
  recheck --config recheck.jsonc config set recheck_on_any_failure true
  recheck --config recheck.jsonc config set prs.-1 "104"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if configPath == "" {
			return fmt.Errorf("--config is required for config set")
		}
		switch strings.ToLower(filepath.Ext(configPath)) {
		case ".yaml", ".yml":
			return fmt.Errorf("config set only edits JSON/JSONC files, got %s", configPath)
		}

		key := args[0]
		value := parseValue(key, args[1])

		// Read existing file or start with empty JSON object
		var existing []byte
		if data, err := os.ReadFile(configPath); err == nil {
			existing = jsonc.ToJSON(data)
		} else if os.IsNotExist(err) {
			existing = []byte("{}")
		} else {
			return fmt.Errorf("reading config: %w", err)
		}

		updated, err := sjson.SetBytes(existing, key, value)
		if err != nil {
			return fmt.Errorf("setting key %q: %w", key, err)
		}

		if dir := filepath.Dir(configPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("creating config directory: %w", err)
			}
		}

		if err := os.WriteFile(configPath, updated, 0600); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", key, value)
		return nil
	},
}

// parseValue guesses the JSON type of a raw value: bool, then number, then
// string. PR numbers stay strings.
func parseValue(key, raw string) any {
	if key == "prs" || strings.HasPrefix(key, "prs.") {
		return raw
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
