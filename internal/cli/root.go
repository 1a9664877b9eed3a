package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/alanmeadows/recheck/internal/config"
	"github.com/alanmeadows/recheck/internal/github"
	"github.com/alanmeadows/recheck/internal/lock"
	"github.com/alanmeadows/recheck/internal/logging"
	"github.com/alanmeadows/recheck/internal/notify"
	"github.com/alanmeadows/recheck/internal/recheck"
)

var (
	verbose    bool
	configPath string
	logFormat  string
	appConfig  *config.Config

	pollSeconds         int
	recheckOnAnyFailure bool
	dryRun              bool
	once                bool
	continueOnError     bool
	respectRateLimits   bool

	rootCmd = &cobra.Command{
		Use:   "recheck <user> <token> <org> <repo> <prs...>",
		Short: "Retrigger CI on pull requests whose checks failed or timed out",
		Long: `recheck polls a fixed set of pull requests and comments "recheck" or "regate"
when their CI check runs have failed or timed out, without repeating the
last comment on the thread.

<org> is the API host, e.g. github.example.com. Any positional value may
instead come from --config or the RECHECK_* environment variables.`,
		Example: `  recheck bot s3cret github.example.com team/service 101 102
  recheck --time 300 --recheck_on_any_failure bot s3cret github.example.com team/service 101
  recheck --config recheck.yaml --once`,
		Args:          positionalArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runBot,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a JSONC or YAML config file")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: auto, text or json")
	rootCmd.PersistentFlags().BoolVar(&recheckOnAnyFailure, "recheck_on_any_failure", false, "Recheck on any failed check, not only timeouts")
	rootCmd.PersistentFlags().BoolVar(&respectRateLimits, "respect-rate-limits", false, "Sleep through GitHub rate limits instead of failing")

	rootCmd.Flags().IntVar(&pollSeconds, "time", 600, "Seconds to sleep between poll cycles")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log the decided action without commenting")
	rootCmd.Flags().BoolVar(&once, "once", false, "Run a single poll cycle and exit")
	rootCmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, "Log a PR that fails to evaluate and move on")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if logFormat != "" {
			cfg.Log.Format = logFormat
		}
		appConfig = cfg
		logging.Setup(verbose, cfg.Log.Format)
		return nil
	}

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
}

// ExecuteContext runs the root command. Cancelling ctx stops the poll loop.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// positionalArgs accepts either no positionals (everything from config) or
// the full <user> <token> <org> <repo> <prs...> form.
func positionalArgs(cmd *cobra.Command, args []string) error {
	if len(args) != 0 && len(args) < 5 {
		return fmt.Errorf("expected <user> <token> <org> <repo> <prs...>, got %d argument(s)", len(args))
	}
	return nil
}

// resolveConfig layers positionals and explicitly set flags over the loaded
// config and validates the result.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := *appConfig

	if len(args) >= 5 {
		cfg.User = args[0]
		cfg.Token = args[1]
		cfg.Org = args[2]
		cfg.Repo = args[3]
		cfg.PRs = append([]string(nil), args[4:]...)
	}

	flags := cmd.Flags()
	if flags.Changed("time") {
		cfg.Time = pollSeconds
	}
	if flags.Changed("recheck_on_any_failure") {
		cfg.RecheckOnAnyFailure = recheckOnAnyFailure
	}
	if flags.Changed("dry-run") {
		cfg.DryRun = dryRun
	}
	if flags.Changed("continue-on-error") {
		cfg.ContinueOnError = continueOnError
	}
	if flags.Changed("respect-rate-limits") {
		cfg.RespectRateLimits = respectRateLimits
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newBackend(cfg *config.Config) (*github.Backend, error) {
	return github.NewBackend(github.Options{
		Host:              cfg.Org,
		User:              cfg.User,
		Token:             cfg.Token,
		RespectRateLimits: cfg.RespectRateLimits,
	})
}

func botOptions(cfg *config.Config) recheck.Options {
	return recheck.Options{
		Repo:                cfg.Repo,
		PRs:                 cfg.PRs,
		Interval:            cfg.PollInterval(),
		RecheckOnAnyFailure: cfg.RecheckOnAnyFailure,
		DryRun:              cfg.DryRun,
		ContinueOnError:     cfg.ContinueOnError,
	}
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	backend, err := newBackend(cfg)
	if err != nil {
		return err
	}

	if cfg.Lock.Enabled {
		dir := cfg.Lock.Dir
		if dir == "" {
			dir = lock.Dir()
		}
		l, err := lock.Acquire(lock.PathFor(dir, cfg.Org, cfg.Repo))
		if errors.Is(err, lock.ErrHeld) {
			return fmt.Errorf("another recheck instance is watching %s: %w", cfg.Repo, err)
		}
		if err != nil {
			return err
		}
		defer func() {
			if err := l.Release(); err != nil {
				slog.Warn("failed to release lock", "error", err)
			}
		}()
	}

	var notifier recheck.Notifier
	if teams := notify.NewTeams(cfg.Notifications); teams != nil {
		notifier = teams
	}

	bot := recheck.NewBot(backend, botOptions(cfg), notifier)
	if once {
		return bot.RunCycle(cmd.Context())
	}
	return bot.Run(cmd.Context())
}
