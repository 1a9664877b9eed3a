package cli

import (
	"fmt"
	"log/slog"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/alanmeadows/recheck/internal/recheck"
)

var statusCmd = &cobra.Command{
	Use:   "status <user> <token> <org> <repo> <prs...>",
	Short: "Show what recheck would do for each PR",
	Long: `Evaluate every configured pull request once and print the decision
in a table. Nothing is posted.`,
	Example: `  recheck status bot s3cret github.example.com team/service 101 102
  recheck status --config recheck.yaml`,
	Args: positionalArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd, args)
		if err != nil {
			return err
		}
		backend, err := newBackend(cfg)
		if err != nil {
			return err
		}

		bot := recheck.NewBot(backend, botOptions(cfg), nil)

		rows := make([][]string, 0, len(cfg.PRs))
		for _, pr := range cfg.PRs {
			eval, err := bot.Evaluate(cmd.Context(), pr)
			if err != nil {
				if !cfg.ContinueOnError {
					return fmt.Errorf("evaluating PR %s: %w", pr, err)
				}
				slog.Error("failed to evaluate PR", "pr", pr, "error", err)
				rows = append(rows, []string{pr, "-", "-", "-", "error"})
				continue
			}
			rows = append(rows, statusRow(eval))
		}

		fmt.Fprintln(cmd.OutOrStdout(), renderStatusTable(rows))
		return nil
	},
}

func statusRow(eval *recheck.Evaluation) []string {
	head := eval.HeadSHA
	if len(head) > 7 {
		head = head[:7]
	}
	last := eval.LastComment
	if len(last) > 40 {
		last = last[:37] + "..."
	}
	if last == "" {
		last = "-"
	}
	return []string{eval.PR, head, eval.MergeableState, last, eval.Action.String()}
}

func renderStatusTable(rows [][]string) *table.Table {
	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PR", "HEAD", "MERGEABLE", "LAST COMMENT", "DECISION").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}
