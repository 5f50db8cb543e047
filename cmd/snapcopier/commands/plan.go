package commands

import (
	"github.com/spf13/cobra"

	"github.com/yairfalse/aurora-snapshot-copier/internal/output"
	"github.com/yairfalse/aurora-snapshot-copier/internal/runner"
)

func newPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what a pass would copy and delete",
		Long: `Plan performs every read of a pass and evaluates the aggregation and deletion
policies, then prints the copies and deletion actions a run would take.

Nothing is copied, tagged or deleted.`,
		Example: `  # Show the plan as a table
  snapcopier plan

  # Show the plan as YAML
  snapcopier plan --output yaml`,
		RunE: runPlan,
	}

	cmd.Flags().StringP("output", "o", "table", "plan format (table, json, yaml)")

	return cmd
}

func runPlan(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("output")
	formatter, err := output.NewFormatter(format, noColor(cmd))
	if err != nil {
		return err
	}

	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	for _, warning := range cfg.Warnings() {
		log.Warn(warning)
	}

	ctx := cmd.Context()
	provider, err := newProvider(ctx)
	if err != nil {
		return err
	}

	plan, planErr := runner.New(provider, log, nil).Plan(ctx, opts)
	if plan == nil {
		return planErr
	}

	if err := formatter.FormatPlan(plan, cmd.OutOrStdout()); err != nil {
		return err
	}
	return planErr
}
