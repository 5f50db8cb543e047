package commands

import (
	"github.com/spf13/cobra"

	"github.com/yairfalse/aurora-snapshot-copier/internal/output"
	"github.com/yairfalse/aurora-snapshot-copier/internal/runner"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one copy and retention pass",
		Long: `Run lists the source snapshots, copies the selected ones into every target
region and applies the deletion policy to the copies this instance owns.

Failures of single copies or deletions do not stop the pass. They are listed
in the report and the command exits non-zero.`,
		Example: `  # Execute one pass with the default configuration
  snapcopier run

  # Execute a pass and print the report as JSON
  snapcopier run --output json`,
		RunE: runRun,
	}

	cmd.Flags().StringP("output", "o", "table", "report format (table, json, yaml)")

	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
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

	report, runErr := runner.New(provider, log, nil).Run(ctx, opts)
	if report == nil {
		return runErr
	}

	if err := formatter.FormatReport(report, cmd.OutOrStdout()); err != nil {
		return err
	}
	return runErr
}
