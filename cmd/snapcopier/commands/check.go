package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/yairfalse/aurora-snapshot-copier/internal/errors"
)

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate AWS credentials and configuration",
		Long: `Check validates the configuration and confirms AWS credentials are usable by
resolving the calling identity.`,
		RunE: runCheck,
	}

	cmd.Flags().BoolP("quiet", "q", false, "only report failures")

	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	quiet, _ := cmd.Flags().GetBool("quiet")
	if noColor(cmd) {
		color.NoColor = true
	}
	out := cmd.OutOrStdout()

	if err := cfg.Validate(); err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintf(out, "%s configuration is valid\n", color.GreenString("✓"))
	}
	for _, warning := range cfg.Warnings() {
		fmt.Fprintf(out, "%s %s\n", color.YellowString("!"), warning)
	}

	ctx := cmd.Context()
	provider, err := newProvider(ctx)
	if err != nil {
		return err
	}

	identity, err := provider.ValidateCredentials(ctx)
	if err != nil {
		return err
	}
	if provider.Region() == "" {
		return errors.Configuration("no AWS region configured").
			WithSolutions("Set source_region in the config file", "Export AWS_REGION")
	}

	if !quiet {
		fmt.Fprintf(out, "%s AWS credentials are valid (%s)\n", color.GreenString("✓"), identity)
		fmt.Fprintf(out, "%s source region %s, target regions %v\n", color.GreenString("✓"), provider.Region(), cfg.Target.Regions)
	}
	return nil
}
