package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yairfalse/aurora-snapshot-copier/pkg/config"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		RunE:  runConfigShow,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "env",
		Short: "Print the configuration as function environment variables",
		Long: `Env prints the pass configuration in the indexed environment layout read by
the function entrypoint, one KEY=VALUE per line.`,
		RunE: runConfigEnv,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return nil
		},
	})

	return cmd
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	encoder := yaml.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent(2)
	if err := encoder.Encode(cfg); err != nil {
		return err
	}
	return encoder.Close()
}

func runConfigEnv(cmd *cobra.Command, args []string) error {
	env, err := config.ToEnv(cfg)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", key, env[key])
	}
	return nil
}
