package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/yairfalse/aurora-snapshot-copier/internal/errors"
	"github.com/yairfalse/aurora-snapshot-copier/internal/logger"
	"github.com/yairfalse/aurora-snapshot-copier/internal/registry"
	"github.com/yairfalse/aurora-snapshot-copier/pkg/config"
)

var (
	cfgFile string
	cfg     *config.Config
	log     logger.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "snapcopier",
	Short: "Copy Aurora cluster snapshots across regions and retain them",
	Long: `snapcopier copies Aurora cluster snapshots from a source region into one or
more target regions and applies a retention policy to the copies it owns.

Every copy is tagged with the instance identifier that made it, so several
deployments can share target regions without deleting each other's copies.

  snapcopier plan       # Show what a pass would copy and delete
  snapcopier run        # Execute one pass
  snapcopier serve      # Execute passes on a schedule and expose metrics
  snapcopier check      # Validate AWS credentials and configuration`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
			runVersion(cmd, []string{})
			return nil
		}
		return cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		errors.DisplayError(os.Stderr, err)
		os.Exit(errors.GetExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./snapcopier.yaml, $HOME/.snapcopier/snapcopier.yaml or /etc/snapcopier/snapcopier.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (json, text)")
	rootCmd.PersistentFlags().String("instance", "", "instance identifier that owns the copies")
	rootCmd.PersistentFlags().String("region", "", "source region (default from AWS_REGION)")
	rootCmd.PersistentFlags().String("profile", "", "AWS shared config profile")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	rootCmd.Flags().Bool("version", false, "show version information")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newCheckCommand())
	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newVersionCommand())
}

// initConfig reads in config file and ENV variables, then applies flags.
func initConfig(cmd *cobra.Command) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if v, _ := flags.GetString("log-format"); v != "" {
		cfg.Logging.Format = v
	}
	if v, _ := flags.GetString("instance"); v != "" {
		cfg.InstanceIdentifier = v
	}
	if v, _ := flags.GetString("region"); v != "" {
		cfg.SourceRegion = v
	}
	if v, _ := flags.GetString("profile"); v != "" {
		cfg.AWS.Profile = v
	}

	log = logger.New(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})

	return nil
}

// newProvider loads AWS configuration for the source region
func newProvider(ctx context.Context) (*registry.ClientProvider, error) {
	awsCfg, err := registry.LoadAWSConfig(ctx, registry.ClientConfig{
		Region:     cfg.SourceRegion,
		Profile:    cfg.AWS.Profile,
		MaxRetries: cfg.AWS.MaxRetries,
		Timeout:    cfg.AWS.Timeout,
	})
	if err != nil {
		return nil, errors.AWSCredentialsError(err)
	}
	return registry.NewClientProvider(awsCfg, log), nil
}

func noColor(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("no-color")
	return v || os.Getenv("NO_COLOR") != ""
}
