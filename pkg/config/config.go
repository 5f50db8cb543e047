package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yairfalse/aurora-snapshot-copier/internal/errors"
	"github.com/yairfalse/aurora-snapshot-copier/internal/scheduler"
	"github.com/yairfalse/aurora-snapshot-copier/pkg/types"
)

// Config represents the complete snapcopier configuration
type Config struct {
	Sources            []SourceConfig    `mapstructure:"sources" yaml:"sources"`
	Aggregation        AggregationConfig `mapstructure:"aggregation" yaml:"aggregation,omitempty"`
	Target             TargetConfig      `mapstructure:"target" yaml:"target"`
	InstanceIdentifier string            `mapstructure:"instance_identifier" yaml:"instance_identifier"`
	SourceRegion       string            `mapstructure:"source_region" yaml:"source_region"`
	AWS                AWSConfig         `mapstructure:"aws" yaml:"aws"`
	Logging            LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	Schedule           string            `mapstructure:"schedule" yaml:"schedule,omitempty"`
	Metrics            MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
}

// SourceConfig selects source snapshots. SnapshotCreateTimeNotBefore is RFC 3339.
type SourceConfig struct {
	DBClusterIdentifier         string      `mapstructure:"db_cluster_identifier" yaml:"db_cluster_identifier,omitempty"`
	Tags                        []TagConfig `mapstructure:"tags" yaml:"tags,omitempty"`
	SnapshotCreateTimeNotBefore string      `mapstructure:"snapshot_create_time_not_before" yaml:"snapshot_create_time_not_before,omitempty"`
	SnapshotType                string      `mapstructure:"snapshot_type" yaml:"snapshot_type,omitempty"`
}

// TagConfig constrains one tag. Tag keys are values rather than map keys so
// their case survives the config layer.
type TagConfig struct {
	Key    string   `mapstructure:"key" yaml:"key"`
	Any    bool     `mapstructure:"any" yaml:"any,omitempty"`
	Values []string `mapstructure:"values" yaml:"values,omitempty"`
}

// AggregationConfig bounds the selected snapshots per cluster
type AggregationConfig struct {
	LatestCountPerCluster *int `mapstructure:"latest_count_per_cluster" yaml:"latest_count_per_cluster,omitempty"`
}

// TargetConfig lists target regions and their deletion policy
type TargetConfig struct {
	Regions        []string              `mapstructure:"regions" yaml:"regions"`
	DeletionPolicy *DeletionPolicyConfig `mapstructure:"deletion_policy" yaml:"deletion_policy,omitempty"`
}

// DeletionPolicyConfig contains deletion policy configuration
type DeletionPolicyConfig struct {
	KeepLatestCountPerDBClusterIdentifier *int   `mapstructure:"keep_latest_count_per_db_cluster_identifier" yaml:"keep_latest_count_per_db_cluster_identifier,omitempty"`
	KeepCreatedInTheLastSeconds           *int64 `mapstructure:"keep_created_in_the_last_seconds" yaml:"keep_created_in_the_last_seconds,omitempty"`
	Apply                                 bool   `mapstructure:"apply" yaml:"apply"`
}

// AWSConfig contains AWS client configuration
type AWSConfig struct {
	Profile    string        `mapstructure:"profile" yaml:"profile,omitempty"`
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig contains the metrics endpoint of the serve command
type MetricsConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		InstanceIdentifier: types.DefaultInstanceIdentifier,
		SourceRegion:       DetectRegion(os.LookupEnv),
		AWS: AWSConfig{
			MaxRetries: DefaultMaxRetries,
			Timeout:    DefaultTimeout,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Listen: DefaultMetricsListen,
		},
	}
}

// Load loads configuration from configFile, or from snapcopier.yaml in the
// search paths when configFile is empty, with SNAPCOPIER_ env overrides.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("snapcopier")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".snapcopier"))
		}
		v.AddConfigPath("/etc/snapcopier")
	}

	v.SetEnvPrefix("SNAPCOPIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only resolves keys viper already knows
	_ = v.BindEnv("target.regions")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, errors.Wrap(errors.ErrorTypeConfiguration, err, "failed to read config file")
		}
		// Config file not found is not an error - we'll use defaults
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeConfiguration, err, "failed to unmarshal config")
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if _, err := c.Options(); err != nil {
		return err
	}

	if c.Schedule != "" {
		if err := scheduler.Validate(c.Schedule); err != nil {
			return err
		}
	}

	if c.AWS.MaxRetries < 0 {
		return errors.Configuration("aws max retries must not be negative, got %d", c.AWS.MaxRetries)
	}

	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return errors.Configuration("unsupported logging format %q", c.Logging.Format)
	}

	return nil
}

// Warnings returns problems that do not prevent a pass from running
func (c *Config) Warnings() []string {
	var warnings []string
	for _, region := range c.Target.Regions {
		if region == c.SourceRegion {
			warnings = append(warnings, fmt.Sprintf("target region %s is the source region and will be skipped", region))
		}
	}
	if c.SourceRegion == "" {
		warnings = append(warnings, "source region is not set, set source_region or AWS_REGION")
	}
	return warnings
}

// Options converts the configuration into validated pass options
func (c *Config) Options() (types.Options, error) {
	opts := types.Options{
		InstanceIdentifier: c.InstanceIdentifier,
		SourceRegion:       c.SourceRegion,
		Target: types.Target{
			Regions: append([]string(nil), c.Target.Regions...),
		},
	}

	for i, source := range c.Sources {
		selector, err := source.Selector()
		if err != nil {
			return types.Options{}, errors.Configuration("source %d: %v", i, err)
		}
		opts.Sources = append(opts.Sources, selector)
	}

	if c.Aggregation.LatestCountPerCluster != nil {
		opts.Aggregation = &types.AggregationPolicy{
			LatestCountPerCluster: types.IntPtr(*c.Aggregation.LatestCountPerCluster),
		}
	}

	if p := c.Target.DeletionPolicy; p != nil {
		policy := &types.DeletionPolicy{Apply: p.Apply}
		if p.KeepLatestCountPerDBClusterIdentifier != nil {
			policy.KeepLatestCountPerDBClusterIdentifier = types.IntPtr(*p.KeepLatestCountPerDBClusterIdentifier)
		}
		if p.KeepCreatedInTheLastSeconds != nil {
			policy.KeepCreatedInTheLastSeconds = types.Int64Ptr(*p.KeepCreatedInTheLastSeconds)
		}
		opts.Target.DeletionPolicy = policy
	}

	if err := opts.Validate(); err != nil {
		return types.Options{}, err
	}
	return opts, nil
}

// Selector converts a source into a selector
func (s SourceConfig) Selector() (types.SourceSelector, error) {
	selector := types.SourceSelector{
		DBClusterIdentifier: s.DBClusterIdentifier,
		SnapshotType:        s.SnapshotType,
	}

	if s.SnapshotCreateTimeNotBefore != "" {
		notBefore, err := time.Parse(time.RFC3339, s.SnapshotCreateTimeNotBefore)
		if err != nil {
			return types.SourceSelector{}, fmt.Errorf("invalid snapshot_create_time_not_before %q: %w", s.SnapshotCreateTimeNotBefore, err)
		}
		selector.SnapshotCreateTimeNotBefore = &notBefore
	}

	for _, tag := range s.Tags {
		if tag.Key == "" {
			return types.SourceSelector{}, fmt.Errorf("tag constraint without key")
		}
		if selector.Tags == nil {
			selector.Tags = make(map[string]types.TagConstraint)
		}
		if tag.Any {
			selector.Tags[tag.Key] = types.AnyValue()
		} else {
			selector.Tags[tag.Key] = types.OneOf(tag.Values...)
		}
	}

	return selector, nil
}
