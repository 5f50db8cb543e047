package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/yairfalse/aurora-snapshot-copier/pkg/types"
)

const (
	// DefaultMaxRetries bounds SDK retry attempts per call
	DefaultMaxRetries = 5
	// DefaultTimeout bounds a single HTTP round trip to AWS
	DefaultTimeout = 30 * time.Second
	// DefaultMetricsListen is where serve exposes /metrics
	DefaultMetricsListen = ":9090"
)

// setDefaults registers defaults so env overrides resolve for every key
func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()

	v.SetDefault("instance_identifier", types.DefaultInstanceIdentifier)
	v.SetDefault("source_region", defaults.SourceRegion)

	v.SetDefault("aws.profile", "")
	v.SetDefault("aws.max_retries", defaults.AWS.MaxRetries)
	v.SetDefault("aws.timeout", defaults.AWS.Timeout)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)

	v.SetDefault("schedule", "")
	v.SetDefault("metrics.listen", defaults.Metrics.Listen)
}

// DetectRegion returns the region the process runs in, from AWS_REGION or
// AWS_DEFAULT_REGION.
func DetectRegion(lookup func(string) (string, bool)) string {
	for _, key := range []string{"AWS_REGION", "AWS_DEFAULT_REGION"} {
		if region, ok := lookup(key); ok && region != "" {
			return region
		}
	}
	return ""
}
