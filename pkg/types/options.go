package types

import "github.com/yairfalse/aurora-snapshot-copier/internal/errors"

// DefaultInstanceIdentifier is used when no instance identifier is configured.
// Deployments sharing a registry must each set their own.
const DefaultInstanceIdentifier = "default"

// Options is the complete input of one copy-and-retain pass. It is built once
// at process entry and passed explicitly to every operation.
type Options struct {
	Sources            []SourceSelector   `json:"sources"`
	Aggregation        *AggregationPolicy `json:"aggregation,omitempty"`
	Target             Target             `json:"target"`
	InstanceIdentifier string             `json:"instance_identifier"`
	SourceRegion       string             `json:"source_region"`
}

// Instance returns the configured instance identifier or the default
func (o Options) Instance() string {
	if o.InstanceIdentifier == "" {
		return DefaultInstanceIdentifier
	}
	return o.InstanceIdentifier
}

// Validate checks the bounds every pass relies on
func (o Options) Validate() error {
	if len(o.Target.Regions) == 0 {
		return errors.Configuration("at least one target region is required")
	}
	for i, region := range o.Target.Regions {
		if region == "" {
			return errors.Configuration("target region %d is empty", i)
		}
	}
	if o.Aggregation != nil && o.Aggregation.LatestCountPerCluster != nil && *o.Aggregation.LatestCountPerCluster < 1 {
		return errors.Configuration("aggregation latest count per cluster must be at least 1, got %d", *o.Aggregation.LatestCountPerCluster)
	}
	if policy := o.Target.DeletionPolicy; policy != nil {
		if policy.KeepLatestCountPerDBClusterIdentifier != nil && *policy.KeepLatestCountPerDBClusterIdentifier < 1 {
			return errors.Configuration("deletion policy keep latest count must be at least 1, got %d", *policy.KeepLatestCountPerDBClusterIdentifier)
		}
		if policy.KeepCreatedInTheLastSeconds != nil && *policy.KeepCreatedInTheLastSeconds < 0 {
			return errors.Configuration("deletion policy keep seconds must not be negative, got %d", *policy.KeepCreatedInTheLastSeconds)
		}
	}
	return nil
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int {
	return &v
}

// Int64Ptr returns a pointer to v
func Int64Ptr(v int64) *int64 {
	return &v
}
