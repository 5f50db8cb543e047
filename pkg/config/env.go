package config

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/yairfalse/aurora-snapshot-copier/internal/errors"
	"github.com/yairfalse/aurora-snapshot-copier/internal/logger"
	"github.com/yairfalse/aurora-snapshot-copier/pkg/types"
)

// Environment variable names of the indexed layout used by function deployments
const (
	EnvAggregationLatestCountPerCluster = "AGGREGATION_LATEST_COUNT_PER_CLUSTER"
	EnvTargetRegions                    = "TARGET_REGIONS"
	EnvKeepLatestCount                  = "TARGET_DELETION_POLICY_KEEP_LATEST_COUNT_PER_DB_CLUSTER_IDENTIFIER"
	EnvKeepCreatedInTheLastSeconds      = "TARGET_DELETION_POLICY_KEEP_CREATED_IN_THE_LAST_SECONDS"
	EnvDeletionPolicyApply              = "TARGET_DELETION_POLICY_APPLY"
	EnvInstanceIdentifier               = "INSTANCE_IDENTIFIER"
)

func sourceEnv(index int, name string) string {
	return fmt.Sprintf("SOURCE_%d_%s", index, name)
}

// FromEnv builds a configuration from the indexed environment layout.
// Sources are read from index 0 up to the first index with no variables set.
// Malformed tag JSON is logged and ignored; malformed numbers are errors.
func FromEnv(lookup func(string) (string, bool), log logger.Logger) (*Config, error) {
	if log == nil {
		log = logger.Nop()
	}

	config := DefaultConfig()
	config.SourceRegion = DetectRegion(lookup)

	for index := 0; ; index++ {
		source, ok := sourceFromEnv(lookup, index, log)
		if !ok {
			break
		}
		config.Sources = append(config.Sources, source)
	}

	if raw, ok := lookup(EnvTargetRegions); ok {
		config.Target.Regions = splitList(raw)
	}

	var policy DeletionPolicyConfig
	policySet := false
	if raw, ok := lookup(EnvKeepLatestCount); ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.Configuration("%s must be an integer, got %q", EnvKeepLatestCount, raw)
		}
		policy.KeepLatestCountPerDBClusterIdentifier = &n
		policySet = true
	}
	if raw, ok := lookup(EnvKeepCreatedInTheLastSeconds); ok {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, errors.Configuration("%s must be an integer, got %q", EnvKeepCreatedInTheLastSeconds, raw)
		}
		policy.KeepCreatedInTheLastSeconds = &n
		policySet = true
	}
	if raw, ok := lookup(EnvDeletionPolicyApply); ok {
		policy.Apply = raw != ""
		policySet = true
	}
	if policySet {
		config.Target.DeletionPolicy = &policy
	}

	if raw, ok := lookup(EnvAggregationLatestCountPerCluster); ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.Configuration("%s must be an integer, got %q", EnvAggregationLatestCountPerCluster, raw)
		}
		config.Aggregation.LatestCountPerCluster = &n
	}

	if raw, ok := lookup(EnvInstanceIdentifier); ok && raw != "" {
		config.InstanceIdentifier = raw
	}

	return config, nil
}

func sourceFromEnv(lookup func(string) (string, bool), index int, log logger.Logger) (SourceConfig, bool) {
	var source SourceConfig
	found := false

	if raw, ok := lookup(sourceEnv(index, "DB_CLUSTER_IDENTIFIER")); ok {
		source.DBClusterIdentifier = raw
		found = true
	}
	if raw, ok := lookup(sourceEnv(index, "TAGS")); ok {
		source.Tags = tagsFromJSON(raw, log.WithField("source", index))
		found = found || len(source.Tags) > 0
	}
	if raw, ok := lookup(sourceEnv(index, "SNAPSHOT_CREATE_TIME_NOT_BEFORE")); ok {
		source.SnapshotCreateTimeNotBefore = raw
		found = true
	}
	if raw, ok := lookup(sourceEnv(index, "SNAPSHOT_TYPE")); ok {
		source.SnapshotType = raw
		found = true
	}

	return source, found
}

// tagsFromJSON decodes an object whose values are true or arrays of strings.
// Other values are dropped.
func tagsFromJSON(raw string, log logger.Logger) []TagConfig {
	var parsed interface{}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		log.Error("Error reading tags as JSON", err)
		return nil
	}

	object, ok := parsed.(map[string]interface{})
	if !ok {
		log.Warn("Unexpected shape of parsed JSON for tags")
		return nil
	}

	keys := make([]string, 0, len(object))
	for key := range object {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var tags []TagConfig
	for _, key := range keys {
		constraint, err := types.ParseTagConstraint(object[key])
		if err != nil {
			log.WithField("tag", key).Debug("Dropping tag constraint: " + err.Error())
			continue
		}
		tags = append(tags, TagConfig{Key: key, Any: constraint.Any, Values: constraint.Values})
	}
	return tags
}

// ToEnv renders the pass-related parts of the configuration in the indexed
// environment layout. FromEnv reads it back.
func ToEnv(c *Config) (map[string]string, error) {
	env := make(map[string]string)

	for index, source := range c.Sources {
		if source.DBClusterIdentifier != "" {
			env[sourceEnv(index, "DB_CLUSTER_IDENTIFIER")] = source.DBClusterIdentifier
		}
		if len(source.Tags) > 0 {
			object := make(map[string]interface{}, len(source.Tags))
			for _, tag := range source.Tags {
				if tag.Any {
					object[tag.Key] = true
				} else {
					object[tag.Key] = append([]string{}, tag.Values...)
				}
			}
			encoded, err := json.Marshal(object)
			if err != nil {
				return nil, errors.Wrap(errors.ErrorTypeConfiguration, err, "failed to encode source tags")
			}
			env[sourceEnv(index, "TAGS")] = string(encoded)
		}
		if source.SnapshotCreateTimeNotBefore != "" {
			env[sourceEnv(index, "SNAPSHOT_CREATE_TIME_NOT_BEFORE")] = source.SnapshotCreateTimeNotBefore
		}
		if source.SnapshotType != "" {
			env[sourceEnv(index, "SNAPSHOT_TYPE")] = source.SnapshotType
		}
	}

	if n := c.Aggregation.LatestCountPerCluster; n != nil {
		env[EnvAggregationLatestCountPerCluster] = strconv.Itoa(*n)
	}

	if p := c.Target.DeletionPolicy; p != nil {
		if p.KeepLatestCountPerDBClusterIdentifier != nil {
			env[EnvKeepLatestCount] = strconv.Itoa(*p.KeepLatestCountPerDBClusterIdentifier)
		}
		if p.KeepCreatedInTheLastSeconds != nil {
			env[EnvKeepCreatedInTheLastSeconds] = strconv.FormatInt(*p.KeepCreatedInTheLastSeconds, 10)
		}
		env[EnvDeletionPolicyApply] = ""
		if p.Apply {
			env[EnvDeletionPolicyApply] = "1"
		}
	}

	env[EnvTargetRegions] = strings.Join(c.Target.Regions, ",")

	if c.InstanceIdentifier != "" {
		env[EnvInstanceIdentifier] = c.InstanceIdentifier
	}

	return env, nil
}

func splitList(raw string) []string {
	var list []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}
