package types

import (
	"fmt"
	"time"
)

// TagConstraint restricts the value of a single tag on a source snapshot.
// Any means the tag only has to exist; otherwise its value must be one of Values.
type TagConstraint struct {
	Any    bool
	Values []string
}

// AnyValue returns a constraint satisfied by any value of the tag
func AnyValue() TagConstraint {
	return TagConstraint{Any: true}
}

// OneOf returns a constraint satisfied when the tag value is one of values
func OneOf(values ...string) TagConstraint {
	return TagConstraint{Values: values}
}

// Allows reports whether a tag value satisfies the constraint
func (c TagConstraint) Allows(value string, present bool) bool {
	if !present {
		return false
	}
	if c.Any {
		return true
	}
	for _, v := range c.Values {
		if v == value {
			return true
		}
	}
	return false
}

// ParseTagConstraint accepts true or a list of strings. Anything else is rejected.
func ParseTagConstraint(raw interface{}) (TagConstraint, error) {
	switch v := raw.(type) {
	case bool:
		if v {
			return AnyValue(), nil
		}
	case []string:
		return OneOf(v...), nil
	case []interface{}:
		values := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return TagConstraint{}, fmt.Errorf("tag values must be strings, got %T", item)
			}
			values = append(values, s)
		}
		return OneOf(values...), nil
	}
	return TagConstraint{}, fmt.Errorf("tag constraint must be true or a list of strings, got %v", raw)
}

// SourceSelector identifies snapshots to consider for copying.
// Zero-valued fields place no constraint.
type SourceSelector struct {
	DBClusterIdentifier         string                   `json:"db_cluster_identifier,omitempty"`
	Tags                        map[string]TagConstraint `json:"-"`
	SnapshotCreateTimeNotBefore *time.Time               `json:"snapshot_create_time_not_before,omitempty"`
	SnapshotType                string                   `json:"snapshot_type,omitempty"`
}

// AggregationPolicy bounds the set of snapshots to copy
type AggregationPolicy struct {
	LatestCountPerCluster *int `json:"latest_count_per_cluster,omitempty"`
}

// DeletionPolicy decides which owned copies in a target region are removed
type DeletionPolicy struct {
	KeepLatestCountPerDBClusterIdentifier *int   `json:"keep_latest_count_per_db_cluster_identifier,omitempty"`
	KeepCreatedInTheLastSeconds           *int64 `json:"keep_created_in_the_last_seconds,omitempty"`
	// Apply false is a dry run: snapshots are tagged instead of deleted.
	Apply bool `json:"apply"`
}

// Target lists the regions snapshots are copied into
type Target struct {
	Regions        []string        `json:"regions"`
	DeletionPolicy *DeletionPolicy `json:"deletion_policy,omitempty"`
}
