package types

import (
	"errors"
	"strings"
	"time"
)

// Snapshot is a usable cluster snapshot record read from the registry
type Snapshot struct {
	Identifier        string    `json:"identifier" yaml:"identifier"`
	ARN               string    `json:"arn" yaml:"arn"`
	ClusterIdentifier string    `json:"cluster_identifier" yaml:"cluster_identifier"`
	CreatedAt         time.Time `json:"created_at" yaml:"created_at"`
	KMSKeyID          string    `json:"kms_key_id,omitempty" yaml:"kms_key_id,omitempty"`
}

// CreatedAtTime returns the snapshot creation time. It lets Snapshot and
// anything embedding it be held in a retention queue.
func (s Snapshot) CreatedAtTime() time.Time {
	return s.CreatedAt
}

// Validate checks the fields every usable snapshot must carry
func (s Snapshot) Validate() error {
	if strings.TrimSpace(s.Identifier) == "" {
		return errors.New("snapshot identifier is required")
	}
	if strings.TrimSpace(s.ARN) == "" {
		return errors.New("snapshot ARN is required")
	}
	if strings.TrimSpace(s.ClusterIdentifier) == "" {
		return errors.New("snapshot cluster identifier is required")
	}
	if s.CreatedAt.IsZero() {
		return errors.New("snapshot create time is required")
	}
	return nil
}

// SnapshotForDeletion is an owned snapshot in a target region being
// considered by the deletion policy.
type SnapshotForDeletion struct {
	Snapshot `yaml:",inline"`
	// JustRemoveTag is set when another instance also claims the snapshot,
	// so only this instance's ownership tag may be removed.
	JustRemoveTag bool `json:"just_remove_tag" yaml:"just_remove_tag"`
}
