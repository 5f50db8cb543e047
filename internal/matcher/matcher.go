// Package matcher decides whether raw registry snapshots satisfy a source
// selector and turns usable ones into snapshot records.
package matcher

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"

	"github.com/yairfalse/aurora-snapshot-copier/internal/errors"
	"github.com/yairfalse/aurora-snapshot-copier/internal/logger"
	"github.com/yairfalse/aurora-snapshot-copier/internal/tags"
	"github.com/yairfalse/aurora-snapshot-copier/pkg/types"
)

// Matcher evaluates source selectors against raw snapshots
type Matcher struct {
	log logger.Logger
}

// New creates a Matcher that logs every rejection
func New(log logger.Logger) *Matcher {
	if log == nil {
		log = logger.Nop()
	}
	return &Matcher{log: log}
}

// Matches reports whether snapshot satisfies every constraint in source
func (m *Matcher) Matches(source types.SourceSelector, snapshot rdstypes.DBClusterSnapshot) bool {
	log := m.log.WithField("snapshot", aws.ToString(snapshot.DBClusterSnapshotIdentifier))

	// The API filter should already guarantee this.
	if source.DBClusterIdentifier != "" && source.DBClusterIdentifier != aws.ToString(snapshot.DBClusterIdentifier) {
		log.WithFields(map[string]interface{}{
			"foundDbClusterIdentifier":    aws.ToString(snapshot.DBClusterIdentifier),
			"requiredDbClusterIdentifier": source.DBClusterIdentifier,
		}).Info("Rejecting because cluster identifier mismatch")
		return false
	}

	if len(source.Tags) > 0 {
		snapshotTags := tags.Decode(snapshot.TagList)
		for key, constraint := range source.Tags {
			value, present := snapshotTags[key]
			if constraint.Allows(value, present) {
				continue
			}
			if constraint.Any {
				log.WithField("filterTagKey", key).Info("Rejecting because required tag is missing")
			} else {
				log.WithFields(map[string]interface{}{
					"filterTagKey":     key,
					"snapshotTagValue": value,
					"filterTagValues":  constraint.Values,
				}).Info("Rejecting because required tag is not in the required options")
			}
			return false
		}
	}

	if source.SnapshotCreateTimeNotBefore != nil {
		if snapshot.SnapshotCreateTime == nil {
			log.Info("Rejecting because snapshot create time not set")
			return false
		}
		if snapshot.SnapshotCreateTime.Before(*source.SnapshotCreateTimeNotBefore) {
			log.WithFields(map[string]interface{}{
				"snapshotCreateTime":          *snapshot.SnapshotCreateTime,
				"snapshotCreateTimeNotBefore": *source.SnapshotCreateTimeNotBefore,
			}).Info("Rejecting because snapshot create time is too old")
			return false
		}
	}

	if source.SnapshotType != "" && source.SnapshotType != aws.ToString(snapshot.SnapshotType) {
		log.WithFields(map[string]interface{}{
			"foundSnapshotType":    aws.ToString(snapshot.SnapshotType),
			"requiredSnapshotType": source.SnapshotType,
		}).Info("Rejecting because snapshot type mismatch")
		return false
	}

	return true
}

// Filter returns the usable snapshots matching source, in input order.
// Unusable snapshots are dropped silently.
func (m *Matcher) Filter(source types.SourceSelector, snapshots []rdstypes.DBClusterSnapshot) []types.Snapshot {
	var matched []types.Snapshot
	for _, raw := range snapshots {
		snapshot, err := Usable(raw)
		if err != nil {
			continue
		}
		if m.Matches(source, raw) {
			matched = append(matched, snapshot)
		}
	}
	return matched
}

// Usable converts a raw snapshot to a record, failing when the identifier,
// ARN, cluster identifier or create time is missing or blank.
func Usable(raw rdstypes.DBClusterSnapshot) (types.Snapshot, error) {
	var missing []string
	if raw.DBClusterSnapshotIdentifier == nil {
		missing = append(missing, "DBClusterSnapshotIdentifier")
	}
	if raw.DBClusterSnapshotArn == nil {
		missing = append(missing, "DBClusterSnapshotArn")
	}
	if raw.DBClusterIdentifier == nil {
		missing = append(missing, "DBClusterIdentifier")
	}
	if raw.SnapshotCreateTime == nil {
		missing = append(missing, "SnapshotCreateTime")
	}
	if len(missing) > 0 {
		return types.Snapshot{}, errors.New(errors.ErrorTypeValidation, "unusable snapshot").
			WithCause(fmt.Sprintf("missing %s", strings.Join(missing, ", ")))
	}

	snapshot := types.Snapshot{
		Identifier:        *raw.DBClusterSnapshotIdentifier,
		ARN:               *raw.DBClusterSnapshotArn,
		ClusterIdentifier: *raw.DBClusterIdentifier,
		CreatedAt:         *raw.SnapshotCreateTime,
	}
	if err := snapshot.Validate(); err != nil {
		return types.Snapshot{}, errors.Wrap(errors.ErrorTypeValidation, err, "unusable snapshot")
	}
	if raw.KmsKeyId != nil && *raw.KmsKeyId != "" {
		snapshot.KMSKeyID = KMSKeyID(*raw.KmsKeyId)
	}
	return snapshot, nil
}

// KMSKeyID reduces a KMS key ARN to its key id. Ids are returned unchanged.
func KMSKeyID(idOrARN string) string {
	if !strings.HasPrefix(idOrARN, "arn:") || !strings.Contains(idOrARN, ":kms:") {
		return idOrARN
	}
	if i := strings.LastIndex(idOrARN, "/"); i >= 0 {
		return idOrARN[i+1:]
	}
	return idOrARN
}
