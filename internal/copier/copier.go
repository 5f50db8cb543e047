// Package copier plans and requests cross-region copies of cluster snapshots.
package copier

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/yairfalse/aurora-snapshot-copier/internal/errors"
	"github.com/yairfalse/aurora-snapshot-copier/internal/logger"
	"github.com/yairfalse/aurora-snapshot-copier/internal/registry"
	"github.com/yairfalse/aurora-snapshot-copier/internal/tags"
	"github.com/yairfalse/aurora-snapshot-copier/internal/workers"
	"github.com/yairfalse/aurora-snapshot-copier/pkg/types"
)

// automatedPrefix marks snapshot identifiers generated by RDS itself. It is
// not allowed in identifiers of manual snapshots such as copies.
const automatedPrefix = "rds:"

const noKey = "(none)"

// Outcome is what happened for one snapshot and target region
type Outcome string

const (
	// OutcomeCopied means a copy request was accepted
	OutcomeCopied Outcome = "copied"
	// OutcomeClaimed means the copy already existed and was tagged as ours
	OutcomeClaimed Outcome = "claimed"
	// OutcomeInconsistent means the copy reportedly exists but could not be found
	OutcomeInconsistent Outcome = "inconsistent"
	// OutcomeSkipped means the copy was not attempted
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed means the copy request failed
	OutcomeFailed Outcome = "failed"
)

// Request is one snapshot to copy into one target region
type Request struct {
	Snapshot              types.Snapshot
	SourceRegion          string
	TargetRegion          string
	SourceDefaultKMSKeyID string
	TargetDefaultKMSKeyID string
	InstanceIdentifier    string
}

// Result records the outcome of one Request
type Result struct {
	Snapshot     types.Snapshot
	TargetRegion string
	Outcome      Outcome
	Err          error
}

// TargetIdentifier derives the identifier of the copy from the source identifier
func TargetIdentifier(sourceIdentifier string) string {
	return strings.TrimPrefix(sourceIdentifier, automatedPrefix)
}

// TargetKMSKeyID returns the key to request for the copy. Snapshots encrypted
// with the source region's default key are re-encrypted with the target
// region's default key; anything else gets no override.
func TargetKMSKeyID(snapshotKeyID, sourceDefaultKeyID, targetDefaultKeyID string) string {
	if snapshotKeyID != "" && snapshotKeyID == sourceDefaultKeyID {
		return targetDefaultKeyID
	}
	return ""
}

// CopyTags returns the tags added to every copy
func CopyTags(snapshot types.Snapshot, sourceRegion, instanceIdentifier string) map[string]string {
	key, value := tags.OwnershipMarker(instanceIdentifier)
	copyTags := map[string]string{
		key:                      value,
		tags.CopiedFromRegionKey: sourceRegion,
	}
	if snapshot.KMSKeyID != "" {
		copyTags[tags.SourceRegionKMSKeyIDKey] = snapshot.KMSKeyID
	}
	return copyTags
}

// Copier issues copy requests against target region registries
type Copier struct {
	log logger.Logger
}

// New creates a Copier
func New(log logger.Logger) *Copier {
	if log == nil {
		log = logger.Nop()
	}
	return &Copier{log: log}
}

// CopyToRegion requests a copy of req.Snapshot in target. A copy that already
// exists is claimed by tagging it with this instance's ownership tag.
func (c *Copier) CopyToRegion(ctx context.Context, target *registry.Registry, req Request) Result {
	result := Result{Snapshot: req.Snapshot, TargetRegion: req.TargetRegion}
	log := c.log.WithFields(map[string]interface{}{
		"snapshot":     req.Snapshot.Identifier,
		"sourceRegion": req.SourceRegion,
		"targetRegion": req.TargetRegion,
	})

	if req.SourceRegion == req.TargetRegion {
		log.Warn("Failed to copy snapshot to region, cannot copy to the same region")
		result.Outcome = OutcomeSkipped
		return result
	}

	keyID := TargetKMSKeyID(req.Snapshot.KMSKeyID, req.SourceDefaultKMSKeyID, req.TargetDefaultKMSKeyID)
	log = log.WithField("targetRegionKmsKeyToUse", displayKey(keyID))

	log.WithFields(map[string]interface{}{
		"snapshotKmsKeyId":               req.Snapshot.KMSKeyID,
		"sourceRegionDefaultRdsKmsKeyId": req.SourceDefaultKMSKeyID,
	}).Debug("Compared KMS keys to determine whether this snapshot uses the default aws/rds key")

	targetIdentifier := TargetIdentifier(req.Snapshot.Identifier)
	log = log.WithField("targetSnapshotIdentifier", targetIdentifier)
	log.Info("Copying snapshot")

	err := target.CopySnapshot(ctx, registry.CopyRequest{
		SourceARN:        req.Snapshot.ARN,
		TargetIdentifier: targetIdentifier,
		SourceRegion:     req.SourceRegion,
		KMSKeyID:         keyID,
		Tags:             CopyTags(req.Snapshot, req.SourceRegion, req.InstanceIdentifier),
	})
	if err == nil {
		log.Info("Snapshot copy initiated")
		result.Outcome = OutcomeCopied
		return result
	}

	if !stderrors.Is(err, registry.ErrAlreadyExists) {
		log.Error("Failed to copy snapshot", err)
		result.Outcome = OutcomeFailed
		result.Err = err
		return result
	}

	log.Info("Snapshot already exists in the target region")
	result.Outcome, result.Err = c.claimExisting(ctx, target, targetIdentifier, req.InstanceIdentifier, log)
	return result
}

// claimExisting adds this instance's ownership tag to an existing copy
func (c *Copier) claimExisting(ctx context.Context, target *registry.Registry, targetIdentifier, instanceIdentifier string, log logger.Logger) (Outcome, error) {
	existing, err := target.ListSnapshots(ctx, registry.ListFilter{SnapshotIdentifier: targetIdentifier})
	if err != nil {
		log.Error("Failed to look up existing snapshot in target region", err)
		return OutcomeFailed, err
	}

	if len(existing) == 0 {
		log.Warn("Unable to find snapshot in target region, no matches")
		return OutcomeInconsistent, nil
	}

	arn := existing[0].DBClusterSnapshotArn
	if arn == nil || *arn == "" {
		log.Warn("Unable to find snapshot in target region, found snapshot but has no ARN")
		return OutcomeInconsistent, nil
	}

	key, value := tags.OwnershipMarker(instanceIdentifier)
	if err := target.AddTags(ctx, *arn, map[string]string{key: value}); err != nil {
		log.Error("Failed to claim existing snapshot", err)
		return OutcomeFailed, err
	}

	log.WithField("targetSnapshotArn", *arn).Info("Claimed existing snapshot in target region")
	return OutcomeClaimed, nil
}

// CopyToRegions copies every snapshot into every region, all concurrently.
// The source region's default key is resolved once, each target's once per region.
func (c *Copier) CopyToRegions(ctx context.Context, provider registry.Provider, snapshots []types.Snapshot, sourceRegion string, regions []string, instanceIdentifier string) []Result {
	if sourceRegion == "" {
		err := errors.Configuration("unable to determine source region")
		c.log.Error("Failed to copy snapshots", err)
		return []Result{{Outcome: OutcomeFailed, Err: err}}
	}

	source, err := provider.ForRegion(sourceRegion)
	if err != nil {
		return []Result{{Outcome: OutcomeFailed, Err: err}}
	}

	sourceDefaultKeyID, err := source.DefaultManagedKeyID(ctx)
	if err != nil {
		c.log.WithField("region", sourceRegion).Error("Failed to resolve default RDS KMS key", err)
		return []Result{{Outcome: OutcomeFailed, Err: err}}
	}

	perRegion := workers.FanOut(ctx, regions, func(ctx context.Context, region string) []Result {
		return c.copyToRegion(ctx, provider, snapshots, sourceRegion, region, sourceDefaultKeyID, instanceIdentifier)
	})

	var results []Result
	for _, r := range perRegion {
		results = append(results, r...)
	}
	return results
}

func (c *Copier) copyToRegion(ctx context.Context, provider registry.Provider, snapshots []types.Snapshot, sourceRegion, region, sourceDefaultKeyID, instanceIdentifier string) []Result {
	log := c.log.WithField("targetRegion", region)

	target, err := provider.ForRegion(region)
	if err != nil {
		log.Error("Failed to open target region", err)
		return []Result{{TargetRegion: region, Outcome: OutcomeFailed, Err: err}}
	}

	targetDefaultKeyID := ""
	if region != sourceRegion {
		targetDefaultKeyID, err = target.DefaultManagedKeyID(ctx)
		if err != nil {
			log.Error("Failed to resolve default RDS KMS key", err)
			return []Result{{TargetRegion: region, Outcome: OutcomeFailed, Err: err}}
		}
	}

	return workers.FanOut(ctx, snapshots, func(ctx context.Context, snapshot types.Snapshot) Result {
		return c.CopyToRegion(ctx, target, Request{
			Snapshot:              snapshot,
			SourceRegion:          sourceRegion,
			TargetRegion:          region,
			SourceDefaultKMSKeyID: sourceDefaultKeyID,
			TargetDefaultKMSKeyID: targetDefaultKeyID,
			InstanceIdentifier:    instanceIdentifier,
		})
	})
}

func displayKey(keyID string) string {
	if keyID == "" {
		return noKey
	}
	return keyID
}
