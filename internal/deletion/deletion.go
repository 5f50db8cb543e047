// Package deletion applies a deletion policy to the copies this instance owns
// in a target region.
package deletion

import (
	"context"
	"time"

	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"

	"github.com/yairfalse/aurora-snapshot-copier/internal/logger"
	"github.com/yairfalse/aurora-snapshot-copier/internal/matcher"
	"github.com/yairfalse/aurora-snapshot-copier/internal/registry"
	"github.com/yairfalse/aurora-snapshot-copier/internal/retention"
	"github.com/yairfalse/aurora-snapshot-copier/internal/tags"
	"github.com/yairfalse/aurora-snapshot-copier/internal/workers"
	"github.com/yairfalse/aurora-snapshot-copier/pkg/types"
)

// Action is what is done to a snapshot marked for deletion
type Action string

const (
	// ActionDelete deletes the snapshot
	ActionDelete Action = "delete"
	// ActionUntag removes only this instance's ownership tag
	ActionUntag Action = "untag"
	// ActionDryRun tags the snapshot with the time it would have been deleted
	ActionDryRun Action = "dry-run"
)

// Result records the outcome of one deletion action, or of a failed region
// listing when Snapshot is empty.
type Result struct {
	Snapshot types.SnapshotForDeletion
	Region   string
	Action   Action
	Err      error
}

// Evaluator decides and executes deletion actions
type Evaluator struct {
	log logger.Logger
	now func() time.Time
}

// New creates an Evaluator. now defaults to time.Now.
func New(log logger.Logger, now func() time.Time) *Evaluator {
	if log == nil {
		log = logger.Nop()
	}
	if now == nil {
		now = time.Now
	}
	return &Evaluator{log: log, now: now}
}

// Owned returns the usable snapshots carrying this instance's ownership tag.
// Snapshots also claimed by another instance are marked JustRemoveTag.
func Owned(inventory []rdstypes.DBClusterSnapshot, instanceIdentifier string) []types.SnapshotForDeletion {
	var owned []types.SnapshotForDeletion
	for _, raw := range inventory {
		snapshot, err := matcher.Usable(raw)
		if err != nil {
			continue
		}

		ownership := tags.OwnershipOf(tags.Decode(raw.TagList), instanceIdentifier)
		if !ownership.ByThisInstance {
			continue
		}

		owned = append(owned, types.SnapshotForDeletion{
			Snapshot:      snapshot,
			JustRemoveTag: ownership.ByOtherInstance,
		})
	}
	return owned
}

// Filter returns the snapshots the policy marks for deletion. The latest
// KeepLatestCountPerDBClusterIdentifier per cluster are always kept; of the
// rest only those older than KeepCreatedInTheLastSeconds are returned.
func (e *Evaluator) Filter(policy types.DeletionPolicy, snapshots []types.SnapshotForDeletion) ([]types.SnapshotForDeletion, error) {
	var notSaved []types.SnapshotForDeletion

	if policy.KeepLatestCountPerDBClusterIdentifier != nil {
		keep := *policy.KeepLatestCountPerDBClusterIdentifier
		perCluster := make(map[string]*retention.Queue[types.SnapshotForDeletion])

		for _, snapshot := range snapshots {
			queue, ok := perCluster[snapshot.ClusterIdentifier]
			if !ok {
				var err error
				queue, err = retention.New[types.SnapshotForDeletion](keep)
				if err != nil {
					return nil, err
				}
				perCluster[snapshot.ClusterIdentifier] = queue
			}
			if evicted, ok := queue.Push(snapshot); ok {
				notSaved = append(notSaved, evicted)
			}
		}

		saved := make(map[string][]string, len(perCluster))
		for cluster, queue := range perCluster {
			for _, s := range queue.Items() {
				saved[cluster] = append(saved[cluster], s.Identifier)
			}
		}
		e.log.WithFields(map[string]interface{}{
			"saved":                                 saved,
			"keepLatestCountPerDbClusterIdentifier": keep,
		}).Info("Snapshots marked safe per cluster")
	} else {
		notSaved = append(notSaved, snapshots...)
	}

	e.log.WithField("count", len(notSaved)).Info("Snapshots still considering for deletion")

	if policy.KeepCreatedInTheLastSeconds == nil {
		return notSaved, nil
	}

	cutoff := e.now().Add(-time.Duration(*policy.KeepCreatedInTheLastSeconds) * time.Second)
	var toDelete []types.SnapshotForDeletion
	for _, snapshot := range notSaved {
		if snapshot.CreatedAt.Before(cutoff) {
			toDelete = append(toDelete, snapshot)
		}
	}
	return toDelete, nil
}

// ActionFor returns the action taken on a snapshot marked for deletion
func ActionFor(snapshot types.SnapshotForDeletion, policy types.DeletionPolicy) Action {
	if snapshot.JustRemoveTag {
		return ActionUntag
	}
	if policy.Apply {
		return ActionDelete
	}
	return ActionDryRun
}

// Execute performs the action for every snapshot concurrently
func (e *Evaluator) Execute(ctx context.Context, target *registry.Registry, policy types.DeletionPolicy, snapshots []types.SnapshotForDeletion, instanceIdentifier string) []Result {
	return workers.FanOut(ctx, snapshots, func(ctx context.Context, snapshot types.SnapshotForDeletion) Result {
		return e.execute(ctx, target, policy, snapshot, instanceIdentifier)
	})
}

func (e *Evaluator) execute(ctx context.Context, target *registry.Registry, policy types.DeletionPolicy, snapshot types.SnapshotForDeletion, instanceIdentifier string) Result {
	action := ActionFor(snapshot, policy)
	result := Result{Snapshot: snapshot, Region: target.Region(), Action: action}
	log := e.log.WithFields(map[string]interface{}{
		"region":     target.Region(),
		"identifier": snapshot.Identifier,
		"action":     string(action),
	})

	switch action {
	case ActionUntag:
		log.Info("Snapshot also copied by another instance, removing ownership tag")
		result.Err = target.RemoveTags(ctx, snapshot.ARN, []string{tags.OwnershipKey(instanceIdentifier)})
	case ActionDelete:
		log.Info("Deleting snapshot")
		result.Err = target.DeleteSnapshot(ctx, snapshot.Identifier)
	case ActionDryRun:
		log.Info("Dry-run, marking snapshot as would-have-deleted")
		result.Err = target.AddTags(ctx, snapshot.ARN, map[string]string{
			tags.DryRunDeletedAtKey: e.now().UTC().Format(tags.DryRunDeletedAtTimestamp),
		})
	}

	if result.Err != nil {
		log.Error("Failed to apply deletion policy to snapshot", result.Err)
	}
	return result
}

// Plan lists the target region and returns the snapshots the policy marks for deletion
func (e *Evaluator) Plan(ctx context.Context, target *registry.Registry, policy types.DeletionPolicy, instanceIdentifier string) ([]types.SnapshotForDeletion, error) {
	inventory, err := target.ListSnapshots(ctx, registry.ListFilter{})
	if err != nil {
		return nil, err
	}

	owned := Owned(inventory, instanceIdentifier)
	e.log.WithFields(map[string]interface{}{
		"region": target.Region(),
		"count":  len(owned),
	}).Info("Found snapshots for deletion consideration")

	return e.Filter(policy, owned)
}

// HandleRegion plans and executes the deletion policy in one target region
func (e *Evaluator) HandleRegion(ctx context.Context, target *registry.Registry, policy types.DeletionPolicy, instanceIdentifier string) []Result {
	e.log.WithFields(map[string]interface{}{
		"region":         target.Region(),
		"deletionPolicy": policy,
	}).Info("Handling deletion policy")

	toDelete, err := e.Plan(ctx, target, policy, instanceIdentifier)
	if err != nil {
		e.log.WithField("region", target.Region()).Error("Failed to evaluate deletion policy", err)
		return []Result{{Region: target.Region(), Err: err}}
	}

	return e.Execute(ctx, target, policy, toDelete, instanceIdentifier)
}

// HandleRegions applies the deletion policy in every region concurrently.
// A nil policy does nothing.
func (e *Evaluator) HandleRegions(ctx context.Context, provider registry.Provider, regions []string, policy *types.DeletionPolicy, instanceIdentifier string) []Result {
	if policy == nil {
		e.log.Info("No deletion policy, nothing to do")
		return nil
	}

	perRegion := workers.FanOut(ctx, regions, func(ctx context.Context, region string) []Result {
		target, err := provider.ForRegion(region)
		if err != nil {
			return []Result{{Region: region, Err: err}}
		}
		return e.HandleRegion(ctx, target, *policy, instanceIdentifier)
	})

	var results []Result
	for _, r := range perRegion {
		results = append(results, r...)
	}
	return results
}
