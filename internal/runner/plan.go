package runner

import (
	"context"

	"github.com/yairfalse/aurora-snapshot-copier/internal/copier"
	"github.com/yairfalse/aurora-snapshot-copier/internal/deletion"
	"github.com/yairfalse/aurora-snapshot-copier/internal/logger"
	"github.com/yairfalse/aurora-snapshot-copier/internal/workers"
	"github.com/yairfalse/aurora-snapshot-copier/pkg/types"
)

// PlannedCopy is a copy a pass would request
type PlannedCopy struct {
	Snapshot         types.Snapshot `json:"snapshot" yaml:"snapshot"`
	TargetRegion     string         `json:"target_region" yaml:"target_region"`
	TargetIdentifier string         `json:"target_identifier" yaml:"target_identifier"`
	KMSKeyID         string         `json:"kms_key_id,omitempty" yaml:"kms_key_id,omitempty"`
	Skipped          bool           `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// PlannedDeletion is a deletion policy action a pass would take
type PlannedDeletion struct {
	Snapshot types.SnapshotForDeletion `json:"snapshot" yaml:"snapshot"`
	Region   string                    `json:"region" yaml:"region"`
	Action   deletion.Action           `json:"action" yaml:"action"`
}

// Plan is the outcome of a pass that only reads the registries
type Plan struct {
	RunID     string            `json:"run_id" yaml:"run_id"`
	Matched   int               `json:"matched" yaml:"matched"`
	Selected  []types.Snapshot  `json:"selected" yaml:"selected"`
	Copies    []PlannedCopy     `json:"copies" yaml:"copies"`
	Deletions []PlannedDeletion `json:"deletions" yaml:"deletions"`
	Failures  []UnitFailure     `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// Plan performs every registry read and decision of Run and issues no
// mutations. Copies of snapshots that already exist are still listed.
func (r *Runner) Plan(ctx context.Context, opts types.Options) (*Plan, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	report := &Report{RunID: r.newRunID()}
	log := r.log.WithField("run_id", report.RunID)

	selected, failures := r.selectSnapshots(ctx, log, opts, report)
	plan := &Plan{
		RunID:    report.RunID,
		Matched:  report.Matched,
		Selected: selected,
		Failures: failures,
	}

	if len(selected) > 0 {
		copies, copyFailures := r.planCopies(ctx, log, opts, selected)
		plan.Copies = copies
		plan.Failures = append(plan.Failures, copyFailures...)
	}

	if policy := opts.Target.DeletionPolicy; policy != nil {
		deletions, deletionFailures := r.planDeletions(ctx, opts, *policy, log)
		plan.Deletions = deletions
		plan.Failures = append(plan.Failures, deletionFailures...)
	}

	return plan, (&Report{Failures: plan.Failures}).Err()
}

func (r *Runner) planCopies(ctx context.Context, log logger.Logger, opts types.Options, selected []types.Snapshot) ([]PlannedCopy, []UnitFailure) {
	source, err := r.provider.ForRegion(opts.SourceRegion)
	if err != nil {
		return nil, []UnitFailure{{Phase: PhaseCopy, Region: opts.SourceRegion, Err: err}}
	}
	sourceDefaultKeyID, err := source.DefaultManagedKeyID(ctx)
	if err != nil {
		return nil, []UnitFailure{{Phase: PhaseCopy, Region: opts.SourceRegion, Err: err}}
	}

	type regionPlan struct {
		copies []PlannedCopy
		err    error
	}

	perRegion := workers.FanOut(ctx, opts.Target.Regions, func(ctx context.Context, region string) regionPlan {
		var targetDefaultKeyID string
		if region != opts.SourceRegion {
			target, err := r.provider.ForRegion(region)
			if err != nil {
				return regionPlan{err: err}
			}
			if targetDefaultKeyID, err = target.DefaultManagedKeyID(ctx); err != nil {
				return regionPlan{err: err}
			}
		}

		copies := make([]PlannedCopy, 0, len(selected))
		for _, snapshot := range selected {
			copies = append(copies, PlannedCopy{
				Snapshot:         snapshot,
				TargetRegion:     region,
				TargetIdentifier: copier.TargetIdentifier(snapshot.Identifier),
				KMSKeyID:         copier.TargetKMSKeyID(snapshot.KMSKeyID, sourceDefaultKeyID, targetDefaultKeyID),
				Skipped:          region == opts.SourceRegion,
			})
		}
		return regionPlan{copies: copies}
	})

	var copies []PlannedCopy
	var failures []UnitFailure
	for i, p := range perRegion {
		if p.err != nil {
			log.WithField("targetRegion", opts.Target.Regions[i]).Error("Failed to plan copies", p.err)
			failures = append(failures, UnitFailure{Phase: PhaseCopy, Region: opts.Target.Regions[i], Err: p.err})
			continue
		}
		copies = append(copies, p.copies...)
	}
	return copies, failures
}

func (r *Runner) planDeletions(ctx context.Context, opts types.Options, policy types.DeletionPolicy, log logger.Logger) ([]PlannedDeletion, []UnitFailure) {
	evaluator := deletion.New(log, r.now)

	type regionPlan struct {
		marked []types.SnapshotForDeletion
		err    error
	}

	perRegion := workers.FanOut(ctx, opts.Target.Regions, func(ctx context.Context, region string) regionPlan {
		target, err := r.provider.ForRegion(region)
		if err != nil {
			return regionPlan{err: err}
		}
		marked, err := evaluator.Plan(ctx, target, policy, opts.Instance())
		return regionPlan{marked: marked, err: err}
	})

	var deletions []PlannedDeletion
	var failures []UnitFailure
	for i, p := range perRegion {
		region := opts.Target.Regions[i]
		if p.err != nil {
			failures = append(failures, UnitFailure{Phase: PhaseDeletion, Region: region, Err: p.err})
			continue
		}
		for _, snapshot := range p.marked {
			deletions = append(deletions, PlannedDeletion{
				Snapshot: snapshot,
				Region:   region,
				Action:   deletion.ActionFor(snapshot, policy),
			})
		}
	}
	return deletions, failures
}
