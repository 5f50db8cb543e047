// Package runner executes one complete copy-and-retain pass: list the
// sources, aggregate, copy into every target region, then apply the
// deletion policy in every target region.
package runner

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yairfalse/aurora-snapshot-copier/internal/aggregator"
	"github.com/yairfalse/aurora-snapshot-copier/internal/copier"
	"github.com/yairfalse/aurora-snapshot-copier/internal/deletion"
	"github.com/yairfalse/aurora-snapshot-copier/internal/errors"
	"github.com/yairfalse/aurora-snapshot-copier/internal/logger"
	"github.com/yairfalse/aurora-snapshot-copier/internal/matcher"
	"github.com/yairfalse/aurora-snapshot-copier/internal/metrics"
	"github.com/yairfalse/aurora-snapshot-copier/internal/registry"
	"github.com/yairfalse/aurora-snapshot-copier/internal/workers"
	"github.com/yairfalse/aurora-snapshot-copier/pkg/types"
)

// Phase names the stage of a pass a failure happened in
type Phase string

const (
	PhaseSource   Phase = "source"
	PhaseCopy     Phase = "copy"
	PhaseDeletion Phase = "deletion"
)

// UnitFailure is one failed unit of work
type UnitFailure struct {
	Phase      Phase  `json:"phase" yaml:"phase"`
	Region     string `json:"region,omitempty" yaml:"region,omitempty"`
	Identifier string `json:"identifier,omitempty" yaml:"identifier,omitempty"`
	Err        error  `json:"-" yaml:"-"`
}

// Error implements error
func (f UnitFailure) Error() string {
	switch {
	case f.Identifier != "" && f.Region != "":
		return fmt.Sprintf("%s %s in %s: %v", f.Phase, f.Identifier, f.Region, f.Err)
	case f.Region != "":
		return fmt.Sprintf("%s in %s: %v", f.Phase, f.Region, f.Err)
	default:
		return fmt.Sprintf("%s: %v", f.Phase, f.Err)
	}
}

// Unwrap returns the underlying error
func (f UnitFailure) Unwrap() error {
	return f.Err
}

// Report summarizes a pass
type Report struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`

	Matched  int `json:"matched" yaml:"matched"`
	Selected int `json:"selected" yaml:"selected"`

	CopiesRequested int `json:"copies_requested" yaml:"copies_requested"`
	Claimed         int `json:"claimed" yaml:"claimed"`
	Skipped         int `json:"skipped" yaml:"skipped"`

	Deleted      int `json:"deleted" yaml:"deleted"`
	Untagged     int `json:"untagged" yaml:"untagged"`
	DryRunMarked int `json:"dry_run_marked" yaml:"dry_run_marked"`

	Failures []UnitFailure `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// Err joins every failure of the pass, or returns nil
func (r *Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return stderrors.Join(errs...)
}

// Runner executes passes against the registries of a Provider
type Runner struct {
	provider registry.Provider
	log      logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	newRunID func() string
}

// Option configures a Runner
type Option func(*Runner)

// WithClock overrides the clock used for age cutoffs and dry-run markers
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// WithRunID overrides run id generation
func WithRunID(newRunID func() string) Option {
	return func(r *Runner) {
		r.newRunID = newRunID
	}
}

// New creates a Runner. m may be nil.
func New(provider registry.Provider, log logger.Logger, m *metrics.Metrics, opts ...Option) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	r := &Runner{
		provider: provider,
		log:      log,
		metrics:  m,
		now:      time.Now,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one pass. Invalid options abort before any registry call;
// otherwise every unit runs to completion and failures are collected in
// the report and returned joined.
func (r *Runner) Run(ctx context.Context, opts types.Options) (*Report, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	report := &Report{RunID: r.newRunID(), StartedAt: r.now()}
	log := r.log.WithField("run_id", report.RunID)
	log.WithFields(map[string]interface{}{
		"sources":            len(opts.Sources),
		"targetRegions":      opts.Target.Regions,
		"instanceIdentifier": opts.Instance(),
	}).Info("Starting snapshot copy pass")

	selected, failures := r.selectSnapshots(ctx, log, opts, report)
	report.Failures = append(report.Failures, failures...)

	if len(selected) > 0 {
		results := copier.New(log).CopyToRegions(ctx, r.provider, selected, opts.SourceRegion, opts.Target.Regions, opts.Instance())
		r.tallyCopies(report, results)
	} else {
		log.Info("No snapshots selected, nothing to copy")
	}

	evaluator := deletion.New(log, r.now)
	deletions := evaluator.HandleRegions(ctx, r.provider, opts.Target.Regions, opts.Target.DeletionPolicy, opts.Instance())
	r.tallyDeletions(report, deletions)

	report.FinishedAt = r.now()
	r.metrics.RecordRun(report.FinishedAt.Sub(report.StartedAt), len(report.Failures), report.FinishedAt)

	log.WithFields(map[string]interface{}{
		"matched":         report.Matched,
		"selected":        report.Selected,
		"copiesRequested": report.CopiesRequested,
		"claimed":         report.Claimed,
		"deleted":         report.Deleted,
		"untagged":        report.Untagged,
		"dryRunMarked":    report.DryRunMarked,
		"failures":        len(report.Failures),
	}).Info("Finished snapshot copy pass")

	return report, report.Err()
}

// selectSnapshots lists every source concurrently and aggregates the union.
// A failed source contributes nothing.
func (r *Runner) selectSnapshots(ctx context.Context, log logger.Logger, opts types.Options, report *Report) ([]types.Snapshot, []UnitFailure) {
	if opts.SourceRegion == "" {
		err := errors.Configuration("unable to determine source region")
		log.Error("Failed to list source snapshots", err)
		return nil, []UnitFailure{{Phase: PhaseSource, Err: err}}
	}

	type listing struct {
		matched []types.Snapshot
		err     error
	}

	m := matcher.New(log)
	listings := workers.FanOut(ctx, opts.Sources, func(ctx context.Context, source types.SourceSelector) listing {
		src, err := r.provider.ForRegion(opts.SourceRegion)
		if err != nil {
			return listing{err: err}
		}
		raws, err := src.ListSnapshots(ctx, ListFilterFor(source))
		if err != nil {
			return listing{err: err}
		}
		return listing{matched: m.Filter(source, raws)}
	})

	var union []types.Snapshot
	var failures []UnitFailure
	for i, l := range listings {
		if l.err != nil {
			log.WithField("source", i).Error("Failed to list source snapshots", l.err)
			r.metrics.RecordSourceFailure()
			failures = append(failures, UnitFailure{Phase: PhaseSource, Region: opts.SourceRegion, Err: l.err})
			continue
		}
		union = append(union, l.matched...)
	}
	report.Matched = len(union)
	r.metrics.RecordMatched(len(union))

	selected, err := aggregator.Aggregate(union, opts.Aggregation)
	if err != nil {
		return nil, append(failures, UnitFailure{Phase: PhaseSource, Err: err})
	}
	report.Selected = len(selected)
	r.metrics.RecordSelected(len(selected))

	log.WithFields(map[string]interface{}{
		"matched":  report.Matched,
		"selected": report.Selected,
	}).Info("Selected snapshots to copy")

	return selected, failures
}

// ListFilterFor narrows a source listing to what the registry can filter on.
// Tag and create-time constraints are enforced by the matcher.
func ListFilterFor(source types.SourceSelector) registry.ListFilter {
	return registry.ListFilter{
		ClusterIdentifier: source.DBClusterIdentifier,
		SnapshotType:      source.SnapshotType,
	}
}

func (r *Runner) tallyCopies(report *Report, results []copier.Result) {
	for _, res := range results {
		r.metrics.RecordCopy(res.TargetRegion, string(res.Outcome))

		switch res.Outcome {
		case copier.OutcomeCopied:
			report.CopiesRequested++
		case copier.OutcomeClaimed:
			report.Claimed++
		case copier.OutcomeSkipped:
			report.Skipped++
		}
		if res.Err != nil {
			report.Failures = append(report.Failures, UnitFailure{
				Phase:      PhaseCopy,
				Region:     res.TargetRegion,
				Identifier: res.Snapshot.Identifier,
				Err:        res.Err,
			})
		}
	}
}

func (r *Runner) tallyDeletions(report *Report, results []deletion.Result) {
	for _, res := range results {
		if res.Err != nil {
			report.Failures = append(report.Failures, UnitFailure{
				Phase:      PhaseDeletion,
				Region:     res.Region,
				Identifier: res.Snapshot.Identifier,
				Err:        res.Err,
			})
		}
		if res.Action == "" {
			continue
		}

		r.metrics.RecordDeletion(res.Region, string(res.Action), res.Err)
		if res.Err != nil {
			continue
		}
		switch res.Action {
		case deletion.ActionDelete:
			report.Deleted++
		case deletion.ActionUntag:
			report.Untagged++
		case deletion.ActionDryRun:
			report.DryRunMarked++
		}
	}
}
