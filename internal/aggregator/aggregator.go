// Package aggregator bounds the matched snapshots to the most recent few per
// originating cluster.
package aggregator

import (
	"github.com/yairfalse/aurora-snapshot-copier/internal/retention"
	"github.com/yairfalse/aurora-snapshot-copier/pkg/types"
)

// Aggregate keeps at most policy.LatestCountPerCluster snapshots per cluster.
// Without a count the input is returned unchanged. Only set membership of the
// result is meaningful.
func Aggregate(snapshots []types.Snapshot, policy *types.AggregationPolicy) ([]types.Snapshot, error) {
	if policy == nil || policy.LatestCountPerCluster == nil {
		return snapshots, nil
	}

	var order []string
	perCluster := make(map[string]*retention.Queue[types.Snapshot])

	for _, snapshot := range snapshots {
		queue, ok := perCluster[snapshot.ClusterIdentifier]
		if !ok {
			var err error
			queue, err = retention.New[types.Snapshot](*policy.LatestCountPerCluster)
			if err != nil {
				return nil, err
			}
			perCluster[snapshot.ClusterIdentifier] = queue
			order = append(order, snapshot.ClusterIdentifier)
		}
		queue.Push(snapshot)
	}

	kept := make([]types.Snapshot, 0, len(snapshots))
	for _, cluster := range order {
		kept = append(kept, perCluster[cluster].Items()...)
	}

	return kept, nil
}
