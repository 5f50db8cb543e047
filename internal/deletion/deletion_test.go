package deletion

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/aurora-snapshot-copier/internal/errors"
	"github.com/yairfalse/aurora-snapshot-copier/internal/logger"
	"github.com/yairfalse/aurora-snapshot-copier/internal/registry"
	"github.com/yairfalse/aurora-snapshot-copier/internal/tags"
	"github.com/yairfalse/aurora-snapshot-copier/pkg/types"
)

func date(s string) time.Time {
	ts, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return ts
}

func owned(id, cluster, created string) types.SnapshotForDeletion {
	return types.SnapshotForDeletion{Snapshot: types.Snapshot{
		Identifier:        id,
		ARN:               id,
		ClusterIdentifier: cluster,
		CreatedAt:         date(created),
	}}
}

var (
	olderA = owned("olderA", "A", "2021-01-01")
	oldA   = owned("oldA", "A", "2021-02-01")
	newerA = owned("newerA", "A", "2021-03-01")
	olderB = owned("olderB", "B", "2021-01-01")
	oldB   = owned("oldB", "B", "2021-02-01")
	newerB = owned("newerB", "B", "2021-03-01")

	inventory = []types.SnapshotForDeletion{olderA, newerB, oldA, newerA, olderB, oldB}
)

func fixedNow(s string) func() time.Time {
	return func() time.Time { return date(s) }
}

func TestFilterLatestCountPerCluster(t *testing.T) {
	e := New(logger.Nop(), nil)

	filtered, err := e.Filter(types.DeletionPolicy{KeepLatestCountPerDBClusterIdentifier: types.IntPtr(2)}, inventory)

	require.NoError(t, err)
	assert.Len(t, filtered, 2)
	assert.ElementsMatch(t, []types.SnapshotForDeletion{olderA, olderB}, filtered)
}

func TestFilterCountAndAgeCompose(t *testing.T) {
	e := New(logger.Nop(), fixedNow("2021-03-02"))

	filtered, err := e.Filter(types.DeletionPolicy{
		KeepLatestCountPerDBClusterIdentifier: types.IntPtr(2),
		KeepCreatedInTheLastSeconds:           types.Int64Ptr(35 * 24 * 60 * 60),
	}, inventory)

	require.NoError(t, err)
	assert.ElementsMatch(t, []types.SnapshotForDeletion{olderA, olderB}, filtered)
}

func TestFilterAgeOnly(t *testing.T) {
	e := New(logger.Nop(), fixedNow("2021-03-02"))

	filtered, err := e.Filter(types.DeletionPolicy{
		KeepCreatedInTheLastSeconds: types.Int64Ptr(35 * 24 * 60 * 60),
	}, inventory)

	require.NoError(t, err)
	assert.ElementsMatch(t, []types.SnapshotForDeletion{olderA, olderB}, filtered)

	filtered, err = e.Filter(types.DeletionPolicy{
		KeepCreatedInTheLastSeconds: types.Int64Ptr(0),
	}, inventory)

	require.NoError(t, err)
	assert.Len(t, filtered, 6)
}

func TestFilterAgeCutoffIsStrict(t *testing.T) {
	e := New(logger.Nop(), fixedNow("2021-03-02"))

	filtered, err := e.Filter(types.DeletionPolicy{
		KeepCreatedInTheLastSeconds: types.Int64Ptr(24 * 60 * 60),
	}, []types.SnapshotForDeletion{newerA})

	require.NoError(t, err)
	assert.Empty(t, filtered)
}

func TestFilterNoConstraints(t *testing.T) {
	e := New(logger.Nop(), nil)

	filtered, err := e.Filter(types.DeletionPolicy{}, inventory)

	require.NoError(t, err)
	assert.Equal(t, inventory, filtered)
}

func TestFilterInvalidCount(t *testing.T) {
	e := New(logger.Nop(), nil)

	_, err := e.Filter(types.DeletionPolicy{KeepLatestCountPerDBClusterIdentifier: types.IntPtr(0)}, inventory)

	assert.ErrorIs(t, err, errors.ErrInvalidConfiguration)
}

func rawOwned(id, cluster string, created time.Time, owners ...string) rdstypes.DBClusterSnapshot {
	raw := rdstypes.DBClusterSnapshot{
		DBClusterSnapshotIdentifier: aws.String(id),
		DBClusterSnapshotArn:        aws.String("arn:" + id),
		DBClusterIdentifier:         aws.String(cluster),
		SnapshotCreateTime:          aws.Time(created),
	}
	for _, owner := range owners {
		key, value := tags.OwnershipMarker(owner)
		raw.TagList = append(raw.TagList, rdstypes.Tag{Key: aws.String(key), Value: aws.String(value)})
	}
	return raw
}

func TestOwned(t *testing.T) {
	created := date("2021-01-01")
	unusable := rawOwned("unusable", "A", created, "blue")
	unusable.SnapshotCreateTime = nil

	result := Owned([]rdstypes.DBClusterSnapshot{
		rawOwned("mine", "A", created, "blue"),
		rawOwned("shared", "A", created, "blue", "green"),
		rawOwned("theirs", "A", created, "green"),
		rawOwned("untagged", "A", created),
		unusable,
	}, "blue")

	require.Len(t, result, 2)
	assert.Equal(t, "mine", result[0].Identifier)
	assert.False(t, result[0].JustRemoveTag)
	assert.Equal(t, "shared", result[1].Identifier)
	assert.True(t, result[1].JustRemoveTag)
}

func TestActionFor(t *testing.T) {
	shared := olderA
	shared.JustRemoveTag = true

	assert.Equal(t, ActionUntag, ActionFor(shared, types.DeletionPolicy{Apply: true}))
	assert.Equal(t, ActionUntag, ActionFor(shared, types.DeletionPolicy{}))
	assert.Equal(t, ActionDelete, ActionFor(olderA, types.DeletionPolicy{Apply: true}))
	assert.Equal(t, ActionDryRun, ActionFor(olderA, types.DeletionPolicy{}))
}

func TestExecuteActions(t *testing.T) {
	ctx := context.Background()
	mockRDS := new(registry.MockRDSClient)

	shared := oldA
	shared.JustRemoveTag = true

	mockRDS.On("RemoveTagsFromResource", mock.Anything, &rds.RemoveTagsFromResourceInput{
		ResourceName: aws.String("oldA"),
		TagKeys:      []string{"aurora-snapshot-copier-cdk/CopiedBy/blue"},
	}).Return(&rds.RemoveTagsFromResourceOutput{}, nil).Once()
	mockRDS.On("DeleteDBClusterSnapshot", mock.Anything, &rds.DeleteDBClusterSnapshotInput{
		DBClusterSnapshotIdentifier: aws.String("olderA"),
	}).Return(&rds.DeleteDBClusterSnapshotOutput{}, nil).Once()

	e := New(logger.Nop(), fixedNow("2021-03-02"))
	results := e.Execute(ctx, registry.New("eu-west-1", mockRDS, nil, nil), types.DeletionPolicy{Apply: true}, []types.SnapshotForDeletion{olderA, shared}, "blue")

	require.Len(t, results, 2)
	assert.Equal(t, ActionDelete, results[0].Action)
	assert.Equal(t, ActionUntag, results[1].Action)
	assert.NoError(t, results[0].Err)
	assert.NoError(t, results[1].Err)
	mockRDS.AssertExpectations(t)
	mockRDS.AssertNotCalled(t, "AddTagsToResource", mock.Anything, mock.Anything)
}

func TestExecuteDryRun(t *testing.T) {
	ctx := context.Background()
	mockRDS := new(registry.MockRDSClient)

	mockRDS.On("AddTagsToResource", mock.Anything, mock.MatchedBy(func(in *rds.AddTagsToResourceInput) bool {
		decoded := tags.Decode(in.Tags)
		return aws.ToString(in.ResourceName) == "olderB" &&
			decoded["aurora-snapshot-copier-cdk/DryRunDeletedAt"] == "2021-03-02T00:00:00.000Z"
	})).Return(&rds.AddTagsToResourceOutput{}, nil).Once()

	e := New(logger.Nop(), fixedNow("2021-03-02"))
	results := e.Execute(ctx, registry.New("eu-west-1", mockRDS, nil, nil), types.DeletionPolicy{}, []types.SnapshotForDeletion{olderB}, "blue")

	require.Len(t, results, 1)
	assert.Equal(t, ActionDryRun, results[0].Action)
	assert.NoError(t, results[0].Err)
	mockRDS.AssertExpectations(t)
	mockRDS.AssertNotCalled(t, "DeleteDBClusterSnapshot", mock.Anything, mock.Anything)
}

func TestExecuteFailuresAreIndependent(t *testing.T) {
	ctx := context.Background()
	mockRDS := new(registry.MockRDSClient)

	mockRDS.On("DeleteDBClusterSnapshot", mock.Anything, &rds.DeleteDBClusterSnapshotInput{
		DBClusterSnapshotIdentifier: aws.String("olderA"),
	}).Return(nil, stderrors.New("InvalidDBClusterSnapshotStateFault"))
	mockRDS.On("DeleteDBClusterSnapshot", mock.Anything, &rds.DeleteDBClusterSnapshotInput{
		DBClusterSnapshotIdentifier: aws.String("olderB"),
	}).Return(&rds.DeleteDBClusterSnapshotOutput{}, nil)

	e := New(logger.Nop(), nil)
	results := e.Execute(ctx, registry.New("eu-west-1", mockRDS, nil, nil), types.DeletionPolicy{Apply: true}, []types.SnapshotForDeletion{olderA, olderB}, "blue")

	require.Len(t, results, 2)
	assert.Error(t, results[0].Err)
	assert.NoError(t, results[1].Err)
	mockRDS.AssertNumberOfCalls(t, "DeleteDBClusterSnapshot", 2)
}

func TestHandleRegions(t *testing.T) {
	ctx := context.Background()

	westRDS := new(registry.MockRDSClient)
	westRDS.On("DescribeDBClusterSnapshots", mock.Anything, &rds.DescribeDBClusterSnapshotsInput{}).Return(&rds.DescribeDBClusterSnapshotsOutput{
		DBClusterSnapshots: []rdstypes.DBClusterSnapshot{
			rawOwned("a-1", "A", date("2021-01-01"), "blue"),
			rawOwned("a-2", "A", date("2021-02-01"), "blue"),
			rawOwned("a-3", "A", date("2021-03-01"), "blue"),
			rawOwned("other", "A", date("2020-01-01"), "green"),
		},
	}, nil)
	westRDS.On("DeleteDBClusterSnapshot", mock.Anything, &rds.DeleteDBClusterSnapshotInput{
		DBClusterSnapshotIdentifier: aws.String("a-1"),
	}).Return(&rds.DeleteDBClusterSnapshotOutput{}, nil).Once()

	eastRDS := new(registry.MockRDSClient)
	eastRDS.On("DescribeDBClusterSnapshots", mock.Anything, mock.Anything).Return(nil, stderrors.New("AccessDenied"))

	provider := registry.StaticProvider{
		"eu-west-1": registry.New("eu-west-1", westRDS, nil, nil),
		"us-east-1": registry.New("us-east-1", eastRDS, nil, nil),
	}

	e := New(logger.Nop(), fixedNow("2021-03-02"))
	results := e.HandleRegions(ctx, provider, []string{"eu-west-1", "us-east-1"}, &types.DeletionPolicy{
		KeepLatestCountPerDBClusterIdentifier: types.IntPtr(2),
		Apply:                                 true,
	}, "blue")

	require.Len(t, results, 2)
	assert.Equal(t, "eu-west-1", results[0].Region)
	assert.Equal(t, ActionDelete, results[0].Action)
	assert.Equal(t, "a-1", results[0].Snapshot.Identifier)
	assert.NoError(t, results[0].Err)

	assert.Equal(t, "us-east-1", results[1].Region)
	assert.Error(t, results[1].Err)
	westRDS.AssertExpectations(t)
}

func TestHandleRegionsWithoutPolicy(t *testing.T) {
	e := New(logger.Nop(), nil)

	assert.Nil(t, e.HandleRegions(context.Background(), registry.StaticProvider{}, []string{"eu-west-1"}, nil, "blue"))
}
