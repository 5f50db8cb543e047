package registry

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/stretchr/testify/mock"
)

// MockRDSClient is a mock implementation of the RDS client
type MockRDSClient struct {
	mock.Mock
}

// DescribeDBClusterSnapshots mocks the DescribeDBClusterSnapshots method
func (m *MockRDSClient) DescribeDBClusterSnapshots(ctx context.Context, params *rds.DescribeDBClusterSnapshotsInput, optFns ...func(*rds.Options)) (*rds.DescribeDBClusterSnapshotsOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rds.DescribeDBClusterSnapshotsOutput), args.Error(1)
}

// CopyDBClusterSnapshot mocks the CopyDBClusterSnapshot method
func (m *MockRDSClient) CopyDBClusterSnapshot(ctx context.Context, params *rds.CopyDBClusterSnapshotInput, optFns ...func(*rds.Options)) (*rds.CopyDBClusterSnapshotOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rds.CopyDBClusterSnapshotOutput), args.Error(1)
}

// AddTagsToResource mocks the AddTagsToResource method
func (m *MockRDSClient) AddTagsToResource(ctx context.Context, params *rds.AddTagsToResourceInput, optFns ...func(*rds.Options)) (*rds.AddTagsToResourceOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rds.AddTagsToResourceOutput), args.Error(1)
}

// RemoveTagsFromResource mocks the RemoveTagsFromResource method
func (m *MockRDSClient) RemoveTagsFromResource(ctx context.Context, params *rds.RemoveTagsFromResourceInput, optFns ...func(*rds.Options)) (*rds.RemoveTagsFromResourceOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rds.RemoveTagsFromResourceOutput), args.Error(1)
}

// DeleteDBClusterSnapshot mocks the DeleteDBClusterSnapshot method
func (m *MockRDSClient) DeleteDBClusterSnapshot(ctx context.Context, params *rds.DeleteDBClusterSnapshotInput, optFns ...func(*rds.Options)) (*rds.DeleteDBClusterSnapshotOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rds.DeleteDBClusterSnapshotOutput), args.Error(1)
}

// MockKMSClient is a mock implementation of the KMS client
type MockKMSClient struct {
	mock.Mock
}

// ListAliases mocks the ListAliases method
func (m *MockKMSClient) ListAliases(ctx context.Context, params *kms.ListAliasesInput, optFns ...func(*kms.Options)) (*kms.ListAliasesOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*kms.ListAliasesOutput), args.Error(1)
}

// MockSTSClient is a mock implementation of the STS client
type MockSTSClient struct {
	mock.Mock
}

// GetCallerIdentity mocks the GetCallerIdentity method
func (m *MockSTSClient) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sts.GetCallerIdentityOutput), args.Error(1)
}
