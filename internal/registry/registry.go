// Package registry wraps the RDS and KMS APIs of one region as the snapshot
// registry the copier reads from and mutates.
package registry

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/aws/smithy-go"

	"github.com/yairfalse/aurora-snapshot-copier/internal/cache"
	"github.com/yairfalse/aurora-snapshot-copier/internal/errors"
	"github.com/yairfalse/aurora-snapshot-copier/internal/logger"
	"github.com/yairfalse/aurora-snapshot-copier/internal/tags"
)

const (
	// DefaultManagedKeyAlias names the AWS managed key RDS encrypts with by default
	DefaultManagedKeyAlias = "alias/aws/rds"

	alreadyExistsCode = "DBClusterSnapshotAlreadyExistsFault"
	notFoundCode      = "DBClusterSnapshotNotFoundFault"
)

// ErrAlreadyExists is returned by CopySnapshot when the target identifier is taken
var ErrAlreadyExists = errors.New(errors.ErrorTypeAlreadyExists, "cluster snapshot already exists")

// ListFilter narrows a snapshot listing server side. The filter is advisory;
// callers re-check every constraint.
type ListFilter struct {
	ClusterIdentifier  string
	SnapshotIdentifier string
	SnapshotType       string
}

// CopyRequest describes one cross-region snapshot copy
type CopyRequest struct {
	SourceARN        string
	TargetIdentifier string
	SourceRegion     string
	// KMSKeyID overrides the key of the copy when set.
	KMSKeyID string
	Tags     map[string]string
}

// Registry is the snapshot registry of a single region
type Registry struct {
	region string
	rds    RDSClientInterface
	kms    KMSClientInterface
	log    logger.Logger
	keys   *cache.TTLCache[string]
}

// New creates a Registry for region from SDK clients
func New(region string, rdsClient RDSClientInterface, kmsClient KMSClientInterface, log logger.Logger) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	return &Registry{
		region: region,
		rds:    rdsClient,
		kms:    kmsClient,
		log:    log.WithField("region", region),
	}
}

// Region returns the region this registry operates in
func (r *Registry) Region() string {
	return r.region
}

// ListSnapshots returns every cluster snapshot matching filter, following pagination
func (r *Registry) ListSnapshots(ctx context.Context, filter ListFilter) ([]rdstypes.DBClusterSnapshot, error) {
	var snapshots []rdstypes.DBClusterSnapshot
	var marker *string

	for {
		input := &rds.DescribeDBClusterSnapshotsInput{}
		if filter.ClusterIdentifier != "" {
			input.DBClusterIdentifier = aws.String(filter.ClusterIdentifier)
		}
		if filter.SnapshotIdentifier != "" {
			input.DBClusterSnapshotIdentifier = aws.String(filter.SnapshotIdentifier)
		}
		if filter.SnapshotType != "" {
			input.SnapshotType = aws.String(filter.SnapshotType)
		}
		if marker != nil {
			input.Marker = marker
		}

		result, err := r.rds.DescribeDBClusterSnapshots(ctx, input)
		if filter.SnapshotIdentifier != "" && hasErrorCode(err, notFoundCode) {
			// Describing an unknown identifier fails instead of returning an empty page
			return nil, nil
		}
		if err != nil {
			return nil, errors.Wrap(errors.ErrorTypeRegistry, err, fmt.Sprintf("failed to describe cluster snapshots in %s", r.region))
		}

		snapshots = append(snapshots, result.DBClusterSnapshots...)

		marker = result.Marker
		if marker == nil || *marker == "" {
			break
		}
	}

	return snapshots, nil
}

// CopySnapshot requests a copy of a snapshot from another region into this one.
// Source tags are copied forward along with req.Tags.
func (r *Registry) CopySnapshot(ctx context.Context, req CopyRequest) error {
	input := &rds.CopyDBClusterSnapshotInput{
		SourceDBClusterSnapshotIdentifier: aws.String(req.SourceARN),
		TargetDBClusterSnapshotIdentifier: aws.String(req.TargetIdentifier),
		CopyTags:                          aws.Bool(true),
		Tags:                              tags.Encode(req.Tags),
		SourceRegion:                      aws.String(req.SourceRegion),
	}
	if req.KMSKeyID != "" {
		input.KmsKeyId = aws.String(req.KMSKeyID)
	}

	if _, err := r.rds.CopyDBClusterSnapshot(ctx, input); err != nil {
		if isAlreadyExists(err) {
			return fmt.Errorf("%w: %s in %s", ErrAlreadyExists, req.TargetIdentifier, r.region)
		}
		return errors.Wrap(errors.ErrorTypeRegistry, err, fmt.Sprintf("failed to copy %s to %s", req.SourceARN, r.region))
	}

	return nil
}

// AddTags attaches tags to a resource
func (r *Registry) AddTags(ctx context.Context, arn string, add map[string]string) error {
	_, err := r.rds.AddTagsToResource(ctx, &rds.AddTagsToResourceInput{
		ResourceName: aws.String(arn),
		Tags:         tags.Encode(add),
	})
	if err != nil {
		return errors.Wrap(errors.ErrorTypeRegistry, err, fmt.Sprintf("failed to tag %s", arn))
	}
	return nil
}

// RemoveTags removes tag keys from a resource
func (r *Registry) RemoveTags(ctx context.Context, arn string, keys []string) error {
	_, err := r.rds.RemoveTagsFromResource(ctx, &rds.RemoveTagsFromResourceInput{
		ResourceName: aws.String(arn),
		TagKeys:      keys,
	})
	if err != nil {
		return errors.Wrap(errors.ErrorTypeRegistry, err, fmt.Sprintf("failed to untag %s", arn))
	}
	return nil
}

// DeleteSnapshot deletes a cluster snapshot by identifier
func (r *Registry) DeleteSnapshot(ctx context.Context, identifier string) error {
	_, err := r.rds.DeleteDBClusterSnapshot(ctx, &rds.DeleteDBClusterSnapshotInput{
		DBClusterSnapshotIdentifier: aws.String(identifier),
	})
	if err != nil {
		return errors.Wrap(errors.ErrorTypeRegistry, err, fmt.Sprintf("failed to delete %s", identifier))
	}
	return nil
}

// WithKeyCache shares resolved default key ids through keys
func (r *Registry) WithKeyCache(keys *cache.TTLCache[string]) *Registry {
	r.keys = keys
	return r
}

// DefaultManagedKeyID resolves the key behind alias/aws/rds in this region.
// It returns "" when the alias does not exist.
func (r *Registry) DefaultManagedKeyID(ctx context.Context) (string, error) {
	if r.keys != nil {
		if keyID, ok := r.keys.Get(r.region); ok {
			return keyID, nil
		}
	}

	keyID, err := r.lookupDefaultManagedKeyID(ctx)
	if err == nil && keyID != "" && r.keys != nil {
		r.keys.Set(r.region, keyID)
	}
	return keyID, err
}

func (r *Registry) lookupDefaultManagedKeyID(ctx context.Context) (string, error) {
	var marker *string

	for {
		result, err := r.kms.ListAliases(ctx, &kms.ListAliasesInput{Marker: marker})
		if err != nil {
			return "", errors.Wrap(errors.ErrorTypeRegistry, err, fmt.Sprintf("failed to list KMS aliases in %s", r.region))
		}

		for _, alias := range result.Aliases {
			if aws.ToString(alias.AliasName) == DefaultManagedKeyAlias {
				return aws.ToString(alias.TargetKeyId), nil
			}
		}

		if !result.Truncated || result.NextMarker == nil {
			break
		}
		marker = result.NextMarker
	}

	r.log.Warn("Default RDS KMS alias not found")
	return "", nil
}

func isAlreadyExists(err error) bool {
	return hasErrorCode(err, alreadyExistsCode)
}

func hasErrorCode(err error, code string) bool {
	var apiErr smithy.APIError
	return err != nil && stderrors.As(err, &apiErr) && apiErr.ErrorCode() == code
}
