// Package tags converts between RDS tag lists and plain maps and builds the
// tags this tool uses to record ownership of copied snapshots.
package tags

import (
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
)

const (
	Prefix = "aurora-snapshot-copier-cdk"

	// OwnershipValue is the fixed value of every ownership tag
	OwnershipValue = Prefix

	copiedByPrefix = Prefix + "/CopiedBy/"

	CopiedFromRegionKey      = Prefix + "/CopiedFromRegion"
	SourceRegionKMSKeyIDKey  = Prefix + "/SourceRegionKmsKeyId"
	DryRunDeletedAtKey       = Prefix + "/DryRunDeletedAt"
	DryRunDeletedAtTimestamp = "2006-01-02T15:04:05.000Z07:00"
)

// Decode converts an RDS tag list to a map. Entries without a key or value
// are dropped and later duplicates overwrite earlier ones.
func Decode(list []rdstypes.Tag) map[string]string {
	decoded := make(map[string]string, len(list))
	for _, tag := range list {
		if tag.Key == nil || tag.Value == nil {
			continue
		}
		decoded[*tag.Key] = *tag.Value
	}
	return decoded
}

// Encode converts a map to an RDS tag list, sorted by key
func Encode(m map[string]string) []rdstypes.Tag {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	list := make([]rdstypes.Tag, 0, len(keys))
	for _, k := range keys {
		list = append(list, rdstypes.Tag{Key: aws.String(k), Value: aws.String(m[k])})
	}
	return list
}

// OwnershipKey returns the ownership tag key for an instance
func OwnershipKey(instanceIdentifier string) string {
	return copiedByPrefix + instanceIdentifier
}

// OwnershipMarker returns the ownership tag key and value for an instance
func OwnershipMarker(instanceIdentifier string) (string, string) {
	return OwnershipKey(instanceIdentifier), OwnershipValue
}

// Ownership describes which instances claim a snapshot
type Ownership struct {
	// ByThisInstance is true when this instance's ownership tag is present
	// with the expected value.
	ByThisInstance bool
	// ByOtherInstance is true when any other instance's ownership tag is present.
	ByOtherInstance bool
}

// OwnershipOf inspects decoded tags for ownership markers
func OwnershipOf(decoded map[string]string, instanceIdentifier string) Ownership {
	var ownership Ownership
	mine := OwnershipKey(instanceIdentifier)

	for key, value := range decoded {
		if key == mine && value == OwnershipValue {
			ownership.ByThisInstance = true
		} else if strings.HasPrefix(key, copiedByPrefix) {
			ownership.ByOtherInstance = true
		}
	}

	return ownership
}
