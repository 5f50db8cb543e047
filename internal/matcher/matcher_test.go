package matcher

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/aurora-snapshot-copier/internal/errors"
	"github.com/yairfalse/aurora-snapshot-copier/internal/logger"
	"github.com/yairfalse/aurora-snapshot-copier/pkg/types"
)

func date(s string) time.Time {
	ts, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return ts
}

func rawSnapshot(id, cluster string, created *time.Time, tagPairs ...string) rdstypes.DBClusterSnapshot {
	raw := rdstypes.DBClusterSnapshot{
		DBClusterSnapshotIdentifier: aws.String(id),
		DBClusterSnapshotArn:        aws.String("arn:aws:rds:eu-west-2:123456789012:cluster-snapshot:" + id),
		DBClusterIdentifier:         aws.String(cluster),
		SnapshotCreateTime:          created,
		SnapshotType:                aws.String("manual"),
	}
	for i := 0; i+1 < len(tagPairs); i += 2 {
		raw.TagList = append(raw.TagList, rdstypes.Tag{Key: aws.String(tagPairs[i]), Value: aws.String(tagPairs[i+1])})
	}
	return raw
}

func TestMatchesEmptySelector(t *testing.T) {
	m := New(logger.Nop())
	assert.True(t, m.Matches(types.SourceSelector{}, rawSnapshot("s", "c", aws.Time(date("2021-01-01")))))
}

func TestMatchesClusterIdentifier(t *testing.T) {
	m := New(logger.Nop())
	source := types.SourceSelector{DBClusterIdentifier: "mycluster"}

	assert.True(t, m.Matches(source, rawSnapshot("s", "mycluster", nil)))
	assert.False(t, m.Matches(source, rawSnapshot("s", "othercluster", nil)))
}

func TestMatchesTags(t *testing.T) {
	m := New(logger.Nop())

	tests := []struct {
		name     string
		tags     map[string]types.TagConstraint
		snapshot rdstypes.DBClusterSnapshot
		want     bool
	}{
		{
			name:     "required tag missing",
			tags:     map[string]types.TagConstraint{"mytag": types.AnyValue()},
			snapshot: rawSnapshot("s", "c", nil, "othertag", "x"),
			want:     false,
		},
		{
			name:     "required tag present with any value",
			tags:     map[string]types.TagConstraint{"mytag": types.AnyValue()},
			snapshot: rawSnapshot("s", "c", nil, "mytag", ""),
			want:     true,
		},
		{
			name:     "value in options",
			tags:     map[string]types.TagConstraint{"env": types.OneOf("prod", "staging")},
			snapshot: rawSnapshot("s", "c", nil, "env", "staging"),
			want:     true,
		},
		{
			name:     "value not in options",
			tags:     map[string]types.TagConstraint{"env": types.OneOf("prod")},
			snapshot: rawSnapshot("s", "c", nil, "env", "dev"),
			want:     false,
		},
		{
			name:     "options tag missing",
			tags:     map[string]types.TagConstraint{"env": types.OneOf("prod")},
			snapshot: rawSnapshot("s", "c", nil),
			want:     false,
		},
		{
			name: "every constraint must hold",
			tags: map[string]types.TagConstraint{
				"env":   types.OneOf("prod"),
				"mytag": types.AnyValue(),
			},
			snapshot: rawSnapshot("s", "c", nil, "env", "prod"),
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Matches(types.SourceSelector{Tags: tt.tags}, tt.snapshot))
		})
	}
}

func TestMatchesCreateTimeNotBefore(t *testing.T) {
	m := New(logger.Nop())
	notBefore := date("2021-01-01")
	source := types.SourceSelector{SnapshotCreateTimeNotBefore: &notBefore}

	assert.False(t, m.Matches(source, rawSnapshot("none", "c", nil)))
	assert.False(t, m.Matches(source, rawSnapshot("old", "c", aws.Time(date("2020-01-01")))))
	assert.True(t, m.Matches(source, rawSnapshot("exact", "c", aws.Time(notBefore))))
	assert.True(t, m.Matches(source, rawSnapshot("new", "c", aws.Time(date("2021-06-01")))))
}

func TestMatchesSnapshotType(t *testing.T) {
	m := New(logger.Nop())

	assert.True(t, m.Matches(types.SourceSelector{SnapshotType: "manual"}, rawSnapshot("s", "c", nil)))
	assert.False(t, m.Matches(types.SourceSelector{SnapshotType: "automated"}, rawSnapshot("s", "c", nil)))
}

func TestFilterDropsUnusable(t *testing.T) {
	m := New(logger.Nop())
	created := aws.Time(date("2021-07-01"))

	usable := rawSnapshot("mysnapshot", "mycluster", created)
	noTime := rawSnapshot("notime", "mycluster", nil)
	noArn := rawSnapshot("noarn", "mycluster", created)
	noArn.DBClusterSnapshotArn = nil

	matched := m.Filter(types.SourceSelector{DBClusterIdentifier: "mycluster"}, []rdstypes.DBClusterSnapshot{usable, noTime, noArn})

	require.Len(t, matched, 1)
	assert.Equal(t, types.Snapshot{
		Identifier:        "mysnapshot",
		ARN:               "arn:aws:rds:eu-west-2:123456789012:cluster-snapshot:mysnapshot",
		ClusterIdentifier: "mycluster",
		CreatedAt:         date("2021-07-01"),
	}, matched[0])
}

func TestUsableNormalisesKMSKey(t *testing.T) {
	raw := rawSnapshot("s", "c", aws.Time(date("2021-07-01")))
	raw.KmsKeyId = aws.String("arn:aws:kms:eu-west-2:123456789012:key/1234abcd-12ab-34cd-56ef-1234567890ab")

	snapshot, err := Usable(raw)

	require.NoError(t, err)
	assert.Equal(t, "1234abcd-12ab-34cd-56ef-1234567890ab", snapshot.KMSKeyID)
}

func TestUsableReportsMissingFields(t *testing.T) {
	_, err := Usable(rdstypes.DBClusterSnapshot{DBClusterSnapshotIdentifier: aws.String("s")})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "DBClusterSnapshotArn")
	assert.Contains(t, err.Error(), "SnapshotCreateTime")
}

func TestUsableRejectsBlankFields(t *testing.T) {
	raw := rawSnapshot("s", "  ", aws.Time(date("2021-07-01")))

	_, err := Usable(raw)

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "cluster identifier")
}

func TestKMSKeyID(t *testing.T) {
	assert.Equal(t, "abc", KMSKeyID("abc"))
	assert.Equal(t, "abc", KMSKeyID("arn:aws:kms:us-east-1:123456789012:key/abc"))
	assert.Equal(t, "abc", KMSKeyID("arn:aws-cn:kms:cn-north-1:123456789012:key/abc"))
	assert.Equal(t, "alias/aws/rds", KMSKeyID("alias/aws/rds"))
}
