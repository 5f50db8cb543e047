package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/aurora-snapshot-copier/internal/errors"
	"github.com/yairfalse/aurora-snapshot-copier/internal/logger"
	"github.com/yairfalse/aurora-snapshot-copier/pkg/types"
)

func envLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestFromEnv(t *testing.T) {
	config, err := FromEnv(envLookup(map[string]string{
		"AWS_REGION":                               "eu-west-2",
		"SOURCE_0_DB_CLUSTER_IDENTIFIER":           "mycluster",
		"SOURCE_0_TAGS":                            `{"Environment":["prod"],"Backup":true,"Ignored":5,"Mixed":["a",1],"Off":false}`,
		"SOURCE_1_SNAPSHOT_TYPE":                   "manual",
		"SOURCE_1_SNAPSHOT_CREATE_TIME_NOT_BEFORE": "2021-07-01T00:00:00.000Z",
		"SOURCE_3_DB_CLUSTER_IDENTIFIER":           "unreachable",
		"AGGREGATION_LATEST_COUNT_PER_CLUSTER":     "2",
		"TARGET_REGIONS":                           "eu-west-1,us-east-1",
		"TARGET_DELETION_POLICY_APPLY":             "",
		"INSTANCE_IDENTIFIER":                      "blue",
	}), logger.Nop())
	require.NoError(t, err)

	require.Len(t, config.Sources, 2)
	assert.Equal(t, "mycluster", config.Sources[0].DBClusterIdentifier)
	assert.Equal(t, []TagConfig{
		{Key: "Backup", Any: true},
		{Key: "Environment", Values: []string{"prod"}},
	}, config.Sources[0].Tags)
	assert.Equal(t, "manual", config.Sources[1].SnapshotType)

	assert.Equal(t, 2, *config.Aggregation.LatestCountPerCluster)
	assert.Equal(t, []string{"eu-west-1", "us-east-1"}, config.Target.Regions)
	require.NotNil(t, config.Target.DeletionPolicy)
	assert.False(t, config.Target.DeletionPolicy.Apply)
	assert.Nil(t, config.Target.DeletionPolicy.KeepLatestCountPerDBClusterIdentifier)
	assert.Equal(t, "blue", config.InstanceIdentifier)
	assert.Equal(t, "eu-west-2", config.SourceRegion)

	opts, err := config.Options()
	require.NoError(t, err)
	require.NotNil(t, opts.Sources[1].SnapshotCreateTimeNotBefore)
}

func TestFromEnvWithoutDeletionPolicy(t *testing.T) {
	config, err := FromEnv(envLookup(map[string]string{"TARGET_REGIONS": "eu-west-1"}), logger.Nop())
	require.NoError(t, err)

	assert.Empty(t, config.Sources)
	assert.Nil(t, config.Target.DeletionPolicy)
	assert.Nil(t, config.Aggregation.LatestCountPerCluster)
	assert.Equal(t, types.DefaultInstanceIdentifier, config.InstanceIdentifier)
}

func TestFromEnvMalformedTags(t *testing.T) {
	config, err := FromEnv(envLookup(map[string]string{
		"SOURCE_0_DB_CLUSTER_IDENTIFIER": "mycluster",
		"SOURCE_0_TAGS":                  `{not json`,
		"SOURCE_1_TAGS":                  `["not", "an", "object"]`,
	}), logger.Nop())
	require.NoError(t, err)

	require.Len(t, config.Sources, 1)
	assert.Empty(t, config.Sources[0].Tags)
}

func TestFromEnvTagsMatchParsedConstraints(t *testing.T) {
	config, err := FromEnv(envLookup(map[string]string{
		"SOURCE_0_TAGS": `{"Backup":true,"None":[],"Tier":["gold","silver"],"Name":"x"}`,
	}), logger.Nop())
	require.NoError(t, err)
	require.Len(t, config.Sources, 1)

	selector, err := config.Sources[0].Selector()
	require.NoError(t, err)

	assert.Equal(t, map[string]types.TagConstraint{
		"Backup": types.AnyValue(),
		"None":   types.OneOf(),
		"Tier":   types.OneOf("gold", "silver"),
	}, selector.Tags)
	assert.False(t, selector.Tags["None"].Allows("anything", true))
}

func TestFromEnvMalformedNumber(t *testing.T) {
	_, err := FromEnv(envLookup(map[string]string{
		"TARGET_DELETION_POLICY_KEEP_CREATED_IN_THE_LAST_SECONDS": "a day",
	}), logger.Nop())

	assert.ErrorIs(t, err, errors.ErrInvalidConfiguration)
}

func TestToEnvRoundTrip(t *testing.T) {
	original := DefaultConfig()
	original.SourceRegion = ""
	original.InstanceIdentifier = "blue"
	original.Sources = []SourceConfig{
		{
			DBClusterIdentifier: "mycluster",
			Tags: []TagConfig{
				{Key: "Backup", Any: true},
				{Key: "Environment", Values: []string{"prod", "staging"}},
			},
		},
		{SnapshotType: "manual", SnapshotCreateTimeNotBefore: "2021-07-01T00:00:00Z"},
	}
	original.Aggregation.LatestCountPerCluster = types.IntPtr(2)
	original.Target = TargetConfig{
		Regions: []string{"eu-west-1", "us-east-1"},
		DeletionPolicy: &DeletionPolicyConfig{
			KeepLatestCountPerDBClusterIdentifier: types.IntPtr(3),
			KeepCreatedInTheLastSeconds:           types.Int64Ptr(3600),
			Apply:                                 true,
		},
	}

	env, err := ToEnv(original)
	require.NoError(t, err)

	assert.Equal(t, `{"Backup":true,"Environment":["prod","staging"]}`, env["SOURCE_0_TAGS"])
	assert.Equal(t, "1", env[EnvDeletionPolicyApply])
	assert.Equal(t, "eu-west-1,us-east-1", env[EnvTargetRegions])

	decoded, err := FromEnv(envLookup(env), logger.Nop())
	require.NoError(t, err)

	assert.Equal(t, original.Sources, decoded.Sources)
	assert.Equal(t, original.Aggregation, decoded.Aggregation)
	assert.Equal(t, original.Target, decoded.Target)
	assert.Equal(t, original.InstanceIdentifier, decoded.InstanceIdentifier)
}
