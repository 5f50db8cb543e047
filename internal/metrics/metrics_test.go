package metrics

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.RecordMatched(3)
	m.RecordSelected(2)
	m.RecordSourceFailure()
	m.RecordCopy("us-east-1", "copied")
	m.RecordCopy("us-east-1", "copied")
	m.RecordCopy("eu-west-1", "failed")
	m.RecordDeletion("us-east-1", "delete", nil)
	m.RecordDeletion("us-east-1", "delete", stderrors.New("boom"))
	m.RecordRun(2*time.Second, 2, time.Unix(1700000000, 0))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.SnapshotsMatched))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SnapshotsSelected))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SourceFailures))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Copies.WithLabelValues("us-east-1", "copied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Copies.WithLabelValues("eu-west-1", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Deletions.WithLabelValues("us-east-1", "delete", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Deletions.WithLabelValues("us-east-1", "delete", "error")))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.LastRun))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LastRunFails))

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 8)
}

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordMatched(1)
		m.RecordSelected(1)
		m.RecordSourceFailure()
		m.RecordCopy("us-east-1", "copied")
		m.RecordDeletion("us-east-1", "delete", nil)
		m.RecordRun(time.Second, 0, time.Now())
	})
}
