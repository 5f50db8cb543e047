package retention

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yairfalse/aurora-snapshot-copier/internal/errors"
	"github.com/yairfalse/aurora-snapshot-copier/pkg/types"
)

func dated(id string, created string) types.Snapshot {
	ts, err := time.Parse("2006-01-02", created)
	if err != nil {
		panic(err)
	}
	return types.Snapshot{
		Identifier:        id,
		ARN:               id,
		ClusterIdentifier: "cluster",
		CreatedAt:         ts,
	}
}

var (
	oldest = dated("oldest", "2021-01-01")
	older  = dated("older", "2021-02-01")
	old    = dated("old", "2021-03-01")
	newer  = dated("newer", "2021-04-01")
	newest = dated("newest", "2021-05-01")
)

func TestNewRejectsInvalidCapacity(t *testing.T) {
	for _, size := range []int{0, -1} {
		q, err := New[types.Snapshot](size)
		assert.Nil(t, q)
		assert.ErrorIs(t, err, errors.ErrInvalidConfiguration)
	}
}

func TestPushIntoEmpty(t *testing.T) {
	q, err := New[types.Snapshot](5)
	require.NoError(t, err)

	_, evicted := q.Push(oldest)

	assert.False(t, evicted)
	assert.Equal(t, []types.Snapshot{oldest}, q.Items())
}

func TestPushNewerIntoFull(t *testing.T) {
	q, err := New[types.Snapshot](1)
	require.NoError(t, err)

	q.Push(older)
	popped, evicted := q.Push(newer)

	assert.True(t, evicted)
	assert.Equal(t, older, popped)
	assert.Equal(t, []types.Snapshot{newer}, q.Items())
}

func TestPushOlderIntoFull(t *testing.T) {
	q, err := New[types.Snapshot](1)
	require.NoError(t, err)

	q.Push(newer)
	popped, evicted := q.Push(older)

	assert.True(t, evicted)
	assert.Equal(t, older, popped)
	assert.Equal(t, []types.Snapshot{newer}, q.Items())
}

func TestMultiplePushAndPops(t *testing.T) {
	q, err := New[types.Snapshot](3)
	require.NoError(t, err)

	for _, s := range []types.Snapshot{oldest, older, old} {
		_, evicted := q.Push(s)
		assert.False(t, evicted)
	}

	popped, evicted := q.Push(newer)
	assert.True(t, evicted)
	assert.Equal(t, oldest, popped)

	popped, evicted = q.Push(newest)
	assert.True(t, evicted)
	assert.Equal(t, older, popped)

	assert.Equal(t, []types.Snapshot{newest, newer, old}, q.Items())
}

func TestEqualTimestampsKeepPushOrder(t *testing.T) {
	first := dated("first", "2021-03-01")
	second := dated("second", "2021-03-01")

	q, err := New[types.Snapshot](1)
	require.NoError(t, err)

	q.Push(first)
	popped, evicted := q.Push(second)

	assert.True(t, evicted)
	assert.Equal(t, second, popped)
	assert.Equal(t, []types.Snapshot{first}, q.Items())

	q, err = New[types.Snapshot](3)
	require.NoError(t, err)
	q.Push(first)
	q.Push(second)
	q.Push(newest)
	assert.Equal(t, []types.Snapshot{newest, first, second}, q.Items())
}

func TestRetainsMostRecent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	base := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	for k := 1; k <= 6; k++ {
		for n := 0; n <= 12; n++ {
			q, err := New[types.Snapshot](k)
			require.NoError(t, err)

			var evictedItems []types.Snapshot
			for i := 0; i < n; i++ {
				s := types.Snapshot{
					Identifier: "s",
					CreatedAt:  base.Add(time.Duration(rng.Intn(10)) * time.Hour),
				}
				if popped, evicted := q.Push(s); evicted {
					evictedItems = append(evictedItems, popped)
				}
			}

			expected := n
			if k < n {
				expected = k
			}
			require.Len(t, q.Items(), expected)
			require.Len(t, evictedItems, n-expected)

			items := q.Items()
			for i := 1; i < len(items); i++ {
				assert.False(t, items[i].CreatedAt.After(items[i-1].CreatedAt), "items must be most recent first")
			}
			for _, kept := range items {
				for _, gone := range evictedItems {
					assert.False(t, kept.CreatedAt.Before(gone.CreatedAt))
				}
			}
		}
	}
}

func TestItemsReturnsCopy(t *testing.T) {
	q, err := New[types.Snapshot](2)
	require.NoError(t, err)
	q.Push(old)

	items := q.Items()
	items[0] = newest

	assert.Equal(t, []types.Snapshot{old}, q.Items())
}
