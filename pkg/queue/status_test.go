package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/cache"
)

func newTestTracker() *StatusTracker {
	return NewStatusTracker(cache.NewMemoryCache(), time.Minute)
}

func TestStatusLifecycle(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker()

	require.NoError(t, tr.Create(ctx, "job-1", "train.model"))

	st, err := tr.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, StateQueued, st.State)
	assert.Equal(t, "train.model", st.Type)
	assert.Nil(t, st.StartedAt)

	tr.MarkRunning(ctx, "job-1", 1)
	st, err = tr.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, StateRunning, st.State)
	assert.Equal(t, 1, st.Attempts)
	assert.NotNil(t, st.StartedAt)

	tr.MarkSucceeded(ctx, "job-1", map[string]interface{}{"version": "v1"})
	st, err = tr.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, st.State)
	assert.NotNil(t, st.FinishedAt)
	assert.Empty(t, st.Error)
}

func TestStatusFailureAndDead(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker()

	require.NoError(t, tr.Create(ctx, "job-2", "stats.refresh"))

	tr.MarkFailed(ctx, "job-2", 1, "clickhouse timeout")
	st, err := tr.Get(ctx, "job-2")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, st.State)
	assert.Equal(t, "clickhouse timeout", st.Error)

	tr.MarkDead(ctx, "job-2", "retries exhausted")
	st, err = tr.Get(ctx, "job-2")
	require.NoError(t, err)
	assert.Equal(t, StateDead, st.State)
	assert.Equal(t, "retries exhausted", st.Error)
}

func TestStatusUnknownJob(t *testing.T) {
	tr := newTestTracker()
	_, err := tr.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestStatusUpdateAfterExpiry(t *testing.T) {
	// Transitions on an expired record rebuild a minimal one instead of
	// getting lost.
	ctx := context.Background()
	tr := newTestTracker()

	tr.MarkDead(ctx, "expired-job", "gone")
	st, err := tr.Get(ctx, "expired-job")
	require.NoError(t, err)
	assert.Equal(t, StateDead, st.State)
	assert.Equal(t, "gone", st.Error)
}
