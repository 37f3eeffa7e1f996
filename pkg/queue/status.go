package queue

import (
	"context"
	"time"

	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/cache"
)

// Job lifecycle states.
const (
	StateQueued    = "queued"
	StateRunning   = "running"
	StateSucceeded = "succeeded"
	StateFailed    = "failed"
	StateDead      = "dead"
)

// JobStatus is the persisted record of one enqueued job.
type JobStatus struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	State      string      `json:"state"`
	Error      string      `json:"error,omitempty"`
	Attempts   int         `json:"attempts"`
	Result     interface{} `json:"result,omitempty"`
	EnqueuedAt time.Time   `json:"enqueued_at"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
}

// StatusTracker persists job status records so API clients can poll and
// watch enqueued work.
type StatusTracker struct {
	cache cache.Service
	ttl   time.Duration
}

// NewStatusTracker creates a status tracker backed by the given cache.
func NewStatusTracker(c cache.Service, ttl time.Duration) *StatusTracker {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &StatusTracker{cache: c, ttl: ttl}
}

func statusKey(id string) string {
	return cache.GenerateKey("jobs", id)
}

// Create records a freshly enqueued job.
func (t *StatusTracker) Create(ctx context.Context, id, msgType string) error {
	return t.cache.Set(ctx, statusKey(id), &JobStatus{
		ID:         id,
		Type:       msgType,
		State:      StateQueued,
		EnqueuedAt: time.Now(),
	}, t.ttl)
}

// Get fetches a job status record. Returns cache.ErrCacheMiss for unknown or
// expired jobs.
func (t *StatusTracker) Get(ctx context.Context, id string) (*JobStatus, error) {
	var st JobStatus
	if err := t.cache.Get(ctx, statusKey(id), &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// MarkRunning transitions a job to running.
func (t *StatusTracker) MarkRunning(ctx context.Context, id string, attempt int) {
	t.update(ctx, id, func(st *JobStatus) {
		now := time.Now()
		st.State = StateRunning
		st.Attempts = attempt
		st.StartedAt = &now
	})
}

// MarkSucceeded transitions a job to succeeded with an optional result.
func (t *StatusTracker) MarkSucceeded(ctx context.Context, id string, result interface{}) {
	t.update(ctx, id, func(st *JobStatus) {
		now := time.Now()
		st.State = StateSucceeded
		st.Error = ""
		st.Result = result
		st.FinishedAt = &now
	})
}

// MarkFailed records a failed attempt. The job stays retryable until the
// queue moves it to the dead letter queue.
func (t *StatusTracker) MarkFailed(ctx context.Context, id string, attempt int, errMsg string) {
	t.update(ctx, id, func(st *JobStatus) {
		now := time.Now()
		st.State = StateFailed
		st.Attempts = attempt
		st.Error = errMsg
		st.FinishedAt = &now
	})
}

// MarkDead records a job that exhausted its retries.
func (t *StatusTracker) MarkDead(ctx context.Context, id string, errMsg string) {
	t.update(ctx, id, func(st *JobStatus) {
		now := time.Now()
		st.State = StateDead
		st.Error = errMsg
		st.FinishedAt = &now
	})
}

func (t *StatusTracker) update(ctx context.Context, id string, apply func(*JobStatus)) {
	st, err := t.Get(ctx, id)
	if err != nil {
		// Record may have expired; rebuild a minimal one so the transition
		// is still observable.
		st = &JobStatus{ID: id, EnqueuedAt: time.Now()}
	}
	apply(st)
	_ = t.cache.Set(ctx, statusKey(id), st, t.ttl)
}
