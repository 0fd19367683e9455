package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/mroshb/roommate_match/internal/database"
	"github.com/mroshb/roommate_match/internal/jobs"
	"github.com/mroshb/roommate_match/internal/models"
	"github.com/mroshb/roommate_match/internal/repositories"
	"github.com/mroshb/roommate_match/internal/services"
	"github.com/mroshb/roommate_match/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	mu       sync.Mutex
	jobs     map[string]jobs.Job
	order    []string
	handlers map[string]jobs.Handler
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{jobs: map[string]jobs.Job{}, handlers: map[string]jobs.Handler{}}
}

func (q *fakeQueue) Enqueue(_ context.Context, job jobs.Job) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.jobs[job.ID]; ok {
		return false, nil
	}
	q.jobs[job.ID] = job
	q.order = append(q.order, job.ID)
	return true, nil
}

func (q *fakeQueue) Register(jobType string, h jobs.Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = h
}

// run executes an enqueued job the way the queue would hand it over.
func (q *fakeQueue) run(t *testing.T, id string) error {
	t.Helper()

	q.mu.Lock()
	job, ok := q.jobs[id]
	h := q.handlers[job.Type]
	q.mu.Unlock()
	require.True(t, ok, "job %s not enqueued", id)
	require.NotNil(t, h, "no handler for %s", job.Type)

	payload := "{}"
	if job.Payload != nil {
		raw, err := json.Marshal(job.Payload)
		require.NoError(t, err)
		payload = string(raw)
	}
	return h(context.Background(), &models.Job{ID: job.ID, Type: job.Type, Payload: payload})
}

type fakeLifecycle struct {
	calls []string
	err   error
}

func (l *fakeLifecycle) ExpireMatch(_ context.Context, matchID string) (bool, error) {
	l.calls = append(l.calls, "expire:"+matchID)
	return true, l.err
}

func (l *fakeLifecycle) SweepExpired(context.Context) (int, error) {
	l.calls = append(l.calls, "sweep")
	return 2, l.err
}

func (l *fakeLifecycle) RecalculateCompatibility(_ context.Context, profileID string) (int, error) {
	l.calls = append(l.calls, "recalculate:"+profileID)
	return 1, l.err
}

func (l *fakeLifecycle) RecalculateAllActive(context.Context) (int, error) {
	l.calls = append(l.calls, "recalculate_all")
	return 3, l.err
}

func (l *fakeLifecycle) RebuildMatchIndex(context.Context) (int64, error) {
	l.calls = append(l.calls, "rebuild")
	return 4, l.err
}

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func TestScheduleExpiration_IsDeduplicated(t *testing.T) {
	q := newFakeQueue()
	s := New(q, fixedClock)
	ctx := context.Background()

	first := fixedNow.Add(7 * 24 * time.Hour)
	require.NoError(t, s.ScheduleExpiration(ctx, "m1", first))
	require.NoError(t, s.ScheduleExpiration(ctx, "m1", first.Add(time.Hour)))

	require.Len(t, q.jobs, 1)
	job := q.jobs["expire-m1"]
	assert.Equal(t, JobExpireMatch, job.Type)
	assert.Equal(t, first, job.RunAt)
	assert.Equal(t, matchPayload{MatchID: "m1"}, job.Payload)
}

func TestScheduleRecalculation_IsNotDeduplicated(t *testing.T) {
	q := newFakeQueue()
	now := fixedNow
	s := New(q, func() time.Time {
		now = now.Add(time.Nanosecond)
		return now
	})
	ctx := context.Background()

	require.NoError(t, s.ScheduleRecalculation(ctx, "p1"))
	require.NoError(t, s.ScheduleRecalculation(ctx, "p1"))

	require.Len(t, q.order, 2)
	assert.Equal(t, fmt.Sprintf("recalculate-p1-%d", fixedNow.Add(time.Nanosecond).UnixNano()), q.order[0])
	assert.Equal(t, JobRecalculateProfile, q.jobs[q.order[1]].Type)
}

func TestRegisterRecurring(t *testing.T) {
	q := newFakeQueue()
	s := New(q, fixedClock)
	ctx := context.Background()

	require.NoError(t, s.RegisterRecurring(ctx, Intervals{SweepExpired: 30 * time.Minute}))
	require.NoError(t, s.RegisterRecurring(ctx, Intervals{}))

	assert.Equal(t, []string{RecurringRecalculateID, RecurringRebuildIndexID, RecurringSweepExpiredID}, q.order)

	recalc := q.jobs[RecurringRecalculateID]
	assert.Equal(t, JobRecalculateAll, recalc.Type)
	assert.Equal(t, 24*time.Hour, recalc.Interval)
	assert.Equal(t, fixedNow.Add(24*time.Hour), recalc.RunAt)

	assert.Equal(t, 7*24*time.Hour, q.jobs[RecurringRebuildIndexID].Interval)

	sweep := q.jobs[RecurringSweepExpiredID]
	assert.Equal(t, 30*time.Minute, sweep.Interval, "first registration wins")
	assert.Equal(t, fixedNow, sweep.RunAt)
}

func TestRegisterHandlers_Dispatch(t *testing.T) {
	q := newFakeQueue()
	s := New(q, fixedClock)
	lc := &fakeLifecycle{}
	s.RegisterHandlers(lc)
	ctx := context.Background()

	require.NoError(t, s.ScheduleExpiration(ctx, "m1", fixedNow))
	require.NoError(t, s.ScheduleRecalculation(ctx, "p1"))
	require.NoError(t, s.RegisterRecurring(ctx, DefaultIntervals()))

	for _, id := range q.order {
		require.NoError(t, q.run(t, id))
	}

	assert.Equal(t, []string{"expire:m1", "recalculate:p1", "recalculate_all", "rebuild", "sweep"}, lc.calls)
}

func TestRegisterHandlers_PropagatesErrors(t *testing.T) {
	q := newFakeQueue()
	s := New(q, fixedClock)
	s.RegisterHandlers(&fakeLifecycle{err: errors.New(errors.ErrCodeNotFound, "match gone")})

	require.NoError(t, s.ScheduleExpiration(context.Background(), "m1", fixedNow))
	err := q.run(t, "expire-m1")
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
}

func TestRegisterHandlers_RejectsBadPayload(t *testing.T) {
	q := newFakeQueue()
	s := New(q, fixedClock)
	s.RegisterHandlers(&fakeLifecycle{})

	h := q.handlers[JobExpireMatch]
	err := h(context.Background(), &models.Job{ID: "expire-x", Type: JobExpireMatch, Payload: "not json"})
	assert.True(t, errors.Is(err, errors.ErrCodeValidation))
	assert.False(t, errors.IsRetryable(err))
}

func TestDirectMatchExpiresThroughQueue(t *testing.T) {
	db, err := database.OpenInMemory("sched_" + uuid.NewString())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	queue := jobs.NewQueue(repositories.NewJobRepository(db), jobs.Config{
		PollInterval:   10 * time.Millisecond,
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
		CloseTimeout:   time.Second,
	})
	sched := New(queue, nil)

	profiles := repositories.NewProfileRepository(db)
	matches := repositories.NewMatchRepository(db)
	svc := services.NewMatchService(profiles, matches, nil, nil, sched, services.MatchServiceConfig{
		MatchExpiry:   150 * time.Millisecond,
		MaxDistanceKm: 50,
	})
	sched.RegisterHandlers(svc)

	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		require.NoError(t, profiles.CreateProfile(ctx, &models.Profile{
			ID:        id,
			UserID:    "user-" + id,
			City:      "Porto",
			BudgetMin: 400,
			BudgetMax: 700,
			Lifestyle: models.Lifestyle{Cleanliness: 4},
		}))
	}

	require.NoError(t, queue.Start(ctx))
	t.Cleanup(func() { queue.Close() })

	match, err := svc.CreateDirectMatch(ctx, "a", "b", "hi")
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusPending, match.Status)

	require.Eventually(t, func() bool {
		got, err := svc.GetMatch(ctx, match.ID)
		return err == nil && got.Status == models.MatchStatusExpired
	}, 3*time.Second, 20*time.Millisecond)

	jobRow, err := repositories.NewJobRepository(db).GetJob(ctx, "expire-"+match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, jobRow.Status)
}
