package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mroshb/roommate_match/internal/database"
	"github.com/mroshb/roommate_match/internal/models"
	"github.com/mroshb/roommate_match/internal/repositories"
	"github.com/mroshb/roommate_match/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *repositories.JobRepository {
	t.Helper()

	db, err := database.OpenInMemory("jobs_" + uuid.NewString())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return repositories.NewJobRepository(db)
}

func testConfig() Config {
	return Config{
		PollInterval:   10 * time.Millisecond,
		Lease:          time.Minute,
		MaxAttempts:    3,
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
		CloseTimeout:   time.Second,
	}
}

func startQueue(t *testing.T, q *Queue) {
	t.Helper()
	require.NoError(t, q.Start(context.Background()))
	t.Cleanup(func() { q.Close() })
}

func waitForStatus(t *testing.T, store Store, id, status string) *models.Job {
	t.Helper()

	var job *models.Job
	require.Eventually(t, func() bool {
		got, err := store.GetJob(context.Background(), id)
		if err != nil {
			return false
		}
		job = got
		return got.Status == status
	}, 3*time.Second, 10*time.Millisecond, "job %s never reached %s", id, status)
	return job
}

type greeting struct {
	Name string `json:"name"`
}

func TestQueue_RunsJobOnce(t *testing.T) {
	store := newTestStore(t)
	q := NewQueue(store, testConfig())
	ctx := context.Background()

	names := make(chan string, 4)
	q.Register("greet", func(ctx context.Context, job *models.Job) error {
		var g greeting
		if err := DecodePayload(job, &g); err != nil {
			return err
		}
		names <- g.Name
		return nil
	})

	added, err := q.Enqueue(ctx, Job{ID: "greet-1", Type: "greet", Payload: greeting{Name: "ana"}})
	require.NoError(t, err)
	assert.True(t, added)

	added, err = q.Enqueue(ctx, Job{ID: "greet-1", Type: "greet", Payload: greeting{Name: "bob"}})
	require.NoError(t, err)
	assert.False(t, added, "duplicate id must not enqueue")

	startQueue(t, q)

	job := waitForStatus(t, store, "greet-1", models.JobStatusCompleted)
	assert.Equal(t, 1, job.Attempts)
	assert.NotNil(t, job.FinishedAt)
	assert.Equal(t, "ana", <-names)
	assert.Len(t, names, 0)
}

func TestQueue_DefersFutureJobs(t *testing.T) {
	store := newTestStore(t)
	q := NewQueue(store, testConfig())

	var runs int32
	q.Register("later", func(ctx context.Context, job *models.Job) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})

	_, err := q.Enqueue(context.Background(), Job{ID: "later-1", Type: "later", RunAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	startQueue(t, q)
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, int32(0), atomic.LoadInt32(&runs))
	job, err := store.GetJob(context.Background(), "later-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, job.Status)
}

func TestQueue_PermanentErrorFailsWithoutRetry(t *testing.T) {
	store := newTestStore(t)
	q := NewQueue(store, testConfig())

	var runs int32
	q.Register("bad", func(ctx context.Context, job *models.Job) error {
		atomic.AddInt32(&runs, 1)
		return errors.New(errors.ErrCodeState, "match already settled")
	})

	_, err := q.Enqueue(context.Background(), Job{ID: "bad-1", Type: "bad"})
	require.NoError(t, err)
	startQueue(t, q)

	job := waitForStatus(t, store, "bad-1", models.JobStatusFailed)
	assert.Contains(t, job.LastError, "match already settled")
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
}

func TestQueue_TransientErrorIsRetriedThenPoisoned(t *testing.T) {
	store := newTestStore(t)
	q := NewQueue(store, testConfig())

	var runs int32
	q.Register("flaky", func(ctx context.Context, job *models.Job) error {
		atomic.AddInt32(&runs, 1)
		return fmt.Errorf("chat service unavailable")
	})

	_, err := q.Enqueue(context.Background(), Job{ID: "flaky-1", Type: "flaky"})
	require.NoError(t, err)
	startQueue(t, q)

	job := waitForStatus(t, store, "flaky-1", models.JobStatusFailed)
	assert.Contains(t, job.LastError, "chat service unavailable")
	assert.Equal(t, int32(3), atomic.LoadInt32(&runs))
}

func TestQueue_TransientErrorRecovers(t *testing.T) {
	store := newTestStore(t)
	q := NewQueue(store, testConfig())

	var runs int32
	q.Register("eventually", func(ctx context.Context, job *models.Job) error {
		if atomic.AddInt32(&runs, 1) < 2 {
			return fmt.Errorf("timeout")
		}
		return nil
	})

	_, err := q.Enqueue(context.Background(), Job{ID: "eventually-1", Type: "eventually"})
	require.NoError(t, err)
	startQueue(t, q)

	waitForStatus(t, store, "eventually-1", models.JobStatusCompleted)
	assert.Equal(t, int32(2), atomic.LoadInt32(&runs))
}

func TestQueue_PanicIsRecovered(t *testing.T) {
	store := newTestStore(t)
	q := NewQueue(store, testConfig())

	q.Register("panics", func(ctx context.Context, job *models.Job) error {
		panic("boom")
	})
	q.Register("fine", func(ctx context.Context, job *models.Job) error { return nil })

	_, err := q.Enqueue(context.Background(), Job{ID: "panics-1", Type: "panics"})
	require.NoError(t, err)
	_, err = q.Enqueue(context.Background(), Job{ID: "fine-1", Type: "fine"})
	require.NoError(t, err)
	startQueue(t, q)

	waitForStatus(t, store, "panics-1", models.JobStatusFailed)
	waitForStatus(t, store, "fine-1", models.JobStatusCompleted)
}

func TestQueue_UnknownTypeFails(t *testing.T) {
	store := newTestStore(t)
	q := NewQueue(store, testConfig())

	_, err := q.Enqueue(context.Background(), Job{ID: "mystery-1", Type: "mystery"})
	require.NoError(t, err)
	startQueue(t, q)

	job := waitForStatus(t, store, "mystery-1", models.JobStatusFailed)
	assert.Contains(t, job.LastError, "mystery")
}

func TestQueue_RecurringJobIsRearmed(t *testing.T) {
	store := newTestStore(t)
	q := NewQueue(store, testConfig())

	var runs int32
	q.Register("tick", func(ctx context.Context, job *models.Job) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})

	before := time.Now().UTC()
	_, err := q.Enqueue(context.Background(), Job{ID: "tick-1", Type: "tick", Interval: time.Hour})
	require.NoError(t, err)
	startQueue(t, q)

	require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) == 1 }, 3*time.Second, 10*time.Millisecond)

	var job *models.Job
	require.Eventually(t, func() bool {
		job, err = store.GetJob(context.Background(), "tick-1")
		return err == nil && job.Status == models.JobStatusPending && job.RunAt.After(before.Add(30*time.Minute))
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, job.Attempts)
	assert.Nil(t, job.FinishedAt)
}

func TestQueue_EnqueueValidation(t *testing.T) {
	q := NewQueue(newTestStore(t), testConfig())

	_, err := q.Enqueue(context.Background(), Job{Type: "greet"})
	assert.True(t, errors.Is(err, errors.ErrCodeValidation))

	_, err = q.Enqueue(context.Background(), Job{ID: "x"})
	assert.True(t, errors.Is(err, errors.ErrCodeValidation))

	_, err = q.Enqueue(context.Background(), Job{ID: "x", Type: "t", Payload: make(chan int)})
	assert.True(t, errors.Is(err, errors.ErrCodeValidation))
}

func TestQueue_Purge(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	q := NewQueue(store, Config{
		CompletedRetention: time.Hour,
		FailedRetention:    24 * time.Hour,
		Now:                func() time.Time { return now },
	})

	for _, id := range []string{"old-done", "new-done", "old-failed", "pending"} {
		_, err := q.Enqueue(ctx, Job{ID: id, Type: "noop"})
		require.NoError(t, err)
	}
	require.NoError(t, store.MarkCompleted(ctx, "old-done", now.Add(-2*time.Hour)))
	require.NoError(t, store.MarkCompleted(ctx, "new-done", now.Add(-time.Minute)))
	require.NoError(t, store.MarkFailed(ctx, "old-failed", "boom", now.Add(-48*time.Hour)))

	purged, err := q.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), purged)

	counts, err := store.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[models.JobStatusCompleted])
	assert.Equal(t, int64(1), counts[models.JobStatusPending])
	assert.Zero(t, counts[models.JobStatusFailed])
}

func TestQueue_StartTwice(t *testing.T) {
	q := NewQueue(newTestStore(t), testConfig())
	startQueue(t, q)
	assert.Error(t, q.Start(context.Background()))
}
