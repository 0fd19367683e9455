// Package jobs runs durable deferred work. Jobs live in the jobs table; a poller leases the due
// ones and publishes them onto an in-process watermill topic, where the router executes them
// behind retry, poison-queue and panic-recovery middleware.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/mroshb/roommate_match/internal/metrics"
	"github.com/mroshb/roommate_match/internal/models"
	"github.com/mroshb/roommate_match/pkg/errors"
	"github.com/mroshb/roommate_match/pkg/logger"
	"go.uber.org/zap"
)

const (
	dueTopic    = "jobs.due"
	poisonTopic = "jobs.poison"

	metadataJobID   = "job_id"
	metadataJobType = "job_type"
)

// Handler executes one job. Returning an error that errors.IsRetryable rejects fails the job
// without further attempts.
type Handler func(ctx context.Context, job *models.Job) error

type Store interface {
	InsertIfAbsent(ctx context.Context, job *models.Job) (bool, error)
	GetJob(ctx context.Context, id string) (*models.Job, error)
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.Job, error)
	MarkCompleted(ctx context.Context, id string, now time.Time) error
	MarkFailed(ctx context.Context, id, reason string, now time.Time) error
	Rearm(ctx context.Context, id string, next time.Time, lastErr string) error
	Purge(ctx context.Context, completedBefore, failedBefore time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

type Config struct {
	PollInterval       time.Duration
	Lease              time.Duration
	BatchSize          int
	MaxAttempts        int // total executions per delivery, first run included
	InitialBackoff     time.Duration
	MaxBackoff         time.Duration
	CompletedRetention time.Duration
	FailedRetention    time.Duration
	PurgeInterval      time.Duration
	CloseTimeout       time.Duration
	Now                func() time.Time
}

func DefaultConfig() Config {
	return Config{
		PollInterval:       time.Second,
		Lease:              5 * time.Minute,
		BatchSize:          50,
		MaxAttempts:        3,
		InitialBackoff:     2 * time.Second,
		MaxBackoff:         time.Minute,
		CompletedRetention: 24 * time.Hour,
		FailedRetention:    7 * 24 * time.Hour,
		PurgeInterval:      10 * time.Minute,
		CloseTimeout:       30 * time.Second,
	}
}

// Job describes work to enqueue. Payload is encoded as JSON.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	RunAt    time.Time
	Interval time.Duration // > 0 makes the job recurring
}

type Queue struct {
	store    Store
	cfg      Config
	log      *zap.SugaredLogger
	wmLogger watermill.LoggerAdapter

	mu       sync.RWMutex
	handlers map[string]Handler

	pubSub  *gochannel.GoChannel
	router  *message.Router
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

func NewQueue(store Store, cfg Config) *Queue {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.Lease <= 0 {
		cfg.Lease = def.Lease
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.CompletedRetention <= 0 {
		cfg.CompletedRetention = def.CompletedRetention
	}
	if cfg.FailedRetention <= 0 {
		cfg.FailedRetention = def.FailedRetention
	}
	if cfg.PurgeInterval <= 0 {
		cfg.PurgeInterval = def.PurgeInterval
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = def.CloseTimeout
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}

	log := logger.Named("jobs")
	return &Queue{
		store:    store,
		cfg:      cfg,
		log:      log,
		wmLogger: logger.NewWatermillAdapter(log.Desugar()),
		handlers: make(map[string]Handler),
	}
}

// Register binds a handler to a job type. Registering the same type twice replaces the handler.
func (q *Queue) Register(jobType string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = h
}

func (q *Queue) handler(jobType string) (Handler, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	h, ok := q.handlers[jobType]
	return h, ok
}

// Enqueue stores a job unless one with the same ID exists. It reports whether the job was added.
func (q *Queue) Enqueue(ctx context.Context, job Job) (bool, error) {
	if job.ID == "" || job.Type == "" {
		return false, errors.New(errors.ErrCodeValidation, "job id and type are required")
	}

	payload := "{}"
	if job.Payload != nil {
		raw, err := json.Marshal(job.Payload)
		if err != nil {
			return false, errors.Wrap(err, errors.ErrCodeValidation, "failed to encode job payload")
		}
		payload = string(raw)
	}

	runAt := job.RunAt
	if runAt.IsZero() {
		runAt = q.cfg.Now()
	}

	added, err := q.store.InsertIfAbsent(ctx, &models.Job{
		ID:              job.ID,
		Type:            job.Type,
		Payload:         payload,
		Status:          models.JobStatusPending,
		RunAt:           runAt.UTC(),
		IntervalSeconds: int64(job.Interval / time.Second),
	})
	if err != nil {
		return false, err
	}
	if added {
		q.log.Debugw("Job enqueued", "job_id", job.ID, "type", job.Type, "run_at", runAt)
	}
	return added, nil
}

// Start launches the router, the poller and the purge loop. It returns once the router accepts
// messages.
func (q *Queue) Start(ctx context.Context) error {
	if q.started {
		return fmt.Errorf("job queue already started")
	}

	q.pubSub = gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: int64(q.cfg.BatchSize)}, q.wmLogger)

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: q.cfg.CloseTimeout}, q.wmLogger)
	if err != nil {
		return fmt.Errorf("create job router: %w", err)
	}

	poison, err := middleware.PoisonQueue(q.pubSub, poisonTopic)
	if err != nil {
		return fmt.Errorf("create poison queue middleware: %w", err)
	}
	retry := middleware.Retry{
		MaxRetries:      q.cfg.MaxAttempts - 1,
		InitialInterval: q.cfg.InitialBackoff,
		MaxInterval:     q.cfg.MaxBackoff,
		Multiplier:      2,
		Logger:          q.wmLogger,
	}

	// Outer to inner: exhausted deliveries go to the poison topic, transient errors are retried
	// with backoff, panics surface as errors.
	handler := router.AddConsumerHandler("jobs", dueTopic, q.pubSub, q.execute)
	handler.AddMiddleware(poison, retry.Middleware, middleware.Recoverer)

	router.AddConsumerHandler("jobs_poison", poisonTopic, q.pubSub, q.poisoned)

	runCtx, cancel := context.WithCancel(ctx)
	q.router = router
	q.cancel = cancel
	q.started = true

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if err := router.Run(runCtx); err != nil {
			q.log.Errorw("Job router stopped", "error", err)
		}
	}()

	select {
	case <-router.Running():
	case <-ctx.Done():
		return ctx.Err()
	}

	q.wg.Add(2)
	go q.pollLoop(runCtx)
	go q.purgeLoop(runCtx)

	q.log.Infow("Job queue started", "poll_interval", q.cfg.PollInterval, "max_attempts", q.cfg.MaxAttempts)
	return nil
}

// Close stops polling and waits for in-flight jobs up to the close timeout.
func (q *Queue) Close() error {
	if !q.started {
		return nil
	}
	q.cancel()

	var firstErr error
	if err := q.router.Close(); err != nil {
		firstErr = err
	}
	if err := q.pubSub.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	q.wg.Wait()
	q.started = false
	return firstErr
}

func (q *Queue) pollLoop(ctx context.Context) {
	defer q.wg.Done()

	ticker := time.NewTicker(q.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := q.dispatchDue(ctx); err != nil && ctx.Err() == nil {
			q.log.Errorw("Failed to dispatch due jobs", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// dispatchDue leases due jobs and publishes them to the router.
func (q *Queue) dispatchDue(ctx context.Context) (int, error) {
	jobs, err := q.store.ClaimDue(ctx, q.cfg.Now(), q.cfg.Lease, q.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	for i := range jobs {
		raw, err := json.Marshal(&jobs[i])
		if err != nil {
			return i, fmt.Errorf("encode job %s: %w", jobs[i].ID, err)
		}

		msg := message.NewMessage(watermill.NewUUID(), raw)
		msg.Metadata.Set(metadataJobID, jobs[i].ID)
		msg.Metadata.Set(metadataJobType, jobs[i].Type)

		// A lost publish is recovered when the lease runs out.
		if err := q.pubSub.Publish(dueTopic, msg); err != nil {
			return i, fmt.Errorf("publish job %s: %w", jobs[i].ID, err)
		}
	}
	return len(jobs), nil
}

func (q *Queue) purgeLoop(ctx context.Context) {
	defer q.wg.Done()

	ticker := time.NewTicker(q.cfg.PurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := q.Purge(ctx); err != nil && ctx.Err() == nil {
				q.log.Errorw("Failed to purge jobs", "error", err)
			}
		}
	}
}

// Purge deletes settled jobs past retention and refreshes the per-status gauges.
func (q *Queue) Purge(ctx context.Context) (int64, error) {
	now := q.cfg.Now()
	purged, err := q.store.Purge(ctx, now.Add(-q.cfg.CompletedRetention), now.Add(-q.cfg.FailedRetention))
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		q.log.Infow("Purged settled jobs", "count", purged)
	}

	counts, err := q.store.CountByStatus(ctx)
	if err != nil {
		return purged, err
	}
	metrics.UpdateJobGauges(counts, []string{
		models.JobStatusPending, models.JobStatusRunning, models.JobStatusCompleted, models.JobStatusFailed,
	})
	return purged, nil
}

// execute runs one delivery. A returned error is retried by the middleware chain.
func (q *Queue) execute(msg *message.Message) error {
	var job models.Job
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		q.log.Errorw("Dropping undecodable job message", "message_uuid", msg.UUID, "error", err)
		return nil
	}

	ctx := msg.Context()
	h, ok := q.handler(job.Type)
	if !ok {
		q.settleFailure(ctx, &job, fmt.Sprintf("no handler registered for job type %q", job.Type))
		return nil
	}

	started := time.Now()
	err := h(ctx, &job)
	switch {
	case err == nil:
		q.settleSuccess(ctx, &job)
		metrics.RecordJob(job.Type, "completed", time.Since(started))
		return nil
	case !errors.IsRetryable(err):
		q.log.Warnw("Job failed permanently", "job_id", job.ID, "type", job.Type, "error", err)
		q.settleFailure(ctx, &job, err.Error())
		metrics.RecordJob(job.Type, "failed", time.Since(started))
		return nil
	default:
		metrics.RecordJob(job.Type, "retry", time.Since(started))
		return err
	}
}

// poisoned settles deliveries whose retries ran out.
func (q *Queue) poisoned(msg *message.Message) error {
	var job models.Job
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		q.log.Errorw("Dropping undecodable poisoned message", "message_uuid", msg.UUID, "error", err)
		return nil
	}

	reason := msg.Metadata.Get(middleware.ReasonForPoisonedKey)
	if reason == "" {
		reason = "retries exhausted"
	}
	q.log.Warnw("Job exhausted its retries", "job_id", job.ID, "type", job.Type, "reason", reason)
	q.settleFailure(msg.Context(), &job, reason)
	metrics.RecordJob(job.Type, "failed", 0)
	return nil
}

func (q *Queue) settleSuccess(ctx context.Context, job *models.Job) {
	now := q.cfg.Now()
	var err error
	if job.IsRecurring() {
		err = q.store.Rearm(ctx, job.ID, now.Add(job.Interval()), "")
	} else {
		err = q.store.MarkCompleted(ctx, job.ID, now)
	}
	if err != nil {
		q.log.Errorw("Failed to settle completed job", "job_id", job.ID, "error", err)
	}
}

// settleFailure fails a one-shot job. Recurring jobs keep their schedule and record the error.
func (q *Queue) settleFailure(ctx context.Context, job *models.Job, reason string) {
	now := q.cfg.Now()
	var err error
	if job.IsRecurring() {
		err = q.store.Rearm(ctx, job.ID, now.Add(job.Interval()), reason)
	} else {
		err = q.store.MarkFailed(ctx, job.ID, reason, now)
	}
	if err != nil {
		q.log.Errorw("Failed to settle failed job", "job_id", job.ID, "error", err)
	}
}

// DecodePayload unmarshals a job payload into v.
func DecodePayload(job *models.Job, v interface{}) error {
	if err := json.Unmarshal([]byte(job.Payload), v); err != nil {
		return errors.Wrap(err, errors.ErrCodeValidation, fmt.Sprintf("invalid payload for job %s", job.ID))
	}
	return nil
}
