// Package scheduler maps match lifecycle timers and periodic maintenance onto durable jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/mroshb/roommate_match/internal/jobs"
	"github.com/mroshb/roommate_match/internal/models"
	"github.com/mroshb/roommate_match/pkg/logger"
	"go.uber.org/zap"
)

// Job types
const (
	JobExpireMatch        = "expire_match"
	JobRecalculateProfile = "recalculate_profile"
	JobRecalculateAll     = "recalculate_all"
	JobRebuildIndex       = "rebuild_index"
	JobSweepExpired       = "sweep_expired"
)

// Stable ids of the recurring jobs
const (
	RecurringRecalculateID  = "recurring-recalculate-daily"
	RecurringRebuildIndexID = "recurring-rebuild-index-weekly"
	RecurringSweepExpiredID = "recurring-sweep-expired"
)

type Queue interface {
	Enqueue(ctx context.Context, job jobs.Job) (bool, error)
	Register(jobType string, h jobs.Handler)
}

// Lifecycle is the part of the match service that jobs drive.
type Lifecycle interface {
	ExpireMatch(ctx context.Context, matchID string) (bool, error)
	SweepExpired(ctx context.Context) (int, error)
	RecalculateCompatibility(ctx context.Context, profileID string) (int, error)
	RecalculateAllActive(ctx context.Context) (int, error)
	RebuildMatchIndex(ctx context.Context) (int64, error)
}

type Intervals struct {
	Recalculate  time.Duration
	RebuildIndex time.Duration
	SweepExpired time.Duration
}

func DefaultIntervals() Intervals {
	return Intervals{
		Recalculate:  24 * time.Hour,
		RebuildIndex: 7 * 24 * time.Hour,
		SweepExpired: time.Hour,
	}
}

type matchPayload struct {
	MatchID string `json:"matchId"`
}

type profilePayload struct {
	ProfileID string `json:"profileId"`
}

type Scheduler struct {
	queue Queue
	now   func() time.Time
	log   *zap.SugaredLogger
}

// New builds a scheduler. now defaults to UTC wall time.
func New(queue Queue, now func() time.Time) *Scheduler {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Scheduler{
		queue: queue,
		now:   now,
		log:   logger.Named("scheduler"),
	}
}

// ScheduleExpiration arranges for the match to expire at runAt. Scheduling the same match again
// keeps the first job.
func (s *Scheduler) ScheduleExpiration(ctx context.Context, matchID string, runAt time.Time) error {
	added, err := s.queue.Enqueue(ctx, jobs.Job{
		ID:      "expire-" + matchID,
		Type:    JobExpireMatch,
		Payload: matchPayload{MatchID: matchID},
		RunAt:   runAt,
	})
	if err != nil {
		return err
	}
	if !added {
		s.log.Debugw("Expiration already scheduled", "match_id", matchID)
	}
	return nil
}

// ScheduleRecalculation queues a rescore of every active match of the profile.
func (s *Scheduler) ScheduleRecalculation(ctx context.Context, profileID string) error {
	now := s.now()
	_, err := s.queue.Enqueue(ctx, jobs.Job{
		ID:      fmt.Sprintf("recalculate-%s-%d", profileID, now.UnixNano()),
		Type:    JobRecalculateProfile,
		Payload: profilePayload{ProfileID: profileID},
		RunAt:   now,
	})
	return err
}

// RegisterRecurring adds the periodic maintenance jobs. Existing registrations are left alone.
func (s *Scheduler) RegisterRecurring(ctx context.Context, every Intervals) error {
	def := DefaultIntervals()
	if every.Recalculate <= 0 {
		every.Recalculate = def.Recalculate
	}
	if every.RebuildIndex <= 0 {
		every.RebuildIndex = def.RebuildIndex
	}
	if every.SweepExpired <= 0 {
		every.SweepExpired = def.SweepExpired
	}

	now := s.now()
	recurring := []jobs.Job{
		{ID: RecurringRecalculateID, Type: JobRecalculateAll, RunAt: now.Add(every.Recalculate), Interval: every.Recalculate},
		{ID: RecurringRebuildIndexID, Type: JobRebuildIndex, RunAt: now.Add(every.RebuildIndex), Interval: every.RebuildIndex},
		{ID: RecurringSweepExpiredID, Type: JobSweepExpired, RunAt: now, Interval: every.SweepExpired},
	}

	for _, job := range recurring {
		added, err := s.queue.Enqueue(ctx, job)
		if err != nil {
			return fmt.Errorf("register %s: %w", job.ID, err)
		}
		if added {
			s.log.Infow("Registered recurring job", "job_id", job.ID, "interval", job.Interval)
		}
	}
	return nil
}

// RegisterHandlers binds every job type to the lifecycle.
func (s *Scheduler) RegisterHandlers(lc Lifecycle) {
	s.queue.Register(JobExpireMatch, func(ctx context.Context, job *models.Job) error {
		var p matchPayload
		if err := jobs.DecodePayload(job, &p); err != nil {
			return err
		}
		expired, err := lc.ExpireMatch(ctx, p.MatchID)
		if err != nil {
			return err
		}
		s.log.Debugw("Expiration job ran", "match_id", p.MatchID, "expired", expired)
		return nil
	})

	s.queue.Register(JobRecalculateProfile, func(ctx context.Context, job *models.Job) error {
		var p profilePayload
		if err := jobs.DecodePayload(job, &p); err != nil {
			return err
		}
		n, err := lc.RecalculateCompatibility(ctx, p.ProfileID)
		if err != nil {
			return err
		}
		s.log.Infow("Recalculated profile matches", "profile_id", p.ProfileID, "updated", n)
		return nil
	})

	s.queue.Register(JobRecalculateAll, func(ctx context.Context, job *models.Job) error {
		n, err := lc.RecalculateAllActive(ctx)
		if err != nil {
			return err
		}
		s.log.Infow("Recalculated active matches", "updated", n)
		return nil
	})

	s.queue.Register(JobRebuildIndex, func(ctx context.Context, job *models.Job) error {
		n, err := lc.RebuildMatchIndex(ctx)
		if err != nil {
			return err
		}
		s.log.Infow("Rebuilt match index", "entries", n)
		return nil
	})

	s.queue.Register(JobSweepExpired, func(ctx context.Context, job *models.Job) error {
		n, err := lc.SweepExpired(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			s.log.Infow("Swept overdue matches", "expired", n)
		}
		return nil
	})
}
