package repositories

import (
	"context"
	"time"

	"github.com/mroshb/roommate_match/internal/models"
	"github.com/mroshb/roommate_match/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// InsertIfAbsent stores a job unless one with the same ID exists. The ID is the dedupe key.
func (r *JobRepository) InsertIfAbsent(ctx context.Context, job *models.Job) (bool, error) {
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(job)
	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to enqueue job")
	}
	return result.RowsAffected > 0, nil
}

// GetJob retrieves a job by ID
func (r *JobRepository) GetJob(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&job)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.Newf(errors.ErrCodeNotFound, "job %s not found", id)
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get job")
	}
	return &job, nil
}

const claimableCondition = "((status = ? AND run_at <= ?) OR (status = ? AND locked_until IS NOT NULL AND locked_until <= ?))"

// ClaimDue leases up to limit jobs that are due, including running jobs whose lease has elapsed.
// Each row is claimed with its own compare-and-set update, so two pollers never share a claim.
func (r *JobRepository) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.Job, error) {
	var candidates []string
	err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where(claimableCondition, models.JobStatusPending, now, models.JobStatusRunning, now).
		Order("run_at ASC").
		Limit(limit).
		Pluck("id", &candidates).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to find due jobs")
	}

	lockedUntil := now.Add(lease)
	claimed := make([]models.Job, 0, len(candidates))
	for _, id := range candidates {
		result := r.db.WithContext(ctx).Model(&models.Job{}).
			Where("id = ? AND "+claimableCondition, id, models.JobStatusPending, now, models.JobStatusRunning, now).
			Updates(map[string]interface{}{
				"status":       models.JobStatusRunning,
				"locked_until": lockedUntil,
				"attempts":     gorm.Expr("attempts + 1"),
			})
		if result.Error != nil {
			return claimed, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to claim job")
		}
		if result.RowsAffected == 0 {
			continue
		}

		job, err := r.GetJob(ctx, id)
		if err != nil {
			return claimed, err
		}
		claimed = append(claimed, *job)
	}

	return claimed, nil
}

// MarkCompleted settles a one-shot job
func (r *JobRepository) MarkCompleted(ctx context.Context, id string, now time.Time) error {
	return r.settle(ctx, id, map[string]interface{}{
		"status":       models.JobStatusCompleted,
		"finished_at":  now,
		"locked_until": nil,
		"last_error":   "",
	})
}

// MarkFailed settles a job that will not be attempted again
func (r *JobRepository) MarkFailed(ctx context.Context, id, reason string, now time.Time) error {
	return r.settle(ctx, id, map[string]interface{}{
		"status":       models.JobStatusFailed,
		"finished_at":  now,
		"locked_until": nil,
		"last_error":   reason,
	})
}

// Rearm schedules a recurring job for its next run
func (r *JobRepository) Rearm(ctx context.Context, id string, next time.Time, lastErr string) error {
	return r.settle(ctx, id, map[string]interface{}{
		"status":       models.JobStatusPending,
		"run_at":       next,
		"locked_until": nil,
		"attempts":     0,
		"last_error":   lastErr,
	})
}

func (r *JobRepository) settle(ctx context.Context, id string, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Job{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update job")
	}
	if result.RowsAffected == 0 {
		return errors.Newf(errors.ErrCodeNotFound, "job %s not found", id)
	}
	return nil
}

// Purge deletes settled jobs older than their retention window
func (r *JobRepository) Purge(ctx context.Context, completedBefore, failedBefore time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("(status = ? AND finished_at < ?) OR (status = ? AND finished_at < ?)",
			models.JobStatusCompleted, completedBefore, models.JobStatusFailed, failedBefore).
		Delete(&models.Job{})

	if result.Error != nil {
		return 0, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to purge jobs")
	}
	return result.RowsAffected, nil
}

// CountByStatus returns the number of jobs per status
func (r *JobRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&models.Job{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to count jobs")
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
