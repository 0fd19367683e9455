package repositories

import (
	"context"
	"time"

	"github.com/mroshb/roommate_match/internal/models"
	"github.com/mroshb/roommate_match/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MatchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(db *gorm.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// CreateIfAbsent inserts the match unless its pair already has one. The unique pair index is the
// only arbiter: exactly one concurrent caller gets created=true, every other caller gets the
// stored winner back.
func (r *MatchRepository) CreateIfAbsent(ctx context.Context, match *models.Match) (*models.Match, bool, error) {
	if match.UserA >= match.UserB {
		return nil, false, errors.New(errors.ErrCodeValidation, "match users must be distinct and canonically ordered")
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_a"}, {Name: "user_b"}},
		DoNothing: true,
	}).Create(match)

	if result.Error != nil {
		return nil, false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to create match")
	}
	if result.RowsAffected > 0 {
		return match, true, nil
	}

	existing, err := r.GetMatchByPair(ctx, match.UserA, match.UserB)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetMatch retrieves a match by ID
func (r *MatchRepository) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	var match models.Match
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&match)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.Newf(errors.ErrCodeNotFound, "match %s not found", id)
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get match")
	}

	return &match, nil
}

// GetMatchByPair retrieves the match of two users in either order
func (r *MatchRepository) GetMatchByPair(ctx context.Context, userX, userY string) (*models.Match, error) {
	a, b := models.CanonicalPair(models.Participant{UserID: userX}, models.Participant{UserID: userY})

	var match models.Match
	result := r.db.WithContext(ctx).Where("user_a = ? AND user_b = ?", a.UserID, b.UserID).First(&match)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "match not found for pair")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get match")
	}

	return &match, nil
}

// Transition moves a match from one status to another with a compare-and-set update.
// fields are written in the same statement. A lost race or a stale status yields STATE_ERROR.
func (r *MatchRepository) Transition(ctx context.Context, id, from, to string, fields map[string]interface{}) error {
	if !models.CanTransition(from, to) {
		return errors.Newf(errors.ErrCodeState, "illegal transition %s -> %s", from, to)
	}

	updates := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["status"] = to

	result := r.db.WithContext(ctx).Model(&models.Match{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)

	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update match status")
	}
	if result.RowsAffected > 0 {
		return nil
	}

	current, err := r.GetMatch(ctx, id)
	if err != nil {
		return err
	}
	return errors.Newf(errors.ErrCodeState, "match %s is %s, expected %s", id, current.Status, from)
}

// ExpireIfDue moves a pending match whose deadline has passed to expired.
// It reports false when the match was already settled or is not yet due.
func (r *MatchRepository) ExpireIfDue(ctx context.Context, id string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Match{}).
		Where("id = ? AND status = ? AND expires_at IS NOT NULL AND expires_at <= ?", id, models.MatchStatusPending, now).
		Update("status", models.MatchStatusExpired)

	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to expire match")
	}
	return result.RowsAffected > 0, nil
}

// SetChatRoomIfEmpty stores roomID unless a room is already attached
func (r *MatchRepository) SetChatRoomIfEmpty(ctx context.Context, id, roomID string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Match{}).
		Where("id = ? AND (chat_room_id IS NULL OR chat_room_id = '')", id).
		Update("chat_room_id", roomID)

	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to attach chat room")
	}
	return result.RowsAffected > 0, nil
}

// UpdateScore overwrites only the compatibility score column
func (r *MatchRepository) UpdateScore(ctx context.Context, id string, score int) error {
	result := r.db.WithContext(ctx).Model(&models.Match{}).
		Where("id = ?", id).
		UpdateColumn("compatibility_score", score)

	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update score")
	}
	return nil
}

// SetReport flags a match as reported. Status is untouched.
func (r *MatchRepository) SetReport(ctx context.Context, id, reporterID, reason string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.Match{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_reported":   true,
			"reported_by":   reporterID,
			"report_reason": reason,
			"reported_at":   at,
		})

	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to report match")
	}
	if result.RowsAffected == 0 {
		return errors.Newf(errors.ErrCodeNotFound, "match %s not found", id)
	}
	return nil
}

// ListMatchesByUser lists a user's matches, newest first, optionally filtered by status
func (r *MatchRepository) ListMatchesByUser(ctx context.Context, userID string, statuses ...string) ([]models.Match, error) {
	query := r.db.WithContext(ctx).Where("(user_a = ? OR user_b = ?)", userID, userID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	var matches []models.Match
	if err := query.Order("created_at DESC, id ASC").Find(&matches).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list matches")
	}
	return matches, nil
}

// ListMatchesByProfile lists a profile's matches, optionally filtered by status
func (r *MatchRepository) ListMatchesByProfile(ctx context.Context, profileID string, statuses ...string) ([]models.Match, error) {
	query := r.db.WithContext(ctx).Where("(profile_a = ? OR profile_b = ?)", profileID, profileID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	var matches []models.Match
	if err := query.Order("created_at ASC, id ASC").Find(&matches).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list matches")
	}
	return matches, nil
}

// EachActiveBatch walks every pending or accepted match in batches of size n
func (r *MatchRepository) EachActiveBatch(ctx context.Context, n int, fn func(batch []models.Match) error) error {
	var batch []models.Match
	result := r.db.WithContext(ctx).
		Where("status IN ?", []string{models.MatchStatusPending, models.MatchStatusAccepted}).
		FindInBatches(&batch, n, func(tx *gorm.DB, _ int) error {
			return fn(batch)
		})

	if result.Error != nil {
		if errors.CodeOf(result.Error) != "" {
			return result.Error
		}
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to walk active matches")
	}
	return nil
}

// FindOverdue returns ids of pending matches whose deadline is at or before now
func (r *MatchRepository) FindOverdue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Match{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", models.MatchStatusPending, now).
		Order("expires_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error

	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to find overdue matches")
	}
	return ids, nil
}
