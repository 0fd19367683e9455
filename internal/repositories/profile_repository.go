package repositories

import (
	"context"

	"github.com/mroshb/roommate_match/internal/models"
	"github.com/mroshb/roommate_match/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// CreateProfile creates a new profile
func (r *ProfileRepository) CreateProfile(ctx context.Context, profile *models.Profile) error {
	if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create profile")
	}
	return nil
}

// UpdateProfile saves every field of an existing profile
func (r *ProfileRepository) UpdateProfile(ctx context.Context, profile *models.Profile) error {
	if err := r.db.WithContext(ctx).Save(profile).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to update profile")
	}
	return nil
}

// UpsertProfile inserts a profile or overwrites the one owned by the same user
func (r *ProfileRepository) UpsertProfile(ctx context.Context, profile *models.Profile) error {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns(profileUpsertColumns),
	}).Create(profile)

	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to upsert profile")
	}
	return nil
}

var profileUpsertColumns = []string{
	"longitude", "latitude", "city", "budget_min", "budget_max", "move_in_date", "lease_months",
	"lifestyle_sleep_schedule", "lifestyle_cleanliness", "lifestyle_social_level",
	"lifestyle_smoking", "lifestyle_drinking", "lifestyle_pets", "interests", "telegram_chat_id",
	"updated_at",
}

// GetProfile retrieves a profile by ID
func (r *ProfileRepository) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&profile)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.Newf(errors.ErrCodeNotFound, "profile %s not found", id)
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get profile")
	}

	return &profile, nil
}

// GetProfileByUserID retrieves the profile owned by a user
func (r *ProfileRepository) GetProfileByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	result := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.Newf(errors.ErrCodeNotFound, "no profile for user %s", userID)
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get profile")
	}
	return &profile, nil
}

// GetProfilesByIDs retrieves profiles keyed by ID; missing IDs are simply absent
func (r *ProfileRepository) GetProfilesByIDs(ctx context.Context, ids []string) (map[string]*models.Profile, error) {
	profiles := make(map[string]*models.Profile, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}

	var rows []models.Profile
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get profiles")
	}
	for i := range rows {
		profiles[rows[i].ID] = &rows[i]
	}
	return profiles, nil
}

// GetTelegramChatID returns the chat to notify for a profile, or 0 when none is linked
func (r *ProfileRepository) GetTelegramChatID(ctx context.Context, profileID string) (int64, error) {
	var profile models.Profile
	result := r.db.WithContext(ctx).Select("telegram_chat_id").Where("id = ?", profileID).First(&profile)

	if result.Error == gorm.ErrRecordNotFound {
		return 0, errors.Newf(errors.ErrCodeNotFound, "profile %s not found", profileID)
	}
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get telegram chat")
	}
	return profile.TelegramChatID, nil
}

// GetProfileByTelegramChatID finds the profile linked to a Telegram chat
func (r *ProfileRepository) GetProfileByTelegramChatID(ctx context.Context, chatID int64) (*models.Profile, error) {
	if chatID == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "telegram chat id is required")
	}

	var profile models.Profile
	result := r.db.WithContext(ctx).Where("telegram_chat_id = ?", chatID).First(&profile)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.Newf(errors.ErrCodeNotFound, "no profile linked to chat %d", chatID)
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get profile by chat")
	}
	return &profile, nil
}

// AddLiked records that profileID likes targetID. added is false when the like already existed.
func (r *ProfileRepository) AddLiked(ctx context.Context, profileID, targetID string) (bool, error) {
	like := &models.ProfileLike{ProfileID: profileID, TargetID: targetID}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(like)

	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to add like")
	}
	return result.RowsAffected > 0, nil
}

// HasLiked checks if profileID likes targetID
func (r *ProfileRepository) HasLiked(ctx context.Context, profileID, targetID string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.ProfileLike{}).
		Where("profile_id = ? AND target_id = ?", profileID, targetID).
		Count(&count)

	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to check like")
	}
	return count > 0, nil
}

// AddDisliked records that profileID passed on targetID. added is false when it already existed.
func (r *ProfileRepository) AddDisliked(ctx context.Context, profileID, targetID string) (bool, error) {
	dislike := &models.ProfileDislike{ProfileID: profileID, TargetID: targetID}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(dislike)

	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to add dislike")
	}
	return result.RowsAffected > 0, nil
}

// AddMatch indexes matchID on the profile. Adding an existing entry is a no-op.
func (r *ProfileRepository) AddMatch(ctx context.Context, profileID, matchID string) (bool, error) {
	entry := &models.ProfileMatch{ProfileID: profileID, MatchID: matchID}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(entry)

	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to index match")
	}
	return result.RowsAffected > 0, nil
}

// RemoveMatch drops matchID from the profile's index. Removing an absent entry is a no-op.
func (r *ProfileRepository) RemoveMatch(ctx context.Context, profileID, matchID string) error {
	result := r.db.WithContext(ctx).
		Where("profile_id = ? AND match_id = ?", profileID, matchID).
		Delete(&models.ProfileMatch{})

	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to remove match from index")
	}
	return nil
}

// ListMatchIDs returns the indexed match ids of a profile, oldest first
func (r *ProfileRepository) ListMatchIDs(ctx context.Context, profileID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.ProfileMatch{}).
		Where("profile_id = ?", profileID).
		Order("created_at ASC, match_id ASC").
		Pluck("match_id", &ids).Error

	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list match ids")
	}
	return ids, nil
}

// RebuildMatchIndex replaces the whole profile match index with one entry per profile of every
// accepted match. It returns the number of entries written.
func (r *ProfileRepository) RebuildMatchIndex(ctx context.Context) (int64, error) {
	var written int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.ProfileMatch{}).Error; err != nil {
			return err
		}

		var matches []models.Match
		if err := tx.Select("id", "profile_a", "profile_b", "created_at").
			Where("status = ?", models.MatchStatusAccepted).
			Find(&matches).Error; err != nil {
			return err
		}
		if len(matches) == 0 {
			return nil
		}

		entries := make([]models.ProfileMatch, 0, 2*len(matches))
		for _, m := range matches {
			entries = append(entries,
				models.ProfileMatch{ProfileID: m.ProfileA, MatchID: m.ID, CreatedAt: m.CreatedAt},
				models.ProfileMatch{ProfileID: m.ProfileB, MatchID: m.ID, CreatedAt: m.CreatedAt},
			)
		}

		result := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(entries, 200)
		if result.Error != nil {
			return result.Error
		}
		written = result.RowsAffected
		return nil
	})

	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to rebuild match index")
	}
	return written, nil
}
