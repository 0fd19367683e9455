package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

type Profile struct {
	ID             string     `gorm:"primaryKey;type:varchar(36)"`
	UserID         string     `gorm:"type:varchar(64);uniqueIndex;not null"`
	Longitude      float64    `gorm:"type:float"`
	Latitude       float64    `gorm:"type:float"`
	City           string     `gorm:"type:varchar(100);index"`
	BudgetMin      float64    `gorm:"not null"`
	BudgetMax      float64    `gorm:"not null"`
	MoveInDate     *time.Time `gorm:"index"`
	LeaseMonths    int        `gorm:"default:12"`
	Lifestyle      Lifestyle  `gorm:"embedded;embeddedPrefix:lifestyle_"`
	Interests      StringSet  `gorm:"type:text"`
	TelegramChatID int64      `gorm:"default:0;index"` // notification routing only
	CreatedAt      time.Time  `gorm:"autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime"`
}

type Lifestyle struct {
	SleepSchedule string `gorm:"type:varchar(20)"`
	Cleanliness   int    `gorm:"default:3"`
	SocialLevel   string `gorm:"type:varchar(20)"`
	Smoking       bool
	Drinking      string `gorm:"type:varchar(20)"`
	Pets          bool
}

// Sleep schedule constants
const (
	SleepEarlyBird = "early_bird"
	SleepNightOwl  = "night_owl"
	SleepModerate  = "moderate"
)

// Social level constants, ordered from least to most social
const (
	SocialIntrovert = "introvert"
	SocialAmbivert  = "ambivert"
	SocialExtrovert = "extrovert"
)

// Drinking tier constants, ordered from least to most
const (
	DrinkingNever     = "never"
	DrinkingSocially  = "socially"
	DrinkingRegularly = "regularly"
)

func (Profile) TableName() string {
	return "profiles"
}

// StringSet is a de-duplicated list persisted as a JSON array.
type StringSet []string

// NewStringSet lowercases, trims and de-duplicates values, keeping first-seen order.
func NewStringSet(values ...string) StringSet {
	seen := make(map[string]struct{}, len(values))
	set := make(StringSet, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		set = append(set, v)
	}
	return set
}

func (s StringSet) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *StringSet) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*s = StringSet{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported type for StringSet: %T", value)
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return err
	}
	*s = NewStringSet(values...)
	return nil
}

// ProfileLike records that ProfileID likes TargetID. The composite key makes inserts idempotent.
type ProfileLike struct {
	ProfileID string    `gorm:"primaryKey;type:varchar(36)"`
	TargetID  string    `gorm:"primaryKey;type:varchar(36);index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (ProfileLike) TableName() string {
	return "profile_likes"
}

type ProfileDislike struct {
	ProfileID string    `gorm:"primaryKey;type:varchar(36)"`
	TargetID  string    `gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (ProfileDislike) TableName() string {
	return "profile_dislikes"
}

// ProfileMatch is the per-profile back-reference to a Match. It is a derived index:
// the matches table is authoritative and the index can be rebuilt from it at any time.
type ProfileMatch struct {
	ProfileID string    `gorm:"primaryKey;type:varchar(36)"`
	MatchID   string    `gorm:"primaryKey;type:varchar(36);index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (ProfileMatch) TableName() string {
	return "profile_matches"
}
