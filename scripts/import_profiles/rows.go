package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mroshb/roommate_match/internal/models"
	"github.com/mroshb/roommate_match/internal/scoring"
	"github.com/mroshb/roommate_match/pkg/utils"
)

// Sheet columns, matched case-insensitively against the header row
const (
	colID            = "id"
	colUserID        = "user_id"
	colCity          = "city"
	colLatitude      = "latitude"
	colLongitude     = "longitude"
	colBudgetMin     = "budget_min"
	colBudgetMax     = "budget_max"
	colMoveInDate    = "move_in_date"
	colLeaseMonths   = "lease_months"
	colSleepSchedule = "sleep_schedule"
	colCleanliness   = "cleanliness"
	colSocialLevel   = "social_level"
	colSmoking       = "smoking"
	colDrinking      = "drinking"
	colPets          = "pets"
	colInterests     = "interests"
	colTelegramChat  = "telegram_chat_id"
)

var requiredColumns = []string{colUserID, colBudgetMin, colBudgetMax}

type columns map[string]int

func parseHeader(header []string) (columns, error) {
	cols := make(columns, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}
	return cols, nil
}

func (c columns) get(row []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseProfileRow builds a validated profile from one sheet row.
func parseProfileRow(cols columns, row []string) (*models.Profile, error) {
	p := &models.Profile{
		ID:     cols.get(row, colID),
		UserID: cols.get(row, colUserID),
		City:   utils.NormalizeText(cols.get(row, colCity)),
		Lifestyle: models.Lifestyle{
			SleepSchedule: strings.ToLower(cols.get(row, colSleepSchedule)),
			SocialLevel:   strings.ToLower(cols.get(row, colSocialLevel)),
			Drinking:      strings.ToLower(cols.get(row, colDrinking)),
		},
		LeaseMonths: 12,
	}
	if p.UserID == "" {
		return nil, fmt.Errorf("user_id is empty")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	var err error
	if p.Latitude, err = parseFloat(cols.get(row, colLatitude)); err != nil {
		return nil, fmt.Errorf("latitude: %w", err)
	}
	if p.Longitude, err = parseFloat(cols.get(row, colLongitude)); err != nil {
		return nil, fmt.Errorf("longitude: %w", err)
	}
	if p.BudgetMin, err = parseFloat(cols.get(row, colBudgetMin)); err != nil {
		return nil, fmt.Errorf("budget_min: %w", err)
	}
	if p.BudgetMax, err = parseFloat(cols.get(row, colBudgetMax)); err != nil {
		return nil, fmt.Errorf("budget_max: %w", err)
	}

	if v := cols.get(row, colLeaseMonths); v != "" {
		if p.LeaseMonths, err = parseInt(v); err != nil {
			return nil, fmt.Errorf("lease_months: %w", err)
		}
	}
	if v := cols.get(row, colCleanliness); v != "" {
		if p.Lifestyle.Cleanliness, err = parseInt(v); err != nil {
			return nil, fmt.Errorf("cleanliness: %w", err)
		}
	} else {
		p.Lifestyle.Cleanliness = 3
	}
	if v := cols.get(row, colMoveInDate); v != "" {
		d, err := time.Parse("2006-01-02", utils.NormalizeDigits(v))
		if err != nil {
			return nil, fmt.Errorf("move_in_date: %w", err)
		}
		p.MoveInDate = &d
	}
	if v := cols.get(row, colTelegramChat); v != "" {
		if p.TelegramChatID, err = strconv.ParseInt(utils.NormalizeDigits(v), 10, 64); err != nil {
			return nil, fmt.Errorf("telegram_chat_id: %w", err)
		}
	}

	p.Lifestyle.Smoking = parseBool(cols.get(row, colSmoking))
	p.Lifestyle.Pets = parseBool(cols.get(row, colPets))

	if v := cols.get(row, colInterests); v != "" {
		p.Interests = models.NewStringSet(strings.Split(v, ",")...)
	}

	if err := scoring.Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

func parseFloat(v string) (float64, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.ParseFloat(utils.NormalizeDigits(v), 64)
}

func parseInt(v string) (int, error) {
	return strconv.Atoi(utils.NormalizeDigits(v))
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "y", "yes", "true":
		return true
	}
	return false
}
