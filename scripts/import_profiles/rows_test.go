package main

import (
	"testing"
	"time"

	"github.com/mroshb/roommate_match/internal/models"
	"github.com/mroshb/roommate_match/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var header = []string{
	"ID", "User_ID", "City", "Latitude", "Longitude", "Budget_Min", "Budget_Max", "Move_In_Date",
	"Lease_Months", "Sleep_Schedule", "Cleanliness", "Social_Level", "Smoking", "Drinking", "Pets",
	"Interests", "Telegram_Chat_ID",
}

func TestParseProfileRow(t *testing.T) {
	cols, err := parseHeader(header)
	require.NoError(t, err)

	p, err := parseProfileRow(cols, []string{
		"p1", "u1", "Madrid", "40.4168", "-3.7038", "500", "800", "2025-09-01",
		"6", "Night_Owl", "4", "introvert", "no", "socially", "yes",
		"Climbing, cooking,climbing", "12345",
	})
	require.NoError(t, err)

	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, "u1", p.UserID)
	assert.InDelta(t, 40.4168, p.Latitude, 1e-9)
	assert.Equal(t, 800.0, p.BudgetMax)
	require.NotNil(t, p.MoveInDate)
	assert.Equal(t, time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), *p.MoveInDate)
	assert.Equal(t, 6, p.LeaseMonths)
	assert.Equal(t, models.SleepNightOwl, p.Lifestyle.SleepSchedule)
	assert.False(t, p.Lifestyle.Smoking)
	assert.True(t, p.Lifestyle.Pets)
	assert.Equal(t, models.StringSet{"climbing", "cooking"}, p.Interests)
	assert.Equal(t, int64(12345), p.TelegramChatID)
}

func TestParseProfileRow_Defaults(t *testing.T) {
	cols, err := parseHeader([]string{"user_id", "budget_min", "budget_max"})
	require.NoError(t, err)

	p, err := parseProfileRow(cols, []string{"u2", "300", "600"})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, 12, p.LeaseMonths)
	assert.Equal(t, 3, p.Lifestyle.Cleanliness)
	assert.Nil(t, p.MoveInDate)
}

func TestParseProfileRow_PersianDigits(t *testing.T) {
	cols, err := parseHeader([]string{"user_id", "city", "budget_min", "budget_max", "cleanliness", "move_in_date"})
	require.NoError(t, err)

	p, err := parseProfileRow(cols, []string{"u3", "كرج", "۱۵٬۰۰۰", "۲۰٬۰۰۰", "۴", "۲۰۲۵-۰۳-۰۱"})
	require.NoError(t, err)
	assert.Equal(t, "کرج", p.City)
	assert.Equal(t, 15000.0, p.BudgetMin)
	assert.Equal(t, 20000.0, p.BudgetMax)
	assert.Equal(t, 4, p.Lifestyle.Cleanliness)
	assert.Equal(t, 2025, p.MoveInDate.Year())
}

func TestParseProfileRow_Invalid(t *testing.T) {
	cols, err := parseHeader(header)
	require.NoError(t, err)

	tests := []struct {
		name string
		row  []string
	}{
		{"missing user", []string{"p1", "", "Madrid", "0", "0", "500", "800"}},
		{"bad budget", []string{"p1", "u1", "Madrid", "0", "0", "five", "800"}},
		{"bad date", []string{"p1", "u1", "Madrid", "0", "0", "500", "800", "01/09/2025"}},
		{"cleanliness out of range", []string{"p1", "u1", "Madrid", "0", "0", "500", "800", "", "", "", "9"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseProfileRow(cols, tt.row)
			assert.Error(t, err)
		})
	}

	_, err = parseProfileRow(cols, []string{"p1", "u1", "Madrid", "0", "0", "900", "800"})
	assert.True(t, errors.Is(err, errors.ErrCodeValidation))
}

func TestParseHeader_RequiresColumns(t *testing.T) {
	_, err := parseHeader([]string{"user_id", "budget_min"})
	assert.Error(t, err)
}
