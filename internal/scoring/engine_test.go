package scoring

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/mroshb/roommate_match/internal/models"
	"github.com/mroshb/roommate_match/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseProfile(id string) *models.Profile {
	moveIn := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	return &models.Profile{
		ID:          id,
		UserID:      "user-" + id,
		Latitude:    52.52,
		Longitude:   13.405,
		City:        "Berlin",
		BudgetMin:   800,
		BudgetMax:   1200,
		MoveInDate:  &moveIn,
		LeaseMonths: 12,
		Lifestyle: models.Lifestyle{
			SleepSchedule: models.SleepEarlyBird,
			Cleanliness:   4,
			SocialLevel:   models.SocialAmbivert,
			Smoking:       false,
			Drinking:      models.DrinkingSocially,
			Pets:          true,
		},
		Interests: models.NewStringSet("hiking", "cooking"),
	}
}

// kmNorth returns the latitude reached by travelling km due north along a meridian.
func kmNorth(lat, km float64) float64 {
	return lat + km/earthRadiusKm*180/math.Pi
}

func TestCompute_WorkedExample(t *testing.T) {
	a := baseProfile("a")
	b := baseProfile("b")
	a.BudgetMin, a.BudgetMax = 800, 1200
	b.BudgetMin, b.BudgetMax = 900, 1300
	b.Latitude = kmNorth(a.Latitude, 5)

	res, err := Compute(a, b, Options{MaxDistanceKm: 10})
	require.NoError(t, err)

	assert.InDelta(t, 12.0, res.Breakdown.Budget, 1e-9)
	assert.InDelta(t, 7.5, res.Breakdown.Location, 1e-6)
}

func TestCompute_IdenticalProfilesScoreFull(t *testing.T) {
	a := baseProfile("a")
	b := baseProfile("b")

	res, err := Compute(a, b, Options{MaxDistanceKm: 10})
	require.NoError(t, err)

	assert.InDelta(t, WeightBudget, res.Breakdown.Budget, 1e-9)
	assert.InDelta(t, WeightLocation, res.Breakdown.Location, 1e-9)
	assert.InDelta(t, WeightLifestyle, res.Breakdown.Lifestyle, 1e-9)
	assert.InDelta(t, WeightInterests, res.Breakdown.Interests, 1e-9)
	assert.InDelta(t, WeightMoveInDate, res.Breakdown.MoveInDate, 1e-9)
	assert.InDelta(t, WeightLeaseDuration, res.Breakdown.LeaseDuration, 1e-9)
	assert.Equal(t, 100, res.Score)
}

func TestBudgetScore(t *testing.T) {
	tests := []struct {
		name                   string
		minA, maxA, minB, maxB float64
		want                   float64
	}{
		{name: "Disjoint", minA: 500, maxA: 700, minB: 900, maxB: 1200, want: 0},
		{name: "Touching", minA: 500, maxA: 900, minB: 900, maxB: 1200, want: 0},
		{name: "Identical", minA: 800, maxA: 1200, minB: 800, maxB: 1200, want: 20},
		{name: "Nested", minA: 800, maxA: 1200, minB: 900, maxB: 1100, want: 10},
		{name: "Single point both", minA: 1000, maxA: 1000, minB: 1000, maxB: 1000, want: 0},
		{name: "Worked example", minA: 800, maxA: 1200, minB: 900, maxB: 1300, want: 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BudgetScore(tt.minA, tt.maxA, tt.minB, tt.maxB, WeightBudget)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.InDelta(t, got, BudgetScore(tt.minB, tt.maxB, tt.minA, tt.maxA, WeightBudget), 1e-12)
		})
	}
}

func TestLocationScore_BeyondMaxDistance(t *testing.T) {
	a := baseProfile("a")
	b := baseProfile("b")
	b.Latitude = kmNorth(a.Latitude, 25)

	assert.Equal(t, 0.0, LocationScore(a, b, 10))
	assert.InDelta(t, 15*(1-25.0/50), LocationScore(a, b, 50), 1e-6)
}

func TestHaversineKm_KnownDistance(t *testing.T) {
	// Berlin to Paris is roughly 878 km.
	d := HaversineKm(52.5200, 13.4050, 48.8566, 2.3522)
	assert.InDelta(t, 878, d, 5)
	assert.Equal(t, 0.0, HaversineKm(10, 10, 10, 10))
}

func TestLifestyleScore(t *testing.T) {
	base := models.Lifestyle{
		SleepSchedule: models.SleepEarlyBird,
		Cleanliness:   3,
		SocialLevel:   models.SocialIntrovert,
		Smoking:       false,
		Drinking:      models.DrinkingNever,
		Pets:          false,
	}

	tests := []struct {
		name   string
		mutate func(l *models.Lifestyle)
		want   float64
	}{
		{name: "Identical", mutate: func(l *models.Lifestyle) {}, want: 30},
		{name: "Sleep opposite", mutate: func(l *models.Lifestyle) { l.SleepSchedule = models.SleepNightOwl }, want: 24},
		{name: "Sleep moderate", mutate: func(l *models.Lifestyle) { l.SleepSchedule = models.SleepModerate }, want: 27},
		{name: "Cleanliness off by two", mutate: func(l *models.Lifestyle) { l.Cleanliness = 5 }, want: 27},
		{name: "Social adjacent", mutate: func(l *models.Lifestyle) { l.SocialLevel = models.SocialAmbivert }, want: 27.5},
		{name: "Social opposite", mutate: func(l *models.Lifestyle) { l.SocialLevel = models.SocialExtrovert }, want: 25},
		{name: "Smoking differs", mutate: func(l *models.Lifestyle) { l.Smoking = true }, want: 25},
		{name: "Drinking adjacent", mutate: func(l *models.Lifestyle) { l.Drinking = models.DrinkingSocially }, want: 28},
		{name: "Drinking opposite", mutate: func(l *models.Lifestyle) { l.Drinking = models.DrinkingRegularly }, want: 26},
		{name: "Pets differ", mutate: func(l *models.Lifestyle) { l.Pets = true }, want: 26},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := base
			tt.mutate(&other)
			assert.InDelta(t, tt.want, LifestyleScore(base, other), 1e-9)
			assert.InDelta(t, tt.want, LifestyleScore(other, base), 1e-9)
		})
	}
}

func TestLifestyleScore_CleanlinessFloorsAtZero(t *testing.T) {
	a := models.Lifestyle{Cleanliness: 1}
	b := models.Lifestyle{Cleanliness: 5}
	// 6 - 1.5*4 = 0; everything else identical (zero values) scores in full.
	assert.InDelta(t, 24, LifestyleScore(a, b), 1e-9)
}

func TestInterestsScore(t *testing.T) {
	tests := []struct {
		name string
		a, b models.StringSet
		want float64
	}{
		{name: "Empty side", a: models.StringSet{}, b: models.NewStringSet("yoga"), want: 0},
		{name: "Disjoint", a: models.NewStringSet("yoga"), b: models.NewStringSet("chess"), want: 0},
		{name: "Half", a: models.NewStringSet("yoga", "chess"), b: models.NewStringSet("chess"), want: 7.5},
		{name: "Case and duplicates", a: models.StringSet{"Yoga", "yoga"}, b: models.StringSet{"YOGA"}, want: 15},
		{name: "Two of three", a: models.NewStringSet("a", "b", "c"), b: models.NewStringSet("a", "b"), want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, InterestsScore(tt.a, tt.b), 1e-9)
			assert.InDelta(t, tt.want, InterestsScore(tt.b, tt.a), 1e-9)
		})
	}
}

func TestMoveInScore(t *testing.T) {
	base := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		days int
		want float64
	}{
		{0, 10}, {7, 10}, {8, 8}, {14, 8}, {15, 5}, {30, 5}, {31, 2}, {60, 2}, {61, 0}, {-45, 2},
	}

	for _, tt := range tests {
		other := base.AddDate(0, 0, tt.days)
		assert.Equal(t, tt.want, MoveInScore(&base, &other), "days=%d", tt.days)
	}
	assert.Equal(t, 0.0, MoveInScore(nil, &base))
}

func TestLeaseScore(t *testing.T) {
	tests := []struct {
		a, b int
		want float64
	}{
		{12, 12, 10}, {12, 9, 7}, {12, 15, 7}, {12, 6, 4}, {6, 12, 4}, {12, 5, 0}, {1, 24, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LeaseScore(tt.a, tt.b), "a=%d b=%d", tt.a, tt.b)
	}
}

func TestCompute_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *models.Profile)
	}{
		{name: "Negative budget", mutate: func(p *models.Profile) { p.BudgetMin = -1 }},
		{name: "Inverted budget", mutate: func(p *models.Profile) { p.BudgetMin, p.BudgetMax = 1500, 1000 }},
		{name: "Latitude out of range", mutate: func(p *models.Profile) { p.Latitude = 91 }},
		{name: "Longitude out of range", mutate: func(p *models.Profile) { p.Longitude = -181 }},
		{name: "Cleanliness too low", mutate: func(p *models.Profile) { p.Lifestyle.Cleanliness = 0 }},
		{name: "Cleanliness too high", mutate: func(p *models.Profile) { p.Lifestyle.Cleanliness = 6 }},
		{name: "Negative lease", mutate: func(p *models.Profile) { p.LeaseMonths = -3 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := baseProfile("bad")
			tt.mutate(bad)

			_, err := Compute(baseProfile("ok"), bad, Options{MaxDistanceKm: 10})
			assert.True(t, errors.Is(err, errors.ErrCodeValidation), "got %v", err)
		})
	}

	_, err := Compute(baseProfile("a"), baseProfile("b"), Options{})
	assert.True(t, errors.Is(err, errors.ErrCodeValidation))
}

func randomProfile(r *rand.Rand, id string) *models.Profile {
	sleep := []string{models.SleepEarlyBird, models.SleepNightOwl, models.SleepModerate}
	interests := []string{"hiking", "cooking", "gaming", "yoga", "jazz", "film", "running"}

	minBudget := float64(r.Intn(2000))
	moveIn := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(r.Intn(200*24)) * time.Hour)

	var picked []string
	for _, in := range interests {
		if r.Intn(2) == 0 {
			picked = append(picked, in)
		}
	}

	return &models.Profile{
		ID:          id,
		Latitude:    40 + r.Float64(),
		Longitude:   -74 + r.Float64(),
		City:        []string{"NYC", "Newark", ""}[r.Intn(3)],
		BudgetMin:   minBudget,
		BudgetMax:   minBudget + float64(r.Intn(1500)),
		MoveInDate:  &moveIn,
		LeaseMonths: r.Intn(24),
		Lifestyle: models.Lifestyle{
			SleepSchedule: sleep[r.Intn(len(sleep))],
			Cleanliness:   1 + r.Intn(5),
			SocialLevel:   socialLevels[r.Intn(len(socialLevels))],
			Smoking:       r.Intn(2) == 0,
			Drinking:      drinkingTiers[r.Intn(len(drinkingTiers))],
			Pets:          r.Intn(2) == 0,
		},
		Interests: models.NewStringSet(picked...),
	}
}

func TestCompute_SymmetricAndBounded(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		a := randomProfile(r, "a")
		b := randomProfile(r, "b")
		opts := Options{MaxDistanceKm: 5 + r.Float64()*100}

		ab, err := Compute(a, b, opts)
		require.NoError(t, err)
		ba, err := Compute(b, a, opts)
		require.NoError(t, err)

		require.Equal(t, ab, ba, "iteration %d", i)
		require.GreaterOrEqual(t, ab.Score, 0)
		require.LessOrEqual(t, ab.Score, 100)

		bd := ab.Breakdown
		checks := []struct {
			name       string
			got, limit float64
		}{
			{"budget", bd.Budget, WeightBudget},
			{"location", bd.Location, WeightLocation},
			{"lifestyle", bd.Lifestyle, WeightLifestyle},
			{"interests", bd.Interests, WeightInterests},
			{"moveIn", bd.MoveInDate, WeightMoveInDate},
			{"lease", bd.LeaseDuration, WeightLeaseDuration},
		}
		for _, c := range checks {
			require.GreaterOrEqual(t, c.got, 0.0, c.name)
			require.LessOrEqual(t, c.got, c.limit, c.name)
		}

		aggAB, err := ComputeAggregate(a, b)
		require.NoError(t, err)
		aggBA, err := ComputeAggregate(b, a)
		require.NoError(t, err)
		require.Equal(t, aggAB, aggBA)
		require.GreaterOrEqual(t, aggAB, 0)
		require.LessOrEqual(t, aggAB, 100)
	}
}
