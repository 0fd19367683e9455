// Package scoring computes roommate compatibility between two profile snapshots.
// Everything here is pure: no I/O, no shared state, safe to call from any goroutine.
package scoring

import (
	"math"
	"time"

	"github.com/mroshb/roommate_match/internal/models"
	"github.com/mroshb/roommate_match/pkg/errors"
)

// Sub-score weights of the live matching formula. They sum to 100.
const (
	WeightBudget        = 20.0
	WeightLocation      = 15.0
	WeightLifestyle     = 30.0
	WeightInterests     = 15.0
	WeightMoveInDate    = 10.0
	WeightLeaseDuration = 10.0
)

// Lifestyle sub-weights. They sum to WeightLifestyle.
const (
	weightSleep       = 6.0
	weightCleanliness = 6.0
	weightSocial      = 5.0
	weightSmoking     = 5.0
	weightDrinking    = 4.0
	weightPets        = 4.0
)

const earthRadiusKm = 6371.0

type Options struct {
	MaxDistanceKm float64
}

type Breakdown struct {
	Budget        float64 `json:"budget"`
	Location      float64 `json:"location"`
	Lifestyle     float64 `json:"lifestyle"`
	Interests     float64 `json:"interests"`
	MoveInDate    float64 `json:"moveInDate"`
	LeaseDuration float64 `json:"leaseDuration"`
}

func (b Breakdown) Sum() float64 {
	return b.Budget + b.Location + b.Lifestyle + b.Interests + b.MoveInDate + b.LeaseDuration
}

type Result struct {
	Score     int       `json:"score"`
	Breakdown Breakdown `json:"breakdown"`
}

// Compute scores a pair with the live matching formula. Compute(a, b) == Compute(b, a).
func Compute(a, b *models.Profile, opts Options) (Result, error) {
	if opts.MaxDistanceKm <= 0 {
		return Result{}, errors.New(errors.ErrCodeValidation, "max distance must be positive")
	}
	if err := Validate(a); err != nil {
		return Result{}, err
	}
	if err := Validate(b); err != nil {
		return Result{}, err
	}

	bd := Breakdown{
		Budget:        BudgetScore(a.BudgetMin, a.BudgetMax, b.BudgetMin, b.BudgetMax, WeightBudget),
		Location:      LocationScore(a, b, opts.MaxDistanceKm),
		Lifestyle:     LifestyleScore(a.Lifestyle, b.Lifestyle),
		Interests:     InterestsScore(a.Interests, b.Interests),
		MoveInDate:    MoveInScore(a.MoveInDate, b.MoveInDate),
		LeaseDuration: LeaseScore(a.LeaseMonths, b.LeaseMonths),
	}

	return Result{Score: clampScore(bd.Sum()), Breakdown: bd}, nil
}

// Validate rejects profiles whose scoring inputs are malformed.
func Validate(p *models.Profile) error {
	if p == nil {
		return errors.New(errors.ErrCodeValidation, "profile is required")
	}
	if p.BudgetMin < 0 || p.BudgetMax < 0 {
		return errors.Newf(errors.ErrCodeValidation, "profile %s has a negative budget", p.ID)
	}
	if p.BudgetMin > p.BudgetMax {
		return errors.Newf(errors.ErrCodeValidation, "profile %s budget min exceeds max", p.ID)
	}
	if p.Latitude < -90 || p.Latitude > 90 || p.Longitude < -180 || p.Longitude > 180 {
		return errors.Newf(errors.ErrCodeValidation, "profile %s has coordinates out of range", p.ID)
	}
	if p.Lifestyle.Cleanliness < 1 || p.Lifestyle.Cleanliness > 5 {
		return errors.Newf(errors.ErrCodeValidation, "profile %s cleanliness must be between 1 and 5", p.ID)
	}
	if p.LeaseMonths < 0 {
		return errors.Newf(errors.ErrCodeValidation, "profile %s has a negative lease duration", p.ID)
	}
	return nil
}

// BudgetScore awards weight × overlap / span, where span covers both ranges end to end.
// Disjoint or touching ranges score 0.
func BudgetScore(minA, maxA, minB, maxB, weight float64) float64 {
	overlap := math.Min(maxA, maxB) - math.Max(minA, minB)
	if overlap <= 0 {
		return 0
	}
	span := math.Max(maxA, maxB) - math.Min(minA, minB)
	if span <= 0 {
		return 0
	}
	return math.Min(weight, weight*overlap/span)
}

// HaversineKm returns the great-circle distance between two points.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) + math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

func LocationScore(a, b *models.Profile, maxDistanceKm float64) float64 {
	d := HaversineKm(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
	if d > maxDistanceKm {
		return 0
	}
	return WeightLocation * (1 - d/maxDistanceKm)
}

func LifestyleScore(a, b models.Lifestyle) float64 {
	score := 0.0

	switch {
	case a.SleepSchedule == b.SleepSchedule:
		score += weightSleep
	case a.SleepSchedule == models.SleepModerate || b.SleepSchedule == models.SleepModerate:
		score += weightSleep / 2
	}

	diff := math.Abs(float64(a.Cleanliness - b.Cleanliness))
	score += math.Max(0, weightCleanliness-1.5*diff)

	score += ordinalScore(socialLevels, a.SocialLevel, b.SocialLevel, weightSocial)

	if a.Smoking == b.Smoking {
		score += weightSmoking
	}

	score += ordinalScore(drinkingTiers, a.Drinking, b.Drinking, weightDrinking)

	if a.Pets == b.Pets {
		score += weightPets
	}

	return score
}

var (
	socialLevels  = []string{models.SocialIntrovert, models.SocialAmbivert, models.SocialExtrovert}
	drinkingTiers = []string{models.DrinkingNever, models.DrinkingSocially, models.DrinkingRegularly}
)

// ordinalScore gives the full weight for equal tiers and half for neighbouring tiers.
// Unknown values only score when both sides are the same unknown value.
func ordinalScore(scale []string, a, b string, weight float64) float64 {
	if a == b {
		return weight
	}
	ia, ib := indexOf(scale, a), indexOf(scale, b)
	if ia < 0 || ib < 0 {
		return 0
	}
	if ia-ib == 1 || ib-ia == 1 {
		return weight / 2
	}
	return 0
}

func indexOf(scale []string, v string) int {
	for i, s := range scale {
		if s == v {
			return i
		}
	}
	return -1
}

func InterestsScore(a, b models.StringSet) float64 {
	setA := models.NewStringSet(a...)
	setB := models.NewStringSet(b...)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	inB := make(map[string]struct{}, len(setB))
	for _, v := range setB {
		inB[v] = struct{}{}
	}
	shared := 0
	for _, v := range setA {
		if _, ok := inB[v]; ok {
			shared++
		}
	}

	larger := len(setA)
	if len(setB) > larger {
		larger = len(setB)
	}
	return WeightInterests * float64(shared) / float64(larger)
}

func MoveInScore(a, b *time.Time) float64 {
	if a == nil || b == nil || a.IsZero() || b.IsZero() {
		return 0
	}
	days := math.Abs(a.Sub(*b).Hours()) / 24
	switch {
	case days <= 7:
		return 10
	case days <= 14:
		return 8
	case days <= 30:
		return 5
	case days <= 60:
		return 2
	}
	return 0
}

func LeaseScore(a, b int) float64 {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff == 0:
		return 10
	case diff <= 3:
		return 7
	case diff <= 6:
		return 4
	}
	return 0
}

func clampScore(sum float64) int {
	score := int(math.Round(sum))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
