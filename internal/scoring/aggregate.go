package scoring

import (
	"strings"

	"github.com/mroshb/roommate_match/internal/models"
)

// Weights of the background recalculation formula. They sum to 100 and differ
// from the live formula; recalculated scores are not comparable with live ones.
const (
	AggregateWeightBudget    = 30.0
	AggregateWeightCity      = 20.0
	AggregateWeightLifestyle = 50.0
)

// ComputeAggregate scores a pair with the recalculation formula: budget overlap scaled to 30,
// same-city 20, lifestyle scaled to 50. It ignores distance, interests, move-in and lease.
func ComputeAggregate(a, b *models.Profile) (int, error) {
	if err := Validate(a); err != nil {
		return 0, err
	}
	if err := Validate(b); err != nil {
		return 0, err
	}

	sum := BudgetScore(a.BudgetMin, a.BudgetMax, b.BudgetMin, b.BudgetMax, AggregateWeightBudget)
	if sameCity(a.City, b.City) {
		sum += AggregateWeightCity
	}
	sum += LifestyleScore(a.Lifestyle, b.Lifestyle) * AggregateWeightLifestyle / WeightLifestyle

	return clampScore(sum), nil
}

func sameCity(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}
