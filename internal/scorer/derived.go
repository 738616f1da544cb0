package scorer

import (
	"github.com/sells-group/rca-cli/internal/model"
)

// Fallback ranks when metadata is unavailable.
const (
	DefaultAgeRank  = 5
	DefaultSizeRank = 7
)

var ageSteps = []struct {
	maxAge int
	rank   int
}{
	{10, 10}, {20, 9}, {30, 8}, {40, 7}, {50, 6},
	{60, 5}, {70, 4}, {80, 3}, {90, 2},
}

var sizeSteps = []struct {
	maxSqft float64
	rank    int
}{
	{50_000, 10}, {60_000, 9}, {70_000, 8}, {80_000, 7}, {90_000, 6}, {100_000, 5},
}

// AgeRank ranks a building by age; newer ranks higher. A build year in the
// future ranks 10.
func AgeRank(yearBuilt, currentYear int) int {
	age := currentYear - yearBuilt
	if age < 0 {
		return 10
	}
	for _, s := range ageSteps {
		if age <= s.maxAge {
			return s.rank
		}
	}
	return 1
}

// SizeRank ranks a facility by rentable square footage; smaller ranks higher.
func SizeRank(sqft float64) int {
	for _, s := range sizeSteps {
		if sqft <= s.maxSqft {
			return s.rank
		}
	}
	return 4
}

// DerivedRanking computes the Age and Size ranks from metadata, using the
// fallbacks when a value is missing.
func DerivedRanking(meta *model.EntityMetadata, currentYear int) model.Ranking {
	r := model.Ranking{Age: DefaultAgeRank, Size: DefaultSizeRank}
	if meta == nil {
		return r
	}
	if meta.YearBuilt != nil {
		r[Age] = AgeRank(*meta.YearBuilt, currentYear)
	}
	if meta.SquareFootage != nil {
		r[Size] = SizeRank(*meta.SquareFootage)
	}
	return r
}

// WithDerived overlays derived Age and Size ranks onto manual, keeping any
// rank manual already sets.
func WithDerived(manual model.Ranking, meta *model.EntityMetadata, currentYear int) model.Ranking {
	out := make(model.Ranking, len(manual)+2)
	for k, v := range DerivedRanking(meta, currentYear) {
		out[k] = v
	}
	for k, v := range manual {
		out[k] = v
	}
	return out
}
