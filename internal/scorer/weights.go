// Package scorer turns comparability rankings into per-entity price
// adjustment percentages.
package scorer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rca-cli/internal/model"
)

// Ranking categories.
const (
	Location      = "Location"
	Age           = "Age"
	Accessibility = "Accessibility"
	VPD           = "VPD"
	Visibility    = "Visibility & Signage"
	Brand         = "Brand"
	Quality       = "Quality"
	Size          = "Size"
)

// Rank bounds and the neutral midpoint used for missing ranks.
const (
	MinRank     = 1
	MaxRank     = 10
	NeutralRank = 5
)

// Weights is the per-category weight applied to each rank point, as a
// decimal fraction.
var Weights = map[string]float64{
	Location:      0.010,
	Age:           0.010,
	Accessibility: 0.005,
	VPD:           0.005,
	Visibility:    0.005,
	Brand:         0.010,
	Quality:       0.010,
	Size:          0.010,
}

// Categories lists the ranking categories in display order.
var Categories = []string{Location, Age, Accessibility, VPD, Visibility, Brand, Quality, Size}

// ValidateRanking checks every rank is a known category within 1..10.
func ValidateRanking(r model.Ranking) error {
	var errs []string

	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, ok := Weights[name]; !ok {
			errs = append(errs, fmt.Sprintf("unknown category %q", name))
			continue
		}
		if v := r[name]; v < MinRank || v > MaxRank {
			errs = append(errs, fmt.Sprintf("%s rank %d outside %d..%d", name, v, MinRank, MaxRank))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: invalid ranking: %s", strings.Join(errs, "; "))
	}
	return nil
}

func rankOf(r model.Ranking, category string) int {
	if v, ok := r[category]; ok {
		return v
	}
	return NeutralRank
}
