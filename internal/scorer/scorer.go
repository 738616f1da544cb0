package scorer

import (
	"go.uber.org/zap"

	"github.com/sells-group/rca-cli/internal/model"
)

// Adjustment returns Σ weight × (comparator − subject) over every category
// plus the sum of the flat factors. Missing ranks count as NeutralRank.
func Adjustment(subject, comparator model.Ranking, factors model.AdjustmentFactors) float64 {
	var total float64
	for _, category := range Categories {
		total += Weights[category] * float64(rankOf(comparator, category)-rankOf(subject, category))
	}
	return total + factors.Sum()
}

// Breakdown returns each category's contribution to Adjustment.
func Breakdown(subject, comparator model.Ranking) map[string]float64 {
	out := make(map[string]float64, len(Categories))
	for _, category := range Categories {
		out[category] = Weights[category] * float64(rankOf(comparator, category)-rankOf(subject, category))
	}
	return out
}

// Adjustments scores every ranked entity against the subject. The subject's
// own adjustment is exactly 0.
func Adjustments(subjectID int, rankings map[int]model.Ranking, factors model.AdjustmentFactors) map[int]float64 {
	subject := rankings[subjectID]
	out := make(map[int]float64, len(rankings))
	for id, r := range rankings {
		if id == subjectID {
			out[id] = 0
			continue
		}
		out[id] = Adjustment(subject, r, factors)
		zap.L().Debug("scorer: adjustment",
			zap.Int("entity_id", id),
			zap.Float64("adjustment", out[id]),
		)
	}
	out[subjectID] = 0
	return out
}
