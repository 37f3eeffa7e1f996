package monitor

import (
	"math"

	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/models"
)

// Accuracy statuses.
const (
	AccuracyOK               = "ok"
	AccuracyInsufficientData = "insufficient_data"
)

// ComputeAccuracy derives trailing-window accuracy from joined
// (predicted, realized) pairs. Zero matched samples is a soft condition, not
// an error: the report carries insufficient_data with neutral values.
func ComputeAccuracy(model, horizon string, pairs []models.PredictionOutcome) models.AccuracyReport {
	report := models.AccuracyReport{
		Model:      model,
		Horizon:    horizon,
		SampleSize: len(pairs),
	}
	if len(pairs) == 0 {
		report.Status = AccuracyInsufficientData
		return report
	}

	absErr := 0.0
	directional := 0
	for _, p := range pairs {
		absErr += math.Abs(p.Actual - p.Predicted)
		if SameDirection(p.Predicted, p.Actual) {
			directional++
		}
	}
	report.Status = AccuracyOK
	report.MeanAbsError = absErr / float64(len(pairs))
	report.DirectionalAccuracy = float64(directional) / float64(len(pairs))
	return report
}

// SameDirection reports whether two returns move the same way. An exact zero
// matches only another exact zero, so a flat prediction never counts as a
// directional hit against a nonzero move. Promotion-time evaluation and the
// trailing accuracy monitor both score with this rule.
func SameDirection(a, b float64) bool {
	return signOf(a) == signOf(b)
}

func signOf(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
