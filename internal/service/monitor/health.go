package monitor

import (
	"context"
	"fmt"

	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/models"
	domrepo "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/repository"
	applogger "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/logger"
)

// HealthReport bundles identity, recent accuracy, per-feature PSI over the
// configured key features and the retrain recommendation for the active
// model. Advisory data gaps degrade individual sections; they never fail the
// report.
func (m *Monitor) HealthReport(ctx context.Context, name string, horizon domrepo.Horizon) (models.HealthReport, error) {
	entry, err := m.registry.Active(ctx, name)
	if err != nil {
		return models.HealthReport{}, fmt.Errorf("active model %s: %w", name, err)
	}

	report := models.HealthReport{
		Model:        name,
		Horizon:      string(horizon),
		FeatureDrift: make(map[string]models.DriftReport, len(m.thresholds.KeyFeatures)),
		GeneratedAt:  m.now().UTC(),
	}
	if entry != nil {
		report.Version = entry.Version
	}

	report.Accuracy = m.recentAccuracy(ctx, name, horizon)

	pivot := m.now().Add(-m.thresholds.DriftWindow)
	worstDrift := models.DriftStable
	for _, feature := range m.thresholds.KeyFeatures {
		baseline, current, ferr := m.outcomes.FeatureWindow(ctx, feature, horizon, pivot)
		if ferr != nil {
			if m.logger != nil {
				m.logger.Warn("feature window unavailable",
					applogger.String("model", name),
					applogger.String("feature", feature),
					applogger.Error(ferr),
				)
			}
			report.FeatureDrift[feature] = models.DriftReport{Feature: feature, Classification: models.DriftInsufficientData}
			continue
		}
		dr := ComputePSI(feature, baseline, current, m.thresholds.PSIBins)
		report.FeatureDrift[feature] = dr
		worstDrift = worseDrift(worstDrift, dr.Classification)
	}

	rec, err := m.Recommend(ctx, name, horizon)
	if err != nil {
		return models.HealthReport{}, err
	}
	report.Recommendation = rec
	report.Status = healthStatus(rec, worstDrift)
	return report, nil
}

func healthStatus(rec models.RetrainRecommendation, worstDrift string) string {
	switch {
	case rec.Priority == models.PriorityHigh || worstDrift == models.DriftSignificant:
		return models.HealthNeedsAttention
	case rec.ShouldRetrain || worstDrift == models.DriftMinor:
		return models.HealthMonitoring
	default:
		return models.HealthHealthy
	}
}

func worseDrift(a, b string) string {
	rank := func(s string) int {
		switch s {
		case models.DriftSignificant:
			return 2
		case models.DriftMinor:
			return 1
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}
