package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/models"
	domrepo "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/repository"
	applogger "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/logger"
	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/util"
)

// Thresholds configures the retrain decision signals.
type Thresholds struct {
	MaxModelAgeDays  int     // staleness signal
	MinNewSamples    int     // new-data signal; 2x escalates priority
	MaxAccuracyDrop  float64 // directional-accuracy drop vs promotion metrics
	AccuracyWindow   time.Duration
	PSIBins          int
	KeyFeatures      []string
	DriftWindow      time.Duration
}

// Monitor combines drift, accuracy and registry signals into retrain
// recommendations and health reports for deployed models.
type Monitor struct {
	registry    domrepo.ModelRegistry
	outcomes    domrepo.OutcomeStore
	predictions domrepo.PredictionStore
	thresholds  Thresholds
	logger      *applogger.Logger
	now         func() time.Time
}

func New(registry domrepo.ModelRegistry, outcomes domrepo.OutcomeStore, predictions domrepo.PredictionStore, th Thresholds, lgr *applogger.Logger, now func() time.Time) *Monitor {
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		registry:    registry,
		outcomes:    outcomes,
		predictions: predictions,
		thresholds:  th,
		logger:      lgr,
		now:         now,
	}
}

// Recommend evaluates the three retrain signals against the active model for
// the name. Data gaps while computing advisory inputs degrade to neutral
// values; only registry access errors propagate.
func (m *Monitor) Recommend(ctx context.Context, name string, horizon domrepo.Horizon) (models.RetrainRecommendation, error) {
	entry, err := m.registry.Active(ctx, name)
	if err != nil {
		return models.RetrainRecommendation{}, fmt.Errorf("active model %s: %w", name, err)
	}
	if entry == nil {
		// No deployed model at all: retrain immediately, nothing else to
		// weigh.
		return models.RetrainRecommendation{
			Model:         name,
			ShouldRetrain: true,
			Reasons:       []string{"no active model registered"},
			Priority:      models.PriorityHigh,
		}, nil
	}

	rec := models.RetrainRecommendation{
		Model:    name,
		Priority: models.PriorityLow,
	}
	rec.DaysSinceTrained = util.DaysBetween(entry.TrainedAt, m.now())

	stale := m.thresholds.MaxModelAgeDays > 0 && rec.DaysSinceTrained > m.thresholds.MaxModelAgeDays
	if stale {
		rec.ShouldRetrain = true
		rec.Reasons = append(rec.Reasons, fmt.Sprintf("model is %d days old (max %d)", rec.DaysSinceTrained, m.thresholds.MaxModelAgeDays))
	}

	newSamples, err := m.outcomes.CountLabeledSince(ctx, horizon, entry.TrainedAt)
	if err != nil {
		// advisory input: degrade, do not abort the monitoring run
		if m.logger != nil {
			m.logger.Warn("new-sample count unavailable", applogger.String("model", name), applogger.Error(err))
		}
		newSamples = 0
	}
	rec.NewSamples = newSamples
	doubledData := false
	if m.thresholds.MinNewSamples > 0 && newSamples > m.thresholds.MinNewSamples {
		rec.ShouldRetrain = true
		doubledData = newSamples > 2*m.thresholds.MinNewSamples
		rec.Reasons = append(rec.Reasons, fmt.Sprintf("%d new labeled outcomes since training (min %d)", newSamples, m.thresholds.MinNewSamples))
	}

	accuracyDegraded := false
	acc := m.recentAccuracy(ctx, name, horizon)
	if acc.Status == AccuracyOK {
		rec.RecentAccuracy = acc.DirectionalAccuracy
		if promoted, ok := entry.Metrics["directional_accuracy"]; ok {
			drop := promoted - acc.DirectionalAccuracy
			if drop > m.thresholds.MaxAccuracyDrop {
				accuracyDegraded = true
				rec.ShouldRetrain = true
				rec.Reasons = append(rec.Reasons, fmt.Sprintf("directional accuracy dropped %.3f from promotion (max %.3f)", drop, m.thresholds.MaxAccuracyDrop))
			}
		}
	}

	switch {
	case accuracyDegraded || doubledData:
		rec.Priority = models.PriorityHigh
	case stale:
		rec.Priority = models.PriorityMedium
	default:
		rec.Priority = models.PriorityLow
	}
	return rec, nil
}

func (m *Monitor) recentAccuracy(ctx context.Context, name string, horizon domrepo.Horizon) models.AccuracyReport {
	since := m.now().Add(-m.thresholds.AccuracyWindow)
	pairs, err := m.predictions.JoinOutcomes(ctx, name, horizon, since)
	if err != nil {
		if m.logger != nil {
			m.logger.Warn("prediction/outcome join failed", applogger.String("model", name), applogger.Error(err))
		}
		pairs = nil
	}
	return ComputeAccuracy(name, string(horizon), pairs)
}
