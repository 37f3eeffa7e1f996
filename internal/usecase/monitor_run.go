package usecase

import (
	"context"

	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/models"
	domrepo "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/repository"
	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/service/monitor"
	applogger "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/logger"
)

// MonitorService runs monitoring sweeps over deployed models: retrain
// recommendations feed the notification topic, health reports feed the API.
type MonitorService struct {
	monitor *monitor.Monitor
	recPub  domrepo.Publisher
	metrics domrepo.Metrics
	logger  *applogger.Logger
}

func NewMonitorService(m *monitor.Monitor, recPub domrepo.Publisher, metrics domrepo.Metrics, lgr *applogger.Logger) *MonitorService {
	return &MonitorService{monitor: m, recPub: recPub, metrics: metrics, logger: lgr}
}

// Recommend evaluates the retrain signals for one (model, horizon), records
// the signal and publishes positive recommendations downstream.
func (s *MonitorService) Recommend(ctx context.Context, name string, horizon domrepo.Horizon) (models.RetrainRecommendation, error) {
	key := modelKey(name, horizon)
	rec, err := s.monitor.Recommend(ctx, key, horizon)
	if err != nil {
		return models.RetrainRecommendation{}, err
	}

	if s.metrics != nil && rec.ShouldRetrain {
		s.metrics.RecordRetrainSignal(key, rec.Priority)
	}
	if rec.ShouldRetrain && s.recPub != nil {
		if perr := s.recPub.Publish(ctx, key, rec); perr != nil && s.logger != nil {
			s.logger.Warn("retrain recommendation publish failed",
				applogger.String("model", key),
				applogger.Error(perr),
			)
		}
	}

	if s.logger != nil {
		s.logger.Info("retrain signals evaluated",
			applogger.String("model", key),
			applogger.Bool("should_retrain", rec.ShouldRetrain),
			applogger.String("priority", rec.Priority),
			applogger.Int("new_samples", rec.NewSamples),
		)
	}
	return rec, nil
}

// Health builds the full health report for one (model, horizon) and exports
// the per-feature PSI gauges as a side effect.
func (s *MonitorService) Health(ctx context.Context, name string, horizon domrepo.Horizon) (models.HealthReport, error) {
	key := modelKey(name, horizon)
	report, err := s.monitor.HealthReport(ctx, key, horizon)
	if err != nil {
		return models.HealthReport{}, err
	}

	if s.metrics != nil {
		for feature, dr := range report.FeatureDrift {
			if dr.Classification == models.DriftInsufficientData {
				continue
			}
			s.metrics.RecordPSI(key, feature, dr.PSI)
		}
	}
	return report, nil
}

// Sweep evaluates retrain signals for one model name across every horizon.
// Per-horizon failures do not stop the sweep.
func (s *MonitorService) Sweep(ctx context.Context, name string) map[string]models.RetrainRecommendation {
	out := make(map[string]models.RetrainRecommendation, 3)
	for _, h := range domrepo.AllHorizons() {
		rec, err := s.Recommend(ctx, name, h)
		if err != nil {
			if s.logger != nil {
				s.logger.Error("monitor sweep failed for horizon",
					applogger.String("model", name),
					applogger.String("horizon", string(h)),
					applogger.Error(err),
				)
			}
			if s.metrics != nil {
				s.metrics.RecordError("monitor_sweep")
			}
			continue
		}
		out[string(h)] = rec
	}
	return out
}
