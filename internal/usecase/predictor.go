package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/models"
	domrepo "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/repository"
	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/service/conformal"
	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/service/quantile"
	applogger "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/logger"
)

// ErrNoActiveModel means no promoted model exists for the requested
// (model, horizon).
var ErrNoActiveModel = errors.New("no active model")

// loadedModel is one deserialized release held in the serving cache.
type loadedModel struct {
	version    string
	regressor  *quantile.Regressor
	calibrator *conformal.Calibrator
}

// ScoringService serves calibrated interval predictions from the active
// release of each (model, horizon). Loaded releases are cached and swapped
// out only when the registry's active version changes, so a promotion takes
// effect on the next request without a restart.
type ScoringService struct {
	registry    domrepo.ModelRegistry
	artifacts   domrepo.ArtifactStore
	predictions domrepo.PredictionStore
	metrics     domrepo.Metrics
	logger      *applogger.Logger
	now         func() time.Time

	mu     sync.RWMutex
	loaded map[string]*loadedModel
}

func NewScoringService(
	registry domrepo.ModelRegistry,
	artifacts domrepo.ArtifactStore,
	predictions domrepo.PredictionStore,
	metrics domrepo.Metrics,
	lgr *applogger.Logger,
) *ScoringService {
	return &ScoringService{
		registry:    registry,
		artifacts:   artifacts,
		predictions: predictions,
		metrics:     metrics,
		logger:      lgr,
		now:         time.Now,
		loaded:      make(map[string]*loadedModel),
	}
}

// Predict scores a batch of events with the active release. Results preserve
// request order. When req.Persist is set, median predictions are stored so
// the monitor can later join them to realized outcomes.
func (s *ScoringService) Predict(ctx context.Context, req *models.PredictRequest) ([]models.PredictResult, error) {
	horizon := domrepo.NormalizeHorizon(req.Horizon)
	key := modelKey(req.Model, horizon)

	lm, err := s.activeModel(ctx, key)
	if err != nil {
		return nil, err
	}

	featMaps := make([]map[string]float64, len(req.Events))
	for i, ev := range req.Events {
		featMaps[i] = ev.Features
	}
	raws, err := lm.regressor.PredictBatch(featMaps)
	if err != nil {
		return nil, fmt.Errorf("predict %s: %w", key, err)
	}

	results := make([]models.PredictResult, len(raws))
	records := make([]models.PredictionRecord, 0, len(raws))
	createdAt := s.now().UTC()
	for i, raw := range raws {
		results[i] = models.PredictResult{
			EventID:    req.Events[i].EventID,
			Raw:        raw,
			Calibrated: lm.calibrator.Apply(raw, req.CoverageLevel),
		}
		if req.Persist {
			records = append(records, models.PredictionRecord{
				EventID:         req.Events[i].EventID,
				Model:           key,
				Horizon:         string(horizon),
				PredictedReturn: raw.Median,
				CreatedAt:       createdAt,
			})
		}
		if s.metrics != nil {
			s.metrics.RecordPrediction(key, string(horizon))
		}
	}

	if len(records) > 0 {
		if err := s.predictions.Store(ctx, records); err != nil {
			// Serving result is still valid; losing the audit row only
			// degrades later accuracy monitoring.
			if s.logger != nil {
				s.logger.Warn("prediction persistence failed",
					applogger.String("model", key),
					applogger.Int("records", len(records)),
					applogger.Error(err),
				)
			}
			if s.metrics != nil {
				s.metrics.RecordError("prediction_store")
			}
		}
	}
	return results, nil
}

// Invalidate drops the cached release for (model, horizon), forcing a
// registry lookup on the next request.
func (s *ScoringService) Invalidate(name string, horizon domrepo.Horizon) {
	s.mu.Lock()
	delete(s.loaded, modelKey(name, horizon))
	s.mu.Unlock()
}

// activeModel returns the cached release for key, reloading when the
// registry's active version moved past the cached one.
func (s *ScoringService) activeModel(ctx context.Context, key string) (*loadedModel, error) {
	entry, err := s.registry.Active(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("active model %s: %w", key, err)
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoActiveModel, key)
	}

	s.mu.RLock()
	lm, ok := s.loaded[key]
	s.mu.RUnlock()
	if ok && lm.version == entry.Version {
		return lm, nil
	}

	lm, err = s.loadRelease(ctx, entry)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.loaded[key] = lm
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Info("model release loaded",
			applogger.String("model", key),
			applogger.String("version", entry.Version),
		)
	}
	return lm, nil
}

func (s *ScoringService) loadRelease(ctx context.Context, entry *models.ModelRegistryEntry) (*loadedModel, error) {
	blob, err := s.artifacts.Load(ctx, entry.ArtifactID)
	if err != nil {
		return nil, fmt.Errorf("load release %s: %w", entry.ArtifactID, err)
	}
	var manifest releaseManifest
	if err := json.Unmarshal(blob, &manifest); err != nil {
		return nil, fmt.Errorf("decode release %s: %w", entry.ArtifactID, err)
	}

	reg, err := quantile.LoadBundle(ctx, s.artifacts, manifest.BundleMetaID)
	if err != nil {
		return nil, fmt.Errorf("release %s: %w", entry.Version, err)
	}
	cal, err := conformal.LoadState(ctx, s.artifacts, manifest.CalibrationID, s.logger)
	if err != nil {
		return nil, fmt.Errorf("release %s: %w", entry.Version, err)
	}
	return &loadedModel{
		version:    entry.Version,
		regressor:  reg,
		calibrator: cal,
	}, nil
}
