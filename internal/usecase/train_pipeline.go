package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/models"
	domrepo "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/repository"
	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/service/conformal"
	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/service/monitor"
	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/service/quantile"
	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/cache"
	applogger "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/logger"
)

// ErrTrainInProgress means another training run already holds the lock for
// the same (model, horizon).
var ErrTrainInProgress = errors.New("training already in progress")

// modelKey composes the registry name for one (model, horizon) pair. Each
// horizon is a separately trained and versioned model.
func modelKey(name string, h domrepo.Horizon) string {
	return name + ":" + string(h)
}

// releaseManifest ties one trained regressor bundle to its calibration state.
// The manifest's artifact ID is what the registry entry points at, so a
// single promotion atomically switches both.
type releaseManifest struct {
	Model         string    `json:"model"`
	Horizon       string    `json:"horizon"`
	Version       string    `json:"version"`
	BundleMetaID  string    `json:"bundle_meta_id"`
	CalibrationID string    `json:"calibration_id"`
	TrainedAt     time.Time `json:"trained_at"`
}

// TrainResult summarizes one completed training run.
type TrainResult struct {
	Model               string                    `json:"model"`
	Horizon             string                    `json:"horizon"`
	Version             string                    `json:"version"`
	Promoted            bool                      `json:"promoted"`
	NTrain              int                       `json:"n_train"`
	NCalibration        int                       `json:"n_calibration"`
	RawCoverage80       float64                   `json:"raw_coverage_80"`
	Coverage            models.CalibrationMetrics `json:"coverage"`
	DirectionalAccuracy float64                   `json:"directional_accuracy"`
	ReleaseArtifactID   string                    `json:"release_artifact_id"`
}

// TrainConfig carries the pipeline knobs taken from configuration.
type TrainConfig struct {
	FeatureVersion  string
	CoverageLevels  []float64
	DefaultCoverage float64
	MinTrainSamples int
	LockTTL         time.Duration
}

// TrainPipeline runs the full train -> calibrate -> register -> promote flow
// for one (model, horizon).
type TrainPipeline struct {
	outcomes  domrepo.OutcomeStore
	registry  domrepo.ModelRegistry
	artifacts domrepo.ArtifactStore
	calibPub  domrepo.Publisher
	locker    cache.Service
	metrics   domrepo.Metrics
	cfg       TrainConfig
	logger    *applogger.Logger
	now       func() time.Time
}

func NewTrainPipeline(
	outcomes domrepo.OutcomeStore,
	registry domrepo.ModelRegistry,
	artifacts domrepo.ArtifactStore,
	calibPub domrepo.Publisher,
	locker cache.Service,
	metrics domrepo.Metrics,
	cfg TrainConfig,
	lgr *applogger.Logger,
) *TrainPipeline {
	if cfg.DefaultCoverage <= 0 || cfg.DefaultCoverage >= 1 {
		cfg.DefaultCoverage = 0.8
	}
	if len(cfg.CoverageLevels) == 0 {
		cfg.CoverageLevels = []float64{0.8, 0.9}
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Minute
	}
	return &TrainPipeline{
		outcomes:  outcomes,
		registry:  registry,
		artifacts: artifacts,
		calibPub:  calibPub,
		locker:    locker,
		metrics:   metrics,
		cfg:       cfg,
		logger:    lgr,
		now:       time.Now,
	}
}

// Run executes one training run. Concurrent runs for the same (model,
// horizon) are rejected with ErrTrainInProgress; distinct pairs may train in
// parallel. The labeled set is consumed in label-date order: the leading 85%
// fits the regressor (which holds out its own trailing validation split) and
// the trailing 15% is reserved as a disjoint conformal calibration set.
func (p *TrainPipeline) Run(ctx context.Context, name string, horizon domrepo.Horizon) (*TrainResult, error) {
	key := modelKey(name, horizon)

	lockKey := cache.GenerateKey("train", key)
	locked, err := p.locker.TryLock(ctx, lockKey, p.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire train lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrTrainInProgress, key)
	}
	defer func() {
		if uerr := p.locker.Unlock(context.WithoutCancel(ctx), lockKey); uerr != nil && p.logger != nil {
			p.logger.Warn("train lock release failed", applogger.String("model", key), applogger.Error(uerr))
		}
	}()

	start := p.now()
	res, err := p.run(ctx, name, horizon, key)
	if p.metrics != nil {
		status := "success"
		if err != nil {
			status = "failure"
		}
		p.metrics.RecordJobRun("train", status)
		p.metrics.RecordLatency("train_pipeline", time.Since(start).Seconds())
	}
	return res, err
}

func (p *TrainPipeline) run(ctx context.Context, name string, horizon domrepo.Horizon, key string) (*TrainResult, error) {
	feats, actuals, err := p.outcomes.TrainingSet(ctx, horizon, p.cfg.FeatureVersion)
	if err != nil {
		return nil, fmt.Errorf("load training set: %w", err)
	}
	if len(feats) < p.cfg.MinTrainSamples {
		return nil, fmt.Errorf("insufficient training data for %s: %d labeled rows (min %d)",
			key, len(feats), p.cfg.MinTrainSamples)
	}

	// Time-ordered split; shuffling would leak future outcomes into training.
	nCal := len(feats) * 15 / 100
	if nCal < 1 {
		nCal = 1
	}
	nFit := len(feats) - nCal

	if p.logger != nil {
		p.logger.Info("training run started",
			applogger.String("model", key),
			applogger.Int("n_total", len(feats)),
			applogger.Int("n_fit", nFit),
			applogger.Int("n_calibration", nCal),
		)
	}

	reg := quantile.NewRegressor(horizon, p.logger)
	report, err := reg.Train(ctx, feats[:nFit], actuals[:nFit])
	if err != nil {
		return nil, fmt.Errorf("train %s: %w", key, err)
	}

	calFeats := make([]map[string]float64, nCal)
	for i, f := range feats[nFit:] {
		calFeats[i] = f.FeatureMap
	}
	calActuals := actuals[nFit:]

	calPreds, err := reg.PredictBatch(calFeats)
	if err != nil {
		return nil, fmt.Errorf("score calibration set: %w", err)
	}

	cal := conformal.NewCalibrator(horizon, p.logger, p.now)
	if err := cal.Calibrate(calPreds, calActuals, p.cfg.CoverageLevels); err != nil {
		return nil, fmt.Errorf("calibrate %s: %w", key, err)
	}

	intervals := make([]models.CalibratedInterval, len(calPreds))
	for i, pr := range calPreds {
		intervals[i] = cal.Apply(pr, p.cfg.DefaultCoverage)
	}
	coverage, err := cal.EvaluateCoverage(intervals, calActuals, p.cfg.DefaultCoverage)
	if err != nil {
		return nil, fmt.Errorf("evaluate coverage: %w", err)
	}
	if p.metrics != nil {
		p.metrics.RecordCoverage(string(horizon), coverage.CoverageLevel, coverage.EmpiricalCoverage)
	}
	p.publishCalibration(ctx, key, coverage)

	dirAcc := directionalAccuracy(calPreds, calActuals)

	// Nanosecond precision so two runs in the same second get distinct
	// versions.
	version := "v" + p.now().UTC().Format("20060102T150405.000000000")
	releaseID, err := p.saveRelease(ctx, name, horizon, version, reg, cal)
	if err != nil {
		return nil, err
	}

	entry := &models.ModelRegistryEntry{
		Name:       key,
		Version:    version,
		Status:     models.ModelStatusStaging,
		ArtifactID: releaseID,
		Metrics: map[string]float64{
			"directional_accuracy": dirAcc,
			"raw_coverage_80":      report.RawCoverage80,
			"empirical_coverage":   coverage.EmpiricalCoverage,
			"val_pinball_q50":      report.ValPinball["q50"],
			"n_train":              float64(report.NTrain),
			"n_calibration":        float64(nCal),
		},
		FeatureVersion: p.cfg.FeatureVersion,
		TrainedAt:      p.now().UTC(),
	}
	if err := p.registry.Register(ctx, entry); err != nil {
		return nil, err
	}

	promoted, err := p.maybePromote(ctx, key, version, dirAcc)
	if err != nil {
		return nil, err
	}

	if p.logger != nil {
		p.logger.Info("training run finished",
			applogger.String("model", key),
			applogger.String("version", version),
			applogger.Bool("promoted", promoted),
			applogger.Float64("directional_accuracy", dirAcc),
			applogger.Float64("empirical_coverage", coverage.EmpiricalCoverage),
		)
	}

	return &TrainResult{
		Model:               name,
		Horizon:             string(horizon),
		Version:             version,
		Promoted:            promoted,
		NTrain:              report.NTrain,
		NCalibration:        nCal,
		RawCoverage80:       report.RawCoverage80,
		Coverage:            coverage,
		DirectionalAccuracy: dirAcc,
		ReleaseArtifactID:   releaseID,
	}, nil
}

// saveRelease publishes the regressor bundle, the calibration state and the
// manifest pointing at both, returning the manifest's artifact ID.
func (p *TrainPipeline) saveRelease(ctx context.Context, name string, horizon domrepo.Horizon, version string, reg *quantile.Regressor, cal *conformal.Calibrator) (string, error) {
	bundleID, err := reg.Save(ctx, p.artifacts, version)
	if err != nil {
		return "", fmt.Errorf("save model bundle: %w", err)
	}
	calID, err := cal.Save(ctx, p.artifacts, version)
	if err != nil {
		return "", fmt.Errorf("save calibration state: %w", err)
	}

	manifest := releaseManifest{
		Model:         name,
		Horizon:       string(horizon),
		Version:       version,
		BundleMetaID:  bundleID,
		CalibrationID: calID,
		TrainedAt:     reg.TrainedAt(),
	}
	blob, err := json.Marshal(manifest)
	if err != nil {
		return "", fmt.Errorf("encode release manifest: %w", err)
	}
	id, err := p.artifacts.Publish(ctx, fmt.Sprintf("release_%s", horizon), version, blob)
	if err != nil {
		return "", fmt.Errorf("publish release manifest: %w", err)
	}
	return id, nil
}

// maybePromote activates the candidate when no active model exists or when
// the candidate's directional accuracy is at least the active one's. A worse
// candidate stays in staging.
func (p *TrainPipeline) maybePromote(ctx context.Context, key, version string, dirAcc float64) (bool, error) {
	active, err := p.registry.Active(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check active model: %w", err)
	}
	if active != nil && dirAcc < active.Metrics["directional_accuracy"] {
		if p.logger != nil {
			p.logger.Info("candidate kept in staging",
				applogger.String("model", key),
				applogger.String("version", version),
				applogger.Float64("candidate_accuracy", dirAcc),
				applogger.Float64("active_accuracy", active.Metrics["directional_accuracy"]),
			)
		}
		return false, nil
	}
	if err := p.registry.Promote(ctx, key, version, p.now().UTC()); err != nil {
		return false, err
	}
	return true, nil
}

func (p *TrainPipeline) publishCalibration(ctx context.Context, key string, m models.CalibrationMetrics) {
	if p.calibPub == nil {
		return
	}
	if err := p.calibPub.Publish(ctx, key, m); err != nil && p.logger != nil {
		p.logger.Warn("calibration metrics publish failed",
			applogger.String("model", key),
			applogger.Error(err),
		)
	}
}

// directionalAccuracy is the share of predictions whose median return moves
// the same way as the realized return, scored with the monitor's rule so
// promotion-time and monitored figures stay comparable.
func directionalAccuracy(preds []models.QuantilePrediction, actuals []float64) float64 {
	if len(preds) == 0 {
		return 0
	}
	hits := 0
	for i, p := range preds {
		if monitor.SameDirection(p.Median, actuals[i]) {
			hits++
		}
	}
	return float64(hits) / float64(len(preds))
}
