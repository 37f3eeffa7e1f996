package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/models"
	domrepo "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/repository"
)

type fakePredictionStore struct {
	records []models.PredictionRecord
	err     error
}

func (f *fakePredictionStore) Store(_ context.Context, recs []models.PredictionRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, recs...)
	return nil
}

func (f *fakePredictionStore) JoinOutcomes(context.Context, string, domrepo.Horizon, time.Time) ([]models.PredictionOutcome, error) {
	return nil, nil
}

// trainRelease runs the pipeline once so the registry holds a loadable
// active release.
func trainRelease(t *testing.T, registry *fakeModelRegistry, artifacts *memArtifactStore) {
	t.Helper()
	feats, ys := labeledSet(200)
	p := newTestPipeline(&fakeOutcomeStore{feats: feats, actuals: ys}, registry, artifacts, &fakePublisher{})
	res, err := p.Run(context.Background(), "impact", domrepo.H1D)
	require.NoError(t, err)
	require.True(t, res.Promoted)
}

func TestPredictNoActiveModel(t *testing.T) {
	s := NewScoringService(&fakeModelRegistry{}, newMemArtifactStore(), &fakePredictionStore{}, nil, nil)

	_, err := s.Predict(context.Background(), &models.PredictRequest{
		Model:         "impact",
		Horizon:       "1d",
		CoverageLevel: 0.8,
		Events:        []models.PredictEvent{{EventID: "e1", Features: map[string]float64{}}},
	})
	assert.ErrorIs(t, err, ErrNoActiveModel)
}

func TestPredictServesActiveRelease(t *testing.T) {
	registry := &fakeModelRegistry{}
	artifacts := newMemArtifactStore()
	trainRelease(t, registry, artifacts)

	preds := &fakePredictionStore{}
	s := NewScoringService(registry, artifacts, preds, nil, nil)

	res, err := s.Predict(context.Background(), &models.PredictRequest{
		Model:         "impact",
		Horizon:       "1d",
		CoverageLevel: 0.8,
		Persist:       true,
		Events: []models.PredictEvent{
			{EventID: "e1", Features: map[string]float64{"base_score": 1.5, "market_vol": 0.4}},
			{EventID: "e2", Features: map[string]float64{"base_score": -1.5, "market_vol": 0.4}},
		},
	})
	require.NoError(t, err)
	require.Len(t, res, 2)

	assert.Equal(t, "e1", res[0].EventID)
	assert.Equal(t, "e2", res[1].EventID)
	// Calibrated intervals contain the raw interval.
	for _, r := range res {
		assert.LessOrEqual(t, r.Calibrated.Lower, r.Raw.Lower)
		assert.GreaterOrEqual(t, r.Calibrated.Upper, r.Raw.Upper)
		assert.InDelta(t, r.Raw.Median, r.Calibrated.Median, 1e-12)
		assert.InDelta(t, 0.8, r.Calibrated.CoverageLevel, 1e-12)
	}
	// The positive-score event should predict a higher median.
	assert.Greater(t, res[0].Raw.Median, res[1].Raw.Median)

	// Persisted one record per event under the composite model key.
	require.Len(t, preds.records, 2)
	assert.Equal(t, "impact:1d", preds.records[0].Model)
	assert.Equal(t, "1d", preds.records[0].Horizon)
	assert.InDelta(t, res[0].Raw.Median, preds.records[0].PredictedReturn, 1e-12)
}

func TestPredictWithoutPersist(t *testing.T) {
	registry := &fakeModelRegistry{}
	artifacts := newMemArtifactStore()
	trainRelease(t, registry, artifacts)

	preds := &fakePredictionStore{}
	s := NewScoringService(registry, artifacts, preds, nil, nil)

	_, err := s.Predict(context.Background(), &models.PredictRequest{
		Model:         "impact",
		Horizon:       "1d",
		CoverageLevel: 0.8,
		Persist:       false,
		Events:        []models.PredictEvent{{EventID: "e1", Features: map[string]float64{}}},
	})
	require.NoError(t, err)
	assert.Empty(t, preds.records)
}

func TestPredictReloadsOnPromotion(t *testing.T) {
	registry := &fakeModelRegistry{}
	artifacts := newMemArtifactStore()
	trainRelease(t, registry, artifacts)

	s := NewScoringService(registry, artifacts, &fakePredictionStore{}, nil, nil)
	req := &models.PredictRequest{
		Model:         "impact",
		Horizon:       "1d",
		CoverageLevel: 0.8,
		Events:        []models.PredictEvent{{EventID: "e1", Features: map[string]float64{"base_score": 1}}},
	}

	_, err := s.Predict(context.Background(), req)
	require.NoError(t, err)
	firstVersion := registry.active.Version

	// A second training run promotes a new version; serving must pick it
	// up without a restart.
	trainRelease(t, registry, artifacts)
	require.NotEqual(t, firstVersion, registry.active.Version)

	_, err = s.Predict(context.Background(), req)
	require.NoError(t, err)

	s.mu.RLock()
	lm := s.loaded["impact:1d"]
	s.mu.RUnlock()
	require.NotNil(t, lm)
	assert.Equal(t, registry.active.Version, lm.version)
}

func TestPredictStoreFailureDoesNotFailServing(t *testing.T) {
	registry := &fakeModelRegistry{}
	artifacts := newMemArtifactStore()
	trainRelease(t, registry, artifacts)

	preds := &fakePredictionStore{err: assert.AnError}
	s := NewScoringService(registry, artifacts, preds, nil, nil)

	res, err := s.Predict(context.Background(), &models.PredictRequest{
		Model:         "impact",
		Horizon:       "1d",
		CoverageLevel: 0.8,
		Persist:       true,
		Events:        []models.PredictEvent{{EventID: "e1", Features: map[string]float64{}}},
	})
	require.NoError(t, err)
	assert.Len(t, res, 1)
}