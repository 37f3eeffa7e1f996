package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/models"
	domrepo "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/repository"
	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/cache"
)

type fakeOutcomeStore struct {
	feats        []models.ModelFeature
	actuals      []float64
	stored       []*models.EventOutcome
	storedFeats  []models.ModelFeature
	featStoreErr error
}

func (f *fakeOutcomeStore) Store(_ context.Context, o *models.EventOutcome) error {
	f.stored = append(f.stored, o)
	return nil
}

func (f *fakeOutcomeStore) StoreFeatures(_ context.Context, feats []models.ModelFeature) error {
	if f.featStoreErr != nil {
		return f.featStoreErr
	}
	f.storedFeats = append(f.storedFeats, feats...)
	return nil
}

func (f *fakeOutcomeStore) TrainingSet(context.Context, domrepo.Horizon, string) ([]models.ModelFeature, []float64, error) {
	return f.feats, f.actuals, nil
}

func (f *fakeOutcomeStore) CountLabeledSince(context.Context, domrepo.Horizon, time.Time) (int, error) {
	return 0, nil
}

func (f *fakeOutcomeStore) FeatureWindow(context.Context, string, domrepo.Horizon, time.Time) ([]float64, []float64, error) {
	return nil, nil, nil
}

type fakeModelRegistry struct {
	entries  []*models.ModelRegistryEntry
	active   *models.ModelRegistryEntry
	promoted []string
}

func (f *fakeModelRegistry) Register(_ context.Context, e *models.ModelRegistryEntry) error {
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeModelRegistry) Promote(_ context.Context, name, version string, at time.Time) error {
	f.promoted = append(f.promoted, name+"@"+version)
	for _, e := range f.entries {
		if e.Name == name && e.Version == version {
			e.Status = models.ModelStatusActive
			e.PromotedAt = &at
			f.active = e
		}
	}
	return nil
}

func (f *fakeModelRegistry) Active(context.Context, string) (*models.ModelRegistryEntry, error) {
	return f.active, nil
}

type memArtifactStore struct {
	blobs map[string][]byte
	seq   int
}

func newMemArtifactStore() *memArtifactStore {
	return &memArtifactStore{blobs: make(map[string][]byte)}
}

func (m *memArtifactStore) Publish(_ context.Context, kind, version string, blob []byte) (string, error) {
	m.seq++
	id := fmt.Sprintf("%s_%s_%d", kind, version, m.seq)
	cp := make([]byte, len(blob))
	copy(cp, blob)
	m.blobs[id] = cp
	return id, nil
}

func (m *memArtifactStore) Load(_ context.Context, id string) ([]byte, error) {
	blob, ok := m.blobs[id]
	if !ok {
		return nil, fmt.Errorf("artifact %s not found", id)
	}
	return blob, nil
}

type fakePublisher struct {
	keys []string
}

func (f *fakePublisher) Publish(_ context.Context, key string, _ interface{}) error {
	f.keys = append(f.keys, key)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func labeledSet(n int) ([]models.ModelFeature, []float64) {
	rng := rand.New(rand.NewSource(99))
	feats := make([]models.ModelFeature, n)
	ys := make([]float64, n)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		x := rng.Float64()*4 - 2
		feats[i] = models.ModelFeature{
			EventID:     fmt.Sprintf("e%d", i),
			Horizon:     "1d",
			FeatureMap:  map[string]float64{"base_score": x, "market_vol": rng.Float64()},
			ExtractedAt: base.AddDate(0, 0, i),
		}
		ys[i] = 2*x + rng.NormFloat64()*0.5
	}
	return feats, ys
}

func newTestPipeline(outcomes *fakeOutcomeStore, registry *fakeModelRegistry, artifacts *memArtifactStore, pub *fakePublisher) *TrainPipeline {
	return NewTrainPipeline(outcomes, registry, artifacts, pub, cache.NewMemoryCache(), nil, TrainConfig{
		FeatureVersion:  "v1",
		CoverageLevels:  []float64{0.8, 0.9},
		DefaultCoverage: 0.8,
		MinTrainSamples: 50,
		LockTTL:         time.Minute,
	}, nil)
}

func TestTrainPipelineRun(t *testing.T) {
	feats, ys := labeledSet(200)
	outcomes := &fakeOutcomeStore{feats: feats, actuals: ys}
	registry := &fakeModelRegistry{}
	artifacts := newMemArtifactStore()
	pub := &fakePublisher{}

	p := newTestPipeline(outcomes, registry, artifacts, pub)
	res, err := p.Run(context.Background(), "impact", domrepo.H1D)
	require.NoError(t, err)

	assert.Equal(t, "impact", res.Model)
	assert.Equal(t, "1d", res.Horizon)
	assert.NotEmpty(t, res.Version)
	assert.Equal(t, 30, res.NCalibration) // 15% of 200
	assert.True(t, res.Promoted)          // first model always activates

	// Registry got one staging entry and one promotion.
	require.Len(t, registry.entries, 1)
	entry := registry.entries[0]
	assert.Equal(t, "impact:1d", entry.Name)
	assert.Equal(t, res.Version, entry.Version)
	assert.Contains(t, entry.Metrics, "directional_accuracy")
	assert.Contains(t, entry.Metrics, "empirical_coverage")
	require.Len(t, registry.promoted, 1)

	// The registered artifact is a release manifest pointing at loadable
	// bundle and calibration artifacts.
	blob, err := artifacts.Load(context.Background(), entry.ArtifactID)
	require.NoError(t, err)
	var manifest releaseManifest
	require.NoError(t, json.Unmarshal(blob, &manifest))
	assert.Equal(t, res.Version, manifest.Version)
	_, err = artifacts.Load(context.Background(), manifest.BundleMetaID)
	assert.NoError(t, err)
	_, err = artifacts.Load(context.Background(), manifest.CalibrationID)
	assert.NoError(t, err)

	// Calibration metrics were published for the model key.
	assert.Contains(t, pub.keys, "impact:1d")
}

func TestTrainPipelineInsufficientData(t *testing.T) {
	feats, ys := labeledSet(20)
	outcomes := &fakeOutcomeStore{feats: feats, actuals: ys}
	p := newTestPipeline(outcomes, &fakeModelRegistry{}, newMemArtifactStore(), &fakePublisher{})

	_, err := p.Run(context.Background(), "impact", domrepo.H1D)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient training data")
}

func TestTrainPipelineLockContention(t *testing.T) {
	feats, ys := labeledSet(200)
	outcomes := &fakeOutcomeStore{feats: feats, actuals: ys}
	locker := cache.NewMemoryCache()
	p := NewTrainPipeline(outcomes, &fakeModelRegistry{}, newMemArtifactStore(), nil, locker, nil, TrainConfig{
		FeatureVersion:  "v1",
		MinTrainSamples: 50,
	}, nil)

	// Simulate a concurrent run holding the lock.
	locked, err := locker.TryLock(context.Background(), cache.GenerateKey("train", "impact:1d"), time.Minute)
	require.NoError(t, err)
	require.True(t, locked)

	_, err = p.Run(context.Background(), "impact", domrepo.H1D)
	assert.ErrorIs(t, err, ErrTrainInProgress)

	// A different horizon is not blocked by the 1d lock.
	_, err = p.Run(context.Background(), "impact", domrepo.H5D)
	assert.NoError(t, err)
}

func TestTrainPipelineWorseCandidateStaysStaging(t *testing.T) {
	feats, ys := labeledSet(200)
	outcomes := &fakeOutcomeStore{feats: feats, actuals: ys}
	registry := &fakeModelRegistry{
		active: &models.ModelRegistryEntry{
			Name:    "impact:1d",
			Version: "v0",
			Status:  models.ModelStatusActive,
			Metrics: map[string]float64{"directional_accuracy": 1.01}, // unbeatable
		},
	}
	p := newTestPipeline(outcomes, registry, newMemArtifactStore(), &fakePublisher{})

	res, err := p.Run(context.Background(), "impact", domrepo.H1D)
	require.NoError(t, err)
	assert.False(t, res.Promoted)
	assert.Empty(t, registry.promoted)
	require.Len(t, registry.entries, 1)
	assert.Equal(t, models.ModelStatusStaging, registry.entries[0].Status)
}

func TestDirectionalAccuracy(t *testing.T) {
	preds := []models.QuantilePrediction{
		{Median: 1}, {Median: -1}, {Median: 2}, {Median: 0},
	}
	actuals := []float64{0.5, -0.5, -3, 0}
	// matches: +/+, -/-, miss, 0/0
	assert.InDelta(t, 0.75, directionalAccuracy(preds, actuals), 1e-12)
	assert.InDelta(t, 0.0, directionalAccuracy(nil, nil), 1e-12)
}
