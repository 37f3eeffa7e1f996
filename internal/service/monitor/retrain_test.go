package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/models"
	domrepo "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/repository"
)

type fakeRegistry struct {
	active *models.ModelRegistryEntry
	err    error
}

func (f *fakeRegistry) Register(context.Context, *models.ModelRegistryEntry) error { return nil }
func (f *fakeRegistry) Promote(context.Context, string, string, time.Time) error { return nil }
func (f *fakeRegistry) Active(context.Context, string) (*models.ModelRegistryEntry, error) {
	return f.active, f.err
}

type fakeOutcomes struct {
	newSamples int
	countErr   error
	baseline   []float64
	current    []float64
	windowErr  error
}

func (f *fakeOutcomes) Store(context.Context, *models.EventOutcome) error { return nil }
func (f *fakeOutcomes) StoreFeatures(context.Context, []models.ModelFeature) error {
	return nil
}
func (f *fakeOutcomes) TrainingSet(context.Context, domrepo.Horizon, string) ([]models.ModelFeature, []float64, error) {
	return nil, nil, nil
}
func (f *fakeOutcomes) CountLabeledSince(context.Context, domrepo.Horizon, time.Time) (int, error) {
	return f.newSamples, f.countErr
}
func (f *fakeOutcomes) FeatureWindow(context.Context, string, domrepo.Horizon, time.Time) ([]float64, []float64, error) {
	return f.baseline, f.current, f.windowErr
}

type fakePredictions struct {
	pairs []models.PredictionOutcome
	err   error
}

func (f *fakePredictions) Store(context.Context, []models.PredictionRecord) error { return nil }
func (f *fakePredictions) JoinOutcomes(context.Context, string, domrepo.Horizon, time.Time) ([]models.PredictionOutcome, error) {
	return f.pairs, f.err
}

func testThresholds() Thresholds {
	return Thresholds{
		MaxModelAgeDays: 30,
		MinNewSamples:   200,
		MaxAccuracyDrop: 0.05,
		AccuracyWindow:  30 * 24 * time.Hour,
		PSIBins:         10,
		KeyFeatures:     []string{"base_score"},
		DriftWindow:     30 * 24 * time.Hour,
	}
}

func fixedClock() func() time.Time {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func activeEntry(trainedDaysAgo int, promotedAccuracy float64) *models.ModelRegistryEntry {
	now := fixedClock()()
	return &models.ModelRegistryEntry{
		Name:      "impact:1d",
		Version:   "v1",
		Status:    models.ModelStatusActive,
		Metrics:   map[string]float64{"directional_accuracy": promotedAccuracy},
		TrainedAt: now.AddDate(0, 0, -trainedDaysAgo),
	}
}

// goodPairs yields pairs whose directional accuracy is acc (out of 100).
func goodPairs(acc float64) []models.PredictionOutcome {
	pairs := make([]models.PredictionOutcome, 100)
	hits := int(acc * 100)
	for i := range pairs {
		if i < hits {
			pairs[i] = models.PredictionOutcome{Predicted: 1, Actual: 1}
		} else {
			pairs[i] = models.PredictionOutcome{Predicted: 1, Actual: -1}
		}
	}
	return pairs
}

func TestRecommendNoActiveModel(t *testing.T) {
	m := New(&fakeRegistry{}, &fakeOutcomes{}, &fakePredictions{}, testThresholds(), nil, fixedClock())

	rec, err := m.Recommend(context.Background(), "impact:1d", domrepo.H1D)
	require.NoError(t, err)
	assert.True(t, rec.ShouldRetrain)
	assert.Equal(t, models.PriorityHigh, rec.Priority)
	assert.Contains(t, rec.Reasons[0], "no active model")
}

func TestRecommendRegistryErrorPropagates(t *testing.T) {
	m := New(&fakeRegistry{err: errors.New("boom")}, &fakeOutcomes{}, &fakePredictions{}, testThresholds(), nil, fixedClock())

	_, err := m.Recommend(context.Background(), "impact:1d", domrepo.H1D)
	assert.Error(t, err)
}

func TestRecommendHealthyModel(t *testing.T) {
	m := New(
		&fakeRegistry{active: activeEntry(5, 0.6)},
		&fakeOutcomes{newSamples: 50},
		&fakePredictions{pairs: goodPairs(0.6)},
		testThresholds(), nil, fixedClock(),
	)

	rec, err := m.Recommend(context.Background(), "impact:1d", domrepo.H1D)
	require.NoError(t, err)
	assert.False(t, rec.ShouldRetrain)
	assert.Equal(t, models.PriorityLow, rec.Priority)
	assert.Equal(t, 5, rec.DaysSinceTrained)
	assert.Equal(t, 50, rec.NewSamples)
}

func TestRecommendStaleModel(t *testing.T) {
	m := New(
		&fakeRegistry{active: activeEntry(45, 0.6)},
		&fakeOutcomes{newSamples: 0},
		&fakePredictions{pairs: goodPairs(0.6)},
		testThresholds(), nil, fixedClock(),
	)

	rec, err := m.Recommend(context.Background(), "impact:1d", domrepo.H1D)
	require.NoError(t, err)
	assert.True(t, rec.ShouldRetrain)
	assert.Equal(t, models.PriorityMedium, rec.Priority)
}

func TestRecommendDoubledDataEscalates(t *testing.T) {
	m := New(
		&fakeRegistry{active: activeEntry(5, 0.6)},
		&fakeOutcomes{newSamples: 401}, // > 2x MinNewSamples
		&fakePredictions{pairs: goodPairs(0.6)},
		testThresholds(), nil, fixedClock(),
	)

	rec, err := m.Recommend(context.Background(), "impact:1d", domrepo.H1D)
	require.NoError(t, err)
	assert.True(t, rec.ShouldRetrain)
	assert.Equal(t, models.PriorityHigh, rec.Priority)
}

func TestRecommendAccuracyDrop(t *testing.T) {
	m := New(
		&fakeRegistry{active: activeEntry(5, 0.70)},
		&fakeOutcomes{newSamples: 0},
		&fakePredictions{pairs: goodPairs(0.55)},
		testThresholds(), nil, fixedClock(),
	)

	rec, err := m.Recommend(context.Background(), "impact:1d", domrepo.H1D)
	require.NoError(t, err)
	assert.True(t, rec.ShouldRetrain)
	assert.Equal(t, models.PriorityHigh, rec.Priority)
	assert.InDelta(t, 0.55, rec.RecentAccuracy, 1e-12)
}

func TestRecommendAdvisoryGapsDegrade(t *testing.T) {
	// Count and join both fail: the recommendation still comes back and
	// leans on staleness alone.
	m := New(
		&fakeRegistry{active: activeEntry(5, 0.6)},
		&fakeOutcomes{countErr: errors.New("count down")},
		&fakePredictions{err: errors.New("join down")},
		testThresholds(), nil, fixedClock(),
	)

	rec, err := m.Recommend(context.Background(), "impact:1d", domrepo.H1D)
	require.NoError(t, err)
	assert.False(t, rec.ShouldRetrain)
	assert.Equal(t, 0, rec.NewSamples)
}

func TestHealthReportStatuses(t *testing.T) {
	baseline := normalSample(500, 0, 1, 3)

	cases := []struct {
		name    string
		current []float64
		trained int
		want    string
	}{
		{"healthy", normalSample(500, 0, 1, 5), 5, models.HealthHealthy},
		{"stale drifts to monitoring", normalSample(500, 0, 1, 5), 45, models.HealthMonitoring},
		{"significant drift", normalSample(500, 3, 1, 5), 5, models.HealthNeedsAttention},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := New(
				&fakeRegistry{active: activeEntry(tc.trained, 0.6)},
				&fakeOutcomes{newSamples: 0, baseline: baseline, current: tc.current},
				&fakePredictions{pairs: goodPairs(0.6)},
				testThresholds(), nil, fixedClock(),
			)
			report, err := m.HealthReport(context.Background(), "impact:1d", domrepo.H1D)
			require.NoError(t, err)
			assert.Equal(t, tc.want, report.Status)
			assert.Equal(t, "v1", report.Version)
			assert.Contains(t, report.FeatureDrift, "base_score")
		})
	}
}

func TestHealthReportFeatureWindowFailure(t *testing.T) {
	m := New(
		&fakeRegistry{active: activeEntry(5, 0.6)},
		&fakeOutcomes{windowErr: errors.New("window down")},
		&fakePredictions{pairs: goodPairs(0.6)},
		testThresholds(), nil, fixedClock(),
	)
	report, err := m.HealthReport(context.Background(), "impact:1d", domrepo.H1D)
	require.NoError(t, err)
	assert.Equal(t, models.DriftInsufficientData, report.FeatureDrift["base_score"].Classification)
}
