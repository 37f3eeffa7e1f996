package conformal

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/models"
	domrepo "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/repository"
)

type memArtifacts struct {
	blobs map[string][]byte
	seq   int
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{blobs: make(map[string][]byte)}
}

func (m *memArtifacts) Publish(_ context.Context, kind, version string, blob []byte) (string, error) {
	m.seq++
	id := fmt.Sprintf("%s_%s_%d", kind, version, m.seq)
	cp := make([]byte, len(blob))
	copy(cp, blob)
	m.blobs[id] = cp
	return id, nil
}

func (m *memArtifacts) Load(_ context.Context, id string) ([]byte, error) {
	blob, ok := m.blobs[id]
	if !ok {
		return nil, fmt.Errorf("artifact %s not found", id)
	}
	return blob, nil
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

// intervalSet builds preds with the raw interval [-1, 1] and actuals whose
// nonconformity scores are 1, 2, ..., n (actual = upper + score).
func intervalSet(n int) ([]models.QuantilePrediction, []float64) {
	preds := make([]models.QuantilePrediction, n)
	actuals := make([]float64, n)
	for i := 0; i < n; i++ {
		preds[i] = models.QuantilePrediction{Lower: -1, Median: 0, Upper: 1}
		actuals[i] = 1 + float64(i+1)
	}
	return preds, actuals
}

func TestCalibrateRankSelection(t *testing.T) {
	// 99 scores 1..99 at level 0.9: rank ceil(100*0.9) = 90 -> adjustment 90.
	preds, actuals := intervalSet(99)
	c := NewCalibrator(domrepo.H1D, nil, fixedNow)
	require.NoError(t, c.Calibrate(preds, actuals, []float64{0.9}))

	iv := c.Apply(models.QuantilePrediction{Lower: -1, Median: 0, Upper: 1}, 0.9)
	assert.InDelta(t, 90.0, iv.CalibrationAdjustment, 1e-12)
	assert.InDelta(t, -91.0, iv.Lower, 1e-12)
	assert.InDelta(t, 91.0, iv.Upper, 1e-12)
	assert.InDelta(t, 0.0, iv.Median, 1e-12)
}

func TestCalibrateRankCappedAtN(t *testing.T) {
	// 5 scores at level 0.95: ceil(6*0.95) = 6 > 5, capped to the maximum.
	preds, actuals := intervalSet(5)
	c := NewCalibrator(domrepo.H1D, nil, fixedNow)
	require.NoError(t, c.Calibrate(preds, actuals, []float64{0.95}))

	iv := c.Apply(models.QuantilePrediction{Lower: -1, Median: 0, Upper: 1}, 0.95)
	assert.InDelta(t, 5.0, iv.CalibrationAdjustment, 1e-12)
}

func TestCalibrateValidation(t *testing.T) {
	c := NewCalibrator(domrepo.H1D, nil, fixedNow)
	preds, actuals := intervalSet(10)

	assert.Error(t, c.Calibrate(preds, actuals[:5], []float64{0.8}))
	assert.Error(t, c.Calibrate(nil, nil, []float64{0.8}))
}

func TestNonconformityInsideIsNonPositive(t *testing.T) {
	p := models.QuantilePrediction{Lower: -1, Upper: 1}
	assert.LessOrEqual(t, nonconformity(p, 0.5), 0.0)
	assert.InDelta(t, 2.0, nonconformity(p, 3.0), 1e-12)
	assert.InDelta(t, 1.5, nonconformity(p, -2.5), 1e-12)
}

func TestApplyUncalibratedReturnsRaw(t *testing.T) {
	c := NewCalibrator(domrepo.H1D, nil, fixedNow)
	iv := c.Apply(models.QuantilePrediction{Lower: -2, Median: 0.3, Upper: 2}, 0.8)
	assert.InDelta(t, 0.0, iv.CalibrationAdjustment, 1e-12)
	assert.InDelta(t, -2.0, iv.Lower, 1e-12)
	assert.InDelta(t, 2.0, iv.Upper, 1e-12)
}

func TestApplyFallsBackToClosestLevel(t *testing.T) {
	preds, actuals := intervalSet(50)
	c := NewCalibrator(domrepo.H1D, nil, fixedNow)
	require.NoError(t, c.Calibrate(preds, actuals, []float64{0.8, 0.9}))

	want := c.Apply(models.QuantilePrediction{Lower: -1, Upper: 1}, 0.9)
	got := c.Apply(models.QuantilePrediction{Lower: -1, Upper: 1}, 0.93)
	assert.InDelta(t, want.CalibrationAdjustment, got.CalibrationAdjustment, 1e-12)
}

func TestEvaluateCoverage(t *testing.T) {
	c := NewCalibrator(domrepo.H1D, nil, fixedNow)
	intervals := []models.CalibratedInterval{
		{Lower: -1, Upper: 1},
		{Lower: -1, Upper: 1},
		{Lower: -1, Upper: 1},
		{Lower: -1, Upper: 1},
	}
	actuals := []float64{0, 0.5, -2, 0.9} // 3 of 4 inside

	m, err := c.EvaluateCoverage(intervals, actuals, 0.8)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, m.EmpiricalCoverage, 1e-12)
	assert.InDelta(t, -0.05, m.CoverageError, 1e-12)
	assert.Equal(t, 4, m.SampleSize)
	assert.Equal(t, fixedNow().UTC(), m.EvaluatedAt)

	_, err = c.EvaluateCoverage(nil, nil, 0.8)
	assert.Error(t, err)
}

func TestCoverageHistoryCap(t *testing.T) {
	c := NewCalibrator(domrepo.H1D, nil, fixedNow)
	intervals := []models.CalibratedInterval{{Lower: -1, Upper: 1}}
	for i := 0; i < historyCap+25; i++ {
		_, err := c.EvaluateCoverage(intervals, []float64{0}, 0.8)
		require.NoError(t, err)
	}
	assert.Len(t, c.State().CoverageHistory, historyCap)
}

func TestCalibrationQualityChecks(t *testing.T) {
	c := NewCalibrator(domrepo.H1D, nil, fixedNow)

	// No history: well calibrated by definition, no recalibration needed.
	assert.True(t, c.IsWellCalibrated(0.05))
	assert.False(t, c.NeedsRecalibration(0.05))

	// Systematic under-coverage: each evaluation misses the nominal level.
	intervals := []models.CalibratedInterval{
		{Lower: -1, Upper: 1},
		{Lower: -1, Upper: 1},
	}
	for i := 0; i < 10; i++ {
		_, err := c.EvaluateCoverage(intervals, []float64{0, 5}, 0.9) // 0.5 empirical
		require.NoError(t, err)
	}
	assert.False(t, c.IsWellCalibrated(0.05))
	assert.True(t, c.NeedsRecalibration(0.05))
}

func TestStateSaveLoadRoundtrip(t *testing.T) {
	preds, actuals := intervalSet(40)
	c := NewCalibrator(domrepo.H20D, nil, fixedNow)
	require.NoError(t, c.Calibrate(preds, actuals, []float64{0.8, 0.9}))

	store := newMemArtifacts()
	id, err := c.Save(context.Background(), store, "v2")
	require.NoError(t, err)

	loaded, err := LoadState(context.Background(), store, id, nil)
	require.NoError(t, err)

	raw := models.QuantilePrediction{Lower: -1, Median: 0.1, Upper: 1}
	want := c.Apply(raw, 0.8)
	got := loaded.Apply(raw, 0.8)
	assert.InDelta(t, want.CalibrationAdjustment, got.CalibrationAdjustment, 1e-12)
	assert.Equal(t, c.State().NCalibrationSamples, loaded.State().NCalibrationSamples)
	assert.Equal(t, "v2", loaded.State().Version)
}
