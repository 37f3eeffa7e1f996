package monitor

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/models"
)

func normalSample(n int, mean, std float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = mean + std*rng.NormFloat64()
	}
	return out
}

func TestComputePSIIdenticalSamples(t *testing.T) {
	sample := normalSample(500, 0, 1, 7)
	report := ComputePSI("base_score", sample, sample, 10)
	assert.Equal(t, models.DriftStable, report.Classification)
	assert.InDelta(t, 0.0, report.PSI, 1e-9)
	assert.Equal(t, 500, report.BaselineSize)
	assert.Equal(t, 500, report.CurrentSize)
}

func TestComputePSISameDistribution(t *testing.T) {
	baseline := normalSample(1000, 0, 1, 7)
	current := normalSample(1000, 0, 1, 11)
	report := ComputePSI("base_score", baseline, current, 10)
	assert.Equal(t, models.DriftStable, report.Classification)
	assert.Less(t, report.PSI, psiMinorThreshold)
}

func TestComputePSIShiftedDistribution(t *testing.T) {
	baseline := normalSample(1000, 0, 1, 7)
	current := normalSample(1000, 2.5, 1, 11)
	report := ComputePSI("base_score", baseline, current, 10)
	assert.Equal(t, models.DriftSignificant, report.Classification)
	assert.Greater(t, report.PSI, psiSignificantThreshold)
}

func TestComputePSIEmptySamples(t *testing.T) {
	report := ComputePSI("base_score", nil, []float64{1, 2}, 10)
	assert.Equal(t, models.DriftInsufficientData, report.Classification)

	report = ComputePSI("base_score", []float64{1, 2}, nil, 10)
	assert.Equal(t, models.DriftInsufficientData, report.Classification)
}

func TestComputePSIConstantBaseline(t *testing.T) {
	// All edges collapse; a single open-ended bin holds everything.
	baseline := make([]float64, 100)
	current := make([]float64, 100)
	report := ComputePSI("base_score", baseline, current, 10)
	assert.Equal(t, models.DriftStable, report.Classification)
}

func TestClassifyPSI(t *testing.T) {
	assert.Equal(t, models.DriftStable, ClassifyPSI(0.05))
	assert.Equal(t, models.DriftMinor, ClassifyPSI(0.10))
	assert.Equal(t, models.DriftMinor, ClassifyPSI(0.15))
	assert.Equal(t, models.DriftSignificant, ClassifyPSI(0.25))
}

func TestComputeAccuracy(t *testing.T) {
	pairs := []models.PredictionOutcome{
		{Predicted: 1.0, Actual: 2.0},   // right direction, abs err 1
		{Predicted: -1.0, Actual: -0.5}, // right direction, abs err 0.5
		{Predicted: 1.0, Actual: -1.0},  // wrong direction, abs err 2
		{Predicted: -2.0, Actual: 1.0},  // wrong direction, abs err 3
	}
	report := ComputeAccuracy("impact:1d", "1d", pairs)
	assert.Equal(t, AccuracyOK, report.Status)
	assert.Equal(t, 4, report.SampleSize)
	assert.InDelta(t, 1.625, report.MeanAbsError, 1e-12)
	assert.InDelta(t, 0.5, report.DirectionalAccuracy, 1e-12)
}

func TestComputeAccuracyZeroIsNotAHit(t *testing.T) {
	// A flat prediction against a nonzero move is a directional miss; zero
	// matches only zero. Training-time evaluation scores the same way.
	pairs := []models.PredictionOutcome{
		{Predicted: 0.0, Actual: 1.5},  // miss: flat call, market moved
		{Predicted: 0.0, Actual: 0.0},  // hit: flat both sides
		{Predicted: 0.5, Actual: 1.0},  // hit
		{Predicted: -1.0, Actual: 0.0}, // miss
	}
	report := ComputeAccuracy("impact:1d", "1d", pairs)
	assert.InDelta(t, 0.5, report.DirectionalAccuracy, 1e-12)
}

func TestSameDirection(t *testing.T) {
	assert.True(t, SameDirection(0.2, 1.5))
	assert.True(t, SameDirection(-0.2, -1.5))
	assert.True(t, SameDirection(0, 0))
	assert.False(t, SameDirection(0, 0.1))
	assert.False(t, SameDirection(-0.1, 0))
	assert.False(t, SameDirection(1, -1))
}

func TestComputeAccuracyNoPairs(t *testing.T) {
	report := ComputeAccuracy("impact:1d", "1d", nil)
	assert.Equal(t, AccuracyInsufficientData, report.Status)
	assert.Equal(t, 0, report.SampleSize)
	assert.InDelta(t, 0.0, report.DirectionalAccuracy, 1e-12)
}
