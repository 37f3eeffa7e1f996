package quantile

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/models"
	domrepo "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/repository"
)

// memArtifacts is an in-memory ArtifactStore for save/load roundtrips.
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

// syntheticSet builds n labeled rows where the outcome depends on two
// features plus deterministic pseudo-noise.
func syntheticSet(n int) ([]models.ModelFeature, []float64) {
	rng := rand.New(rand.NewSource(42))
	feats := make([]models.ModelFeature, n)
	ys := make([]float64, n)
	for i := 0; i < n; i++ {
		x1 := rng.Float64()*4 - 2
		x2 := rng.Float64()
		feats[i] = models.ModelFeature{
			EventID: fmt.Sprintf("e%d", i),
			Horizon: "1d",
			FeatureMap: map[string]float64{
				"base_score": x1,
				"market_vol": x2,
			},
		}
		ys[i] = 1.5*x1 - 0.8*x2 + rng.NormFloat64()*0.3
	}
	return feats, ys
}

func TestTrainValidation(t *testing.T) {
	r := NewRegressor(domrepo.H1D, nil)

	_, err := r.Train(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrValidation)

	feats, ys := syntheticSet(10)
	_, err = r.Train(context.Background(), feats, ys[:5])
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPredictBeforeTrain(t *testing.T) {
	r := NewRegressor(domrepo.H1D, nil)
	_, err := r.PredictBatch([]map[string]float64{{"base_score": 1}})
	assert.ErrorIs(t, err, ErrNotTrained)

	_, err = r.Save(context.Background(), newMemArtifacts(), "v1")
	assert.ErrorIs(t, err, ErrNotTrained)
}

func TestTrainAndPredictOrdering(t *testing.T) {
	feats, ys := syntheticSet(200)
	r := NewRegressor(domrepo.H1D, nil)

	report, err := r.Train(context.Background(), feats, ys)
	require.NoError(t, err)
	assert.Equal(t, 160, report.NTrain)
	assert.Equal(t, 40, report.NVal)
	assert.Equal(t, []string{"base_score", "market_vol"}, report.FeatureOrder)
	assert.Len(t, report.ValPinball, len(Quantiles))
	assert.GreaterOrEqual(t, report.RawCoverage80, 0.0)
	assert.LessOrEqual(t, report.RawCoverage80, 1.0)

	preds, err := r.PredictBatch([]map[string]float64{
		{"base_score": 1.0, "market_vol": 0.5},
		{"base_score": -1.5, "market_vol": 0.2},
		{}, // missing features default to 0
	})
	require.NoError(t, err)
	require.Len(t, preds, 3)
	for _, p := range preds {
		assert.LessOrEqual(t, p.Lower, p.Q25)
		assert.LessOrEqual(t, p.Q25, p.Median)
		assert.LessOrEqual(t, p.Median, p.Q75)
		assert.LessOrEqual(t, p.Q75, p.Upper)
		assert.InDelta(t, p.Upper-p.Lower, p.Width, 1e-12)
	}
}

func TestTrainLearnsSignal(t *testing.T) {
	feats, ys := syntheticSet(300)
	r := NewRegressor(domrepo.H1D, nil)
	_, err := r.Train(context.Background(), feats, ys)
	require.NoError(t, err)

	hi, err := r.Predict(map[string]float64{"base_score": 1.8, "market_vol": 0.5})
	require.NoError(t, err)
	lo, err := r.Predict(map[string]float64{"base_score": -1.8, "market_vol": 0.5})
	require.NoError(t, err)
	assert.Greater(t, hi.Median, lo.Median)
}

func TestUnknownFeaturesDropped(t *testing.T) {
	feats, ys := syntheticSet(100)
	r := NewRegressor(domrepo.H1D, nil)
	_, err := r.Train(context.Background(), feats, ys)
	require.NoError(t, err)

	with, err := r.Predict(map[string]float64{"base_score": 1, "market_vol": 0.5})
	require.NoError(t, err)
	withExtra, err := r.Predict(map[string]float64{"base_score": 1, "market_vol": 0.5, "unseen": 99})
	require.NoError(t, err)
	assert.Equal(t, with, withExtra)
}

func TestSaveLoadRoundtrip(t *testing.T) {
	feats, ys := syntheticSet(150)
	r := NewRegressor(domrepo.H5D, nil)
	_, err := r.Train(context.Background(), feats, ys)
	require.NoError(t, err)

	store := newMemArtifacts()
	metaID, err := r.Save(context.Background(), store, "v1")
	require.NoError(t, err)
	require.NotEmpty(t, metaID)
	assert.Equal(t, "v1", r.Version())

	loaded, err := LoadBundle(context.Background(), store, metaID)
	require.NoError(t, err)
	assert.Equal(t, domrepo.H5D, loaded.Horizon())
	assert.Equal(t, r.FeatureOrder(), loaded.FeatureOrder())
	assert.Equal(t, "v1", loaded.Version())

	in := map[string]float64{"base_score": 0.7, "market_vol": 0.3}
	want, err := r.Predict(in)
	require.NoError(t, err)
	got, err := loaded.Predict(in)
	require.NoError(t, err)
	assert.InDelta(t, want.Median, got.Median, 1e-12)
	assert.InDelta(t, want.Lower, got.Lower, 1e-12)
	assert.InDelta(t, want.Upper, got.Upper, 1e-12)
}

func TestPinballLoss(t *testing.T) {
	// Under-prediction is penalized by tau, over-prediction by 1-tau.
	assert.InDelta(t, 0.9*2.0, pinballLoss(3.0, 1.0, 0.9), 1e-12)
	assert.InDelta(t, 0.1*2.0, pinballLoss(1.0, 3.0, 0.9), 1e-12)
	assert.InDelta(t, 0.0, pinballLoss(1.0, 1.0, 0.5), 1e-12)
}

func TestQuantileKey(t *testing.T) {
	assert.Equal(t, "q10", quantileKey(0.10))
	assert.Equal(t, "q50", quantileKey(0.50))
	assert.Equal(t, "q90", quantileKey(0.90))
}

func TestVectorize(t *testing.T) {
	order := []string{"a", "b", "c"}
	x := vectorize(map[string]float64{"c": 3, "a": 1}, order)
	assert.Equal(t, []float64{1, 0, 3}, x)
	assert.False(t, math.IsNaN(x[1]))
}
