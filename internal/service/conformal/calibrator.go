package conformal

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/models"
	domrepo "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/repository"
	applogger "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/logger"
)

// minReliableSamples is the calibration set size below which the coverage
// guarantee is statistically weak. Small sets proceed with a warning, they
// are never blocked.
const minReliableSamples = 20

// historyCap bounds the rolling coverage history.
const historyCap = 100

// Calibrator wraps raw quantile intervals with split conformal prediction:
// held-out nonconformity scores buy a finite-sample coverage guarantee that
// holds whether or not the base quantile models are individually calibrated.
// One instance owns the state of one horizon.
type Calibrator struct {
	horizon domrepo.Horizon
	logger  *applogger.Logger
	now     func() time.Time

	scores      []float64
	adjustments map[float64]float64
	nSamples    int
	history     []models.CalibrationMetrics
	version     string
	calibratedAt time.Time
}

func NewCalibrator(h domrepo.Horizon, lgr *applogger.Logger, now func() time.Time) *Calibrator {
	if now == nil {
		now = time.Now
	}
	return &Calibrator{horizon: h, logger: lgr, now: now}
}

// Calibrate computes nonconformity scores from held-out raw predictions and
// their true outcomes, then stores one adjustment per coverage level: the
// order statistic at rank ceil((N+1)*L), capped at N.
func (c *Calibrator) Calibrate(preds []models.QuantilePrediction, actuals []float64, levels []float64) error {
	if len(preds) != len(actuals) {
		return fmt.Errorf("calibrate: %d predictions vs %d actuals", len(preds), len(actuals))
	}
	if len(preds) == 0 {
		return fmt.Errorf("calibrate: empty calibration set")
	}
	if len(preds) < minReliableSamples && c.logger != nil {
		c.logger.Warn("calibration set is statistically unreliable",
			applogger.String("horizon", string(c.horizon)),
			applogger.Int("n", len(preds)),
			applogger.Int("min_reliable", minReliableSamples),
		)
	}

	scores := make([]float64, len(preds))
	for i, p := range preds {
		scores[i] = nonconformity(p, actuals[i])
	}
	sort.Float64s(scores)

	adj := make(map[float64]float64, len(levels))
	n := len(scores)
	for _, level := range levels {
		rank := int(math.Ceil(float64(n+1) * level))
		if rank > n {
			rank = n
		}
		if rank < 1 {
			rank = 1
		}
		adj[level] = scores[rank-1]
	}

	c.scores = scores
	c.adjustments = adj
	c.nSamples = n
	c.calibratedAt = c.now().UTC()
	return nil
}

// nonconformity measures how far the actual falls outside the raw interval:
// zero or negative inside, positive by the overshoot outside.
func nonconformity(p models.QuantilePrediction, actual float64) float64 {
	return math.Max(actual-p.Upper, p.Lower-actual)
}

// Apply widens the raw interval by the stored adjustment for the coverage
// level; the median is never moved. An uncalibrated level falls back to the
// closest calibrated one with a warning; no calibration at all returns the
// raw interval with adjustment 0.
func (c *Calibrator) Apply(p models.QuantilePrediction, level float64) models.CalibratedInterval {
	adj := 0.0
	if len(c.adjustments) > 0 {
		a, ok := c.adjustments[level]
		if !ok {
			closest := c.closestLevel(level)
			a = c.adjustments[closest]
			if c.logger != nil {
				c.logger.Warn("coverage level not calibrated, using closest",
					applogger.String("horizon", string(c.horizon)),
					applogger.Float64("requested", level),
					applogger.Float64("used", closest),
				)
			}
		}
		adj = a
	}
	return models.CalibratedInterval{
		Lower:                 p.Lower - adj,
		Median:                p.Median,
		Upper:                 p.Upper + adj,
		CoverageLevel:         level,
		CalibrationAdjustment: adj,
	}
}

func (c *Calibrator) closestLevel(level float64) float64 {
	best := 0.0
	bestDist := math.Inf(1)
	for l := range c.adjustments {
		if d := math.Abs(l - level); d < bestDist {
			bestDist = d
			best = l
		}
	}
	return best
}

// EvaluateCoverage computes the empirical coverage of calibrated intervals
// against realized outcomes and appends the result to the rolling history
// (capped, oldest dropped).
func (c *Calibrator) EvaluateCoverage(intervals []models.CalibratedInterval, actuals []float64, nominal float64) (models.CalibrationMetrics, error) {
	if len(intervals) != len(actuals) {
		return models.CalibrationMetrics{}, fmt.Errorf("evaluate coverage: %d intervals vs %d actuals", len(intervals), len(actuals))
	}
	if len(intervals) == 0 {
		return models.CalibrationMetrics{}, fmt.Errorf("evaluate coverage: empty evaluation set")
	}

	inside := 0
	for i, iv := range intervals {
		if actuals[i] >= iv.Lower && actuals[i] <= iv.Upper {
			inside++
		}
	}
	empirical := float64(inside) / float64(len(intervals))
	m := models.CalibrationMetrics{
		CoverageLevel:     nominal,
		EmpiricalCoverage: empirical,
		CoverageError:     empirical - nominal,
		SampleSize:        len(intervals),
		EvaluatedAt:       c.now().UTC(),
	}

	c.history = append(c.history, m)
	if len(c.history) > historyCap {
		c.history = c.history[len(c.history)-historyCap:]
	}
	return m, nil
}

// IsWellCalibrated reports whether the mean absolute coverage error over the
// last 10 evaluations stays within tolerance. No history counts as well
// calibrated.
func (c *Calibrator) IsWellCalibrated(tolerance float64) bool {
	recent := c.recentHistory(10)
	if len(recent) == 0 {
		return true
	}
	sum := 0.0
	for _, m := range recent {
		sum += math.Abs(m.CoverageError)
	}
	return sum/float64(len(recent)) <= tolerance
}

// NeedsRecalibration reports whether the mean signed coverage error over the
// last 10 evaluations exceeds the threshold in magnitude. The signed mean
// catches systematic over- or under-coverage that the absolute mean would
// miss.
func (c *Calibrator) NeedsRecalibration(threshold float64) bool {
	recent := c.recentHistory(10)
	if len(recent) == 0 {
		return false
	}
	sum := 0.0
	for _, m := range recent {
		sum += m.CoverageError
	}
	return math.Abs(sum/float64(len(recent))) > threshold
}

func (c *Calibrator) recentHistory(n int) []models.CalibrationMetrics {
	if len(c.history) <= n {
		return c.history
	}
	return c.history[len(c.history)-n:]
}

// State snapshots the calibrator for persistence.
func (c *Calibrator) State() models.CalibrationState {
	quants := make(map[string]float64, len(c.adjustments))
	for l, a := range c.adjustments {
		quants[levelKey(l)] = a
	}
	return models.CalibrationState{
		Horizon:              string(c.horizon),
		NonconformityScores:  c.scores,
		CalibrationQuantiles: quants,
		NCalibrationSamples:  c.nSamples,
		CoverageHistory:      c.history,
		Version:              c.version,
		CalibratedAt:         c.calibratedAt,
	}
}

func levelKey(l float64) string { return strconv.FormatFloat(l, 'f', 2, 64) }

// Save publishes the full calibration state as one versioned artifact.
func (c *Calibrator) Save(ctx context.Context, store domrepo.ArtifactStore, version string) (string, error) {
	c.version = version
	blob, err := json.Marshal(c.State())
	if err != nil {
		return "", fmt.Errorf("encode calibration state: %w", err)
	}
	id, err := store.Publish(ctx, fmt.Sprintf("calibration_%s", c.horizon), version, blob)
	if err != nil {
		return "", fmt.Errorf("publish calibration state: %w", err)
	}
	return id, nil
}

// LoadState restores a calibrator from a persisted state artifact.
func LoadState(ctx context.Context, store domrepo.ArtifactStore, id string, lgr *applogger.Logger) (*Calibrator, error) {
	blob, err := store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load calibration state %s: %w", id, err)
	}
	var st models.CalibrationState
	if err := json.Unmarshal(blob, &st); err != nil {
		return nil, fmt.Errorf("decode calibration state %s: %w", id, err)
	}
	c := NewCalibrator(domrepo.Horizon(st.Horizon), lgr, nil)
	c.scores = st.NonconformityScores
	c.adjustments = make(map[float64]float64, len(st.CalibrationQuantiles))
	for k, a := range st.CalibrationQuantiles {
		l, perr := strconv.ParseFloat(k, 64)
		if perr != nil {
			return nil, fmt.Errorf("decode calibration state %s: bad level key %q", id, k)
		}
		c.adjustments[l] = a
	}
	c.nSamples = st.NCalibrationSamples
	c.history = st.CoverageHistory
	c.version = st.Version
	c.calibratedAt = st.CalibratedAt
	return c, nil
}
