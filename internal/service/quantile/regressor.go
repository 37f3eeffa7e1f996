package quantile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/models"
	domrepo "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/repository"
	applogger "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/logger"
)

// Quantiles are the five target quantiles every regressor serves.
var Quantiles = []float64{0.10, 0.25, 0.50, 0.75, 0.90}

var (
	// ErrNotTrained means predict or save was called before train or load.
	ErrNotTrained = errors.New("quantile regressor: not trained")

	// ErrValidation means the training inputs were structurally invalid.
	ErrValidation = errors.New("quantile regressor: invalid training set")
)

// Regressor trains and serves one gradient-boosted ensemble per target
// quantile. The five models are fit independently, so raw outputs can cross;
// PredictBatch rearranges them into order before returning.
type Regressor struct {
	horizon domrepo.Horizon
	params  Params
	logger  *applogger.Logger

	featureOrder []string
	ensembles    map[float64]*ensemble
	trainedAt    time.Time
	version      string
}

// TrainReport carries the training-time sanity metrics. RawCoverage80 is the
// empirical coverage of the uncalibrated q10-q90 interval on the validation
// split; it is informational only, not a guarantee.
type TrainReport struct {
	Horizon       string             `json:"horizon"`
	NTrain        int                `json:"n_train"`
	NVal          int                `json:"n_val"`
	FeatureOrder  []string           `json:"feature_order"`
	ValPinball    map[string]float64 `json:"val_pinball"`
	RawCoverage80 float64            `json:"raw_coverage_80"`
}

func NewRegressor(h domrepo.Horizon, lgr *applogger.Logger) *Regressor {
	return &Regressor{
		horizon: h,
		params:  ParamsForHorizon(h),
		logger:  lgr,
	}
}

// Train fits the five quantile ensembles on the labeled set. Rows are
// expected in label-date ascending order; the trailing 20% becomes the
// validation split. A feature/outcome length mismatch is fatal.
func (r *Regressor) Train(ctx context.Context, feats []models.ModelFeature, outcomes []float64) (*TrainReport, error) {
	if len(feats) != len(outcomes) {
		return nil, fmt.Errorf("%w: %d feature rows vs %d outcomes", ErrValidation, len(feats), len(outcomes))
	}
	if len(feats) == 0 {
		return nil, fmt.Errorf("%w: empty training set", ErrValidation)
	}

	r.featureOrder = featureUnion(feats)

	xs := make([][]float64, len(feats))
	for i, f := range feats {
		xs[i] = vectorize(f.FeatureMap, r.featureOrder)
	}

	nVal := len(xs) / 5
	nTrain := len(xs) - nVal
	trainX, trainY := xs[:nTrain], outcomes[:nTrain]
	valX, valY := xs[nTrain:], outcomes[nTrain:]

	r.ensembles = make(map[float64]*ensemble, len(Quantiles))
	for qi, tau := range Quantiles {
		start := time.Now()
		e, err := fitEnsemble(ctx, trainX, trainY, tau, r.params, int64(qi+1)*7919)
		if err != nil {
			r.ensembles = nil
			return nil, fmt.Errorf("fit q%.2f: %w", tau, err)
		}
		r.ensembles[tau] = e
		if r.logger != nil {
			r.logger.Debug("quantile ensemble fitted",
				applogger.String("horizon", string(r.horizon)),
				applogger.Float64("tau", tau),
				applogger.Int("trees", len(e.Trees)),
				applogger.Duration("duration_ms", time.Since(start)),
			)
		}
	}
	r.trainedAt = time.Now().UTC()

	report := &TrainReport{
		Horizon:      string(r.horizon),
		NTrain:       nTrain,
		NVal:         nVal,
		FeatureOrder: r.featureOrder,
		ValPinball:   make(map[string]float64, len(Quantiles)),
	}
	if nVal > 0 {
		covered := 0
		losses := make(map[float64]float64, len(Quantiles))
		for i, x := range valX {
			for _, tau := range Quantiles {
				losses[tau] += pinballLoss(valY[i], r.ensembles[tau].predict(x), tau)
			}
			p := r.orderedPrediction(x)
			if valY[i] >= p.Lower && valY[i] <= p.Upper {
				covered++
			}
		}
		for _, tau := range Quantiles {
			report.ValPinball[quantileKey(tau)] = losses[tau] / float64(nVal)
		}
		report.RawCoverage80 = float64(covered) / float64(nVal)
	}
	return report, nil
}

// PredictBatch produces one prediction per feature map. Missing expected
// features default to 0, unknown extras are dropped, and values are placed
// in the training-time feature order.
func (r *Regressor) PredictBatch(items []map[string]float64) ([]models.QuantilePrediction, error) {
	if r.ensembles == nil {
		return nil, ErrNotTrained
	}
	out := make([]models.QuantilePrediction, len(items))
	for i, m := range items {
		out[i] = r.orderedPrediction(vectorize(m, r.featureOrder))
	}
	return out, nil
}

// Predict scores a single feature map.
func (r *Regressor) Predict(features map[string]float64) (models.QuantilePrediction, error) {
	ps, err := r.PredictBatch([]map[string]float64{features})
	if err != nil {
		return models.QuantilePrediction{}, err
	}
	return ps[0], nil
}

// orderedPrediction evaluates the five ensembles and rearranges crossed
// outputs so lower <= q25 <= median <= q75 <= upper always holds.
func (r *Regressor) orderedPrediction(x []float64) models.QuantilePrediction {
	vals := make([]float64, len(Quantiles))
	for qi, tau := range Quantiles {
		vals[qi] = r.ensembles[tau].predict(x)
	}
	sort.Float64s(vals)
	return models.QuantilePrediction{
		Lower:  vals[0],
		Q25:    vals[1],
		Median: vals[2],
		Q75:    vals[3],
		Upper:  vals[4],
		Width:  vals[4] - vals[0],
	}
}

// FeatureOrder returns the training-time feature ordering.
func (r *Regressor) FeatureOrder() []string { return r.featureOrder }

// Horizon returns the regressor's horizon.
func (r *Regressor) Horizon() domrepo.Horizon { return r.horizon }

// TrainedAt returns the training timestamp (zero before training).
func (r *Regressor) TrainedAt() time.Time { return r.trainedAt }

// Version returns the bundle version set at save or load time.
func (r *Regressor) Version() string { return r.version }

func featureUnion(feats []models.ModelFeature) []string {
	seen := make(map[string]struct{})
	for _, f := range feats {
		for k := range f.FeatureMap {
			seen[k] = struct{}{}
		}
	}
	order := make([]string, 0, len(seen))
	for k := range seen {
		order = append(order, k)
	}
	sort.Strings(order)
	return order
}

func vectorize(m map[string]float64, order []string) []float64 {
	x := make([]float64, len(order))
	for i, k := range order {
		x[i] = m[k] // missing keys read as the neutral default 0
	}
	return x
}

func quantileKey(tau float64) string { return fmt.Sprintf("q%02.0f", tau*100) }
