package models

import "time"

// QuantilePrediction is the 5-point predicted return distribution for one
// event. Ordering lower <= q25 <= median <= q75 <= upper always holds in a
// returned value; crossing between the independently trained quantile models
// is corrected before return.
type QuantilePrediction struct {
	Lower  float64 `json:"lower"`
	Q25    float64 `json:"q25"`
	Median float64 `json:"median"`
	Q75    float64 `json:"q75"`
	Upper  float64 `json:"upper"`
	Width  float64 `json:"width"`
}

// CalibratedInterval is a QuantilePrediction widened by the stored conformal
// adjustment. Adjustment is 0 when no calibration has been performed.
type CalibratedInterval struct {
	Lower                 float64 `json:"lower"`
	Median                float64 `json:"median"`
	Upper                 float64 `json:"upper"`
	CoverageLevel         float64 `json:"coverage_level"`
	CalibrationAdjustment float64 `json:"calibration_adjustment"`
}

// CalibrationMetrics is one coverage evaluation appended to the rolling
// history.
type CalibrationMetrics struct {
	CoverageLevel     float64   `json:"coverage_level"`
	EmpiricalCoverage float64   `json:"empirical_coverage"`
	CoverageError     float64   `json:"coverage_error"`
	SampleSize        int       `json:"sample_size"`
	EvaluatedAt       time.Time `json:"evaluated_at"`
}

// CalibrationState is the persisted artifact of one calibrator instance.
type CalibrationState struct {
	Horizon             string    `json:"horizon"`
	NonconformityScores []float64 `json:"nonconformity_scores"`
	// CalibrationQuantiles keys are coverage levels formatted to two
	// decimals ("0.80"), since JSON objects cannot carry float keys.
	CalibrationQuantiles map[string]float64   `json:"calibration_quantiles"`
	NCalibrationSamples  int                  `json:"n_calibration_samples"`
	CoverageHistory      []CalibrationMetrics `json:"coverage_history"`
	Version              string               `json:"version"`
	CalibratedAt         time.Time            `json:"calibrated_at"`
}
