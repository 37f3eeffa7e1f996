package models

import "time"

// Drift classifications from PSI.
const (
	DriftStable           = "stable"
	DriftMinor            = "minor_drift"
	DriftSignificant      = "significant_drift"
	DriftInsufficientData = "insufficient_data"
)

// DriftReport is the PSI result for one feature.
type DriftReport struct {
	Feature        string  `json:"feature"`
	PSI            float64 `json:"psi"`
	Classification string  `json:"classification"`
	BaselineSize   int     `json:"baseline_size"`
	CurrentSize    int     `json:"current_size"`
}

// AccuracyReport is the trailing-window accuracy of a deployed model.
// Status is "ok" or "insufficient_data"; the latter carries neutral values
// rather than failing the monitoring run.
type AccuracyReport struct {
	Model               string  `json:"model"`
	Horizon             string  `json:"horizon"`
	Status              string  `json:"status"`
	SampleSize          int     `json:"sample_size"`
	MeanAbsError        float64 `json:"mean_abs_error"`
	DirectionalAccuracy float64 `json:"directional_accuracy"`
}

// Retrain priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// RetrainRecommendation is the monitor's closed-loop decision output.
type RetrainRecommendation struct {
	Model            string   `json:"model"`
	ShouldRetrain    bool     `json:"should_retrain"`
	Reasons          []string `json:"reasons"`
	Priority         string   `json:"priority"`
	DaysSinceTrained int      `json:"days_since_training"`
	NewSamples       int      `json:"new_samples"`
	RecentAccuracy   float64  `json:"recent_accuracy"`
}

// Health statuses.
const (
	HealthHealthy        = "healthy"
	HealthMonitoring     = "monitoring"
	HealthNeedsAttention = "needs_attention"
)

// HealthReport bundles identity, accuracy, drift and the retrain
// recommendation for one active model.
type HealthReport struct {
	Model          string                 `json:"model"`
	Version        string                 `json:"version"`
	Horizon        string                 `json:"horizon"`
	Status         string                 `json:"status"`
	Accuracy       AccuracyReport         `json:"accuracy"`
	FeatureDrift   map[string]DriftReport `json:"feature_drift"`
	Recommendation RetrainRecommendation  `json:"recommendation"`
	GeneratedAt    time.Time              `json:"generated_at"`
}
