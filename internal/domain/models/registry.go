package models

import "time"

// Model registry statuses. Exactly one entry per name may be active at any
// time from the monitor's perspective.
const (
	ModelStatusStaging = "staging"
	ModelStatusActive  = "active"
	ModelStatusRetired = "retired"
)

// ModelRegistryEntry is one trained model version in the registry.
type ModelRegistryEntry struct {
	Name           string             `json:"name"`
	Version        string             `json:"version"`
	Status         string             `json:"status"`
	ArtifactID     string             `json:"artifact_id"`
	Metrics        map[string]float64 `json:"metrics"`
	FeatureVersion string             `json:"feature_version"`
	TrainedAt      time.Time          `json:"trained_at"`
	PromotedAt     *time.Time         `json:"promoted_at,omitempty"`
}

// PredictionRecord is persisted at serving time so the monitor can later join
// predictions to realized outcomes.
type PredictionRecord struct {
	EventID         string    `json:"event_id"`
	Model           string    `json:"model"`
	Horizon         string    `json:"horizon"`
	PredictedReturn float64   `json:"predicted_return"`
	CreatedAt       time.Time `json:"created_at"`
}

// PredictionOutcome is one joined (predicted, realized) pair for accuracy
// tracking.
type PredictionOutcome struct {
	EventID   string
	Predicted float64
	Actual    float64
}
