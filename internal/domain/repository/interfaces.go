package repository

import (
	"context"
	"time"

	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/models"
)

// EventStore reads events and price history consumed by the stats aggregator.
type EventStore interface {
	// ListEvents returns all events of a (ticker, event_type) pair.
	ListEvents(ctx context.Context, ticker, eventType string) ([]models.EventRef, error)

	// ListPairs returns every (ticker, event_type) pair present in the store.
	ListPairs(ctx context.Context) ([][2]string, error)

	// GetCloses returns the daily closes of a ticker in ascending date order.
	// An empty slice (not an error) means no price history.
	GetCloses(ctx context.Context, ticker string) ([]models.PriceClose, error)
}

// OutcomeStore reads and writes labeled event outcomes and their extracted
// feature rows.
type OutcomeStore interface {
	Store(ctx context.Context, o *models.EventOutcome) error

	// StoreFeatures persists feature rows. Re-insertion with the same
	// (event_id, horizon, feature_version) overwrites the row.
	StoreFeatures(ctx context.Context, feats []models.ModelFeature) error

	// TrainingSet joins features to outcomes for one horizon and feature
	// version, ordered by label date ascending.
	TrainingSet(ctx context.Context, horizon Horizon, featureVersion string) ([]models.ModelFeature, []float64, error)

	// CountLabeledSince counts outcomes labeled after t for a horizon.
	CountLabeledSince(ctx context.Context, horizon Horizon, t time.Time) (int, error)

	// FeatureWindow returns recent values of one feature for drift checks,
	// split into a baseline (before pivot) and current (after pivot) sample.
	FeatureWindow(ctx context.Context, feature string, horizon Horizon, pivot time.Time) (baseline, current []float64, err error)
}

// StatsStore persists EventStats aggregates.
type StatsStore interface {
	Upsert(ctx context.Context, s *models.EventStats) error
	Delete(ctx context.Context, ticker, eventType string) error
	Get(ctx context.Context, ticker, eventType string) (*models.EventStats, error)
}

// ModelRegistry stores model versions and their lifecycle status.
type ModelRegistry interface {
	Register(ctx context.Context, e *models.ModelRegistryEntry) error

	// Promote marks (name, version) active and retires the previous active
	// entry for the name.
	Promote(ctx context.Context, name, version string, at time.Time) error

	// Active returns the single active entry for name, or nil when none
	// exists.
	Active(ctx context.Context, name string) (*models.ModelRegistryEntry, error)
}

// PredictionStore persists serving-time predictions and joins them to
// realized outcomes.
type PredictionStore interface {
	Store(ctx context.Context, recs []models.PredictionRecord) error
	JoinOutcomes(ctx context.Context, model string, horizon Horizon, since time.Time) ([]models.PredictionOutcome, error)
}

// ArtifactStore publishes and loads versioned model artifacts by opaque ID.
// Publish must be atomic: a reader never observes a partially written
// artifact.
type ArtifactStore interface {
	Publish(ctx context.Context, kind, version string, blob []byte) (id string, err error)
	Load(ctx context.Context, id string) ([]byte, error)
}

// Publisher sends domain events to the notification boundary.
type Publisher interface {
	Publish(ctx context.Context, key string, payload interface{}) error
	Close() error
}

// Metrics records operational metrics.
type Metrics interface {
	RecordJobRun(job, status string)
	RecordLatency(op string, seconds float64)
	RecordPrediction(model, horizon string)
	RecordCoverage(horizon string, level, empirical float64)
	RecordPSI(model, feature string, psi float64)
	RecordRetrainSignal(model, priority string)
	RecordError(kind string)
}
