package models

// Requests for scoring HTTP endpoints. Defined in domain for consistency and reuse.

type PredictRequest struct {
	Model         string               `json:"model" validate:"required"`
	Horizon       string               `json:"horizon" default:"1d" validate:"oneof=1d 5d 20d"`
	CoverageLevel float64              `json:"coverage_level" default:"0.8" validate:"gt=0,lt=1"`
	Events        []PredictEvent       `json:"events" validate:"required,min=1,max=500,dive"`
	Persist       bool                 `json:"persist" default:"true"`
}

type PredictEvent struct {
	EventID  string             `json:"event_id" validate:"required"`
	Features map[string]float64 `json:"features" validate:"required"`
}

type PredictResult struct {
	EventID    string             `json:"event_id"`
	Raw        QuantilePrediction `json:"raw"`
	Calibrated CalibratedInterval `json:"calibrated"`
}

type TrainRequest struct {
	Model   string `json:"model" validate:"required"`
	Horizon string `json:"horizon" default:"1d" validate:"oneof=1d 5d 20d"`
}

type StatsRefreshRequest struct {
	Ticker    string `json:"ticker"`
	EventType string `json:"event_type"`
}

type StatsRequest struct {
	Ticker    string `query:"ticker" json:"ticker" validate:"required"`
	EventType string `query:"event_type" json:"event_type" validate:"required"`
}

type HealthRequest struct {
	Horizon string `query:"horizon" json:"horizon" default:"1d" validate:"oneof=1d 5d 20d"`
}
