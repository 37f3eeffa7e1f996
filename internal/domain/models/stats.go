package models

import "time"

// EventStats is the per-(ticker, event_type) historical aggregate used as an
// empirical prior by the base scorer. sample_size counts only events with
// outcomes available for all horizons simultaneously.
type EventStats struct {
	Ticker       string    `json:"ticker"`
	EventType    string    `json:"event_type"`
	SampleSize   int       `json:"sample_size"`
	WinRate      float64   `json:"win_rate"`
	MeanMove1D   float64   `json:"mean_move_1d"`
	MeanMove5D   float64   `json:"mean_move_5d"`
	MeanMove20D  float64   `json:"mean_move_20d"`
	AvgAbsMove1D float64   `json:"avg_abs_move_1d"`
	AvgAbsMove5D float64   `json:"avg_abs_move_5d"`
	AvgAbsMove20 float64   `json:"avg_abs_move_20d"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Stats actions emitted by the aggregator.
const (
	StatsActionUpdate = "update"
	StatsActionDelete = "delete"
)

// StatsAction tells the stats store whether to upsert the payload or remove
// the row entirely. A delete never carries a payload: a (ticker, event_type)
// pair with no fully-covered events must not have a stats row at all.
type StatsAction struct {
	Action  string      `json:"action"`
	Payload *EventStats `json:"payload,omitempty"`
}
