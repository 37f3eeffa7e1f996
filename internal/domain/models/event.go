package models

import "time"

// EventOutcome is the realized return of a corporate event over one horizon.
// Created once price data becomes available, immutable afterwards, keyed by
// (event_id, horizon).
type EventOutcome struct {
	EventID           string    `json:"event_id"`
	Ticker            string    `json:"ticker"`
	Horizon           string    `json:"horizon"`
	RealizedReturnPct float64   `json:"realized_return_pct"`
	LabelDate         time.Time `json:"label_date"`
}

// ModelFeature is one extracted feature row per (event_id, horizon).
// Re-extraction with the same feature version overwrites the row.
type ModelFeature struct {
	EventID        string             `json:"event_id"`
	Horizon        string             `json:"horizon"`
	FeatureMap     map[string]float64 `json:"feature_map"`
	FeatureVersion string             `json:"feature_version"`
	BaseScore      float64            `json:"base_score"`
	Sector         string             `json:"sector"`
	EventType      string             `json:"event_type"`
	MarketVol      float64            `json:"market_vol"`
	InfoTier       string             `json:"info_tier"`
	ExtractedAt    time.Time          `json:"extracted_at"`
}

// EventRef identifies one event of a (ticker, event_type) pair for stats
// aggregation.
type EventRef struct {
	EventID   string
	EventDate time.Time
}

// PriceClose is a single daily close from the price history store.
type PriceClose struct {
	Ticker string
	Date   time.Time
	Close  float64
}
