package repository

// SchemaStatements returns idempotent DDL for every table the service owns.
// Executed once at startup through the ClickHouse client.
func SchemaStatements(database string) []string {
	if database == "" {
		database = "impactradar"
	}
	d := database
	return []string{
		`CREATE DATABASE IF NOT EXISTS ` + d,

		`CREATE TABLE IF NOT EXISTS ` + d + `.events (
			event_id   String,
			ticker     LowCardinality(String),
			event_type LowCardinality(String),
			event_date Date
		) ENGINE = ReplacingMergeTree
		ORDER BY (ticker, event_type, event_id)`,

		`CREATE TABLE IF NOT EXISTS ` + d + `.price_closes (
			ticker LowCardinality(String),
			date   Date,
			close  Float64
		) ENGINE = ReplacingMergeTree
		ORDER BY (ticker, date)`,

		`CREATE TABLE IF NOT EXISTS ` + d + `.event_outcomes (
			event_id            String,
			ticker              LowCardinality(String),
			horizon             LowCardinality(String),
			realized_return_pct Float64,
			label_date          DateTime
		) ENGINE = ReplacingMergeTree
		ORDER BY (event_id, horizon)`,

		`CREATE TABLE IF NOT EXISTS ` + d + `.model_features (
			event_id        String,
			horizon         LowCardinality(String),
			feature_version LowCardinality(String),
			features        Map(String, Float64),
			base_score      Float64,
			sector          LowCardinality(String),
			event_type      LowCardinality(String),
			market_vol      Float64,
			info_tier       LowCardinality(String),
			extracted_at    DateTime
		) ENGINE = ReplacingMergeTree(extracted_at)
		ORDER BY (event_id, horizon, feature_version)`,

		`CREATE TABLE IF NOT EXISTS ` + d + `.event_stats (
			ticker           LowCardinality(String),
			event_type       LowCardinality(String),
			sample_size      UInt32,
			win_rate         Float64,
			mean_move_1d     Float64,
			mean_move_5d     Float64,
			mean_move_20d    Float64,
			avg_abs_move_1d  Float64,
			avg_abs_move_5d  Float64,
			avg_abs_move_20d Float64,
			updated_at       DateTime
		) ENGINE = ReplacingMergeTree(updated_at)
		ORDER BY (ticker, event_type)`,

		`CREATE TABLE IF NOT EXISTS ` + d + `.model_registry (
			name            LowCardinality(String),
			version         String,
			status          LowCardinality(String),
			artifact_id     String,
			metrics         Map(String, Float64),
			feature_version LowCardinality(String),
			trained_at      DateTime,
			promoted_at     Nullable(DateTime),
			updated_at      DateTime
		) ENGINE = ReplacingMergeTree(updated_at)
		ORDER BY (name, version)`,

		`CREATE TABLE IF NOT EXISTS ` + d + `.predictions (
			event_id         String,
			model            LowCardinality(String),
			horizon          LowCardinality(String),
			predicted_return Float64,
			created_at       DateTime
		) ENGINE = MergeTree
		ORDER BY (model, horizon, created_at)`,
	}
}
