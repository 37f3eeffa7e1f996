package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/models"
	domrepo "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/repository"
	pkgch "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/clickhouse"
	applogger "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/logger"
)

// CHOutcomeStore implements OutcomeStore backed by ClickHouse.
type CHOutcomeStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHOutcomeStore(ch *pkgch.Client, database string) *CHOutcomeStore {
	if database == "" {
		database = "impactradar"
	}
	return &CHOutcomeStore{db: ch.DB(), database: database}
}

// SetLogger injects a structured logger.
func (s *CHOutcomeStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHOutcomeStore) Store(ctx context.Context, o *models.EventOutcome) error {
	q := fmt.Sprintf(`
        INSERT INTO %s.event_outcomes
            (event_id, ticker, horizon, realized_return_pct, label_date)
        VALUES (?, ?, ?, ?, ?)
    `, s.database)
	if _, err := s.db.ExecContext(ctx, q,
		o.EventID, o.Ticker, o.Horizon, o.RealizedReturnPct, o.LabelDate,
	); err != nil {
		return fmt.Errorf("store outcome: %w", err)
	}
	return nil
}

// TrainingSet joins extracted features to realized outcomes for one horizon
// and feature version, ordered by label date so a trailing split stays
// temporally honest.
func (s *CHOutcomeStore) TrainingSet(ctx context.Context, horizon domrepo.Horizon, featureVersion string) ([]models.ModelFeature, []float64, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT
            f.event_id, f.features, f.base_score, f.sector, f.event_type,
            f.market_vol, f.info_tier, f.extracted_at,
            o.realized_return_pct
        FROM %s.model_features AS f FINAL
        INNER JOIN %s.event_outcomes AS o FINAL
            ON o.event_id = f.event_id AND o.horizon = f.horizon
        WHERE f.horizon = ? AND f.feature_version = ?
        ORDER BY o.label_date ASC
    `, s.database, s.database)
	rows, err := s.db.QueryContext(ctx, q, string(horizon), featureVersion)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse training_set query error",
				applogger.String("horizon", string(horizon)),
				applogger.String("feature_version", featureVersion),
				applogger.Error(err),
			)
		}
		return nil, nil, fmt.Errorf("training set: %w", err)
	}
	defer rows.Close()

	feats := make([]models.ModelFeature, 0, 1024)
	targets := make([]float64, 0, 1024)
	for rows.Next() {
		var f models.ModelFeature
		var target float64
		if err := rows.Scan(&f.EventID, &f.FeatureMap, &f.BaseScore, &f.Sector,
			&f.EventType, &f.MarketVol, &f.InfoTier, &f.ExtractedAt, &target); err != nil {
			return nil, nil, fmt.Errorf("scan training row: %w", err)
		}
		f.Horizon = string(horizon)
		f.FeatureVersion = featureVersion
		feats = append(feats, f)
		targets = append(targets, target)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse training_set ok",
			applogger.String("horizon", string(horizon)),
			applogger.String("feature_version", featureVersion),
			applogger.Int("rows", len(feats)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return feats, targets, nil
}

func (s *CHOutcomeStore) CountLabeledSince(ctx context.Context, horizon domrepo.Horizon, t time.Time) (int, error) {
	q := fmt.Sprintf(`
        SELECT count()
        FROM %s.event_outcomes FINAL
        WHERE horizon = ? AND label_date > ?
    `, s.database)
	var n uint64
	if err := s.db.QueryRowContext(ctx, q, string(horizon), t).Scan(&n); err != nil {
		return 0, fmt.Errorf("count labeled: %w", err)
	}
	return int(n), nil
}

// FeatureWindow splits recent values of one feature around pivot into a
// baseline and a current sample for drift checks. Named columns double as
// features when the map does not carry the key.
func (s *CHOutcomeStore) FeatureWindow(ctx context.Context, feature string, horizon domrepo.Horizon, pivot time.Time) ([]float64, []float64, error) {
	q := fmt.Sprintf(`
        SELECT features, base_score, market_vol, extracted_at
        FROM %s.model_features FINAL
        WHERE horizon = ?
        ORDER BY extracted_at ASC
    `, s.database)
	rows, err := s.db.QueryContext(ctx, q, string(horizon))
	if err != nil {
		return nil, nil, fmt.Errorf("feature window: %w", err)
	}
	defer rows.Close()

	var baseline, current []float64
	for rows.Next() {
		var (
			featMap     map[string]float64
			baseScore   float64
			marketVol   float64
			extractedAt time.Time
		)
		if err := rows.Scan(&featMap, &baseScore, &marketVol, &extractedAt); err != nil {
			return nil, nil, fmt.Errorf("scan feature row: %w", err)
		}

		v, ok := featMap[feature]
		if !ok {
			switch feature {
			case "base_score":
				v = baseScore
			case "market_vol":
				v = marketVol
			default:
				continue
			}
		}

		if extractedAt.Before(pivot) {
			baseline = append(baseline, v)
		} else {
			current = append(current, v)
		}
	}
	return baseline, current, rows.Err()
}

// StoreFeatures persists extracted feature rows. Re-insertion with the same
// (event_id, horizon, feature_version) replaces the row on merge.
func (s *CHOutcomeStore) StoreFeatures(ctx context.Context, feats []models.ModelFeature) error {
	if len(feats) == 0 {
		return nil
	}
	q := fmt.Sprintf(`
        INSERT INTO %s.model_features
            (event_id, horizon, feature_version, features, base_score,
             sector, event_type, market_vol, info_tier, extracted_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, s.database)
	for _, f := range feats {
		if _, err := s.db.ExecContext(ctx, q,
			f.EventID, f.Horizon, f.FeatureVersion, f.FeatureMap, f.BaseScore,
			f.Sector, f.EventType, f.MarketVol, f.InfoTier, f.ExtractedAt,
		); err != nil {
			return fmt.Errorf("store features: %w", err)
		}
	}
	return nil
}
