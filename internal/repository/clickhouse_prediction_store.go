package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/models"
	domrepo "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/repository"
	pkgch "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/clickhouse"
)

// CHPredictionStore implements PredictionStore backed by ClickHouse.
type CHPredictionStore struct {
	db       *sql.DB
	database string
}

func NewCHPredictionStore(ch *pkgch.Client, database string) *CHPredictionStore {
	if database == "" {
		database = "impactradar"
	}
	return &CHPredictionStore{db: ch.DB(), database: database}
}

func (s *CHPredictionStore) Store(ctx context.Context, recs []models.PredictionRecord) error {
	if len(recs) == 0 {
		return nil
	}
	// Multi-row VALUES insert, chunked to limit statement size.
	const chunkSize = 2000
	for start := 0; start < len(recs); start += chunkSize {
		end := start + chunkSize
		if end > len(recs) {
			end = len(recs)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*5)
		for _, rec := range recs[start:end] {
			if rec.EventID == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?)")
			args = append(args, rec.EventID, rec.Model, rec.Horizon, rec.PredictedReturn, rec.CreatedAt)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf(
			"INSERT INTO %s.predictions (event_id, model, horizon, predicted_return, created_at) VALUES %s",
			s.database, strings.Join(values, ","),
		)
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("store predictions: %w", err)
		}
	}
	return nil
}

// JoinOutcomes pairs persisted predictions with realized outcomes for
// accuracy tracking, newest first.
func (s *CHPredictionStore) JoinOutcomes(ctx context.Context, model string, horizon domrepo.Horizon, since time.Time) ([]models.PredictionOutcome, error) {
	q := fmt.Sprintf(`
        SELECT p.event_id, p.predicted_return, o.realized_return_pct
        FROM %s.predictions AS p
        INNER JOIN %s.event_outcomes AS o FINAL
            ON o.event_id = p.event_id AND o.horizon = p.horizon
        WHERE p.model = ? AND p.horizon = ? AND p.created_at >= ?
        ORDER BY p.created_at DESC
    `, s.database, s.database)
	rows, err := s.db.QueryContext(ctx, q, model, string(horizon), since)
	if err != nil {
		return nil, fmt.Errorf("join outcomes: %w", err)
	}
	defer rows.Close()

	out := make([]models.PredictionOutcome, 0, 256)
	for rows.Next() {
		var po models.PredictionOutcome
		if err := rows.Scan(&po.EventID, &po.Predicted, &po.Actual); err != nil {
			return nil, fmt.Errorf("scan prediction outcome: %w", err)
		}
		out = append(out, po)
	}
	return out, rows.Err()
}
