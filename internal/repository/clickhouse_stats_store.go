package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/models"
	pkgch "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/clickhouse"
	applogger "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/logger"
)

// CHStatsStore implements StatsStore backed by ClickHouse. Upserts ride on
// ReplacingMergeTree(updated_at); deletes use a lightweight DELETE mutation
// because an absent row is semantically different from a zeroed one.
type CHStatsStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHStatsStore(ch *pkgch.Client, database string) *CHStatsStore {
	if database == "" {
		database = "impactradar"
	}
	return &CHStatsStore{db: ch.DB(), database: database}
}

// SetLogger injects a structured logger.
func (s *CHStatsStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHStatsStore) Upsert(ctx context.Context, st *models.EventStats) error {
	q := fmt.Sprintf(`
        INSERT INTO %s.event_stats
            (ticker, event_type, sample_size, win_rate,
             mean_move_1d, mean_move_5d, mean_move_20d,
             avg_abs_move_1d, avg_abs_move_5d, avg_abs_move_20d, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, s.database)
	if _, err := s.db.ExecContext(ctx, q,
		st.Ticker, st.EventType, uint32(st.SampleSize), st.WinRate,
		st.MeanMove1D, st.MeanMove5D, st.MeanMove20D,
		st.AvgAbsMove1D, st.AvgAbsMove5D, st.AvgAbsMove20, st.UpdatedAt,
	); err != nil {
		return fmt.Errorf("upsert stats: %w", err)
	}
	return nil
}

func (s *CHStatsStore) Delete(ctx context.Context, ticker, eventType string) error {
	start := time.Now()
	q := fmt.Sprintf(`DELETE FROM %s.event_stats WHERE ticker = ? AND event_type = ?`, s.database)
	if _, err := s.db.ExecContext(ctx, q, ticker, eventType); err != nil {
		return fmt.Errorf("delete stats: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse stats delete ok",
			applogger.String("ticker", ticker),
			applogger.String("event_type", eventType),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (s *CHStatsStore) Get(ctx context.Context, ticker, eventType string) (*models.EventStats, error) {
	q := fmt.Sprintf(`
        SELECT ticker, event_type, sample_size, win_rate,
               mean_move_1d, mean_move_5d, mean_move_20d,
               avg_abs_move_1d, avg_abs_move_5d, avg_abs_move_20d, updated_at
        FROM %s.event_stats FINAL
        WHERE ticker = ? AND event_type = ?
    `, s.database)
	var (
		st         models.EventStats
		sampleSize uint32
	)
	err := s.db.QueryRowContext(ctx, q, ticker, eventType).Scan(
		&st.Ticker, &st.EventType, &sampleSize, &st.WinRate,
		&st.MeanMove1D, &st.MeanMove5D, &st.MeanMove20D,
		&st.AvgAbsMove1D, &st.AvgAbsMove5D, &st.AvgAbsMove20, &st.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get stats: %w", err)
	}
	st.SampleSize = int(sampleSize)
	return &st, nil
}
