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

// CHEventStore implements EventStore backed by ClickHouse.
type CHEventStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHEventStore(ch *pkgch.Client, database string) *CHEventStore {
	if database == "" {
		database = "impactradar"
	}
	return &CHEventStore{db: ch.DB(), database: database}
}

// SetLogger injects a structured logger.
func (s *CHEventStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHEventStore) ListEvents(ctx context.Context, ticker, eventType string) ([]models.EventRef, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT event_id, event_date
        FROM %s.events FINAL
        WHERE ticker = ? AND event_type = ?
        ORDER BY event_date ASC
    `, s.database)
	rows, err := s.db.QueryContext(ctx, q, ticker, eventType)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse list_events query error",
				applogger.String("ticker", ticker),
				applogger.String("event_type", eventType),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	out := make([]models.EventRef, 0, 64)
	for rows.Next() {
		var e models.EventRef
		if err := rows.Scan(&e.EventID, &e.EventDate); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse list_events ok",
			applogger.String("ticker", ticker),
			applogger.String("event_type", eventType),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHEventStore) ListPairs(ctx context.Context) ([][2]string, error) {
	q := fmt.Sprintf(`
        SELECT DISTINCT ticker, event_type
        FROM %s.events
        ORDER BY ticker, event_type
    `, s.database)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list pairs: %w", err)
	}
	defer rows.Close()

	out := make([][2]string, 0, 128)
	for rows.Next() {
		var ticker, eventType string
		if err := rows.Scan(&ticker, &eventType); err != nil {
			return nil, fmt.Errorf("scan pair: %w", err)
		}
		out = append(out, [2]string{ticker, eventType})
	}
	return out, rows.Err()
}

func (s *CHEventStore) GetCloses(ctx context.Context, ticker string) ([]models.PriceClose, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT ticker, date, close
        FROM %s.price_closes FINAL
        WHERE ticker = ?
        ORDER BY date ASC
    `, s.database)
	rows, err := s.db.QueryContext(ctx, q, ticker)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse get_closes query error",
				applogger.String("ticker", ticker),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get closes: %w", err)
	}
	defer rows.Close()

	out := make([]models.PriceClose, 0, 1024)
	for rows.Next() {
		var c models.PriceClose
		if err := rows.Scan(&c.Ticker, &c.Date, &c.Close); err != nil {
			return nil, fmt.Errorf("scan close: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse get_closes ok",
			applogger.String("ticker", ticker),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}
