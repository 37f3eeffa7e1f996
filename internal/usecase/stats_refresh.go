package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/models"
	domrepo "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/repository"
	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/service/stats"
	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/cache"
	applogger "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/logger"
)

// statsCacheTTL bounds how stale a served aggregate can be between
// refreshes.
const statsCacheTTL = 15 * time.Minute

// StatsService recomputes and serves per-(ticker, event_type) aggregates.
// Refreshes write through to the store and invalidate the read cache, so a
// Get after a refresh never serves the previous aggregate for longer than
// one cache miss.
type StatsService struct {
	aggregator *stats.Aggregator
	store      domrepo.StatsStore
	events     domrepo.EventStore
	cache      cache.Service
	metrics    domrepo.Metrics
	logger     *applogger.Logger
}

func NewStatsService(
	aggregator *stats.Aggregator,
	store domrepo.StatsStore,
	events domrepo.EventStore,
	c cache.Service,
	metrics domrepo.Metrics,
	lgr *applogger.Logger,
) *StatsService {
	return &StatsService{
		aggregator: aggregator,
		store:      store,
		events:     events,
		cache:      c,
		metrics:    metrics,
		logger:     lgr,
	}
}

func statsCacheKey(ticker, eventType string) string {
	return cache.GenerateKeyWithParams("stats", ticker, eventType)
}

// RefreshPair recomputes one (ticker, event_type) aggregate and applies the
// resulting action: upsert on update, row removal on delete.
func (s *StatsService) RefreshPair(ctx context.Context, ticker, eventType string) error {
	action, err := s.aggregator.Compute(ctx, ticker, eventType)
	if err != nil {
		return err
	}

	switch action.Action {
	case models.StatsActionUpdate:
		if err := s.store.Upsert(ctx, action.Payload); err != nil {
			return err
		}
	case models.StatsActionDelete:
		if err := s.store.Delete(ctx, ticker, eventType); err != nil {
			return err
		}
	default:
		return fmt.Errorf("refresh stats %s/%s: unknown action %q", ticker, eventType, action.Action)
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, statsCacheKey(ticker, eventType)); err != nil && s.logger != nil {
			s.logger.Warn("stats cache invalidation failed",
				applogger.String("ticker", ticker),
				applogger.String("event_type", eventType),
				applogger.Error(err),
			)
		}
	}
	return nil
}

// RefreshAll recomputes every known (ticker, event_type) pair. Per-pair
// failures are counted and logged but do not stop the sweep; only a
// cancelled context aborts it.
func (s *StatsService) RefreshAll(ctx context.Context) (refreshed, failed int, err error) {
	pairs, err := s.events.ListPairs(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list stats pairs: %w", err)
	}

	start := time.Now()
	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return refreshed, failed, err
		}
		if rerr := s.RefreshPair(ctx, pair[0], pair[1]); rerr != nil {
			failed++
			if s.logger != nil {
				s.logger.Error("stats refresh failed",
					applogger.String("ticker", pair[0]),
					applogger.String("event_type", pair[1]),
					applogger.Error(rerr),
				)
			}
			if s.metrics != nil {
				s.metrics.RecordError("stats_refresh")
			}
			continue
		}
		refreshed++
	}

	if s.logger != nil {
		s.logger.Info("stats sweep finished",
			applogger.Int("pairs", len(pairs)),
			applogger.Int("refreshed", refreshed),
			applogger.Int("failed", failed),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	if s.metrics != nil {
		s.metrics.RecordLatency("stats_refresh_all", time.Since(start).Seconds())
	}
	return refreshed, failed, nil
}

// Get serves one aggregate, cache first. A nil result with nil error means
// the pair has no aggregate (never computed, or deleted for lack of fully
// covered events).
func (s *StatsService) Get(ctx context.Context, ticker, eventType string) (*models.EventStats, error) {
	key := statsCacheKey(ticker, eventType)
	if s.cache != nil {
		var cached models.EventStats
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	st, err := s.store.Get(ctx, ticker, eventType)
	if err != nil {
		return nil, err
	}
	if st != nil && s.cache != nil {
		if cerr := s.cache.Set(ctx, key, st, statsCacheTTL); cerr != nil && s.logger != nil {
			s.logger.Warn("stats cache set failed", applogger.String("ticker", ticker), applogger.Error(cerr))
		}
	}
	return st, nil
}
