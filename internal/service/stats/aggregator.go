package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/models"
	domrepo "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/repository"
	applogger "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/logger"
	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/util"
)

// Aggregator computes per-(ticker, event_type) return statistics across the
// 1d/5d/20d horizons. An event enters the aggregate only when closes exist at
// all three post-event positions; partial coverage excludes the event
// entirely so cross-horizon statistics stay comparable.
type Aggregator struct {
	events domrepo.EventStore
	logger *applogger.Logger
	now    func() time.Time
}

// NewAggregator builds an aggregator with an injected clock for
// deterministic tests.
func NewAggregator(events domrepo.EventStore, lgr *applogger.Logger, now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{events: events, logger: lgr, now: now}
}

// eventMoves holds the percent moves of one fully covered event.
type eventMoves struct {
	move1d  float64
	move5d  float64
	move20d float64
}

// Compute returns an update action with the recomputed stats payload, or a
// delete action when no event has complete multi-horizon coverage. Pure
// given fixed event and price data: repeated calls yield identical payloads.
func (a *Aggregator) Compute(ctx context.Context, ticker, eventType string) (models.StatsAction, error) {
	events, err := a.events.ListEvents(ctx, ticker, eventType)
	if err != nil {
		return models.StatsAction{}, fmt.Errorf("list events %s/%s: %w", ticker, eventType, err)
	}

	closes, err := a.events.GetCloses(ctx, ticker)
	if err != nil {
		return models.StatsAction{}, fmt.Errorf("get closes %s: %w", ticker, err)
	}
	if len(closes) == 0 {
		// Absent price history is a delete, not an error.
		return models.StatsAction{Action: models.StatsActionDelete}, nil
	}

	moves := make([]eventMoves, 0, len(events))
	for _, ev := range events {
		m, ok := movesForEvent(closes, ev.EventDate)
		if !ok {
			continue
		}
		moves = append(moves, m)
	}

	if len(moves) == 0 {
		return models.StatsAction{Action: models.StatsActionDelete}, nil
	}

	n := len(moves)
	m1 := make([]float64, n)
	m5 := make([]float64, n)
	m20 := make([]float64, n)
	a1 := make([]float64, n)
	a5 := make([]float64, n)
	a20 := make([]float64, n)
	wins := 0
	for i, m := range moves {
		m1[i], m5[i], m20[i] = m.move1d, m.move5d, m.move20d
		a1[i], a5[i], a20[i] = abs(m.move1d), abs(m.move5d), abs(m.move20d)
		if m.move1d > 0 {
			wins++
		}
	}

	payload := &models.EventStats{
		Ticker:       ticker,
		EventType:    eventType,
		SampleSize:   n,
		WinRate:      float64(wins) / float64(n),
		MeanMove1D:   stat.Mean(m1, nil),
		MeanMove5D:   stat.Mean(m5, nil),
		MeanMove20D:  stat.Mean(m20, nil),
		AvgAbsMove1D: stat.Mean(a1, nil),
		AvgAbsMove5D: stat.Mean(a5, nil),
		AvgAbsMove20: stat.Mean(a20, nil),
		UpdatedAt:    a.now().UTC(),
	}

	if a.logger != nil {
		a.logger.Debug("event stats computed",
			applogger.String("ticker", ticker),
			applogger.String("event_type", eventType),
			applogger.Int("sample_size", n),
			applogger.Int("excluded", len(events)-n),
		)
	}
	return models.StatsAction{Action: models.StatsActionUpdate, Payload: payload}, nil
}

// movesForEvent locates the base close strictly before the event's calendar
// day and the closes at the 1st, 5th and 20th trading positions strictly
// after it. A close on the event day itself is neither the base nor a
// post-event position. The event qualifies only when all four closes exist.
func movesForEvent(closes []models.PriceClose, eventDate time.Time) (eventMoves, bool) {
	eventDay := util.TruncateToDay(eventDate)
	// closes are in ascending date order; idx is the first close on or after
	// the event day, so closes[idx-1] is the last close strictly before it.
	idx := sort.Search(len(closes), func(i int) bool {
		return !closes[i].Date.Before(eventDay)
	})
	if idx == 0 {
		return eventMoves{}, false // no close before the event
	}
	base := closes[idx-1].Close
	if base <= 0 {
		return eventMoves{}, false
	}
	post := idx
	if post < len(closes) && util.TruncateToDay(closes[post].Date).Equal(eventDay) {
		post++ // skip the event-day close
	}
	last := post + 19 // 20th trading position after the event
	if last >= len(closes) {
		return eventMoves{}, false
	}
	pct := func(offset int) float64 {
		return (closes[post+offset-1].Close - base) / base * 100
	}
	return eventMoves{
		move1d:  pct(1),
		move5d:  pct(5),
		move20d: pct(20),
	}, true
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
