package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/models"
)

type fakeEventStore struct {
	events []models.EventRef
	closes []models.PriceClose
}

func (f *fakeEventStore) ListEvents(context.Context, string, string) ([]models.EventRef, error) {
	return f.events, nil
}

func (f *fakeEventStore) ListPairs(context.Context) ([][2]string, error) { return nil, nil }

func (f *fakeEventStore) GetCloses(context.Context, string) ([]models.PriceClose, error) {
	return f.closes, nil
}

func day(n int) time.Time {
	return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

// closesFrom builds n consecutive daily closes starting at day(0) with the
// given prices.
func closesFrom(prices ...float64) []models.PriceClose {
	out := make([]models.PriceClose, len(prices))
	for i, p := range prices {
		out[i] = models.PriceClose{Ticker: "AAPL", Date: day(i), Close: p}
	}
	return out
}

func flatCloses(n int, price float64) []models.PriceClose {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = price
	}
	return closesFrom(prices...)
}

func TestComputeFullCoverage(t *testing.T) {
	prices := make([]float64, 30)
	prices[0] = 100 // base close, day before the event
	for i := 1; i < len(prices); i++ {
		prices[i] = 110 // +10% at every post-event position
	}
	store := &fakeEventStore{
		events: []models.EventRef{{EventID: "e1", EventDate: day(1)}},
		closes: closesFrom(prices...),
	}
	agg := NewAggregator(store, nil, func() time.Time { return day(40) })

	action, err := agg.Compute(context.Background(), "AAPL", "earnings")
	require.NoError(t, err)
	require.Equal(t, models.StatsActionUpdate, action.Action)
	require.NotNil(t, action.Payload)

	st := action.Payload
	assert.Equal(t, 1, st.SampleSize)
	assert.Equal(t, 1.0, st.WinRate)
	assert.InDelta(t, 10.0, st.MeanMove1D, 1e-9)
	assert.InDelta(t, 10.0, st.MeanMove5D, 1e-9)
	assert.InDelta(t, 10.0, st.MeanMove20D, 1e-9)
	assert.InDelta(t, 10.0, st.AvgAbsMove1D, 1e-9)
	assert.Equal(t, day(40).UTC(), st.UpdatedAt)
}

func TestComputeEventDayCloseNotBase(t *testing.T) {
	// The close printed on the event day is neither the base nor a post-event
	// position; the move is measured from the last close strictly before the
	// event day, even when the event carries an intraday timestamp.
	prices := make([]float64, 30)
	prices[0] = 100 // base, day before the event
	prices[1] = 200 // event-day close, skipped on both sides
	for i := 2; i < len(prices); i++ {
		prices[i] = 220
	}
	store := &fakeEventStore{
		events: []models.EventRef{{EventID: "e1", EventDate: day(1).Add(14*time.Hour + 30*time.Minute)}},
		closes: closesFrom(prices...),
	}
	agg := NewAggregator(store, nil, nil)

	action, err := agg.Compute(context.Background(), "AAPL", "earnings")
	require.NoError(t, err)
	require.Equal(t, models.StatsActionUpdate, action.Action)
	assert.Equal(t, 1, action.Payload.SampleSize)
	assert.InDelta(t, 120.0, action.Payload.MeanMove1D, 1e-9)
	assert.InDelta(t, 120.0, action.Payload.MeanMove5D, 1e-9)
	assert.InDelta(t, 120.0, action.Payload.MeanMove20D, 1e-9)
}

func TestComputePartialCoverageExcluded(t *testing.T) {
	// Base, event-day close, then only 9 post-event closes: 1d and 5d
	// coverage, no 20d.
	store := &fakeEventStore{
		events: []models.EventRef{{EventID: "e1", EventDate: day(1)}},
		closes: flatCloses(11, 100),
	}
	agg := NewAggregator(store, nil, nil)

	action, err := agg.Compute(context.Background(), "AAPL", "earnings")
	require.NoError(t, err)
	assert.Equal(t, models.StatsActionDelete, action.Action)
	assert.Nil(t, action.Payload)
}

func TestComputeMixedCoverage(t *testing.T) {
	// Two events: the first has full 20-close coverage, the second lies too
	// close to the end of the price history and drops out.
	store := &fakeEventStore{
		events: []models.EventRef{
			{EventID: "covered", EventDate: day(1)},
			{EventID: "partial", EventDate: day(21)},
		},
		closes: flatCloses(25, 100),
	}
	agg := NewAggregator(store, nil, nil)

	action, err := agg.Compute(context.Background(), "AAPL", "earnings")
	require.NoError(t, err)
	require.Equal(t, models.StatsActionUpdate, action.Action)
	assert.Equal(t, 1, action.Payload.SampleSize)
}

func TestComputeNoPriceHistory(t *testing.T) {
	store := &fakeEventStore{
		events: []models.EventRef{{EventID: "e1", EventDate: day(0)}},
	}
	agg := NewAggregator(store, nil, nil)

	action, err := agg.Compute(context.Background(), "AAPL", "earnings")
	require.NoError(t, err)
	assert.Equal(t, models.StatsActionDelete, action.Action)
}

func TestComputeNoCloseBeforeEvent(t *testing.T) {
	// One event precedes the whole price history, the other falls on the
	// first trading day: neither has a close strictly before it.
	store := &fakeEventStore{
		events: []models.EventRef{
			{EventID: "e1", EventDate: day(-5)},
			{EventID: "e2", EventDate: day(0)},
		},
		closes: flatCloses(30, 100),
	}
	agg := NewAggregator(store, nil, nil)

	action, err := agg.Compute(context.Background(), "AAPL", "earnings")
	require.NoError(t, err)
	assert.Equal(t, models.StatsActionDelete, action.Action)
}

func TestComputeWinRate(t *testing.T) {
	// Two fully covered events, one up and one down at the 1d position.
	prices := make([]float64, 60)
	for i := range prices {
		prices[i] = 100
	}
	prices[2] = 105 // event A 1d position: +5%
	prices[32] = 95 // event B 1d position: -5%
	store := &fakeEventStore{
		events: []models.EventRef{
			{EventID: "a", EventDate: day(1)},
			{EventID: "b", EventDate: day(31)},
		},
		closes: closesFrom(prices...),
	}
	agg := NewAggregator(store, nil, nil)

	action, err := agg.Compute(context.Background(), "AAPL", "earnings")
	require.NoError(t, err)
	require.Equal(t, models.StatsActionUpdate, action.Action)
	assert.Equal(t, 2, action.Payload.SampleSize)
	assert.InDelta(t, 0.5, action.Payload.WinRate, 1e-9)
	assert.InDelta(t, 0.0, action.Payload.MeanMove1D, 1e-9)
	assert.InDelta(t, 5.0, action.Payload.AvgAbsMove1D, 1e-9)
}

func TestComputeDeterministic(t *testing.T) {
	store := &fakeEventStore{
		events: []models.EventRef{{EventID: "e1", EventDate: day(1)}},
		closes: flatCloses(30, 100),
	}
	now := func() time.Time { return day(40) }
	agg := NewAggregator(store, nil, now)

	first, err := agg.Compute(context.Background(), "AAPL", "earnings")
	require.NoError(t, err)
	second, err := agg.Compute(context.Background(), "AAPL", "earnings")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
