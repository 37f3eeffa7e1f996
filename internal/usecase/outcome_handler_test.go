package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/models"
)

func TestOutcomeHandlerStoresValidOutcome(t *testing.T) {
	store := &fakeOutcomeStore{}
	h := NewOutcomeHandler("impact.outcomes.labeled", store, nil, nil)
	assert.Equal(t, "impact.outcomes.labeled", h.Topic())

	msg, err := json.Marshal(models.EventOutcome{
		EventID:           "e1",
		Ticker:            "AAPL",
		Horizon:           "5d",
		RealizedReturnPct: 3.2,
	})
	require.NoError(t, err)

	require.NoError(t, h.Handle(context.Background(), msg))
	require.Len(t, store.stored, 1)
	assert.Equal(t, "e1", store.stored[0].EventID)
	assert.Equal(t, "5d", store.stored[0].Horizon)
}

func TestOutcomeHandlerStoresAttachedFeatures(t *testing.T) {
	store := &fakeOutcomeStore{}
	h := NewOutcomeHandler("impact.outcomes.labeled", store, nil, nil)

	msg, err := json.Marshal(map[string]interface{}{
		"event_id":            "e2",
		"ticker":              "MSFT",
		"horizon":             "1d",
		"realized_return_pct": -1.1,
		"features": map[string]interface{}{
			"feature_map":     map[string]float64{"base_score": 2.5},
			"feature_version": "v1",
		},
	})
	require.NoError(t, err)

	require.NoError(t, h.Handle(context.Background(), msg))
	require.Len(t, store.storedFeats, 1)
	// Identity defaults to the outcome's when the feature row omits it.
	assert.Equal(t, "e2", store.storedFeats[0].EventID)
	assert.Equal(t, "1d", store.storedFeats[0].Horizon)
	assert.Equal(t, "v1", store.storedFeats[0].FeatureVersion)
	assert.InDelta(t, 2.5, store.storedFeats[0].FeatureMap["base_score"], 1e-12)
}

func TestOutcomeHandlerDropsMalformed(t *testing.T) {
	store := &fakeOutcomeStore{}
	h := NewOutcomeHandler("impact.outcomes.labeled", store, nil, nil)

	// Undecodable and invalid payloads are dropped, not retried.
	assert.NoError(t, h.Handle(context.Background(), []byte("not json")))
	assert.NoError(t, h.Handle(context.Background(), []byte(`{"event_id":"","horizon":"1d"}`)))
	assert.NoError(t, h.Handle(context.Background(), []byte(`{"event_id":"e1","horizon":"3d"}`)))
	assert.Empty(t, store.stored)
}
