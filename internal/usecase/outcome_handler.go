package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/models"
	domrepo "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/repository"
	applogger "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/logger"
)

// labeledOutcome is the wire shape on the ingest topic: the realized outcome
// plus, optionally, the feature row the labeling pipeline extracted for it.
type labeledOutcome struct {
	models.EventOutcome
	Features *models.ModelFeature `json:"features,omitempty"`
}

// OutcomeHandler consumes labeled outcomes off the ingest topic and persists
// them. Outcomes are immutable per (event_id, horizon); re-delivery of the
// same message is a harmless re-insert collapsed by the storage engine.
type OutcomeHandler struct {
	topic    string
	outcomes domrepo.OutcomeStore
	metrics  domrepo.Metrics
	logger   *applogger.Logger
}

func NewOutcomeHandler(topic string, outcomes domrepo.OutcomeStore, metrics domrepo.Metrics, lgr *applogger.Logger) *OutcomeHandler {
	return &OutcomeHandler{topic: topic, outcomes: outcomes, metrics: metrics, logger: lgr}
}

// Topic returns the ingest topic this handler subscribes to.
func (h *OutcomeHandler) Topic() string { return h.topic }

// Handle decodes and stores one labeled outcome. Malformed messages are
// rejected permanently; storage errors are returned so the consumer retries.
func (h *OutcomeHandler) Handle(ctx context.Context, data []byte) error {
	var msg labeledOutcome
	if err := json.Unmarshal(data, &msg); err != nil {
		// Undecodable payloads never become valid on retry; count and drop.
		if h.metrics != nil {
			h.metrics.RecordError("outcome_decode")
		}
		if h.logger != nil {
			h.logger.Error("labeled outcome undecodable", applogger.Error(err))
		}
		return nil
	}

	o := msg.EventOutcome
	if o.EventID == "" || !domrepo.IsValidHorizon(domrepo.Horizon(o.Horizon)) {
		if h.metrics != nil {
			h.metrics.RecordError("outcome_invalid")
		}
		if h.logger != nil {
			h.logger.Warn("labeled outcome rejected",
				applogger.String("event_id", o.EventID),
				applogger.String("horizon", o.Horizon),
			)
		}
		return nil
	}

	if err := h.outcomes.Store(ctx, &o); err != nil {
		return fmt.Errorf("store labeled outcome %s/%s: %w", o.EventID, o.Horizon, err)
	}

	if f := msg.Features; f != nil {
		if f.EventID == "" {
			f.EventID = o.EventID
		}
		if f.Horizon == "" {
			f.Horizon = o.Horizon
		}
		if err := h.outcomes.StoreFeatures(ctx, []models.ModelFeature{*f}); err != nil {
			return fmt.Errorf("store features %s/%s: %w", f.EventID, f.Horizon, err)
		}
	}

	if h.logger != nil {
		h.logger.Debug("labeled outcome stored",
			applogger.String("event_id", o.EventID),
			applogger.String("ticker", o.Ticker),
			applogger.String("horizon", o.Horizon),
		)
	}
	return nil
}
