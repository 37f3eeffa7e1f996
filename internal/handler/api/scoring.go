package api

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/models"
	domrepo "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/repository"
	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/service/ratelimit"
	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/usecase"
	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/cache"
	xhttp "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/http"
	xlogger "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/logger"
	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/queue"
)

// ScoringHandler exposes prediction, training, stats and monitoring over
// HTTP. Long-running work (training, stats sweeps) is enqueued and answered
// with a job ID the caller can poll or watch.
type ScoringHandler struct {
	logger  *xlogger.Logger
	scoring *usecase.ScoringService
	stats   *usecase.StatsService
	monitor *usecase.MonitorService
	queue   queue.QueueService
	status  *queue.StatusTracker
	limiter *ratelimit.Limiter
}

func NewScoringHandler(
	logger *xlogger.Logger,
	scoring *usecase.ScoringService,
	stats *usecase.StatsService,
	monitor *usecase.MonitorService,
	q queue.QueueService,
	status *queue.StatusTracker,
) *ScoringHandler {
	return &ScoringHandler{
		logger:  logger,
		scoring: scoring,
		stats:   stats,
		monitor: monitor,
		queue:   q,
		status:  status,
		limiter: ratelimit.New(),
	}
}

func (h *ScoringHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/predict", h.Predict)
	g.POST("/train", h.Train)
	g.GET("/jobs/:id", h.JobStatus)
	g.GET("/jobs/:id/watch", h.WatchJob)
	g.GET("/models/:name/health", h.ModelHealth)
	g.GET("/models/:name/recommendation", h.Recommendation)
	g.POST("/stats/refresh", h.RefreshStats)
	g.GET("/stats", h.Stats)
}

// Predict scores a batch of events with the active model release.
func (h *ScoringHandler) Predict(c echo.Context) error {
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.scoring.Predict(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, usecase.ErrNoActiveModel) {
			return xhttp.AppErrorResponse(c, xhttp.NotTrainedError(err.Error()).WithError(err))
		}
		h.logger.Error("predict usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

// Train enqueues a training run and returns its job ID. One train request
// per (model, horizon) per minute; concurrency is additionally guarded by
// the pipeline's distributed lock.
func (h *ScoringHandler) Train(c echo.Context) error {
	req := &models.TrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	horizon := domrepo.NormalizeHorizon(req.Horizon)

	rlKey := cache.GenerateKeyWithParams("train", req.Model, string(horizon))
	if !h.limiter.Allow(rlKey, 1, 1.0/60) {
		return xhttp.TooManyRequestsResponse(c, "training recently requested for this model, try again later")
	}

	jobID, err := h.queue.PublishMessage(c.Request().Context(), usecase.MsgTrainModel, usecase.TrainJobPayload{
		Model:   req.Model,
		Horizon: string(horizon),
	})
	if err != nil {
		h.logger.Error("train enqueue error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.AcceptedResponse(c, echo.Map{"job_id": jobID})
}

// JobStatus returns the persisted status record of one enqueued job.
func (h *ScoringHandler) JobStatus(c echo.Context) error {
	id := c.Param("id")
	st, err := h.status.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return xhttp.NotFoundResponse(c, "unknown or expired job")
		}
		h.logger.Error("job status error", xlogger.String("job_id", id), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, st)
}

// ModelHealth returns the full health report of the active model for the
// requested horizon.
func (h *ScoringHandler) ModelHealth(c echo.Context) error {
	req := &models.HealthRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	name := c.Param("name")
	if name == "" {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("model name is required"))
	}

	report, err := h.monitor.Health(c.Request().Context(), name, domrepo.NormalizeHorizon(req.Horizon))
	if err != nil {
		h.logger.Error("model health error", xlogger.String("model", name), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, report)
}

// Recommendation evaluates the retrain signals for one model and horizon.
func (h *ScoringHandler) Recommendation(c echo.Context) error {
	req := &models.HealthRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	name := c.Param("name")
	if name == "" {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("model name is required"))
	}

	rec, err := h.monitor.Recommend(c.Request().Context(), name, domrepo.NormalizeHorizon(req.Horizon))
	if err != nil {
		h.logger.Error("recommendation error", xlogger.String("model", name), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, rec)
}

// RefreshStats enqueues a stats recomputation: one pair when both fields are
// set, a full sweep otherwise.
func (h *ScoringHandler) RefreshStats(c echo.Context) error {
	req := &models.StatsRefreshRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if (req.Ticker == "") != (req.EventType == "") {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("ticker and event_type must be set together"))
	}
	if req.Ticker == "" && !h.limiter.Allow("stats:sweep", 1, 1.0/300) {
		return xhttp.TooManyRequestsResponse(c, "a full stats sweep was recently requested, try again later")
	}

	jobID, err := h.queue.PublishMessage(c.Request().Context(), usecase.MsgStatsRefresh, usecase.StatsRefreshPayload{
		Ticker:    req.Ticker,
		EventType: req.EventType,
	})
	if err != nil {
		h.logger.Error("stats refresh enqueue error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.AcceptedResponse(c, echo.Map{"job_id": jobID})
}

// Stats serves one (ticker, event_type) aggregate.
func (h *ScoringHandler) Stats(c echo.Context) error {
	req := &models.StatsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	st, err := h.stats.Get(c.Request().Context(), req.Ticker, req.EventType)
	if err != nil {
		h.logger.Error("stats get error",
			xlogger.String("ticker", req.Ticker),
			xlogger.String("event_type", req.EventType),
			xlogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, err)
	}
	if st == nil {
		return xhttp.NotFoundResponse(c, "no aggregate for this pair")
	}
	return xhttp.SuccessResponse(c, st)
}
