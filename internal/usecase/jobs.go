package usecase

import (
	"context"
	"fmt"

	domrepo "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/repository"
	applogger "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/logger"
	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/queue"
)

// Queue message types.
const (
	MsgTrainModel   = "train.model"
	MsgStatsRefresh = "stats.refresh"
	MsgMonitorSweep = "monitor.sweep"
)

// TrainJobPayload selects the (model, horizon) to train.
type TrainJobPayload struct {
	Model   string `json:"model"`
	Horizon string `json:"horizon"`
}

// StatsRefreshPayload selects one pair to refresh; empty fields mean a full
// sweep over every known pair.
type StatsRefreshPayload struct {
	Ticker    string `json:"ticker"`
	EventType string `json:"event_type"`
}

// MonitorJobPayload selects the model to sweep.
type MonitorJobPayload struct {
	Model string `json:"model"`
}

// TrainJob runs the training pipeline off the queue.
type TrainJob struct {
	pipeline *TrainPipeline
	scoring  *ScoringService
	logger   *applogger.Logger
}

func NewTrainJob(pipeline *TrainPipeline, scoring *ScoringService, lgr *applogger.Logger) *TrainJob {
	return &TrainJob{pipeline: pipeline, scoring: scoring, logger: lgr}
}

func (j *TrainJob) Name() string { return "train-model" }
func (j *TrainJob) Type() string { return MsgTrainModel }

func (j *TrainJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[TrainJobPayload](payload)
	if err != nil {
		return fmt.Errorf("train job payload: %w", err)
	}
	horizon := domrepo.NormalizeHorizon(p.Horizon)

	res, err := j.pipeline.Run(ctx, p.Model, horizon)
	if err != nil {
		return err
	}
	if res.Promoted && j.scoring != nil {
		// Drop the serving cache so the next request picks up the new
		// release instead of waiting for the version check.
		j.scoring.Invalidate(p.Model, horizon)
	}
	return nil
}

// StatsRefreshJob runs stats recomputation off the queue.
type StatsRefreshJob struct {
	stats  *StatsService
	logger *applogger.Logger
}

func NewStatsRefreshJob(stats *StatsService, lgr *applogger.Logger) *StatsRefreshJob {
	return &StatsRefreshJob{stats: stats, logger: lgr}
}

func (j *StatsRefreshJob) Name() string { return "stats-refresh" }
func (j *StatsRefreshJob) Type() string { return MsgStatsRefresh }

func (j *StatsRefreshJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[StatsRefreshPayload](payload)
	if err != nil {
		return fmt.Errorf("stats refresh payload: %w", err)
	}

	if p.Ticker != "" && p.EventType != "" {
		return j.stats.RefreshPair(ctx, p.Ticker, p.EventType)
	}
	_, failed, err := j.stats.RefreshAll(ctx)
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("stats sweep: %d pairs failed", failed)
	}
	return nil
}

// MonitorJob runs a retrain-signal sweep off the queue.
type MonitorJob struct {
	monitor *MonitorService
	logger  *applogger.Logger
}

func NewMonitorJob(monitor *MonitorService, lgr *applogger.Logger) *MonitorJob {
	return &MonitorJob{monitor: monitor, logger: lgr}
}

func (j *MonitorJob) Name() string { return "monitor-sweep" }
func (j *MonitorJob) Type() string { return MsgMonitorSweep }

func (j *MonitorJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[MonitorJobPayload](payload)
	if err != nil {
		return fmt.Errorf("monitor job payload: %w", err)
	}
	if p.Model == "" {
		return fmt.Errorf("monitor job: model is required")
	}
	j.monitor.Sweep(ctx, p.Model)
	return nil
}
