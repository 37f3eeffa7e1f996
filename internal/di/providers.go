package di

import (
	"context"
	"fmt"
	"time"

	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/repository"
	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/handler/api"
	internalrepo "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/repository"
	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/service/monitor"
	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/service/stats"
	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/usecase"
	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/cache"
	pkgch "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/clickhouse"
	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/config"
	pkgkafka "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/kafka"
	applogger "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/logger"
	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/metrics"
	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/queue"
	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/server"
)

// ProvideLogger creates the application logger from configuration.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and initializes the
// schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.SchemaStatements(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideRedisCache creates the shared Redis cache.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	c, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

// ProvideCacheService layers a small in-process LRU in front of Redis for
// read-heavy keys; locks and counters still go straight to Redis.
func ProvideCacheService(rc *cache.RedisCache) cache.Service {
	return cache.NewLayeredCache(rc)
}

// ProvideStatusTracker creates the job status tracker.
func ProvideStatusTracker(c cache.Service, cfg *config.Config) *queue.StatusTracker {
	return queue.NewStatusTracker(c, cfg.Queue.StatusTTL)
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates the Kafka consumer for labeled outcomes.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideEventStore creates the ClickHouse event/price reader.
func ProvideEventStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.EventStore {
	s := internalrepo.NewCHEventStore(ch, cfg.ClickHouse.Database)
	s.SetLogger(l)
	return s
}

// ProvideOutcomeStore creates the ClickHouse outcome/feature store.
func ProvideOutcomeStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.OutcomeStore {
	s := internalrepo.NewCHOutcomeStore(ch, cfg.ClickHouse.Database)
	s.SetLogger(l)
	return s
}

// ProvideStatsStore creates the ClickHouse stats store.
func ProvideStatsStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.StatsStore {
	s := internalrepo.NewCHStatsStore(ch, cfg.ClickHouse.Database)
	s.SetLogger(l)
	return s
}

// ProvideModelRegistry creates the ClickHouse model registry.
func ProvideModelRegistry(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.ModelRegistry {
	r := internalrepo.NewCHModelRegistry(ch, cfg.ClickHouse.Database)
	r.SetLogger(l)
	return r
}

// ProvidePredictionStore creates the ClickHouse prediction store.
func ProvidePredictionStore(ch *pkgch.Client, cfg *config.Config) repository.PredictionStore {
	return internalrepo.NewCHPredictionStore(ch, cfg.ClickHouse.Database)
}

// ProvideArtifactStore creates the filesystem artifact store.
func ProvideArtifactStore(cfg *config.Config, l *applogger.Logger) (repository.ArtifactStore, error) {
	s, err := internalrepo.NewFSArtifactStore(cfg.Artifacts.Dir)
	if err != nil {
		return nil, err
	}
	s.SetLogger(l)
	return s, nil
}

// ProvideAggregator creates the event stats aggregator.
func ProvideAggregator(events repository.EventStore, l *applogger.Logger) *stats.Aggregator {
	return stats.NewAggregator(events, l, nil)
}

// ProvideMonitor creates the model monitor with thresholds from config.
func ProvideMonitor(
	registry repository.ModelRegistry,
	outcomes repository.OutcomeStore,
	predictions repository.PredictionStore,
	cfg *config.Config,
	l *applogger.Logger,
) *monitor.Monitor {
	return monitor.New(registry, outcomes, predictions, monitor.Thresholds{
		MaxModelAgeDays: cfg.Monitor.MaxModelAgeDays,
		MinNewSamples:   cfg.Monitor.MinNewSamples,
		MaxAccuracyDrop: cfg.Monitor.MaxAccuracyDrop,
		AccuracyWindow:  cfg.Monitor.AccuracyWindow,
		PSIBins:         cfg.Monitor.PSIBins,
		KeyFeatures:     cfg.Monitor.KeyFeatures,
		DriftWindow:     cfg.Monitor.DriftWindow,
	}, l, nil)
}

// ProvideTrainPipeline creates the training pipeline.
func ProvideTrainPipeline(
	outcomes repository.OutcomeStore,
	registry repository.ModelRegistry,
	artifacts repository.ArtifactStore,
	producer *pkgkafka.Producer,
	c cache.Service,
	m repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.TrainPipeline {
	calibPub := internalrepo.NewKafkaPublisher(producer, cfg.Kafka.CalibrationTopic)
	return usecase.NewTrainPipeline(outcomes, registry, artifacts, calibPub, c, m, usecase.TrainConfig{
		FeatureVersion:  cfg.Scoring.FeatureVersion,
		CoverageLevels:  cfg.Scoring.CoverageLevels,
		DefaultCoverage: cfg.Scoring.DefaultCoverage,
		MinTrainSamples: cfg.Scoring.MinTrainSamples,
		LockTTL:         cfg.Queue.LockTTL,
	}, l)
}

// ProvideScoringService creates the prediction service.
func ProvideScoringService(
	registry repository.ModelRegistry,
	artifacts repository.ArtifactStore,
	predictions repository.PredictionStore,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.ScoringService {
	return usecase.NewScoringService(registry, artifacts, predictions, m, l)
}

// ProvideStatsService creates the stats refresh/read service.
func ProvideStatsService(
	agg *stats.Aggregator,
	store repository.StatsStore,
	events repository.EventStore,
	c cache.Service,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.StatsService {
	return usecase.NewStatsService(agg, store, events, c, m, l)
}

// ProvideMonitorService creates the monitoring service.
func ProvideMonitorService(mon *monitor.Monitor, producer *pkgkafka.Producer, m repository.Metrics, cfg *config.Config, l *applogger.Logger) *usecase.MonitorService {
	recPub := internalrepo.NewKafkaPublisher(producer, cfg.Kafka.RecommendationTopic)
	return usecase.NewMonitorService(mon, recPub, m, l)
}

// ProvideOutcomeHandler creates the Kafka handler for labeled outcomes.
func ProvideOutcomeHandler(outcomes repository.OutcomeStore, m repository.Metrics, cfg *config.Config, l *applogger.Logger) *usecase.OutcomeHandler {
	return usecase.NewOutcomeHandler(cfg.Kafka.OutcomeTopic, outcomes, m, l)
}

// ProvideQueue creates the Redis-backed job queue with all jobs registered.
func ProvideQueue(
	cfg *config.Config,
	rc *cache.RedisCache,
	tracker *queue.StatusTracker,
	pipeline *usecase.TrainPipeline,
	scoring *usecase.ScoringService,
	statsSvc *usecase.StatsService,
	monSvc *usecase.MonitorService,
	l *applogger.Logger,
) *queue.RedisQueue {
	q := queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		QueueSize:  cfg.Queue.QueueSize,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, rc.Client(), queue.ModeProducerConsumer, queue.WithStatusTracker(tracker))
	q.RegisterJobs([]queue.Job{
		usecase.NewTrainJob(pipeline, scoring, l),
		usecase.NewStatsRefreshJob(statsSvc, l),
		usecase.NewMonitorJob(monSvc, l),
	})
	return q
}

// ProvideScoringHandler creates the HTTP handler.
func ProvideScoringHandler(
	l *applogger.Logger,
	scoring *usecase.ScoringService,
	statsSvc *usecase.StatsService,
	monSvc *usecase.MonitorService,
	q *queue.RedisQueue,
	tracker *queue.StatusTracker,
) *api.ScoringHandler {
	return api.NewScoringHandler(l, scoring, statsSvc, monSvc, q, tracker)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler *api.ScoringHandler,
	q *queue.RedisQueue,
	consumer *pkgkafka.Consumer,
	oh *usecase.OutcomeHandler,
	chClient *pkgch.Client,
	rc *cache.RedisCache,
	producer *pkgkafka.Producer,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	if cfg.Kafka.LogTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Key:            "impactradar",
			Publisher:      internalrepo.NewKafkaPublisher(producer, cfg.Kafka.LogTopic),
		})
	}
	return server.New(cfg, l, handler, q, consumer, oh, chClient, rc, producer)
}
