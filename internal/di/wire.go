//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/config"
	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideCacheService,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideStatusTracker,

		// Repositories
		ProvideEventStore,
		ProvideOutcomeStore,
		ProvideStatsStore,
		ProvideModelRegistry,
		ProvidePredictionStore,
		ProvideArtifactStore,

		// Domain services
		ProvideAggregator,
		ProvideMonitor,

		// Use cases
		ProvideTrainPipeline,
		ProvideScoringService,
		ProvideStatsService,
		ProvideMonitorService,
		ProvideOutcomeHandler,

		// Delivery
		ProvideQueue,
		ProvideScoringHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
