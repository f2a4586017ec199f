//go:build wireinject
// +build wireinject

package di

import (
	"MarkWatch/pkg/config"
	"MarkWatch/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideRedisClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideStateStore,
		ProvideBandStore,
		ProvideStampStore,
		ProvideJobStateStore,
		ProvideKlineStore,
		ProvideNewsStore,
		ProvideRoundStore,
		ProvideTickHistory,
		ProvideTickPublisher,
		ProvideRoundPublisher,

		// External services
		ProvideExchange,
		ProvideExchangeIface,
		ProvidePriceStream,
		ProvidePriceCache,
		ProvidePriceSource,
		ProvideBytesCache,
		ProvideNewsFetcher,
		ProvideAnalysisPipeline,

		// Use cases
		ProvideTickProcessor,
		ProvideTickCollector,
		ProvidePriceTicksHandler,
		ProvideEventFeed,
		ProvideKlineFetchJob,
		ProvideWorkQueue,
		ProvideMarketSync,
		ProvideNewsSync,
		ProvideLongformRefresher,
		ProvideBriefingBuilder,
		ProvideTradeExecutor,
		ProvideRoundRunner,
		ProvideAnalysisGuard,
		ProvideMarketMonitor,
		ProvideRegistry,
		ProvideScheduler,
		ProvideMarketQuery,

		// HTTP handlers
		ProvideSchedulerHandler,
		ProvideMarketHandler,
		ProvideRouter,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
