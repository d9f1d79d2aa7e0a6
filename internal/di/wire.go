//go:build wireinject
// +build wireinject

package di

import (
	"ChartPulse/pkg/config"
	"ChartPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisClient,
		ProvideCache,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideStorage,
		ProvidePublisher,

		// Market data
		ProvideYahoo,
		ProvideCrypto,
		ProvideForex,
		ProvideWorldBank,
		ProvideHaver,

		// Forecasting and search
		ProvideForecaster,
		ProvideEngine,
		ProvideFormatter,
		ProvideParallelClient,
		ProvideSearcher,
		ProvideEventsFinder,
		ProvideHub,

		// Use cases
		ProvidePriceProcessor,
		ProvideDownloader,
		ProvideBacktestRunner,
		ProvideBacktestJob,
		ProvideKafkaPricesHandler,
		ProvideQueue,
		ProvideRefresher,

		// Application server
		ProvideAPIHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
