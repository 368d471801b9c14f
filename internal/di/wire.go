//go:build wireinject
// +build wireinject

package di

import (
	"FinScan/pkg/config"
	"FinScan/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideClickHouseClient,
		ProvideLogger,
		ProvideMetrics,
		ProvideCache,

		// Repositories and adapters
		ProvideMarketData,
		ProvideSymbolSource,
		ProvideStateStore,
		ProvideBoardHub,
		ProvideBoardSink,

		// Use cases
		ProvideEvaluator,
		ProvideUniverseUseCase,
		ProvideScannerUseCase,
		ProvideScheduler,

		// Transport and application server
		ProvideHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil
}
