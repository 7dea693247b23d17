//go:build wireinject
// +build wireinject

package di

import (
	"SessionPulse/pkg/config"
	"SessionPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient infrastructure
		ProvideLogger,
		ProvideMetrics,
		ProvideCache,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideStorage,
		ProvidePublisher,
		ProvideNewsProvider,

		// Use cases
		ProvideEngine,
		ProvideScheduler,
		ProvideCollector,
		ProvideCandlesHandler,

		// Transport
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
