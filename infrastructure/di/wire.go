//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"github.com/realaman90/koda-sub002/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideTracer,
	ProvideAWSConfig,
	ProvideGraphRepository,
	ProvideCapabilityRegistry,
	ProvideCapabilityWatcher,
	ProvideScheduler,
	ProvideGenerationProvider,
	ProvideAssetStorage,
	ProvideEventPublisher,
	ProvidePlanSource,
	ProvideSessionService,
	ProvideJWTValidator,
	ProvideHub,
	ProvideWebSocketServer,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil
}
