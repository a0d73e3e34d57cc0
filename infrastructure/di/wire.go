//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"trails/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideRepository,
	ProvideEventBus,
	ProvideModelCatalog,
	ProvideCompletionProvider,
	ProvideGraphService,
	ProvideContextAssembler,
	ProvideOrchestrator,
	ProvideLifecycle,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
