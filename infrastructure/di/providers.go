package di

import (
	"context"
	"time"

	"go.uber.org/zap"

	"trails/application/ports"
	"trails/application/services"
	"trails/infrastructure/config"
	"trails/infrastructure/messaging/memory"
	"trails/infrastructure/persistence/pebblestore"
	"trails/infrastructure/providers"
)

// ProvideLogger creates the application logger from config
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		zapCfg := zap.NewProductionConfig()
		if level, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
			zapCfg.Level = level
		}
		return zapCfg.Build()
	}
	return zap.NewDevelopment()
}

// ProvideRepository opens the Pebble-backed snapshot repository
func ProvideRepository(cfg *config.Config, logger *zap.Logger) (ports.SnapshotRepository, error) {
	return pebblestore.NewStore(cfg.DataDir, logger)
}

// ProvideEventBus creates the in-process event bus
func ProvideEventBus(logger *zap.Logger) ports.EventBus {
	return memory.NewBus(logger)
}

// ProvideModelCatalog builds the model catalog with any YAML overrides
func ProvideModelCatalog(cfg *config.Config) (ports.ModelCatalog, error) {
	return providers.NewCatalog(cfg.CatalogPath)
}

// ProvideCompletionProvider creates the multi-provider completion client
func ProvideCompletionProvider(cfg *config.Config, catalog ports.ModelCatalog, logger *zap.Logger) ports.CompletionProvider {
	return providers.NewClient(
		catalog,
		time.Duration(cfg.ProviderTimeout)*time.Second,
		cfg.EnvironmentKeys(),
		cfg.OllamaBaseURL,
		logger,
	)
}

// ProvideGraphService hydrates the graph service from the repository
func ProvideGraphService(ctx context.Context, repo ports.SnapshotRepository, bus ports.EventBus, logger *zap.Logger) (*services.GraphService, error) {
	return services.NewGraphService(ctx, repo, bus, logger)
}

// ProvideContextAssembler creates the context assembler
func ProvideContextAssembler(graph *services.GraphService) *services.ContextAssembler {
	return services.NewContextAssembler(graph)
}

// ProvideOrchestrator creates the dispatch orchestrator
func ProvideOrchestrator(cfg *config.Config, graph *services.GraphService, assembler *services.ContextAssembler, catalog ports.ModelCatalog, provider ports.CompletionProvider, logger *zap.Logger) *services.Orchestrator {
	return services.NewOrchestrator(graph, assembler, catalog, provider, cfg.DispatchesPerSecond, logger)
}

// ProvideLifecycle creates the workspace lifecycle facade
func ProvideLifecycle(graph *services.GraphService, orchestrator *services.Orchestrator, logger *zap.Logger) *services.Lifecycle {
	return services.NewLifecycle(graph, orchestrator, logger)
}
