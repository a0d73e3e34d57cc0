package di

import (
	"go.uber.org/zap"

	"trails/application/ports"
	"trails/application/services"
	"trails/infrastructure/config"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	Repository   ports.SnapshotRepository
	EventBus     ports.EventBus
	Catalog      ports.ModelCatalog
	Provider     ports.CompletionProvider
	Graph        *services.GraphService
	Assembler    *services.ContextAssembler
	Orchestrator *services.Orchestrator
	Lifecycle    *services.Lifecycle
}

// Close releases the container's long-lived resources
func (c *Container) Close() error {
	if err := c.Repository.Close(); err != nil {
		return err
	}
	_ = c.Logger.Sync()
	return nil
}
