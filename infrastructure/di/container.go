package di

import (
	"context"

	"go.uber.org/zap"

	"github.com/realaman90/koda-sub002/application/jobs"
	"github.com/realaman90/koda-sub002/application/services"
	"github.com/realaman90/koda-sub002/domain/capabilities"
	"github.com/realaman90/koda-sub002/infrastructure/config"
	"github.com/realaman90/koda-sub002/interfaces/http/rest"
	"github.com/realaman90/koda-sub002/interfaces/websocket"
	"github.com/realaman90/koda-sub002/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	Metrics      *observability.Collector
	Tracer       *observability.TracerProvider
	Capabilities *capabilities.Registry
	Watcher      *config.CapabilityWatcher
	Scheduler    *jobs.CronScheduler
	Sessions     *services.SessionService
	Hub          *websocket.Hub
	Router       *rest.Router
}

// Shutdown saves open sessions and stops background work in dependency
// order. The first error is returned.
func (c *Container) Shutdown(ctx context.Context) error {
	err := c.Sessions.Shutdown(ctx)
	if err != nil {
		c.Logger.Error("Failed to save sessions on shutdown", zap.Error(err))
	}
	c.Hub.Stop()
	c.Scheduler.Stop()
	if c.Watcher != nil {
		c.Watcher.Stop()
	}
	if terr := c.Tracer.Shutdown(ctx); terr != nil {
		c.Logger.Warn("Failed to flush traces", zap.Error(terr))
		if err == nil {
			err = terr
		}
	}
	_ = c.Logger.Sync()
	return err
}
