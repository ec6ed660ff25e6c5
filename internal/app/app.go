// Package app provides the main application structure and lifecycle management.
package app

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"marathonbot/internal/bot"
	"marathonbot/internal/config"
	"marathonbot/internal/marathon"
	"marathonbot/internal/store"
)

// Application represents the main application with its lifecycle.
type Application struct {
	app *fx.App
}

// New creates a new Application with the provided modules and options.
func New(modules ...fx.Option) *Application {
	options := append(modules, fx.Invoke(registerLifecycleHooks))

	return &Application{
		app: fx.New(options...),
	}
}

// Run starts the application and blocks until it's stopped.
func (a *Application) Run() {
	a.app.Run()
}

// Stop gracefully stops the application.
func (a *Application) Stop(ctx context.Context) error {
	return a.app.Stop(ctx)
}

// LifecycleParams holds everything the startup sequence touches.
type LifecycleParams struct {
	fx.In

	LC        fx.Lifecycle
	Bot       *bot.Bot
	Scheduler *marathon.Scheduler
	Store     *store.Store
	Cfg       *config.Config
	Logger    *zap.Logger
}

// registerLifecycleHooks seeds the post table, starts the bot and the
// delivery scheduler, and tears them down in reverse order.
func registerLifecycleHooks(params LifecycleParams) {
	params.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if params.Cfg.Marathon.SeedOnStart {
				// A broken or missing seed file must not keep the bot down;
				// admins can still author posts through the menu.
				n, err := marathon.SeedPosts(ctx, params.Store, params.Logger,
					params.Cfg.Marathon.SeedPath, params.Cfg.Marathon.SeedWipeOnStart)
				if err != nil {
					params.Logger.Error("Failed to seed posts", zap.Error(err))
				} else {
					params.Logger.Info("Seeded posts", zap.Int("count", n))
				}
			}

			if err := params.Bot.Start(ctx); err != nil {
				params.Logger.Error("Failed to start bot", zap.Error(err))
				return err
			}
			params.Scheduler.Start()

			params.Logger.Info("Application started successfully")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			params.Scheduler.Stop()

			if err := params.Bot.Stop(ctx); err != nil {
				params.Logger.Error("Failed to stop bot", zap.Error(err))
				return err
			}

			params.Logger.Info("Application stopped successfully")
			return nil
		},
	})
}
