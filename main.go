// Package main provides the entry point for the marathon Telegram bot.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/fx"

	"marathonbot/internal/app"
	"marathonbot/internal/bot"
	"marathonbot/internal/config"
	"marathonbot/internal/infrastructure"
	"marathonbot/internal/marathon"
	"marathonbot/internal/store"
	"marathonbot/internal/telegram"
)

func main() {
	// Set a default config path. This can be overridden by environment variables if needed.
	configPath := "config.yaml"
	if v := os.Getenv("MARATHONBOT_CONFIG"); v != "" {
		configPath = v
	}

	application := app.New(
		// Core modules
		config.Module,
		infrastructure.LoggerModule,

		// External service modules
		telegram.Module,
		store.Module,

		// Application modules
		marathon.Module,
		bot.Module,

		// Supply the config path
		fx.Supply(configPath),

		// Configure Fx to use our Zap logger for its own internal logging
		fx.WithLogger(infrastructure.NewFxLoggerAdapter),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go application.Run()

	sig := <-sigCh
	fmt.Printf("Received signal: %s, initiating shutdown.\n", sig)

	// Give the application 30 seconds to shut down gracefully.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err := application.Stop(shutdownCtx)
	cancel()

	if err != nil {
		fmt.Printf("Error during shutdown: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Application has shut down gracefully.")
}
