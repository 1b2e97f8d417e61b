package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/airouter/airouter/internal/application"
	"github.com/airouter/airouter/internal/infrastructure/config"
	"github.com/airouter/airouter/internal/infrastructure/logger"
)

const (
	appName    = "airouter"
	appVersion = "0.1.0"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("%s v%s\n", appName, appVersion)
			return
		case "help", "--help", "-h":
			printUsage()
			return
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		FilePath: cfg.AppLogFile(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting AI router",
		zap.String("name", appName),
		zap.String("version", appVersion),
		zap.String("listen", cfg.ListenAddr),
		zap.String("virtual_model", cfg.VirtualModel),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := application.NewApp(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize application", zap.Error(err))
	}

	if err := app.Start(ctx); err != nil {
		log.Fatal("Failed to start application", zap.Error(err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		log.Error("Error during shutdown", zap.Error(err))
		os.Exit(1)
	}

	log.Info("Application stopped successfully")
}

func printUsage() {
	fmt.Printf(`%s v%s

Usage:
  router            Start the routing gateway (default)
  router version    Show version
  router help       Show this help

Environment:
  ROUTER_URL, PRIMARY_URL, XAI_API_URL, XAI_API_KEY, LISTEN_ADDR, LOG_DIR, ...
  (every config key maps to its uppercase environment variable)
`, appName, appVersion)
}
