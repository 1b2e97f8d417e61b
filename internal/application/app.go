// Package application assembles the gateway from its parts.
package application

import (
	"context"

	"go.uber.org/zap"

	"github.com/airouter/airouter/internal/application/usecase"
	"github.com/airouter/airouter/internal/infrastructure/config"
	"github.com/airouter/airouter/internal/infrastructure/llm"
	"github.com/airouter/airouter/internal/infrastructure/prompt"
	"github.com/airouter/airouter/internal/infrastructure/trace"
	httpiface "github.com/airouter/airouter/internal/interfaces/http"
)

// App owns the wired components and their lifecycle.
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	prompts *prompt.Registry
	sink    *trace.Sink
	server  *httpiface.Server
}

// NewApp wires the full gateway.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	sink, err := trace.NewSink(trace.SinkConfig{
		Dir:        cfg.SessionsDir(),
		MaxAgeDays: cfg.LogMaxAgeDays,
		MaxCount:   cfg.LogMaxCount,
		Location:   cfg.Location(),
	}, logger)
	if err != nil {
		return nil, err
	}

	prompts := prompt.NewRegistry(logger)
	prompts.Load(map[string]string{
		prompt.RoutingSystem:       cfg.RoutingSystemPromptPath,
		prompt.RoutingRequest:      cfg.RoutingPromptPath,
		prompt.PrimarySystem:       cfg.PrimarySystemPromptPath,
		prompt.XAISystem:           cfg.XAISystemPromptPath,
		prompt.EnrichmentSystem:    cfg.EnrichmentSystemPromptPath,
		prompt.EnrichmentInjection: cfg.EnrichmentInjectionPromptPath,
		prompt.MetaSystem:          cfg.MetaSystemPromptPath,
	})

	targets := llm.TargetsFromConfig(cfg)
	client := llm.NewClient(targets, prompts, cfg.XAIMaxTokensFloor, logger)
	classifier := llm.NewClassifier(targets.Router, prompts, cfg.ClassifierMaxTokens, logger)
	enricher := llm.NewEnricher(targets.XAI, prompts, cfg.XAISearchTools, logger)

	dispatcher := usecase.NewDispatcher(cfg, client, classifier, enricher, prompts, sink, logger)
	server := httpiface.NewServer(cfg, dispatcher, client, logger)

	return &App{
		cfg:     cfg,
		logger:  logger,
		prompts: prompts,
		sink:    sink,
		server:  server,
	}, nil
}

// Start launches the prompt watcher and the HTTP listener.
func (a *App) Start(ctx context.Context) error {
	if err := a.prompts.Watch(ctx); err != nil {
		a.logger.Warn("Prompt hot-reload unavailable", zap.Error(err))
	}
	if a.cfg.XAIAPIKey == "" {
		a.logger.Warn("No cloud API key configured; xai and enrich routes will fail over")
	}
	return a.server.Start(ctx)
}

// Stop drains the HTTP server and runs a final session prune.
func (a *App) Stop(ctx context.Context) error {
	err := a.server.Stop(ctx)
	a.sink.Prune()
	return err
}
