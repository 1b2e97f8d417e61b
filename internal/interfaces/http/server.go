// Package http exposes the gateway over an OpenAI-compatible REST surface.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/airouter/airouter/internal/application/usecase"
	"github.com/airouter/airouter/internal/infrastructure/config"
	"github.com/airouter/airouter/internal/infrastructure/llm"
	"github.com/airouter/airouter/internal/interfaces/http/handlers"
)

// Server wraps the HTTP listener.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// NewServer builds the router and listener.
func NewServer(cfg *config.Config, dispatcher *usecase.Dispatcher, client *llm.Client, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logger))

	chatHandler := handlers.NewChatHandler(dispatcher, client, cfg.VirtualModel, logger)
	routeHandler := handlers.NewRouteHandler(dispatcher, logger)
	healthHandler := handlers.NewHealthHandler(client.Targets(), cfg.VirtualModel, cfg.SessionsDir(), logger)

	setupRoutes(router, chatHandler, routeHandler, healthHandler)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}
	return &Server{server: server, logger: logger}
}

// Start begins serving in the background.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server", zap.String("address", s.server.Addr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

func setupRoutes(router *gin.Engine, chatHandler *handlers.ChatHandler, routeHandler *handlers.RouteHandler, healthHandler *handlers.HealthHandler) {
	router.GET("/", healthHandler.Root)
	router.GET("/health", healthHandler.Health)
	router.GET("/stats", healthHandler.Stats)

	// OpenAI-compatible API
	oai := router.Group("/v1")
	{
		oai.POST("/chat/completions", chatHandler.ChatCompletions)
		oai.POST("/completions", chatHandler.Completions)
		oai.GET("/models", chatHandler.ListModels)
	}

	api := router.Group("/api")
	{
		api.POST("/route", routeHandler.Route)
	}
}

// ginLogger is the request log middleware.
func ginLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}
