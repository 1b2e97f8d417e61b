package handlers

import (
	"context"
	"net/http"
	"path/filepath"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/airouter/airouter/internal/infrastructure/config"
	"github.com/airouter/airouter/internal/infrastructure/llm"
)

// HealthHandler serves liveness, service metadata, and basic stats.
type HealthHandler struct {
	targets      llm.Targets
	virtualModel string
	sessionsDir  string
	probe        *http.Client
	logger       *zap.Logger
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(targets llm.Targets, virtualModel, sessionsDir string, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		targets:      targets,
		virtualModel: virtualModel,
		sessionsDir:  sessionsDir,
		probe:        &http.Client{Timeout: config.HealthProbeTimeout},
		logger:       logger,
	}
}

// Health handles GET /health: probes the backends in parallel and grades the
// gateway on the two local probes. Both must answer for 200 healthy; any
// local failure is 503 degraded. The cloud backend is probed only when a key
// is configured and is reported informationally, it never affects the grade.
func (h *HealthHandler) Health(c *gin.Context) {
	type probe struct {
		name string
		url  string
		auth string
	}
	probes := []probe{
		{name: llm.TargetRouter, url: h.targets.Router.URL("/health")},
		{name: llm.TargetPrimary, url: h.targets.Primary.URL("/health")},
	}
	if h.targets.XAI.APIKey != "" {
		probes = append(probes, probe{
			name: llm.TargetXAI,
			url:  h.targets.XAI.URL("/v1/models"),
			auth: "Bearer " + h.targets.XAI.APIKey,
		})
	}

	results := make(map[string]string, len(probes))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, p := range probes {
		wg.Add(1)
		go func(p probe) {
			defer wg.Done()
			status := h.probeOne(c.Request.Context(), p.url, p.auth)
			mu.Lock()
			results[p.name] = status
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	overall := "healthy"
	code := http.StatusOK
	if results[llm.TargetRouter] != "healthy" || results[llm.TargetPrimary] != "healthy" {
		overall = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":   overall,
		"backends": results,
	})
}

func (h *HealthHandler) probeOne(ctx context.Context, url, auth string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "unhealthy"
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := h.probe.Do(req)
	if err != nil {
		return "unhealthy"
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "unhealthy"
	}
	return "healthy"
}

// Root handles GET /: service metadata for humans poking the port.
func (h *HealthHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "ai-router",
		"version": "0.1.0",
		"model":   h.virtualModel,
		"endpoints": []string{
			"/v1/chat/completions",
			"/v1/completions",
			"/v1/models",
			"/api/route",
			"/health",
			"/stats",
		},
	})
}

// Stats handles GET /stats: a count of recorded sessions.
func (h *HealthHandler) Stats(c *gin.Context) {
	files, err := filepath.Glob(filepath.Join(h.sessionsDir, "*.json"))
	if err != nil {
		h.logger.Warn("Failed to list session files", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{
		"sessions_recorded": len(files),
		"sessions_dir":      h.sessionsDir,
	})
}
