package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/airouter/airouter/internal/domain/chat"
	"github.com/airouter/airouter/internal/domain/routing"
	"github.com/airouter/airouter/internal/infrastructure/config"
	"github.com/airouter/airouter/internal/infrastructure/prompt"
	"github.com/airouter/airouter/internal/infrastructure/trace"
	apperrors "github.com/airouter/airouter/pkg/errors"
)

// Classifier asks the local fast model which route should answer. Any
// failure falls back to primary; classification must never take a request
// down.
type Classifier struct {
	target    Target
	prompts   *prompt.Registry
	maxTokens int
	client    *http.Client
	logger    *zap.Logger
}

// NewClassifier builds the classifier against the router backend.
func NewClassifier(target Target, prompts *prompt.Registry, maxTokens int, logger *zap.Logger) *Classifier {
	return &Classifier{
		target:    target,
		prompts:   prompts,
		maxTokens: maxTokens,
		client:    &http.Client{Timeout: config.ClassifyTimeout},
		logger:    logger,
	}
}

type classifyRequest struct {
	Messages    []chat.Message `json:"messages"`
	Temperature float64        `json:"temperature"`
	MaxTokens   int            `json:"max_tokens"`
}

// Classify runs the routing classification over the full message history.
// It records a classification step and sets the session's route, raw
// decision, and elapsed time. sess may be nil (test-only auto routing).
func (c *Classifier) Classify(ctx context.Context, messages []chat.Message, temporal string, sess *trace.Session) routing.Route {
	if len(messages) == 0 {
		return routing.RoutePrimary
	}
	lastUser := messages[len(messages)-1].Content

	userPrompt := routing.ContextPrefix(messages) +
		c.prompts.Render(prompt.RoutingRequest, map[string]string{
			"query":           lastUser,
			"truncation_note": "",
		})

	classifyMessages := []chat.Message{
		chat.NewMessage(chat.RoleSystem, temporal+"\n\n"+c.prompts.Get(prompt.RoutingSystem)),
		chat.NewMessage(chat.RoleUser, userPrompt),
	}
	payload := classifyRequest{
		Messages:    classifyMessages,
		Temperature: 0,
		MaxTokens:   c.maxTokens,
	}

	url := c.target.URL("/v1/chat/completions")
	if sess != nil {
		sess.BeginStep(trace.StepClassification, c.target.Name, url, c.target.Model,
			classifyMessages,
			map[string]any{"temperature": 0.0, "max_tokens": c.maxTokens},
		)
	}

	start := time.Now()
	resp, err := c.post(ctx, url, payload)
	if err != nil {
		appErr := apperrors.FromTransport(c.target.Name, err)
		marker := stepErrorMarker(appErr)
		// Timeouts are recorded as the bare [timeout]; every other transport
		// failure uses the [error: ...] form.
		raw := "[error: " + marker + "]"
		if appErr.Code == apperrors.CodeBackendTimeout {
			raw = "[timeout]"
		}
		c.logger.Warn("Routing classification failed, defaulting to primary", zap.Error(err))
		if sess != nil {
			sess.EndStep(trace.StepResult{Err: marker})
			sess.SetRoute(string(routing.RoutePrimary), raw, time.Since(start))
		}
		return routing.RoutePrimary
	}
	defer resp.Body.Close()

	elapsed := time.Since(start)

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Routing classification returned non-200, defaulting to primary",
			zap.Int("status", resp.StatusCode))
		if sess != nil {
			sess.EndStep(trace.StepResult{Status: resp.StatusCode, Err: fmt.Sprintf("status %d", resp.StatusCode)})
			sess.SetRoute(string(routing.RoutePrimary), fmt.Sprintf("[error: status %d]", resp.StatusCode), elapsed)
		}
		return routing.RoutePrimary
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if sess != nil {
			sess.EndStep(trace.StepResult{Err: err.Error()})
			sess.SetRoute(string(routing.RoutePrimary), "[error: "+err.Error()+"]", elapsed)
		}
		return routing.RoutePrimary
	}

	raw, finishReason, ok := extractAssistantText(body)
	if !ok {
		if sess != nil {
			sess.EndStep(trace.StepResult{Status: resp.StatusCode, Err: "unparseable response"})
			sess.SetRoute(string(routing.RoutePrimary), "[error: unparseable response]", elapsed)
		}
		return routing.RoutePrimary
	}

	route, decision, recognized := routing.ParseDecision(raw)
	if !recognized {
		c.logger.Warn("Routing classification unclear, defaulting to primary",
			zap.String("decision", decision))
	}
	c.logger.Info("Classification completed",
		zap.String("decision", decision),
		zap.String("route", string(route)),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
		zap.String("finish_reason", finishReason),
	)

	if sess != nil {
		sess.EndStep(trace.StepResult{
			Status:       resp.StatusCode,
			Response:     raw,
			HasResponse:  true,
			FinishReason: finishReason,
		})
		sess.SetRoute(string(route), decision, elapsed)
	}
	return route
}

func (c *Classifier) post(ctx context.Context, url string, payload classifyRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}
