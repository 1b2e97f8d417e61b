package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/airouter/airouter/internal/domain/chat"
	"github.com/airouter/airouter/internal/infrastructure/config"
	"github.com/airouter/airouter/internal/infrastructure/prompt"
	"github.com/airouter/airouter/internal/infrastructure/trace"
	apperrors "github.com/airouter/airouter/pkg/errors"
)

const enrichMaxOutputTokens = 1024

// Enricher retrieves real-time context from the cloud model's responses
// endpoint with search tools enabled. Failures are swallowed: the primary
// model answers from the user's question alone.
type Enricher struct {
	target  Target
	prompts *prompt.Registry
	tools   []map[string]string
	client  *http.Client
	logger  *zap.Logger
}

// NewEnricher builds the enricher. toolList is comma-separated tool types;
// empty disables tools.
func NewEnricher(target Target, prompts *prompt.Registry, toolList string, logger *zap.Logger) *Enricher {
	return &Enricher{
		target:  target,
		prompts: prompts,
		tools:   buildSearchTools(toolList),
		client:  &http.Client{Timeout: config.EnrichTimeout},
		logger:  logger,
	}
}

func buildSearchTools(toolList string) []map[string]string {
	var tools []map[string]string
	for _, t := range strings.Split(toolList, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tools = append(tools, map[string]string{"type": t})
		}
	}
	return tools
}

// Fetch runs the retrieval hop over the conversation. The full user and
// assistant history goes along so the cloud model can resolve references
// from prior turns; tool and system messages are dropped. Returns "" when
// nothing usable came back.
func (e *Enricher) Fetch(ctx context.Context, messages []chat.Message, temporal string, sess *trace.Session) string {
	input := []chat.Message{
		chat.NewMessage(chat.RoleSystem, temporal+"\n\n"+e.prompts.Get(prompt.EnrichmentSystem)),
	}
	for _, m := range messages {
		if m.Role == chat.RoleUser || m.Role == chat.RoleAssistant {
			input = append(input, chat.NewMessage(m.Role, m.Content))
		}
	}

	body := map[string]any{
		"input":             input,
		"model":             e.target.Model,
		"max_output_tokens": enrichMaxOutputTokens,
		"temperature":       0.0,
	}
	if len(e.tools) > 0 {
		body["tools"] = e.tools
	}

	url := e.target.URL("/v1/responses")
	if sess != nil {
		params := map[string]any{
			"model":             e.target.Model,
			"max_output_tokens": enrichMaxOutputTokens,
			"temperature":       0.0,
		}
		if len(e.tools) > 0 {
			params["tools"] = e.tools
		}
		sess.BeginStep(trace.StepEnrichment, e.target.Name, url, e.target.Model, input, params)
	}

	start := time.Now()
	resp, err := e.post(ctx, url, body)
	if err != nil {
		appErr := apperrors.FromTransport(e.target.Name, err)
		e.logger.Warn("Enrichment context fetch failed",
			zap.Error(err),
			zap.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		if sess != nil {
			sess.EndStep(trace.StepResult{Err: stepErrorMarker(appErr)})
		}
		return ""
	}
	defer resp.Body.Close()

	elapsed := time.Since(start)

	if resp.StatusCode == http.StatusOK {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr == nil {
			if text := extractOutputText(respBody); text != "" {
				e.logger.Info("Enrichment context retrieved",
					zap.Int("chars", len(text)),
					zap.Int64("duration_ms", elapsed.Milliseconds()))
				if sess != nil {
					sess.EndStep(trace.StepResult{Status: resp.StatusCode, Response: text, HasResponse: true})
				}
				return text
			}
		}
	}

	e.logger.Warn("Enrichment call failed",
		zap.Int("status", resp.StatusCode),
		zap.Int64("duration_ms", elapsed.Milliseconds()))
	if sess != nil {
		sess.EndStep(trace.StepResult{Status: resp.StatusCode, Err: fmt.Sprintf("status %d", resp.StatusCode)})
	}
	return ""
}

// extractOutputText walks output[*] message items, concatenating every
// output_text content block.
func extractOutputText(body []byte) string {
	var result responsesResult
	if err := json.Unmarshal(body, &result); err != nil {
		return ""
	}
	var sb strings.Builder
	for _, item := range result.Output {
		if item.Type != "message" {
			continue
		}
		for _, block := range item.Content {
			if block.Type == "output_text" {
				sb.WriteString(block.Text)
			}
		}
	}
	return strings.TrimSpace(sb.String())
}

func (e *Enricher) post(ctx context.Context, url string, payload map[string]any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.target.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.target.APIKey)
	}
	return e.client.Do(req)
}
