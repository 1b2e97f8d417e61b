package llm

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"
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

// Client is the HTTP client for all three backends. One shared transport;
// forwarded calls have no overall deadline (streams run as long as the model
// generates) but are bounded by connect and response-header timeouts.
type Client struct {
	targets Targets
	prompts *prompt.Registry
	floor   int

	forward *http.Client
	logger  *zap.Logger
}

// NewClient builds the backend client.
func NewClient(targets Targets, prompts *prompt.Registry, floor int, logger *zap.Logger) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: config.ForwardTimeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   5,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}
	return &Client{
		targets: targets,
		prompts: prompts,
		floor:   floor,
		forward: &http.Client{Transport: transport},
		logger:  logger,
	}
}

// Targets exposes the configured backends.
func (c *Client) Targets() Targets { return c.targets }

// Forward sends a chat request to a backend, applying the route's system
// prompt, the target's model id, and the target's sampling policy. The
// request is mutated in place; callers pass their own copy.
//
// Streamed responses come back as a passthrough StreamBody; buffered ones
// have the assistant text extracted for the session step and the body
// returned verbatim.
func (c *Client) Forward(ctx context.Context, target Target, path string, req *chat.Request, route routing.Route, temporal string, sess *trace.Session) (*Reply, error) {
	if len(req.Messages) > 0 {
		// Enrichment and meta use the primary template; their extra system
		// messages are injected by the dispatcher before this call.
		sysName := prompt.PrimarySystem
		if route == routing.RouteXAI {
			sysName = prompt.XAISystem
		}
		req.PrependSystemPrefix(temporal + "\n" + c.prompts.Get(sysName))
	}

	req.Model = target.Model
	headers := http.Header{"Content-Type": []string{"application/json"}}
	if target.Name == TargetXAI {
		// Cloud calls carry auth and a completion-budget floor.
		req.EnsureMaxTokensFloor(c.floor)
		if target.APIKey != "" {
			headers.Set("Authorization", "Bearer "+target.APIKey)
		}
	} else {
		// Vendor-recommended reasoning settings for the local model; any
		// client-supplied budget is dropped.
		req.SetTemperature(1.0)
		req.SetTopP(1.0)
		req.StripMaxTokens()
	}

	body, err := req.MarshalJSON()
	if err != nil {
		return nil, apperrors.NewInternalError("encode request", err)
	}

	url := target.URL(path)
	c.logger.Info("Forwarding request", zap.String("url", url), zap.String("route", string(route)))

	if sess != nil {
		sess.BeginStep(trace.StepProviderCall, target.Name, url, req.Model, req.Messages, requestParams(req))
	}

	start := time.Now()
	resp, err := c.post(ctx, url, body, headers)
	if err != nil {
		appErr := apperrors.FromTransport(target.Name, err)
		endStepError(sess, appErr)
		return nil, appErr
	}

	if req.Stream {
		if sess != nil {
			sess.EndStep(trace.StepResult{Status: resp.StatusCode, Response: trace.StreamedMarker, HasResponse: true})
		}
		return &Reply{
			Status:      resp.StatusCode,
			ContentType: "text/event-stream",
			Stream:      NewStreamBody(resp.Body, target.Name, resp.StatusCode, start, c.logger),
		}, nil
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		appErr := apperrors.FromTransport(target.Name, err)
		endStepError(sess, appErr)
		return nil, appErr
	}

	text, finishReason, parsed := extractAssistantText(respBody)
	if sess != nil {
		content := text
		if !parsed {
			content = string(respBody)
		}
		sess.EndStep(trace.StepResult{
			Status:       resp.StatusCode,
			Response:     content,
			HasResponse:  true,
			FinishReason: finishReason,
		})
	}

	c.logger.Info("Provider response",
		zap.String("provider", target.Name),
		zap.Int("status", resp.StatusCode),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		zap.String("finish_reason", finishReason),
		zap.Bool("stream", false),
	)

	return &Reply{
		Status:      resp.StatusCode,
		ContentType: contentTypeOf(resp),
		Body:        respBody,
	}, nil
}

// ForwardRaw pipes an arbitrary JSON payload to a backend without touching
// it (legacy completions, explicit test routing). Streaming is honoured when
// the payload asks for it.
func (c *Client) ForwardRaw(ctx context.Context, target Target, path string, body []byte, stream bool) (*Reply, error) {
	headers := http.Header{"Content-Type": []string{"application/json"}}
	if target.Name == TargetXAI && target.APIKey != "" {
		headers.Set("Authorization", "Bearer "+target.APIKey)
	}

	start := time.Now()
	resp, err := c.post(ctx, target.URL(path), body, headers)
	if err != nil {
		return nil, apperrors.FromTransport(target.Name, err)
	}

	if stream {
		return &Reply{
			Status:      resp.StatusCode,
			ContentType: "text/event-stream",
			Stream:      NewStreamBody(resp.Body, target.Name, resp.StatusCode, start, c.logger),
		}, nil
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.FromTransport(target.Name, err)
	}
	return &Reply{
		Status:      resp.StatusCode,
		ContentType: contentTypeOf(resp),
		Body:        respBody,
	}, nil
}

// SpeculativeCall is a primary-backend request fired in parallel with
// classification. The caller owns the response: adopt it, or Close it to
// release the connection when arbitration decides against it.
type SpeculativeCall struct {
	Resp      *http.Response
	StartedAt time.Time
	URL       string
	Prepared  *chat.Request
}

// Close releases the speculative connection; the backend observes the
// client close and stops generating.
func (s *SpeculativeCall) Close() {
	if s != nil && s.Resp != nil {
		s.Resp.Body.Close()
	}
}

// StartSpeculative fires the speculative primary call. The caller hands over
// its own deep copy of the request; it is normalized in place (sampling,
// primary system prompt) and kept for the adoption step record. Handing over
// a copy keeps route handlers free to mutate the original concurrently.
func (c *Client) StartSpeculative(ctx context.Context, spec *chat.Request, temporal string) (*SpeculativeCall, error) {
	spec.StripMaxTokens()
	spec.Model = c.targets.Primary.Model
	spec.SetTemperature(1.0)
	spec.SetTopP(1.0)
	spec.PrependSystemPrefix(temporal + "\n" + c.prompts.Get(prompt.PrimarySystem))

	body, err := spec.MarshalJSON()
	if err != nil {
		return nil, apperrors.NewInternalError("encode speculative request", err)
	}

	url := c.targets.Primary.URL("/v1/chat/completions")
	start := time.Now()
	resp, err := c.post(ctx, url, body, http.Header{"Content-Type": []string{"application/json"}})
	if err != nil {
		return nil, apperrors.FromTransport(TargetPrimary, err)
	}
	return &SpeculativeCall{
		Resp:      resp,
		StartedAt: start,
		URL:       url,
		Prepared:  spec,
	}, nil
}

// AdoptSpeculative turns a winning speculative call into the request's reply.
// The provider_call step is backdated to the speculative launch so the
// recorded duration is the true wall-clock cost.
func (c *Client) AdoptSpeculative(spec *SpeculativeCall, sess *trace.Session) (*Reply, error) {
	resp := spec.Resp
	if sess != nil {
		sess.BeginStepAt(spec.StartedAt, trace.StepProviderCall, TargetPrimary, spec.URL,
			spec.Prepared.Model, spec.Prepared.Messages, requestParams(spec.Prepared))
	}

	if spec.Prepared.Stream {
		if sess != nil {
			sess.EndStep(trace.StepResult{Status: resp.StatusCode, Response: trace.StreamedMarker, HasResponse: true})
		}
		return &Reply{
			Status:      resp.StatusCode,
			ContentType: "text/event-stream",
			Stream:      NewStreamBody(resp.Body, TargetPrimary, resp.StatusCode, spec.StartedAt, c.logger),
		}, nil
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		appErr := apperrors.FromTransport(TargetPrimary, err)
		endStepError(sess, appErr)
		return nil, appErr
	}

	text, finishReason, parsed := extractAssistantText(respBody)
	if sess != nil {
		content := text
		if !parsed {
			content = string(respBody)
		}
		sess.EndStep(trace.StepResult{
			Status:       resp.StatusCode,
			Response:     content,
			HasResponse:  true,
			FinishReason: finishReason,
		})
	}

	c.logger.Info("Provider response",
		zap.String("provider", TargetPrimary),
		zap.Int("status", resp.StatusCode),
		zap.Int64("duration_ms", time.Since(spec.StartedAt).Milliseconds()),
		zap.String("finish_reason", finishReason),
		zap.Bool("stream", false),
	)

	return &Reply{
		Status:      resp.StatusCode,
		ContentType: contentTypeOf(resp),
		Body:        respBody,
	}, nil
}

func (c *Client) post(ctx context.Context, url string, body []byte, headers http.Header) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header = headers
	return c.forward.Do(httpReq)
}

// requestParams captures the non-message request fields for the step record.
func requestParams(req *chat.Request) map[string]any {
	params := map[string]any{"model": req.Model}
	if req.Temperature != nil {
		params["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		params["top_p"] = *req.TopP
	}
	if req.MaxTokens != nil {
		params["max_tokens"] = *req.MaxTokens
	}
	if req.Stream {
		params["stream"] = true
	}
	return params
}

func endStepError(sess *trace.Session, appErr *apperrors.AppError) {
	if sess == nil {
		return
	}
	sess.EndStep(trace.StepResult{Err: stepErrorMarker(appErr)})
}

// stepErrorMarker is the short cause recorded in the step's [error: ...]
// field.
func stepErrorMarker(appErr *apperrors.AppError) string {
	switch appErr.Code {
	case apperrors.CodeBackendTimeout:
		return "timeout"
	case apperrors.CodeBackendUnavail:
		return "connection_error"
	default:
		return appErr.Message
	}
}

func contentTypeOf(resp *http.Response) string {
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/json"
}
