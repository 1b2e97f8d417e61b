// Package usecase wires the routing pipeline: classify the request, race a
// speculative local call against the classification, and hand the request to
// the winning route's handler.
package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/airouter/airouter/internal/domain/chat"
	"github.com/airouter/airouter/internal/domain/routing"
	"github.com/airouter/airouter/internal/domain/timectx"
	"github.com/airouter/airouter/internal/infrastructure/config"
	"github.com/airouter/airouter/internal/infrastructure/llm"
	"github.com/airouter/airouter/internal/infrastructure/prompt"
	"github.com/airouter/airouter/internal/infrastructure/trace"
	"github.com/airouter/airouter/pkg/safego"
)

const chatCompletionsPath = "/v1/chat/completions"

// Per-route latency expectations for the SLOW_REQUEST log marker.
const (
	slowLocalMS  = 5_000
	slowXAIMS    = 30_000
	slowEnrichMS = 60_000
)

// Dispatcher owns the end-to-end handling of one chat-completions request.
type Dispatcher struct {
	client     *llm.Client
	classifier *llm.Classifier
	enricher   *llm.Enricher
	prompts    *prompt.Registry
	sink       *trace.Sink

	metaMaxChars int
	location     *time.Location
	logger       *zap.Logger
}

// NewDispatcher builds the dispatcher.
func NewDispatcher(cfg *config.Config, client *llm.Client, classifier *llm.Classifier, enricher *llm.Enricher, prompts *prompt.Registry, sink *trace.Sink, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		client:       client,
		classifier:   classifier,
		enricher:     enricher,
		prompts:      prompts,
		sink:         sink,
		metaMaxChars: cfg.MetaMaxChars,
		location:     cfg.Location(),
		logger:       logger,
	}
}

type specResult struct {
	call *llm.SpeculativeCall
	err  error
}

// Dispatch runs the full pipeline on a chat-completions request: meta fast
// path, else speculative primary call in parallel with classification, then
// the chosen route's handler. The returned Reply either holds a buffered body
// or a passthrough stream the caller must drain and close.
func (d *Dispatcher) Dispatch(ctx context.Context, req *chat.Request) (*llm.Reply, error) {
	now := time.Now().In(d.location)
	temporal := timectx.Line(now)

	sess := d.sink.NewSession()
	sess.SetQuery(req.Messages)
	sess.SetUserQuery(req.LastUserContent())

	// Meta-prompts (title/summary/follow-up generation from the client UI)
	// skip classification and speculation: they are always local and latency
	// matters more than routing accuracy.
	if routing.IsMetaPrompt(req.Messages) {
		return d.dispatchMeta(ctx, req, temporal, sess)
	}

	// The speculative primary call starts before classification finishes;
	// when classification picks primary (the common case) its latency
	// disappears from the user-visible path. The copy is taken here, not in
	// the goroutine, so route handlers can mutate req freely once
	// classification lands.
	specReq := req.Clone()
	specCtx, specCancel := context.WithCancel(ctx)
	specCh := make(chan specResult, 1)
	safego.Go(d.logger, "speculative-primary", func() {
		call, err := d.client.StartSpeculative(specCtx, specReq, temporal)
		specCh <- specResult{call: call, err: err}
	})

	route := d.classifier.Classify(ctx, req.Messages, temporal, sess)

	if route != routing.RoutePrimary {
		// Cancel the speculative call; the backend observes the closed
		// connection and stops generating.
		specCancel()
		safego.Go(d.logger, "speculative-discard", func() {
			res := <-specCh
			res.call.Close()
		})
		switch route {
		case routing.RouteXAI:
			return d.dispatchForward(ctx, d.client.Targets().XAI, chatCompletionsPath, req, route, temporal, sess)
		case routing.RouteEnrich:
			return d.dispatchEnrich(ctx, chatCompletionsPath, req, temporal, sess)
		default:
			return d.dispatchForward(ctx, d.client.Targets().Primary, chatCompletionsPath, req, routing.RoutePrimary, temporal, sess)
		}
	}

	res := <-specCh
	if res.err != nil {
		specCancel()
		d.logger.Warn("Speculative call failed, retrying primary", zap.Error(res.err))
		return d.dispatchForward(ctx, d.client.Targets().Primary, chatCompletionsPath, req, routing.RoutePrimary, temporal, sess)
	}
	if res.call.Resp.StatusCode < 200 || res.call.Resp.StatusCode >= 300 {
		status := res.call.Resp.StatusCode
		res.call.Close()
		specCancel()
		d.logger.Warn("Speculative call returned error status, retrying primary", zap.Int("status", status))
		return d.dispatchForward(ctx, d.client.Targets().Primary, chatCompletionsPath, req, routing.RoutePrimary, temporal, sess)
	}

	// Adoption: the response in hand becomes the reply. specCancel is
	// deliberately not called, it would sever the body mid-stream; the
	// connection is released when the reply body is closed.
	_ = specCancel
	reply, err := d.client.AdoptSpeculative(res.call, sess)
	return d.finish(sess, reply, err)
}

// DispatchRoute bypasses classification and sends the request down an
// explicitly chosen route (the routing test endpoint). An empty path means
// the default chat-completions path on the chosen backend.
func (d *Dispatcher) DispatchRoute(ctx context.Context, req *chat.Request, route routing.Route, path string) (*llm.Reply, error) {
	if path == "" {
		path = chatCompletionsPath
	}
	now := time.Now().In(d.location)
	temporal := timectx.Line(now)

	sess := d.sink.NewSession()
	sess.SetQuery(req.Messages)
	sess.SetUserQuery(req.LastUserContent())
	sess.SetRoute(string(route), "[manual]", 0)

	switch route {
	case routing.RouteXAI:
		return d.dispatchForward(ctx, d.client.Targets().XAI, path, req, route, temporal, sess)
	case routing.RouteEnrich:
		return d.dispatchEnrich(ctx, path, req, temporal, sess)
	default:
		return d.dispatchForward(ctx, d.client.Targets().Primary, path, req, routing.RoutePrimary, temporal, sess)
	}
}

// ResolveRoute runs classification alone, without a session trace.
func (d *Dispatcher) ResolveRoute(ctx context.Context, messages []chat.Message) routing.Route {
	temporal := timectx.Line(time.Now().In(d.location))
	return d.classifier.Classify(ctx, messages, temporal, nil)
}

func (d *Dispatcher) dispatchMeta(ctx context.Context, req *chat.Request, temporal string, sess *trace.Session) (*llm.Reply, error) {
	content := req.Messages[0].Content
	if truncated := routing.TruncateMetaHistory(content, d.metaMaxChars); len(truncated) < len(content) {
		d.logger.Warn("Meta-prompt truncated",
			zap.Int("original_chars", len(content)),
			zap.Int("truncated_chars", len(truncated)))
		req.Messages[0].SetContent(truncated)
	}

	sess.SetRoute(string(routing.RouteMeta), "META", 0)
	req.InsertLeadingSystem(d.prompts.Get(prompt.MetaSystem))

	return d.dispatchForward(ctx, d.client.Targets().Primary, chatCompletionsPath, req, routing.RouteMeta, temporal, sess)
}

func (d *Dispatcher) dispatchEnrich(ctx context.Context, path string, req *chat.Request, temporal string, sess *trace.Session) (*llm.Reply, error) {
	enriched := d.enricher.Fetch(ctx, req.Messages, temporal, sess)
	if enriched != "" {
		injection := d.prompts.Render(prompt.EnrichmentInjection, map[string]string{
			"context": enriched,
			"date":    time.Now().In(d.location).Format("2006-01-02"),
		})
		req.AppendToFirstSystemOrInsert(injection)
	} else {
		d.logger.Warn("Enrichment yielded no context, answering without it")
	}
	return d.dispatchForward(ctx, d.client.Targets().Primary, path, req, routing.RouteEnrich, temporal, sess)
}

func (d *Dispatcher) dispatchForward(ctx context.Context, target llm.Target, path string, req *chat.Request, route routing.Route, temporal string, sess *trace.Session) (*llm.Reply, error) {
	reply, err := d.client.Forward(ctx, target, path, req, route, temporal, sess)
	return d.finish(sess, reply, err)
}

// finish records the outcome, emits the one-line request summary, and
// persists the session. Streamed replies are summarized at headers time; the
// step already carries the streamed marker.
func (d *Dispatcher) finish(sess *trace.Session, reply *llm.Reply, err error) (*llm.Reply, error) {
	if err != nil {
		sess.SetError(err.Error())
	}
	d.logSummary(sess)
	sess.Save()
	return reply, err
}

func (d *Dispatcher) logSummary(sess *trace.Session) {
	totalMS := time.Since(sess.StartedAt()).Milliseconds()
	route := sess.RouteValue()

	fields := []zap.Field{
		zap.String("session", sess.ID),
		zap.String("route", route),
		zap.Int64("classification_ms", sess.ClassificationDuration()),
		zap.Int64("inference_ms", sess.SumStepMS(trace.StepProviderCall)),
		zap.Int64("enrichment_ms", sess.SumStepMS(trace.StepEnrichment)),
		zap.Int64("total_ms", totalMS),
	}
	if totalMS > slowThresholdMS(route) {
		d.logger.Warn("SLOW_REQUEST", fields...)
		return
	}
	d.logger.Info("Request completed", fields...)
}

func slowThresholdMS(route string) int64 {
	switch routing.Route(route) {
	case routing.RouteXAI:
		return slowXAIMS
	case routing.RouteEnrich:
		return slowEnrichMS
	default:
		return slowLocalMS
	}
}
