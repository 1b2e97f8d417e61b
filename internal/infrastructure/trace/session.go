// Package trace captures the full lifecycle of one request as a JSON session
// file, the source of truth for offline review.
package trace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Step kinds.
const (
	StepClassification = "classification"
	StepProviderCall   = "provider_call"
	StepEnrichment     = "enrichment"
)

// StreamedMarker replaces response text for steps whose body was piped to
// the client without buffering.
const StreamedMarker = "[streamed]"

const (
	maxQueryChars    = 500
	maxResponseChars = 2000
)

// Step is one logged sub-operation of a session.
type Step struct {
	Step            string          `json:"step"`
	Provider        string          `json:"provider"`
	URL             string          `json:"url"`
	Model           string          `json:"model"`
	MessagesSent    json.RawMessage `json:"messages_sent,omitempty"`
	Params          map[string]any  `json:"params,omitempty"`
	DurationMS      *int64          `json:"duration_ms"`
	Status          *int            `json:"status"`
	FinishReason    *string         `json:"finish_reason"`
	ResponseContent *string         `json:"response_content"`

	start time.Time
}

// StepResult closes a step. Zero values mean "absent".
type StepResult struct {
	Status       int
	Response     string
	HasResponse  bool
	FinishReason string
	Err          string
}

// Session is the per-request trace record. It has a single logical owner
// (the dispatching goroutine) and is serialized exactly once at request end.
type Session struct {
	ID                string          `json:"id"`
	Timestamp         string          `json:"timestamp"`
	UserQuery         *string         `json:"user_query"`
	ClientMessages    json.RawMessage `json:"client_messages"`
	Route             *string         `json:"route"`
	ClassificationRaw *string         `json:"classification_raw"`
	ClassificationMS  *int64          `json:"classification_ms"`
	Steps             []*Step         `json:"steps"`
	TotalMS           *int64          `json:"total_ms"`
	Error             *string         `json:"error"`

	sink      *Sink
	startedAt time.Time
	stamp     time.Time
}

// NewSession starts a trace for one request.
func (s *Sink) NewSession() *Session {
	now := time.Now().In(s.location)
	return &Session{
		ID:        uuid.New().String()[:8],
		Timestamp: now.Format("2006-01-02T15:04:05.000-07:00"),
		Steps:     []*Step{},
		sink:      s,
		startedAt: now,
		stamp:     now,
	}
}

// StartedAt is the request ingress instant.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// SetQuery stores the original client messages verbatim (serialized once)
// and the truncated last user message.
func (s *Session) SetQuery(messages any) {
	raw, err := json.Marshal(messages)
	if err == nil {
		s.ClientMessages = raw
	}
}

// SetUserQuery records the last user message, capped at 500 chars.
func (s *Session) SetUserQuery(content string) {
	if len(content) > maxQueryChars {
		content = content[:maxQueryChars]
	}
	s.UserQuery = &content
}

// SetRoute records the routing outcome.
func (s *Session) SetRoute(route, rawDecision string, duration time.Duration) {
	ms := duration.Milliseconds()
	s.Route = &route
	s.ClassificationRaw = &rawDecision
	s.ClassificationMS = &ms
}

// SetError records a request-level failure.
func (s *Session) SetError(msg string) {
	s.Error = &msg
}

// BeginStep appends a new step and starts its clock.
func (s *Session) BeginStep(kind, provider, url, model string, messages any, params map[string]any) {
	s.BeginStepAt(time.Now(), kind, provider, url, model, messages, params)
}

// BeginStepAt is BeginStep with an explicit start instant. Speculative
// adoption backdates the provider_call step to the speculative launch so the
// recorded duration reflects the true wall-clock cost.
func (s *Session) BeginStepAt(start time.Time, kind, provider, url, model string, messages any, params map[string]any) {
	step := &Step{
		Step:     kind,
		Provider: provider,
		URL:      url,
		Model:    model,
		Params:   params,
		start:    start,
	}
	if messages != nil {
		if raw, err := json.Marshal(messages); err == nil {
			step.MessagesSent = raw
		}
	}
	s.Steps = append(s.Steps, step)
}

// EndStep closes the most recent step.
func (s *Session) EndStep(res StepResult) {
	if len(s.Steps) == 0 {
		return
	}
	step := s.Steps[len(s.Steps)-1]
	ms := time.Since(step.start).Milliseconds()
	step.DurationMS = &ms
	if res.Status != 0 {
		st := res.Status
		step.Status = &st
	}
	if res.FinishReason != "" {
		fr := res.FinishReason
		step.FinishReason = &fr
	}
	switch {
	case res.Err != "":
		marker := "[error: " + res.Err + "]"
		step.ResponseContent = &marker
	case res.HasResponse:
		text := res.Response
		if len(text) > maxResponseChars {
			text = text[:maxResponseChars]
		}
		step.ResponseContent = &text
	}
}

// SumStepMS totals the recorded durations of steps of the given kind.
func (s *Session) SumStepMS(kind string) int64 {
	var total int64
	for _, step := range s.Steps {
		if step.Step == kind && step.DurationMS != nil {
			total += *step.DurationMS
		}
	}
	return total
}

// ClassificationDuration returns the recorded classification time, zero for
// the meta fast path.
func (s *Session) ClassificationDuration() int64 {
	if s.ClassificationMS == nil {
		return 0
	}
	return *s.ClassificationMS
}

// RouteValue returns the recorded route or "".
func (s *Session) RouteValue() string {
	if s.Route == nil {
		return ""
	}
	return *s.Route
}

// Save writes the session file and triggers amortized housekeeping. Returns
// after the file is closed; never called twice.
func (s *Session) Save() {
	total := time.Since(s.startedAt).Milliseconds()
	s.TotalMS = &total

	filename := fmt.Sprintf("%s_%s.json", s.stamp.Format("2006-01-02_15-04-05"), s.ID)
	path := filepath.Join(s.sink.dir, filename)

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		s.sink.logger.Error("Failed to serialize session", zap.String("session", s.ID), zap.Error(err))
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.sink.logger.Error("Failed to write session file", zap.String("path", path), zap.Error(err))
	}

	s.sink.afterSave()
}
