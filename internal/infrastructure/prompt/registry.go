// Package prompt holds the named prompt templates. Templates live in
// external markdown files so they can be tuned without redeploying; every
// template has a built-in fallback so a missing file never takes the service
// down.
package prompt

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Template names.
const (
	RoutingSystem       = "routing-system"
	RoutingRequest      = "routing-request"
	PrimarySystem       = "primary-system"
	XAISystem           = "xai-system"
	EnrichmentSystem    = "enrichment-system"
	EnrichmentInjection = "enrichment-injection"
	MetaSystem          = "meta-system"
)

// fallbacks keep the service up when a prompt file is unreadable. Using one
// is logged as an error so drift is detectable.
var fallbacks = map[string]string{
	RoutingSystem: "You are a query classifier. Respond with ONLY ONE WORD: SIMPLE, MODERATE, or COMPLEX.",
	RoutingRequest: "Classify this query as SIMPLE, MODERATE, COMPLEX, or ENRICH.\n" +
		"User query: \"{query}\"\n" +
		"Respond with ONLY ONE WORD: SIMPLE, MODERATE, COMPLEX, or ENRICH",
	PrimarySystem: "You are a helpful assistant. Answer directly and keep responses concise unless the question calls for depth.",
	XAISystem:     "You are a helpful assistant with access to current information. Answer directly and keep responses concise.",
	EnrichmentSystem: "You are a real-time information retrieval assistant. Provide concise, factual, current information " +
		"relevant to the user's query. Do not answer the question directly; your output will be used as context for another model.",
	EnrichmentInjection: "The following is supplementary real-time context retrieved from an external source:\n\n---\n{context}\n---",
	MetaSystem: "You are completing an interface housekeeping task (title, summary, or follow-up suggestions). " +
		"Follow the task instructions exactly and output only what is asked for.",
}

// Registry maps template names to their current text. Reads are concurrent
// with watcher-driven reloads.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]string
	paths     map[string]string
	logger    *zap.Logger
}

// NewRegistry starts from the built-in fallbacks.
func NewRegistry(logger *zap.Logger) *Registry {
	templates := make(map[string]string, len(fallbacks))
	for name, text := range fallbacks {
		templates[name] = text
	}
	return &Registry{
		templates: templates,
		paths:     map[string]string{},
		logger:    logger,
	}
}

// Load reads each named template from its path. A read failure keeps the
// fallback.
func (r *Registry) Load(paths map[string]string) {
	for name, path := range paths {
		r.paths[name] = path
		r.loadOne(name, path)
	}
}

func (r *Registry) loadOne(name, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		r.logger.Error("Prompt file unreadable, using fallback",
			zap.String("prompt", name),
			zap.String("path", path),
			zap.Error(err),
		)
		return
	}
	r.mu.Lock()
	r.templates[name] = strings.TrimSpace(string(data))
	r.mu.Unlock()
	r.logger.Info("Loaded prompt", zap.String("prompt", name), zap.String("path", path))
}

// Get returns the current text of a template.
func (r *Registry) Get(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.templates[name]
}

// Render substitutes {placeholder} variables into a template. Placeholders
// without a value are left untouched.
func (r *Registry) Render(name string, vars map[string]string) string {
	text := r.Get(name)
	if len(vars) == 0 {
		return text
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
