package llm

import (
	"strings"

	"github.com/airouter/airouter/internal/infrastructure/config"
)

// Backend names used as the provider tag in session steps and logs.
const (
	TargetRouter  = "router"
	TargetPrimary = "primary"
	TargetXAI     = "xai"
)

// Target identifies one backend: base URL, the model id forced onto outbound
// requests, and the bearer key for cloud calls.
type Target struct {
	Name    string
	BaseURL string
	Model   string
	APIKey  string
}

// URL joins the base URL with an API path.
func (t Target) URL(path string) string {
	return strings.TrimRight(t.BaseURL, "/") + path
}

// Targets holds the three fixed backends.
type Targets struct {
	Router  Target // local fast classifier
	Primary Target // local large reasoning model
	XAI     Target // remote cloud model with search tools
}

// TargetsFromConfig builds the backend set from startup configuration.
func TargetsFromConfig(cfg *config.Config) Targets {
	return Targets{
		Router:  Target{Name: TargetRouter, BaseURL: cfg.RouterURL, Model: cfg.RouterModel},
		Primary: Target{Name: TargetPrimary, BaseURL: cfg.PrimaryURL, Model: cfg.PrimaryModel},
		XAI:     Target{Name: TargetXAI, BaseURL: cfg.XAIAPIURL, Model: cfg.XAIModel, APIKey: cfg.XAIAPIKey},
	}
}

// ForRoute maps a route tag to the backend that answers it. Enrichment and
// meta requests are answered by the local reasoning model.
func (t Targets) ForRoute(route string) Target {
	if route == TargetXAI {
		return t.XAI
	}
	return t.Primary
}
