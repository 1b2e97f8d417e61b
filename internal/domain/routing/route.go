package routing

import (
	"regexp"
	"strings"
)

// Route is the chosen handling strategy for a request.
type Route string

const (
	// RoutePrimary answers with the local reasoning model.
	RoutePrimary Route = "primary"
	// RouteXAI answers with the cloud model.
	RouteXAI Route = "xai"
	// RouteEnrich retrieves cloud context first, then answers locally.
	RouteEnrich Route = "enrich"
	// RouteMeta handles self-contained client meta-prompts locally.
	RouteMeta Route = "meta"
)

// Valid reports whether r is one of the closed route set.
func (r Route) Valid() bool {
	switch r {
	case RoutePrimary, RouteXAI, RouteEnrich, RouteMeta:
		return true
	}
	return false
}

var (
	thinkClosed   = regexp.MustCompile(`(?is)<think>.*?</think>`)
	thinkTrailing = regexp.MustCompile(`(?is)<think>.*`)
)

// ParseDecision maps the classifier's free-text output to a route.
//
// Closed <think>...</think> blocks are stripped first, then any unclosed
// trailing <think> (the model ran out of budget mid-thought), so hidden
// reasoning can never influence the decision. The remainder is uppercased
// and matched by substring in priority order: ENRICH, MODERATE, COMPLEX.
// Anything else (including a stale SIMPLE) falls back to primary; the second
// return value reports whether the decision was recognized.
func ParseDecision(raw string) (Route, string, bool) {
	decision := thinkClosed.ReplaceAllString(raw, "")
	decision = thinkTrailing.ReplaceAllString(decision, "")
	decision = strings.ToUpper(strings.TrimSpace(decision))

	switch {
	case strings.Contains(decision, "ENRICH"):
		return RouteEnrich, decision, true
	case strings.Contains(decision, "MODERATE"):
		return RoutePrimary, decision, true
	case strings.Contains(decision, "COMPLEX"):
		return RouteXAI, decision, true
	}
	return RoutePrimary, decision, false
}
