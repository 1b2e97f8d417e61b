package routing

import (
	"testing"
)

func TestParseDecision_PlainKeywords(t *testing.T) {
	cases := []struct {
		raw        string
		route      Route
		recognized bool
	}{
		{"MODERATE", RoutePrimary, true},
		{"moderate", RoutePrimary, true},
		{"COMPLEX", RouteXAI, true},
		{"ENRICH", RouteEnrich, true},
		{"SIMPLE", RoutePrimary, false},
		{"banana", RoutePrimary, false},
		{"", RoutePrimary, false},
	}
	for _, tc := range cases {
		route, _, recognized := ParseDecision(tc.raw)
		if route != tc.route {
			t.Errorf("ParseDecision(%q) route = %s, want %s", tc.raw, route, tc.route)
		}
		if recognized != tc.recognized {
			t.Errorf("ParseDecision(%q) recognized = %v, want %v", tc.raw, recognized, tc.recognized)
		}
	}
}

func TestParseDecision_StripsThinkBlocks(t *testing.T) {
	raw := "<think>\nThe user asks about current events, so this needs COMPLEX handling... wait, no.\n</think>\nMODERATE"
	route, decision, recognized := ParseDecision(raw)
	if route != RoutePrimary {
		t.Fatalf("route = %s, want primary", route)
	}
	if !recognized {
		t.Fatal("decision should be recognized")
	}
	if decision != "MODERATE" {
		t.Fatalf("decision = %q, want MODERATE", decision)
	}
}

func TestParseDecision_UnclosedThinkFallsBack(t *testing.T) {
	// Classifier ran out of budget mid-thought; everything after <think> is
	// hidden reasoning and must not leak into the decision.
	route, decision, recognized := ParseDecision("<think>this clearly needs ENRICH because")
	if route != RoutePrimary {
		t.Fatalf("route = %s, want primary", route)
	}
	if recognized {
		t.Fatal("truncated reasoning must not be recognized")
	}
	if decision != "" {
		t.Fatalf("decision = %q, want empty", decision)
	}
}

func TestParseDecision_EnrichWinsOverComplex(t *testing.T) {
	route, _, _ := ParseDecision("Could be COMPLEX but the freshness need makes it ENRICH")
	if route != RouteEnrich {
		t.Fatalf("route = %s, want enrich", route)
	}
}

func TestParseDecision_KeywordInsideSentence(t *testing.T) {
	route, _, recognized := ParseDecision("The answer is: MODERATE.")
	if route != RoutePrimary || !recognized {
		t.Fatalf("route = %s recognized = %v, want primary/true", route, recognized)
	}
}

func TestRouteValid(t *testing.T) {
	for _, r := range []Route{RoutePrimary, RouteXAI, RouteEnrich, RouteMeta} {
		if !r.Valid() {
			t.Errorf("%s should be valid", r)
		}
	}
	if Route("auto").Valid() {
		t.Error("auto is not a dispatchable route")
	}
}
