package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	return NewRegistry(logger)
}

func TestRegistry_FallbacksAlwaysPresent(t *testing.T) {
	r := testRegistry(t)
	for _, name := range []string{RoutingSystem, RoutingRequest, PrimarySystem, XAISystem, EnrichmentSystem, EnrichmentInjection, MetaSystem} {
		if r.Get(name) == "" {
			t.Errorf("template %q has no fallback", name)
		}
	}
}

func TestRegistry_LoadFromFile(t *testing.T) {
	r := testRegistry(t)
	path := filepath.Join(t.TempDir(), "primary-system-prompt.md")
	if err := os.WriteFile(path, []byte("You are the local model.\n\n"), 0o644); err != nil {
		t.Fatalf("write prompt: %v", err)
	}

	r.Load(map[string]string{PrimarySystem: path})
	if got := r.Get(PrimarySystem); got != "You are the local model." {
		t.Fatalf("got %q, want trimmed file content", got)
	}
}

func TestRegistry_MissingFileKeepsFallback(t *testing.T) {
	r := testRegistry(t)
	before := r.Get(XAISystem)
	r.Load(map[string]string{XAISystem: "/nonexistent/xai.md"})
	if got := r.Get(XAISystem); got != before {
		t.Fatalf("unreadable file must keep the fallback, got %q", got)
	}
}

func TestRegistry_Render(t *testing.T) {
	r := testRegistry(t)
	path := filepath.Join(t.TempDir(), "routing-prompt.md")
	content := "Classify: \"{query}\"{truncation_note}\nKeep {this} literal."
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write prompt: %v", err)
	}
	r.Load(map[string]string{RoutingRequest: path})

	got := r.Render(RoutingRequest, map[string]string{
		"query":           "what is 2+2",
		"truncation_note": "",
	})
	if !strings.Contains(got, `Classify: "what is 2+2"`) {
		t.Fatalf("query not substituted: %q", got)
	}
	if !strings.Contains(got, "{this}") {
		t.Fatalf("unbound placeholders must stay literal: %q", got)
	}
	if strings.Contains(got, "{query}") || strings.Contains(got, "{truncation_note}") {
		t.Fatalf("bound placeholders must be replaced: %q", got)
	}
}

func TestRegistry_EnrichmentInjectionShape(t *testing.T) {
	r := testRegistry(t)
	got := r.Render(EnrichmentInjection, map[string]string{"context": "Live facts."})
	if !strings.Contains(got, "Live facts.") {
		t.Fatalf("context not injected: %q", got)
	}
	if !strings.HasSuffix(got, "---") {
		t.Fatalf("injection must close its delimiter block: %q", got)
	}
}
