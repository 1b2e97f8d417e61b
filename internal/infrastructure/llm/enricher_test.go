package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/airouter/airouter/internal/domain/chat"
	"github.com/airouter/airouter/internal/infrastructure/trace"
)

func newEnricherAgainst(t *testing.T, url, tools string) *Enricher {
	t.Helper()
	target := Target{Name: TargetXAI, BaseURL: url, Model: "xai-model", APIKey: "test-key"}
	return NewEnricher(target, testPrompts(), tools, testLogger())
}

func responsesBody(texts ...string) string {
	blocks := ""
	for i, text := range texts {
		if i > 0 {
			blocks += ","
		}
		blocks += fmt.Sprintf(`{"type":"output_text","text":%q}`, text)
	}
	return `{"output":[{"type":"reasoning"},{"type":"message","content":[` + blocks + `]}]}`
}

func TestFetch_RequestShape(t *testing.T) {
	var got map[string]json.RawMessage
	var auth, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		fmt.Fprint(w, responsesBody("Live facts."))
	}))
	defer srv.Close()

	enricher := newEnricherAgainst(t, srv.URL, "web_search,x_search")
	msgs := []chat.Message{
		chat.NewMessage(chat.RoleSystem, "client system"),
		chat.NewMessage(chat.RoleUser, "who won yesterday?"),
		chat.NewMessage(chat.RoleAssistant, "which game?"),
		chat.NewMessage(chat.RoleUser, "the late one"),
	}

	result := enricher.Fetch(context.Background(), msgs, "temporal", nil)
	if result != "Live facts." {
		t.Fatalf("result = %q", result)
	}

	if path != "/v1/responses" {
		t.Errorf("path = %q, want /v1/responses", path)
	}
	if auth != "Bearer test-key" {
		t.Errorf("auth = %q", auth)
	}
	if string(got["model"]) != `"xai-model"` {
		t.Errorf("model = %s", got["model"])
	}
	if string(got["max_output_tokens"]) != "1024" {
		t.Errorf("max_output_tokens = %s", got["max_output_tokens"])
	}

	var tools []map[string]string
	if err := json.Unmarshal(got["tools"], &tools); err != nil || len(tools) != 2 {
		t.Fatalf("tools = %s", got["tools"])
	}
	if tools[0]["type"] != "web_search" || tools[1]["type"] != "x_search" {
		t.Fatalf("tools = %v", tools)
	}

	var input []chat.Message
	if err := json.Unmarshal(got["input"], &input); err != nil {
		t.Fatalf("decode input: %v", err)
	}
	// Leading retrieval system prompt, then user/assistant turns only.
	if input[0].Role != chat.RoleSystem {
		t.Fatalf("input[0] role = %q, want system", input[0].Role)
	}
	if len(input) != 4 {
		t.Fatalf("input length = %d, want 4 (client system dropped)", len(input))
	}
	for _, m := range input[1:] {
		if m.Role != chat.RoleUser && m.Role != chat.RoleAssistant {
			t.Fatalf("unexpected role %q in enrichment input", m.Role)
		}
	}
}

func TestFetch_ConcatenatesOutputText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, responsesBody("Fact one. ", "Fact two."))
	}))
	defer srv.Close()

	enricher := newEnricherAgainst(t, srv.URL, "")
	sess := testSession(t)

	result := enricher.Fetch(context.Background(), []chat.Message{chat.NewMessage(chat.RoleUser, "q")}, "temporal", sess)
	if result != "Fact one. Fact two." {
		t.Fatalf("result = %q", result)
	}

	step := sess.Steps[len(sess.Steps)-1]
	if step.Step != trace.StepEnrichment || *step.ResponseContent != "Fact one. Fact two." {
		t.Fatalf("enrichment step wrong: %+v", step)
	}
}

func TestFetch_NoToolsOmitsField(t *testing.T) {
	var got map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		fmt.Fprint(w, responsesBody("x"))
	}))
	defer srv.Close()

	enricher := newEnricherAgainst(t, srv.URL, "")
	enricher.Fetch(context.Background(), []chat.Message{chat.NewMessage(chat.RoleUser, "q")}, "temporal", nil)

	if _, ok := got["tools"]; ok {
		t.Fatal("empty tool list must omit the tools field")
	}
}

func TestFetch_FailuresReturnEmpty(t *testing.T) {
	// Backend down.
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	down.Close()
	enricher := newEnricherAgainst(t, down.URL, "")
	sess := testSession(t)
	if got := enricher.Fetch(context.Background(), []chat.Message{chat.NewMessage(chat.RoleUser, "q")}, "temporal", sess); got != "" {
		t.Fatalf("unreachable backend must yield empty context, got %q", got)
	}
	if *sess.Steps[len(sess.Steps)-1].ResponseContent != "[error: connection_error]" {
		t.Fatal("enrichment failure must be recorded")
	}

	// Non-200.
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()
	enricher = newEnricherAgainst(t, bad.URL, "")
	if got := enricher.Fetch(context.Background(), []chat.Message{chat.NewMessage(chat.RoleUser, "q")}, "temporal", nil); got != "" {
		t.Fatalf("non-200 must yield empty context, got %q", got)
	}

	// Empty output.
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"output":[]}`)
	}))
	defer empty.Close()
	enricher = newEnricherAgainst(t, empty.URL, "")
	if got := enricher.Fetch(context.Background(), []chat.Message{chat.NewMessage(chat.RoleUser, "q")}, "temporal", nil); got != "" {
		t.Fatalf("empty output must yield empty context, got %q", got)
	}
}

func TestBuildSearchTools(t *testing.T) {
	if tools := buildSearchTools(""); tools != nil {
		t.Fatalf("empty list should build no tools, got %v", tools)
	}
	tools := buildSearchTools(" web_search , x_search ,")
	if len(tools) != 2 || tools[0]["type"] != "web_search" || tools[1]["type"] != "x_search" {
		t.Fatalf("tools = %v", tools)
	}
}
