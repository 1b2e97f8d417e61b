package routing

import (
	"strings"
	"testing"

	"github.com/airouter/airouter/internal/domain/chat"
)

func TestContextPrefix_SingleTurnEmpty(t *testing.T) {
	msgs := []chat.Message{chat.NewMessage(chat.RoleUser, "hello")}
	if got := ContextPrefix(msgs); got != "" {
		t.Fatalf("single-turn requests need no context, got %q", got)
	}
	if got := ContextPrefix(nil); got != "" {
		t.Fatalf("empty conversations need no context, got %q", got)
	}
}

func TestContextPrefix_JoinsPriorTurns(t *testing.T) {
	msgs := []chat.Message{
		chat.NewMessage(chat.RoleSystem, "be concise"),
		chat.NewMessage(chat.RoleUser, "Tell me about MIT"),
		chat.NewMessage(chat.RoleAssistant, "MIT is a university in Cambridge."),
		chat.NewMessage(chat.RoleUser, "what about tuition there?"),
	}
	got := ContextPrefix(msgs)

	want := "Recent conversation context (for resolving references):\n" +
		"system: be concise\n" +
		"user: Tell me about MIT\n" +
		"assistant: MIT is a university in Cambridge.\n\n"
	if got != want {
		t.Fatalf("got:\n%q\nwant:\n%q", got, want)
	}
	if strings.Contains(got, "tuition") {
		t.Fatal("the message being classified must not appear in its own context")
	}
}

func TestContextPrefix_StripsDetailsBlocks(t *testing.T) {
	msgs := []chat.Message{
		chat.NewMessage(chat.RoleAssistant, `<details type="reasoning">hidden chain of thought</details> The answer is 4.`),
		chat.NewMessage(chat.RoleUser, "why?"),
	}
	got := ContextPrefix(msgs)
	if strings.Contains(got, "hidden chain of thought") {
		t.Fatalf("collapsed reasoning must be stripped: %q", got)
	}
	if !strings.Contains(got, "assistant: The answer is 4.") {
		t.Fatalf("visible answer must survive: %q", got)
	}
}

func TestContextPrefix_EmptyRoleLabeledUnknown(t *testing.T) {
	msgs := []chat.Message{
		chat.NewMessage("", "mystery turn"),
		chat.NewMessage(chat.RoleUser, "hi"),
	}
	if got := ContextPrefix(msgs); !strings.Contains(got, "unknown: mystery turn") {
		t.Fatalf("missing roles should be labeled unknown: %q", got)
	}
}
