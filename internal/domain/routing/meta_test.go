package routing

import (
	"strings"
	"testing"

	"github.com/airouter/airouter/internal/domain/chat"
)

func metaContent(marker string) string {
	return "### Task:\nGenerate a title.\n" + marker + "\n" + strings.Repeat("USER: hello there\nASSISTANT: hi\n", 20)
}

func TestIsMetaPrompt_Detected(t *testing.T) {
	msgs := []chat.Message{chat.NewMessage(chat.RoleUser, metaContent("<chat_history>"))}
	if !IsMetaPrompt(msgs) {
		t.Fatal("expected meta-prompt detection")
	}
}

func TestIsMetaPrompt_RequiresSingleUserMessage(t *testing.T) {
	content := metaContent("<chat_history>")

	two := []chat.Message{
		chat.NewMessage(chat.RoleUser, content),
		chat.NewMessage(chat.RoleAssistant, "ok"),
	}
	if IsMetaPrompt(two) {
		t.Error("multi-message conversations are never meta-prompts")
	}

	system := []chat.Message{chat.NewMessage(chat.RoleSystem, content)}
	if IsMetaPrompt(system) {
		t.Error("non-user roles are never meta-prompts")
	}
}

func TestIsMetaPrompt_ShortOrUnmarkedContent(t *testing.T) {
	short := []chat.Message{chat.NewMessage(chat.RoleUser, "### Task: make a title")}
	if IsMetaPrompt(short) {
		t.Error("short content should not trigger the fast path")
	}

	long := []chat.Message{chat.NewMessage(chat.RoleUser, strings.Repeat("just a long question ", 30))}
	if IsMetaPrompt(long) {
		t.Error("length alone should not trigger the fast path")
	}
}

func TestTruncateMetaHistory_UnderLimitUnchanged(t *testing.T) {
	content := "### Task:\n<chat_history>\nUSER: hi\n</chat_history>"
	if got := TruncateMetaHistory(content, 1000); got != content {
		t.Fatalf("content under the limit must pass through, got %q", got)
	}
}

func TestTruncateMetaHistory_KeepsTailInsideTags(t *testing.T) {
	content := "### Task:\n<chat_history>\n" +
		"USER: one\nASSISTANT: two\nUSER: three\nASSISTANT: four\n" +
		"</chat_history>\nSummarize."

	got := TruncateMetaHistory(content, 80)
	if len(got) > 80 {
		t.Fatalf("result length %d exceeds limit", len(got))
	}
	if !strings.HasPrefix(got, "### Task:\n<chat_history>\n") {
		t.Fatalf("prefix lost: %q", got)
	}
	if !strings.HasSuffix(got, "</chat_history>\nSummarize.") {
		t.Fatalf("suffix lost: %q", got)
	}
	if strings.Contains(got, "USER: one") || strings.Contains(got, "ASSISTANT: two") {
		t.Fatalf("oldest exchanges should be dropped first: %q", got)
	}
	if !strings.Contains(got, "USER: three") {
		t.Fatalf("recent exchanges must survive: %q", got)
	}

	// A second pass over the already-fitting result is a no-op.
	if again := TruncateMetaHistory(got, 80); again != got {
		t.Fatalf("truncation must be idempotent, got %q", again)
	}
}

func TestTruncateMetaHistory_SnapsToLineBoundary(t *testing.T) {
	got := TruncateMetaHistory("### Task:\n<chat_history>\n"+
		"USER: one\nASSISTANT: two\nUSER: three\nASSISTANT: four\n"+
		"</chat_history>\nSummarize.", 80)

	inner := got[len("### Task:\n<chat_history>\n") : len(got)-len("</chat_history>\nSummarize.")]
	if strings.HasPrefix(inner, "SER:") || strings.HasPrefix(inner, "SSISTANT:") {
		t.Fatalf("history must not start mid-line: %q", inner)
	}
}

func TestTruncateMetaHistory_NoTagsKeepsSuffix(t *testing.T) {
	content := strings.Repeat("a", 60) + strings.Repeat("b", 40)
	got := TruncateMetaHistory(content, 40)
	if got != strings.Repeat("b", 40) {
		t.Fatalf("untagged content should keep its last maxChars, got %q", got)
	}
}
