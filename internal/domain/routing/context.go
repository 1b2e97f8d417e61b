package routing

import (
	"regexp"
	"strings"

	"github.com/airouter/airouter/internal/domain/chat"
)

// detailsBlock matches collapsed reasoning wrappers some chat UIs store in
// assistant messages. The classifier should see the answer, not the
// chain-of-thought.
var detailsBlock = regexp.MustCompile(`(?is)<details[^>]*>.*?</details>\s*`)

const contextHeading = "Recent conversation context (for resolving references):\n"

// ContextPrefix joins every message before the last one as "<role>: <content>"
// lines under a fixed heading, so the classifier can resolve references like
// "that school" or "it". Returns "" for single-turn requests. No truncation:
// the classifier shares the primary model's context window.
func ContextPrefix(messages []chat.Message) string {
	if len(messages) < 2 {
		return ""
	}
	prior := messages[:len(messages)-1]
	lines := make([]string, 0, len(prior))
	for _, m := range prior {
		role := m.Role
		if role == "" {
			role = "unknown"
		}
		content := detailsBlock.ReplaceAllString(m.Content, "")
		lines = append(lines, role+": "+strings.TrimSpace(content))
	}
	return contextHeading + strings.Join(lines, "\n") + "\n\n"
}
