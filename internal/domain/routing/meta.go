package routing

import (
	"strings"

	"github.com/airouter/airouter/internal/domain/chat"
)

// Markers that identify a client-generated meta-prompt: a chat UI asking for
// titles, follow-up suggestions, or summaries with the prior conversation
// embedded in a single user message.
var metaMarkers = []string{
	"USER:",
	"ASSISTANT:",
	"<chat_history>",
	"### Task:",
	"### Guidelines:",
}

const metaMinLength = 300

const (
	historyOpenTag  = "<chat_history>"
	historyCloseTag = "</chat_history>"
)

// IsMetaPrompt reports whether the request is a self-contained meta-prompt:
// exactly one message, user role, longer than 300 chars, carrying one of the
// embedded-history markers. Such requests bypass classification entirely.
func IsMetaPrompt(messages []chat.Message) bool {
	if len(messages) != 1 || messages[0].Role != chat.RoleUser {
		return false
	}
	content := messages[0].Content
	if len(content) <= metaMinLength {
		return false
	}
	for _, marker := range metaMarkers {
		if strings.Contains(content, marker) {
			return true
		}
	}
	return false
}

// TruncateMetaHistory caps an oversized meta-prompt at maxChars. When the
// prompt wraps its history in <chat_history> tags, only the embedded history
// is trimmed: the tail is kept (most recent exchanges) and snapped forward
// to the next line break so no message is cut mid-line, and the closing tag
// survives. Without tags the prompt keeps its last maxChars.
func TruncateMetaHistory(content string, maxChars int) string {
	if len(content) <= maxChars {
		return content
	}

	start := strings.Index(content, historyOpenTag)
	end := strings.Index(content, historyCloseTag)
	if start < 0 || end <= start {
		return content[len(content)-maxChars:]
	}

	prefixEnd := start + len(historyOpenTag)
	if prefixEnd < len(content) && content[prefixEnd] == '\n' {
		prefixEnd++
	}
	prefix := content[:prefixEnd]
	suffix := content[end:]
	history := content[prefixEnd:end]

	budget := maxChars - len(prefix) - len(suffix)
	if budget < 0 {
		budget = 0
	}
	if len(history) > budget {
		history = history[len(history)-budget:]
	}
	if nl := strings.IndexByte(history, '\n'); nl >= 0 {
		history = history[nl+1:]
	}
	return prefix + history + suffix
}
