package llm

import (
	"encoding/json"
)

// Reply is what a backend call produced: either a buffered body or a
// passthrough stream, never both.
type Reply struct {
	Status      int
	ContentType string
	Body        []byte
	Stream      *StreamBody
}

// chatCompletion is the slice of an OpenAI chat-completion response the
// gateway inspects for trace logging. Everything else passes through opaque.
type chatCompletion struct {
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"message"`
	} `json:"choices"`
}

// extractAssistantText pulls the assistant text and finish_reason from a
// buffered chat-completion body. Reasoning models may put all output in
// reasoning_content with content null, especially under a tight max_tokens.
// Returns ok=false when the body is not a recognizable completion.
func extractAssistantText(body []byte) (text, finishReason string, ok bool) {
	var parsed chatCompletion
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Choices) == 0 {
		return "", "", false
	}
	choice := parsed.Choices[0]
	text = choice.Message.Content
	if text == "" {
		text = choice.Message.ReasoningContent
	}
	return text, choice.FinishReason, true
}

// responsesResult is the slice of a /v1/responses body the enricher walks.
type responsesResult struct {
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}
