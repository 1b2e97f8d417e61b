package chat

import (
	"encoding/json"
)

// Message roles understood by the gateway. Any other role passes through
// untouched.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn of a conversation. Fields the gateway never touches
// (tool_call_id, name, tool_calls, ...) are preserved verbatim in extra so
// the forwarded payload matches what the client sent.
type Message struct {
	Role    string
	Content string

	extra map[string]json.RawMessage
}

// NewMessage builds a plain role/content message.
func NewMessage(role, content string) Message {
	return Message{Role: role, Content: content}
}

// SetContent replaces the message text. If the client sent structured
// (non-string) content, it is discarded in favour of the new text.
func (m *Message) SetContent(content string) {
	m.Content = content
	if m.extra != nil {
		delete(m.extra, "content")
	}
}

// UnmarshalJSON keeps unknown fields intact. A non-string content value is
// preserved raw and reads back as empty text.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v, ok := raw["role"]; ok {
		if err := json.Unmarshal(v, &m.Role); err != nil {
			return err
		}
		delete(raw, "role")
	}
	if v, ok := raw["content"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			m.Content = s
			delete(raw, "content")
		}
	}
	m.extra = raw
	return nil
}

// MarshalJSON reassembles the original shape plus any mutations.
func (m Message) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(m.extra)+2)
	for k, v := range m.extra {
		out[k] = v
	}
	role, err := json.Marshal(m.Role)
	if err != nil {
		return nil, err
	}
	out["role"] = role
	if _, structured := m.extra["content"]; !structured {
		content, err := json.Marshal(m.Content)
		if err != nil {
			return nil, err
		}
		out["content"] = content
	}
	return json.Marshal(out)
}

// clone returns an independent copy. RawMessage values are never mutated in
// place, so a shallow copy of the map entries is enough.
func (m Message) clone() Message {
	c := Message{Role: m.Role, Content: m.Content}
	if m.extra != nil {
		c.extra = make(map[string]json.RawMessage, len(m.extra))
		for k, v := range m.extra {
			c.extra[k] = v
		}
	}
	return c
}
