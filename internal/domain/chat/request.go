package chat

import (
	"encoding/json"
)

// Request is an OpenAI-compatible chat-completions payload. The model field
// submitted by the client is overwritten per backend before forwarding;
// unknown top-level fields pass through verbatim.
type Request struct {
	Model       string
	Messages    []Message
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	Stream      bool

	extra map[string]json.RawMessage
}

// UnmarshalJSON decodes the known fields and keeps the rest raw. The internal
// "_route" tag, if a client echoes one back, is dropped; it is never part of
// the wire contract.
func (r *Request) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	pick := func(key string, dst interface{}) error {
		v, ok := raw[key]
		if !ok {
			return nil
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return err
		}
		delete(raw, key)
		return nil
	}

	if err := pick("model", &r.Model); err != nil {
		return err
	}
	if v, ok := raw["messages"]; ok {
		if err := json.Unmarshal(v, &r.Messages); err != nil {
			return err
		}
		delete(raw, "messages")
	} else {
		r.Messages = nil
	}
	if err := pick("temperature", &r.Temperature); err != nil {
		return err
	}
	if err := pick("top_p", &r.TopP); err != nil {
		return err
	}
	if err := pick("max_tokens", &r.MaxTokens); err != nil {
		return err
	}
	if err := pick("stream", &r.Stream); err != nil {
		return err
	}
	delete(raw, "_route")
	r.extra = raw
	return nil
}

// MarshalJSON serializes the request for the target backend.
func (r Request) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(r.extra)+6)
	for k, v := range r.extra {
		out[k] = v
	}

	put := func(key string, v interface{}) error {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		out[key] = b
		return nil
	}

	if err := put("model", r.Model); err != nil {
		return nil, err
	}
	if r.Messages != nil {
		if err := put("messages", r.Messages); err != nil {
			return nil, err
		}
	}
	if r.Temperature != nil {
		if err := put("temperature", *r.Temperature); err != nil {
			return nil, err
		}
	}
	if r.TopP != nil {
		if err := put("top_p", *r.TopP); err != nil {
			return nil, err
		}
	}
	if r.MaxTokens != nil {
		if err := put("max_tokens", *r.MaxTokens); err != nil {
			return nil, err
		}
	}
	if r.Stream {
		if err := put("stream", r.Stream); err != nil {
			return nil, err
		}
	}
	return json.Marshal(out)
}

// Clone returns a deep copy. The speculative primary call mutates its own
// copy so route handlers never observe speculative-side edits.
func (r *Request) Clone() *Request {
	c := &Request{
		Model:  r.Model,
		Stream: r.Stream,
	}
	if r.Temperature != nil {
		t := *r.Temperature
		c.Temperature = &t
	}
	if r.TopP != nil {
		t := *r.TopP
		c.TopP = &t
	}
	if r.MaxTokens != nil {
		t := *r.MaxTokens
		c.MaxTokens = &t
	}
	if r.Messages != nil {
		c.Messages = make([]Message, len(r.Messages))
		for i, m := range r.Messages {
			c.Messages[i] = m.clone()
		}
	}
	if r.extra != nil {
		c.extra = make(map[string]json.RawMessage, len(r.extra))
		for k, v := range r.extra {
			c.extra[k] = v
		}
	}
	return c
}

// SetTemperature overrides the sampling temperature.
func (r *Request) SetTemperature(t float64) { r.Temperature = &t }

// SetTopP overrides nucleus sampling.
func (r *Request) SetTopP(p float64) { r.TopP = &p }

// StripMaxTokens removes any client-supplied completion budget.
func (r *Request) StripMaxTokens() { r.MaxTokens = nil }

// EnsureMaxTokensFloor raises max_tokens to at least floor, setting it when
// absent.
func (r *Request) EnsureMaxTokensFloor(floor int) {
	if r.MaxTokens == nil || *r.MaxTokens < floor {
		f := floor
		r.MaxTokens = &f
	}
}

// FirstSystem returns a pointer to the first system message, or nil.
func (r *Request) FirstSystem() *Message {
	for i := range r.Messages {
		if r.Messages[i].Role == RoleSystem {
			return &r.Messages[i]
		}
	}
	return nil
}

// LastUserContent returns the content of the last user message.
func (r *Request) LastUserContent() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}

// PrependSystemPrefix injects line ahead of the first system message's text,
// or inserts a new leading system message when none exists.
func (r *Request) PrependSystemPrefix(line string) {
	if sys := r.FirstSystem(); sys != nil {
		sys.SetContent(line + "\n\n" + sys.Content)
		return
	}
	r.Messages = append([]Message{NewMessage(RoleSystem, line)}, r.Messages...)
}

// InsertLeadingSystem puts a new system message at position zero regardless
// of existing system messages (used by the meta pipeline).
func (r *Request) InsertLeadingSystem(content string) {
	r.Messages = append([]Message{NewMessage(RoleSystem, content)}, r.Messages...)
}

// AppendToFirstSystemOrInsert appends injection to the end of the first
// system message; when the conversation has none it inserts a new system
// message immediately before the last user message.
func (r *Request) AppendToFirstSystemOrInsert(injection string) {
	if sys := r.FirstSystem(); sys != nil {
		sys.SetContent(sys.Content + "\n\n" + injection)
		return
	}
	pos := len(r.Messages)
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			pos = i
			break
		}
	}
	msgs := make([]Message, 0, len(r.Messages)+1)
	msgs = append(msgs, r.Messages[:pos]...)
	msgs = append(msgs, NewMessage(RoleSystem, injection))
	msgs = append(msgs, r.Messages[pos:]...)
	r.Messages = msgs
}
