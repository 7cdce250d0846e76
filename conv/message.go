package conv

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/petasbytes/go-conv/tools"
)

// ErrInvariantViolation is returned when a message or conversation would be
// constructed in an invalid state.
var ErrInvariantViolation = errors.New("conv: invariant violation")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

func (r Role) valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return true
	}
	return false
}

type PartKind string

const (
	PartText       PartKind = "text"
	PartToolResult PartKind = "tool_result"
)

// Part is one piece of message content.
type Part struct {
	Kind       PartKind `json:"type"`
	Text       string   `json:"text,omitempty"`
	ToolCallID string   `json:"tool_call_id,omitempty"`
	Content    string   `json:"content,omitempty"`
}

func TextPart(text string) Part {
	return Part{Kind: PartText, Text: text}
}

func ToolResultPart(r tools.Result) Part {
	return Part{Kind: PartToolResult, ToolCallID: r.CallID, Content: r.Content}
}

// ToolCall is a model request to invoke a named tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Message is an immutable conversation entry. Build one with User, System,
// Assistant, ToolMessage or NewMessage.
type Message struct {
	role       Role
	parts      []Part
	toolCallID string
	toolCalls  []ToolCall
}

type MessageOption func(*Message)

// WithToolCallID links a tool message to the call it answers.
func WithToolCallID(id string) MessageOption {
	return func(m *Message) { m.toolCallID = id }
}

// WithToolCalls attaches model tool requests to an assistant message.
func WithToolCalls(calls ...ToolCall) MessageOption {
	return func(m *Message) { m.toolCalls = cloneCalls(calls) }
}

// NewMessage validates and builds a message.
func NewMessage(role Role, parts []Part, opts ...MessageOption) (Message, error) {
	m := Message{role: role, parts: append([]Part(nil), parts...)}
	for _, opt := range opts {
		opt(&m)
	}
	if err := m.validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

func (m Message) validate() error {
	if !m.role.valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvariantViolation, m.role)
	}
	if m.role == RoleTool && m.toolCallID == "" {
		return fmt.Errorf("%w: tool message without tool_call_id", ErrInvariantViolation)
	}
	if m.role != RoleTool && m.toolCallID != "" {
		return fmt.Errorf("%w: tool_call_id on %s message", ErrInvariantViolation, m.role)
	}
	if len(m.toolCalls) > 0 && m.role != RoleAssistant {
		return fmt.Errorf("%w: tool calls on %s message", ErrInvariantViolation, m.role)
	}
	for _, c := range m.toolCalls {
		if c.ID == "" || c.Name == "" {
			return fmt.Errorf("%w: tool call missing id or name", ErrInvariantViolation)
		}
	}
	for _, p := range m.parts {
		switch p.Kind {
		case PartText:
		case PartToolResult:
			if m.role != RoleTool {
				return fmt.Errorf("%w: tool_result part on %s message", ErrInvariantViolation, m.role)
			}
		default:
			return fmt.Errorf("%w: unknown part kind %q", ErrInvariantViolation, p.Kind)
		}
	}
	return nil
}

func User(text string) Message {
	return Message{role: RoleUser, parts: []Part{TextPart(text)}}
}

func System(text string) Message {
	return Message{role: RoleSystem, parts: []Part{TextPart(text)}}
}

// Assistant builds a model message. Empty text yields no text part.
func Assistant(text string, calls ...ToolCall) (Message, error) {
	var parts []Part
	if text != "" {
		parts = []Part{TextPart(text)}
	}
	return NewMessage(RoleAssistant, parts, WithToolCalls(calls...))
}

// ToolMessage wraps a tool result as a message answering r.CallID.
func ToolMessage(r tools.Result) (Message, error) {
	return NewMessage(RoleTool, []Part{ToolResultPart(r)}, WithToolCallID(r.CallID))
}

func (m Message) Role() Role         { return m.role }
func (m Message) ToolCallID() string { return m.toolCallID }
func (m Message) IsZero() bool       { return m.role == "" }

func (m Message) Parts() []Part {
	return append([]Part(nil), m.parts...)
}

func (m Message) ToolCalls() []ToolCall {
	return cloneCalls(m.toolCalls)
}

// Text concatenates text and tool result content in order.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.parts {
		switch p.Kind {
		case PartText:
			b.WriteString(p.Text)
		case PartToolResult:
			b.WriteString(p.Content)
		}
	}
	return b.String()
}

type messageJSON struct {
	Role       Role       `json:"role"`
	Content    []Part     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	parts := m.parts
	if parts == nil {
		parts = []Part{}
	}
	return json.Marshal(messageJSON{Role: m.role, Content: parts, ToolCallID: m.toolCallID, ToolCalls: m.toolCalls})
}

func (m *Message) UnmarshalJSON(b []byte) error {
	var w messageJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	built, err := NewMessage(w.Role, w.Content, WithToolCallID(w.ToolCallID), WithToolCalls(w.ToolCalls...))
	if err != nil {
		return err
	}
	*m = built
	return nil
}

func cloneCalls(calls []ToolCall) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]ToolCall, len(calls))
	for i, c := range calls {
		out[i] = ToolCall{ID: c.ID, Name: c.Name, Arguments: append(json.RawMessage(nil), c.Arguments...)}
	}
	return out
}
