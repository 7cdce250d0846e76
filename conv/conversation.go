package conv

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/petasbytes/go-conv/extract"
	"github.com/petasbytes/go-conv/tools"
)

type ReasoningEffort string

const (
	EffortLow    ReasoningEffort = "low"
	EffortMedium ReasoningEffort = "medium"
	EffortHigh   ReasoningEffort = "high"
)

// ParseReasoningEffort accepts low, medium or high.
func ParseReasoningEffort(s string) (ReasoningEffort, error) {
	switch e := ReasoningEffort(s); e {
	case EffortLow, EffortMedium, EffortHigh:
		return e, nil
	}
	return "", fmt.Errorf("%w: reasoning effort %q", ErrInvariantViolation, s)
}

// node is one cell of the persistent message list. Cells are shared between
// a conversation and everything derived from it, and are never written after
// construction.
type node struct {
	msg  Message
	prev *node
	n    int
}

// Conversation is an immutable snapshot of a dialogue plus its per-turn
// configuration. Every "mutation" returns a new Conversation.
type Conversation struct {
	id          string
	model       string
	temperature *float64
	effort      ReasoningEffort
	schema      *extract.Schema
	tools       *tools.Set

	handler Handler
	failure FailureHandler
	invalid InvalidOutputHandler

	tail     *node
	reported int
}

type Option func(*Conversation)

func WithID(id string) Option {
	return func(c *Conversation) { c.id = id }
}

func WithTemperature(t float64) Option {
	return func(c *Conversation) { c.temperature = &t }
}

func WithReasoningEffort(e ReasoningEffort) Option {
	return func(c *Conversation) { c.effort = e }
}

// WithSchema requests structured output for the following turns; nil clears it.
func WithSchema(s *extract.Schema) Option {
	return func(c *Conversation) { c.schema = s }
}

func WithTools(ts *tools.Set) Option {
	return func(c *Conversation) { c.tools = ts }
}

func WithHandler(h Handler) Option {
	return func(c *Conversation) { c.handler = h }
}

func WithFailureHandler(h FailureHandler) Option {
	return func(c *Conversation) { c.failure = h }
}

func WithInvalidOutputHandler(h InvalidOutputHandler) Option {
	return func(c *Conversation) { c.invalid = h }
}

// New starts a conversation with the given initial messages.
func New(model string, initial []Message, opts ...Option) (*Conversation, error) {
	if model == "" {
		return nil, fmt.Errorf("%w: empty model", ErrInvariantViolation)
	}
	c := &Conversation{model: model, effort: EffortMedium}
	for _, m := range initial {
		if m.IsZero() {
			return nil, fmt.Errorf("%w: zero message in initial list", ErrInvariantViolation)
		}
		c.tail = &node{msg: m, prev: c.tail, n: c.Len() + 1}
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.id == "" {
		c.id = uuid.NewString()
	}
	if _, err := ParseReasoningEffort(string(c.effort)); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Conversation) clone() *Conversation {
	cp := *c
	return &cp
}

// Append returns a new conversation with m added at the end.
func (c *Conversation) Append(m Message) (*Conversation, error) {
	if m.IsZero() {
		return nil, fmt.Errorf("%w: append of zero message", ErrInvariantViolation)
	}
	next := c.clone()
	next.tail = &node{msg: m, prev: c.tail, n: c.Len() + 1}
	return next, nil
}

// Respond appends a user message. Options override the conversation's settings
// (typically schema or handler) from the next turn on.
func (c *Conversation) Respond(text string, overrides ...Option) *Conversation {
	next, _ := c.Append(User(text))
	for _, opt := range overrides {
		opt(next)
	}
	return next
}

// With returns a copy with opts applied and the messages unchanged.
func (c *Conversation) With(opts ...Option) *Conversation {
	next := c.clone()
	for _, opt := range opts {
		opt(next)
	}
	return next
}

// MarkReported returns a copy whose listener cursor covers every message.
func (c *Conversation) MarkReported() *Conversation {
	next := c.clone()
	next.reported = c.Len()
	return next
}

// Reported is the number of messages already delivered to listeners.
func (c *Conversation) Reported() int { return c.reported }

// Unreported returns the messages appended since the last MarkReported.
func (c *Conversation) Unreported() []Message {
	return c.Messages()[c.reported:]
}

func (c *Conversation) Len() int {
	if c.tail == nil {
		return 0
	}
	return c.tail.n
}

// Messages returns the messages in order. The slice is freshly allocated.
func (c *Conversation) Messages() []Message {
	out := make([]Message, c.Len())
	for n := c.tail; n != nil; n = n.prev {
		out[n.n-1] = n.msg
	}
	return out
}

// Last returns the most recent message.
func (c *Conversation) Last() (Message, bool) {
	if c.tail == nil {
		return Message{}, false
	}
	return c.tail.msg, true
}

func (c *Conversation) ID() string                       { return c.id }
func (c *Conversation) Model() string                    { return c.model }
func (c *Conversation) ReasoningEffort() ReasoningEffort { return c.effort }
func (c *Conversation) Schema() *extract.Schema          { return c.schema }
func (c *Conversation) Tools() *tools.Set                { return c.tools }
func (c *Conversation) Handler() Handler                 { return c.handler }
func (c *Conversation) FailureHandler() FailureHandler   { return c.failure }

func (c *Conversation) InvalidOutputHandler() InvalidOutputHandler { return c.invalid }

// Temperature reports the sampling temperature, if one was set.
func (c *Conversation) Temperature() (float64, bool) {
	if c.temperature == nil {
		return 0, false
	}
	return *c.temperature, true
}
