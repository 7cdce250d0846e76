package conv

import "context"

// FinishReason is a backend's normalised reason for ending a completion.
// Values outside the constants below are passed through verbatim.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishToolCalls     FinishReason = "tool_calls"
	FinishLength        FinishReason = "length"
	FinishContentFilter FinishReason = "content_filter"
	FinishFunctionCall  FinishReason = "function_call"
)

// Reply is what a success handler receives: the final assistant message and
// its payload (trimmed text, or a value of the schema's type).
type Reply struct {
	Message Message
	Payload any
}

// Handler decides what follows a normal completion. Returning a nil
// conversation ends the run.
type Handler func(ctx context.Context, c *Conversation, r Reply) (*Conversation, error)

// FailureHandler is called when a completion ended degenerately (truncated,
// filtered, unsupported). Returning a nil conversation ends the run.
type FailureHandler func(ctx context.Context, c *Conversation, reason FinishReason, last Message) (*Conversation, error)

// InvalidOutputHandler is called when output did not satisfy the requested
// schema. err is an *extract.StructuredOutputError.
type InvalidOutputHandler func(ctx context.Context, c *Conversation, err error) (*Conversation, error)
