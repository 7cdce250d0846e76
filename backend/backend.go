// Package backend defines the single capability the driver needs from a
// model provider: complete one turn of a conversation.
//
// Adapters live in subpackages (openai, anthropic). Decorators in this
// package add retry, timeouts and an on-disk cache to any Backend.
package backend

import (
	"context"

	"github.com/petasbytes/go-conv/conv"
	"github.com/petasbytes/go-conv/extract"
	"github.com/petasbytes/go-conv/tools"
)

// Request is one completion request.
type Request struct {
	Model           string               `json:"model"`
	Messages        []conv.Message       `json:"messages"`
	Tools           []tools.Descriptor   `json:"tools,omitempty"`
	Schema          *extract.Schema      `json:"schema,omitempty"`
	Temperature     *float64             `json:"temperature,omitempty"`
	ReasoningEffort conv.ReasoningEffort `json:"reasoning_effort,omitempty"`
}

// Response is one completion. Message is always an assistant message.
type Response struct {
	Message      conv.Message      `json:"message"`
	FinishReason conv.FinishReason `json:"finish_reason"`
	// Parsed holds a payload the provider already validated against
	// Request.Schema, when it does so natively.
	Parsed any `json:"-"`
}

type Backend interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Func adapts a function to a Backend.
type Func func(ctx context.Context, req Request) (Response, error)

func (f Func) Complete(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// RequestFor builds the request for c's next turn.
func RequestFor(c *conv.Conversation) (Request, error) {
	descs, err := c.Tools().Descriptors()
	if err != nil {
		return Request{}, err
	}
	req := Request{
		Model:           c.Model(),
		Messages:        c.Messages(),
		Tools:           descs,
		Schema:          c.Schema(),
		ReasoningEffort: c.ReasoningEffort(),
	}
	if t, ok := c.Temperature(); ok {
		req.Temperature = &t
	}
	return req, nil
}
