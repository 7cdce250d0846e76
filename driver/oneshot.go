package driver

import (
	"context"
	"fmt"

	"github.com/petasbytes/go-conv/conv"
	"github.com/petasbytes/go-conv/extract"
)

// Oneshot runs c with a handler that captures the first successful payload
// and ends the run. Failure handlers already on c still run; if the
// conversation ends without a payload the result is a *FinishReasonError.
func (d *Driver) Oneshot(ctx context.Context, c *conv.Conversation) (any, error) {
	var (
		payload any
		got     bool
		reason  conv.FinishReason
	)
	capture := func(_ context.Context, _ *conv.Conversation, r conv.Reply) (*conv.Conversation, error) {
		payload, got = r.Payload, true
		return nil, nil
	}
	inner := c.FailureHandler()
	onFailure := func(ctx context.Context, c *conv.Conversation, fr conv.FinishReason, last conv.Message) (*conv.Conversation, error) {
		reason = fr
		if inner == nil {
			d.log.Error("conversation ended unexpectedly", "conv_id", c.ID(), "finish_reason", fr)
			return nil, nil
		}
		return inner(ctx, c, fr, last)
	}

	if _, err := d.Run(ctx, c.With(conv.WithHandler(capture), conv.WithFailureHandler(onFailure))); err != nil {
		return nil, err
	}
	if !got {
		return nil, &FinishReasonError{Reason: reason}
	}
	return payload, nil
}

// Structured asks model once for a value of type T.
func Structured[T any](ctx context.Context, d *Driver, model string, msgs []conv.Message, opts ...conv.Option) (T, error) {
	var zero T
	schema, err := extract.NewSchema[T]()
	if err != nil {
		return zero, err
	}
	c, err := conv.New(model, msgs, append(opts, conv.WithSchema(schema))...)
	if err != nil {
		return zero, err
	}
	payload, err := d.Oneshot(ctx, c)
	if err != nil {
		return zero, err
	}
	return extract.As[T](payload)
}

// Text asks model a single question and returns the trimmed reply.
func Text(ctx context.Context, d *Driver, model, prompt string, opts ...conv.Option) (string, error) {
	c, err := conv.New(model, []conv.Message{conv.User(prompt)}, opts...)
	if err != nil {
		return "", err
	}
	payload, err := d.Oneshot(ctx, c)
	if err != nil {
		return "", err
	}
	s, ok := payload.(string)
	if !ok {
		return "", fmt.Errorf("driver: expected text reply, got %T", payload)
	}
	return s, nil
}
