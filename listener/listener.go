// Package listener observes conversations as the driver runs them.
//
// Listeners are notified synchronously and in registration order. A listener
// must not block for long; wrap slow sinks in a Queue.
package listener

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/petasbytes/go-conv/conv"
	"github.com/petasbytes/go-conv/tools"
)

// Listener receives conversation traffic.
type Listener interface {
	// Before receives the messages not yet reported, just before a backend call.
	Before(ctx context.Context, convID string, msgs []conv.Message)
	// After receives the backend's reply.
	After(ctx context.Context, convID string, msg conv.Message)
}

// ToolObserver is implemented by listeners that also want tool timings.
type ToolObserver interface {
	ToolInvoked(ctx context.Context, convID string, call conv.ToolCall, res tools.Result, elapsed time.Duration)
}

// Bus fans events out to listeners and advances the conversation's
// reporting cursor. A panicking listener is logged and skipped.
type Bus struct {
	listeners []Listener
	log       *slog.Logger
}

func NewBus(log *slog.Logger, ls ...Listener) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{listeners: append([]Listener(nil), ls...), log: log}
}

func (b *Bus) Len() int { return len(b.listeners) }

// Before reports every unreported message and returns c with the cursor at its end.
func (b *Bus) Before(ctx context.Context, c *conv.Conversation) *conv.Conversation {
	msgs := c.Unreported()
	if len(msgs) > 0 {
		for _, l := range b.listeners {
			batch := append([]conv.Message(nil), msgs...)
			b.guard(c.ID(), "before", func() { l.Before(ctx, c.ID(), batch) })
		}
	}
	return c.MarkReported()
}

// After reports c's last message and returns c with the cursor at its end.
func (b *Bus) After(ctx context.Context, c *conv.Conversation) *conv.Conversation {
	if c.Reported() < c.Len() {
		last, _ := c.Last()
		for _, l := range b.listeners {
			b.guard(c.ID(), "after", func() { l.After(ctx, c.ID(), last) })
		}
	}
	return c.MarkReported()
}

// ToolInvoked notifies listeners implementing ToolObserver.
func (b *Bus) ToolInvoked(ctx context.Context, convID string, call conv.ToolCall, res tools.Result, elapsed time.Duration) {
	for _, l := range b.listeners {
		if o, ok := l.(ToolObserver); ok {
			b.guard(convID, "tool", func() { o.ToolInvoked(ctx, convID, call, res, elapsed) })
		}
	}
}

func (b *Bus) guard(convID, hook string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("listener panicked", "conv_id", convID, "hook", hook, "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

// Funcs adapts plain functions to a Listener. Nil fields are skipped.
type Funcs struct {
	BeforeFunc func(ctx context.Context, convID string, msgs []conv.Message)
	AfterFunc  func(ctx context.Context, convID string, msg conv.Message)
}

func (f Funcs) Before(ctx context.Context, convID string, msgs []conv.Message) {
	if f.BeforeFunc != nil {
		f.BeforeFunc(ctx, convID, msgs)
	}
}

func (f Funcs) After(ctx context.Context, convID string, msg conv.Message) {
	if f.AfterFunc != nil {
		f.AfterFunc(ctx, convID, msg)
	}
}
