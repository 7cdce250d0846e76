package listener

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/petasbytes/go-conv/conv"
	"github.com/petasbytes/go-conv/tools"
)

type event struct {
	ctx    context.Context
	convID string
	before []conv.Message
	after  *conv.Message
	tool   *toolEvent
}

func (ev event) hook() string {
	switch {
	case ev.before != nil:
		return "before"
	case ev.after != nil:
		return "after"
	default:
		return "tool"
	}
}

type toolEvent struct {
	call    conv.ToolCall
	res     tools.Result
	elapsed time.Duration
}

// Queue delivers events to an inner listener on a background goroutine, in
// order. Events sent after Close are dropped.
type Queue struct {
	inner  Listener
	log    *slog.Logger
	events chan event
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewQueue starts the delivery goroutine. size is the channel buffer. A nil
// log discards reports of listener panics.
func NewQueue(inner Listener, size int, log *slog.Logger) *Queue {
	if size < 0 {
		size = 0
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	q := &Queue{inner: inner, log: log, events: make(chan event, size), done: make(chan struct{})}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for ev := range q.events {
		q.deliver(ev)
	}
}

func (q *Queue) deliver(ev event) {
	// The bus only guards the enqueue.
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("listener panicked", "conv_id", ev.convID, "hook", ev.hook(), "panic", fmt.Sprint(r))
		}
	}()
	switch {
	case ev.before != nil:
		q.inner.Before(ev.ctx, ev.convID, ev.before)
	case ev.after != nil:
		q.inner.After(ev.ctx, ev.convID, *ev.after)
	case ev.tool != nil:
		if o, ok := q.inner.(ToolObserver); ok {
			o.ToolInvoked(ev.ctx, ev.convID, ev.tool.call, ev.tool.res, ev.tool.elapsed)
		}
	}
}

func (q *Queue) send(ev event) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return
	}
	// Detach from the caller's cancellation; delivery outlives the turn.
	ev.ctx = context.WithoutCancel(ev.ctx)
	q.events <- ev
}

func (q *Queue) Before(ctx context.Context, convID string, msgs []conv.Message) {
	q.send(event{ctx: ctx, convID: convID, before: append([]conv.Message{}, msgs...)})
}

func (q *Queue) After(ctx context.Context, convID string, msg conv.Message) {
	q.send(event{ctx: ctx, convID: convID, after: &msg})
}

func (q *Queue) ToolInvoked(ctx context.Context, convID string, call conv.ToolCall, res tools.Result, elapsed time.Duration) {
	q.send(event{ctx: ctx, convID: convID, tool: &toolEvent{call: call, res: res, elapsed: elapsed}})
}

// Close stops accepting events and waits until queued ones are delivered or
// ctx is done.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.events)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
