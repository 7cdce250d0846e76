package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/petasbytes/go-conv/backend"
	"github.com/petasbytes/go-conv/conv"
	"github.com/petasbytes/go-conv/extract"
	"github.com/petasbytes/go-conv/internal/telemetry"
	"github.com/petasbytes/go-conv/listener"
	"github.com/petasbytes/go-conv/tools"
)

type state int

const (
	stateRunning state = iota
	stateAwaitingTools
	stateCompleted
	stateFailed
	stateTerminal
)

// Driver runs conversations against one backend.
type Driver struct {
	backend backend.Backend
	gate    *Gate
	bus     *listener.Bus
	log     *slog.Logger
	emit    func(name string, fields map[string]any)

	listeners []listener.Listener
}

type Option func(*Driver)

// WithGate shares g between this driver and any others given the same gate.
func WithGate(g *Gate) Option {
	return func(d *Driver) { d.gate = g }
}

func WithListeners(ls ...listener.Listener) Option {
	return func(d *Driver) { d.listeners = append(d.listeners, ls...) }
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.log = l }
}

// WithEvents sends per-turn events to emit instead of the environment-gated
// JSONL log. A nil emit drops them.
func WithEvents(emit func(name string, fields map[string]any)) Option {
	return func(d *Driver) {
		if emit == nil {
			emit = func(string, map[string]any) {}
		}
		d.emit = emit
	}
}

func New(b backend.Backend, opts ...Option) *Driver {
	d := &Driver{backend: b}
	for _, opt := range opts {
		opt(d)
	}
	if d.gate == nil {
		d.gate = NewGate(DefaultGateCapacity)
	}
	if d.log == nil {
		d.log = slog.Default()
	}
	if d.emit == nil {
		d.emit = telemetry.Emit
	}
	d.bus = listener.NewBus(d.log, d.listeners...)
	return d
}

func (d *Driver) Gate() *Gate { return d.gate }

// TurnIDFromContext returns the id of the backend round trip ctx belongs to.
// Listeners and tools see it on the contexts the driver hands them.
func TurnIDFromContext(ctx context.Context) (string, bool) {
	return telemetry.TurnIDFromContext(ctx)
}

// Run drives c until a handler ends it. The returned conversation is the last
// one reached, also when an error is returned.
func (d *Driver) Run(ctx context.Context, c *conv.Conversation) (*conv.Conversation, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil conversation", conv.ErrInvariantViolation)
	}

	var (
		st      = stateRunning
		turn    int
		turnCtx context.Context
		resp    backend.Response
		signal  FinishSignal
		err     error
	)
	for st != stateTerminal {
		switch st {
		case stateRunning:
			turn++
			turnCtx = telemetry.WithConvID(telemetry.WithTurnID(ctx, fmt.Sprintf("%s/%d", c.ID(), turn)), c.ID())
			c, resp, err = d.complete(turnCtx, c, turn)
			if err != nil {
				return c, err
			}
			signal = Classify(resp.FinishReason, resp.Message)
			switch {
			case signal.Kind == ToolCalls:
				st = stateAwaitingTools
			case signal.Failed():
				st = stateFailed
			default:
				st = stateCompleted
			}

		case stateAwaitingTools:
			if c, err = d.dispatch(turnCtx, c, signal.Calls); err != nil {
				return c, err
			}
			st = stateRunning

		case stateFailed:
			next, err := d.fail(turnCtx, c, signal, resp.Message)
			if err != nil {
				return c, err
			}
			c, st = advance(c, next)

		case stateCompleted:
			next, err := d.succeed(turnCtx, c, resp)
			if err != nil {
				return c, err
			}
			c, st = advance(c, next)
		}
	}
	return c, nil
}

func advance(cur, next *conv.Conversation) (*conv.Conversation, state) {
	if next == nil {
		return cur, stateTerminal
	}
	return next, stateRunning
}

// complete performs one backend round trip and appends the reply.
func (d *Driver) complete(ctx context.Context, c *conv.Conversation, turn int) (*conv.Conversation, backend.Response, error) {
	c = d.bus.Before(ctx, c)

	req, err := backend.RequestFor(c)
	if err != nil {
		return c, backend.Response{}, err
	}

	if err := d.gate.Acquire(ctx); err != nil {
		return c, backend.Response{}, err
	}
	start := time.Now()
	resp, err := d.call(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		d.log.Error("backend call failed", "conv_id", c.ID(), "turn", turn, "model", req.Model, "error", err)
		return c, backend.Response{}, &TransportError{Model: req.Model, Err: err}
	}
	if resp.Message.Role() != conv.RoleAssistant {
		return c, backend.Response{}, fmt.Errorf("%w: reply role %q", ErrMalformedResponse, resp.Message.Role())
	}
	if resp.FinishReason == conv.FinishToolCalls && len(resp.Message.ToolCalls()) == 0 {
		return c, backend.Response{}, fmt.Errorf("%w: finish reason tool_calls without calls", ErrMalformedResponse)
	}

	next, err := c.Append(resp.Message)
	if err != nil {
		return c, backend.Response{}, err
	}
	next = d.bus.After(ctx, next)

	turnID, _ := telemetry.TurnIDFromContext(ctx)
	d.emit("turn_complete", map[string]any{
		"conv_id":       c.ID(),
		"turn_id":       turnID,
		"model":         req.Model,
		"finish_reason": string(resp.FinishReason),
		"tool_calls":    len(resp.Message.ToolCalls()),
		"messages":      next.Len(),
		"duration_ms":   elapsed.Milliseconds(),
	})
	d.log.Debug("turn complete", "conv_id", c.ID(), "turn", turn, "finish_reason", resp.FinishReason, "duration", elapsed)
	return next, resp, nil
}

// call runs one backend call on an acquired gate slot and always releases it.
func (d *Driver) call(ctx context.Context, req backend.Request) (backend.Response, error) {
	defer d.gate.Release()
	return d.backend.Complete(ctx, req)
}

// dispatch resolves every call up front, then invokes them in order. Each
// result is appended before the next tool runs.
func (d *Driver) dispatch(ctx context.Context, c *conv.Conversation, calls []conv.ToolCall) (*conv.Conversation, error) {
	resolved := make([]tools.Tool, len(calls))
	for i, call := range calls {
		t, err := c.Tools().Resolve(call.Name, call.ID)
		if err != nil {
			d.log.Error("model requested unknown tool", "conv_id", c.ID(), "tool", call.Name, "call_id", call.ID)
			return c, err
		}
		resolved[i] = t
	}

	for i, call := range calls {
		start := time.Now()
		res := resolved[i].Invoke(ctx, call.ID, call.Arguments)
		res.CallID = call.ID
		d.bus.ToolInvoked(ctx, c.ID(), call, res, time.Since(start))

		m, err := conv.ToolMessage(res)
		if err != nil {
			return c, err
		}
		if c, err = c.Append(m); err != nil {
			return c, err
		}
	}
	return c, nil
}

func (d *Driver) fail(ctx context.Context, c *conv.Conversation, signal FinishSignal, last conv.Message) (*conv.Conversation, error) {
	h := c.FailureHandler()
	if h == nil {
		d.log.Error("conversation ended unexpectedly", "conv_id", c.ID(), "finish_reason", signal.Reason, "signal", signal.Kind.String())
		return nil, nil
	}
	next, err := h(ctx, c, signal.Reason, last)
	if err != nil {
		return nil, fmt.Errorf("failure handler: %w", err)
	}
	return next, nil
}

// succeed extracts the payload of a normal completion and hands it to the
// success handler.
func (d *Driver) succeed(ctx context.Context, c *conv.Conversation, resp backend.Response) (*conv.Conversation, error) {
	payload, err := extract.Extract(resp.Message.Text(), resp.Parsed, c.Schema())
	if err != nil {
		var soe *extract.StructuredOutputError
		if !errors.As(err, &soe) {
			return nil, err
		}
		h := c.InvalidOutputHandler()
		if h == nil {
			d.log.Error("structured output did not match schema", "conv_id", c.ID(), "schema", soe.Schema, "error", soe.Err)
			return nil, err
		}
		next, herr := h(ctx, c, err)
		if herr != nil {
			return nil, fmt.Errorf("invalid output handler: %w", herr)
		}
		return next, nil
	}

	h := c.Handler()
	if h == nil {
		return nil, nil
	}
	next, err := h(ctx, c, conv.Reply{Message: resp.Message, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("handler: %w", err)
	}
	return next, nil
}
