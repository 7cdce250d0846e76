package telemetry

import (
	"context"
	"strings"
	"time"

	"github.com/petasbytes/go-conv/conv"
	"github.com/petasbytes/go-conv/internal/metrics"
	"github.com/petasbytes/go-conv/tools"
)

// Listener turns conversation traffic into JSONL events. Message text is
// never written; only counts and, when enabled, text features.
type Listener struct{}

func NewListener() *Listener { return &Listener{} }

func (*Listener) Before(ctx context.Context, convID string, msgs []conv.Message) {
	turnID, _ := TurnIDFromContext(ctx)
	roles := map[string]int{}
	for _, m := range msgs {
		roles[string(m.Role())]++
	}
	fields := map[string]any{
		"conv_id":  convID,
		"turn_id":  turnID,
		"messages": len(msgs),
		"roles":    roles,
	}
	if FeaturesEnabled() {
		fields["features"] = featureFields(metrics.SumMessages(msgs))
	}
	Emit("messages_sent", fields)
}

func (*Listener) After(ctx context.Context, convID string, msg conv.Message) {
	turnID, _ := TurnIDFromContext(ctx)
	calls := msg.ToolCalls()
	names := make([]string, 0, len(calls))
	for _, c := range calls {
		names = append(names, c.Name)
	}
	fields := map[string]any{
		"conv_id":    convID,
		"turn_id":    turnID,
		"tool_calls": names,
	}
	if FeaturesEnabled() {
		fields["features"] = featureFields(metrics.CountMessage(msg))
	}
	Emit("reply_received", fields)
}

// ToolInvoked emits a tool_exec event. Tool errors are reported generically
// to avoid leaking payloads.
func (*Listener) ToolInvoked(ctx context.Context, convID string, call conv.ToolCall, res tools.Result, elapsed time.Duration) {
	turnID, _ := TurnIDFromContext(ctx)
	fields := map[string]any{
		"conv_id":     convID,
		"turn_id":     turnID,
		"tool_name":   call.Name,
		"duration_ms": elapsed.Milliseconds(),
		"input_size":  len(call.Arguments),
		"output_size": len(res.Content),
		"error":       nil,
	}
	if strings.HasPrefix(res.Content, "error: ") {
		fields["error"] = "tool error"
	}
	Emit("tool_exec", fields)
}

func featureFields(f metrics.Features) map[string]any {
	return map[string]any{
		"bytes": f.Bytes,
		"runes": f.Runes,
		"words": f.Words,
		"lines": f.Lines,
	}
}
