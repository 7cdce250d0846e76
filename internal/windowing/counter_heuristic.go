package windowing

import (
	"github.com/petasbytes/go-conv/conv"
	"github.com/petasbytes/go-conv/internal/metrics"
)

// TokenCounter estimates input-token cost for messages or groups.
type TokenCounter interface {
	CountMessage(m conv.Message) int
	CountGroup(g Group, all []conv.Message) int
}

// HeuristicCounter is the default deterministic estimator: the rune count of
// a message's text and tool arguments, plus a fixed overhead per part and
// per tool call.
type HeuristicCounter struct{}

// Fixed per-block overhead for deterministic counts; changing this requires updating the guard test.
const blockOverhead = 4

func (HeuristicCounter) CountMessage(m conv.Message) int {
	blocks := len(m.Parts()) + len(m.ToolCalls())
	return metrics.CountMessage(m).Runes + blocks*blockOverhead
}

func (h HeuristicCounter) CountGroup(g Group, all []conv.Message) int {
	total := 0
	for i := g.Start; i < g.End && i < len(all); i++ {
		total += h.CountMessage(all[i])
	}
	return total
}
