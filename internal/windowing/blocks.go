// Package windowing selects the newest slice of a conversation that fits an
// input budget without separating tool calls from their results.
package windowing

import (
	"github.com/petasbytes/go-conv/conv"
)

// GroupKind denotes the atomic unit type when preparing a send window.
type GroupKind int

const (
	GroupSingleton GroupKind = iota
	// GroupToolRound is an assistant message with tool calls followed by one
	// tool message per call.
	GroupToolRound
)

// Group describes a contiguous span of messages [Start, End) in the original slice.
type Group struct {
	Kind  GroupKind
	Start int // inclusive index into msgs
	End   int // exclusive index into msgs
}

// GroupMessages groups messages into atomic units that preserve tool rounds.
// Invariants:
//   - A round is an assistant message with tool calls immediately followed
//     by tool messages, one per call id, in any order.
//   - Every call id must be answered and no extra results may appear.
//   - Anything else is a singleton.
func GroupMessages(msgs []conv.Message) []Group {
	groups := make([]Group, 0, len(msgs))
	for i := 0; i < len(msgs); {
		if end, ok := toolRoundEnd(msgs, i); ok {
			groups = append(groups, Group{Kind: GroupToolRound, Start: i, End: end})
			i = end
			continue
		}
		groups = append(groups, Group{Kind: GroupSingleton, Start: i, End: i + 1})
		i++
	}
	return groups
}

// toolRoundEnd reports the exclusive end of a complete tool round starting at i.
func toolRoundEnd(msgs []conv.Message, i int) (int, bool) {
	m := msgs[i]
	if m.Role() != conv.RoleAssistant {
		return 0, false
	}
	calls := m.ToolCalls()
	if len(calls) == 0 {
		return 0, false
	}
	pending := make(map[string]struct{}, len(calls))
	for _, c := range calls {
		pending[c.ID] = struct{}{}
	}
	j := i + 1
	for ; j < len(msgs) && msgs[j].Role() == conv.RoleTool; j++ {
		id := msgs[j].ToolCallID()
		if _, ok := pending[id]; !ok {
			return 0, false // extra or duplicate result
		}
		delete(pending, id)
	}
	if len(pending) > 0 {
		return 0, false
	}
	return j, true
}
