package windowing

import "github.com/petasbytes/go-conv/conv"

// Stats summarizes the result of window preparation.
//
// Fields:
//   - Total: estimated tokens for pinned messages and included groups.
//   - Budget: the input token budget used.
//   - Pinned: leading system messages always kept.
//   - IncludedGroups: number of groups included.
//   - SkippedGroups: total groups minus IncludedGroups.
//   - OverBudgetNewest: true when the pinned prefix plus the newest group alone exceeds Budget.
type Stats struct {
	Total            int
	Budget           int
	Pinned           int
	IncludedGroups   int
	SkippedGroups    int
	OverBudgetNewest bool
}

// PrepareSendWindow returns the messages to send, oldest to newest, fitting
// within budget using c, without splitting groups.
//
// Rules:
//   - Leading system messages are pinned and always kept.
//   - Whole groups are included scanning newest to oldest while total <= budget.
//   - If the newest group does not fit, return nil and set OverBudgetNewest.
//   - A window never starts with an orphaned tool message.
func PrepareSendWindow(msgs []conv.Message, budget int, c TokenCounter) ([]conv.Message, Stats) {
	stats := Stats{Budget: budget}
	if len(msgs) == 0 {
		return nil, stats
	}

	pinned := 0
	for pinned < len(msgs) && msgs[pinned].Role() == conv.RoleSystem {
		stats.Total += c.CountMessage(msgs[pinned])
		pinned++
	}
	stats.Pinned = pinned
	rest := msgs[pinned:]
	groups := GroupMessages(rest)

	startIdx := len(groups) // exclusive sentinel; lowered as groups are included
	for gi := len(groups) - 1; gi >= 0; gi-- {
		cost := c.CountGroup(groups[gi], rest)
		if stats.Total+cost > budget {
			break
		}
		stats.Total += cost
		stats.IncludedGroups++
		startIdx = gi
	}

	if stats.Total > budget || (len(groups) > 0 && stats.IncludedGroups == 0) {
		return nil, Stats{Budget: budget, Pinned: pinned, SkippedGroups: len(groups), OverBudgetNewest: true}
	}

	// Drop tool messages left without their assistant turn.
	for startIdx < len(groups) && rest[groups[startIdx].Start].Role() == conv.RoleTool {
		stats.Total -= c.CountGroup(groups[startIdx], rest)
		stats.IncludedGroups--
		startIdx++
	}
	stats.SkippedGroups = len(groups) - stats.IncludedGroups

	window := make([]conv.Message, 0, pinned+len(rest))
	window = append(window, msgs[:pinned]...)
	if startIdx < len(groups) {
		window = append(window, rest[groups[startIdx].Start:]...)
	}
	return window, stats
}
