package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/petasbytes/go-conv/internal/telemetry"
	"github.com/petasbytes/go-conv/internal/windowing"
)

// ErrContextBudget is returned when even the newest turn does not fit the
// input budget.
var ErrContextBudget = errors.New("backend: newest turn exceeds context budget")

// Window trims each request's messages to an estimated input budget before
// calling b. Leading system messages are always kept, and tool calls are
// never sent without their results. The conversation itself is unchanged.
func Window(b Backend, budget int, log *slog.Logger) Backend {
	if budget <= 0 {
		return b
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return Func(func(ctx context.Context, req Request) (Response, error) {
		window, stats := windowing.PrepareSendWindow(req.Messages, budget, windowing.HeuristicCounter{})
		turnID, _ := telemetry.TurnIDFromContext(ctx)
		telemetry.Emit("window_prepared", map[string]any{
			"turn_id":            turnID,
			"model":              req.Model,
			"budget":             stats.Budget,
			"total_estimated":    stats.Total,
			"pinned":             stats.Pinned,
			"included_groups":    stats.IncludedGroups,
			"skipped_groups":     stats.SkippedGroups,
			"over_budget_newest": stats.OverBudgetNewest,
		})
		if stats.OverBudgetNewest {
			return Response{}, fmt.Errorf("%w (budget %d)", ErrContextBudget, budget)
		}
		if stats.SkippedGroups > 0 {
			log.DebugContext(ctx, "trimmed request window",
				"budget", budget,
				"estimated", stats.Total,
				"kept_groups", stats.IncludedGroups,
				"skipped_groups", stats.SkippedGroups,
			)
		}
		req.Messages = window
		return b.Complete(ctx, req)
	})
}
