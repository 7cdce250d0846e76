package windowing_test

import (
	"encoding/json"
	"testing"

	"github.com/petasbytes/go-conv/conv"
	"github.com/petasbytes/go-conv/internal/windowing"
	"github.com/petasbytes/go-conv/tools"
)

// Sys, User and Asst build plain text messages.
func Sys(text string) conv.Message  { return conv.System(text) }
func User(text string) conv.Message { return conv.User(text) }

func Asst(t *testing.T, text string, callIDs ...string) conv.Message {
	t.Helper()
	calls := make([]conv.ToolCall, 0, len(callIDs))
	for _, id := range callIDs {
		calls = append(calls, conv.ToolCall{ID: id, Name: "echo", Arguments: json.RawMessage(`{}`)})
	}
	m, err := conv.Assistant(text, calls...)
	if err != nil {
		t.Fatalf("assistant: %v", err)
	}
	return m
}

// TR builds a tool result message answering id.
func TR(t *testing.T, id, content string) conv.Message {
	t.Helper()
	m, err := conv.ToolMessage(tools.Result{CallID: id, Content: content})
	if err != nil {
		t.Fatalf("tool message: %v", err)
	}
	return m
}

// groupsEqual is a small utility used by grouping tests.
func groupsEqual(got, want []windowing.Group) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
