package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Tool is a capability the model may request by name.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON schema of the tool's arguments.
	Parameters() map[string]any
	// Invoke runs the tool. It must not panic or fail; errors belong in the result content.
	Invoke(ctx context.Context, callID string, args json.RawMessage) Result
}

// Result is the output of one tool invocation.
type Result struct {
	CallID  string `json:"tool_call_id"`
	Content string `json:"content"`
}

// Function is the body of a function-backed tool.
type Function func(ctx context.Context, input json.RawMessage) (string, error)

// Definition describes a function-backed tool.
type Definition struct {
	Name        string
	Description string
	InputSchema map[string]any
	Function    Function
}

// New wraps d as a Tool.
func New(d Definition) Tool {
	return funcTool{def: d}
}

type funcTool struct {
	def Definition
}

func (t funcTool) Name() string        { return t.def.Name }
func (t funcTool) Description() string { return t.def.Description }

func (t funcTool) Parameters() map[string]any {
	if t.def.InputSchema == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return t.def.InputSchema
}

func (t funcTool) Invoke(ctx context.Context, callID string, args json.RawMessage) (res Result) {
	res.CallID = callID
	defer func() {
		if r := recover(); r != nil {
			res.Content = fmt.Sprintf("error: tool %s panicked: %v", t.def.Name, r)
		}
	}()

	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if !gjson.ValidBytes(args) {
		res.Content = "error: arguments are not valid JSON"
		return res
	}
	if t.def.Function == nil {
		res.Content = fmt.Sprintf("error: tool %s has no implementation", t.def.Name)
		return res
	}

	out, err := t.def.Function(ctx, args)
	if err != nil {
		res.Content = "error: " + err.Error()
		return res
	}
	res.Content = out
	return res
}
