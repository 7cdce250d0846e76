// Package anthropic adapts the Anthropic Messages API to backend.Backend.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/petasbytes/go-conv/backend"
	"github.com/petasbytes/go-conv/conv"
	"github.com/petasbytes/go-conv/tools"
)

const (
	DefaultModel     = anthropic.ModelClaude3_7SonnetLatest
	DefaultMaxTokens = 4096
)

// Backend calls the Messages API. Structured output is requested through the
// system prompt, since the API has no native schema parameter.
type Backend struct {
	client    anthropic.Client
	maxTokens int64
}

// New builds a client. Without options the SDK reads ANTHROPIC_API_KEY.
func New(opts ...option.RequestOption) *Backend {
	return &Backend{client: anthropic.NewClient(opts...), maxTokens: DefaultMaxTokens}
}

// WithMaxTokens returns a copy that caps replies at n tokens.
func (b *Backend) WithMaxTokens(n int64) *Backend {
	cp := *b
	if n > 0 {
		cp.maxTokens = n
	}
	return &cp
}

func (b *Backend) Complete(ctx context.Context, req backend.Request) (backend.Response, error) {
	params, err := b.Params(req)
	if err != nil {
		return backend.Response{}, err
	}
	msg, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return backend.Response{}, err
	}
	return convertResponse(msg)
}

// Params translates a request into Messages API parameters.
func (b *Backend) Params(req backend.Request) (anthropic.MessageNewParams, error) {
	if strings.TrimSpace(req.Model) == "" {
		return anthropic.MessageNewParams{}, errors.New("anthropic: missing model")
	}
	var system []string
	var msgs []anthropic.MessageParam
	for _, m := range req.Messages {
		if m.Role() == conv.RoleSystem {
			system = append(system, m.Text())
			continue
		}
		role, blocks, err := convertMessage(m)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		// Empty text blocks are rejected; an empty assistant turn is dropped.
		if len(blocks) == 0 {
			continue
		}
		// The API wants alternating roles; fold consecutive turns of one role.
		if n := len(msgs); n > 0 && msgs[n-1].Role == role {
			msgs[n-1].Content = append(msgs[n-1].Content, blocks...)
			continue
		}
		msgs = append(msgs, anthropic.MessageParam{Role: role, Content: blocks})
	}

	if req.Schema != nil {
		doc, err := json.Marshal(req.Schema.Document())
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		system = append(system, "Respond only with a JSON object that conforms to this JSON schema, with no other text:\n"+string(doc))
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: b.maxTokens,
		Messages:  msgs,
	}
	for _, s := range system {
		params.System = append(params.System, anthropic.TextBlockParam{Text: s})
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if len(req.Tools) > 0 {
		ts, err := convertTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Tools = ts
	}
	return params, nil
}

func convertMessage(m conv.Message) (anthropic.MessageParamRole, []anthropic.ContentBlockParamUnion, error) {
	switch m.Role() {
	case conv.RoleUser:
		return anthropic.MessageParamRoleUser, []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Text())}, nil
	case conv.RoleTool:
		content := m.Text()
		return anthropic.MessageParamRoleUser, []anthropic.ContentBlockParamUnion{
			anthropic.NewToolResultBlock(m.ToolCallID(), content, strings.HasPrefix(content, "error: ")),
		}, nil
	case conv.RoleAssistant:
		var blocks []anthropic.ContentBlockParamUnion
		if text := m.Text(); text != "" {
			blocks = append(blocks, anthropic.NewTextBlock(text))
		}
		for _, c := range m.ToolCalls() {
			var input any = map[string]any{}
			if len(c.Arguments) > 0 {
				if err := json.Unmarshal(c.Arguments, &input); err != nil {
					return "", nil, fmt.Errorf("anthropic: tool call %s arguments: %w", c.ID, err)
				}
			}
			blocks = append(blocks, anthropic.NewToolUseBlock(c.ID, input, c.Name))
		}
		return anthropic.MessageParamRoleAssistant, blocks, nil
	}
	return "", nil, fmt.Errorf("anthropic: unsupported role %q", m.Role())
}

func convertTools(descs []tools.Descriptor) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(descs))
	for _, d := range descs {
		var schema struct {
			Properties any      `json:"properties"`
			Required   []string `json:"required"`
		}
		if err := json.Unmarshal(d.Parameters, &schema); err != nil {
			return nil, fmt.Errorf("anthropic: tool %s parameters: %w", d.Name, err)
		}
		tool := &anthropic.ToolParam{
			Name:        d.Name,
			InputSchema: anthropic.ToolInputSchemaParam{Properties: schema.Properties, Required: schema.Required},
		}
		if d.Description != "" {
			tool.Description = anthropic.String(d.Description)
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: tool})
	}
	return out, nil
}

func convertResponse(msg *anthropic.Message) (backend.Response, error) {
	if msg == nil {
		return backend.Response{}, errors.New("anthropic: empty response")
	}
	var text strings.Builder
	var calls []conv.ToolCall
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(v.Text)
		case anthropic.ToolUseBlock:
			args := json.RawMessage(v.JSON.Input.Raw())
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}
			calls = append(calls, conv.ToolCall{ID: v.ID, Name: v.Name, Arguments: args})
		}
	}
	m, err := conv.Assistant(text.String(), calls...)
	if err != nil {
		return backend.Response{}, fmt.Errorf("anthropic: %w", err)
	}
	return backend.Response{Message: m, FinishReason: MapStopReason(msg.StopReason)}, nil
}

// MapStopReason translates a stop reason into the shared finish reasons.
// Unrecognised reasons pass through verbatim.
func MapStopReason(r anthropic.StopReason) conv.FinishReason {
	switch r {
	case anthropic.StopReasonToolUse:
		return conv.FinishToolCalls
	case anthropic.StopReasonMaxTokens:
		return conv.FinishLength
	case anthropic.StopReasonRefusal:
		return conv.FinishContentFilter
	case anthropic.StopReasonEndTurn, anthropic.StopReasonStopSequence, "":
		return conv.FinishStop
	}
	return conv.FinishReason(r)
}
