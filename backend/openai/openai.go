// Package openai adapts the OpenAI chat-completions API to backend.Backend.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/tidwall/gjson"

	"github.com/petasbytes/go-conv/backend"
	"github.com/petasbytes/go-conv/conv"
	"github.com/petasbytes/go-conv/tools"
)

const DefaultModel = "gpt-4o"

// Backend calls chat completions through the official SDK client.
type Backend struct {
	client openai.Client
}

// New builds a client. Without options the SDK reads OPENAI_API_KEY.
func New(opts ...option.RequestOption) *Backend {
	return &Backend{client: openai.NewClient(opts...)}
}

// NewFromClient wraps an existing client.
func NewFromClient(c openai.Client) *Backend {
	return &Backend{client: c}
}

func (b *Backend) Complete(ctx context.Context, req backend.Request) (backend.Response, error) {
	params, err := Params(req)
	if err != nil {
		return backend.Response{}, err
	}
	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return backend.Response{}, err
	}
	return convertResponse(resp)
}

// Params translates a request into chat-completion parameters, applying
// per-model restrictions.
func Params(req backend.Request) (openai.ChatCompletionNewParams, error) {
	if strings.TrimSpace(req.Model) == "" {
		return openai.ChatCompletionNewParams{}, errors.New("openai: missing model")
	}
	msgs, err := convertMessages(req.Messages)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: msgs,
	}

	quirks := quirksFor(req.Model)
	if req.Temperature != nil && !quirks.noTemperature {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if quirks.reasoning && req.ReasoningEffort != "" {
		params.ReasoningEffort = shared.ReasoningEffort(req.ReasoningEffort)
	}
	if req.Schema != nil && !quirks.noResponseFormat {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   req.Schema.Name(),
					Strict: openai.Bool(true),
					Schema: req.Schema.Document(),
				},
			},
		}
	}
	if len(req.Tools) > 0 {
		ts, err := convertTools(req.Tools)
		if err != nil {
			return openai.ChatCompletionNewParams{}, err
		}
		params.Tools = ts
	}
	return params, nil
}

type modelQuirks struct {
	reasoning        bool
	noTemperature    bool
	noResponseFormat bool
}

// quirksFor encodes what the reasoning model families reject.
func quirksFor(model string) modelQuirks {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "o1-mini"):
		return modelQuirks{noTemperature: true, noResponseFormat: true}
	case strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"), strings.HasPrefix(m, "o4"):
		return modelQuirks{reasoning: true, noTemperature: true}
	}
	return modelQuirks{}
}

func convertTools(descs []tools.Descriptor) ([]openai.ChatCompletionToolParam, error) {
	out := make([]openai.ChatCompletionToolParam, 0, len(descs))
	for _, d := range descs {
		var params map[string]any
		if err := json.Unmarshal(d.Parameters, &params); err != nil {
			return nil, fmt.Errorf("openai: tool %s parameters: %w", d.Name, err)
		}
		fn := shared.FunctionDefinitionParam{
			Name:       d.Name,
			Strict:     openai.Bool(true),
			Parameters: shared.FunctionParameters(params),
		}
		if d.Description != "" {
			fn.Description = openai.String(d.Description)
		}
		out = append(out, openai.ChatCompletionToolParam{Function: fn})
	}
	return out, nil
}

func convertMessages(msgs []conv.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role() {
		case conv.RoleSystem:
			out = append(out, openai.SystemMessage(m.Text()))
		case conv.RoleUser:
			out = append(out, openai.UserMessage(m.Text()))
		case conv.RoleTool:
			out = append(out, openai.ToolMessage(m.Text(), m.ToolCallID()))
		case conv.RoleAssistant:
			calls := m.ToolCalls()
			if len(calls) == 0 {
				out = append(out, openai.AssistantMessage(m.Text()))
				continue
			}
			params := make([]openai.ChatCompletionMessageToolCallParam, 0, len(calls))
			for _, c := range calls {
				args := string(c.Arguments)
				if args == "" || !gjson.Valid(args) {
					args = "{}"
				}
				params = append(params, openai.ChatCompletionMessageToolCallParam{
					ID: c.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      c.Name,
						Arguments: args,
					},
				})
			}
			assistant := openai.ChatCompletionAssistantMessageParam{ToolCalls: params}
			if text := m.Text(); text != "" {
				assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(text)}
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		default:
			return nil, fmt.Errorf("openai: unsupported role %q", m.Role())
		}
	}
	return out, nil
}

func convertResponse(resp *openai.ChatCompletion) (backend.Response, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return backend.Response{}, errors.New("openai: response has no choices")
	}
	choice := resp.Choices[0]

	calls := make([]conv.ToolCall, 0, len(choice.Message.ToolCalls))
	for _, tc := range choice.Message.ToolCalls {
		args := strings.TrimSpace(tc.Function.Arguments)
		if args == "" {
			args = "{}"
		}
		calls = append(calls, conv.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: json.RawMessage(args)})
	}

	reason := conv.FinishReason(choice.FinishReason)
	text := choice.Message.Content
	if refusal := choice.Message.Refusal; refusal != "" && text == "" {
		text = refusal
		if reason == conv.FinishStop {
			reason = conv.FinishContentFilter
		}
	}

	msg, err := conv.Assistant(text, calls...)
	if err != nil {
		return backend.Response{}, fmt.Errorf("openai: %w", err)
	}
	return backend.Response{Message: msg, FinishReason: reason}, nil
}
