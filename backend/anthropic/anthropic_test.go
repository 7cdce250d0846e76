package anthropic_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/petasbytes/go-conv/backend"
	convanthropic "github.com/petasbytes/go-conv/backend/anthropic"
	"github.com/petasbytes/go-conv/conv"
	"github.com/petasbytes/go-conv/extract"
	"github.com/petasbytes/go-conv/tools"
)

type capture struct {
	method string
	url    string
	body   []byte
}

type fakeTransport struct {
	respStatus int
	respBody   []byte
	captured   *capture
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	b, _ := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if f.captured != nil {
		f.captured.method = req.Method
		f.captured.url = req.URL.String()
		f.captured.body = b
	}
	resp := &http.Response{
		StatusCode: f.respStatus,
		Body:       io.NopCloser(bytes.NewReader(f.respBody)),
		Header:     make(http.Header),
	}
	resp.Header.Set("Content-Type", "application/json")
	return resp, nil
}

func newBackend(rt http.RoundTripper) *convanthropic.Backend {
	return convanthropic.New(
		option.WithHTTPClient(&http.Client{Transport: rt}),
		option.WithAPIKey("test-key"),
		option.WithMaxRetries(0),
	)
}

type reqBody struct {
	Model       string   `json:"model"`
	MaxTokens   int      `json:"max_tokens"`
	Temperature *float64 `json:"temperature"`
	System      []struct {
		Text string `json:"text"`
	} `json:"system"`
	Tools []struct {
		Name        string         `json:"name"`
		InputSchema map[string]any `json:"input_schema"`
	} `json:"tools"`
	Messages []struct {
		Role    string `json:"role"`
		Content []struct {
			Type      string          `json:"type"`
			Text      string          `json:"text,omitempty"`
			ID        string          `json:"id,omitempty"`
			Name      string          `json:"name,omitempty"`
			Input     json.RawMessage `json:"input,omitempty"`
			ToolUseID string          `json:"tool_use_id,omitempty"`
			IsError   bool            `json:"is_error,omitempty"`
		} `json:"content"`
	} `json:"messages"`
}

func decode(t *testing.T, c *capture) reqBody {
	t.Helper()
	if c.body == nil {
		t.Fatal("no request captured")
	}
	var rb reqBody
	if err := json.Unmarshal(c.body, &rb); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	return rb
}

const textReply = `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test","stop_reason":"end_turn",` +
	`"content":[{"type":"text","text":"{\"result\":4}"}],"usage":{"input_tokens":1,"output_tokens":1}}`

type sum struct {
	Result int `json:"result"`
}

func TestComplete_TextAndSystemPrompt(t *testing.T) {
	capReq := &capture{}
	b := newBackend(&fakeTransport{respStatus: 200, respBody: []byte(textReply), captured: capReq})

	temp := 0.0
	resp, err := b.Complete(context.Background(), backend.Request{
		Model:       "claude-test",
		Messages:    []conv.Message{conv.System("be exact"), conv.User("2+2=?")},
		Schema:      extract.MustSchema[sum](),
		Temperature: &temp,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.FinishReason != conv.FinishStop {
		t.Fatalf("finish: %q", resp.FinishReason)
	}
	if resp.Message.Text() != `{"result":4}` {
		t.Fatalf("text: %q", resp.Message.Text())
	}

	rb := decode(t, capReq)
	if capReq.method != http.MethodPost || !strings.HasSuffix(capReq.url, "/v1/messages") {
		t.Fatalf("request: %s %s", capReq.method, capReq.url)
	}
	if rb.MaxTokens != convanthropic.DefaultMaxTokens {
		t.Fatalf("max_tokens: %d", rb.MaxTokens)
	}
	if rb.Temperature == nil || *rb.Temperature != 0 {
		t.Fatalf("temperature: %v", rb.Temperature)
	}
	if len(rb.System) != 2 || rb.System[0].Text != "be exact" || !strings.Contains(rb.System[1].Text, `"result"`) {
		t.Fatalf("system: %+v", rb.System)
	}
	if len(rb.Messages) != 1 || rb.Messages[0].Role != "user" {
		t.Fatalf("messages: %+v", rb.Messages)
	}
}

func TestComplete_ToolUse(t *testing.T) {
	body := `{"id":"msg_2","type":"message","role":"assistant","model":"claude-test","stop_reason":"tool_use",` +
		`"content":[{"type":"text","text":"calling"},{"type":"tool_use","id":"toolu_1","name":"echo","input":{"text":"hi"}}],` +
		`"usage":{"input_tokens":1,"output_tokens":1}}`
	b := newBackend(&fakeTransport{respStatus: 200, respBody: []byte(body)})

	resp, err := b.Complete(context.Background(), backend.Request{Model: "claude-test", Messages: []conv.Message{conv.User("echo")}})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.FinishReason != conv.FinishToolCalls {
		t.Fatalf("finish: %q", resp.FinishReason)
	}
	calls := resp.Message.ToolCalls()
	if len(calls) != 1 || calls[0].ID != "toolu_1" || calls[0].Name != "echo" {
		t.Fatalf("calls: %+v", calls)
	}
	var args map[string]string
	if err := json.Unmarshal(calls[0].Arguments, &args); err != nil || args["text"] != "hi" {
		t.Fatalf("args: %s (%v)", calls[0].Arguments, err)
	}
	if resp.Message.Text() != "calling" {
		t.Fatalf("text: %q", resp.Message.Text())
	}
}

func TestParams_ToolHistoryFoldsIntoUserTurns(t *testing.T) {
	assistant, err := conv.Assistant("", conv.ToolCall{ID: "a", Name: "echo", Arguments: json.RawMessage(`{"text":"x"}`)},
		conv.ToolCall{ID: "b", Name: "echo", Arguments: json.RawMessage(`{"text":"y"}`)})
	if err != nil {
		t.Fatal(err)
	}
	resA, _ := conv.ToolMessage(tools.Result{CallID: "a", Content: "x"})
	resB, _ := conv.ToolMessage(tools.Result{CallID: "b", Content: "error: nope"})

	echo := tools.New(tools.Definition{Name: "echo", InputSchema: tools.GenerateSchema[struct {
		Text string `json:"text"`
	}]()})
	descs, err := tools.MustSet(echo).Descriptors()
	if err != nil {
		t.Fatal(err)
	}

	capReq := &capture{}
	b := newBackend(&fakeTransport{respStatus: 200, respBody: []byte(textReply), captured: capReq})
	if _, err := b.Complete(context.Background(), backend.Request{
		Model:    "claude-test",
		Messages: []conv.Message{conv.User("go"), assistant, resA, resB},
		Tools:    descs,
	}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	rb := decode(t, capReq)
	if len(rb.Messages) != 3 {
		t.Fatalf("want 3 alternating messages, got %d", len(rb.Messages))
	}
	if rb.Messages[1].Role != "assistant" || len(rb.Messages[1].Content) != 2 || rb.Messages[1].Content[0].Type != "tool_use" {
		t.Fatalf("assistant: %+v", rb.Messages[1])
	}
	results := rb.Messages[2].Content
	if rb.Messages[2].Role != "user" || len(results) != 2 {
		t.Fatalf("tool results: %+v", rb.Messages[2])
	}
	if results[0].ToolUseID != "a" || results[0].IsError {
		t.Fatalf("result a: %+v", results[0])
	}
	if results[1].ToolUseID != "b" || !results[1].IsError {
		t.Fatalf("result b: %+v", results[1])
	}
	if len(rb.Tools) != 1 || rb.Tools[0].Name != "echo" {
		t.Fatalf("tools: %+v", rb.Tools)
	}
	if _, ok := rb.Tools[0].InputSchema["properties"].(map[string]any)["text"]; !ok {
		t.Fatalf("input_schema: %+v", rb.Tools[0].InputSchema)
	}
}

func TestParams_DropsEmptyAssistantTurn(t *testing.T) {
	empty, err := conv.Assistant("")
	if err != nil {
		t.Fatal(err)
	}

	capReq := &capture{}
	b := newBackend(&fakeTransport{respStatus: 200, respBody: []byte(textReply), captured: capReq})
	if _, err := b.Complete(context.Background(), backend.Request{
		Model:    "claude-test",
		Messages: []conv.Message{conv.User("go"), empty, conv.User("continue")},
	}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	rb := decode(t, capReq)
	if len(rb.Messages) != 1 || rb.Messages[0].Role != "user" {
		t.Fatalf("want one folded user turn, got %+v", rb.Messages)
	}
	content := rb.Messages[0].Content
	if len(content) != 2 || content[0].Text != "go" || content[1].Text != "continue" {
		t.Fatalf("user content: %+v", content)
	}
	for _, m := range rb.Messages {
		for _, blk := range m.Content {
			if blk.Type == "text" && blk.Text == "" {
				t.Fatalf("empty text block sent: %+v", rb.Messages)
			}
		}
	}
}

func TestMapStopReason(t *testing.T) {
	cases := map[anthropic.StopReason]conv.FinishReason{
		anthropic.StopReasonEndTurn:      conv.FinishStop,
		anthropic.StopReasonStopSequence: conv.FinishStop,
		anthropic.StopReasonToolUse:      conv.FinishToolCalls,
		anthropic.StopReasonMaxTokens:    conv.FinishLength,
		anthropic.StopReasonRefusal:      conv.FinishContentFilter,
		"pause_turn":                     "pause_turn",
	}
	for in, want := range cases {
		if got := convanthropic.MapStopReason(in); got != want {
			t.Fatalf("%q: got %q want %q", in, got, want)
		}
	}
}

func TestComplete_HTTPError(t *testing.T) {
	b := newBackend(&fakeTransport{respStatus: 400, respBody: []byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`)})
	if _, err := b.Complete(context.Background(), backend.Request{Model: "claude-test", Messages: []conv.Message{conv.User("x")}}); err == nil {
		t.Fatal("expected error")
	}
}
