package provider_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petasbytes/relay-agent/internal/conversation"
	"github.com/petasbytes/relay-agent/internal/provider"
	"github.com/petasbytes/relay-agent/tools"
)

type fakeTransport struct {
	status int
	body   string
	calls  int
	last   []byte
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.calls++
	f.last, _ = io.ReadAll(req.Body)
	_ = req.Body.Close()
	resp := &http.Response{
		StatusCode: f.status,
		Body:       io.NopCloser(bytes.NewReader([]byte(f.body))),
		Header:     make(http.Header),
		Request:    req,
	}
	resp.Header.Set("Content-Type", "application/json")
	return resp, nil
}

func newAdapter(rt http.RoundTripper) *provider.Anthropic {
	cli := provider.NewAnthropicClient(
		option.WithHTTPClient(&http.Client{Transport: rt}),
		option.WithAPIKey("test-key"),
		option.WithMaxRetries(0),
	)
	return provider.NewAnthropic(cli, "", 0)
}

type sentRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	System    []struct {
		Text string `json:"text"`
	} `json:"system"`
	Messages []struct {
		Role    string `json:"role"`
		Content []struct {
			Type      string          `json:"type"`
			Text      string          `json:"text"`
			ID        string          `json:"id"`
			Name      string          `json:"name"`
			Input     json.RawMessage `json:"input"`
			ToolUseID string          `json:"tool_use_id"`
			IsError   bool            `json:"is_error"`
			Content   json.RawMessage `json:"content"`
		} `json:"content"`
	} `json:"messages"`
	Tools []struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		InputSchema map[string]any `json:"input_schema"`
	} `json:"tools"`
	ToolChoice map[string]any `json:"tool_choice"`
}

const toolUseReply = `{
  "id": "msg_1", "type": "message", "role": "assistant", "model": "claude-3-7-sonnet-latest",
  "content": [
    {"type": "text", "text": "Let me check."},
    {"type": "tool_use", "id": "tu_1", "name": "search", "input": {"q": "porto"}}
  ],
  "stop_reason": "tool_use",
  "usage": {"input_tokens": 10, "output_tokens": 5}
}`

func TestComplete_EncodesTurnsAndTools(t *testing.T) {
	rt := &fakeTransport{status: 200, body: toolUseReply}
	a := newAdapter(rt)

	turns := []conversation.Turn{
		conversation.User(conversation.TextBlock("find tours")),
		conversation.Assistant(conversation.InvocationBlock(conversation.Invocation{ID: "a", Name: "search", Arguments: map[string]any{"q": "lisbon"}})),
		conversation.User(
			conversation.ResultBlock(conversation.Result{InvocationID: "a", Payload: "3 tours"}),
		),
		conversation.Assistant(conversation.InvocationBlock(conversation.Invocation{ID: "b", Name: "book"})),
		conversation.User(conversation.ResultBlock(conversation.Result{InvocationID: "b", Error: "sold out"})),
	}
	catalogue := tools.Catalogue(nil, []tools.Descriptor{{
		Name:        "search",
		Description: "Search tours",
		InputSchema: map[string]any{"properties": map[string]any{"q": map[string]any{"type": "string"}}, "required": []any{"q"}},
	}})

	resp, err := a.Complete(context.Background(), provider.Request{Turns: turns, Tools: catalogue, System: "be brief"})
	require.NoError(t, err)

	var sent sentRequest
	require.NoError(t, json.Unmarshal(rt.last, &sent))
	assert.Equal(t, string(provider.DefaultModel), sent.Model)
	assert.Equal(t, provider.DefaultMaxTokens, sent.MaxTokens)
	require.Len(t, sent.System, 1)
	assert.Equal(t, "be brief", sent.System[0].Text)
	assert.Nil(t, sent.ToolChoice)

	require.Len(t, sent.Messages, 5)
	assert.Equal(t, "user", sent.Messages[0].Role)
	assert.Equal(t, "find tours", sent.Messages[0].Content[0].Text)
	use := sent.Messages[1].Content[0]
	assert.Equal(t, "tool_use", use.Type)
	assert.Equal(t, "a", use.ID)
	assert.JSONEq(t, `{"q":"lisbon"}`, string(use.Input))
	res := sent.Messages[2].Content[0]
	assert.Equal(t, "tool_result", res.Type)
	assert.Equal(t, "a", res.ToolUseID)
	assert.False(t, res.IsError)
	assert.JSONEq(t, `{}`, string(sent.Messages[3].Content[0].Input))
	assert.True(t, sent.Messages[4].Content[0].IsError)

	require.Len(t, sent.Tools, 1)
	assert.Equal(t, "search", sent.Tools[0].Name)
	assert.Equal(t, "Search tours", sent.Tools[0].Description)
	assert.Equal(t, []any{"q"}, sent.Tools[0].InputSchema["required"])

	assert.Equal(t, "tool_use", resp.StopReason)
	assert.Equal(t, "Let me check.", resp.Text())
	invs := resp.Invocations()
	require.Len(t, invs, 1)
	assert.Equal(t, conversation.Invocation{ID: "tu_1", Name: "search", Arguments: map[string]any{"q": "porto"}}, invs[0])
}

func TestComplete_DisableTools(t *testing.T) {
	rt := &fakeTransport{status: 200, body: `{"id":"m","type":"message","role":"assistant","content":[{"type":"text","text":"Done."}],"stop_reason":"end_turn","usage":{}}`}
	a := newAdapter(rt)

	resp, err := a.Complete(context.Background(), provider.Request{
		Turns:        []conversation.Turn{conversation.User(conversation.TextBlock("hi"))},
		Tools:        []tools.Descriptor{{Name: "search", InputSchema: map[string]any{"type": "object", "properties": map[string]any{}}}},
		System:       "be brief",
		DisableTools: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Done.", resp.Text())
	assert.Empty(t, resp.Invocations())

	var sent sentRequest
	require.NoError(t, json.Unmarshal(rt.last, &sent))
	assert.Equal(t, "none", sent.ToolChoice["type"])
	require.Len(t, sent.System, 1)
	assert.Contains(t, sent.System[0].Text, "be brief")
	assert.Contains(t, sent.System[0].Text, provider.NoToolsInstruction)
}

func TestComplete_DropsLeadingAssistantGroup(t *testing.T) {
	rt := &fakeTransport{status: 200, body: `{"id":"m","type":"message","role":"assistant","content":[],"stop_reason":"end_turn","usage":{}}`}
	a := newAdapter(rt)

	turns := []conversation.Turn{
		conversation.Assistant(conversation.InvocationBlock(conversation.Invocation{ID: "a", Name: "search"})),
		conversation.User(conversation.ResultBlock(conversation.Result{InvocationID: "a", Payload: "x"})),
		conversation.Assistant(conversation.TextBlock("here you go")),
		conversation.User(conversation.TextBlock("thanks"), conversation.TextBlock("  ")),
	}
	_, err := a.Complete(context.Background(), provider.Request{Turns: turns})
	require.NoError(t, err)

	var sent sentRequest
	require.NoError(t, json.Unmarshal(rt.last, &sent))
	require.Len(t, sent.Messages, 1)
	assert.Equal(t, "user", sent.Messages[0].Role)
	require.Len(t, sent.Messages[0].Content, 1)
	assert.Equal(t, "thanks", sent.Messages[0].Content[0].Text)
}

func TestComplete_NothingToSend(t *testing.T) {
	rt := &fakeTransport{status: 200, body: `{}`}
	_, err := newAdapter(rt).Complete(context.Background(), provider.Request{})
	require.Error(t, err)
	assert.Zero(t, rt.calls)
}

func TestComplete_PropagatesAPIError(t *testing.T) {
	rt := &fakeTransport{status: 400, body: `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`}
	_, err := newAdapter(rt).Complete(context.Background(), provider.Request{
		Turns: []conversation.Turn{conversation.User(conversation.TextBlock("hi"))},
	})
	require.Error(t, err)
	assert.Equal(t, 1, rt.calls)
}
