package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	log "github.com/sirupsen/logrus"

	"github.com/petasbytes/relay-agent/internal/conversation"
	"github.com/petasbytes/relay-agent/tools"
)

// NewAnthropicClient returns a client using API key from the env.
func NewAnthropicClient(opts ...option.RequestOption) *anthropic.Client {
	c := anthropic.NewClient(opts...)
	return &c
}

const DefaultModel = anthropic.ModelClaude3_7SonnetLatest
const APIVersion = "2023-06-01"

const DefaultMaxTokens = 1024

// NoToolsInstruction is appended to the system prompt of a tools-disabled
// call.
const NoToolsInstruction = "No more tools are available. Answer the user now using only the information already in this conversation."

// Anthropic adapts the Messages API to Request/Response.
type Anthropic struct {
	Client    *anthropic.Client
	Model     anthropic.Model
	MaxTokens int64
}

func NewAnthropic(client *anthropic.Client, model anthropic.Model, maxTokens int64) *Anthropic {
	if model == "" {
		model = DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Anthropic{Client: client, Model: model, MaxTokens: maxTokens}
}

func (a *Anthropic) Complete(ctx context.Context, req Request) (*Response, error) {
	params := anthropic.MessageNewParams{
		Model:     a.Model,
		MaxTokens: a.MaxTokens,
		Messages:  messages(req.Turns),
	}
	if len(params.Messages) == 0 {
		return nil, fmt.Errorf("provider: no messages to send")
	}

	system := req.System
	if len(req.Tools) > 0 {
		// Tool definitions stay attached when disabled: the history may
		// still carry tool_use blocks that reference them.
		params.Tools = toolParams(req.Tools)
		if req.DisableTools {
			params.ToolChoice = anthropic.ToolChoiceUnionParam{OfNone: &anthropic.ToolChoiceNoneParam{}}
		}
	}
	if req.DisableTools {
		system = strings.TrimSpace(system + "\n\n" + NoToolsInstruction)
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := a.Client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("provider: messages: %w", err)
	}

	resp := &Response{StopReason: string(msg.StopReason)}
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			if v.Text != "" {
				resp.Blocks = append(resp.Blocks, conversation.TextBlock(v.Text))
			}
		case anthropic.ToolUseBlock:
			inv := conversation.Invocation{ID: v.ID, Name: v.Name, Arguments: map[string]any{}}
			if raw := v.JSON.Input.Raw(); raw != "" {
				if err := json.Unmarshal([]byte(raw), &inv.Arguments); err != nil {
					log.Warnf("provider: tool_use %s has non-object input: %v", v.ID, err)
					inv.Arguments = map[string]any{}
				}
			}
			resp.Blocks = append(resp.Blocks, conversation.InvocationBlock(inv))
		}
	}
	return resp, nil
}

func messages(turns []conversation.Turn) []anthropic.MessageParam {
	turns = leadingUser(turns)
	out := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		blocks := contentBlocks(t)
		if len(blocks) == 0 {
			continue
		}
		if t.Role == conversation.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out
}

// leadingUser drops assistant turns at the head of the window, together with
// the result turn answering them, since the API requires a user message first.
func leadingUser(turns []conversation.Turn) []conversation.Turn {
	for len(turns) > 0 && turns[0].Role == conversation.RoleAssistant {
		drop := 1
		if len(turns[0].Invocations()) > 0 && len(turns) > 1 && turns[1].HasResults() {
			drop = 2
		}
		log.Debugf("provider: dropping %d leading turn(s) without a user message", drop)
		turns = turns[drop:]
	}
	return turns
}

func contentBlocks(t conversation.Turn) []anthropic.ContentBlockParamUnion {
	out := make([]anthropic.ContentBlockParamUnion, 0, len(t.Blocks))
	for _, b := range t.Blocks {
		switch b.Kind() {
		case conversation.BlockText:
			if strings.TrimSpace(b.Text) == "" {
				continue
			}
			out = append(out, anthropic.NewTextBlock(b.Text))
		case conversation.BlockInvocation:
			args := b.Invocation.Arguments
			if args == nil {
				args = map[string]any{}
			}
			out = append(out, anthropic.ContentBlockParamUnion{OfToolUse: &anthropic.ToolUseBlockParam{
				ID:    b.Invocation.ID,
				Name:  b.Invocation.Name,
				Input: args,
			}})
		case conversation.BlockResult:
			out = append(out, anthropic.NewToolResultBlock(b.Result.InvocationID, b.Result.Content(), b.Result.IsError()))
		}
	}
	return out
}

func toolParams(descs []tools.Descriptor) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(descs))
	for _, d := range descs {
		schema := anthropic.ToolInputSchemaParam{Properties: d.InputSchema["properties"]}
		if req, ok := d.InputSchema["required"].([]string); ok {
			schema.Required = req
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        d.Name,
			Description: anthropic.String(d.Description),
			InputSchema: schema,
		}})
	}
	return out
}
