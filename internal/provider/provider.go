// Package provider is the model-completion collaborator of the tool loop.
package provider

import (
	"context"
	"strings"

	"github.com/petasbytes/relay-agent/internal/conversation"
	"github.com/petasbytes/relay-agent/tools"
)

// Request is one model call. Tools should already be normalized.
type Request struct {
	Turns  []conversation.Turn
	Tools  []tools.Descriptor
	System string
	// DisableTools forbids tool use and tells the model so.
	DisableTools bool
}

// Response holds the model's text and invocation blocks in emitted order.
type Response struct {
	Blocks     []conversation.Block
	StopReason string
}

// Model is implemented by Anthropic and by test fakes.
type Model interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

func (r *Response) Invocations() []conversation.Invocation {
	return r.Turn().Invocations()
}

// Text joins the text blocks with newlines.
func (r *Response) Text() string {
	return strings.TrimSpace(r.Turn().Text())
}

// Turn is the response as an assistant turn.
func (r *Response) Turn() conversation.Turn {
	return conversation.Assistant(r.Blocks...)
}
