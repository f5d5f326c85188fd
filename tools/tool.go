package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Handler runs a local tool. The returned value becomes the tool result
// payload: strings are used as-is, anything else is JSON-encoded.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Descriptor is what the model sees of a tool.
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema,omitempty"`
}

type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
	Function    Handler
}

func (d ToolDefinition) Descriptor() Descriptor {
	return Descriptor{Name: d.Name, Description: d.Description, InputSchema: d.InputSchema}
}

// DecodeArgs converts a generic argument map into T through its JSON form.
func DecodeArgs[T any](args map[string]any) (T, error) {
	var in T
	if len(args) == 0 {
		return in, nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return in, fmt.Errorf("encode arguments: %w", err)
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, fmt.Errorf("decode arguments: %w", err)
	}
	return in, nil
}
