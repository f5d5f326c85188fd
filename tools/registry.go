package tools

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var ErrUnknownTool = errors.New("tools: unknown tool")

// Registry maps tool names to local handlers. The zero value is not usable;
// a nil *Registry behaves as an empty one for lookups.
type Registry struct {
	mu    sync.RWMutex
	order []string
	defs  map[string]ToolDefinition
}

func NewRegistry(defs ...ToolDefinition) (*Registry, error) {
	r := &Registry{defs: make(map[string]ToolDefinition, len(defs))}
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Builtins returns the local tools wired for the agent by default.
func Builtins() []ToolDefinition {
	return []ToolDefinition{CurrentTimeDefinition}
}

func (r *Registry) Register(def ToolDefinition) error {
	if def.Name == "" {
		return errors.New("tools: definition without name")
	}
	if def.Function == nil {
		return fmt.Errorf("tools: %s has no handler", def.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("tools: %s already registered", def.Name)
	}
	r.defs[def.Name] = def
	r.order = append(r.order, def.Name)
	return nil
}

func (r *Registry) Lookup(name string) (ToolDefinition, bool) {
	if r == nil {
		return ToolDefinition{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[name]
	return d, ok
}

// Invoke runs the named handler; ErrUnknownTool when none is registered.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	d, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return d.Function(ctx, args)
}

// Descriptors lists registered tools in registration order.
func (r *Registry) Descriptors() []Descriptor {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.defs[name].Descriptor())
	}
	return out
}
