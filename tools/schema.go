package tools

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	log "github.com/sirupsen/logrus"
)

// GenerateSchema reflects T into a normalized input schema.
func GenerateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	raw, err := json.Marshal(reflector.Reflect(v))
	if err != nil {
		panic(fmt.Sprintf("tools: marshal schema for %T: %v", v, err))
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		panic(fmt.Sprintf("tools: decode schema for %T: %v", v, err))
	}
	return NormalizeSchema(m)
}

// reserved keys some providers reject in tool schemas
var reservedSchemaKeys = map[string]struct{}{
	"$schema":  {},
	"$id":      {},
	"$comment": {},
}

// NormalizeSchema returns a cleaned deep copy of schema: reserved keys are
// stripped at every level, a missing top-level type becomes "object", a
// properties map always exists, and required keeps only non-empty, unique
// string names. The input is not modified.
func NormalizeSchema(schema map[string]any) map[string]any {
	out := copySchema(schema)
	if t, ok := out["type"].(string); !ok || t == "" {
		out["type"] = "object"
	}
	if _, ok := out["properties"].(map[string]any); !ok {
		out["properties"] = map[string]any{}
	}
	if req, ok := out["required"]; ok {
		names := requiredNames(req)
		if len(names) == 0 {
			delete(out, "required")
		} else {
			out["required"] = names
		}
	}
	return out
}

func copySchema(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if _, reserved := reservedSchemaKeys[k]; reserved {
			continue
		}
		if k == "properties" {
			if props, ok := v.(map[string]any); ok {
				// keys here are property names, not schema keywords
				cp := make(map[string]any, len(props))
				for name, sub := range props {
					cp[name] = copyValue(sub)
				}
				out[k] = cp
				continue
			}
		}
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copySchema(t)
	case []any:
		cp := make([]any, len(t))
		for i, e := range t {
			cp[i] = copyValue(e)
		}
		return cp
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

func requiredNames(v any) []string {
	var raw []any
	switch t := v.(type) {
	case []string:
		for _, s := range t {
			raw = append(raw, s)
		}
	case []any:
		raw = t
	}
	seen := make(map[string]struct{}, len(raw))
	var names []string
	for _, e := range raw {
		s, ok := e.(string)
		if !ok || s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		names = append(names, s)
	}
	return names
}

// Catalogue merges local and remote descriptors into the model-facing list.
// Names are unique: nameless descriptors are dropped and the first
// occurrence of a name wins, so local tools shadow remote ones. Every schema
// is normalized.
func Catalogue(local, remote []Descriptor) []Descriptor {
	out := make([]Descriptor, 0, len(local)+len(remote))
	seen := make(map[string]struct{}, cap(out))
	add := func(d Descriptor, source string) {
		if d.Name == "" {
			log.Warnf("tools: dropping %s descriptor without name", source)
			return
		}
		if _, dup := seen[d.Name]; dup {
			log.Warnf("tools: %s tool %q shadowed by an earlier definition", source, d.Name)
			return
		}
		seen[d.Name] = struct{}{}
		d.InputSchema = NormalizeSchema(d.InputSchema)
		out = append(out, d)
	}
	for _, d := range local {
		add(d, "local")
	}
	for _, d := range remote {
		add(d, "remote")
	}
	return out
}
