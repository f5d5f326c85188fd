// Package tools defines tool contracts and the locally registered handlers.
//
// Includes:
//   - ToolDefinition: name, description, JSON input schema, handler.
//   - Descriptor: the model-facing view of a tool, local or remote.
//   - GenerateSchema[T](): derive JSON Schema from Go structs.
//   - NormalizeSchema / Catalogue: clean schemas and merge catalogues.
//   - Builtin tools: current_time.
package tools
