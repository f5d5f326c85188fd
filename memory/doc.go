// Package memory holds the persisted message log a conversation is rebuilt
// from.
//
// Persistence model:
//   - One Row per stored message, ordered by CreatedAt.
//   - Tool invocations ride on the row that requested them (ToolCalls).
//   - Each tool result is its own row, linked back by ToolResultFor.
package memory
