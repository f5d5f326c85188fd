package history

import (
	"strings"

	"github.com/petasbytes/relay-agent/internal/conversation"
	"github.com/petasbytes/relay-agent/memory"
)

// Flatten converts turns into rows for key so that BuildTurns over the
// stored rows reproduces them. Placeholder results are not persisted;
// BuildTurns synthesizes them again.
func Flatten(key string, turns []conversation.Turn) []memory.Row {
	var rows []memory.Row
	for _, t := range turns {
		dir := memory.Incoming
		if t.Role == conversation.RoleAssistant {
			dir = memory.Outgoing
		}

		if invs := t.Invocations(); len(invs) > 0 {
			calls := make([]memory.ToolCall, 0, len(invs))
			for _, inv := range invs {
				calls = append(calls, memory.ToolCall{ID: inv.ID, Name: inv.Name, Arguments: inv.Arguments})
			}
			rows = append(rows, memory.Row{ConversationKey: key, Direction: dir, Content: t.Text(), ToolCalls: calls})
			continue
		}

		for _, b := range t.Blocks {
			if b.Result == nil || b.Result.Synthetic {
				continue
			}
			rows = append(rows, memory.Row{
				ConversationKey: key,
				Direction:       dir,
				Content:         b.Result.Content(),
				ToolResultFor:   b.Result.InvocationID,
				IsError:         b.Result.IsError(),
			})
		}
		if text := t.Text(); strings.TrimSpace(text) != "" {
			rows = append(rows, memory.Row{ConversationKey: key, Direction: dir, Content: text})
		}
	}
	return rows
}
