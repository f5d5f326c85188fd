package history

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/petasbytes/relay-agent/internal/conversation"
	"github.com/petasbytes/relay-agent/internal/metrics"
	"github.com/petasbytes/relay-agent/memory"
)

// UsingToolsText stands in for an invocation row that carried no text.
const UsingToolsText = "Using tools"

// BuildTurns converts time-ordered rows into turns. Blank rows are skipped,
// invocation rows become an assistant turn followed by their results, result
// rows outside that position are dropped, and everything else becomes a
// single-text turn whose role follows the row direction.
func BuildTurns(rows []memory.Row) []conversation.Turn {
	consumed := make([]bool, len(rows))
	turns := make([]conversation.Turn, 0, len(rows))

	for i, row := range rows {
		if consumed[i] {
			continue
		}
		if row.ToolResultFor != "" {
			log.Debugf("history: skipping orphaned result row id=%s for=%s", row.ID, row.ToolResultFor)
			metrics.OrphanResults.Inc()
			warnIgnoredCalls(row)
			continue
		}
		if row.Blank() {
			continue
		}

		invs := invocationsFrom(row)
		if len(invs) == 0 {
			if strings.TrimSpace(row.Content) == "" {
				continue
			}
			turns = append(turns, plainTurn(row))
			continue
		}

		text := row.Content
		if strings.TrimSpace(text) == "" {
			text = UsingToolsText
		}
		blocks := make([]conversation.Block, 0, len(invs)+1)
		blocks = append(blocks, conversation.TextBlock(text))
		ids := make([]string, 0, len(invs))
		for _, inv := range invs {
			blocks = append(blocks, conversation.InvocationBlock(inv))
			ids = append(ids, inv.ID)
		}
		turns = append(turns, conversation.Assistant(blocks...))

		found := collectResults(rows, i+1, ids, consumed)
		resultTurn, synthesized := conversation.ResultTurn(ids, found)
		if len(synthesized) > 0 {
			log.Warnf("history: synthesized placeholder results row=%s ids=%v", row.ID, synthesized)
			metrics.PlaceholderResults.Add(float64(len(synthesized)))
		}
		turns = append(turns, resultTurn)
	}

	return ValidateInvocationPairing(turns)
}

// invocationsFrom returns the well-formed tool calls of row. Calls without
// an id or name, and repeats of an id already seen on the row, are skipped.
func invocationsFrom(row memory.Row) []conversation.Invocation {
	var out []conversation.Invocation
	seen := make(map[string]struct{}, len(row.ToolCalls))
	for _, tc := range row.ToolCalls {
		if tc.ID == "" || tc.Name == "" {
			log.Debugf("history: skipping malformed tool call row=%s id=%q name=%q", row.ID, tc.ID, tc.Name)
			continue
		}
		if _, dup := seen[tc.ID]; dup {
			log.Debugf("history: skipping duplicate tool call row=%s id=%s", row.ID, tc.ID)
			continue
		}
		seen[tc.ID] = struct{}{}
		out = append(out, conversation.Invocation{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
	}
	return out
}

// collectResults scans rows[from:] for results answering ids and marks every
// matching row consumed. The first row seen for an id wins.
func collectResults(rows []memory.Row, from int, ids []string, consumed []bool) map[string]conversation.Result {
	pending := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		pending[id] = struct{}{}
	}
	found := make(map[string]conversation.Result, len(ids))
	for j := from; j < len(rows); j++ {
		if consumed[j] {
			continue
		}
		id := rows[j].ToolResultFor
		if _, ok := pending[id]; !ok {
			continue
		}
		consumed[j] = true
		warnIgnoredCalls(rows[j])
		if _, dup := found[id]; dup {
			continue
		}
		found[id] = resultFrom(rows[j])
	}
	return found
}

// warnIgnoredCalls reports tool calls stored on a result row. A result row
// only ever answers an earlier invocation; its own calls are not replayed.
func warnIgnoredCalls(row memory.Row) {
	if len(row.ToolCalls) == 0 {
		return
	}
	ids := make([]string, 0, len(row.ToolCalls))
	for _, tc := range row.ToolCalls {
		ids = append(ids, tc.ID)
	}
	log.Warnf("history: ignoring tool calls %v on result row id=%s for=%s", ids, row.ID, row.ToolResultFor)
}

func resultFrom(row memory.Row) conversation.Result {
	r := conversation.Result{InvocationID: row.ToolResultFor}
	if row.IsError {
		r.Error = row.Content
		if r.Error == "" {
			r.Error = "tool failed"
		}
		return r
	}
	r.Payload = row.Content
	return r
}

func plainTurn(row memory.Row) conversation.Turn {
	if row.Direction == memory.Outgoing {
		return conversation.Assistant(conversation.TextBlock(row.Content))
	}
	return conversation.User(conversation.TextBlock(row.Content))
}
