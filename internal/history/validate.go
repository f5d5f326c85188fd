package history

import (
	log "github.com/sirupsen/logrus"

	"github.com/petasbytes/relay-agent/internal/conversation"
	"github.com/petasbytes/relay-agent/internal/metrics"
)

// ValidateInvocationPairing repairs turns so that every assistant turn with
// invocations is followed by exactly its result turn. A missing or
// mismatched follower gets an all-placeholder result turn inserted before
// it. Result blocks that do not answer the immediately preceding assistant
// turn are stripped, and a turn left empty is dropped.
//
// The pass is idempotent: a valid sequence comes back unchanged.
func ValidateInvocationPairing(turns []conversation.Turn) []conversation.Turn {
	out := make([]conversation.Turn, 0, len(turns))
	for i := 0; i < len(turns); i++ {
		t := turns[i]
		ids := t.InvocationIDs()
		if t.Role == conversation.RoleAssistant && len(ids) > 0 {
			out = append(out, t)
			if i+1 < len(turns) && turns[i+1].Answers(ids) {
				out = append(out, turns[i+1])
				i++
				continue
			}
			log.Warnf("history: invocation turn %d not followed by its results; inserting placeholders ids=%v", i, ids)
			metrics.PlaceholderResults.Add(float64(len(ids)))
			placeholders, _ := conversation.ResultTurn(ids, nil)
			out = append(out, placeholders)
			continue
		}
		if t.HasResults() {
			stripped := withoutResults(t)
			log.Debugf("history: dropping %d unpaired result blocks at turn %d", len(t.Blocks)-len(stripped.Blocks), i)
			if len(stripped.Blocks) == 0 {
				continue
			}
			t = stripped
		}
		out = append(out, t)
	}
	return out
}

func withoutResults(t conversation.Turn) conversation.Turn {
	blocks := make([]conversation.Block, 0, len(t.Blocks))
	for _, b := range t.Blocks {
		if b.Result == nil {
			blocks = append(blocks, b)
		}
	}
	return conversation.Turn{Role: t.Role, Blocks: blocks}
}
