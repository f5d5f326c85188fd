package windowing

import (
	"encoding/json"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"github.com/petasbytes/relay-agent/internal/conversation"
)

// CharsPerToken is the fixed characters-per-token approximation.
const CharsPerToken = 4

// Counter measures the character size of turns.
type Counter interface {
	CountTurn(t conversation.Turn) int
	CountGroup(g Group, all []conversation.Turn) int
}

// HeuristicCounter is the default deterministic sizer. It sums the rune
// count of every string field in every block:
//   - text: the text
//   - invocation: id, name and the JSON encoding of the arguments
//   - result: correlation id, payload and error message
//
// Roles and block framing are not counted.
type HeuristicCounter struct{}

func (HeuristicCounter) CountTurn(t conversation.Turn) int {
	total := 0
	for _, b := range t.Blocks {
		total += countBlock(b)
	}
	return total
}

func (h HeuristicCounter) CountGroup(g Group, all []conversation.Turn) int {
	total := 0
	for i := g.Start; i < g.End && i < len(all); i++ {
		total += h.CountTurn(all[i])
	}
	return total
}

// EstimateTokens applies the 4-characters-per-token rule to the whole sequence.
func EstimateTokens(turns []conversation.Turn, c Counter) int {
	chars := 0
	for _, t := range turns {
		chars += c.CountTurn(t)
	}
	return chars / CharsPerToken
}

func countBlock(b conversation.Block) int {
	switch b.Kind() {
	case conversation.BlockInvocation:
		inv := b.Invocation
		n := runes(inv.ID) + runes(inv.Name)
		if len(inv.Arguments) > 0 {
			raw, err := json.Marshal(inv.Arguments)
			if err != nil {
				log.Debugf("windowing: unencodable arguments id=%s: %v", inv.ID, err)
				return n
			}
			n += utf8.RuneCount(raw)
		}
		return n
	case conversation.BlockResult:
		r := b.Result
		return runes(r.InvocationID) + runes(r.Payload) + runes(r.Error)
	default:
		return runes(b.Text)
	}
}

func runes(s string) int { return utf8.RuneCountInString(s) }
