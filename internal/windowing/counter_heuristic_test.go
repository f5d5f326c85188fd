package windowing_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/petasbytes/relay-agent/internal/conversation"
	"github.com/petasbytes/relay-agent/internal/windowing"
)

func TestHeuristicCounter_TextBlocks_CountsRunes(t *testing.T) {
	h := windowing.HeuristicCounter{}
	// "hello" = 5 runes, "👍" = 1 rune
	assert.Equal(t, 6, h.CountTurn(User(T("hello"), T("👍"))))
}

func TestHeuristicCounter_Result_CountsIDPayloadAndError(t *testing.T) {
	h := windowing.HeuristicCounter{}
	assert.Equal(t, 2+6, h.CountTurn(User(TRString("t1", "abcdef"))), "payload")
	assert.Equal(t, 2+len("failed"), h.CountTurn(User(TR("t1", true))), "error")
}

func TestHeuristicCounter_Invocation_CountsArgumentsAsJSON(t *testing.T) {
	h := windowing.HeuristicCounter{}
	inv := conversation.InvocationBlock(conversation.Invocation{
		ID:        "c1",
		Name:      "search",
		Arguments: map[string]any{"q": "x"},
	})
	// "c1" + "search" + `{"q":"x"}`
	assert.Equal(t, 2+6+9, h.CountTurn(Asst(inv)))
}

func TestHeuristicCounter_GroupSumsMembers(t *testing.T) {
	h := windowing.HeuristicCounter{}
	turns := []conversation.Turn{Asst(TU("a")), User(TRString("a", "rr"))}
	g := windowing.Group{Kind: windowing.GroupPair, Start: 0, End: 2}
	assert.Equal(t, h.CountTurn(turns[0])+h.CountTurn(turns[1]), h.CountGroup(g, turns))
}

func TestEstimateTokens_FloorOfQuarterChars(t *testing.T) {
	turns := []conversation.Turn{User(T(strings.Repeat("a", 7))), User(T(strings.Repeat("b", 6)))}
	assert.Equal(t, 3, windowing.EstimateTokens(turns, windowing.HeuristicCounter{}))
	assert.Zero(t, windowing.EstimateTokens(nil, windowing.HeuristicCounter{}))
}
