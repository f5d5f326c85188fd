package windowing

import (
	log "github.com/sirupsen/logrus"

	"github.com/petasbytes/relay-agent/internal/conversation"
)

// Stats summarizes the result of window preparation.
//
// Fields:
//   - Total: estimated tokens of the returned window.
//   - Budget: the token budget used.
//   - IncludedGroups / SkippedGroups: eviction units kept and dropped.
//   - DroppedTurns: turns removed from the oldest end.
//   - ReanchoredGroups: groups kept back so the window opens on a user turn.
//   - OverBudget: true when the window still exceeds Budget, either because
//     only one group remains or because re-anchoring added groups back.
type Stats struct {
	Total            int
	Budget           int
	IncludedGroups   int
	SkippedGroups    int
	DroppedTurns     int
	ReanchoredGroups int
	OverBudget       bool
}

// ApplyTokenBudget trims turns to maxTokens with the default counter.
func ApplyTokenBudget(turns []conversation.Turn, maxTokens int) []conversation.Turn {
	window, _ := PrepareWindow(turns, maxTokens, HeuristicCounter{})
	return window
}

// PrepareWindow returns a suffix of turns (sharing the backing array) whose
// estimate fits budget.
//
// Rules:
//   - While the estimate exceeds budget, drop the oldest group as a whole.
//   - Never drop the last group; an over-budget single group is returned
//     with OverBudget set rather than an empty window.
//   - The window opens on a plain user turn when the input has one at or
//     before the stop point: eviction that stopped on an assistant-led group
//     walks back to the nearest user-led group, even past the budget.
//   - Empty input returns nil.
func PrepareWindow(turns []conversation.Turn, budget int, c Counter) ([]conversation.Turn, Stats) {
	if len(turns) == 0 {
		return nil, Stats{Budget: budget}
	}

	groups := GroupTurns(turns)
	costs := make([]int, len(groups))
	chars := 0
	for i, g := range groups {
		costs[i] = c.CountGroup(g, turns)
		chars += costs[i]
	}

	start, reanchored := 0, 0
	for chars/CharsPerToken > budget && start < len(groups)-1 {
		chars -= costs[start]
		start++
	}
	if anchor := userLedGroup(groups, turns, start); anchor >= 0 && anchor < start {
		for i := anchor; i < start; i++ {
			chars += costs[i]
		}
		log.Debugf("windowing: kept %d group(s) back to open on a user turn", start-anchor)
		reanchored = start - anchor
		start = anchor
	}

	first := groups[start].Start
	stats := Stats{
		Total:            chars / CharsPerToken,
		Budget:           budget,
		IncludedGroups:   len(groups) - start,
		SkippedGroups:    start,
		DroppedTurns:     first,
		ReanchoredGroups: reanchored,
		OverBudget:       chars/CharsPerToken > budget,
	}
	if stats.DroppedTurns > 0 {
		log.Debugf("windowing: dropped %d oldest turns budget=%d total=%d", stats.DroppedTurns, budget, stats.Total)
	}
	if stats.OverBudget {
		log.Warnf("windowing: window exceeds budget=%d total=%d groups=%d", budget, stats.Total, stats.IncludedGroups)
	}
	return turns[first:], stats
}

// userLedGroup returns the index of the nearest group at or before from whose
// first turn is a user turn without results, or -1 when there is none.
func userLedGroup(groups []Group, turns []conversation.Turn, from int) int {
	for i := from; i >= 0; i-- {
		t := turns[groups[i].Start]
		if t.Role == conversation.RoleUser && !t.HasResults() {
			return i
		}
	}
	return -1
}
