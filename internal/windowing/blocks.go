package windowing

import (
	log "github.com/sirupsen/logrus"

	"github.com/petasbytes/relay-agent/internal/conversation"
)

// GroupKind denotes the atomic unit type when trimming a window.
type GroupKind int

const (
	GroupSingleton GroupKind = iota
	GroupPair
)

// Group describes a contiguous span of turns [Start, End) in the original slice.
type Group struct {
	Kind  GroupKind
	Start int // inclusive
	End   int // exclusive
}

// GroupTurns groups turns into eviction units that keep invocation pairs whole.
// A pair is exactly two adjacent turns: an assistant turn with invocations,
// then a user turn made only of results covering every invocation id and no
// others. Error results group like any other result. Anything else is a
// singleton.
func GroupTurns(turns []conversation.Turn) []Group {
	groups := make([]Group, 0, len(turns))
	for i := 0; i < len(turns); {
		t := turns[i]
		if t.Role == conversation.RoleAssistant {
			useIDs := idSet(t.InvocationIDs())
			if len(useIDs) > 0 {
				if i+1 < len(turns) && turns[i+1].Role == conversation.RoleUser {
					valid, resultIDs := resultOnlyIDs(turns[i+1])
					if valid && coversAll(resultIDs, useIDs) && noExtraResults(resultIDs, useIDs) {
						groups = append(groups, Group{Kind: GroupPair, Start: i, End: i + 2})
						i += 2
						continue
					}
					reason := "unknown"
					switch {
					case !valid:
						reason = "non_result_block"
					case !coversAll(resultIDs, useIDs):
						reason = "missing_results"
					case !noExtraResults(resultIDs, useIDs):
						reason = "extra_results"
					}
					log.Debugf("windowing: exclude pair: reason=%s idx=%d", reason, i)
				} else {
					log.Debugf("windowing: exclude pair: reason=not_followed_by_user idx=%d", i)
				}
			}
		}
		groups = append(groups, Group{Kind: GroupSingleton, Start: i, End: i + 1})
		i++
	}
	return groups
}

func idSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

// resultOnlyIDs returns valid=false when t holds anything but result blocks.
func resultOnlyIDs(t conversation.Turn) (valid bool, ids map[string]struct{}) {
	ids = make(map[string]struct{}, len(t.Blocks))
	for _, b := range t.Blocks {
		if b.Result == nil {
			return false, ids
		}
		ids[b.Result.InvocationID] = struct{}{}
	}
	return true, ids
}

// coversAll checks that every id in required is present in have.
func coversAll(have, required map[string]struct{}) bool {
	for id := range required {
		if _, ok := have[id]; !ok {
			return false
		}
	}
	return true
}

// noExtraResults enforces that the user turn carries no result without a
// matching invocation.
func noExtraResults(have, allowed map[string]struct{}) bool {
	for id := range have {
		if _, ok := allowed[id]; !ok {
			return false
		}
	}
	return true
}
