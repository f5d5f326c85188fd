package windowing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/petasbytes/relay-agent/internal/conversation"
	"github.com/petasbytes/relay-agent/internal/windowing"
)

func TestGroupTurns_Invariants(t *testing.T) {
	single := func(s int) windowing.Group { return windowing.Group{Kind: windowing.GroupSingleton, Start: s, End: s + 1} }
	pair := func(s int) windowing.Group { return windowing.Group{Kind: windowing.GroupPair, Start: s, End: s + 2} }

	tests := []struct {
		name  string
		turns []conversation.Turn
		want  []windowing.Group
	}{
		{
			name:  "valid pair: one tool",
			turns: []conversation.Turn{Asst(T("Using tools"), TU("t1")), User(TR("t1", false))},
			want:  []windowing.Group{pair(0)},
		},
		{
			name:  "text in result turn breaks the pair",
			turns: []conversation.Turn{Asst(TU("t1")), User(TR("t1", false), T("ok"))},
			want:  []windowing.Group{single(0), single(1)},
		},
		{
			name:  "parallel completeness missing (2 tools)",
			turns: []conversation.Turn{Asst(TU("t1"), TU("t2")), User(TR("t1", false))},
			want:  []windowing.Group{single(0), single(1)},
		},
		{
			name:  "parallel completeness OK (2 tools)",
			turns: []conversation.Turn{Asst(TU("t1"), TU("t2")), User(TR("t1", false), TR("t2", false))},
			want:  []windowing.Group{pair(0)},
		},
		{
			name:  "intervening turn invalidates adjacency",
			turns: []conversation.Turn{Asst(TU("t1")), Intervening("note"), User(TR("t1", false))},
			want:  []windowing.Group{single(0), single(1), single(2)},
		},
		{
			name:  "error result treated same as success",
			turns: []conversation.Turn{Asst(TU("t1")), User(TR("t1", true))},
			want:  []windowing.Group{pair(0)},
		},
		{
			name:  "extra results: strict exclusion",
			turns: []conversation.Turn{Asst(TU("t1")), User(TR("t1", false), TR("t_extra", false))},
			want:  []windowing.Group{single(0), single(1)},
		},
		{
			name:  "invocation turn last",
			turns: []conversation.Turn{User(T("q")), Asst(TU("t1"))},
			want:  []windowing.Group{single(0), single(1)},
		},
		{
			name:  "no tools: all singletons",
			turns: []conversation.Turn{Asst(T("hello")), User(T("world"))},
			want:  []windowing.Group{single(0), single(1)},
		},
		{
			name: "consecutive pairs",
			turns: []conversation.Turn{
				User(T("q")),
				Asst(TU("a")), User(TR("a", false)),
				Asst(TU("b")), User(TR("b", false)),
				Asst(T("done")),
			},
			want: []windowing.Group{single(0), pair(1), pair(3), single(5)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, windowing.GroupTurns(tt.turns))
		})
	}
}
