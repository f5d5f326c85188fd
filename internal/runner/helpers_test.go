package runner_test

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petasbytes/relay-agent/internal/conversation"
	"github.com/petasbytes/relay-agent/internal/provider"
	"github.com/petasbytes/relay-agent/tools"
)

// fakeModel records every request and answers with reply(callNumber, req).
type fakeModel struct {
	mu    sync.Mutex
	reqs  []provider.Request
	reply func(n int, req provider.Request) (*provider.Response, error)
}

func (m *fakeModel) Complete(_ context.Context, req provider.Request) (*provider.Response, error) {
	m.mu.Lock()
	m.reqs = append(m.reqs, req)
	n := len(m.reqs)
	m.mu.Unlock()
	return m.reply(n, req)
}

func (m *fakeModel) requests() []provider.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]provider.Request(nil), m.reqs...)
}

func answer(text string) *provider.Response {
	return &provider.Response{Blocks: []conversation.Block{conversation.TextBlock(text)}, StopReason: "end_turn"}
}

func invoke(invs ...conversation.Invocation) *provider.Response {
	blocks := []conversation.Block{conversation.TextBlock("working on it")}
	for _, inv := range invs {
		blocks = append(blocks, conversation.InvocationBlock(inv))
	}
	return &provider.Response{Blocks: blocks, StopReason: "tool_use"}
}

func call(id, name string, args map[string]any) conversation.Invocation {
	return conversation.Invocation{ID: id, Name: name, Arguments: args}
}

// fakeRemote stands in for the transport client.
type fakeRemote struct {
	mu     sync.Mutex
	called []string
	handle func(name string, args map[string]any) (any, error)
}

func (f *fakeRemote) CallTool(_ context.Context, name string, args map[string]any) (any, error) {
	f.mu.Lock()
	f.called = append(f.called, name)
	f.mu.Unlock()
	return f.handle(name, args)
}

func localTool(name string, fn tools.Handler) tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        name,
		Description: "local " + name,
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
		Function:    fn,
	}
}

func registry(t *testing.T, defs ...tools.ToolDefinition) *tools.Registry {
	t.Helper()
	r, err := tools.NewRegistry(defs...)
	require.NoError(t, err)
	return r
}

func userText(s string) conversation.Turn {
	return conversation.User(conversation.TextBlock(s))
}

// lastResults returns the result blocks of the last user turn in turns.
func lastResults(t *testing.T, turns []conversation.Turn) []conversation.Result {
	t.Helper()
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role != conversation.RoleUser || !turns[i].HasResults() {
			continue
		}
		var out []conversation.Result
		for _, b := range turns[i].Blocks {
			if b.Result != nil {
				out = append(out, *b.Result)
			}
		}
		return out
	}
	require.FailNow(t, "no result turn", "searched %d turns", len(turns))
	return nil
}

// observeTo turns on JSONL telemetry into a temp file and returns its path.
func observeTo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	t.Setenv("AGT_OBSERVE_JSON", "1")
	t.Setenv("AGT_OBSERVE_PATH", path)
	return path
}

func readEvents(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	defer f.Close()
	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m), "line %q", sc.Text())
		out = append(out, m)
	}
	return out
}

func eventsNamed(events []map[string]any, name string) []map[string]any {
	var out []map[string]any
	for _, e := range events {
		if e["event"] == name {
			out = append(out, e)
		}
	}
	return out
}

func sizedText(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + i%26)
	}
	return string(b)
}
