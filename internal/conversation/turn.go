// Package conversation defines the role-tagged, block-structured turns the
// model consumes, and the tool invocation/result blocks that link them.
package conversation

import "strings"

// Role of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PlaceholderPayload is the synthetic success payload used when a persisted
// log lost the result for an invocation.
const PlaceholderPayload = `{"success":true,"result":"Tool executed successfully"}`

// Invocation is a model request to run a named tool.
type Invocation struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Result is the outcome of one Invocation, correlated by InvocationID.
// Exactly one of Payload and Error is meaningful; Error wins when non-empty.
type Result struct {
	InvocationID string
	Payload      string
	Error        string
	// Synthetic marks a placeholder created during history repair.
	Synthetic bool
}

func (r Result) IsError() bool { return r.Error != "" }

// Content returns the text the model sees for this result.
func (r Result) Content() string {
	if r.IsError() {
		return r.Error
	}
	return r.Payload
}

// Placeholder returns the synthetic success result for id.
func Placeholder(id string) Result {
	return Result{InvocationID: id, Payload: PlaceholderPayload, Synthetic: true}
}

// BlockKind discriminates the Block variants.
type BlockKind int

const (
	BlockText BlockKind = iota
	BlockInvocation
	BlockResult
)

// Block is one of text, invocation or result. Use the constructors; a Block
// with both Invocation and Result set is invalid.
type Block struct {
	Text       string
	Invocation *Invocation
	Result     *Result
}

func TextBlock(s string) Block { return Block{Text: s} }

func InvocationBlock(inv Invocation) Block { return Block{Invocation: &inv} }

func ResultBlock(res Result) Block { return Block{Result: &res} }

func (b Block) Kind() BlockKind {
	switch {
	case b.Invocation != nil:
		return BlockInvocation
	case b.Result != nil:
		return BlockResult
	default:
		return BlockText
	}
}

// Turn is an ordered set of blocks from one role.
type Turn struct {
	Role   Role
	Blocks []Block
}

func User(blocks ...Block) Turn { return Turn{Role: RoleUser, Blocks: blocks} }

func Assistant(blocks ...Block) Turn { return Turn{Role: RoleAssistant, Blocks: blocks} }

// Invocations returns the invocation blocks of t in order.
func (t Turn) Invocations() []Invocation {
	var out []Invocation
	for _, b := range t.Blocks {
		if b.Invocation != nil {
			out = append(out, *b.Invocation)
		}
	}
	return out
}

// InvocationIDs returns the correlation ids of t's invocations in order.
func (t Turn) InvocationIDs() []string {
	var ids []string
	for _, b := range t.Blocks {
		if b.Invocation != nil {
			ids = append(ids, b.Invocation.ID)
		}
	}
	return ids
}

// ResultIDs returns the correlation ids of t's results in order.
func (t Turn) ResultIDs() []string {
	var ids []string
	for _, b := range t.Blocks {
		if b.Result != nil {
			ids = append(ids, b.Result.InvocationID)
		}
	}
	return ids
}

// HasResults reports whether t carries any result block.
func (t Turn) HasResults() bool {
	for _, b := range t.Blocks {
		if b.Result != nil {
			return true
		}
	}
	return false
}

// Text joins the text blocks of t with newlines.
func (t Turn) Text() string {
	var parts []string
	for _, b := range t.Blocks {
		if b.Kind() == BlockText && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Answers reports whether t is exactly the result turn for ids: role user,
// only result blocks, same ids in the same order.
func (t Turn) Answers(ids []string) bool {
	if t.Role != RoleUser || len(t.Blocks) != len(ids) {
		return false
	}
	for i, b := range t.Blocks {
		if b.Result == nil || b.Result.InvocationID != ids[i] {
			return false
		}
	}
	return true
}

// ResultTurn builds the user turn answering ids, taking real results from
// found and placeholders for the rest. The second return lists the ids that
// received a placeholder.
func ResultTurn(ids []string, found map[string]Result) (Turn, []string) {
	blocks := make([]Block, 0, len(ids))
	var synthesized []string
	for _, id := range ids {
		if r, ok := found[id]; ok {
			blocks = append(blocks, ResultBlock(r))
			continue
		}
		blocks = append(blocks, ResultBlock(Placeholder(id)))
		synthesized = append(synthesized, id)
	}
	return User(blocks...), synthesized
}
