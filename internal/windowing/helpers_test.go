package windowing_test

import "github.com/petasbytes/relay-agent/internal/conversation"

// Text block constructor
func T(text string) conversation.Block { return conversation.TextBlock(text) }

// Invocation block constructor
func TU(id string) conversation.Block {
	return conversation.InvocationBlock(conversation.Invocation{ID: id, Name: "tool"})
}

// Result block (no payload), with optional error - used by grouping tests
func TR(id string, isErr bool) conversation.Block {
	r := conversation.Result{InvocationID: id}
	if isErr {
		r.Error = "failed"
	}
	return conversation.ResultBlock(r)
}

// Result block with string payload - preferred in counter tests for deterministic sizing
func TRString(id, s string) conversation.Block {
	return conversation.ResultBlock(conversation.Result{InvocationID: id, Payload: s})
}

func Asst(blocks ...conversation.Block) conversation.Turn { return conversation.Assistant(blocks...) }

func User(blocks ...conversation.Block) conversation.Turn { return conversation.User(blocks...) }

// Intervening breaks adjacency between an invocation turn and its results.
func Intervening(text string) conversation.Turn { return conversation.Assistant(T(text)) }
