// Package runner drives the bounded tool loop: ask the model, execute the
// tools it requests, fold the results back in, repeat.
//
// Invariant:
//   - an assistant turn with invocations is always followed by the user turn
//     holding exactly one result per invocation, in invocation order. A batch
//     interrupted by cancellation is dropped whole.
//
// Flow:
//
//	user(text) -> assistant(invocations) -> user(results) -> ... -> assistant(text)
//
// After MaxIterations executing rounds one final call is made with tools
// disabled and its text is the answer.
package runner
