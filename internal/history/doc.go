// Package history rebuilds a model-ready turn sequence from stored message
// rows.
//
// Guarantees on every sequence it returns:
//   - An assistant turn with invocations is immediately followed by a user
//     turn holding exactly one result per invocation, in invocation order.
//   - Result rows are only ever emitted inside that following turn; orphans
//     are dropped.
//
// Lost results are replaced by a placeholder success payload and logged as a
// repair, not reported as an error.
package history
