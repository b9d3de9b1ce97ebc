// Package handler provides instruction-level handlers for asyncify transformation.
//
// Handler categories:
//   - Passthrough: emit unchanged (nop, unreachable); drop only pops the simulated stack
//   - Flattening: arithmetic, comparison and conversion pop operand locals, apply
//     the op and store the result in a fresh temp local
//   - Stack-tracking: track simulated stack (local.get, local.set)
//   - Memory: handle load/store with type tracking
//
// Control flow (block, loop, if, br and friends) has no handler in this
// package; the engine's transform handles it directly.
package handler
