// Package prepare implements the Module Preparer: it runs the Asyncify pass
// over a raw guest binary for a given list of suspendable import names, and
// wraps the module's start function (if any) in a one-shot guard so that
// Asyncify's unwind/rewind re-entry never re-runs initialisation side
// effects.
//
// The Asyncify pass itself is treated as an opaque library (package
// asyncify, an in-repo, pure-Go Binaryen-compatible implementation); this
// package's own work is the start-function guard, which no library in this
// codebase's dependency tree implements, plus the opt/strip option mapping
// asked for by the transform step.
package prepare
