// Package asynclink implements the Async Linker Core: the suspension state
// machine layered over a Sync Linker, the LIFO parked-futures stack, the
// trampoline that decides whether an async import call is a fresh entry or
// a rewind resumption, and the Top-Level Call Handle driving the
// Resumption Protocol.
//
// # Example
//
//	core, _ := asynclink.New(ctx, &asynclink.Config{})
//	mod, _ := core.Linker().Load(ctx, preparedBytes)
//	core.NewAsyncImportObject(ctx, "spectest", func(add func(asynclink.AsyncFuncDef)) {
//		add(asynclink.AsyncFuncDef{
//			Name:    "sleep",
//			Params:  []api.ValueType{api.ValueTypeI32},
//			Results: nil,
//			Impl: func(ctx context.Context, core *asynclink.Core, args []uint64) (asynclink.Future, error) {
//				return asynclink.NewTimerFuture(time.Duration(args[0])*time.Millisecond, nil), nil
//			},
//		})
//	})
//	core.ActiveModule(ctx, mod)
//	call, _ := core.NewCall("_start")
//	out, err := call.Run(ctx)
//
// # Concurrency
//
// A Core is single-threaded cooperative: its parked-futures stack and
// stored waker are mutated from the trampoline without per-call locking
// beyond what's needed for the LIFO stack itself. Distinct Cores may be
// driven concurrently; a single Core accepts at most one in-flight Call.
package asynclink
