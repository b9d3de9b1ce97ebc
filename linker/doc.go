// Package linker implements the Sync Linker: it owns an Executor and,
// optionally, one active Instance, and serves non-suspending call graphs —
// both genuinely synchronous guest exports, and the Async Linker Core's own
// administrative calls into the Asyncify helpers.
//
// # Example
//
//	l, _ := linker.New(ctx, nil)
//	mod, _ := l.Load(ctx, rawBytes)
//	l.OpenNamespace("env").
//		AddFunc("double", []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}, 1,
//			func(l *linker.Linker, args []uint64) ([]uint64, int) {
//				return []uint64{args[0] * 2}, 0
//			}).
//		Register(ctx)
//	l.ActiveModule(ctx, mod)
//	results, _ := l.Run(ctx, "_start")
//
// # Thread Safety
//
// A Linker is safe for concurrent use by distinct callers as long as at most
// one guest entry call against its active Instance is in flight at a time —
// the Engine Facade's own constraint, carried through unchanged.
package linker
