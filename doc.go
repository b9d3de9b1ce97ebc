// Package asyncwasm hosts core WebAssembly modules that call out to
// long-running host operations (timers, I/O, anything that would otherwise
// block a goroutine) without blocking the guest's own call stack.
//
// A guest module is transformed once, ahead of instantiation, by the
// Asyncify transform ([github.com/wasmhost/asyncwasm/asyncify]): every
// import the host marks as async gets unwind/rewind plumbing so the guest
// call stack can be suspended mid-call and later resumed from the same
// point. [github.com/wasmhost/asyncwasm/prepare] drives that transform
// plus a one-shot start-guard rewrite so a module's original start
// function still runs exactly once under repeated host-triggered restarts.
//
// The host side lives in [github.com/wasmhost/asyncwasm/asynclink]: a Core
// holds one guest instance, the Asyncify state machine, and a LIFO stack of
// parked futures. Each async host import is backed by a Future
// ([github.com/wasmhost/asyncwasm/asynclink.Future]); polling a pending
// future suspends the guest (asyncify_start_unwind), and a later resumption
// re-enters the guest via asyncify_start_rewind and pops the matching
// future off the stack.
//
// # Architecture
//
//	asyncwasm/             module root
//	├── engine/             wazero runtime, loader/executor/instance facade
//	├── linker/             import registration and active-instance bookkeeping
//	├── asynclink/           the async host: Core, Call, trampoline, Future
//	├── prepare/             Asyncify transform + start-guard orchestration
//	├── asyncify/            the Asyncify binary transform itself
//	├── wasm/                WASM binary decode/encode/LEB128 primitives
//	├── wat/                 WAT text to WASM binary compiler (test fixtures)
//	├── resource/            generic handle table (checkout tracking, etc.)
//	├── runtime/instancepool/ fixed-size pool of pre-instantiated Cores
//	├── errors/               structured host/runtime error types
//	└── cmd/run/              CLI driving a guest export through to completion
//
// # Quick start
//
//	raw, _ := os.ReadFile("guest.wasm")
//	prepared, _ := prepare.Transform(raw, []string{"env.sleep"}, nil)
//
//	core, _ := asynclink.New(ctx, &asynclink.Config{})
//	defer core.Close(ctx)
//
//	core.NewAsyncImportObject(ctx, "env", func(add func(asynclink.AsyncFuncDef)) {
//	    add(asynclink.AsyncFuncDef{
//	        Name:   "sleep",
//	        Params: []api.ValueType{api.ValueTypeI32},
//	        Impl: func(ctx context.Context, c *asynclink.Core, args []uint64) (asynclink.Future, error) {
//	            return asynclink.NewTimerFuture(time.Duration(args[0])*time.Millisecond, nil), nil
//	        },
//	    })
//	})
//
//	mod, _ := core.Linker().Load(ctx, prepared)
//	core.ActiveModule(ctx, mod)
//
//	call, _ := core.NewCall("_start")
//	out, err := call.Run(ctx)
//
// # Concurrency
//
// A Core serves one Top-Level Call at a time; NewCall fails fast on a
// second concurrent borrow. Multiple independent guest instances run
// concurrently by giving each its own Core, optionally managed through
// runtime/instancepool.
package asyncwasm
