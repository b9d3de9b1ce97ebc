// Package engine implements the Engine Facade: a safe boundary around
// wazero's loader, validator, executor, instance, memory, and typed-function
// primitives.
//
// The facade does not know about Asyncify, suspension, or host futures — it
// wraps exactly the synchronous embedding contract a C-ABI WebAssembly
// engine would expose: load, validate, register imports, instantiate,
// invoke, read/write memory. Higher layers (package linker, package
// asynclink) build suspension and import-namespace ergonomics on top of it.
//
// # Lifecycle
//
//	loader, err := engine.CreateLoader(ctx, nil)
//	mod, err := loader.ParseAndValidate(ctx, rawBytes)
//	exec, err := engine.CreateExecutor(loader, nil)
//	err = exec.RegisterImport(ctx, "env", []engine.HostFuncDef{...})
//	inst, err := exec.Instantiate(ctx, mod)
//	fn, err := inst.GetFunc("_start")
//	results, err := fn.Call(ctx)
//
// A Loader and the Executor(s) built from it share the same underlying
// wazero.Runtime, because wazero requires a CompiledModule to be
// instantiated on the runtime that compiled it: the Loader is kept around
// only long enough to hand that runtime to CreateExecutor, matching the
// "loader not retained after load, executor retained" lifecycle described
// for the Async Linker Core.
//
// # Thread Safety
//
// Loader and Executor are safe for concurrent use. Instance is not: exactly
// one guest entry call may be in flight per instance at a time, by design.
package engine
