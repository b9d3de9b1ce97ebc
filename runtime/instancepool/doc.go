// Package instancepool provides a fixed-size pool of pre-instantiated Async
// Linker Cores built from one already-Asyncify-prepared guest binary.
//
// The Engine Facade allows exactly one guest entry call in flight per
// instance; a host serving many concurrent top-level callers against the
// same guest binary therefore needs several instances to hand out rather
// than one. Each Core in the pool owns its own wazero runtime (wazero
// requires a compiled module to be instantiated on the runtime that
// compiled it, so a single compiled Module cannot be shared byte-for-byte
// across independently pollable Cores); what the pool actually amortises is
// the one-time Asyncify transform and start-guard rewrite, which is run
// once by the caller and handed to every pooled Core as already-prepared
// bytes. Pool checks a Core out with Get, and the caller returns it with
// Put once its Call has reached Ready — mirroring the ring-buffer pool
// pattern used for pooling WASM module instances.
package instancepool
