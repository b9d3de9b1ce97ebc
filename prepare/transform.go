package prepare

import (
	"github.com/wasmhost/asyncwasm/asyncify"
	wasmerrors "github.com/wasmhost/asyncwasm/errors"
)

// Config configures one Transform call. Zero value matches the default
// asyncify optimisation level this package uses (equivalent to wasm-opt's
// -O2 plus a strip pass, folded into a single in-repo transform step).
type Config struct {
	// MemoryIndex selects which memory the Asyncify data structure lives in,
	// for multi-memory modules. 0 for the common case.
	MemoryIndex uint32

	// IgnoreIndirect disables call-graph propagation through call_indirect,
	// matching asyncify's --pass-arg=asyncify-ignore-indirect.
	IgnoreIndirect bool
}

// Transform runs the Asyncify pass over raw, instrumenting exactly the
// functions that can transitively reach an import named in
// asyncImportNames, then wraps the (optional) start function in a one-shot
// guard and exports it as async_start.
//
// asyncImportNames entries may be a bare function name or a
// "module.name"/"module#name" pair; any import not listed is treated as
// non-blocking — calling it must never observe Pending.
func Transform(raw []byte, asyncImportNames []string, cfg *Config) ([]byte, error) {
	acfg := asyncify.Config{
		AsyncImports:   asyncImportNames,
		IgnoreIndirect: cfg != nil && cfg.IgnoreIndirect,
	}
	if cfg != nil {
		acfg.MemoryIndex = cfg.MemoryIndex
	}

	instrumented, err := asyncify.Transform(raw, acfg)
	if err != nil {
		return nil, wasmerrors.New(wasmerrors.PhaseAsyncify, wasmerrors.KindModuleCreate).
			Cause(err).Detail("asyncify transform").Build()
	}

	guarded, err := guardStart(instrumented)
	if err != nil {
		return nil, wasmerrors.New(wasmerrors.PhaseAsyncify, wasmerrors.KindModuleCreate).
			Cause(err).Detail("start function guard").Build()
	}

	return guarded, nil
}

// IsAsyncified reports whether wasmBytes already carries the asyncify
// exports, i.e. a prior Transform call (or an externally pre-processed
// module) already instrumented it.
func IsAsyncified(wasmBytes []byte) bool {
	return asyncify.IsAsyncified(wasmBytes)
}
