package prepare

import (
	"bytes"

	wasmerrors "github.com/wasmhost/asyncwasm/errors"
	"github.com/wasmhost/asyncwasm/wasm"
)

// guardStart wraps a module's start function, if any, in a one-shot guard:
// a new mutable i32 global run_start (initial 0) gates the original body so
// it executes at most once no matter how many times the wrapper is called
// afterwards — Asyncify's rewind re-enters a module by calling its exported
// entry point again, and the Resumption Protocol calls that same entry on
// every poll, so without the guard a second poll would re-run initialisation
// side effects.
//
// The wrapper is appended as a new function and exported as "async_start";
// the original start section entry is cleared so the engine does not also
// auto-invoke it once at instantiation, which would run the body a second,
// ungated time before any guard global exists.
//
// If the module declares no start function, raw is returned unchanged.
func guardStart(raw []byte) ([]byte, error) {
	mod, err := wasm.ParseModule(raw)
	if err != nil {
		return nil, wasmerrors.New(wasmerrors.PhaseDecode, wasmerrors.KindInvalidData).
			Cause(err).Detail("parsing asyncified module").Build()
	}

	if mod.Start == nil {
		return raw, nil
	}

	startIdx := *mod.Start
	numImported := uint32(mod.NumImportedFuncs())
	if startIdx < numImported {
		return nil, wasmerrors.New(wasmerrors.PhaseDecode, wasmerrors.KindInvalidData).
			Detail("start function %d is an imported function, cannot guard", startIdx).Build()
	}
	localIdx := startIdx - numImported
	if int(localIdx) >= len(mod.Code) {
		return nil, wasmerrors.New(wasmerrors.PhaseDecode, wasmerrors.KindInvalidData).
			Detail("start function index %d out of range", startIdx).Build()
	}
	startTypeIdx := mod.Funcs[localIdx]

	runStartGlobal := uint32(len(mod.Globals))
	mod.Globals = append(mod.Globals, wasm.Global{
		Type: wasm.GlobalType{ValType: wasm.ValI32, Mutable: true},
		Init: []byte{wasm.OpI32Const, 0x00, wasm.OpEnd},
	})

	code := guardBody(runStartGlobal, startIdx)

	wrapperFuncIdx := numImported + uint32(len(mod.Code))
	mod.Funcs = append(mod.Funcs, startTypeIdx)
	mod.Code = append(mod.Code, wasm.FuncBody{Code: code})

	mod.Start = nil
	mod.Exports = append(mod.Exports, wasm.Export{
		Name: "async_start",
		Kind: wasm.KindFunc,
		Idx:  wrapperFuncIdx,
	})

	return mod.Encode(), nil
}

// guardBody builds:
//
//	global.get $runStartGlobal
//	if
//	  ;; already run, do nothing
//	else
//	  i32.const 1
//	  global.set $runStartGlobal
//	  call $originalStartIdx
//	end
func guardBody(runStartGlobal, originalStartIdx uint32) []byte {
	var b bytes.Buffer
	b.WriteByte(wasm.OpGlobalGet)
	b.Write(wasm.EncodeLEB128u(runStartGlobal))
	b.WriteByte(wasm.OpIf)
	b.WriteByte(0x40) // empty (void) blocktype
	b.WriteByte(wasm.OpElse)
	b.WriteByte(wasm.OpI32Const)
	b.Write(wasm.EncodeLEB128s(1))
	b.WriteByte(wasm.OpGlobalSet)
	b.Write(wasm.EncodeLEB128u(runStartGlobal))
	b.WriteByte(wasm.OpCall)
	b.Write(wasm.EncodeLEB128u(originalStartIdx))
	b.WriteByte(wasm.OpEnd) // ends the if
	b.WriteByte(wasm.OpEnd) // ends the function body
	return b.Bytes()
}
