package linker_test

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero/api"

	"github.com/wasmhost/asyncwasm/linker"
	"github.com/wasmhost/asyncwasm/wat"
)

const doubleModuleWat = `(module
	(import "env" "double" (func $double (param i32) (result i32)))
	(import "env" "fail" (func $fail (param i32) (result i32)))
	(func (export "run") (param i32) (result i32)
		(call $double (local.get 0)))
	(func (export "run_fail") (param i32) (result i32)
		(call $fail (local.get 0))))`

func TestLinkerRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	l, err := linker.New(ctx, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close(ctx)

	err = l.OpenNamespace("env").
		AddFunc("double", []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}, 1,
			func(l *linker.Linker, args []uint64) ([]uint64, int) {
				return []uint64{args[0] * 2}, 0
			}).
		AddFunc("fail", []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}, 1,
			func(l *linker.Linker, args []uint64) ([]uint64, int) {
				return nil, 7
			}).
		Register(ctx)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	raw, err := wat.Compile(doubleModuleWat)
	if err != nil {
		t.Fatalf("wat.Compile: %v", err)
	}
	mod, err := l.Load(ctx, raw)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := l.ActiveModule(ctx, mod); err != nil {
		t.Fatalf("ActiveModule: %v", err)
	}

	results, err := l.Run(ctx, "run", 21)
	if err != nil {
		t.Fatalf("Run(run): %v", err)
	}
	if len(results) != 1 || results[0] != 42 {
		t.Fatalf("run(21) = %v, want 42", results)
	}

	_, err = l.Run(ctx, "run_fail", 1)
	if err == nil {
		t.Fatal("expected run_fail to return an error")
	}
	code, name, ok := linker.AsHostTrap(err)
	if !ok {
		t.Fatalf("expected AsHostTrap to unwrap the error, got %v", err)
	}
	if code != 7 || name != "fail" {
		t.Fatalf("AsHostTrap = (%d, %q), want (7, \"fail\")", code, name)
	}
}

func TestLinkerHasExportAndMissingInstance(t *testing.T) {
	ctx := context.Background()
	l, err := linker.New(ctx, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close(ctx)

	if l.HasExport("anything") {
		t.Fatal("expected HasExport false with no active instance")
	}
	if _, err := l.Run(ctx, "anything"); err == nil {
		t.Fatal("expected Run to fail with no active instance")
	}
}

func TestLinkerMemorySlices(t *testing.T) {
	ctx := context.Background()
	l, err := linker.New(ctx, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close(ctx)

	raw, err := wat.Compile(`(module (memory (export "memory") 1))`)
	if err != nil {
		t.Fatalf("wat.Compile: %v", err)
	}
	mod, err := l.Load(ctx, raw)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := l.ActiveModule(ctx, mod); err != nil {
		t.Fatalf("ActiveModule: %v", err)
	}

	view, err := l.MutMemorySlice("memory", 0, 4)
	if err != nil {
		t.Fatalf("MutMemorySlice: %v", err)
	}
	copy(view, []byte{1, 2, 3, 4})

	readBack, err := l.GetMemorySlice("memory", 0, 4)
	if err != nil {
		t.Fatalf("GetMemorySlice: %v", err)
	}
	if readBack[0] != 1 || readBack[3] != 4 {
		t.Fatalf("unexpected memory contents: %v", readBack)
	}
}
