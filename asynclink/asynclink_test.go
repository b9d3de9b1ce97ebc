package asynclink_test

import (
	"context"
	"testing"
	"time"

	"github.com/tetratelabs/wazero/api"

	"github.com/wasmhost/asyncwasm/asynclink"
	"github.com/wasmhost/asyncwasm/prepare"
	"github.com/wasmhost/asyncwasm/wat"
)

const sleepGuestWat = `(module
	(import "env" "sleep" (func $sleep (param i32)))
	(func (export "_start")
		(call $sleep (i32.const 1))))`

func buildSleepCore(t *testing.T) (*asynclink.Core, context.Context) {
	t.Helper()
	ctx := context.Background()

	raw, err := wat.Compile(sleepGuestWat)
	if err != nil {
		t.Fatalf("wat.Compile: %v", err)
	}

	prepared, err := prepare.Transform(raw, []string{"env.sleep"}, nil)
	if err != nil {
		t.Fatalf("prepare.Transform: %v", err)
	}

	core, err := asynclink.New(ctx, &asynclink.Config{})
	if err != nil {
		t.Fatalf("asynclink.New: %v", err)
	}

	err = core.NewAsyncImportObject(ctx, "env", func(add func(asynclink.AsyncFuncDef)) {
		add(asynclink.AsyncFuncDef{
			Name:    "sleep",
			Params:  []api.ValueType{api.ValueTypeI32},
			Results: nil,
			Impl: func(ctx context.Context, core *asynclink.Core, args []uint64) (asynclink.Future, error) {
				return asynclink.NewTimerFuture(time.Millisecond, nil), nil
			},
		})
	})
	if err != nil {
		t.Fatalf("NewAsyncImportObject: %v", err)
	}

	mod, err := core.Linker().Load(ctx, prepared)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := core.ActiveModule(ctx, mod); err != nil {
		t.Fatalf("ActiveModule: %v", err)
	}

	return core, ctx
}

func TestCallRunReachesReadyAndQuiescent(t *testing.T) {
	core, ctx := buildSleepCore(t)
	defer core.Close(ctx)

	call, err := core.NewCall("_start")
	if err != nil {
		t.Fatalf("NewCall: %v", err)
	}

	out, err := call.Run(ctx)
	if err != nil {
		t.Fatalf("call.Run: %v (out=%v)", err, out)
	}

	if core.ParkedDepth() != 0 {
		t.Fatalf("expected no parked futures after a completed call, got %d", core.ParkedDepth())
	}
}

func TestCoreRejectsConcurrentCalls(t *testing.T) {
	core, ctx := buildSleepCore(t)
	defer core.Close(ctx)

	call1, err := core.NewCall("_start")
	if err != nil {
		t.Fatalf("first NewCall: %v", err)
	}

	if _, err := core.NewCall("_start"); err == nil {
		t.Fatal("expected second concurrent NewCall to fail while first is outstanding")
	}

	if _, err := call1.Run(ctx); err != nil {
		t.Fatalf("call1.Run: %v", err)
	}

	// Once call1 has released, a fresh call must be allowed.
	if _, err := core.NewCall("_start"); err != nil {
		t.Fatalf("NewCall after release: %v", err)
	}
}

func TestReadyFutureNeverSuspends(t *testing.T) {
	ctx := context.Background()
	raw, err := wat.Compile(`(module
		(import "env" "print" (func $print (param i32)))
		(func (export "_start") (call $print (i32.const 7))))`)
	if err != nil {
		t.Fatalf("wat.Compile: %v", err)
	}

	prepared, err := prepare.Transform(raw, []string{"env.print"}, nil)
	if err != nil {
		t.Fatalf("prepare.Transform: %v", err)
	}

	core, err := asynclink.New(ctx, &asynclink.Config{})
	if err != nil {
		t.Fatalf("asynclink.New: %v", err)
	}
	defer core.Close(ctx)

	err = core.NewAsyncImportObject(ctx, "env", func(add func(asynclink.AsyncFuncDef)) {
		add(asynclink.AsyncFuncDef{
			Name:    "print",
			Params:  []api.ValueType{api.ValueTypeI32},
			Results: nil,
			Impl: func(ctx context.Context, core *asynclink.Core, args []uint64) (asynclink.Future, error) {
				return asynclink.ReadyFuture{}, nil
			},
		})
	})
	if err != nil {
		t.Fatalf("NewAsyncImportObject: %v", err)
	}

	mod, err := core.Linker().Load(ctx, prepared)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := core.ActiveModule(ctx, mod); err != nil {
		t.Fatalf("ActiveModule: %v", err)
	}

	call, err := core.NewCall("_start")
	if err != nil {
		t.Fatalf("NewCall: %v", err)
	}
	out, ready := call.Poll(ctx, asynclink.WakerFunc(func() {}))
	if !ready {
		t.Fatal("expected an always-ready future to resolve on the first poll")
	}
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if core.ParkedDepth() != 0 {
		t.Fatalf("expected no parked futures, got %d", core.ParkedDepth())
	}
}
