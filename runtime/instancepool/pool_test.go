package instancepool_test

import (
	"context"
	"testing"
	"time"

	"github.com/wasmhost/asyncwasm/asynclink"
	"github.com/wasmhost/asyncwasm/prepare"
	"github.com/wasmhost/asyncwasm/runtime/instancepool"
	"github.com/wasmhost/asyncwasm/wat"
)

func preparedEchoModule(t *testing.T) []byte {
	t.Helper()
	raw, err := wat.Compile(`(module
		(func (export "answer") (result i32) (i32.const 42)))`)
	if err != nil {
		t.Fatalf("wat.Compile: %v", err)
	}
	prepared, err := prepare.Transform(raw, nil, nil)
	if err != nil {
		t.Fatalf("prepare.Transform: %v", err)
	}
	return prepared
}

func TestPoolGetPutRoundTrip(t *testing.T) {
	ctx := context.Background()
	prepared := preparedEchoModule(t)

	pool, err := instancepool.NewPool(ctx, 2, &asynclink.Config{}, func(ctx context.Context, core *asynclink.Core) error {
		mod, err := core.Linker().Load(ctx, prepared)
		if err != nil {
			return err
		}
		return core.ActiveModule(ctx, mod)
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer pool.Close(ctx)

	core, h1, err := pool.Get(time.Second)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if pool.Outstanding() != 1 {
		t.Fatalf("Outstanding = %d, want 1", pool.Outstanding())
	}

	call, err := core.NewCall("answer")
	if err != nil {
		t.Fatalf("NewCall: %v", err)
	}
	out, err := call.Run(ctx)
	if err != nil {
		t.Fatalf("call.Run: %v", err)
	}
	if len(out.Results) != 1 || out.Results[0] != 42 {
		t.Fatalf("answer() = %v, want [42]", out.Results)
	}

	if err := pool.Put(h1); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if pool.Outstanding() != 0 {
		t.Fatalf("Outstanding after Put = %d, want 0", pool.Outstanding())
	}
}

func TestPoolGetTimesOutWhenExhausted(t *testing.T) {
	ctx := context.Background()
	prepared := preparedEchoModule(t)

	pool, err := instancepool.NewPool(ctx, 1, &asynclink.Config{}, func(ctx context.Context, core *asynclink.Core) error {
		mod, err := core.Linker().Load(ctx, prepared)
		if err != nil {
			return err
		}
		return core.ActiveModule(ctx, mod)
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer pool.Close(ctx)

	_, h1, err := pool.Get(time.Second)
	if err != nil {
		t.Fatalf("first Get: %v", err)
	}

	if _, _, err := pool.Get(50 * time.Millisecond); err == nil {
		t.Fatal("expected second Get against an exhausted pool to time out")
	}

	if err := pool.Put(h1); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if _, _, err := pool.Get(time.Second); err != nil {
		t.Fatalf("Get after Put: %v", err)
	}
}

func TestPoolPutRejectsUnknownHandle(t *testing.T) {
	ctx := context.Background()
	prepared := preparedEchoModule(t)

	pool, err := instancepool.NewPool(ctx, 1, &asynclink.Config{}, func(ctx context.Context, core *asynclink.Core) error {
		mod, err := core.Linker().Load(ctx, prepared)
		if err != nil {
			return err
		}
		return core.ActiveModule(ctx, mod)
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer pool.Close(ctx)

	if err := pool.Put(instancepool.Handle(999)); err == nil {
		t.Fatal("expected Put with an unknown handle to fail")
	}
}
