package asynclink

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	wasmerrors "github.com/wasmhost/asyncwasm/errors"
)

// trampoline builds the api.GoModuleFunc backing one async import
// descriptor. It implements the fresh-entry-vs-resume decision, the LIFO
// parked-futures protocol, and Ready/Pending handling described for the
// async host function wrapper:
//
//   - Rewinding: this call site is being replayed because some deeper
//     future resolved. The Future for THIS site was pushed before the
//     original unwind and must be popped and polled again rather than
//     re-invoking def.Impl.
//   - Normal/Unwinding-not-yet-for-us (fresh entry): def.Impl starts a new
//     Future for this call.
//
// Either way the resulting Future is polled once. Ready(Ok) copies results
// onto the stack and returns normally; the Top-Level Call Handle calls
// asyncify_stop_unwind once the export returns with the guest back in
// Normal state. Ready(Err) traps with HostTrapFutureError. Pending
// pushes the Future back onto the parked stack and starts an unwind.
func (c *Core) trampoline(def AsyncFuncDef) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		args := append([]uint64(nil), stack[:len(def.Params)]...)

		fut, err := c.resolveFuture(ctx, def, args)
		if err != nil {
			panic(asyncHostTrap{code: HostTrapFutureError, name: def.Name, cause: err})
		}

		out, ready := fut.Poll(ctx, c.getWaker())
		if !ready {
			c.pushParked(fut)
			if err := c.state.StartUnwind(ctx); err != nil {
				panic(asyncHostTrap{code: HostTrapFutureError, name: def.Name, cause: err})
			}
			// Unwinding in progress: the guest's own Asyncify-instrumented
			// prologue will propagate the unwind through every enclosing
			// frame once this host call returns. Leaving the stack words
			// untouched is correct — nothing reads them on this path.
			return
		}

		if out.Err != nil {
			panic(asyncHostTrap{code: HostTrapFutureError, name: def.Name, cause: out.Err})
		}
		copy(stack[:len(def.Results)], out.Results)
	}
}

// resolveFuture decides whether this call is a rewind resumption of a
// previously parked Future for this same call site, or a fresh invocation
// of def.Impl.
func (c *Core) resolveFuture(ctx context.Context, def AsyncFuncDef, args []uint64) (Future, error) {
	if c.state.Cached() == StateRewinding {
		if fut, ok := c.popParked(); ok {
			return fut, nil
		}
		// A rewind reached this site but nothing was parked for it: the
		// guest and host have disagreed about call-site identity, which
		// can only mean a transform or resumption-protocol bug upstream.
		return nil, wasmerrors.New(wasmerrors.PhaseAsync, wasmerrors.KindHostTrap).
			Detail("rewind reached async import with no parked future: " + def.Name).Build()
	}
	return def.Impl(ctx, c, args)
}

// asyncHostTrap is the panic value an async trampoline raises on a Future's
// own error, or on a fatal state-machine inconsistency. It always carries
// HostTrapFutureError so guest-visible traps cannot be confused with
// ordinary sync host error codes.
type asyncHostTrap struct {
	code  int
	name  string
	cause error
}

func (t asyncHostTrap) Error() string {
	e := wasmerrors.HostTrap(wasmerrors.PhaseAsync, []string{t.name}, t.code, "async host future failed")
	e.Cause = t.cause
	return e.Error()
}

// AsAsyncHostTrap reports whether err originated from an async trampoline's
// future error or state-machine inconsistency.
func AsAsyncHostTrap(err error) (code int, name string, cause error, ok bool) {
	we, isWE := err.(*wasmerrors.Error)
	if !isWE || we.Cause == nil {
		return 0, "", nil, false
	}
	ht, isHT := we.Cause.(asyncHostTrap)
	if !isHT {
		return 0, "", nil, false
	}
	return ht.code, ht.name, ht.cause, true
}
