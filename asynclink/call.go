package asynclink

import (
	"context"
	"sync"

	wasmerrors "github.com/wasmhost/asyncwasm/errors"
)

// Call is a Top-Level Call Handle: a borrow of the owning Core plus the
// export name and argument list for one guest entry point. Polling it drives
// one step of the Resumption Protocol. Only one Call may be in flight
// against a given Core at a time; NewCall enforces this with an explicit
// borrow flag rather than leaving it to caller discipline.
type Call struct {
	core *Core
	name string
	args []uint64

	mu       sync.Mutex
	released bool
}

// NewCall borrows core for a single top-level invocation of the named
// export. The returned Call must eventually be driven to Ready (via Poll or
// Run) and then released; a second concurrent Call against the same Core
// fails fast.
func (c *Core) NewCall(name string, args ...uint64) (*Call, error) {
	c.mu.Lock()
	if c.callInFlight {
		c.mu.Unlock()
		return nil, wasmerrors.New(wasmerrors.PhaseAsync, wasmerrors.KindTopLevelError).
			Detail("a Call is already in flight against this Core").Build()
	}
	c.callInFlight = true
	c.mu.Unlock()

	return &Call{core: c, name: name, args: args}, nil
}

// release clears the Core's in-flight borrow exactly once, regardless of
// whether the Call reached Ready or was abandoned mid-suspension.
func (call *Call) release() {
	call.mu.Lock()
	if call.released {
		call.mu.Unlock()
		return
	}
	call.released = true
	call.mu.Unlock()

	call.core.mu.Lock()
	call.core.callInFlight = false
	call.core.mu.Unlock()
}

// Poll executes one step of the Resumption Protocol and reports whether the
// call has reached a final Outcome.
func (call *Call) Poll(ctx context.Context, w Waker) (Outcome, bool) {
	c := call.core

	// Step 1: install the polling context's waker.
	c.setWaker(w)

	// Step 2: arm a rewind if the guest was left mid-suspension by a prior
	// poll.
	state, err := c.state.Sync(ctx)
	if err != nil {
		call.release()
		return Outcome{Err: err}, true
	}
	if state != StateNormal {
		if err := c.state.StartRewind(ctx); err != nil {
			call.release()
			return Outcome{Err: err}, true
		}
	}

	// Step 3: call the named export. Every async import encountered or
	// re-entered during this call drives the trampoline (asynclink.Core.trampoline).
	results, callErr := c.sync.Run(ctx, call.name, call.args...)

	// Step 4: classify the outcome.
	var out Outcome
	ready := true
	switch {
	case callErr != nil:
		out = Outcome{Err: callErr}
	default:
		postState, stateErr := c.state.Sync(ctx)
		if stateErr != nil {
			out = Outcome{Err: stateErr}
			break
		}
		if postState == StateNormal {
			out = Outcome{Results: results}
		} else {
			ready = false
		}
	}

	if !ready {
		return Outcome{}, false
	}

	// Step 5: restore Normal before surfacing a final result.
	if err := c.state.StopUnwind(ctx); err != nil && out.Err == nil {
		out = Outcome{Err: err}
	}
	call.release()
	return out, true
}

// Run drives the Call to completion synchronously: it polls once, and if
// still Pending, blocks on a channel-based waker until the next wake-up (or
// ctx is cancelled) before polling again. This is the synchronous
// convenience path; callers that want to interleave other work while a call
// is pending should drive Poll themselves from their own executor instead.
func (call *Call) Run(ctx context.Context) (Outcome, error) {
	woke := make(chan struct{}, 1)
	w := WakerFunc(func() {
		select {
		case woke <- struct{}{}:
		default:
		}
	})

	for {
		out, ready := call.Poll(ctx, w)
		if ready {
			return out, out.Err
		}

		select {
		case <-woke:
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		}
	}
}
