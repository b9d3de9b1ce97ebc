package asynclink

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero/api"

	"github.com/wasmhost/asyncwasm/engine"
	wasmerrors "github.com/wasmhost/asyncwasm/errors"
	"github.com/wasmhost/asyncwasm/linker"
)

// HostTrapFutureError is the fixed sentinel trap code distinguishing a host
// future's own error from a guest-originated trap, per the original
// prototype's wrapper_async_fn returning WasmEdge_Result{Code: 64}. The
// numeric value is not load-bearing; callers must treat it uniformly as
// "host future failed".
const HostTrapFutureError = 64

// AsyncImpl is the implementation contract for an async host function: given
// a mutable view of the owning Core and the decoded guest argument list, it
// returns a heap-allocated Future resolving to either a result list or an
// error.
type AsyncImpl func(ctx context.Context, core *Core, args []uint64) (Future, error)

// AsyncFuncDef describes one async host function descriptor.
type AsyncFuncDef struct {
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
	Impl    AsyncImpl
}

// Config configures Core construction.
type Config struct {
	Engine *engine.Config

	// WASINamespace, if true, synthesises and registers an empty
	// "wasi_snapshot_preview1" namespace alongside whatever the caller
	// registers, for modules compiled expecting one to exist even if they
	// never call into it. This is deliberately a bare stub, not a real
	// WASI preview2 host: this package links core WebAssembly modules
	// through the Resumption Protocol, not a WASI runtime.
	WASINamespace bool
}

// Core holds the guest instance plus per-call suspension state: the
// Asyncify state machine and the LIFO future-parking stack. It is
// address-stable after construction — import descriptors close over this
// Core's pointer, so moving it after NewAsyncImportObject has been called
// would invalidate every registered host function.
type Core struct {
	_ noCopy

	sync  *linker.Linker
	state *stateMachine

	mu     sync.Mutex
	waker  Waker
	parked []Future

	// callInFlight enforces "multiple concurrent handles against the same
	// Core are forbidden" (§4.D) — one Call borrow at a time.
	callInFlight bool
}

// New builds the inner Sync Linker, optionally synthesises an empty
// WASI-like namespace, and returns an address-stable Core handle.
func New(ctx context.Context, cfg *Config) (*Core, error) {
	var engCfg *engine.Config
	if cfg != nil {
		engCfg = cfg.Engine
	}
	sl, err := linker.New(ctx, engCfg)
	if err != nil {
		return nil, err
	}

	c := &Core{
		sync:  sl,
		waker: noopWaker,
	}
	c.state = newStateMachine(sl)

	if cfg != nil && cfg.WASINamespace {
		if err := c.sync.OpenNamespace("wasi_snapshot_preview1").Register(ctx); err != nil {
			return nil, wasmerrors.New(wasmerrors.PhaseAsync, wasmerrors.KindRegistration).
				Cause(err).Detail("synthesising empty WASI-like namespace").Build()
		}
	}

	return c, nil
}

// Linker exposes the Core's inner Sync Linker, e.g. to load modules.
func (c *Core) Linker() *linker.Linker { return c.sync }

// NewAsyncImportObject opens a namespace bound to this Core's address as
// host data: build adds async function descriptors via add, and the
// completed namespace is registered with the Sync Linker's executor.
//
// The host-data binding is by closure capture of c, which is this
// implementation's equivalent of the C-ABI data pointer — wazero's Go host
// functions are closures, not bare function pointers, so registration must
// still occur only after the Core is pinned (i.e. never on a Core value
// that might later be copied), exactly as the raw-pointer variant requires.
func (c *Core) NewAsyncImportObject(ctx context.Context, name string, build func(add func(AsyncFuncDef))) error {
	var defs []AsyncFuncDef
	build(func(d AsyncFuncDef) { defs = append(defs, d) })

	hostDefs := make([]engine.HostFuncDef, 0, len(defs))
	for _, d := range defs {
		d := d
		hostDefs = append(hostDefs, engine.HostFuncDef{
			Name:    d.Name,
			Params:  d.Params,
			Results: d.Results,
			Func:    c.trampoline(d),
		})
	}
	return c.sync.Executor().RegisterImport(ctx, name, hostDefs)
}

// ActiveModule instantiates module and retains it as the single active
// instance, delegating to the Sync Linker.
func (c *Core) ActiveModule(ctx context.Context, module *engine.Module) error {
	return c.sync.ActiveModule(ctx, module)
}

// quiescent reports whether the state machine is Normal and no futures are
// parked — the invariant a completed top-level call must leave behind.
func (c *Core) quiescent() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.IsNormal() && len(c.parked) == 0
}

// ParkedDepth returns the current parked-futures stack depth, primarily for
// tests asserting the suspension-depth invariant.
func (c *Core) ParkedDepth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.parked)
}

func (c *Core) pushParked(f Future) {
	c.mu.Lock()
	c.parked = append(c.parked, f)
	c.mu.Unlock()
}

func (c *Core) popParked() (Future, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.parked)
	if n == 0 {
		return nil, false
	}
	f := c.parked[n-1]
	c.parked = c.parked[:n-1]
	return f, true
}

func (c *Core) setWaker(w Waker) {
	c.mu.Lock()
	c.waker = w
	c.mu.Unlock()
}

func (c *Core) getWaker() Waker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waker
}

// Close drains and drops every parked future in LIFO order, then releases
// the inner Sync Linker. Cancellation is drop-propagation: there is no
// mid-call rollback of guest state, and a Core with a non-Normal guest is
// logically unusable afterward regardless.
func (c *Core) Close(ctx context.Context) error {
	c.mu.Lock()
	parked := c.parked
	c.parked = nil
	c.mu.Unlock()

	for i := len(parked) - 1; i >= 0; i-- {
		// Draining only discards the reference; futures backed by
		// goroutines (FuncFuture, TimerFuture) release themselves once
		// their underlying work completes.
		_ = parked[i]
	}

	return c.sync.Close(ctx)
}
