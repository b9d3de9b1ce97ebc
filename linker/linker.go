package linker

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero/api"

	"github.com/wasmhost/asyncwasm/engine"
	wasmerrors "github.com/wasmhost/asyncwasm/errors"
)

// SyncFuncImpl is the implementation contract for a non-suspending host
// function. It receives an optional mutable reference to the owning Linker
// (for recursive guest calls and memory access) and the raw guest argument
// words, and returns either a result list matching the declared result
// arity, or a host error code in 1..=255. A zero code means success; a
// non-zero code propagates to the guest as a trap carrying that code.
type SyncFuncImpl func(l *Linker, args []uint64) (results []uint64, hostErrCode int)

// FuncDef is a host function descriptor: display name, parameter/result
// kind lists, unit cost, and its Sync implementation.
type FuncDef struct {
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
	Cost    uint64
	Impl    SyncFuncImpl
}

// Linker owns an Executor and, optionally, one active Instance. It serves
// non-suspending call graphs directly, and serves the Async Linker Core's
// internal administrative calls to the Asyncify helpers (asyncify_get_state
// and friends are themselves looked up and invoked exactly the way any
// other export would be, through Run).
type Linker struct {
	mu       sync.Mutex
	loader   *engine.Loader
	executor *engine.Executor
	instance *engine.Instance
}

// New builds a Linker with its own Loader/Executor pair.
func New(ctx context.Context, cfg *engine.Config) (*Linker, error) {
	loader, err := engine.CreateLoader(ctx, cfg)
	if err != nil {
		return nil, err
	}
	exec, err := engine.CreateExecutor(loader, cfg)
	if err != nil {
		return nil, err
	}
	return &Linker{loader: loader, executor: exec}, nil
}

// Executor returns the underlying Engine Facade executor.
func (l *Linker) Executor() *engine.Executor {
	return l.executor
}

// Load parses and validates raw bytes into a Module using this Linker's own
// Loader.
func (l *Linker) Load(ctx context.Context, raw []byte) (*engine.Module, error) {
	return l.loader.ParseAndValidate(ctx, raw)
}

// ActiveModule instantiates m and retains the result as the active
// instance.
func (l *Linker) ActiveModule(ctx context.Context, m *engine.Module) error {
	inst, err := l.executor.Instantiate(ctx, m)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.instance = inst
	l.mu.Unlock()
	return nil
}

// Instance returns the currently active instance, or nil.
func (l *Linker) Instance() *engine.Instance {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.instance
}

// Run resolves the named export from the active instance and invokes it.
// Fails NotFoundFunc if no instance is active or the export is missing.
func (l *Linker) Run(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	inst := l.Instance()
	if inst == nil {
		return nil, wasmerrors.NotFoundFunc(wasmerrors.PhaseRuntime, name)
	}
	fn, err := inst.GetFunc(name)
	if err != nil {
		return nil, err
	}
	return fn.Call(ctx, args...)
}

// HasExport reports whether name resolves on the active instance, without
// invoking it — used by administrative calls that tolerate a missing helper
// (e.g. asyncify_get_state absent means Normal).
func (l *Linker) HasExport(name string) bool {
	inst := l.Instance()
	if inst == nil {
		return false
	}
	_, err := inst.GetFunc(name)
	return err == nil
}

// GetMemorySlice returns a read-intent view of the active instance's named
// memory.
func (l *Linker) GetMemorySlice(name string, offset, length uint32) ([]byte, error) {
	return l.memSlice(name, offset, length, false)
}

// MutMemorySlice returns a write-intent view of the active instance's named
// memory; writes through the returned slice are visible to the guest
// immediately.
func (l *Linker) MutMemorySlice(name string, offset, length uint32) ([]byte, error) {
	return l.memSlice(name, offset, length, true)
}

func (l *Linker) memSlice(name string, offset, length uint32, mut bool) ([]byte, error) {
	inst := l.Instance()
	if inst == nil {
		return nil, wasmerrors.NotFoundMem(wasmerrors.PhaseRuntime, name)
	}
	mem, err := inst.GetMemory(name)
	if err != nil {
		return nil, err
	}
	return mem.Slice(offset, length, mut)
}

// OpenNamespace begins building an import namespace registered under the
// given module name.
func (l *Linker) OpenNamespace(name string) *NamespaceBuilder {
	return &NamespaceBuilder{linker: l, name: name}
}

// Close releases the Linker's executor (and its shared loader runtime).
func (l *Linker) Close(ctx context.Context) error {
	return l.executor.Close(ctx)
}

// NamespaceBuilder accumulates FuncDefs for one import namespace before
// registering them with the Linker's Executor.
type NamespaceBuilder struct {
	linker *Linker
	name   string
	funcs  []FuncDef
}

// AddFunc adds one sync host function to the namespace under construction.
func (b *NamespaceBuilder) AddFunc(name string, params, results []api.ValueType, cost uint64, impl SyncFuncImpl) *NamespaceBuilder {
	b.funcs = append(b.funcs, FuncDef{
		Name: name, Params: params, Results: results, Cost: cost, Impl: impl,
	})
	return b
}

// Register installs the completed namespace into the Linker's Executor.
func (b *NamespaceBuilder) Register(ctx context.Context) error {
	defs := make([]engine.HostFuncDef, 0, len(b.funcs))
	for _, f := range b.funcs {
		f := f
		defs = append(defs, engine.HostFuncDef{
			Name:    f.Name,
			Params:  f.Params,
			Results: f.Results,
			Func:    syncTrampoline(b.linker, f),
		})
	}
	return b.linker.executor.RegisterImport(ctx, b.name, defs)
}

// syncTrampoline adapts a SyncFuncImpl's (results, hostErrCode) contract to
// wazero's api.GoModuleFunc: a non-zero hostErrCode is surfaced as a guest
// trap carrying that code via panic, which wazero converts into the error
// returned from the enclosing export call.
func syncTrampoline(l *Linker, f FuncDef) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		args := append([]uint64(nil), stack[:len(f.Params)]...)
		results, code := f.Impl(l, args)
		if code != 0 {
			panic(hostTrap{code: code, name: f.Name})
		}
		copy(stack[:len(f.Results)], results)
	}
}

// hostTrap is the panic value syncTrampoline raises to signal a host error
// code; callers that invoke Run should unwrap it via AsHostTrap.
type hostTrap struct {
	code int
	name string
}

func (t hostTrap) Error() string {
	return wasmerrors.HostTrap(wasmerrors.PhaseHost, []string{t.name}, t.code, "sync host function returned error code").Error()
}

// AsHostTrap reports whether err (as returned by Run) originated from a
// sync host function's non-zero error code, and if so returns that code.
func AsHostTrap(err error) (code int, name string, ok bool) {
	we, isWE := err.(*wasmerrors.Error)
	if !isWE || we.Cause == nil {
		return 0, "", false
	}
	ht, isHT := we.Cause.(hostTrap)
	if !isHT {
		return 0, "", false
	}
	return ht.code, ht.name, true
}
