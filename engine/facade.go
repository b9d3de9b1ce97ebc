package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	wasmerrors "github.com/wasmhost/asyncwasm/errors"
)

// Config configures a Loader/Executor pair. Zero value is a sane default.
type Config struct {
	// MemoryLimitPages bounds guest linear memory, in 64KB pages. 0 means
	// wazero's default (65536 pages, 4GB).
	MemoryLimitPages uint32

	// EnableThreads is not read by runtimeConfig: the runtime keeps wazero's
	// default core features whatever its value, so the threads proposal
	// (shared memory, atomics) is not turned on by it.
	EnableThreads bool

	// CloseOnContextDone propagates ctx cancellation into a running guest
	// call, causing it to trap instead of running to completion.
	CloseOnContextDone bool
}

func (c *Config) runtimeConfig() wazero.RuntimeConfig {
	rc := wazero.NewRuntimeConfig()
	if c == nil {
		return rc
	}
	if c.MemoryLimitPages > 0 {
		rc = rc.WithMemoryLimitPages(c.MemoryLimitPages)
	}
	if c.CloseOnContextDone {
		rc = rc.WithCloseOnContextDone(true)
	}
	return rc
}

// Loader builds validated Modules from raw WebAssembly bytes. It is the
// Engine Facade's LoaderCreate + Validator pairing — wazero performs
// validation as part of compilation, so ParseAndValidate is a single step.
type Loader struct {
	runtime wazero.Runtime
}

// CreateLoader builds a bound loader+validator pair.
func CreateLoader(ctx context.Context, cfg *Config) (*Loader, error) {
	rt := wazero.NewRuntimeWithConfig(ctx, cfg.runtimeConfig())
	return &Loader{runtime: rt}, nil
}

// ParseAndValidate parses then validates raw bytes, releasing the partial
// module on validation failure.
func (l *Loader) ParseAndValidate(ctx context.Context, raw []byte) (*Module, error) {
	compiled, err := l.runtime.CompileModule(ctx, raw)
	if err != nil {
		return nil, wasmerrors.New(wasmerrors.PhaseLoad, wasmerrors.KindModuleCreate).
			Cause(err).Detail("parse/validate failed").Build()
	}
	return &Module{compiled: compiled, runtime: l.runtime}, nil
}

// Close releases the loader's runtime and every module/instance it produced.
// Callers that went on to build an Executor from this Loader should close
// the Executor instead, since they share the same runtime.
func (l *Loader) Close(ctx context.Context) error {
	return l.runtime.Close(ctx)
}

// Module is an opaque, validated, immutable representation of a guest
// binary, shareable across instances.
type Module struct {
	compiled wazero.CompiledModule
	runtime  wazero.Runtime
}

// Name returns the module's embedded name, if any.
func (m *Module) Name() string { return m.compiled.Name() }

// Close releases the compiled module.
func (m *Module) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}

// HostFuncDef describes one host function exposed to the guest under an
// import module name: display name, parameter/result kind lists, and the
// wazero-level handler that implements it.
type HostFuncDef struct {
	Name    string
	Func    api.GoModuleFunc
	Params  []api.ValueType
	Results []api.ValueType
}

// Executor links host imports against modules and drives instantiation and
// invocation.
type Executor struct {
	runtime   wazero.Runtime
	mu        sync.Mutex
	names     map[string]bool
	cfg       *Config
}

// CreateExecutor builds an executor sharing loader's runtime, since wazero
// requires a CompiledModule be instantiated on the runtime that compiled it.
func CreateExecutor(loader *Loader, cfg *Config) (*Executor, error) {
	if loader == nil {
		return nil, wasmerrors.New(wasmerrors.PhaseLoad, wasmerrors.KindModuleCreate).
			Detail("nil loader").Build()
	}
	return &Executor{runtime: loader.runtime, names: make(map[string]bool), cfg: cfg}, nil
}

// RegisterImport binds a host import namespace under moduleName. Duplicate
// module names fail.
func (e *Executor) RegisterImport(ctx context.Context, moduleName string, funcs []HostFuncDef) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.names[moduleName] {
		return wasmerrors.New(wasmerrors.PhaseHost, wasmerrors.KindRegistration).
			Detail("module name %q already registered", moduleName).Build()
	}

	builder := e.runtime.NewHostModuleBuilder(moduleName)
	for _, f := range funcs {
		builder = builder.NewFunctionBuilder().
			WithGoModuleFunction(f.Func, f.Params, f.Results).
			Export(f.Name)
	}
	if _, err := builder.Instantiate(ctx); err != nil {
		return wasmerrors.New(wasmerrors.PhaseHost, wasmerrors.KindFuncCreate).
			Cause(err).Detail("instantiating host module %q", moduleName).Build()
	}
	e.names[moduleName] = true
	return nil
}

// Instantiate links imports and runs the guest's start section if present.
// Imports referenced by the module but not registered fail the call.
func (e *Executor) Instantiate(ctx context.Context, m *Module) (*Instance, error) {
	modCfg := wazero.NewModuleConfig()
	mod, err := e.runtime.InstantiateModule(ctx, m.compiled, modCfg)
	if err != nil {
		Logger().Debug("instantiate failed", zap.Error(err))
		return nil, wasmerrors.New(wasmerrors.PhaseLinking, wasmerrors.KindInstantiation).
			Cause(err).Detail("instantiating module").Build()
	}
	return &Instance{mod: mod}, nil
}

// Close releases the executor's runtime and every host module / instance
// registered or instantiated through it.
func (e *Executor) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Instance is a validated module linked against host imports and
// initialised. Exactly one guest entry call may be in flight at a time.
type Instance struct {
	mod api.Module
}

// Raw exposes the underlying wazero module for callers (asynclink's
// Asyncify state machine) that need direct export/memory access.
func (i *Instance) Raw() api.Module { return i.mod }

// GetFunc resolves an exported function by name.
func (i *Instance) GetFunc(name string) (*Func, error) {
	fn := i.mod.ExportedFunction(name)
	if fn == nil {
		return nil, wasmerrors.NotFoundFunc(wasmerrors.PhaseRuntime, name)
	}
	return &Func{fn: fn, name: name}, nil
}

// GetMemory resolves an exported memory by name.
func (i *Instance) GetMemory(name string) (*Memory, error) {
	mem := i.mod.ExportedMemory(name)
	if mem == nil {
		return nil, wasmerrors.NotFoundMem(wasmerrors.PhaseRuntime, name)
	}
	return &Memory{mem: mem}, nil
}

// Close tears down the instance, releasing its linear memory, tables, and
// globals.
func (i *Instance) Close(ctx context.Context) error {
	return i.mod.Close(ctx)
}

// Func is a typed, callable guest export.
type Func struct {
	fn   api.Function
	name string
}

// Call invokes the export with raw (already-encoded) argument words.
func (f *Func) Call(ctx context.Context, args ...uint64) ([]uint64, error) {
	results, err := f.fn.Call(ctx, args...)
	if err != nil {
		return nil, wasmerrors.Wrap(wasmerrors.PhaseRuntime, wasmerrors.KindHostTrap, err,
			fmt.Sprintf("calling export %q", f.name))
	}
	return results, nil
}

// Memory is a view over a guest's linear memory.
type Memory struct {
	mem api.Memory
}

// Slice returns a view of [offset, offset+length) in guest linear memory.
// The returned slice aliases the guest's real backing storage — writes to
// it are visible to the guest immediately — so callers that only want a
// read-only look and plan to retain the bytes past the next guest call
// should copy it themselves. mut exists purely as documentation of intent
// at call sites; wazero hands back the same live view either way.
func (m *Memory) Slice(offset, length uint32, mut bool) ([]byte, error) {
	b, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, wasmerrors.OutOfBounds(wasmerrors.PhaseRuntime, nil, int(offset), int(length))
	}
	return b, nil
}

// Write copies data into guest memory starting at offset; visible to the
// guest immediately.
func (m *Memory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return wasmerrors.OutOfBounds(wasmerrors.PhaseRuntime, nil, int(offset), len(data))
	}
	return nil
}

// ReadUint32 reads a little-endian u32 at offset.
func (m *Memory) ReadUint32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, wasmerrors.OutOfBounds(wasmerrors.PhaseRuntime, nil, int(offset), 4)
	}
	return v, nil
}

// WriteUint32 writes a little-endian u32 at offset.
func (m *Memory) WriteUint32(offset, v uint32) error {
	if !m.mem.WriteUint32Le(offset, v) {
		return wasmerrors.OutOfBounds(wasmerrors.PhaseRuntime, nil, int(offset), 4)
	}
	return nil
}
