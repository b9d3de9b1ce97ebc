package asynclink

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wasmhost/asyncwasm/linker"
)

// Suspension states, as reported by the guest's exported asyncify_get_state.
const (
	StateNormal    int32 = 0
	StateUnwinding int32 = 1
	StateRewinding int32 = 2
)

// stateMachine drives the four Asyncify control primitives
// (asyncify_get_state, asyncify_start_unwind, asyncify_stop_unwind,
// asyncify_start_rewind) through the Sync Linker, and caches the
// last-observed state so hot-path checks don't round-trip into the guest.
//
// Administrative calls are expected to succeed on a correctly-transformed
// module; a failure here is a fatal invariant violation, never a recoverable
// per-call error.
type stateMachine struct {
	l     *linker.Linker
	state atomic.Int32
}

func newStateMachine(l *linker.Linker) *stateMachine {
	sm := &stateMachine{l: l}
	sm.state.Store(StateNormal)
	return sm
}

// Sync re-reads state from the guest via asyncify_get_state. Absence of the
// export is treated as Normal, per the external interface contract.
func (sm *stateMachine) Sync(ctx context.Context) (int32, error) {
	if !sm.l.HasExport("asyncify_get_state") {
		sm.state.Store(StateNormal)
		return StateNormal, nil
	}
	results, err := sm.l.Run(ctx, "asyncify_get_state")
	if err != nil {
		return 0, err
	}
	v := StateNormal
	if len(results) > 0 {
		v = int32(results[0])
	}
	sm.state.Store(v)
	return v, nil
}

// Cached returns the last state observed by Sync, StartUnwind, StopUnwind,
// or StartRewind, without calling into the guest.
func (sm *stateMachine) Cached() int32 { return sm.state.Load() }

func (sm *stateMachine) IsNormal() bool    { return sm.Cached() == StateNormal }
func (sm *stateMachine) IsUnwinding() bool { return sm.Cached() == StateUnwinding }

func (sm *stateMachine) StartUnwind(ctx context.Context) error {
	if !sm.l.HasExport("asyncify_start_unwind") {
		sm.state.Store(StateUnwinding)
		return nil
	}
	if _, err := sm.l.Run(ctx, "asyncify_start_unwind", 0); err != nil {
		Logger().Error("asyncify_start_unwind failed", zap.Error(err))
		return err
	}
	sm.state.Store(StateUnwinding)
	return nil
}

func (sm *stateMachine) StopUnwind(ctx context.Context) error {
	if !sm.l.HasExport("asyncify_stop_unwind") {
		sm.state.Store(StateNormal)
		return nil
	}
	if _, err := sm.l.Run(ctx, "asyncify_stop_unwind"); err != nil {
		Logger().Error("asyncify_stop_unwind failed", zap.Error(err))
		return err
	}
	sm.state.Store(StateNormal)
	return nil
}

func (sm *stateMachine) StartRewind(ctx context.Context) error {
	if !sm.l.HasExport("asyncify_start_rewind") {
		sm.state.Store(StateRewinding)
		return nil
	}
	if _, err := sm.l.Run(ctx, "asyncify_start_rewind", 0); err != nil {
		Logger().Error("asyncify_start_rewind failed", zap.Error(err))
		return err
	}
	sm.state.Store(StateRewinding)
	return nil
}
