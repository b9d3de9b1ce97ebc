package asynclink

import (
	"context"
	"sync"
	"time"
)

// Outcome is a host future's resolved value: a result list matching the
// declared arity, or an error — collapsed by the trampoline into the single
// HostTrapFutureError code so the guest observes a trap but never the
// error's internal structure.
type Outcome struct {
	Results []uint64
	Err     error
}

// Waker is called by a Future to signal that it should be polled again. The
// Core installs the outer executor's waker before every top-level poll and
// hands it to whichever future (fresh or parked) is polled during that
// step — mirroring the Rust source's Context/Waker plumbing.
type Waker interface {
	Wake()
}

// WakerFunc adapts a plain function to a Waker.
type WakerFunc func()

func (f WakerFunc) Wake() {
	if f != nil {
		f()
	}
}

// noopWaker is installed on construction, before any outer executor has
// driven a poll.
var noopWaker Waker = WakerFunc(func() {})

// Future is a host future: a unit of work that a trampoline invocation
// starts, and that may need more than one poll to resolve. It is the Go
// analogue of the Rust source's erased, heap-allocated future stored in the
// parked-futures stack.
type Future interface {
	// Poll advances the future once. ready is false iff the future is not
	// yet resolved; the future must arrange to call w.Wake() when it next
	// becomes worth polling.
	Poll(ctx context.Context, w Waker) (out Outcome, ready bool)
}

// FuncFuture runs a plain function to completion in a background goroutine
// and polls as Pending until it finishes — the common case for a host
// future that performs blocking or long-running work (I/O, a computation)
// without itself being suspension-aware.
type FuncFuture struct {
	once    sync.Once
	done    chan struct{}
	results []uint64
	err     error
}

// NewFuncFuture starts work in a new goroutine and returns a Future that
// becomes Ready once it completes.
func NewFuncFuture(work func() ([]uint64, error)) *FuncFuture {
	f := &FuncFuture{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.results, f.err = work()
	}()
	return f
}

func (f *FuncFuture) Poll(ctx context.Context, w Waker) (Outcome, bool) {
	select {
	case <-f.done:
		return Outcome{Results: f.results, Err: f.err}, true
	default:
		f.notifyOnce(w)
		return Outcome{}, false
	}
}

func (f *FuncFuture) notifyOnce(w Waker) {
	f.once.Do(func() {
		go func() {
			<-f.done
			w.Wake()
		}()
	})
}

// TimerFuture resolves once after d has elapsed, with the given results —
// the grounding for a demo "sleep" async import (scenarios S2/S3).
type TimerFuture struct {
	timer   *time.Timer
	fired   chan struct{}
	once    sync.Once
	results []uint64
}

// NewTimerFuture starts a timer for d and resolves to results once it
// fires.
func NewTimerFuture(d time.Duration, results []uint64) *TimerFuture {
	f := &TimerFuture{fired: make(chan struct{}), results: results}
	f.timer = time.AfterFunc(d, func() { close(f.fired) })
	return f
}

func (f *TimerFuture) Poll(ctx context.Context, w Waker) (Outcome, bool) {
	select {
	case <-f.fired:
		return Outcome{Results: f.results}, true
	default:
		f.once.Do(func() {
			go func() {
				<-f.fired
				w.Wake()
			}()
		})
		return Outcome{}, false
	}
}

// ReadyFuture is already resolved — useful for async imports that never
// actually suspend (e.g. a logging import modelled as async for uniformity
// with the trampoline, per scenario S4's "print").
type ReadyFuture struct {
	Outcome Outcome
}

func (f ReadyFuture) Poll(ctx context.Context, w Waker) (Outcome, bool) {
	return f.Outcome, true
}
