package instancepool

import (
	"context"
	"fmt"
	"time"

	"github.com/Workiva/go-datastructures/queue"

	"github.com/wasmhost/asyncwasm/asynclink"
	"github.com/wasmhost/asyncwasm/resource"
)

// coreResourceType tags pooled Cores in the checkout table; a Pool only
// ever stores one resource type, so this is the sole type ID in use.
const coreResourceType uint32 = 1

// BuildFunc constructs and fully wires one pooled Core: load the prepared
// bytes, register async/sync import namespaces, activate the module. It is
// called once per pool slot at NewPool time.
type BuildFunc func(ctx context.Context, core *asynclink.Core) error

// Pool is a ring-buffer-backed pool of wired Async Linker Cores. A resource
// table tracks which Cores are currently checked out, keyed by the handle
// returned from Get, so a caller holding only a Handle (e.g. across an RPC
// boundary) can still identify and later Put back the right Core.
type Pool struct {
	rb       *queue.RingBuffer
	cores    []*asynclink.Core
	checkout *resource.UnifiedTable
}

// Handle identifies a Core currently checked out of the pool.
type Handle = resource.Handle

// NewPool builds size independent Cores via build and returns a Pool ready
// to hand them out. cfg is passed to every Core's construction; pass the
// same cfg (e.g. the same WASINamespace setting) across the whole pool.
func NewPool(ctx context.Context, size uint64, cfg *asynclink.Config, build BuildFunc) (*Pool, error) {
	rb := queue.NewRingBuffer(size)
	cores := make([]*asynclink.Core, size)

	for i := uint64(0); i < size; i++ {
		core, err := asynclink.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("instancepool: building core %d: %w", i, err)
		}
		if err := build(ctx, core); err != nil {
			return nil, fmt.Errorf("instancepool: wiring core %d: %w", i, err)
		}

		ok, err := rb.Offer(core)
		if err != nil {
			return nil, fmt.Errorf("instancepool: offering core %d: %w", i, err)
		}
		if !ok {
			return nil, fmt.Errorf("instancepool: could not add core %d to pool of size %d", i, size)
		}
		cores[i] = core
	}

	return &Pool{rb: rb, cores: cores, checkout: resource.NewTable()}, nil
}

// Get checks out a Core, blocking up to timeout for one to become
// available. The returned handle identifies this checkout for Put.
func (p *Pool) Get(timeout time.Duration) (*asynclink.Core, Handle, error) {
	v, err := p.rb.Poll(timeout)
	if err != nil {
		return nil, 0, fmt.Errorf("instancepool: get timed out: %w", err)
	}
	core, ok := v.(*asynclink.Core)
	if !ok {
		return nil, 0, fmt.Errorf("instancepool: item retrieved from pool is not a Core")
	}
	h := p.checkout.Insert(coreResourceType, core)
	return core, h, nil
}

// Put returns a Core checked out via Get back to the pool, identified by
// the handle Get returned. Only return a Core whose most recent Call
// reached Ready — the pool does not itself verify quiescence.
func (p *Pool) Put(h Handle) error {
	v, ok := p.checkout.GetTyped(h, coreResourceType)
	if !ok {
		return fmt.Errorf("instancepool: handle %d is not a checked-out core", h)
	}
	core := v.(*asynclink.Core)

	ok, err := p.rb.Offer(core)
	if err != nil {
		return fmt.Errorf("instancepool: returning core: %w", err)
	}
	if !ok {
		return fmt.Errorf("instancepool: cannot return core to a full pool")
	}
	p.checkout.Remove(h)
	return nil
}

// Outstanding returns the number of Cores currently checked out.
func (p *Pool) Outstanding() int {
	return p.checkout.Len()
}

// Close disposes the ring buffer, the checkout table, and every pooled
// Core.
func (p *Pool) Close(ctx context.Context) error {
	p.rb.Dispose()
	p.checkout.Clear()
	_ = p.checkout.Close()
	var firstErr error
	for _, core := range p.cores {
		if err := core.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
