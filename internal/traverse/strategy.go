package traverse

import (
	"context"
	"sync"
)

// Pending is the outcome of one key's computation, possibly still running.
type Pending interface {
	Await(ctx context.Context) (any, error)
}

// Strategy starts the computation of one key. The engine always awaits the
// returned Pending before starting the next key, so sibling keys never run
// concurrently whatever the strategy.
type Strategy interface {
	Start(ctx context.Context, compute func(context.Context) (any, error)) Pending
}

var (
	// Immediate computes each key synchronously on the caller's goroutine.
	Immediate Strategy = immediate{}

	// Sequential runs each key as a pending computation that may suspend
	// (blocking mapping functions, slow lookups); awaiting it honors ctx.
	Sequential Strategy = sequential{}
)

type immediate struct{}

func (immediate) Start(ctx context.Context, compute func(context.Context) (any, error)) Pending {
	v, err := compute(ctx)
	return resolved{value: v, err: err}
}

type resolved struct {
	value any
	err   error
}

func (r resolved) Await(context.Context) (any, error) {
	return r.value, r.err
}

type sequential struct{}

func (sequential) Start(ctx context.Context, compute func(context.Context) (any, error)) Pending {
	return Go(ctx, compute)
}

// Future is a value computed on another goroutine.
type Future struct {
	done  chan struct{}
	once  sync.Once
	value any
	err   error
}

// Go starts compute and returns its Future.
func Go(ctx context.Context, compute func(context.Context) (any, error)) *Future {
	f := &Future{done: make(chan struct{})}
	go func() {
		v, err := compute(ctx)
		f.resolve(v, err)
	}()
	return f
}

func (f *Future) resolve(v any, err error) {
	f.once.Do(func() {
		f.value, f.err = v, err
		close(f.done)
	})
}

// Done is closed once the value is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the value is available or ctx is done.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
