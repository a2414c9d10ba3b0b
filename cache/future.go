package cache

import (
	"context"
	"sync"
)

// Future is the eventual result of a resource load. Any number of callers
// may Wait on it; it settles exactly once.
type Future struct {
	done  chan struct{}
	once  sync.Once
	value interface{}
	err   error
}

func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolved returns an already settled future.
func Resolved(value interface{}, err error) *Future {
	f := NewFuture()
	f.Resolve(value, err)
	return f
}

// Resolve settles the future; later calls are ignored.
func (f *Future) Resolve(value interface{}, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}

func (f *Future) Done() <-chan struct{} {
	return f.done
}

func (f *Future) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the future settles or ctx ends.
func (f *Future) Wait(ctx context.Context) (interface{}, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the settled value; ok is false while still in flight.
func (f *Future) Result() (value interface{}, err error, ok bool) {
	if !f.Settled() {
		return nil, nil, false
	}
	return f.value, f.err, true
}
