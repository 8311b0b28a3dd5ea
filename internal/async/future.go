// Package async runs blocking calls on a background goroutine so interactive
// callers are never stalled by storage or network I/O.
package async

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
)

// Future holds the eventual result of a call started with Go.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Go starts fn on a new goroutine and returns immediately. A panic inside fn is
// recovered and delivered as the Future's error.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = eris.New(fmt.Sprintf("async: panic: %v", r))
			}
		}()
		f.val, f.err = fn(ctx)
	}()
	return f
}

// Resolved returns a Future that is already complete.
func Resolved[T any](val T, err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), val: val, err: err}
	close(f.done)
	return f
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the call finishes or ctx is cancelled. Cancelling ctx
// abandons the wait only; the call itself keeps its own context.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, eris.Wrap(ctx.Err(), "async: wait")
	}
}

// Result blocks until the call finishes.
func (f *Future[T]) Result() (T, error) {
	<-f.done
	return f.val, f.err
}
