package keyaccess

import (
	"fmt"
	"sync"
)

// Future is the result of an asynchronous sign or verify call. It is completed exactly once; later
// completions are ignored.
type Future[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Complete sets the outcome of the future and reports whether this call was the one that completed it
func (f *Future[T]) Complete(value T, err error) bool {
	completed := false
	f.once.Do(func() {
		f.value, f.err = value, err
		close(f.done)
		completed = true
	})
	return completed
}

// Done is closed once the future has been completed
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future completes
func (f *Future[T]) Await() (T, error) {
	<-f.done
	return f.value, f.err
}

// Async runs fn on its own goroutine and completes the returned future with its outcome
func Async[T any](fn func() (T, error)) *Future[T] {
	f := NewFuture[T]()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				f.Complete(zero, fmt.Errorf("panic: %v", r))
			}
		}()
		f.Complete(fn())
	}()
	return f
}
