package future

import (
	"context"
	"fmt"
	"sync"
)

// Future provides access to the result of an asynchronous operation.
type Future[T any] interface {
	// Wait blocks until the result is available or the context is done.
	Wait(ctx context.Context) (T, error)
	// Done is closed once the result is available.
	Done() <-chan struct{}
}

// Promise is the producer side of a Future.
// Only the first call to Resolve or Reject takes effect.
type Promise[T any] interface {
	Future[T]
	Resolve(v T) bool
	Reject(err error) bool
}

type future[T any] struct {
	lock  sync.Mutex
	done  chan struct{}
	value T
	err   error
}

var _ Promise[int] = (*future[int])(nil)

func NewPromise[T any]() Promise[T] {
	return newFuture[T]()
}

func newFuture[T any]() *future[T] {
	return &future[T]{done: make(chan struct{})}
}

func (f *future[T]) Done() <-chan struct{} {
	return f.done
}

func (f *future[T]) Wait(ctx context.Context) (T, error) {
	if ctx == nil {
		<-f.done
		return f.value, f.err
	}
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (f *future[T]) Resolve(v T) bool {
	return f.complete(v, nil)
}

func (f *future[T]) Reject(err error) bool {
	var zero T
	return f.complete(zero, err)
}

func (f *future[T]) complete(v T, err error) bool {
	f.lock.Lock()
	defer f.lock.Unlock()

	select {
	case <-f.done:
		return false
	default:
	}
	f.value, f.err = v, err
	close(f.done)
	return true
}

////////////////////////////////////////////////////////////////////////////////

func Resolved[T any](v T) Future[T] {
	p := NewPromise[T]()
	p.Resolve(v)
	return p
}

func Failed[T any](err error) Future[T] {
	p := NewPromise[T]()
	p.Reject(err)
	return p
}

// Go runs fn on its own goroutine. A panic in fn rejects the future.
func Go[T any](fn func() (T, error)) Future[T] {
	p := newFuture[T]()
	go func() {
		defer catch[T](p)
		p.complete(fn())
	}()
	return p
}

// Then runs fn with the result of f once f is complete.
// If f fails fn is skipped and the error is passed on.
func Then[T, R any](f Future[T], fn func(T) (R, error)) Future[R] {
	p := newFuture[R]()
	go func() {
		defer catch[R](p)
		v, err := f.Wait(context.Background())
		if err != nil {
			p.Reject(err)
			return
		}
		p.complete(fn(v))
	}()
	return p
}

func catch[T any](p Promise[T]) {
	if r := recover(); r != nil {
		p.Reject(fmt.Errorf("panic: %v", r))
	}
}

func (f *future[T]) String() string {
	select {
	case <-f.done:
		if f.err != nil {
			return fmt.Sprintf("failed: %s", f.err)
		}
		return fmt.Sprintf("resolved: %v", f.value)
	default:
		return "pending"
	}
}
