package cmd

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"
)

// Middleware wraps an entry point (recovery, timeouts, metrics).
type Middleware func(EntryPoint) EntryPoint

// Apply applies middlewares in order; the first in the list is the outermost.
func Apply(ep EntryPoint, mws ...Middleware) EntryPoint {
	for i := len(mws) - 1; i >= 0; i-- {
		ep = mws[i](ep)
	}
	return ep
}

// PanicError is returned by Recover when an entry point panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Recover turns a panic inside the entry point into a *PanicError.
func Recover() Middleware {
	return func(next EntryPoint) EntryPoint {
		return func(ctx context.Context, c *Context) (r Reply, err error) {
			defer func() {
				if v := recover(); v != nil {
					r, err = Reply{}, &PanicError{Value: v, Stack: debug.Stack()}
				}
			}()
			return next(ctx, c)
		}
	}
}

// Timeout gives the entry point a context that expires after d. The entry
// point is expected to honour ctx; it is not abandoned. Zero disables it.
func Timeout(d time.Duration) Middleware {
	return func(next EntryPoint) EntryPoint {
		if d <= 0 {
			return next
		}
		return func(ctx context.Context, c *Context) (Reply, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			r, err := next(ctx, c)
			if err != nil && errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("command %q exceeded %s: %w", c.Command, d, err)
			}
			return r, err
		}
	}
}
