package ctxutil

import (
	"context"
	"os"
	"os/signal"
	"time"
)

type key string

var cancelkey = key("cancel")

// CancelContext returns a cancelable context, which can
// be cancelled with Cancel.
func CancelContext(ctx context.Context) context.Context {
	return cancelContext(context.WithCancel(ctx))
}

func TimeoutContext(ctx context.Context, duration time.Duration) context.Context {
	return cancelContext(context.WithTimeout(ctx, duration))
}

// SignalContext returns a context cancelled on the first of the given
// signals (os.Interrupt by default) or by Cancel.
func SignalContext(ctx context.Context, signals ...os.Signal) context.Context {
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt}
	}
	return cancelContext(signal.NotifyContext(ctx, signals...))
}

func cancelContext(ctx context.Context, cancel context.CancelFunc) context.Context {
	return context.WithValue(ctx, cancelkey, cancel)
}

// Cancel cancels a context created by this package.
// It is a no-op for other contexts.
func Cancel(ctx context.Context) {
	if c, ok := ctx.Value(cancelkey).(context.CancelFunc); ok {
		c()
	}
}
