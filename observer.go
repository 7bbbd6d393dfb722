package postcache

import (
	"context"
	"log/slog"
	"time"
)

// Observer receives events for store operations.
// It is called after each operation completes, outside the store lock.
type Observer interface {
	OnStoreOp(ctx context.Context, op string, hit bool, err error, dur time.Duration)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, op string, hit bool, err error, dur time.Duration)

// OnStoreOp implements Observer.
func (f ObserverFunc) OnStoreOp(ctx context.Context, op string, hit bool, err error, dur time.Duration) {
	if f == nil {
		return
	}
	f(ctx, op, hit, err, dur)
}

// NewLogObserver reports every operation to logger: failures at warn level,
// everything else at debug.
func NewLogObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return ObserverFunc(func(ctx context.Context, op string, hit bool, err error, dur time.Duration) {
		if err != nil {
			logger.WarnContext(ctx, "store op failed", "op", op, "dur", dur, "error", err)
			return
		}
		logger.DebugContext(ctx, "store op", "op", op, "hit", hit, "dur", dur)
	})
}

// multiObserver fans an event out to several observers in order.
type multiObserver []Observer

func (m multiObserver) OnStoreOp(ctx context.Context, op string, hit bool, err error, dur time.Duration) {
	for _, o := range m {
		o.OnStoreOp(ctx, op, hit, err, dur)
	}
}
