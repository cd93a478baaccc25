// Package goroutine launches fire-and-forget work with panic recovery.
package goroutine

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rackgrid/rackgrid/internal/shared/logger"
)

// SafeGo runs fn on a new goroutine. A panic is logged with its stack
// instead of crashing the process.
func SafeGo(log logger.Interface, name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorw("goroutine panicked",
					"goroutine", name,
					"panic", fmt.Sprintf("%v", r),
					"stack", string(debug.Stack()),
				)
			}
		}()
		fn()
	}()
}

// SafeGoWithTimeout runs fn with a context detached from the caller's
// cancellation and bounded by timeout, so work outlives the request that
// started it.
func SafeGoWithTimeout(parent context.Context, log logger.Interface, name string, timeout time.Duration, fn func(ctx context.Context)) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), timeout)
	SafeGo(log, name, func() {
		defer cancel()
		fn(ctx)
	})
}
