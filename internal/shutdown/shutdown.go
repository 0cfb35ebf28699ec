package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// WithSignal returns a child context cancelled on the first of sigs
// (Ctrl+C and SIGTERM when none are given) or when the parent is done.
// Calling cancel also stops signal delivery.
func WithSignal(parent context.Context, sigs ...os.Signal) (context.Context, context.CancelFunc) {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ctx, cancel := context.WithCancel(parent)

	c := make(chan os.Signal, 1)
	signal.Notify(c, sigs...)

	go func() {
		defer signal.Stop(c)
		select {
		case <-ctx.Done():
		case <-c:
			cancel()
		}
	}()

	return ctx, cancel
}
