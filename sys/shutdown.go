package sys

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// ShutdownSignals are the signals that stop the server
var ShutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// ShutdownContext returns a context that is cancelled on the first shutdown signal.
// Call stop to release the signal handler; a second signal then terminates the process.
func ShutdownContext(parent context.Context) (ctx context.Context, stop context.CancelFunc) {
	return signal.NotifyContext(parent, ShutdownSignals...)
}
