package runtime

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SignalContext is cancelled on SIGINT, SIGTERM or any of the extra signals.
func SignalContext(extra ...os.Signal) (context.Context, context.CancelFunc) {
	sigs := append([]os.Signal{syscall.SIGINT, syscall.SIGTERM}, extra...)
	return signal.NotifyContext(context.Background(), sigs...)
}
