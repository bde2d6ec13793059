package os

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

type logger interface {
	Info(msg string, keyvals ...any)
}

// ErrTerminationSignal is the cancellation cause of a SignalContext that
// caught SIGINT or SIGTERM.
var ErrTerminationSignal = fmt.Errorf("termination signal received")

// SignalContext returns a copy of parent that is cancelled, with cause
// ErrTerminationSignal, on the first SIGINT or SIGTERM. A second signal is
// left to the default handler so an operator can still force an exit. The
// returned stop function releases the signal handler.
func SignalContext(parent context.Context, logger logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-c:
			logger.Info("signal trapped", "msg", fmt.Sprintf("captured %v, shutting down...", sig))
			signal.Stop(c)
			cancel(ErrTerminationSignal)
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(c)
		cancel(context.Canceled)
	}
}

// EnsureDir ensures the given directory exists, creating it if necessary.
// Errors if the path already exists as a non-directory.
func EnsureDir(dir string, mode os.FileMode) error {
	err := os.MkdirAll(dir, mode)
	if err != nil {
		return fmt.Errorf("could not create directory %q: %w", dir, err)
	}
	return nil
}

// FileExists checks if a file exists.
func FileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return !os.IsNotExist(err)
}

// WriteFile writes a file.
func WriteFile(filePath string, contents []byte, mode os.FileMode) error {
	return os.WriteFile(filePath, contents, mode)
}
