// Package bootstrap provides application lifecycle helpers.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

const defaultShutdownTimeout = 15 * time.Second

type shutdownHook struct {
	name string
	fn   func(ctx context.Context) error
}

// App runs a command or server and releases its resources afterwards.
type App struct {
	mu              sync.Mutex
	hooks           []shutdownHook
	shutdownTimeout time.Duration
}

// Option configures an App.
type Option func(*App)

// WithShutdownTimeout bounds how long shutdown hooks may take in total.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(a *App) {
		a.shutdownTimeout = timeout
	}
}

// New creates a new App.
func New(opts ...Option) *App {
	a := &App{shutdownTimeout: defaultShutdownTimeout}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AddShutdownHook registers a function to call during shutdown.
// Hooks run in reverse order of registration. Thread-safe.
func (a *App) AddShutdownHook(name string, fn func(ctx context.Context) error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hooks = append(a.hooks, shutdownHook{name: name, fn: fn})
}

// AddCloser registers c to be closed during shutdown.
func (a *App) AddCloser(name string, c io.Closer) {
	a.AddShutdownHook(name, func(context.Context) error {
		return c.Close()
	})
}

// Run executes run until it returns or the process receives SIGINT or SIGTERM,
// then calls the shutdown hooks. Errors of run and of the hooks are joined.
func (a *App) Run(ctx context.Context, run func(ctx context.Context) error) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx)
	}()

	var runErr error
	finished := false
	select {
	case <-ctx.Done():
		slog.Default().Info("Shutting down", "reason", context.Cause(ctx))
	case runErr = <-errCh:
		finished = true
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.WithoutCancel(ctx), a.shutdownTimeout)
	defer cancelShutdown()
	shutdownErr := a.shutdown(shutdownCtx)

	if !finished {
		select {
		case runErr = <-errCh:
		case <-shutdownCtx.Done():
			slog.Default().Warn("Run did not return before the shutdown timeout", "timeout", a.shutdownTimeout)
		}
	}
	if ctx.Err() != nil && errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	return errors.Join(runErr, shutdownErr)
}

func (a *App) shutdown(ctx context.Context) error {
	a.mu.Lock()
	hooks := make([]shutdownHook, len(a.hooks))
	copy(hooks, a.hooks)
	a.hooks = nil
	a.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i].fn(ctx); err != nil {
			slog.Default().Error("Shutdown hook failed", "hook", hooks[i].name, "error", err)
			errs = append(errs, fmt.Errorf("%s > %w", hooks[i].name, err))
		}
	}
	return errors.Join(errs...)
}
