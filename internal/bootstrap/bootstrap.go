// Package bootstrap ties process lifetime to OS signals and runs registered
// cleanup on the way out.
package bootstrap

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// App runs a long-lived task and shuts it down cleanly on SIGINT or SIGTERM.
type App struct {
	mu    sync.Mutex
	hooks []func(ctx context.Context) error
}

func New() *App {
	return &App{}
}

// AddShutdownHook registers cleanup to run when the process is asked to stop.
// Hooks run in reverse registration order.
func (app *App) AddShutdownHook(hook func(ctx context.Context) error) {
	app.mu.Lock()
	defer app.mu.Unlock()
	app.hooks = append(app.hooks, hook)
}

// Run executes task until it returns or a termination signal arrives. On a
// signal, the shutdown hooks run and their joined errors are returned; a task
// error that arrives first is returned as-is.
func (app *App) Run(ctx context.Context, task func(ctx context.Context) error) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	taskErr := make(chan error, 1)
	go func() {
		if err := task(ctx); err != nil {
			taskErr <- err
		}
		close(taskErr)
	}()

	select {
	case <-ctx.Done():
		return app.shutdown(context.Background())
	case err := <-taskErr:
		return err
	}
}

func (app *App) shutdown(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	var errs []error
	for i := len(app.hooks) - 1; i >= 0; i-- {
		if err := app.hooks[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
