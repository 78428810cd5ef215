package bootstrap

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbukum/photoflow/component"
	"github.com/kbukum/photoflow/errors"
	"github.com/kbukum/photoflow/logger"
)

// TaskFunc is the body of a run. stop is closed on the first shutdown
// signal; ctx is canceled on the second.
type TaskFunc func(ctx context.Context, stop <-chan struct{}) error

// App represents a run with uniform lifecycle management.
// The type parameter C is the config type, which must satisfy the Config interface.
//
// Example:
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*config.IngestConfig]) error {
//	    // a.Cfg is *config.IngestConfig
//	    return nil
//	})
//	app.RunTask(ctx, task)
type App[C Config] struct {
	Name       string
	Version    string
	Cfg        C
	Components *component.Registry
	Logger     *logger.Logger
	Summary    *Summary

	gracefulTimeout time.Duration
	output          io.Writer
	onConfigure     []func(ctx context.Context, app *App[C]) error

	onStart []Hook
	onReady []Hook
	onStop  []Hook

	notify     func(c chan<- os.Signal, sig ...os.Signal)
	stopNotify func(c chan<- os.Signal)
}

// NewApp creates a new application instance from a typed config.
// It applies defaults, validates the config, and initializes the logger.
// A config that fails validation is returned as a config fault.
func NewApp[C Config](cfg C, opts ...Option) (*App[C], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		if errors.IsConfig(err) {
			return nil, err
		}
		return nil, errors.ConfigFault("config validation failed").WithCause(err)
	}

	base := cfg.GetServiceConfig()

	app := &App[C]{
		Name:            base.Name,
		Version:         base.Version,
		Cfg:             cfg,
		Components:      component.NewRegistry(),
		gracefulTimeout: 15 * time.Second,
		output:          os.Stdout,
		notify:          signal.Notify,
		stopNotify:      signal.Stop,
	}

	o := resolveOptions(opts)
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}
	if o.output != nil {
		app.output = o.output
	}

	if o.logger != nil {
		app.Logger = o.logger
	} else {
		logger.Init(base.Logging, base.Name)
		app.Logger = logger.GetGlobalLogger()
	}

	app.Summary = NewSummary(base.Name, base.Version)
	return app, nil
}

// RegisterComponent adds a component to the application's registry.
func (a *App[C]) RegisterComponent(c component.Component) error {
	return a.Components.Register(c)
}

// OnConfigure registers a callback to run after components are started.
// Use it to build the run from started infrastructure.
func (a *App[C]) OnConfigure(fn func(ctx context.Context, app *App[C]) error) {
	a.onConfigure = append(a.onConfigure, fn)
}

// ReadyCheck verifies that all registered components are healthy.
// An unhealthy component is a systemic fault: the run cannot start.
func (a *App[C]) ReadyCheck(ctx context.Context) error {
	if err := a.Components.CheckHealth(ctx); err != nil {
		return errors.Systemic("preflight check failed", err)
	}
	return nil
}

// RunTask executes a finite task with the full lifecycle:
// start components, OnStart hooks, configure, preflight, OnReady hooks,
// task, OnStop hooks, stop components.
//
// The first SIGINT or SIGTERM closes the task's stop channel so it can
// stop taking new input and flush what is in flight. A second signal
// cancels the task context.
func (a *App[C]) RunTask(ctx context.Context, task TaskFunc) error {
	if err := a.startup(ctx); err != nil {
		if stopErr := a.stop(); stopErr != nil {
			a.Logger.Warn("shutdown after failed startup", logger.MergeWithError(nil, stopErr))
		}
		return err
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := make(chan struct{})
	sigCh := make(chan os.Signal, 2)
	a.notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer a.stopNotify(sigCh)

	watched := make(chan struct{})
	go func() {
		defer close(watched)
		a.watchSignals(taskCtx, sigCh, stop, cancel)
	}()

	start := time.Now()
	taskErr := task(taskCtx, stop)
	a.Summary.SetRunDuration(time.Since(start))
	cancel()
	<-watched

	stopErr := a.stop()
	a.Summary.Write(a.output)
	if taskErr != nil {
		return taskErr
	}
	return stopErr
}

func (a *App[C]) watchSignals(ctx context.Context, sigCh <-chan os.Signal, stop chan struct{}, cancel context.CancelFunc) {
	stopped := false
	for {
		select {
		case sig := <-sigCh:
			if !stopped {
				stopped = true
				close(stop)
				a.Logger.Info("signal received, stopping intake", logger.Fields("signal", sig.String()))
				continue
			}
			a.Logger.Warn("second signal received, canceling run", logger.Fields("signal", sig.String()))
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

// startup performs the initialization sequence that precedes the task.
func (a *App[C]) startup(ctx context.Context) error {
	start := time.Now()

	a.Logger.Info("starting", logger.Fields("name", a.Name, "version", a.Version))

	if err := a.Components.StartAll(ctx); err != nil {
		return errors.Systemic("failed to start components", err)
	}

	if err := runHooks(ctx, a.onStart); err != nil {
		return errors.Systemic("onStart hook failed", err)
	}

	if err := a.configure(ctx); err != nil {
		return err
	}

	if err := a.ReadyCheck(ctx); err != nil {
		return err
	}

	if err := runHooks(ctx, a.onReady); err != nil {
		return errors.Systemic("onReady hook failed", err)
	}

	a.Summary.SetStartupDuration(time.Since(start))
	a.Summary.SetComponents(a.Components.Descriptions(), a.Components.HealthAll(ctx))
	return nil
}

// configure runs registered configuration callbacks. Their errors are
// returned as they are so config faults keep their class.
func (a *App[C]) configure(ctx context.Context) error {
	for _, fn := range a.onConfigure {
		if err := fn(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown stops hooks and components. Use when managing your own lifecycle.
func (a *App[C]) Shutdown(ctx context.Context) error {
	return a.stop()
}

// stop shuts down all components within the graceful timeout.
func (a *App[C]) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	var errs []error
	if err := runHooks(ctx, a.onStop); err != nil {
		a.Logger.Error("onStop hook error", logger.MergeWithError(nil, err))
		errs = append(errs, err)
	}
	if err := a.Components.StopAll(ctx); err != nil {
		a.Logger.Error("shutdown completed with errors", logger.MergeWithError(nil, err))
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return errors.Systemic("shutdown failed", err)
	}
	return nil
}
