// Package bootstrap runs a photoflow task with a uniform lifecycle.
//
// An App owns the typed configuration, the global logger and a registry of
// infrastructure components (destination storage, telemetry). RunTask
// starts the components, runs the startup hooks, checks that every
// component is healthy, runs the task and then shuts everything down.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(storageComponent)
//	err = app.RunTask(ctx, func(ctx context.Context, stop <-chan struct{}) error {
//	    return engine.Run(ctx, spec, source, sink)
//	})
//
// The first SIGINT or SIGTERM closes stop so the task can finish what is
// in flight; a second one cancels the task context.
package bootstrap
