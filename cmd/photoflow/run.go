package main

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kbukum/photoflow/bootstrap"
	"github.com/kbukum/photoflow/config"
	"github.com/kbukum/photoflow/errors"
	"github.com/kbukum/photoflow/flow"
	"github.com/kbukum/photoflow/ingest"
	"github.com/kbukum/photoflow/logger"
	"github.com/kbukum/photoflow/observability"
	"github.com/kbukum/photoflow/stage"
	"github.com/kbukum/photoflow/storage"
	"github.com/kbukum/photoflow/validation"
	"github.com/kbukum/photoflow/version"

	_ "github.com/kbukum/photoflow/storage/local"
	_ "github.com/kbukum/photoflow/storage/memory"
	_ "github.com/kbukum/photoflow/storage/s3"
)

const serviceName = "photoflow"

// runOptions holds the flags shared by run and validate. Flags that were
// set explicitly override the configuration file and environment.
type runOptions struct {
	configFile  string
	input       string
	output      string
	stages      []string
	topology    string
	dateStart   string
	dateEnd     string
	batchSize   int
	maxLongEdge int
	faultPolicy string
	runID       string
	provider    string
	logLevel    string
}

func (o *runOptions) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&o.configFile, "config", "c", "", "configuration file (YAML)")
	f.StringVarP(&o.input, "input", "i", "", "input root directory")
	f.StringVarP(&o.output, "output", "o", "", "output root (local provider)")
	f.StringSliceVarP(&o.stages, "stages", "s", nil, "stages applied in order, e.g. landscape,date")
	f.StringVar(&o.topology, "topology", "", "stream topology file (YAML), replaces --stages")
	f.StringVar(&o.dateStart, "date-start", "", "earliest capture date, YYYY-MM-DD")
	f.StringVar(&o.dateEnd, "date-end", "", "latest capture date, YYYY-MM-DD")
	f.IntVar(&o.batchSize, "batch-size", 0, "default batch size for batch merges")
	f.IntVar(&o.maxLongEdge, "max-long-edge", 0, "downscale photos whose long edge exceeds this")
	f.StringVar(&o.faultPolicy, "fault-policy", "", "drop or abort on item faults")
	f.StringVar(&o.runID, "run-id", "", "run correlation id (UUID)")
	f.StringVar(&o.provider, "storage", "", "storage provider: local, s3 or memory")
	f.StringVar(&o.logLevel, "log-level", "", "log level")
}

// load reads the configuration and applies explicitly set flags on top.
func (o *runOptions) load(cmd *cobra.Command) (*config.IngestConfig, error) {
	cfg := &config.IngestConfig{}
	var opts []config.LoaderOption
	if o.configFile != "" {
		opts = append(opts, config.WithConfigFile(o.configFile))
	}
	if err := config.LoadConfig(serviceName, cfg, opts...); err != nil {
		return nil, errors.ConfigFault("cannot load configuration").WithCause(err)
	}

	f := cmd.Flags()
	set := func(name string, apply func()) {
		if f.Changed(name) {
			apply()
		}
	}
	set("input", func() { cfg.Input = o.input })
	set("output", func() { cfg.Output = o.output })
	set("stages", func() { cfg.Stages = o.stages })
	set("topology", func() { cfg.Topology = o.topology })
	set("date-start", func() { cfg.DateStart = o.dateStart })
	set("date-end", func() { cfg.DateEnd = o.dateEnd })
	set("batch-size", func() { cfg.BatchSize = &o.batchSize })
	set("max-long-edge", func() { cfg.MaxLongEdge = &o.maxLongEdge })
	set("fault-policy", func() { cfg.FaultPolicy = o.faultPolicy })
	set("run-id", func() { cfg.RunID = o.runID })
	set("storage", func() { cfg.Storage.Provider = o.provider })
	set("log-level", func() { cfg.Logging.Level = o.logLevel })

	if cfg.Name == "" {
		cfg.Name = serviceName
	}
	if cfg.Version == "" {
		cfg.Version = version.GetShortVersion()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// plan is everything that can be checked before any I/O happens.
type plan struct {
	reg    *stage.Registry
	spec   *flow.Spec
	policy stage.Policy
}

func newPlan(cfg *config.IngestConfig) (*plan, error) {
	var settings ingest.Settings
	var err error
	if cfg.DateStart != "" {
		if settings.DateStart, err = validation.ParseDate("date_start", cfg.DateStart); err != nil {
			return nil, err
		}
	}
	if cfg.DateEnd != "" {
		if settings.DateEnd, err = validation.ParseDate("date_end", cfg.DateEnd); err != nil {
			return nil, err
		}
	}
	settings.BatchSize = cfg.WindowSize()
	reg := ingest.NewRegistry(settings)

	var spec *flow.Spec
	if cfg.Topology != "" {
		if spec, err = flow.LoadSpec(cfg.Topology); err != nil {
			return nil, err
		}
	} else {
		spec = flow.Linear(reg, cfg.Stages)
	}
	if cfg.HasDateRange() {
		spec.Require(reg, ingest.StageDate)
	}
	if err := spec.Validate(reg); err != nil {
		return nil, err
	}

	policy, err := stage.ParsePolicy(cfg.FaultPolicy)
	if err != nil {
		return nil, err
	}
	return &plan{reg: reg, spec: spec, policy: policy}, nil
}

func newRunCmd() *cobra.Command {
	var o runOptions
	cmd := &cobra.Command{
		Use:     "run",
		Aliases: []string{"ingest"},
		Short:   "Run an ingest",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := o.load(cmd)
			if err != nil {
				return err
			}
			return runIngest(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
	o.bind(cmd)
	return cmd
}

// runIngest executes one run. Configuration faults are reported before
// the input or the destination is touched.
func runIngest(ctx context.Context, cfg *config.IngestConfig, out io.Writer) error {
	p, err := newPlan(cfg)
	if err != nil {
		return err
	}

	app, err := bootstrap.NewApp(cfg, bootstrap.WithOutput(out), bootstrap.WithGracefulTimeout(10*time.Second))
	if err != nil {
		return err
	}

	telemetry := observability.NewComponent(cfg.Telemetry, cfg.Name, cfg.Version, cfg.Environment)
	store := storage.NewComponent(cfg.Storage, app.Logger.WithComponent("storage"))
	// Components stop in reverse order, so telemetry flushes last.
	if err := app.RegisterComponent(telemetry); err != nil {
		return errors.Internal(err)
	}
	if err := app.RegisterComponent(store); err != nil {
		return errors.Internal(err)
	}

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx = logger.ContextWithRunID(ctx, runID)
	app.Summary.SetRunID(runID)

	return app.RunTask(ctx, func(ctx context.Context, stop <-chan struct{}) error {
		report := stage.NewReport()
		log := app.Logger.WithContext(ctx)
		src := ingest.NewSource(cfg.Input, log.WithComponent("source"), report)
		retry := cfg.WriteRetry
		retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
			log.Warn("upload failed, retrying", logger.MergeWithError(logger.Fields("attempt", attempt, "backoff", backoff.String()), err))
		}
		sink := ingest.NewOutput(store.Storage(), cfg.Storage.Describe(), cfg.LongEdge(), telemetry.Metrics(), ingest.WithRetry(retry))

		engine := flow.New(p.reg,
			flow.WithOptions(stage.Options{
				Policy:  p.policy,
				Log:     log,
				Metrics: telemetry.Metrics(),
				Report:  report,
			}),
			flow.WithStop(stop),
		)
		err := engine.Run(ctx, p.spec, src, sink)
		app.Summary.SetCounts(report.Summary())
		return err
	})
}
