package flow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/photoflow/item"
	"github.com/kbukum/photoflow/logger"
	"github.com/kbukum/photoflow/observability"
	"github.com/kbukum/photoflow/pipeline"
	"github.com/kbukum/photoflow/stage"
)

// Engine builds and runs topologies against one registry.
type Engine struct {
	reg  *stage.Registry
	opts stage.Options
	stop <-chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithOptions sets the fault policy, logger, metrics and report.
func WithOptions(opts stage.Options) Option {
	return func(e *Engine) { e.opts = opts }
}

// WithStop makes the source stop producing once stop is closed. Items
// already in flight still reach the sink and open windows are flushed.
func WithStop(stop <-chan struct{}) Option {
	return func(e *Engine) { e.stop = stop }
}

// New creates an engine.
func New(reg *stage.Registry, opts ...Option) *Engine {
	e := &Engine{reg: reg}
	for _, opt := range opts {
		opt(e)
	}
	if e.opts.Log == nil {
		e.opts.Log = logger.GetGlobalLogger()
	}
	return e
}

// Build validates spec and wires it to src, returning the output stream.
// Nothing is pulled until the stream is iterated.
func (e *Engine) Build(spec *Spec, src stage.Source) (stage.Stream, error) {
	if err := spec.Validate(e.reg); err != nil {
		return nil, err
	}

	prelude, err := e.reg.Resolve(spec.Prelude)
	if err != nil {
		return nil, err
	}
	if acc, ok := src.(stage.FormatAcceptor); ok {
		for _, s := range leadingDecoders(prelude, spec, e.reg) {
			acc.Accept(s)
		}
	}

	items := pipeline.Tap(src.Items(), func(ctx context.Context, _ *item.Item) error {
		e.opts.Metrics.RecordOut(ctx, SourceStream)
		return nil
	})
	if e.stop != nil {
		items = pipeline.TakeUntil(items, e.stop)
	}

	g := newGraph(spec)
	g.define(SourceStream, stage.Chain(items, e.opts, prelude...))

	for _, st := range spec.Streams {
		stages, err := e.reg.Resolve(st.Stages)
		if err != nil {
			return nil, err
		}
		var in stage.Stream
		if st.Merge != nil {
			m, err := e.reg.Merge(st.Merge.Policy, st.Name, st.Merge.Params())
			if err != nil {
				return nil, err
			}
			inputs := make([]stage.Stream, len(st.Merge.Inputs))
			for i, name := range st.Merge.Inputs {
				inputs[i] = g.take(name)
			}
			in = m.Merge(inputs)
		} else {
			in = g.take(st.From)
		}
		out := stage.Chain(in, e.opts, stages...)
		if st.Buffer > 0 {
			out = pipeline.Buffer(out, st.Buffer)
		}
		g.define(st.Name, out)
	}
	return g.take(spec.OutputStream()), nil
}

// leadingDecoders returns the decode-capable stages directly following
// the source: the leading prelude stages, or when the prelude is empty the
// leading stages of streams reading the source.
func leadingDecoders(prelude []stage.Stage, spec *Spec, reg *stage.Registry) []stage.FormatDecoder {
	var out []stage.FormatDecoder
	collect := func(stages []stage.Stage) {
		for _, s := range stages {
			d, ok := s.(stage.FormatDecoder)
			if !ok {
				return
			}
			out = append(out, d)
		}
	}
	if len(prelude) > 0 {
		collect(prelude)
		return out
	}
	for _, st := range spec.Streams {
		if st.From != SourceStream {
			continue
		}
		if stages, err := reg.Resolve(st.Stages); err == nil {
			collect(stages)
		}
	}
	return out
}

// Run builds spec and drives its output into sink until the source is
// exhausted, stopped, or a fault aborts the run.
func (e *Engine) Run(ctx context.Context, spec *Spec, src stage.Source, sink stage.Sink) error {
	runID := logger.RunIDFromContext(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = logger.ContextWithRunID(ctx, runID)
	}
	ctx, span := observability.StartSpan(ctx, observability.SpanRun)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrRunID, runID)

	log := e.opts.Log.WithContext(ctx)
	opts := e.opts
	opts.Log = log

	built := *e
	built.opts = opts
	out, err := built.Build(spec, src)
	if err != nil {
		observability.SetSpanError(ctx, err)
		return err
	}

	start := time.Now()
	log.Info("run started", logger.Fields(
		"streams", len(spec.Streams),
		"output", spec.OutputStream(),
		"fault_policy", opts.Policy.String(),
	))
	if err := stage.Drive(ctx, out, sink, opts); err != nil {
		observability.SetSpanError(ctx, err)
		log.Error("run aborted", logger.MergeWithError(logger.DurationFields("run", time.Since(start)), err))
		return err
	}
	log.Info("run finished", logger.MergeWithDuration(logger.Fields(), time.Since(start)))
	return nil
}

// graph hands out streams by name. A stream with several consumers is
// teed on first use; each consumer receives its own copy of every item.
type graph struct {
	consumers map[string]int
	streams   map[string]stage.Stream
	branches  map[string][]stage.Stream
}

func newGraph(spec *Spec) *graph {
	g := &graph{
		consumers: map[string]int{spec.OutputStream(): 1},
		streams:   make(map[string]stage.Stream),
		branches:  make(map[string][]stage.Stream),
	}
	for _, st := range spec.Streams {
		if st.Merge != nil {
			for _, in := range st.Merge.Inputs {
				g.consumers[in]++
			}
		} else {
			g.consumers[st.From]++
		}
	}
	return g
}

func (g *graph) define(name string, s stage.Stream) {
	g.streams[name] = s
	if n := g.consumers[name]; n > 1 {
		g.branches[name] = pipeline.TeeWith(s, n, (*item.Item).Clone)
	}
}

func (g *graph) take(name string) stage.Stream {
	b, ok := g.branches[name]
	if !ok {
		return g.streams[name]
	}
	next := b[0]
	g.branches[name] = b[1:]
	return next
}
