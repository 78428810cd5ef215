package stage

import (
	"context"
	"fmt"

	"github.com/kbukum/photoflow/item"
	"github.com/kbukum/photoflow/pipeline"
)

// Apply evaluates s over in. The result yields, in input order, the mapped
// form of every item s accepts. Rejected items are skipped, item-local
// faults are handled per opts, and the stage name is appended to the
// provenance of each emitted item.
//
// Composite items are evaluated member by member: a batch keeps the
// members that pass and disappears when none does, while a joined or
// unmatched item survives only if every member passes.
func Apply(in Stream, s Stage, opts Options) Stream {
	return pipeline.FromFunc(func(ctx context.Context) pipeline.Iterator[*item.Item] {
		return &applyIter{source: in.Iter(ctx), stage: s, name: s.Name(), opts: opts}
	})
}

// Chain applies stages in order.
func Chain(in Stream, opts Options, stages ...Stage) Stream {
	for _, s := range stages {
		in = Apply(in, s, opts)
	}
	return in
}

type applyIter struct {
	source pipeline.Iterator[*item.Item]
	stage  Stage
	name   string
	opts   Options
}

func (a *applyIter) Next(ctx context.Context) (*item.Item, bool, error) {
	for {
		in, ok, err := a.source.Next(ctx)
		if err != nil || !ok {
			return nil, false, err
		}
		a.opts.Metrics.RecordIn(ctx, a.name)

		out, keep, err := a.process(ctx, in)
		if err != nil {
			return nil, false, err
		}
		if keep {
			a.opts.Metrics.RecordOut(ctx, a.name)
			return out, true, nil
		}
	}
}

func (a *applyIter) Close() error { return a.source.Close() }

// process returns the surviving form of it. A nil error with keep=false
// means the item was filtered or dropped on a handled fault.
func (a *applyIter) process(ctx context.Context, it *item.Item) (*item.Item, bool, error) {
	switch it.Kind() {
	case item.KindBatch:
		return a.processBatch(ctx, it)
	case item.KindJoined, item.KindUnmatched:
		return a.processTuple(ctx, it)
	}

	out, keep, err := a.evaluate(ctx, it)
	if err != nil {
		return nil, false, a.opts.Handle(ctx, it.Source(), a.name, err)
	}
	if !keep {
		a.opts.Metrics.RecordFiltered(ctx, a.name)
		a.opts.Report.AddFiltered()
		return nil, false, nil
	}
	out.Visit(a.name)
	return out, true, nil
}

func (a *applyIter) processBatch(ctx context.Context, batch *item.Item) (*item.Item, bool, error) {
	var kept []*item.Item
	for _, m := range batch.Members() {
		out, keep, err := a.process(ctx, m)
		if err != nil {
			return nil, false, err
		}
		if keep {
			kept = append(kept, out)
		}
	}
	if len(kept) == 0 {
		return nil, false, nil
	}
	batch.SetMembers(kept)
	batch.Visit(a.name)
	return batch, true, nil
}

func (a *applyIter) processTuple(ctx context.Context, tuple *item.Item) (*item.Item, bool, error) {
	members := tuple.Members()
	out := make([]*item.Item, len(members))
	for i, m := range members {
		o, keep, err := a.process(ctx, m)
		if err != nil || !keep {
			return nil, false, err
		}
		out[i] = o
	}
	tuple.SetMembers(out)
	tuple.Visit(a.name)
	return tuple, true, nil
}

// evaluate runs Filter then Map on a photo, turning panics into errors.
func (a *applyIter) evaluate(ctx context.Context, it *item.Item) (out *item.Item, keep bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, keep, err = nil, false, fmt.Errorf("stage %s panicked: %v", a.name, r)
		}
	}()

	keep, err = a.stage.Filter(ctx, it)
	if err != nil || !keep {
		return nil, false, err
	}
	out, err = a.stage.Map(ctx, it)
	if err != nil {
		return nil, false, err
	}
	if out == nil {
		return nil, false, fmt.Errorf("stage %s returned no item", a.name)
	}
	return out, true, nil
}

// Drive pulls in to exhaustion and hands every photo to sink; composites
// are consumed member by member. Sink faults are handled like stage faults.
func Drive(ctx context.Context, in Stream, sink Sink, opts Options) error {
	return pipeline.ForEach(ctx, in, func(ctx context.Context, it *item.Item) error {
		for _, photo := range it.Photos() {
			if err := consume(ctx, sink, photo); err != nil {
				if err := opts.Handle(ctx, photo.Source(), sink.Name(), err); err != nil {
					return err
				}
				continue
			}
			opts.Report.AddWritten()
		}
		return nil
	})
}

func consume(ctx context.Context, sink Sink, it *item.Item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink %s panicked: %v", sink.Name(), r)
		}
	}()
	return sink.Consume(ctx, it)
}
