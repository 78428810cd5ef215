package pipeline

import (
	"context"
)

// Map transforms each value using fn.
func Map[I, O any](p *Pipeline[I], fn func(context.Context, I) (O, error)) *Pipeline[O] {
	return &Pipeline[O]{
		create: func(ctx context.Context) Iterator[O] {
			return &mapIter[I, O]{source: p.create(ctx), fn: fn}
		},
	}
}

// Tap calls fn as a side-effect for each value, then passes the value through unchanged.
// Use for logging, metrics, or mid-pipeline publishing.
func Tap[T any](p *Pipeline[T], fn func(context.Context, T) error) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &tapIter[T]{source: p.create(ctx), fn: fn}
		},
	}
}

// TakeUntil yields values from p until done is closed, then reports
// exhaustion without pulling further. Everything downstream sees a normal
// end of stream, so accumulators flush what they hold.
func TakeUntil[T any](p *Pipeline[T], done <-chan struct{}) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &takeUntilIter[T]{source: p.create(ctx), done: done}
		},
	}
}

// Concat joins multiple pipelines sequentially.
// All values from the first pipeline are yielded before the second, etc.
// Inputs are opened lazily, when the previous one is exhausted.
func Concat[T any](pipelines ...*Pipeline[T]) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &concatIter[T]{pipelines: pipelines, iters: make([]Iterator[T], len(pipelines))}
		},
	}
}

// --- Iterator implementations ---

type mapIter[I, O any] struct {
	source Iterator[I]
	fn     func(context.Context, I) (O, error)
}

func (it *mapIter[I, O]) Next(ctx context.Context) (O, bool, error) {
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		var zero O
		return zero, false, err
	}
	out, err := it.fn(ctx, val)
	if err != nil {
		var zero O
		return zero, false, err
	}
	return out, true, nil
}

func (it *mapIter[I, O]) Close() error { return it.source.Close() }

type tapIter[T any] struct {
	source Iterator[T]
	fn     func(context.Context, T) error
}

func (it *tapIter[T]) Next(ctx context.Context) (T, bool, error) {
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		return val, ok, err
	}
	if err := it.fn(ctx, val); err != nil {
		var zero T
		return zero, false, err
	}
	return val, true, nil
}

func (it *tapIter[T]) Close() error { return it.source.Close() }

type takeUntilIter[T any] struct {
	source Iterator[T]
	done   <-chan struct{}
}

func (it *takeUntilIter[T]) Next(ctx context.Context) (T, bool, error) {
	select {
	case <-it.done:
		var zero T
		return zero, false, nil
	default:
	}
	return it.source.Next(ctx)
}

func (it *takeUntilIter[T]) Close() error { return it.source.Close() }

type concatIter[T any] struct {
	pipelines []*Pipeline[T]
	iters     []Iterator[T]
	index     int
}

func (it *concatIter[T]) Next(ctx context.Context) (T, bool, error) {
	for it.index < len(it.pipelines) {
		if it.iters[it.index] == nil {
			it.iters[it.index] = it.pipelines[it.index].create(ctx)
		}
		val, ok, err := it.iters[it.index].Next(ctx)
		if err != nil {
			return val, false, err
		}
		if ok {
			return val, true, nil
		}
		it.index++
	}
	var zero T
	return zero, false, nil
}

func (it *concatIter[T]) Close() error {
	return closeAll(it.iters)
}
