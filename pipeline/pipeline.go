package pipeline

import "context"

// Iterator provides pull-based sequential access to a stream of values.
type Iterator[T any] interface {
	// Next returns the next value. Returns (zero, false, nil) when exhausted.
	Next(ctx context.Context) (T, bool, error)
	// Close releases the iterator and everything upstream of it.
	Close() error
}

// Pipeline is a lazy, re-openable description of a sequence. Nothing is
// pulled until Iter, Collect or ForEach opens it.
type Pipeline[T any] struct {
	create func(ctx context.Context) Iterator[T]
}

// result carries a value or error through a channel.
type result[T any] struct {
	val T
	ok  bool
	err error
}

// channelIter reads values from a channel. Used by concurrent operators.
type channelIter[T any] struct {
	ch     <-chan result[T]
	closer func() error
}

func (it *channelIter[T]) Next(ctx context.Context) (T, bool, error) {
	select {
	case r, open := <-it.ch:
		if !open {
			var zero T
			return zero, false, nil
		}
		return r.val, r.ok, r.err
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	}
}

func (it *channelIter[T]) Close() error {
	if it.closer != nil {
		return it.closer()
	}
	return nil
}

// --- Constructors ---

// FromSlice creates a pipeline from a slice of values.
func FromSlice[T any](items []T) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(_ context.Context) Iterator[T] {
			return &sliceIter[T]{items: items}
		},
	}
}

// FromFunc creates a pipeline from a factory that produces an Iterator.
func FromFunc[T any](fn func(ctx context.Context) Iterator[T]) *Pipeline[T] {
	return &Pipeline[T]{create: fn}
}

// --- Terminals ---

// Collect runs the pipeline and returns all values as a slice.
func Collect[T any](ctx context.Context, p *Pipeline[T]) ([]T, error) {
	iter := p.create(ctx)
	defer iter.Close()
	var out []T
	for {
		val, ok, err := iter.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, val)
	}
}

// ForEach opens p, hands every value to fn and closes p. The first error
// from the pipeline or from fn stops the pull and is returned.
func ForEach[T any](ctx context.Context, p *Pipeline[T], fn func(context.Context, T) error) error {
	iter := p.create(ctx)
	defer iter.Close()
	for {
		val, ok, err := iter.Next(ctx)
		if err != nil || !ok {
			return err
		}
		if err := fn(ctx, val); err != nil {
			return err
		}
	}
}

// Iter returns the raw Iterator for this pipeline. The caller must Close() it.
func (p *Pipeline[T]) Iter(ctx context.Context) Iterator[T] {
	return p.create(ctx)
}

// --- Internal iterators ---

type sliceIter[T any] struct {
	items []T
	index int
}

func (it *sliceIter[T]) Next(_ context.Context) (T, bool, error) {
	if it.index >= len(it.items) {
		var zero T
		return zero, false, nil
	}
	val := it.items[it.index]
	it.index++
	return val, true, nil
}

func (it *sliceIter[T]) Close() error { return nil }

// closeAll closes every iterator and returns the first error.
func closeAll[T any](iters []Iterator[T]) error {
	var firstErr error
	for _, iter := range iters {
		if iter == nil {
			continue
		}
		if err := iter.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
