package pipeline

import (
	"context"
	"time"
)

// BatchOptions configures the optional group boundaries of BatchWith.
type BatchOptions[T any] struct {
	// Timeout closes a group once it has been open this long. The age is
	// checked as values arrive; a pull that blocks upstream is not preempted.
	Timeout time.Duration
	// Split reports whether next must start a new group after prev.
	Split func(prev, next T) bool
}

// Batch collects up to size values or waits timeout (whichever comes first),
// then emits them as a slice.
//
// size=0 means collect until timeout. timeout=0 means collect until size.
// Both zero is invalid and defaults to size=1.
func Batch[T any](p *Pipeline[T], size int, timeout time.Duration) *Pipeline[[]T] {
	return BatchWith(p, size, BatchOptions[T]{Timeout: timeout})
}

// BatchWith groups values in arrival order. A group closes when it holds
// size values, when opts.Timeout elapses, or when opts.Split marks a
// boundary. The trailing partial group is always emitted once the source is
// exhausted, and an upstream error is reported only after the group that
// was open when it happened.
func BatchWith[T any](p *Pipeline[T], size int, opts BatchOptions[T]) *Pipeline[[]T] {
	if size <= 0 && opts.Timeout <= 0 && opts.Split == nil {
		size = 1
	}
	return &Pipeline[[]T]{
		create: func(ctx context.Context) Iterator[[]T] {
			return &batchIter[T]{
				source:  p.create(ctx),
				size:    size,
				timeout: opts.Timeout,
				split:   opts.Split,
			}
		},
	}
}

type batchIter[T any] struct {
	source   Iterator[T]
	size     int
	timeout  time.Duration
	split    func(prev, next T) bool
	carry    T
	hasCarry bool
	err      error
	done     bool
}

func (it *batchIter[T]) Next(ctx context.Context) ([]T, bool, error) {
	if it.err != nil {
		err := it.err
		it.err = nil
		it.done = true
		return nil, false, err
	}
	if it.done {
		return nil, false, nil
	}

	var batch []T
	if it.hasCarry {
		var zero T
		batch = append(batch, it.carry)
		it.carry, it.hasCarry = zero, false
	}

	var deadline time.Time
	if it.timeout > 0 {
		deadline = time.Now().Add(it.timeout)
	}

	for {
		if it.size > 0 && len(batch) >= it.size {
			return batch, true, nil
		}

		val, ok, err := it.source.Next(ctx)
		if err != nil {
			if len(batch) > 0 {
				// Surface the error on the next call, after the partial group.
				it.err = err
				return batch, true, nil
			}
			it.done = true
			return nil, false, err
		}
		if !ok {
			it.done = true
			if len(batch) > 0 {
				return batch, true, nil
			}
			return nil, false, nil
		}

		if it.split != nil && len(batch) > 0 && it.split(batch[len(batch)-1], val) {
			it.carry, it.hasCarry = val, true
			return batch, true, nil
		}
		batch = append(batch, val)

		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return batch, true, nil
		}
	}
}

func (it *batchIter[T]) Close() error { return it.source.Close() }
