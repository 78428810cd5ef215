package pipeline

import "context"

// Interleave pulls one value from each live pipeline in declared order,
// round after round, until every input is exhausted. An exhausted input is
// skipped in later rounds, never replaced. Given deterministic inputs the
// output order is deterministic.
func Interleave[T any](pipelines ...*Pipeline[T]) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			iters := make([]Iterator[T], len(pipelines))
			live := make([]bool, len(pipelines))
			for i, p := range pipelines {
				iters[i] = p.create(ctx)
				live[i] = true
			}
			return &interleaveIter[T]{iters: iters, live: live, remaining: len(iters)}
		},
	}
}

type interleaveIter[T any] struct {
	iters     []Iterator[T]
	live      []bool
	remaining int
	next      int
}

func (it *interleaveIter[T]) Next(ctx context.Context) (T, bool, error) {
	for it.remaining > 0 {
		i := it.next
		it.next = (it.next + 1) % len(it.iters)
		if !it.live[i] {
			continue
		}
		val, ok, err := it.iters[i].Next(ctx)
		if err != nil {
			return val, false, err
		}
		if !ok {
			it.live[i] = false
			it.remaining--
			continue
		}
		return val, true, nil
	}
	var zero T
	return zero, false, nil
}

func (it *interleaveIter[T]) Close() error { return closeAll(it.iters) }
