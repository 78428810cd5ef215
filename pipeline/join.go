package pipeline

import (
	"context"
	"time"
)

// DefaultMaxPending bounds Join's pending set when JoinConfig.MaxPending is unset.
const DefaultMaxPending = 1024

// UnmatchedPolicy decides what Join does with values evicted before a match.
type UnmatchedPolicy int

const (
	// UnmatchedEmit yields each evicted value as an unmatched result.
	UnmatchedEmit UnmatchedPolicy = iota
	// UnmatchedDrop discards evicted values.
	UnmatchedDrop
)

// String returns the policy name used in topology files.
func (p UnmatchedPolicy) String() string {
	if p == UnmatchedDrop {
		return "drop"
	}
	return "emit"
}

// JoinConfig configures Join.
type JoinConfig[T any, K comparable] struct {
	// Key extracts the correlation key of a value.
	Key func(T) K
	// MaxPending caps values waiting for a partner across all inputs.
	// Zero means DefaultMaxPending.
	MaxPending int
	// MaxAge evicts values that have waited longer than this. Zero disables.
	MaxAge time.Duration
	// Unmatched selects the eviction policy.
	Unmatched UnmatchedPolicy
	// Now overrides the clock used for MaxAge.
	Now func() time.Time
}

// JoinResult is one output of Join. A matched result carries one value per
// input, indexed by input position. An unmatched result carries a single
// evicted value at Values[Input]; the other slots hold zero values.
type JoinResult[T any, K comparable] struct {
	Key     K
	Values  []T
	Matched bool
	Input   int
}

// Join correlates values from several pipelines by key and emits a tuple
// once every input has produced a value with the same key. Values of one
// key on one input are matched first-in first-out.
//
// Inputs are pulled round-robin. The pending set is bounded by MaxPending
// and MaxAge; when either bound is exceeded the oldest pending value is
// evicted, and on end of input every value still pending is evicted in
// arrival order.
func Join[T any, K comparable](cfg JoinConfig[T, K], pipelines ...*Pipeline[T]) *Pipeline[JoinResult[T, K]] {
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = DefaultMaxPending
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Pipeline[JoinResult[T, K]]{
		create: func(ctx context.Context) Iterator[JoinResult[T, K]] {
			iters := make([]Iterator[T], len(pipelines))
			live := make([]bool, len(pipelines))
			for i, p := range pipelines {
				iters[i] = p.create(ctx)
				live[i] = true
			}
			return &joinIter[T, K]{
				cfg:       cfg,
				iters:     iters,
				live:      live,
				remaining: len(iters),
				pending:   make(map[K][][]*joinPending[T]),
			}
		},
	}
}

type joinPending[T any] struct {
	val     T
	input   int
	arrived time.Time
	gone    bool
}

type joinRef[K comparable, T any] struct {
	key K
	p   *joinPending[T]
}

type joinIter[T any, K comparable] struct {
	cfg       JoinConfig[T, K]
	iters     []Iterator[T]
	live      []bool
	remaining int
	next      int

	pending map[K][][]*joinPending[T] // per key, one FIFO per input
	order   []joinRef[K, T]           // arrival order, may hold matched entries
	head    int
	count   int

	ready []JoinResult[T, K]
}

func (it *joinIter[T, K]) Next(ctx context.Context) (JoinResult[T, K], bool, error) {
	var zero JoinResult[T, K]
	for {
		if len(it.ready) > 0 {
			r := it.ready[0]
			it.ready[0] = zero
			it.ready = it.ready[1:]
			return r, true, nil
		}
		if it.remaining == 0 {
			if it.count == 0 {
				return zero, false, nil
			}
			for it.count > 0 {
				it.evictOldest()
			}
			continue
		}

		if err := it.pull(ctx); err != nil {
			return zero, false, err
		}
		it.enforceBounds()
	}
}

// pull reads one value from the next live input.
func (it *joinIter[T, K]) pull(ctx context.Context) error {
	for it.remaining > 0 {
		i := it.next
		it.next = (it.next + 1) % len(it.iters)
		if !it.live[i] {
			continue
		}
		val, ok, err := it.iters[i].Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			it.live[i] = false
			it.remaining--
			continue
		}
		it.add(i, val)
		return nil
	}
	return nil
}

func (it *joinIter[T, K]) add(input int, val T) {
	key := it.cfg.Key(val)
	queues := it.pending[key]
	if queues == nil {
		queues = make([][]*joinPending[T], len(it.iters))
		it.pending[key] = queues
	}
	p := &joinPending[T]{val: val, input: input, arrived: it.cfg.Now()}
	queues[input] = append(queues[input], p)
	it.order = append(it.order, joinRef[K, T]{key: key, p: p})
	it.count++

	for _, q := range queues {
		if len(q) == 0 {
			return
		}
	}

	values := make([]T, len(queues))
	for i, q := range queues {
		values[i] = q[0].val
		q[0].gone = true
		queues[i] = q[1:]
		it.count--
	}
	it.dropIfEmpty(key, queues)
	it.ready = append(it.ready, JoinResult[T, K]{Key: key, Values: values, Matched: true, Input: -1})
	it.compact()
}

func (it *joinIter[T, K]) enforceBounds() {
	for it.count > it.cfg.MaxPending {
		it.evictOldest()
	}
	if it.cfg.MaxAge <= 0 {
		return
	}
	cutoff := it.cfg.Now().Add(-it.cfg.MaxAge)
	for it.count > 0 {
		ref := it.oldest()
		if !ref.p.arrived.Before(cutoff) {
			return
		}
		it.evictOldest()
	}
}

// oldest skips matched entries at the head of the arrival order and
// returns the oldest value still pending. Callers ensure count > 0.
func (it *joinIter[T, K]) oldest() joinRef[K, T] {
	for it.order[it.head].p.gone {
		it.order[it.head] = joinRef[K, T]{}
		it.head++
	}
	return it.order[it.head]
}

func (it *joinIter[T, K]) evictOldest() {
	ref := it.oldest()
	it.order[it.head] = joinRef[K, T]{}
	it.head++

	queues := it.pending[ref.key]
	q := queues[ref.p.input]
	// Per-key queues are FIFO, so the oldest pending value heads its queue.
	queues[ref.p.input] = q[1:]
	ref.p.gone = true
	it.count--
	it.dropIfEmpty(ref.key, queues)

	if it.cfg.Unmatched == UnmatchedEmit {
		values := make([]T, len(it.iters))
		values[ref.p.input] = ref.p.val
		it.ready = append(it.ready, JoinResult[T, K]{Key: ref.key, Values: values, Input: ref.p.input})
	}
	it.compact()
}

func (it *joinIter[T, K]) dropIfEmpty(key K, queues [][]*joinPending[T]) {
	for _, q := range queues {
		if len(q) > 0 {
			return
		}
	}
	delete(it.pending, key)
}

// compact reclaims the consumed prefix and matched entries of the arrival
// order once they outnumber the live entries.
func (it *joinIter[T, K]) compact() {
	if len(it.order) < 64 || len(it.order) < 2*(it.count+1) {
		return
	}
	kept := it.order[:0]
	for _, ref := range it.order[it.head:] {
		if !ref.p.gone {
			kept = append(kept, ref)
		}
	}
	clear(it.order[len(kept):])
	it.order = kept
	it.head = 0
}

func (it *joinIter[T, K]) Close() error { return closeAll(it.iters) }
