package pipeline

import (
	"context"
	"sync"
)

// Tee splits p into k pipelines that each yield every value of p, in the
// same order. See TeeWith.
func Tee[T any](p *Pipeline[T], k int) []*Pipeline[T] {
	return TeeWith(p, k, nil)
}

// TeeWith splits p into k branches with independent read cursors. The
// upstream is opened once, by the first branch to be iterated, and pulled
// on behalf of whichever branch is furthest ahead.
//
// A value stays buffered only while an open branch has not read it yet, so
// memory is bounded by the lag between the fastest and the slowest branch.
// Closing a branch stops it from holding values back; closing the last
// branch closes the upstream.
//
// When clone is non-nil every branch receives its own copy, except the
// last reader of a value, which receives the buffered original. Branches
// are safe to pull from separate goroutines; cursor moves and upstream
// pulls are serialized.
//
// Branch pipelines are single-pass: iterating a branch twice continues
// from its current cursor.
func TeeWith[T any](p *Pipeline[T], k int, clone func(T) T) []*Pipeline[T] {
	if k <= 0 {
		return nil
	}
	sh := &teeShared[T]{
		src:     p,
		clone:   clone,
		cursors: make([]int, k),
		open:    make([]bool, k),
		failed:  make([]bool, k),
		openN:   k,
	}
	for i := range sh.open {
		sh.open[i] = true
	}

	branches := make([]*Pipeline[T], k)
	for i := range branches {
		idx := i
		branches[i] = &Pipeline[T]{
			create: func(ctx context.Context) Iterator[T] {
				sh.attach(ctx)
				return &teeIter[T]{shared: sh, idx: idx}
			},
		}
	}
	return branches
}

type teeShared[T any] struct {
	mu      sync.Mutex
	src     *Pipeline[T]
	source  Iterator[T]
	clone   func(T) T
	buf     []T
	base    int   // sequence number of buf[0]
	cursors []int // next sequence number to read, per branch
	open    []bool
	failed  []bool // branch already received the upstream error
	openN   int
	done    bool
	err     error
}

func (sh *teeShared[T]) attach(ctx context.Context) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sh.source == nil {
		sh.source = sh.src.create(ctx)
	}
}

func (sh *teeShared[T]) next(ctx context.Context, idx int) (T, bool, error) {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	var zero T
	if !sh.open[idx] {
		return zero, false, nil
	}

	seq := sh.cursors[idx]
	if seq < sh.base+len(sh.buf) {
		return sh.deliver(idx, seq), true, nil
	}

	if sh.done {
		if sh.err != nil && !sh.failed[idx] {
			sh.failed[idx] = true
			return zero, false, sh.err
		}
		return zero, false, nil
	}

	val, ok, err := sh.source.Next(ctx)
	if err != nil {
		sh.done, sh.err = true, err
		sh.failed[idx] = true
		return zero, false, err
	}
	if !ok {
		sh.done = true
		return zero, false, nil
	}
	sh.buf = append(sh.buf, val)
	return sh.deliver(idx, seq), true, nil
}

// deliver advances the branch cursor past seq and returns its value,
// handing out the original when no other open branch still needs it.
func (sh *teeShared[T]) deliver(idx, seq int) T {
	val := sh.buf[seq-sh.base]
	sh.cursors[idx] = seq + 1
	released := sh.trim()
	if sh.clone != nil && seq >= released {
		return sh.clone(val)
	}
	return val
}

// trim drops every buffered value that all open branches have read and
// returns the new base sequence number.
func (sh *teeShared[T]) trim() int {
	low := sh.base + len(sh.buf)
	for i, open := range sh.open {
		if open && sh.cursors[i] < low {
			low = sh.cursors[i]
		}
	}
	if drop := low - sh.base; drop > 0 {
		clear(sh.buf[:drop])
		sh.buf = sh.buf[drop:]
		sh.base = low
	}
	return sh.base
}

func (sh *teeShared[T]) close(idx int) error {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if !sh.open[idx] {
		return nil
	}
	sh.open[idx] = false
	sh.openN--
	sh.trim()
	if sh.openN == 0 && sh.source != nil {
		return sh.source.Close()
	}
	return nil
}

// buffered reports how many values are currently held for lagging branches.
func (sh *teeShared[T]) buffered() int {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return len(sh.buf)
}

type teeIter[T any] struct {
	shared *teeShared[T]
	idx    int
}

func (it *teeIter[T]) Next(ctx context.Context) (T, bool, error) {
	return it.shared.next(ctx, it.idx)
}

func (it *teeIter[T]) Close() error { return it.shared.close(it.idx) }
