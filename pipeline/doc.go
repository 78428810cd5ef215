// Package pipeline provides lazy, pull-based sequences and the operators
// photoflow builds stream topologies from.
//
// A Pipeline describes how to open an Iterator; nothing is pulled until
// Iter, Collect or ForEach opens it. Each operator pulls from its input on
// demand, so a linear chain runs on the caller's goroutine in input order.
//
// # Operators
//
//   - Map, Tap: per-value transform and side effect
//   - TakeUntil: report end of stream once a done channel is closed
//   - Concat: exhaust inputs one after another, in declared order
//   - Interleave: round-robin over inputs, skipping exhausted ones
//   - Batch, BatchWith: group values by size, age or a split boundary
//   - Join: match values across inputs by key, with a bounded pending set
//   - Tee, TeeWith: hand one pipeline to k independently paced consumers;
//     a value is held only until every open branch has read it
//   - Buffer: run a pipeline ahead of its consumer in its own goroutine
//
// # Usage
//
//	src := pipeline.FromSlice([]int{1, 2, 3, 4, 5})
//	branches := pipeline.Tee(src, 2)
//	squares := pipeline.Map(branches[0], func(_ context.Context, n int) (int, error) { return n * n, nil })
//	all := pipeline.Concat(squares, branches[1])
//	results, _ := pipeline.Collect(ctx, all)
package pipeline
