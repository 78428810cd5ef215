package stage

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/kbukum/photoflow/errors"
	"github.com/kbukum/photoflow/item"
	"github.com/kbukum/photoflow/pipeline"
)

// Built-in merge policies.
const (
	MergeConcat     = "concat"
	MergeInterleave = "interleave"
	MergeBatch      = "batch"
	MergeJoin       = "join"
)

// KeyFunc derives a grouping or correlation key from an item.
type KeyFunc func(*item.Item) string

// Built-in key functions, selected by name in topologies.
var keyFuncs = map[string]KeyFunc{
	// stem is the file name without directory and extension.
	"stem": func(it *item.Item) string {
		base := path.Base(firstSource(it))
		return strings.TrimSuffix(base, path.Ext(base))
	},
	// dir is the directory of the source relative to the input root.
	"dir": func(it *item.Item) string {
		return path.Dir(firstSource(it))
	},
	// source is the full relative path.
	"source": firstSource,
}

// LookupKey returns the key function registered under name.
func LookupKey(name string) (KeyFunc, error) {
	fn, ok := keyFuncs[name]
	if !ok {
		return nil, errors.InvalidArgument("key", "unknown key function "+name)
	}
	return fn, nil
}

func firstSource(it *item.Item) string {
	if photos := it.Photos(); len(photos) > 0 {
		return photos[0].Source()
	}
	return it.Source()
}

func visit(name string) func(context.Context, *item.Item) (*item.Item, error) {
	return func(_ context.Context, it *item.Item) (*item.Item, error) {
		it.Visit(name)
		return it, nil
	}
}

// Concat yields every item of its first input, then of the second, and so
// on. Items passing through record the merge in their provenance.
type Concat struct{ StageName string }

func (c *Concat) Name() string { return c.StageName }

func (c *Concat) Merge(inputs []Stream) Stream {
	return pipeline.Map(pipeline.Concat(inputs...), visit(c.StageName))
}

// Interleave pulls one item from each live input in turn and skips inputs
// that are exhausted.
type Interleave struct{ StageName string }

func (m *Interleave) Name() string { return m.StageName }

func (m *Interleave) Merge(inputs []Stream) Stream {
	return pipeline.Map(pipeline.Interleave(inputs...), visit(m.StageName))
}

// Batch windows the concatenation of its inputs into batch items of up to
// Size members. A window also closes after Timeout, or when GroupBy yields
// a different key than the previous item. The trailing partial window is
// always emitted.
type Batch struct {
	StageName string
	Size      int
	Timeout   time.Duration
	GroupBy   KeyFunc
}

func (b *Batch) Name() string { return b.StageName }

func (b *Batch) Merge(inputs []Stream) Stream {
	src := inputs[0]
	if len(inputs) > 1 {
		src = pipeline.Concat(inputs...)
	}
	opts := pipeline.BatchOptions[*item.Item]{Timeout: b.Timeout}
	if b.GroupBy != nil {
		key := b.GroupBy
		opts.Split = func(prev, next *item.Item) bool { return key(prev) != key(next) }
	}
	return pipeline.Map(pipeline.BatchWith(src, b.Size, opts),
		func(_ context.Context, group []*item.Item) (*item.Item, error) {
			return item.NewBatch(b.StageName, group), nil
		})
}

// Join correlates its inputs by Key and emits a joined item once every
// input has produced an item with that key. Items still waiting when
// MaxPending or MaxAge is exceeded, or when the inputs end, are evicted
// oldest first and emitted as unmatched items or dropped, per Unmatched.
type Join struct {
	StageName  string
	Key        KeyFunc
	MaxPending int
	MaxAge     time.Duration
	Unmatched  pipeline.UnmatchedPolicy
}

func (j *Join) Name() string { return j.StageName }

func (j *Join) Merge(inputs []Stream) Stream {
	joined := pipeline.Join(pipeline.JoinConfig[*item.Item, string]{
		Key:        j.Key,
		MaxPending: j.MaxPending,
		MaxAge:     j.MaxAge,
		Unmatched:  j.Unmatched,
	}, inputs...)
	return pipeline.Map(joined, func(_ context.Context, r pipeline.JoinResult[*item.Item, string]) (*item.Item, error) {
		if r.Matched {
			return item.NewJoined(j.StageName, r.Key, r.Values), nil
		}
		return item.NewUnmatched(j.StageName, r.Key, r.Input, r.Values[r.Input]), nil
	})
}

// ParseUnmatched parses "emit" or "drop". An empty string means emit.
func ParseUnmatched(s string) (pipeline.UnmatchedPolicy, error) {
	switch s {
	case "", "emit":
		return pipeline.UnmatchedEmit, nil
	case "drop":
		return pipeline.UnmatchedDrop, nil
	default:
		return pipeline.UnmatchedEmit, errors.InvalidArgument("unmatched", s+" is not emit or drop")
	}
}
