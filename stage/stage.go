package stage

import (
	"context"
	"image"

	"github.com/kbukum/photoflow/item"
	"github.com/kbukum/photoflow/pipeline"
)

// Stream is a lazy sequence of items.
type Stream = *pipeline.Pipeline[*item.Item]

// Stage is a named filter plus transform.
type Stage interface {
	Name() string
	// Filter reports whether the item belongs to this stage. It must not
	// have observable side effects beyond loading the item's content.
	Filter(ctx context.Context, it *item.Item) (bool, error)
	// Map transforms an accepted item. It is never called for rejected
	// items. The engine records the stage in the provenance afterwards.
	Map(ctx context.Context, it *item.Item) (*item.Item, error)
}

// Source produces the initial stream of a pipeline.
type Source interface {
	Name() string
	Items() Stream
}

// Sink consumes items for their side effect and produces nothing.
type Sink interface {
	Name() string
	Consume(ctx context.Context, it *item.Item) error
}

// MergeStage combines several input streams into one.
type MergeStage interface {
	Name() string
	Merge(inputs []Stream) Stream
}

// FormatDecoder is a stage that can decode files the source does not
// recognize natively. When it directly follows the source, the source
// also yields files with these extensions and decodes them with Decode.
type FormatDecoder interface {
	Stage
	Extensions() []string
	Decode(data []byte) (image.Image, error)
}

// FormatAcceptor is a source that can be taught extra formats.
type FormatAcceptor interface {
	Accept(d FormatDecoder)
}

// Func adapts plain functions to Stage. A nil filter accepts every item and
// a nil mapper returns the item unchanged.
type Func struct {
	StageName string
	FilterFn  func(ctx context.Context, it *item.Item) (bool, error)
	MapFn     func(ctx context.Context, it *item.Item) (*item.Item, error)
}

// NewFilter returns a pure filter stage.
func NewFilter(name string, fn func(ctx context.Context, it *item.Item) (bool, error)) *Func {
	return &Func{StageName: name, FilterFn: fn}
}

// NewMap returns a stage that accepts every item and transforms it.
func NewMap(name string, fn func(ctx context.Context, it *item.Item) (*item.Item, error)) *Func {
	return &Func{StageName: name, MapFn: fn}
}

func (f *Func) Name() string { return f.StageName }

func (f *Func) Filter(ctx context.Context, it *item.Item) (bool, error) {
	if f.FilterFn == nil {
		return true, nil
	}
	return f.FilterFn(ctx, it)
}

func (f *Func) Map(ctx context.Context, it *item.Item) (*item.Item, error) {
	if f.MapFn == nil {
		return it, nil
	}
	return f.MapFn(ctx, it)
}
