package ingest

import (
	"bytes"
	"context"
	"fmt"

	"github.com/kbukum/photoflow/errors"
	"github.com/kbukum/photoflow/item"
	"github.com/kbukum/photoflow/media"
	"github.com/kbukum/photoflow/observability"
	"github.com/kbukum/photoflow/resilience"
	"github.com/kbukum/photoflow/storage"
)

// StageOutput is the name of the Output sink.
const StageOutput = "output"

// Output writes photos to a destination under the same relative path they
// had under the input root. Photos whose long edge already fits the bound
// and whose pixels no stage replaced are copied byte for byte; all others
// are decoded, fitted and re-encoded in the format of their extension.
type Output struct {
	store       storage.Storage
	destination string
	maxLongEdge int
	metrics     *observability.PipelineMetrics
	retry       resilience.RetryConfig
}

// OutputOption configures an Output.
type OutputOption func(*Output)

// WithRetry retries failed uploads while the destination still answers.
func WithRetry(cfg resilience.RetryConfig) OutputOption {
	return func(o *Output) { o.retry = cfg }
}

// NewOutput creates the sink. destination names the root in faults.
// Without WithRetry every upload is attempted once.
func NewOutput(store storage.Storage, destination string, maxLongEdge int, metrics *observability.PipelineMetrics, opts ...OutputOption) *Output {
	if maxLongEdge <= 0 {
		maxLongEdge = media.DefaultMaxLongEdge
	}
	o := &Output{store: store, destination: destination, maxLongEdge: maxLongEdge, metrics: metrics}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Output) Name() string { return StageOutput }

// Consume writes it and releases its content. A failed write is an item
// fault, unless the destination root itself no longer answers, which
// aborts the run.
func (o *Output) Consume(ctx context.Context, it *item.Item) error {
	dest := it.Source()
	ctx, op := observability.StartWrite(ctx, it.Source(), dest, o.metrics)

	data, w, h, resized, err := o.render(ctx, it)
	if err != nil {
		op.End(ctx, 0, err)
		return err
	}

	err = resilience.Retry(ctx, o.retry, func(ctx context.Context, _ int) error {
		if err := o.store.Upload(ctx, dest, bytes.NewReader(data)); err != nil {
			if perr := o.store.Ping(ctx); perr != nil {
				return resilience.Permanent(errors.OutputUnavailable(o.destination, perr))
			}
			return err
		}
		return nil
	})
	op.End(ctx, int64(len(data)), err)
	if err != nil {
		if errors.IsSystemic(err) {
			return err
		}
		return errors.Write(dest, err)
	}

	it.Set(item.MetaResized, resized)
	it.Set(item.MetaOriginalSize, [2]int{w, h})
	it.Set(item.MetaOutputPath, dest)
	it.Release()
	return nil
}

// render returns the bytes to write plus the source dimensions.
func (o *Output) render(ctx context.Context, it *item.Item) ([]byte, int, int, bool, error) {
	if !it.Modified() {
		data, err := it.Bytes(ctx)
		if err != nil {
			return nil, 0, 0, false, err
		}
		if w, h, err := media.Dimensions(data); err == nil && media.Within(w, h, o.maxLongEdge) {
			return data, w, h, false, nil
		}
	}

	img, err := it.Image(ctx)
	if err != nil {
		return nil, 0, 0, false, errors.Decode(it.Source(), err)
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	fitted, resized := media.Fit(img, o.maxLongEdge)
	if !media.CanEncode(it.Source()) {
		return nil, w, h, false, errors.Write(it.Source(),
			fmt.Errorf("no encoder for %s", media.Ext(it.Source())))
	}
	var buf bytes.Buffer
	if err := media.Encode(&buf, fitted, it.Source()); err != nil {
		return nil, w, h, false, errors.Write(it.Source(), err)
	}
	return buf.Bytes(), w, h, resized, nil
}
