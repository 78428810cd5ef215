package ingest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"time"

	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"

	"github.com/kbukum/photoflow/errors"
	"github.com/kbukum/photoflow/item"
	"github.com/kbukum/photoflow/media"
)

// Stage names.
const (
	StageLandscape    = "landscape"
	StagePortrait     = "portrait"
	StageDate         = "date"
	StageDimensions   = "dimensions"
	StageRelease      = "release"
	StageExtraFormats = "extra-formats"
)

// dimensions returns the displayed size of a photo, preferring values a
// previous stage recorded.
func dimensions(ctx context.Context, it *item.Item) (int, int, error) {
	if w, ok := it.Get(item.MetaWidth); ok {
		if h, ok := it.Get(item.MetaHeight); ok {
			return w.(int), h.(int), nil
		}
	}
	if it.Modified() {
		img, err := it.Image(ctx)
		if err != nil {
			return 0, 0, errors.Decode(it.Source(), err)
		}
		return img.Bounds().Dx(), img.Bounds().Dy(), nil
	}
	data, err := it.Bytes(ctx)
	if err != nil {
		return 0, 0, err
	}
	w, h, err := media.Dimensions(data)
	if err != nil {
		return 0, 0, errors.Decode(it.Source(), err)
	}
	return w, h, nil
}

func recordDimensions(ctx context.Context, it *item.Item) (*item.Item, error) {
	w, h, err := dimensions(ctx, it)
	if err != nil {
		return nil, err
	}
	it.Set(item.MetaWidth, w)
	it.Set(item.MetaHeight, h)
	return it, nil
}

// Orientation keeps photos whose aspect matches. Square photos match
// neither orientation.
type Orientation struct {
	name      string
	landscape bool
}

// NewLandscape keeps photos wider than tall.
func NewLandscape() *Orientation { return &Orientation{name: StageLandscape, landscape: true} }

// NewPortrait keeps photos taller than wide.
func NewPortrait() *Orientation { return &Orientation{name: StagePortrait} }

func (o *Orientation) Name() string { return o.name }

func (o *Orientation) Filter(ctx context.Context, it *item.Item) (bool, error) {
	w, h, err := dimensions(ctx, it)
	if err != nil {
		return false, err
	}
	if o.landscape {
		return w > h, nil
	}
	return h > w, nil
}

func (o *Orientation) Map(ctx context.Context, it *item.Item) (*item.Item, error) {
	return recordDimensions(ctx, it)
}

// Date keeps photos whose EXIF capture date lies in [Start, End]. End
// covers its whole day. A zero bound is open. Photos without a readable
// capture date fail with a metadata fault.
type Date struct {
	Start time.Time
	End   time.Time
}

// NewDate creates a date stage for the given calendar days.
func NewDate(start, end time.Time) *Date {
	return &Date{Start: start, End: end}
}

func (d *Date) Name() string { return StageDate }

func (d *Date) taken(ctx context.Context, it *item.Item) (time.Time, error) {
	if v, ok := it.Get(item.MetaDateTaken); ok {
		return v.(time.Time), nil
	}
	data, err := it.Bytes(ctx)
	if err != nil {
		return time.Time{}, err
	}
	t, err := media.DateTaken(data)
	if err != nil {
		return time.Time{}, errors.Metadata(it.Source(), err)
	}
	return t, nil
}

// Contains reports whether t lies in the range. Capture times carry no
// zone, so bounds compare on the wall clock.
func (d *Date) Contains(t time.Time) bool {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if !d.Start.IsZero() && day.Before(dayOf(d.Start)) {
		return false
	}
	if !d.End.IsZero() && day.After(dayOf(d.End)) {
		return false
	}
	return true
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (d *Date) Filter(ctx context.Context, it *item.Item) (bool, error) {
	t, err := d.taken(ctx, it)
	if err != nil {
		return false, err
	}
	return d.Contains(t), nil
}

func (d *Date) Map(ctx context.Context, it *item.Item) (*item.Item, error) {
	t, err := d.taken(ctx, it)
	if err != nil {
		return nil, err
	}
	it.Set(item.MetaDateTaken, t)
	return it, nil
}

// Dimensions records width, height and format of every photo.
type Dimensions struct{}

func (Dimensions) Name() string { return StageDimensions }

func (Dimensions) Filter(context.Context, *item.Item) (bool, error) { return true, nil }

func (Dimensions) Map(ctx context.Context, it *item.Item) (*item.Item, error) {
	if _, err := recordDimensions(ctx, it); err != nil {
		return nil, err
	}
	it.Set(item.MetaFormat, media.Ext(it.Source()))
	return it, nil
}

// Release drops cached content; the sink reads the file again.
type Release struct{}

func (Release) Name() string { return StageRelease }

func (Release) Filter(context.Context, *item.Item) (bool, error) { return true, nil }

func (Release) Map(_ context.Context, it *item.Item) (*item.Item, error) {
	it.Release()
	return it, nil
}

// ExtraFormats decodes formats outside the native set. Placed directly
// after the source, it makes the source yield such files.
type ExtraFormats struct{}

var extraDecoders = map[string]func([]byte) (image.Image, error){
	".bmp":  func(b []byte) (image.Image, error) { return bmp.Decode(bytes.NewReader(b)) },
	".webp": func(b []byte) (image.Image, error) { return webp.Decode(bytes.NewReader(b)) },
	".gif":  func(b []byte) (image.Image, error) { return gif.Decode(bytes.NewReader(b)) },
}

func (ExtraFormats) Name() string { return StageExtraFormats }

func (ExtraFormats) Extensions() []string { return []string{".bmp", ".gif", ".webp"} }

func (ExtraFormats) Decode(data []byte) (image.Image, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	dec, ok := extraDecoders["."+format]
	if !ok {
		return nil, fmt.Errorf("unsupported format %s", format)
	}
	return dec(data)
}

func (ExtraFormats) Filter(context.Context, *item.Item) (bool, error) { return true, nil }

func (ExtraFormats) Map(_ context.Context, it *item.Item) (*item.Item, error) {
	it.Set(item.MetaFormat, media.Ext(it.Source()))
	return it, nil
}
