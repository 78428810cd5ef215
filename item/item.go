package item

import (
	"context"
	"fmt"
	"image"
	"maps"
	"slices"
	"sync"
)

// Kind distinguishes photos from the composites built by merge stages.
type Kind int

const (
	// KindPhoto is a single source file.
	KindPhoto Kind = iota
	// KindBatch is a window of consecutive items.
	KindBatch
	// KindJoined is a complete join tuple, one member per input.
	KindJoined
	// KindUnmatched is a single item evicted from a join before its tuple completed.
	KindUnmatched
)

func (k Kind) String() string {
	switch k {
	case KindPhoto:
		return "photo"
	case KindBatch:
		return "batch"
	case KindJoined:
		return "joined"
	case KindUnmatched:
		return "unmatched"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// SourceStage is the first provenance entry of every photo.
const SourceStage = "source"

// Metadata keys written by the built-in stages.
const (
	MetaWidth        = "width"
	MetaHeight       = "height"
	MetaFormat       = "format"
	MetaDateTaken    = "date_taken"
	MetaResized      = "resized"
	MetaOriginalSize = "original_size"
	MetaOutputPath   = "output_path"
	MetaJoinKey      = "join_key"
	MetaJoinInput    = "join_input"
)

// Loader reads the raw bytes of a source reference.
type Loader func(ctx context.Context, source string) ([]byte, error)

// Decoder turns raw bytes into pixels.
type Decoder func(data []byte) (image.Image, error)

// Item is a photo or a composite of photos.
type Item struct {
	source     string
	kind       Kind
	metadata   map[string]any
	provenance []string
	members    []*Item

	mu       sync.Mutex
	load     Loader
	decode   Decoder
	data     []byte
	img      image.Image
	modified bool
}

// New creates a photo item for source. Its provenance starts as ["source"].
func New(source string, load Loader, decode Decoder) *Item {
	return &Item{
		source:     source,
		kind:       KindPhoto,
		metadata:   make(map[string]any),
		provenance: []string{SourceStage},
		load:       load,
		decode:     decode,
	}
}

// NewBatch creates a batch produced by stage. Members keep their provenance
// and the batch's own provenance is [stage].
func NewBatch(stage string, members []*Item) *Item {
	return newComposite(KindBatch, stage, "", members)
}

// NewJoined creates a complete join tuple; members are ordered by input.
func NewJoined(stage, key string, members []*Item) *Item {
	it := newComposite(KindJoined, stage, key, members)
	it.metadata[MetaJoinKey] = key
	return it
}

// NewUnmatched wraps an item a join evicted before its tuple completed.
func NewUnmatched(stage, key string, input int, member *Item) *Item {
	it := newComposite(KindUnmatched, stage, key, []*Item{member})
	it.metadata[MetaJoinKey] = key
	it.metadata[MetaJoinInput] = input
	return it
}

func newComposite(kind Kind, stage, key string, members []*Item) *Item {
	source := fmt.Sprintf("%s:%s[%d]", stage, kind, len(members))
	if key != "" {
		source = fmt.Sprintf("%s:%s[%s]", stage, kind, key)
	}
	return &Item{
		source:     source,
		kind:       kind,
		metadata:   make(map[string]any),
		provenance: []string{stage},
		members:    members,
	}
}

// Source returns the origin reference: the slash-separated path relative
// to the input root for photos, a descriptive label for composites.
func (it *Item) Source() string { return it.source }

// Kind returns the item kind.
func (it *Item) Kind() Kind { return it.kind }

// IsComposite reports whether the item owns constituent items.
func (it *Item) IsComposite() bool { return it.kind != KindPhoto }

// Members returns the constituents of a composite in order.
func (it *Item) Members() []*Item { return it.members }

// SetMembers replaces the constituents of a composite.
func (it *Item) SetMembers(members []*Item) { it.members = members }

// Photos returns every photo reachable from the item, depth first. A
// photo returns itself.
func (it *Item) Photos() []*Item {
	if it.kind == KindPhoto {
		return []*Item{it}
	}
	var out []*Item
	for _, m := range it.members {
		out = append(out, m.Photos()...)
	}
	return out
}

// Get returns a metadata value.
func (it *Item) Get(key string) (any, bool) {
	v, ok := it.metadata[key]
	return v, ok
}

// Set adds or overwrites a metadata value.
func (it *Item) Set(key string, value any) { it.metadata[key] = value }

// Metadata returns a copy of the metadata.
func (it *Item) Metadata() map[string]any { return maps.Clone(it.metadata) }

// Provenance returns a copy of the stage names the item has passed through.
func (it *Item) Provenance() []string { return slices.Clone(it.provenance) }

// Visit appends stage to the provenance.
func (it *Item) Visit(stage string) { it.provenance = append(it.provenance, stage) }

// Bytes returns the raw content, reading it on first access.
func (it *Item) Bytes(ctx context.Context) ([]byte, error) {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.bytesLocked(ctx)
}

func (it *Item) bytesLocked(ctx context.Context) ([]byte, error) {
	if it.data != nil {
		return it.data, nil
	}
	if it.load == nil {
		return nil, fmt.Errorf("item %s has no content", it.source)
	}
	data, err := it.load(ctx, it.source)
	if err != nil {
		return nil, err
	}
	it.data = data
	return data, nil
}

// Image returns the decoded pixels, decoding on first access.
func (it *Item) Image(ctx context.Context) (image.Image, error) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.img != nil {
		return it.img, nil
	}
	if it.decode == nil {
		return nil, fmt.Errorf("item %s has no decoder", it.source)
	}
	data, err := it.bytesLocked(ctx)
	if err != nil {
		return nil, err
	}
	img, err := it.decode(data)
	if err != nil {
		return nil, err
	}
	it.img = img
	return img, nil
}

// SetImage replaces the pixels. The raw bytes no longer describe the item,
// so writers must encode the image instead of copying the source file.
// Images are treated as immutable: stages produce new images rather than
// drawing into the one they received.
func (it *Item) SetImage(img image.Image) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.img = img
	it.modified = true
}

// Modified reports whether the pixels were replaced by a stage.
func (it *Item) Modified() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.modified
}

// Loaded reports whether raw bytes or pixels are currently held.
func (it *Item) Loaded() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.data != nil || it.img != nil
}

// Release drops cached content to bound memory; a later access reads the
// source again. Replaced pixels are kept since they cannot be reloaded.
// Composites release every member.
func (it *Item) Release() {
	for _, m := range it.members {
		m.Release()
	}
	it.mu.Lock()
	defer it.mu.Unlock()
	it.data = nil
	if !it.modified {
		it.img = nil
	}
}

// Clone returns an independent handle on the same logical item: metadata,
// provenance and members are copied, so changes made through one handle
// are not visible through the other. Loaded content is shared read-only.
func (it *Item) Clone() *Item {
	it.mu.Lock()
	defer it.mu.Unlock()
	c := &Item{
		source:     it.source,
		kind:       it.kind,
		metadata:   maps.Clone(it.metadata),
		provenance: slices.Clone(it.provenance),
		load:       it.load,
		decode:     it.decode,
		data:       it.data,
		img:        it.img,
		modified:   it.modified,
	}
	if it.members != nil {
		c.members = make([]*Item, len(it.members))
		for i, m := range it.members {
			c.members[i] = m.Clone()
		}
	}
	return c
}

func (it *Item) String() string {
	return fmt.Sprintf("%s(%s)", it.kind, it.source)
}
