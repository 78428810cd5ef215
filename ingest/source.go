package ingest

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/kbukum/photoflow/errors"
	"github.com/kbukum/photoflow/item"
	"github.com/kbukum/photoflow/logger"
	"github.com/kbukum/photoflow/media"
	"github.com/kbukum/photoflow/pipeline"
	"github.com/kbukum/photoflow/stage"
)

// Source walks an input root depth first in lexicographic order and yields
// one item per recognized file. Nothing is read until the first pull.
type Source struct {
	root   string
	extra  map[string]item.Decoder
	log    *logger.Logger
	report *stage.Report
}

// NewSource creates a source rooted at root.
func NewSource(root string, log *logger.Logger, report *stage.Report) *Source {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Source{
		root:   root,
		extra:  make(map[string]item.Decoder),
		log:    log.WithComponent("source"),
		report: report,
	}
}

// Name returns "source".
func (s *Source) Name() string { return item.SourceStage }

// Root returns the input root.
func (s *Source) Root() string { return s.root }

// Accept makes the source yield files with the extensions d declares,
// decoded by d.
func (s *Source) Accept(d stage.FormatDecoder) {
	for _, ext := range d.Extensions() {
		s.extra[media.Ext(ext)] = d.Decode
	}
}

// Items returns the lazy item stream. Each iteration walks the root anew.
func (s *Source) Items() stage.Stream {
	return pipeline.FromFunc(func(context.Context) pipeline.Iterator[*item.Item] {
		return &walker{src: s}
	})
}

func (s *Source) decoderFor(name string) (item.Decoder, bool) {
	if media.IsNative(name) {
		return media.Decode, true
	}
	d, ok := s.extra[media.Ext(name)]
	return d, ok
}

func (s *Source) load(_ context.Context, source string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.root, filepath.FromSlash(source)))
}

type frame struct {
	dir     string
	entries []fs.DirEntry
	next    int
}

type walker struct {
	src     *Source
	started bool
	stack   []*frame
}

func (w *walker) Next(ctx context.Context) (*item.Item, bool, error) {
	if !w.started {
		w.started = true
		entries, err := os.ReadDir(w.src.root)
		if err != nil {
			return nil, false, errors.InputUnavailable(w.src.root, err)
		}
		w.stack = []*frame{{dir: ".", entries: entries}}
	}

	for len(w.stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		top := w.stack[len(w.stack)-1]
		if top.next >= len(top.entries) {
			w.stack = w.stack[:len(w.stack)-1]
			continue
		}
		entry := top.entries[top.next]
		top.next++
		rel := path.Join(top.dir, entry.Name())

		switch {
		case entry.IsDir():
			entries, err := os.ReadDir(filepath.Join(w.src.root, filepath.FromSlash(rel)))
			if err != nil {
				w.src.log.Warn("skipping unreadable directory", logger.Fields(
					logger.FieldPath, rel, logger.FieldError, err.Error()))
				continue
			}
			w.stack = append(w.stack, &frame{dir: rel, entries: entries})
		case entry.Type().IsRegular():
			decode, ok := w.src.decoderFor(entry.Name())
			if !ok {
				continue
			}
			w.src.report.AddProcessed()
			return item.New(rel, w.src.load, decode), true, nil
		}
	}
	return nil, false, nil
}

func (w *walker) Close() error {
	w.stack = nil
	return nil
}
