package flow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/photoflow/errors"
	"github.com/kbukum/photoflow/ingest"
	"github.com/kbukum/photoflow/item"
	"github.com/kbukum/photoflow/logger"
	"github.com/kbukum/photoflow/media"
	"github.com/kbukum/photoflow/pipeline"
	"github.com/kbukum/photoflow/stage"
	"github.com/kbukum/photoflow/storage/local"
	"github.com/kbukum/photoflow/storage/memory"
	"github.com/kbukum/photoflow/testutil"
)

// photoTree writes 6 landscape and 4 portrait photos in nested folders.
func photoTree(t *testing.T) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	var wide []string
	for i := range 10 {
		rel := fmt.Sprintf("%d/%02d/img%d.png", 2020+i%2, i%3, i)
		data := testutil.PNG(t, 12, 8)
		if i%5 == 1 || i%5 == 3 {
			data = testutil.PNG(t, 8, 12)
		} else {
			wide = append(wide, rel)
		}
		testutil.WritePhoto(t, dir, rel, data)
	}
	slices.Sort(wide)
	return dir, wide
}

func engine(reg *stage.Registry, report *stage.Report, opts ...Option) *Engine {
	return New(reg, append([]Option{WithOptions(stage.Options{Log: logger.NewNop(), Report: report})}, opts...)...)
}

func TestRun_EndToEndLandscape(t *testing.T) {
	in, wide := photoTree(t)
	if len(wide) != 6 {
		t.Fatalf("fixture has %d landscape photos", len(wide))
	}
	outDir := t.TempDir()
	store, err := local.NewStorage(outDir)
	if err != nil {
		t.Fatal(err)
	}

	reg := registry()
	report := stage.NewReport()
	err = engine(reg, report).Run(context.Background(),
		Linear(reg, []string{"landscape"}),
		ingest.NewSource(in, logger.NewNop(), report),
		ingest.NewOutput(store, outDir, media.DefaultMaxLongEdge, nil))
	if err != nil {
		t.Fatal(err)
	}

	var written []string
	err = filepath.WalkDir(outDir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, _ := filepath.Rel(outDir, p)
		written = append(written, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	slices.Sort(written)
	if !reflect.DeepEqual(written, wide) {
		t.Errorf("written = %v, want %v", written, wide)
	}
	for _, rel := range wide {
		src, _ := os.ReadFile(filepath.Join(in, rel))
		dst, _ := os.ReadFile(filepath.Join(outDir, rel))
		if !reflect.DeepEqual(src, dst) {
			t.Errorf("%s was re-encoded", rel)
		}
	}
	s := report.Summary()
	if s.Processed != 10 || s.Written != 6 || s.Filtered != 4 || s.Failed != 0 {
		t.Errorf("summary = %+v", s)
	}
}

func TestRun_BranchAndMerge(t *testing.T) {
	in, _ := photoTree(t)
	spec, err := ParseSpec([]byte(`
streams:
  - name: wide
    from: source
    stages: [landscape]
  - name: tall
    from: source
    stages: [portrait]
  - name: all
    merge: {policy: interleave, inputs: [wide, tall]}
`))
	if err != nil {
		t.Fatal(err)
	}
	reg := registry()
	report := stage.NewReport()
	store := memory.New()
	err = engine(reg, report).Run(context.Background(), spec,
		ingest.NewSource(in, logger.NewNop(), report),
		ingest.NewOutput(store, "mem", media.DefaultMaxLongEdge, nil))
	if err != nil {
		t.Fatal(err)
	}
	if got := len(store.Paths()); got != 10 {
		t.Errorf("written %d photos, want 10", got)
	}
	if s := report.Summary(); s.Processed != 10 || s.Written != 10 {
		t.Errorf("summary = %+v", s)
	}
}

type recordingSink struct {
	mu    sync.Mutex
	paths []string
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Consume(_ context.Context, it *item.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, it.Source())
	return nil
}

func TestRun_BufferedBranchesKeepOrder(t *testing.T) {
	in, wide := photoTree(t)
	spec, err := ParseSpec([]byte(`
streams:
  - name: wide
    from: source
    stages: [landscape]
    buffer: 2
  - name: tall
    from: source
    stages: [portrait]
    buffer: 8
  - name: all
    merge: {policy: concat, inputs: [wide, tall]}
`))
	if err != nil {
		t.Fatal(err)
	}
	reg := registry()
	report := stage.NewReport()
	sink := &recordingSink{}
	err = engine(reg, report).Run(context.Background(), spec, ingest.NewSource(in, logger.NewNop(), report), sink)
	if err != nil {
		t.Fatal(err)
	}
	if len(sink.paths) != 10 {
		t.Fatalf("sink saw %d items, want 10", len(sink.paths))
	}
	if got := sink.paths[:len(wide)]; !reflect.DeepEqual(got, wide) {
		t.Errorf("wide prefix = %v, want %v", got, wide)
	}
}

func TestBuild_ProvenanceAcrossBranches(t *testing.T) {
	in, _ := photoTree(t)
	spec := &Spec{Streams: []StreamDef{
		{Name: "a", From: SourceStream, Stages: []string{"dimensions"}},
		{Name: "b", From: SourceStream, Stages: []string{"landscape"}},
		{Name: "all", Merge: &MergeDef{Policy: "concat", Inputs: []string{"a", "b"}}, Stages: []string{"release"}},
	}}
	out, err := engine(registry(), nil).Build(spec, ingest.NewSource(in, logger.NewNop(), nil))
	if err != nil {
		t.Fatal(err)
	}
	items, err := pipeline.Collect(context.Background(), out)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 16 {
		t.Fatalf("items = %d, want 10 + 6", len(items))
	}
	if got := items[0].Provenance(); !reflect.DeepEqual(got, []string{"source", "dimensions", "all", "release"}) {
		t.Errorf("first branch provenance = %v", got)
	}
	if got := items[15].Provenance(); !reflect.DeepEqual(got, []string{"source", "landscape", "all", "release"}) {
		t.Errorf("second branch provenance = %v", got)
	}
	if _, ok := items[15].Get(item.MetaFormat); ok {
		t.Error("metadata from branch a leaked into branch b")
	}
}

func TestRun_BatchedLinear(t *testing.T) {
	in, _ := photoTree(t)
	reg := registry()
	spec := Linear(reg, []string{"portrait", "batch"})
	out, err := engine(reg, nil).Build(spec, ingest.NewSource(in, logger.NewNop(), nil))
	if err != nil {
		t.Fatal(err)
	}
	batches, err := pipeline.Collect(context.Background(), out)
	if err != nil {
		t.Fatal(err)
	}
	var sizes []int
	for _, b := range batches {
		sizes = append(sizes, len(b.Members()))
	}
	if !reflect.DeepEqual(sizes, []int{3, 1}) {
		t.Errorf("batch sizes = %v", sizes)
	}
}

func TestRun_DatePrelude(t *testing.T) {
	dir := t.TempDir()
	june := time.Date(2023, 6, 10, 12, 0, 0, 0, time.UTC)
	testutil.WritePhoto(t, dir, "in.jpg", testutil.JPEG(t, 8, 4, testutil.WithDateTaken(june)))
	testutil.WritePhoto(t, dir, "out.jpg", testutil.JPEG(t, 8, 4, testutil.WithDateTaken(june.AddDate(1, 0, 0))))
	testutil.WritePhoto(t, dir, "none.jpg", testutil.JPEG(t, 8, 4))

	reg := ingest.NewRegistry(ingest.Settings{
		DateStart: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		DateEnd:   time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC),
	})
	spec := Linear(reg, []string{"landscape"})
	spec.Require(reg, "date")

	report := stage.NewReport()
	store := memory.New()
	err := engine(reg, report).Run(context.Background(), spec,
		ingest.NewSource(dir, logger.NewNop(), report),
		ingest.NewOutput(store, "mem", media.DefaultMaxLongEdge, nil))
	if err != nil {
		t.Fatal(err)
	}
	if got := store.Paths(); !reflect.DeepEqual(got, []string{"in.jpg"}) {
		t.Errorf("written = %v", got)
	}
	if s := report.Summary(); s.Failed != 1 || s.Faults[0].Source != "none.jpg" {
		t.Errorf("summary = %+v", s)
	}
}

func TestRun_ExtraFormats(t *testing.T) {
	dir := t.TempDir()
	bmp := testutil.BMP(t, 10, 6)
	testutil.WritePhoto(t, dir, "a.bmp", bmp)
	testutil.WritePhoto(t, dir, "b.png", testutil.PNG(t, 10, 6))

	for _, tt := range []struct {
		stages []string
		want   []string
	}{
		{[]string{"landscape"}, []string{"b.png"}},
		{[]string{"extra-formats", "landscape"}, []string{"a.bmp", "b.png"}},
	} {
		reg := registry()
		store := memory.New()
		err := engine(reg, nil).Run(context.Background(), Linear(reg, tt.stages),
			ingest.NewSource(dir, logger.NewNop(), nil),
			ingest.NewOutput(store, "mem", media.DefaultMaxLongEdge, nil))
		if err != nil {
			t.Fatal(err)
		}
		if got := store.Paths(); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%v: written = %v", tt.stages, got)
		}
	}
}

func TestRun_ConfigFaultBeforeIO(t *testing.T) {
	reg := registry()
	store := memory.New()
	err := engine(reg, nil).Run(context.Background(), Linear(reg, []string{"sepia"}),
		ingest.NewSource(filepath.Join(t.TempDir(), "absent"), logger.NewNop(), nil),
		ingest.NewOutput(store, "mem", media.DefaultMaxLongEdge, nil))
	if app, ok := errors.AsAppError(err); !ok || app.Code != errors.ErrCodeUnknownStage {
		t.Errorf("err = %v", err)
	}
}

func TestRun_SystemicFaults(t *testing.T) {
	t.Run("missing input", func(t *testing.T) {
		reg := registry()
		err := engine(reg, nil).Run(context.Background(), Linear(reg, nil),
			ingest.NewSource(filepath.Join(t.TempDir(), "absent"), logger.NewNop(), nil),
			ingest.NewOutput(memory.New(), "mem", media.DefaultMaxLongEdge, nil))
		if errors.ExitCode(err) != errors.ExitSystemic {
			t.Errorf("err = %v", err)
		}
	})
	t.Run("output gone", func(t *testing.T) {
		in, _ := photoTree(t)
		reg := registry()
		store := memory.New()
		store.SetUnavailable(true)
		err := engine(reg, nil).Run(context.Background(), Linear(reg, nil),
			ingest.NewSource(in, logger.NewNop(), nil),
			ingest.NewOutput(store, "mem", media.DefaultMaxLongEdge, nil))
		if app, ok := errors.AsAppError(err); !ok || app.Code != errors.ErrCodeOutputUnavailable {
			t.Errorf("err = %v", err)
		}
	})
}

func TestRun_StopFlushesOpenWindow(t *testing.T) {
	in, _ := photoTree(t)
	reg := registry()
	stop := make(chan struct{})
	report := stage.NewReport()

	// Stop after the fourth photo has left the source: the open window of
	// the batch merge still reaches the sink.
	spec := Linear(reg, []string{"batch"})
	seen := 0
	counter := stage.NewFilter("count", func(context.Context, *item.Item) (bool, error) {
		seen++
		if seen == 4 {
			close(stop)
		}
		return true, nil
	})
	reg.Register("count", func() (stage.Stage, error) { return counter, nil })
	spec.Prelude = []string{"count"}

	store := memory.New()
	err := engine(reg, report, WithStop(stop)).Run(context.Background(), spec,
		ingest.NewSource(in, logger.NewNop(), report),
		ingest.NewOutput(store, "mem", media.DefaultMaxLongEdge, nil))
	if err != nil {
		t.Fatal(err)
	}
	if got := len(store.Paths()); got != 4 {
		t.Errorf("written = %d, want 4", got)
	}
}
