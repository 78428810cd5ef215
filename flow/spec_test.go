package flow

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/kbukum/photoflow/errors"
	"github.com/kbukum/photoflow/ingest"
	"github.com/kbukum/photoflow/stage"
)

func registry() *stage.Registry {
	return ingest.NewRegistry(ingest.Settings{BatchSize: 3})
}

const branchYAML = `
prelude: [extra-formats]
streams:
  - name: wide
    from: source
    stages: [landscape]
  - name: tall
    from: source
    stages: [portrait, dimensions]
  - name: all
    merge:
      policy: batch
      inputs: [wide, tall]
      size: 4
      timeout: 2s
output: all
`

func TestParseSpec(t *testing.T) {
	spec, err := ParseSpec([]byte(branchYAML))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(spec.Prelude, []string{"extra-formats"}) || len(spec.Streams) != 3 {
		t.Fatalf("spec = %+v", spec)
	}
	m := spec.Streams[2].Merge
	if m.Policy != "batch" || *m.Size != 4 || m.Timeout != 2*time.Second {
		t.Errorf("merge = %+v", m)
	}
	if err := spec.Validate(registry()); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestParseSpec_RejectsUnknownKeys(t *testing.T) {
	_, err := ParseSpec([]byte("streams:\n  - name: a\n    form: source\n"))
	if !errors.IsConfig(err) {
		t.Errorf("err = %v", err)
	}
}

func TestLoadSpec(t *testing.T) {
	p := filepath.Join(t.TempDir(), "topology.yml")
	if err := os.WriteFile(p, []byte(branchYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSpec(p); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSpec(p + ".missing"); !errors.IsConfig(err) {
		t.Errorf("err = %v", err)
	}
}

func TestLinear(t *testing.T) {
	tests := []struct {
		name        string
		stages      []string
		wantPrelude []string
		wantStreams []StreamDef
	}{
		{
			name:        "empty",
			wantStreams: []StreamDef{{Name: "main", From: SourceStream}},
		},
		{
			name:        "plain",
			stages:      []string{"landscape", "dimensions"},
			wantStreams: []StreamDef{{Name: "main", From: SourceStream, Stages: []string{"landscape", "dimensions"}}},
		},
		{
			name:        "batched",
			stages:      []string{"extra-formats", "landscape", "batch", "dimensions"},
			wantPrelude: []string{"extra-formats"},
			wantStreams: []StreamDef{
				{Name: "main", From: SourceStream, Stages: []string{"landscape"}},
				{Name: "batch1", Merge: &MergeDef{Policy: "batch", Inputs: []string{"main"}}, Stages: []string{"dimensions"}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := Linear(registry(), tt.stages)
			if !reflect.DeepEqual(spec.Prelude, tt.wantPrelude) {
				t.Errorf("prelude = %v", spec.Prelude)
			}
			if !reflect.DeepEqual(spec.Streams, tt.wantStreams) {
				t.Errorf("streams = %+v", spec.Streams)
			}
			if err := spec.Validate(registry()); err != nil {
				t.Errorf("Validate: %v", err)
			}
		})
	}
}

func TestRequire(t *testing.T) {
	spec := Linear(registry(), []string{"extra-formats", "landscape"})
	spec.Require(registry(), "date")
	spec.Require(registry(), "date")
	if !reflect.DeepEqual(spec.Prelude, []string{"extra-formats", "date"}) {
		t.Errorf("prelude = %v", spec.Prelude)
	}
}

func TestValidate(t *testing.T) {
	zero := 0
	tests := []struct {
		name string
		spec Spec
		want errors.ErrorCode
	}{
		{"no streams", Spec{}, errors.ErrCodeInvalidArgument},
		{"unknown stage", Spec{Streams: []StreamDef{{Name: "a", From: "source", Stages: []string{"sepia"}}}}, errors.ErrCodeUnknownStage},
		{"unknown prelude stage", Spec{Prelude: []string{"sepia"}, Streams: []StreamDef{{Name: "a", From: "source"}}}, errors.ErrCodeUnknownStage},
		{"reserved name", Spec{Streams: []StreamDef{{Name: "source", From: "source"}}}, errors.ErrCodeInvalidArgument},
		{"duplicate", Spec{Streams: []StreamDef{{Name: "a", From: "source"}, {Name: "a", From: "source"}}}, errors.ErrCodeTopology},
		{"undeclared from", Spec{Streams: []StreamDef{{Name: "a", From: "b"}}}, errors.ErrCodeTopology},
		{"forward reference", Spec{Streams: []StreamDef{
			{Name: "a", Merge: &MergeDef{Policy: "concat", Inputs: []string{"b"}}},
			{Name: "b", From: "source"},
		}}, errors.ErrCodeTopology},
		{"from and merge", Spec{Streams: []StreamDef{{Name: "a", From: "source", Merge: &MergeDef{Policy: "concat", Inputs: []string{"source"}}}}}, errors.ErrCodeTopology},
		{"neither", Spec{Streams: []StreamDef{{Name: "a"}}}, errors.ErrCodeTopology},
		{"unknown policy", Spec{Streams: []StreamDef{{Name: "a", Merge: &MergeDef{Policy: "zip", Inputs: []string{"source"}}}}}, errors.ErrCodeConfigFault},
		{"zero window", Spec{Streams: []StreamDef{{Name: "a", Merge: &MergeDef{Policy: "batch", Inputs: []string{"source"}, Size: &zero}}}}, errors.ErrCodeInvalidArgument},
		{"no inputs", Spec{Streams: []StreamDef{{Name: "a", Merge: &MergeDef{Policy: "concat"}}}}, errors.ErrCodeInvalidArgument},
		{"bad unmatched", Spec{Streams: []StreamDef{{Name: "a", Merge: &MergeDef{Policy: "join", Inputs: []string{"source"}, Unmatched: "keep"}}}}, errors.ErrCodeInvalidArgument},
		{"unconsumed", Spec{Streams: []StreamDef{{Name: "a", From: "source"}, {Name: "b", From: "source"}}}, errors.ErrCodeTopology},
		{"negative buffer", Spec{Streams: []StreamDef{{Name: "a", From: "source", Buffer: -1}}}, errors.ErrCodeInvalidArgument},
		{"output undeclared", Spec{Output: "z", Streams: []StreamDef{{Name: "a", From: "source"}}}, errors.ErrCodeTopology},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate(registry())
			app, ok := errors.AsAppError(err)
			if !ok || app.Code != tt.want {
				t.Fatalf("err = %v, want %s", err, tt.want)
			}
			if !errors.IsConfig(err) {
				t.Errorf("%s must be a config fault", app.Code)
			}
		})
	}
}
