package flow

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/kbukum/photoflow/errors"
	"github.com/kbukum/photoflow/stage"
	"github.com/kbukum/photoflow/validation"
)

// SourceStream is the reserved name of the source stream.
const SourceStream = "source"

// Spec is a declared stream topology.
type Spec struct {
	// Prelude stages run on the source stream before any branch.
	Prelude []string `yaml:"prelude" mapstructure:"prelude"`
	// Streams in declaration order.
	Streams []StreamDef `yaml:"streams" mapstructure:"streams" validate:"required,min=1,dive"`
	// Output names the stream the sink consumes. Empty means the last stream.
	Output string `yaml:"output" mapstructure:"output"`
}

// StreamDef declares one stream.
type StreamDef struct {
	Name   string    `yaml:"name" mapstructure:"name" validate:"required,ne=source"`
	From   string    `yaml:"from" mapstructure:"from"`
	Merge  *MergeDef `yaml:"merge" mapstructure:"merge"`
	Stages []string  `yaml:"stages" mapstructure:"stages"`
	// Buffer lets the stream run up to this many items ahead of its
	// consumer in its own goroutine. Zero keeps it pull-driven.
	Buffer int `yaml:"buffer" mapstructure:"buffer" validate:"gte=0"`
}

// MergeDef declares a merge of earlier streams.
type MergeDef struct {
	Policy     string        `yaml:"policy" mapstructure:"policy" validate:"required"`
	Inputs     []string      `yaml:"inputs" mapstructure:"inputs" validate:"required,min=1"`
	Size       *int          `yaml:"size" mapstructure:"size" validate:"omitempty,gte=1"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`
	GroupBy    string        `yaml:"group_by" mapstructure:"group_by"`
	Key        string        `yaml:"key" mapstructure:"key"`
	Unmatched  string        `yaml:"unmatched" mapstructure:"unmatched" validate:"omitempty,oneof=emit drop"`
	MaxPending int           `yaml:"max_pending" mapstructure:"max_pending" validate:"gte=0"`
	MaxAge     time.Duration `yaml:"max_age" mapstructure:"max_age" validate:"gte=0"`
}

// Params converts the declaration to registry parameters.
func (m *MergeDef) Params() stage.MergeParams {
	p := stage.MergeParams{
		Timeout:    m.Timeout,
		GroupBy:    m.GroupBy,
		Key:        m.Key,
		Unmatched:  m.Unmatched,
		MaxPending: m.MaxPending,
		MaxAge:     m.MaxAge,
	}
	if m.Size != nil {
		p.Size = *m.Size
	}
	return p
}

// LoadSpec reads a YAML topology file.
func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ConfigFault(fmt.Sprintf("cannot read topology %s", path)).WithCause(err)
	}
	return ParseSpec(data)
}

// ParseSpec decodes a YAML topology. Unknown keys are rejected.
func ParseSpec(data []byte) (*Spec, error) {
	var spec Spec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, errors.ConfigFault("malformed topology").WithCause(err)
	}
	return &spec, nil
}

// Linear builds the topology of an ordered stage list. Each "batch" entry
// windows the stream at that point. Leading decode-capable stages move to
// the prelude so they directly follow the source.
func Linear(reg *stage.Registry, names []string) *Spec {
	spec := &Spec{}
	i := 0
	for ; i < len(names) && isDecoder(reg, names[i]); i++ {
		spec.Prelude = append(spec.Prelude, names[i])
	}

	current := StreamDef{Name: "main", From: SourceStream}
	n := 0
	for _, name := range names[i:] {
		if name != stage.MergeBatch {
			current.Stages = append(current.Stages, name)
			continue
		}
		spec.Streams = append(spec.Streams, current)
		n++
		current = StreamDef{
			Name:  fmt.Sprintf("batch%d", n),
			Merge: &MergeDef{Policy: stage.MergeBatch, Inputs: []string{current.Name}},
		}
	}
	spec.Streams = append(spec.Streams, current)
	return spec
}

// Require inserts name into the prelude, after any leading decode-capable
// stages, unless it is already there.
func (s *Spec) Require(reg *stage.Registry, name string) {
	if slices.Contains(s.Prelude, name) {
		return
	}
	i := 0
	for i < len(s.Prelude) && isDecoder(reg, s.Prelude[i]) {
		i++
	}
	s.Prelude = slices.Insert(s.Prelude, i, name)
}

// OutputStream returns the name of the stream the sink consumes.
func (s *Spec) OutputStream() string {
	if s.Output != "" || len(s.Streams) == 0 {
		return s.Output
	}
	return s.Streams[len(s.Streams)-1].Name
}

func isDecoder(reg *stage.Registry, name string) bool {
	if !reg.Has(name) {
		return false
	}
	s, err := reg.Stage(name)
	if err != nil {
		return false
	}
	_, ok := s.(stage.FormatDecoder)
	return ok
}

// Validate checks the topology against reg without touching any item:
// every stage and policy is known, stream names are unique, every
// reference points to an earlier stream, and every stream is consumed.
func (s *Spec) Validate(reg *stage.Registry) error {
	if err := validation.Validate(s); err != nil {
		return err
	}
	if _, err := reg.Resolve(s.Prelude); err != nil {
		return err
	}

	declared := map[string]bool{SourceStream: true}
	consumed := map[string]bool{}
	for _, st := range s.Streams {
		if declared[st.Name] {
			return errors.Topology(st.Name, "declared twice")
		}
		switch {
		case st.From != "" && st.Merge != nil:
			return errors.Topology(st.Name, "has both from and merge")
		case st.From == "" && st.Merge == nil:
			return errors.Topology(st.Name, "needs from or merge")
		case st.From != "":
			if !declared[st.From] {
				return errors.Topology(st.Name, fmt.Sprintf("reads undeclared stream %q", st.From))
			}
			consumed[st.From] = true
		default:
			for _, in := range st.Merge.Inputs {
				if !declared[in] {
					return errors.Topology(st.Name, fmt.Sprintf("merges undeclared stream %q", in))
				}
				consumed[in] = true
			}
			if _, err := reg.Merge(st.Merge.Policy, st.Name, st.Merge.Params()); err != nil {
				return err
			}
		}
		if _, err := reg.Resolve(st.Stages); err != nil {
			return err
		}
		declared[st.Name] = true
	}

	out := s.OutputStream()
	if !declared[out] || out == SourceStream {
		return errors.Topology(out, "output is not a declared stream")
	}
	consumed[out] = true
	for _, st := range s.Streams {
		if !consumed[st.Name] {
			return errors.Topology(st.Name, "is never consumed")
		}
	}
	return nil
}
