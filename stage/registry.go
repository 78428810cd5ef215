package stage

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/kbukum/photoflow/errors"
)

// DefaultBatchSize is the window size used when none is configured.
const DefaultBatchSize = 10

// Constructor builds a stage instance.
type Constructor func() (Stage, error)

// MergeParams configures a merge stage. Zero fields take the registry
// defaults.
type MergeParams struct {
	Size       int
	Timeout    time.Duration
	GroupBy    string
	Key        string
	Unmatched  string
	MaxPending int
	MaxAge     time.Duration
}

// MergeConstructor builds a merge stage named name.
type MergeConstructor func(name string, params MergeParams) (MergeStage, error)

// Registry maps names to stage constructors and policies to merge
// constructors. It is built once at startup and passed to the topology
// builder; there is no package-level registry.
type Registry struct {
	stages   map[string]Constructor
	merges   map[string]MergeConstructor
	defaults MergeParams
}

// NewRegistry creates a registry holding the built-in merge policies.
func NewRegistry() *Registry {
	r := &Registry{
		stages:   make(map[string]Constructor),
		merges:   make(map[string]MergeConstructor),
		defaults: MergeParams{Size: DefaultBatchSize, Key: "stem"},
	}
	r.RegisterMerge(MergeConcat, func(name string, _ MergeParams) (MergeStage, error) {
		return &Concat{StageName: name}, nil
	})
	r.RegisterMerge(MergeInterleave, func(name string, _ MergeParams) (MergeStage, error) {
		return &Interleave{StageName: name}, nil
	})
	r.RegisterMerge(MergeBatch, newBatch)
	r.RegisterMerge(MergeJoin, newJoin)
	return r
}

// Register associates name with a stage constructor, replacing any
// previous entry.
func (r *Registry) Register(name string, c Constructor) {
	r.stages[name] = c
}

// RegisterMerge associates a merge policy with a constructor.
func (r *Registry) RegisterMerge(policy string, c MergeConstructor) {
	r.merges[policy] = c
}

// SetDefaults replaces the merge defaults.
func (r *Registry) SetDefaults(p MergeParams) { r.defaults = p }

// Defaults returns the merge defaults.
func (r *Registry) Defaults() MergeParams { return r.defaults }

// Has reports whether a stage is registered under name.
func (r *Registry) Has(name string) bool {
	_, ok := r.stages[name]
	return ok
}

// HasMerge reports whether policy is a known merge policy.
func (r *Registry) HasMerge(policy string) bool {
	_, ok := r.merges[policy]
	return ok
}

// Names returns the registered stage names, sorted.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.stages))
}

// Policies returns the registered merge policies, sorted.
func (r *Registry) Policies() []string {
	return slices.Sorted(maps.Keys(r.merges))
}

// Stage constructs the stage registered under name.
func (r *Registry) Stage(name string) (Stage, error) {
	c, ok := r.stages[name]
	if !ok {
		return nil, errors.UnknownStage(name)
	}
	s, err := c()
	if err != nil {
		return nil, errors.ConfigFault(fmt.Sprintf("cannot construct stage %q", name)).WithCause(err)
	}
	return s, nil
}

// Resolve constructs every named stage, failing on the first unknown name
// before any is used.
func (r *Registry) Resolve(names []string) ([]Stage, error) {
	for _, name := range names {
		if !r.Has(name) {
			return nil, errors.UnknownStage(name)
		}
	}
	stages := make([]Stage, 0, len(names))
	for _, name := range names {
		s, err := r.Stage(name)
		if err != nil {
			return nil, err
		}
		stages = append(stages, s)
	}
	return stages, nil
}

// Merge constructs a merge stage of the given policy.
func (r *Registry) Merge(policy, name string, params MergeParams) (MergeStage, error) {
	c, ok := r.merges[policy]
	if !ok {
		return nil, errors.ConfigFault(fmt.Sprintf("unknown merge policy %q", policy)).
			WithDetail("policy", policy)
	}
	return c(name, r.withDefaults(params))
}

func (r *Registry) withDefaults(p MergeParams) MergeParams {
	if p.Size == 0 {
		p.Size = r.defaults.Size
	}
	if p.Timeout == 0 {
		p.Timeout = r.defaults.Timeout
	}
	if p.Key == "" {
		p.Key = r.defaults.Key
	}
	if p.Unmatched == "" {
		p.Unmatched = r.defaults.Unmatched
	}
	if p.MaxPending == 0 {
		p.MaxPending = r.defaults.MaxPending
	}
	if p.MaxAge == 0 {
		p.MaxAge = r.defaults.MaxAge
	}
	return p
}

func newBatch(name string, p MergeParams) (MergeStage, error) {
	if p.Size <= 0 {
		return nil, errors.InvalidArgument("size", fmt.Sprintf("window size must be positive, got %d", p.Size))
	}
	if p.Timeout < 0 {
		return nil, errors.InvalidArgument("timeout", "must not be negative")
	}
	b := &Batch{StageName: name, Size: p.Size, Timeout: p.Timeout}
	if p.GroupBy != "" {
		fn, err := LookupKey(p.GroupBy)
		if err != nil {
			return nil, err
		}
		b.GroupBy = fn
	}
	return b, nil
}

func newJoin(name string, p MergeParams) (MergeStage, error) {
	key, err := LookupKey(p.Key)
	if err != nil {
		return nil, err
	}
	unmatched, err := ParseUnmatched(p.Unmatched)
	if err != nil {
		return nil, err
	}
	if p.MaxPending < 0 {
		return nil, errors.InvalidArgument("max_pending", "must not be negative")
	}
	if p.MaxAge < 0 {
		return nil, errors.InvalidArgument("max_age", "must not be negative")
	}
	return &Join{
		StageName:  name,
		Key:        key,
		MaxPending: p.MaxPending,
		MaxAge:     p.MaxAge,
		Unmatched:  unmatched,
	}, nil
}
