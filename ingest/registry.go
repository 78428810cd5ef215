package ingest

import (
	"time"

	"github.com/kbukum/photoflow/stage"
)

// Settings parameterizes the built-in stages.
type Settings struct {
	DateStart time.Time
	DateEnd   time.Time
	BatchSize int
}

// NewRegistry returns a registry holding the built-in stages and merges.
func NewRegistry(s Settings) *stage.Registry {
	r := stage.NewRegistry()
	r.Register(StageLandscape, func() (stage.Stage, error) { return NewLandscape(), nil })
	r.Register(StagePortrait, func() (stage.Stage, error) { return NewPortrait(), nil })
	r.Register(StageDate, func() (stage.Stage, error) { return NewDate(s.DateStart, s.DateEnd), nil })
	r.Register(StageDimensions, func() (stage.Stage, error) { return Dimensions{}, nil })
	r.Register(StageRelease, func() (stage.Stage, error) { return Release{}, nil })
	r.Register(StageExtraFormats, func() (stage.Stage, error) { return ExtraFormats{}, nil })

	if s.BatchSize > 0 {
		d := r.Defaults()
		d.Size = s.BatchSize
		r.SetDefaults(d)
	}
	return r
}
