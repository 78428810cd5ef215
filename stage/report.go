package stage

import (
	"slices"
	"sync"

	"github.com/kbukum/photoflow/errors"
)

// Report accumulates the outcome of a run. A nil *Report records nothing.
type Report struct {
	mu        sync.Mutex
	processed int
	written   int
	filtered  int
	faults    []errors.FaultRecord
}

// Summary is a point-in-time copy of a Report.
type Summary struct {
	Processed int                  `json:"processed"`
	Written   int                  `json:"written"`
	Filtered  int                  `json:"filtered"`
	Failed    int                  `json:"failed"`
	Faults    []errors.FaultRecord `json:"faults,omitempty"`
}

// NewReport creates an empty report.
func NewReport() *Report { return &Report{} }

// AddProcessed counts an item produced by the source.
func (r *Report) AddProcessed() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.processed++
	r.mu.Unlock()
}

// AddWritten counts an item persisted by the sink.
func (r *Report) AddWritten() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.written++
	r.mu.Unlock()
}

// AddFiltered counts an item rejected by a stage filter.
func (r *Report) AddFiltered() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.filtered++
	r.mu.Unlock()
}

// AddFault records a dropped item.
func (r *Report) AddFault(rec errors.FaultRecord) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.faults = append(r.faults, rec)
	r.mu.Unlock()
}

// Summary returns the current counts.
func (r *Report) Summary() Summary {
	if r == nil {
		return Summary{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return Summary{
		Processed: r.processed,
		Written:   r.written,
		Filtered:  r.filtered,
		Failed:    len(r.faults),
		Faults:    slices.Clone(r.faults),
	}
}
