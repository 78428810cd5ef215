package bootstrap

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/photoflow/component"
	"github.com/kbukum/photoflow/errors"
	"github.com/kbukum/photoflow/media"
	"github.com/kbukum/photoflow/stage"
)

// DefaultMaxFaults caps the fault lines printed by the run summary.
const DefaultMaxFaults = 20

// Summary tracks and displays the outcome of a run.
type Summary struct {
	mu              sync.Mutex
	serviceName     string
	version         string
	runID           string
	startupDuration time.Duration
	runDuration     time.Duration
	components      []component.Description
	health          []component.Health
	counts          *stage.Summary
	maxFaults       int
}

// NewSummary creates a new run summary tracker.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{
		serviceName: serviceName,
		version:     version,
		maxFaults:   DefaultMaxFaults,
	}
}

// SetStartupDuration records the time spent before the task started.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startupDuration = d
}

// SetRunDuration records the time spent in the task.
func (s *Summary) SetRunDuration(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runDuration = d
}

// SetRunID records the run correlation id.
func (s *Summary) SetRunID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runID = id
}

// SetMaxFaults changes how many faults are listed. Zero or less lists none.
func (s *Summary) SetMaxFaults(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxFaults = n
}

// SetComponents records component descriptions and their health at preflight.
func (s *Summary) SetComponents(descs []component.Description, health []component.Health) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.components = descs
	s.health = health
}

// SetCounts records the counters of a finished run.
func (s *Summary) SetCounts(c stage.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = &c
}

// Write prints the summary to w.
func (s *Summary) Write(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprintf(w, "\n📷 %s v%s", s.serviceName, s.version)
	if s.runID != "" {
		fmt.Fprintf(w, " run %s", s.runID)
	}
	fmt.Fprintf(w, " (startup %.2fs, run %.2fs)\n\n", s.startupDuration.Seconds(), s.runDuration.Seconds())

	if len(s.components) > 0 {
		fmt.Fprintf(w, "📊 Infrastructure\n")
		for i, d := range s.components {
			fmt.Fprintf(w, "   %s %s %s [%s]: %s\n", treePrefix(i, len(s.components)), s.iconFor(d.Name), d.Name, d.Type, d.Details)
		}
		fmt.Fprintf(w, "\n")
	}

	if len(s.health) > 0 {
		fmt.Fprintf(w, "🏥 Preflight\n")
		for i, h := range s.health {
			msg := ""
			if h.Message != "" {
				msg = ": " + h.Message
			}
			fmt.Fprintf(w, "   %s %s %s %s%s\n", treePrefix(i, len(s.health)), healthStatusIcon(h.Status), h.Name, strings.ToLower(string(h.Status)), msg)
		}
		fmt.Fprintf(w, "\n")
	}

	if s.counts == nil {
		fmt.Fprintf(w, "   └── No run results\n\n")
		return
	}

	c := s.counts
	fmt.Fprintf(w, "📦 Results\n")
	fmt.Fprintf(w, "   ├── processed %d\n", c.Processed)
	fmt.Fprintf(w, "   ├── written   %d\n", c.Written)
	fmt.Fprintf(w, "   ├── filtered  %d\n", c.Filtered)
	fmt.Fprintf(w, "   └── failed    %d\n", c.Failed)

	if len(c.Faults) > 0 && s.maxFaults > 0 {
		fmt.Fprintf(w, "\n⚠️  Faults\n")
		shown := min(len(c.Faults), s.maxFaults)
		rest := len(c.Faults) - shown
		for i, f := range c.Faults[:shown] {
			last := i == shown-1 && rest == 0
			prefix := "├──"
			if last {
				prefix = "└──"
			}
			fmt.Fprintf(w, "   %s %s [%s] %s: %s\n", prefix, f.Source, f.Stage, f.Code, f.Message)
		}
		if rest > 0 {
			fmt.Fprintf(w, "   └── ... and %d more\n", rest)
		}
		if needsDecoder(c.Faults) {
			fmt.Fprintf(w, "   ℹ️  HEIC/HEIF photos need an external decoder\n")
		}
	}

	fmt.Fprintf(w, "\n")
	if c.Failed == 0 {
		fmt.Fprintf(w, "✅ Completed without faults (%d/%d written)\n\n", c.Written, c.Processed)
	} else {
		fmt.Fprintf(w, "⚠️  Completed with %d faults (%d/%d written)\n\n", c.Failed, c.Written, c.Processed)
	}
}

func needsDecoder(faults []errors.FaultRecord) bool {
	for _, f := range faults {
		if f.Code == errors.ErrCodeDecode && media.NeedsExternalDecoder(f.Source) {
			return true
		}
	}
	return false
}

// iconFor looks up the preflight health of a described component.
func (s *Summary) iconFor(name string) string {
	for _, h := range s.health {
		if strings.EqualFold(h.Name, name) {
			return healthStatusIcon(h.Status)
		}
	}
	return "❓"
}

func treePrefix(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func healthStatusIcon(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✅"
	case component.StatusDegraded:
		return "⚠️"
	case component.StatusUnhealthy:
		return "❌"
	default:
		return "❓"
	}
}
