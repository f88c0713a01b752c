package discovery

import (
	"sync"
	"time"

	"github.com/bluejay-tic/certdiscovery/models"
)

// Phase identifies a stage of a discovery run.
type Phase string

// Run phases, in execution order.
const (
	PhaseStructure  Phase = "structure_discovery"
	PhaseExtraction Phase = "content_extraction"
	PhaseCategorize Phase = "categorization"
	PhaseQuality    Phase = "quality_assessment"
	PhaseCompile    Phase = "compilation"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// Transition records when a run entered a phase.
type Transition struct {
	Phase Phase
	At    time.Time
}

// Run carries the mutable state of one discovery execution. Each call to
// Discover gets its own Run; nothing here is shared between runs.
type Run struct {
	Query   models.CertificationQuery
	Started time.Time

	mu          sync.Mutex
	phase       Phase
	transitions []Transition
	fetched     int
	dropped     int
	truncated   bool

	now func() time.Time
}

func newRun(query models.CertificationQuery, now func() time.Time) *Run {
	if now == nil {
		now = time.Now
	}
	r := &Run{
		Query:   query,
		Started: now(),
		now:     now,
	}
	r.enter(PhaseStructure)
	return r
}

func (r *Run) enter(phase Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phase = phase
	r.transitions = append(r.transitions, Transition{Phase: phase, At: r.now()})
}

// Phase returns the run's current phase.
func (r *Run) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Transitions returns a copy of the phase history.
func (r *Run) Transitions() []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Transition, len(r.transitions))
	copy(out, r.transitions)
	return out
}

func (r *Run) recordFetch() {
	r.mu.Lock()
	r.fetched++
	r.mu.Unlock()
}

func (r *Run) recordDrop() {
	r.mu.Lock()
	r.dropped++
	r.mu.Unlock()
}

func (r *Run) markTruncated() {
	r.mu.Lock()
	r.truncated = true
	r.mu.Unlock()
}

func (r *Run) counters() (fetched, dropped int, truncated bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetched, r.dropped, r.truncated
}
