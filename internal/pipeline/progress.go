package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/genburn/internal/monitoring"
	"github.com/banshee-data/genburn/internal/timeutil"
)

// Step is one logged stage of a run.
type Step struct {
	N       int
	Message string
	Elapsed time.Duration // since the run started
}

// Progress numbers and logs run stages. It is safe for concurrent use by
// zone workers.
type Progress struct {
	mu    sync.Mutex
	clock timeutil.Clock
	start time.Time
	steps []Step
}

// NewProgress starts a step counter at the clock's current time. A nil
// clock uses the wall clock.
func NewProgress(clock timeutil.Clock) *Progress {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Progress{clock: clock, start: clock.Now()}
}

// Step records and logs the next stage as "Step N: message".
func (p *Progress) Step(format string, args ...interface{}) int {
	if p == nil {
		return 0
	}
	msg := fmt.Sprintf(format, args...)
	p.mu.Lock()
	s := Step{N: len(p.steps) + 1, Message: msg, Elapsed: p.clock.Since(p.start)}
	p.steps = append(p.steps, s)
	p.mu.Unlock()

	monitoring.Logf("Step %d: %s", s.N, msg)
	return s.N
}

// Steps returns a copy of the recorded stages.
func (p *Progress) Steps() []Step {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Step, len(p.steps))
	copy(out, p.steps)
	return out
}

// Elapsed reports the time since the run started.
func (p *Progress) Elapsed() time.Duration {
	return p.clock.Since(p.start)
}
