package scenario

import (
	"sync"

	"github.com/displaykit/hwcplan/internal/layer"
	"github.com/displaykit/hwcplan/internal/planner"
)

// Source cycles through a scenario's frames, building fresh planner input
// on every call. A scenario without frames yields empty ones.
type Source struct {
	mu       sync.Mutex
	scenario *Scenario
	next     int
}

// NewSource returns a frame source over the scenario.
func (s *Scenario) NewSource() *Source {
	return &Source{scenario: s}
}

// NextFrame returns the next frame in sequence, wrapping at the end.
func (s *Source) NextFrame() planner.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.scenario.Frames) == 0 {
		return planner.Frame{Contents: map[int][]*layer.Layer{}}
	}
	f := s.scenario.Frames[s.next]
	s.next = (s.next + 1) % len(s.scenario.Frames)
	return f.BuildFrame()
}
