package radar

import (
	"sync"
	"time"

	"github.com/banshee-data/proximity.radar/internal/calibration"
	"github.com/banshee-data/proximity.radar/internal/timeutil"
)

// Stats counts tick outcomes since the store was created.
type Stats struct {
	Ticks          uint64            `json:"ticks"`
	Published      uint64            `json:"published"`
	Skipped        map[string]uint64 `json:"skipped"`
	Fires          int               `json:"calibration_fires"`
	LastSkipReason string            `json:"last_skip_reason,omitempty"`
	LastSkipError  string            `json:"last_skip_error,omitempty"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// FrameStore holds the most recent good frame and length table for
// concurrent readers. A skipped tick leaves the previous frame in place.
type FrameStore struct {
	clock timeutil.Clock

	mu      sync.RWMutex
	frame   *Frame
	lengths []calibration.LengthEstimate
	stats   Stats
}

// NewFrameStore returns an empty store. A nil clock uses the wall clock.
func NewFrameStore(clock timeutil.Clock) *FrameStore {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &FrameStore{
		clock: clock,
		stats: Stats{Skipped: make(map[string]uint64)},
	}
}

// Publish records the outcome of one Engine.Tick. On error the frame is
// kept and the skip is counted under SkipReason(err).
func (s *FrameStore) Publish(f *Frame, err error, lengths []calibration.LengthEstimate, fires int) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Ticks++
	if err != nil {
		reason := SkipReason(err)
		s.stats.Skipped[reason]++
		s.stats.LastSkipReason = reason
		s.stats.LastSkipError = err.Error()
		return
	}
	s.frame = f
	if lengths != nil {
		s.lengths = lengths
	}
	s.stats.Published++
	s.stats.Fires = fires
	s.stats.UpdatedAt = now
}

// Frame returns the last published frame and when it was published.
func (s *FrameStore) Frame() (*Frame, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame, s.stats.UpdatedAt, s.frame != nil
}

// Lengths returns the last published length table.
func (s *FrameStore) Lengths() []calibration.LengthEstimate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lengths
}

// Stats returns a copy of the counters.
func (s *FrameStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.stats
	out.Skipped = make(map[string]uint64, len(s.stats.Skipped))
	for k, v := range s.stats.Skipped {
		out.Skipped[k] = v
	}
	return out
}
