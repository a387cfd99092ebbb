package trackpos

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidTrackLength is returned when a track length is not a
	// positive finite number.
	ErrInvalidTrackLength = errors.New("track length must be positive and finite")
	// ErrInvalidLapFraction is returned for lap fractions outside [0,1).
	ErrInvalidLapFraction = errors.New("lap fraction must be in [0,1)")
)

// BehindPositive documents the sign convention used by RelativeDistance:
// deltas of other cars behind self are positive.
const BehindPositive = true

// Side is the side of the tracked car another car occupies along the lap.
type Side int

const (
	SideNone Side = iota // self, or exactly level
	SideAhead
	SideBehind
)

func (s Side) String() string {
	switch s {
	case SideAhead:
		return "ahead"
	case SideBehind:
		return "behind"
	default:
		return "level"
	}
}

// MarshalText encodes the side by name.
func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// FoldFraction folds a lap-fraction difference onto the short path around
// the lap. Differences larger than half a lap cross the start/finish line.
func FoldFraction(selfFraction, otherFraction float64) float64 {
	diff := selfFraction - otherFraction
	if math.Abs(diff) > 0.5 {
		if selfFraction > otherFraction {
			diff -= 1
		} else {
			diff += 1
		}
	}
	return diff
}

// RelativeDistance returns the signed distance in metres between self and
// another car. Positive means the other car is behind.
//
// trackLengthMeters must be positive and finite; callers check it with
// ValidateTrackLength before entering the per-car loop.
func RelativeDistance(selfFraction, otherFraction, trackLengthMeters float64) float64 {
	return FoldFraction(selfFraction, otherFraction) * trackLengthMeters
}

// SideOf classifies a delta produced by RelativeDistance.
func SideOf(deltaMeters float64) Side {
	switch {
	case deltaMeters > 0:
		return SideBehind
	case deltaMeters < 0:
		return SideAhead
	default:
		return SideNone
	}
}

// Clearance is the positive gap magnitude to a car on the given side.
// Ahead cars carry negative deltas, so the sign is flipped for them.
func Clearance(deltaMeters float64, side Side) float64 {
	if side == SideAhead {
		return -deltaMeters
	}
	return deltaMeters
}

// TrackLength derives the lap length from the distance self has covered in
// the current lap and its lap fraction. It reports false when the fraction
// is not positive, in which case the length is undefined for this tick.
func TrackLength(selfLapDistMeters, selfLapFraction float64) (float64, bool) {
	if !(selfLapFraction > 0) || math.IsInf(selfLapFraction, 0) {
		return 0, false
	}
	l := selfLapDistMeters / selfLapFraction
	if ValidateTrackLength(l) != nil {
		return 0, false
	}
	return l, true
}

// ValidateTrackLength checks the RelativeDistance precondition.
func ValidateTrackLength(l float64) error {
	if math.IsNaN(l) || math.IsInf(l, 0) || l <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidTrackLength, l)
	}
	return nil
}

// ValidateLapFraction checks that f is a finite value in [0,1).
func ValidateLapFraction(f float64) error {
	if math.IsNaN(f) || f < 0 || f >= 1 {
		return fmt.Errorf("%w: %v", ErrInvalidLapFraction, f)
	}
	return nil
}
