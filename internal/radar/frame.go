package radar

import (
	"math"

	"github.com/banshee-data/proximity.radar/internal/calibration"
	"github.com/banshee-data/proximity.radar/internal/proximity"
)

// FrameEntry is one ranked car with its calibrated length.
type FrameEntry struct {
	CarIdx       int     `json:"car_idx"`
	VehicleType  int     `json:"vehicle_type"`
	DeltaMeters  float64 `json:"delta_m"`
	Rank         int     `json:"rank"`
	LengthMeters float64 `json:"length_m"`
	// SpanStart and SpanEnd bound the car along the track relative to self.
	SpanStart float64 `json:"span_start_m"`
	SpanEnd   float64 `json:"span_end_m"`
	IsSelf    bool    `json:"is_self"`
	// Visible is false for self and for cars outside the drawn radius.
	Visible bool `json:"visible"`
}

// Frame is the per-tick radar snapshot. Indices refer to Entries and are
// proximity.NoNeighbor when absent.
type Frame struct {
	Seq               uint64                    `json:"seq"`
	TrackLengthMeters float64                   `json:"track_length_m"`
	Flag              calibration.ProximityFlag `json:"flag"`
	State             calibration.ClearState    `json:"clear_state"`
	Entries           []FrameEntry              `json:"entries"`
	SelfIndex         int                       `json:"self_index"`
	NearAhead         int                       `json:"near_ahead"`
	NearBehind        int                       `json:"near_behind"`
	Observations      []calibration.Observation `json:"observations,omitempty"`
	// Turn names the stretch of track the tracked car is on, if known.
	Turn string `json:"turn,omitempty"`
}

// BuildFrame attaches lengths to a ranking. It reads lengthOf once per entry
// and has no other inputs, so equal rankings and length tables give equal
// frames.
func BuildFrame(r *proximity.Ranking, lengthOf func(vehicleType int) float64, maxDistanceMeters float64) *Frame {
	f := &Frame{
		Entries:    make([]FrameEntry, len(r.Entries)),
		SelfIndex:  r.SelfIndex,
		NearAhead:  r.NearAhead,
		NearBehind: r.NearBehind,
	}
	for i, e := range r.Entries {
		length := lengthOf(e.VehicleType)
		isSelf := i == r.SelfIndex
		f.Entries[i] = FrameEntry{
			CarIdx:       e.CarIdx,
			VehicleType:  e.VehicleType,
			DeltaMeters:  e.DeltaMeters,
			Rank:         e.Rank,
			LengthMeters: length,
			SpanStart:    e.DeltaMeters,
			SpanEnd:      e.DeltaMeters + length,
			IsSelf:       isSelf,
			Visible:      !isSelf && e.DeltaMeters != 0 && math.Abs(e.DeltaMeters) <= maxDistanceMeters+length,
		}
	}
	return f
}

func (f *Frame) at(i int) (FrameEntry, bool) {
	if i < 0 || i >= len(f.Entries) {
		return FrameEntry{}, false
	}
	return f.Entries[i], true
}

// Self returns the tracked car's entry.
func (f *Frame) Self() FrameEntry {
	e, _ := f.at(f.SelfIndex)
	return e
}

// Ahead returns the nearest car ahead, if any.
func (f *Frame) Ahead() (FrameEntry, bool) { return f.at(f.NearAhead) }

// Behind returns the nearest car behind, if any.
func (f *Frame) Behind() (FrameEntry, bool) { return f.at(f.NearBehind) }

// VisibleEntries returns the entries a renderer should draw, in rank order.
func (f *Frame) VisibleEntries() []FrameEntry {
	var out []FrameEntry
	for _, e := range f.Entries {
		if e.Visible {
			out = append(out, e)
		}
	}
	return out
}
