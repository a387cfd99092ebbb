package radar

// Display holds the parameters of the vertical radar strip.
type Display struct {
	MaxDistanceMeters      float64 `json:"max_distance_m"`
	CarOffsetMeters        float64 `json:"car_offset_m"`
	CarLimitsMarkLenMeters float64 `json:"car_limits_mark_len_m"`
}

// Marker kinds.
const (
	MarkerCar   = "car"
	MarkerLimit = "limit"
)

// Marker is a normalised vertical extent on the strip, 0 at the top edge
// and 1 at the bottom.
type Marker struct {
	Kind   string  `json:"kind"`
	CarIdx int     `json:"car_idx"`
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// RadarY maps a distance in meters to the strip.
func RadarY(value, maxDistanceMeters, carOffsetMeters float64) float64 {
	return clamp01((value + maxDistanceMeters + carOffsetMeters) / (2 * maxDistanceMeters))
}

// Y maps a distance using d's parameters.
func (d Display) Y(value float64) float64 {
	return RadarY(value, d.MaxDistanceMeters, d.CarOffsetMeters)
}

// Markers returns the strip extents for every visible car followed by the
// two limit marks around the tracked car.
func (d Display) Markers(f *Frame) []Marker {
	var out []Marker
	for _, e := range f.VisibleEntries() {
		out = append(out, Marker{
			Kind:   MarkerCar,
			CarIdx: e.CarIdx,
			Top:    d.Y(e.SpanStart),
			Bottom: d.Y(e.SpanEnd),
		})
	}

	self := f.Self()
	mark := d.CarLimitsMarkLenMeters
	out = append(out,
		Marker{Kind: MarkerLimit, CarIdx: self.CarIdx, Top: d.Y(0), Bottom: d.Y(mark)},
		Marker{Kind: MarkerLimit, CarIdx: self.CarIdx, Top: d.Y(self.LengthMeters), Bottom: d.Y(self.LengthMeters + mark)},
	)
	return out
}
