package calibration

import "sort"

// Window is a bounded sample history kept sorted in descending order.
//
// On overflow the largest and smallest samples are dropped together until
// the window fits again, so a single insertion into a full window of
// capacity 5 leaves 4 samples. This trims outliers at both extremes rather
// than evicting the oldest sample.
type Window struct {
	capacity int
	samples  []float64
}

// NewWindow returns an empty window. Capacities below one are raised to one.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{capacity: capacity, samples: make([]float64, 0, capacity+1)}
}

// Capacity returns the maximum number of retained samples.
func (w *Window) Capacity() int { return w.capacity }

// Len returns the number of retained samples.
func (w *Window) Len() int { return len(w.samples) }

// Insert adds v and trims the window. It returns the dropped samples in
// (max, min) pairs.
func (w *Window) Insert(v float64) (dropped []float64) {
	w.samples = append(w.samples, v)
	sort.Sort(sort.Reverse(sort.Float64Slice(w.samples)))

	for len(w.samples) > w.capacity {
		hi, lo := w.samples[0], w.samples[len(w.samples)-1]
		dropped = append(dropped, hi, lo)
		w.samples = append(w.samples[:0], w.samples[1:len(w.samples)-1]...)
	}
	return dropped
}

// Median returns the element at index len/2 of the descending window:
// the middle value for odd sizes and the lower-middle value for even
// sizes. It reports false for an empty window.
func (w *Window) Median() (float64, bool) {
	if len(w.samples) == 0 {
		return 0, false
	}
	return w.samples[len(w.samples)/2], true
}

// Samples returns a copy of the window, largest first.
func (w *Window) Samples() []float64 {
	out := make([]float64, len(w.samples))
	copy(out, w.samples)
	return out
}
