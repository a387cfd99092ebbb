package proximity

import (
	"errors"
	"math"
	"sort"
)

// ErrSelfNotFound is returned when the tracked car is missing from the
// filtered set. It is a per-tick skip condition, not a fault.
var ErrSelfNotFound = errors.New("tracked car not in ranked set")

// NoNeighbor marks an absent nearest-ahead or nearest-behind entry.
const NoNeighbor = -1

// Candidate is one active car with its delta to the tracked car.
type Candidate struct {
	CarIdx      int
	VehicleType int
	DeltaMeters float64
}

// Entry is a ranked candidate. Rank is its position in Ranking.Entries.
type Entry struct {
	CarIdx      int     `json:"car_idx"`
	VehicleType int     `json:"vehicle_type"`
	DeltaMeters float64 `json:"delta_m"`
	Rank        int     `json:"rank"`
}

// Ranking is the filtered, ordered neighbourhood for one tick.
type Ranking struct {
	Entries    []Entry
	SelfIndex  int
	NearAhead  int // index into Entries, or NoNeighbor
	NearBehind int // index into Entries, or NoNeighbor
}

// Self returns the tracked car's entry.
func (r *Ranking) Self() Entry {
	return r.Entries[r.SelfIndex]
}

// Ahead returns the nearest car ahead, if any.
func (r *Ranking) Ahead() (Entry, bool) {
	if r.NearAhead == NoNeighbor {
		return Entry{}, false
	}
	return r.Entries[r.NearAhead], true
}

// Behind returns the nearest car behind, if any.
func (r *Ranking) Behind() (Entry, bool) {
	if r.NearBehind == NoNeighbor {
		return Entry{}, false
	}
	return r.Entries[r.NearBehind], true
}

// RankerConfig holds the ranking radius.
type RankerConfig struct {
	MaxDistanceMeters float64 // radar radius
	MarginMeters      float64 // extra radius kept for calibration
}

// Ranker orders candidates around the tracked car. It keeps a scratch
// buffer between calls and is not safe for concurrent use.
type Ranker struct {
	Config  RankerConfig
	scratch []Entry
}

// NewRanker returns a Ranker with the given radius.
func NewRanker(cfg RankerConfig) *Ranker {
	return &Ranker{Config: cfg}
}

// Cutoff is the absolute delta at or beyond which candidates are dropped.
func (r *Ranker) Cutoff() float64 {
	return r.Config.MaxDistanceMeters + r.Config.MarginMeters
}

// Rank filters candidates to the radius, sorts them and locates selfIdx.
// The returned Ranking owns a fresh Entries slice.
func (r *Ranker) Rank(candidates []Candidate, selfIdx int) (*Ranking, error) {
	cutoff := r.Cutoff()

	r.scratch = r.scratch[:0]
	for _, c := range candidates {
		if c.CarIdx != selfIdx && !(math.Abs(c.DeltaMeters) < cutoff) {
			continue
		}
		delta := c.DeltaMeters
		if c.CarIdx == selfIdx {
			delta = 0
		}
		r.scratch = append(r.scratch, Entry{
			CarIdx:      c.CarIdx,
			VehicleType: c.VehicleType,
			DeltaMeters: delta,
		})
	}

	sort.SliceStable(r.scratch, func(i, j int) bool {
		return Less(r.scratch[i], r.scratch[j])
	})

	ranking := &Ranking{
		Entries:    make([]Entry, len(r.scratch)),
		SelfIndex:  NoNeighbor,
		NearAhead:  NoNeighbor,
		NearBehind: NoNeighbor,
	}
	for i, e := range r.scratch {
		e.Rank = i
		ranking.Entries[i] = e
		if e.CarIdx == selfIdx {
			ranking.SelfIndex = i
		}
	}

	if ranking.SelfIndex == NoNeighbor {
		return nil, ErrSelfNotFound
	}
	if ranking.SelfIndex > 0 {
		ranking.NearBehind = ranking.SelfIndex - 1
	}
	if ranking.SelfIndex+1 < len(ranking.Entries) {
		ranking.NearAhead = ranking.SelfIndex + 1
	}
	return ranking, nil
}

// Less orders entries by descending delta, then ascending car index.
func Less(a, b Entry) bool {
	if a.DeltaMeters != b.DeltaMeters {
		return a.DeltaMeters > b.DeltaMeters
	}
	return a.CarIdx < b.CarIdx
}
