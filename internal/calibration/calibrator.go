package calibration

import (
	"math"
	"sort"

	"github.com/banshee-data/proximity.radar/internal/monitoring"
	"github.com/banshee-data/proximity.radar/internal/proximity"
	"github.com/banshee-data/proximity.radar/internal/trackpos"
	"gonum.org/v1/gonum/stat"
)

// Config holds the calibration parameters.
type Config struct {
	MinClearanceMeters  float64 `json:"clearance_min_m"`  // exclusive lower bound of accepted clearances
	MaxClearanceMeters  float64 `json:"clearance_max_m"`  // exclusive upper bound of accepted clearances
	WindowSize          int     `json:"window_size"`      // samples retained per vehicle type
	DefaultLengthMeters float64 `json:"default_length_m"` // length used before any sample, and as a floor
}

// DefaultConfig returns the reference calibration parameters.
func DefaultConfig() Config {
	return Config{
		MinClearanceMeters:  1.5,
		MaxClearanceMeters:  5.5,
		WindowSize:          5,
		DefaultLengthMeters: 4.0,
	}
}

// Reasons attached to rejected observations.
const (
	ReasonOutOfBand = "out_of_band"
	ReasonNotFinite = "not_finite"
)

// Observation is one clearance considered on a triggering tick.
type Observation struct {
	VehicleType int           `json:"vehicle_type"`
	CarIdx      int           `json:"car_idx"`
	Side        trackpos.Side `json:"side"`
	Clearance   float64       `json:"clearance_m"`
	Accepted    bool          `json:"accepted"`
	Reason      string        `json:"reason,omitempty"`
	Estimate    float64       `json:"estimate_m,omitempty"` // new estimate when Accepted
	WindowSize  int           `json:"window_size,omitempty"`
}

// LengthEstimate is a read-only view of one vehicle type's calibration.
// EstimateMeters is meaningful only when HasEstimate is set; a type seen
// only through rejected samples has none.
type LengthEstimate struct {
	VehicleType    int       `json:"vehicle_type"`
	HasEstimate    bool      `json:"has_estimate"`
	EstimateMeters float64   `json:"estimate_m"`
	Window         []float64 `json:"window"`
	Accepted       int       `json:"accepted"`
	Rejected       int       `json:"rejected"`
	MeanMeters     float64   `json:"mean_m"`
	StdDevMeters   float64   `json:"stddev_m"`
}

type typeState struct {
	window   *Window
	estimate float64
	hasEst   bool
	accepted int
	rejected int
}

// Calibrator owns the per-vehicle-type length table and the clear-state
// edge trigger.
type Calibrator struct {
	Config Config
	state  ClearState
	types  map[int]*typeState
	fires  int
}

// NewCalibrator returns a Calibrator in the Clear state with an empty table.
func NewCalibrator(cfg Config) *Calibrator {
	return &Calibrator{
		Config: cfg,
		state:  StateClear,
		types:  make(map[int]*typeState),
	}
}

// State returns the current edge-trigger state.
func (c *Calibrator) State() ClearState { return c.state }

// Fires returns how many clearing events have been sampled.
func (c *Calibrator) Fires() int { return c.fires }

// Observe advances the state machine with this tick's flag and, on a
// clearing edge, samples the nearest neighbours in ranking. The car ahead
// yields a sample for its own type; the car behind yields a sample for the
// tracked car's type. Either may be missing.
func (c *Calibrator) Observe(flag ProximityFlag, ranking *proximity.Ranking) []Observation {
	next, fire := Transition(c.state, flag)
	c.state = next
	if !fire || ranking == nil {
		return nil
	}
	c.fires++

	var obs []Observation
	if ahead, ok := ranking.Ahead(); ok {
		clearance := trackpos.Clearance(ahead.DeltaMeters, trackpos.SideAhead)
		obs = append(obs, c.update(ahead.VehicleType, ahead.CarIdx, trackpos.SideAhead, clearance))
	}
	if behind, ok := ranking.Behind(); ok {
		self := ranking.Self()
		clearance := trackpos.Clearance(behind.DeltaMeters, trackpos.SideBehind)
		obs = append(obs, c.update(self.VehicleType, behind.CarIdx, trackpos.SideBehind, clearance))
	}

	monitoring.Debugf("calibration fire #%d: %d observation(s)", c.fires, len(obs))
	return obs
}

// Accepts reports whether a clearance is inside the acceptance band.
func (c *Calibrator) Accepts(clearance float64) bool {
	return clearance > c.Config.MinClearanceMeters && clearance < c.Config.MaxClearanceMeters
}

func (c *Calibrator) update(vehicleType, carIdx int, side trackpos.Side, clearance float64) Observation {
	o := Observation{
		VehicleType: vehicleType,
		CarIdx:      carIdx,
		Side:        side,
		Clearance:   clearance,
	}
	ts := c.typeState(vehicleType)

	switch {
	case math.IsNaN(clearance) || math.IsInf(clearance, 0):
		o.Reason = ReasonNotFinite
	case !c.Accepts(clearance):
		o.Reason = ReasonOutOfBand
	}
	if o.Reason != "" {
		ts.rejected++
		return o
	}

	if dropped := ts.window.Insert(clearance); len(dropped) > 0 {
		monitoring.Debugf("calibration type %d: dropped %v", vehicleType, dropped)
	}
	ts.estimate, ts.hasEst = ts.window.Median()
	ts.accepted++

	o.Accepted = true
	o.Estimate = ts.estimate
	o.WindowSize = ts.window.Len()
	monitoring.Debugf("calibration type %d (%s): %.3fm -> estimate %.3fm", vehicleType, side, clearance, ts.estimate)
	return o
}

func (c *Calibrator) typeState(vehicleType int) *typeState {
	ts, ok := c.types[vehicleType]
	if !ok {
		ts = &typeState{window: NewWindow(c.Config.WindowSize)}
		c.types[vehicleType] = ts
	}
	return ts
}

// Estimate returns the raw calibrated length for a vehicle type.
func (c *Calibrator) Estimate(vehicleType int) (float64, bool) {
	ts, ok := c.types[vehicleType]
	if !ok || !ts.hasEst {
		return 0, false
	}
	return ts.estimate, true
}

// Length returns the length to render for a vehicle type: the estimate,
// floored at DefaultLengthMeters.
func (c *Calibrator) Length(vehicleType int) float64 {
	est, _ := c.Estimate(vehicleType)
	return math.Max(est, c.Config.DefaultLengthMeters)
}

// Seed warm-starts a vehicle type from previously accepted samples. Samples
// outside the acceptance band are ignored. It returns the number used.
func (c *Calibrator) Seed(vehicleType int, samples []float64) int {
	ts := c.typeState(vehicleType)
	used := 0
	for _, s := range samples {
		if !c.Accepts(s) {
			continue
		}
		ts.window.Insert(s)
		used++
	}
	if used > 0 {
		ts.estimate, ts.hasEst = ts.window.Median()
	}
	return used
}

// Snapshot returns the length table ordered by vehicle type.
func (c *Calibrator) Snapshot() []LengthEstimate {
	out := make([]LengthEstimate, 0, len(c.types))
	for vt, ts := range c.types {
		le := LengthEstimate{
			VehicleType:    vt,
			HasEstimate:    ts.hasEst,
			EstimateMeters: ts.estimate,
			Window:         ts.window.Samples(),
			Accepted:       ts.accepted,
			Rejected:       ts.rejected,
		}
		if len(le.Window) > 0 {
			le.MeanMeters, le.StdDevMeters = stat.MeanStdDev(le.Window, nil)
			if math.IsNaN(le.StdDevMeters) || math.IsInf(le.StdDevMeters, 0) {
				le.StdDevMeters = 0
			}
		}
		out = append(out, le)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VehicleType < out[j].VehicleType })
	return out
}
