package radar

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/proximity.radar/internal/calibration"
	"github.com/banshee-data/proximity.radar/internal/config"
	"github.com/banshee-data/proximity.radar/internal/monitoring"
	"github.com/banshee-data/proximity.radar/internal/proximity"
	"github.com/banshee-data/proximity.radar/internal/trackpos"
)

var (
	// ErrTrackLengthUndefined is returned when the tracked car's lap
	// fraction is not positive, so the lap length cannot be derived.
	ErrTrackLengthUndefined = errors.New("track length undefined")
	// ErrInvalidInput is returned when a tick fails boundary validation.
	ErrInvalidInput = errors.New("invalid tick input")
)

// IsSkipTick reports whether err means "no frame this tick". Every error the
// engine returns is recoverable; the caller keeps showing the previous frame.
func IsSkipTick(err error) bool {
	return errors.Is(err, ErrTrackLengthUndefined) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, proximity.ErrSelfNotFound)
}

// SkipReason returns a short label for a skip-tick error.
func SkipReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTrackLengthUndefined):
		return "track_length"
	case errors.Is(err, proximity.ErrSelfNotFound):
		return "self_not_found"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "other"
	}
}

// Config holds the engine parameters.
type Config struct {
	MaxDistanceMeters float64            `json:"max_distance_m"`
	MarginMeters      float64            `json:"margin_m"`
	MaxCars           int                `json:"max_cars"`
	Calibration       calibration.Config `json:"calibration"`
	Display           Display            `json:"display"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyRadarConfig())
}

// ConfigFromTuning maps a loaded RadarConfig onto engine parameters.
func ConfigFromTuning(c *config.RadarConfig) Config {
	return Config{
		MaxDistanceMeters: c.GetMaxDistanceMeters(),
		MarginMeters:      c.GetMarginMeters(),
		MaxCars:           c.GetMaxCars(),
		Calibration: calibration.Config{
			MinClearanceMeters:  c.GetClearanceMinMeters(),
			MaxClearanceMeters:  c.GetClearanceMaxMeters(),
			WindowSize:          c.GetWindowSize(),
			DefaultLengthMeters: c.GetDefaultLengthMeters(),
		},
		Display: Display{
			MaxDistanceMeters:      c.GetMaxDistanceMeters(),
			CarOffsetMeters:        c.GetCarOffsetMeters(),
			CarLimitsMarkLenMeters: c.GetCarLimitsMarkLenMeters(),
		},
	}
}

// Sample is one car slot as reported by the sim for a tick.
type Sample struct {
	CarIdx      int     `json:"car_idx"`
	VehicleType int     `json:"vehicle_type"`
	LapFraction float64 `json:"lap_fraction"`
	Active      bool    `json:"active"`
}

// TickInput is everything the engine consumes for one tick.
type TickInput struct {
	SelfIdx           int                       `json:"self_idx"`
	SelfLapFraction   float64                   `json:"self_lap_fraction"`
	SelfLapDistMeters float64                   `json:"self_lap_dist_m"`
	Flag              calibration.ProximityFlag `json:"flag"`
	Cars              []Sample                  `json:"cars"`
}

// Engine runs the per-tick pipeline. It owns the length table and is not
// safe for concurrent use; call Tick from a single loop.
type Engine struct {
	cfg        Config
	ranker     *proximity.Ranker
	calib      *calibration.Calibrator
	candidates []proximity.Candidate
	seen       map[int]struct{}
	seq        uint64
	turns      trackpos.Turns
}

// NewEngine returns an Engine with an empty length table.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg: cfg,
		ranker: proximity.NewRanker(proximity.RankerConfig{
			MaxDistanceMeters: cfg.MaxDistanceMeters,
			MarginMeters:      cfg.MarginMeters,
		}),
		calib: calibration.NewCalibrator(cfg.Calibration),
		seen:  make(map[int]struct{}),
	}
}

// Config returns the engine parameters.
func (e *Engine) Config() Config { return e.cfg }

// Calibrator exposes the length table for seeding and diagnostics.
func (e *Engine) Calibrator() *calibration.Calibrator { return e.calib }

// SetTurns installs the turn table used to name the tracked car's position.
// Nil disables the lookup.
func (e *Engine) SetTurns(ts trackpos.Turns) { e.turns = ts }

// Lengths returns a snapshot of the length table.
func (e *Engine) Lengths() []calibration.LengthEstimate { return e.calib.Snapshot() }

// Tick processes one tick. On error no frame is produced and neither the
// calibrator state nor the length table changes.
func (e *Engine) Tick(in TickInput) (*Frame, error) {
	if err := e.validate(in); err != nil {
		return nil, err
	}

	trackLen, ok := trackpos.TrackLength(in.SelfLapDistMeters, in.SelfLapFraction)
	if !ok {
		return nil, ErrTrackLengthUndefined
	}

	e.candidates = e.candidates[:0]
	for _, s := range in.Cars {
		if !s.Active {
			continue
		}
		frac := s.LapFraction
		if s.CarIdx == in.SelfIdx {
			frac = in.SelfLapFraction
		}
		e.candidates = append(e.candidates, proximity.Candidate{
			CarIdx:      s.CarIdx,
			VehicleType: s.VehicleType,
			DeltaMeters: trackpos.RelativeDistance(in.SelfLapFraction, frac, trackLen),
		})
	}

	ranking, err := e.ranker.Rank(e.candidates, in.SelfIdx)
	if err != nil {
		return nil, fmt.Errorf("car %d: %w", in.SelfIdx, err)
	}

	obs := e.calib.Observe(in.Flag, ranking)

	e.seq++
	f := BuildFrame(ranking, e.calib.Length, e.cfg.MaxDistanceMeters)
	f.Seq = e.seq
	f.TrackLengthMeters = trackLen
	f.Flag = in.Flag
	f.State = e.calib.State()
	f.Observations = obs
	if turn, ok := e.turns.At(in.SelfLapFraction); ok {
		f.Turn = turn.Name
	}

	if monitoring.DebugEnabled() {
		ahead, behind := "-", "-"
		if a, ok := f.Ahead(); ok {
			ahead = fmt.Sprintf("car %d %.2fm", a.CarIdx, a.DeltaMeters)
		}
		if b, ok := f.Behind(); ok {
			behind = fmt.Sprintf("car %d %+.2fm", b.CarIdx, b.DeltaMeters)
		}
		monitoring.Debugf("tick %d: %d ranked, ahead %s, behind %s, flag %s", f.Seq, len(f.Entries), ahead, behind, in.Flag)
	}
	return f, nil
}

func (e *Engine) validate(in TickInput) error {
	maxCars := e.cfg.MaxCars
	if len(in.Cars) > maxCars {
		return fmt.Errorf("%w: %d cars exceeds limit %d", ErrInvalidInput, len(in.Cars), maxCars)
	}
	if in.SelfIdx < 0 || in.SelfIdx >= maxCars {
		return fmt.Errorf("%w: self index %d out of range", ErrInvalidInput, in.SelfIdx)
	}
	if math.IsNaN(in.SelfLapFraction) || math.IsInf(in.SelfLapFraction, 0) || in.SelfLapFraction >= 1 {
		return fmt.Errorf("%w: self lap fraction %v", ErrInvalidInput, in.SelfLapFraction)
	}
	if math.IsNaN(in.SelfLapDistMeters) || math.IsInf(in.SelfLapDistMeters, 0) {
		return fmt.Errorf("%w: self lap distance %v", ErrInvalidInput, in.SelfLapDistMeters)
	}

	clear(e.seen)
	for _, s := range in.Cars {
		if s.CarIdx < 0 || s.CarIdx >= maxCars {
			return fmt.Errorf("%w: car index %d out of range", ErrInvalidInput, s.CarIdx)
		}
		if _, dup := e.seen[s.CarIdx]; dup {
			return fmt.Errorf("%w: duplicate car index %d", ErrInvalidInput, s.CarIdx)
		}
		e.seen[s.CarIdx] = struct{}{}
		if !s.Active || s.CarIdx == in.SelfIdx {
			continue
		}
		if err := trackpos.ValidateLapFraction(s.LapFraction); err != nil {
			return fmt.Errorf("%w: car %d: %v", ErrInvalidInput, s.CarIdx, err)
		}
	}
	return nil
}
