package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/banshee-data/proximity.radar/internal/calibration"
	"github.com/banshee-data/proximity.radar/internal/radar"
)

// ErrEmptyRecord is returned for blank lines.
var ErrEmptyRecord = errors.New("empty tick record")

// CarRecord is one car slot in a tick record.
type CarRecord struct {
	Idx       int     `json:"idx"`
	CarID     int     `json:"car_id"`
	LapPct    float64 `json:"lap_pct"`
	Lap       int     `json:"lap"`
	OnPitRoad bool    `json:"on_pit_road"`
	Spectator bool    `json:"spectator"`
	PaceCar   bool    `json:"pace_car"`
	CarNumber int     `json:"car_number"`
}

// Active reports whether the car takes part in ranking. Pace car,
// spectators, cars in the pit lane and unused slots are excluded.
func (c CarRecord) Active() bool {
	return c.Lap >= 0 && !c.Spectator && c.CarNumber >= 0 && !c.PaceCar && !c.OnPitRoad
}

// TickRecord is one line of the tick feed.
type TickRecord struct {
	SelfIdx      int             `json:"self_idx"`
	SelfLapPct   float64         `json:"self_lap_pct"`
	SelfLapDist  float64         `json:"self_lap_dist"`
	CarLeftRight json.RawMessage `json:"car_left_right"`
	Cars         []CarRecord     `json:"cars"`
}

// Flag decodes car_left_right, which the feed sends either as a name or as
// the sim's integer code. A missing value is ProximityOff.
func (r *TickRecord) Flag() (calibration.ProximityFlag, error) {
	raw := bytes.TrimSpace(r.CarLeftRight)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return calibration.ProximityOff, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return calibration.ProximityOff, err
		}
		return calibration.ParseProximityFlag(s)
	}
	var code int
	if err := json.Unmarshal(raw, &code); err != nil {
		return calibration.ProximityOff, fmt.Errorf("car_left_right: %w", err)
	}
	return calibration.ProximityFlagFromCode(code)
}

// TickInput converts the record into engine input.
func (r *TickRecord) TickInput() (radar.TickInput, error) {
	flag, err := r.Flag()
	if err != nil {
		return radar.TickInput{}, err
	}
	in := radar.TickInput{
		SelfIdx:           r.SelfIdx,
		SelfLapFraction:   r.SelfLapPct,
		SelfLapDistMeters: r.SelfLapDist,
		Flag:              flag,
		Cars:              make([]radar.Sample, len(r.Cars)),
	}
	for i, c := range r.Cars {
		in.Cars[i] = radar.Sample{
			CarIdx:      c.Idx,
			VehicleType: c.CarID,
			LapFraction: c.LapPct,
			Active:      c.Active(),
		}
	}
	return in, nil
}

// DecodeTickRecord parses one feed line into engine input.
func DecodeTickRecord(line []byte) (radar.TickInput, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return radar.TickInput{}, ErrEmptyRecord
	}
	var rec TickRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return radar.TickInput{}, fmt.Errorf("failed to decode tick record: %w", err)
	}
	in, err := rec.TickInput()
	if err != nil {
		return radar.TickInput{}, fmt.Errorf("failed to decode tick record: %w", err)
	}
	return in, nil
}
