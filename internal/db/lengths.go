package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/proximity.radar/internal/calibration"
)

// StoredEstimate is a persisted length estimate.
type StoredEstimate struct {
	SessionID      string    `json:"session_id"`
	VehicleType    int       `json:"vehicle_type"`
	EstimateMeters float64   `json:"estimate_m"`
	Window         []float64 `json:"window"`
	Accepted       int       `json:"accepted"`
	Rejected       int       `json:"rejected"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ObservationSummary aggregates observations for one vehicle type.
type ObservationSummary struct {
	VehicleType int     `json:"vehicle_type"`
	Accepted    int     `json:"accepted"`
	Rejected    int     `json:"rejected"`
	MinMeters   float64 `json:"min_clearance_m"`
	MaxMeters   float64 `json:"max_clearance_m"`
}

func finiteOrNull(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// RecordCalibration stores one tick's observations and, for every vehicle
// type that accepted a sample, its current estimate. Everything is written
// in a single transaction.
func (db *DB) RecordCalibration(sessionID string, seq uint64, at time.Time, obs []calibration.Observation, lengths []calibration.LengthEstimate) error {
	if len(obs) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ts := unixSeconds(at)
	touched := make(map[int]bool)
	for _, o := range obs {
		estimate := sql.NullFloat64{}
		if o.Accepted {
			estimate = finiteOrNull(o.Estimate)
			touched[o.VehicleType] = true
		}
		_, err := tx.Exec(
			`INSERT INTO length_observations (
				session_id, tick_seq, vehicle_type, car_idx, side, clearance_m,
				accepted, reason, estimate_m, observed_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sessionID, int64(seq), o.VehicleType, o.CarIdx, o.Side.String(), finiteOrNull(o.Clearance),
			o.Accepted, o.Reason, estimate, ts,
		)
		if err != nil {
			return fmt.Errorf("failed to record observation: %w", err)
		}
	}

	for _, le := range lengths {
		if !touched[le.VehicleType] {
			continue
		}
		window, err := json.Marshal(le.Window)
		if err != nil {
			return err
		}
		_, err = tx.Exec(
			`INSERT INTO length_estimates (
				session_id, vehicle_type, estimate_m, window_json, accepted, rejected, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (session_id, vehicle_type) DO UPDATE SET
				estimate_m = excluded.estimate_m,
				window_json = excluded.window_json,
				accepted = excluded.accepted,
				rejected = excluded.rejected,
				updated_at = excluded.updated_at`,
			sessionID, le.VehicleType, le.EstimateMeters, string(window), le.Accepted, le.Rejected, ts,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert estimate for type %d: %w", le.VehicleType, err)
		}
	}
	return tx.Commit()
}

// LatestEstimates returns, per vehicle type, the most recently updated
// estimate across all sessions.
func (db *DB) LatestEstimates() ([]StoredEstimate, error) {
	rows, err := db.Query(`
		SELECT e.session_id, e.vehicle_type, e.estimate_m, e.window_json,
		       e.accepted, e.rejected, e.updated_at
		FROM length_estimates e
		JOIN (
			SELECT vehicle_type, MAX(updated_at) AS updated_at
			FROM length_estimates
			GROUP BY vehicle_type
		) latest
		  ON latest.vehicle_type = e.vehicle_type AND latest.updated_at = e.updated_at
		GROUP BY e.vehicle_type
		ORDER BY e.vehicle_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredEstimate
	for rows.Next() {
		var (
			s       StoredEstimate
			window  string
			updated float64
		)
		if err := rows.Scan(&s.SessionID, &s.VehicleType, &s.EstimateMeters, &window, &s.Accepted, &s.Rejected, &updated); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(window), &s.Window); err != nil {
			return nil, fmt.Errorf("bad window for type %d: %w", s.VehicleType, err)
		}
		s.UpdatedAt = fromUnixSeconds(updated)
		out = append(out, s)
	}
	return out, rows.Err()
}

// SeedCalibrator warm-starts c from the latest stored windows and returns
// how many samples were applied.
func (db *DB) SeedCalibrator(c *calibration.Calibrator) (int, error) {
	estimates, err := db.LatestEstimates()
	if err != nil {
		return 0, err
	}
	total := 0
	for _, e := range estimates {
		total += c.Seed(e.VehicleType, e.Window)
	}
	return total, nil
}

// ObservationSummaries aggregates all observations of a session by type.
func (db *DB) ObservationSummaries(sessionID string) ([]ObservationSummary, error) {
	rows, err := db.Query(`
		SELECT vehicle_type,
		       SUM(CASE WHEN accepted THEN 1 ELSE 0 END),
		       SUM(CASE WHEN accepted THEN 0 ELSE 1 END),
		       COALESCE(MIN(clearance_m), 0),
		       COALESCE(MAX(clearance_m), 0)
		FROM length_observations
		WHERE session_id = ?
		GROUP BY vehicle_type
		ORDER BY vehicle_type`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ObservationSummary
	for rows.Next() {
		var s ObservationSummary
		if err := rows.Scan(&s.VehicleType, &s.Accepted, &s.Rejected, &s.MinMeters, &s.MaxMeters); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
