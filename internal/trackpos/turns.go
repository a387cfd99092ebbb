package trackpos

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/banshee-data/proximity.radar/internal/security"
)

// ErrInvalidTurn is returned for turn entries with an empty name or bounds
// outside 0 <= start < end <= 1.
var ErrInvalidTurn = errors.New("invalid turn")

const maxTurnsFileSize = 1 * 1024 * 1024

// Turn names the stretch of a lap from Start up to, but not including, End.
type Turn struct {
	Name  string  `json:"name"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Turns is a track's turn table in file order.
type Turns []Turn

type turnsFile struct {
	Turns Turns `json:"turns"`
}

// At returns the first turn whose [Start, End) range contains fraction.
func (ts Turns) At(fraction float64) (Turn, bool) {
	for _, t := range ts {
		if fraction >= t.Start && fraction < t.End {
			return t, true
		}
	}
	return Turn{}, false
}

// Validate checks every entry. Overlapping turns are allowed; At picks the
// first.
func (ts Turns) Validate() error {
	for i, t := range ts {
		switch {
		case t.Name == "":
			return fmt.Errorf("%w: turn %d has no name", ErrInvalidTurn, i)
		case math.IsNaN(t.Start) || math.IsNaN(t.End):
			return fmt.Errorf("%w: %q has NaN bounds", ErrInvalidTurn, t.Name)
		case t.Start < 0 || t.End > 1 || t.Start >= t.End:
			return fmt.Errorf("%w: %q range [%v, %v)", ErrInvalidTurn, t.Name, t.Start, t.End)
		}
	}
	return nil
}

// TurnsPath is where the turn table for track lives under dir.
func TurnsPath(dir, track string) string {
	return filepath.Join(dir, track+".json")
}

// LoadTurns reads dir/<track>.json, a {"turns":[{name,start,end}]} document.
// Track names that resolve outside dir are rejected.
func LoadTurns(dir, track string) (Turns, error) {
	if track == "" {
		return nil, errors.New("track name is required")
	}
	path := TurnsPath(dir, track)
	if err := security.ValidatePathWithinDirectory(path, dir); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat turns file: %w", err)
	}
	if info.Size() > maxTurnsFileSize {
		return nil, fmt.Errorf("turns file too large: %d bytes (max %d)", info.Size(), maxTurnsFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read turns file: %w", err)
	}

	var f turnsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := f.Turns.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f.Turns, nil
}
