package calibration

import (
	"fmt"
	"strconv"
	"strings"
)

// ProximityFlag is the sim's side-by-side indicator for the current tick.
type ProximityFlag int

const (
	ProximityOff ProximityFlag = iota // spotter disabled
	ClearNone                         // nobody alongside
	Left
	Right
	Both
)

var proximityFlagNames = map[ProximityFlag]string{
	ProximityOff: "off",
	ClearNone:    "clear",
	Left:         "left",
	Right:        "right",
	Both:         "both",
}

func (f ProximityFlag) String() string {
	if s, ok := proximityFlagNames[f]; ok {
		return s
	}
	return fmt.Sprintf("ProximityFlag(%d)", int(f))
}

// IsClear reports whether no car is alongside.
func (f ProximityFlag) IsClear() bool {
	return f == ClearNone
}

// ParseProximityFlag accepts a flag name or the sim's integer code
// (0 off, 1 clear, 2 left, 3 right, 4 left+right, 5 two left, 6 two right).
func ParseProximityFlag(s string) (ProximityFlag, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "off":
		return ProximityOff, nil
	case "clear", "none":
		return ClearNone, nil
	case "left", "2left":
		return Left, nil
	case "right", "2right":
		return Right, nil
	case "both", "leftright":
		return Both, nil
	}
	code, err := strconv.Atoi(s)
	if err != nil {
		return ProximityOff, fmt.Errorf("unknown proximity flag %q", s)
	}
	return ProximityFlagFromCode(code)
}

// ProximityFlagFromCode maps the sim's integer side indicator.
func ProximityFlagFromCode(code int) (ProximityFlag, error) {
	switch code {
	case 0:
		return ProximityOff, nil
	case 1:
		return ClearNone, nil
	case 2, 5:
		return Left, nil
	case 3, 6:
		return Right, nil
	case 4:
		return Both, nil
	default:
		return ProximityOff, fmt.Errorf("unknown proximity code %d", code)
	}
}

// MarshalText encodes the flag by name.
func (f ProximityFlag) MarshalText() ([]byte, error) {
	if _, ok := proximityFlagNames[f]; !ok {
		return nil, fmt.Errorf("unknown proximity flag %d", int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText accepts anything ParseProximityFlag does.
func (f *ProximityFlag) UnmarshalText(b []byte) error {
	v, err := ParseProximityFlag(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}
