package calibration

// ClearState is the edge-trigger state of the calibrator.
type ClearState string

const (
	StateClear    ClearState = "clear"
	StateNotClear ClearState = "not_clear"
)

// Transition advances the clear state for one tick. fire is true only on
// the NotClear -> Clear edge, which is the single tick a clearing event may
// be sampled.
func Transition(current ClearState, flag ProximityFlag) (next ClearState, fire bool) {
	if !flag.IsClear() {
		return StateNotClear, false
	}
	if current == StateNotClear {
		return StateClear, true
	}
	return StateClear, false
}
