package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// Debugf carries per-tick radar diagnostics (neighbour deltas, calibration
// decisions, length table dumps). It is a no-op until EnableDebug(true).
var Debugf func(format string, v ...interface{}) = noop

func noop(string, ...interface{}) {}

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
// An enabled debug logger follows the replacement.
func SetLogger(f func(format string, v ...interface{})) {
	debugOn := debugEnabled
	if f == nil {
		f = noop
	}
	Logf = f
	EnableDebug(debugOn)
}

var debugEnabled bool

// EnableDebug routes Debugf through Logf with a "[debug] " prefix, or mutes it.
func EnableDebug(on bool) {
	debugEnabled = on
	if !on {
		Debugf = noop
		return
	}
	logf := Logf
	Debugf = func(format string, v ...interface{}) {
		logf("[debug] "+format, v...)
	}
}

// DebugEnabled reports whether Debugf is active.
func DebugEnabled() bool {
	return debugEnabled
}
