package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original; EnableDebug(false) }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	// nil installs a no-op that must not reach the previous logger
	called = false
	SetLogger(nil)
	Logf("test message")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestDebugf(t *testing.T) {
	original := Logf
	defer func() { Logf = original; EnableDebug(false) }()

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})

	Debugf("hidden %d", 1)
	if len(lines) != 0 {
		t.Fatalf("debug output while disabled: %v", lines)
	}
	if DebugEnabled() {
		t.Fatal("debug should start disabled")
	}

	EnableDebug(true)
	Debugf("shown %d", 2)
	if len(lines) != 1 || lines[0] != "[debug] shown 2" {
		t.Fatalf("got %v, want one [debug] line", lines)
	}

	// Replacing the logger keeps debug enabled and follows the new sink.
	var other []string
	SetLogger(func(format string, v ...interface{}) {
		other = append(other, fmt.Sprintf(format, v...))
	})
	Debugf("moved")
	if len(other) != 1 || len(lines) != 1 {
		t.Fatalf("debug did not follow logger: lines=%v other=%v", lines, other)
	}

	EnableDebug(false)
	Debugf("hidden again")
	if len(other) != 1 {
		t.Fatalf("debug output after disable: %v", other)
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Error("Logf should not be nil by default")
	}
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Logf panicked: %v", r)
		}
	}()
	Logf("test message: %s", "value")
}
