package serialmux

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/proximity.radar/internal/timeutil"
)

func TestReplayPort_PlaysLinesPerTick(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	port := NewReplayPort([]string{"one", "two"}, clock, 16*time.Millisecond, false)
	defer port.Close()

	r := bufio.NewReader(port)
	for _, want := range []string{"one\n", "two\n"} {
		clock.Advance(16 * time.Millisecond)
		got, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("ReadString: %v", err)
		}
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}

	if _, err := r.ReadString('\n'); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF after last line, got %v", err)
	}
}

func TestReplayPort_Loops(t *testing.T) {
	clock := timeutil.NewMockClock(time.Time{})
	port := NewReplayPort([]string{"a", "b"}, clock, time.Second, true)

	r := bufio.NewReader(port)
	var got []string
	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, line)
	}
	want := []string{"a\n", "b\n", "a\n", "b\n", "a\n"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}

	done := make(chan struct{})
	go func() {
		port.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not stop playback")
	}
}

func TestReplaySerialMux_EndToEnd(t *testing.T) {
	clock := timeutil.NewMockClock(time.Time{})
	mux := NewReplaySerialMux([]string{"x", "y", "z"}, clock, time.Millisecond, false)
	defer mux.Close()
	_, ch := mux.Subscribe()

	done := make(chan error, 1)
	go func() { done <- mux.Monitor(context.Background()) }()

	var got []string
	for len(got) < 3 {
		clock.Advance(time.Millisecond)
		select {
		case line := <-ch:
			got = append(got, line)
		case <-time.After(5 * time.Millisecond):
		}
	}
	if err := <-done; err != nil {
		t.Errorf("Monitor = %v", err)
	}
	if got[0] != "x" || got[2] != "z" {
		t.Errorf("got %v", got)
	}
}

func TestLoadFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticks.jsonl")
	if err := os.WriteFile(path, []byte("# header\n\n{\"a\":1}\n  {\"b\":2}  \n"), 0644); err != nil {
		t.Fatal(err)
	}
	lines, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	if len(lines) != 3 || lines[0] != "# header" || lines[2] != `{"b":2}` {
		t.Errorf("LoadFixture = %q", lines)
	}

	if _, err := LoadFixture(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing fixture")
	}
}
