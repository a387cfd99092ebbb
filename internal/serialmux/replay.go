package serialmux

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/proximity.radar/internal/timeutil"
)

// ReplayPort plays recorded tick lines back at a fixed interval, standing in
// for the bridge during development.
type ReplayPort struct {
	*io.PipeReader
	w    *io.PipeWriter
	stop chan struct{}
	once sync.Once
	done chan struct{}
}

// NewReplayPort starts writing lines, one per tick of clock. With loop set
// it restarts from the first line at the end; otherwise readers see EOF.
func NewReplayPort(lines []string, clock timeutil.Clock, interval time.Duration, loop bool) *ReplayPort {
	r, w := io.Pipe()
	p := &ReplayPort{PipeReader: r, w: w, stop: make(chan struct{}), done: make(chan struct{})}

	ticker := clock.NewTicker(interval)
	go func() {
		defer close(p.done)
		defer w.Close()
		defer ticker.Stop()

		for i := 0; ; {
			if i >= len(lines) {
				if !loop || len(lines) == 0 {
					return
				}
				i = 0
			}
			select {
			case <-p.stop:
				return
			case <-ticker.C():
			}
			if _, err := io.WriteString(w, lines[i]+"\n"); err != nil {
				return
			}
			i++
		}
	}()
	return p
}

// Close stops playback and unblocks readers.
func (p *ReplayPort) Close() error {
	p.once.Do(func() { close(p.stop) })
	err := p.PipeReader.Close()
	<-p.done
	return err
}

// LoadFixture reads non-blank lines from a recorded tick file.
func LoadFixture(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scan := bufio.NewScanner(f)
	scan.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scan.Scan() {
		if line := strings.TrimSpace(scan.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scan.Err(); err != nil {
		return nil, fmt.Errorf("failed to read fixture %s: %w", path, err)
	}
	return lines, nil
}

// NewReplaySerialMux wraps a ReplayPort in a mux.
func NewReplaySerialMux(lines []string, clock timeutil.Clock, interval time.Duration, loop bool) *SerialMux[*ReplayPort] {
	return NewSerialMux(NewReplayPort(lines, clock, interval, loop))
}
