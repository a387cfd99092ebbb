package telemetry

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/proximity.radar/internal/monitoring"
	"github.com/banshee-data/proximity.radar/internal/security"
	"github.com/banshee-data/proximity.radar/internal/timeutil"
)

// TireLogKind identifies a tyre telemetry log in its header line.
const TireLogKind = "tire_telemetry"

// ErrBadHeader is returned when a file is not a tyre telemetry log.
var ErrBadHeader = errors.New("not a tyre telemetry log")

// TireHeader is the first line of a tyre log.
type TireHeader struct {
	Kind         string `json:"kind"`
	Version      int    `json:"version"`
	DriverCarIdx *int   `json:"driver_car_idx"`
}

// Corner holds carcass temperatures across one tyre: left, middle, right.
type Corner [3]float64

// TireTemps holds the four corners.
type TireTemps struct {
	LF Corner `json:"lf"`
	RF Corner `json:"rf"`
	LR Corner `json:"lr"`
	RR Corner `json:"rr"`
}

// TireRecord is one sample line of a tyre log.
type TireRecord struct {
	OnTrack bool      `json:"on_track"`
	Temps   TireTemps `json:"temps"`
}

// ReaderConfig controls how logs are opened.
type ReaderConfig struct {
	KeepRecords int           // records left unread after Open
	RetryDelay  time.Duration // pause before the single reopen attempt
}

// Reader reads one tyre log. It is not safe for concurrent use.
type Reader struct {
	cfg   ReaderConfig
	clock timeutil.Clock

	path  string
	f     *os.File
	br    *bufio.Reader
	ready bool
}

// NewReader returns a closed Reader.
func NewReader(cfg ReaderConfig, clock timeutil.Clock) *Reader {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Reader{cfg: cfg, clock: clock}
}

// Path returns the file currently open, if any.
func (r *Reader) Path() string { return r.path }

// Ready reports whether Next can return records.
func (r *Reader) Ready() bool { return r.ready }

// Open closes any current file and opens path. A failed open is retried
// once after RetryDelay since the sim may still hold the file. Only the
// last KeepRecords records remain to be read.
func (r *Reader) Open(path string) error {
	r.Close()

	f, err := os.Open(path)
	if err != nil {
		monitoring.Logf("tyre telemetry open failed (retrying): %s", path)
		r.clock.Sleep(r.cfg.RetryDelay)
		f, err = os.Open(path)
	}
	if err != nil {
		return fmt.Errorf("failed to open tyre telemetry: %w", err)
	}

	start, err := skipToTail(f, r.cfg.KeepRecords)
	if err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		f.Close()
		return fmt.Errorf("failed to seek tyre telemetry: %w", err)
	}

	r.path = path
	r.f = f
	r.br = bufio.NewReader(f)
	r.ready = true
	return nil
}

// skipToTail validates the header and returns the offset of the oldest of
// the last keep records, or the end of file when keep is zero.
func skipToTail(f *os.File, keep int) (int64, error) {
	br := bufio.NewReader(f)

	line, err := br.ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	var hdr TireHeader
	if json.Unmarshal(line, &hdr) != nil || hdr.Kind != TireLogKind || hdr.Version != 1 || hdr.DriverCarIdx == nil {
		return 0, ErrBadHeader
	}

	offset := int64(len(line))
	var starts []int64
	for {
		line, err := br.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			starts = append(starts, offset)
			if len(starts) > keep {
				starts = starts[1:]
			}
		}
		offset += int64(len(line))
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	if len(starts) == 0 {
		return offset, nil
	}
	return starts[0], nil
}

// Next returns the next record. ok is false when the record was taken off
// track or malformed, and at end of file, which also closes the reader.
func (r *Reader) Next() (rec TireRecord, ok bool) {
	if !r.ready {
		return rec, false
	}
	line, err := r.br.ReadBytes('\n')
	if len(bytes.TrimSpace(line)) == 0 {
		if err != nil {
			r.Close()
		}
		return rec, false
	}
	if jerr := json.Unmarshal(line, &rec); jerr != nil {
		monitoring.Debugf("tyre telemetry %s: skipping bad record: %v", r.path, jerr)
		return TireRecord{}, false
	}
	return rec, rec.OnTrack
}

// Close releases the file.
func (r *Reader) Close() {
	r.ready = false
	if r.f != nil {
		r.f.Close()
	}
	r.f, r.br, r.path = nil, nil, ""
}

// Handler double-buffers two Readers so a log can be opened without
// stalling Process. When the sim rotates to a new log, the previous one is
// complete and is opened into the standby reader in the background; on
// success the readers swap.
type Handler struct {
	opening sync.Mutex // held for the duration of a background open
	wg      sync.WaitGroup

	mu      sync.Mutex
	readers [2]*Reader
	cur     int
	oldPath string
	data    TireRecord
	hasData bool
}

// NewHandler returns a Handler with two closed readers.
func NewHandler(cfg ReaderConfig, clock timeutil.Clock) *Handler {
	return &Handler{readers: [2]*Reader{NewReader(cfg, clock), NewReader(cfg, clock)}}
}

// UpdateFile reports the sim's current log path. When it differs from the
// last one seen, the last one is opened in the background. A request that
// arrives while an open is in flight is dropped. It returns whether an open
// was started.
func (h *Handler) UpdateFile(path string) bool {
	h.mu.Lock()
	prev := h.oldPath
	h.oldPath = path
	h.mu.Unlock()

	if prev == "" || prev == path {
		return false
	}
	if !h.opening.TryLock() {
		monitoring.Debugf("tyre telemetry: open of %s dropped, another open in flight", prev)
		return false
	}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.opening.Unlock()
		h.openStandby(prev)
	}()
	return true
}

func (h *Handler) openStandby(path string) {
	h.mu.Lock()
	standby := h.readers[1-h.cur]
	h.mu.Unlock()

	// Only this goroutine touches the standby reader.
	if err := standby.Open(path); err != nil {
		monitoring.Logf("tyre telemetry read failed: %v", err)
		return
	}

	h.mu.Lock()
	h.readers[h.cur].Close()
	h.cur = 1 - h.cur
	h.mu.Unlock()
	monitoring.Debugf("tyre telemetry: switched to %s", path)
}

// Process advances the active reader by one record and returns the newest
// on-track record seen, or the previous one when there is nothing new.
func (h *Handler) Process() (TireRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if rec, ok := h.readers[h.cur].Next(); ok {
		h.data = rec
		h.hasData = true
	}
	return h.data, h.hasData
}

// Current returns the last record without reading.
func (h *Handler) Current() (TireRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.data, h.hasData
}

// ActivePath returns the path of the log being read.
func (h *Handler) ActivePath() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.readers[h.cur].Path()
}

// Wait blocks until any background open finishes.
func (h *Handler) Wait() { h.wg.Wait() }

// Close waits for background work and closes both readers.
func (h *Handler) Close() {
	h.wg.Wait()
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.readers {
		r.Close()
	}
}

// LatestLog returns the most recently modified .jsonl file in dir. Entries
// that resolve outside dir are skipped.
func LatestLog(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var (
		best    string
		bestMod time.Time
	)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := security.ValidatePathWithinDirectory(path, dir); err != nil {
			monitoring.Debugf("ignoring telemetry log %s: %v", path, err)
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if best == "" || info.ModTime().After(bestMod) {
			best, bestMod = path, info.ModTime()
		}
	}
	if best == "" {
		return "", os.ErrNotExist
	}
	return best, nil
}

// WatchDir polls dir on every tick of the clock and reports the newest log
// to UpdateFile until ctx is done.
func (h *Handler) WatchDir(ctx context.Context, dir string, clock timeutil.Clock, interval time.Duration) {
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if path, err := LatestLog(dir); err == nil {
				h.UpdateFile(path)
			}
		}
	}
}
