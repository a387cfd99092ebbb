package serialmux

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/proximity.radar/internal/calibration"
	"github.com/banshee-data/proximity.radar/internal/monitoring"
	"github.com/banshee-data/proximity.radar/internal/radar"
	"github.com/banshee-data/proximity.radar/internal/telemetry"
	"github.com/banshee-data/proximity.radar/internal/timeutil"
)

// CalibrationRecorder persists calibration observations. *db.DB satisfies it.
type CalibrationRecorder interface {
	RecordCalibration(sessionID string, seq uint64, at time.Time, obs []calibration.Observation, lengths []calibration.LengthEstimate) error
}

// Pipeline feeds tick lines through the radar engine and publishes the
// result. It must be driven from a single goroutine.
type Pipeline struct {
	Engine    *radar.Engine
	Store     *radar.FrameStore
	Recorder  CalibrationRecorder // optional
	SessionID string
	Clock     timeutil.Clock
}

// HandleLine processes one feed line. Skip-tick conditions are published to
// the store and are not returned as errors.
func (p *Pipeline) HandleLine(line string) error {
	switch ClassifyLine(line) {
	case LineBlank, LineComment:
		return nil
	case LineUnknown:
		monitoring.Debugf("ignoring non-record line: %q", line)
		return nil
	}

	in, err := telemetry.DecodeTickRecord([]byte(line))
	if err != nil {
		return err
	}

	frame, err := p.Engine.Tick(in)
	if err != nil {
		p.Store.Publish(nil, err, nil, p.Engine.Calibrator().Fires())
		if radar.IsSkipTick(err) {
			monitoring.Debugf("skipping tick: %v", err)
			return nil
		}
		return err
	}

	lengths := p.Engine.Lengths()
	p.Store.Publish(frame, nil, lengths, p.Engine.Calibrator().Fires())

	if p.Recorder == nil || len(frame.Observations) == 0 {
		return nil
	}
	now := time.Now()
	if p.Clock != nil {
		now = p.Clock.Now()
	}
	if err := p.Recorder.RecordCalibration(p.SessionID, frame.Seq, now, frame.Observations, lengths); err != nil {
		return fmt.Errorf("failed to record calibration: %w", err)
	}
	return nil
}

// Run subscribes to mux and handles lines until ctx is done or the mux
// closes. Line errors are logged and do not stop the loop.
func (p *Pipeline) Run(ctx context.Context, mux SerialMuxInterface) error {
	id, lines := mux.Subscribe()
	defer mux.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := p.HandleLine(line); err != nil {
				monitoring.Logf("tick line error: %v", err)
			}
		}
	}
}
