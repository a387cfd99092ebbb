package radar

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/proximity.radar/internal/calibration"
	"github.com/banshee-data/proximity.radar/internal/config"
	"github.com/banshee-data/proximity.radar/internal/proximity"
	"github.com/banshee-data/proximity.radar/internal/trackpos"
)

const (
	selfType   = 10
	aheadType  = 20
	behindType = 30
	farType    = 40
)

// scenarioTick is self (car 0) at 10% of a 2000m lap with one car 3m
// ahead, one 4m behind and one on the far side of the track.
func scenarioTick(flag calibration.ProximityFlag) TickInput {
	return TickInput{
		SelfIdx:           0,
		SelfLapFraction:   0.10,
		SelfLapDistMeters: 200,
		Flag:              flag,
		Cars: []Sample{
			{CarIdx: 0, VehicleType: selfType, LapFraction: 0.10, Active: true},
			{CarIdx: 1, VehicleType: aheadType, LapFraction: 0.1015, Active: true},
			{CarIdx: 2, VehicleType: farType, LapFraction: 0.50, Active: true},
			{CarIdx: 3, VehicleType: behindType, LapFraction: 0.0980, Active: true},
		},
	}
}

func TestEngine_EndToEnd(t *testing.T) {
	t.Parallel()

	e := NewEngine(DefaultConfig())

	for i := 0; i < 3; i++ {
		f, err := e.Tick(scenarioTick(calibration.Left))
		require.NoError(t, err)
		assert.Empty(t, f.Observations, "tick %d", i)
		assert.Equal(t, calibration.StateNotClear, f.State)
	}

	f, err := e.Tick(scenarioTick(calibration.ClearNone))
	require.NoError(t, err)

	require.Len(t, f.Entries, 3)
	assert.InDelta(t, 2000.0, f.TrackLengthMeters, 1e-9)
	assert.Equal(t, 1, f.SelfIndex)
	assert.Equal(t, 0, f.Self().CarIdx)

	behind, ok := f.Behind()
	require.True(t, ok)
	assert.Equal(t, 3, behind.CarIdx)
	assert.InDelta(t, 4.0, behind.DeltaMeters, 1e-6)

	ahead, ok := f.Ahead()
	require.True(t, ok)
	assert.Equal(t, 1, ahead.CarIdx)
	assert.InDelta(t, -3.0, ahead.DeltaMeters, 1e-6)

	require.Len(t, f.Observations, 2)
	assert.Equal(t, aheadType, f.Observations[0].VehicleType)
	assert.True(t, f.Observations[0].Accepted)
	assert.Equal(t, selfType, f.Observations[1].VehicleType)
	assert.True(t, f.Observations[1].Accepted)

	est, ok := e.Calibrator().Estimate(aheadType)
	require.True(t, ok)
	assert.InDelta(t, 3.0, est, 1e-6)
	est, ok = e.Calibrator().Estimate(selfType)
	require.True(t, ok)
	assert.InDelta(t, 4.0, est, 1e-6)

	// 3m is below the default length, so the rendered length is floored.
	assert.Equal(t, 4.0, ahead.LengthMeters)

	// Staying clear does not sample again.
	f, err = e.Tick(scenarioTick(calibration.ClearNone))
	require.NoError(t, err)
	assert.Empty(t, f.Observations)
	assert.Equal(t, 1, e.Calibrator().Fires())
}

func TestEngine_Turn(t *testing.T) {
	t.Parallel()

	e := NewEngine(DefaultConfig())
	f, err := e.Tick(scenarioTick(calibration.Left))
	require.NoError(t, err)
	assert.Empty(t, f.Turn, "no table installed")

	e.SetTurns(trackpos.Turns{
		{Name: "T1", Start: 0.05, End: 0.10},
		{Name: "T2", Start: 0.10, End: 0.20},
	})
	f, err = e.Tick(scenarioTick(calibration.Left))
	require.NoError(t, err)
	assert.Equal(t, "T2", f.Turn, "self at 0.10 is past T1's exclusive end")

	in := scenarioTick(calibration.Left)
	in.SelfLapFraction = 0.3
	in.SelfLapDistMeters = 600
	in.Cars[0].LapFraction = 0.3
	f, err = e.Tick(in)
	require.NoError(t, err)
	assert.Empty(t, f.Turn)
}

func TestEngine_Wraparound(t *testing.T) {
	t.Parallel()

	e := NewEngine(DefaultConfig())
	f, err := e.Tick(TickInput{
		SelfIdx:           5,
		SelfLapFraction:   0.999,
		SelfLapDistMeters: 999,
		Flag:              calibration.ClearNone,
		Cars: []Sample{
			{CarIdx: 5, VehicleType: selfType, LapFraction: 0.999, Active: true},
			{CarIdx: 6, VehicleType: aheadType, LapFraction: 0.002, Active: true},
		},
	})
	require.NoError(t, err)

	ahead, ok := f.Ahead()
	require.True(t, ok)
	assert.Equal(t, 6, ahead.CarIdx)
	assert.InDelta(t, -3.0, ahead.DeltaMeters, 1e-6)
	_, ok = f.Behind()
	assert.False(t, ok)
}

func TestEngine_SkipTicks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*TickInput)
		want   error
		reason string
	}{
		{"zero fraction", func(in *TickInput) { in.SelfLapFraction = 0 }, ErrTrackLengthUndefined, "track_length"},
		{"negative fraction", func(in *TickInput) { in.SelfLapFraction = -0.2 }, ErrTrackLengthUndefined, "track_length"},
		{"self in pits", func(in *TickInput) { in.Cars[0].Active = false }, proximity.ErrSelfNotFound, "self_not_found"},
		{"self missing", func(in *TickInput) { in.SelfIdx = 9 }, proximity.ErrSelfNotFound, "self_not_found"},
		{"duplicate index", func(in *TickInput) { in.Cars[2].CarIdx = 1 }, ErrInvalidInput, "invalid_input"},
		{"negative index", func(in *TickInput) { in.Cars[1].CarIdx = -1 }, ErrInvalidInput, "invalid_input"},
		{"index too large", func(in *TickInput) { in.Cars[1].CarIdx = 64 }, ErrInvalidInput, "invalid_input"},
		{"self index too large", func(in *TickInput) { in.SelfIdx = 64 }, ErrInvalidInput, "invalid_input"},
		{"bad lap fraction", func(in *TickInput) { in.Cars[1].LapFraction = 1.5 }, ErrInvalidInput, "invalid_input"},
		{"too many cars", func(in *TickInput) { in.Cars = make([]Sample, 65) }, ErrInvalidInput, "invalid_input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := NewEngine(DefaultConfig())
			_, err := e.Tick(scenarioTick(calibration.Left))
			require.NoError(t, err)

			in := scenarioTick(calibration.ClearNone)
			tt.mutate(&in)
			f, err := e.Tick(in)
			assert.Nil(t, f)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.True(t, IsSkipTick(err))
			assert.Equal(t, tt.reason, SkipReason(err))

			// The skipped clear tick must not consume the clearing edge.
			assert.Equal(t, calibration.StateNotClear, e.Calibrator().State())
			f, err = e.Tick(scenarioTick(calibration.ClearNone))
			require.NoError(t, err)
			assert.Len(t, f.Observations, 2)
		})
	}
}

func TestEngine_InactiveCarsIgnored(t *testing.T) {
	t.Parallel()

	in := scenarioTick(calibration.ClearNone)
	in.Cars[1].Active = false
	in.Cars[1].LapFraction = -1 // the sim reports -1 for empty slots

	f, err := NewEngine(DefaultConfig()).Tick(in)
	require.NoError(t, err)
	require.Len(t, f.Entries, 2)
	_, ok := f.Ahead()
	assert.False(t, ok)
}

func TestEngine_Idempotent(t *testing.T) {
	t.Parallel()

	run := func() []*Frame {
		e := NewEngine(DefaultConfig())
		var frames []*Frame
		for _, flag := range []calibration.ProximityFlag{calibration.Right, calibration.ClearNone, calibration.ClearNone} {
			f, err := e.Tick(scenarioTick(flag))
			require.NoError(t, err)
			frames = append(frames, f)
		}
		return frames
	}
	if diff := cmp.Diff(run(), run()); diff != "" {
		t.Errorf("frames differ between identical runs (-first +second):\n%s", diff)
	}

	// With no clearing edge, repeated ticks differ only by sequence number.
	e := NewEngine(DefaultConfig())
	a, err := e.Tick(scenarioTick(calibration.Both))
	require.NoError(t, err)
	b, err := e.Tick(scenarioTick(calibration.Both))
	require.NoError(t, err)
	assert.Equal(t, a.Seq+1, b.Seq)
	b.Seq = a.Seq
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("repeat tick changed the frame (-first +second):\n%s", diff)
	}
}

func TestBuildFrame_Visibility(t *testing.T) {
	t.Parallel()

	r, err := proximity.NewRanker(proximity.RankerConfig{MaxDistanceMeters: 7, MarginMeters: 5}).Rank([]proximity.Candidate{
		{CarIdx: 0, VehicleType: 1},
		{CarIdx: 1, VehicleType: 1, DeltaMeters: 11.5},
		{CarIdx: 2, VehicleType: 1, DeltaMeters: 10.9},
		{CarIdx: 3, VehicleType: 2, DeltaMeters: -6},
		{CarIdx: 4, VehicleType: 2, DeltaMeters: 0},
	}, 0)
	require.NoError(t, err)

	lengths := map[int]float64{1: 4, 2: 4.5}
	f := BuildFrame(r, func(vt int) float64 { return lengths[vt] }, 7)

	visible := map[int]bool{}
	for _, e := range f.Entries {
		visible[e.CarIdx] = e.Visible
	}
	assert.Equal(t, map[int]bool{0: false, 1: false, 2: true, 3: true, 4: false}, visible)

	for _, e := range f.VisibleEntries() {
		assert.InDelta(t, e.SpanStart+lengths[e.VehicleType], e.SpanEnd, 1e-12)
	}

	again := BuildFrame(r, func(vt int) float64 { return lengths[vt] }, 7)
	assert.Empty(t, cmp.Diff(f, again))
}

func TestFrame_JSON(t *testing.T) {
	t.Parallel()

	f, err := NewEngine(DefaultConfig()).Tick(scenarioTick(calibration.Left))
	require.NoError(t, err)

	b, err := json.Marshal(f)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "left", out["flag"])
	assert.Equal(t, "not_clear", out["clear_state"])
	assert.EqualValues(t, 1, out["self_index"])
	assert.Len(t, out["entries"], 3)
}

func TestConfigFromTuning(t *testing.T) {
	t.Parallel()

	md, ws := 9.0, 7
	cfg := ConfigFromTuning(&config.RadarConfig{MaxDistanceMeters: &md, WindowSize: &ws})
	assert.Equal(t, 9.0, cfg.MaxDistanceMeters)
	assert.Equal(t, 9.0, cfg.Display.MaxDistanceMeters)
	assert.Equal(t, 7, cfg.Calibration.WindowSize)
	assert.Equal(t, 5.0, cfg.MarginMeters)

	def := DefaultConfig()
	assert.Equal(t, calibration.DefaultConfig(), def.Calibration)
	assert.Equal(t, 64, def.MaxCars)
	assert.Equal(t, ConfigFromTuning(config.MustLoadDefaultConfig()), def)
}
