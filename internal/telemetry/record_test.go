package telemetry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/proximity.radar/internal/calibration"
	"github.com/banshee-data/proximity.radar/internal/radar"
)

const sampleLine = `{"self_idx":3,"self_lap_pct":0.1,"self_lap_dist":200.0,"car_left_right":"left",
"cars":[
 {"idx":3,"car_id":12,"lap_pct":0.1,"lap":3,"car_number":7},
 {"idx":0,"car_id":12,"lap_pct":0.1015,"lap":3,"car_number":8},
 {"idx":1,"car_id":99,"lap_pct":0.2,"lap":3,"car_number":0,"pace_car":true},
 {"idx":2,"car_id":14,"lap_pct":0.3,"lap":2,"car_number":9,"on_pit_road":true},
 {"idx":4,"car_id":14,"lap_pct":-1,"lap":-1,"car_number":11},
 {"idx":5,"car_id":0,"lap_pct":0,"lap":0,"car_number":-1},
 {"idx":6,"car_id":0,"lap_pct":0.4,"lap":1,"car_number":3,"spectator":true}
]}`

func TestDecodeTickRecord(t *testing.T) {
	t.Parallel()

	in, err := DecodeTickRecord([]byte(sampleLine))
	require.NoError(t, err)

	assert.Equal(t, 3, in.SelfIdx)
	assert.Equal(t, 0.1, in.SelfLapFraction)
	assert.Equal(t, 200.0, in.SelfLapDistMeters)
	assert.Equal(t, calibration.Left, in.Flag)
	require.Len(t, in.Cars, 7)
	assert.Equal(t, radar.Sample{CarIdx: 0, VehicleType: 12, LapFraction: 0.1015, Active: true}, in.Cars[1])

	active := map[int]bool{}
	for _, c := range in.Cars {
		active[c.CarIdx] = c.Active
	}
	assert.Equal(t, map[int]bool{3: true, 0: true, 1: false, 2: false, 4: false, 5: false, 6: false}, active)
}

func TestDecodeTickRecord_Flag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want calibration.ProximityFlag
	}{
		{`"clear"`, calibration.ClearNone},
		{`"2right"`, calibration.Right},
		{`1`, calibration.ClearNone},
		{`4`, calibration.Both},
		{`5`, calibration.Left},
		{`null`, calibration.ProximityOff},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			in, err := DecodeTickRecord([]byte(`{"self_idx":0,"self_lap_pct":0.5,"self_lap_dist":10,"car_left_right":` + tt.raw + `,"cars":[]}`))
			require.NoError(t, err)
			assert.Equal(t, tt.want, in.Flag)
		})
	}

	in, err := DecodeTickRecord([]byte(`{"self_idx":0,"cars":[]}`))
	require.NoError(t, err)
	assert.Equal(t, calibration.ProximityOff, in.Flag)
}

func TestDecodeTickRecord_Errors(t *testing.T) {
	t.Parallel()

	_, err := DecodeTickRecord([]byte("  \n"))
	assert.True(t, errors.Is(err, ErrEmptyRecord))

	for _, line := range []string{
		`{"self_idx":`,
		`{"self_idx":0,"car_left_right":"sideways"}`,
		`{"self_idx":0,"car_left_right":17}`,
		`{"self_idx":0,"car_left_right":true}`,
	} {
		_, err := DecodeTickRecord([]byte(line))
		assert.Error(t, err, line)
	}
}

func TestDecodeTickRecord_DrivesEngine(t *testing.T) {
	t.Parallel()

	in, err := DecodeTickRecord([]byte(sampleLine))
	require.NoError(t, err)

	f, err := radar.NewEngine(radar.DefaultConfig()).Tick(in)
	require.NoError(t, err)
	require.Len(t, f.Entries, 2)
	ahead, ok := f.Ahead()
	require.True(t, ok)
	assert.Equal(t, 0, ahead.CarIdx)
	assert.InDelta(t, -3.0, ahead.DeltaMeters, 1e-6)
}
