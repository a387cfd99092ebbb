package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestEmptyRadarConfig_Defaults(t *testing.T) {
	cfg := EmptyRadarConfig()

	if got := cfg.GetMaxDistanceMeters(); got != 7.0 {
		t.Errorf("GetMaxDistanceMeters() = %v, want 7.0", got)
	}
	if got := cfg.GetMarginMeters(); got != 5.0 {
		t.Errorf("GetMarginMeters() = %v, want 5.0", got)
	}
	if got := cfg.GetClearanceMinMeters(); got != 1.5 {
		t.Errorf("GetClearanceMinMeters() = %v, want 1.5", got)
	}
	if got := cfg.GetClearanceMaxMeters(); got != 5.5 {
		t.Errorf("GetClearanceMaxMeters() = %v, want 5.5", got)
	}
	if got := cfg.GetWindowSize(); got != 5 {
		t.Errorf("GetWindowSize() = %d, want 5", got)
	}
	if got := cfg.GetDefaultLengthMeters(); got != 4.0 {
		t.Errorf("GetDefaultLengthMeters() = %v, want 4.0", got)
	}
	if got := cfg.GetCarOffsetMeters(); got != 2.0 {
		t.Errorf("GetCarOffsetMeters() = %v, want 2.0", got)
	}
	if got := cfg.GetCarLimitsMarkLenMeters(); got != 10.0 {
		t.Errorf("GetCarLimitsMarkLenMeters() = %v, want 10.0", got)
	}
	if got := cfg.GetMaxCars(); got != 64 {
		t.Errorf("GetMaxCars() = %d, want 64", got)
	}
	if got := cfg.GetTickInterval(); got != 16*time.Millisecond {
		t.Errorf("GetTickInterval() = %v, want 16ms", got)
	}
	if got := cfg.GetTelemetryKeepRecords(); got != 64 {
		t.Errorf("GetTelemetryKeepRecords() = %d, want 64", got)
	}
	if got := cfg.GetTelemetryRetryDelay(); got != 2*time.Millisecond {
		t.Errorf("GetTelemetryRetryDelay() = %v, want 2ms", got)
	}
	if got := cfg.GetTelemetryPollInterval(); got != time.Second {
		t.Errorf("GetTelemetryPollInterval() = %v, want 1s", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("empty config should validate: %v", err)
	}
}

func TestLoadRadarConfig(t *testing.T) {
	path := writeConfig(t, "radar.json", `{
  "max_distance_m": 10,
  "window_size": 7,
  "tick_interval": "33ms"
}`)

	cfg, err := LoadRadarConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.GetMaxDistanceMeters() != 10 {
		t.Errorf("GetMaxDistanceMeters() = %v, want 10", cfg.GetMaxDistanceMeters())
	}
	if cfg.GetWindowSize() != 7 {
		t.Errorf("GetWindowSize() = %d, want 7", cfg.GetWindowSize())
	}
	if cfg.GetTickInterval() != 33*time.Millisecond {
		t.Errorf("GetTickInterval() = %v, want 33ms", cfg.GetTickInterval())
	}
	// Omitted fields fall back to defaults.
	if cfg.GetMarginMeters() != 5.0 {
		t.Errorf("GetMarginMeters() = %v, want 5.0", cfg.GetMarginMeters())
	}
}

func TestLoadRadarConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "radar.yaml", `{}`, ".json extension"},
		{"bad json", "radar.json", `{"max_distance_m":`, "failed to parse"},
		{"negative distance", "radar.json", `{"max_distance_m": -1}`, "max_distance_m"},
		{"inverted band", "radar.json", `{"clearance_min_m": 6}`, "must be below"},
		{"zero window", "radar.json", `{"window_size": 0}`, "window_size"},
		{"zero cars", "radar.json", `{"max_cars": 0}`, "max_cars"},
		{"negative margin", "radar.json", `{"margin_m": -2}`, "margin_m"},
		{"bad duration", "radar.json", `{"tick_interval": "soon"}`, "tick_interval"},
		{"negative keep", "radar.json", `{"telemetry_keep_records": -1}`, "telemetry_keep_records"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRadarConfig(writeConfig(t, tt.file, tt.body))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}

	if _, err := LoadRadarConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadRadarConfig_TooLarge(t *testing.T) {
	body := `{"max_distance_m": 7` + strings.Repeat(" ", 1024*1024) + `}`
	_, err := LoadRadarConfig(writeConfig(t, "big.json", body))
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("expected size error, got %v", err)
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if cfg.MaxDistanceMeters == nil || *cfg.MaxDistanceMeters != 7.0 {
		t.Errorf("defaults file max_distance_m = %v, want 7.0", cfg.MaxDistanceMeters)
	}
	if cfg.WindowSize == nil || *cfg.WindowSize != 5 {
		t.Errorf("defaults file window_size = %v, want 5", cfg.WindowSize)
	}
}

func TestDurationFallback(t *testing.T) {
	bad := "garbage"
	cfg := &RadarConfig{TickInterval: &bad}
	if got := cfg.GetTickInterval(); got != 16*time.Millisecond {
		t.Errorf("unparseable tick_interval = %v, want default", got)
	}
	cfg = &RadarConfig{MaxDistanceMeters: ptrFloat64(3), WindowSize: ptrInt(9)}
	if cfg.GetMaxDistanceMeters() != 3 || cfg.GetWindowSize() != 9 {
		t.Errorf("explicit values not returned: %v %v", cfg.GetMaxDistanceMeters(), cfg.GetWindowSize())
	}
}
