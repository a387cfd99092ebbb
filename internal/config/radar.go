package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultConfigPath is the path to the canonical radar defaults file.
const DefaultConfigPath = "config/radar.defaults.json"

// RadarConfig is the root configuration for the proximity radar. Every
// field is optional; the Get* accessors supply defaults for omitted values
// so partial files are safe.
type RadarConfig struct {
	// Ranking
	MaxDistanceMeters *float64 `json:"max_distance_m,omitempty" validate:"omitnil,gt=0"`
	MarginMeters      *float64 `json:"margin_m,omitempty" validate:"omitnil,gte=0"`
	MaxCars           *int     `json:"max_cars,omitempty" validate:"omitnil,min=1"`

	// Length calibration
	ClearanceMinMeters  *float64 `json:"clearance_min_m,omitempty" validate:"omitnil,gte=0"`
	ClearanceMaxMeters  *float64 `json:"clearance_max_m,omitempty" validate:"omitnil,gt=0"`
	WindowSize          *int     `json:"window_size,omitempty" validate:"omitnil,min=1"`
	DefaultLengthMeters *float64 `json:"default_length_m,omitempty" validate:"omitnil,gt=0"`

	// Display mapping
	CarOffsetMeters        *float64 `json:"car_offset_m,omitempty"`
	CarLimitsMarkLenMeters *float64 `json:"car_limits_mark_len_m,omitempty" validate:"omitnil,gt=0"`

	// Loop timing
	TickInterval *string `json:"tick_interval,omitempty"` // duration string like "16ms"

	// Disk telemetry reader
	TelemetryKeepRecords  *int    `json:"telemetry_keep_records,omitempty" validate:"omitnil,gte=0"`
	TelemetryRetryDelay   *string `json:"telemetry_retry_delay,omitempty"`
	TelemetryPollInterval *string `json:"telemetry_poll_interval,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyRadarConfig returns a RadarConfig with all fields unset.
func EmptyRadarConfig() *RadarConfig {
	return &RadarConfig{}
}

// LoadRadarConfig loads a RadarConfig from a JSON file. The file must have a
// .json extension and be under 1MB.
func LoadRadarConfig(path string) (*RadarConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyRadarConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory or
// one of its parents. Panics if the file cannot be loaded; intended for test
// setup.
func MustLoadDefaultConfig() *RadarConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadRadarConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// validate checks the struct tags, reporting fields by their JSON names.
var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	return v
}()

func finite(name string, v *float64) error {
	if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
		return fmt.Errorf("%s must be finite, got %v", name, *v)
	}
	return nil
}

func validDuration(name string, v *string) error {
	if v == nil || *v == "" {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
	}
	if d < 0 {
		return fmt.Errorf("%s must be non-negative, got %s", name, *v)
	}
	return nil
}

// Validate checks that the configured values are usable.
func (c *RadarConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s must satisfy %s %s, got %v", fe.Field(), fe.Tag(), fe.Param(), fe.Value())
		}
		return err
	}

	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"max_distance_m", c.MaxDistanceMeters},
		{"margin_m", c.MarginMeters},
		{"clearance_min_m", c.ClearanceMinMeters},
		{"clearance_max_m", c.ClearanceMaxMeters},
		{"default_length_m", c.DefaultLengthMeters},
		{"car_offset_m", c.CarOffsetMeters},
		{"car_limits_mark_len_m", c.CarLimitsMarkLenMeters},
	} {
		if err := finite(f.name, f.v); err != nil {
			return err
		}
	}

	if c.GetClearanceMinMeters() >= c.GetClearanceMaxMeters() {
		return fmt.Errorf("clearance_min_m (%v) must be below clearance_max_m (%v)",
			c.GetClearanceMinMeters(), c.GetClearanceMaxMeters())
	}

	if err := validDuration("tick_interval", c.TickInterval); err != nil {
		return err
	}
	if err := validDuration("telemetry_retry_delay", c.TelemetryRetryDelay); err != nil {
		return err
	}
	return validDuration("telemetry_poll_interval", c.TelemetryPollInterval)
}

func durationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

// GetMaxDistanceMeters returns the max_distance_m value or the default.
func (c *RadarConfig) GetMaxDistanceMeters() float64 {
	if c.MaxDistanceMeters == nil {
		return 7.0
	}
	return *c.MaxDistanceMeters
}

// GetMarginMeters returns the margin_m value or the default.
func (c *RadarConfig) GetMarginMeters() float64 {
	if c.MarginMeters == nil {
		return 5.0
	}
	return *c.MarginMeters
}

// GetMaxCars returns the max_cars value or the default.
func (c *RadarConfig) GetMaxCars() int {
	if c.MaxCars == nil {
		return 64
	}
	return *c.MaxCars
}

// GetClearanceMinMeters returns the clearance_min_m value or the default.
func (c *RadarConfig) GetClearanceMinMeters() float64 {
	if c.ClearanceMinMeters == nil {
		return 1.5
	}
	return *c.ClearanceMinMeters
}

// GetClearanceMaxMeters returns the clearance_max_m value or the default.
func (c *RadarConfig) GetClearanceMaxMeters() float64 {
	if c.ClearanceMaxMeters == nil {
		return 5.5
	}
	return *c.ClearanceMaxMeters
}

// GetWindowSize returns the window_size value or the default.
func (c *RadarConfig) GetWindowSize() int {
	if c.WindowSize == nil {
		return 5
	}
	return *c.WindowSize
}

// GetDefaultLengthMeters returns the default_length_m value or the default.
func (c *RadarConfig) GetDefaultLengthMeters() float64 {
	if c.DefaultLengthMeters == nil {
		return 4.0
	}
	return *c.DefaultLengthMeters
}

// GetCarOffsetMeters returns the car_offset_m value or the default.
func (c *RadarConfig) GetCarOffsetMeters() float64 {
	if c.CarOffsetMeters == nil {
		return 2.0
	}
	return *c.CarOffsetMeters
}

// GetCarLimitsMarkLenMeters returns the car_limits_mark_len_m value or the default.
func (c *RadarConfig) GetCarLimitsMarkLenMeters() float64 {
	if c.CarLimitsMarkLenMeters == nil {
		return 10.0
	}
	return *c.CarLimitsMarkLenMeters
}

// GetTickInterval parses and returns the TickInterval as a time.Duration.
func (c *RadarConfig) GetTickInterval() time.Duration {
	return durationOr(c.TickInterval, 16*time.Millisecond)
}

// GetTelemetryKeepRecords returns the telemetry_keep_records value or the default.
func (c *RadarConfig) GetTelemetryKeepRecords() int {
	if c.TelemetryKeepRecords == nil {
		return 64
	}
	return *c.TelemetryKeepRecords
}

// GetTelemetryRetryDelay parses and returns the TelemetryRetryDelay.
func (c *RadarConfig) GetTelemetryRetryDelay() time.Duration {
	return durationOr(c.TelemetryRetryDelay, 2*time.Millisecond)
}

// GetTelemetryPollInterval parses and returns the TelemetryPollInterval.
func (c *RadarConfig) GetTelemetryPollInterval() time.Duration {
	return durationOr(c.TelemetryPollInterval, time.Second)
}
