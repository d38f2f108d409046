package engine

import (
	"errors"
	"testing"
)

func TestStoreRange(t *testing.T) {
	s := DefaultStore()

	r, err := s.Range("battery")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Min != 2.5 || r.Max != 4.2 {
		t.Errorf("battery range = %+v, want [2.5, 4.2]", r)
	}

	_, err = s.Range("pressure")
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %v", err)
	}
	if cfgErr.ReadingType != "pressure" {
		t.Errorf("ConfigError.ReadingType = %q, want %q", cfgErr.ReadingType, "pressure")
	}
}

func TestStoreCalibration(t *testing.T) {
	s := DefaultStore()

	tests := []struct {
		readingType string
		expected    Calibration
		explicit    bool
	}{
		{"temperature", Calibration{Scale: 1.02, Offset: -0.5}, true},
		{"humidity", Calibration{Scale: 0.98, Offset: 1.0}, true},
		{"battery", IdentityCalibration, true},
		{"pressure", IdentityCalibration, false},
	}

	for _, tt := range tests {
		t.Run(tt.readingType, func(t *testing.T) {
			if got := s.Calibration(tt.readingType); got != tt.expected {
				t.Errorf("Calibration(%q) = %+v, want %+v", tt.readingType, got, tt.expected)
			}
			if got := s.HasCalibration(tt.readingType); got != tt.explicit {
				t.Errorf("HasCalibration(%q) = %v, want %v", tt.readingType, got, tt.explicit)
			}
		})
	}
}

func TestNewStoreValidation(t *testing.T) {
	tests := []struct {
		name         string
		ranges       map[string]Range
		calibrations map[string]Calibration
		wantErr      bool
		wantConfig   bool
	}{
		{
			name:   "valid",
			ranges: map[string]Range{"temperature": {Min: -10, Max: 60}},
		},
		{
			name:    "inverted range",
			ranges:  map[string]Range{"temperature": {Min: 60, Max: -10}},
			wantErr: true,
		},
		{
			name:         "calibration without range",
			ranges:       map[string]Range{"temperature": {Min: -10, Max: 60}},
			calibrations: map[string]Calibration{"humidity": {Scale: 1, Offset: 0}},
			wantErr:      true,
			wantConfig:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStore(tt.ranges, tt.calibrations)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewStore() error = %v, wantErr %v", err, tt.wantErr)
			}
			var cfgErr *ConfigError
			if tt.wantConfig && !errors.As(err, &cfgErr) {
				t.Errorf("expected *ConfigError, got %T", err)
			}
		})
	}
}

func TestStoreCheck(t *testing.T) {
	s := DefaultStore()

	if err := s.Check([]string{"temperature", "humidity"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := s.Check([]string{"temperature", "wind", "pressure"})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %v", err)
	}
	if cfgErr.ReadingType != "pressure" {
		t.Errorf("first failing type = %q, want %q", cfgErr.ReadingType, "pressure")
	}
}

func TestCalibrate(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		cal      Calibration
		expected float64
	}{
		{"temperature", 25, Calibration{Scale: 1.02, Offset: -0.5}, 25.0},
		{"humidity", 50, Calibration{Scale: 0.98, Offset: 1.0}, 50.0},
		{"identity", 3.7, IdentityCalibration, 3.7},
		{"negative", -10, Calibration{Scale: 2, Offset: 1}, -19},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calibrate(tt.value, tt.cal)
			if !approxEqual(got, tt.expected, 1e-9) {
				t.Errorf("Calibrate(%f) = %f, want %f", tt.value, got, tt.expected)
			}
			if again := Calibrate(tt.value, tt.cal); again != got {
				t.Errorf("Calibrate is not deterministic: %f != %f", again, got)
			}
		})
	}
}

func TestIsAnomalous(t *testing.T) {
	s := DefaultStore()

	tests := []struct {
		readingType string
		value       float64
		expected    bool
	}{
		{"temperature", -10, false},
		{"temperature", 60, false},
		{"temperature", 60.0001, true},
		{"temperature", -10.5, true},
		{"battery", 2.5, false},
		{"battery", 4.3, true},
		{"light_intensity", 2000, false},
	}

	for _, tt := range tests {
		got, err := s.IsAnomalous(tt.readingType, tt.value)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tt.expected {
			t.Errorf("IsAnomalous(%q, %f) = %v, want %v", tt.readingType, tt.value, got, tt.expected)
		}
	}

	if _, err := s.IsAnomalous("pressure", 1); err == nil {
		t.Error("expected error for unknown reading type")
	}
}
