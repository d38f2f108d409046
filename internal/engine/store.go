package engine

import (
	"fmt"
	"math"
	"sort"
)

// Range is the inclusive interval of plausible calibrated values for a reading type.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v lies within the range, bounds included.
func (r Range) Contains(v float64) bool {
	return r.Min <= v && v <= r.Max
}

// Calibration is an affine correction applied as value*Scale + Offset.
type Calibration struct {
	Scale  float64 `json:"scale"`
	Offset float64 `json:"offset"`
}

// IdentityCalibration leaves values unchanged.
var IdentityCalibration = Calibration{Scale: 1.0, Offset: 0.0}

// Store is the read-only lookup of expected ranges and calibration
// coefficients per reading type. It is safe for concurrent use once built.
type Store struct {
	ranges       map[string]Range
	calibrations map[string]Calibration
}

// NewStore copies the given tables into a new Store. Every calibration entry
// must belong to a reading type that also has a range.
func NewStore(ranges map[string]Range, calibrations map[string]Calibration) (*Store, error) {
	s := &Store{
		ranges:       make(map[string]Range, len(ranges)),
		calibrations: make(map[string]Calibration, len(calibrations)),
	}

	for name, r := range ranges {
		if name == "" {
			return nil, fmt.Errorf("reading type with empty name")
		}
		if math.IsNaN(r.Min) || math.IsNaN(r.Max) || r.Min > r.Max {
			return nil, fmt.Errorf("invalid range for reading type %q: [%v, %v]", name, r.Min, r.Max)
		}
		s.ranges[name] = r
	}

	for name, c := range calibrations {
		if _, ok := s.ranges[name]; !ok {
			return nil, &ConfigError{ReadingType: name}
		}
		s.calibrations[name] = c
	}

	return s, nil
}

// DefaultRanges returns the built-in expected ranges.
func DefaultRanges() map[string]Range {
	return map[string]Range{
		"temperature":     {Min: -10, Max: 60},
		"humidity":        {Min: 0, Max: 100},
		"soil_moisture":   {Min: 0, Max: 100},
		"light_intensity": {Min: 0, Max: 2000},
		"battery":         {Min: 2.5, Max: 4.2},
	}
}

// DefaultCalibrations returns the built-in calibration coefficients.
func DefaultCalibrations() map[string]Calibration {
	return map[string]Calibration{
		"temperature":     {Scale: 1.02, Offset: -0.5},
		"humidity":        {Scale: 0.98, Offset: 1.0},
		"soil_moisture":   IdentityCalibration,
		"light_intensity": IdentityCalibration,
		"battery":         IdentityCalibration,
	}
}

// DefaultStore returns a Store holding the built-in tables.
func DefaultStore() *Store {
	s, err := NewStore(DefaultRanges(), DefaultCalibrations())
	if err != nil {
		panic(err)
	}
	return s
}

// Range returns the expected range for readingType or a *ConfigError.
func (s *Store) Range(readingType string) (Range, error) {
	r, ok := s.ranges[readingType]
	if !ok {
		return Range{}, &ConfigError{ReadingType: readingType}
	}
	return r, nil
}

// Calibration returns the coefficients for readingType, or the identity
// calibration when none are configured.
func (s *Store) Calibration(readingType string) Calibration {
	if c, ok := s.calibrations[readingType]; ok {
		return c
	}
	return IdentityCalibration
}

// HasCalibration reports whether readingType has explicit coefficients.
func (s *Store) HasCalibration(readingType string) bool {
	_, ok := s.calibrations[readingType]
	return ok
}

// Check fails with a *ConfigError on the first reading type, in sorted order,
// that has no range.
func (s *Store) Check(readingTypes []string) error {
	sorted := append([]string(nil), readingTypes...)
	sort.Strings(sorted)
	for _, t := range sorted {
		if _, err := s.Range(t); err != nil {
			return err
		}
	}
	return nil
}

// ReadingTypes lists the configured reading types in sorted order.
func (s *Store) ReadingTypes() []string {
	names := make([]string, 0, len(s.ranges))
	for name := range s.ranges {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
