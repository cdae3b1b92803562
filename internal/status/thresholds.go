// Package status classifies tire metrics into severity levels.
package status

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Band is a closed range of acceptable values. A nil bound is unbounded.
type Band struct {
	Min *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max *float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// Breached reports whether v falls outside the band.
func (b Band) Breached(v float64) bool {
	if b.Min != nil && v < *b.Min {
		return true
	}
	if b.Max != nil && v > *b.Max {
		return true
	}
	return false
}

// Within reports whether b is no wider than outer on every bounded side of outer.
func (b Band) Within(outer Band) bool {
	if outer.Min != nil && (b.Min == nil || *b.Min < *outer.Min) {
		return false
	}
	if outer.Max != nil && (b.Max == nil || *b.Max > *outer.Max) {
		return false
	}
	return true
}

// MetricThresholds holds the warning and critical bands of one metric.
type MetricThresholds struct {
	Warning  Band `json:"warning" yaml:"warning"`
	Critical Band `json:"critical" yaml:"critical"`
}

// Thresholds is the full classification table.
type Thresholds struct {
	Pressure    MetricThresholds `json:"pressure" yaml:"pressure"`
	Temperature MetricThresholds `json:"temperature" yaml:"temperature"`
	Battery     MetricThresholds `json:"battery" yaml:"battery"`
}

func bound(v float64) *float64 { return &v }

// DefaultThresholds returns the dashboard's standard table.
//
//	critical: pressure < 20 or > 120, temperature > 80, battery < 20
//	warning:  pressure < 30 or > 100, temperature > 60, battery < 40
func DefaultThresholds() Thresholds {
	return Thresholds{
		Pressure: MetricThresholds{
			Warning:  Band{Min: bound(30), Max: bound(100)},
			Critical: Band{Min: bound(20), Max: bound(120)},
		},
		Temperature: MetricThresholds{
			Warning:  Band{Max: bound(60)},
			Critical: Band{Max: bound(80)},
		},
		Battery: MetricThresholds{
			Warning:  Band{Min: bound(40)},
			Critical: Band{Min: bound(20)},
		},
	}
}

// Validate checks that every warning band lies inside its critical band.
func (t Thresholds) Validate() error {
	for name, m := range map[string]MetricThresholds{
		"pressure":    t.Pressure,
		"temperature": t.Temperature,
		"battery":     t.Battery,
	} {
		if !m.Warning.Within(m.Critical) {
			return fmt.Errorf("%s: warning band must lie inside critical band", name)
		}
		if m.Critical.Min != nil && m.Critical.Max != nil && *m.Critical.Min > *m.Critical.Max {
			return fmt.Errorf("%s: critical min %.2f above max %.2f", name, *m.Critical.Min, *m.Critical.Max)
		}
	}
	return nil
}

// LoadThresholds reads a YAML threshold table from path.
func LoadThresholds(path string) (Thresholds, error) {
	file, err := os.Open(path)
	if err != nil {
		return Thresholds{}, err
	}
	defer file.Close()

	return ParseThresholds(file)
}

// ParseThresholds decodes a YAML threshold table. Metrics missing from the
// document keep their default bands.
func ParseThresholds(r io.Reader) (Thresholds, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Thresholds{}, err
	}

	t := DefaultThresholds()
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Thresholds{}, fmt.Errorf("parse thresholds: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Thresholds{}, err
	}
	return t, nil
}
