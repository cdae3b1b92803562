package models

import "time"

// MetricKind names one of the three measured tire metrics.
type MetricKind string

const (
	MetricPressure    MetricKind = "pressure"
	MetricTemperature MetricKind = "temperature"
	MetricBattery     MetricKind = "battery"
)

// MetricKinds lists the metrics in display order.
var MetricKinds = []MetricKind{MetricPressure, MetricTemperature, MetricBattery}

// Valid reports whether k is a known metric.
func (k MetricKind) Valid() bool {
	switch k {
	case MetricPressure, MetricTemperature, MetricBattery:
		return true
	default:
		return false
	}
}

// Unit returns the display unit of the metric.
func (k MetricKind) Unit() string {
	switch k {
	case MetricPressure:
		return "PSI"
	case MetricTemperature:
		return "°C"
	case MetricBattery:
		return "%"
	default:
		return ""
	}
}

// MetricSnapshot holds the current values of one tire.
type MetricSnapshot struct {
	Pressure    float64   `json:"pressure" msgpack:"pressure"`       // PSI
	Temperature float64   `json:"temperature" msgpack:"temperature"` // °C
	Battery     float64   `json:"battery" msgpack:"battery"`         // percent
	UpdatedAt   time.Time `json:"updatedAt" msgpack:"updatedAt"`
}

// Value returns the snapshot's value for kind.
func (s MetricSnapshot) Value(kind MetricKind) float64 {
	switch kind {
	case MetricPressure:
		return s.Pressure
	case MetricTemperature:
		return s.Temperature
	case MetricBattery:
		return s.Battery
	default:
		return 0
	}
}

// MetricUpdate is a partial update; nil fields are left untouched.
type MetricUpdate struct {
	Pressure    *float64 `json:"pressure,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Battery     *float64 `json:"battery,omitempty"`
}

// Field returns the update's value for kind, if present.
func (u MetricUpdate) Field(kind MetricKind) (float64, bool) {
	var v *float64
	switch kind {
	case MetricPressure:
		v = u.Pressure
	case MetricTemperature:
		v = u.Temperature
	case MetricBattery:
		v = u.Battery
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}

// FullUpdate builds an update carrying all three metrics.
func FullUpdate(pressure, temperature, battery float64) MetricUpdate {
	return MetricUpdate{Pressure: &pressure, Temperature: &temperature, Battery: &battery}
}

// SeriesPoint is one entry of a metric history.
type SeriesPoint struct {
	Label string  `json:"x" msgpack:"x"`
	Value float64 `json:"y" msgpack:"y"`
}

// StatusLevel is the severity derived from a snapshot.
type StatusLevel string

const (
	StatusNormal   StatusLevel = "normal"
	StatusWarning  StatusLevel = "warning"
	StatusCritical StatusLevel = "critical"
)
