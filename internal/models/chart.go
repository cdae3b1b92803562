package models

// ChartData holds three metric columns aligned on one label axis.
// A nil value marks a label the series has no point for.
type ChartData struct {
	Labels      []string   `json:"labels" msgpack:"labels"`
	Pressure    []*float64 `json:"pressure" msgpack:"pressure"`
	Temperature []*float64 `json:"temperature" msgpack:"temperature"`
	Battery     []*float64 `json:"battery" msgpack:"battery"`
}

// Column returns the value column for kind.
func (c ChartData) Column(kind MetricKind) []*float64 {
	switch kind {
	case MetricPressure:
		return c.Pressure
	case MetricTemperature:
		return c.Temperature
	case MetricBattery:
		return c.Battery
	default:
		return nil
	}
}
