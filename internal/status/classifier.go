package status

import "github.com/tpms-dashboard/backend/internal/models"

// Classifier maps snapshots to status levels using one threshold table.
type Classifier struct {
	Thresholds Thresholds
}

// NewClassifier returns a classifier for t.
func NewClassifier(t Thresholds) *Classifier {
	return &Classifier{Thresholds: t}
}

// Default returns a classifier using DefaultThresholds.
func Default() *Classifier {
	return NewClassifier(DefaultThresholds())
}

// Classify checks every critical band before any warning band.
func (c *Classifier) Classify(s models.MetricSnapshot) models.StatusLevel {
	for _, kind := range models.MetricKinds {
		if c.metric(kind).Critical.Breached(s.Value(kind)) {
			return models.StatusCritical
		}
	}
	for _, kind := range models.MetricKinds {
		if c.metric(kind).Warning.Breached(s.Value(kind)) {
			return models.StatusWarning
		}
	}
	return models.StatusNormal
}

// ClassifyMetric grades a single value, used to colour table cells.
func (c *Classifier) ClassifyMetric(kind models.MetricKind, v float64) models.StatusLevel {
	m := c.metric(kind)
	switch {
	case m.Critical.Breached(v):
		return models.StatusCritical
	case m.Warning.Breached(v):
		return models.StatusWarning
	default:
		return models.StatusNormal
	}
}

// ClassifyAll grades each metric of s separately.
func (c *Classifier) ClassifyAll(s models.MetricSnapshot) map[models.MetricKind]models.StatusLevel {
	out := make(map[models.MetricKind]models.StatusLevel, len(models.MetricKinds))
	for _, kind := range models.MetricKinds {
		out[kind] = c.ClassifyMetric(kind, s.Value(kind))
	}
	return out
}

func (c *Classifier) metric(kind models.MetricKind) MetricThresholds {
	switch kind {
	case models.MetricPressure:
		return c.Thresholds.Pressure
	case models.MetricTemperature:
		return c.Thresholds.Temperature
	case models.MetricBattery:
		return c.Thresholds.Battery
	default:
		return MetricThresholds{}
	}
}
