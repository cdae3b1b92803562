// Package chart aligns tire metric series and renders them as ECharts pages.
package chart

import (
	"sort"

	"github.com/tpms-dashboard/backend/internal/models"
)

// MergeForChart aligns three series on the union of their labels.
//
// Labels are sorted as plain strings, not as times, so "9:59:59 AM" lands after
// "10:00:00 AM". Charts built from a window that crosses an hour digit boundary
// will plot out of order. A label missing from a series yields a nil value.
func MergeForChart(pressure, temperature, battery []models.SeriesPoint) models.ChartData {
	series := [3][]models.SeriesPoint{pressure, temperature, battery}

	lookups := [3]map[string]float64{}
	union := make(map[string]struct{})
	for i, points := range series {
		lookups[i] = make(map[string]float64, len(points))
		for _, p := range points {
			lookups[i][p.Label] = p.Value
			union[p.Label] = struct{}{}
		}
	}

	labels := make([]string, 0, len(union))
	for label := range union {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var columns [3][]*float64
	for i := range columns {
		columns[i] = make([]*float64, len(labels))
		for j, label := range labels {
			if v, ok := lookups[i][label]; ok {
				columns[i][j] = &v
			}
		}
	}

	return models.ChartData{
		Labels:      labels,
		Pressure:    columns[0],
		Temperature: columns[1],
		Battery:     columns[2],
	}
}

// SeriesSource is the read side of the tire data store.
type SeriesSource interface {
	Series(kind models.MetricKind, tire int) []models.SeriesPoint
}

// MergeTire merges the three series of one tire.
func MergeTire(src SeriesSource, tire int) models.ChartData {
	return MergeForChart(
		src.Series(models.MetricPressure, tire),
		src.Series(models.MetricTemperature, tire),
		src.Series(models.MetricBattery, tire),
	)
}
