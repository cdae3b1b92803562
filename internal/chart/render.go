package chart

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/tpms-dashboard/backend/internal/models"
)

// View selects which metrics a rendered chart shows.
type View string

const (
	ViewAll         View = "all"
	ViewPressure    View = View(models.MetricPressure)
	ViewTemperature View = View(models.MetricTemperature)
	ViewBattery     View = View(models.MetricBattery)
)

// ParseView accepts a metric name, "all" or "" (all).
func ParseView(s string) (View, error) {
	switch View(s) {
	case "", ViewAll:
		return ViewAll, nil
	case ViewPressure, ViewTemperature, ViewBattery:
		return View(s), nil
	default:
		return "", fmt.Errorf("unknown chart view %q", s)
	}
}

func (v View) kinds() []models.MetricKind {
	if v == ViewAll || v == "" {
		return models.MetricKinds
	}
	return []models.MetricKind{models.MetricKind(v)}
}

var seriesColors = map[models.MetricKind]string{
	models.MetricPressure:    "#4bc0c0",
	models.MetricTemperature: "#ff6384",
	models.MetricBattery:     "#36a2eb",
}

// RenderOptions tune the generated page.
type RenderOptions struct {
	Title      string
	Subtitle   string
	View       View
	AssetsHost string // empty uses the go-echarts default CDN
}

// NewTireChart builds a line chart of data. With every metric shown, pressure
// uses the left axis and temperature and battery share the right one.
func NewTireChart(data models.ChartData, o RenderOptions) *charts.Line {
	line := charts.NewLine()

	initOpts := opts.Initialization{PageTitle: o.Title, Width: "100%", Height: "480px"}
	if o.AssetsHost != "" {
		initOpts.AssetsHost = o.AssetsHost
	}

	kinds := o.View.kinds()
	dual := len(kinds) > 1

	line.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts),
		charts.WithTitleOpts(opts.Title{Title: o.Title, Subtitle: o.Subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time", Type: "category"}),
		charts.WithYAxisOpts(opts.YAxis{Name: axisName(kinds[0], dual), Type: "value"}),
		charts.WithDataZoomOpts(
			opts.DataZoom{Type: "inside", Start: 0, End: 100},
			opts.DataZoom{Type: "slider", Start: 0, End: 100},
		),
		charts.WithToolboxOpts(opts.Toolbox{
			Show: opts.Bool(true),
			Feature: &opts.ToolBoxFeature{
				DataZoom: &opts.ToolBoxFeatureDataZoom{Show: opts.Bool(true)},
				Restore:  &opts.ToolBoxFeatureRestore{Show: opts.Bool(true)},
			},
		}),
	)
	if dual {
		line.ExtendYAxis(opts.YAxis{Name: "°C / %", Type: "value"})
	}

	line.SetXAxis(data.Labels)
	for _, kind := range kinds {
		axis := 0
		if dual && kind != models.MetricPressure {
			axis = 1
		}
		line.AddSeries(seriesName(kind), lineData(data.Column(kind)),
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true), YAxisIndex: axis, ConnectNulls: opts.Bool(false)}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: seriesColors[kind]}),
		)
	}
	return line
}

// RenderTireChart writes a standalone HTML page with the chart of data.
func RenderTireChart(w io.Writer, data models.ChartData, o RenderOptions) error {
	page := components.NewPage()
	if o.AssetsHost != "" {
		page.SetAssetsHost(o.AssetsHost)
	}
	page.AddCharts(NewTireChart(data, o))

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

func lineData(column []*float64) []opts.LineData {
	out := make([]opts.LineData, len(column))
	for i, v := range column {
		if v == nil {
			// ECharts draws a gap for "-"
			out[i] = opts.LineData{Value: "-"}
			continue
		}
		out[i] = opts.LineData{Value: *v}
	}
	return out
}

func seriesName(kind models.MetricKind) string {
	switch kind {
	case models.MetricPressure:
		return "Pressure (PSI)"
	case models.MetricTemperature:
		return "Temperature (°C)"
	case models.MetricBattery:
		return "Battery (%)"
	default:
		return string(kind)
	}
}

func axisName(kind models.MetricKind, dual bool) string {
	if dual {
		return "PSI"
	}
	return kind.Unit()
}
