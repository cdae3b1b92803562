// Package metrics exposes Prometheus collectors for the dashboard.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tpms-dashboard/backend/internal/models"
)

const (
	metricPrefix = "tpms_"

	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	registerOnce sync.Once

	ticksTotal     prometheus.Counter
	tickLatency    prometheus.Histogram
	activeSessions prometheus.Gauge
	tireStatus     *prometheus.GaugeVec
	configTotal    *prometheus.CounterVec
	exportTotal    *prometheus.CounterVec
	archiveRows    *prometheus.CounterVec
	mirrorWrites   *prometheus.CounterVec
	wsClients      prometheus.Gauge
)

// Init registers the collectors with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		ticksTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "simulation_ticks_total",
			Help: "Total completed simulation ticks across sessions",
		})
		tickLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "simulation_tick_seconds",
			Help:    "Simulation tick duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		})
		activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "active_sessions",
			Help: "Number of open dashboard sessions",
		})
		tireStatus = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "tires_by_status",
				Help: "Tires per status level after the latest tick, summed over sessions",
			},
			[]string{"status"},
		)
		configTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "configurations_total",
				Help: "Configuration submissions by result",
			},
			[]string{"result"},
		)
		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "exports_total",
				Help: "Exports by format and result",
			},
			[]string{"format", "result"},
		)
		archiveRows = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "archive_rows_total",
				Help: "Archived readings by result",
			},
			[]string{"result"},
		)
		mirrorWrites = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "mirror_writes_total",
				Help: "Redis mirror writes by result",
			},
			[]string{"result"},
		)
		wsClients = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "websocket_clients",
			Help: "Connected push channel clients",
		})

		prometheus.MustRegister(
			ticksTotal,
			tickLatency,
			activeSessions,
			tireStatus,
			configTotal,
			exportTotal,
			archiveRows,
			mirrorWrites,
			wsClients,
		)
	})
}

// ObserveTick records one completed tick.
func ObserveTick(duration time.Duration) {
	if ticksTotal != nil {
		ticksTotal.Inc()
	}
	if tickLatency != nil {
		tickLatency.Observe(duration.Seconds())
	}
}

// SetActiveSessions sets the open session gauge.
func SetActiveSessions(n int) {
	if activeSessions != nil {
		activeSessions.Set(float64(n))
	}
}

// AddTireStatus shifts the per-status gauge by delta for each level in counts.
func AddTireStatus(counts map[models.StatusLevel]int, delta float64) {
	if tireStatus == nil {
		return
	}
	for level, n := range counts {
		tireStatus.WithLabelValues(string(level)).Add(delta * float64(n))
	}
}

// IncConfiguration counts a configuration submission.
func IncConfiguration(result string) {
	if result == "" {
		result = ResultSuccess
	}
	if configTotal != nil {
		configTotal.WithLabelValues(result).Inc()
	}
}

// IncExport counts an export.
func IncExport(format, result string) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = ResultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
}

// AddArchiveRows counts archived readings.
func AddArchiveRows(result string, n int) {
	if n <= 0 {
		return
	}
	if archiveRows != nil {
		archiveRows.WithLabelValues(result).Add(float64(n))
	}
}

// IncMirrorWrite counts a mirror pipeline execution.
func IncMirrorWrite(result string) {
	if mirrorWrites != nil {
		mirrorWrites.WithLabelValues(result).Inc()
	}
}

// AddWSClients shifts the websocket client gauge.
func AddWSClients(delta int) {
	if wsClients != nil {
		wsClients.Add(float64(delta))
	}
}
