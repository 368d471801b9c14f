package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	scansTotal     *prometheus.CounterVec
	scanDuration   prometheus.Histogram
	universeBuilds *prometheus.CounterVec
	universeSize   prometheus.Gauge
	candidates     prometheus.Gauge
	buildDuration  prometheus.Histogram
	boardSize      prometheus.Gauge
	gateOutcomes   *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// New creates a recorder registered with the default Prometheus registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder registered with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		scansTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finscan_scans_total",
				Help: "Total number of scans by result",
			},
			[]string{"result"},
		),
		scanDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "finscan_scan_duration_seconds",
				Help:    "Duration of completed scans",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
			},
		),
		universeBuilds: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finscan_universe_builds_total",
				Help: "Total number of universe builds by result",
			},
			[]string{"result"},
		),
		universeSize: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "finscan_universe_size",
				Help: "Symbols kept by the latest universe build",
			},
		),
		candidates: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "finscan_universe_candidates",
				Help: "Raw candidate symbols seen by the latest universe build",
			},
		),
		buildDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "finscan_universe_build_duration_seconds",
				Help:    "Duration of universe builds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		boardSize: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "finscan_board_rows",
				Help: "Rows on the latest board",
			},
		),
		gateOutcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finscan_gate_outcomes_total",
				Help: "Gate evaluations by gate and outcome",
			},
			[]string{"gate", "passed"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finscan_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finscan_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordScan records a finished scan; seconds is ignored for scans that did not run.
func (r *Recorder) RecordScan(result string, seconds float64) {
	r.scansTotal.WithLabelValues(result).Inc()
	if result == "ok" {
		r.scanDuration.Observe(seconds)
	}
}

func (r *Recorder) RecordUniverseBuild(result string, candidates, kept int, seconds float64) {
	r.universeBuilds.WithLabelValues(result).Inc()
	r.buildDuration.Observe(seconds)
	if result == "ok" {
		r.candidates.Set(float64(candidates))
		r.universeSize.Set(float64(kept))
	}
}

func (r *Recorder) RecordBoardSize(n int) {
	r.boardSize.Set(float64(n))
}

func (r *Recorder) RecordGate(gate string, passed bool) {
	r.gateOutcomes.WithLabelValues(gate, strconv.FormatBool(passed)).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordScan(string, float64) {}
func (Nop) RecordUniverseBuild(string, int, int, float64) {}
func (Nop) RecordBoardSize(int) {}
func (Nop) RecordGate(string, bool) {}
func (Nop) RecordError(string) {}
func (Nop) RecordLatency(string, float64) {}
