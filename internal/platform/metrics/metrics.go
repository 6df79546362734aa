package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the process-level Prometheus metrics of the monitor.
type Metrics struct {
	// Registered histograms after startup
	RegistrySize prometheus.Gauge

	// Event path
	EventsProcessed prometheus.Counter
	Fills           *prometheus.CounterVec
	LookupMisses    *prometheus.CounterVec
	RunResets       prometheus.Counter

	// Spill-by-spill scaler monitoring
	Spills      prometheus.Counter
	SpillValues *prometheus.GaugeVec

	// Snapshot publishing by store
	SnapshotLatency *prometheus.HistogramVec
	SnapshotErrors  *prometheus.CounterVec
	StoreDegraded   *prometheus.GaugeVec
}

// New creates the metrics and registers them with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		RegistrySize: f.NewGauge(prometheus.GaugeOpts{
			Name: "onlinemon_registry_histograms",
			Help: "Number of histograms registered at startup",
		}),
		EventsProcessed: f.NewCounter(prometheus.CounterOpts{
			Name: "onlinemon_events_processed_total",
			Help: "Total number of events routed into histograms",
		}),
		Fills: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onlinemon_histogram_fills_total",
			Help: "Total histogram fills by detector block",
		}, []string{"block"}),
		LookupMisses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onlinemon_lookup_misses_total",
			Help: "Lookups that found no registered histogram, by source",
		}, []string{"source"}), // source: "http", "analyzer"
		RunResets: f.NewCounter(prometheus.CounterOpts{
			Name: "onlinemon_run_resets_total",
			Help: "Number of times all histograms were reset on a run change",
		}),
		Spills: f.NewCounter(prometheus.CounterOpts{
			Name: "onlinemon_spills_total",
			Help: "Number of completed beam spills",
		}),
		SpillValues: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "onlinemon_spill_value",
			Help: "Beam and DAQ figures of the last completed spill",
		}, []string{"quantity"}), // quantity: "k_pi_ratio", "daq_efficiency", "duty_factor"
		SnapshotLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "onlinemon_snapshot_save_duration_seconds",
			Help:    "Duration of snapshot batch saves by store",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"store"}),
		SnapshotErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onlinemon_snapshot_errors_total",
			Help: "Failed snapshot batch saves by store",
		}, []string{"store"}),
		StoreDegraded: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "onlinemon_snapshot_store_degraded",
			Help: "1 while a snapshot store's circuit breaker is open",
		}, []string{"store"}),
	}
}

// SetRegistrySize records the number of registered histograms.
func (m *Metrics) SetRegistrySize(n int) {
	if m != nil {
		m.RegistrySize.Set(float64(n))
	}
}

// IncrementEvents records one processed event.
func (m *Metrics) IncrementEvents() {
	if m != nil {
		m.EventsProcessed.Inc()
	}
}

// AddFills records n fills into histograms of block.
func (m *Metrics) AddFills(block string, n int) {
	if m != nil && n > 0 {
		m.Fills.WithLabelValues(block).Add(float64(n))
	}
}

// IncrementLookupMiss records a lookup that resolved nothing.
func (m *Metrics) IncrementLookupMiss(source string) {
	if m != nil {
		m.LookupMisses.WithLabelValues(source).Inc()
	}
}

// IncrementRunResets records a run-change reset.
func (m *Metrics) IncrementRunResets() {
	if m != nil {
		m.RunResets.Inc()
	}
}

// ObserveSpill records one completed spill.
func (m *Metrics) ObserveSpill(kPiRatio, daqEfficiency, dutyFactor float64) {
	if m == nil {
		return
	}
	m.Spills.Inc()
	m.SpillValues.WithLabelValues("k_pi_ratio").Set(kPiRatio)
	m.SpillValues.WithLabelValues("daq_efficiency").Set(daqEfficiency)
	m.SpillValues.WithLabelValues("duty_factor").Set(dutyFactor)
}

// ObserveSnapshotSave records a snapshot save against store.
func (m *Metrics) ObserveSnapshotSave(store string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.SnapshotLatency.WithLabelValues(store).Observe(d.Seconds())
	if err != nil {
		m.SnapshotErrors.WithLabelValues(store).Inc()
	}
}

// SetStoreDegraded flags store as degraded or recovered.
func (m *Metrics) SetStoreDegraded(store string, degraded bool) {
	if m == nil {
		return
	}
	v := 0.0
	if degraded {
		v = 1
	}
	m.StoreDegraded.WithLabelValues(store).Set(v)
}
