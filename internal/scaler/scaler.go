// Package scaler follows free-running scaler counters event by event and
// closes a spill record each time the clock counter goes backwards.
//
// The hardware clears its counters at the start of every spill, so the last
// readings before the clock wraps are the totals of the spill that just
// ended. Integrals over the run add up the increments of every counter and
// restart when the run number changes.
package scaler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"onlinemon/internal/catalogue"
	"onlinemon/internal/platform/metrics"
	"onlinemon/internal/unpacker"
	"onlinemon/pkg/platform/sentinel"
)

// DefaultHistory is the number of completed spills kept.
const DefaultHistory = 100

// FullDuty is reported when every requested trigger was accepted.
const FullDuty = 100.0

// Spill is one completed spill.
type Spill struct {
	// Seq numbers spills across runs, starting at 1.
	Seq uint64 `json:"seq"`
	Run int    `json:"run"`
	// Number is the spill index inside the run, starting at 0.
	Number int `json:"number"`
	// Event is the event that showed the clock wrap.
	Event         uint64            `json:"event"`
	Counts        map[string]uint64 `json:"counts"`
	KPiRatio      float64           `json:"k_pi_ratio"`
	DAQEfficiency float64           `json:"daq_efficiency"`
	DutyFactor    float64           `json:"duty_factor"`
}

// CounterValue is the latest reading of a counter and its run integral.
type CounterValue struct {
	Name     string `json:"name"`
	Current  uint64 `json:"current"`
	Integral uint64 `json:"integral"`
}

// Summary is the scaler state as shown to readers.
type Summary struct {
	Run int `json:"run"`
	// Spills counts completed spills in the current run.
	Spills   int            `json:"spills"`
	Counters []CounterValue `json:"counters"`
	Latest   *Spill         `json:"latest,omitempty"`
}

type counter struct {
	ch       catalogue.ScalerChannel
	current  uint64
	integral uint64
}

// Monitor tracks one scaler device. Process must be called from a single
// goroutine; readers may call Summary and Spills concurrently.
type Monitor struct {
	spec    catalogue.ScalerSpec
	history int
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu       sync.RWMutex
	haveRun  bool
	run      int
	spill    int
	seq      uint64
	clock    uint64
	counters []counter
	index    map[string]int
	spills   []Spill
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Monitor) {
		m.metrics = mt
	}
}

// New builds a Monitor for spec.
//
// Errors: sentinel.ErrInvalidInput when spec is nil.
func New(spec *catalogue.ScalerSpec, opts ...Option) (*Monitor, error) {
	if spec == nil {
		return nil, fmt.Errorf("scaler monitor needs a scaler spec: %w", sentinel.ErrInvalidInput)
	}
	m := &Monitor{
		spec:    *spec,
		history: spec.History,
		logger:  slog.Default(),
		index:   make(map[string]int, len(spec.Counters)),
	}
	if m.history <= 0 {
		m.history = DefaultHistory
	}
	for i, ch := range spec.Counters {
		m.counters = append(m.counters, counter{ch: ch})
		m.index[ch.Name] = i
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Process reads the scaler from ev. It returns the completed spill when ev
// shows the clock wrap, nil otherwise.
func (m *Monitor) Process(ctx context.Context, ev unpacker.Event) *Spill {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.haveRun || ev.Run() != m.run {
		m.startRun(ev.Run())
	}

	wrapped := false
	if v, ok := m.read(ev, m.spec.Clock); ok {
		wrapped = v < m.clock
		m.clock = v
	}

	// The spill record uses the readings from before this event.
	var done *Spill
	if wrapped {
		sp := m.closeSpill(ev.Number())
		done = &sp
	}

	for i := range m.counters {
		c := &m.counters[i]
		v, ok := m.read(ev, c.ch)
		if !ok {
			continue
		}
		if v < c.current {
			c.integral += v
		} else {
			c.integral += v - c.current
		}
		c.current = v
	}

	if done != nil {
		m.metrics.ObserveSpill(done.KPiRatio, done.DAQEfficiency, done.DutyFactor)
		m.logger.InfoContext(ctx, "spill completed",
			"run", done.Run,
			"spill", done.Number,
			"k_pi_ratio", done.KPiRatio,
			"daq_efficiency", done.DAQEfficiency,
			"duty_factor", done.DutyFactor,
		)
	}
	return done
}

func (m *Monitor) startRun(run int) {
	m.haveRun = true
	m.run = run
	m.spill = 0
	m.clock = 0
	for i := range m.counters {
		m.counters[i].current = 0
		m.counters[i].integral = 0
	}
}

func (m *Monitor) closeSpill(event uint64) Spill {
	counts := make(map[string]uint64, len(m.counters))
	for _, c := range m.counters {
		counts[c.ch.Name] = c.current
	}
	m.seq++
	sp := Spill{
		Seq:    m.seq,
		Run:    m.run,
		Number: m.spill,
		Event:  event,
		Counts: counts,
	}
	if m.spec.HasBeam() {
		sp.KPiRatio = ratio(counts[m.spec.Beam.Kaon], counts[m.spec.Beam.Pion])
	}
	if m.spec.HasDAQ() {
		d := m.spec.DAQ
		sp.DAQEfficiency = ratio(counts[d.Accepted], counts[d.Requested])
		sp.DutyFactor = DutyFactor(sp.DAQEfficiency, counts[d.RealTime], counts[d.LiveTime])
	}
	m.spill++

	m.spills = append(m.spills, sp)
	if over := len(m.spills) - m.history; over > 0 {
		m.spills = append(m.spills[:0:0], m.spills[over:]...)
	}
	return sp
}

// read returns sample 0 of ch; negative samples count as absent.
func (m *Monitor) read(ev unpacker.Event, ch catalogue.ScalerChannel) (uint64, bool) {
	if ev.Entries(m.spec.Device, ch.Data, ch.Segment) == 0 {
		return 0, false
	}
	v := ev.Get(m.spec.Device, ch.Data, ch.Segment, 0)
	if v < 0 {
		return 0, false
	}
	return uint64(v), true
}

func ratio(num, den uint64) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// DutyFactor derives the beam duty factor from the DAQ efficiency and the
// real and live time counters. A fully efficient DAQ reports FullDuty.
func DutyFactor(efficiency float64, real, live uint64) float64 {
	if 1-efficiency == 0 {
		return FullDuty
	}
	if live == 0 {
		return 0
	}
	return efficiency / (1 - efficiency) * (float64(real)/float64(live) - 1)
}

// Summary returns the current counters and the last completed spill.
func (m *Monitor) Summary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Summary{
		Run:      m.run,
		Spills:   m.spill,
		Counters: make([]CounterValue, 0, len(m.counters)),
	}
	if !m.haveRun {
		s.Run = -1
	}
	for _, c := range m.counters {
		s.Counters = append(s.Counters, CounterValue{Name: c.ch.Name, Current: c.current, Integral: c.integral})
	}
	if n := len(m.spills); n > 0 {
		latest := m.spills[n-1]
		s.Latest = &latest
	}
	return s
}

// Spills returns the kept spills, oldest first.
func (m *Monitor) Spills() []Spill {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Spill(nil), m.spills...)
}

// Integral returns the run integral of the named counter.
//
// Errors: sentinel.ErrNotFound for an unknown counter.
func (m *Monitor) Integral(name string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.index[name]
	if !ok {
		return 0, fmt.Errorf("scaler counter %q: %w", name, sentinel.ErrNotFound)
	}
	return m.counters[i].integral, nil
}
