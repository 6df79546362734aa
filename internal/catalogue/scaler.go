package catalogue

import (
	"fmt"

	"go.uber.org/multierr"
)

// ScalerChannel names one free-running scaler counter: sample 0 of
// (device, Data, Segment).
type ScalerChannel struct {
	Name    string `json:"name"`
	Data    string `json:"data"`
	Segment int    `json:"segment"`
}

// BeamSpec names the counters of the kaon and pion beam.
type BeamSpec struct {
	Kaon string `json:"kaon,omitempty"`
	Pion string `json:"pion,omitempty"`
}

// DAQSpec names the counters behind DAQ efficiency and duty factor.
type DAQSpec struct {
	Requested string `json:"requested,omitempty"`
	Accepted  string `json:"accepted,omitempty"`
	RealTime  string `json:"real_time,omitempty"`
	LiveTime  string `json:"live_time,omitempty"`
}

// ScalerSpec configures spill-by-spill scaler monitoring. A spill ends when
// the Clock counter goes backwards.
type ScalerSpec struct {
	Device   string          `json:"device"`
	Clock    ScalerChannel   `json:"clock"`
	Counters []ScalerChannel `json:"counters"`
	Beam     BeamSpec        `json:"beam"`
	DAQ      DAQSpec         `json:"daq"`
	// History is how many completed spills are kept; 0 uses the default.
	History int `json:"history,omitempty"`
}

// HasBeam reports whether both beam counters are named.
func (s *ScalerSpec) HasBeam() bool {
	return s.Beam.Kaon != "" && s.Beam.Pion != ""
}

// HasDAQ reports whether every DAQ counter is named.
func (s *ScalerSpec) HasDAQ() bool {
	d := s.DAQ
	return d.Requested != "" && d.Accepted != "" && d.RealTime != "" && d.LiveTime != ""
}

func (s *ScalerSpec) validate() error {
	var errs error
	if s.Device == "" {
		errs = multierr.Append(errs, fmt.Errorf("scaler: device is required"))
	}
	if s.Clock.Data == "" {
		errs = multierr.Append(errs, fmt.Errorf("scaler: clock data is required"))
	}
	if s.Clock.Segment < 0 {
		errs = multierr.Append(errs, fmt.Errorf("scaler: clock segment must not be negative"))
	}
	if s.History < 0 {
		errs = multierr.Append(errs, fmt.Errorf("scaler: history must not be negative"))
	}

	names := make(map[string]bool, len(s.Counters))
	for i, c := range s.Counters {
		where := fmt.Sprintf("scaler counters[%d] (%s)", i, c.Name)
		switch {
		case c.Name == "":
			errs = multierr.Append(errs, fmt.Errorf("%s: name is required", where))
		case names[c.Name]:
			errs = multierr.Append(errs, fmt.Errorf("%s: name declared twice", where))
		}
		names[c.Name] = true
		if c.Data == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s: data is required", where))
		}
		if c.Segment < 0 {
			errs = multierr.Append(errs, fmt.Errorf("%s: segment must not be negative", where))
		}
	}

	refs := []struct {
		field, name string
	}{
		{"beam.kaon", s.Beam.Kaon},
		{"beam.pion", s.Beam.Pion},
		{"daq.requested", s.DAQ.Requested},
		{"daq.accepted", s.DAQ.Accepted},
		{"daq.real_time", s.DAQ.RealTime},
		{"daq.live_time", s.DAQ.LiveTime},
	}
	for _, r := range refs {
		if r.name != "" && !names[r.name] {
			errs = multierr.Append(errs, fmt.Errorf("scaler: %s names unknown counter %q", r.field, r.name))
		}
	}
	if (s.Beam.Kaon == "") != (s.Beam.Pion == "") {
		errs = multierr.Append(errs, fmt.Errorf("scaler: beam needs both kaon and pion"))
	}
	d := s.DAQ
	if set := d.Requested != "" || d.Accepted != "" || d.RealTime != "" || d.LiveTime != ""; set && !s.HasDAQ() {
		errs = multierr.Append(errs, fmt.Errorf("scaler: daq needs requested, accepted, real_time and live_time"))
	}
	return errs
}
