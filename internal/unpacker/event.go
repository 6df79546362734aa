// Package unpacker supplies already-decoded events to the analyzer.
//
// Hardware stream decoding happens upstream; this package only models the
// lookups the analyzer needs (entries and samples per device, data key and
// segment) and replays events from memory or a JSON-lines stream.
package unpacker

import (
	"context"
	"sort"
)

// Event is one decoded trigger.
type Event interface {
	// Run is the run number the event belongs to.
	Run() int
	// Number is the event counter inside the run.
	Number() uint64
	// Entries returns how many samples segment holds for (device, data).
	Entries(device, data string, segment int) int
	// Get returns sample index of segment for (device, data), or 0 when
	// absent.
	Get(device, data string, segment, index int) int
}

// Source yields events until it returns io.EOF.
type Source interface {
	Next(ctx context.Context) (Event, error)
}

// MemoryEvent is an Event held in maps, used for replay and tests.
type MemoryEvent struct {
	RunNumber   int                                 `json:"run"`
	EventNumber uint64                              `json:"event"`
	Devices     map[string]map[string]map[int][]int `json:"devices"`
}

// NewMemoryEvent returns an empty event for run and number.
func NewMemoryEvent(run int, number uint64) *MemoryEvent {
	return &MemoryEvent{
		RunNumber:   run,
		EventNumber: number,
		Devices:     make(map[string]map[string]map[int][]int),
	}
}

// Add appends samples to (device, data, segment) and returns e for chaining.
func (e *MemoryEvent) Add(device, data string, segment int, samples ...int) *MemoryEvent {
	if e.Devices == nil {
		e.Devices = make(map[string]map[string]map[int][]int)
	}
	byData, ok := e.Devices[device]
	if !ok {
		byData = make(map[string]map[int][]int)
		e.Devices[device] = byData
	}
	bySeg, ok := byData[data]
	if !ok {
		bySeg = make(map[int][]int)
		byData[data] = bySeg
	}
	bySeg[segment] = append(bySeg[segment], samples...)
	return e
}

func (e *MemoryEvent) Run() int       { return e.RunNumber }
func (e *MemoryEvent) Number() uint64 { return e.EventNumber }

func (e *MemoryEvent) Entries(device, data string, segment int) int {
	return len(e.Devices[device][data][segment])
}

func (e *MemoryEvent) Get(device, data string, segment, index int) int {
	samples := e.Devices[device][data][segment]
	if index < 0 || index >= len(samples) {
		return 0
	}
	return samples[index]
}

// Segments lists the segments with samples for (device, data) in ascending
// order.
func (e *MemoryEvent) Segments(device, data string) []int {
	bySeg := e.Devices[device][data]
	out := make([]int, 0, len(bySeg))
	for seg, samples := range bySeg {
		if len(samples) > 0 {
			out = append(out, seg)
		}
	}
	sort.Ints(out)
	return out
}
