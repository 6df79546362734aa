// Package histogram is the in-process counter backend: fixed-width binned
// histograms with under/overflow, and named groups for display.
//
// One goroutine fills; any number may read. Each histogram guards its bins
// with its own RWMutex and Snapshot returns a copy, so readers never observe
// a half-applied fill.
package histogram

import (
	"fmt"
	"math"
	"sync"

	"onlinemon/pkg/platform/sentinel"
)

// Axis describes fixed-width binning along one dimension.
type Axis struct {
	Bins  int     `json:"bins"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Title string  `json:"title,omitempty"`
}

// Validate checks that the axis has at least one bin and a positive range.
func (a Axis) Validate() error {
	if a.Bins <= 0 {
		return fmt.Errorf("axis %q: bins must be positive, got %d: %w", a.Title, a.Bins, sentinel.ErrInvalidInput)
	}
	if !(a.Max > a.Min) {
		return fmt.Errorf("axis %q: max %g must exceed min %g: %w", a.Title, a.Max, a.Min, sentinel.ErrInvalidInput)
	}
	return nil
}

// index returns the storage slot for x: 0 is underflow, Bins+1 is overflow.
func (a Axis) index(x float64) int {
	if math.IsNaN(x) || x < a.Min {
		return 0
	}
	if x >= a.Max {
		return a.Bins + 1
	}
	i := int((x-a.Min)/(a.Max-a.Min)*float64(a.Bins)) + 1
	if i > a.Bins {
		i = a.Bins
	}
	return i
}

// UpperEdge returns the upper edge of bin i (1-based).
func (a Axis) UpperEdge(i int) float64 {
	return a.Min + (a.Max-a.Min)*float64(i)/float64(a.Bins)
}

// Histogram is the capability set shared by every counter kind.
type Histogram interface {
	Name() string
	Title() string
	Dimension() int
	Entries() uint64
	Reset()
	Snapshot() Snapshot
}

// Snapshot is a point-in-time copy of a histogram's contents. Counts holds
// underflow at index 0 and overflow at the last index of each row; for 2-D
// histograms rows run along y.
type Snapshot struct {
	Name      string   `json:"name"`
	Title     string   `json:"title"`
	Dimension int      `json:"dimension"`
	X         Axis     `json:"x"`
	Y         *Axis    `json:"y,omitempty"`
	Entries   uint64   `json:"entries"`
	Sum       float64  `json:"sum"`
	Counts    []uint64 `json:"counts"`
}

// H1 is a one-dimensional histogram.
type H1 struct {
	name  string
	title string
	x     Axis

	mu      sync.RWMutex
	counts  []uint64
	entries uint64
	sum     float64
}

// NewH1 creates an empty one-dimensional histogram.
func NewH1(name, title string, x Axis) (*H1, error) {
	if name == "" {
		return nil, fmt.Errorf("histogram name is empty: %w", sentinel.ErrInvalidInput)
	}
	if err := x.Validate(); err != nil {
		return nil, err
	}
	return &H1{name: name, title: title, x: x, counts: make([]uint64, x.Bins+2)}, nil
}

func (h *H1) Name() string   { return h.name }
func (h *H1) Title() string  { return h.title }
func (h *H1) Dimension() int { return 1 }
func (h *H1) XAxis() Axis    { return h.x }

// Fill adds one observation of x. NaN lands in underflow and +Inf in
// overflow; neither contributes to the sum so snapshots stay encodable.
func (h *H1) Fill(x float64) {
	h.mu.Lock()
	h.counts[h.x.index(x)]++
	h.entries++
	if !math.IsNaN(x) && !math.IsInf(x, 0) {
		h.sum += x
	}
	h.mu.Unlock()
}

// Entries returns the number of fills since the last reset.
func (h *H1) Entries() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.entries
}

// Bin returns the count in bin i, where 0 is underflow and Bins+1 overflow.
func (h *H1) Bin(i int) uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if i < 0 || i >= len(h.counts) {
		return 0
	}
	return h.counts[i]
}

// Reset clears all bins.
func (h *H1) Reset() {
	h.mu.Lock()
	clear(h.counts)
	h.entries = 0
	h.sum = 0
	h.mu.Unlock()
}

// Snapshot copies the current contents under the read lock.
func (h *H1) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Snapshot{
		Name:      h.name,
		Title:     h.title,
		Dimension: 1,
		X:         h.x,
		Entries:   h.entries,
		Sum:       h.sum,
		Counts:    append([]uint64(nil), h.counts...),
	}
}

// H2 is a two-dimensional histogram.
type H2 struct {
	name  string
	title string
	x, y  Axis

	mu      sync.RWMutex
	counts  []uint64
	entries uint64
}

// NewH2 creates an empty two-dimensional histogram.
func NewH2(name, title string, x, y Axis) (*H2, error) {
	if name == "" {
		return nil, fmt.Errorf("histogram name is empty: %w", sentinel.ErrInvalidInput)
	}
	if err := x.Validate(); err != nil {
		return nil, err
	}
	if err := y.Validate(); err != nil {
		return nil, err
	}
	return &H2{name: name, title: title, x: x, y: y, counts: make([]uint64, (x.Bins+2)*(y.Bins+2))}, nil
}

func (h *H2) Name() string   { return h.name }
func (h *H2) Title() string  { return h.title }
func (h *H2) Dimension() int { return 2 }
func (h *H2) XAxis() Axis    { return h.x }
func (h *H2) YAxis() Axis    { return h.y }

// FillXY adds one observation at (x, y).
func (h *H2) FillXY(x, y float64) {
	h.mu.Lock()
	h.counts[h.y.index(y)*(h.x.Bins+2)+h.x.index(x)]++
	h.entries++
	h.mu.Unlock()
}

// Entries returns the number of fills since the last reset.
func (h *H2) Entries() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.entries
}

// Bin returns the count at (ix, iy) using the same slot convention as H1.Bin.
func (h *H2) Bin(ix, iy int) uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if ix < 0 || ix > h.x.Bins+1 || iy < 0 || iy > h.y.Bins+1 {
		return 0
	}
	return h.counts[iy*(h.x.Bins+2)+ix]
}

// Reset clears all bins.
func (h *H2) Reset() {
	h.mu.Lock()
	clear(h.counts)
	h.entries = 0
	h.mu.Unlock()
}

// Snapshot copies the current contents under the read lock.
func (h *H2) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	y := h.y
	return Snapshot{
		Name:      h.name,
		Title:     h.title,
		Dimension: 2,
		X:         h.x,
		Y:         &y,
		Entries:   h.entries,
		Counts:    append([]uint64(nil), h.counts...),
	}
}
