package factory

import (
	"fmt"

	"onlinemon/internal/histogram"
	"onlinemon/internal/registry"
	"onlinemon/pkg/domain"
	"onlinemon/pkg/platform/sentinel"
)

// Table is the flattened, index-addressable view of every histogram.
// Position s holds the histogram registered with sequential ID s, and the
// table never grows after Flatten.
type Table struct {
	reg   *registry.Registry
	items []histogram.Histogram
}

// Len returns the number of histograms.
func (t *Table) Len() int {
	return len(t.items)
}

// At returns the histogram at s.
func (t *Table) At(s domain.SequentialID) (histogram.Histogram, error) {
	if s < 0 || int(s) >= len(t.items) {
		return nil, fmt.Errorf("sequential id %d outside table of %d: %w", s, len(t.items), sentinel.ErrNotFound)
	}
	return t.items[s], nil
}

// Fill adds x to the one-dimensional histogram at s.
//
// Errors: sentinel.ErrNotFound for an out-of-range s, sentinel.ErrInvalidInput
// when the histogram at s is two-dimensional.
func (t *Table) Fill(s domain.SequentialID, x float64) error {
	h, err := t.At(s)
	if err != nil {
		return err
	}
	h1, ok := h.(*histogram.H1)
	if !ok {
		return fmt.Errorf("fill %s: not a 1-D histogram: %w", h.Name(), sentinel.ErrInvalidInput)
	}
	h1.Fill(x)
	return nil
}

// FillXY adds (x, y) to the two-dimensional histogram at s.
func (t *Table) FillXY(s domain.SequentialID, x, y float64) error {
	h, err := t.At(s)
	if err != nil {
		return err
	}
	h2, ok := h.(*histogram.H2)
	if !ok {
		return fmt.Errorf("fill %s: not a 2-D histogram: %w", h.Name(), sentinel.ErrInvalidInput)
	}
	h2.FillXY(x, y)
	return nil
}

// Base resolves the sequential ID of c. Callers resolve a block's base once
// and address further channels with SequentialID.Offset.
//
// Errors: sentinel.ErrNotFound when c was never registered; a miss never
// resolves to 0.
func (t *Table) Base(c domain.Classification) (domain.SequentialID, error) {
	return t.reg.SequentialOfClassification(c)
}

// Reset clears every histogram.
func (t *Table) Reset() {
	for _, h := range t.items {
		h.Reset()
	}
}

// Histograms returns the histograms in sequential order.
func (t *Table) Histograms() []histogram.Histogram {
	return append([]histogram.Histogram(nil), t.items...)
}
