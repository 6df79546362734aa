// Package registry binds histogram unique IDs, sequential IDs and names.
//
// A Registry is created once by the startup routine and passed to every
// component that needs lookups. Writes happen only while detector blocks are
// built; afterwards the registry is read-only and safe to share.
package registry

import (
	"fmt"
	"strings"
	"sync"

	"onlinemon/pkg/domain"
	"onlinemon/pkg/platform/sentinel"
)

// Entry is one registered histogram as seen by lookups.
type Entry struct {
	Sequential domain.SequentialID `json:"sequential_id"`
	Unique     domain.UniqueID     `json:"unique_id"`
	Name       string              `json:"name"`
}

// Registry is the source of truth between unique-ID space, sequential-ID
// space and name space.
//
// Invariants:
//   - bySeq and byUnique are exact inverses
//   - every sequential ID in [0, Count) has a unique ID and a name
//   - sequential IDs are assigned in call order, starting at 0, never reused
//
// Re-registering a unique ID or a name is rejected with sentinel.ErrConflict
// and allocates nothing. Once sealed, Register fails with
// sentinel.ErrRegistrationOrder so Count stays equal to the flattened length.
type Registry struct {
	mu       sync.RWMutex
	sealed   bool
	bySeq    []Entry
	byUnique map[domain.UniqueID]domain.SequentialID
	byName   map[string]domain.SequentialID
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		byUnique: make(map[domain.UniqueID]domain.SequentialID),
		byName:   make(map[string]domain.SequentialID),
	}
}

// Register allocates the next sequential ID and binds it to u and name.
//
// Errors:
//   - sentinel.ErrInvalidInput when name is blank
//   - sentinel.ErrConflict when u or name is already bound
//   - sentinel.ErrRegistrationOrder after Seal
func (r *Registry) Register(u domain.UniqueID, name string) (domain.SequentialID, error) {
	if strings.TrimSpace(name) == "" {
		return 0, fmt.Errorf("register unique id %d: empty name: %w", u, sentinel.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return 0, fmt.Errorf("register unique id %d: registry is sealed: %w", u, sentinel.ErrRegistrationOrder)
	}

	if prev, ok := r.byUnique[u]; ok {
		return 0, fmt.Errorf("register unique id %d: already bound to sequential id %d: %w", u, prev, sentinel.ErrConflict)
	}
	if prev, ok := r.byName[name]; ok {
		return 0, fmt.Errorf("register name %q: already bound to sequential id %d: %w", name, prev, sentinel.ErrConflict)
	}

	seq := domain.SequentialID(len(r.bySeq))
	r.bySeq = append(r.bySeq, Entry{Sequential: seq, Unique: u, Name: name})
	r.byUnique[u] = seq
	r.byName[name] = seq
	return seq, nil
}

// Seal closes registration and returns the final count.
func (r *Registry) Seal() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
	return len(r.bySeq)
}

// Sealed reports whether Seal was called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// SequentialOf resolves a unique ID.
func (r *Registry) SequentialOf(u domain.UniqueID) (domain.SequentialID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seq, ok := r.byUnique[u]
	if !ok {
		return 0, fmt.Errorf("unique id %d: %w", u, sentinel.ErrNotFound)
	}
	return seq, nil
}

// SequentialOfName resolves a display name.
func (r *Registry) SequentialOfName(name string) (domain.SequentialID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seq, ok := r.byName[name]
	if !ok {
		return 0, fmt.Errorf("histogram %q: %w", name, sentinel.ErrNotFound)
	}
	return seq, nil
}

// SequentialOfClassification encodes c and resolves the result.
//
// Errors: sentinel.ErrEncodingOverflow for an unencodable classification,
// sentinel.ErrNotFound when nothing was registered for it.
func (r *Registry) SequentialOfClassification(c domain.Classification) (domain.SequentialID, error) {
	u, err := domain.Encode(c)
	if err != nil {
		return 0, err
	}
	return r.SequentialOf(u)
}

// UniqueOf resolves a sequential ID.
func (r *Registry) UniqueOf(seq domain.SequentialID) (domain.UniqueID, error) {
	e, err := r.Entry(seq)
	if err != nil {
		return 0, err
	}
	return e.Unique, nil
}

// NameOf returns the display name bound to seq.
func (r *Registry) NameOf(seq domain.SequentialID) (string, error) {
	e, err := r.Entry(seq)
	if err != nil {
		return "", err
	}
	return e.Name, nil
}

// Entry returns the full binding for seq.
func (r *Registry) Entry(seq domain.SequentialID) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if seq < 0 || int(seq) >= len(r.bySeq) {
		return Entry{}, fmt.Errorf("sequential id %d: %w", seq, sentinel.ErrNotFound)
	}
	return r.bySeq[seq], nil
}

// Count returns the number of registered histograms.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySeq)
}

// Entries returns every binding ordered by sequential ID.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Entry(nil), r.bySeq...)
}
