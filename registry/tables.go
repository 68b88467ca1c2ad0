package registry

import (
	"fmt"
	"sync"

	"github.com/latticerun/host/hostconfig"
)

// AlreadyRegisteredError is returned when a start attempts to register an
// identity that is already present in the Handle Registry.
type AlreadyRegisteredError struct {
	Identity Identity
}

func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("registry: provider %s is already registered", e.Identity)
}

// triple is the key of the Provider Triple Table: identity plus contract,
// kept only for external observability (no value beyond presence).
type triple struct {
	identity   Identity
	contractID string
}

// Tables holds the three Registration Tables described in spec.md §4.2.
// The zero value is not usable; construct with NewTables.
type Tables struct {
	mu        sync.RWMutex
	handles   map[Identity]Record
	triples   map[triple]struct{}
	config    hostconfig.Config
	hasConfig bool
}

// NewTables creates empty Registration Tables.
func NewTables() *Tables {
	return &Tables{
		handles: make(map[Identity]Record),
		triples: make(map[triple]struct{}),
	}
}

// Register inserts identity into the Handle Registry and the triple table
// atomically. It fails with *AlreadyRegisteredError if identity is present.
// External observers never see a partially-registered identity: both table
// writes happen under the same lock.
func (t *Tables) Register(rec Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.handles[rec.Identity]; exists {
		return &AlreadyRegisteredError{Identity: rec.Identity}
	}

	t.handles[rec.Identity] = rec
	t.triples[triple{identity: rec.Identity, contractID: rec.ContractID}] = struct{}{}
	return nil
}

// Deregister removes identity from both tables. It is idempotent: removing
// an identity that is not present is a no-op, never an error.
func (t *Tables) Deregister(identity Identity) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, exists := t.handles[identity]
	if !exists {
		return
	}
	delete(t.handles, identity)
	delete(t.triples, triple{identity: identity, contractID: rec.ContractID})
}

// Lookup returns the registration record for identity, if any.
func (t *Tables) Lookup(identity Identity) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.handles[identity]
	return rec, ok
}

// HasTriple reports whether (identity, contractID) is present in the
// Provider Triple Table.
func (t *Tables) HasTriple(identity Identity, contractID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.triples[triple{identity: identity, contractID: contractID}]
	return ok
}

// List returns a snapshot of every registered record.
func (t *Tables) List() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Record, 0, len(t.handles))
	for _, rec := range t.handles {
		out = append(out, rec)
	}
	return out
}

// SetConfig stores the immutable host startup-options snapshot in the
// Config Table. It is written once, at host init.
func (t *Tables) SetConfig(cfg hostconfig.Config) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.config = cfg
	t.hasConfig = true
}

// Config returns the Config Table snapshot and whether it has been set.
func (t *Tables) Config() (hostconfig.Config, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.config, t.hasConfig
}
