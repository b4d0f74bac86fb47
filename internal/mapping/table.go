package mapping

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/soar/padview/internal/diag"
	"github.com/soar/padview/internal/gamepad"
	"github.com/soar/padview/internal/store"
)

// Resolver finds the mapping for a fingerprint. It never returns nil.
type Resolver interface {
	Resolve(fingerprint string) *Mapping
}

type tableSnapshot struct {
	records  map[string]Record
	compiled map[string]*Mapping
}

// Table is the per-device mapping store. Readers on the frame loop see an
// immutable snapshot; writers build a new snapshot, persist it, then swap.
type Table struct {
	kv   store.KV
	sink diag.Sink

	mu   sync.Mutex // serialises writers
	snap atomic.Pointer[tableSnapshot]
}

// NewTable creates a table holding the built-in records. Call Load to read
// the persisted table.
func NewTable(kv store.KV, sink diag.Sink) *Table {
	t := &Table{kv: kv, sink: sink}
	t.snap.Store(mustSnapshot(DefaultRecords()))
	return t
}

func mustSnapshot(records map[string]Record) *tableSnapshot {
	s := &tableSnapshot{records: records, compiled: make(map[string]*Mapping, len(records))}
	for k, rec := range records {
		s.compiled[k] = mustCompile(rec)
	}
	return s
}

// Load reads the persisted table. A missing table is initialised with the
// built-in one; a malformed table is replaced by it and announced.
func (t *Table) Load() {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, ok, err := t.kv.Get(store.KeyMappings)
	if err != nil {
		t.sink.Announce(diag.Error, "Could not read mapping table: %v", err)
		return
	}
	if !ok {
		t.resetLocked()
		return
	}

	records, err := ValidateTable(data)
	if err != nil {
		t.sink.Announce(diag.Error, "Stored mapping table rejected, restoring defaults: %v", err)
		t.resetLocked()
		return
	}

	s := &tableSnapshot{records: records, compiled: make(map[string]*Mapping, len(records))}
	for k, rec := range records {
		// ValidateTable already compiled every entry
		s.compiled[k], _ = Compile(rec)
	}
	t.snap.Store(s)
	t.sink.Announce(diag.Info, "Loaded %d device mappings", len(records))
}

// Reset restores and persists the built-in table.
func (t *Table) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resetLocked()
}

func (t *Table) resetLocked() error {
	s := mustSnapshot(DefaultRecords())
	if err := t.persist(s.records); err != nil {
		t.sink.Announce(diag.Error, "Could not save mapping table: %v", err)
		t.snap.Store(s)
		return err
	}
	t.snap.Store(s)
	return nil
}

// Resolve implements Resolver: exact fingerprint, then its vendor prefix,
// then the DInput entry, then the built-in DInput mapping.
func (t *Table) Resolve(fingerprint string) *Mapping {
	s := t.snap.Load()
	if m, ok := s.compiled[fingerprint]; ok {
		return m
	}
	if prefix := gamepad.VendorPrefix(fingerprint); prefix != "" {
		if m, ok := s.compiled[prefix]; ok {
			return m
		}
	}
	if m, ok := s.compiled[gamepad.DInput]; ok {
		return m
	}
	return builtinDInput
}

// Get returns the record stored under key.
func (t *Table) Get(key string) (Record, bool) {
	rec, ok := t.snap.Load().records[key]
	return rec, ok
}

// Records returns a copy of every stored record.
func (t *Table) Records() map[string]Record {
	s := t.snap.Load()
	out := make(map[string]Record, len(s.records))
	for k, v := range s.records {
		out[k] = v
	}
	return out
}

// Set validates rec and stores it under key.
func (t *Table) Set(key string, rec Record) error {
	if key == "" {
		return errors.New("empty mapping key")
	}
	m, err := Compile(rec)
	if err != nil {
		return errors.Wrapf(err, "mapping %q", key)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.update(func(s *tableSnapshot) {
		s.records[key] = rec
		s.compiled[key] = m
	})
}

// Delete removes key. The table must keep at least one entry.
func (t *Table) Delete(key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.snap.Load()
	if _, ok := cur.records[key]; !ok {
		return nil
	}
	if len(cur.records) == 1 {
		return errors.New("cannot delete the last mapping")
	}
	return t.update(func(s *tableSnapshot) {
		delete(s.records, key)
		delete(s.compiled, key)
	})
}

func (t *Table) update(mutate func(*tableSnapshot)) error {
	cur := t.snap.Load()
	next := &tableSnapshot{
		records:  make(map[string]Record, len(cur.records)+1),
		compiled: make(map[string]*Mapping, len(cur.compiled)+1),
	}
	for k, v := range cur.records {
		next.records[k] = v
	}
	for k, v := range cur.compiled {
		next.compiled[k] = v
	}
	mutate(next)

	if err := t.persist(next.records); err != nil {
		return err
	}
	t.snap.Store(next)
	return nil
}

func (t *Table) persist(records map[string]Record) error {
	data, err := json.Marshal(records)
	if err != nil {
		return errors.Wrap(err, "encode mapping table")
	}
	return t.kv.Put(store.KeyMappings, data)
}
