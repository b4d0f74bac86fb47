package skin

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"

	"github.com/soar/padview/internal/diag"
	"github.com/soar/padview/internal/store"
)

// Built-in skin directories.
const (
	DirXInput   = "xinput"
	DirDInput   = "dinput"
	DirJoystick = "joystick"
)

// DefaultDir picks a skin by device capability: joystick devices get the
// joystick skin, XInput devices the xinput skin, everything else dinput.
func DefaultDir(joystick bool, fingerprint string) string {
	switch {
	case joystick:
		return DirJoystick
	case fingerprint == "XInput":
		return DirXInput
	}
	return DirDInput
}

// Assignments maps device fingerprints to user-chosen skin directories.
// Every mutation is persisted before it returns.
type Assignments struct {
	kv   store.KV
	sink diag.Sink

	mu sync.RWMutex
	m  map[string]string
}

// NewAssignments creates an empty assignment map. Call Load to read the
// persisted one.
func NewAssignments(kv store.KV, sink diag.Sink) *Assignments {
	return &Assignments{kv: kv, sink: sink, m: make(map[string]string)}
}

// Load reads the persisted assignments. Unreadable data or entries with
// invalid names are dropped with a diagnostic.
func (a *Assignments) Load() {
	data, ok, err := a.kv.Get(store.KeySkins)
	if err != nil {
		a.sink.Announce(diag.Error, "Cannot read skin assignments: %v", err)
		return
	}
	if !ok {
		return
	}

	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		a.sink.Announce(diag.Error, "Stored skin assignments are malformed, ignoring them: %v", err)
		return
	}
	for fp, dir := range m {
		if !ValidName(dir) {
			a.sink.Announce(diag.Caution, "Dropping skin assignment %s -> %q: invalid name", fp, dir)
			delete(m, fp)
		}
	}

	a.mu.Lock()
	a.m = m
	a.mu.Unlock()
}

// Get returns the directory assigned to fingerprint.
func (a *Assignments) Get(fingerprint string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	dir, ok := a.m[fingerprint]
	return dir, ok
}

// Resolve returns the assigned directory or the capability default.
func (a *Assignments) Resolve(fingerprint string, joystick bool) string {
	if dir, ok := a.Get(fingerprint); ok {
		return dir
	}
	return DefaultDir(joystick, fingerprint)
}

// All returns a copy of the assignment map.
func (a *Assignments) All() map[string]string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]string, len(a.m))
	for k, v := range a.m {
		out[k] = v
	}
	return out
}

// Set assigns dirname to fingerprint. An empty dirname removes the
// assignment.
func (a *Assignments) Set(fingerprint, dirname string) error {
	if dirname != "" && !ValidName(dirname) {
		a.sink.Announce(diag.Caution, "Refusing skin assignment %q: invalid name", dirname)
		return errors.Wrap(ErrInvalidName, dirname)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	next := make(map[string]string, len(a.m)+1)
	for k, v := range a.m {
		next[k] = v
	}
	if dirname == "" {
		delete(next, fingerprint)
	} else {
		next[fingerprint] = dirname
	}

	data, err := json.Marshal(next)
	if err != nil {
		return errors.Wrap(err, "encode skin assignments")
	}
	if err := a.kv.Put(store.KeySkins, data); err != nil {
		return errors.Wrap(err, "persist skin assignments")
	}
	a.m = next
	return nil
}
