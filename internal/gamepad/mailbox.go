package gamepad

import "sync"

// Mailbox holds the most recent snapshot from any source. Writers never
// block; a snapshot that is replaced before it is taken is dropped.
type Mailbox struct {
	mu      sync.Mutex
	latest  Snapshot
	pending bool
	notify  chan struct{}
	dropped uint64
}

// NewMailbox returns an empty Mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{notify: make(chan struct{}, 1)}
}

// Put stores s as the latest snapshot.
func (m *Mailbox) Put(s Snapshot) {
	m.mu.Lock()
	if m.pending {
		m.dropped++
	}
	m.latest = s
	m.pending = true
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Take returns the pending snapshot, if any, and clears it.
func (m *Mailbox) Take() (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.pending {
		return Snapshot{}, false
	}
	m.pending = false
	s := m.latest
	return s, true
}

// Notify is signalled after every Put.
func (m *Mailbox) Notify() <-chan struct{} {
	return m.notify
}

// Dropped returns how many snapshots were overwritten unread.
func (m *Mailbox) Dropped() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

// Sink accepts snapshots.
type Sink interface {
	Put(s Snapshot)
}

// Merge combines several sources into one mailbox. It keeps the latest
// snapshot of each source and publishes their union on every Put; when two
// sources fill the same slot the one with the lower index wins.
type Merge struct {
	mu     sync.Mutex
	latest []Snapshot
	out    Sink
}

// NewMerge creates a Merge of n sources writing into out.
func NewMerge(out Sink, n int) *Merge {
	return &Merge{latest: make([]Snapshot, n), out: out}
}

// Source returns the Sink for source i.
func (m *Merge) Source(i int) Sink {
	return mergeSource{m, i}
}

func (m *Merge) put(i int, s Snapshot) {
	m.mu.Lock()
	m.latest[i] = s
	var merged Snapshot
	for _, src := range m.latest {
		for slot, g := range src {
			if merged[slot] == nil {
				merged[slot] = g
			}
		}
	}
	m.mu.Unlock()
	m.out.Put(merged)
}

type mergeSource struct {
	m *Merge
	i int
}

func (s mergeSource) Put(snap Snapshot) {
	s.m.put(s.i, snap)
}
