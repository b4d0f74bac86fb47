// Package diag carries the application-wide diagnostic message stream.
//
// Components never surface failures to the user by returning them up to the
// frame loop. They announce a Message on a Sink instead; the Stream logs it
// and fans it out to whoever is listening (the websocket hub).
package diag

import (
	"fmt"
	"sync"
	"time"

	"github.com/soar/padview/internal/logger"
)

// Severity of a diagnostic message.
type Severity int

const (
	Info Severity = iota
	Caution
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Caution:
		return "caution"
	case Error:
		return "error"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Message is a single diagnostic.
type Message struct {
	Severity Severity  `json:"severity"`
	Text     string    `json:"text"`
	Time     time.Time `json:"time"`
}

// Sink receives diagnostics.
type Sink interface {
	Announce(sev Severity, format string, args ...interface{})
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Announce(Severity, string, ...interface{}) {}

// Stream logs every message and forwards it to subscribers. Slow
// subscribers lose messages rather than stall the announcer.
type Stream struct {
	mu   sync.RWMutex
	subs map[chan Message]struct{}
	now  func() time.Time
}

// NewStream creates an empty Stream.
func NewStream() *Stream {
	return &Stream{
		subs: make(map[chan Message]struct{}),
		now:  time.Now,
	}
}

// Announce implements Sink.
func (s *Stream) Announce(sev Severity, format string, args ...interface{}) {
	msg := Message{
		Severity: sev,
		Text:     fmt.Sprintf(format, args...),
		Time:     s.now(),
	}

	switch sev {
	case Error:
		logger.Errorf("%s", msg.Text)
	case Caution:
		logger.Warnf("%s", msg.Text)
	default:
		logger.Infof("%s", msg.Text)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for ch := range s.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Subscribe returns a channel receiving future messages and a function that
// cancels the subscription and closes the channel.
func (s *Stream) Subscribe(buffer int) (<-chan Message, func()) {
	ch := make(chan Message, buffer)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Recorder is a Sink that keeps every message in memory. Tests use it to
// assert on announcements.
type Recorder struct {
	mu       sync.Mutex
	Messages []Message
}

// Announce implements Sink.
func (r *Recorder) Announce(sev Severity, format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Messages = append(r.Messages, Message{Severity: sev, Text: fmt.Sprintf(format, args...)})
}

// Count returns how many messages of the given severity were recorded.
func (r *Recorder) Count(sev Severity) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.Messages {
		if m.Severity == sev {
			n++
		}
	}
	return n
}
