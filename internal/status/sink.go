package status

import (
	"sync"
	"time"
)

type Severity string

const (
	Info    Severity = "info"
	Success Severity = "success"
	Warning Severity = "warning"
	Error   Severity = "error"
	System  Severity = "system"
)

type Entry struct {
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
	At       time.Time `json:"at"`
}

// logLimit bounds the debug log; the oldest entry is evicted past it.
const logLimit = 50

// Sink collects status events from every component. It keeps a bounded
// FIFO debug log plus the latest event as the current status line. It
// performs no validation; components decide what is worth publishing.
type Sink struct {
	mu      sync.Mutex
	entries []Entry
	current Entry
}

func NewSink() *Sink {
	return &Sink{}
}

func (s *Sink) Publish(message string, severity Severity) {
	entry := Entry{Message: message, Severity: severity, At: time.Now()}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = entry
	s.entries = append(s.entries, entry)
	if len(s.entries) > logLimit {
		s.entries = s.entries[len(s.entries)-logLimit:]
	}
}

// Current returns the latest published event.
func (s *Sink) Current() Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Log returns a copy of the debug log, oldest first.
func (s *Sink) Log() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
