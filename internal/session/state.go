package session

import (
	"errors"
	"sync"
)

type TrackingState int

const (
	Idle TrackingState = iota
	Starting
	Active
	Stopping
)

func (t TrackingState) String() string {
	switch t {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Active:
		return "active"
	case Stopping:
		return "stopping"
	}
	return "unknown"
}

var (
	ErrNotInitialized = errors.New("no identity set for this session")
	ErrAlreadyActive  = errors.New("tracking already started")
	ErrNotActive      = errors.New("tracking not active")
	ErrIdentitySet    = errors.New("identity already set for this session")
)

// State is the single source of truth for the tracking session: the
// tracking state machine, the accepted identity and its session counter.
// Components consult its guards before mutating anything shared; guard
// violations are warnings for the caller to log, never panics.
type State struct {
	mu           sync.Mutex
	tracking     TrackingState
	identity     string
	initialized  bool
	sessionCount int
}

func NewState() *State {
	return &State{}
}

// CanSubmitIdentity reports whether a candidate identity may still be
// submitted. One identity per session; it is immutable once accepted.
func (s *State) CanSubmitIdentity() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return ErrIdentitySet
	}
	return nil
}

func (s *State) SetIdentity(identity string, sessionCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return ErrIdentitySet
	}
	s.identity = identity
	s.sessionCount = sessionCount
	s.initialized = true
	return nil
}

func (s *State) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

func (s *State) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

func (s *State) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionCount
}

func (s *State) SetSessionCount(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionCount = n
}

func (s *State) Tracking() TrackingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracking
}

// BeginStart moves Idle to Starting. It is the gate against starting
// without an identity and against double-starting.
func (s *State) BeginStart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	if s.tracking != Idle {
		return ErrAlreadyActive
	}
	s.tracking = Starting
	return nil
}

// MarkActive completes a start once the provider watch is registered.
func (s *State) MarkActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tracking == Starting {
		s.tracking = Active
	}
}

// BeginStop moves Active to Stopping; double-stops are rejected here.
func (s *State) BeginStop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tracking != Active {
		return ErrNotActive
	}
	s.tracking = Stopping
	return nil
}

// MarkIdle returns to Idle from any state. Also the landing point for a
// forced stop when the provider revokes permission mid-session.
func (s *State) MarkIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracking = Idle
}
