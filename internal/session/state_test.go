package session

import (
	"errors"
	"testing"
)

func TestIdentityLifecycle(t *testing.T) {
	s := NewState()
	if err := s.CanSubmitIdentity(); err != nil {
		t.Fatalf("fresh state should accept identity: %v", err)
	}
	if err := s.SetIdentity("hiker_01", 3); err != nil {
		t.Fatalf("set identity: %v", err)
	}
	if s.Identity() != "hiker_01" || s.SessionCount() != 3 {
		t.Fatalf("unexpected identity state")
	}
	if !s.Initialized() {
		t.Fatalf("expected initialized")
	}

	if err := s.CanSubmitIdentity(); !errors.Is(err, ErrIdentitySet) {
		t.Fatalf("expected ErrIdentitySet, got %v", err)
	}
	if err := s.SetIdentity("other", 0); !errors.Is(err, ErrIdentitySet) {
		t.Fatalf("identity must be immutable, got %v", err)
	}
	if s.Identity() != "hiker_01" {
		t.Fatalf("identity mutated")
	}
}

func TestStartRequiresIdentity(t *testing.T) {
	s := NewState()
	if err := s.BeginStart(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if s.Tracking() != Idle {
		t.Fatalf("state should stay idle")
	}
}

func TestStartStopTransitions(t *testing.T) {
	s := NewState()
	_ = s.SetIdentity("hiker_01", 0)

	if err := s.BeginStart(); err != nil {
		t.Fatalf("begin start: %v", err)
	}
	if s.Tracking() != Starting {
		t.Fatalf("expected starting")
	}
	if err := s.BeginStart(); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("re-entrant start must be rejected, got %v", err)
	}

	s.MarkActive()
	if s.Tracking() != Active {
		t.Fatalf("expected active")
	}
	if err := s.BeginStart(); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("double start must be rejected, got %v", err)
	}

	if err := s.BeginStop(); err != nil {
		t.Fatalf("begin stop: %v", err)
	}
	s.MarkIdle()
	if s.Tracking() != Idle {
		t.Fatalf("expected idle")
	}

	if err := s.BeginStop(); !errors.Is(err, ErrNotActive) {
		t.Fatalf("double stop must be rejected, got %v", err)
	}
}

func TestMarkActiveOnlyFromStarting(t *testing.T) {
	s := NewState()
	s.MarkActive()
	if s.Tracking() != Idle {
		t.Fatalf("mark active outside a start must be a no-op")
	}
}

func TestTrackingStateString(t *testing.T) {
	for state, want := range map[TrackingState]string{
		Idle:             "idle",
		Starting:         "starting",
		Active:           "active",
		Stopping:         "stopping",
		TrackingState(9): "unknown",
	} {
		if state.String() != want {
			t.Fatalf("expected %q, got %q", want, state.String())
		}
	}
}
