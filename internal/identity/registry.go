package identity

import (
	"context"
	"fmt"
	"log"
	"regexp"

	"geoflow/internal/collector"
	"geoflow/internal/session"
	"geoflow/internal/status"
	"geoflow/internal/store"
)

const (
	minLength = 3
	maxLength = 50
)

var charsetPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// InvalidFormatError rejects a candidate before any network call.
type InvalidFormatError struct {
	Reason string
}

func (e *InvalidFormatError) Error() string {
	return "invalid identity: " + e.Reason
}

// AlreadyTakenError reports prior records for a candidate. Source is
// "remote" when the collector answered, "local" when the agent fell back
// to its own history.
type AlreadyTakenError struct {
	Count  int
	Source string
}

func (e *AlreadyTakenError) Error() string {
	return fmt.Sprintf("identity already taken (%d prior records, %s)", e.Count, e.Source)
}

// Registry validates, reserves and persists the user-chosen identity.
// Availability is a two-tier check: the collector is authoritative when
// reachable, local history is the fallback so an unreachable collector
// never blocks a genuinely new user and never admits a name the agent
// already knows to be used.
type Registry struct {
	collector *collector.Client
	store     *store.Store
	session   *session.State
	sink      *status.Sink
}

func NewRegistry(c *collector.Client, st *store.Store, sess *session.State, sink *status.Sink) *Registry {
	return &Registry{collector: c, store: st, session: sess, sink: sink}
}

// Submit validates the candidate and, when accepted, persists it as the
// session identity. Validation failures are always returned to the
// caller, never swallowed.
func (r *Registry) Submit(ctx context.Context, candidate string) (string, error) {
	if err := r.session.CanSubmitIdentity(); err != nil {
		log.Printf("identity submit rejected: %v", err)
		r.sink.Publish("identity already set; restart the agent to change it", status.Warning)
		return "", err
	}

	if err := checkFormat(candidate); err != nil {
		r.sink.Publish(err.Error(), status.Error)
		return "", err
	}

	records, err := r.collector.History(ctx, candidate)
	if err == nil {
		if len(records) > 0 {
			taken := &AlreadyTakenError{Count: len(records), Source: "remote"}
			r.sink.Publish(taken.Error(), status.Error)
			return "", taken
		}
		return candidate, r.accept(ctx, candidate, false)
	}

	// Collector unreachable or untrustworthy: degrade to local history.
	log.Printf("identity lookup degraded to local history: %v", err)
	n, localErr := r.store.HistoryLen(ctx, candidate)
	if localErr == nil && n > 0 {
		taken := &AlreadyTakenError{Count: int(n), Source: "local"}
		r.sink.Publish(taken.Error(), status.Error)
		return "", taken
	}
	return candidate, r.accept(ctx, candidate, true)
}

func (r *Registry) accept(ctx context.Context, identity string, degraded bool) error {
	if err := r.store.SetCurrentIdentity(ctx, identity); err != nil {
		log.Printf("persisting identity failed: %v", err)
	}

	count, err := r.store.SessionCount(ctx, identity)
	if err != nil {
		log.Printf("loading session counter failed: %v", err)
		count = 0
	}

	if err := r.session.SetIdentity(identity, count); err != nil {
		return err
	}

	if degraded {
		r.sink.Publish(fmt.Sprintf("identity %q accepted offline; collector was unreachable", identity), status.System)
	} else {
		r.sink.Publish(fmt.Sprintf("identity %q accepted", identity), status.Success)
	}
	return nil
}

func checkFormat(candidate string) *InvalidFormatError {
	if len(candidate) < minLength {
		return &InvalidFormatError{Reason: fmt.Sprintf("too short (minimum %d characters)", minLength)}
	}
	if len(candidate) > maxLength {
		return &InvalidFormatError{Reason: fmt.Sprintf("too long (maximum %d characters)", maxLength)}
	}
	if !charsetPattern.MatchString(candidate) {
		return &InvalidFormatError{Reason: "only letters, digits, underscore and hyphen are allowed"}
	}
	return nil
}
