package sampler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"geoflow/internal/provider"
	"geoflow/internal/session"
	"geoflow/internal/shared/geo"
	"geoflow/internal/status"
	"geoflow/internal/store"
)

// Sample is one normalized position reading. The full sample is retained
// locally; only the reduced projection travels to the collector.
type Sample struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Altitude  *float64  `json:"altitude,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
	Speed     *float64  `json:"speed,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Deliverer consumes each sample independently of the sampling loop.
type Deliverer interface {
	Deliver(sample Sample, identity string)
}

// ErrPermissionDenied rejects a start when the platform has already
// denied location access.
var ErrPermissionDenied = errors.New("location permission denied")

// Sampler owns the continuous location subscription and its start/stop
// lifecycle. At most one provider watch is live at any time; the handle
// is cleared exactly once per stop.
type Sampler struct {
	provider provider.Provider
	perms    provider.Permissions
	session  *session.State
	store    *store.Store
	sink     *status.Sink
	deliver  Deliverer
	opts     provider.Options

	mu        sync.Mutex
	handle    provider.Handle
	last      *Sample
	distanceM float64
}

func New(p provider.Provider, perms provider.Permissions, sess *session.State, st *store.Store, sink *status.Sink, d Deliverer, opts provider.Options) *Sampler {
	s := &Sampler{
		provider: p,
		perms:    perms,
		session:  sess,
		store:    st,
		sink:     sink,
		deliver:  d,
		opts:     opts,
	}
	if perms != nil {
		perms.OnChange(func(state provider.PermissionState) {
			if state == provider.PermissionDenied && s.session.Tracking() == session.Active {
				s.onFail(provider.CodePermissionDenied)
			}
		})
	}
	return s
}

// Start begins continuous sampling. Guard violations (no identity yet,
// already running) warn and leave all state untouched, including the
// session counter.
func (s *Sampler) Start(ctx context.Context) error {
	if s.perms != nil {
		if state, err := s.perms.State(ctx); err == nil && state == provider.PermissionDenied {
			s.sink.Publish("cannot start tracking: location permission denied", status.Error)
			return ErrPermissionDenied
		}
	}

	if err := s.session.BeginStart(); err != nil {
		log.Printf("start rejected: %v", err)
		s.sink.Publish(fmt.Sprintf("cannot start tracking: %v", err), status.Warning)
		return err
	}

	identity := s.session.Identity()
	count, err := s.store.IncrSessionCount(ctx, identity)
	if err != nil {
		log.Printf("session counter not persisted: %v", err)
		count = s.session.SessionCount() + 1
	}
	s.session.SetSessionCount(count)

	opts := s.opts
	if d, ok, err := s.store.SampleInterval(ctx); err == nil && ok {
		opts.Interval = d
	}

	handle, err := s.provider.Watch(opts, s.onFix, s.onFail)
	if err != nil {
		s.session.MarkIdle()
		s.sink.Publish(fmt.Sprintf("location watch failed: %v", err), status.Error)
		return err
	}

	s.mu.Lock()
	s.handle = handle
	s.last = nil
	s.distanceM = 0
	s.mu.Unlock()

	s.session.MarkActive()
	s.sink.Publish(fmt.Sprintf("tracking started (session %d)", count), status.Success)
	return nil
}

// Stop ends sampling. A second stop is a warning no-op.
func (s *Sampler) Stop() error {
	if err := s.session.BeginStop(); err != nil {
		log.Printf("stop rejected: %v", err)
		s.sink.Publish("tracking is not active", status.Warning)
		return err
	}

	s.clearWatch()
	s.session.MarkIdle()
	s.sink.Publish("tracking stopped", status.Info)
	return nil
}

// Last returns the most recent sample of the current run, if any.
func (s *Sampler) Last() (Sample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Sample{}, false
	}
	return *s.last, true
}

// DistanceM is the accumulated ground distance of the current run.
func (s *Sampler) DistanceM() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.distanceM
}

func (s *Sampler) onFix(f provider.Fix) {
	at := f.At
	if at.IsZero() {
		at = time.Now()
	}
	sample := Sample{
		Latitude:  f.Latitude,
		Longitude: f.Longitude,
		Accuracy:  f.Accuracy,
		Altitude:  f.Altitude,
		Heading:   f.Heading,
		Speed:     f.Speed,
		Timestamp: at,
	}

	s.mu.Lock()
	if s.last != nil {
		s.distanceM += geo.DistanceM(s.last.Latitude, s.last.Longitude, sample.Latitude, sample.Longitude)
	}
	s.last = &sample
	s.mu.Unlock()

	s.deliver.Deliver(sample, s.session.Identity())
	s.sink.Publish(fmt.Sprintf("position %.5f, %.5f (±%.0fm)", sample.Latitude, sample.Longitude, sample.Accuracy), status.Success)
}

func (s *Sampler) onFail(code int) {
	switch code {
	case provider.CodePermissionDenied:
		// The provider invalidates the watch itself, but the handle is
		// still cleared so a later start gets a fresh one.
		s.sink.Publish("location permission denied; tracking stopped", status.Error)
		s.clearWatch()
		s.session.MarkIdle()
	case provider.CodePositionUnavailable:
		s.sink.Publish("position unavailable, waiting for signal", status.Error)
	case provider.CodeTimeout:
		s.sink.Publish("location request timed out", status.Error)
	default:
		s.sink.Publish(fmt.Sprintf("location error (code %d)", code), status.Error)
	}
}

// clearWatch releases the handle exactly once; a second call finds it
// already zeroed and does nothing.
func (s *Sampler) clearWatch() {
	s.mu.Lock()
	handle := s.handle
	s.handle = 0
	s.mu.Unlock()

	if handle != 0 {
		s.provider.ClearWatch(handle)
	}
}
