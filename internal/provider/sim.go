package provider

import (
	"math"
	"sync"
	"time"
)

const (
	simDefaultInterval = 5 * time.Second
	// ~11m per step at the equator; a believable walking pace per tick.
	simStepDeg        = 0.0001
	simAccuracyM      = 12.0
	simSpeedMps       = 1.4
	simHeadingSwayDeg = 25.0
)

// Sim is a deterministic walking simulator so the agent runs end to end
// without location hardware. Each watch walks northeast from the origin,
// one step per interval.
type Sim struct {
	originLat float64
	originLng float64

	mu      sync.Mutex
	nextID  Handle
	watches map[Handle]chan struct{}
}

func NewSim(originLat, originLng float64) *Sim {
	return &Sim{
		originLat: originLat,
		originLng: originLng,
		watches:   map[Handle]chan struct{}{},
	}
}

func (s *Sim) Watch(opts Options, fix func(Fix), fail func(code int)) (Handle, error) {
	interval := opts.Interval
	if interval <= 0 {
		interval = simDefaultInterval
	}

	s.mu.Lock()
	s.nextID++
	handle := s.nextID
	stop := make(chan struct{})
	s.watches[handle] = stop
	s.mu.Unlock()

	go s.run(stop, interval, fix)
	return handle, nil
}

func (s *Sim) ClearWatch(handle Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stop, ok := s.watches[handle]; ok {
		close(stop)
		delete(s.watches, handle)
	}
}

func (s *Sim) run(stop <-chan struct{}, interval time.Duration, fix func(Fix)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	step := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			step++
			heading := 45 + simHeadingSwayDeg*math.Sin(float64(step)/3)
			speed := simSpeedMps
			fix(Fix{
				Latitude:  s.originLat + simStepDeg*float64(step),
				Longitude: s.originLng + simStepDeg*float64(step),
				Accuracy:  simAccuracyM,
				Heading:   &heading,
				Speed:     &speed,
				At:        time.Now(),
			})
		}
	}
}
