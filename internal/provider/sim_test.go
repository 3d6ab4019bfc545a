package provider

import (
	"context"
	"testing"
	"time"
)

func TestSimEmitsFixes(t *testing.T) {
	sim := NewSim(-6.2, 106.816)

	fixes := make(chan Fix, 4)
	handle, err := sim.Watch(Options{Interval: 5 * time.Millisecond}, func(f Fix) {
		select {
		case fixes <- f:
		default:
		}
	}, nil)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer sim.ClearWatch(handle)

	var first, second Fix
	select {
	case first = <-fixes:
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for first fix")
	}
	select {
	case second = <-fixes:
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for second fix")
	}

	if first.Latitude <= -6.2 || second.Latitude <= first.Latitude {
		t.Fatalf("expected the walk to move northeast: %v then %v", first.Latitude, second.Latitude)
	}
	if first.Accuracy <= 0 {
		t.Fatalf("expected positive accuracy")
	}
	if first.Speed == nil || first.Heading == nil {
		t.Fatalf("sim fixes carry speed and heading")
	}
	if first.Altitude != nil {
		t.Fatalf("sim has no altitude source")
	}
}

func TestSimClearWatchStops(t *testing.T) {
	sim := NewSim(0, 0)

	fixes := make(chan Fix, 1)
	handle, err := sim.Watch(Options{Interval: 5 * time.Millisecond}, func(f Fix) {
		select {
		case fixes <- f:
		default:
		}
	}, nil)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	select {
	case <-fixes:
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for fix")
	}

	sim.ClearWatch(handle)
	// clearing twice must be harmless
	sim.ClearWatch(handle)

	// let any in-flight tick land before draining
	time.Sleep(20 * time.Millisecond)
	for len(fixes) > 0 {
		<-fixes
	}
	time.Sleep(30 * time.Millisecond)
	if len(fixes) > 0 {
		t.Fatalf("watch kept emitting after clear")
	}
}

func TestStaticPermissions(t *testing.T) {
	p := StaticPermissions{Current: PermissionGranted}
	state, err := p.State(context.Background())
	if err != nil || state != PermissionGranted {
		t.Fatalf("unexpected permission state %v err %v", state, err)
	}
	p.OnChange(func(PermissionState) {})
}
