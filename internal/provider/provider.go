package provider

import (
	"context"
	"time"
)

// Provider error codes, matching the platform geolocation contract.
const (
	CodePermissionDenied    = 1
	CodePositionUnavailable = 2
	CodeTimeout             = 3
)

// Fix is one raw position reading from the provider. Altitude, heading
// and speed are nil when the hardware cannot supply them.
type Fix struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
	Altitude  *float64
	Heading   *float64
	Speed     *float64
	At        time.Time
}

type Options struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaxCacheAge  time.Duration
	// Interval paces continuous providers that poll rather than push.
	Interval time.Duration
}

// Handle identifies one live watch. Zero is never a valid handle.
type Handle int64

// Provider is the location capability boundary. Watch registers a
// continuous subscription and returns synchronously; fixes and coded
// errors arrive on the callbacks until ClearWatch.
type Provider interface {
	Watch(opts Options, fix func(Fix), fail func(code int)) (Handle, error)
	ClearWatch(Handle)
}

type PermissionState string

const (
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
	PermissionPrompt  PermissionState = "prompt"
)

// Permissions exposes the platform permission query and its change
// notification.
type Permissions interface {
	State(ctx context.Context) (PermissionState, error)
	OnChange(func(PermissionState))
}

// StaticPermissions is a fixed-answer permission service, used by the
// simulator and in tests.
type StaticPermissions struct {
	Current PermissionState
}

func (p StaticPermissions) State(context.Context) (PermissionState, error) {
	return p.Current, nil
}

func (p StaticPermissions) OnChange(func(PermissionState)) {}
