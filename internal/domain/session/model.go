package session

import (
	"context"
	"time"

	"github.com/yanqian/horizon/internal/domain/sunreport"
)

// Phase selects which half of the report is displayed.
type Phase string

const (
	PhaseSunrise Phase = "sunrise"
	PhaseSunset  Phase = "sunset"
)

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	return p == PhaseSunrise || p == PhaseSunset
}

// Coordinates are the position reported by the browser.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Snapshot is the complete state of one browser session.
type Snapshot struct {
	ID            string            `json:"id"`
	State         State             `json:"state"`
	LocationQuery string            `json:"locationQuery,omitempty"`
	Date          string            `json:"date,omitempty"`
	Coordinates   *Coordinates      `json:"coordinates,omitempty"`
	Report        *sunreport.Report `json:"report,omitempty"`
	ErrorMessage  string            `json:"errorMessage,omitempty"`
	ActivePhase   Phase             `json:"activePhase"`
	Generation    int64             `json:"generation"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// SearchInput is the form submission.
type SearchInput struct {
	Location string `json:"location"`
	Date     string `json:"date"`
}

// PositionFailure enumerates browser geolocation failures.
type PositionFailure string

const (
	PositionUnsupported PositionFailure = "unsupported"
	PositionDenied      PositionFailure = "denied"
	PositionTimeout     PositionFailure = "timeout"
	PositionUnavailable PositionFailure = "unavailable"
)

// Geolocation options handed to the browser.
const (
	GeolocationTimeout      = 10 * time.Second
	GeolocationHighAccuracy = false
)

// User facing geolocation messages.
const (
	MessageGeolocationUnsupported = "Geolocation is not supported by your browser"
	MessageGeolocationFailed      = "Unable to retrieve your location. Please enter a city manually."
)

// Store keeps session snapshots.
type Store interface {
	Get(ctx context.Context, id string) (Snapshot, bool, error)
	Save(ctx context.Context, snap Snapshot, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// Config controls session lifetime.
type Config struct {
	TTL time.Duration
}
