package auditlog

import (
	"context"
	"time"
)

// Outcome classifies how an analysis attempt ended.
type Outcome string

const (
	OutcomeSuccess           Outcome = "success"
	OutcomeAnalysisFailed    Outcome = "analysis_failed"
	OutcomeMalformed         Outcome = "malformed_response"
	OutcomeGeolocationFailed Outcome = "geolocation_failed"
	OutcomeCancelled         Outcome = "cancelled"
)

// Entry records one analysis attempt. Reports themselves are never stored.
type Entry struct {
	ID           string    `json:"id" csv:"id"`
	SessionID    string    `json:"sessionId,omitempty" csv:"session_id"`
	LocationKind string    `json:"locationKind" csv:"location_kind"`
	Location     string    `json:"location" csv:"location"`
	Date         string    `json:"date" csv:"date"`
	Outcome      Outcome   `json:"outcome" csv:"outcome"`
	SunriseScore int       `json:"sunriseScore,omitempty" csv:"sunrise_score,omitempty"`
	SunsetScore  int       `json:"sunsetScore,omitempty" csv:"sunset_score,omitempty"`
	LatencyMs    int64     `json:"latencyMs" csv:"latency_ms"`
	CreatedAt    time.Time `json:"createdAt" csv:"created_at"`
}

// Repository persists audit entries.
type Repository interface {
	Insert(ctx context.Context, entry Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// Config controls listing limits.
type Config struct {
	DefaultLimit int
	MaxLimit     int
}
