package models

import (
	"errors"
	"math"
	"time"
)

// OperatingState represents the machine state at the time of an observation
type OperatingState string

const (
	StateRun   OperatingState = "RUN"
	StateIdle  OperatingState = "IDLE"
	StateMaint OperatingState = "MAINT"
)

// IsValid checks if the operating state is one of the known literals
func (s OperatingState) IsValid() bool {
	switch s {
	case StateRun, StateIdle, StateMaint:
		return true
	default:
		return false
	}
}

// Share is a named contribution pair: a sensor family or feature name and the
// percentage of the anomaly score attributed to it.
type Share struct {
	Name    string  `json:"name"`
	Percent float64 `json:"percent"`
}

// ScoredEvent is one anomalous observation produced by the scoring and
// explainability collaborators. It is a value record: built once upstream and
// never mutated by the engine.
type ScoredEvent struct {
	// Timestamp when the observation was taken (UTC)
	Timestamp time.Time `json:"timestamp"`

	// DeviceID identifies the machine the observation belongs to
	DeviceID string `json:"device_id"`

	// State is the operating state at observation time
	State OperatingState `json:"operating_state"`

	// Score is the anomaly score assigned by the scoring model (>= 0)
	Score float64 `json:"anomaly_score"`

	// Tag is the optional injected fault tag, empty when untagged
	Tag string `json:"tag,omitempty"`

	// Families maps sensor-family name to its attribution percentage
	Families map[string]float64 `json:"family_attribution"`

	// TopFeatures lists the strongest individual feature contributions,
	// ordered by the explainability step
	TopFeatures []Share `json:"top_features"`
}

// Validation errors
var (
	ErrEmptyDeviceID    = errors.New("device ID cannot be empty")
	ErrZeroTimestamp    = errors.New("timestamp cannot be zero")
	ErrInvalidTimestamp = errors.New("invalid timestamp format")
	ErrNegativeScore    = errors.New("anomaly score cannot be negative")
	ErrInvalidState     = errors.New("invalid operating state")
)

// Validate checks if the ScoredEvent carries the fields evaluation depends on.
// Attribution values are deliberately not validated here: missing or malformed
// percentages degrade to zero contribution during matching instead of
// rejecting the event.
func (e *ScoredEvent) Validate() error {
	if e.DeviceID == "" {
		return ErrEmptyDeviceID
	}

	if e.Timestamp.IsZero() {
		return ErrZeroTimestamp
	}

	if e.Score < 0 {
		return ErrNegativeScore
	}

	if !e.State.IsValid() {
		return ErrInvalidState
	}

	return nil
}

// SanitizePercent maps a raw attribution value into [0, 100]. NaN and
// infinities count as zero contribution so they can never cause a match.
func SanitizePercent(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
