package domain

import (
	"errors"
	"math"
	"time"
)

// MaxDurationMS is the longest display time, in milliseconds, that fits a
// time.Duration.
const MaxDurationMS = math.MaxInt64 / int64(time.Millisecond)

// ErrDurationTooLong is returned for a duration_ms above MaxDurationMS.
var ErrDurationTooLong = errors.New("duration is too long")

// AddInterruptRequest queues operator content on a session.
type AddInterruptRequest struct {
	ContentType string         `json:"content_type" binding:"required"`
	Data        map[string]any `json:"data"`
	ID          string         `json:"id,omitempty"`
	DurationMS  *int64         `json:"duration_ms,omitempty"`
}

// Duration returns the requested display time, or nil for the type default.
// Negative values pass through for the caller to reject.
func (r AddInterruptRequest) Duration() (*time.Duration, error) {
	if r.DurationMS == nil {
		return nil, nil
	}
	if *r.DurationMS > MaxDurationMS {
		return nil, ErrDurationTooLong
	}
	d := time.Duration(*r.DurationMS) * time.Millisecond
	return &d, nil
}

type SetShowRequest struct {
	Show string `json:"show" binding:"required"`
}

type SetTickerRequest struct {
	Rotation []string `json:"rotation"`
}

// InterruptResponse reports the id assigned to queued content.
type InterruptResponse struct {
	ID string `json:"id"`
}

// SessionResponse describes a session this instance writes for.
type SessionResponse struct {
	SessionID   string `json:"session_id"`
	Owner       string `json:"owner"`
	Subscribers int    `json:"subscribers"`
}

// ProjectionResponse is state rebuilt from the journal.
type ProjectionResponse struct {
	SessionID string    `json:"session_id"`
	Events    int       `json:"events"`
	Stream    Stream    `json:"stream"`
	Alerts    []Content `json:"alerts"`
}
