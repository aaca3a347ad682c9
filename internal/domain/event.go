package domain

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of an overlay event.
type EventType string

const (
	EventStreamOnline   EventType = "stream_online"
	EventStreamOffline  EventType = "stream_offline"
	EventAlertCreated   EventType = "alert_created"
	EventAlertDismissed EventType = "alert_dismissed"
)

// IsValid reports whether the event type is one the projector acts on.
func (t EventType) IsValid() bool {
	switch t {
	case EventStreamOnline,
		EventStreamOffline,
		EventAlertCreated,
		EventAlertDismissed:
		return true
	default:
		return false
	}
}

// RawEvent is an event record as received from a producer, before validation.
type RawEvent struct {
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Event is a validated, immutable event.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// String returns the string value at key, or "" when absent or not a string.
func (e Event) String(key string) string {
	if s, ok := e.Data[key].(string); ok {
		return s
	}
	return ""
}

// Int returns the integer value at key. JSON numbers decode as float64.
func (e Event) Int(key string) (int64, bool) {
	switch n := e.Data[key].(type) {
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case json.Number:
		v, err := n.Int64()
		return v, err == nil
	default:
		return 0, false
	}
}
