package pubsub

import (
	"fmt"
	"strings"
)

// Channel layout: {prefix}:session:{sessionID}:{stream}.
const (
	StreamEvents    = "events"
	StreamSnapshots = "snapshots"
)

// Message types on the events stream.
const (
	TypeEvent            = "event"
	TypeAddInterrupt     = "add_interrupt"
	TypeDismissInterrupt = "dismiss_interrupt"
	TypeSetShow          = "set_show"
)

// Message type on the snapshots stream.
const TypeSnapshot = "snapshot"

// EventsChannel names the inbound channel of a session.
func EventsChannel(prefix, sessionID string) string {
	return fmt.Sprintf("%s:session:%s:%s", prefix, sessionID, StreamEvents)
}

// SnapshotsChannel names the outbound snapshot channel of a session.
func SnapshotsChannel(prefix, sessionID string) string {
	return fmt.Sprintf("%s:session:%s:%s", prefix, sessionID, StreamSnapshots)
}

// SessionFromChannel extracts the session id from a channel name.
func SessionFromChannel(channel string) (string, error) {
	parts := strings.Split(channel, ":")
	if len(parts) != 4 || parts[1] != "session" || parts[2] == "" {
		return "", fmt.Errorf("invalid channel format: %s", channel)
	}
	return parts[2], nil
}

// AddInterruptPayload asks the session writer to queue content.
type AddInterruptPayload struct {
	ContentType string         `json:"content_type"`
	Data        map[string]any `json:"data"`
	ID          string         `json:"id,omitempty"`
	DurationMS  *int64         `json:"duration_ms,omitempty"`
}

// DismissInterruptPayload asks the session writer to remove content.
type DismissInterruptPayload struct {
	AlertID string `json:"alert_id"`
}

// SetShowPayload asks the session writer to switch show context.
type SetShowPayload struct {
	Show string `json:"show"`
}
