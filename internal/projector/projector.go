// Package projector folds overlay events into domain state.
//
// Every function here is pure: the same inputs always give the same output
// and inputs are never modified.
package projector

import (
	"fmt"
	"time"

	"github.com/weiawesome/wes-io-live/overlay-service/internal/domain"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/prioritizer"
)

// IsRecognized reports whether Apply acts on e.
func IsRecognized(e domain.Event) bool {
	return e.Type.IsValid()
}

// Apply returns the state after e. Unrecognized kinds return state unchanged.
func Apply(state domain.State, e domain.Event) domain.State {
	switch e.Type {
	case domain.EventStreamOnline:
		state.Status = domain.StatusOnline
		state.Title = e.String("title")
		state.Game = e.String("game")
		state.StartedAt = e.Timestamp
		return state

	case domain.EventStreamOffline:
		state.Status = domain.StatusOffline
		state.EndedAt = e.Timestamp
		return state

	case domain.EventAlertCreated:
		alerts := make([]domain.Content, 0, len(state.Alerts)+1)
		alerts = append(alerts, alertFromEvent(e))
		state.Alerts = append(alerts, state.Alerts...)
		return state

	case domain.EventAlertDismissed:
		id := e.String("alert_id")
		alerts := make([]domain.Content, 0, len(state.Alerts))
		for _, a := range state.Alerts {
			if a.ID != id {
				alerts = append(alerts, a)
			}
		}
		state.Alerts = alerts
		return state

	default:
		return state
	}
}

// Project folds events over initial in order.
func Project(events []domain.Event, initial domain.State) domain.State {
	state := initial
	for _, e := range events {
		state = Apply(state, e)
	}
	return state
}

// EventsSince returns the events strictly after cutoff, or events unchanged
// when cutoff is nil. Input order is kept; events are assumed chronological.
func EventsSince(events []domain.Event, cutoff *time.Time) []domain.Event {
	if cutoff == nil {
		return events
	}
	out := make([]domain.Event, 0, len(events))
	for _, e := range events {
		if e.Timestamp.After(*cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// alertFromEvent builds alert content from an alert_created event. Ids are
// derived from the event so re-projection yields the same alerts.
func alertFromEvent(e domain.Event) domain.Content {
	t := domain.ContentType(e.String("type"))
	if t == "" {
		t = domain.ContentAlert
	}

	id := e.String("id")
	if id == "" {
		id = fmt.Sprintf("evt-%d-%s", e.Timestamp.UnixNano(), t)
	}

	priority := prioritizer.PriorityFor(t)
	if p, ok := e.Int("priority"); ok {
		priority = int(p)
	}

	var duration int64
	if d, ok := e.Int("duration"); ok && d > 0 {
		duration = d
	}

	return domain.Content{
		ID:        id,
		Type:      t,
		Priority:  priority,
		Data:      e.Data,
		StartedAt: e.Timestamp,
		Duration:  duration,
	}
}
