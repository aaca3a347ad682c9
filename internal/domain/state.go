package domain

import "time"

// StreamStatus is the online state of the broadcast.
type StreamStatus string

const (
	StatusUnknown StreamStatus = ""
	StatusOnline  StreamStatus = "online"
	StatusOffline StreamStatus = "offline"
)

// State is the canonical per-session overlay state.
type State struct {
	Status    StreamStatus `json:"status"`
	Title     string       `json:"title"`
	Game      string       `json:"game"`
	StartedAt time.Time    `json:"started_at"`
	EndedAt   time.Time    `json:"ended_at"`

	Alerts         []Content `json:"alerts"`
	InterruptStack []Content `json:"interrupt_stack"`

	ActiveContent *Content        `json:"active_content"`
	CurrentShow   ShowContext     `json:"current_show"`
	Layers        LayerAssignment `json:"layers"`
	PriorityLevel PriorityLevel   `json:"priority_level"`

	Version     uint64    `json:"version"`
	LastUpdated time.Time `json:"last_updated"`
}

// NewState returns an empty state for a session starting on show.
func NewState(show ShowContext) State {
	return State{
		CurrentShow:   show,
		PriorityLevel: PriorityLevelTicker,
	}
}

// Stream holds the stream-status part of a snapshot.
type Stream struct {
	Status    StreamStatus `json:"status"`
	Title     string       `json:"title,omitempty"`
	Game      string       `json:"game,omitempty"`
	StartedAt *time.Time   `json:"started_at,omitempty"`
	EndedAt   *time.Time   `json:"ended_at,omitempty"`
}

// Snapshot is the full, authoritative state broadcast to subscribers.
// Consumers replace their copy on receipt and use Version to drop stale ones.
type Snapshot struct {
	SessionID      string          `json:"session_id"`
	CurrentShow    ShowContext     `json:"current_show"`
	Layers         LayerAssignment `json:"layers"`
	ActiveContent  *Content        `json:"active_content"`
	InterruptStack []Content       `json:"interrupt_stack"`
	PriorityLevel  PriorityLevel   `json:"priority_level"`
	Version        uint64          `json:"version"`
	LastUpdated    time.Time       `json:"last_updated"`
	Stream         Stream          `json:"stream"`
}

// Snapshot copies s into its broadcast form. The returned value shares no
// slices or pointers with s.
func (s State) Snapshot(sessionID string) Snapshot {
	snap := Snapshot{
		SessionID:      sessionID,
		CurrentShow:    s.CurrentShow,
		Layers:         copyAssignment(s.Layers),
		ActiveContent:  copyContentPtr(s.ActiveContent),
		InterruptStack: CopyContents(s.InterruptStack),
		PriorityLevel:  s.PriorityLevel,
		Version:        s.Version,
		LastUpdated:    s.LastUpdated,
		Stream: Stream{
			Status: s.Status,
			Title:  s.Title,
			Game:   s.Game,
		},
	}
	if !s.StartedAt.IsZero() {
		t := s.StartedAt
		snap.Stream.StartedAt = &t
	}
	if !s.EndedAt.IsZero() {
		t := s.EndedAt
		snap.Stream.EndedAt = &t
	}
	return snap
}

// CopyContents returns a shallow copy of list that never aliases it.
// Data maps are shared; they are treated as immutable once created.
func CopyContents(list []Content) []Content {
	out := make([]Content, len(list))
	copy(out, list)
	return out
}

func copyContentPtr(c *Content) *Content {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

func copyAssignment(a LayerAssignment) LayerAssignment {
	return LayerAssignment{
		Foreground: copyContentPtr(a.Foreground),
		Midground:  copyContentPtr(a.Midground),
		Background: copyContentPtr(a.Background),
	}
}
