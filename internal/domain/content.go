package domain

import "time"

// ContentType identifies a kind of overlay content.
type ContentType string

const (
	ContentAlert          ContentType = "alert"
	ContentSubTrain       ContentType = "sub_train"
	ContentManualOverride ContentType = "manual_override"
	ContentTicker         ContentType = "ticker"
	ContentBuildFailure   ContentType = "build_failure"
	ContentBuildSuccess   ContentType = "build_success"
	ContentDeathAlert     ContentType = "death_alert"
	ContentEliteFour      ContentType = "elite_four"
	ContentShinyEncounter ContentType = "shiny_encounter"
	ContentLevelUp        ContentType = "level_up"
	ContentRaid           ContentType = "raid"
	ContentFollow         ContentType = "follow"
	ContentCheer          ContentType = "cheer"
	ContentEmoteStats     ContentType = "emote_stats"
)

// IsValid reports whether t is a known content type. Unknown types are
// still accepted by the router and resolve to the background layer.
func (t ContentType) IsValid() bool {
	switch t {
	case ContentAlert, ContentSubTrain, ContentManualOverride, ContentTicker,
		ContentBuildFailure, ContentBuildSuccess,
		ContentDeathAlert, ContentEliteFour, ContentShinyEncounter, ContentLevelUp,
		ContentRaid, ContentFollow, ContentCheer, ContentEmoteStats:
		return true
	default:
		return false
	}
}

// Layer is one of the three mutually exclusive overlay display slots.
type Layer string

const (
	LayerForeground Layer = "foreground"
	LayerMidground  Layer = "midground"
	LayerBackground Layer = "background"
)

// Layers lists the display slots from highest to lowest.
var Layers = []Layer{LayerForeground, LayerMidground, LayerBackground}

// Content is a single piece of overlay content competing for display.
type Content struct {
	ID        string         `json:"id"`
	Type      ContentType    `json:"type"`
	Priority  int            `json:"priority"`
	Data      map[string]any `json:"data,omitempty"`
	StartedAt time.Time      `json:"started_at"`
	Duration  int64          `json:"duration,omitempty"` // milliseconds, 0 = until dismissed
	Layer     Layer          `json:"layer,omitempty"`
}

// Valid reports whether the content is a usable stack entry.
func (c Content) Valid() bool {
	return c.ID != "" && c.Type != ""
}

// HasStartedAt reports whether the content carries a start time.
func (c Content) HasStartedAt() bool {
	return !c.StartedAt.IsZero()
}

// ExpiresIn returns the display duration, or 0 when the content does not expire.
func (c Content) ExpiresIn() time.Duration {
	return time.Duration(c.Duration) * time.Millisecond
}

// LayerAssignment maps each layer to its winning content, if any.
type LayerAssignment struct {
	Foreground *Content `json:"foreground"`
	Midground  *Content `json:"midground"`
	Background *Content `json:"background"`
}

// Get returns the content assigned to layer l.
func (a LayerAssignment) Get(l Layer) *Content {
	switch l {
	case LayerForeground:
		return a.Foreground
	case LayerMidground:
		return a.Midground
	case LayerBackground:
		return a.Background
	default:
		return nil
	}
}

// Set assigns c to layer l. Unknown layers are ignored.
func (a *LayerAssignment) Set(l Layer, c *Content) {
	switch l {
	case LayerForeground:
		a.Foreground = c
	case LayerMidground:
		a.Midground = c
	case LayerBackground:
		a.Background = c
	}
}
