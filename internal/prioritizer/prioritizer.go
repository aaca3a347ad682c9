// Package prioritizer ranks competing overlay content.
//
// All functions are pure except Creator, which reads a clock and an id
// generator supplied by the caller.
package prioritizer

import (
	"sort"

	"github.com/weiawesome/wes-io-live/overlay-service/internal/domain"
)

// Priorities for content types with a fixed rank. Anything else ranks as PriorityDefault.
const (
	PriorityAlert          = 100
	PrioritySubTrain       = 50
	PriorityManualOverride = 50
	PriorityTicker         = 10
	PriorityDefault        = 10
)

var priorities = map[domain.ContentType]int{
	domain.ContentAlert:          PriorityAlert,
	domain.ContentSubTrain:       PrioritySubTrain,
	domain.ContentManualOverride: PriorityManualOverride,
	domain.ContentTicker:         PriorityTicker,
}

// PriorityFor returns the static priority of a content type.
func PriorityFor(t domain.ContentType) int {
	if p, ok := priorities[t]; ok {
		return p
	}
	return PriorityDefault
}

// Less reports whether a outranks b: higher priority first, then earlier
// started_at. Content without started_at ranks after its equal-priority peers.
func Less(a, b domain.Content) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	switch {
	case !a.HasStartedAt():
		return false
	case !b.HasStartedAt():
		return true
	default:
		return a.StartedAt.Before(b.StartedAt)
	}
}

// SortByPriority returns a stably sorted copy of list. The input is not modified.
func SortByPriority(list []domain.Content) []domain.Content {
	out := domain.CopyContents(list)
	sort.SliceStable(out, func(i, j int) bool {
		return Less(out[i], out[j])
	})
	return out
}

// Valid returns the usable entries of stack, preserving order.
func Valid(stack []domain.Content) []domain.Content {
	out := make([]domain.Content, 0, len(stack))
	for _, c := range stack {
		if c.Valid() {
			out = append(out, c)
		}
	}
	return out
}

// Winner returns the top-ranked entry of list, or false when list is empty.
func Winner(list []domain.Content) (domain.Content, bool) {
	if len(list) == 0 {
		return domain.Content{}, false
	}
	best := list[0]
	for _, c := range list[1:] {
		if Less(c, best) {
			best = c
		}
	}
	return best, true
}

// DetermineActive picks the content to show now. Invalid stack slots are
// ignored. With no usable stack entry it falls back to the head of the
// ticker rotation, and returns nil when that is empty too.
func DetermineActive(stack []domain.Content, rotation []domain.ContentType) *domain.Content {
	if best, ok := Winner(Valid(stack)); ok {
		return &best
	}
	if len(rotation) == 0 {
		return nil
	}
	next := rotation[0]
	return &domain.Content{
		ID:       TickerID(next),
		Type:     next,
		Priority: PriorityTicker,
	}
}

// TickerID is the id given to content synthesized from the ticker rotation.
func TickerID(t domain.ContentType) string {
	return "ticker:" + string(t)
}

// PriorityLevelOf classifies the stack for UI signaling.
func PriorityLevelOf(stack []domain.Content) domain.PriorityLevel {
	hasSubTrain := false
	for _, c := range Valid(stack) {
		if c.Priority >= PriorityAlert {
			return domain.PriorityLevelAlert
		}
		if c.Priority == PrioritySubTrain {
			hasSubTrain = true
		}
	}
	if hasSubTrain {
		return domain.PriorityLevelSubTrain
	}
	return domain.PriorityLevelTicker
}
