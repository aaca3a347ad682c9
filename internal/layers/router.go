// Package layers routes overlay content to display layers per show context.
package layers

import (
	"github.com/weiawesome/wes-io-live/overlay-service/internal/domain"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/prioritizer"
)

// Mapping maps content types to layers.
type Mapping map[domain.ContentType]domain.Layer

// defaultMapping applies to shows without their own table and to types a
// show table does not list.
var defaultMapping = Mapping{
	domain.ContentAlert:    domain.LayerForeground,
	domain.ContentSubTrain: domain.LayerMidground,
}

var showMappings = map[domain.ShowContext]Mapping{
	domain.ShowIronmon: {
		domain.ContentAlert:          domain.LayerForeground,
		domain.ContentDeathAlert:     domain.LayerForeground,
		domain.ContentEliteFour:      domain.LayerForeground,
		domain.ContentShinyEncounter: domain.LayerForeground,
		domain.ContentSubTrain:       domain.LayerMidground,
		domain.ContentLevelUp:        domain.LayerMidground,
		domain.ContentTicker:         domain.LayerBackground,
	},
	domain.ShowVariety: {
		domain.ContentAlert:          domain.LayerForeground,
		domain.ContentRaid:           domain.LayerForeground,
		domain.ContentManualOverride: domain.LayerForeground,
		domain.ContentSubTrain:       domain.LayerMidground,
		domain.ContentFollow:         domain.LayerMidground,
		domain.ContentCheer:          domain.LayerMidground,
		domain.ContentTicker:         domain.LayerBackground,
		domain.ContentEmoteStats:     domain.LayerBackground,
	},
	domain.ShowCoding: {
		domain.ContentAlert:          domain.LayerForeground,
		domain.ContentBuildFailure:   domain.LayerForeground,
		domain.ContentManualOverride: domain.LayerForeground,
		domain.ContentSubTrain:       domain.LayerMidground,
		domain.ContentBuildSuccess:   domain.LayerMidground,
		domain.ContentTicker:         domain.LayerBackground,
		domain.ContentEmoteStats:     domain.LayerBackground,
	},
}

// MappingFor returns a copy of the routing table for show. Unknown shows get
// the default table.
func MappingFor(show domain.ShowContext) Mapping {
	src, ok := showMappings[show]
	if !ok {
		src = defaultMapping
	}
	out := make(Mapping, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// LayerFor resolves the layer for a content type on show:
// show table, then default table, then background.
func LayerFor(t domain.ContentType, show domain.ShowContext) domain.Layer {
	if m, ok := showMappings[show]; ok {
		if l, ok := m[t]; ok {
			return l
		}
	}
	if l, ok := defaultMapping[t]; ok {
		return l
	}
	return domain.LayerBackground
}

// ResolveConflicts keeps one winner per layer among items that already carry
// a layer. Items without a layer are dropped. The result is ordered
// foreground, midground, background.
func ResolveConflicts(list []domain.Content) []domain.Content {
	groups := make(map[domain.Layer][]domain.Content, len(domain.Layers))
	for _, c := range list {
		if c.Layer == "" {
			continue
		}
		groups[c.Layer] = append(groups[c.Layer], c)
	}

	out := make([]domain.Content, 0, len(domain.Layers))
	for _, l := range domain.Layers {
		if winner, ok := prioritizer.Winner(groups[l]); ok {
			out = append(out, winner)
		}
	}
	return out
}

// AssignToLayers routes every usable item for show and returns the winner of
// each layer. Later items reusing an id already seen are ignored, so no id can
// land in two layers.
func AssignToLayers(list []domain.Content, show domain.ShowContext) domain.LayerAssignment {
	seen := make(map[string]struct{}, len(list))
	routed := make([]domain.Content, 0, len(list))
	for _, c := range list {
		if !c.Valid() {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		c.Layer = LayerFor(c.Type, show)
		routed = append(routed, c)
	}

	var a domain.LayerAssignment
	for _, c := range ResolveConflicts(routed) {
		winner := c
		a.Set(winner.Layer, &winner)
	}
	return a
}
