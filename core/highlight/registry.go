// Package highlight holds named, colored sets of token identities contributed
// by notes and manual clicks, and resolves what color a token renders with
// when it belongs to zero, one, or several groups.
//
// A Registry is an explicitly owned state object scoped to the currently
// displayed document. Panes receive it by injection; only the pane that owns
// a sourceId may add, replace, or clear groups for it (single-writer
// convention, enforced by ownership rather than locking; the mutex exists
// because broadcast transports deliver on their own goroutine).
package highlight

import (
	"sync"

	"github.com/google/uuid"
)

// Kind classifies the source that contributed a group.
type Kind string

// Source kind constants.
const (
	KindNotes     Kind = "notes"
	KindSelection Kind = "selection"
	KindOther     Kind = "other"
)

// State is a group's lifecycle state as observed through the registry.
type State string

// Group lifecycle states. Transition to StateAbsent always goes through an
// explicit superseding empty group; there is no timeout-based expiry.
const (
	StateAbsent  State = "absent"
	StatePassive State = "passive"
	StateFocused State = "focused"
)

// DefaultPalette is the ordered highlight color cycle.
var DefaultPalette = []string{
	"#f6e05e", // yellow
	"#9ae6b4", // green
	"#90cdf4", // blue
	"#fbb6ce", // pink
	"#d6bcfa", // purple
	"#fbd38d", // orange
}

// Group is a named, colored set of token identities from one source.
type Group struct {
	// ID is the unique group identity.
	ID string `json:"id"`

	// SourceKind and SourceID name the contributing source. A new group with
	// the same pair fully replaces the old one, never merges.
	SourceKind Kind   `json:"source_kind"`
	SourceID   string `json:"source_id"`

	// Label is the human-readable group name (e.g., the note's quote).
	Label string `json:"label,omitempty"`

	// Quote and Occurrence record the source quote; only groups carrying
	// both are colorable.
	Quote      string `json:"quote,omitempty"`
	Occurrence int    `json:"occurrence,omitempty"`

	// ColorIndex is assigned once when the group is created, from the
	// ordered list of colorable groups at that moment; -1 when uncolorable.
	// It is never recomputed from the live group list, so colors stay
	// stable when filters change afterward.
	ColorIndex int `json:"color_index"`

	// TokenIDs is the set of original-language token ids the group covers.
	TokenIDs map[int]struct{} `json:"-"`
}

// NewGroup creates a group with a generated id and no color.
func NewGroup(kind Kind, sourceID, label string) *Group {
	return &Group{
		ID:         uuid.New().String(),
		SourceKind: kind,
		SourceID:   sourceID,
		Label:      label,
		ColorIndex: -1,
		TokenIDs:   make(map[int]struct{}),
	}
}

// Colorable reports whether the group participates in color assignment:
// only groups whose source has both a quote and an occurrence do.
func (g *Group) Colorable() bool {
	return g.Quote != "" && g.Occurrence >= 1
}

// Empty reports whether the group covers no tokens. An empty group is the
// explicit superseding message that retires a prior group.
func (g *Group) Empty() bool {
	return len(g.TokenIDs) == 0
}

// Contains reports whether the group covers the token id.
func (g *Group) Contains(tokenID int) bool {
	_, ok := g.TokenIDs[tokenID]
	return ok
}

// Registry resolves token membership and display color across groups.
type Registry struct {
	mu      sync.RWMutex
	groups  []*Group // insertion order
	active  string
	palette []string
}

// NewRegistry creates a registry with the given palette, defaulting to
// DefaultPalette when none is supplied.
func NewRegistry(palette ...string) *Registry {
	if len(palette) == 0 {
		palette = DefaultPalette
	}
	return &Registry{palette: palette}
}

// PaletteSize returns the number of colors in the cycle.
func (r *Registry) PaletteSize() int {
	return len(r.palette)
}

// AddGroup inserts or replaces (by SourceKind+SourceID) a group. An existing
// group with the same source is fully replaced, not merged. An empty group
// supersedes the prior one and retires it: the source transitions to absent.
func (r *Registry) AddGroup(g *Group) {
	if g == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, existing := range r.groups {
		if existing.SourceKind == g.SourceKind && existing.SourceID == g.SourceID {
			idx = i
			break
		}
	}

	if g.Empty() {
		if idx >= 0 {
			if r.groups[idx].ID == r.active {
				r.active = ""
			}
			r.groups = append(r.groups[:idx], r.groups[idx+1:]...)
		}
		return
	}

	if idx >= 0 {
		if r.groups[idx].ID == r.active {
			r.active = ""
		}
		r.groups[idx] = g
		return
	}
	r.groups = append(r.groups, g)
}

// ClearKind removes every group with the given source kind; used on
// navigation changes.
func (r *Registry) ClearKind(kind Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.groups[:0]
	for _, g := range r.groups {
		if g.SourceKind == kind {
			if g.ID == r.active {
				r.active = ""
			}
			continue
		}
		kept = append(kept, g)
	}
	r.groups = kept
}

// ClearSource removes every group owned by the given source id.
func (r *Registry) ClearSource(sourceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.groups[:0]
	for _, g := range r.groups {
		if g.SourceID == sourceID {
			if g.ID == r.active {
				r.active = ""
			}
			continue
		}
		kept = append(kept, g)
	}
	r.groups = kept
}

// Reset drops all groups and the active selection; called when the visible
// book/chapter changes.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups = nil
	r.active = ""
}

// SetActive marks a group as user-focused; at most one at a time. An empty
// id clears the focus.
func (r *Registry) SetActive(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = id
}

// ClearActive drops the focused group, if any.
func (r *Registry) ClearActive() {
	r.SetActive("")
}

// Active returns the focused group id, if any.
func (r *Registry) Active() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// StateOf reports a group's lifecycle state.
func (r *Registry) StateOf(id string) State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, g := range r.groups {
		if g.ID == id {
			if id == r.active {
				return StateFocused
			}
			return StatePassive
		}
	}
	return StateAbsent
}

// GroupsFor returns the groups covering the token id, in registry order.
func (r *Registry) GroupsFor(tokenID int) []*Group {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Group
	for _, g := range r.groups {
		if g.Contains(tokenID) {
			out = append(out, g)
		}
	}
	return out
}

// ColorFor returns the groups covering the token and the single resolved
// display color. When the token belongs to several groups, the active group
// wins if present among them; otherwise the first group in registry order.
// Overlap is never blended: exactly one group's color is shown per token.
// ok is false when no group covers the token or the winner is uncolorable.
func (r *Registry) ColorFor(tokenID int) (groups []*Group, color string, ok bool) {
	groups = r.GroupsFor(tokenID)
	if len(groups) == 0 {
		return nil, "", false
	}

	r.mu.RLock()
	active := r.active
	palette := r.palette
	r.mu.RUnlock()

	winner := groups[0]
	if active != "" {
		for _, g := range groups {
			if g.ID == active {
				winner = g
				break
			}
		}
	}

	if winner.ColorIndex < 0 || len(palette) == 0 {
		return groups, "", false
	}
	return groups, palette[winner.ColorIndex%len(palette)], true
}

// Groups returns a snapshot of all groups in registry order.
func (r *Registry) Groups() []*Group {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Group(nil), r.groups...)
}
