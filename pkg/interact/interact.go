// Package interact tracks the pointer-driven state of the graph view:
// hover, origin/destination marking, and the derived highlight set, plus
// the dispatch table for context-menu actions. The facets are independent
// of each other — a node can be hovered, pinned, and marked as origin all
// at once — so they are kept as separate fields rather than one exclusive
// state machine.
package interact

import (
	"fmt"
	"sync"

	"github.com/synapview/synapview/pkg/graph"
	"github.com/synapview/synapview/pkg/reactive"
)

// Action names a context-menu operation on a node.
type Action string

const (
	ActionPin            Action = "pin"
	ActionUnpin          Action = "unpin"
	ActionSetOrigin      Action = "set-origin"
	ActionSetDestination Action = "set-destination"
	ActionExpand         Action = "expand"
	ActionShowDetails    Action = "show-details"
)

// Handler performs one context action against a node id.
type Handler func(nodeID string) error

// Flags is the render-facing view of one node's interaction state.
type Flags struct {
	Hovered     bool
	Pinned      bool
	Origin      bool
	Destination bool
	Highlighted bool
	// Dimmed is set on everything outside the highlight set while a
	// hover is active.
	Dimmed bool
}

// State owns hover/marking state over a working set. The highlight set is
// memoized and recomputed only when the hovered node or the edge set
// changes.
type State struct {
	mu          sync.RWMutex
	set         *graph.Set
	hovered     string
	origin      string
	destination string

	highlight *reactive.Computed[map[string]struct{}]

	actionsMu sync.RWMutex
	actions   map[Action]Handler
}

// New creates interaction state over the given working set.
func New(set *graph.Set) *State {
	s := &State{
		set:     set,
		actions: make(map[Action]Handler),
	}
	s.highlight = reactive.NewComputed(s.computeHighlight)
	return s
}

// SetHovered records the node under the pointer ("" on pointer-leave) and
// invalidates the highlight set.
func (s *State) SetHovered(id string) {
	s.mu.Lock()
	changed := s.hovered != id
	s.hovered = id
	s.mu.Unlock()
	if changed {
		s.highlight.Invalidate()
	}
}

// Hovered returns the currently hovered node id, or "".
func (s *State) Hovered() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hovered
}

// SetOrigin marks a node as the navigation origin. Passing "" clears the
// mark; setting a new origin replaces the old one, so at most one node
// carries it.
func (s *State) SetOrigin(id string) {
	s.mu.Lock()
	s.origin = id
	s.mu.Unlock()
}

// Origin returns the marked origin node id, or "".
func (s *State) Origin() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.origin
}

// SetDestination marks a node as the navigation destination, replacing
// any previous one. "" clears.
func (s *State) SetDestination(id string) {
	s.mu.Lock()
	s.destination = id
	s.mu.Unlock()
}

// Destination returns the marked destination node id, or "".
func (s *State) Destination() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.destination
}

// InvalidateEdges must be called when the edge set changes (after a
// merge) so the next Highlight call sees the new adjacency.
func (s *State) InvalidateEdges() {
	s.highlight.Invalidate()
}

// Highlight returns the current highlight set: the hovered node plus its
// direct neighbors. Empty when nothing is hovered. The value is memoized
// behind a dirty flag.
func (s *State) Highlight() map[string]struct{} {
	return s.highlight.Get()
}

func (s *State) computeHighlight() map[string]struct{} {
	s.mu.RLock()
	hovered := s.hovered
	s.mu.RUnlock()

	if hovered == "" {
		return map[string]struct{}{}
	}
	out := s.set.Neighbors(hovered)
	out[hovered] = struct{}{}
	return out
}

// FlagsFor assembles the render flags for one node.
func (s *State) FlagsFor(id string) Flags {
	s.mu.RLock()
	hovered := s.hovered
	origin := s.origin
	destination := s.destination
	s.mu.RUnlock()

	var pinned bool
	if n, ok := s.set.Node(id); ok {
		pinned = n.Pinned
	}

	hl := s.Highlight()
	_, inHighlight := hl[id]

	return Flags{
		Hovered:     id == hovered,
		Pinned:      pinned,
		Origin:      id == origin && id != "",
		Destination: id == destination && id != "",
		Highlighted: inHighlight,
		Dimmed:      len(hl) > 0 && !inHighlight,
	}
}

// Register installs the handler for a context action, replacing any
// previous one.
func (s *State) Register(a Action, h Handler) {
	s.actionsMu.Lock()
	s.actions[a] = h
	s.actionsMu.Unlock()
}

// Dispatch routes a context-menu action to its handler.
func (s *State) Dispatch(a Action, nodeID string) error {
	s.actionsMu.RLock()
	h, ok := s.actions[a]
	s.actionsMu.RUnlock()
	if !ok {
		return fmt.Errorf("interact: no handler registered for action %q", a)
	}
	return h(nodeID)
}
