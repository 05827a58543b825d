// Package overlay keeps floating detail widgets anchored to moving graph
// elements. Each open overlay records a graph-space anchor (a node, or an
// edge whose midpoint tracks the curve geometry); Reposition recomputes
// the screen position of every anchor from the live working set and the
// current viewport transform, and is called on every simulation tick and
// every pan/zoom change.
package overlay

import (
	"fmt"
	"sync"

	"github.com/synapview/synapview/pkg/geo"
	"github.com/synapview/synapview/pkg/graph"
	"github.com/synapview/synapview/pkg/viewport"
)

// Kind discriminates what an anchor is attached to.
type Kind int

const (
	KindNode Kind = iota
	KindEdge
)

// Anchor is one open overlay's attachment point plus its last computed
// screen position.
type Anchor struct {
	Kind Kind

	// NodeID is set for node anchors.
	NodeID string
	// Edge identifies the anchored edge for edge anchors.
	Edge graph.EdgeKey

	ScreenX float64
	ScreenY float64

	// Visible is false while the anchor's target is missing from the
	// working set (for example a drag or detail popover outliving a
	// reload). The overlay is hidden, not torn down, and comes back if
	// the target reappears.
	Visible bool
}

// NodeAnchor builds an anchor attached to a node.
func NodeAnchor(id string) Anchor {
	return Anchor{Kind: KindNode, NodeID: id}
}

// EdgeAnchor builds an anchor attached to an edge midpoint.
func EdgeAnchor(key graph.EdgeKey) Anchor {
	return Anchor{Kind: KindEdge, Edge: key}
}

// Synchronizer tracks open overlays and recomputes their screen positions.
// Targets are looked up by id on every pass, never cached, so an anchor
// whose element vanished in a merge degrades to hidden instead of faulting.
type Synchronizer struct {
	mu      sync.RWMutex
	anchors map[string]Anchor
}

// NewSynchronizer creates an empty synchronizer.
func NewSynchronizer() *Synchronizer {
	return &Synchronizer{anchors: make(map[string]Anchor)}
}

// Open registers an overlay under the given id, replacing any previous
// anchor with that id.
func (s *Synchronizer) Open(id string, a Anchor) {
	s.mu.Lock()
	s.anchors[id] = a
	s.mu.Unlock()
}

// Close removes an overlay.
func (s *Synchronizer) Close(id string) {
	s.mu.Lock()
	delete(s.anchors, id)
	s.mu.Unlock()
}

// CloseAll removes every overlay.
func (s *Synchronizer) CloseAll() {
	s.mu.Lock()
	s.anchors = make(map[string]Anchor)
	s.mu.Unlock()
}

// Len returns the number of open overlays.
func (s *Synchronizer) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.anchors)
}

// Get returns the current state of one overlay anchor.
func (s *Synchronizer) Get(id string) (Anchor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.anchors[id]
	return a, ok
}

// Anchors returns a snapshot of all anchors keyed by overlay id.
func (s *Synchronizer) Anchors() map[string]Anchor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Anchor, len(s.anchors))
	for id, a := range s.anchors {
		out[id] = a
	}
	return out
}

// Reposition recomputes every anchor's screen position from the working
// set, the curve-offset table, and the viewport transform. Within a tick
// it runs after the engine has written positions, so overlays are always
// frame-consistent with the rendered graph.
func (s *Synchronizer) Reposition(set *graph.Set, offsets map[graph.EdgeKey]float64, t viewport.Transform) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, a := range s.anchors {
		var p geo.Point
		var ok bool
		switch a.Kind {
		case KindNode:
			p, ok = nodePoint(set, a.NodeID)
		case KindEdge:
			p, ok = edgeMidpoint(set, a.Edge, offsets)
		}
		if !ok {
			a.Visible = false
			s.anchors[id] = a
			continue
		}
		a.ScreenX, a.ScreenY = t.ToScreen(p.X, p.Y)
		a.Visible = true
		s.anchors[id] = a
	}
}

func nodePoint(set *graph.Set, id string) (geo.Point, bool) {
	n, ok := set.Node(id)
	if !ok || !n.Placed {
		return geo.Point{}, false
	}
	return geo.Point{X: n.X, Y: n.Y}, true
}

func edgeMidpoint(set *graph.Set, key graph.EdgeKey, offsets map[graph.EdgeKey]float64) (geo.Point, bool) {
	src, ok := set.Node(key.Source)
	if !ok || !src.Placed {
		return geo.Point{}, false
	}
	dst, ok := set.Node(key.Target)
	if !ok || !dst.Placed {
		return geo.Point{}, false
	}
	off := offsets[key]
	return geo.EdgeMidpoint(geo.Point{X: src.X, Y: src.Y}, geo.Point{X: dst.X, Y: dst.Y}, off), true
}

// String implements fmt.Stringer for log lines.
func (a Anchor) String() string {
	if a.Kind == KindNode {
		return fmt.Sprintf("node(%s)@(%.1f,%.1f)", a.NodeID, a.ScreenX, a.ScreenY)
	}
	return fmt.Sprintf("edge(%s->%s:%s)@(%.1f,%.1f)", a.Edge.Source, a.Edge.Target, a.Edge.Type, a.ScreenX, a.ScreenY)
}
