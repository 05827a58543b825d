// Package graph holds the working set that drives the live layout: typed
// nodes and directed, type-qualified edges, plus the incremental merge and
// the parallel-edge curve assignment derived from it.
//
// The set is index-addressed: nodes live in a flat arena and are referenced
// by id through a lookup table, so the layout engine and gesture handlers
// mutate positions through well-defined accessors rather than shared object
// aliasing.
package graph

import (
	"fmt"
	"math"
)

// Node is a concept in the working set. X/Y are the simulated position,
// owned by the layout engine while it runs (or by an active drag). When
// Pinned is set, FX/FY fix the node in place and the simulation must not
// move it.
type Node struct {
	ID    string  `json:"id" yaml:"id"`
	Label string  `json:"label" yaml:"label"`
	Group string  `json:"group,omitempty" yaml:"group,omitempty"`
	Size  float64 `json:"size,omitempty" yaml:"size,omitempty"`
	Color string  `json:"color,omitempty" yaml:"color,omitempty"`

	X      float64 `json:"x,omitempty" yaml:"x,omitempty"`
	Y      float64 `json:"y,omitempty" yaml:"y,omitempty"`
	Placed bool    `json:"placed,omitempty" yaml:"placed,omitempty"`

	FX     float64 `json:"fx,omitempty" yaml:"fx,omitempty"`
	FY     float64 `json:"fy,omitempty" yaml:"fy,omitempty"`
	Pinned bool    `json:"pinned,omitempty" yaml:"pinned,omitempty"`
}

// Pin fixes the node at the given coordinate.
func (n *Node) Pin(x, y float64) {
	n.FX, n.FY = x, y
	n.Pinned = true
	n.X, n.Y = x, y
	n.Placed = true
}

// Unpin returns the node to simulation control at its current position.
func (n *Node) Unpin() {
	n.Pinned = false
}

// Edge is a directed, type-qualified relationship between two nodes.
// Identity for deduplication is (Source, Target, Type); visual grouping for
// curve separation uses the unordered endpoint pair instead.
type Edge struct {
	Source   string  `json:"source" yaml:"source"`
	Target   string  `json:"target" yaml:"target"`
	Type     string  `json:"type" yaml:"type"`
	Weight   float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
	Color    string  `json:"color,omitempty" yaml:"color,omitempty"`
	Category string  `json:"category,omitempty" yaml:"category,omitempty"`
}

// EdgeKey is the directed, type-qualified identity of an edge.
type EdgeKey struct {
	Source string
	Target string
	Type   string
}

// Key returns the edge's identity.
func (e Edge) Key() EdgeKey {
	return EdgeKey{Source: e.Source, Target: e.Target, Type: e.Type}
}

// PairKey is the unordered endpoint pair of an edge, used to group parallel
// edges regardless of direction.
type PairKey struct {
	A string
	B string
}

// Pair returns the edge's unordered endpoint pair.
func (e Edge) Pair() PairKey {
	if e.Source <= e.Target {
		return PairKey{A: e.Source, B: e.Target}
	}
	return PairKey{A: e.Target, B: e.Source}
}

// Subgraph is a node/edge payload as loaded from a file or fetched from the
// backend, before it is folded into a working set.
type Subgraph struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"links" yaml:"edges"`
}

// Set is the live working set. Nodes are stored in a flat arena addressed
// by index; the id lookup makes every by-id access a fresh lookup, so a
// stale id after a merge degrades to a no-op instead of a dangling pointer.
type Set struct {
	nodes    []Node
	index    map[string]int
	edges    []Edge
	edgeKeys map[EdgeKey]struct{}
}

// NewSet validates a subgraph and builds a working set from it. Duplicate
// node ids, dangling edge endpoints, and non-finite coordinates are data
// contract violations and fail fast with the offending id.
func NewSet(sg Subgraph) (*Set, error) {
	s := &Set{
		index:    make(map[string]int, len(sg.Nodes)),
		edgeKeys: make(map[EdgeKey]struct{}, len(sg.Edges)),
	}
	for _, n := range sg.Nodes {
		if err := s.addNode(n); err != nil {
			return nil, err
		}
	}
	for _, e := range sg.Edges {
		if err := s.addEdge(e); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Set) addNode(n Node) error {
	if n.ID == "" {
		return fmt.Errorf("graph: node with empty id")
	}
	if _, dup := s.index[n.ID]; dup {
		return fmt.Errorf("graph: duplicate node id %q", n.ID)
	}
	if err := checkFinite(n); err != nil {
		return err
	}
	s.index[n.ID] = len(s.nodes)
	s.nodes = append(s.nodes, n)
	return nil
}

func (s *Set) addEdge(e Edge) error {
	if _, ok := s.index[e.Source]; !ok {
		return fmt.Errorf("graph: edge %s->%s (%s) references unknown node %q", e.Source, e.Target, e.Type, e.Source)
	}
	if _, ok := s.index[e.Target]; !ok {
		return fmt.Errorf("graph: edge %s->%s (%s) references unknown node %q", e.Source, e.Target, e.Type, e.Target)
	}
	key := e.Key()
	if _, dup := s.edgeKeys[key]; dup {
		return fmt.Errorf("graph: duplicate edge %s->%s (%s)", e.Source, e.Target, e.Type)
	}
	s.edgeKeys[key] = struct{}{}
	s.edges = append(s.edges, e)
	return nil
}

func checkFinite(n Node) error {
	for _, v := range [...]float64{n.X, n.Y, n.FX, n.FY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("graph: node %q has non-finite coordinate", n.ID)
		}
	}
	return nil
}

// Len returns the number of nodes.
func (s *Set) Len() int { return len(s.nodes) }

// EdgeCount returns the number of edges.
func (s *Set) EdgeCount() int { return len(s.edges) }

// Node looks up a node by id. The returned pointer addresses the arena
// directly; it is valid until the next merge.
func (s *Set) Node(id string) (*Node, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return &s.nodes[i], true
}

// NodeAt returns the node at arena index i.
func (s *Set) NodeAt(i int) *Node { return &s.nodes[i] }

// Index returns the arena index for a node id.
func (s *Set) Index(id string) (int, bool) {
	i, ok := s.index[id]
	return i, ok
}

// Has reports whether a node with the given id exists.
func (s *Set) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Nodes returns the node arena. Callers other than the layout engine and
// the drag handler must treat it as read-only.
func (s *Set) Nodes() []Node { return s.nodes }

// Edges returns the edge list, read-only.
func (s *Set) Edges() []Edge { return s.edges }

// Snapshot returns an independent copy of the working set, safe to encode
// or hand across a transport while the simulation keeps mutating positions.
func (s *Set) Snapshot() Subgraph {
	nodes := make([]Node, len(s.nodes))
	copy(nodes, s.nodes)
	edges := make([]Edge, len(s.edges))
	copy(edges, s.edges)
	return Subgraph{Nodes: nodes, Edges: edges}
}

// Neighbors returns the ids of nodes directly connected to id by any edge,
// in a single pass over the edge list.
func (s *Set) Neighbors(id string) map[string]struct{} {
	out := make(map[string]struct{})
	for i := range s.edges {
		e := &s.edges[i]
		if e.Source == id {
			out[e.Target] = struct{}{}
		} else if e.Target == id {
			out[e.Source] = struct{}{}
		}
	}
	return out
}
