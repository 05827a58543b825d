package graph

import (
	"fmt"
	"math"
	"math/rand"
)

// mergeJitter is the half-range, in layout units, of the uniform jitter
// applied to newly merged nodes around the existing centroid. Seeding new
// nodes near the visible mass keeps the follow-up relaxation local instead
// of exploding from the origin.
const mergeJitter = 25.0

// jitterRNG is deliberately fixed-seed so repeated loads of the same data
// produce the same layout.
var jitterRNG = rand.New(rand.NewSource(1))

// MergeResult reports what a merge changed.
type MergeResult struct {
	NodesAdded int
	EdgesAdded int
}

// Merge folds a freshly fetched subgraph into the working set. Existing
// nodes keep their exact position and pin state; incoming nodes not already
// present are placed at the centroid of the currently placed nodes plus
// uniform jitter on both axes, or left unplaced on first load so the layout
// engine free-places them. Incoming edges are deduplicated by
// (source, target, type).
//
// Validation failures (empty/duplicate-within-payload ids, dangling
// endpoints against the merged node set, non-finite coordinates) leave the
// set untouched.
func (s *Set) Merge(sg Subgraph) (MergeResult, error) {
	var res MergeResult

	if err := s.validateIncoming(sg); err != nil {
		return res, err
	}

	cx, cy, placed := s.centroid()

	for _, n := range sg.Nodes {
		if s.Has(n.ID) {
			continue
		}
		if !n.Placed {
			if placed > 0 {
				n.X = cx + (jitterRNG.Float64()*2-1)*mergeJitter
				n.Y = cy + (jitterRNG.Float64()*2-1)*mergeJitter
				n.Placed = true
			}
			// First load: leave unplaced for the engine to seed.
		}
		s.index[n.ID] = len(s.nodes)
		s.nodes = append(s.nodes, n)
		res.NodesAdded++
	}

	for _, e := range sg.Edges {
		if _, dup := s.edgeKeys[e.Key()]; dup {
			continue
		}
		s.edgeKeys[e.Key()] = struct{}{}
		s.edges = append(s.edges, e)
		res.EdgesAdded++
	}

	return res, nil
}

// validateIncoming checks the payload against the contract before any
// mutation, so a bad fetch cannot half-apply.
func (s *Set) validateIncoming(sg Subgraph) error {
	seen := make(map[string]struct{}, len(sg.Nodes))
	for _, n := range sg.Nodes {
		if n.ID == "" {
			return fmt.Errorf("graph: merge payload contains node with empty id")
		}
		if _, dup := seen[n.ID]; dup {
			return fmt.Errorf("graph: merge payload contains duplicate node id %q", n.ID)
		}
		seen[n.ID] = struct{}{}
		if err := checkFinite(n); err != nil {
			return err
		}
	}
	for _, e := range sg.Edges {
		if !s.Has(e.Source) {
			if _, incoming := seen[e.Source]; !incoming {
				return fmt.Errorf("graph: merge edge %s->%s (%s) references unknown node %q", e.Source, e.Target, e.Type, e.Source)
			}
		}
		if !s.Has(e.Target) {
			if _, incoming := seen[e.Target]; !incoming {
				return fmt.Errorf("graph: merge edge %s->%s (%s) references unknown node %q", e.Source, e.Target, e.Type, e.Target)
			}
		}
	}
	return nil
}

// centroid returns the mean position of placed nodes and how many there are.
func (s *Set) centroid() (x, y float64, placed int) {
	for i := range s.nodes {
		n := &s.nodes[i]
		if !n.Placed {
			continue
		}
		x += n.X
		y += n.Y
		placed++
	}
	if placed == 0 {
		return 0, 0, 0
	}
	return x / float64(placed), y / float64(placed), placed
}

// Bounds returns the axis-aligned bounding box of placed nodes. ok is
// false when nothing is placed yet.
func (s *Set) Bounds() (minX, minY, maxX, maxY float64, ok bool) {
	minX, minY = math.MaxFloat64, math.MaxFloat64
	maxX, maxY = -math.MaxFloat64, -math.MaxFloat64
	for i := range s.nodes {
		n := &s.nodes[i]
		if !n.Placed {
			continue
		}
		ok = true
		minX = math.Min(minX, n.X)
		minY = math.Min(minY, n.Y)
		maxX = math.Max(maxX, n.X)
		maxY = math.Max(maxY, n.Y)
	}
	return minX, minY, maxX, maxY, ok
}
