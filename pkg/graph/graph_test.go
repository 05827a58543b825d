package graph

import (
	"math"
	"strings"
	"testing"
)

func TestNewSet_Valid(t *testing.T) {
	s, err := NewSet(Subgraph{
		Nodes: []Node{{ID: "a"}, {ID: "b"}},
		Edges: []Edge{{Source: "a", Target: "b", Type: "related"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Len() != 2 {
		t.Errorf("expected 2 nodes, got %d", s.Len())
	}
	if s.EdgeCount() != 1 {
		t.Errorf("expected 1 edge, got %d", s.EdgeCount())
	}
}

func TestNewSet_DuplicateNodeID(t *testing.T) {
	_, err := NewSet(Subgraph{Nodes: []Node{{ID: "a"}, {ID: "a"}}})
	if err == nil {
		t.Fatal("expected error for duplicate node id")
	}
	if !strings.Contains(err.Error(), `"a"`) {
		t.Errorf("error should name the offending id, got: %v", err)
	}
}

func TestNewSet_DanglingEdge(t *testing.T) {
	_, err := NewSet(Subgraph{
		Nodes: []Node{{ID: "a"}},
		Edges: []Edge{{Source: "a", Target: "ghost", Type: "related"}},
	})
	if err == nil {
		t.Fatal("expected error for dangling edge endpoint")
	}
	if !strings.Contains(err.Error(), `"ghost"`) {
		t.Errorf("error should name the missing id, got: %v", err)
	}
}

func TestNewSet_NaNCoordinate(t *testing.T) {
	_, err := NewSet(Subgraph{Nodes: []Node{{ID: "a", X: math.NaN(), Placed: true}}})
	if err == nil {
		t.Fatal("expected error for NaN coordinate")
	}
}

func TestNode_PinUnpin(t *testing.T) {
	n := Node{ID: "a", X: 1, Y: 2, Placed: true}
	n.Pin(10, 20)
	if !n.Pinned || n.FX != 10 || n.FY != 20 {
		t.Errorf("pin did not take: %+v", n)
	}
	if n.X != 10 || n.Y != 20 {
		t.Errorf("pin should snap position to the fixed coordinate: %+v", n)
	}
	n.Unpin()
	if n.Pinned {
		t.Error("unpin did not clear the pin")
	}
}

func TestEdge_Pair_Unordered(t *testing.T) {
	ab := Edge{Source: "a", Target: "b", Type: "x"}
	ba := Edge{Source: "b", Target: "a", Type: "y"}
	if ab.Pair() != ba.Pair() {
		t.Errorf("pair keys should ignore direction: %v vs %v", ab.Pair(), ba.Pair())
	}
	if ab.Key() == ba.Key() {
		t.Error("edge identity must stay directed")
	}
}

func TestNeighbors(t *testing.T) {
	s, err := NewSet(Subgraph{
		Nodes: []Node{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}},
		Edges: []Edge{
			{Source: "a", Target: "b", Type: "x"},
			{Source: "c", Target: "a", Type: "x"},
			{Source: "b", Target: "c", Type: "x"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := s.Neighbors("a")
	if len(got) != 2 {
		t.Fatalf("expected 2 neighbors of a, got %d", len(got))
	}
	for _, id := range []string{"b", "c"} {
		if _, ok := got[id]; !ok {
			t.Errorf("expected %q in neighbor set", id)
		}
	}
	if _, ok := got["d"]; ok {
		t.Error("d is not adjacent to a")
	}
}

func TestSnapshot_Independent(t *testing.T) {
	s, _ := NewSet(Subgraph{Nodes: []Node{{ID: "a", X: 1, Y: 1, Placed: true}}})
	snap := s.Snapshot()
	node, _ := s.Node("a")
	node.X = 99
	if snap.Nodes[0].X != 1 {
		t.Error("snapshot must not alias the live arena")
	}
}
