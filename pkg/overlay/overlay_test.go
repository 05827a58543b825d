package overlay

import (
	"math"
	"testing"

	"github.com/synapview/synapview/pkg/geo"
	"github.com/synapview/synapview/pkg/graph"
	"github.com/synapview/synapview/pkg/viewport"
)

func overlaySet(t *testing.T) *graph.Set {
	t.Helper()
	s, err := graph.NewSet(graph.Subgraph{
		Nodes: []graph.Node{
			{ID: "a", X: 0, Y: 0, Placed: true},
			{ID: "b", X: 100, Y: 0, Placed: true},
		},
		Edges: []graph.Edge{
			{Source: "a", Target: "b", Type: "x"},
			{Source: "a", Target: "b", Type: "y"},
		},
	})
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	return s
}

func TestReposition_NodeAnchor(t *testing.T) {
	s := overlaySet(t)
	sync := NewSynchronizer()
	sync.Open("popover-1", NodeAnchor("b"))

	tf := viewport.Transform{PanX: 10, PanY: 20, Scale: 2}
	sync.Reposition(s, nil, tf)

	a, ok := sync.Get("popover-1")
	if !ok {
		t.Fatal("anchor disappeared")
	}
	if !a.Visible {
		t.Fatal("anchor should be visible")
	}
	if a.ScreenX != 210 || a.ScreenY != 20 {
		t.Errorf("screen position = (%v,%v), want (210,20)", a.ScreenX, a.ScreenY)
	}
}

func TestReposition_TracksMovingNode(t *testing.T) {
	s := overlaySet(t)
	sync := NewSynchronizer()
	sync.Open("p", NodeAnchor("a"))

	sync.Reposition(s, nil, viewport.Identity)
	first, _ := sync.Get("p")

	n, _ := s.Node("a")
	n.X, n.Y = 50, 50
	sync.Reposition(s, nil, viewport.Identity)
	second, _ := sync.Get("p")

	if first.ScreenX == second.ScreenX && first.ScreenY == second.ScreenY {
		t.Error("anchor did not follow the node")
	}
	if second.ScreenX != 50 || second.ScreenY != 50 {
		t.Errorf("anchor at (%v,%v), want (50,50)", second.ScreenX, second.ScreenY)
	}
}

func TestReposition_EdgeAnchorUsesCurveMidpoint(t *testing.T) {
	s := overlaySet(t)
	offsets := graph.AssignCurveOffsets(s.Edges(), 30)

	key := graph.EdgeKey{Source: "a", Target: "b", Type: "x"}
	sync := NewSynchronizer()
	sync.Open("edge-pop", EdgeAnchor(key))
	sync.Reposition(s, offsets, viewport.Identity)

	a, _ := sync.Get("edge-pop")
	if !a.Visible {
		t.Fatal("edge anchor should be visible")
	}

	want := geo.EdgeMidpoint(geo.Point{X: 0, Y: 0}, geo.Point{X: 100, Y: 0}, offsets[key])
	if math.Abs(a.ScreenX-want.X) > 1e-9 || math.Abs(a.ScreenY-want.Y) > 1e-9 {
		t.Errorf("edge anchor (%v,%v), want curve midpoint (%v,%v)", a.ScreenX, a.ScreenY, want.X, want.Y)
	}
	// Two parallel edges: the anchored one must sit off the straight
	// midline.
	if a.ScreenY == 0 {
		t.Error("parallel edge anchor should be displaced off the midline")
	}
}

func TestReposition_MissingTargetHidesAnchor(t *testing.T) {
	s := overlaySet(t)
	sync := NewSynchronizer()
	sync.Open("p", NodeAnchor("gone"))

	sync.Reposition(s, nil, viewport.Identity)

	a, ok := sync.Get("p")
	if !ok {
		t.Fatal("anchor must survive a missing target")
	}
	if a.Visible {
		t.Error("anchor with missing target should be hidden")
	}
}

func TestReposition_ViewportChangeMovesAnchors(t *testing.T) {
	s := overlaySet(t)
	sync := NewSynchronizer()
	sync.Open("p", NodeAnchor("b"))

	sync.Reposition(s, nil, viewport.Identity)
	before, _ := sync.Get("p")

	sync.Reposition(s, nil, viewport.Transform{PanX: -40, PanY: 0, Scale: 0.5})
	after, _ := sync.Get("p")

	if before.ScreenX == after.ScreenX {
		t.Error("anchor did not respond to viewport change")
	}
	if after.ScreenX != 10 {
		t.Errorf("anchor X = %v, want 10", after.ScreenX)
	}
}

func TestOpenCloseLifecycle(t *testing.T) {
	sync := NewSynchronizer()
	sync.Open("a", NodeAnchor("n1"))
	sync.Open("b", NodeAnchor("n2"))
	if sync.Len() != 2 {
		t.Fatalf("expected 2 overlays, got %d", sync.Len())
	}

	sync.Close("a")
	if _, ok := sync.Get("a"); ok {
		t.Error("closed overlay still present")
	}

	sync.CloseAll()
	if sync.Len() != 0 {
		t.Errorf("expected no overlays after CloseAll, got %d", sync.Len())
	}
}
