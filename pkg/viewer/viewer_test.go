package viewer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/synapview/synapview/pkg/graph"
	"github.com/synapview/synapview/pkg/interact"
	"github.com/synapview/synapview/pkg/layout"
	"github.com/synapview/synapview/pkg/overlay"
	"github.com/synapview/synapview/pkg/remote"
)

type stubFetcher struct {
	subgraph    graph.Subgraph
	subgraphErr error

	details     remote.NodeDetails
	detailsErr  error
	detailCalls int
}

func (f *stubFetcher) GetSubgraph(ctx context.Context, req remote.SubgraphRequest) (graph.Subgraph, error) {
	return f.subgraph, f.subgraphErr
}

func (f *stubFetcher) GetNodeDetails(ctx context.Context, id string) (remote.NodeDetails, error) {
	f.detailCalls++
	return f.details, f.detailsErr
}

func basePayload() graph.Subgraph {
	return graph.Subgraph{
		Nodes: []graph.Node{
			{ID: "a", Label: "A", X: 0, Y: 0, Placed: true},
			{ID: "b", Label: "B", X: 100, Y: 0, Placed: true},
			{ID: "c", Label: "C", X: 50, Y: 80, Placed: true},
		},
		Edges: []graph.Edge{
			{Source: "a", Target: "b", Type: "supports"},
			{Source: "b", Target: "a", Type: "refutes"},
			{Source: "a", Target: "c", Type: "mentions"},
		},
	}
}

func newViewer(t *testing.T, opts Options) *Viewer {
	t.Helper()
	v, err := New(basePayload(), opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(v.Close)
	return v
}

func TestNew_RejectsBadPayload(t *testing.T) {
	_, err := New(graph.Subgraph{
		Nodes: []graph.Node{{ID: "a"}},
		Edges: []graph.Edge{{Source: "a", Target: "missing", Type: "x"}},
	}, Options{})
	if err == nil {
		t.Fatal("expected validation error for dangling edge")
	}
}

func TestPinUnpin(t *testing.T) {
	v := newViewer(t, Options{})

	if err := v.Pin("a", 10, 20); err != nil {
		t.Fatalf("pin: %v", err)
	}
	n, _ := v.Set().Node("a")
	if !n.Pinned || n.FX != 10 || n.FY != 20 {
		t.Errorf("pin did not stick: %+v", n)
	}

	if err := v.Unpin("a"); err != nil {
		t.Fatalf("unpin: %v", err)
	}
	if n.Pinned {
		t.Error("node still pinned after Unpin")
	}

	if err := v.Pin("nope", 0, 0); err == nil {
		t.Error("pin of unknown id should error")
	}
}

func TestUnpinAll(t *testing.T) {
	v := newViewer(t, Options{})
	v.Pin("a", 0, 0)
	v.Pin("b", 1, 1)
	v.UnpinAll()

	for _, id := range []string{"a", "b"} {
		n, _ := v.Set().Node(id)
		if n.Pinned {
			t.Errorf("%s still pinned after UnpinAll", id)
		}
	}
}

func TestDrag_StayPinnedDefault(t *testing.T) {
	v := newViewer(t, Options{})

	if err := v.DragStart("b"); err != nil {
		t.Fatalf("drag start: %v", err)
	}
	if v.Dragging() != "b" {
		t.Errorf("Dragging() = %q, want b", v.Dragging())
	}

	v.DragMove(250, -30) // identity transform: screen == graph
	n, _ := v.Set().Node("b")
	if n.FX != 250 || n.FY != -30 || !n.Pinned {
		t.Errorf("drag move did not pin at cursor: %+v", n)
	}

	v.DragEnd()
	if v.Dragging() != "" {
		t.Error("drag id not cleared")
	}
	if !n.Pinned {
		t.Error("default policy must leave the node pinned where dropped")
	}
}

func TestDrag_ReleaseFree(t *testing.T) {
	v := newViewer(t, Options{DragRelease: ReleaseFree})

	v.DragStart("b")
	v.DragMove(300, 300)
	v.DragEnd()

	n, _ := v.Set().Node("b")
	if n.Pinned {
		t.Error("ReleaseFree policy must unpin on drop")
	}
	if n.X != 300 || n.Y != 300 {
		t.Errorf("node should remain at drop point until the next step, got (%v,%v)", n.X, n.Y)
	}
}

func TestDrag_AccountsForViewport(t *testing.T) {
	v := newViewer(t, Options{})
	v.Viewport().PanBy(100, 0)

	v.DragStart("a")
	v.DragMove(100, 50) // screen (100,50) is graph (0,50)
	n, _ := v.Set().Node("a")
	if n.FX != 0 || n.FY != 50 {
		t.Errorf("drag ignored the viewport transform: (%v,%v)", n.FX, n.FY)
	}
	v.DragEnd()
}

func TestDragMove_NoActiveDrag(t *testing.T) {
	v := newViewer(t, Options{})
	v.DragMove(500, 500) // must not panic or move anything
	n, _ := v.Set().Node("a")
	if n.X != 0 {
		t.Error("stray DragMove moved a node")
	}
}

func TestMerge_InvalidatesDerivedState(t *testing.T) {
	v := newViewer(t, Options{})

	before := v.CurveOffsets()
	key := graph.EdgeKey{Source: "a", Target: "b", Type: "supports"}
	if off := before[key]; math.Abs(off) != 15 {
		t.Fatalf("parallel pair offset = %v, want ±15", off)
	}

	res, err := v.Merge(graph.Subgraph{
		Nodes: []graph.Node{{ID: "d", Label: "D"}},
		Edges: []graph.Edge{{Source: "a", Target: "d", Type: "supports"}},
	})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if res.NodesAdded != 1 || res.EdgesAdded != 1 {
		t.Errorf("merge result %+v, want 1/1", res)
	}

	after := v.CurveOffsets()
	newKey := graph.EdgeKey{Source: "a", Target: "d", Type: "supports"}
	if _, ok := after[newKey]; !ok {
		t.Error("curve offsets not recomputed after merge")
	}
	if after[newKey] != 0 {
		t.Errorf("singleton edge offset = %v, want 0", after[newKey])
	}

	// A restart re-energizes the simulation so the new nodes relax in.
	if v.Engine().Settled() {
		t.Error("merge should restart the simulation")
	}
}

func TestExpand_FetchFailureLeavesSetUntouched(t *testing.T) {
	f := &stubFetcher{subgraphErr: errors.New("backend down")}
	v := newViewer(t, Options{Fetcher: f})

	before := v.Set().Len()
	if _, err := v.Expand(context.Background(), remote.SubgraphRequest{CenterID: "a"}); err == nil {
		t.Fatal("expected fetch error")
	}
	if v.Set().Len() != before {
		t.Error("failed expand mutated the working set")
	}
}

func TestExpand_MergesFetchedSubgraph(t *testing.T) {
	f := &stubFetcher{subgraph: graph.Subgraph{
		Nodes: []graph.Node{{ID: "a"}, {ID: "x"}},
		Edges: []graph.Edge{{Source: "a", Target: "x", Type: "rel"}},
	}}
	v := newViewer(t, Options{Fetcher: f})

	res, err := v.Expand(context.Background(), remote.SubgraphRequest{CenterID: "a"})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if res.NodesAdded != 1 {
		t.Errorf("NodesAdded = %d, want 1 (a already present)", res.NodesAdded)
	}
	if !v.Set().Has("x") {
		t.Error("expanded node missing from set")
	}
}

func TestDetails_CachesResponses(t *testing.T) {
	f := &stubFetcher{details: remote.NodeDetails{ID: "a", Label: "A"}}
	v := newViewer(t, Options{Fetcher: f})

	for i := 0; i < 3; i++ {
		d, err := v.Details(context.Background(), "a")
		if err != nil {
			t.Fatalf("details: %v", err)
		}
		if d.Label != "A" {
			t.Errorf("details label = %q", d.Label)
		}
	}
	if f.detailCalls != 1 {
		t.Errorf("backend called %d times, want 1 (cached)", f.detailCalls)
	}
}

func TestContextActions(t *testing.T) {
	v := newViewer(t, Options{})

	if err := v.Interaction().Dispatch(interact.ActionPin, "c"); err != nil {
		t.Fatalf("dispatch pin: %v", err)
	}
	n, _ := v.Set().Node("c")
	if !n.Pinned {
		t.Error("pin action did not pin the node")
	}

	if err := v.Interaction().Dispatch(interact.ActionSetOrigin, "a"); err != nil {
		t.Fatalf("dispatch origin: %v", err)
	}
	if v.Interaction().Origin() != "a" {
		t.Error("origin action did not mark the node")
	}
}

func TestFocusAndFit(t *testing.T) {
	v := newViewer(t, Options{})

	if err := v.FocusNode("b", 2, 800, 600); err != nil {
		t.Fatalf("focus: %v", err)
	}
	sx, sy := v.Viewport().ToScreen(100, 0)
	if sx != 400 || sy != 300 {
		t.Errorf("focused node maps to (%v,%v), want viewport center", sx, sy)
	}

	v.FitGraph(800, 600, 40)
	for _, id := range []string{"a", "b", "c"} {
		n, _ := v.Set().Node(id)
		cx, cy := v.Viewport().ToScreen(n.X, n.Y)
		if cx < 40-1e-9 || cx > 760+1e-9 || cy < 40-1e-9 || cy > 560+1e-9 {
			t.Errorf("node %s outside padded viewport: (%v,%v)", id, cx, cy)
		}
	}
}

// Gestures and merges arrive on connection goroutines while the tick
// loop integrates; all working-set access must serialize through the
// engine. Run with -race.
func TestConcurrentGesturesWhileRunning(t *testing.T) {
	v := newViewer(t, Options{Layout: &layout.Options{TickInterval: time.Millisecond}})
	v.Start()
	defer v.Stop()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if err := v.DragStart("a"); err != nil {
				t.Errorf("drag start: %v", err)
				return
			}
			v.DragMove(float64(i), float64(-i))
			v.DragEnd()
			v.Pin("b", 5, 5)
			v.Unpin("b")
			v.Snapshot()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			id := fmt.Sprintf("n%d", i)
			if _, err := v.Merge(graph.Subgraph{
				Nodes: []graph.Node{{ID: id}},
				Edges: []graph.Edge{{Source: "a", Target: id, Type: "rel"}},
			}); err != nil {
				t.Errorf("merge %s: %v", id, err)
				return
			}
			v.UnpinAll()
			v.CurveOffsets()
		}
	}()
	wg.Wait()

	if v.Set().Len() != 53 {
		t.Errorf("nodes after concurrent merges = %d, want 53", v.Set().Len())
	}
}

func TestStatusSignal(t *testing.T) {
	v := newViewer(t, Options{})

	var got []Status
	cancel := v.OnStatus(func(s Status) { got = append(got, s) })
	defer cancel()

	v.Engine().Step()
	v.Engine().Step()

	if len(got) != 2 {
		t.Fatalf("got %d status updates, want 2", len(got))
	}
	if got[1].Alpha >= got[0].Alpha {
		t.Errorf("alpha should decay: %v -> %v", got[0].Alpha, got[1].Alpha)
	}
	if v.Status().Alpha != got[1].Alpha {
		t.Error("Status() disagrees with last published update")
	}
}

// End-to-end: load, settle, expand, and check that the derived geometry
// and overlays stay consistent throughout.
func TestSession_EndToEnd(t *testing.T) {
	v := newViewer(t, Options{})

	v.Engine().RunToSettle(2000)
	if !v.Engine().Settled() {
		t.Fatal("initial layout did not settle")
	}

	// Inspect B through an anchored overlay.
	v.OpenOverlay("inspector", overlay.NodeAnchor("b"))
	a, _ := v.Overlays().Get("inspector")
	if !a.Visible {
		t.Fatal("inspector overlay should be visible")
	}

	// Expand around A.
	if _, err := v.Merge(graph.Subgraph{
		Nodes: []graph.Node{{ID: "d", Label: "D"}},
		Edges: []graph.Edge{{Source: "a", Target: "d", Type: "supports"}},
	}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if v.Set().Len() != 4 || v.Set().EdgeCount() != 4 {
		t.Fatalf("got %d nodes / %d edges, want 4 / 4", v.Set().Len(), v.Set().EdgeCount())
	}

	// The merged node is seeded near the existing mass, not at the origin
	// of an empty canvas.
	cxMin, cyMin, cxMax, cyMax, _ := v.Set().Bounds()
	d, _ := v.Set().Node("d")
	if !d.Placed || d.X < cxMin || d.X > cxMax || d.Y < cyMin || d.Y > cyMax {
		t.Errorf("merged node seeded at (%v,%v), outside graph bounds", d.X, d.Y)
	}

	// The reduced-energy relaxation settles again quickly.
	steps := v.Engine().RunToSettle(500)
	if steps >= 500 {
		t.Errorf("post-merge relaxation took %d steps", steps)
	}

	// Overlay still tracks B after everything moved.
	bn, _ := v.Set().Node("b")
	wantX, wantY := v.Viewport().ToScreen(bn.X, bn.Y)
	a, _ = v.Overlays().Get("inspector")
	if math.Abs(a.ScreenX-wantX) > 1e-9 || math.Abs(a.ScreenY-wantY) > 1e-9 {
		t.Errorf("overlay at (%v,%v), node at (%v,%v)", a.ScreenX, a.ScreenY, wantX, wantY)
	}

	// Parallel pair keeps its symmetric fan-out; singleton edges stay
	// straight. Each offset is in its edge's own direction frame, so the
	// pair sits on opposite sides exactly when sup != -ref.
	offsets := v.CurveOffsets()
	sup := offsets[graph.EdgeKey{Source: "a", Target: "b", Type: "supports"}]
	ref := offsets[graph.EdgeKey{Source: "b", Target: "a", Type: "refutes"}]
	if math.Abs(sup) != 15 || math.Abs(ref) != 15 {
		t.Errorf("parallel offsets = %v / %v, want magnitude 15", sup, ref)
	}
	if sup == -ref {
		t.Errorf("opposite-direction pair collapses onto one curve: %v / %v", sup, ref)
	}
	if offsets[graph.EdgeKey{Source: "a", Target: "d", Type: "supports"}] != 0 {
		t.Error("singleton edge should have zero offset")
	}
}
