package layout

import (
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/synapview/synapview/pkg/graph"
)

func testSet(t *testing.T) *graph.Set {
	t.Helper()
	s, err := graph.NewSet(graph.Subgraph{
		Nodes: []graph.Node{
			{ID: "a", Size: 2},
			{ID: "b", Size: 2},
			{ID: "c", Size: 2},
			{ID: "d", Size: 2},
		},
		Edges: []graph.Edge{
			{Source: "a", Target: "b", Type: "x"},
			{Source: "b", Target: "c", Type: "x"},
			{Source: "c", Target: "d", Type: "x"},
		},
	})
	if err != nil {
		t.Fatalf("failed to build set: %v", err)
	}
	return s
}

func TestEngine_SeedsUnplacedNodes(t *testing.T) {
	s := testSet(t)
	e := New(s, nil)

	e.Step()

	for _, n := range s.Nodes() {
		if !n.Placed {
			t.Errorf("node %q was not seeded", n.ID)
		}
		if math.IsNaN(n.X) || math.IsNaN(n.Y) {
			t.Errorf("node %q has NaN position", n.ID)
		}
	}
}

func TestEngine_SeedingIsDeterministic(t *testing.T) {
	s1 := testSet(t)
	s2 := testSet(t)
	New(s1, nil).Step()
	New(s2, nil).Step()

	for i := range s1.Nodes() {
		a, b := s1.Nodes()[i], s2.Nodes()[i]
		if a.X != b.X || a.Y != b.Y {
			t.Errorf("node %q seeded differently across runs: (%v,%v) vs (%v,%v)", a.ID, a.X, a.Y, b.X, b.Y)
		}
	}
}

func TestEngine_AlphaDecays(t *testing.T) {
	e := New(testSet(t), nil)
	before := e.Alpha()
	e.Step()
	after := e.Alpha()
	if after >= before {
		t.Errorf("alpha did not decay: %v -> %v", before, after)
	}
}

func TestEngine_RunToSettle(t *testing.T) {
	e := New(testSet(t), nil)
	steps := e.RunToSettle(2000)
	if !e.Settled() {
		t.Fatalf("engine did not settle in %d steps (alpha=%v)", steps, e.Alpha())
	}
	for _, n := range e.set.Nodes() {
		if math.IsNaN(n.X) || math.IsInf(n.X, 0) || math.IsNaN(n.Y) || math.IsInf(n.Y, 0) {
			t.Errorf("node %q ended with non-finite position", n.ID)
		}
	}
}

// Do must hold pinned coordinates stable against a concurrent stepper:
// a pin applied under Do is either fully visible to the next integration
// or not at all, never a torn half-write. Run with -race.
func TestEngine_DoSerializesWithStep(t *testing.T) {
	s := testSet(t)
	e := New(s, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			e.Step()
		}
	}()

	for i := 0; i < 500; i++ {
		e.Do(func() {
			if n, ok := s.Node("a"); ok {
				n.Pin(float64(i), float64(i))
			}
		})
	}
	<-done

	e.Do(func() {
		n, _ := s.Node("a")
		if !n.Pinned || n.X != 499 || n.Y != 499 {
			t.Errorf("pin lost under concurrent stepping: %+v", n)
		}
	})
}

func TestEngine_SpreadsConnectedNodes(t *testing.T) {
	s := testSet(t)
	e := New(s, nil)
	e.RunToSettle(2000)

	// No two nodes should end up on top of each other.
	nodes := s.Nodes()
	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			dx := nodes[i].X - nodes[j].X
			dy := nodes[i].Y - nodes[j].Y
			if math.Hypot(dx, dy) < 1 {
				t.Errorf("nodes %q and %q collapsed together", nodes[i].ID, nodes[j].ID)
			}
		}
	}
}

func TestEngine_PinExclusion(t *testing.T) {
	s := testSet(t)
	e := New(s, nil)
	e.Step() // seed

	a, _ := s.Node("a")
	a.Pin(123, -45)

	for i := 0; i < 50; i++ {
		e.Step()
	}

	a, _ = s.Node("a")
	if a.X != 123 || a.Y != -45 {
		t.Errorf("pinned node moved to (%v,%v)", a.X, a.Y)
	}

	a.Unpin()
	e.Reheat()
	x, y := a.X, a.Y
	for i := 0; i < 10; i++ {
		e.Step()
	}
	a, _ = s.Node("a")
	if a.X == x && a.Y == y {
		t.Error("unpinned node did not resume moving")
	}
}

func TestEngine_PinnedNodeAnchorsEdges(t *testing.T) {
	s, err := graph.NewSet(graph.Subgraph{
		Nodes: []graph.Node{
			{ID: "anchor", X: 0, Y: 0, Placed: true},
			{ID: "sat", X: 500, Y: 0, Placed: true},
		},
		Edges: []graph.Edge{{Source: "anchor", Target: "sat", Type: "x"}},
	})
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	anchor, _ := s.Node("anchor")
	anchor.Pin(0, 0)

	e := New(s, nil)
	e.RunToSettle(2000)

	sat, _ := s.Node("sat")
	dist := math.Hypot(sat.X, sat.Y)
	if dist >= 500 {
		t.Errorf("spring through pinned anchor did not pull satellite in: dist=%v", dist)
	}
}

func TestEngine_DisabledFreezesPositions(t *testing.T) {
	s := testSet(t)
	e := New(s, &Options{TickInterval: time.Millisecond})
	e.Step() // seed
	snap := s.Snapshot()

	e.SetEnabled(false)
	e.Start()
	defer e.Stop()
	time.Sleep(20 * time.Millisecond)

	for i, n := range s.Nodes() {
		if n.X != snap.Nodes[i].X || n.Y != snap.Nodes[i].Y {
			t.Errorf("node %q moved while disabled", n.ID)
		}
	}
}

func TestEngine_StopCancelsTicks(t *testing.T) {
	e := New(testSet(t), &Options{TickInterval: time.Millisecond})

	var ticks atomic.Int32
	e.OnTick(func(float64) { ticks.Add(1) })

	e.Start()
	time.Sleep(10 * time.Millisecond)
	e.Stop()

	after := ticks.Load()
	time.Sleep(10 * time.Millisecond)
	if got := ticks.Load(); got != after {
		t.Errorf("ticks fired after Stop: %d -> %d", after, got)
	}
	if e.Running() {
		t.Error("engine still reports running after Stop")
	}
}

func TestEngine_RestartIsReducedEnergy(t *testing.T) {
	e := New(testSet(t), nil)
	e.RunToSettle(2000)
	if !e.Settled() {
		t.Fatal("engine should settle before restart")
	}

	e.Restart()
	if a := e.Alpha(); a != e.opts.RestartAlpha {
		t.Errorf("restart alpha = %v, want %v", a, e.opts.RestartAlpha)
	}
	if a := e.Alpha(); a >= e.opts.Alpha {
		t.Errorf("restart must be lower energy than a cold start: %v", a)
	}

	// Faster decay: settles in fewer steps than a cold run.
	steps := e.RunToSettle(2000)
	if steps > 200 {
		t.Errorf("reduced-energy restart took %d steps to settle", steps)
	}
}

func TestEngine_OnTickCancel(t *testing.T) {
	e := New(testSet(t), nil)

	var ticks atomic.Int32
	cancel := e.OnTick(func(float64) { ticks.Add(1) })

	e.Step()
	if ticks.Load() != 1 {
		t.Fatalf("expected 1 tick, got %d", ticks.Load())
	}

	cancel()
	e.Step()
	if ticks.Load() != 1 {
		t.Errorf("listener fired after cancel: %d", ticks.Load())
	}
}

func TestEngine_ListenerSeesUpdatedPositions(t *testing.T) {
	s := testSet(t)
	e := New(s, nil)
	e.Step() // seed

	var observed atomic.Bool
	e.OnTick(func(float64) {
		// Within a tick, positions must already be written.
		for _, n := range s.Nodes() {
			if !n.Placed {
				return
			}
		}
		observed.Store(true)
	})
	e.Step()
	if !observed.Load() {
		t.Error("listener observed unplaced nodes during tick")
	}
}

func TestEngine_MergeGrowsVelocityArena(t *testing.T) {
	s := testSet(t)
	e := New(s, nil)
	e.Step()

	if _, err := s.Merge(graph.Subgraph{
		Nodes: []graph.Node{{ID: "e"}, {ID: "f"}},
		Edges: []graph.Edge{{Source: "a", Target: "e", Type: "x"}},
	}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	e.Restart()

	// Must not panic and must integrate the new nodes.
	for i := 0; i < 20; i++ {
		e.Step()
	}
	n, _ := s.Node("e")
	if !n.Placed {
		t.Error("merged node was not integrated")
	}
}

func BenchmarkEngine_Step(b *testing.B) {
	nodes := make([]graph.Node, 200)
	edges := make([]graph.Edge, 0, 199)
	for i := range nodes {
		nodes[i] = graph.Node{ID: string(rune('a'+i%26)) + string(rune('0'+i/26)), Size: 2}
		if i > 0 {
			edges = append(edges, graph.Edge{Source: nodes[i-1].ID, Target: nodes[i].ID, Type: "x"})
		}
	}
	s, err := graph.NewSet(graph.Subgraph{Nodes: nodes, Edges: edges})
	if err != nil {
		b.Fatalf("set: %v", err)
	}
	e := New(s, nil)
	e.Step()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Step()
	}
}
