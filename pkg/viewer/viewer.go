// Package viewer ties the working set, the layout engine, the viewport,
// the overlay synchronizer, and the interaction state into one facade.
// Everything a host shell (live server, TUI, tests) does to the graph
// goes through it, so the per-tick ordering guarantee holds in one place:
// positions first, then curve geometry, then overlay screen positions.
// Mutators and snapshot reads route through the engine's lock, so
// gestures arriving on server goroutines never race the tick loop.
package viewer

import (
	"context"
	"fmt"
	"sync"

	"github.com/synapview/synapview/internal/cache"
	"github.com/synapview/synapview/pkg/debug"
	"github.com/synapview/synapview/pkg/graph"
	"github.com/synapview/synapview/pkg/interact"
	"github.com/synapview/synapview/pkg/layout"
	"github.com/synapview/synapview/pkg/overlay"
	"github.com/synapview/synapview/pkg/reactive"
	"github.com/synapview/synapview/pkg/remote"
	"github.com/synapview/synapview/pkg/viewport"
)

// DragReleasePolicy decides what happens to a node when a drag ends.
type DragReleasePolicy int

const (
	// StayPinned leaves the node fixed where it was dropped. The user
	// placed it deliberately; the simulation must not undo that.
	StayPinned DragReleasePolicy = iota
	// ReleaseFree returns the node to simulation control on release.
	ReleaseFree
)

// Options configures a Viewer. Zero values fall back to defaults.
type Options struct {
	Layout *layout.Options

	MinScale float64 // default viewport.DefaultMinScale
	MaxScale float64 // default viewport.DefaultMaxScale

	// CurveDistance is the spacing between parallel edges.
	CurveDistance float64 // default graph.DefaultCurveDistance

	DragRelease DragReleasePolicy // default StayPinned

	// Fetcher supplies expansion subgraphs and node details. Optional;
	// Expand and Details fail cleanly without one.
	Fetcher remote.Fetcher
}

// Status summarizes the simulation for UI consumers, published after
// every tick.
type Status struct {
	Alpha   float64
	Settled bool
}

// Viewer is the interactive graph session.
type Viewer struct {
	set      *graph.Set
	engine   *layout.Engine
	tracker  *viewport.Tracker
	overlays *overlay.Synchronizer
	state    *interact.State

	curves *reactive.Computed[map[graph.EdgeKey]float64]
	status *reactive.State[Status]

	fetcher remote.Fetcher
	details *cache.Cache[remote.NodeDetails]

	mu          sync.Mutex
	dragID      string
	dragRelease DragReleasePolicy
	curveDist   float64

	tickCancel func()
	vpCancel   func()
}

// New builds a viewer over an initial subgraph. The payload is validated
// the same way a merge is; a bad payload returns an error and no viewer.
func New(sg graph.Subgraph, opts Options) (*Viewer, error) {
	set, err := graph.NewSet(sg)
	if err != nil {
		return nil, err
	}

	curveDist := opts.CurveDistance
	if curveDist == 0 {
		curveDist = graph.DefaultCurveDistance
	}

	v := &Viewer{
		set:         set,
		engine:      layout.New(set, opts.Layout),
		tracker:     viewport.NewTracker(opts.MinScale, opts.MaxScale),
		overlays:    overlay.NewSynchronizer(),
		state:       interact.New(set),
		fetcher:     opts.Fetcher,
		details:     cache.New[remote.NodeDetails](cache.DefaultConfig()),
		dragRelease: opts.DragRelease,
		curveDist:   curveDist,
	}
	v.curves = reactive.NewComputed(func() map[graph.EdgeKey]float64 {
		return graph.AssignCurveOffsets(v.set.Edges(), v.curveDist)
	})
	v.status = reactive.NewState(Status{Alpha: v.engine.Alpha()})

	// Overlay repositioning runs inside the tick, after the engine has
	// written positions, and again on every viewport change.
	v.tickCancel = v.engine.OnTick(func(alpha float64) {
		v.repositionOverlays()
		v.status.Set(Status{Alpha: alpha, Settled: v.engine.Settled()})
	})
	v.vpCancel = v.tracker.OnChange(func(viewport.Transform) { v.repositionOverlays() })

	v.registerActions()
	return v, nil
}

func (v *Viewer) registerActions() {
	v.state.Register(interact.ActionPin, func(id string) error {
		var err error
		v.engine.Do(func() {
			n, ok := v.set.Node(id)
			if !ok {
				err = fmt.Errorf("viewer: pin: unknown node %q", id)
				return
			}
			n.Pin(n.X, n.Y)
		})
		return err
	})
	v.state.Register(interact.ActionUnpin, func(id string) error { return v.Unpin(id) })
	v.state.Register(interact.ActionSetOrigin, func(id string) error { return v.SetOrigin(id) })
	v.state.Register(interact.ActionSetDestination, func(id string) error { return v.SetDestination(id) })
	v.state.Register(interact.ActionExpand, func(id string) error {
		_, err := v.Expand(context.Background(), remote.SubgraphRequest{CenterID: id})
		return err
	})
}

// Set returns the working set.
func (v *Viewer) Set() *graph.Set { return v.set }

// Engine returns the layout engine.
func (v *Viewer) Engine() *layout.Engine { return v.engine }

// Viewport returns the pan/zoom tracker.
func (v *Viewer) Viewport() *viewport.Tracker { return v.tracker }

// Overlays returns the overlay synchronizer.
func (v *Viewer) Overlays() *overlay.Synchronizer { return v.overlays }

// Interaction returns the hover/marking state.
func (v *Viewer) Interaction() *interact.State { return v.state }

// Status returns the last published simulation status.
func (v *Viewer) Status() Status { return v.status.Get() }

// OnStatus registers a listener for simulation status updates. The
// returned function removes it.
func (v *Viewer) OnStatus(fn func(Status)) (cancel func()) {
	return v.status.Subscribe(fn)
}

// CurveOffsets returns the memoized per-edge curve offsets.
func (v *Viewer) CurveOffsets() map[graph.EdgeKey]float64 {
	var out map[graph.EdgeKey]float64
	v.engine.Do(func() { out = v.curves.Get() })
	return out
}

// Snapshot returns an independent copy of the working set, consistent
// even while the simulation is running.
func (v *Viewer) Snapshot() graph.Subgraph {
	var sg graph.Subgraph
	v.engine.Do(func() { sg = v.set.Snapshot() })
	return sg
}

// Start launches the simulation loop.
func (v *Viewer) Start() { v.engine.Start() }

// Stop halts the simulation loop and detaches the internal listeners.
func (v *Viewer) Stop() {
	v.engine.Stop()
}

// Close releases the viewer's subscriptions. The viewer is unusable
// afterwards.
func (v *Viewer) Close() {
	v.engine.Stop()
	v.tickCancel()
	v.vpCancel()
}

// SetEnabled toggles physics without tearing down the loop. Positions
// freeze in place while disabled; pins, merges, and viewport changes
// still work.
func (v *Viewer) SetEnabled(enabled bool) { v.engine.SetEnabled(enabled) }

// Pin fixes a node at a graph-space coordinate.
func (v *Viewer) Pin(id string, x, y float64) error {
	var err error
	v.engine.Do(func() {
		n, ok := v.set.Node(id)
		if !ok {
			err = fmt.Errorf("viewer: pin: unknown node %q", id)
			return
		}
		n.Pin(x, y)
	})
	return err
}

// Unpin returns a node to simulation control and nudges the layout so it
// visibly relaxes back.
func (v *Viewer) Unpin(id string) error {
	var err error
	v.engine.Do(func() {
		n, ok := v.set.Node(id)
		if !ok {
			err = fmt.Errorf("viewer: unpin: unknown node %q", id)
			return
		}
		n.Unpin()
	})
	if err != nil {
		return err
	}
	v.engine.Restart()
	return nil
}

// UnpinAll releases every pinned node.
func (v *Viewer) UnpinAll() {
	released := 0
	v.engine.Do(func() {
		nodes := v.set.Nodes()
		for i := range nodes {
			if nodes[i].Pinned {
				nodes[i].Unpin()
				released++
			}
		}
	})
	if released > 0 {
		v.engine.Restart()
	}
}

// Hover records the node under the pointer ("" on leave).
func (v *Viewer) Hover(id string) { v.state.SetHovered(id) }

// SetOrigin marks the navigation origin node.
func (v *Viewer) SetOrigin(id string) error {
	if id != "" && !v.has(id) {
		return fmt.Errorf("viewer: set origin: unknown node %q", id)
	}
	v.state.SetOrigin(id)
	return nil
}

// SetDestination marks the navigation destination node.
func (v *Viewer) SetDestination(id string) error {
	if id != "" && !v.has(id) {
		return fmt.Errorf("viewer: set destination: unknown node %q", id)
	}
	v.state.SetDestination(id)
	return nil
}

func (v *Viewer) has(id string) bool {
	ok := false
	v.engine.Do(func() { ok = v.set.Has(id) })
	return ok
}

// Merge folds a subgraph into the working set, refreshes the derived
// state, and restarts the simulation at reduced energy so the existing
// layout relaxes around the new nodes. A validation failure changes
// nothing.
func (v *Viewer) Merge(sg graph.Subgraph) (graph.MergeResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var res graph.MergeResult
	var err error
	v.engine.Do(func() { res, err = v.set.Merge(sg) })
	if err != nil {
		return res, err
	}
	if res.NodesAdded > 0 || res.EdgesAdded > 0 {
		v.curves.Invalidate()
		v.state.InvalidateEdges()
		v.engine.Restart()
	}
	debug.Logf("viewer: merged %d nodes, %d edges", res.NodesAdded, res.EdgesAdded)
	return res, nil
}

// Expand fetches the neighborhood around a node and merges it in. A fetch
// failure leaves the working set untouched.
func (v *Viewer) Expand(ctx context.Context, req remote.SubgraphRequest) (graph.MergeResult, error) {
	if v.fetcher == nil {
		return graph.MergeResult{}, fmt.Errorf("viewer: expand: no backend fetcher configured")
	}
	sg, err := v.fetcher.GetSubgraph(ctx, req)
	if err != nil {
		return graph.MergeResult{}, fmt.Errorf("viewer: expand %q: %w", req.CenterID, err)
	}
	return v.Merge(sg)
}

// Details returns the inspector payload for a node, served from the
// response cache when possible.
func (v *Viewer) Details(ctx context.Context, id string) (remote.NodeDetails, error) {
	if d, ok := v.details.Get(id); ok {
		return d, nil
	}
	if v.fetcher == nil {
		return remote.NodeDetails{}, fmt.Errorf("viewer: details: no backend fetcher configured")
	}
	d, err := v.fetcher.GetNodeDetails(ctx, id)
	if err != nil {
		return remote.NodeDetails{}, err
	}
	v.details.Put(id, d)
	return d, nil
}

// DragStart begins dragging a node. The node is pinned at its current
// position so the simulation lets go of it, and the layout restarts so
// its neighbors respond while it moves.
func (v *Viewer) DragStart(id string) error {
	var err error
	v.engine.Do(func() {
		n, ok := v.set.Node(id)
		if !ok {
			err = fmt.Errorf("viewer: drag: unknown node %q", id)
			return
		}
		n.Pin(n.X, n.Y)
	})
	if err != nil {
		return err
	}
	v.mu.Lock()
	v.dragID = id
	v.mu.Unlock()

	v.engine.Restart()
	return nil
}

// DragMove updates the dragged node to the graph point under the given
// screen position. The node is looked up by id each call, so a drag that
// outlives its node (a concurrent reload) degrades to a no-op.
func (v *Viewer) DragMove(sx, sy float64) {
	v.mu.Lock()
	id := v.dragID
	v.mu.Unlock()
	if id == "" {
		return
	}
	gx, gy := v.tracker.ToGraph(sx, sy)
	v.engine.Do(func() {
		if n, ok := v.set.Node(id); ok {
			n.Pin(gx, gy)
		}
	})
}

// DragEnd finishes the drag, applying the configured release policy.
func (v *Viewer) DragEnd() {
	v.mu.Lock()
	id := v.dragID
	v.dragID = ""
	policy := v.dragRelease
	v.mu.Unlock()
	if id == "" {
		return
	}
	if policy == ReleaseFree {
		v.engine.Do(func() {
			if n, ok := v.set.Node(id); ok {
				n.Unpin()
			}
		})
		v.engine.Restart()
	}
}

// Dragging returns the id of the node under drag, or "".
func (v *Viewer) Dragging() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.dragID
}

// FitGraph frames the whole placed graph in a viewport of w x h screen
// units with the given padding.
func (v *Viewer) FitGraph(w, h, padding float64) {
	var minX, minY, maxX, maxY float64
	var ok bool
	v.engine.Do(func() { minX, minY, maxX, maxY, ok = v.set.Bounds() })
	if !ok {
		return
	}
	v.tracker.FitToBounds(minX, minY, maxX, maxY, w, h, padding)
}

// FocusNode centers the viewport on a node at the given scale.
func (v *Viewer) FocusNode(id string, scale, w, h float64) error {
	var x, y float64
	found := false
	v.engine.Do(func() {
		if n, ok := v.set.Node(id); ok {
			x, y = n.X, n.Y
			found = true
		}
	})
	if !found {
		return fmt.Errorf("viewer: focus: unknown node %q", id)
	}
	v.tracker.FocusOn(x, y, scale, w, h)
	return nil
}

// OpenOverlay anchors a floating widget to a graph element and positions
// it immediately.
func (v *Viewer) OpenOverlay(id string, a overlay.Anchor) {
	v.overlays.Open(id, a)
	v.repositionOverlays()
}

// CloseOverlay removes an overlay.
func (v *Viewer) CloseOverlay(id string) { v.overlays.Close(id) }

func (v *Viewer) repositionOverlays() {
	t := v.tracker.Transform()
	v.engine.Do(func() {
		v.overlays.Reposition(v.set, v.curves.Get(), t)
	})
}
