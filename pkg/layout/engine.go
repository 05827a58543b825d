// Package layout runs the force simulation that turns the working set into
// positions: Barnes–Hut charge repulsion, link springs, a weak centering
// pull, and circle collision avoidance, integrated on a cancellable tick
// loop that publishes to registered listeners after every step.
package layout

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/synapview/synapview/pkg/debug"
	"github.com/synapview/synapview/pkg/graph"
)

const defaultNodeRadius = 8.0

// TickFunc receives the energy remaining after an integration step. Node
// positions have already been written to the working set when it runs.
type TickFunc func(alpha float64)

// Options configures the simulation. Zero values fall back to defaults.
type Options struct {
	// ChargeStrength scales the pairwise repulsion (inverse-square kernel).
	ChargeStrength float64 // default 2500
	// Theta is the Barnes–Hut accuracy threshold; larger is faster and
	// coarser.
	Theta float64 // default 0.9

	LinkDistance float64 // default 90
	LinkStrength float64 // default 0.1

	CenterStrength float64 // default 0.03
	CenterX        float64
	CenterY        float64

	// NodeSizeFactor converts Node.Size to a drawn radius.
	NodeSizeFactor float64 // default 4
	// CollisionPadding returns extra clearance per node. Defaults to a
	// constant 2 layout units.
	CollisionPadding func(*graph.Node) float64

	// VelocityDecay is the per-tick friction applied to velocities, in
	// (0, 1).
	VelocityDecay float64 // default 0.4

	Alpha      float64 // initial energy, default 1
	AlphaMin   float64 // settle threshold, default 0.005
	AlphaDecay float64 // per-tick cooling fraction, default 0.025

	// RestartAlpha and RestartAlphaDecay govern reduced-energy restarts
	// after a merge, so already-settled nodes are not blown apart.
	RestartAlpha      float64 // default 0.3
	RestartAlphaDecay float64 // default 0.05

	TickInterval time.Duration // default 16ms
}

func (o *Options) withDefaults() Options {
	d := Options{
		ChargeStrength:    2500,
		Theta:             0.9,
		LinkDistance:      90,
		LinkStrength:      0.1,
		CenterStrength:    0.03,
		NodeSizeFactor:    4,
		VelocityDecay:     0.4,
		Alpha:             1,
		AlphaMin:          0.005,
		AlphaDecay:        0.025,
		RestartAlpha:      0.3,
		RestartAlphaDecay: 0.05,
		TickInterval:      16 * time.Millisecond,
	}
	if o == nil {
		d.CollisionPadding = func(*graph.Node) float64 { return 2 }
		return d
	}
	if o.ChargeStrength != 0 {
		d.ChargeStrength = o.ChargeStrength
	}
	if o.Theta != 0 {
		d.Theta = o.Theta
	}
	if o.LinkDistance != 0 {
		d.LinkDistance = o.LinkDistance
	}
	if o.LinkStrength != 0 {
		d.LinkStrength = o.LinkStrength
	}
	if o.CenterStrength != 0 {
		d.CenterStrength = o.CenterStrength
	}
	d.CenterX = o.CenterX
	d.CenterY = o.CenterY
	if o.NodeSizeFactor != 0 {
		d.NodeSizeFactor = o.NodeSizeFactor
	}
	if o.CollisionPadding != nil {
		d.CollisionPadding = o.CollisionPadding
	} else {
		d.CollisionPadding = func(*graph.Node) float64 { return 2 }
	}
	if o.VelocityDecay != 0 {
		d.VelocityDecay = o.VelocityDecay
	}
	if o.Alpha != 0 {
		d.Alpha = o.Alpha
	}
	if o.AlphaMin != 0 {
		d.AlphaMin = o.AlphaMin
	}
	if o.AlphaDecay != 0 {
		d.AlphaDecay = o.AlphaDecay
	}
	if o.RestartAlpha != 0 {
		d.RestartAlpha = o.RestartAlpha
	}
	if o.RestartAlphaDecay != 0 {
		d.RestartAlphaDecay = o.RestartAlphaDecay
	}
	if o.TickInterval != 0 {
		d.TickInterval = o.TickInterval
	}
	return d
}

// Engine drives the simulation over a working set. Step mutates node
// X/Y under the engine's lock; Start runs Step on an internal tick loop,
// so everything else that touches the working set (gestures, merges,
// snapshots) must go through Do to serialize against it. Listeners run
// synchronously within the tick, after positions are updated, so
// consumers always observe a consistent frame.
type Engine struct {
	mu         sync.Mutex
	set        *graph.Set
	opts       Options
	vx, vy     []float64
	alpha      float64
	alphaDecay float64
	seeded     int

	enabled atomic.Bool
	running atomic.Bool
	stopCh  chan struct{}

	listenersMu sync.RWMutex
	listeners   map[int]TickFunc
	nextID      int
}

// New creates an engine over the given working set. Nodes without a
// position are seeded on a deterministic phyllotaxis spiral around the
// center on the first step.
func New(set *graph.Set, opts *Options) *Engine {
	e := &Engine{
		set:       set,
		opts:      opts.withDefaults(),
		listeners: make(map[int]TickFunc),
	}
	e.alpha = e.opts.Alpha
	e.alphaDecay = e.opts.AlphaDecay
	e.enabled.Store(true)
	return e
}

// OnTick registers a listener invoked after every integration step. The
// returned function removes it.
func (e *Engine) OnTick(fn TickFunc) (cancel func()) {
	e.listenersMu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = fn
	e.listenersMu.Unlock()

	return func() {
		e.listenersMu.Lock()
		delete(e.listeners, id)
		e.listenersMu.Unlock()
	}
}

// Start launches the tick loop. Safe to call repeatedly.
func (e *Engine) Start() {
	if e.running.CompareAndSwap(false, true) {
		e.stopCh = make(chan struct{})
		go e.loop(e.stopCh)
	}
}

// Stop cancels the tick loop; no further ticks fire after it returns.
func (e *Engine) Stop() {
	if e.running.CompareAndSwap(true, false) {
		close(e.stopCh)
	}
}

// Running reports whether the tick loop is active.
func (e *Engine) Running() bool { return e.running.Load() }

// SetEnabled pauses (false) or resumes (true) the simulation without
// tearing down the loop. While disabled no ticks fire and positions
// freeze.
func (e *Engine) SetEnabled(enabled bool) { e.enabled.Store(enabled) }

// Enabled reports whether physics is active.
func (e *Engine) Enabled() bool { return e.enabled.Load() }

// Alpha returns the current simulation energy.
func (e *Engine) Alpha() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.alpha
}

// Settled reports whether the energy has decayed below the threshold.
func (e *Engine) Settled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.alpha < e.opts.AlphaMin
}

// Restart re-energizes the simulation at reduced energy with faster
// cooling. Called after a merge so the existing layout relaxes around the
// new nodes instead of recomputing from scratch.
func (e *Engine) Restart() {
	e.mu.Lock()
	e.alpha = math.Max(e.alpha, e.opts.RestartAlpha)
	e.alphaDecay = e.opts.RestartAlphaDecay
	e.mu.Unlock()
}

// Reheat restores full initial energy and normal cooling, for a cold
// start over a fresh data set.
func (e *Engine) Reheat() {
	e.mu.Lock()
	e.alpha = e.opts.Alpha
	e.alphaDecay = e.opts.AlphaDecay
	e.mu.Unlock()
}

// SetOptions replaces the tunable parameters without resetting energy.
// Used by config hot reload.
func (e *Engine) SetOptions(opts *Options) {
	e.mu.Lock()
	prev := e.opts
	e.opts = opts.withDefaults()
	// Keep the center target unless the caller set one.
	if opts == nil || (opts.CenterX == 0 && opts.CenterY == 0) {
		e.opts.CenterX = prev.CenterX
		e.opts.CenterY = prev.CenterY
	}
	e.mu.Unlock()
}

// loop is the internal ticker. It skips work while disabled or settled but
// keeps polling so Restart and SetEnabled take effect without re-arming
// timers; Stop cancels it entirely.
func (e *Engine) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(e.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !e.enabled.Load() || e.Settled() {
				continue
			}
			e.safeStep()
		}
	}
}

// safeStep wraps Step in panic recovery so one bad frame cannot kill the
// loop goroutine.
func (e *Engine) safeStep() {
	defer func() {
		if r := recover(); r != nil {
			debug.Logf("layout: tick panic recovered: %v", r)
		}
	}()
	e.Step()
}

// Step runs one integration step and publishes the tick. It returns the
// remaining energy. Exported for headless simulation and tests; the tick
// loop calls it too.
func (e *Engine) Step() float64 {
	e.mu.Lock()
	e.seedNew()
	alpha := e.alpha

	e.applyLinks(alpha)
	e.applyCharge(alpha)
	e.applyCenter(alpha)
	e.integrate()
	e.applyCollision()

	e.alpha = alpha * (1 - e.alphaDecay)
	remaining := e.alpha
	e.mu.Unlock()

	e.publish(remaining)
	return remaining
}

// Do runs fn while holding the simulation lock, so callers can read or
// mutate the working set without racing a concurrent Step. fn must not
// call engine methods that take the lock themselves (Step, Restart,
// Alpha, SetOptions).
func (e *Engine) Do(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn()
}

// RunToSettle steps synchronously until the energy drops below the
// threshold or maxSteps elapse, returning the number of steps taken.
func (e *Engine) RunToSettle(maxSteps int) int {
	for i := 0; i < maxSteps; i++ {
		if e.Step() < e.opts.AlphaMin {
			return i + 1
		}
	}
	return maxSteps
}

// integrate applies damped velocities to positions. Pinned nodes are held
// at their fixed coordinate with zero velocity; they resume moving the
// moment the pin clears.
func (e *Engine) integrate() {
	nodes := e.set.Nodes()
	decay := 1 - e.opts.VelocityDecay
	for i := range nodes {
		n := &nodes[i]
		if n.Pinned {
			n.X, n.Y = n.FX, n.FY
			e.vx[i], e.vy[i] = 0, 0
			continue
		}
		e.vx[i] *= decay
		e.vy[i] *= decay
		n.X += e.vx[i]
		n.Y += e.vy[i]
	}
}

// seedNew grows the velocity arena and free-places any nodes that arrived
// without a position, on a phyllotaxis spiral so initial placement is
// deterministic and overlap-free.
func (e *Engine) seedNew() {
	n := e.set.Len()
	for len(e.vx) < n {
		e.vx = append(e.vx, 0)
		e.vy = append(e.vy, 0)
	}

	goldenAngle := math.Pi * (3 - math.Sqrt(5))
	for ; e.seeded < n; e.seeded++ {
		node := e.set.NodeAt(e.seeded)
		if node.Placed {
			continue
		}
		r := 40 * math.Sqrt(0.5+float64(e.seeded))
		a := float64(e.seeded) * goldenAngle
		node.X = e.opts.CenterX + r*math.Cos(a)
		node.Y = e.opts.CenterY + r*math.Sin(a)
		node.Placed = true
	}
}

func (e *Engine) indexOf(id string) (int, bool) {
	return e.set.Index(id)
}

func (e *Engine) publish(alpha float64) {
	e.listenersMu.RLock()
	fns := make([]TickFunc, 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.listenersMu.RUnlock()

	for _, fn := range fns {
		fn(alpha)
	}
}
