// Package viewport maintains the pan/zoom affine transform between graph
// space and screen space. Every overlay and render position conversion
// routes through it so widgets stay glued to their graph anchors at any
// zoom level.
package viewport

import (
	"math"
	"sync"
)

// Default scale clamp. Zooming past either end produces degenerate views,
// so gestures are clamped rather than rejected.
const (
	DefaultMinScale = 0.1
	DefaultMaxScale = 10.0
)

// Transform is the current pan/zoom state. Pure value type; conversions on
// it are safe anywhere.
type Transform struct {
	PanX  float64 `json:"panX"`
	PanY  float64 `json:"panY"`
	Scale float64 `json:"scale"`
}

// Identity is the untransformed viewport.
var Identity = Transform{Scale: 1}

// ToScreen maps a graph-space coordinate to screen space.
func (t Transform) ToScreen(x, y float64) (sx, sy float64) {
	return x*t.Scale + t.PanX, y*t.Scale + t.PanY
}

// ToGraph maps a screen-space coordinate back to graph space.
func (t Transform) ToGraph(sx, sy float64) (x, y float64) {
	return (sx - t.PanX) / t.Scale, (sy - t.PanY) / t.Scale
}

// Tracker owns the live transform, mutated only by pan/zoom gestures and
// the fit/focus helpers. Listeners are notified after every change.
type Tracker struct {
	mu sync.RWMutex
	t  Transform

	minScale float64
	maxScale float64

	listenersMu sync.RWMutex
	listeners   map[int]func(Transform)
	nextID      int
}

// NewTracker creates a tracker with the given scale clamp. Zero bounds
// fall back to the defaults.
func NewTracker(minScale, maxScale float64) *Tracker {
	if minScale <= 0 {
		minScale = DefaultMinScale
	}
	if maxScale <= 0 {
		maxScale = DefaultMaxScale
	}
	return &Tracker{
		t:         Identity,
		minScale:  minScale,
		maxScale:  maxScale,
		listeners: make(map[int]func(Transform)),
	}
}

// Transform returns the current transform.
func (tr *Tracker) Transform() Transform {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return tr.t
}

// ToScreen maps graph coordinates through the current transform.
func (tr *Tracker) ToScreen(x, y float64) (float64, float64) {
	return tr.Transform().ToScreen(x, y)
}

// ToGraph maps screen coordinates through the current transform.
func (tr *Tracker) ToGraph(sx, sy float64) (float64, float64) {
	return tr.Transform().ToGraph(sx, sy)
}

// PanBy shifts the viewport by a screen-space delta.
func (tr *Tracker) PanBy(dx, dy float64) {
	tr.mu.Lock()
	tr.t.PanX += dx
	tr.t.PanY += dy
	t := tr.t
	tr.mu.Unlock()
	tr.notify(t)
}

// ZoomAt multiplies the scale by factor while keeping the graph point
// under the given screen position stationary, the way wheel zoom behaves.
// The resulting scale is clamped.
func (tr *Tracker) ZoomAt(sx, sy, factor float64) {
	tr.mu.Lock()
	next := tr.clamp(tr.t.Scale * factor)
	// Keep (sx, sy) anchored: solve pan so the graph point under the
	// cursor maps back to the same screen point at the new scale.
	gx, gy := tr.t.ToGraph(sx, sy)
	tr.t.Scale = next
	tr.t.PanX = sx - gx*next
	tr.t.PanY = sy - gy*next
	t := tr.t
	tr.mu.Unlock()
	tr.notify(t)
}

// SetTransform replaces the transform wholesale (clamping scale), for
// restoring a saved view.
func (tr *Tracker) SetTransform(t Transform) {
	tr.mu.Lock()
	t.Scale = tr.clamp(t.Scale)
	tr.t = t
	tr.mu.Unlock()
	tr.notify(t)
}

// Reset restores the identity transform.
func (tr *Tracker) Reset() {
	tr.SetTransform(Identity)
}

// FitToBounds sets pan and scale so the graph-space box fits a viewport of
// w x h screen units with the given padding on all sides.
func (tr *Tracker) FitToBounds(minX, minY, maxX, maxY, w, h, padding float64) {
	gw := maxX - minX
	if gw <= 0 {
		gw = 1
	}
	gh := maxY - minY
	if gh <= 0 {
		gh = 1
	}
	s := math.Min((w-2*padding)/gw, (h-2*padding)/gh)
	if s <= 0 {
		s = 1
	}

	tr.mu.Lock()
	s = tr.clamp(s)
	tr.t.Scale = s
	tr.t.PanX = w*0.5 - (minX+gw*0.5)*s
	tr.t.PanY = h*0.5 - (minY+gh*0.5)*s
	t := tr.t
	tr.mu.Unlock()
	tr.notify(t)
}

// FocusOn centers the viewport of w x h screen units on a graph point at
// the given scale.
func (tr *Tracker) FocusOn(x, y, scale, w, h float64) {
	tr.mu.Lock()
	s := tr.clamp(scale)
	tr.t.Scale = s
	tr.t.PanX = w*0.5 - x*s
	tr.t.PanY = h*0.5 - y*s
	t := tr.t
	tr.mu.Unlock()
	tr.notify(t)
}

// OnChange registers a listener for transform updates. The returned
// function removes it.
func (tr *Tracker) OnChange(fn func(Transform)) (cancel func()) {
	tr.listenersMu.Lock()
	id := tr.nextID
	tr.nextID++
	tr.listeners[id] = fn
	tr.listenersMu.Unlock()

	return func() {
		tr.listenersMu.Lock()
		delete(tr.listeners, id)
		tr.listenersMu.Unlock()
	}
}

func (tr *Tracker) clamp(s float64) float64 {
	if s < tr.minScale {
		return tr.minScale
	}
	if s > tr.maxScale {
		return tr.maxScale
	}
	return s
}

func (tr *Tracker) notify(t Transform) {
	tr.listenersMu.RLock()
	fns := make([]func(Transform), 0, len(tr.listeners))
	for _, fn := range tr.listeners {
		fns = append(fns, fn)
	}
	tr.listenersMu.RUnlock()

	for _, fn := range fns {
		fn(t)
	}
}
