package layout

import (
	"math"

	"github.com/synapview/synapview/pkg/graph"
)

// applyLinks pulls each edge's endpoints toward the configured link
// distance, Hooke-style, scaled by the edge weight and the current energy.
// Pinned endpoints act as anchors: the spring still pulls the free end.
func (e *Engine) applyLinks(alpha float64) {
	nodes := e.set.Nodes()
	for _, edge := range e.set.Edges() {
		si, sok := e.indexOf(edge.Source)
		ti, tok := e.indexOf(edge.Target)
		if !sok || !tok {
			continue
		}
		s := &nodes[si]
		t := &nodes[ti]

		dx := t.X - s.X
		dy := t.Y - s.Y
		dist := math.Hypot(dx, dy)
		if dist < 1 {
			dist = 1
		}

		w := edge.Weight
		if w <= 0 {
			w = 1
		}
		f := e.opts.LinkStrength * w * (dist - e.opts.LinkDistance) * alpha
		fx := f * dx / dist
		fy := f * dy / dist

		if !s.Pinned {
			e.vx[si] += fx
			e.vy[si] += fy
		}
		if !t.Pinned {
			e.vx[ti] -= fx
			e.vy[ti] -= fy
		}
	}
}

// applyCharge applies the pairwise repulsion through a Barnes–Hut
// approximation. Pinned nodes still repel their neighbors but receive no
// velocity themselves.
func (e *Engine) applyCharge(alpha float64) {
	nodes := e.set.Nodes()
	n := len(nodes)
	if n < 2 {
		return
	}

	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := range nodes {
		xs[i] = nodes[i].X
		ys[i] = nodes[i].Y
	}
	qt := buildQuadtree(xs, ys)

	for i := range nodes {
		if nodes[i].Pinned {
			continue
		}
		fx, fy := qt.accumulate(xs[i], ys[i], e.opts.Theta, e.opts.ChargeStrength)
		e.vx[i] += fx * alpha
		e.vy[i] += fy * alpha
	}
}

// applyCenter nudges every free node toward the layout center so detached
// components do not drift off-screen.
func (e *Engine) applyCenter(alpha float64) {
	nodes := e.set.Nodes()
	k := e.opts.CenterStrength * alpha
	for i := range nodes {
		if nodes[i].Pinned {
			continue
		}
		e.vx[i] += (e.opts.CenterX - nodes[i].X) * k
		e.vy[i] += (e.opts.CenterY - nodes[i].Y) * k
	}
}

// applyCollision separates overlapping node circles by displacing each free
// participant half the overlap along the separation axis.
func (e *Engine) applyCollision() {
	nodes := e.set.Nodes()
	for i := 0; i < len(nodes); i++ {
		ri := e.collisionRadius(&nodes[i])
		for j := i + 1; j < len(nodes); j++ {
			dx := nodes[j].X - nodes[i].X
			dy := nodes[j].Y - nodes[i].Y
			dist := math.Hypot(dx, dy)
			minDist := ri + e.collisionRadius(&nodes[j])
			if dist >= minDist {
				continue
			}
			if dist < 1e-6 {
				// Coincident circles: separate along a fixed axis.
				dx, dy, dist = 1, 0, 1
			}
			push := (minDist - dist) / dist * 0.5
			px := dx * push
			py := dy * push
			if !nodes[i].Pinned {
				nodes[i].X -= px
				nodes[i].Y -= py
			}
			if !nodes[j].Pinned {
				nodes[j].X += px
				nodes[j].Y += py
			}
		}
	}
}

// radius returns the drawn radius of a node.
func (e *Engine) radius(n *graph.Node) float64 {
	r := n.Size * e.opts.NodeSizeFactor
	if r <= 0 {
		r = defaultNodeRadius
	}
	return r
}

// collisionRadius is the drawn radius plus the configured padding.
func (e *Engine) collisionRadius(n *graph.Node) float64 {
	return e.radius(n) + e.opts.CollisionPadding(n)
}
