// Package geo provides the plane-geometry helpers shared by edge rendering
// and overlay anchoring: quadratic Bézier evaluation for curved edges and
// boundary-aware segment shortening so arrowheads land on node circles.
//
// All functions are pure. Degenerate inputs (coincident endpoints,
// zero-length tangents) fall back to the straight-line case instead of
// returning NaN, since they occur transiently while the simulation runs.
package geo

import "math"

// BoundaryGap is the extra distance, beyond the node radius, that a
// shortened edge terminal keeps from the node center. It leaves room for
// the arrowhead tip.
const BoundaryGap = 4.0

// epsilon guards divisions by near-zero distances.
const epsilon = 1e-9

// Point is a position in layout (graph) space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Dist returns the Euclidean distance between two points.
func Dist(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// Midpoint returns the arithmetic midpoint of a and b.
func Midpoint(a, b Point) Point {
	return Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

// PerpUnit returns the unit vector perpendicular to the segment a->b,
// rotated 90° counter-clockwise from the segment direction. The second
// return value is false when a and b (nearly) coincide and no direction
// exists.
func PerpUnit(a, b Point) (Point, bool) {
	dx := b.X - a.X
	dy := b.Y - a.Y
	d := math.Hypot(dx, dy)
	if d < epsilon {
		return Point{}, false
	}
	return Point{X: -dy / d, Y: dx / d}, true
}

// ControlPoint returns the control point of the quadratic Bézier used to
// draw an edge with the given perpendicular offset: the straight-line
// midpoint displaced along the perpendicular unit vector by offset.
// For coincident endpoints it returns the midpoint unchanged.
func ControlPoint(a, b Point, offset float64) Point {
	mid := Midpoint(a, b)
	perp, ok := PerpUnit(a, b)
	if !ok {
		return mid
	}
	return Point{X: mid.X + perp.X*offset, Y: mid.Y + perp.Y*offset}
}

// QuadBezierAt evaluates the quadratic Bézier with endpoints p0, p1 and
// control point pc at parameter t in [0, 1]:
//
//	B(t) = (1-t)²·p0 + 2(1-t)t·pc + t²·p1
func QuadBezierAt(p0, pc, p1 Point, t float64) Point {
	u := 1 - t
	return Point{
		X: u*u*p0.X + 2*u*t*pc.X + t*t*p1.X,
		Y: u*u*p0.Y + 2*u*t*pc.Y + t*t*p1.Y,
	}
}

// EdgeMidpoint returns the visual midpoint of an edge between a and b with
// the given curve offset. Offset zero yields the arithmetic midpoint;
// otherwise the edge is treated as a quadratic Bézier and evaluated at
// t=0.5.
func EdgeMidpoint(a, b Point, offset float64) Point {
	if offset == 0 {
		return Midpoint(a, b)
	}
	return QuadBezierAt(a, ControlPoint(a, b, offset), b, 0.5)
}

// ShortenToBoundary moves the terminal point of an edge backward along the
// local tangent so the drawn tip rests on the target node's circular
// boundary instead of its center. For a straight edge pass the source as
// from; for a curved edge pass the Bézier control point, whose direction to
// the target is the curve tangent at t=1. When from and to coincide the
// segment has no tangent and to is returned unmodified.
func ShortenToBoundary(from, to Point, radius float64) Point {
	dx := to.X - from.X
	dy := to.Y - from.Y
	d := math.Hypot(dx, dy)
	if d < epsilon {
		return to
	}
	back := radius + BoundaryGap
	return Point{X: to.X - dx/d*back, Y: to.Y - dy/d*back}
}
