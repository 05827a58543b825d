package layout

import "math"

// quadtree is a Barnes–Hut tree over node positions, rebuilt each tick for
// the charge force. Internal cells carry aggregate mass and center of mass
// so far-away regions can be approximated by a single body.
type quadtree struct {
	root *quadCell
}

type quadCell struct {
	// Square bounds of the cell.
	x0, y0, size float64

	// Aggregate over all bodies inside.
	mass     float64
	comX     float64
	comY     float64
	children *[4]*quadCell

	// Leaf payload. A leaf with mass > 0 holds exactly one body position
	// (coincident bodies stack their mass).
	bodyX, bodyY float64
}

func (c *quadCell) leaf() bool { return c.children == nil }

// buildQuadtree constructs the tree over the given positions. Every body
// has unit mass.
func buildQuadtree(xs, ys []float64) *quadtree {
	if len(xs) == 0 {
		return &quadtree{}
	}

	minX, minY := xs[0], ys[0]
	maxX, maxY := xs[0], ys[0]
	for i := 1; i < len(xs); i++ {
		minX = math.Min(minX, xs[i])
		minY = math.Min(minY, ys[i])
		maxX = math.Max(maxX, xs[i])
		maxY = math.Max(maxY, ys[i])
	}
	size := math.Max(maxX-minX, maxY-minY)
	if size == 0 {
		size = 1
	}

	qt := &quadtree{root: &quadCell{x0: minX, y0: minY, size: size}}
	for i := range xs {
		qt.root.insert(xs[i], ys[i], 0)
	}
	return qt
}

// maxDepth bounds subdivision for pathological clusters of coincident
// points.
const maxDepth = 32

func (c *quadCell) insert(x, y float64, depth int) {
	if c.mass == 0 {
		c.mass = 1
		c.comX, c.comY = x, y
		c.bodyX, c.bodyY = x, y
		return
	}

	if c.leaf() {
		if depth >= maxDepth || (c.bodyX == x && c.bodyY == y) {
			// Stack coincident bodies instead of subdividing forever.
			c.mass++
			return
		}
		// Push the resident body down, then fall through to insert the
		// new one.
		oldX, oldY, oldMass := c.bodyX, c.bodyY, c.mass
		c.children = &[4]*quadCell{}
		c.mass = 0
		c.childFor(oldX, oldY).insertMass(oldX, oldY, oldMass)
		c.mass = oldMass
	}

	c.childFor(x, y).insert(x, y, depth+1)
	// Update aggregate.
	total := c.mass + 1
	c.comX = (c.comX*c.mass + x) / total
	c.comY = (c.comY*c.mass + y) / total
	c.mass = total
}

// insertMass seeds a child cell with an already-stacked body.
func (c *quadCell) insertMass(x, y, mass float64) {
	c.mass = mass
	c.comX, c.comY = x, y
	c.bodyX, c.bodyY = x, y
}

// childFor returns (allocating if needed) the quadrant child containing
// (x, y).
func (c *quadCell) childFor(x, y float64) *quadCell {
	half := c.size / 2
	qx, qy := 0, 0
	if x >= c.x0+half {
		qx = 1
	}
	if y >= c.y0+half {
		qy = 1
	}
	i := qy*2 + qx
	if c.children[i] == nil {
		c.children[i] = &quadCell{
			x0:   c.x0 + float64(qx)*half,
			y0:   c.y0 + float64(qy)*half,
			size: half,
		}
	}
	return c.children[i]
}

// accumulate sums the repulsive force exerted on the body at (x, y) by the
// whole tree. Cells whose size/distance ratio is below theta are treated
// as a single aggregated body. strength scales the inverse-square kernel.
func (qt *quadtree) accumulate(x, y, theta, strength float64) (fx, fy float64) {
	if qt.root == nil {
		return 0, 0
	}
	qt.root.accumulate(x, y, theta, strength, &fx, &fy)
	return fx, fy
}

func (c *quadCell) accumulate(x, y, theta, strength float64, fx, fy *float64) {
	if c.mass == 0 {
		return
	}

	dx := x - c.comX
	dy := y - c.comY
	dist2 := dx*dx + dy*dy

	if c.leaf() || c.size*c.size < theta*theta*dist2 {
		if dist2 < 1 {
			// The body itself, or a near-coincident neighbor. Clamp to
			// avoid the singularity; direction is arbitrary but bounded.
			dist2 = 1
		}
		dist := math.Sqrt(dist2)
		f := strength * c.mass / dist2
		*fx += f * dx / dist
		*fy += f * dy / dist
		return
	}

	for _, child := range c.children {
		if child != nil {
			child.accumulate(x, y, theta, strength, fx, fy)
		}
	}
}
