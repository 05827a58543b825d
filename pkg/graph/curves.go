package graph

// DefaultCurveDistance is the perpendicular stride, in layout units,
// between parallel edges fanned out over the same endpoint pair.
const DefaultCurveDistance = 30.0

// AssignCurveOffsets computes the curve-offset table for the given edges:
// a signed perpendicular displacement per edge identity, expressed in the
// edge's own Source→Target frame. Edges are grouped by unordered endpoint
// pair; a lone edge gets offset 0 and a group of n gets displacements
// (i - (n-1)/2) * base in input order, symmetric around zero and evenly
// spaced. The perpendicular flips with edge direction, so displacements
// are assigned in the canonical pair order and negated for edges running
// the other way; without that, an A→B and a B→A edge with mirrored
// offsets would land on the same curve.
//
// The table is a pure function of edge membership, not of positions, so it
// only needs recomputing when the edge set changes.
func AssignCurveOffsets(edges []Edge, base float64) map[EdgeKey]float64 {
	if base == 0 {
		base = DefaultCurveDistance
	}

	groups := make(map[PairKey][]EdgeKey)
	for _, e := range edges {
		pair := e.Pair()
		groups[pair] = append(groups[pair], e.Key())
	}

	offsets := make(map[EdgeKey]float64, len(edges))
	for pair, keys := range groups {
		n := len(keys)
		if n == 1 {
			offsets[keys[0]] = 0
			continue
		}
		mid := float64(n-1) / 2
		for i, key := range keys {
			off := (float64(i) - mid) * base
			if key.Source != pair.A {
				off = -off
			}
			offsets[key] = off
		}
	}
	return offsets
}
