package opacity

// uniformLinear is an O(1)-lookup linear interpolator over a table sampled
// at uniform steps of x -- the photoionization cross-section tables are
// stored in uniform steps of (nu/nu_edge - 1), so the fractional index can
// be computed directly rather than found by search.
type uniformLinear struct {
	x0, dx float64
	vals   []float64
}

func newUniformLinear(x0, dx float64, vals []float64) uniformLinear {
	return uniformLinear{x0: x0, dx: dx, vals: vals}
}

// indexBelow returns the largest table index k with x0+k*dx <= x, clamped to
// [0, len(vals)-2] so Eval can always form a [k,k+1) bracket.
func (u uniformLinear) indexBelow(x float64) int {
	k := int((x - u.x0) / u.dx)
	if k < 0 {
		k = 0
	}
	if k > len(u.vals)-2 {
		k = len(u.vals) - 2
	}
	return k
}

// eval linearly interpolates at x, clamping x into the table's domain.
func (u uniformLinear) eval(x float64) float64 {
	if x < u.x0 {
		x = u.x0
	}
	if xMax := u.x0 + float64(len(u.vals)-1)*u.dx; x > xMax {
		x = xMax
	}
	k := u.indexBelow(x)
	x1 := u.x0 + float64(k)*u.dx
	x2 := x1 + u.dx
	v1, v2 := u.vals[k], u.vals[k+1]
	return v1 + (v2-v1)*(x-x1)/(x2-x1)
}
