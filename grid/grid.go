// Package grid implements boundary crossing: the closest
// forward intersection of a packet's ray with the faces of its current
// cell, accounting for homologous expansion, for both Cartesian and
// 1-D spherical topologies. Cell geometry and neighbour lookup are the
// model.GridQuery collaborator; this package only computes distances.
package grid

import (
	"math"

	"github.com/sedna-rt/rpkt/model"
	"github.com/sedna-rt/rpkt/vec"
)

// Cartesian face indices, matching model.GridQuery.NeighbourCell's face
// parameter for Uniform3DCartesian grids.
const (
	FaceMinX = 0
	FaceMaxX = 1
	FaceMinY = 2
	FaceMaxY = 3
	FaceMinZ = 4
	FaceMaxZ = 5
)

// Spherical face indices for Spherical1D grids.
const (
	FaceInner = 0
	FaceOuter = 1
)

// Crossing is the result of BoundaryCross: the distance to the next face
// and the neighbour cell to hand the packet to.
type Crossing struct {
	Distance float64
	Face     int
	Next     int // model.EscapeSentinel if this is the outermost face
}

// BoundaryCross returns the closest-forward face and neighbour cell of a
// packet's ray through its current cell.
func BoundaryCross(
	q model.GridQuery, cellIndex int, pos, dir vec.Vec3, t, tMin float64, lastCross int,
) Crossing {
	switch q.GridType() {
	case model.Spherical1D:
		return sphericalCross(q, cellIndex, pos, dir, t, tMin, lastCross)
	default:
		return cartesianCross(q, cellIndex, pos, dir, t, tMin, lastCross)
	}
}

// cartesianCross solves, per axis, the linear equations for entry/exit
// through both the + and - faces, scaling face positions by t/tMin for
// homologous expansion, and keeps the smallest positive time that is not
// the face the packet just crossed.
func cartesianCross(
	q model.GridQuery, cellIndex int, pos, dir vec.Vec3, t, tMin float64, lastCross int,
) Crossing {
	scale := t / tMin
	best := Crossing{Distance: math.Inf(1), Face: -1, Next: model.EscapeSentinel}

	faces := [3][2]int{{FaceMinX, FaceMaxX}, {FaceMinY, FaceMaxY}, {FaceMinZ, FaceMaxZ}}
	for d := 0; d < 3; d++ {
		if dir[d] == 0 {
			continue
		}
		lo := q.CellCoordMin(cellIndex, d) * scale
		hi := lo + q.CellWidth(cellIndex, d)*scale

		tryFace := func(face int, boundary float64) {
			if face == lastCross {
				return
			}
			s := (boundary - pos[d]) / dir[d]
			if s > 0 && s < best.Distance {
				next := q.NeighbourCell(cellIndex, face)
				best = Crossing{Distance: s, Face: face, Next: next}
			}
		}
		tryFace(faces[d][0], lo)
		tryFace(faces[d][1], hi)
	}
	return best
}

// sphericalCross solves the quadratic for a ray intersecting an expanding
// spherical shell: a = |dir|^2 - (R/(t*c))^2,
// b = 2(dir.pos - R^2/(t*c)), c = |pos|^2 - R^2, discarding roots on the
// wrong side of the required face orientation.
func sphericalCross(
	q model.GridQuery, cellIndex int, pos, dir vec.Vec3, t, tMin float64, lastCross int,
) Crossing {
	best := Crossing{Distance: math.Inf(1), Face: -1, Next: model.EscapeSentinel}

	innerR := q.CellCoordMin(cellIndex, 0) * (t / tMin)
	outerR := (q.CellCoordMin(cellIndex, 0) + q.CellWidth(cellIndex, 0)) * (t / tMin)

	tryShell := func(face int, radius float64, isInner bool) {
		if face == lastCross || radius <= 0 {
			return
		}
		s, ok := shellCrossDist(pos, dir, radius, isInner, t)
		if ok && s > 0 && s < best.Distance {
			next := q.NeighbourCell(cellIndex, face)
			best = Crossing{Distance: s, Face: face, Next: next}
		}
	}
	tryShell(FaceInner, innerR, true)
	tryShell(FaceOuter, outerR, false)
	return best
}

// shellCrossDist finds the smallest positive forward distance to an
// expanding spherical shell of the given radius (measured at time t),
// discarding roots on the wrong side of the required face orientation:
// for the inner shell the packet must be moving inward at the crossing
// point (posFinal.dir < 0), for the outer shell outward (> 0).
func shellCrossDist(pos, dir vec.Vec3, radius float64, isInner bool, t float64) (float64, bool) {
	speed := dir.Norm() * vec.CLight
	a := dir.Dot(dir) - (radius/t/speed)*(radius/t/speed)
	b := 2 * (dir.Dot(pos) - (radius*radius)/(t*speed))
	c := pos.Dot(pos) - radius*radius

	disc := b*b - 4*a*c
	if disc < 0 {
		return 0, false
	}

	sq := math.Sqrt(disc)
	d1 := (-b + sq) / (2 * a)
	d2 := (-b - sq) / (2 * a)

	valid := func(d float64) (float64, bool) {
		posFinal := pos.Add(dir.Scale(d))
		mu := posFinal.Dot(dir)
		if isInner && mu > 0 {
			return 0, false
		}
		if !isInner && mu < 0 {
			return 0, false
		}
		return d, true
	}

	best, bestOK := math.Inf(1), false
	if d, ok := valid(d1); ok && d > 0 && d < best {
		best, bestOK = d, true
	}
	if d, ok := valid(d2); ok && d > 0 && d < best {
		best, bestOK = d, true
	}
	return best, bestOK
}

// SnapIfDrifted guards against floating-point drift placing the packet just
// outside its claimed cell: if pos is clearly
// outside face and face was not lastCross, the caller should snap to the
// neighbour cell reported here and recompute; if the drift is through the
// outermost face, the neighbour is model.EscapeSentinel. Only Cartesian
// cells are checked; spherical shells have no equivalent per-axis drift to
// test.
func SnapIfDrifted(q model.GridQuery, cellIndex int, pos vec.Vec3, t, tMin float64, lastCross int) (face, next int, drifted bool) {
	if q.GridType() != model.Uniform3DCartesian {
		return -1, -1, false
	}
	scale := t / tMin
	for d := 0; d < 3; d++ {
		lo := q.CellCoordMin(cellIndex, d) * scale
		hi := lo + q.CellWidth(cellIndex, d)*scale
		const eps = 1e-6
		minFace, maxFace := 2*d, 2*d+1
		if pos[d] < lo-eps*math.Abs(lo) && lastCross != minFace {
			return minFace, q.NeighbourCell(cellIndex, minFace), true
		}
		if pos[d] > hi+eps*math.Abs(hi) && lastCross != maxFace {
			return maxFace, q.NeighbourCell(cellIndex, maxFace), true
		}
	}
	return -1, -1, false
}
