package rpkt

import (
	"log"
	"math"

	"github.com/sedna-rt/rpkt/grid"
	"github.com/sedna-rt/rpkt/model"
	"github.com/sedna-rt/rpkt/rng"
	"github.com/sedna-rt/rpkt/vec"
)

// AdvanceRPacket repeatedly steps pkt until it reaches tEnd, its type
// changes away from RPacket, or it crosses into a different model-grid
// cell. It returns true only when the packet's model-grid index actually
// changed across the call -- entering an empty buffer cell of the same
// model-grid index, or exiting through the grid's outer face, does not
// count.
func AdvanceRPacket(ws *Workspace, pkt *Packet, tEnd float64) (cellChanged bool) {
	startMgi := ws.Grid.CellModelIndex(pkt.Where)
	ws.ResetCache()

	for {
		if pkt.Type != model.RPacket {
			return false
		}

		tauNext := rng.TauNext(ws.RNG)

		cross := grid.BoundaryCross(ws.Grid, pkt.Where, pkt.Pos, pkt.Dir, pkt.PropTime, ws.TMin, pkt.LastCross)
		sBoundary := cross.Distance
		if sBoundary < 0 {
			log.Fatalf("rpkt: negative boundary distance %g at cell=%d", sBoundary, pkt.Where)
		}
		boundaryClamped := sBoundary > ws.Cfg.MaxPathStepCM
		if boundaryClamped {
			sBoundary = ws.Cfg.MaxPathStepCM
		}

		sTime := (tEnd - pkt.PropTime) * vec.CLight
		if sTime < 0 {
			log.Fatalf("rpkt: negative time distance %g for packet at prop_time=%g tEnd=%g", sTime, pkt.PropTime, tEnd)
		}

		mgi := ws.Grid.CellModelIndex(pkt.Where)
		var sEvent float64
		var kind model.EventKind
		findNextlineEmpty := false

		switch {
		case mgi == model.EmptyCell:
			sEvent = math.Inf(1)
			findNextlineEmpty = true
		case ws.ModelGrid.IsThick(mgi):
			d := vec.DopplerFactor(pkt.Pos, pkt.Dir, pkt.PropTime, ws.Cfg.UseRelativisticDopplerShift)
			kappaGrey := ws.ModelGrid.GreyOpacity(mgi) * ws.ModelGrid.MassDensity(mgi) * d
			sEvent = tauNext / kappaGrey
			kind = model.Continuum
			findNextlineEmpty = true
		default:
			sAbort := sBoundary
			if sTime < sAbort {
				sAbort = sTime
			}
			var ok bool
			sEvent, kind, ok = GetEvent(ws, pkt, tauNext, sAbort)
			if !ok {
				sEvent = math.Inf(1)
			}
		}

		sWinner, winner := pickWinner(sBoundary, sTime, sEvent)
		if math.IsInf(sWinner, 1) {
			log.Fatalf("rpkt: no event winner resolved for packet at cell=%d prop_time=%g", pkt.Where, pkt.PropTime)
		}

		half := sWinner / 2
		advanceHalf(ws, pkt, half, mgi)
		advanceHalf(ws, pkt, sWinner-half, mgi)

		switch winner {
		case winBoundary:
			if boundaryClamped {
				// The true boundary lies past the safety cap; this sub-step
				// only ate into the path, it did not reach a face.
				continue
			}
			if face, next, drifted := grid.SnapIfDrifted(ws.Grid, pkt.Where, pkt.Pos, pkt.PropTime, ws.TMin, cross.Face); drifted {
				log.Printf("rpkt: packet at cell=%d drifted past face %d, snapping to face %d", pkt.Where, cross.Face, face)
				cross.Face = face
				cross.Next = next
			}
			ws.ResetCache()
			pkt.LastCross = cross.Face
			pkt.Where = cross.Next
			if cross.Next == model.EscapeSentinel {
				pkt.Type = model.Escape
				return false
			}
			nextMgi := ws.Grid.CellModelIndex(cross.Next)
			if nextMgi == model.EmptyCell || ws.ModelGrid.IsThick(nextMgi) {
				pkt.NextTrans = ws.Lines.ClosestTransitionEmpty(pkt.NuCmf)
			}
			if nextMgi != startMgi {
				return true
			}
			continue

		case winTime:
			pkt.PropTime = tEnd
			if findNextlineEmpty {
				pkt.NextTrans = ws.Lines.ClosestTransitionEmpty(pkt.NuCmf)
			}
			return false

		case winEvent:
			switch {
			case mgi != model.EmptyCell && ws.ModelGrid.IsThick(mgi):
				EventThickCell(ws, pkt)
			case kind == model.Continuum:
				// advanceHalf's estimator sample left ws.cache at the
				// second half's mean frequency; resample exactly at the
				// event point before using the cache to choose a channel.
				if err := opacityComputeAt(ws, mgi, pkt.NuCmf); err != nil {
					log.Fatalf("rpkt: opacity kernel fatal resolving continuum event at mgi=%d: %v", mgi, err)
				}
				ContinuumEvent(ws, pkt)
			default:
				BoundBoundEvent(ws, pkt)
			}
			if pkt.Type != model.RPacket {
				return false
			}
			continue
		}
	}
}

type winnerKind int

const (
	winBoundary winnerKind = iota
	winTime
	winEvent
)

// pickWinner selects the smallest of the three competing distances,
// preferring boundary, then time, then event on exact ties, since a
// boundary/time coincidence should hand the packet to its neighbour
// rather than resolve a physical interaction exactly on the cell wall.
func pickWinner(sBoundary, sTime, sEvent float64) (float64, winnerKind) {
	w, k := sBoundary, winBoundary
	if sTime < w {
		w, k = sTime, winTime
	}
	if sEvent < w {
		w, k = sEvent, winEvent
	}
	return w, k
}

// advanceHalf moves pkt by ds along dir, advances prop_time, and folds the
// half-segment's estimator contribution in, using the comoving frequency
// and energy given by the mean of the Doppler factors at the half's start
// and end. Called twice per sub-step with the two halves of the winning
// distance, so each half contributes its own estimator update; there is
// no single update at the midpoint of the whole segment.
func advanceHalf(ws *Workspace, pkt *Packet, ds float64, mgi int) {
	if ds <= 0 {
		return
	}
	relativistic := ws.Cfg.UseRelativisticDopplerShift
	d0 := vec.DopplerFactor(pkt.Pos, pkt.Dir, pkt.PropTime, relativistic)

	pkt.Pos = pkt.Pos.Add(pkt.Dir.Scale(ds))
	pkt.PropTime += ds / vec.CLight

	d1 := vec.DopplerFactor(pkt.Pos, pkt.Dir, pkt.PropTime, relativistic)
	pkt.NuCmf = pkt.NuRF * d1
	pkt.ECmf = pkt.ERF * d1

	if mgi == model.EmptyCell || ws.Estimators == nil {
		return
	}

	dMid := (d0 + d1) / 2
	nuMid := pkt.NuRF * dMid
	eMid := pkt.ERF * dMid
	if err := opacityComputeAt(ws, mgi, nuMid); err != nil {
		log.Fatalf("rpkt: opacity kernel fatal during estimator update at mgi=%d: %v", mgi, err)
	}
	ws.Estimators.UpdateSegment(mgi, ds, eMid, nuMid, ws.cache.FFHeating, ws.Cont, ws.scratch)
}
