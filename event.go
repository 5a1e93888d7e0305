package rpkt

import (
	"log"
	"math"

	"github.com/sedna-rt/rpkt/linelist"
	"github.com/sedna-rt/rpkt/model"
	"github.com/sedna-rt/rpkt/opacity"
	"github.com/sedna-rt/rpkt/vec"
)

// shadow is the lightweight stack-value copy get_event walks forward
// without mutating the authoritative packet.
// nuRF is fixed during free flight; nuCmf is a function of (pos, dir,
// propTime) via the Doppler factor.
type shadow struct {
	pos, dir  vec.Vec3
	nuRF      float64
	propTime  float64
	nextTrans int
}

func newShadow(pkt *Packet) shadow {
	return shadow{pos: pkt.Pos, dir: pkt.Dir, nuRF: pkt.NuRF, propTime: pkt.PropTime, nextTrans: pkt.NextTrans}
}

func (s *shadow) nuCmf(relativistic bool) float64 {
	return s.nuRF * vec.DopplerFactor(s.pos, s.dir, s.propTime, relativistic)
}

func (s *shadow) advance(ds float64) {
	s.pos = s.pos.Add(s.dir.Scale(ds))
	s.propTime += ds / vec.CLight
}

// GetEvent resolves the first physical event whose cumulative optical
// depth equals tauRnd within distance sAbort. It returns the
// distance to that event and its kind, or ok=false if none occurs before
// sAbort (the remaining path is pure continuum out to sAbort, or the
// packet flies past the reddest line). pkt.NextTrans is always updated on
// return.
func GetEvent(ws *Workspace, pkt *Packet, tauRnd, sAbort float64) (sEvent float64, kind model.EventKind, ok bool) {
	cfg := ws.Cfg
	relativistic := cfg.UseRelativisticDopplerShift
	mgi := ws.Grid.CellModelIndex(pkt.Where)

	// kappa_cont is computed once from the packet's frozen entry state and
	// reused for every line tested below, even as the shadow packet's
	// comoving frequency redshifts across many lines in this call.
	if err := opacity.ComputeKappaCont(
		&ws.cache, ws.scratch, ws.Cont, ws.FF, ws.ModelGrid, mgi, pkt.NuCmf,
		cfg.OpacityCacheRelTol, cfg.SeparateStimRecomb,
	); err != nil {
		log.Fatalf("rpkt: opacity kernel fatal at mgi=%d: %v", mgi, err)
	}
	d := vec.DopplerFactor(pkt.Pos, pkt.Dir, pkt.PropTime, relativistic)
	kappaCont := ws.cache.Total * d // comoving -> rest frame, exactly once

	abort := newShadow(pkt)
	abort.advance(sAbort)
	nuCmfAbort := abort.nuCmf(relativistic)

	dp := newShadow(pkt)
	s, tauAccum := 0.0, 0.0

	for {
		nuCmf := dp.nuCmf(relativistic)

		i := ws.Lines.ClosestTransition(nuCmf, dp.nextTrans)
		if i == linelist.NoMoreLines {
			if kappaCont*(sAbort-s) > tauRnd-tauAccum {
				pkt.NextTrans = dp.nextTrans
				return s + (tauRnd-tauAccum)/kappaCont, model.Continuum, true
			}
			pkt.NextTrans = dp.nextTrans
			return math.Inf(1), 0, false
		}

		line := ws.Lines.At(i)
		dp.nextTrans = i + 1

		ldist := lineDistance(dp, nuCmf, line.Nu, relativistic)
		tauContStep := kappaCont * ldist

		if line.Nu < nuCmfAbort {
			dp.nextTrans = i
			pkt.NextTrans = dp.nextTrans
			return math.Inf(1), 0, false
		}

		if tauRnd-tauAccum > tauContStep {
			tauLine := sobolevTau(ws, mgi, line, dp.propTime)

			if tauRnd-tauAccum > tauContStep+tauLine {
				dp.advance(ldist)
				tauAccum += tauContStep + tauLine
				s += ldist
				if ws.Estimators != nil {
					// e_cmf/nu_cmf = e_rf/nu_rf is invariant along the path.
					weight := dp.propTime * vec.CLight * pkt.ERF / pkt.NuRF
					ws.Estimators.UpdateLineEstimator(i, weight)
				}
				continue
			}

			s += ldist
			if s >= sAbort {
				s = sAbort * (1 - 2e-8)
			}
			if ws.Cfg.DetailedLineEstimatorsOn && ws.Estimators != nil {
				weight := dp.propTime * vec.CLight * pkt.ERF / pkt.NuRF
				ws.Estimators.UpdateLineEstimator(i, weight)
			}
			pkt.NextTrans = dp.nextTrans
			pkt.MAElement, pkt.MAIon = line.ElementIndex, line.IonIndex
			pkt.MAUpper, pkt.MAActivatingLine = line.UpperLevel, i
			return s, model.BoundBound, true
		}

		dp.nextTrans = i
		pkt.NextTrans = dp.nextTrans
		return s + (tauRnd-tauAccum)/kappaCont, model.Continuum, true
	}
}

// lineDistance is the distance from dp to the point where dp's comoving
// frequency redshifts to nuTrans.
func lineDistance(dp shadow, nuCmf, nuTrans float64, relativistic bool) float64 {
	if nuCmf <= nuTrans {
		return 0
	}
	var ldist float64
	if !relativistic {
		ldist = vec.CLight * dp.propTime * (nuCmf/nuTrans - 1)
	} else {
		r := dp.pos.Norm()
		mu := 0.0
		if r > 0 {
			mu = dp.dir.Dot(dp.pos) / r
		}
		nr := nuTrans / dp.nuRF
		ct := vec.CLight * dp.propTime
		inner := ct*ct - (1 + r*r*(1-mu*mu)*(1+1/(nr*nr)))
		if inner < 0 {
			inner = 0
		}
		ldist = -mu*r + (ct-nr*nr*math.Sqrt(inner))/(1+nr*nr)
	}
	if ldist < 0 {
		if ldist >= -100 {
			return 0
		}
		log.Fatalf("rpkt: line distance %g cm exceeds the negative-distance tolerance", ldist)
	}
	return ldist
}

// sobolevTau computes the Sobolev line optical depth (B_lu n_l - B_ul n_u) *
// hc/(4*pi) * t, deriving the Einstein B coefficients from A and the
// statistical weights. Negative values (subthermal population
// inversions) are logged and clamp to 0.
func sobolevTau(ws *Workspace, mgi int, line linelist.Line, propTime float64) float64 {
	nLower := ws.ModelGrid.LevelPopulation(mgi, line.ElementIndex, line.IonIndex, line.LowerLevel)
	nUpper := ws.ModelGrid.LevelPopulation(mgi, line.ElementIndex, line.IonIndex, line.UpperLevel)
	gLower := ws.ModelGrid.StatWeight(line.ElementIndex, line.IonIndex, line.LowerLevel)
	gUpper := ws.ModelGrid.StatWeight(line.ElementIndex, line.IonIndex, line.UpperLevel)

	bUl := line.EinsteinA * vec.CLight * vec.CLight / (2 * opacity.HPlanck * line.Nu * line.Nu * line.Nu)
	bLu := bUl * gUpper / gLower

	tau := (bLu*nLower - bUl*nUpper) * (opacity.HPlanck * vec.CLight / (4 * math.Pi)) * propTime
	if tau < 0 {
		log.Printf("rpkt: negative Sobolev optical depth %g for line nu=%g at mgi=%d, clamping to 0", tau, line.Nu, mgi)
		return 0
	}
	return tau
}
