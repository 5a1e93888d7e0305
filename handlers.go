package rpkt

import (
	"log"
	"sort"

	"github.com/sedna-rt/rpkt/model"
	"github.com/sedna-rt/rpkt/vec"
)

// EmitRPacket re-emits pkt as an r-packet, sampling a fresh isotropic
// direction in the comoving frame and aberrating it to the rest frame.
// pkt.NuCmf/ECmf must already hold the emission values; NuRF/ERF, Dir,
// Stokes, PolDir, and LastCross are all rewritten.
func EmitRPacket(ws *Workspace, pkt *Packet) {
	relativistic := ws.Cfg.UseRelativisticDopplerShift

	u := pkt.RandomIsotropic(ws.RNG)
	dir := vec.Aberrate(u, pkt.Pos, pkt.PropTime, relativistic)

	if !dir.IsUnit(ws.Cfg.UnitVectorTol) {
		log.Fatalf("rpkt: emit_rpacket produced a non-unit direction |dir|=%g", dir.Norm())
	}

	d := vec.DopplerFactor(pkt.Pos, dir, pkt.PropTime, relativistic)
	pkt.Dir = dir
	pkt.NuRF = pkt.NuCmf / d
	pkt.ERF = pkt.ECmf / d
	pkt.Stokes = vec.Vec3{1, 0, 0}
	pkt.PolDir = vec.OrthogonalUnit(dir)
	pkt.LastCross = model.NoFace
}

// RandomIsotropic draws a fresh isotropic unit vector in the comoving
// frame from gen.
func (p *Packet) RandomIsotropic(gen model.RNG) vec.Vec3 {
	return vec.Vec3(gen.IsotropicUnitVector())
}

// EventThickCell performs a coherent Thomson scatter:
// resample direction and frequency/energy, reset polarization, and record
// the emission point for diagnostics.
func EventThickCell(ws *Workspace, pkt *Packet) {
	EmitRPacket(ws, pkt)
	pkt.EmPos = pkt.Pos
	pkt.EmTime = pkt.PropTime
}

// ContinuumEvent samples which continuum process absorbed the packet at a
// resolved CONTINUUM event: electron scatter, free-free
// absorption into the k-packet thermal pool, or bound-free photoionization,
// which further branches into macro-atom activation or the thermal pool.
// ws.cache must already hold the opacity breakdown for pkt's current
// (mgi, nu_cmf).
func ContinuumEvent(ws *Workspace, pkt *Packet) {
	mgi := ws.Grid.CellModelIndex(pkt.Where)
	u := ws.RNG.Uniform() * ws.cache.Total

	switch {
	case u < ws.cache.Es:
		EventThickCell(ws, pkt)

	case u < ws.cache.Es+ws.cache.Ff:
		pkt.Type = model.KPacket
		pkt.AbsorptionType = -1

	case u < ws.cache.Es+ws.cache.Ff+ws.cache.Bf:
		target := ws.RNG.Uniform() * ws.cache.Bf
		i := sort.Search(len(ws.scratch.CumulativeBF), func(k int) bool {
			return ws.scratch.CumulativeBF[k] >= target
		})
		if i >= ws.Cont.Len() {
			log.Fatalf("rpkt: bound-free channel sample missed the cumulative table at mgi=%d", mgi)
		}
		c := ws.Cont.At(i)

		u3 := ws.RNG.Uniform()
		if u3 < c.NuEdge/pkt.NuCmf {
			pkt.Type = model.MacroAtom
			pkt.MAElement, pkt.MAIon = c.Element, c.Ion+1
			pkt.MAUpper = ws.ModelGrid.PhixsUpperLevel(c.Element, c.Ion, c.Level, c.PhixsTargetIndex)
			pkt.AbsorptionType = -2
		} else {
			pkt.Type = model.KPacket
			pkt.AbsorptionType = -1
		}

	default:
		log.Fatalf("rpkt: continuum event probability miss at mgi=%d (u=%g, total=%g)", mgi, u, ws.cache.Total)
	}
}

// BoundBoundEvent converts pkt into a macro-atom packet at the line
// transition GetEvent already staked.
func BoundBoundEvent(ws *Workspace, pkt *Packet) {
	pkt.Type = model.MacroAtom
	pkt.AbsorptionType = pkt.MAActivatingLine
	pkt.AbsorptionFreq = pkt.NuRF
	pkt.AbsorptionDir = pkt.Dir

	if ws.ThreadID == 0 && ws.LineAbsorptionCounts != nil {
		ws.LineAbsorptionCounts[pkt.MAActivatingLine]++
	}
}
