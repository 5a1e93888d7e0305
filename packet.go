// Package rpkt implements the packet stepper, the event distance solver,
// the event handlers, and packet emission: the orchestration layer that
// ties together linelist, opacity, grid, estimator, and vec.
package rpkt

import (
	"github.com/sedna-rt/rpkt/model"
	"github.com/sedna-rt/rpkt/vec"
)

// Packet is an r-packet, the only packet type this core dispatches. Pos
// and Dir are rest-frame; NuRF/ERF are fixed between interactions, while
// NuCmf/ECmf are derived from the Doppler factor at the packet's current
// (Pos, Dir, PropTime) and updated as it moves.
type Packet struct {
	Pos, Dir     vec.Vec3
	NuRF, NuCmf  float64
	ERF, ECmf    float64
	PropTime     float64
	Where        int
	LastCross    int
	NextTrans    int
	Type         model.PacketType

	Stokes vec.Vec3
	PolDir vec.Vec3

	EmissionType   int
	AbsorptionType int
	AbsorptionFreq float64
	AbsorptionDir  vec.Vec3

	Interactions int
	NScatterings int
	ScatCount    int
	LastEvent    model.EventKind

	EmPos  vec.Vec3
	EmTime float64

	// Prospective macro-atom activation state, staked by GetEvent (bound-bound
	// branch, consumed by BoundBoundEvent when the packet converts to
	// MACROATOM) or by ContinuumEvent when a bound-free absorption activates
	// a macro-atom directly.
	MAElement, MAIon, MAUpper, MAActivatingLine int
}

// NewRPacket builds an r-packet at rest-frame position pos and direction
// dir, launched with comoving-frame frequency nuCmf and energy eCmf at lab
// time propTime in cell where. nu_rf and e_rf are derived from the Doppler
// factor's invariant nu_rf = nu_cmf/D, e_rf = e_cmf/D.
func NewRPacket(pos, dir vec.Vec3, nuCmf, eCmf, propTime float64, where int, relativistic bool) *Packet {
	d := vec.DopplerFactor(pos, dir, propTime, relativistic)
	return &Packet{
		Pos: pos, Dir: dir,
		NuCmf: nuCmf, ECmf: eCmf,
		NuRF: nuCmf / d, ERF: eCmf / d,
		PropTime:  propTime,
		Where:     where,
		LastCross: model.NoFace,
		Type:      model.RPacket,
		Stokes:    vec.Vec3{1, 0, 0},
		PolDir:    vec.OrthogonalUnit(dir),
	}
}

// CheckInvariants reports whether the Doppler-consistency and unit-direction
// invariants hold for the packet's current state.
func (p *Packet) CheckInvariants(unitTol, dopplerRelTol float64, relativistic bool) bool {
	if !p.Dir.IsUnit(unitTol) {
		return false
	}
	d := vec.DopplerFactor(p.Pos, p.Dir, p.PropTime, relativistic)
	if absf(p.NuRF*d/p.NuCmf-1) > dopplerRelTol {
		return false
	}
	if absf(p.ERF*d/p.ECmf-1) > dopplerRelTol {
		return false
	}
	return true
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
