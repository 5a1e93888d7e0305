// Package estimator accumulates the per-cell Monte Carlo radiation-field
// estimators: J, nuJ, free-free heating, ground-state
// photoionization/heating rates, and the line-specific estimator. All
// updates are additive and commutative across packets, so they are safe to
// drive from many worker goroutines concurrently via atomic adds into
// pre-allocated shared arrays -- no locks, no per-call map mutation.
package estimator

import (
	"math"
	"sync/atomic"

	"github.com/sedna-rt/rpkt/opacity"
)

// Arrays holds the shared, mutable-by-atomic-add estimator accumulators
// for one time step, indexed by model-grid index and, for the ion-level
// accumulators, a flattened (mgi, element, ion) index.
type Arrays struct {
	nElements, nIons int

	j             []uint64 // bit pattern of float64, per mgi
	nuJ           []uint64
	ffHeating     []uint64
	gamma         []uint64 // per (mgi, element, ion)
	bfHeating     []uint64 // per (mgi, element, ion)
	lineEstimator []uint64 // per lineIndex
}

// NewArrays allocates estimator storage for nCells model-grid cells,
// nLines lines, and ion-resolved accumulators sized for up to nElements
// elements and nIons ionization stages per element.
func NewArrays(nCells, nLines, nElements, nIons int) *Arrays {
	return &Arrays{
		nElements:     nElements,
		nIons:         nIons,
		j:             make([]uint64, nCells),
		nuJ:           make([]uint64, nCells),
		ffHeating:     make([]uint64, nCells),
		gamma:         make([]uint64, nCells*nElements*nIons),
		bfHeating:     make([]uint64, nCells*nElements*nIons),
		lineEstimator: make([]uint64, nLines),
	}
}

func addFloat64(slot *uint64, delta float64) {
	for {
		old := atomic.LoadUint64(slot)
		newVal := math.Float64bits(math.Float64frombits(old) + delta)
		if atomic.CompareAndSwapUint64(slot, old, newVal) {
			return
		}
	}
}

func loadFloat64(slot *uint64) float64 {
	return math.Float64frombits(atomic.LoadUint64(slot))
}

func (a *Arrays) ionIndex(mgi, element, ion int) int {
	return (mgi*a.nElements+element)*a.nIons + ion
}

// J returns the current angle-averaged mean-intensity volume estimator for
// mgi.
func (a *Arrays) J(mgi int) float64 { return loadFloat64(&a.j[mgi]) }

// NuJ returns the current frequency-weighted mean-intensity estimator.
func (a *Arrays) NuJ(mgi int) float64 { return loadFloat64(&a.nuJ[mgi]) }

// FFHeating returns the current free-free heating estimator.
func (a *Arrays) FFHeating(mgi int) float64 { return loadFloat64(&a.ffHeating[mgi]) }

// LineEstimator returns the current per-line estimator.
func (a *Arrays) LineEstimator(lineIndex int) float64 {
	return loadFloat64(&a.lineEstimator[lineIndex])
}

// Gamma returns the current ground-state photoionization-rate estimator.
func (a *Arrays) Gamma(mgi, element, ion int) float64 {
	return loadFloat64(&a.gamma[a.ionIndex(mgi, element, ion)])
}

// BFHeating returns the current bound-free heating estimator.
func (a *Arrays) BFHeating(mgi, element, ion int) float64 {
	return loadFloat64(&a.bfHeating[a.ionIndex(mgi, element, ion)])
}

// UpdateSegment accumulates the volumetric estimator contributions of a
// segment of length segLen through non-empty cell mgi carrying comoving
// energy eCmf and frequency nuCmf, with the bound-free contributions
// already computed into scratch by opacity.ComputeKappaCont. Only continua
// with nu_cmf > nu_edge (a ground-state-reachable channel) contribute
func (a *Arrays) UpdateSegment(
	mgi int, segLen, eCmf, nuCmf, kappaFFHeat float64,
	list *opacity.List, scratch *opacity.Scratch,
) {
	lDotE := segLen * eCmf
	addFloat64(&a.j[mgi], lDotE)
	addFloat64(&a.nuJ[mgi], lDotE*nuCmf)
	addFloat64(&a.ffHeating[mgi], lDotE*kappaFFHeat)

	for i := 0; i < list.Len(); i++ {
		c := list.At(i)
		if nuCmf <= c.NuEdge {
			continue
		}
		contr := scratch.Contr[i]
		if contr == 0 {
			continue
		}
		idx := a.ionIndex(mgi, c.Element, c.Ion)
		addFloat64(&a.gamma[idx], contr*lDotE/nuCmf)
		addFloat64(&a.bfHeating[idx], contr*lDotE*(1-c.NuEdge/nuCmf))
	}
}

// UpdateLineEstimator accumulates the line-specific radiation-field
// estimator: weight = prop_time * c * e_cmf / nu_cmf.
func (a *Arrays) UpdateLineEstimator(lineIndex int, weight float64) {
	addFloat64(&a.lineEstimator[lineIndex], weight)
}
