// Package opacity implements the continuum opacity kernel:
// Thomson + free-free + bound-free opacity at a given (cell, frequency),
// plus the per-thread cache and phixs scratch space.
package opacity

import (
	"fmt"
	"log"
	"math"

	"github.com/sedna-rt/rpkt/model"
)

// Physical constants in the core's cgs unit system.
const (
	SigmaT     = 6.652458732e-25 // Thomson cross-section, cm^2
	HPlanck    = 6.62607015e-27  // erg s
	KBoltzmann = 1.380649e-16    // erg/K
	ffCoeff    = 3.69255e8
)

// ContEntry is one photoionization continuum, ordered by ascending NuEdge
// in the parent List.
type ContEntry struct {
	Element, Ion, Level, PhixsTargetIndex, UpperLevel int
	NuEdge                                            float64
	Probability                                       float64
	// XSDelta is the uniform step in (nu/NuEdge - 1) used to sample XS.
	XSDelta float64
	xs      uniformLinear
}

// NewContEntry builds a continuum entry from a cross-section table sampled
// in uniform steps of (nu/nuEdge - 1)
func NewContEntry(
	element, ion, level, phixsTargetIndex, upperLevel int,
	nuEdge, probability, delta float64,
	photoionXS []float64,
) ContEntry {
	return ContEntry{
		Element: element, Ion: ion, Level: level,
		PhixsTargetIndex: phixsTargetIndex, UpperLevel: upperLevel,
		NuEdge: nuEdge, Probability: probability, XSDelta: delta,
		xs: newUniformLinear(0, delta, photoionXS),
	}
}

// xsAt interpolates sigma_bf(nu) using index k = floor((nu/nu_edge-1)/delta),
// clamped to the table's range.
func (c *ContEntry) xsAt(nu float64) float64 {
	x := nu/c.NuEdge - 1
	return c.xs.eval(x)
}

// inRange reports whether nu falls within the entry's sampled table range.
func (c *ContEntry) inRange(nu float64) bool {
	n := len(c.xs.vals)
	if n < 2 {
		return false
	}
	upper := c.NuEdge * (1 + float64(n-1)*c.XSDelta)
	return nu >= c.NuEdge && nu <= upper
}

// List is the immutable, ascending-by-NuEdge photoionization list.
type List struct {
	entries []ContEntry
}

func NewList(entries []ContEntry) *List { return &List{entries: entries} }
func (l *List) Len() int                { return len(l.entries) }
func (l *List) At(i int) ContEntry      { return l.entries[i] }

// FreeFreeSpecies is one (element, ion) contribution to the free-free sum;
// Gaunt factor is approximated as 1 here, since the tabulated Gaunt-factor
// fit is atomic data ingested by an external collaborator (out of scope
//).
type FreeFreeSpecies struct {
	Element, Ion int
	ZEff         float64
}

// Cache is the per-thread continuum-opacity cache (kappa_rpkt_cont).
// All fields are in the comoving frame.
type Cache struct {
	valid      bool
	mgi        int
	nuCached   float64
	Total      float64
	Es         float64
	Ff         float64
	Bf         float64
	FFHeating  float64
	usedEsOnly bool
}

// Invalidate forces the next ComputeKappaCont call to recompute, the way
// the packet core resets the cache on entering a new cell.
func (c *Cache) Invalidate() { c.valid = false }

// UsedThomsonFallback reports whether the last fill fell back to es-only
// because the total was non-finite.
func (c *Cache) UsedThomsonFallback() bool { return c.usedEsOnly }

// hit reports whether the cache already holds a valid total for (mgi, nu)
// within relTol.
func (c *Cache) hit(mgi int, nu, relTol float64) bool {
	return c.valid && c.mgi == mgi && math.Abs(c.nuCached/nu-1) < relTol
}

// Scratch is the per-thread phixs scratch: a running
// cumulative sum of bf opacities per continuum, used to sample which
// channel absorbs a bf photon, plus the per-groundstate photoionization
// rate contributions written during estimator accumulation.
type Scratch struct {
	CumulativeBF []float64
	// Contr holds the per-continuum, non-cumulative bf contribution
	// computed by the last ComputeKappaCont call, consumed by the
	// estimator package to weight ground-state photoionization/heating
	// rates.
	Contr []float64
}

// NewScratch allocates scratch arrays sized for list.
func NewScratch(list *List) *Scratch {
	return &Scratch{
		CumulativeBF: make([]float64, list.Len()),
		Contr:        make([]float64, list.Len()),
	}
}

// ComputeKappaCont fills cache with {total, es, ff, bf, ffheating} at
// nuCmf for model-grid cell mgi It is a no-op if the
// cache already holds a valid entry (the opacity-cache hit test).
func ComputeKappaCont(
	cache *Cache, scratch *Scratch, list *List, ffSpecies []FreeFreeSpecies,
	mg model.ModelGridQuery, mgi int, nuCmf, relTol float64,
	separateStimRecomb bool,
) error {
	if cache.hit(mgi, nuCmf, relTol) {
		return nil
	}

	nE := mg.ElectronDensity(mgi)
	tE := mg.TemperatureE(mgi)

	es := SigmaT * nE
	ff := computeFF(ffSpecies, mg, mgi, nE, tE, nuCmf)
	bf := computeBF(list, scratch, mg, mgi, nE, tE, nuCmf, separateStimRecomb)

	total := es + ff + bf
	cache.usedEsOnly = false
	if !isFinite(total) {
		if !isFinite(es) {
			return fmt.Errorf("opacity: total and es both non-finite at mgi=%d nu=%g", mgi, nuCmf)
		}
		log.Printf("opacity: non-finite total at mgi=%d nu=%g, falling back to Thomson-only", mgi, nuCmf)
		total = es
		cache.usedEsOnly = true
	}

	cache.valid = true
	cache.mgi = mgi
	cache.nuCached = nuCmf
	cache.Total = total
	cache.Es = es
	cache.Ff = ff
	cache.Bf = bf
	cache.FFHeating = ff
	return nil
}

func isFinite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }

func computeFF(species []FreeFreeSpecies, mg model.ModelGridQuery, mgi int, nE, tE, nu float64) float64 {
	sum := 0.0
	for _, s := range species {
		if s.ZEff == 0 {
			continue
		}
		nIon := mg.IonPopulation(mgi, s.Element, s.Ion)
		const gff = 1.0
		sum += s.ZEff * s.ZEff * gff * nIon
	}
	if sum == 0 {
		return 0
	}
	stim := 1 - math.Exp(-HPlanck*nu/(KBoltzmann*tE))
	return ffCoeff * nE * math.Pow(nu, -3) * stim / math.Sqrt(tE) * sum
}

func computeBF(
	list *List, scratch *Scratch, mg model.ModelGridQuery, mgi int,
	nE, tE, nu float64, separateStimRecomb bool,
) float64 {
	sum := 0.0
	n := list.Len()
	lastCumulative := 0.0
	brokeEarly := false
	i := 0
	for ; i < n; i++ {
		c := list.At(i)
		if nu < c.NuEdge {
			brokeEarly = true
			break
		}
		contr := 0.0
		if c.inRange(nu) {
			nLevel := mg.LevelPopulation(mgi, c.Element, c.Ion, c.Level)
			if nLevel > 0 {
				xs := c.xsAt(nu)
				corr := 1.0
				if !separateStimRecomb {
					nUpper := mg.LevelPopulation(mgi, c.Element, c.Ion+1, c.UpperLevel)
					saha := mg.SahaFactor(c.Element, c.Ion, c.Level, c.UpperLevel, tE, nu)
					corr = 1 - (nUpper/nLevel)*nE*saha*math.Exp(-HPlanck*nu/(KBoltzmann*tE))
					if corr < 0 {
						corr = 0
					}
				}
				contr = nLevel * xs * c.Probability * corr
			}
		}
		scratch.Contr[i] = contr
		sum += contr
		lastCumulative += contr
		scratch.CumulativeBF[i] = lastCumulative
	}
	if !brokeEarly {
		i = n
	}
	for ; i < n; i++ {
		scratch.Contr[i] = 0
		scratch.CumulativeBF[i] = lastCumulative
	}
	return sum
}
