package opacity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeModelGrid is a minimal model.ModelGridQuery stub for opacity tests.
type fakeModelGrid struct {
	ne, te, rho float64
	ionPop      map[[2]int]float64
	levelPop    map[[4]int]float64
}

func (f *fakeModelGrid) ElectronDensity(int) float64 { return f.ne }
func (f *fakeModelGrid) TemperatureE(int) float64    { return f.te }
func (f *fakeModelGrid) MassDensity(int) float64     { return f.rho }
func (f *fakeModelGrid) IsThick(int) bool            { return false }
func (f *fakeModelGrid) GreyOpacity(int) float64     { return 0 }
func (f *fakeModelGrid) ElementAbundance(int, int) float64 { return 1 }
func (f *fakeModelGrid) IonPopulation(_ int, element, ion int) float64 {
	return f.ionPop[[2]int{element, ion}]
}
func (f *fakeModelGrid) LevelPopulation(_ int, element, ion, level int) float64 {
	return f.levelPop[[4]int{element, ion, level}]
}
func (f *fakeModelGrid) StatWeight(int, int, int) float64 { return 1 }
func (f *fakeModelGrid) EinsteinA(int) float64            { return 0 }
func (f *fakeModelGrid) SahaFactor(int, int, int, int, float64, float64) float64 {
	return 0
}
func (f *fakeModelGrid) PhixsUpperLevel(int, int, int, int) int { return 0 }

func TestCacheHitAndInvalidate(t *testing.T) {
	mg := &fakeModelGrid{ne: 1e9, te: 1e4, ionPop: map[[2]int]float64{}, levelPop: map[[4]int]float64{}}
	list := NewList(nil)
	scratch := NewScratch(list)
	cache := &Cache{}

	require.NoError(t, ComputeKappaCont(cache, scratch, list, nil, mg, 5, 5e14, 1e-4, false))
	first := cache.Total
	mg.ne = 1e20 // mutate the collaborator; cache must not recompute within tolerance

	require.NoError(t, ComputeKappaCont(cache, scratch, list, nil, mg, 5, 5e14*(1+1e-6), 1e-4, false))
	assert.Equal(t, first, cache.Total, "within tolerance, cache must return identical totals")

	cache.Invalidate()
	require.NoError(t, ComputeKappaCont(cache, scratch, list, nil, mg, 5, 5e14, 1e-4, false))
	assert.NotEqual(t, first, cache.Total, "after invalidation, cache must recompute")
}

func TestCacheMissOnCellChange(t *testing.T) {
	mg := &fakeModelGrid{ne: 1e9, te: 1e4}
	list := NewList(nil)
	scratch := NewScratch(list)
	cache := &Cache{}

	require.NoError(t, ComputeKappaCont(cache, scratch, list, nil, mg, 5, 5e14, 1e-4, false))
	mg.ne = 1e20
	require.NoError(t, ComputeKappaCont(cache, scratch, list, nil, mg, 6, 5e14, 1e-4, false))
	assert.NotEqual(t, SigmaT*1e9, cache.Es, "a different mgi must force a recompute")
}

func TestFreeFreeSkipsNeutralIons(t *testing.T) {
	mg := &fakeModelGrid{ne: 1e9, te: 1e4, ionPop: map[[2]int]float64{{0, 0}: 1e30, {0, 1}: 1e10}}
	species := []FreeFreeSpecies{{Element: 0, Ion: 0, ZEff: 0}, {Element: 0, Ion: 1, ZEff: 1}}
	ff := computeFF(species, mg, 0, mg.ne, mg.te, 5e14)
	assert.True(t, ff > 0)
	// A neutral-only population must contribute nothing.
	mg2 := &fakeModelGrid{ne: 1e9, te: 1e4, ionPop: map[[2]int]float64{{0, 0}: 1e30}}
	ffNeutral := computeFF([]FreeFreeSpecies{{Element: 0, Ion: 0, ZEff: 0}}, mg2, 0, mg2.ne, mg2.te, 5e14)
	assert.Equal(t, 0.0, ffNeutral)
}

func TestBoundFreeCumulativeSumPropagatesPastBreak(t *testing.T) {
	entries := []ContEntry{
		NewContEntry(0, 0, 0, 0, 0, 4e14, 1, 0.5, []float64{1e-18, 1e-18, 1e-18}),
		NewContEntry(0, 0, 0, 0, 0, 9e14, 1, 0.01, []float64{1e-18, 1e-18}),
	}
	list := NewList(entries)
	scratch := NewScratch(list)
	mg := &fakeModelGrid{
		ne: 1e9, te: 1e4,
		levelPop: map[[4]int]float64{{0, 0, 0, 0}: 1e20},
	}
	// nu sits above the first edge but below the second: the second
	// continuum's cumulative value must still equal the first's (propagated).
	bf := computeBF(list, scratch, mg, 0, mg.ne, mg.te, 5e14, true)
	assert.True(t, bf > 0)
	assert.Equal(t, scratch.CumulativeBF[0], scratch.CumulativeBF[1])
}

func TestNonFiniteFallsBackToThomson(t *testing.T) {
	mg := &fakeModelGrid{ne: 1e9, te: 0} // Te=0 -> division by zero in ff -> NaN/Inf
	list := NewList(nil)
	scratch := NewScratch(list)
	cache := &Cache{}
	species := []FreeFreeSpecies{{Element: 0, Ion: 1, ZEff: 1}}
	mg.ionPop = map[[2]int]float64{{0, 1}: 1}

	err := ComputeKappaCont(cache, scratch, list, species, mg, 0, 5e14, 1e-4, false)
	require.NoError(t, err)
	assert.True(t, cache.UsedThomsonFallback())
	assert.Equal(t, SigmaT*mg.ne, cache.Total)
}

func TestFatalWhenEsAlsoNonFinite(t *testing.T) {
	mg := &fakeModelGrid{ne: math.NaN(), te: 0}
	list := NewList(nil)
	scratch := NewScratch(list)
	cache := &Cache{}
	err := ComputeKappaCont(cache, scratch, list, nil, mg, 0, 5e14, 1e-4, false)
	assert.Error(t, err)
}
