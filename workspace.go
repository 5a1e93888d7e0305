package rpkt

import (
	"github.com/sedna-rt/rpkt/config"
	"github.com/sedna-rt/rpkt/estimator"
	"github.com/sedna-rt/rpkt/linelist"
	"github.com/sedna-rt/rpkt/model"
	"github.com/sedna-rt/rpkt/opacity"
)

// Workspace is the per-thread context the stepper needs: an opacity cache
// and a phixs scratch, ephemeral within a step, plus read-only handles to
// the process-wide collaborators. One Workspace belongs to exactly one
// worker for a packet's entire step.
type Workspace struct {
	Grid       model.GridQuery
	ModelGrid  model.ModelGridQuery
	Lines      *linelist.List
	Cont       *opacity.List
	FF         []opacity.FreeFreeSpecies
	Estimators *estimator.Arrays
	Cfg        *config.CoreConfig
	RNG        model.RNG
	TMin       float64
	ThreadID   int

	// LineAbsorptionCounts, if non-nil, is incremented on a bound-bound
	// event only when ThreadID == 0, avoiding atomics on a counter that
	// is a diagnostic, not a correctness-critical accumulator.
	LineAbsorptionCounts []uint64

	cache   opacity.Cache
	scratch *opacity.Scratch
}

// NewWorkspace allocates a per-thread Workspace. cont and ff may be nil for
// a model with no continuum opacity.
func NewWorkspace(
	grid model.GridQuery, mg model.ModelGridQuery, lines *linelist.List,
	cont *opacity.List, ff []opacity.FreeFreeSpecies, est *estimator.Arrays,
	cfg *config.CoreConfig, gen model.RNG, tMin float64, threadID int,
) *Workspace {
	if cont == nil {
		cont = opacity.NewList(nil)
	}
	return &Workspace{
		Grid: grid, ModelGrid: mg, Lines: lines, Cont: cont, FF: ff,
		Estimators: est, Cfg: cfg, RNG: gen, TMin: tMin, ThreadID: threadID,
		scratch: opacity.NewScratch(cont),
	}
}

// ResetCache invalidates the opacity cache, as the stepper does on entering
// a new cell.
func (ws *Workspace) ResetCache() { ws.cache.Invalidate() }

// opacityComputeAt fills ws.cache with the continuum opacity breakdown at
// (mgi, nuCmf), using the cache's opacity-hit tolerance.
func opacityComputeAt(ws *Workspace, mgi int, nuCmf float64) error {
	return opacity.ComputeKappaCont(
		&ws.cache, ws.scratch, ws.Cont, ws.FF, ws.ModelGrid, mgi, nuCmf,
		ws.Cfg.OpacityCacheRelTol, ws.Cfg.SeparateStimRecomb,
	)
}
