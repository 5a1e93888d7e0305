package main

import (
	"github.com/sedna-rt/rpkt/linelist"
	"github.com/sedna-rt/rpkt/model"
)

const (
	demoNElements = 1
	demoNIons     = 2
)

// demoGrid is a single cubic cell spanning [-1e16, 1e16] cm on a side at
// t_min, with every face an escape face: the minimal geometry that still
// exercises boundary_cross and the outer-escape path.
type demoGrid struct{}

func newDemoGrid() *demoGrid { return &demoGrid{} }

func (d *demoGrid) CellModelIndex(cellIndex int) int            { return 0 }
func (d *demoGrid) CellCoordMin(cellIndex, axis int) float64    { return -1e16 }
func (d *demoGrid) CellWidth(cellIndex, axis int) float64       { return 2e16 }
func (d *demoGrid) NeighbourCell(cellIndex, face int) int       { return model.EscapeSentinel }
func (d *demoGrid) GridType() model.GridType                   { return model.Uniform3DCartesian }

// demoModelGrid is a single LTE-ish cell with a trace ionized species, just
// enough state for the continuum opacity kernel to produce a non-zero,
// finite result.
type demoModelGrid struct{}

func newDemoModelGrid() *demoModelGrid { return &demoModelGrid{} }

func (d *demoModelGrid) ElectronDensity(int) float64 { return 1e8 }
func (d *demoModelGrid) TemperatureE(int) float64    { return 8000 }
func (d *demoModelGrid) MassDensity(int) float64     { return 1e-13 }
func (d *demoModelGrid) IsThick(int) bool            { return false }
func (d *demoModelGrid) GreyOpacity(int) float64     { return 0.1 }
func (d *demoModelGrid) ElementAbundance(_, _ int) float64 { return 1.0 }
func (d *demoModelGrid) IonPopulation(_, _, ion int) float64 {
	if ion == 1 {
		return 1e8
	}
	return 0
}
func (d *demoModelGrid) LevelPopulation(_, _, ion, level int) float64 {
	if ion == 0 && level == 0 {
		return 1e6
	}
	return 0
}
func (d *demoModelGrid) StatWeight(_, _, level int) float64 {
	if level == 0 {
		return 2
	}
	return 4
}
func (d *demoModelGrid) EinsteinA(int) float64 { return 1e8 }
func (d *demoModelGrid) SahaFactor(_, _, _, _ int, _, _ float64) float64 { return 1e-10 }
func (d *demoModelGrid) PhixsUpperLevel(_, _, _, _ int) int { return 0 }

// demoLines returns a short, descending-by-frequency linelist spanning the
// demo packet's launch frequency so get_event has something to resonate
// against.
func demoLines() []linelist.Line {
	return []linelist.Line{
		{Nu: 6e14, EinsteinA: 5e7, ElementIndex: 0, IonIndex: 0, UpperLevel: 1, LowerLevel: 0},
		{Nu: 5.2e14, EinsteinA: 5e7, ElementIndex: 0, IonIndex: 0, UpperLevel: 1, LowerLevel: 0},
		{Nu: 4.5e14, EinsteinA: 5e7, ElementIndex: 0, IonIndex: 0, UpperLevel: 1, LowerLevel: 0},
	}
}
