// Package model declares the external collaborator interfaces that the
// packet-propagation core consumes but does not implement: grid geometry,
// model-grid physical state, radiation-field callbacks, and the packet
// hand-off points to subsystems outside this core (macro-atom, k-packet
// thermal pool, escape collection).
package model

// PacketType is the closed sum of packet kinds a driver may see. Only
// RPacket is ever dispatched by this core; the others are terminal as far
// as this package is concerned and are handed back to the caller.
type PacketType int

const (
	RPacket PacketType = iota
	KPacket
	MacroAtom
	Escape
)

func (t PacketType) String() string {
	switch t {
	case RPacket:
		return "RPacket"
	case KPacket:
		return "KPacket"
	case MacroAtom:
		return "MacroAtom"
	case Escape:
		return "Escape"
	default:
		return "Unknown"
	}
}

// EventKind distinguishes the two physical event classes get_event can
// resolve.
type EventKind int

const (
	BoundBound EventKind = iota
	Continuum
)

// GridType names a topology the core's boundary-crossing solver supports.
type GridType int

const (
	Uniform3DCartesian GridType = iota
	Spherical1D
)

// EmptyCell is the sentinel model-grid index for cells outside the ejecta.
const EmptyCell = -1

// EscapeSentinel is the neighbour-cell index returned by boundary crossing
// when the packet has reached the outermost grid face.
const EscapeSentinel = -99

// NoFace marks "no face last crossed" (packet just emitted, or just entered
// a new cell by handoff rather than by a boundary crossing).
const NoFace = -1

// GridQuery is the geometry collaborator: cell shape, neighbour lookup, and
// the mapping from cell index to model-grid index.
type GridQuery interface {
	// CellModelIndex maps a cell index to its model-grid index, or
	// EmptyCell if the cell lies outside the ejecta.
	CellModelIndex(cellIndex int) int
	// CellCoordMin returns the coordinate-min corner of a cell along axis d,
	// evaluated at t_min (homologous scaling is applied by the caller).
	CellCoordMin(cellIndex, d int) float64
	// CellWidth returns the width of a cell along axis d at t_min.
	CellWidth(cellIndex, d int) float64
	// NeighbourCell returns the cell index across the given face, or
	// EscapeSentinel if face is the outermost grid face. face is one of
	// the six Cartesian faces (±X, ±Y, ±Z) or, for spherical grids, the
	// inner/outer shell.
	NeighbourCell(cellIndex, face int) int
	// GridType reports the grid topology, which selects the boundary
	// crossing algorithm (Cartesian vs. spherical).
	GridType() GridType
}

// ModelGridQuery is the physical-state collaborator.
type ModelGridQuery interface {
	ElectronDensity(mgi int) float64
	TemperatureE(mgi int) float64
	MassDensity(mgi int) float64
	IsThick(mgi int) bool
	GreyOpacity(mgi int) float64
	ElementAbundance(mgi, element int) float64
	IonPopulation(mgi, element, ion int) float64
	LevelPopulation(mgi, element, ion, level int) float64
	StatWeight(element, ion, level int) float64
	EinsteinA(lineIndex int) float64
	// SahaFactor returns the Saha-equation ratio linking populations above
	// and below an ionization threshold, used for the stimulated
	// recombination correction in the bf opacity.
	SahaFactor(element, ion, lowerLevel, upperLevel int, tE, nu float64) float64
	PhixsUpperLevel(element, ion, level, phixsTargetIndex int) int
}

// RadiationFieldSink receives the per-segment Monte Carlo estimator
// contributions; it owns the shared accumulator arrays.
type RadiationFieldSink interface {
	UpdateEstimators(mgi int, lDotECmf, nuCmf float64)
	UpdateLineEstimator(mgi, lineIndex int, weight float64)
}

// RNG is the thread-local random source the core draws from. uniform_pos
// excludes 0 so that -ln(U) is always finite.
type RNG interface {
	Uniform() float64
	UniformPos() float64
	IsotropicUnitVector() [3]float64
}
