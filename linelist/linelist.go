// Package linelist implements the sorted-linelist Doppler-resonance search.
// The list is immutable and process-wide, shared read-only across
// workers; this package only ever searches it.
package linelist

// Line is one bound-bound transition, ordered by descending Nu in the
// parent List.
type Line struct {
	Nu           float64
	EinsteinA    float64
	OscStrength  float64
	CollStr      float64
	ElementIndex int
	IonIndex     int
	UpperLevel   int
	LowerLevel   int
	Forbidden    bool
}

// List is the immutable, descending-by-Nu sorted linelist.
type List struct {
	lines []Line
}

// New wraps a slice already sorted by descending Nu. The caller owns
// sorting; this package never mutates it.
func New(lines []Line) *List {
	return &List{lines: lines}
}

// Len returns the number of lines.
func (l *List) Len() int { return len(l.lines) }

// At returns the line at index i.
func (l *List) At(i int) Line { return l.lines[i] }

// NoMoreLines is returned by ClosestTransition when nuCmf is below the
// reddest line: no further interaction is possible for this packet.
const NoMoreLines = -1

// ClosestTransition finds the next redder line a packet at frequency nuCmf
// should test for resonance, starting its search from nextTrans.
//
// If nextTrans > 0 the index is returned unchanged -- re-searching would
// let floating point drift spuriously conclude the packet is no longer
// resonant with the line it is already at. A nextTrans past the last line
// returns NoMoreLines.
func (l *List) ClosestTransition(nuCmf float64, nextTrans int) int {
	n := len(l.lines)
	if n == 0 || nuCmf < l.lines[n-1].Nu {
		return NoMoreLines
	}
	if nextTrans > 0 {
		if nextTrans >= n {
			return NoMoreLines
		}
		return nextTrans
	}
	if nuCmf >= l.lines[0].Nu {
		return 0
	}
	return l.search(nuCmf, 0, n)
}

// ClosestTransitionEmpty re-seats next_trans after a packet crosses an
// empty or thick cell, where many lines may have been skipped silently in
// a single step. Unlike ClosestTransition it always performs the binary
// search, never the "already there" short-circuit.
func (l *List) ClosestTransitionEmpty(nuCmf float64) int {
	n := len(l.lines)
	if n == 0 || nuCmf < l.lines[n-1].Nu {
		return n + 1
	}
	if nuCmf >= l.lines[0].Nu {
		return 0
	}
	return l.search(nuCmf, 0, n)
}

// search returns the first index in [lo,hi) whose Nu <= nuCmf, i.e. the
// index of the largest transition frequency not exceeding nuCmf. The list
// is sorted descending, so this is a binary search on a monotonically
// decreasing sequence.
func (l *List) search(nuCmf float64, lo, hi int) int {
	for lo < hi {
		mid := (lo + hi) / 2
		if l.lines[mid].Nu <= nuCmf {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}
