package main

import (
	"fmt"
	"math"
	"strings"
)

// Atom is one atom in the Sample's cell. Coordinates are absolute, in
// Bohr. The crystal-coordinate view is derived through the lattice.
type Atom struct {
	Symbol string
	Coord  [3]float64
}

// CryCoord returns a's crystal coordinates in s's cell
func (a *Atom) CryCoord(s *Sample) (cry [3]float64) {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			cry[i] += a.Coord[j] * s.Gv[i][j]
		}
		cry[i] /= 2 * math.Pi
	}
	return
}

// SetCryCoord sets a's absolute coordinates from crystal coordinates
func (a *Atom) SetCryCoord(s *Sample, cry [3]float64) {
	for j := 0; j < 3; j++ {
		a.Coord[j] = 0
		for i := 0; i < 3; i++ {
			a.Coord[j] += cry[i] * s.R[i][j]
		}
	}
}

func (a *Atom) String() string {
	return fmt.Sprintf("%s %.6f %.6f %.6f",
		a.Symbol, a.Coord[0], a.Coord[1], a.Coord[2])
}

// Fragment references a subset of the Sample's atoms by index. It never
// owns the atoms. RhoPro is the fragment's promolecule density on the
// charge grid, refreshed by Sample.UpdateWeights whenever the geometry
// changes.
type Fragment struct {
	Name   string
	Atoms  []int
	RhoPro []float64
}

// Contains reports whether atom index ia belongs to f
func (f *Fragment) Contains(ia int) bool {
	for _, a := range f.Atoms {
		if a == ia {
			return true
		}
	}
	return false
}

// atomicNumbers maps element symbols to nuclear charges for the cube
// header. Extend as needed.
var atomicNumbers = map[string]int{
	"H": 1, "He": 2, "Li": 3, "Be": 4, "B": 5, "C": 6, "N": 7, "O": 8,
	"F": 9, "Ne": 10, "Na": 11, "Mg": 12, "Al": 13, "Si": 14, "P": 15,
	"S": 16, "Cl": 17, "Ar": 18, "K": 19, "Ca": 20, "Ti": 22, "Fe": 26,
	"Co": 27, "Ni": 28, "Cu": 29, "Zn": 30, "Br": 35, "Ag": 47, "I": 53,
	"Au": 79,
}

// AtomicNumber returns the nuclear charge for symbol, or 0 with a
// warning if the symbol is unknown
func AtomicNumber(symbol string) int {
	z, ok := atomicNumbers[capitalize(symbol)]
	if !ok {
		Warn("unknown element %q in cube header", symbol)
	}
	return z
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
