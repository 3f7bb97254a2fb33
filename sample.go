package main

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Sample is the whole system under constraint. All quantities are in
// atomic units. Fields ending in R live on the real-space charge grid,
// flattened as (i1*N2+i2)*N3+i3; fields ending in G live on the
// corresponding reciprocal grid.
type Sample struct {
	R     [3][3]float64 // real-space lattice vectors, rows
	Gv    [3][3]float64 // reciprocal lattice vectors, rows
	Omega float64       // cell volume

	Atoms       []*Atom
	Fragments   []*Fragment
	Constraints []*Constraint

	N1, N2, N3 int
	Nspin      int // spin channels of the charge density
	// spin channels of the constraint potential. Stays 1 for
	// charge-only constraints even in spin-polarized systems.
	Vspin int

	RhoR      [][]float64 // charge density, per spin
	RhoProTot []float64   // total promolecule density

	// reciprocal-space reference density per species, normalized to
	// the species electron count at G=0
	RhoAtomG map[string][]complex128

	// Cartesian components of every G vector on the charge grid
	Gx, Gy, Gz []float64

	EdTotal float64 // engine total energy, constraint field included
	Ed      float64 // bare DFT energy
	Ec      float64 // energy attributable to the constraint field
	W       float64 // free energy, Ed + Ec - sum_k V_k N_k

	Fd [][3]float64 // engine force
	Fc [][3]float64 // constraint force
	Fw [][3]float64 // total force

	Wfc *Wavefunction
}

// NewSample builds a Sample from lattice vectors (rows, Bohr), the spin
// channel counts, and the charge FFT grid. It panics if the lattice is
// singular or the reciprocal construction fails its invariant.
func NewSample(cell [3][3]float64, nspin, vspin, n1, n2, n3 int) *Sample {
	s := &Sample{
		R:        cell,
		N1:       n1,
		N2:       n2,
		N3:       n3,
		Nspin:    nspin,
		Vspin:    vspin,
		RhoAtomG: make(map[string][]complex128),
	}
	r := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r.Set(i, j, cell[i][j])
		}
	}
	var inv mat.Dense
	if err := inv.Inverse(r); err != nil {
		panic(fmt.Sprintf("NewSample: singular lattice: %v", err))
	}
	// G = 2 pi (R^-1)^T
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			s.Gv[i][j] = 2 * math.Pi * inv.At(j, i)
		}
	}
	// R . G^T = 2 pi I
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var dot float64
			for k := 0; k < 3; k++ {
				dot += s.R[i][k] * s.Gv[j][k]
			}
			want := 0.0
			if i == j {
				want = 2 * math.Pi
			}
			if math.Abs(dot-want) > 1e-10 {
				panic("NewSample: reciprocal lattice invariant violated")
			}
		}
	}
	s.Omega = math.Abs(mat.Det(r))

	n := n1 * n2 * n3
	s.Gx = make([]float64, n)
	s.Gy = make([]float64, n)
	s.Gz = make([]float64, n)
	h1 := fftfreq(n1)
	h2 := fftfreq(n2)
	h3 := fftfreq(n3)
	for i1 := 0; i1 < n1; i1++ {
		for i2 := 0; i2 < n2; i2++ {
			for i3 := 0; i3 < n3; i3++ {
				i := s.Index(i1, i2, i3)
				f1, f2, f3 := float64(h1[i1]), float64(h2[i2]), float64(h3[i3])
				s.Gx[i] = f1*s.Gv[0][0] + f2*s.Gv[1][0] + f3*s.Gv[2][0]
				s.Gy[i] = f1*s.Gv[0][1] + f2*s.Gv[1][1] + f3*s.Gv[2][1]
				s.Gz[i] = f1*s.Gv[0][2] + f2*s.Gv[1][2] + f3*s.Gv[2][2]
			}
		}
	}

	s.RhoR = make([][]float64, nspin)
	for is := range s.RhoR {
		s.RhoR[is] = make([]float64, n)
	}
	return s
}

// N returns the number of grid points
func (s *Sample) N() int { return s.N1 * s.N2 * s.N3 }

// Index flattens a 3-D grid index
func (s *Sample) Index(i1, i2, i3 int) int {
	return (i1*s.N2+i2)*s.N3 + i3
}

// Natoms returns the number of atoms
func (s *Sample) Natoms() int { return len(s.Atoms) }

// Species returns the sorted set of element symbols present
func (s *Sample) Species() []string {
	seen := make(map[string]bool)
	for _, a := range s.Atoms {
		seen[a.Symbol] = true
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// AddFragment registers a fragment by atom indices and returns it
func (s *Sample) AddFragment(name string, atoms []int) *Fragment {
	for _, ia := range atoms {
		if ia < 0 || ia >= len(s.Atoms) {
			panic(fmt.Sprintf("AddFragment: atom index %d out of range", ia))
		}
	}
	f := &Fragment{Name: name, Atoms: atoms}
	s.Fragments = append(s.Fragments, f)
	return f
}

// FragmentByName looks a fragment up by name
func (s *Sample) FragmentByName(name string) *Fragment {
	for _, f := range s.Fragments {
		if f.Name == name {
			return f
		}
	}
	panic(fmt.Sprintf("FragmentByName: no fragment named %q", name))
}

// MaxForce returns the largest per-atom Euclidean norm of the total
// force and the index of the atom carrying it
func (s *Sample) MaxForce() (max float64, imax int) {
	for i, f := range s.Fw {
		norm := math.Sqrt(f[0]*f[0] + f[1]*f[1] + f[2]*f[2])
		if norm > max {
			max, imax = norm, i
		}
	}
	return
}

// RhoSpinSum returns the charge density summed over spin channels
func (s *Sample) RhoSpinSum() []float64 {
	sum := make([]float64, s.N())
	for _, rho := range s.RhoR {
		for i, v := range rho {
			sum[i] += v
		}
	}
	return sum
}

// Export writes the structure in the engine's command dialect: the
// cell, one species line per element, and one atom line per atom with
// the engine's SymbolIndex labels.
func (s *Sample) Export(pseudos map[string]string) string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "set cell")
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			fmt.Fprintf(&buf, " %.6f", s.R[i][j])
		}
	}
	fmt.Fprint(&buf, "\n\n")
	for _, sp := range s.Species() {
		fmt.Fprintf(&buf, "species %s %s\n", sp, pseudos[sp])
	}
	fmt.Fprint(&buf, "\n")
	for i, a := range s.Atoms {
		fmt.Fprintf(&buf, "atom %s%d %s  %.8f  %.8f  %.8f\n",
			a.Symbol, i+1, a.Symbol,
			a.Coord[0], a.Coord[1], a.Coord[2])
	}
	return buf.String()
}

func (s *Sample) String() string {
	return fmt.Sprintf("cell %s natoms=%d grid=%dx%dx%d omega=%.3f",
		MakeName(s.Atoms), s.Natoms(), s.N1, s.N2, s.N3, s.Omega)
}
