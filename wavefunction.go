package main

import (
	"fmt"
	"math"
)

// Orbital is one Kohn-Sham orbital, uniquely keyed by (spin, k-point,
// band) and by its dense index in the owning Wavefunction
type Orbital struct {
	Spin, Kpt, Band int
	Occ             float64

	PsiG []complex128 // reciprocal-space representation
	psiR []float64    // lazily materialized, normalized real-space form
}

// Wavefunction is a dense, ordered collection of orbitals with a
// bidirectional (spin, k-point, band) <-> index map built once at
// construction. The same orbital is never stored under two
// independently mutable keys.
type Wavefunction struct {
	Sample     *Sample
	M1, M2, M3 int // wavefunction grid, may differ from the charge grid

	Nspin, Nkpt int
	Nbnd        [][]int // bands per (spin, k-point)

	Orbitals []*Orbital
	index    map[[3]int]int
}

// NewWavefunction allocates the orbital collection. Only the gamma
// point is supported. The dense index runs bands fastest, then
// k-points, then spins.
func NewWavefunction(s *Sample, m1, m2, m3, nspin, nkpt int, nbnd [][]int) *Wavefunction {
	if nkpt != 1 {
		panic("NewWavefunction: k-points beyond gamma are not supported")
	}
	w := &Wavefunction{
		Sample: s,
		M1:     m1, M2: m2, M3: m3,
		Nspin: nspin,
		Nkpt:  nkpt,
		Nbnd:  nbnd,
		index: make(map[[3]int]int),
	}
	for is := 0; is < nspin; is++ {
		for ik := 0; ik < nkpt; ik++ {
			for ib := 0; ib < nbnd[is][ik]; ib++ {
				w.index[[3]int{is, ik, ib}] = len(w.Orbitals)
				w.Orbitals = append(w.Orbitals,
					&Orbital{Spin: is, Kpt: ik, Band: ib})
			}
		}
	}
	return w
}

// M returns the number of wavefunction grid points
func (w *Wavefunction) M() int { return w.M1 * w.M2 * w.M3 }

// Norb returns the total orbital count over all spins and k-points
func (w *Wavefunction) Norb() int { return len(w.Orbitals) }

// Idx returns the dense index of (spin, k-point, band), or -1 if the
// key is out of range
func (w *Wavefunction) Idx(ispin, ikpt, ibnd int) int {
	idx, ok := w.index[[3]int{ispin, ikpt, ibnd}]
	if !ok {
		return -1
	}
	return idx
}

// SetPsiG stores an orbital's reciprocal-space representation and
// drops any cached real-space form
func (w *Wavefunction) SetPsiG(ispin, ikpt, ibnd int, psig []complex128) {
	idx := w.Idx(ispin, ikpt, ibnd)
	if idx < 0 {
		panic(fmt.Sprintf("SetPsiG: orbital (%d,%d,%d) out of range",
			ispin, ikpt, ibnd))
	}
	if len(psig) != w.M() {
		panic("SetPsiG: representation does not match the wavefunction grid")
	}
	w.Orbitals[idx].PsiG = psig
	w.Orbitals[idx].psiR = nil
}

// PsiR materializes an orbital on the real-space grid, normalizing so
// that the discretized norm integrates to one over the cell. The
// transform is computed once and cached.
func (w *Wavefunction) PsiR(idx int) []float64 {
	orb := w.Orbitals[idx]
	if orb.psiR != nil {
		return orb.psiR
	}
	if orb.PsiG == nil {
		panic(fmt.Sprintf("PsiR: orbital %d has no reciprocal representation", idx))
	}
	tmp := make([]complex128, len(orb.PsiG))
	copy(tmp, orb.PsiG)
	IFFT3(tmp, w.M1, w.M2, w.M3)
	psir := realPart(tmp, "orbital")
	var norm2 float64
	for _, v := range psir {
		norm2 += v * v
	}
	norm := math.Sqrt(norm2 * w.Sample.Omega / float64(w.M()))
	if norm == 0 {
		panic(fmt.Sprintf("PsiR: orbital %d has zero norm", idx))
	}
	for i := range psir {
		psir[i] /= norm
	}
	orb.psiR = psir
	return psir
}
