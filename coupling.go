package main

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Snapshot captures the state of one converged solve that the
// coupling analysis needs: density, energies, the total constraint
// potential, and the wavefunction. It deliberately carries no engine
// session, so branching two electronic states never duplicates
// adapter handles.
type Snapshot struct {
	Sample *Sample
	Ed, Ec float64
	W      float64
	RhoR   [][]float64
	VcTot  []float64 // spin channel 0 of the total constraint potential
	Wfc    *Wavefunction
}

// Snapshot captures the Solver's current converged state
func (s *Solver) Snapshot() *Snapshot {
	smp := s.Sample
	rho := make([][]float64, len(smp.RhoR))
	for i, r := range smp.RhoR {
		rho[i] = append([]float64(nil), r...)
	}
	var vc []float64
	if len(s.VcTot) > 0 {
		vc = append([]float64(nil), s.VcTot[0]...)
	}
	return &Snapshot{
		Sample: smp,
		Ed:     smp.Ed,
		Ec:     smp.Ec,
		W:      smp.W,
		RhoR:   rho,
		VcTot:  vc,
		Wfc:    smp.Wfc,
	}
}

// Coupling computes the electronic coupling |Hab| between two
// converged diabatic states: the orbital overlap matrix and its
// cofactors, the constraint-potential matrix element with the averaged
// potential, and the Lowdin-orthogonalized 2x2 Hamiltonian. Gamma
// point, one potential spin channel.
func Coupling(a, b *Snapshot) (float64, error) {
	wa, wb := a.Wfc, b.Wfc
	if wa == nil || wb == nil {
		return 0, fmt.Errorf("coupling: snapshot carries no wavefunction")
	}
	if wa.Nspin != wb.Nspin || wa.Nkpt != wb.Nkpt || wa.Norb() != wb.Norb() {
		return 0, fmt.Errorf("coupling: wavefunction shapes differ")
	}
	if a.VcTot == nil || b.VcTot == nil {
		return 0, fmt.Errorf("coupling: snapshot carries no constraint potential")
	}
	smp := a.Sample
	norb := wa.Norb()
	m := wa.M()
	fac := smp.Omega / float64(m)

	// orbital overlap matrix, block diagonal in spin
	O := mat.NewDense(norb, norb, nil)
	for i := 0; i < norb; i++ {
		O.Set(i, i, 1)
	}
	for is := 0; is < wa.Nspin; is++ {
		for ib := 0; ib < wa.Nbnd[is][0]; ib++ {
			for jb := 0; jb < wa.Nbnd[is][0]; jb++ {
				i := wa.Idx(is, 0, ib)
				j := wa.Idx(is, 0, jb)
				pi, pj := wa.PsiR(i), wb.PsiR(j)
				var sum float64
				for k := range pi {
					sum += pi[k] * pj[k]
				}
				O.Set(i, j, fac*sum)
			}
		}
	}
	odet := mat.Det(O)
	var oinv mat.Dense
	if err := oinv.Inverse(O); err != nil {
		return 0, fmt.Errorf("coupling: overlap matrix singular: %v", err)
	}
	// cofactor matrix
	C := mat.NewDense(norb, norb, nil)
	C.Scale(odet, oinv.T())

	// averaged constraint potential on the wavefunction grid
	vc := make([]float64, len(a.VcTot))
	for i := range vc {
		vc[i] = 0.5 * (a.VcTot[i] + b.VcTot[i])
	}
	vcw, err := Regrid(vc, smp.N1, smp.N2, smp.N3, wa.M1, wa.M2, wa.M3)
	if err != nil {
		return 0, err
	}

	// constraint potential matrix P and Vab = tr(P C)
	var vab float64
	for is := 0; is < wa.Nspin; is++ {
		for ib := 0; ib < wa.Nbnd[is][0]; ib++ {
			for jb := 0; jb < wa.Nbnd[is][0]; jb++ {
				i := wa.Idx(is, 0, ib)
				j := wa.Idx(is, 0, jb)
				pi, pj := wa.PsiR(i), wb.PsiR(j)
				var sum float64
				for k := range pi {
					sum += pi[k] * vcw[k] * pj[k]
				}
				vab += fac * sum * C.At(j, i)
			}
		}
	}

	// H between nonorthogonal diabatic states
	fa := a.Ed + a.Ec
	fb := b.Ed + b.Ec
	h01 := 0.5*(fa+fb)*odet - vab
	H := mat.NewSymDense(2, []float64{a.Ed, h01, h01, b.Ed})
	S := mat.NewSymDense(2, []float64{1, odet, odet, 1})

	// Lowdin orthogonalization: Hsymm = S^-1/2 H S^-1/2
	var eig mat.EigenSym
	if !eig.Factorize(S, true) {
		return 0, fmt.Errorf("coupling: state overlap eigendecomposition failed")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	inv := mat.NewDense(2, 2, nil)
	for k := 0; k < 2; k++ {
		if vals[k] <= 0 {
			return 0, fmt.Errorf("coupling: state overlap not positive definite")
		}
		s := 1 / math.Sqrt(vals[k])
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				inv.Set(i, j, inv.At(i, j)+
					s*vecs.At(i, k)*vecs.At(j, k))
			}
		}
	}
	var tmp, hsym mat.Dense
	tmp.Mul(inv, H)
	hsym.Mul(&tmp, inv)
	return math.Abs(hsym.At(0, 1)), nil
}

// Regrid moves a real-space field between two FFT grids by truncating
// or zero-padding its spectrum
func Regrid(src []float64, n1, n2, n3, m1, m2, m3 int) ([]float64, error) {
	if n1 == m1 && n2 == m2 && n3 == m3 {
		return append([]float64(nil), src...), nil
	}
	g := make([]complex128, len(src))
	for i, v := range src {
		g[i] = complex(v, 0)
	}
	FFT3(g, n1, n2, n3)
	out := make([]complex128, m1*m2*m3)
	for i1, h1 := range fftfreq(n1) {
		j1, ok1 := freqIndex(h1, m1)
		if !ok1 {
			continue
		}
		for i2, h2 := range fftfreq(n2) {
			j2, ok2 := freqIndex(h2, m2)
			if !ok2 {
				continue
			}
			for i3, h3 := range fftfreq(n3) {
				j3, ok3 := freqIndex(h3, m3)
				if !ok3 {
					continue
				}
				out[(j1*m2+j2)*m3+j3] = g[(i1*n2+i2)*n3+i3]
			}
		}
	}
	IFFT3(out, m1, m2, m3)
	scale := float64(m1*m2*m3) / float64(n1*n2*n3)
	res := make([]float64, len(out))
	for i, v := range out {
		res[i] = scale * real(v)
	}
	return res, nil
}

// freqIndex maps an integer frequency onto an n-point grid's storage
// index, reporting false when the frequency does not fit
func freqIndex(h, n int) (int, bool) {
	if h >= 0 {
		if h >= (n+1)/2 {
			return 0, false
		}
		return h, true
	}
	if -h > n/2 {
		return 0, false
	}
	return h + n, true
}
