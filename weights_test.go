package main

import (
	"math"
	"math/cmplx"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestReadRadial(t *testing.T) {
	content := `# r rho
0.0 1.0
0.1 0.8

0.2 0.5 # tail comment
`
	filename := filepath.Join(t.TempDir(), "h.dat")
	if err := os.WriteFile(filename, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	rd, rho, err := ReadRadial(filename)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(rd, []float64{0, 0.1, 0.2}) {
		t.Errorf("got radii %v, wanted [0 0.1 0.2]\n", rd)
	}
	if !reflect.DeepEqual(rho, []float64{1, 0.8, 0.5}) {
		t.Errorf("got densities %v, wanted [1 0.8 0.5]\n", rho)
	}

	t.Run("malformed line", func(t *testing.T) {
		filename := filepath.Join(t.TempDir(), "bad.dat")
		if err := os.WriteFile(filename, []byte("0.1 0.2 0.3\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, _, err := ReadRadial(filename); err == nil {
			t.Errorf("expected an error\n")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, _, err := ReadRadial("does/not/exist.dat"); err == nil {
			t.Errorf("expected an error\n")
		}
	})
}

// gaussianRadial tabulates exp(-r^2/(2 sigma^2)) on a uniform grid
func gaussianRadial(sigma, rmax float64, npts int) (rd, rho []float64) {
	rd = make([]float64, npts)
	rho = make([]float64, npts)
	dr := rmax / float64(npts-1)
	for i := range rd {
		r := float64(i) * dr
		rd[i] = r
		rho[i] = math.Exp(-r * r / (2 * sigma * sigma))
	}
	return
}

func TestSpeciesDensityFromRadial(t *testing.T) {
	s := cubicSample(8, 12)
	rd, rho := gaussianRadial(1.2, 6, 300)
	s.SpeciesDensityFromRadial("O", rd, rho, 6)
	rhog, ok := s.RhoAtomG["O"]
	if !ok {
		t.Fatalf("species density not registered\n")
	}
	// G=0 normalizes to the electron count exactly
	if math.Abs(real(rhog[0])-6) > 1e-12 || imag(rhog[0]) != 0 {
		t.Errorf("got %v at G=0, wanted 6\n", rhog[0])
	}
	// equal |G| share one value
	i100 := s.Index(1, 0, 0)
	i010 := s.Index(0, 1, 0)
	if rhog[i100] != rhog[i010] {
		t.Errorf("got %v and %v for equal |G|, wanted equal\n",
			rhog[i100], rhog[i010])
	}
	// the transform decays with |G|
	i200 := s.Index(2, 0, 0)
	if !(real(rhog[i200]) < real(rhog[i100]) && real(rhog[i100]) < 6) {
		t.Errorf("transform not decaying: %v, %v, 6\n",
			rhog[i200], rhog[i100])
	}

	t.Run("bad table panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Errorf("expected panic\n")
			}
		}()
		s.SpeciesDensityFromRadial("O", []float64{0, 1}, []float64{1}, 6)
	})
}

func TestSpeciesDensityFromCube(t *testing.T) {
	s := cubicSample(10, 4)
	data := make([]float64, s.N())
	for i := range data {
		data[i] = 0.25
	}
	filename := filepath.Join(t.TempDir(), "h.cube")
	if err := WriteCube(filename, s, data); err != nil {
		t.Fatal(err)
	}
	if err := s.SpeciesDensityFromCube("H", filename); err != nil {
		t.Fatal(err)
	}
	rhog, ok := s.RhoAtomG["H"]
	if !ok {
		t.Fatalf("species density not registered\n")
	}
	// a uniform field carries only the G=0 component, its cell integral
	if math.Abs(real(rhog[0])-0.25*s.Omega) > 1e-8 {
		t.Errorf("got %v at G=0, wanted %v\n", rhog[0], 0.25*s.Omega)
	}
	for i := 1; i < len(rhog); i++ {
		if cmplx.Abs(rhog[i]) > 1e-8 {
			t.Fatalf("got %v at G index %d, wanted 0\n", rhog[i], i)
		}
	}

	t.Run("grid mismatch", func(t *testing.T) {
		other := cubicSample(10, 6)
		if err := other.SpeciesDensityFromCube("H", filename); err == nil {
			t.Errorf("expected an error\n")
		}
	})
}

// atomDensityR materializes one atom's reference density in real space,
// the same construction UpdateWeights accumulates in reciprocal space
func atomDensityR(s *Sample, symbol string, r [3]float64) []float64 {
	rhog := s.RhoAtomG[symbol]
	ph := s.Phase(r)
	tmp := make([]complex128, s.N())
	for i := range tmp {
		tmp[i] = rhog[i] * ph[i]
	}
	IFFT3(tmp, s.N1, s.N2, s.N3)
	out := make([]float64, s.N())
	scale := float64(s.N()) / s.Omega
	for i := range tmp {
		out[i] = scale * real(tmp[i])
	}
	return out
}

func TestUpdateWeights(t *testing.T) {
	s := cubicSample(8, 12)
	rd, rho := gaussianRadial(1.2, 6, 300)
	s.SpeciesDensityFromRadial("H", rd, rho, 1)
	s.Atoms = []*Atom{{Symbol: "H", Coord: [3]float64{4, 4, 4}}}
	f := s.AddFragment("all", []int{0})
	c := NewCharge(s, f, 1, 0.3, math.NaN(), math.NaN(), 1e-3)
	s.UpdateWeights()

	// promolecule integrates to the electron count
	var sum float64
	for _, v := range s.RhoProTot {
		sum += v
	}
	if got := sum * s.Omega / float64(s.N()); math.Abs(got-1) > 1e-8 {
		t.Errorf("promolecule integrates to %v, wanted 1\n", got)
	}
	// a single constrained fragment owning the only atom has weight one
	// wherever the promolecule survives the cutoff
	for i, w := range c.Weight {
		if s.RhoProTot[i] < chargeEps {
			if w != 0 {
				t.Fatalf("point %d: weight %v under cutoff, wanted 0\n", i, w)
			}
			continue
		}
		if math.Abs(w-1) > 1e-10 {
			t.Fatalf("point %d: got weight %v, wanted 1\n", i, w)
		}
	}
	// Vc follows V*w
	if got := c.Vc[0][s.Index(6, 6, 6)]; math.Abs(got-0.3) > 1e-10 {
		t.Errorf("got Vc %v at the atom, wanted 0.3\n", got)
	}
}

func TestTransferWeightAntisymmetry(t *testing.T) {
	s := cubicSample(8, 12)
	rd, rho := gaussianRadial(1.0, 6, 300)
	s.SpeciesDensityFromRadial("H", rd, rho, 1)
	s.Atoms = []*Atom{
		{Symbol: "H", Coord: [3]float64{3, 4, 4}},
		{Symbol: "H", Coord: [3]float64{5, 4, 4}},
	}
	d := s.AddFragment("d", []int{0})
	a := s.AddFragment("a", []int{1})
	fwd := NewTransfer(s, d, a, 1, 0, math.NaN(), math.NaN(), 1e-3)
	rev := NewTransfer(s, a, d, 1, 0, math.NaN(), math.NaN(), 1e-3)
	s.UpdateWeights()

	for i := range fwd.Weight {
		if math.Abs(fwd.Weight[i]+rev.Weight[i]) > 1e-12 {
			t.Fatalf("point %d: %v and %v not antisymmetric\n",
				i, fwd.Weight[i], rev.Weight[i])
		}
	}
}

func TestWeightGradFiniteDifference(t *testing.T) {
	s := cubicSample(8, 12)
	rd, rho := gaussianRadial(1.2, 6, 300)
	s.SpeciesDensityFromRadial("H", rd, rho, 1)
	pos := [3]float64{4, 4, 4}
	s.Atoms = []*Atom{{Symbol: "H", Coord: pos}}

	grad := s.RhoAtomGradR(s.Atoms[0])
	const h = 1e-4
	for ax := 0; ax < 3; ax++ {
		plus, minus := pos, pos
		plus[ax] += h
		minus[ax] -= h
		rp := atomDensityR(s, "H", plus)
		rm := atomDensityR(s, "H", minus)
		var maxErr, maxVal float64
		for i := range rp {
			// displacing the nucleus by +h shifts the field like a
			// -h translation of space
			fd := -(rp[i] - rm[i]) / (2 * h)
			if e := math.Abs(grad[ax][i] - fd); e > maxErr {
				maxErr = e
			}
			if v := math.Abs(grad[ax][i]); v > maxVal {
				maxVal = v
			}
		}
		if maxVal == 0 {
			t.Fatalf("axis %d: gradient identically zero\n", ax)
		}
		if maxErr > 1e-5*maxVal {
			t.Errorf("axis %d: max deviation %v against scale %v\n",
				ax, maxErr, maxVal)
		}
	}
}
