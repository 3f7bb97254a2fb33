package main

import (
	"math"
	"testing"
)

func TestWavefunctionIdx(t *testing.T) {
	s := cubicSample(8, 4)
	w := NewWavefunction(s, 4, 4, 4, 2, 1, [][]int{{3}, {2}})
	if w.Norb() != 5 {
		t.Errorf("got %d orbitals, wanted 5\n", w.Norb())
	}
	// bands run fastest, then spins
	tests := []struct {
		spin, kpt, band, want int
	}{
		{0, 0, 0, 0},
		{0, 0, 2, 2},
		{1, 0, 0, 3},
		{1, 0, 1, 4},
		{1, 0, 2, -1},
		{2, 0, 0, -1},
	}
	for _, test := range tests {
		if got := w.Idx(test.spin, test.kpt, test.band); got != test.want {
			t.Errorf("(%d,%d,%d): got %d, wanted %d\n",
				test.spin, test.kpt, test.band, got, test.want)
		}
	}

	t.Run("multiple k-points panic", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Errorf("expected panic\n")
			}
		}()
		NewWavefunction(s, 4, 4, 4, 1, 2, [][]int{{1, 1}})
	})
}

func TestPsiR(t *testing.T) {
	s := cubicSample(2, 4) // omega = 8
	w := NewWavefunction(s, 4, 4, 4, 1, 1, [][]int{{1}})
	// a pure G=0 orbital is uniform; the arbitrary amplitude must wash
	// out in the normalization
	psig := make([]complex128, w.M())
	psig[0] = 3
	w.SetPsiG(0, 0, 0, psig)
	psir := w.PsiR(0)
	want := 1 / math.Sqrt(s.Omega)
	for i, v := range psir {
		if math.Abs(v-want) > 1e-12 {
			t.Fatalf("point %d: got %v, wanted %v\n", i, v, want)
		}
	}
	// norm integrates to one
	var norm2 float64
	for _, v := range psir {
		norm2 += v * v
	}
	norm2 *= s.Omega / float64(w.M())
	if math.Abs(norm2-1) > 1e-12 {
		t.Errorf("got norm %v, wanted 1\n", norm2)
	}

	t.Run("wrong grid size panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Errorf("expected panic\n")
			}
		}()
		w.SetPsiG(0, 0, 0, make([]complex128, 7))
	})
}
