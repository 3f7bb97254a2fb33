package main

import (
	"math"
	"math/cmplx"
	"reflect"
	"testing"
)

func TestFftfreq(t *testing.T) {
	tests := []struct {
		n    int
		want []int
	}{
		{1, []int{0}},
		{4, []int{0, 1, -2, -1}},
		{5, []int{0, 1, 2, -2, -1}},
		{6, []int{0, 1, 2, -3, -2, -1}},
	}
	for _, test := range tests {
		got := fftfreq(test.n)
		if !reflect.DeepEqual(got, test.want) {
			t.Errorf("n=%d: got %v, wanted %v\n", test.n, got, test.want)
		}
	}
}

func TestFFT3Roundtrip(t *testing.T) {
	n1, n2, n3 := 4, 3, 5
	data := make([]complex128, n1*n2*n3)
	for i := range data {
		// deterministic but unstructured
		data[i] = complex(math.Sin(float64(3*i+1)), math.Cos(float64(7*i+2)))
	}
	orig := append([]complex128(nil), data...)
	FFT3(data, n1, n2, n3)
	IFFT3(data, n1, n2, n3)
	for i := range data {
		if cmplx.Abs(data[i]-orig[i]) > 1e-12 {
			t.Fatalf("roundtrip differs at %d: got %v, wanted %v\n",
				i, data[i], orig[i])
		}
	}
}

func TestFFT3Constant(t *testing.T) {
	n1, n2, n3 := 4, 4, 4
	n := n1 * n2 * n3
	data := make([]complex128, n)
	for i := range data {
		data[i] = 2.5
	}
	FFT3(data, n1, n2, n3)
	if cmplx.Abs(data[0]-complex(2.5*float64(n), 0)) > 1e-10 {
		t.Errorf("G=0: got %v, wanted %v\n", data[0], 2.5*float64(n))
	}
	for i := 1; i < n; i++ {
		if cmplx.Abs(data[i]) > 1e-10 {
			t.Errorf("G!=0 component %d nonzero: %v\n", i, data[i])
		}
	}
}

func TestPhase(t *testing.T) {
	s := cubicSample(8, 4)

	t.Run("origin", func(t *testing.T) {
		for i, p := range s.Phase([3]float64{0, 0, 0}) {
			if cmplx.Abs(p-1) > 1e-12 {
				t.Fatalf("point %d: got %v, wanted 1\n", i, p)
			}
		}
	})

	t.Run("matches direct exponential", func(t *testing.T) {
		r := [3]float64{1.3, -0.7, 2.9}
		ph := s.Phase(r)
		for i := range ph {
			g := s.Gx[i]*r[0] + s.Gy[i]*r[1] + s.Gz[i]*r[2]
			want := cmplx.Exp(complex(0, -g))
			if cmplx.Abs(ph[i]-want) > 1e-12 {
				t.Fatalf("point %d: got %v, wanted %v\n", i, ph[i], want)
			}
		}
	})

	t.Run("full lattice translation is identity", func(t *testing.T) {
		for i, p := range s.Phase([3]float64{8, 8, 8}) {
			if cmplx.Abs(p-1) > 1e-10 {
				t.Fatalf("point %d: got %v, wanted 1\n", i, p)
			}
		}
	})
}

func TestRealPart(t *testing.T) {
	got := realPart([]complex128{1 + 1e-12i, 2, -3}, "test field")
	want := []float64{1, 2, -3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, wanted %v\n", got, want)
	}
}
