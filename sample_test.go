package main

import (
	"math"
	"strings"
	"testing"
)

func cubicSample(a float64, n int) *Sample {
	cell := [3][3]float64{{a, 0, 0}, {0, a, 0}, {0, 0, a}}
	return NewSample(cell, 1, 1, n, n, n)
}

func TestNewSample(t *testing.T) {
	s := cubicSample(10, 4)
	if got, want := s.Omega, 1000.0; math.Abs(got-want) > 1e-10 {
		t.Errorf("got %v, wanted %v\n", got, want)
	}
	b := 2 * math.Pi / 10
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = b
			}
			if math.Abs(s.Gv[i][j]-want) > 1e-12 {
				t.Errorf("Gv[%d][%d]: got %v, wanted %v\n",
					i, j, s.Gv[i][j], want)
			}
		}
	}
	// standard frequency order along each axis
	if s.Gx[s.Index(1, 0, 0)] != b || s.Gx[s.Index(3, 0, 0)] != -b {
		t.Errorf("Gx frequencies out of order\n")
	}

	t.Run("singular lattice panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Errorf("expected panic\n")
			}
		}()
		NewSample([3][3]float64{{1, 0, 0}, {2, 0, 0}, {0, 0, 1}}, 1, 1, 2, 2, 2)
	})
}

func TestCryCoord(t *testing.T) {
	cell := [3][3]float64{{10, 0, 0}, {2, 8, 0}, {0, 1, 12}}
	s := NewSample(cell, 1, 1, 4, 4, 4)
	a := &Atom{Symbol: "O", Coord: [3]float64{3.7, 2.1, 5.5}}
	cry := a.CryCoord(s)
	b := &Atom{Symbol: "O"}
	b.SetCryCoord(s, cry)
	for k := 0; k < 3; k++ {
		if math.Abs(a.Coord[k]-b.Coord[k]) > 1e-10 {
			t.Errorf("coordinate %d: got %v, wanted %v\n",
				k, b.Coord[k], a.Coord[k])
		}
	}
}

func TestSpecies(t *testing.T) {
	s := cubicSample(10, 2)
	for _, sym := range []string{"O", "H", "H", "C"} {
		s.Atoms = append(s.Atoms, &Atom{Symbol: sym})
	}
	got := s.Species()
	want := []string{"C", "H", "O"}
	if len(got) != len(want) {
		t.Fatalf("got %v, wanted %v\n", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, wanted %v\n", got, want)
		}
	}
	if name := MakeName(s.Atoms); name != "CH2O" {
		t.Errorf("got %q, wanted CH2O\n", name)
	}
}

func TestAddFragment(t *testing.T) {
	s := cubicSample(10, 2)
	s.Atoms = []*Atom{{Symbol: "H"}, {Symbol: "H"}}
	f := s.AddFragment("left", []int{0})
	if !f.Contains(0) || f.Contains(1) {
		t.Errorf("fragment membership wrong\n")
	}
	if s.FragmentByName("left") != f {
		t.Errorf("lookup returned a different fragment\n")
	}

	t.Run("out of range panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Errorf("expected panic\n")
			}
		}()
		s.AddFragment("bad", []int{5})
	})
}

func TestExport(t *testing.T) {
	s := cubicSample(10, 2)
	s.Atoms = []*Atom{
		{Symbol: "O", Coord: [3]float64{1, 2, 3}},
		{Symbol: "H", Coord: [3]float64{4, 5, 6}},
	}
	got := s.Export(map[string]string{"O": "O.xml", "H": "H.xml"})
	for _, want := range []string{
		"set cell 10.000000",
		"species O O.xml",
		"species H H.xml",
		"atom O1 O",
		"atom H2 H",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("export missing %q:\n%s", want, got)
		}
	}
}
