package main

import (
	"math"
	"path/filepath"
	"reflect"
	"testing"
)

func TestCubeRoundtrip(t *testing.T) {
	s := cubicSample(10, 4)
	s.Atoms = []*Atom{
		{Symbol: "O", Coord: [3]float64{5, 5, 5}},
		{Symbol: "H", Coord: [3]float64{3.2, 5, 5}},
	}
	data := make([]float64, s.N())
	for i := range data {
		data[i] = 0.001 * float64(i+1)
	}
	filename := filepath.Join(t.TempDir(), "test.cube")
	if err := WriteCube(filename, s, data); err != nil {
		t.Fatal(err)
	}
	got, n1, n2, n3, err := ReadCube(filename)
	if err != nil {
		t.Fatal(err)
	}
	if n1 != 4 || n2 != 4 || n3 != 4 {
		t.Fatalf("got grid %dx%dx%d, wanted 4x4x4\n", n1, n2, n3)
	}
	for i := range data {
		if math.Abs(got[i]-data[i]) > 1e-6*math.Abs(data[i]) {
			t.Fatalf("value %d: got %v, wanted %v\n", i, got[i], data[i])
		}
	}
}

func TestReadCubeTruncated(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "trunc.cube")
	s := cubicSample(10, 2)
	s.Atoms = []*Atom{{Symbol: "H"}}
	if err := WriteCube(filename, s, make([]float64, 4)); err != nil {
		t.Fatal(err)
	}
	if _, _, _, _, err := ReadCube(filename); err == nil {
		t.Errorf("expected error for short data section\n")
	}
}

func TestRollHalf(t *testing.T) {
	t.Run("single axis", func(t *testing.T) {
		got := RollHalf([]float64{1, 2, 3, 4}, 4, 1, 1)
		want := []float64{3, 4, 1, 2}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, wanted %v\n", got, want)
		}
	})

	t.Run("even grid involution", func(t *testing.T) {
		n1, n2, n3 := 4, 2, 6
		data := make([]float64, n1*n2*n3)
		for i := range data {
			data[i] = float64(i)
		}
		got := RollHalf(RollHalf(data, n1, n2, n3), n1, n2, n3)
		if !reflect.DeepEqual(got, data) {
			t.Errorf("double roll is not the identity\n")
		}
	})
}
