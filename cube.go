package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// WriteCube writes data on s's charge grid as a Gaussian cube file.
// The volumetric origin is the cell origin; axis vectors are the
// lattice vectors divided by the grid dimensions, z fastest.
func WriteCube(filename string, s *Sample, data []float64) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "cdft volumetric field\n%s\n", MakeName(s.Atoms))
	fmt.Fprintf(w, "%5d %11.6f %11.6f %11.6f\n", s.Natoms(), 0.0, 0.0, 0.0)
	dims := [3]int{s.N1, s.N2, s.N3}
	for i := 0; i < 3; i++ {
		n := float64(dims[i])
		fmt.Fprintf(w, "%5d %11.6f %11.6f %11.6f\n",
			dims[i], s.R[i][0]/n, s.R[i][1]/n, s.R[i][2]/n)
	}
	for _, a := range s.Atoms {
		z := AtomicNumber(a.Symbol)
		fmt.Fprintf(w, "%5d %11.6f %11.6f %11.6f %11.6f\n",
			z, float64(z), a.Coord[0], a.Coord[1], a.Coord[2])
	}
	for i, v := range data {
		fmt.Fprintf(w, " %12.5E", v)
		if i%6 == 5 {
			fmt.Fprint(w, "\n")
		}
	}
	if len(data)%6 != 0 {
		fmt.Fprint(w, "\n")
	}
	return w.Flush()
}

// ReadCube reads a cube file and returns the flattened volumetric data
// with its grid dimensions
func ReadCube(filename string) (data []float64, n1, n2, n3 int, err error) {
	lines, err := ReadFile(filename)
	if err != nil {
		return nil, 0, 0, 0, err
	}
	if len(lines) < 6 {
		return nil, 0, 0, 0, fmt.Errorf("cube file %q truncated", filename)
	}
	fields := strings.Fields(lines[2])
	natoms, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, 0, 0, 0, err
	}
	if natoms < 0 {
		natoms = -natoms
	}
	dims := [3]int{}
	for i := 0; i < 3; i++ {
		fields = strings.Fields(lines[3+i])
		dims[i], err = strconv.Atoi(fields[0])
		if err != nil {
			return nil, 0, 0, 0, err
		}
	}
	n1, n2, n3 = dims[0], dims[1], dims[2]
	data = make([]float64, 0, n1*n2*n3)
	for _, line := range lines[6+natoms:] {
		for _, field := range strings.Fields(line) {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, 0, 0, 0, err
			}
			data = append(data, v)
		}
	}
	if len(data) != n1*n2*n3 {
		return nil, 0, 0, 0, fmt.Errorf(
			"cube file %q holds %d values, want %d",
			filename, len(data), n1*n2*n3)
	}
	return data, n1, n2, n3, nil
}

// RollHalf cyclically shifts the field by half the grid extent along
// each axis, converting between the cube file's cell-centered origin
// and the Sample's corner origin
func RollHalf(data []float64, n1, n2, n3 int) []float64 {
	out := make([]float64, len(data))
	s1, s2, s3 := n1/2, n2/2, n3/2
	for i1 := 0; i1 < n1; i1++ {
		j1 := (i1 + s1) % n1
		for i2 := 0; i2 < n2; i2++ {
			j2 := (i2 + s2) % n2
			for i3 := 0; i3 < n3; i3++ {
				j3 := (i3 + s3) % n3
				out[(j1*n2+j2)*n3+j3] = data[(i1*n2+i2)*n3+i3]
			}
		}
	}
	return out
}
