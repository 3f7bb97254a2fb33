package main

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
)

// ReadRadial loads a two-column radial density table: radius and
// density per line, # starting a comment
func ReadRadial(filename string) (rd, rho []float64, err error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, nil, fmt.Errorf("malformed radial table line %q", line)
		}
		r, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, nil, err
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, nil, err
		}
		rd = append(rd, r)
		rho = append(rho, v)
	}
	return rd, rho, scanner.Err()
}

// SpeciesDensityFromRadial builds the reciprocal-space reference
// density for a species from a spherically averaged radial density.
// rd holds the radial grid (uniform spacing, Bohr) and rho the density
// values on it; nel is the species electron count used to normalize
// the G=0 limit:
//
//	rho(G) = 4 pi dr sum_r rho(r) r sin(rG)/G
//	rho(0) = 4 pi dr sum_r rho(r) r^2
//
// Repeated |G| on the grid share one radial integral.
func (s *Sample) SpeciesDensityFromRadial(symbol string, rd, rho []float64, nel float64) {
	if len(rd) != len(rho) || len(rd) < 2 {
		panic("SpeciesDensityFromRadial: bad radial table")
	}
	drd := rd[1] - rd[0]
	n := s.N()
	g2 := make([]float64, n)
	for i := range g2 {
		g2[i] = s.Gx[i]*s.Gx[i] + s.Gy[i]*s.Gy[i] + s.Gz[i]*s.Gz[i]
	}
	// map every G vector to its unique norm
	uniq := make(map[float64]bool, n)
	for _, v := range g2 {
		uniq[v] = true
	}
	g2d := make([]float64, 0, len(uniq))
	for v := range uniq {
		g2d = append(g2d, v)
	}
	sort.Float64s(g2d)

	rhod := make([]float64, len(g2d))
	for ig, v := range g2d {
		g := math.Sqrt(v)
		var sum float64
		if g == 0 {
			for ir, r := range rd {
				sum += rho[ir] * r * r
			}
		} else {
			for ir, r := range rd {
				sum += rho[ir] * r * math.Sin(r*g) / g
			}
		}
		rhod[ig] = 4 * math.Pi * drd * sum
	}
	if rhod[0] == 0 {
		panic(fmt.Sprintf("SpeciesDensityFromRadial: %s integrates to zero", symbol))
	}
	fac := nel / rhod[0]
	out := make([]complex128, n)
	for i, v := range g2 {
		ig := sort.SearchFloat64s(g2d, v)
		out[i] = complex(fac*rhod[ig], 0)
	}
	s.RhoAtomG[symbol] = out
}

// SpeciesDensityFromCube reads a species reference density from a cube
// file on the charge grid. The cube origin convention is half a grid
// extent off from the Sample's, so the field is cyclically shifted
// before the forward transform.
func (s *Sample) SpeciesDensityFromCube(symbol, filename string) error {
	data, n1, n2, n3, err := ReadCube(filename)
	if err != nil {
		return err
	}
	if n1 != s.N1 || n2 != s.N2 || n3 != s.N3 {
		return fmt.Errorf("cube grid %dx%dx%d does not match sample grid %dx%dx%d",
			n1, n2, n3, s.N1, s.N2, s.N3)
	}
	data = RollHalf(data, n1, n2, n3)
	g := make([]complex128, len(data))
	for i, v := range data {
		g[i] = complex(v, 0)
	}
	FFT3(g, n1, n2, n3)
	scale := complex(s.Omega/float64(s.N()), 0)
	for i := range g {
		g[i] *= scale
	}
	s.RhoAtomG[symbol] = g
	return nil
}

// UpdateWeights rebuilds the fragment and total promolecule densities
// for the current geometry and refreshes every constraint's weight
// field. Atomic contributions accumulate in reciprocal space so each
// density costs a single inverse transform.
func (s *Sample) UpdateWeights() {
	n := s.N()
	totG := make([]complex128, n)
	fragG := make([][]complex128, len(s.Fragments))
	for i := range fragG {
		fragG[i] = make([]complex128, n)
	}
	for ia, atom := range s.Atoms {
		rhog, ok := s.RhoAtomG[atom.Symbol]
		if !ok {
			panic(fmt.Sprintf("UpdateWeights: no reference density for species %q",
				atom.Symbol))
		}
		ph := s.Phase(atom.Coord)
		for i := 0; i < n; i++ {
			g := rhog[i] * ph[i]
			totG[i] += g
			for fi, f := range s.Fragments {
				if f.Contains(ia) {
					fragG[fi][i] += g
				}
			}
		}
	}
	scale := float64(n) / s.Omega
	IFFT3(totG, s.N1, s.N2, s.N3)
	s.RhoProTot = realPart(totG, "total promolecule density")
	for i := range s.RhoProTot {
		s.RhoProTot[i] *= scale
	}
	for fi, f := range s.Fragments {
		IFFT3(fragG[fi], s.N1, s.N2, s.N3)
		f.RhoPro = realPart(fragG[fi], "fragment promolecule density")
		for i := range f.RhoPro {
			f.RhoPro[i] *= scale
		}
	}
	for _, c := range s.Constraints {
		c.UpdateStructure()
	}
}

// RhoAtomGradR computes the nuclear-gradient field of a's reference
// density, one real-space field per Cartesian direction, by weighting
// the phased reciprocal density with i G before the inverse transform.
func (s *Sample) RhoAtomGradR(a *Atom) [3][]float64 {
	rhog, ok := s.RhoAtomG[a.Symbol]
	if !ok {
		panic(fmt.Sprintf("RhoAtomGradR: no reference density for species %q",
			a.Symbol))
	}
	n := s.N()
	ph := s.Phase(a.Coord)
	var out [3][]float64
	scale := float64(n) / s.Omega
	for ax, g := range [3][]float64{s.Gx, s.Gy, s.Gz} {
		tmp := make([]complex128, n)
		for i := 0; i < n; i++ {
			tmp[i] = complex(0, g[i]) * ph[i] * rhog[i]
		}
		IFFT3(tmp, s.N1, s.N2, s.N3)
		out[ax] = make([]float64, n)
		for i := range tmp {
			out[ax][i] = scale * real(tmp[i])
		}
	}
	return out
}
