package main

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Variant supplies the pieces of a constraint that differ between
// kinds: the weight field itself and the membership sign entering its
// nuclear gradient. Everything else (N, Vc, Fc, residual, convergence)
// is implemented once on Constraint against this interface.
type Variant interface {
	Name() string
	// Weight computes the weight field for the current geometry
	Weight(c *Constraint) []float64
	// Delta is the membership sign of atom ia in the weight-gradient
	// formula
	Delta(ia int) float64
	// Eps is the promolecule-density cutoff below which the weight
	// and its gradient are clipped to zero
	Eps() float64
}

// Constraint ties one scalar target N0 to a weight field and the
// Lagrange multiplier V enforcing it. It is attached to exactly one
// Sample and mutated every outer iteration.
type Constraint struct {
	Sample *Sample
	Kind   Variant

	N0   float64
	N    float64
	V    float64
	VOld float64

	Weight []float64   // weight field on the charge grid
	Vc     [][]float64 // V * weight, per potential spin channel
	Fc     [][3]float64

	// convergence thresholds; NaN means unconfigured
	Ntol  float64
	Vtol  float64
	DVtol float64

	Converged bool
}

// NewConstraint attaches a constraint to s. At least one of the
// tolerances must be configured; passing NaN for all three is a
// configuration error. VOld stays NaN until the search strategy makes
// its first move.
func NewConstraint(s *Sample, kind Variant, n0, vinit, ntol, vtol, dvtol float64) *Constraint {
	if math.IsNaN(ntol) && math.IsNaN(vtol) && math.IsNaN(dvtol) {
		panic("NewConstraint: at least one of ntol, vtol, dvtol must be configured")
	}
	c := &Constraint{
		Sample: s,
		Kind:   kind,
		N0:     n0,
		V:      vinit,
		VOld:   math.NaN(),
		Ntol:   ntol,
		Vtol:   vtol,
		DVtol:  dvtol,
	}
	s.Constraints = append(s.Constraints, c)
	return c
}

// UpdateStructure recomputes the weight field and the derived
// potential for the current geometry. Call whenever atomic positions
// change.
func (c *Constraint) UpdateStructure() {
	c.Weight = c.Kind.Weight(c)
	c.Vc = c.ComputeVc()
}

// ComputeN integrates the weighted charge density over the cell,
// summed over spin channels:
//
//	N = (omega/n) sum_s sum_r w(r) rho_s(r)
func (c *Constraint) ComputeN() float64 {
	s := c.Sample
	var sum float64
	for _, rho := range s.RhoR {
		sum += floats.Dot(c.Weight, rho)
	}
	return sum * s.Omega / float64(s.N())
}

// ComputeVc builds the constraint potential V*w, broadcast across the
// potential spin channels
func (c *Constraint) ComputeVc() [][]float64 {
	s := c.Sample
	vc := make([][]float64, s.Vspin)
	for is := range vc {
		vc[is] = make([]float64, len(c.Weight))
		for i, w := range c.Weight {
			vc[is][i] = c.V * w
		}
	}
	return vc
}

// DWbyDV is the constraint residual, the derivative of the free
// energy with respect to V:
//
//	dW/dV = int w(r) n(r) dr - N0 = N - N0
func (c *Constraint) DWbyDV() float64 { return c.N - c.N0 }

// WeightGrad computes the nuclear gradient of the weight field with
// respect to atom ia:
//
//	dw/dR = (delta - w) (drho_atom/dR) / rhopro_tot
//
// clipped to zero wherever the promolecule density is below the
// variant cutoff.
func (c *Constraint) WeightGrad(ia int) [3][]float64 {
	s := c.Sample
	// delta stays 0 only for atoms outside every constrained
	// fragment; the transfer variant forbids that case by
	// construction, so the formula below never sees it
	delta := c.Kind.Delta(ia)
	grad := s.RhoAtomGradR(s.Atoms[ia])
	eps := c.Kind.Eps()
	var out [3][]float64
	for ax := 0; ax < 3; ax++ {
		out[ax] = make([]float64, len(c.Weight))
		for i, w := range c.Weight {
			if s.RhoProTot[i] < eps {
				continue
			}
			out[ax][i] = (delta - w) * grad[ax][i] / s.RhoProTot[i]
		}
	}
	return out
}

// UpdateFc assembles the per-atom force contribution of the
// constraint,
//
//	Fc_a = omega n V sum_r rho(r) dw/dR_a(r)
//
// with the density summed over spin channels.
func (c *Constraint) UpdateFc() [][3]float64 {
	s := c.Sample
	rho := s.RhoSpinSum()
	pref := s.Omega * float64(s.N()) * c.V
	c.Fc = make([][3]float64, s.Natoms())
	for ia := range s.Atoms {
		wg := c.WeightGrad(ia)
		for ax := 0; ax < 3; ax++ {
			c.Fc[ia][ax] = pref * floats.Dot(rho, wg[ax])
		}
	}
	return c.Fc
}

// CheckConvergence reports whether every configured tolerance among
// {|N-N0| < Ntol, |V-Vold| < Vtol, |dW/dV| < DVtol} is satisfied.
// Unconfigured tolerances pass automatically; a still-NaN VOld fails
// the Vtol test, so the seed evaluation cannot converge on Vtol alone.
func (c *Constraint) CheckConvergence() bool {
	ok := true
	if !math.IsNaN(c.Ntol) && math.Abs(c.N-c.N0) >= c.Ntol {
		ok = false
	}
	if !math.IsNaN(c.Vtol) && !(math.Abs(c.V-c.VOld) < c.Vtol) {
		ok = false
	}
	if !math.IsNaN(c.DVtol) && math.Abs(c.DWbyDV()) >= c.DVtol {
		ok = false
	}
	c.Converged = ok
	return ok
}

func (c *Constraint) String() string {
	return fmt.Sprintf("%s constraint: N0=%g N=%g V=%g dW/dV=%g",
		c.Kind.Name(), c.N0, c.N, c.V, c.DWbyDV())
}
