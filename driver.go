package main

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Solver composes the Sample, its constraints, an Engine session, and
// a multiplier search strategy into the scf and opt procedures. One
// Solver exclusively owns its Sample and Engine for the duration of a
// run; per-run artifacts are keyed by RunID so several Solvers in one
// process cannot collide.
type Solver struct {
	Job      string
	Sample   *Sample
	Engine   Engine
	Strategy Strategy

	MaxIter int     // outer-iteration budget per SCF solve
	MaxStep int     // geometry-step budget
	Ftol    float64 // max-force threshold for relaxation

	RunID string

	// total constraint potential of the last evaluation, the sum of
	// every constraint's Vc
	VcTot [][]float64

	iter int
}

// Solve runs the configured job. ErrInvalidJob flags an unrecognized
// job tag; ErrNotConverged is a terminal status, not a fault, and the
// Sample keeps its partial state for inspection.
func (s *Solver) Solve() error {
	switch s.Job {
	case "scf", "opt":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidJob, s.Job)
	}
	if err := s.Engine.Reset(filepath.Join("outputs", s.RunID)); err != nil {
		return err
	}
	if err := s.Engine.FetchRho(); err != nil {
		return err
	}
	var err error
	if s.Job == "opt" {
		err = s.solveOpt()
	} else {
		err = s.solveSCF()
	}
	if err != nil {
		return err
	}
	// the coupling analysis needs the orbitals of the converged state
	return s.Engine.FetchWfc()
}

// residual builds the closure handed to the search strategy: impose
// the multiplier vector, run one constrained minimization, refresh the
// density, and report (-W, -(N-N0)) with the convergence flag.
func (s *Solver) residual() ResidualFunc {
	seed := true
	return func(v []float64) (Eval, error) {
		smp := s.Sample
		cons := smp.Constraints
		for k, c := range cons {
			// the seed evaluation repeats the initial guess; VOld only
			// starts tracking once the strategy proposes a move
			if !seed {
				c.VOld = c.V
			}
			c.V = v[k]
			c.Vc = c.ComputeVc()
		}
		seed = false
		s.VcTot = sumFields(cons, smp.Vspin, smp.N())
		if err := s.Engine.SetVc(s.VcTot); err != nil {
			return Eval{}, err
		}
		if err := s.Engine.RunSCF(); err != nil {
			return Eval{}, err
		}
		if err := s.Engine.FetchRho(); err != nil {
			return Eval{}, err
		}
		var sumVN float64
		grad := make([]float64, len(cons))
		all := true
		for k, c := range cons {
			c.N = c.ComputeN()
			grad[k] = -(c.N - c.N0)
			sumVN += c.V * c.N
			if !c.CheckConvergence() {
				all = false
			}
		}
		smp.Ec = sumVN
		smp.Ed = smp.EdTotal - smp.Ec
		smp.W = smp.Ed + smp.Ec - sumVN

		s.iter++
		fmt.Println("~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~")
		fmt.Printf("Iter %d:\n", s.iter)
		fmt.Printf("Free energy = %.8f\n", smp.W)
		fmt.Printf("DFT KS energy = %.8f\n", smp.Ed)
		fmt.Printf("DFT KS+c energy = %.8f\n", smp.EdTotal)
		for _, c := range cons {
			fmt.Println(c)
		}
		return Eval{F: -smp.W, Grad: grad, Converged: all}, nil
	}
}

func sumFields(cons []*Constraint, vspin, n int) [][]float64 {
	tot := make([][]float64, vspin)
	for is := range tot {
		tot[is] = make([]float64, n)
		for _, c := range cons {
			for i, v := range c.Vc[is] {
				tot[is][i] += v
			}
		}
	}
	return tot
}

// solveSCF maximizes the free energy over the multipliers. The inner
// minimization over the density is outsourced to the engine per
// evaluation.
func (s *Solver) solveSCF() error {
	s.Sample.UpdateWeights()
	cons := s.Sample.Constraints
	v0 := make([]float64, len(cons))
	for k, c := range cons {
		v0[k] = c.V
	}
	_, err := s.Strategy.Optimize(s.residual(), v0)
	switch {
	case err == nil:
		fmt.Println("Solver: convergence achieved!")
	case errors.Is(err, ErrNotConverged):
		fmt.Printf("Solver: convergence NOT achieved after %d iterations\n",
			s.iter)
	}
	return err
}

// solveOpt relaxes the structure under constraint: every step runs one
// full SCF solve, adds the constraint force to the engine force, and
// orders a geometry round until the maximum per-atom force drops below
// Ftol
func (s *Solver) solveOpt() error {
	smp := s.Sample
	for step := 1; step <= s.MaxStep; step++ {
		if err := s.solveSCF(); err != nil && !errors.Is(err, ErrNotConverged) {
			return err
		}
		fd, err := s.Engine.FetchForce()
		if err != nil {
			return err
		}
		smp.Fd = fd
		smp.Fc = make([][3]float64, smp.Natoms())
		for _, c := range smp.Constraints {
			for ia, f := range c.UpdateFc() {
				for ax := 0; ax < 3; ax++ {
					smp.Fc[ia][ax] += f[ax]
				}
			}
		}
		smp.Fw = make([][3]float64, smp.Natoms())
		for ia := range smp.Fw {
			for ax := 0; ax < 3; ax++ {
				smp.Fw[ia][ax] = smp.Fd[ia][ax] + smp.Fc[ia][ax]
			}
		}
		max, imax := smp.MaxForce()
		fmt.Printf("Maximum force = %.6f au, on %s\n", max, smp.Atoms[imax])
		if max < s.Ftol {
			fmt.Println("Solver: force convergence achieved!")
			return nil
		}
		if err := s.Engine.SetFc(smp.Fc); err != nil {
			return err
		}
		if err := s.Engine.RunOpt(); err != nil {
			return err
		}
		if err := s.Engine.FetchGeom(); err != nil {
			return err
		}
		fmt.Println("================================")
		fmt.Println("Structure updated")
		fmt.Println("================================")
	}
	fmt.Printf("Solver: relaxation NOT achieved after %d steps\n", s.MaxStep)
	return ErrNotConverged
}
