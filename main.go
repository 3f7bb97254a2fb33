/*
Constrained DFT driver
----------------------
This program converges constrained density functional theory
calculations by steering an external plane-wave engine: it imposes a
constraint potential built from Hirshfeld weights, runs the engine's
minimization, measures the constraint residual, and adjusts the
Lagrange multipliers until the target populations are met. On top of
the converged states it can relax the structure under constraint and
compute electronic couplings between diabatic states.
*/

package main

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"
)

// Errors used throughout
var (
	ErrInvalidJob        = errors.New("unrecognized job")
	ErrNotConverged      = errors.New("convergence not achieved")
	ErrBadBracket        = errors.New("residual does not change sign over the bracket")
	ErrEngineTimeout     = errors.New("timeout waiting for engine lock file")
	ErrEnergyNotFound    = errors.New("energy not found in engine output")
	ErrNoResult          = errors.New("no engine result document to read")
	ErrStructureMismatch = errors.New("engine structure does not match the sample")
	ErrSpinVext          = errors.New("engine accepts only one external potential spin channel")
)

// Global variables
var Global struct {
	Warnings  int
	StartTime time.Time
}

func main() {
	args := ParseFlags()
	if len(args) < 1 {
		log.Fatal("cdft: no input file supplied")
	}
	Global.StartTime = time.Now()
	conf := ParseInfile(args[0])
	sample := conf.BuildSample()
	fmt.Println(sample)

	for sym, file := range conf.RhoAtom {
		if err := sample.SpeciesDensityFromCube(sym, file); err != nil {
			errExit(err, "loading reference density for "+sym)
		}
	}
	for sym, spec := range conf.RhoRadial {
		rd, rho, err := ReadRadial(spec.File)
		if err != nil {
			errExit(err, "loading radial density for "+sym)
		}
		nel := spec.Nel
		if nel == 0 {
			nel = float64(AtomicNumber(sym))
		}
		sample.SpeciesDensityFromRadial(sym, rd, rho, nel)
	}
	for _, sp := range sample.Species() {
		if _, ok := sample.RhoAtomG[sp]; !ok {
			log.Fatalf("cdft: no reference density for species %q", sp)
		}
	}

	if conf.RunID == "" {
		conf.RunID = TrimExt(filepath.Base(args[0]))
	}

	if *launch != "" {
		proc, err := StartEngine(*launch, conf.EngineDir, qbInput, qbOutput)
		if err != nil {
			errExit(err, "launching engine")
		}
		defer proc.Process.Kill()
	}
	// without an explicit init command, bootstrap the engine with the
	// structure itself
	if conf.InitCmd == "" && len(conf.Pseudos) > 0 {
		conf.InitCmd = sample.Export(conf.Pseudos)
	}
	qb, err := NewQbox(sample, conf.EngineDir, conf.InitCmd,
		conf.SCFCmd, conf.OptCmd,
		time.Duration(conf.SleepInt)*time.Second,
		time.Duration(conf.MaxWait)*time.Second)
	if err != nil {
		errExit(err, "binding engine session")
	}
	defer qb.Close()

	solver := &Solver{
		Job:      conf.Job,
		Sample:   sample,
		Engine:   qb,
		Strategy: conf.WhichOptimizer(),
		MaxIter:  conf.MaxIter,
		MaxStep:  conf.MaxStep,
		Ftol:     conf.Ftol,
		RunID:    conf.RunID,
	}
	err = solver.Solve()
	if err != nil && !errors.Is(err, ErrNotConverged) {
		errExit(err, "running solver")
	}
	Summarize(sample)
	if Global.Warnings > 0 {
		fmt.Printf("%d warnings\n", Global.Warnings)
	}
	fmt.Printf("elapsed time %v\n", time.Since(Global.StartTime).Round(time.Second))
}

// Summarize prints a table of the constraint results and the energy
// decomposition
func Summarize(s *Sample) {
	fmt.Printf("+%10s-+%12s-+%12s-+%12s-+\n",
		"----------", "------------", "------------", "------------")
	fmt.Printf("|%10s |%12s |%12s |%12s |\n",
		"Constraint", "N0", "N", "V")
	fmt.Printf("+%10s-+%12s-+%12s-+%12s-+\n",
		"----------", "------------", "------------", "------------")
	for _, c := range s.Constraints {
		fmt.Printf("|%10s |%12.6f |%12.6f |%12.6f |\n",
			c.Kind.Name(), c.N0, c.N, c.V)
	}
	fmt.Printf("+%10s-+%12s-+%12s-+%12s-+\n",
		"----------", "------------", "------------", "------------")
	fmt.Printf("Free energy     = %.8f\n", s.W)
	fmt.Printf("DFT KS energy   = %.8f\n", s.Ed)
	fmt.Printf("Constraint term = %.8f\n", s.Ec)
	fmt.Printf("Engine total    = %.8f\n", s.EdTotal)
}
