package main

// Engine is the contract with the external electronic-structure
// program. Every call blocks until the engine acknowledges completion;
// the only suspension point behind it is a bounded readiness wait that
// surfaces ErrEngineTimeout when exceeded.
type Engine interface {
	// SetVc injects the total constraint potential, one field per
	// potential spin channel
	SetVc(vc [][]float64) error
	// RunSCF orders one self-consistent minimization under the
	// current potential and records the resulting total energy on
	// the Sample
	RunSCF() error
	// FetchRho refreshes the Sample's charge density
	FetchRho() error
	// FetchEnergy returns the engine total energy of the last
	// minimization
	FetchEnergy() (float64, error)
	// FetchForce returns the engine's per-atom forces from the last
	// minimization
	FetchForce() ([][3]float64, error)
	// SetFc injects the external per-atom force to be added to the
	// engine's own during geometry steps
	SetFc(fc [][3]float64) error
	// RunOpt orders one geometry-relaxation round
	RunOpt() error
	// FetchGeom updates the Sample's atomic coordinates from the
	// last geometry round
	FetchGeom() error
	// FetchWfc stores the Kohn-Sham orbitals of the last minimization
	// on the Sample
	FetchWfc() error
	// Reset points per-run artifacts at a fresh output directory
	Reset(dir string) error
}
