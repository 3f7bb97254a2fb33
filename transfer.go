package main

import "fmt"

// transferEps is the default promolecule-density cutoff for
// charge-transfer constraints
const transferEps = 1e-6

// Transfer constrains the electron-number difference between a donor
// and an acceptor fragment. The two fragments must partition the atom
// set exactly: no overlap, no omission.
type Transfer struct {
	Donor    *Fragment
	Acceptor *Fragment
	Cut      float64
}

// NewTransfer builds a charge-transfer constraint and attaches it to
// s. It panics if donor and acceptor do not partition s's atoms.
func NewTransfer(s *Sample, donor, acceptor *Fragment, n0, vinit, ntol, vtol, dvtol float64) *Constraint {
	seen := make(map[int]int)
	for _, ia := range donor.Atoms {
		seen[ia]++
	}
	for _, ia := range acceptor.Atoms {
		seen[ia]++
	}
	for ia := range s.Atoms {
		switch seen[ia] {
		case 1:
		case 0:
			panic(fmt.Sprintf(
				"NewTransfer: atom %d in neither donor nor acceptor", ia))
		default:
			panic(fmt.Sprintf(
				"NewTransfer: atom %d in both donor and acceptor", ia))
		}
	}
	if len(donor.Atoms)+len(acceptor.Atoms) != s.Natoms() {
		panic("NewTransfer: donor and acceptor do not partition the atom set")
	}
	return NewConstraint(s, &Transfer{Donor: donor, Acceptor: acceptor, Cut: transferEps},
		n0, vinit, ntol, vtol, dvtol)
}

func (tr *Transfer) Name() string { return "charge transfer" }

func (tr *Transfer) Eps() float64 { return tr.Cut }

func (tr *Transfer) Weight(c *Constraint) []float64 {
	tot := c.Sample.RhoProTot
	w := make([]float64, len(tot))
	for i, t := range tot {
		if t < tr.Cut {
			continue
		}
		w[i] = (tr.Donor.RhoPro[i] - tr.Acceptor.RhoPro[i]) / t
	}
	return w
}

func (tr *Transfer) Delta(ia int) float64 {
	switch {
	case tr.Donor.Contains(ia):
		return 1
	case tr.Acceptor.Contains(ia):
		return -1
	}
	return 0
}
