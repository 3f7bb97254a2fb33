package main

// chargeEps is the default promolecule-density cutoff for charge
// constraints, below which the Hirshfeld weight is clipped to zero to
// keep vacuum regions from blowing up the ratio
const chargeEps = 1e-4

// Charge constrains the absolute electron number of one fragment.
// Its weight is the Hirshfeld ratio of the fragment promolecule
// density to the total promolecule density.
type Charge struct {
	Frag *Fragment
	Cut  float64
}

// NewCharge builds a charge constraint on frag with target n0 and
// attaches it to s
func NewCharge(s *Sample, frag *Fragment, n0, vinit, ntol, vtol, dvtol float64) *Constraint {
	return NewConstraint(s, &Charge{Frag: frag, Cut: chargeEps},
		n0, vinit, ntol, vtol, dvtol)
}

func (ch *Charge) Name() string { return "charge" }

func (ch *Charge) Eps() float64 { return ch.Cut }

func (ch *Charge) Weight(c *Constraint) []float64 {
	tot := c.Sample.RhoProTot
	w := make([]float64, len(tot))
	for i, t := range tot {
		if t < ch.Cut {
			continue
		}
		w[i] = ch.Frag.RhoPro[i] / t
	}
	return w
}

func (ch *Charge) Delta(ia int) float64 {
	if ch.Frag.Contains(ia) {
		return 1
	}
	return 0
}
