package main

import (
	"math"

	"github.com/curioloop/optimizer/lbfgsb"
)

// Eval is the outcome of one residual evaluation. F is the negative
// free energy and Grad its analytic gradient, -(N - N0) per
// constraint. Converged is the intended early exit: it latches once
// every constraint reports convergence and replaces the exception
// unwinding a search would otherwise need.
type Eval struct {
	F         float64
	Grad      []float64
	Converged bool
}

// ResidualFunc evaluates the multiplier vector v with one full engine
// round trip
type ResidualFunc func(v []float64) (Eval, error)

// Strategy searches multiplier space until an evaluation reports
// convergence or its own budget dies
type Strategy interface {
	Optimize(fn ResidualFunc, v0 []float64) ([]float64, error)
}

// residual evaluates fn at the scalar x and returns dW/dV
func residual(fn ResidualFunc, x float64) (r float64, done bool, err error) {
	ev, err := fn([]float64{x})
	if err != nil {
		return 0, false, err
	}
	return -ev.Grad[0], ev.Converged, nil
}

// Secant updates the multiplier with a secant step on the residual.
// The second point is seeded Step away from the initial guess.
type Secant struct {
	Step    float64
	MaxIter int
}

func (s Secant) Optimize(fn ResidualFunc, v0 []float64) ([]float64, error) {
	x0 := v0[0]
	r0, done, err := residual(fn, x0)
	if err != nil {
		return nil, err
	}
	if done {
		return []float64{x0}, nil
	}
	step := s.Step
	if step == 0 {
		step = 0.1
	}
	x1 := x0 + step
	for i := 0; i < s.MaxIter; i++ {
		r1, done, err := residual(fn, x1)
		if err != nil {
			return nil, err
		}
		if done {
			return []float64{x1}, nil
		}
		if r1 == r0 {
			// flat residual, nothing left to move
			return []float64{x1}, ErrNotConverged
		}
		x0, x1 = x1, x1-r1*(x1-x0)/(r1-r0)
		r0 = r1
	}
	return []float64{x1}, ErrNotConverged
}

// Bisect halves a bracketing interval of the residual
type Bisect struct {
	Bracket [2]float64
	MaxIter int
}

func (b Bisect) Optimize(fn ResidualFunc, v0 []float64) ([]float64, error) {
	lo, hi := b.Bracket[0], b.Bracket[1]
	rlo, done, err := residual(fn, lo)
	if err != nil {
		return nil, err
	}
	if done {
		return []float64{lo}, nil
	}
	rhi, done, err := residual(fn, hi)
	if err != nil {
		return nil, err
	}
	if done {
		return []float64{hi}, nil
	}
	if rlo*rhi > 0 {
		return nil, ErrBadBracket
	}
	mid := lo
	for i := 0; i < b.MaxIter; i++ {
		mid = (lo + hi) / 2
		rmid, done, err := residual(fn, mid)
		if err != nil {
			return nil, err
		}
		if done {
			return []float64{mid}, nil
		}
		if rlo*rmid <= 0 {
			hi = mid
		} else {
			lo, rlo = mid, rmid
		}
	}
	return []float64{mid}, ErrNotConverged
}

// BrentQ is bracketed root finding with inverse quadratic
// extrapolation; BrentH is the variant using hyperbolic extrapolation.
// Both require a valid bracket and exactly one constraint.
type BrentQ struct {
	Bracket [2]float64
	MaxIter int
}

func (b BrentQ) Optimize(fn ResidualFunc, v0 []float64) ([]float64, error) {
	return brent(fn, b.Bracket, b.MaxIter, false)
}

type BrentH struct {
	Bracket [2]float64
	MaxIter int
}

func (b BrentH) Optimize(fn ResidualFunc, v0 []float64) ([]float64, error) {
	return brent(fn, b.Bracket, b.MaxIter, true)
}

const brentTol = 1e-12

func brent(fn ResidualFunc, bracket [2]float64, maxiter int, hyperbolic bool) ([]float64, error) {
	xpre, xcur := bracket[0], bracket[1]
	fpre, done, err := residual(fn, xpre)
	if err != nil {
		return nil, err
	}
	if done {
		return []float64{xpre}, nil
	}
	fcur, done, err := residual(fn, xcur)
	if err != nil {
		return nil, err
	}
	if done {
		return []float64{xcur}, nil
	}
	if fpre*fcur > 0 {
		return nil, ErrBadBracket
	}
	var xblk, fblk, spre, scur float64
	for i := 0; i < maxiter; i++ {
		if fpre*fcur < 0 {
			xblk, fblk = xpre, fpre
			spre = xcur - xpre
			scur = spre
		}
		if math.Abs(fblk) < math.Abs(fcur) {
			xpre, xcur, xblk = xcur, xblk, xcur
			fpre, fcur, fblk = fcur, fblk, fcur
		}
		delta := brentTol * (math.Abs(xcur) + 1)
		sbis := (xblk - xcur) / 2
		if fcur == 0 || math.Abs(sbis) < delta {
			// numerical root without the constraint convergence
			// signal still counts as non-convergence
			return []float64{xcur}, ErrNotConverged
		}
		if math.Abs(spre) > delta && math.Abs(fcur) < math.Abs(fpre) {
			var stry float64
			if xpre == xblk {
				// secant step
				stry = -fcur * (xcur - xpre) / (fcur - fpre)
			} else if hyperbolic {
				dpre := (fpre - fcur) / (xpre - xcur)
				dblk := (fblk - fcur) / (xblk - xcur)
				stry = -fcur * (fblk - fpre) / (fblk*dpre - fpre*dblk)
			} else {
				dpre := (fpre - fcur) / (xpre - xcur)
				dblk := (fblk - fcur) / (xblk - xcur)
				stry = -fcur * (fblk*dblk - fpre*dpre) /
					(dblk * dpre * (fblk - fpre))
			}
			if 2*math.Abs(stry) < math.Min(math.Abs(spre), 3*math.Abs(sbis)-delta) {
				spre, scur = scur, stry
			} else {
				spre, scur = sbis, sbis
			}
		} else {
			spre, scur = sbis, sbis
		}
		xpre, fpre = xcur, fcur
		if math.Abs(scur) > delta {
			xcur += scur
		} else if sbis > 0 {
			xcur += delta
		} else {
			xcur -= delta
		}
		fcur, done, err = residual(fn, xcur)
		if err != nil {
			return nil, err
		}
		if done {
			return []float64{xcur}, nil
		}
	}
	return []float64{xcur}, ErrNotConverged
}

// LBFGS maximizes the free energy over a multiplier vector with the
// bound-constrained quasi-Newton search, feeding -W and its analytic
// gradient -(N-N0) to the optimizer. Once an evaluation reports
// convergence the wrapper replays the last value with a zero gradient,
// which trips the projected-gradient stop on the next test.
type LBFGS struct {
	MaxIter int
	M       int // correction pairs, default 10
}

func (l LBFGS) Optimize(fn ResidualFunc, v0 []float64) ([]float64, error) {
	var (
		done    bool
		vdone   []float64
		last    Eval
		evalErr error
	)
	eval := func(x, g []float64) float64 {
		if done || evalErr != nil {
			for i := range g {
				g[i] = 0
			}
			return last.F
		}
		ev, err := fn(x)
		if err != nil {
			evalErr = err
			for i := range g {
				g[i] = 0
			}
			return last.F
		}
		last = ev
		copy(g, ev.Grad)
		if ev.Converged {
			done = true
			vdone = append([]float64(nil), x...)
		}
		return ev.F
	}
	m := l.M
	if m == 0 {
		m = 10
	}
	prob := lbfgsb.Problem{
		N:    len(v0),
		M:    m,
		Eval: eval,
		Stop: lbfgsb.Termination{
			MaxIterations:     l.MaxIter,
			EpsAccuracyFactor: 1e7,
			ProjGradTolerance: 1e-10,
		},
	}
	opt, err := prob.New(nil)
	if err != nil {
		return nil, err
	}
	res := opt.Fit(append([]float64(nil), v0...), opt.Init())
	if evalErr != nil {
		return nil, evalErr
	}
	if done {
		return vdone, nil
	}
	return res.X, ErrNotConverged
}
