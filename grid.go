package main

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// fftfreq returns the integer frequencies of an n-point DFT in the
// standard order: 0, 1, ..., n/2-1, -n/2, ..., -1
func fftfreq(n int) []int {
	out := make([]int, n)
	half := (n + 1) / 2
	for i := 0; i < half; i++ {
		out[i] = i
	}
	for i := half; i < n; i++ {
		out[i] = i - n
	}
	return out
}

// transform3 applies a 1-D complex transform along all three axes of
// the flattened n1 x n2 x n3 array in place. fwd selects the forward
// transform; otherwise the unnormalized inverse is applied.
func transform3(data []complex128, n1, n2, n3 int, fwd bool) {
	apply := func(fft *fourier.CmplxFFT, buf []complex128) {
		if fwd {
			fft.Coefficients(buf, buf)
		} else {
			fft.Sequence(buf, buf)
		}
	}
	// axis 3 is contiguous
	fft3 := fourier.NewCmplxFFT(n3)
	for i1 := 0; i1 < n1; i1++ {
		for i2 := 0; i2 < n2; i2++ {
			off := (i1*n2 + i2) * n3
			apply(fft3, data[off:off+n3])
		}
	}
	fft2 := fourier.NewCmplxFFT(n2)
	buf2 := make([]complex128, n2)
	for i1 := 0; i1 < n1; i1++ {
		for i3 := 0; i3 < n3; i3++ {
			for i2 := 0; i2 < n2; i2++ {
				buf2[i2] = data[(i1*n2+i2)*n3+i3]
			}
			apply(fft2, buf2)
			for i2 := 0; i2 < n2; i2++ {
				data[(i1*n2+i2)*n3+i3] = buf2[i2]
			}
		}
	}
	fft1 := fourier.NewCmplxFFT(n1)
	buf1 := make([]complex128, n1)
	for i2 := 0; i2 < n2; i2++ {
		for i3 := 0; i3 < n3; i3++ {
			for i1 := 0; i1 < n1; i1++ {
				buf1[i1] = data[(i1*n2+i2)*n3+i3]
			}
			apply(fft1, buf1)
			for i1 := 0; i1 < n1; i1++ {
				data[(i1*n2+i2)*n3+i3] = buf1[i1]
			}
		}
	}
}

// FFT3 computes the forward 3-D DFT in place
func FFT3(data []complex128, n1, n2, n3 int) {
	transform3(data, n1, n2, n3, true)
}

// IFFT3 computes the normalized inverse 3-D DFT in place
func IFFT3(data []complex128, n1, n2, n3 int) {
	transform3(data, n1, n2, n3, false)
	scale := complex(1/float64(n1*n2*n3), 0)
	for i := range data {
		data[i] *= scale
	}
}

// Phase returns the structure factor e^{-i G.R} on s's grid for the
// coordinate r. It is built from per-axis factors so the full grid
// costs three complex exponentials per point dimension, not one per
// point.
func (s *Sample) Phase(r [3]float64) []complex128 {
	igr := [3]float64{}
	for i := 0; i < 3; i++ {
		igr[i] = s.Gv[i][0]*r[0] + s.Gv[i][1]*r[1] + s.Gv[i][2]*r[2]
	}
	e1 := phaseAxis(s.N1, igr[0])
	e2 := phaseAxis(s.N2, igr[1])
	e3 := phaseAxis(s.N3, igr[2])
	out := make([]complex128, s.N())
	for i1 := 0; i1 < s.N1; i1++ {
		for i2 := 0; i2 < s.N2; i2++ {
			e12 := e1[i1] * e2[i2]
			off := (i1*s.N2 + i2) * s.N3
			for i3 := 0; i3 < s.N3; i3++ {
				out[off+i3] = e12 * e3[i3]
			}
		}
	}
	return out
}

func phaseAxis(n int, gr float64) []complex128 {
	out := make([]complex128, n)
	for i, h := range fftfreq(n) {
		out[i] = cmplx.Exp(complex(0, -gr*float64(h)))
	}
	return out
}

// realPart extracts the real parts of data, warning if the imaginary
// residue is beyond floating tolerance of the field's scale
func realPart(data []complex128, what string) []float64 {
	out := make([]float64, len(data))
	var maxRe, maxIm float64
	for i, v := range data {
		out[i] = real(v)
		if a := math.Abs(real(v)); a > maxRe {
			maxRe = a
		}
		if a := math.Abs(imag(v)); a > maxIm {
			maxIm = a
		}
	}
	if maxIm > 1e-6*(maxRe+1) {
		Warn("%s has imaginary residue %g (max real %g)", what, maxIm, maxRe)
	}
	return out
}
