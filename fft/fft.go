// Package fft implements the unitary 3D discrete Fourier transform used by
// the solver, with Hermitian compaction for real fields.
//
// The transform is normalized symmetrically: both directions scale by
// 1/√(N1·N2·N3), so Forward and Inverse are exact mutual inverses up to
// rounding and Parseval's identity holds between a Field and its Spectrum
// without correction factors. Real input makes the full complex spectrum
// conjugate-symmetric; only the non-negative half of axis 2 is stored, with
// the DC plane at index 0 and the Nyquist plane at index N3/2.
//
// Per-line 1D passes are independent and run on a bounded worker pool with
// fixed index assignment, so repeated transforms are bit-reproducible.
package fft

import (
	"math"
	"math/cmplx"
)

// plan caches the twiddle factors for one power-of-two length.
type plan struct {
	n int
	w []complex128 // w[k] = exp(-2πik/n), k < n/2
}

func newPlan(n int) *plan {
	p := &plan{n: n, w: make([]complex128, n/2)}
	for k := range p.w {
		p.w[k] = cmplx.Exp(complex(0, -2*math.Pi*float64(k)/float64(n)))
	}
	return p
}

// transform runs an in-place unnormalized Cooley–Tukey pass over x, which
// must have length p.n.
func (p *plan) transform(x []complex128, inverse bool) {
	n := p.n
	// Bit-reversal permutation.
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j |= bit
		if i < j {
			x[i], x[j] = x[j], x[i]
		}
	}
	// Butterflies.
	for size := 2; size <= n; size <<= 1 {
		half := size >> 1
		step := n / size
		for base := 0; base < n; base += size {
			for k := 0; k < half; k++ {
				w := p.w[k*step]
				if inverse {
					w = complex(real(w), -imag(w))
				}
				a := x[base+k]
				b := x[base+half+k] * w
				x[base+k] = a + b
				x[base+half+k] = a - b
			}
		}
	}
}
