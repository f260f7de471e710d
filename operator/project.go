package operator

import (
	"errors"
	"fmt"
)

// ErrDivergence reports a projection residual above tolerance. The projected
// state is supposed to be divergence-free by construction, so a breach means
// corrupted data or an operator bug and is fatal for the run.
var ErrDivergence = errors.New("divergence exceeded")

// DivergenceTol is the absolute-or-relative bound on the divergence norm.
const DivergenceTol = 1e-12

// DivergenceError carries the offending norm.
type DivergenceError struct {
	Norm      float64
	Threshold float64
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("%s: norm %.3e exceeds %.3e", ErrDivergence.Error(), e.Norm, e.Threshold)
}

func (e *DivergenceError) Unwrap() error { return ErrDivergence }

// Project removes the component of u parallel to k at every nonzero
// wavenumber, in place: U' = U − k(k·U)/|k|². The DC mode passes unchanged.
//
// The aliased Nyquist wavenumber +N/2 stands for both ±N/2, so the
// projection direction there is undefined and applying it with either sign
// breaks the Hermitian pairing on the self-conjugate planes. Modes carrying
// a Nyquist component on any axis are zeroed instead; the dealiasing mask
// removes them during stepping anyway.
func Project(u Velocity) {
	g := u[0].Grid
	nx, ny, nz := g.N1/2, g.N2/2, g.N3/2
	for i1 := 0; i1 < g.N1; i1++ {
		for i2 := 0; i2 < g.N2; i2++ {
			base := (i1*g.N2 + i2) * g.H3
			for h := 0; h < g.H3; h++ {
				kx, ky, kz := g.Wavenumber(i1, i2, h)
				if kx == nx || ky == ny || kz == nz {
					u[0].Data[base+h] = 0
					u[1].Data[base+h] = 0
					u[2].Data[base+h] = 0
					continue
				}
				k2 := float64(kx*kx + ky*ky + kz*kz)
				if k2 == 0 {
					continue
				}
				dot := complex(float64(kx), 0)*u[0].Data[base+h] +
					complex(float64(ky), 0)*u[1].Data[base+h] +
					complex(float64(kz), 0)*u[2].Data[base+h]
				dot /= complex(k2, 0)
				u[0].Data[base+h] -= complex(float64(kx), 0) * dot
				u[1].Data[base+h] -= complex(float64(ky), 0) * dot
				u[2].Data[base+h] -= complex(float64(kz), 0) * dot
			}
		}
	}
}

// DivergenceNorm is Σ w |k·U|² over all stored modes.
func DivergenceNorm(u Velocity) float64 {
	g := u[0].Grid
	var norm float64
	for i1 := 0; i1 < g.N1; i1++ {
		for i2 := 0; i2 < g.N2; i2++ {
			base := (i1*g.N2 + i2) * g.H3
			for h := 0; h < g.H3; h++ {
				kx, ky, kz := g.Wavenumber(i1, i2, h)
				dot := complex(float64(kx), 0)*u[0].Data[base+h] +
					complex(float64(ky), 0)*u[1].Data[base+h] +
					complex(float64(kz), 0)*u[2].Data[base+h]
				norm += g.Weight(h) * (real(dot)*real(dot) + imag(dot)*imag(dot))
			}
		}
	}
	return norm
}

// CheckDivergence verifies the divergence-free invariant: the norm must be
// below tolerance either absolutely or relative to the kinetic energy.
func CheckDivergence(u Velocity) error {
	norm := DivergenceNorm(u)
	if norm <= DivergenceTol {
		return nil
	}
	if e := u.Energy(); e > 0 && norm <= DivergenceTol*e {
		return nil
	}
	return &DivergenceError{Norm: norm, Threshold: DivergenceTol}
}
