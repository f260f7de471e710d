// Package operator implements the spectral-space operators that build the
// right-hand side of the momentum equation: divergence-free projection, the
// dealiased pseudospectral nonlinear term, viscous damping, deterministic
// shell forcing, and the optional mask and descent stages.
//
// All operators act on Hermitian-compacted spectra from the grid package.
// Optional stages are resolved by name through a registry at configuration
// time; absent stages contribute nothing to the right-hand side.
package operator

import "github.com/sbl8/spectra/grid"

// Velocity is the spectral state of the three velocity components.
type Velocity [3]*grid.Spectrum

// NewVelocity allocates a zero velocity state on g.
func NewVelocity(g *grid.Grid) Velocity {
	return Velocity{grid.NewSpectrum(g), grid.NewSpectrum(g), grid.NewSpectrum(g)}
}

// Clone returns an independent copy of the state.
func (u Velocity) Clone() Velocity {
	return Velocity{u[0].Clone(), u[1].Clone(), u[2].Clone()}
}

// Zero clears all components.
func (u Velocity) Zero() {
	for _, c := range u {
		c.Zero()
	}
}

// Energy is the total kinetic energy ½ Σ w|U|² over all components.
func (u Velocity) Energy() float64 {
	return 0.5 * (u[0].Energy() + u[1].Energy() + u[2].Energy())
}

// AXPY accumulates u += a·v componentwise.
func (u Velocity) AXPY(a float64, v Velocity) {
	ca := complex(a, 0)
	for c := 0; c < 3; c++ {
		for i := range u[c].Data {
			u[c].Data[i] += ca * v[c].Data[i]
		}
	}
}

// Dealias zeroes every mode outside the 2/3-rule truncation of s, which
// suppresses aliasing error from pointwise products and, as a side effect,
// clears the Nyquist planes so spectral derivatives stay Hermitian.
func Dealias(s *grid.Spectrum) {
	g := s.Grid
	for i1 := 0; i1 < g.N1; i1++ {
		for i2 := 0; i2 < g.N2; i2++ {
			base := (i1*g.N2 + i2) * g.H3
			for h := 0; h < g.H3; h++ {
				if !g.Dealiased(i1, i2, h) {
					s.Data[base+h] = 0
				}
			}
		}
	}
}
