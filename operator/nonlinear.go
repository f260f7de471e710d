package operator

import (
	"fmt"

	"github.com/sbl8/spectra/fft"
	"github.com/sbl8/spectra/grid"
)

// Nonlinear evaluates the advective term −u·∇u pseudospectrally: velocity
// and its gradient go to physical space, the product is formed pointwise,
// and the result returns to spectral space. The 2/3-rule mask is applied to
// every spectrum before it is inverse-transformed and again to the product,
// and the output is projected so it cannot carry a divergence component.
type Nonlinear struct {
	tr *fft.Transform
}

// NewNonlinear builds the operator on a shared transform engine.
func NewNonlinear(tr *fft.Transform) *Nonlinear {
	return &Nonlinear{tr: tr}
}

// Apply computes N = −Π(dealias(F(u·∇u))) and returns it as a new state.
func (nl *Nonlinear) Apply(u Velocity) (Velocity, error) {
	g := nl.tr.Grid()

	// Dealiased copies of the state, shared by velocities and derivatives.
	var ud Velocity
	for c := 0; c < 3; c++ {
		ud[c] = u[c].Clone()
		Dealias(ud[c])
	}

	// Physical velocities.
	var vel [3]*grid.Field
	for c := 0; c < 3; c++ {
		f, err := nl.tr.Inverse(ud[c])
		if err != nil {
			return Velocity{}, fmt.Errorf("nonlinear velocity transform: %w", err)
		}
		vel[c] = f
	}

	out := NewVelocity(g)
	deriv := grid.NewSpectrum(g)
	for i := 0; i < 3; i++ {
		conv := grid.NewField(g)
		for j := 0; j < 3; j++ {
			derivative(ud[i], j, deriv)
			gphys, err := nl.tr.Inverse(deriv)
			if err != nil {
				return Velocity{}, fmt.Errorf("nonlinear gradient transform (du%d/dx%d): %w", i, j, err)
			}
			for p := range conv.Data {
				conv.Data[p] += vel[j].Data[p] * gphys.Data[p]
			}
		}
		s, err := nl.tr.Forward(conv)
		if err != nil {
			return Velocity{}, fmt.Errorf("nonlinear product transform: %w", err)
		}
		Dealias(s)
		for p := range s.Data {
			s.Data[p] = -s.Data[p]
		}
		out[i] = s
	}

	Project(out)
	return out, nil
}

// derivative writes the spectral derivative ik_axis·s into dst. The input is
// already dealiased, so the Nyquist planes are zero and the result stays
// Hermitian.
func derivative(s *grid.Spectrum, axis int, dst *grid.Spectrum) {
	g := s.Grid
	for i1 := 0; i1 < g.N1; i1++ {
		for i2 := 0; i2 < g.N2; i2++ {
			base := (i1*g.N2 + i2) * g.H3
			for h := 0; h < g.H3; h++ {
				kx, ky, kz := g.Wavenumber(i1, i2, h)
				k := [3]int{kx, ky, kz}[axis]
				dst.Data[base+h] = complex(0, float64(k)) * s.Data[base+h]
			}
		}
	}
	dst.MaskTag = 0
}
