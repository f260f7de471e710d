package operator

import (
	"math"

	"github.com/sbl8/spectra/grid"
	"github.com/sbl8/spectra/prng"
)

// Per-component draw streams for the forcing amplitudes.
const (
	forceStreamRe = 100
	forceStreamIm = 200
)

// ShellForcing injects a fixed divergence-free forcing confined to the thin
// wavenumber shell |k| ≈ k_f. The pattern is a pure function of the seed:
// every mode amplitude derives from the counter RNG keyed by its wavenumber,
// so equal seeds produce bit-identical forcing. Hermitian symmetry on the
// self-conjugate planes is kept by drawing at the canonical representative
// of each conjugate pair and mirroring.
type ShellForcing struct {
	Shell     int
	Amplitude float64
	Seed      uint64

	f Velocity // precomputed spectral forcing
}

// NewShellForcing precomputes the forcing pattern on g.
func NewShellForcing(g *grid.Grid, kf float64, amplitude float64, seed uint64) *ShellForcing {
	sf := &ShellForcing{
		Shell:     int(math.Round(kf)),
		Amplitude: amplitude,
		Seed:      seed,
		f:         NewVelocity(g),
	}
	sf.build(g)
	return sf
}

func (sf *ShellForcing) build(g *grid.Grid) {
	for i1 := 0; i1 < g.N1; i1++ {
		for i2 := 0; i2 < g.N2; i2++ {
			for h := 0; h < g.H3; h++ {
				kx, ky, kz := g.Wavenumber(i1, i2, h)
				if kx == 0 && ky == 0 && kz == 0 {
					continue
				}
				if g.Shell(i1, i2, h) != sf.Shell {
					continue
				}
				if g.SelfConjugatePlane(h) && !g.Canonical(i1, i2) {
					continue // filled by the canonical partner below
				}
				v := sf.drawMode(g, kx, ky, kz, g.SelfConjugatePlane(h) && g.SelfPaired(i1, i2))
				idx := g.Index(i1, i2, h)
				for c := 0; c < 3; c++ {
					sf.f[c].Data[idx] = v[c]
				}
				if g.SelfConjugatePlane(h) && !g.SelfPaired(i1, i2) {
					j1, j2 := g.Conjugate(i1, i2)
					jdx := g.Index(j1, j2, h)
					for c := 0; c < 3; c++ {
						sf.f[c].Data[jdx] = complex(real(v[c]), -imag(v[c]))
					}
				}
			}
		}
	}
}

// drawMode produces the unit divergence-free amplitude for one mode.
// Self-paired modes must stay real to remain Hermitian.
func (sf *ShellForcing) drawMode(g *grid.Grid, kx, ky, kz int, realOnly bool) [3]complex128 {
	var xi [3]complex128
	for c := 0; c < 3; c++ {
		re := prng.Norm(sf.Seed, kx, ky, kz, uint32(forceStreamRe+c))
		im := 0.0
		if !realOnly {
			im = prng.Norm(sf.Seed, kx, ky, kz, uint32(forceStreamIm+c))
		}
		xi[c] = complex(re, im)
	}

	// Project perpendicular to k.
	k2 := float64(kx*kx + ky*ky + kz*kz)
	dot := (complex(float64(kx), 0)*xi[0] +
		complex(float64(ky), 0)*xi[1] +
		complex(float64(kz), 0)*xi[2]) / complex(k2, 0)
	xi[0] -= complex(float64(kx), 0) * dot
	xi[1] -= complex(float64(ky), 0) * dot
	xi[2] -= complex(float64(kz), 0) * dot

	var mag float64
	for c := 0; c < 3; c++ {
		mag += real(xi[c])*real(xi[c]) + imag(xi[c])*imag(xi[c])
	}
	if mag < 1e-24 {
		return [3]complex128{}
	}
	scale := complex(sf.Amplitude/math.Sqrt(mag), 0)
	for c := 0; c < 3; c++ {
		xi[c] *= scale
	}
	return xi
}

// Add accumulates the forcing into rhs.
func (sf *ShellForcing) Add(rhs Velocity) {
	for c := 0; c < 3; c++ {
		for i := range rhs[c].Data {
			rhs[c].Data[i] += sf.f[c].Data[i]
		}
	}
}

// Input is the instantaneous energy injection rate Σ w·Re(F·conj(U)), used
// by the energy budget diagnostic.
func (sf *ShellForcing) Input(u Velocity) float64 {
	g := u[0].Grid
	var in float64
	for c := 0; c < 3; c++ {
		for i1 := 0; i1 < g.N1; i1++ {
			for i2 := 0; i2 < g.N2; i2++ {
				base := (i1*g.N2 + i2) * g.H3
				for h := 0; h < g.H3; h++ {
					f := sf.f[c].Data[base+h]
					v := u[c].Data[base+h]
					in += g.Weight(h) * (real(f)*real(v) + imag(f)*imag(v))
				}
			}
		}
	}
	return in
}
