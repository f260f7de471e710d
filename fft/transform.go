package fft

import (
	"errors"
	"fmt"
	"math"

	"github.com/sbl8/spectra/grid"
)

// ErrSymmetry reports Hermitian-symmetry violations in spectral data: either
// stored conjugate pairs disagree beyond tolerance, or the inverse transform
// of a claimed-real spectrum produced a non-negligible imaginary part. Both
// indicate corrupted input or a transform bug and are fatal.
var ErrSymmetry = errors.New("hermitian symmetry violation")

// symTol bounds the relative conjugate-pair and imaginary-residue error.
const symTol = 1e-8

// SymmetryError carries the offending residue.
type SymmetryError struct {
	Detail  string
	Residue float64
}

func (e *SymmetryError) Error() string {
	return fmt.Sprintf("%s: %s (residue %.3e)", ErrSymmetry.Error(), e.Detail, e.Residue)
}

func (e *SymmetryError) Unwrap() error { return ErrSymmetry }

// Transform is the reusable spectral transform engine for one grid. It owns
// the per-axis plans and a full-cube work buffer; it is not safe for
// concurrent use by multiple goroutines, matching the one-pipeline-per-run
// execution model.
type Transform struct {
	g       *grid.Grid
	workers int
	p1      *plan
	p2      *plan
	p3      *plan
	cube    []complex128
	scale   float64
}

// New builds a Transform for g. workers <= 0 selects one per CPU.
func New(g *grid.Grid, workers int) *Transform {
	return &Transform{
		g:       g,
		workers: workers,
		p1:      newPlan(g.N1),
		p2:      newPlan(g.N2),
		p3:      newPlan(g.N3),
		cube:    make([]complex128, g.NumPoints()),
		scale:   1 / math.Sqrt(float64(g.NumPoints())),
	}
}

// Grid returns the transform's grid.
func (t *Transform) Grid() *grid.Grid { return t.g }

// Forward computes the unitary 3D transform of a real field and compacts it
// to the stored Hermitian half.
func (t *Transform) Forward(f *grid.Field) (*grid.Spectrum, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	g := t.g
	for i, v := range f.Data {
		t.cube[i] = complex(v, 0)
	}
	t.transformCube(false)

	s := grid.NewSpectrum(g)
	for i1 := 0; i1 < g.N1; i1++ {
		for i2 := 0; i2 < g.N2; i2++ {
			src := (i1*g.N2 + i2) * g.N3
			dst := (i1*g.N2 + i2) * g.H3
			for h := 0; h < g.H3; h++ {
				s.Data[dst+h] = t.cube[src+h] * complex(t.scale, 0)
			}
		}
	}
	return s, nil
}

// Inverse reconstructs the real field from a compacted spectrum. The stored
// self-conjugate planes are checked for Hermitian consistency before the
// transform, and the reconstructed cube is checked for imaginary residue
// after it; either breach returns a SymmetryError.
func (t *Transform) Inverse(s *grid.Spectrum) (*grid.Field, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := t.checkPlanes(s); err != nil {
		return nil, err
	}
	g := t.g

	// Expand the compacted half to the full cube by conjugate mirroring.
	for i1 := 0; i1 < g.N1; i1++ {
		for i2 := 0; i2 < g.N2; i2++ {
			j1, j2 := g.Conjugate(i1, i2)
			dst := (i1*g.N2 + i2) * g.N3
			src := (i1*g.N2 + i2) * g.H3
			mirror := (j1*g.N2 + j2) * g.H3
			for i3 := 0; i3 < g.N3; i3++ {
				if i3 < g.H3 {
					t.cube[dst+i3] = s.Data[src+i3]
				} else {
					c := s.Data[mirror+g.N3-i3]
					t.cube[dst+i3] = complex(real(c), -imag(c))
				}
			}
		}
	}
	t.transformCube(true)

	f := grid.NewField(g)
	var maxIm, maxAbs float64
	for i, c := range t.cube {
		re := real(c) * t.scale
		im := imag(c) * t.scale
		f.Data[i] = re
		if a := math.Abs(im); a > maxIm {
			maxIm = a
		}
		if a := math.Abs(re); a > maxAbs {
			maxAbs = a
		}
	}
	if maxIm > symTol*(maxAbs+1) {
		return nil, &SymmetryError{Detail: "imaginary residue after inverse", Residue: maxIm}
	}
	return f, nil
}

// checkPlanes verifies that the kz=0 and kz=Nyquist planes, whose conjugate
// partners are also stored, actually agree with them.
func (t *Transform) checkPlanes(s *grid.Spectrum) error {
	g := t.g
	var maxAbs float64
	for _, c := range s.Data {
		if a := math.Hypot(real(c), imag(c)); a > maxAbs {
			maxAbs = a
		}
	}
	tol := symTol * (maxAbs + 1)
	for _, h := range []int{0, g.N3 / 2} {
		for i1 := 0; i1 < g.N1; i1++ {
			for i2 := 0; i2 < g.N2; i2++ {
				if !g.Canonical(i1, i2) {
					continue
				}
				j1, j2 := g.Conjugate(i1, i2)
				a := s.At(i1, i2, h)
				b := s.At(j1, j2, h)
				d := a - complex(real(b), -imag(b))
				if math.Hypot(real(d), imag(d)) > tol {
					return &SymmetryError{
						Detail:  fmt.Sprintf("pair (%d,%d,%d)/(%d,%d,%d) disagrees", i1, i2, h, j1, j2, h),
						Residue: math.Hypot(real(d), imag(d)),
					}
				}
			}
		}
	}
	return nil
}

// transformCube runs the three per-axis passes over the full work cube.
func (t *Transform) transformCube(inverse bool) {
	g := t.g
	n1, n2, n3 := g.N1, g.N2, g.N3

	// Axis 2: contiguous rows.
	parallelLines(n1*n2, t.workers, 0, func(line int, _ []complex128) {
		t.p3.transform(t.cube[line*n3:(line+1)*n3], inverse)
	})

	// Axis 1: stride n3 within each i1 slab.
	parallelLines(n1*n3, t.workers, n2, func(line int, scratch []complex128) {
		i1 := line / n3
		i3 := line % n3
		base := i1*n2*n3 + i3
		for i2 := 0; i2 < n2; i2++ {
			scratch[i2] = t.cube[base+i2*n3]
		}
		t.p2.transform(scratch[:n2], inverse)
		for i2 := 0; i2 < n2; i2++ {
			t.cube[base+i2*n3] = scratch[i2]
		}
	})

	// Axis 0: stride n2*n3.
	parallelLines(n2*n3, t.workers, n1, func(line int, scratch []complex128) {
		for i1 := 0; i1 < n1; i1++ {
			scratch[i1] = t.cube[i1*n2*n3+line]
		}
		t.p1.transform(scratch[:n1], inverse)
		for i1 := 0; i1 < n1; i1++ {
			t.cube[i1*n2*n3+line] = scratch[i1]
		}
	})
}
