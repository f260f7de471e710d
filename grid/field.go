package grid

import (
	"fmt"
	"math"
)

// Field is a real-valued sample array over the periodic grid, row-major with
// axis 2 fastest. During a run it is owned exclusively by the integrator.
type Field struct {
	Grid *Grid
	Data []float64
}

// NewField allocates a zero Field on g.
func NewField(g *Grid) *Field {
	return &Field{Grid: g, Data: make([]float64, g.NumPoints())}
}

// Validate checks the backing array against the grid shape.
func (f *Field) Validate() error {
	if f == nil || f.Grid == nil {
		return fmt.Errorf("%w: nil field", ErrDims)
	}
	if len(f.Data) != f.Grid.NumPoints() {
		return fmt.Errorf("%w: field has %d samples, grid wants %d",
			ErrDims, len(f.Data), f.Grid.NumPoints())
	}
	return nil
}

// At returns the sample at physical coordinate (i1, i2, i3).
func (f *Field) At(i1, i2, i3 int) float64 {
	return f.Data[f.Grid.PointIndex(i1, i2, i3)]
}

// Set stores the sample at physical coordinate (i1, i2, i3).
func (f *Field) Set(i1, i2, i3 int, v float64) {
	f.Data[f.Grid.PointIndex(i1, i2, i3)] = v
}

// Energy is the squared l2 norm Σ x², the physical side of the Parseval
// balance.
func (f *Field) Energy() float64 {
	var e float64
	for _, v := range f.Data {
		e += v * v
	}
	return e
}

// MaxAbs returns the largest absolute sample, used for CFL estimates.
func (f *Field) MaxAbs() float64 {
	var m float64
	for _, v := range f.Data {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}

// Clone returns an independent copy.
func (f *Field) Clone() *Field {
	c := NewField(f.Grid)
	copy(c.Data, f.Data)
	return c
}

// Spectrum is the Hermitian-compacted complex representation of a Field,
// shape N1 × N2 × (N3/2+1), same linearization as Grid.Index.
//
// The mask fingerprint records which multiplicative mask filter, if any, has
// already been applied, so that a repeated application within one pipeline
// pass is a no-op rather than a compounded attenuation.
type Spectrum struct {
	Grid *Grid
	Data []complex128

	MaskTag uint64
}

// NewSpectrum allocates a zero Spectrum on g.
func NewSpectrum(g *Grid) *Spectrum {
	return &Spectrum{Grid: g, Data: make([]complex128, g.NumModes())}
}

// Validate checks the backing array against the grid shape.
func (s *Spectrum) Validate() error {
	if s == nil || s.Grid == nil {
		return fmt.Errorf("%w: nil spectrum", ErrDims)
	}
	if len(s.Data) != s.Grid.NumModes() {
		return fmt.Errorf("%w: spectrum has %d modes, grid wants %d",
			ErrDims, len(s.Data), s.Grid.NumModes())
	}
	return nil
}

// At returns the coefficient of the compacted mode (i1, i2, h).
func (s *Spectrum) At(i1, i2, h int) complex128 {
	return s.Data[s.Grid.Index(i1, i2, h)]
}

// Set stores the coefficient of the compacted mode (i1, i2, h).
func (s *Spectrum) Set(i1, i2, h int, v complex128) {
	s.Data[s.Grid.Index(i1, i2, h)] = v
}

// Energy is the weighted squared l2 norm Σ w|X|², the spectral side of the
// Parseval balance.
func (s *Spectrum) Energy() float64 {
	g := s.Grid
	var e float64
	for i1 := 0; i1 < g.N1; i1++ {
		for i2 := 0; i2 < g.N2; i2++ {
			base := (i1*g.N2 + i2) * g.H3
			for h := 0; h < g.H3; h++ {
				c := s.Data[base+h]
				e += g.Weight(h) * (real(c)*real(c) + imag(c)*imag(c))
			}
		}
	}
	return e
}

// Clone returns an independent copy, mask fingerprint included.
func (s *Spectrum) Clone() *Spectrum {
	c := NewSpectrum(s.Grid)
	copy(c.Data, s.Data)
	c.MaskTag = s.MaskTag
	return c
}

// Zero clears all coefficients and the mask fingerprint.
func (s *Spectrum) Zero() {
	for i := range s.Data {
		s.Data[i] = 0
	}
	s.MaskTag = 0
}

// ShellSpectrum bins the weighted mode energies by radial shell index,
// giving the shell-averaged energy spectrum E(k).
func (s *Spectrum) ShellSpectrum() []float64 {
	g := s.Grid
	bins := make([]float64, g.ShellCount())
	for i1 := 0; i1 < g.N1; i1++ {
		for i2 := 0; i2 < g.N2; i2++ {
			base := (i1*g.N2 + i2) * g.H3
			for h := 0; h < g.H3; h++ {
				c := s.Data[base+h]
				bins[g.Shell(i1, i2, h)] += g.Weight(h) * (real(c)*real(c) + imag(c)*imag(c))
			}
		}
	}
	return bins
}
