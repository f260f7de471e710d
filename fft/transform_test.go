package fft

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbl8/spectra/grid"
)

func mustGrid(t *testing.T, n1, n2, n3 int) *grid.Grid {
	t.Helper()
	g, err := grid.New(n1, n2, n3)
	require.NoError(t, err)
	return g
}

// fillWave sets f(x) = cos(kx·x1 + ky·x2 + kz·x3) on the 2π-periodic box.
func fillWave(f *grid.Field, kx, ky, kz int) {
	g := f.Grid
	for i1 := 0; i1 < g.N1; i1++ {
		x1 := 2 * math.Pi * float64(i1) / float64(g.N1)
		for i2 := 0; i2 < g.N2; i2++ {
			x2 := 2 * math.Pi * float64(i2) / float64(g.N2)
			for i3 := 0; i3 < g.N3; i3++ {
				x3 := 2 * math.Pi * float64(i3) / float64(g.N3)
				f.Set(i1, i2, i3, math.Cos(float64(kx)*x1+float64(ky)*x2+float64(kz)*x3))
			}
		}
	}
}

// fillDeterministic fills a field with a reproducible non-symmetric pattern.
func fillDeterministic(f *grid.Field) {
	for i := range f.Data {
		f.Data[i] = math.Sin(0.37*float64(i)) + 0.25*math.Cos(1.13*float64(i*i%257))
	}
}

func TestForwardKnownCosine(t *testing.T) {
	t.Parallel()
	g := mustGrid(t, 8, 8, 8)
	tr := New(g, 1)
	f := grid.NewField(g)
	fillWave(f, 1, 0, 0)

	s, err := tr.Forward(f)
	require.NoError(t, err)

	// cos(x1) splits into k = ±(1,0,0) with amplitude √N/2 each.
	want := math.Sqrt(float64(g.NumPoints())) / 2
	assert.InDelta(t, want, real(s.At(1, 0, 0)), 1e-9)
	assert.InDelta(t, 0.0, imag(s.At(1, 0, 0)), 1e-9)
	assert.InDelta(t, want, real(s.At(7, 0, 0)), 1e-9)

	// Everything else is rounding noise.
	var other float64
	for i1 := 0; i1 < g.N1; i1++ {
		for i2 := 0; i2 < g.N2; i2++ {
			for h := 0; h < g.H3; h++ {
				if (i1 == 1 || i1 == 7) && i2 == 0 && h == 0 {
					continue
				}
				c := s.At(i1, i2, h)
				if a := math.Hypot(real(c), imag(c)); a > other {
					other = a
				}
			}
		}
	}
	assert.Less(t, other, 1e-9)
}

func TestForwardCompactedAxisCosine(t *testing.T) {
	t.Parallel()
	g := mustGrid(t, 8, 8, 8)
	tr := New(g, 1)
	f := grid.NewField(g)
	fillWave(f, 0, 0, 1)

	s, err := tr.Forward(f)
	require.NoError(t, err)

	// Only k = (0,0,1) is stored; its mirror lives in the dropped half.
	want := math.Sqrt(float64(g.NumPoints())) / 2
	assert.InDelta(t, want, real(s.At(0, 0, 1)), 1e-9)
	assert.InDelta(t, float64(g.NumPoints())/2, s.Energy(), 1e-8,
		"weighted spectral energy matches Σcos²")
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	for _, dims := range [][3]int{{8, 8, 8}, {4, 8, 16}, {16, 16, 16}} {
		g := mustGrid(t, dims[0], dims[1], dims[2])
		tr := New(g, 0)
		f := grid.NewField(g)
		fillDeterministic(f)

		s, err := tr.Forward(f)
		require.NoError(t, err)
		back, err := tr.Inverse(s)
		require.NoError(t, err)

		var maxErr, maxVal float64
		for i := range f.Data {
			if d := math.Abs(back.Data[i] - f.Data[i]); d > maxErr {
				maxErr = d
			}
			if a := math.Abs(f.Data[i]); a > maxVal {
				maxVal = a
			}
		}
		assert.Less(t, maxErr/maxVal, 1e-10, "round-trip error on %v", dims)
	}
}

func TestParseval(t *testing.T) {
	t.Parallel()
	g := mustGrid(t, 16, 16, 16)
	tr := New(g, 0)
	f := grid.NewField(g)
	fillDeterministic(f)

	s, err := tr.Forward(f)
	require.NoError(t, err)

	ep := f.Energy()
	es := s.Energy()
	assert.Less(t, math.Abs(ep-es)/ep, 1e-12, "Parseval identity")
}

func TestInverseRejectsBrokenPairs(t *testing.T) {
	t.Parallel()
	g := mustGrid(t, 8, 8, 8)
	tr := New(g, 1)

	s := grid.NewSpectrum(g)
	// A kz=0 mode whose stored conjugate partner disagrees.
	s.Set(1, 0, 0, complex(1, 2))
	s.Set(7, 0, 0, complex(5, 5))

	_, err := tr.Inverse(s)
	require.ErrorIs(t, err, ErrSymmetry)
	var serr *SymmetryError
	require.ErrorAs(t, err, &serr)
	assert.Greater(t, serr.Residue, 0.0)
}

func TestInverseAcceptsConsistentPairs(t *testing.T) {
	t.Parallel()
	g := mustGrid(t, 8, 8, 8)
	tr := New(g, 1)

	s := grid.NewSpectrum(g)
	s.Set(1, 0, 0, complex(1, 2))
	s.Set(7, 0, 0, complex(1, -2))

	f, err := tr.Inverse(s)
	require.NoError(t, err)
	require.NotNil(t, f)
}

func TestParallelMatchesSerial(t *testing.T) {
	t.Parallel()
	g := mustGrid(t, 16, 8, 8)
	f := grid.NewField(g)
	fillDeterministic(f)

	s1, err := New(g, 1).Forward(f)
	require.NoError(t, err)
	s4, err := New(g, 4).Forward(f)
	require.NoError(t, err)

	for i := range s1.Data {
		require.Equal(t, s1.Data[i], s4.Data[i], "worker count must not change bits")
	}
}
