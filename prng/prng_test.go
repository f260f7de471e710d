package prng

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterminism(t *testing.T) {
	t.Parallel()
	for _, k := range [][3]int{{0, 0, 0}, {1, -2, 3}, {-8, 8, 4}} {
		a := Bits(42, k[0], k[1], k[2], StreamPhase)
		b := Bits(42, k[0], k[1], k[2], StreamPhase)
		assert.Equal(t, a, b, "same key must reproduce bits")
	}
}

func TestSeedAndStreamSeparation(t *testing.T) {
	t.Parallel()
	a := Bits(1, 3, 4, 5, StreamPhase)
	b := Bits(2, 3, 4, 5, StreamPhase)
	c := Bits(1, 3, 4, 5, StreamSign)
	assert.NotEqual(t, a, b, "different seeds must diverge")
	assert.NotEqual(t, a, c, "different streams must diverge")
}

func TestCoordinateSeparation(t *testing.T) {
	t.Parallel()
	// Negative wavenumbers must not collide with positive ones.
	assert.NotEqual(t, Bits(7, 1, 0, 0, 0), Bits(7, -1, 0, 0, 0))
	assert.NotEqual(t, Bits(7, 0, 2, 1, 0), Bits(7, 0, 1, 2, 0))
}

func TestUniformRange(t *testing.T) {
	t.Parallel()
	sum := 0.0
	const n = 4096
	for i := 0; i < n; i++ {
		u := Uniform(99, i, i*3, -i, StreamPhase)
		require.GreaterOrEqual(t, u, 0.0)
		require.Less(t, u, 1.0)
		sum += u
	}
	assert.InDelta(t, 0.5, sum/n, 0.02, "uniform mean")
}

func TestPhaseRange(t *testing.T) {
	t.Parallel()
	for i := 0; i < 256; i++ {
		p := Phase(5, i, -i, 2*i)
		require.GreaterOrEqual(t, p, 0.0)
		require.Less(t, p, 2*math.Pi)
	}
}

func TestNormMoments(t *testing.T) {
	t.Parallel()
	const n = 8192
	var sum, sq float64
	for i := 0; i < n; i++ {
		x := Norm(123, i, 0, 0, 100)
		sum += x
		sq += x * x
	}
	assert.InDelta(t, 0.0, sum/n, 0.05, "normal mean")
	assert.InDelta(t, 1.0, sq/n, 0.1, "normal variance")
}
