package operator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArithHelpers(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 6, Gcd(12, 18))
	assert.Equal(t, 1, Gcd(7, 30))
	assert.Equal(t, 5, Gcd(-5, 10))

	assert.True(t, IsPrime(2))
	assert.True(t, IsPrime(13))
	assert.False(t, IsPrime(1))
	assert.False(t, IsPrime(9))

	assert.Equal(t, 30, Primorial(5))
	assert.Equal(t, 210, Primorial(7))

	assert.InDelta(t, math.Log(2), VonMangoldt(2), 1e-15)
	assert.InDelta(t, math.Log(2), VonMangoldt(8), 1e-15, "prime powers carry log p")
	assert.InDelta(t, math.Log(7), VonMangoldt(7), 1e-15)
	assert.Equal(t, 0.0, VonMangoldt(6), "composite with two prime factors")
	assert.Equal(t, 0.0, VonMangoldt(1))
}

func TestMaskRegistry(t *testing.T) {
	t.Parallel()
	g := mustGrid(t, 8)

	_, err := NewMask(g, MaskSpec{Scheme: "fibonacci"})
	require.ErrorIs(t, err, ErrUnknownScheme)

	assert.Equal(t, []string{"coprime_to_primorial", "prime_shell", "von_mangoldt"}, SchemeNames())
}

func TestMaskSchemes(t *testing.T) {
	t.Parallel()
	g := mustGrid(t, 8)
	tests := []struct {
		name  string
		spec  MaskSpec
		shell int
		want  float64
	}{
		{"coprime keeps coprime shell", MaskSpec{Scheme: "coprime_to_primorial", Primorial: 30, Beta: 0.5}, 1, 1},
		{"coprime attenuates shared factor", MaskSpec{Scheme: "coprime_to_primorial", Primorial: 30, Beta: 0.5}, 6, 0.5},
		{"prime shell kept", MaskSpec{Scheme: "prime_shell", Beta: 0.25}, 3, 1},
		{"composite shell attenuated", MaskSpec{Scheme: "prime_shell", Beta: 0.25}, 4, 0.25},
		{"von mangoldt boosts prime power", MaskSpec{Scheme: "von_mangoldt", Alpha: 0.1}, 4, 1 + 0.1*math.Log(2)},
		{"von mangoldt neutral elsewhere", MaskSpec{Scheme: "von_mangoldt", Alpha: 0.1}, 6, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMask(g, tt.spec)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, m.Factor(tt.shell), 1e-15)
		})
	}
}

func TestMaskParameterValidation(t *testing.T) {
	t.Parallel()
	g := mustGrid(t, 8)
	_, err := NewMask(g, MaskSpec{Scheme: "coprime_to_primorial", Primorial: 1, Beta: 0.5})
	require.Error(t, err)
	_, err = NewMask(g, MaskSpec{Scheme: "prime_shell", Beta: 1.5})
	require.Error(t, err)
	_, err = NewMask(g, MaskSpec{Scheme: "von_mangoldt", Alpha: -1})
	require.Error(t, err)
}

func TestMaskIdempotent(t *testing.T) {
	t.Parallel()
	g := mustGrid(t, 8)
	m, err := NewMask(g, MaskSpec{Scheme: "prime_shell", Beta: 0.5})
	require.NoError(t, err)

	u := randomVelocity(g, 3)
	m.ApplyAll(u)
	once := u.Clone()
	m.ApplyAll(u)
	for c := 0; c < 3; c++ {
		for i := range u[c].Data {
			require.Equal(t, once[c].Data[i], u[c].Data[i], "second application must be a no-op")
		}
	}
}

func TestMaskPreservesDivergenceFreedom(t *testing.T) {
	t.Parallel()
	g := mustGrid(t, 8)
	m, err := NewMask(g, MaskSpec{Scheme: "coprime_to_primorial", Primorial: 6, Beta: 0.3})
	require.NoError(t, err)

	u := randomVelocity(g, 5)
	Project(u)
	m.ApplyAll(u)
	require.NoError(t, CheckDivergence(u))
}

func TestDistinctSpecsReapply(t *testing.T) {
	t.Parallel()
	g := mustGrid(t, 8)
	a, err := NewMask(g, MaskSpec{Scheme: "prime_shell", Beta: 0.5})
	require.NoError(t, err)
	b, err := NewMask(g, MaskSpec{Scheme: "prime_shell", Beta: 0.25})
	require.NoError(t, err)
	require.NotEqual(t, a.Tag, b.Tag)

	u := NewVelocity(g)
	u[0].Set(4, 0, 0, complex(1, 0)) // shell 4, composite
	a.Apply(u[0])
	b.Apply(u[0])
	assert.InDelta(t, 0.5*0.25, real(u[0].At(4, 0, 0)), 1e-15,
		"different filters stack; only identical filters are suppressed")
}
