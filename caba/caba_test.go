package caba

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbl8/spectra/fft"
	"github.com/sbl8/spectra/grid"
)

// randomSpectrum builds a Hermitian-consistent spectrum by transforming a
// random physical field, so every container under test is one a writer could
// legitimately produce.
func randomSpectrum(t *testing.T, n int, seed int64) *grid.Spectrum {
	t.Helper()
	g, err := grid.New(n, n, n)
	require.NoError(t, err)
	f := grid.NewField(g)
	rng := rand.New(rand.NewSource(seed))
	for i := range f.Data {
		f.Data[i] = rng.NormFloat64()
	}
	s, err := fft.New(g, 1).Forward(f)
	require.NoError(t, err)
	return s
}

func TestHeaderRoundTrip(t *testing.T) {
	h := &Header{
		Mode:          ModeB,
		Compressor:    CompressorZstd,
		BinSchema:     binSchemaRadial,
		Dims:          [3]uint32{16, 8, 32},
		Nyquist:       [3]uint32{8, 4, 16},
		BinCount:      12,
		Seed:          0xDEADBEEF,
		Parseval:      3.25,
		PayloadRaw:    96,
		PayloadStored: 50,
	}
	buf := h.Marshal()
	require.Len(t, buf, HeaderSize)
	got, err := UnmarshalHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestHeaderRejectsBadFields(t *testing.T) {
	base := (&Header{Mode: ModeA, Dims: [3]uint32{8, 8, 8}, Nyquist: [3]uint32{4, 4, 4}}).Marshal()

	mutate := func(off int, v byte) []byte {
		buf := append([]byte(nil), base...)
		buf[off] = v
		return buf
	}
	cases := []struct {
		name string
		data []byte
	}{
		{"short", base[:HeaderSize-1]},
		{"magic", mutate(0, 'X')},
		{"future major version", mutate(4, 1)},
		{"future minor version", mutate(5, 2)},
		{"unknown mode", mutate(6, 9)},
		{"dtype", mutate(7, 2)},
		{"endianness", mutate(8, 2)},
		{"normalization", mutate(9, 2)},
		{"bin schema", mutate(14, 7)},
		{"nyquist mismatch", mutate(28, 3)},
		{"nonzero dc", mutate(40, 1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := UnmarshalHeader(tc.data)
			assert.ErrorIs(t, err, ErrFormat)
		})
	}
}

func TestModeARoundTrip(t *testing.T) {
	s := randomSpectrum(t, 8, 1)

	data, err := Pack(s, Options{Mode: ModeA})
	require.NoError(t, err)

	got, h, err := UnpackSpectrum(data)
	require.NoError(t, err)
	assert.Equal(t, ModeA, h.Mode)
	assert.Equal(t, s.Data, got.Data, "mode A must be bit-exact")
	assert.Equal(t, s.Energy(), h.Parseval)

	rep, err := Verify(data, 1)
	require.NoError(t, err)
	assert.Less(t, rep.LinfErr, 1e-12)
	assert.Less(t, rep.ParsevalErr, 1e-12)
	assert.Contains(t, rep.Digest(), "Linf=")
}

func TestModeBSameSeedIsDeterministic(t *testing.T) {
	s := randomSpectrum(t, 8, 2)

	data, err := Pack(s, Options{Mode: ModeB, Seed: 42})
	require.NoError(t, err)

	a, _, err := UnpackSpectrum(data)
	require.NoError(t, err)
	b, _, err := UnpackSpectrum(data)
	require.NoError(t, err)
	assert.Equal(t, a.Data, b.Data, "same container must decode identically")
}

func TestModeBPreservesSpectrum(t *testing.T) {
	s := randomSpectrum(t, 8, 3)

	data, err := Pack(s, Options{Mode: ModeB, Seed: 7})
	require.NoError(t, err)

	got, h, err := UnpackSpectrum(data)
	require.NoError(t, err)
	g := s.Grid

	// Per-mode power survives even though the coefficients differ.
	want := modePowers(s)
	have := modePowers(got)
	for i := range want {
		assert.InDelta(t, want[i], have[i], 1e-12*math.Max(want[i], 1))
	}
	assert.InDelta(t, h.Parseval, got.Energy(), 1e-9*math.Max(h.Parseval, 1))
	assert.NotEqual(t, s.Data, got.Data, "phases must be redrawn")

	// The reconstruction must be a valid Hermitian spectrum.
	_, err = fft.New(g, 1).Inverse(got)
	require.NoError(t, err)
}

func TestModeBConjugatePairsOnSelfConjugatePlanes(t *testing.T) {
	// The transformed random field carries power on the Nyquist columns of
	// the kz=0 and kz=Nyquist planes, where both members of a pair are
	// stored explicitly and must come back exactly conjugate.
	s := randomSpectrum(t, 16, 10)

	data, err := Pack(s, Options{Mode: ModeB, Seed: 21})
	require.NoError(t, err)
	got, _, err := UnpackSpectrum(data)
	require.NoError(t, err)

	g := got.Grid
	for _, hz := range []int{0, g.H3 - 1} {
		for i1 := 0; i1 < g.N1; i1++ {
			for i2 := 0; i2 < g.N2; i2++ {
				j1, j2 := g.Conjugate(i1, i2)
				a := got.Data[g.Index(i1, i2, hz)]
				b := got.Data[g.Index(j1, j2, hz)]
				require.InDelta(t, real(a), real(b), 1e-12,
					"pair (%d,%d,%d)/(%d,%d,%d)", i1, i2, hz, j1, j2, hz)
				require.InDelta(t, imag(a), -imag(b), 1e-12,
					"pair (%d,%d,%d)/(%d,%d,%d)", i1, i2, hz, j1, j2, hz)
			}
		}
	}
}

func TestModeBStatistics(t *testing.T) {
	s := randomSpectrum(t, 16, 4)

	data, err := Pack(s, Options{Mode: ModeB, Seed: 99})
	require.NoError(t, err)

	rep, err := Verify(data, 1)
	require.NoError(t, err)
	assert.Less(t, rep.PhaseKS, 0.1, "redrawn phases must look uniform")
	assert.Less(t, rep.SpecMaxDev, 1e-10)
	assert.Less(t, rep.SpecRMSDev, 1e-10)
	assert.Less(t, math.Abs(rep.CrossCorr), 0.1,
		"independent seeds must decorrelate the realizations")
	assert.Less(t, rep.ParsevalErr, 1e-9)
	assert.Contains(t, rep.Digest(), "phase_KS=")
}

func TestRadialBinningConservesEnergy(t *testing.T) {
	s := randomSpectrum(t, 8, 5)

	data, err := Pack(s, Options{Mode: ModeB, Seed: 11, Bins: 5})
	require.NoError(t, err)

	got, h, err := UnpackSpectrum(data)
	require.NoError(t, err)
	assert.Equal(t, uint8(binSchemaRadial), h.BinSchema)
	assert.Equal(t, uint32(5), h.BinCount)
	assert.InDelta(t, h.Parseval, got.Energy(), 1e-9*math.Max(h.Parseval, 1))

	rep, err := Verify(data, 1)
	require.NoError(t, err)
	assert.Less(t, rep.SpecMaxDev, 1e-10, "bin totals must be conserved exactly")
}

func TestCorruptionIsRefused(t *testing.T) {
	s := randomSpectrum(t, 8, 6)
	data, err := Pack(s, Options{Mode: ModeA, Compressor: CompressorGzip})
	require.NoError(t, err)

	t.Run("payload byte", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[HeaderSize+3] ^= 0x01
		_, _, err := UnpackSpectrum(bad)
		assert.ErrorIs(t, err, ErrChecksum)
		_, err = Verify(bad, 1)
		assert.ErrorIs(t, err, ErrChecksum)
	})
	t.Run("checksum field byte", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[80] ^= 0x01 // payload checksum lives at header offset 80
		_, _, err := UnpackSpectrum(bad)
		assert.ErrorIs(t, err, ErrChecksum)
		_, err = Verify(bad, 1)
		assert.ErrorIs(t, err, ErrChecksum)
	})
	t.Run("trailer byte", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[len(bad)-1] ^= 0x01
		_, _, err := UnpackSpectrum(bad)
		assert.ErrorIs(t, err, ErrChecksum)
	})
	t.Run("truncated", func(t *testing.T) {
		_, _, err := UnpackSpectrum(data[:len(data)-8])
		assert.ErrorIs(t, err, ErrFormat)
	})
}

func TestCompressorRoundTrips(t *testing.T) {
	s := randomSpectrum(t, 8, 7)
	for _, c := range []Compressor{CompressorNone, CompressorGzip, CompressorZstd} {
		t.Run(c.String(), func(t *testing.T) {
			data, err := Pack(s, Options{Mode: ModeA, Compressor: c})
			require.NoError(t, err)
			got, h, err := UnpackSpectrum(data)
			require.NoError(t, err)
			assert.Equal(t, c, h.Compressor)
			assert.Equal(t, s.Data, got.Data)
		})
	}
	t.Run("ans reserved", func(t *testing.T) {
		_, err := Pack(s, Options{Mode: ModeA, Compressor: CompressorANS})
		assert.ErrorIs(t, err, ErrCompressor)
	})
}

func TestParseCompressor(t *testing.T) {
	for name, want := range map[string]Compressor{
		"none": CompressorNone, "gzip": CompressorGzip, "zstd": CompressorZstd,
	} {
		got, err := ParseCompressor(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseCompressor("ans")
	assert.ErrorIs(t, err, ErrCompressor)
	_, err = ParseCompressor("brotli")
	assert.ErrorIs(t, err, ErrCompressor)
}

func TestWriteFile(t *testing.T) {
	s := randomSpectrum(t, 8, 8)
	data, err := Pack(s, Options{Mode: ModeA})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "snap.caba")
	require.NoError(t, WriteFile(path, data))

	read, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, read)

	got, _, err := UnpackSpectrum(read)
	require.NoError(t, err)
	assert.Equal(t, s.Data, got.Data)
}

func TestUnpackToField(t *testing.T) {
	g, err := grid.New(8, 8, 8)
	require.NoError(t, err)
	f := grid.NewField(g)
	rng := rand.New(rand.NewSource(9))
	for i := range f.Data {
		f.Data[i] = rng.NormFloat64()
	}
	s, err := fft.New(g, 1).Forward(f)
	require.NoError(t, err)

	data, err := Pack(s, Options{Mode: ModeA})
	require.NoError(t, err)
	back, _, err := Unpack(data, 1)
	require.NoError(t, err)
	for i := range f.Data {
		assert.InDelta(t, f.Data[i], back.Data[i], 1e-10)
	}
}
