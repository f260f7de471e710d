package caba

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/crypto/sha3"

	"github.com/sbl8/spectra/fft"
	"github.com/sbl8/spectra/grid"
	"github.com/sbl8/spectra/prng"
)

// ErrChecksum reports container corruption. Decoding stops before any
// payload byte is interpreted; there is no partial decode.
var ErrChecksum = errors.New("checksum mismatch")

// Options parameterizes Pack.
type Options struct {
	Mode       Mode
	Compressor Compressor
	Bins       int    // > 0 selects radial binning (Mode B only)
	Seed       uint64 // Mode B phase-regeneration seed
}

// Pack serializes one spectral snapshot into a CABA container.
func Pack(s *grid.Spectrum, opts Options) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if opts.Mode != ModeA && opts.Mode != ModeB {
		return nil, fmt.Errorf("%w: pack mode %d", ErrFormat, opts.Mode)
	}
	if opts.Bins > 0 && opts.Mode != ModeB {
		return nil, fmt.Errorf("%w: radial binning requires mode B", ErrFormat)
	}
	g := s.Grid

	var raw []byte
	h := &Header{
		Mode:       opts.Mode,
		Compressor: opts.Compressor,
		Dims:       [3]uint32{uint32(g.N1), uint32(g.N2), uint32(g.N3)},
		Nyquist:    [3]uint32{uint32(g.N1 / 2), uint32(g.N2 / 2), uint32(g.N3 / 2)},
		Seed:       opts.Seed,
		Parseval:   s.Energy(),
	}
	switch opts.Mode {
	case ModeA:
		raw = make([]byte, 16*g.NumModes())
		for i, c := range s.Data {
			binary.LittleEndian.PutUint64(raw[16*i:], math.Float64bits(real(c)))
			binary.LittleEndian.PutUint64(raw[16*i+8:], math.Float64bits(imag(c)))
		}
	case ModeB:
		powers := modePowers(s)
		if opts.Bins > 0 {
			h.BinSchema = binSchemaRadial
			h.BinCount = uint32(opts.Bins)
			totals := make([]float64, opts.Bins)
			for i1 := 0; i1 < g.N1; i1++ {
				for i2 := 0; i2 < g.N2; i2++ {
					for hz := 0; hz < g.H3; hz++ {
						totals[binOf(g.Shell(i1, i2, hz), opts.Bins)] += powers[g.Index(i1, i2, hz)]
					}
				}
			}
			raw = make([]byte, 8*opts.Bins)
			for i, p := range totals {
				binary.LittleEndian.PutUint64(raw[8*i:], math.Float64bits(p))
			}
		} else {
			h.BinSchema = binSchemaModes
			raw = make([]byte, 8*g.NumModes())
			for i, p := range powers {
				binary.LittleEndian.PutUint64(raw[8*i:], math.Float64bits(p))
			}
		}
	}

	stored, err := compressPayload(opts.Compressor, raw)
	if err != nil {
		return nil, err
	}
	h.PayloadRaw = uint64(len(raw))
	h.PayloadStored = uint64(len(stored))
	h.Checksum = sha3.Sum256(stored)

	container := make([]byte, 0, HeaderSize+len(stored)+TrailerSize)
	container = append(container, h.Marshal()...)
	container = append(container, stored...)
	trailer := sha3.Sum256(container)
	container = append(container, trailer[:]...)
	return container, nil
}

// modePowers returns the weighted per-mode power w|X|².
func modePowers(s *grid.Spectrum) []float64 {
	g := s.Grid
	powers := make([]float64, g.NumModes())
	for i1 := 0; i1 < g.N1; i1++ {
		for i2 := 0; i2 < g.N2; i2++ {
			base := (i1*g.N2 + i2) * g.H3
			for hz := 0; hz < g.H3; hz++ {
				c := s.Data[base+hz]
				powers[base+hz] = g.Weight(hz) * (real(c)*real(c) + imag(c)*imag(c))
			}
		}
	}
	return powers
}

func binOf(shell, bins int) int {
	if shell >= bins {
		return bins - 1
	}
	return shell
}

// parseContainer validates structure and checksums, then returns the header
// and decompressed payload. Checksums are verified before any payload byte
// is interpreted; a mismatch aborts with ErrChecksum and no partial result.
func parseContainer(data []byte) (*Header, []byte, error) {
	h, err := UnmarshalHeader(data)
	if err != nil {
		return nil, nil, err
	}
	want := HeaderSize + int(h.PayloadStored) + TrailerSize
	if len(data) != want {
		return nil, nil, fmt.Errorf("%w: container is %d bytes, header implies %d",
			ErrFormat, len(data), want)
	}
	trailer := sha3.Sum256(data[:len(data)-TrailerSize])
	if [32]byte(data[len(data)-TrailerSize:]) != trailer {
		return nil, nil, fmt.Errorf("%w: trailer digest", ErrChecksum)
	}
	stored := data[HeaderSize : HeaderSize+int(h.PayloadStored)]
	if sha3.Sum256(stored) != h.Checksum {
		return nil, nil, fmt.Errorf("%w: payload checksum", ErrChecksum)
	}
	raw, err := decompressPayload(h.Compressor, stored, int(h.PayloadRaw))
	if err != nil {
		return nil, nil, err
	}
	return h, raw, nil
}

// UnpackSpectrum verifies and decodes a container back to its spectral
// representation.
func UnpackSpectrum(data []byte) (*grid.Spectrum, *Header, error) {
	h, raw, err := parseContainer(data)
	if err != nil {
		return nil, nil, err
	}
	g, err := grid.New(int(h.Dims[0]), int(h.Dims[1]), int(h.Dims[2]))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	switch h.Mode {
	case ModeA:
		s, err := decodeModeA(g, raw)
		if err != nil {
			return nil, nil, err
		}
		return s, h, nil
	case ModeB:
		s, err := reconstruct(g, h, raw, h.Seed)
		if err != nil {
			return nil, nil, err
		}
		return s, h, nil
	}
	return nil, nil, fmt.Errorf("%w: mode %d", ErrFormat, h.Mode)
}

// decodeModeA reads exact little-endian (re, im) coefficient pairs.
func decodeModeA(g *grid.Grid, raw []byte) (*grid.Spectrum, error) {
	if len(raw) != 16*g.NumModes() {
		return nil, fmt.Errorf("%w: mode A payload is %d bytes, want %d",
			ErrFormat, len(raw), 16*g.NumModes())
	}
	s := grid.NewSpectrum(g)
	for i := range s.Data {
		re := math.Float64frombits(binary.LittleEndian.Uint64(raw[16*i:]))
		im := math.Float64frombits(binary.LittleEndian.Uint64(raw[16*i+8:]))
		s.Data[i] = complex(re, im)
	}
	return s, nil
}

// readF64 pulls the i-th little-endian float64 out of a payload.
func readF64(raw []byte, i int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
}

// Unpack decodes a container all the way to a physical field.
func Unpack(data []byte, workers int) (*grid.Field, *Header, error) {
	s, h, err := UnpackSpectrum(data)
	if err != nil {
		return nil, nil, err
	}
	f, err := fft.New(s.Grid, workers).Inverse(s)
	if err != nil {
		return nil, nil, err
	}
	return f, h, nil
}

// reconstruct redraws a Mode B realization: amplitudes from the stored
// power, phases Uniform[0,2π) from the counter RNG keyed by wavenumber.
// Hermitian symmetry is enforced by drawing at the canonical representative
// of each self-conjugate-plane pair and conjugating for the partner;
// self-paired modes get a real coefficient with a drawn sign.
func reconstruct(g *grid.Grid, h *Header, raw []byte, seed uint64) (*grid.Spectrum, error) {
	amps, err := modeAmplitudes(g, h, raw)
	if err != nil {
		return nil, err
	}
	s := grid.NewSpectrum(g)
	for i1 := 0; i1 < g.N1; i1++ {
		for i2 := 0; i2 < g.N2; i2++ {
			for hz := 0; hz < g.H3; hz++ {
				idx := g.Index(i1, i2, hz)
				amp := amps[idx]
				kx, ky, kz := g.Wavenumber(i1, i2, hz)
				if !g.SelfConjugatePlane(hz) {
					phi := prng.Phase(seed, kx, ky, kz)
					s.Data[idx] = complex(amp*math.Cos(phi), amp*math.Sin(phi))
					continue
				}
				if g.SelfPaired(i1, i2) {
					s.Data[idx] = complex(amp*prng.Sign(seed, kx, ky, kz), 0)
					continue
				}
				if g.Canonical(i1, i2) {
					phi := prng.Phase(seed, kx, ky, kz)
					s.Data[idx] = complex(amp*math.Cos(phi), amp*math.Sin(phi))
				} else {
					// Conjugate of the canonical partner's draw. The key
					// must be the partner's own aliased wavenumber: on a
					// Nyquist column negating k would miss it.
					j1, j2 := g.Conjugate(i1, i2)
					ckx, cky, ckz := g.Wavenumber(j1, j2, hz)
					phi := prng.Phase(seed, ckx, cky, ckz)
					s.Data[idx] = complex(amp*math.Cos(phi), -amp*math.Sin(phi))
				}
			}
		}
	}
	return s, nil
}

// modeAmplitudes converts the stored power payload to per-mode |X|.
func modeAmplitudes(g *grid.Grid, h *Header, raw []byte) ([]float64, error) {
	amps := make([]float64, g.NumModes())
	switch h.BinSchema {
	case binSchemaModes:
		if len(raw) != 8*g.NumModes() {
			return nil, fmt.Errorf("%w: mode B payload is %d bytes, want %d",
				ErrFormat, len(raw), 8*g.NumModes())
		}
		for i1 := 0; i1 < g.N1; i1++ {
			for i2 := 0; i2 < g.N2; i2++ {
				for hz := 0; hz < g.H3; hz++ {
					idx := g.Index(i1, i2, hz)
					p := math.Float64frombits(binary.LittleEndian.Uint64(raw[8*idx:]))
					if p < 0 || math.IsNaN(p) {
						return nil, fmt.Errorf("%w: negative power at mode %d", ErrFormat, idx)
					}
					amps[idx] = math.Sqrt(p / g.Weight(hz))
				}
			}
		}
	case binSchemaRadial:
		bins := int(h.BinCount)
		if bins <= 0 || len(raw) != 8*bins {
			return nil, fmt.Errorf("%w: radial payload is %d bytes for %d bins",
				ErrFormat, len(raw), bins)
		}
		totals := make([]float64, bins)
		for i := range totals {
			totals[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
			if totals[i] < 0 || math.IsNaN(totals[i]) {
				return nil, fmt.Errorf("%w: negative power in bin %d", ErrFormat, i)
			}
		}
		// Weighted mode count per bin, recomputed from the dims: every mode
		// in a bin gets equal amplitude and an energy share proportional to
		// its compaction weight, so the bin total is conserved exactly.
		weight := make([]float64, bins)
		for i1 := 0; i1 < g.N1; i1++ {
			for i2 := 0; i2 < g.N2; i2++ {
				for hz := 0; hz < g.H3; hz++ {
					weight[binOf(g.Shell(i1, i2, hz), bins)] += g.Weight(hz)
				}
			}
		}
		for i1 := 0; i1 < g.N1; i1++ {
			for i2 := 0; i2 < g.N2; i2++ {
				for hz := 0; hz < g.H3; hz++ {
					b := binOf(g.Shell(i1, i2, hz), bins)
					if weight[b] > 0 {
						amps[g.Index(i1, i2, hz)] = math.Sqrt(totals[b] / weight[b])
					}
				}
			}
		}
	default:
		return nil, fmt.Errorf("%w: bin schema %d", ErrFormat, h.BinSchema)
	}
	return amps, nil
}

// WriteFile persists a container with replace-on-write semantics: the bytes
// land in a temporary file that is renamed over the target, so a failed
// write can never leave a silently truncated container behind.
func WriteFile(path string, container []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".caba-*")
	if err != nil {
		return fmt.Errorf("write container: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(container); err != nil {
		tmp.Close()
		return fmt.Errorf("write container: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write container: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write container: %w", err)
	}
	return nil
}
