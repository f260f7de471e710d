// Package caba implements the CABA dual-mode binary archive for spectral
// field snapshots (format version 0.1, frozen).
//
// A container is header ∥ payload ∥ trailer. The header is a fixed-width
// 192-byte little-endian schema; its layout is a compatibility contract and
// never changes within a version. Mode A stores the independent
// Hermitian-compacted complex coefficients and reconstructs the original
// field exactly. Mode B stores only the power spectrum (per mode, or binned
// by radial shell) plus an integer seed; readers redraw phases
// deterministically from the seed, producing a statistically equivalent
// field that is not bit-identical to any original.
//
// The payload carries a SHA3-256 checksum in the header and the whole
// container a SHA3-256 trailer digest. Readers verify both before decoding
// anything and reject unknown versions rather than guess.
//
// Header layout (all integers little-endian):
//
//	off len field
//	  0   4 magic "CABA"
//	  4   1 version major (0)
//	  5   1 version minor (1)
//	  6   1 mode (1=A, 2=B)
//	  7   1 dtype (1 = float64 / complex128)
//	  8   1 endianness (1 = little)
//	  9   1 fft normalization (1 = unitary)
//	 10   1 axis order (1 = row-major, axis 2 fastest)
//	 11   1 periodicity flags (bits 0-2, all set)
//	 12   1 window id (0 = none)
//	 13   1 compressor id (0 none, 1 gzip, 2 zstd, 3 ans reserved)
//	 14   1 bin schema (0 = per mode, 1 = radial shells)
//	 15   1 reserved
//	 16  12 dims, 3×uint32
//	 28  12 nyquist indices, 3×uint32
//	 40   4 dc index (0)
//	 44   4 bin count (schema 1)
//	 48   8 seed
//	 56   8 parseval energy, float64 bits
//	 64   8 payload length, uncompressed
//	 72   8 payload length, stored
//	 80  32 payload SHA3-256
//	112  80 reserved, zero
package caba

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Format constants, frozen at version 0.1.
const (
	HeaderSize  = 192
	TrailerSize = 32

	VersionMajor = 0
	VersionMinor = 1

	dtypeFloat64    = 1
	endianLittle    = 1
	fftNormUnitary  = 1
	axisOrderRowMaj = 1
	periodicityAll  = 0x07
	windowNone      = 0
	binSchemaModes  = 0
	binSchemaRadial = 1
)

var magic = [4]byte{'C', 'A', 'B', 'A'}

// Mode selects the archival strategy.
type Mode uint8

const (
	// ModeA stores exact Hermitian-compacted coefficients.
	ModeA Mode = 1
	// ModeB stores a power spectrum plus a phase-regeneration seed.
	ModeB Mode = 2
)

func (m Mode) String() string {
	switch m {
	case ModeA:
		return "A"
	case ModeB:
		return "B"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// ErrFormat rejects structurally invalid containers: bad magic, unknown
// version, inconsistent lengths or dims.
var ErrFormat = errors.New("invalid CABA container")

// Header is the decoded fixed-layout header.
type Header struct {
	Mode          Mode
	Compressor    Compressor
	BinSchema     uint8
	Dims          [3]uint32
	Nyquist       [3]uint32
	DC            uint32
	BinCount      uint32
	Seed          uint64
	Parseval      float64
	PayloadRaw    uint64
	PayloadStored uint64
	Checksum      [32]byte
}

// Marshal encodes the header into its frozen byte layout.
func (h *Header) Marshal() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], magic[:])
	buf[4] = VersionMajor
	buf[5] = VersionMinor
	buf[6] = uint8(h.Mode)
	buf[7] = dtypeFloat64
	buf[8] = endianLittle
	buf[9] = fftNormUnitary
	buf[10] = axisOrderRowMaj
	buf[11] = periodicityAll
	buf[12] = windowNone
	buf[13] = uint8(h.Compressor)
	buf[14] = h.BinSchema
	for i := 0; i < 3; i++ {
		binary.LittleEndian.PutUint32(buf[16+4*i:], h.Dims[i])
		binary.LittleEndian.PutUint32(buf[28+4*i:], h.Nyquist[i])
	}
	binary.LittleEndian.PutUint32(buf[40:], h.DC)
	binary.LittleEndian.PutUint32(buf[44:], h.BinCount)
	binary.LittleEndian.PutUint64(buf[48:], h.Seed)
	binary.LittleEndian.PutUint64(buf[56:], math.Float64bits(h.Parseval))
	binary.LittleEndian.PutUint64(buf[64:], h.PayloadRaw)
	binary.LittleEndian.PutUint64(buf[72:], h.PayloadStored)
	copy(buf[80:112], h.Checksum[:])
	return buf
}

// UnmarshalHeader decodes and validates the fixed fields. Unknown versions
// are rejected, never guessed at.
func UnmarshalHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the %d-byte header",
			ErrFormat, len(data), HeaderSize)
	}
	if !bytes.Equal(data[0:4], magic[:]) {
		return nil, fmt.Errorf("%w: bad magic %q", ErrFormat, data[0:4])
	}
	if data[4] != VersionMajor || data[5] != VersionMinor {
		return nil, fmt.Errorf("%w: unsupported version %d.%d (reader knows %d.%d)",
			ErrFormat, data[4], data[5], VersionMajor, VersionMinor)
	}
	if data[7] != dtypeFloat64 || data[8] != endianLittle ||
		data[9] != fftNormUnitary || data[10] != axisOrderRowMaj {
		return nil, fmt.Errorf("%w: unsupported dtype/endianness/normalization", ErrFormat)
	}
	h := &Header{
		Mode:       Mode(data[6]),
		Compressor: Compressor(data[13]),
		BinSchema:  data[14],
	}
	if h.Mode != ModeA && h.Mode != ModeB {
		return nil, fmt.Errorf("%w: unknown mode %d", ErrFormat, data[6])
	}
	if h.BinSchema != binSchemaModes && h.BinSchema != binSchemaRadial {
		return nil, fmt.Errorf("%w: unknown bin schema %d", ErrFormat, h.BinSchema)
	}
	for i := 0; i < 3; i++ {
		h.Dims[i] = binary.LittleEndian.Uint32(data[16+4*i:])
		h.Nyquist[i] = binary.LittleEndian.Uint32(data[28+4*i:])
		if h.Nyquist[i] != h.Dims[i]/2 {
			return nil, fmt.Errorf("%w: nyquist index %d inconsistent with dim %d",
				ErrFormat, h.Nyquist[i], h.Dims[i])
		}
	}
	h.DC = binary.LittleEndian.Uint32(data[40:])
	if h.DC != 0 {
		return nil, fmt.Errorf("%w: dc index must be 0, got %d", ErrFormat, h.DC)
	}
	h.BinCount = binary.LittleEndian.Uint32(data[44:])
	h.Seed = binary.LittleEndian.Uint64(data[48:])
	h.Parseval = math.Float64frombits(binary.LittleEndian.Uint64(data[56:]))
	h.PayloadRaw = binary.LittleEndian.Uint64(data[64:])
	h.PayloadStored = binary.LittleEndian.Uint64(data[72:])
	copy(h.Checksum[:], data[80:112])
	return h, nil
}
