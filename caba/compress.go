package caba

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Compressor identifies the optional payload compressor. The ids are frozen
// in the header; the framing of the compressed stream is an
// implementation-defined extension behind the id, not part of the fixed
// fields: the stored bytes are one opaque stream for the named codec, and
// the header records both raw and stored lengths.
type Compressor uint8

const (
	CompressorNone Compressor = 0
	CompressorGzip Compressor = 1
	CompressorZstd Compressor = 2
	// CompressorANS is reserved in the format but not implemented here.
	CompressorANS Compressor = 3
)

// ErrCompressor rejects reserved or unknown compressor ids.
var ErrCompressor = errors.New("unsupported compressor")

func (c Compressor) String() string {
	switch c {
	case CompressorNone:
		return "none"
	case CompressorGzip:
		return "gzip"
	case CompressorZstd:
		return "zstd"
	case CompressorANS:
		return "ans"
	default:
		return fmt.Sprintf("Compressor(%d)", uint8(c))
	}
}

// ParseCompressor maps a configuration name to its id.
func ParseCompressor(name string) (Compressor, error) {
	switch name {
	case "", "none":
		return CompressorNone, nil
	case "gzip":
		return CompressorGzip, nil
	case "zstd":
		return CompressorZstd, nil
	case "ans":
		return CompressorANS, fmt.Errorf("%w: ans id is reserved", ErrCompressor)
	default:
		return 0, fmt.Errorf("%w: %q", ErrCompressor, name)
	}
}

func compressPayload(id Compressor, raw []byte) ([]byte, error) {
	switch id {
	case CompressorNone:
		return raw, nil
	case CompressorGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressorZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(raw, nil), nil
	default:
		return nil, fmt.Errorf("%w: id %d", ErrCompressor, id)
	}
}

func decompressPayload(id Compressor, stored []byte, rawLen int) ([]byte, error) {
	var raw []byte
	switch id {
	case CompressorNone:
		raw = stored
	case CompressorGzip:
		r, err := gzip.NewReader(bytes.NewReader(stored))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		raw, err = io.ReadAll(r)
		if err != nil {
			return nil, err
		}
	case CompressorZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		raw, err = dec.DecodeAll(stored, nil)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: id %d", ErrCompressor, id)
	}
	if len(raw) != rawLen {
		return nil, fmt.Errorf("%w: payload decompressed to %d bytes, header says %d",
			ErrFormat, len(raw), rawLen)
	}
	return raw, nil
}
