// Package prng provides the counter-based deterministic random source used
// for shell forcing and Mode B phase regeneration.
//
// Values are pure functions of (seed, wavenumber, stream): there is no
// generator state to advance, so any subset of modes can be drawn in any
// order, on any number of workers, and still produce bit-identical output.
// The mixing function is the SplitMix64 finalizer applied over the packed
// key words. The exact bit stream is a property of this implementation, not
// of the CABA format; only self-consistency (same seed, same values) is
// promised across versions.
package prng

import "math"

// Stream identifiers separate independent draws for the same mode. Callers
// with several draws per mode, like the per-component forcing amplitudes,
// derive their own stream ids.
const (
	StreamPhase = 0
	StreamSign  = 3
)

const twoPow53Inv = 1.0 / (1 << 53)

// mix64 is the SplitMix64 finalizer.
func mix64(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// key packs the mode coordinates and stream into the counter words.
func key(seed uint64, kx, ky, kz int, stream uint32) uint64 {
	a := uint64(uint32(int32(kx)))<<32 | uint64(uint32(int32(ky)))
	b := uint64(uint32(int32(kz)))<<32 | uint64(stream)
	h := mix64(seed ^ 0x9E3779B97F4A7C15)
	h = mix64(h ^ a)
	h = mix64(h ^ b)
	return h
}

// Bits returns 64 deterministic bits for the keyed mode.
func Bits(seed uint64, kx, ky, kz int, stream uint32) uint64 {
	return key(seed, kx, ky, kz, stream)
}

// Uniform returns a deterministic value in [0, 1).
func Uniform(seed uint64, kx, ky, kz int, stream uint32) float64 {
	return float64(key(seed, kx, ky, kz, stream)>>11) * twoPow53Inv
}

// Phase returns a deterministic angle in [0, 2π).
func Phase(seed uint64, kx, ky, kz int) float64 {
	return 2 * math.Pi * Uniform(seed, kx, ky, kz, StreamPhase)
}

// Sign returns a deterministic ±1.
func Sign(seed uint64, kx, ky, kz int) float64 {
	if key(seed, kx, ky, kz, StreamSign)&1 == 0 {
		return 1
	}
	return -1
}

// Norm returns a deterministic standard normal draw via Box–Muller over the
// two forcing streams.
func Norm(seed uint64, kx, ky, kz int, stream uint32) float64 {
	u1 := Uniform(seed, kx, ky, kz, stream)
	u2 := Uniform(seed, kx, ky, kz, stream+16)
	if u1 < 1e-300 {
		u1 = 1e-300
	}
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}
