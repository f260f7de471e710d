// Package grid provides the periodic-grid containers and the cached
// wavenumber geometry shared by every spectral operator.
//
// A Field is a real-valued sample array over an (n1,n2,n3) periodic box of
// side 2π, linearized row-major with axis 2 fastest. Its Spectrum is the
// Hermitian-compacted complex representation: only the non-negative half of
// the last axis is stored (n3/2+1 entries) because the other half is the
// conjugate mirror of a real signal. The Grid object precomputes integer
// wavenumbers, |k|², compaction weights, radial shell indices and the
// 2/3-rule dealias mask once per run; all of it is read-only shared state.
package grid

import (
	"errors"
	"fmt"
	"math"
)

// ErrDims rejects grid shapes the transform cannot handle.
var ErrDims = errors.New("invalid grid dimensions")

// Grid is the immutable wavenumber geometry for one run.
type Grid struct {
	N1, N2, N3 int
	H3         int // compacted extent of axis 2: N3/2 + 1

	k1, k2 []int // signed integer wavenumbers per index, axes 0 and 1
	// axis 2 is compacted: wavenumber equals the index h in [0, N3/2].

	shellMax int
}

// New validates the shape and precomputes the wavenumber tables. Each
// dimension must be a power of two and at least 4.
func New(n1, n2, n3 int) (*Grid, error) {
	for _, n := range []int{n1, n2, n3} {
		if n < 4 || n&(n-1) != 0 {
			return nil, fmt.Errorf("%w: dims must be powers of two >= 4, got (%d,%d,%d)",
				ErrDims, n1, n2, n3)
		}
	}
	g := &Grid{N1: n1, N2: n2, N3: n3, H3: n3/2 + 1}
	g.k1 = signedWavenumbers(n1)
	g.k2 = signedWavenumbers(n2)
	kmax := math.Sqrt(float64(n1*n1+n2*n2+n3*n3)) / 2
	g.shellMax = int(math.Round(kmax))
	return g, nil
}

func signedWavenumbers(n int) []int {
	k := make([]int, n)
	for i := range k {
		if i <= n/2 {
			k[i] = i
		} else {
			k[i] = i - n
		}
	}
	return k
}

// NumModes is the number of stored (compacted) spectral coefficients.
func (g *Grid) NumModes() int { return g.N1 * g.N2 * g.H3 }

// NumPoints is the number of physical grid points.
func (g *Grid) NumPoints() int { return g.N1 * g.N2 * g.N3 }

// Wavenumber returns the signed integer wavenumber vector of the compacted
// mode (i1, i2, h).
func (g *Grid) Wavenumber(i1, i2, h int) (kx, ky, kz int) {
	return g.k1[i1], g.k2[i2], h
}

// K2 returns |k|² for the compacted mode.
func (g *Grid) K2(i1, i2, h int) float64 {
	kx, ky, kz := g.Wavenumber(i1, i2, h)
	return float64(kx*kx + ky*ky + kz*kz)
}

// Weight is the Parseval multiplicity of a compacted mode: self-conjugate
// planes (kz = 0 and kz = Nyquist) are stored once and count once, every
// other stored mode stands for itself and its conjugate mirror.
func (g *Grid) Weight(h int) float64 {
	if h == 0 || h == g.N3/2 {
		return 1
	}
	return 2
}

// Shell returns the radial shell index round(|k|) of the compacted mode.
func (g *Grid) Shell(i1, i2, h int) int {
	return int(math.Round(math.Sqrt(g.K2(i1, i2, h))))
}

// ShellCount is the number of radial shells, shell 0 included.
func (g *Grid) ShellCount() int { return g.shellMax + 1 }

// Dealiased reports whether the mode survives the 2/3-rule truncation.
func (g *Grid) Dealiased(i1, i2, h int) bool {
	kx, ky, kz := g.Wavenumber(i1, i2, h)
	return 3*abs(kx) <= g.N1 && 3*abs(ky) <= g.N2 && 3*kz <= g.N3
}

// SelfConjugatePlane reports whether the compacted plane h pairs modes with
// other modes of the same plane rather than with dropped mirror modes.
func (g *Grid) SelfConjugatePlane(h int) bool {
	return h == 0 || h == g.N3/2
}

// Conjugate returns the in-plane conjugate partner of (i1, i2) on a
// self-conjugate plane.
func (g *Grid) Conjugate(i1, i2 int) (int, int) {
	return (g.N1 - i1) % g.N1, (g.N2 - i2) % g.N2
}

// Canonical reports whether (i1, i2) is the canonical representative of its
// in-plane conjugate pair. Deterministic draws on self-conjugate planes are
// generated at the representative and mirrored to the partner, which keeps
// Hermitian symmetry exact. Self-paired modes (partner == self) are
// canonical.
func (g *Grid) Canonical(i1, i2 int) bool {
	j1, j2 := g.Conjugate(i1, i2)
	if i1 != j1 {
		return i1 < j1
	}
	return i2 <= j2
}

// SelfPaired reports whether the mode is its own conjugate on a
// self-conjugate plane, forcing a real coefficient.
func (g *Grid) SelfPaired(i1, i2 int) bool {
	j1, j2 := g.Conjugate(i1, i2)
	return i1 == j1 && i2 == j2
}

// Index linearizes a compacted mode coordinate.
func (g *Grid) Index(i1, i2, h int) int {
	return (i1*g.N2+i2)*g.H3 + h
}

// PointIndex linearizes a physical grid coordinate.
func (g *Grid) PointIndex(i1, i2, i3 int) int {
	return (i1*g.N2+i2)*g.N3 + i3
}

// Spacing returns the smallest physical grid spacing, used for CFL limits.
func (g *Grid) Spacing() float64 {
	n := g.N1
	if g.N2 > n {
		n = g.N2
	}
	if g.N3 > n {
		n = g.N3
	}
	return 2 * math.Pi / float64(n)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
