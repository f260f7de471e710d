package operator

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/sbl8/spectra/grid"
)

// ErrUnknownScheme rejects mask scheme names the registry does not carry.
var ErrUnknownScheme = errors.New("unknown mask scheme")

// MaskSpec selects and parameterizes a mask scheme. Parameters are fixed for
// the whole run.
type MaskSpec struct {
	Scheme    string  `yaml:"scheme"`
	Primorial int     `yaml:"primorial,omitempty"` // p# value for coprime_to_primorial
	Beta      float64 `yaml:"beta,omitempty"`      // attenuation factor
	Alpha     float64 `yaml:"alpha,omitempty"`     // von Mangoldt weight
}

// Mask is a fixed multiplicative filter over wavenumber shells. The factor
// of every mode is precomputed from its radial shell index; gcd and
// primality are integer notions, so schemes operate on round(|k|).
//
// Application is idempotent: the spectrum records the filter fingerprint and
// a second application of the same filter is a no-op, so the mask never
// compounds within one pipeline pass. It is applied strictly after
// projection and scales all three components of a mode equally, so it cannot
// reintroduce a divergence component.
type Mask struct {
	Name    string
	Tag     uint64
	factors []float64 // per shell index
}

// maskScheme builds the per-shell factor table for one named scheme.
type maskScheme func(g *grid.Grid, spec MaskSpec) ([]float64, error)

// schemes is the mask registry, resolved once at configuration load.
var schemes = map[string]maskScheme{
	"coprime_to_primorial": coprimeToPrimorial,
	"von_mangoldt":         vonMangoldtScheme,
	"prime_shell":          primeShell,
}

// SchemeNames lists the registered scheme names, sorted.
func SchemeNames() []string {
	names := make([]string, 0, len(schemes))
	for name := range schemes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewMask resolves the named scheme and precomputes its factor table.
func NewMask(g *grid.Grid, spec MaskSpec) (*Mask, error) {
	build, ok := schemes[spec.Scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrUnknownScheme, spec.Scheme, SchemeNames())
	}
	factors, err := build(g, spec)
	if err != nil {
		return nil, err
	}
	return &Mask{Name: spec.Scheme, Tag: fingerprint(spec), factors: factors}, nil
}

func fingerprint(spec MaskSpec) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d|%v|%v", spec.Scheme, spec.Primorial, spec.Beta, spec.Alpha)
	tag := h.Sum64()
	if tag == 0 {
		tag = 1 // zero means "no mask applied"
	}
	return tag
}

// Apply multiplies each mode by its shell factor, once per fingerprint.
func (m *Mask) Apply(s *grid.Spectrum) {
	if s.MaskTag == m.Tag {
		return
	}
	g := s.Grid
	for i1 := 0; i1 < g.N1; i1++ {
		for i2 := 0; i2 < g.N2; i2++ {
			base := (i1*g.N2 + i2) * g.H3
			for h := 0; h < g.H3; h++ {
				s.Data[base+h] *= complex(m.factors[g.Shell(i1, i2, h)], 0)
			}
		}
	}
	s.MaskTag = m.Tag
}

// ApplyAll applies the mask to every velocity component.
func (m *Mask) ApplyAll(u Velocity) {
	for _, c := range u {
		m.Apply(c)
	}
}

// Factor exposes the shell factor table entry, used by diagnostics and tests.
func (m *Mask) Factor(shell int) float64 {
	if shell < 0 || shell >= len(m.factors) {
		return 1
	}
	return m.factors[shell]
}

func coprimeToPrimorial(g *grid.Grid, spec MaskSpec) ([]float64, error) {
	if spec.Primorial < 2 {
		return nil, fmt.Errorf("coprime_to_primorial: primorial must be >= 2, got %d", spec.Primorial)
	}
	if spec.Beta < 0 || spec.Beta > 1 {
		return nil, fmt.Errorf("coprime_to_primorial: beta must be in [0,1], got %v", spec.Beta)
	}
	factors := make([]float64, g.ShellCount())
	for n := range factors {
		if Gcd(n, spec.Primorial) == 1 {
			factors[n] = 1
		} else {
			factors[n] = spec.Beta
		}
	}
	return factors, nil
}

func vonMangoldtScheme(g *grid.Grid, spec MaskSpec) ([]float64, error) {
	if spec.Alpha < 0 {
		return nil, fmt.Errorf("von_mangoldt: alpha must be >= 0, got %v", spec.Alpha)
	}
	factors := make([]float64, g.ShellCount())
	for n := range factors {
		factors[n] = 1 + spec.Alpha*VonMangoldt(n)
	}
	return factors, nil
}

func primeShell(g *grid.Grid, spec MaskSpec) ([]float64, error) {
	if spec.Beta < 0 || spec.Beta > 1 {
		return nil, fmt.Errorf("prime_shell: beta must be in [0,1], got %v", spec.Beta)
	}
	factors := make([]float64, g.ShellCount())
	for n := range factors {
		if IsPrime(n) {
			factors[n] = 1
		} else {
			factors[n] = spec.Beta
		}
	}
	return factors, nil
}
