package solver

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sbl8/spectra/operator"
)

// Config is the run configuration handed in by the caller. It is explicit
// and versioned with the run: there is no implicitly loaded process-wide
// default. Unknown keys are a hard error, never silently ignored.
type Config struct {
	GridN            [3]int        `yaml:"grid_n"`
	Viscosity        float64       `yaml:"viscosity"`
	Dt               float64       `yaml:"dt"`
	Steps            int           `yaml:"steps"`
	ForcingK         float64       `yaml:"forcing_k"`
	ForcingAmplitude float64       `yaml:"forcing_amplitude"`
	Mask             MaskOption    `yaml:"mask"`
	Descent          DescentOption `yaml:"descent"`
	Seed             uint64        `yaml:"seed"`
	Adaptive         bool          `yaml:"adaptive"`
	MaxGrowth        float64       `yaml:"max_growth"`
	Snapshot         *SnapshotSpec `yaml:"snapshot"`
	MetricsAddr      string        `yaml:"metrics_addr"`
	Workers          int           `yaml:"workers"`
}

// SnapshotSpec configures periodic CABA archival.
type SnapshotSpec struct {
	Every      int    `yaml:"every"`
	Mode       string `yaml:"mode"`       // "A" or "B"
	Dir        string `yaml:"dir"`        // output directory
	Compressor string `yaml:"compressor"` // none, gzip, zstd
	Bins       int    `yaml:"bins"`       // >0 selects radial binning for Mode B
}

// DescentSpec parameterizes the optional descent stage.
type DescentSpec struct {
	Eta   float64 `yaml:"eta"`
	Alpha float64 `yaml:"alpha"`
}

// MaskOption is a nullable mask stage: absent or the literal "none" disables
// it, a mapping selects a named scheme.
type MaskOption struct {
	Spec *operator.MaskSpec
}

// UnmarshalYAML accepts "none" or a {scheme, ...} mapping with strict keys.
func (o *MaskOption) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		if s == "" || s == "none" {
			o.Spec = nil
			return nil
		}
		return configErrf("mask: expected \"none\" or a mapping, got %q", s)
	}
	if err := checkKeys(value, "mask", "scheme", "primorial", "beta", "alpha"); err != nil {
		return err
	}
	spec := &operator.MaskSpec{}
	if err := value.Decode(spec); err != nil {
		return err
	}
	o.Spec = spec
	return nil
}

// DescentOption is a nullable descent stage: absent or "none" disables it.
type DescentOption struct {
	Spec *DescentSpec
}

// UnmarshalYAML accepts "none" or an {eta, alpha} mapping with strict keys.
func (o *DescentOption) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		if s == "" || s == "none" {
			o.Spec = nil
			return nil
		}
		return configErrf("descent: expected \"none\" or a mapping, got %q", s)
	}
	if err := checkKeys(value, "descent", "eta", "alpha"); err != nil {
		return err
	}
	spec := &DescentSpec{}
	if err := value.Decode(spec); err != nil {
		return err
	}
	o.Spec = spec
	return nil
}

// checkKeys rejects mapping keys outside the allowed set. Custom
// unmarshalers bypass the decoder's KnownFields check, so nullable options
// enforce it themselves.
func checkKeys(value *yaml.Node, section string, allowed ...string) error {
	ok := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		ok[k] = true
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		key := value.Content[i].Value
		if !ok[key] {
			return configErrf("%s: unknown option %q (allowed: %s)",
				section, key, strings.Join(allowed, ", "))
		}
	}
	return nil
}

// Default returns the baseline configuration. Callers still must set grid,
// dt and steps explicitly.
func Default() *Config {
	return &Config{
		Viscosity: 1e-2,
		MaxGrowth: 1e6,
	}
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a YAML configuration with strict field checking.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, configErrf("decode: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects contradictory or incomplete parameters.
func (c *Config) Validate() error {
	for _, n := range c.GridN {
		if n == 0 {
			return configErrf("grid_n must set all three dimensions, got %v", c.GridN)
		}
	}
	if c.Viscosity < 0 {
		return configErrf("viscosity must be >= 0, got %v", c.Viscosity)
	}
	if c.Dt <= 0 {
		return configErrf("dt must be > 0, got %v", c.Dt)
	}
	if c.Steps <= 0 {
		return configErrf("steps must be > 0, got %d", c.Steps)
	}
	if c.ForcingAmplitude != 0 && c.ForcingK <= 0 {
		return configErrf("forcing_amplitude set without a positive forcing_k")
	}
	if c.ForcingK < 0 {
		return configErrf("forcing_k must be >= 0, got %v", c.ForcingK)
	}
	if c.MaxGrowth <= 1 {
		return configErrf("max_growth must be > 1, got %v", c.MaxGrowth)
	}
	if d := c.Descent.Spec; d != nil {
		if d.Eta < 0 || d.Alpha < 0 {
			return configErrf("descent: eta and alpha must be >= 0, got eta=%v alpha=%v", d.Eta, d.Alpha)
		}
	}
	if s := c.Snapshot; s != nil {
		if s.Every <= 0 {
			return configErrf("snapshot.every must be > 0, got %d", s.Every)
		}
		if s.Mode != "A" && s.Mode != "B" {
			return configErrf("snapshot.mode must be \"A\" or \"B\", got %q", s.Mode)
		}
		if s.Bins < 0 {
			return configErrf("snapshot.bins must be >= 0, got %d", s.Bins)
		}
		if s.Bins > 0 && s.Mode != "B" {
			return configErrf("snapshot.bins requires mode B")
		}
		switch s.Compressor {
		case "", "none", "gzip", "zstd":
		default:
			return configErrf("snapshot.compressor must be none, gzip or zstd, got %q", s.Compressor)
		}
	}
	return nil
}
