// Package spectra implements a pseudospectral solver for the 3D incompressible
// Navier–Stokes equations together with the CABA archive format for its
// field snapshots.
//
// Velocity fields live on a periodic grid and evolve in wavenumber space: a
// unitary Fourier transform with Hermitian compaction carries real fields to
// and from their spectral representation, a projection operator keeps the
// velocity divergence-free, and a 4th-order Runge–Kutta integrator advances
// the momentum equation with per-substage invariant checks (divergence norm,
// Parseval balance, energy growth). Optional arithmetic mask and descent
// stages modify the right-hand side when configured.
//
// # Architecture Overview
//
// The solver consists of several key components:
//
//   - grid: Field/Spectrum containers and the cached wavenumber grid
//   - fft: Unitary 3D real transform with Hermitian compaction
//   - operator: Projection, nonlinear, viscous, forcing, mask, descent
//   - solver: RK4 integrator state machine, diagnostics, run configuration
//   - caba: Dual-mode binary archive codec (exact and statistical)
//   - prng: Counter-based deterministic random source
//   - cmd: Command-line tool (spectra run/pack/unpack/verify/info)
//
// # Archival
//
// The CABA container persists a snapshot in one of two modes. Mode A stores
// the independent Hermitian-compacted coefficients and reconstructs the
// original field exactly. Mode B stores only the power spectrum plus a seed
// and redraws phases deterministically on read, reconstructing a
// statistically equivalent field. Both modes are independently verifiable
// from the container alone.
//
// # Basic Usage
//
//	// Run a simulation from a YAML configuration
//	spectra run config.yaml
//
//	// Re-encode a snapshot statistically and verify it
//	spectra pack --mode B --bins 32 snapshot.caba out.caba
//	spectra verify out.caba
//
// # Determinism
//
// Runs are bit-reproducible for a fixed seed and configuration: forcing and
// Mode B phases derive from a counter-based generator keyed by wavenumber,
// and all parallel loops partition work by fixed index ranges.
package spectra
