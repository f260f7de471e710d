package solver

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbl8/spectra/operator"
)

func testConfig(n, steps int, dt float64) *Config {
	cfg := Default()
	cfg.GridN = [3]int{n, n, n}
	cfg.Viscosity = 1e-2
	cfg.Dt = dt
	cfg.Steps = steps
	return cfg
}

func TestStateMachine(t *testing.T) {
	t.Parallel()
	assert.False(t, IsTerminal(Idle))
	assert.False(t, IsTerminal(Stepping))
	assert.True(t, IsTerminal(Stable))
	assert.True(t, IsTerminal(Diverged))

	assert.True(t, isAllowedTransition(Idle, Stepping))
	assert.True(t, isAllowedTransition(Stepping, Stable))
	assert.True(t, isAllowedTransition(Stepping, Diverged))
	assert.False(t, isAllowedTransition(Idle, Stable))
	assert.False(t, isAllowedTransition(Stable, Stepping))
	assert.False(t, isAllowedTransition(Diverged, Stepping))
}

func TestTaylorGreenDecay(t *testing.T) {
	t.Parallel()
	cfg := testConfig(8, 100, 1e-3)
	r, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, r.InitTaylorGreen())

	e0 := r.Velocity().Energy()
	require.Greater(t, e0, 0.0)

	prev := e0
	err = r.Integrate(func(step int) error {
		e := r.Velocity().Energy()
		require.LessOrEqual(t, e, prev*(1+1e-12), "energy must decay monotonically at step %d", step)
		prev = e
		rec := r.Diagnostics().Last()
		require.Less(t, rec.DivNorm, 1e-12*math.Max(e, 1), "divergence stays at rounding level")
		require.Less(t, rec.ParsevalErr, 1e-12)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, Stable, r.State())

	// The Taylor–Green modes sit at |k|² = 3, so the decay tracks
	// E(t) ≈ E(0)·exp(-2ν·3·t) closely over this short horizon.
	want := math.Exp(-6 * cfg.Viscosity * r.Time())
	assert.InDelta(t, want, r.Velocity().Energy()/e0, 5e-3)
}

func TestOversizedDtDiverges(t *testing.T) {
	t.Parallel()
	// dt ≈ 10× the CFL-stable estimate for a unit-velocity field on 8³.
	cfg := testConfig(8, 100, 3.9)
	r, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, r.InitTaylorGreen())

	err = r.Integrate(nil)
	require.ErrorIs(t, err, ErrSolverDivergence)
	assert.Equal(t, Diverged, r.State())

	var report *DivergenceReport
	require.ErrorAs(t, err, &report)
	assert.GreaterOrEqual(t, report.Substage, 1)
	assert.LessOrEqual(t, report.Substage, 4)
	assert.Equal(t, "cfl_ratio", report.Metric)
	assert.Greater(t, report.Value, CFLLimit)
	assert.Equal(t, r.StepCount(), report.Step,
		"a breach reports the state the caller can still inspect")
}

func TestAdaptiveRunHalvesDt(t *testing.T) {
	t.Parallel()
	// dt puts the first step's CFL ratio above 1 but below the hard limit,
	// so the run survives it and shrinks dt before the next step.
	cfg := testConfig(8, 20, 0.5)
	cfg.Adaptive = true
	r, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, r.InitTaylorGreen())

	require.NoError(t, r.Integrate(nil))
	assert.Equal(t, Stable, r.State())
	assert.Less(t, r.Dt(), cfg.Dt)
}

func TestDiagnosticsStepIndexing(t *testing.T) {
	t.Parallel()
	cfg := testConfig(8, 2, 1e-3)
	r, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, r.InitTaylorGreen())
	require.NoError(t, r.Integrate(nil))

	recs := r.Diagnostics().Records()
	require.Len(t, recs, 8)
	for i, rec := range recs {
		assert.Equal(t, i/4, rec.Step, "all four substages share the step index")
		assert.Equal(t, i%4+1, rec.Substage)
	}
	assert.Equal(t, 2, r.StepCount())
}

func TestTerminalRunRefusesSteps(t *testing.T) {
	t.Parallel()
	cfg := testConfig(8, 2, 1e-3)
	r, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, r.InitTaylorGreen())
	require.NoError(t, r.Integrate(nil))
	require.Equal(t, Stable, r.State())

	err = r.Step()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STABLE")
}

func TestDescentEtaZeroIsAbsence(t *testing.T) {
	t.Parallel()
	mk := func(withDescent bool) *Run {
		cfg := testConfig(8, 3, 1e-3)
		if withDescent {
			cfg.Descent.Spec = &DescentSpec{Eta: 0, Alpha: 0.5}
		}
		r, err := New(cfg)
		require.NoError(t, err)
		require.NoError(t, r.InitTaylorGreen())
		require.NoError(t, r.Integrate(nil))
		return r
	}
	a := mk(true)
	b := mk(false)
	for c := 0; c < 3; c++ {
		for i := range a.Velocity()[c].Data {
			require.Equal(t, b.Velocity()[c].Data[i], a.Velocity()[c].Data[i],
				"η=0 descent must leave no residual side effects")
		}
	}
}

func TestDescentDampsEnergy(t *testing.T) {
	t.Parallel()
	cfg := testConfig(8, 10, 1e-3)
	cfg.Descent.Spec = &DescentSpec{Eta: 0.5, Alpha: 0.1}
	withDescent, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, withDescent.InitTaylorGreen())
	require.NoError(t, withDescent.Integrate(nil))

	plain, err := New(testConfig(8, 10, 1e-3))
	require.NoError(t, err)
	require.NoError(t, plain.InitTaylorGreen())
	require.NoError(t, plain.Integrate(nil))

	assert.Less(t, withDescent.Velocity().Energy(), plain.Velocity().Energy())
}

func TestMaskedRunStaysDivergenceFree(t *testing.T) {
	t.Parallel()
	cfg := testConfig(8, 5, 1e-3)
	cfg.Mask.Spec = &operator.MaskSpec{Scheme: "prime_shell", Beta: 0.5}
	r, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, r.InitTaylorGreen())
	require.NoError(t, r.Integrate(nil))
	assert.Equal(t, Stable, r.State())
}

func TestForcedRunInjectsEnergy(t *testing.T) {
	t.Parallel()
	cfg := testConfig(8, 5, 1e-3)
	cfg.ForcingK = 2
	cfg.ForcingAmplitude = 0.5
	cfg.Seed = 7
	r, err := New(cfg)
	require.NoError(t, err)
	// Start from rest: all energy comes from the forcing.
	require.NoError(t, r.Integrate(nil))
	assert.Equal(t, Stable, r.State())
	assert.Greater(t, r.Velocity().Energy(), 0.0)
	b := r.EnergyBudget()
	assert.Greater(t, b.Injection, 0.0)
}

func TestRunsAreReproducible(t *testing.T) {
	t.Parallel()
	mk := func() *Run {
		cfg := testConfig(8, 4, 1e-3)
		cfg.ForcingK = 2
		cfg.ForcingAmplitude = 0.3
		cfg.Seed = 99
		r, err := New(cfg)
		require.NoError(t, err)
		require.NoError(t, r.InitTaylorGreen())
		require.NoError(t, r.Integrate(nil))
		return r
	}
	a := mk()
	b := mk()
	for c := 0; c < 3; c++ {
		for i := range a.Velocity()[c].Data {
			require.Equal(t, a.Velocity()[c].Data[i], b.Velocity()[c].Data[i],
				"equal seed and configuration must be bit-reproducible")
		}
	}
}

func TestShellSpectrumTracksEnergy(t *testing.T) {
	t.Parallel()
	cfg := testConfig(8, 1, 1e-3)
	r, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, r.InitTaylorGreen())

	bins := r.ShellSpectrum()
	var total float64
	for _, b := range bins {
		total += b
	}
	assert.InDelta(t, r.Velocity().Energy(), total, 1e-10)
	// Taylor–Green concentrates at |k| = √3, shell index 2.
	assert.Greater(t, bins[2], 0.0)
}
