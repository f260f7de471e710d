// Package solver advances the incompressible Navier–Stokes equations in
// spectral space with a 4th-order Runge–Kutta integrator.
//
// A Run owns the velocity state for its whole lifetime and executes a single
// logical pipeline: nothing mutates the state concurrently within a step.
// After every RK substage the integrator re-applies the divergence-free
// projection, appends a diagnostic record and checks the numerical
// invariants (divergence norm, Parseval balance, finite bounded energy).
// A breach transitions the run to Diverged and surfaces a DivergenceReport
// naming the substage, metric and threshold; nothing is retried.
package solver

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sbl8/spectra/fft"
	"github.com/sbl8/spectra/grid"
	"github.com/sbl8/spectra/operator"
)

// Invariant thresholds, fixed for all runs.
const (
	ParsevalTol = 1e-12
	CFLSafety   = 0.5

	// CFLLimit bounds the tracked CFL ratio. Beyond it the advective time
	// scale is unresolved and the step carries no physical meaning, whether
	// or not the state happens to blow up.
	CFLLimit = 2.0
)

// Run is the time integrator for one simulation.
type Run struct {
	cfg     *Config
	g       *grid.Grid
	tr      *fft.Transform
	nl      *operator.Nonlinear
	force   *operator.ShellForcing
	mask    *operator.Mask
	descent *operator.Descent

	u       operator.Velocity
	state   State
	step    int
	time    float64
	dt      float64
	energy0 float64

	rec *Recorder
	log *slog.Logger
}

// Option adjusts a Run at construction.
type Option func(*Run)

// WithLogger attaches a logger; default is slog.Default().
func WithLogger(l *slog.Logger) Option { return func(r *Run) { r.log = l } }

// WithMetrics attaches Prometheus collectors to the diagnostic stream.
func WithMetrics(m *Metrics) Option {
	return func(r *Run) { r.rec = NewRecorder(r.log, m) }
}

// New builds a Run from a validated configuration. The optional mask and
// descent stages are resolved here, at configuration-load time; when absent
// they are nil and contribute nothing.
func New(cfg *Config, opts ...Option) (*Run, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g, err := grid.New(cfg.GridN[0], cfg.GridN[1], cfg.GridN[2])
	if err != nil {
		return nil, configErrf("grid: %v", err)
	}
	tr := fft.New(g, cfg.Workers)
	r := &Run{
		cfg:   cfg,
		g:     g,
		tr:    tr,
		nl:    operator.NewNonlinear(tr),
		u:     operator.NewVelocity(g),
		state: Idle,
		dt:    cfg.Dt,
		log:   slog.Default(),
	}
	if cfg.ForcingAmplitude != 0 {
		r.force = operator.NewShellForcing(g, cfg.ForcingK, cfg.ForcingAmplitude, cfg.Seed)
	}
	if spec := cfg.Mask.Spec; spec != nil {
		m, err := operator.NewMask(g, *spec)
		if err != nil {
			return nil, configErrf("mask: %v", err)
		}
		r.mask = m
		r.log.Info("mask configured",
			"scheme", spec.Scheme, "primorial", spec.Primorial,
			"beta", spec.Beta, "alpha", spec.Alpha)
	}
	if spec := cfg.Descent.Spec; spec != nil {
		r.descent = &operator.Descent{Eta: spec.Eta, Alpha: spec.Alpha}
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.rec == nil {
		r.rec = NewRecorder(r.log, nil)
	}
	return r, nil
}

// Grid returns the run's wavenumber grid.
func (r *Run) Grid() *grid.Grid { return r.g }

// Transform returns the run's transform engine.
func (r *Run) Transform() *fft.Transform { return r.tr }

// State returns the integrator state.
func (r *Run) State() State { return r.state }

// StepCount returns the number of completed steps.
func (r *Run) StepCount() int { return r.step }

// Time returns the simulated time.
func (r *Run) Time() float64 { return r.time }

// Dt returns the current step size (adaptive runs may have reduced it).
func (r *Run) Dt() float64 { return r.dt }

// Velocity exposes the spectral state for archival. Callers must not mutate
// it while the run is stepping.
func (r *Run) Velocity() operator.Velocity { return r.u }

// Diagnostics returns the recorder.
func (r *Run) Diagnostics() *Recorder { return r.rec }

// SetState installs the initial condition: the state is projected and its
// divergence invariant checked before the run accepts it.
func (r *Run) SetState(u operator.Velocity) error {
	if r.state != Idle {
		return fmt.Errorf("cannot set state while %s", r.state)
	}
	for c := 0; c < 3; c++ {
		if err := u[c].Validate(); err != nil {
			return err
		}
		if u[c].Grid != r.g {
			return configErrf("initial condition grid does not match run grid")
		}
	}
	operator.Project(u)
	if err := operator.CheckDivergence(u); err != nil {
		return err
	}
	r.u = u
	r.energy0 = u.Energy()
	return nil
}

// InitTaylorGreen installs the Taylor–Green vortex initial condition.
func (r *Run) InitTaylorGreen() error {
	var phys [3]*grid.Field
	for c := 0; c < 3; c++ {
		phys[c] = grid.NewField(r.g)
	}
	g := r.g
	for i1 := 0; i1 < g.N1; i1++ {
		x := 2 * math.Pi * float64(i1) / float64(g.N1)
		for i2 := 0; i2 < g.N2; i2++ {
			y := 2 * math.Pi * float64(i2) / float64(g.N2)
			for i3 := 0; i3 < g.N3; i3++ {
				z := 2 * math.Pi * float64(i3) / float64(g.N3)
				phys[0].Set(i1, i2, i3, math.Sin(x)*math.Cos(y)*math.Cos(z))
				phys[1].Set(i1, i2, i3, -math.Cos(x)*math.Sin(y)*math.Cos(z))
			}
		}
	}
	var u operator.Velocity
	for c := 0; c < 3; c++ {
		s, err := r.tr.Forward(phys[c])
		if err != nil {
			return err
		}
		u[c] = s
	}
	return r.SetState(u)
}

// rhs assembles the right-hand side of the momentum equation for state y.
// The nonlinear term arrives projected; viscous, forcing and descent terms
// are divergence-free by construction; the mask, applied last, scales whole
// modes and cannot reintroduce divergence.
func (r *Run) rhs(y operator.Velocity) (operator.Velocity, error) {
	n, err := r.nl.Apply(y)
	if err != nil {
		return operator.Velocity{}, err
	}
	operator.AddViscous(n, y, r.cfg.Viscosity)
	if r.force != nil {
		r.force.Add(n)
	}
	if r.descent != nil {
		r.descent.Add(n, y)
	}
	if r.mask != nil {
		r.mask.ApplyAll(n)
	}
	return n, nil
}

// Step advances one RK4 step with per-substage invariant checks.
func (r *Run) Step() error {
	switch r.state {
	case Idle:
		if err := r.transition(Stepping); err != nil {
			return err
		}
		if r.energy0 == 0 {
			r.energy0 = r.u.Energy()
		}
	case Stepping:
	default:
		return fmt.Errorf("cannot step a %s run", r.state)
	}

	if r.cfg.Adaptive {
		if last := r.rec.Last(); last.CFL > 1 {
			r.dt /= 2
			r.log.Warn("CFL ratio above 1, halving dt", "dt", r.dt, "cfl", last.CFL)
		}
	}
	dt := r.dt

	k1, err := r.rhs(r.u)
	if err != nil {
		return r.fail(err)
	}
	y := r.u.Clone()
	y.AXPY(dt/2, k1)
	operator.Project(y)
	if err := r.check(y, 1); err != nil {
		return r.fail(err)
	}

	k2, err := r.rhs(y)
	if err != nil {
		return r.fail(err)
	}
	y = r.u.Clone()
	y.AXPY(dt/2, k2)
	operator.Project(y)
	if err := r.check(y, 2); err != nil {
		return r.fail(err)
	}

	k3, err := r.rhs(y)
	if err != nil {
		return r.fail(err)
	}
	y = r.u.Clone()
	y.AXPY(dt, k3)
	operator.Project(y)
	if err := r.check(y, 3); err != nil {
		return r.fail(err)
	}

	k4, err := r.rhs(y)
	if err != nil {
		return r.fail(err)
	}
	r.u.AXPY(dt/6, k1)
	r.u.AXPY(dt/3, k2)
	r.u.AXPY(dt/3, k3)
	r.u.AXPY(dt/6, k4)
	operator.Project(r.u)
	// The counters advance only once the updated state passes its check, so
	// every record and breach report of a step carries the same index: the
	// number of previously completed steps.
	if err := r.check(r.u, 4); err != nil {
		return r.fail(err)
	}
	r.step++
	r.time += dt
	return nil
}

// Integrate runs the configured number of steps and finishes in Stable.
// onStep, when non-nil, observes the run after each completed step.
func (r *Run) Integrate(onStep func(step int) error) error {
	for i := 0; i < r.cfg.Steps; i++ {
		if err := r.Step(); err != nil {
			return err
		}
		if onStep != nil {
			if err := onStep(r.step); err != nil {
				return err
			}
		}
	}
	return r.transition(Stable)
}

func (r *Run) fail(err error) error {
	if r.state == Stepping {
		if terr := r.transition(Diverged); terr != nil {
			return fmt.Errorf("%w (also: %v)", err, terr)
		}
	}
	return err
}

// check computes the diagnostic record for a substage and enforces the
// invariants. The CFL ratio is recorded for the caller and breaches only
// its hard limit here; adaptive stepping reacts to the recorded value
// between steps.
func (r *Run) check(y operator.Velocity, substage int) error {
	espec := y.Energy()
	div := operator.DivergenceNorm(y)

	var ephys, maxVel float64
	for c := 0; c < 3; c++ {
		f, err := r.tr.Inverse(y[c])
		if err != nil {
			return fmt.Errorf("substage %d diagnostics: %w", substage, err)
		}
		ephys += 0.5 * f.Energy()
		if mv := f.MaxAbs(); mv > maxVel {
			maxVel = mv
		}
	}
	parseval := 0.0
	if espec > 0 {
		parseval = math.Abs(ephys-espec) / espec
	}
	cfl := 0.0
	if maxVel > 0 {
		cfl = r.dt * maxVel / (CFLSafety * r.g.Spacing())
	}

	r.rec.Append(Record{
		Step:        r.step,
		Substage:    substage,
		Time:        r.time,
		Energy:      espec,
		DivNorm:     div,
		ParsevalErr: parseval,
		CFL:         cfl,
		MaxVel:      maxVel,
		Wall:        time.Now(),
	})

	report := func(metric string, value, threshold float64) error {
		return &DivergenceReport{
			Step: r.step, Substage: substage,
			Metric: metric, Value: value, Threshold: threshold,
		}
	}
	if !isFinite(espec) || !isFinite(ephys) {
		return report("energy_finite", espec, math.MaxFloat64)
	}
	if r.energy0 > 0 && espec > r.cfg.MaxGrowth*r.energy0 {
		return report("energy_growth", espec, r.cfg.MaxGrowth*r.energy0)
	}
	if div > operator.DivergenceTol && div > operator.DivergenceTol*espec {
		return report("divergence_norm", div, operator.DivergenceTol)
	}
	if parseval > ParsevalTol {
		return report("parseval_error", parseval, ParsevalTol)
	}
	if cfl > CFLLimit {
		return report("cfl_ratio", cfl, CFLLimit)
	}
	return nil
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
