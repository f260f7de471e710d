package solver

import (
	"log/slog"
	"time"

	"github.com/sbl8/spectra/operator"
)

// Record is the per-substage diagnostic bundle. Records are append-only and
// never mutated retroactively.
type Record struct {
	Step        int
	Substage    int
	Time        float64
	Energy      float64
	DivNorm     float64
	ParsevalErr float64
	CFL         float64
	MaxVel      float64
	Wall        time.Time
}

// Budget is the instantaneous energy balance dE/dt ≈ injection − dissipation.
type Budget struct {
	Energy      float64
	Dissipation float64
	Injection   float64
}

// Recorder accumulates the diagnostic stream. It is written by the single
// integrator goroutine, which preserves ordering without locking; reads are
// expected after the run or between steps.
type Recorder struct {
	records []Record
	log     *slog.Logger
	metrics *Metrics
}

// NewRecorder builds a recorder. logger and metrics may be nil.
func NewRecorder(log *slog.Logger, metrics *Metrics) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{log: log, metrics: metrics}
}

// Append adds one record to the stream.
func (r *Recorder) Append(rec Record) {
	r.records = append(r.records, rec)
	if r.metrics != nil {
		r.metrics.Observe(rec)
	}
	r.log.Debug("substage",
		"step", rec.Step,
		"substage", rec.Substage,
		"t", rec.Time,
		"E", rec.Energy,
		"div", rec.DivNorm,
		"parseval", rec.ParsevalErr,
		"cfl", rec.CFL,
	)
}

// Records returns the full stream.
func (r *Recorder) Records() []Record { return r.records }

// Last returns the most recent record, or a zero Record when empty.
func (r *Recorder) Last() Record {
	if len(r.records) == 0 {
		return Record{}
	}
	return r.records[len(r.records)-1]
}

// EnergyBudget evaluates the balance for the given state.
func (r *Run) EnergyBudget() Budget {
	b := Budget{
		Energy:      r.u.Energy(),
		Dissipation: operator.Dissipation(r.u, r.cfg.Viscosity),
	}
	if r.force != nil {
		b.Injection = r.force.Input(r.u)
	}
	return b
}

// ShellSpectrum returns the shell-averaged kinetic energy spectrum of the
// current state.
func (r *Run) ShellSpectrum() []float64 {
	bins := r.u[0].ShellSpectrum()
	for c := 1; c < 3; c++ {
		for i, v := range r.u[c].ShellSpectrum() {
			bins[i] += v
		}
	}
	for i := range bins {
		bins[i] *= 0.5
	}
	return bins
}
