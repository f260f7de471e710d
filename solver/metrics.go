package solver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes the diagnostic stream as Prometheus collectors on a
// private registry, so runs never leak gauges into global process state.
type Metrics struct {
	reg      *prometheus.Registry
	energy   prometheus.Gauge
	divNorm  prometheus.Gauge
	parseval prometheus.Gauge
	cfl      prometheus.Gauge
	steps    prometheus.Counter
}

// NewMetrics builds a registry with the solver collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		energy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spectra_kinetic_energy",
			Help: "Total kinetic energy of the spectral state.",
		}),
		divNorm: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spectra_divergence_norm",
			Help: "Weighted divergence norm of the projected state.",
		}),
		parseval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spectra_parseval_error",
			Help: "Relative physical/spectral energy mismatch.",
		}),
		cfl: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spectra_cfl_ratio",
			Help: "dt over the CFL-stable step estimate.",
		}),
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spectra_substages_total",
			Help: "Completed RK substages.",
		}),
	}
	m.reg.MustRegister(m.energy, m.divNorm, m.parseval, m.cfl, m.steps)
	return m
}

// Observe updates the collectors from one diagnostic record.
func (m *Metrics) Observe(rec Record) {
	m.energy.Set(rec.Energy)
	m.divNorm.Set(rec.DivNorm)
	m.parseval.Set(rec.ParsevalErr)
	m.cfl.Set(rec.CFL)
	m.steps.Inc()
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
