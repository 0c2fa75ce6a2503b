// Package metrics exposes genpd's runtime behavior as Prometheus metrics,
// using the promauto registration idiom throughout.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DomainStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "genpd_domain_status",
		Help: "Current status of a power domain (1=active, 0=power_off).",
	}, []string{"domain"})

	DomainSubdomainCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "genpd_domain_subdomain_count",
		Help: "Number of currently-active subdomains keeping this domain's masters on.",
	}, []string{"domain"})

	PowerOnTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genpd_power_on_total",
		Help: "Number of PowerOn attempts per domain, by outcome.",
	}, []string{"domain", "outcome"})

	PowerOffTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genpd_power_off_total",
		Help: "Number of PowerOff attempts per domain, by outcome.",
	}, []string{"domain", "outcome"})

	PowerOnLatencySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "genpd_power_on_latency_seconds",
		Help:    "Measured power-on latency per domain.",
		Buckets: prometheus.DefBuckets,
	}, []string{"domain"})

	PowerOffLatencySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "genpd_power_off_latency_seconds",
		Help:    "Measured power-off latency per domain.",
		Buckets: prometheus.DefBuckets,
	}, []string{"domain"})

	RuntimeSuspendTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genpd_runtime_suspend_total",
		Help: "Number of runtime-suspend attempts per device, by outcome.",
	}, []string{"device", "outcome"})

	RuntimeResumeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genpd_runtime_resume_total",
		Help: "Number of runtime-resume attempts per device, by outcome.",
	}, []string{"device", "outcome"})

	ReconcileTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "genpd_reconcile_ticks_total",
		Help: "Number of engine reconcile ticks run.",
	})
)

// Outcome labels shared by the *_total counters above.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeBusy    = "busy"
	OutcomeAgain   = "again"
)

// Handler returns the Prometheus scrape handler, mounted by cmd/genpd-agent
// at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
