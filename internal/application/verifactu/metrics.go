package verifactu

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the compliance engine.
type Metrics struct {
	EntriesAppended      *prometheus.CounterVec
	SubmissionsTotal     *prometheus.CounterVec
	TickDuration         prometheus.Histogram
	CertificateDaysLeft  *prometheus.GaugeVec
	EligibleBacklogGauge prometheus.Gauge
}

// NewMetrics registers the engine metrics on the given registerer. Tests
// pass a private registry to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EntriesAppended: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "verifactu_entries_appended_total",
			Help: "Registry entries appended, by initial status",
		}, []string{"status"}),
		SubmissionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "verifactu_submissions_total",
			Help: "Per-entry submission outcomes",
		}, []string{"outcome"}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "verifactu_worker_tick_duration_seconds",
			Help:    "Duration of one submission worker tick",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}),
		CertificateDaysLeft: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "verifactu_certificate_days_until_expiration",
			Help: "Days until the tenant certificate expires (negative when expired)",
		}, []string{"tenant_id"}),
		EligibleBacklogGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "verifactu_eligible_backlog",
			Help: "Entries eligible for submission at the last tick",
		}),
	}
}

// ObserveTick records the duration of a worker tick started at start.
func (m *Metrics) ObserveTick(start time.Time) {
	m.TickDuration.Observe(time.Since(start).Seconds())
}
