// Package metrics defines the Prometheus instrumentation for the HR service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors used for monitoring the service: employee
// write operations, department counter recomputations and contact
// provisioning outcomes.
type Metrics struct {
	EmployeeWrites  *prometheus.CounterVec
	Recounts        *prometheus.CounterVec
	Provisions      *prometheus.CounterVec
	DBQueryDuration *prometheus.HistogramVec
}

// NewMetrics creates a Metrics instance registered against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EmployeeWrites: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hr_employee_writes_total",
			Help: "Total employee write operations, labelled by operation.",
		}, []string{"op"}),
		Recounts: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hr_department_recounts_total",
			Help: "Department counter recomputations, labelled by result.",
		}, []string{"result"}),
		Provisions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hr_contact_provisions_total",
			Help: "Contact provisioning runs, labelled by outcome.",
		}, []string{"outcome"}),
		DBQueryDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hr_db_query_duration_seconds",
			Help:    "Duration of database queries.",
			Buckets: prometheus.DefBuckets,
		}, []string{"query_type"}),
	}

	m.Recounts.WithLabelValues("updated")
	m.Recounts.WithLabelValues("unchanged")
	m.Recounts.WithLabelValues("missing")

	return m
}
