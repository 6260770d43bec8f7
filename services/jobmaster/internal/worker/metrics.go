package worker

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	JobsProcessed *prometheus.CounterVec
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		JobsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobmaster_jobs_processed_total",
			Help: "Estimation jobs processed by final state.",
		}, []string{"state"}),
	}
	registry.MustRegister(m.JobsProcessed)
	return m
}

func (m *Metrics) IncJob(state string) {
	if m == nil {
		return
	}
	m.JobsProcessed.WithLabelValues(state).Inc()
}
