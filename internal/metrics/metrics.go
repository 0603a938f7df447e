package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	Runs          prometheus.Counter
	RunFailures   prometheus.Counter
	RunsSkipped   prometheus.Counter
	RunDuration   prometheus.Histogram
	LastRunTime   prometheus.Gauge
	RowsValid     prometheus.Counter
	RowsInvalid   prometheus.Counter
	UrgentFreight prometheus.Gauge

	NotificationsSent   *prometheus.CounterVec
	NotificationsFailed *prometheus.CounterVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	m := &Registry{
		reg:         r,
		Runs:        prometheus.NewCounter(prometheus.CounterOpts{Name: "orderrpa_runs_total"}),
		RunFailures: prometheus.NewCounter(prometheus.CounterOpts{Name: "orderrpa_run_failures_total"}),
		RunsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderrpa_runs_skipped_total",
			Help: "Triggers rejected because a run was already in flight.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "orderrpa_run_duration_seconds",
			Buckets: prometheus.DefBuckets,
		}),
		LastRunTime:   prometheus.NewGauge(prometheus.GaugeOpts{Name: "orderrpa_last_run_timestamp_seconds"}),
		RowsValid:     prometheus.NewCounter(prometheus.CounterOpts{Name: "orderrpa_rows_valid_total"}),
		RowsInvalid:   prometheus.NewCounter(prometheus.CounterOpts{Name: "orderrpa_rows_invalid_total"}),
		UrgentFreight: prometheus.NewGauge(prometheus.GaugeOpts{Name: "orderrpa_urgent_freight"}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderrpa_notifications_sent_total",
		}, []string{"kind"}),
		NotificationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderrpa_notifications_failed_total",
		}, []string{"kind"}),
	}
	r.MustRegister(m.Runs, m.RunFailures, m.RunsSkipped, m.RunDuration, m.LastRunTime,
		m.RowsValid, m.RowsInvalid, m.UrgentFreight, m.NotificationsSent, m.NotificationsFailed)
	return m
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
