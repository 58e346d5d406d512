package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	instantiationAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskadmin_instantiation_attempts_total",
		Help: "Task instantiation attempts by recorded outcome.",
	}, []string{"status"})

	templateOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskadmin_template_operations_total",
		Help: "Template store operations by type and outcome.",
	}, []string{"operation", "outcome"})

	dispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "taskadmin_dispatch_duration_seconds",
		Help:    "Latency of task center publish calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
)

// CountInstantiation records one instantiation attempt outcome.
func CountInstantiation(status string) {
	instantiationAttempts.WithLabelValues(status).Inc()
}

// CountTemplateOp records one template operation outcome.
func CountTemplateOp(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failed"
	}
	templateOperations.WithLabelValues(operation, outcome).Inc()
}

// ObserveDispatch records the latency of one task center call.
func ObserveDispatch(d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	dispatchDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
