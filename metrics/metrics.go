// Package metrics exposes delivery status gauges and bulk operation
// counters in the Prometheus format.
package metrics

import (
	"context"
	"net/http"

	"github.com/coreybb/dispatch/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dispatch"

var allStatuses = []models.DeliveryStatus{
	models.DeliveryStatusScheduled,
	models.DeliveryStatusInProgress,
	models.DeliveryStatusCompleted,
	models.DeliveryStatusExpired,
	models.DeliveryStatusPaused,
	models.DeliveryStatusCancelled,
}

// StatusCounter reports how many deliveries are in each effective status.
type StatusCounter interface {
	StatusCounts(ctx context.Context) map[models.DeliveryStatus]int
}

// StatusCollector derives the status gauge on every scrape, so the values
// follow the clock without anything writing to them.
type StatusCollector struct {
	source StatusCounter
	desc   *prometheus.Desc
}

func NewStatusCollector(source StatusCounter) *StatusCollector {
	return &StatusCollector{
		source: source,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "deliveries"),
			"Number of deliveries by effective status.",
			[]string{"status"}, nil,
		),
	}
}

func (c *StatusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *StatusCollector) Collect(ch chan<- prometheus.Metric) {
	counts := c.source.StatusCounts(context.Background())
	for _, s := range allStatuses {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(counts[s]), string(s))
	}
}

// Recorder counts bulk operations. It satisfies the delivery store's
// observer hook.
type Recorder struct {
	requested *prometheus.CounterVec
	changed   *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	return &Recorder{
		requested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_requested_total",
			Help:      "Deliveries named in bulk operations.",
		}, []string{"operation"}),
		changed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_changed_total",
			Help:      "Deliveries a bulk operation actually applied to.",
		}, []string{"operation"}),
	}
}

func (r *Recorder) ObserveBulk(operation string, requested, changed int) {
	r.requested.WithLabelValues(operation).Add(float64(requested))
	r.changed.WithLabelValues(operation).Add(float64(changed))
}

// NewRegistry builds a registry holding the delivery metrics plus the Go
// runtime and process collectors.
func NewRegistry(source StatusCounter, recorder *Recorder) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		NewStatusCollector(source),
		recorder.requested,
		recorder.changed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves reg in the exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
