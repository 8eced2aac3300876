package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	inspectionApi = "inspection_api"

	// Delivery metrics
	deliveriesTotal  = "deliveries_total"
	queueJobsPending = "queue_jobs_pending"

	// Outcomes
	DeliveryOutcomeSent   = "sent"
	DeliveryOutcomeFailed = "failed"

	// Labels
	deliveryOutcomeLabel = "outcome"
)

var deliveryOutcomeLabels = []string{
	deliveryOutcomeLabel,
}

/**
* Metrics definition
**/
var deliveriesTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: inspectionApi,
		Name:      deliveriesTotal,
		Help:      "number of notification delivery attempts by outcome",
	},
	deliveryOutcomeLabels,
)

var queueJobsPendingMetric = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Subsystem: inspectionApi,
		Name:      queueJobsPending,
		Help:      "number of delivery jobs currently waiting in the queue",
	},
)

func IncreaseDeliveriesTotalMetric(outcome string) {
	labels := prometheus.Labels{
		deliveryOutcomeLabel: outcome,
	}
	deliveriesTotalMetric.With(labels).Inc()
}

func UpdateQueueJobsPendingMetric(count int64) {
	queueJobsPendingMetric.Set(float64(count))
}

type PrometheusMetricsHandler struct{}

func NewPrometheusMetricsHandler() *PrometheusMetricsHandler {
	return &PrometheusMetricsHandler{}
}

func (h *PrometheusMetricsHandler) Handler() http.Handler {
	return promhttp.Handler()
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(deliveriesTotalMetric)
	prometheus.MustRegister(queueJobsPendingMetric)
}
