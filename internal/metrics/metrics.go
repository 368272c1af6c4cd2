package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "itap_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "itap_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Event intake metrics
	EventsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "itap_events_received_total",
			Help: "Total number of scored events received",
		},
		[]string{"source", "status"}, // source: kafka, http; status: accepted, skipped
	)

	EventsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "itap_events_skipped_total",
			Help: "Total number of scored events skipped as malformed",
		},
		[]string{"reason"},
	)

	// Evaluation metrics
	EvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "itap_evaluation_duration_seconds",
			Help:    "Time taken to evaluate one event against the rule catalogue",
			Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
		},
	)

	AlertsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "itap_alerts_emitted_total",
			Help: "Total number of alerts emitted by the rule engine",
		},
		[]string{"kind", "severity"}, // kind: burst, dominant_family, tag_route, fallback
	)

	BurstDevicesTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "itap_burst_devices_tracked",
			Help: "Number of devices with live burst window state",
		},
	)

	// Shard metrics
	ShardQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "itap_shard_queue_size",
			Help: "Current total depth of the evaluation shard queues",
		},
	)

	ShardQueueCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "itap_shard_queue_capacity",
			Help: "Total capacity of the evaluation shard queues",
		},
	)

	// Delivery metrics
	AlertQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "itap_alert_queue_size",
			Help: "Current depth of the alert delivery queue",
		},
	)

	AlertQueueCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "itap_alert_queue_capacity",
			Help: "Capacity of the alert delivery queue",
		},
	)

	DeliveryProcessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "itap_delivery_processed_total",
			Help: "Total number of alerts delivered to the downstream sink",
		},
	)

	DeliveryFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "itap_delivery_failed_total",
			Help: "Total number of alerts that exhausted the delivery retry budget",
		},
	)

	DeliveryBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "itap_delivery_batch_duration_seconds",
			Help:    "Time taken to deliver a batch of alerts to the sink",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// Kafka producer metrics
	KafkaPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "itap_kafka_publish_total",
			Help: "Total number of messages published to Kafka",
		},
		[]string{"status"}, // status: success, failed
	)

	KafkaPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "itap_kafka_publish_duration_seconds",
			Help:    "Time taken to publish to Kafka",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	KafkaPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "itap_kafka_publish_retries_total",
			Help: "Total number of Kafka publish retries",
		},
	)

	KafkaBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "itap_kafka_bytes_written_total",
			Help: "Total bytes written to Kafka",
		},
	)

	// Alert cache metrics
	CacheWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "itap_cache_writes_total",
			Help: "Total number of latest-alert cache writes",
		},
		[]string{"status"}, // status: success, failed
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "itap_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
