package consumer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeRecorded = "recorded"
	outcomeFailed   = "handler_error"
)

var (
	auditedEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sports_scheduling",
		Subsystem: "event_audit",
		Name:      "events_total",
		Help:      "Scheduling events read back from Kafka, by event type and outcome (recorded, handler_error).",
	}, []string{"event_type", "outcome"})

	undecodableRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sports_scheduling",
		Subsystem: "event_audit",
		Name:      "undecodable_records_total",
		Help:      "Kafka records skipped because they lacked an event_type header or a framed JSON payload.",
	}, []string{"topic"})

	auditLag = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sports_scheduling",
		Subsystem: "event_audit",
		Name:      "lag_seconds",
		Help:      "Delay between a scheduling event reaching Kafka and its row landing in scheduling_event_log.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
	}, []string{"event_type"})

	lastAuditedGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "sports_scheduling",
		Subsystem: "event_audit",
		Name:      "last_event_timestamp_seconds",
		Help:      "Kafka timestamp of the newest event recorded per topic.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(auditedEvents, undecodableRecords, auditLag, lastAuditedGauge)
}

func recordAudited(msg Message, now time.Time) {
	auditedEvents.WithLabelValues(msg.EventType, outcomeRecorded).Inc()
	if msg.Timestamp.IsZero() {
		return
	}
	auditLag.WithLabelValues(msg.EventType).Observe(now.Sub(msg.Timestamp).Seconds())
	lastAuditedGauge.WithLabelValues(msg.Topic).Set(float64(msg.Timestamp.Unix()))
}

func recordHandlerError(msg Message) {
	auditedEvents.WithLabelValues(msg.EventType, outcomeFailed).Inc()
}

func recordUndecodable(topic string) {
	undecodableRecords.WithLabelValues(topic).Inc()
}
