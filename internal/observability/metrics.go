package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sports_scheduling"

var (
	publicationCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "activities",
		Name:      "publications_total",
		Help:      "Number of successful publish or expand requests.",
	})
	recordsCreatedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "activities",
		Name:      "records_created_total",
		Help:      "Number of activity records created by publication expansion.",
	})
	lastPublishedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "activities",
		Name:      "last_published_timestamp_seconds",
		Help:      "Unix timestamp of the most recent publication persisted to Postgres.",
	})
	confirmationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "attendance",
		Name:      "confirmations_total",
		Help:      "Confirmation attempts labeled by evaluator verdict.",
	}, []string{"verdict"})
	cancellationCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "attendance",
		Name:      "cancellations_total",
		Help:      "Number of attendance entries removed by their owner.",
	})
	chatMessageCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chat",
		Name:      "messages_posted_total",
		Help:      "Number of chat messages appended.",
	})
)

func init() {
	prometheus.MustRegister(
		publicationCounter,
		recordsCreatedCounter,
		lastPublishedGauge,
		confirmationCounter,
		cancellationCounter,
		chatMessageCounter,
	)
}

// RecordPublication counts one publication that produced the given number of records.
func RecordPublication(records int, ts time.Time) {
	publicationCounter.Inc()
	recordsCreatedCounter.Add(float64(records))
	if !ts.IsZero() {
		lastPublishedGauge.Set(float64(ts.Unix()))
	}
}

// RecordConfirmation counts a confirmation attempt by verdict.
func RecordConfirmation(verdict string) {
	confirmationCounter.WithLabelValues(verdict).Inc()
}

func RecordCancellation() {
	cancellationCounter.Inc()
}

func RecordChatMessage() {
	chatMessageCounter.Inc()
}
