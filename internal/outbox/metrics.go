package outbox

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "sports_scheduling"

var (
	eventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "outbox",
		Name:      "events_published_total",
		Help:      "Scheduling events written to Kafka, by event type.",
	}, []string{"event_type"})

	eventsDeadLettered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "outbox",
		Name:      "events_dead_lettered_total",
		Help:      "Scheduling events moved to outbox_dlq after a failed write, by event type.",
	}, []string{"event_type"})

	publishLag = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "outbox",
		Name:      "publish_lag_seconds",
		Help:      "Delay between a mutation committing its event and the event reaching Kafka.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"aggregate_type"})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time spent claiming, writing and marking one outbox batch.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	dlqOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "dlq",
		Name:      "entries_total",
		Help:      "DLQ entries handled by the replay loop, by event type and outcome (requeued, retry_scheduled, quarantined).",
	}, []string{"event_type", "outcome"})

	dlqBacklog = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "dlq",
		Name:      "pending_entries",
		Help:      "DLQ entries awaiting replay, by aggregate type.",
	}, []string{"aggregate_type"})
)

const (
	outcomeRequeued    = "requeued"
	outcomeRetry       = "retry_scheduled"
	outcomeQuarantined = "quarantined"
)

func init() {
	prometheus.MustRegister(eventsPublished, eventsDeadLettered, publishLag, batchDuration, dlqOutcomes, dlqBacklog)
}

func recordPublished(messages []Message, at time.Time) {
	for _, msg := range messages {
		eventsPublished.WithLabelValues(msg.EventType).Inc()
		if !msg.CreatedAt.IsZero() {
			publishLag.WithLabelValues(msg.AggregateType).Observe(at.Sub(msg.CreatedAt).Seconds())
		}
	}
}

func recordDeadLettered(msg Message) {
	eventsDeadLettered.WithLabelValues(msg.EventType).Inc()
}

func recordDLQOutcome(entry dlqEntry, outcome string) {
	dlqOutcomes.WithLabelValues(entry.EventType, outcome).Inc()
}

// refreshBacklog resets the per-aggregate backlog gauge from outbox_dlq.
func refreshBacklog(ctx context.Context, pool *pgxpool.Pool) error {
	rows, err := pool.Query(ctx,
		`SELECT aggregate_type, COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NULL GROUP BY aggregate_type`)
	if err != nil {
		return err
	}
	defer rows.Close()

	counts := map[string]float64{"activity": 0, "attendance": 0, "chat_message": 0}
	for rows.Next() {
		var aggregate string
		var n int
		if err := rows.Scan(&aggregate, &n); err != nil {
			return err
		}
		counts[aggregate] = float64(n)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for aggregate, n := range counts {
		dlqBacklog.WithLabelValues(aggregate).Set(n)
	}
	return nil
}
