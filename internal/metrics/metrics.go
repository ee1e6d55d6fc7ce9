// Package metrics defines the Prometheus collectors this core exposes
// via prometheus/client_golang: poll/claim/stage/backoff counters an
// operator needs to watch, since the Reclaimer is the final backstop
// against a row getting stuck forever.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	PollBatches = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "intake",
		Subsystem: "inbox",
		Name:      "poll_batches_total",
		Help:      "Number of watermark poll ticks executed.",
	})

	PolledRows = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "intake",
		Subsystem: "inbox",
		Name:      "polled_rows_total",
		Help:      "Number of source rows returned by poll_new.",
	})

	RejectedShapeRows = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "intake",
		Subsystem: "inbox",
		Name:      "rejected_shape_rows_total",
		Help:      "Source rows returned by poll_new that the watermark poller skipped (not inserted, watermark advanced past them) for failing the payload-shape parse.",
	})

	ClaimsSucceeded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "intake",
		Subsystem: "inbox",
		Name:      "claims_succeeded_total",
		Help:      "Successful claim_one calls.",
	})

	ClaimsEmpty = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "intake",
		Subsystem: "inbox",
		Name:      "claims_empty_total",
		Help:      "claim_one calls that found no eligible row.",
	})

	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "intake",
		Subsystem: "processor",
		Name:      "stage_duration_seconds",
		Help:      "Duration of each Document Processor stage.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage"})

	RowsMarkedDone = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "intake",
		Subsystem: "inbox",
		Name:      "rows_marked_done_total",
		Help:      "Inbox rows that reached DONE.",
	})

	RowsMarkedFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "intake",
		Subsystem: "inbox",
		Name:      "rows_marked_failed_total",
		Help:      "Inbox rows that reached FAILED (will retry after backoff).",
	})

	RowsMarkedDead = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "intake",
		Subsystem: "inbox",
		Name:      "rows_marked_dead_total",
		Help:      "Inbox rows that reached DEAD (exhausted max_attempts).",
	})

	StatusWriteRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "intake",
		Subsystem: "inbox",
		Name:      "status_write_retries_total",
		Help:      "Retry attempts consumed by mark_done_with_retry/mark_failed_with_retry.",
	})

	StatusWriteExhausted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "intake",
		Subsystem: "inbox",
		Name:      "status_write_exhausted_total",
		Help:      "mark_*_with_retry calls that exhausted their retry budget (logged at error level; Reclaimer is the backstop).",
	})

	StuckLocks = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "intake",
		Subsystem: "reclaimer",
		Name:      "stuck_locks",
		Help:      "Rows observed PROCESSING past stale_lock_minutes on the last reclaim sweep.",
	})

	Reclaimed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "intake",
		Subsystem: "reclaimer",
		Name:      "reclaimed_total",
		Help:      "Rows reset PROCESSING -> NEW by the Reclaimer.",
	})

	ManualReviewFlagged = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "intake",
		Subsystem: "processor",
		Name:      "manual_review_flagged_total",
		Help:      "Documents flagged for manual review after graceful OCR failure.",
	})

	BackpressureBatchShrunk = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "intake",
		Subsystem: "worker",
		Name:      "backpressure_batch_shrunk_total",
		Help:      "Ticks where the claim batch size was reduced to 1 due to pool utilization.",
	})
)

// Collectors bundles all collectors for a single prometheus.Registerer.MustRegister call.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		PollBatches, PolledRows, RejectedShapeRows,
		ClaimsSucceeded, ClaimsEmpty,
		StageDuration,
		RowsMarkedDone, RowsMarkedFailed, RowsMarkedDead,
		StatusWriteRetries, StatusWriteExhausted,
		StuckLocks, Reclaimed,
		ManualReviewFlagged,
		BackpressureBatchShrunk,
	}
}
