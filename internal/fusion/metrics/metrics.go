package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const prefix = "fusion_"

var (
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: prefix + "submissions_total",
		Help: "Parts accepted into the partial record store, by kind",
	}, []string{"kind"})

	RecordsReadyTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: prefix + "records_ready_total",
		Help: "Record ids that became ready (both parts present)",
	})

	ConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: prefix + "conflicts_total",
		Help: "Record ids held back because their parts name different partitions",
	})

	ForwardedRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: prefix + "forwarded_records_total",
		Help: "Completed records delivered downstream, by partition",
	}, []string{"partition"})

	ForwardFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: prefix + "forward_failures_total",
		Help: "Chunks that failed to forward and were left for the next pass",
	})

	QuarantinedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: prefix + "quarantined_total",
		Help: "Record ids quarantined after a permanent downstream rejection",
	})

	PurgedRecordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: prefix + "purged_records_total",
		Help: "Record ids purged after successful forwarding",
	})
)
