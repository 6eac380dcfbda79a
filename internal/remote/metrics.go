package remote

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contacts_remote",
			Name:      "requests_total",
			Help:      "Calls made to the remote store by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contacts_remote",
			Name:      "retries_total",
			Help:      "Retries scheduled after a transient failure.",
		},
		[]string{"op"},
	)

	skippedRecordsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "contacts_remote",
			Name:      "skipped_records_total",
			Help:      "Records dropped from bulk fetches because they could not be translated.",
		},
	)
)
