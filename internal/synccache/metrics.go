package synccache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	hitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "contacts_cache",
		Name:      "hits_total",
		Help:      "Reads served from a fresh cache.",
	})

	refreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contacts_cache",
			Name:      "refreshes_total",
			Help:      "Remote snapshot fetches by outcome.",
		},
		[]string{"outcome"},
	)

	localWinsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "contacts_cache",
		Name:      "local_wins_total",
		Help:      "Records where a local edit was kept over the remote version.",
	})

	entriesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "contacts_cache",
		Name:      "entries",
		Help:      "Records held after the last refresh.",
	})
)
