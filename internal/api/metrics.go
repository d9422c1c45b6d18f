package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	billsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tabscan_bills_published_total",
		Help: "Number of bills published.",
	})

	claimOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tabscan_claim_items_total",
		Help: "Item claim outcomes, by result.",
	}, []string{"result"}) // claimed | rejected

	itemsReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tabscan_items_released_total",
		Help: "Number of items released back to unclaimed.",
	})

	sseClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tabscan_sse_clients",
		Help: "Currently connected live-update subscribers.",
	})
)
