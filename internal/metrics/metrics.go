package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the business counters exported at /metrics. A fresh
// registry is injected per process (and per test) so registration never
// collides.
type Metrics struct {
	OrdersCreated      prometheus.Counter
	OrdersDeleted      prometheus.Counter
	OrderStatusUpdates *prometheus.CounterVec
	SalesRecorded      prometheus.Counter
	SalesAmount        prometheus.Counter
	LeaderboardHits    *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		OrdersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "decaldesk_orders_created_total",
			Help: "Restock orders submitted by dealers.",
		}),
		OrdersDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "decaldesk_orders_deleted_total",
			Help: "Restock orders removed by admins.",
		}),
		OrderStatusUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "decaldesk_order_status_updates_total",
			Help: "Order status changes, labelled by target status.",
		}, []string{"status"}),
		SalesRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "decaldesk_sales_recorded_total",
			Help: "Sales ledger entries appended.",
		}),
		SalesAmount: factory.NewCounter(prometheus.CounterOpts{
			Name: "decaldesk_sales_amount_total",
			Help: "Sum of recorded sale amounts.",
		}),
		LeaderboardHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "decaldesk_leaderboard_requests_total",
			Help: "Leaderboard reads, labelled by board and cache outcome.",
		}, []string{"board", "source"}),
	}
}
