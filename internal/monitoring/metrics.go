package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders opened with a pending payment link",
	})

	ordersCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_completed_total",
		Help: "Orders that won the pending->completed transition",
	})

	ordersFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Orders demoted to failed after exhausted payment checks",
	})

	paymentSignals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_signals_total",
			Help: "Payment success signals by source",
		},
		[]string{"source"},
	)

	scanResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_scans_total",
			Help: "Scan validations and confirmations by outcome",
		},
		[]string{"phase", "outcome"},
	)

	reconcileChecks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_checks_total",
		Help: "Gateway status checks issued by the reconciliation sweep",
	})
)

func TrackOrderCreated()   { ordersCreated.Inc() }
func TrackOrderCompleted() { ordersCompleted.Inc() }
func TrackOrderFailed()    { ordersFailed.Inc() }

// TrackPaymentSignal records a success signal arriving from one of the
// racing sources: webhook, callback, verify, poll.
func TrackPaymentSignal(source string) { paymentSignals.WithLabelValues(source).Inc() }

func TrackScan(phase, outcome string) { scanResults.WithLabelValues(phase, outcome).Inc() }

func TrackReconcileCheck() { reconcileChecks.Inc() }
