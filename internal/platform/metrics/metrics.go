package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the daemon. A nil *Metrics is a
// valid no-op receiver, so tests can skip registration entirely.
type Metrics struct {
	eventsProcessed     *prometheus.CounterVec
	eventsDiscarded     *prometheus.CounterVec
	txSubmitted         *prometheus.CounterVec
	txRejected          *prometheus.CounterVec
	handshakesCompleted prometheus.Counter
	recoveriesCompleted prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		eventsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mochifi_events_processed_total",
			Help: "Notification events dispatched into the state reducer, by event kind",
		}, []string{"kind"}),
		eventsDiscarded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mochifi_events_discarded_total",
			Help: "Notification events dropped before dispatch, by discard reason",
		}, []string{"reason"}),
		txSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mochifi_ledger_tx_submitted_total",
			Help: "Contract operations submitted to the ledger, by operation",
		}, []string{"op"}),
		txRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mochifi_ledger_tx_rejected_total",
			Help: "Contract operations rejected by the ledger, by operation",
		}, []string{"op"}),
		handshakesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mochifi_guardian_handshakes_completed_total",
			Help: "Guardian additions confirmed on both contracts",
		}),
		recoveriesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mochifi_recoveries_completed_total",
			Help: "Wallet recoveries observed reaching the recovered state",
		}),
	}
}

func (m *Metrics) EventProcessed(kind string) {
	if m == nil {
		return
	}
	m.eventsProcessed.WithLabelValues(kind).Inc()
}

func (m *Metrics) EventDiscarded(reason string) {
	if m == nil {
		return
	}
	m.eventsDiscarded.WithLabelValues(reason).Inc()
}

func (m *Metrics) TxSubmitted(op string) {
	if m == nil {
		return
	}
	m.txSubmitted.WithLabelValues(op).Inc()
}

func (m *Metrics) TxRejected(op string) {
	if m == nil {
		return
	}
	m.txRejected.WithLabelValues(op).Inc()
}

func (m *Metrics) HandshakeCompleted() {
	if m == nil {
		return
	}
	m.handshakesCompleted.Inc()
}

func (m *Metrics) RecoveryCompleted() {
	if m == nil {
		return
	}
	m.recoveriesCompleted.Inc()
}
