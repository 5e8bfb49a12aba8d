package endpoint

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the Prometheus instrumentation for one endpoint. A nil
// *Metrics disables instrumentation entirely (every method is a no-op),
// matching this package's nil-safe dependency style (see config.go).
//
// Grounded on telemetry/flow-ingest/internal/metrics/metrics.go's
// promauto.New* style; names are namespaced per-endpoint via labels rather
// than per-process globals so more than one Endpoint can run in a process.
type Metrics struct {
	sendQueueDepth *prometheus.GaugeVec
	recvQueueDepth *prometheus.GaugeVec
	retransmits    *prometheus.CounterVec
	exhausted      *prometheus.CounterVec
	dispatched     *prometheus.CounterVec
	dropped        *prometheus.CounterVec
}

// NewMetrics registers the metric families with Prometheus's default
// registry. name is not used here: the "endpoint" label value is the Name of
// each Endpoint the returned *Metrics is passed to, so several endpoints can
// share one *Metrics. A second call panics because the families are already
// registered.
func NewMetrics(name string) *Metrics {
	return &Metrics{
		sendQueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "coapd_send_queue_depth", Help: "Current depth of the retransmission send queue.",
		}, []string{"endpoint"}),
		recvQueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "coapd_recv_queue_depth", Help: "Current depth of the receive queue awaiting dispatch.",
		}, []string{"endpoint"}),
		retransmits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "coapd_retransmits_total", Help: "Total CON retransmissions performed.",
		}, []string{"endpoint"}),
		exhausted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "coapd_retransmit_exhausted_total", Help: "Total transactions dropped after exceeding max retransmit count.",
		}, []string{"endpoint"}),
		dispatched: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "coapd_dispatched_total", Help: "Total messages handed to the dispatcher, by message type.",
		}, []string{"endpoint", "type"}),
		dropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "coapd_dropped_total", Help: "Total messages dropped during dispatch, by reason.",
		}, []string{"endpoint", "reason"}),
	}
}

func (m *Metrics) setQueueDepths(name string, sendLen, recvLen int) {
	if m == nil {
		return
	}
	m.sendQueueDepth.WithLabelValues(name).Set(float64(sendLen))
	m.recvQueueDepth.WithLabelValues(name).Set(float64(recvLen))
}

func (m *Metrics) observeRetransmit(name string) {
	if m == nil {
		return
	}
	m.retransmits.WithLabelValues(name).Inc()
}

func (m *Metrics) observeExhausted(name string) {
	if m == nil {
		return
	}
	m.exhausted.WithLabelValues(name).Inc()
}

func (m *Metrics) observeDispatched(name, typ string) {
	if m == nil {
		return
	}
	m.dispatched.WithLabelValues(name, typ).Inc()
}

func (m *Metrics) observeDropped(name, reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(name, reason).Inc()
}
