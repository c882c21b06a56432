package monitoring

import (
	"time"

	"roomcast/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector exposes transport and reconciliation metrics. It implements
// services.TransportMetrics and the media engine's StatsObserver.
type Collector struct {
	consumersTracked *prometheus.GaugeVec
	producersActive  *prometheus.GaugeVec

	consumersPausedTotal  *prometheus.CounterVec
	consumersResumedTotal *prometheus.CounterVec

	reconcilePassDuration prometheus.Histogram
	reconcilePassTotal    prometheus.Counter

	signalRequestRTT *prometheus.HistogramVec

	rtcpPacketLoss *prometheus.GaugeVec
	rtcpJitter     *prometheus.GaugeVec
}

func NewCollector() *Collector {
	return &Collector{
		consumersTracked: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "roomcast_consumers_tracked",
			Help: "Consumer transports currently registered",
		}, []string{"kind"}),

		producersActive: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "roomcast_producers_active",
			Help: "Local producers currently connected",
		}, []string{"kind"}),

		consumersPausedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "roomcast_consumers_paused_total",
			Help: "Consumer pause operations issued by reconciliation",
		}, []string{"kind"}),

		consumersResumedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "roomcast_consumers_resumed_total",
			Help: "Consumer resume operations confirmed by the peer",
		}, []string{"kind"}),

		reconcilePassDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "roomcast_reconcile_pass_duration_seconds",
			Help:    "Duration of stream reconciliation passes",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),

		reconcilePassTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "roomcast_reconcile_pass_total",
			Help: "Completed reconciliation passes",
		}),

		signalRequestRTT: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "roomcast_signal_request_rtt_seconds",
			Help:    "Round-trip time of acknowledged signaling requests",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"event"}),

		rtcpPacketLoss: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "roomcast_rtcp_packet_loss_ratio",
			Help: "Packet loss ratio reported by RTCP receiver reports",
		}, []string{"kind"}),

		rtcpJitter: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "roomcast_rtcp_jitter_ms",
			Help: "Jitter reported by RTCP receiver reports",
		}, []string{"kind"}),
	}
}

func (c *Collector) ConsumerAdded(kind domain.MediaKind) {
	c.consumersTracked.WithLabelValues(string(kind)).Inc()
}

func (c *Collector) ConsumerRemoved(kind domain.MediaKind) {
	c.consumersTracked.WithLabelValues(string(kind)).Dec()
}

func (c *Collector) ConsumerPaused(kind domain.MediaKind) {
	c.consumersPausedTotal.WithLabelValues(string(kind)).Inc()
}

func (c *Collector) ConsumerResumed(kind domain.MediaKind) {
	c.consumersResumedTotal.WithLabelValues(string(kind)).Inc()
}

func (c *Collector) ReconcilePass(duration time.Duration, paused, resumed int) {
	c.reconcilePassTotal.Inc()
	c.reconcilePassDuration.Observe(duration.Seconds())
}

func (c *Collector) ProducerCreated(kind domain.MediaKind) {
	c.producersActive.WithLabelValues(string(kind)).Inc()
}

func (c *Collector) ProducerClosed(kind domain.MediaKind) {
	c.producersActive.WithLabelValues(string(kind)).Dec()
}

// ObserveSignalRTT records the round-trip time of one acknowledged request.
func (c *Collector) ObserveSignalRTT(event string, d time.Duration) {
	c.signalRequestRTT.WithLabelValues(event).Observe(d.Seconds())
}

// ObserveRTCP records quality readings from a receiver report.
func (c *Collector) ObserveRTCP(kind domain.MediaKind, packetLoss float64, jitterMs float64) {
	c.rtcpPacketLoss.WithLabelValues(string(kind)).Set(packetLoss)
	c.rtcpJitter.WithLabelValues(string(kind)).Set(jitterMs)
}
