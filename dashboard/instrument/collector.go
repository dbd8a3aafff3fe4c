// Package instrument exposes the dashboard's Prometheus metrics.
package instrument

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yaron8/netmon/dashboard/stream"
	"github.com/yaron8/netmon/telemetrics"
)

const namespace = "netmon"

// Collector manages all Prometheus metrics for the dashboard. Each collector
// owns its registry so tests can build as many as they like.
type Collector struct {
	registry *prometheus.Registry

	// Counters
	framesReceived *prometheus.CounterVec
	framesDropped  prometheus.Counter
	reconnects     prometheus.Counter

	// Gauges
	connectionState   prometheus.Gauge
	reconnectDelay    prometheus.Gauge
	thresholdExceeded *prometheus.GaugeVec
	attackDetected    prometheus.Gauge
	bufferLength      *prometheus.GaugeVec
}

// NewCollector creates a collector with its own registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	c := &Collector{registry: reg}

	c.framesReceived = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_received_total",
		Help:      "Decoded feed frames by type",
	}, []string{"type"})

	c.framesDropped = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_dropped_total",
		Help:      "Malformed feed frames dropped",
	})

	c.reconnects = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconnects_total",
		Help:      "Reconnect attempts scheduled",
	})

	c.connectionState = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connection_state",
		Help:      "Feed connection state (0 connecting, 1 connected, 2 disconnected, 3 error)",
	})

	c.reconnectDelay = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "reconnect_delay_seconds",
		Help:      "Delay before the next reconnect attempt",
	})

	c.thresholdExceeded = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "threshold_exceeded",
		Help:      "1 when the latest reading of a metric exceeds its limits",
	}, []string{"metric"})

	c.attackDetected = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "attack_detected",
		Help:      "1 while the latest attack verdict is positive",
	})

	c.bufferLength = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "buffer_length",
		Help:      "Points held per metric buffer",
	}, []string{"metric"})

	return c
}

// FrameReceived counts a decoded frame. Types outside the known set are
// folded into "unknown" to bound label cardinality.
func (c *Collector) FrameReceived(frameType string) {
	switch frameType {
	case telemetrics.TypeMetrics, telemetrics.TypeAttackDetection:
	default:
		frameType = "unknown"
	}
	c.framesReceived.WithLabelValues(frameType).Inc()
}

func (c *Collector) FrameDropped() {
	c.framesDropped.Inc()
}

func (c *Collector) ReconnectScheduled(delay time.Duration) {
	c.reconnects.Inc()
	c.reconnectDelay.Set(delay.Seconds())
}

func (c *Collector) StateChanged(state stream.State) {
	c.connectionState.Set(float64(state))
	if state == stream.Connected {
		c.reconnectDelay.Set(0)
	}
}

// SetThresholdExceeded records the threshold verdict for metric.
func (c *Collector) SetThresholdExceeded(metric string, exceeded bool) {
	c.thresholdExceeded.WithLabelValues(metric).Set(boolToFloat(exceeded))
}

func (c *Collector) SetAttackDetected(detected bool) {
	c.attackDetected.Set(boolToFloat(detected))
}

func (c *Collector) SetBufferLength(metric string, n int) {
	c.bufferLength.WithLabelValues(metric).Set(float64(n))
}

// Registry returns the registry the collector's metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

var _ stream.Recorder = (*Collector)(nil)
