// ABOUTME: Prometheus metrics for the head unit simulator
// ABOUTME: Connection, service, frame and playback counters
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for the simulator
type Metrics struct {
	registry *prometheus.Registry

	// Connection metrics
	Connections prometheus.Gauge
	HMILevel    prometheus.Gauge

	// Service metrics
	ServiceStarts  *prometheus.CounterVec
	ServicesActive *prometheus.GaugeVec

	// Frame metrics
	FramesReceived *prometheus.CounterVec
	BytesReceived  *prometheus.CounterVec
	FrameErrors    prometheus.Counter

	// Playback metrics
	BuffersPlayed  prometheus.Counter
	BuffersDropped prometheus.Counter
	PlayoutDelay   prometheus.Histogram
}

// NewMetrics creates metrics on a private registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "headunit_connections",
			Help: "Current number of connected apps",
		}),
		HMILevel: factory.NewGauge(prometheus.GaugeOpts{
			Name: "headunit_hmi_level",
			Help: "Current HMI level (0=NONE, 1=BACKGROUND, 2=LIMITED, 3=FULL)",
		}),

		ServiceStarts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "headunit_service_starts_total",
			Help: "Service start requests by media type and result",
		}, []string{"media", "result"}),
		ServicesActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "headunit_services_active",
			Help: "Currently started services by media type",
		}, []string{"media"}),

		FramesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "headunit_frames_received_total",
			Help: "Media frames received by media type",
		}, []string{"media"}),
		BytesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "headunit_bytes_received_total",
			Help: "Media payload bytes received by media type",
		}, []string{"media"}),
		FrameErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "headunit_frame_errors_total",
			Help: "Binary frames that could not be parsed or had no started service",
		}),

		BuffersPlayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "headunit_audio_buffers_played_total",
			Help: "Audio buffers handed to the output",
		}),
		BuffersDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "headunit_audio_buffers_dropped_total",
			Help: "Audio buffers dropped for arriving too late",
		}),
		PlayoutDelay: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "headunit_audio_playout_delay_seconds",
			Help:    "Delay between buffer arrival and scheduled playback",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~2.5s
		}),
	}
}

// Handler serves the metrics in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for tests
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// RecordServiceStart counts a start request
func (m *Metrics) RecordServiceStart(media string, accepted bool) {
	result := "accepted"
	if !accepted {
		result = "rejected"
	}
	m.ServiceStarts.WithLabelValues(media, result).Inc()
	if accepted {
		m.ServicesActive.WithLabelValues(media).Set(1)
	}
}

// RecordServiceEnd marks a service stopped
func (m *Metrics) RecordServiceEnd(media string) {
	m.ServicesActive.WithLabelValues(media).Set(0)
}

// RecordFrame counts one received media frame
func (m *Metrics) RecordFrame(media string, size int) {
	m.FramesReceived.WithLabelValues(media).Inc()
	m.BytesReceived.WithLabelValues(media).Add(float64(size))
}

// SetHMILevel records the current HMI level
func (m *Metrics) SetHMILevel(level int) {
	m.HMILevel.Set(float64(level))
}
