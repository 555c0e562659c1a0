package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	viewerPackets = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "viewstream",
		Subsystem: "webrtc",
		Name:      "packets_sent_total",
		Help:      "RTP packets forwarded to WebRTC viewers",
	}, []string{"stream"})

	viewerBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "viewstream",
		Subsystem: "webrtc",
		Name:      "bytes_sent_total",
		Help:      "Bytes forwarded to WebRTC viewers",
	}, []string{"stream"})

	viewerRTCP = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "viewstream",
		Subsystem: "webrtc",
		Name:      "rtcp_packets_total",
		Help:      "RTCP packets received from WebRTC viewers",
	}, []string{"stream", "kind"})

	viewerNACKedPackets = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "viewstream",
		Subsystem: "webrtc",
		Name:      "nacked_packets_total",
		Help:      "Packets reported lost by WebRTC viewers",
	}, []string{"stream"})

	viewersActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "viewstream",
		Subsystem: "webrtc",
		Name:      "viewers",
		Help:      "Connected WebRTC viewers",
	}, []string{"stream"})

	producersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "viewstream",
		Subsystem: "rtsp",
		Name:      "producers",
		Help:      "Encoders currently publishing into the relay",
	})
)

// RTCP feedback kinds reported by RecordRTCP.
const (
	RTCPOther = "other"
	RTCPNACK  = "nack"
	RTCPPLI   = "pli"
	RTCPFIR   = "fir"
)

// RecordPacketSent counts one forwarded RTP packet of size bytes.
func RecordPacketSent(stream string, size int) {
	viewerPackets.WithLabelValues(stream).Inc()
	viewerBytes.WithLabelValues(stream).Add(float64(size))
}

// RecordRTCP counts one RTCP packet of the given kind.
func RecordRTCP(stream, kind string) {
	viewerRTCP.WithLabelValues(stream, kind).Inc()
}

// RecordNACKedPackets adds the number of packets a NACK asked for.
func RecordNACKedPackets(stream string, count int) {
	viewerNACKedPackets.WithLabelValues(stream).Add(float64(count))
}

// SetViewers sets the viewer count for a stream.
func SetViewers(stream string, count int) {
	if count == 0 {
		viewersActive.DeleteLabelValues(stream)
		return
	}
	viewersActive.WithLabelValues(stream).Set(float64(count))
}

// SetProducers sets the number of publishing encoders.
func SetProducers(count int) {
	producersActive.Set(float64(count))
}
