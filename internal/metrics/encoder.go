package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	encoderFPS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "viewstream",
		Subsystem: "encoder",
		Name:      "fps",
		Help:      "Current encoder output FPS",
	}, []string{"session"})

	encoderDroppedFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "viewstream",
		Subsystem: "encoder",
		Name:      "dropped_frames_total",
		Help:      "Total dropped frames",
	}, []string{"session"})

	encoderDuplicateFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "viewstream",
		Subsystem: "encoder",
		Name:      "duplicate_frames_total",
		Help:      "Total duplicate frames",
	}, []string{"session"})

	encoderSpeed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "viewstream",
		Subsystem: "encoder",
		Name:      "speed",
		Help:      "Encoder speed multiplier relative to realtime",
	}, []string{"session"})

	// Local cache for SSE exporter access.
	encoderCache   = make(map[string]*EncoderMetrics)
	encoderCacheMu sync.RWMutex
)

// EncoderMetrics holds current metric values for a session's encoder.
type EncoderMetrics struct {
	FPS             float64
	DroppedFrames   float64
	DuplicateFrames float64
	Speed           float64
}

// SetEncoderFPS sets the current FPS for a session.
func SetEncoderFPS(sessionID string, fps float64) {
	encoderFPS.WithLabelValues(sessionID).Set(fps)
	updateCache(sessionID, func(m *EncoderMetrics) { m.FPS = fps })
}

// SetEncoderDroppedFrames sets the dropped frames count for a session.
func SetEncoderDroppedFrames(sessionID string, count float64) {
	encoderDroppedFrames.WithLabelValues(sessionID).Set(count)
	updateCache(sessionID, func(m *EncoderMetrics) { m.DroppedFrames = count })
}

// SetEncoderDuplicateFrames sets the duplicate frames count for a session.
func SetEncoderDuplicateFrames(sessionID string, count float64) {
	encoderDuplicateFrames.WithLabelValues(sessionID).Set(count)
	updateCache(sessionID, func(m *EncoderMetrics) { m.DuplicateFrames = count })
}

// SetEncoderSpeed sets the speed multiplier for a session.
func SetEncoderSpeed(sessionID string, speed float64) {
	encoderSpeed.WithLabelValues(sessionID).Set(speed)
	updateCache(sessionID, func(m *EncoderMetrics) { m.Speed = speed })
}

// DeleteEncoderMetrics removes all encoder metrics for a session.
func DeleteEncoderMetrics(sessionID string) {
	encoderFPS.DeleteLabelValues(sessionID)
	encoderDroppedFrames.DeleteLabelValues(sessionID)
	encoderDuplicateFrames.DeleteLabelValues(sessionID)
	encoderSpeed.DeleteLabelValues(sessionID)

	encoderCacheMu.Lock()
	delete(encoderCache, sessionID)
	encoderCacheMu.Unlock()
}

// GetEncoderMetrics returns current metric values for a session.
func GetEncoderMetrics(sessionID string) *EncoderMetrics {
	encoderCacheMu.RLock()
	defer encoderCacheMu.RUnlock()
	if m, ok := encoderCache[sessionID]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// GetAllEncoderMetrics returns metrics for all sessions with a live encoder.
func GetAllEncoderMetrics() map[string]*EncoderMetrics {
	encoderCacheMu.RLock()
	defer encoderCacheMu.RUnlock()
	result := make(map[string]*EncoderMetrics, len(encoderCache))
	for id, m := range encoderCache {
		dup := *m
		result[id] = &dup
	}
	return result
}

func updateCache(sessionID string, update func(*EncoderMetrics)) {
	encoderCacheMu.Lock()
	defer encoderCacheMu.Unlock()
	m, ok := encoderCache[sessionID]
	if !ok {
		m = &EncoderMetrics{}
		encoderCache[sessionID] = m
	}
	update(m)
}
