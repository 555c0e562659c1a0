package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SessionStates lists every value the state gauge can take. Exactly one of
// them is 1 for a known session.
var SessionStates = []string{"idle", "starting", "running", "stopping"}

var (
	sessionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "viewstream",
		Subsystem: "session",
		Name:      "state",
		Help:      "Current session state (1 for the active state)",
	}, []string{"session", "state"})

	sessionStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "viewstream",
		Subsystem: "session",
		Name:      "starts_total",
		Help:      "Session start attempts by result",
	}, []string{"result"})

	sessionUnexpectedExits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "viewstream",
		Subsystem: "session",
		Name:      "unexpected_exits_total",
		Help:      "Supervised processes found dead by the watchdog",
	}, []string{"process"})

	motionCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "viewstream",
		Subsystem: "motion",
		Name:      "commands_total",
		Help:      "Accepted motion commands",
	}, []string{"action", "direction"})

	motionResets = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "viewstream",
		Subsystem: "motion",
		Name:      "resets_total",
		Help:      "Drag resets performed at the surface boundary",
	}, []string{"action"})

	motionActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "viewstream",
		Subsystem: "motion",
		Name:      "active",
		Help:      "Number of running motion workers",
	})
)

// SetSessionState marks state as the current state of a session.
func SetSessionState(sessionID, state string) {
	for _, s := range SessionStates {
		v := 0.0
		if s == state {
			v = 1
		}
		sessionState.WithLabelValues(sessionID, s).Set(v)
	}
}

// DeleteSessionState removes the state series of a session.
func DeleteSessionState(sessionID string) {
	for _, s := range SessionStates {
		sessionState.DeleteLabelValues(sessionID, s)
	}
}

// RecordSessionStart counts a start attempt; result is "success" or "failure".
func RecordSessionStart(result string) {
	sessionStarts.WithLabelValues(result).Inc()
}

// RecordUnexpectedExit counts a process the watchdog found dead.
func RecordUnexpectedExit(process string) {
	sessionUnexpectedExits.WithLabelValues(process).Inc()
}

// RecordMotionCommand counts an accepted motion command.
func RecordMotionCommand(action, direction string) {
	motionCommands.WithLabelValues(action, direction).Inc()
}

// RecordMotionReset counts a boundary reset of a drag.
func RecordMotionReset(action string) {
	motionResets.WithLabelValues(action).Inc()
}

// MotionWorkerStarted increments the active worker gauge.
func MotionWorkerStarted() {
	motionActive.Inc()
}

// MotionWorkerStopped decrements the active worker gauge.
func MotionWorkerStopped() {
	motionActive.Dec()
}
