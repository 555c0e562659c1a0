package process

// State represents the lifecycle state of a supervised process (and of the
// session built on top of two of them).
type State string

// Process states.
const (
	StateIdle     State = "idle"     // Not running
	StateStarting State = "starting" // Launched, inside the grace window
	StateRunning  State = "running"  // Active
	StateStopping State = "stopping" // Stop signal sent
	StateError    State = "error"    // Failed to start or exited on its own
)
