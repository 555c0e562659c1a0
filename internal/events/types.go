package events

// Event type constants for kelindar/event.
const (
	TypeSessionStateChanged uint32 = iota + 1
	TypeSessionCrashed
	TypeMotionCommand
	TypeEncoderMetrics
	TypeStreamProducer
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// SessionStateChangedEvent is published on every session state transition.
type SessionStateChangedEvent struct {
	SessionID string `json:"session_id" example:"default" doc:"Session identifier"`
	State     string `json:"state" example:"running" doc:"New session state"`
	AssetID   string `json:"asset_id,omitempty" example:"42" doc:"Asset being rendered"`
	Endpoint  string `json:"endpoint,omitempty" example:"rtsp://127.0.0.1:8554/viewport" doc:"Stream endpoint while running"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionStateChangedEvent.
func (e SessionStateChangedEvent) Type() uint32 { return TypeSessionStateChanged }

// SessionCrashedEvent is published when the watchdog finds a supervised
// process dead and tears the session down.
type SessionCrashedEvent struct {
	SessionID string `json:"session_id" example:"default" doc:"Session identifier"`
	Process   string `json:"process" example:"renderer" doc:"Process that exited"`
	ExitCode  int    `json:"exit_code" example:"1" doc:"Exit code of the process"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionCrashedEvent.
func (e SessionCrashedEvent) Type() uint32 { return TypeSessionCrashed }

// MotionCommandEvent mirrors an accepted control command.
type MotionCommandEvent struct {
	SessionID string `json:"session_id" example:"default" doc:"Session identifier"`
	Action    string `json:"action" example:"rotate" doc:"rotate, pan or zoom"`
	Direction string `json:"direction" example:"left" doc:"Motion direction"`
	Mode      string `json:"mode" example:"start" doc:"start or stop"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for MotionCommandEvent.
func (e MotionCommandEvent) Type() uint32 { return TypeMotionCommand }

// EncoderMetricsEvent carries the latest encoder progress for a session.
type EncoderMetricsEvent struct {
	EventType       string `json:"type"`
	SessionID       string `json:"session_id"`
	FPS             string `json:"fps"`
	Speed           string `json:"speed"`
	DroppedFrames   string `json:"dropped_frames"`
	DuplicateFrames string `json:"duplicate_frames"`
}

// Type returns the event type identifier for EncoderMetricsEvent.
func (e EncoderMetricsEvent) Type() uint32 { return TypeEncoderMetrics }

// StreamProducerEvent reports an encoder connecting to or leaving the relay.
type StreamProducerEvent struct {
	Stream    string `json:"stream" example:"live" doc:"Relay path the encoder publishes to"`
	Action    string `json:"action" example:"connected" doc:"connected or disconnected"`
	Codec     string `json:"codec,omitempty" example:"H264" doc:"Video codec announced by the encoder"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamProducerEvent.
func (e StreamProducerEvent) Type() uint32 { return TypeStreamProducer }
