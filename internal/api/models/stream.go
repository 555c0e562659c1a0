package models

// Start models
type StartStreamData struct {
	AssetID   int64  `json:"asset_id" minimum:"1" example:"42" doc:"Asset to render"`
	ModelPath string `json:"model_path" minLength:"1" example:"static/uploads/7/model.msgpack" doc:"Web path of the asset's snapshot file, under static/"`
}

type StartStreamRequest struct {
	Session string `query:"session" maxLength:"64" pattern:"^[A-Za-z0-9_-]*$" example:"default" doc:"Session id, defaults to the default session"`
	Body    StartStreamData
}

type StartStreamResult struct {
	Endpoint string `json:"endpoint" example:"rtsp://127.0.0.1:8555/live" doc:"Where the encoder publishes the stream"`
	AssetID  int64  `json:"asset_id" example:"42" doc:"Asset being rendered"`
	RunID    string `json:"run_id" example:"6f1c1c4e-9b7d-4d8e-a7e5-3d8b0f8f2a11" doc:"Identifier of this run"`
}

type StartStreamResponse struct {
	Body StartStreamResult
}

// Stop models
type StopStreamRequest struct {
	Session string `query:"session" maxLength:"64" pattern:"^[A-Za-z0-9_-]*$" example:"default" doc:"Session id, defaults to the default session"`
}

// Control models
type ControlData struct {
	Action    string `json:"action" enum:"rotate,pan,zoom" example:"rotate" doc:"Camera operation"`
	Direction string `json:"direction,omitempty" enum:"up,down,left,right,clockwise,counter_clockwise,in,out" example:"left" doc:"Direction, required when mode is start"`
	Mode      string `json:"mode" enum:"start,stop" example:"start" doc:"Start or stop continuous motion"`
}

type ControlRequest struct {
	Session string `query:"session" maxLength:"64" pattern:"^[A-Za-z0-9_-]*$" example:"default" doc:"Session id, defaults to the default session"`
	Body    ControlData
}

// Status models
type StatusData struct {
	IsActive       bool   `json:"is_active" example:"true" doc:"Whether the session is running"`
	State          string `json:"state" example:"running" doc:"idle, starting, running or stopping"`
	RTSPURL        string `json:"rtsp_url" example:"rtsp://192.168.1.20:8555/live" doc:"Stream address as seen from the caller"`
	CurrentAssetID *int64 `json:"current_asset_id" example:"42" doc:"Asset being rendered, null when idle"`
	RunID          string `json:"run_id,omitempty" doc:"Identifier of the current run"`
	MotionActive   bool   `json:"motion_active" example:"false" doc:"Whether a motion command is in progress"`
	LastError      string `json:"last_error,omitempty" example:"UNEXPECTED_EXIT: renderer exited: exit code 1" doc:"Why the last run ended, if it failed"`
}

type StatusResponse struct {
	Body StatusData
}

type SessionListData struct {
	Sessions []SessionSummary `json:"sessions" doc:"Known sessions"`
}

type SessionSummary struct {
	ID       string `json:"id" example:"default" doc:"Session id"`
	State    string `json:"state" example:"running" doc:"Session state"`
	Endpoint string `json:"endpoint" example:"rtsp://127.0.0.1:8555/live" doc:"Publish address"`
}

type SessionListResponse struct {
	Body SessionListData
}

// WebRTC models
type WebRTCOfferRequest struct {
	Stream  string `query:"stream" required:"true" example:"live" doc:"Relay path to watch"`
	RawBody []byte `contentType:"application/sdp" doc:"SDP offer from the browser"`
}

type WebRTCAnswerResponse struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type LiveStreamsResponse struct {
	Body struct {
		Streams []string `json:"streams" doc:"Relay paths with a publishing encoder"`
	}
}
