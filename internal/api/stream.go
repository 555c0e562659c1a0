package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/viewstream/internal/api/models"
	"github.com/smazurov/viewstream/internal/motion"
	"github.com/smazurov/viewstream/internal/process"
	"github.com/smazurov/viewstream/internal/scene"
	"github.com/smazurov/viewstream/internal/session"
)

// StatusRequest selects a session and captures the Host the caller used,
// which the advertised RTSP address is built from.
type StatusRequest struct {
	Session string `query:"session" maxLength:"64" pattern:"^[A-Za-z0-9_-]*$" example:"default" doc:"Session id, defaults to the default session"`

	host string
}

// Resolve implements huma.Resolver.
func (r *StatusRequest) Resolve(ctx huma.Context) []error {
	r.host = ctx.Host()
	return nil
}

func (s *Server) registerStreamRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "start-stream",
		Method:      http.MethodPost,
		Path:        "/api/stream/start",
		Summary:     "Start stream",
		Description: "Launch the renderer on an asset and start encoding its window. A running session is replaced.",
		Tags:        []string{"stream"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404, 409, 422, 500},
	}, func(ctx context.Context, input *models.StartStreamRequest) (*models.StartStreamResponse, error) {
		paths, err := scene.Resolve(s.options.StaticRoot, input.Body.ModelPath)
		if err != nil {
			return nil, mapSceneError(err)
		}
		if _, err := scene.Preflight(paths.Snapshot); err != nil {
			return nil, mapSceneError(err)
		}

		sess, err := s.sessions.GetOrCreate(input.Session)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid session", err)
		}

		res, err := sess.Start(ctx, session.StartRequest{
			AssetID:      strconv.FormatInt(input.Body.AssetID, 10),
			ScenePath:    paths.Scene,
			SnapshotPath: paths.Snapshot,
		})
		if err != nil {
			return nil, mapSessionError(err)
		}

		return &models.StartStreamResponse{
			Body: models.StartStreamResult{
				Endpoint: res.Endpoint,
				AssetID:  input.Body.AssetID,
				RunID:    res.RunID,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-stream",
		Method:      http.MethodPost,
		Path:        "/api/stream/stop",
		Summary:     "Stop stream",
		Description: "Stop the renderer and encoder. Stopping an idle session succeeds.",
		Tags:        []string{"stream"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(_ context.Context, input *models.StopStreamRequest) (*models.AckResponse, error) {
		sess, ok := s.sessions.Get(input.Session)
		if ok {
			if err := sess.Stop(); err != nil {
				return nil, mapSessionError(err)
			}
		}
		return &models.AckResponse{Body: models.AckData{Status: "ok", Message: "stream stopped"}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "control-stream",
		Method:      http.MethodPost,
		Path:        "/api/stream/control",
		Summary:     "Camera control",
		Description: "Start or stop continuous rotate, pan or zoom on the running session.",
		Tags:        []string{"stream"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 422},
	}, func(_ context.Context, input *models.ControlRequest) (*models.AckResponse, error) {
		sess, ok := s.sessions.Get(input.Session)
		if !ok {
			return nil, mapSessionError(session.ErrSessionNotActive)
		}
		err := sess.Control(motion.Command{
			Action:    motion.Action(input.Body.Action),
			Direction: motion.Direction(input.Body.Direction),
			Mode:      motion.Mode(input.Body.Mode),
		})
		if err != nil {
			return nil, mapSessionError(err)
		}
		return &models.AckResponse{Body: models.AckData{Status: "ok"}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stream-status",
		Method:      http.MethodGet,
		Path:        "/api/stream/status",
		Summary:     "Stream status",
		Description: "Current session state, the RTSP address to watch and why the last run ended.",
		Tags:        []string{"stream"},
		Errors:      []int{400},
	}, func(_ context.Context, input *StatusRequest) (*models.StatusResponse, error) {
		sess, err := s.sessions.GetOrCreate(input.Session)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid session", err)
		}
		st := sess.Status()

		data := models.StatusData{
			IsActive:     st.State == process.StateRunning,
			State:        string(st.State),
			RTSPURL:      advertisedURL(sess.PublishURL(), input.host, s.options.RTSPPort),
			RunID:        st.RunID,
			MotionActive: st.MotionActive,
		}
		if id, err := strconv.ParseInt(st.AssetID, 10, 64); err == nil {
			data.CurrentAssetID = &id
		}
		if st.LastError != nil {
			data.LastError = st.LastError.Error()
		}
		return &models.StatusResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-sessions",
		Method:      http.MethodGet,
		Path:        "/api/sessions",
		Summary:     "List sessions",
		Description: "Every session created since startup.",
		Tags:        []string{"stream"},
	}, func(_ context.Context, _ *struct{}) (*models.SessionListResponse, error) {
		resp := &models.SessionListResponse{}
		resp.Body.Sessions = []models.SessionSummary{}
		for _, sess := range s.sessions.List() {
			resp.Body.Sessions = append(resp.Body.Sessions, models.SessionSummary{
				ID:       sess.ID(),
				State:    string(sess.State()),
				Endpoint: sess.PublishURL(),
			})
		}
		return resp, nil
	})
}

// advertisedURL rewrites the local publish URL so a remote caller can reach
// it: the host becomes the one the caller used for the API and the port the
// relay's public port.
func advertisedURL(publish, requestHost string, port int) string {
	u, err := url.Parse(publish)
	if err != nil {
		return publish
	}
	host := requestHost
	if h, _, err := net.SplitHostPort(requestHost); err == nil {
		host = h
	}
	if host == "" {
		host = u.Hostname()
	}
	if port <= 0 {
		if p := u.Port(); p != "" {
			port, _ = strconv.Atoi(p)
		}
	}
	if port > 0 {
		u.Host = net.JoinHostPort(host, strconv.Itoa(port))
	} else {
		u.Host = host
	}
	return u.String()
}

func mapSceneError(err error) error {
	switch {
	case errors.Is(err, scene.ErrInvalidModelPath):
		return huma.Error400BadRequest(err.Error(), err)
	case errors.Is(err, scene.ErrSnapshotNotFound), errors.Is(err, scene.ErrSceneNotFound):
		return huma.Error404NotFound(err.Error(), err)
	case errors.Is(err, scene.ErrInvalidSnapshot):
		return huma.Error422UnprocessableEntity(err.Error(), err)
	default:
		return huma.Error500InternalServerError("failed to resolve asset", err)
	}
}

// mapSessionError maps session and motion errors to HTTP errors.
func mapSessionError(err error) error {
	if errors.Is(err, context.Canceled) {
		return huma.Error409Conflict("start superseded by a newer request", err)
	}
	var sessErr *session.Error
	if errors.As(err, &sessErr) {
		if sessErr.Code == session.ErrCodeSessionNotActive {
			return huma.Error400BadRequest(sessErr.Message, err)
		}
		return huma.Error500InternalServerError(sessErr.Message, err)
	}
	if errors.Is(err, motion.ErrInvalidAction) || errors.Is(err, motion.ErrInvalidDirection) || errors.Is(err, motion.ErrInvalidMode) {
		return huma.Error422UnprocessableEntity(err.Error(), err)
	}
	return huma.Error500InternalServerError("internal server error", err)
}
