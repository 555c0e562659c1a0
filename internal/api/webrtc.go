package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/viewstream/internal/api/models"
	"github.com/smazurov/viewstream/internal/streaming"
)

func (s *Server) registerWebRTCRoutes() {
	if s.options.Relay == nil || s.options.Viewers == nil {
		return
	}
	hub, viewers := s.options.Relay, s.options.Viewers

	huma.Register(s.api, huma.Operation{
		OperationID: "webrtc-offer",
		Method:      http.MethodPost,
		Path:        "/api/webrtc",
		Summary:     "WebRTC signaling",
		Description: "Exchange an SDP offer for an answer to watch a relay stream in the browser",
		Tags:        []string{"streaming"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404},
	}, func(_ context.Context, input *models.WebRTCOfferRequest) (*models.WebRTCAnswerResponse, error) {
		answer, err := viewers.Answer(input.Stream, string(input.RawBody))
		if errors.Is(err, streaming.ErrStreamNotFound) {
			return nil, huma.Error404NotFound("stream not found", err)
		}
		if err != nil {
			return nil, huma.Error400BadRequest("WebRTC negotiation failed", err)
		}
		return &models.WebRTCAnswerResponse{
			ContentType: "application/sdp",
			Body:        []byte(answer),
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-live-streams",
		Method:      http.MethodGet,
		Path:        "/api/streams/live",
		Summary:     "List live streams",
		Description: "Relay paths that currently have a publishing encoder",
		Tags:        []string{"streaming"},
	}, func(_ context.Context, _ *struct{}) (*models.LiveStreamsResponse, error) {
		resp := &models.LiveStreamsResponse{}
		resp.Body.Streams = hub.ListStreams()
		return resp, nil
	})
}
