package api

import (
	"context"
	"maps"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/viewstream/internal/events"
	"github.com/smazurov/viewstream/internal/metrics/exporters"
)

// ConnectedEvent is the first message on every SSE connection.
type ConnectedEvent struct {
	Message string `json:"message" example:"SSE connection established"`
}

// EventsRequest optionally narrows the stream to one session.
type EventsRequest struct {
	Session string `query:"session" maxLength:"64" pattern:"^[A-Za-z0-9_-]*$" doc:"Only events of this session; empty for all"`
}

func (s *Server) registerSSERoutes() {
	eventTypes := map[string]any{
		"connected":             ConnectedEvent{},
		"session-state-changed": events.SessionStateChangedEvent{},
		"session-crashed":       events.SessionCrashedEvent{},
		"motion-command":        events.MotionCommandEvent{},
		"stream-producer":       events.StreamProducerEvent{},
	}
	maps.Copy(eventTypes, exporters.GetEventTypes())

	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Session state changes, crashes, motion commands, relay producers and encoder metrics",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, eventTypes, func(ctx context.Context, input *EventsRequest, send sse.Sender) {
		stream := s.eventBus.Stream(input.Session, 32)
		defer func() {
			stream.Close()
			if n := stream.Dropped(); n > 0 {
				s.logger.Warn("SSE client too slow, events dropped", "dropped", n, "session", input.Session)
			}
		}()

		if err := send.Data(ConnectedEvent{Message: "SSE connection established"}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-stream.C:
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}
