package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/viewstream/internal/ffmpeg"
)

// EncoderData lists the H.264 encoders the local ffmpeg build offers.
type EncoderData struct {
	Encoders    []ffmpeg.Encoder `json:"encoders" doc:"Available H.264 video encoders"`
	Recommended string           `json:"recommended" example:"h264_nvenc" doc:"First available encoder in preference order"`
}

// EncodersResponse wraps EncoderData.
type EncodersResponse struct {
	Body EncoderData
}

func (s *Server) registerEncoderRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-encoders",
		Method:      http.MethodGet,
		Path:        "/api/encoders",
		Summary:     "List encoders",
		Description: "H.264 encoders reported by the configured ffmpeg binary",
		Tags:        []string{"system"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(ctx context.Context, _ *struct{}) (*EncodersResponse, error) {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		all, err := ffmpeg.ListEncoders(ctx, s.options.EncoderBinary)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list encoders", err)
		}

		resp := &EncodersResponse{}
		resp.Body.Encoders = []ffmpeg.Encoder{}
		for _, e := range all {
			if strings.Contains(e.Name, "264") {
				resp.Body.Encoders = append(resp.Body.Encoders, e)
			}
		}
		resp.Body.Recommended = ffmpeg.SelectEncoder(resp.Body.Encoders, nil)
		return resp, nil
	})
}
