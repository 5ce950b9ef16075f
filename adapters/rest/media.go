package rest

import (
	"context"
	"net/http"

	"github.com/lborres/bantay/core"
)

// MediaClient implements core.MediaService over the local capture service
type MediaClient struct {
	r requester
}

var _ core.MediaService = (*MediaClient)(nil)

func NewMediaClient(cfg Config) (*MediaClient, error) {
	r, err := newRequester(cfg, DefaultMediaBaseURL)
	if err != nil {
		return nil, err
	}
	return &MediaClient{r: r}, nil
}

func (m *MediaClient) SetCamera(ctx context.Context, on bool) error {
	return m.r.call(ctx, request{method: http.MethodPost, path: "/camera/" + action(on)}, nil)
}

func (m *MediaClient) SetCaptions(ctx context.Context, on bool) error {
	return m.r.call(ctx, request{method: http.MethodPost, path: "/captions/" + action(on)}, nil)
}

func (m *MediaClient) Status(ctx context.Context) (*core.MediaStatus, error) {
	var dto mediaStatusDTO
	if err := m.r.call(ctx, request{method: http.MethodGet, path: "/status"}, &dto); err != nil {
		return nil, err
	}
	st := dto.toCore()
	return &st, nil
}

// StreamURL is the MJPEG endpoint of the live camera feed
func (m *MediaClient) StreamURL() string {
	return m.r.url("/video_feed", nil)
}

func action(on bool) string {
	if on {
		return "start"
	}
	return "stop"
}
