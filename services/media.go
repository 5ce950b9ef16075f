package services

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/lborres/bantay/core"
)

// MediaControl toggles the local capture service. Every call is
// best-effort: failures are logged and the local flags stay as they were.
type MediaControl struct {
	svc core.MediaService
	log *zap.Logger

	mu     sync.Mutex
	status core.MediaStatus
}

func NewMediaControl(svc core.MediaService, log *zap.Logger) *MediaControl {
	if log == nil {
		log = zap.NewNop()
	}
	return &MediaControl{
		svc:    svc,
		log:    log,
		status: core.MediaStatus{CameraActive: true, CaptionsActive: true},
	}
}

// Refresh reads the service state into the local flags
func (m *MediaControl) Refresh(ctx context.Context) core.MediaStatus {
	if m.svc == nil {
		return m.Status()
	}
	st, err := m.svc.Status(ctx)
	if err == nil && st == nil {
		err = core.ErrMalformedResponse
	}
	if err != nil {
		m.log.Warn("failed to check media status", zap.Error(err))
		return m.Status()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = *st
	return m.status
}

// SetCamera reports whether the service accepted the change
func (m *MediaControl) SetCamera(ctx context.Context, on bool) bool {
	return m.toggle("camera", on, func(svc core.MediaService) error {
		return svc.SetCamera(ctx, on)
	}, func(s *core.MediaStatus) { s.CameraActive = on })
}

func (m *MediaControl) SetCaptions(ctx context.Context, on bool) bool {
	return m.toggle("captions", on, func(svc core.MediaService) error {
		return svc.SetCaptions(ctx, on)
	}, func(s *core.MediaStatus) { s.CaptionsActive = on })
}

func (m *MediaControl) Status() core.MediaStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *MediaControl) StreamURL() string {
	if m.svc == nil {
		return ""
	}
	return m.svc.StreamURL()
}

func (m *MediaControl) toggle(device string, on bool, call func(core.MediaService) error, update func(*core.MediaStatus)) bool {
	if m.svc == nil {
		return false
	}
	if err := call(m.svc); err != nil {
		m.log.Warn("failed to toggle media device", zap.String("device", device), zap.Bool("on", on), zap.Error(err))
		return false
	}
	m.mu.Lock()
	update(&m.status)
	m.mu.Unlock()
	return true
}
