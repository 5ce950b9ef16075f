package core

import (
	"context"
	"time"
)

// Ports define interfaces for external dependencies

// ============================================
// BACKEND PORTS (proctoring API)
// ============================================

// IdentityAPI covers authentication and the "who am I" lookup
type IdentityAPI interface {
	Login(ctx context.Context, creds Credentials) (string, error)
	Register(ctx context.Context, reg Registration) error
	Me(ctx context.Context, token string) (*User, error)
}

// MonitoringAPI covers the public, poll-driven read endpoints
type MonitoringAPI interface {
	Alerts(ctx context.Context, q AlertQuery) ([]Alert, error)
	SessionStats(ctx context.Context, sessionID int64) (*SessionStats, error)
	// ActiveExamination returns nil, nil when no examination is running
	ActiveExamination(ctx context.Context) (*Examination, error)
	UserCount(ctx context.Context, role Role) (int, error)
	ExportURL(sessionID int64) string
}

// AdminAPI covers the bearer-protected endpoints
type AdminAPI interface {
	Examinations(ctx context.Context, token string) ([]Examination, error)
	CreateExamination(ctx context.Context, token string, exam NewExamination) (*Examination, error)
	FinalizeExamination(ctx context.Context, token string, examID int64) error
	Users(ctx context.Context, token string, role Role) ([]User, error)
}

type Backend interface {
	IdentityAPI
	MonitoringAPI
	AdminAPI
}

// ============================================
// MEDIA PORT
// ============================================

// MediaService is the local capture service; every call is best-effort
type MediaService interface {
	SetCamera(ctx context.Context, on bool) error
	SetCaptions(ctx context.Context, on bool) error
	Status(ctx context.Context) (*MediaStatus, error)
	StreamURL() string
}

// ============================================
// STORAGE PORT
// ============================================

// TokenStorage persists the bearer token under a fixed key.
// LoadToken returns ErrTokenNotFound when nothing is stored.
type TokenStorage interface {
	LoadToken(ctx context.Context) (string, error)
	SaveToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

// StorageWithStats extends TokenStorage with statistics tracking
type StorageWithStats interface {
	TokenStorage
	Stats() StorageStats
}

// StorageStats tracks token storage activity
type StorageStats struct {
	Loads  int64 `json:"loads"`
	Misses int64 `json:"misses"`
	Saves  int64 `json:"saves"`
	Clears int64 `json:"clears"`
}

// ============================================
// SIDE EFFECT PORTS
// ============================================

// Notifier is fired when a new violation reaches the top of the feed
type Notifier interface {
	Notify(ctx context.Context, alert Alert)
}

// Confirmer gates destructive actions behind an explicit user decision
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// PollObserver receives one call per finished poll tick
type PollObserver interface {
	ObserveTick(view string, outcome TickOutcome, latency time.Duration)
}

type TickOutcome string

const (
	TickSuccess   TickOutcome = "success"
	TickFailure   TickOutcome = "failure"
	TickDiscarded TickOutcome = "discarded"
)

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(ctx context.Context, alert Alert)

func (f NotifierFunc) Notify(ctx context.Context, alert Alert) { f(ctx, alert) }

// ConfirmerFunc adapts a function to Confirmer
type ConfirmerFunc func(ctx context.Context, prompt string) bool

func (f ConfirmerFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// AlwaysConfirm accepts every prompt; meant for non-interactive callers that already asked
var AlwaysConfirm Confirmer = ConfirmerFunc(func(context.Context, string) bool { return true })
