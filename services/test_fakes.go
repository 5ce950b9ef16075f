package services

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/lborres/bantay/core"
)

// FakeBackend is a test-only fake implementing core.Backend.
// Behavior is injected per operation through the *Func fields; unset
// operations return empty results.
type FakeBackend struct {
	LoginFunc        func(ctx context.Context, creds core.Credentials) (string, error)
	RegisterFunc     func(ctx context.Context, reg core.Registration) error
	MeFunc           func(ctx context.Context, token string) (*core.User, error)
	AlertsFunc       func(ctx context.Context, q core.AlertQuery) ([]core.Alert, error)
	SessionStatsFunc func(ctx context.Context, sessionID int64) (*core.SessionStats, error)
	ActiveExamFunc   func(ctx context.Context) (*core.Examination, error)
	UserCountFunc    func(ctx context.Context, role core.Role) (int, error)
	ExamsFunc        func(ctx context.Context, token string) ([]core.Examination, error)
	CreateExamFunc   func(ctx context.Context, token string, exam core.NewExamination) (*core.Examination, error)
	FinalizeFunc     func(ctx context.Context, token string, examID int64) error
	UsersFunc        func(ctx context.Context, token string, role core.Role) ([]core.User, error)

	mu      sync.Mutex
	calls   map[string]int
	queries []core.AlertQuery
	tokens  []string
}

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{calls: make(map[string]int)}
}

func (f *FakeBackend) record(op, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	if token != "" {
		f.tokens = append(f.tokens, token)
	}
}

// Calls returns how many times op was invoked
func (f *FakeBackend) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Queries returns every alert query seen so far
func (f *FakeBackend) Queries() []core.AlertQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.AlertQuery(nil), f.queries...)
}

// Tokens returns every bearer token sent on a token-carrying call
func (f *FakeBackend) Tokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokens...)
}

func (f *FakeBackend) Login(ctx context.Context, creds core.Credentials) (string, error) {
	f.record("Login", "")
	if f.LoginFunc == nil {
		return "", &core.APIError{Status: http.StatusUnauthorized, Detail: "Incorrect username or password"}
	}
	return f.LoginFunc(ctx, creds)
}

func (f *FakeBackend) Register(ctx context.Context, reg core.Registration) error {
	f.record("Register", "")
	if f.RegisterFunc == nil {
		return nil
	}
	return f.RegisterFunc(ctx, reg)
}

func (f *FakeBackend) Me(ctx context.Context, token string) (*core.User, error) {
	f.record("Me", token)
	if f.MeFunc == nil {
		return nil, &core.APIError{Status: http.StatusUnauthorized}
	}
	return f.MeFunc(ctx, token)
}

func (f *FakeBackend) Alerts(ctx context.Context, q core.AlertQuery) ([]core.Alert, error) {
	f.record("Alerts", "")
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if f.AlertsFunc == nil {
		return []core.Alert{}, nil
	}
	return f.AlertsFunc(ctx, q)
}

func (f *FakeBackend) SessionStats(ctx context.Context, sessionID int64) (*core.SessionStats, error) {
	f.record("SessionStats", "")
	if f.SessionStatsFunc == nil {
		return &core.SessionStats{SessionID: sessionID, EventTypeCounts: map[string]int{}}, nil
	}
	return f.SessionStatsFunc(ctx, sessionID)
}

func (f *FakeBackend) ActiveExamination(ctx context.Context) (*core.Examination, error) {
	f.record("ActiveExamination", "")
	if f.ActiveExamFunc == nil {
		return nil, nil
	}
	return f.ActiveExamFunc(ctx)
}

func (f *FakeBackend) UserCount(ctx context.Context, role core.Role) (int, error) {
	f.record("UserCount", "")
	if f.UserCountFunc == nil {
		return 0, nil
	}
	return f.UserCountFunc(ctx, role)
}

func (f *FakeBackend) ExportURL(sessionID int64) string {
	return fmt.Sprintf("http://backend.test/session/%d/export", sessionID)
}

func (f *FakeBackend) Examinations(ctx context.Context, token string) ([]core.Examination, error) {
	f.record("Examinations", token)
	if f.ExamsFunc == nil {
		return []core.Examination{}, nil
	}
	return f.ExamsFunc(ctx, token)
}

func (f *FakeBackend) CreateExamination(ctx context.Context, token string, exam core.NewExamination) (*core.Examination, error) {
	f.record("CreateExamination", token)
	if f.CreateExamFunc == nil {
		return &core.Examination{ID: 1, Title: exam.Title, CourseCode: exam.CourseCode, DurationMinutes: exam.DurationMinutes, IsActive: true}, nil
	}
	return f.CreateExamFunc(ctx, token, exam)
}

func (f *FakeBackend) FinalizeExamination(ctx context.Context, token string, examID int64) error {
	f.record("FinalizeExamination", token)
	if f.FinalizeFunc == nil {
		return nil
	}
	return f.FinalizeFunc(ctx, token, examID)
}

func (f *FakeBackend) Users(ctx context.Context, token string, role core.Role) ([]core.User, error) {
	f.record("Users", token)
	if f.UsersFunc == nil {
		return []core.User{}, nil
	}
	return f.UsersFunc(ctx, token, role)
}

// FakeTokenStorage is a test-only fake implementing core.StorageWithStats
type FakeTokenStorage struct {
	mu      sync.Mutex
	token   string
	stats   core.StorageStats
	saveErr error
	loadErr error
}

func NewFakeTokenStorage(initial string) *FakeTokenStorage {
	return &FakeTokenStorage{token: initial}
}

func (f *FakeTokenStorage) LoadToken(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats.Loads++
	if f.loadErr != nil {
		return "", f.loadErr
	}
	if f.token == "" {
		f.stats.Misses++
		return "", core.ErrTokenNotFound
	}
	return f.token, nil
}

func (f *FakeTokenStorage) SaveToken(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.stats.Saves++
	f.token = token
	return nil
}

func (f *FakeTokenStorage) ClearToken(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats.Clears++
	f.token = ""
	return nil
}

func (f *FakeTokenStorage) Stats() core.StorageStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

// Stored returns the persisted token without counting a load
func (f *FakeTokenStorage) Stored() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

// FakeNotifier records every notification
type FakeNotifier struct {
	mu     sync.Mutex
	alerts []core.Alert
}

func (f *FakeNotifier) Notify(ctx context.Context, alert core.Alert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
}

func (f *FakeNotifier) Notified() []core.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.Alert(nil), f.alerts...)
}

// FakeConfirmer answers every prompt with Answer and records the prompts
type FakeConfirmer struct {
	Answer bool

	mu      sync.Mutex
	prompts []string
}

func (f *FakeConfirmer) Confirm(ctx context.Context, prompt string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.Answer
}

func (f *FakeConfirmer) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

// FakeMedia is a test-only fake implementing core.MediaService
type FakeMedia struct {
	Err     error
	Current *core.MediaStatus

	mu    sync.Mutex
	calls []string
}

func (f *FakeMedia) SetCamera(ctx context.Context, on bool) error {
	return f.call("camera", on)
}

func (f *FakeMedia) SetCaptions(ctx context.Context, on bool) error {
	return f.call("captions", on)
}

func (f *FakeMedia) Status(ctx context.Context) (*core.MediaStatus, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Current, nil
}

func (f *FakeMedia) StreamURL() string {
	return "http://media.test/video_feed"
}

func (f *FakeMedia) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *FakeMedia) call(device string, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	action := "stop"
	if on {
		action = "start"
	}
	f.calls = append(f.calls, device+"/"+action)
	return f.Err
}
