package fiber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/bantay"
	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/services"
)

func proctor() *core.User {
	return &core.User{ID: 1, Username: "proctor1", Role: core.RoleProctor, IsActive: true}
}

// newTestApp wires a dashboard around api with every poll effectively paused
func newTestApp(t *testing.T, api *services.FakeBackend, media core.MediaService) (*fiber.App, *bantay.Bantay) {
	t.Helper()
	app := fiber.New()
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "bantay_poll_ticks_total 0\n")
	})

	b, err := bantay.New(bantay.Config{
		Backend: api,
		Media:   media,
		HTTP:    New(app, WithMetrics(metrics)),
		Intervals: core.PollIntervals{
			Alerts:     time.Hour,
			Feed:       time.Hour,
			Stats:      time.Hour,
			ActiveExam: time.Hour,
			Countdown:  time.Hour,
		},
	})
	if err != nil {
		t.Fatalf("bantay.New failed: %v", err)
	}
	t.Cleanup(b.Stop)
	return app, b
}

// login authenticates the dashboard session through the public endpoint
func login(t *testing.T, app *fiber.App, b *bantay.Bantay, api *services.FakeBackend) {
	t.Helper()
	api.LoginFunc = func(ctx context.Context, creds core.Credentials) (string, error) { return "tok-1", nil }
	api.MeFunc = func(ctx context.Context, token string) (*core.User, error) { return proctor(), nil }

	resp := doRequest(t, app, http.MethodPost, "/api/login", `{"username":"proctor1","password":"pw"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login returned %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	state, err := b.Session.Wait(ctx)
	if err != nil || !state.Authenticated() {
		t.Fatalf("session not authenticated: %+v, %v", state, err)
	}
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string, headers map[string]string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// Requirement: every dashboard endpoint is reachable through the adapter
func TestRegisterRoutes_AllEndpointsBound(t *testing.T) {
	app, _ := newTestApp(t, services.NewFakeBackend(), nil)

	for _, ep := range services.DashboardEndpoints() {
		path := "/api" + strings.NewReplacer(":id", "1", ":device", "camera", ":action", "start").Replace(ep.Path)
		t.Run(ep.Method+" "+ep.Path, func(t *testing.T) {
			resp := doRequest(t, app, ep.Method, path, "", nil)
			if resp.StatusCode == http.StatusNotFound && ep.Metadata.OperationID != services.OpExportReport && ep.Metadata.OperationID != services.OpSessionSummary {
				t.Errorf("Expected %s %s to be routed, got 404", ep.Method, path)
			}
			if resp.StatusCode == http.StatusMethodNotAllowed {
				t.Errorf("Expected %s to be allowed on %s", ep.Method, path)
			}
		})
	}
}

// Requirement: protected endpoints reject requests while the session is not authenticated
func TestRequireSession_RejectsUnauthenticated(t *testing.T) {
	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/alerts"},
		{http.MethodPut, "/api/alerts/filter"},
		{http.MethodGet, "/api/feed"},
		{http.MethodGet, "/api/stats"},
		{http.MethodGet, "/api/exam/active"},
		{http.MethodGet, "/api/summary"},
		{http.MethodGet, "/api/export"},
		{http.MethodPost, "/api/media/camera/stop"},
		{http.MethodGet, "/api/exams"},
		{http.MethodPost, "/api/exams"},
		{http.MethodPost, "/api/exams/3/finalize"},
		{http.MethodGet, "/api/students"},
		{http.MethodPost, "/api/students"},
	}

	for _, test := range tests {
		t.Run(test.method+" "+test.path, func(t *testing.T) {
			// Arrange
			api := services.NewFakeBackend()
			app, _ := newTestApp(t, api, nil)

			// Act
			resp := doRequest(t, app, test.method, test.path, `{}`, map[string]string{HeaderConfirm: "true"})

			// Assert
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("Expected 401, got %d", resp.StatusCode)
			}
			var body core.ErrorResponse
			decode(t, resp, &body)
			if body.Error != core.ErrNotAuthenticated.Error() {
				t.Errorf("Unexpected error body %+v", body)
			}
			if api.Calls("Examinations")+api.Calls("Users")+api.Calls("FinalizeExamination")+api.Calls("SessionStats") != 0 {
				t.Error("Expected no backend call for a rejected request")
			}
		})
	}
}

// Requirement: a failed login answers with the backend detail and leaves the session unauthenticated
func TestHandleLogin_Rejected(t *testing.T) {
	// Arrange
	api := services.NewFakeBackend()
	app, b := newTestApp(t, api, nil)

	// Act
	resp := doRequest(t, app, http.MethodPost, "/api/login", `{"username":"proctor1","password":"bad"}`, nil)

	// Assert
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", resp.StatusCode)
	}
	var result services.FormResult
	decode(t, resp, &result)
	if result.Outcome != services.OutcomeRejected || result.Message != "Incorrect username or password" {
		t.Errorf("Unexpected result %+v", result)
	}
	if b.Session.State().Authenticated() {
		t.Error("Expected session to stay unauthenticated")
	}
}

func TestHandleLogin_InvalidBody(t *testing.T) {
	app, _ := newTestApp(t, services.NewFakeBackend(), nil)

	resp := doRequest(t, app, http.MethodPost, "/api/login", `{"username":`, nil)

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

// Requirement: after login, protected endpoints run with the session token
func TestProtectedRoutes_AfterLogin(t *testing.T) {
	// Arrange
	api := services.NewFakeBackend()
	api.ExamsFunc = func(ctx context.Context, token string) ([]core.Examination, error) {
		return []core.Examination{
			{ID: 1, Title: "Midterm", CourseCode: "CS101"},
			{ID: 2, Title: "Finals", CourseCode: "MA201"},
		}, nil
	}
	app, b := newTestApp(t, api, nil)
	login(t, app, b, api)

	// Act
	resp := doRequest(t, app, http.MethodGet, "/api/exams?search=cs1", "", nil)

	// Assert
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var exams []core.Examination
	decode(t, resp, &exams)
	if len(exams) != 1 || exams[0].ID != 1 {
		t.Errorf("Expected only the CS101 exam, got %+v", exams)
	}
	if tokens := api.Tokens(); len(tokens) == 0 || tokens[len(tokens)-1] != "tok-1" {
		t.Errorf("Expected the session token on the backend call, got %v", tokens)
	}
}

// Requirement: finalizing requires an explicit confirmation
func TestHandleFinalizeExam_Confirmation(t *testing.T) {
	tests := []struct {
		name          string
		confirm       string
		wantStatus    int
		wantFinalized int
	}{
		{name: "without confirmation", confirm: "", wantStatus: http.StatusPreconditionRequired, wantFinalized: 0},
		{name: "declined", confirm: "false", wantStatus: http.StatusPreconditionRequired, wantFinalized: 0},
		{name: "confirmed", confirm: "true", wantStatus: http.StatusOK, wantFinalized: 1},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			api := services.NewFakeBackend()
			app, b := newTestApp(t, api, nil)
			login(t, app, b, api)
			headers := map[string]string{}
			if test.confirm != "" {
				headers[HeaderConfirm] = test.confirm
			}

			// Act
			resp := doRequest(t, app, http.MethodPost, "/api/exams/7/finalize", "", headers)

			// Assert
			if resp.StatusCode != test.wantStatus {
				t.Errorf("Expected %d, got %d", test.wantStatus, resp.StatusCode)
			}
			if got := api.Calls("FinalizeExamination"); got != test.wantFinalized {
				t.Errorf("Expected %d finalize calls, got %d", test.wantFinalized, got)
			}
		})
	}
}

func TestHandleFinalizeExam_InvalidID(t *testing.T) {
	api := services.NewFakeBackend()
	app, b := newTestApp(t, api, nil)
	login(t, app, b, api)

	resp := doRequest(t, app, http.MethodPost, "/api/exams/abc/finalize", "", map[string]string{HeaderConfirm: "true"})

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

// Requirement: an invalid filter is rejected and the current one kept
func TestHandleSetAlertFilter(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantSource core.SourceFilter
	}{
		{name: "valid source change", body: `{"source":"audio"}`, wantStatus: http.StatusOK, wantSource: core.SourceOnlyAudio},
		{name: "confidence out of range", body: `{"confidence":2}`, wantStatus: http.StatusBadRequest, wantSource: core.SourceAll},
		{name: "unknown source", body: `{"source":"smell"}`, wantStatus: http.StatusBadRequest, wantSource: core.SourceAll},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			api := services.NewFakeBackend()
			app, b := newTestApp(t, api, nil)
			login(t, app, b, api)

			resp := doRequest(t, app, http.MethodPut, "/api/alerts/filter", test.body, nil)

			if resp.StatusCode != test.wantStatus {
				t.Errorf("Expected %d, got %d", test.wantStatus, resp.StatusCode)
			}
			if got := b.Alerts.Filter().Source; got != test.wantSource {
				t.Errorf("Expected source %q, got %q", test.wantSource, got)
			}
		})
	}
}

func TestHandleSessionStats_SelectsSession(t *testing.T) {
	api := services.NewFakeBackend()
	app, b := newTestApp(t, api, nil)
	login(t, app, b, api)

	resp := doRequest(t, app, http.MethodGet, "/api/stats/session?session_id=5", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if b.SessionStats.SessionID() != 5 {
		t.Errorf("Expected session 5, got %d", b.SessionStats.SessionID())
	}

	resp = doRequest(t, app, http.MethodGet, "/api/stats/session?session_id=-1", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for a negative id, got %d", resp.StatusCode)
	}
}

// Requirement: the export redirects to the report of the active examination
func TestHandleExportReport(t *testing.T) {
	tests := []struct {
		name         string
		exam         *core.Examination
		wantStatus   int
		wantLocation string
	}{
		{name: "no active exam", exam: nil, wantStatus: http.StatusNotFound},
		{name: "active exam", exam: &core.Examination{ID: 9, IsActive: true}, wantStatus: http.StatusFound, wantLocation: "http://backend.test/session/9/export"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			api := services.NewFakeBackend()
			api.ActiveExamFunc = func(ctx context.Context) (*core.Examination, error) { return test.exam, nil }
			app, b := newTestApp(t, api, nil)
			login(t, app, b, api)

			resp := doRequest(t, app, http.MethodGet, "/api/export", "", nil)

			if resp.StatusCode != test.wantStatus {
				t.Errorf("Expected %d, got %d", test.wantStatus, resp.StatusCode)
			}
			if got := resp.Header.Get("Location"); got != test.wantLocation {
				t.Errorf("Expected location %q, got %q", test.wantLocation, got)
			}
		})
	}
}

func TestHandleToggleMedia(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		mediaErr   error
		wantStatus int
		wantCalls  []string
	}{
		{name: "camera stop", path: "/api/media/camera/stop", wantStatus: http.StatusOK, wantCalls: []string{"camera/stop"}},
		{name: "captions start", path: "/api/media/captions/start", wantStatus: http.StatusOK, wantCalls: []string{"captions/start"}},
		{name: "service down", path: "/api/media/camera/start", mediaErr: errors.New("refused"), wantStatus: http.StatusBadGateway, wantCalls: []string{"camera/start"}},
		{name: "unknown device", path: "/api/media/mic/start", wantStatus: http.StatusBadRequest},
		{name: "unknown action", path: "/api/media/camera/pause", wantStatus: http.StatusBadRequest},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			media := &services.FakeMedia{Err: test.mediaErr}
			api := services.NewFakeBackend()
			app, b := newTestApp(t, api, media)
			login(t, app, b, api)

			resp := doRequest(t, app, http.MethodPost, test.path, "", nil)

			if resp.StatusCode != test.wantStatus {
				t.Errorf("Expected %d, got %d", test.wantStatus, resp.StatusCode)
			}
			if got := media.Calls(); fmt.Sprint(got) != fmt.Sprint(test.wantCalls) {
				t.Errorf("Expected calls %v, got %v", test.wantCalls, got)
			}
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	app, _ := newTestApp(t, services.NewFakeBackend(), nil)

	resp := doRequest(t, app, http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 from /health, got %d", resp.StatusCode)
	}

	resp = doRequest(t, app, http.MethodGet, "/metrics", "", nil)
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "bantay_poll_ticks_total") {
		t.Errorf("Unexpected /metrics answer %d %q", resp.StatusCode, body)
	}
}

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c fiber.Ctx) error { return c.SendStatus(http.StatusNoContent) })

	resp := doRequest(t, app, http.MethodGet, "/", "", nil)
	if resp.Header.Get(fiber.HeaderXRequestID) == "" {
		t.Error("Expected a generated request id")
	}

	resp = doRequest(t, app, http.MethodGet, "/", "", map[string]string{fiber.HeaderXRequestID: "req-42"})
	if got := resp.Header.Get(fiber.HeaderXRequestID); got != "req-42" {
		t.Errorf("Expected the caller's request id, got %q", got)
	}
}

// Requirement: mapErrorToStatus maps service errors to correct HTTP status codes
func TestMapErrorToStatus_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "nil is 200", err: nil, wantStatus: http.StatusOK},
		{name: "backend 401", err: fmt.Errorf("GET /x: %w", &core.APIError{Status: 401}), wantStatus: http.StatusUnauthorized},
		{name: "no session", err: core.ErrNotAuthenticated, wantStatus: http.StatusUnauthorized},
		{name: "validation", err: core.ErrTitleRequired, wantStatus: http.StatusBadRequest},
		{name: "invalid role", err: fmt.Errorf("%w: got \"root\"", core.ErrInvalidRole), wantStatus: http.StatusBadRequest},
		{name: "invalid filter", err: fmt.Errorf("%w: got 2", core.ErrInvalidConfidence), wantStatus: http.StatusBadRequest},
		{name: "no active exam", err: core.ErrNoActiveExamination, wantStatus: http.StatusNotFound},
		{name: "declined", err: core.ErrConfirmationDeclined, wantStatus: http.StatusPreconditionRequired},
		{name: "transport", err: errors.Join(core.ErrTransport, errors.New("refused")), wantStatus: http.StatusBadGateway},
		{name: "malformed", err: core.ErrMalformedResponse, wantStatus: http.StatusBadGateway},
		{name: "backend 400 passes through", err: &core.APIError{Status: 400, Detail: "Username already registered"}, wantStatus: http.StatusBadRequest},
		{name: "backend 500", err: &core.APIError{Status: 500}, wantStatus: http.StatusInternalServerError},
		{name: "unknown", err: errors.New("unknown error"), wantStatus: http.StatusInternalServerError},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			// Act
			status := mapErrorToStatus(test.err)

			// Assert
			if status != test.wantStatus {
				t.Errorf("mapErrorToStatus should map error to %d; got %d", test.wantStatus, status)
			}
		})
	}
}
