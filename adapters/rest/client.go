package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lborres/bantay/core"
)

const (
	DefaultBaseURL      = "http://localhost:8000"
	DefaultMediaBaseURL = "http://localhost:5001"
	DefaultTimeout      = 10 * time.Second

	maxBodyBytes = 4 << 20
)

type Config struct {
	BaseURL    string
	Timeout    time.Duration // ignored when HTTPClient is set
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// requester performs the HTTP exchanges shared by the backend and media clients
type requester struct {
	base *url.URL
	http *http.Client
	log  *zap.Logger
}

func newRequester(cfg Config, fallbackURL string) (requester, error) {
	raw := cfg.BaseURL
	if raw == "" {
		raw = fallbackURL
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return requester{}, fmt.Errorf("invalid base url %q: %w", raw, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return requester{}, fmt.Errorf("invalid base url %q: scheme must be http or https", raw)
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return requester{base: base, http: client, log: log}, nil
}

func (r requester) url(path string, query url.Values) string {
	u := *r.base
	u.Path = u.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

type request struct {
	method      string
	path        string
	query       url.Values
	token       string
	body        io.Reader
	contentType string
}

// send performs req and returns the raw response body of a 2xx answer.
// Transport failures wrap core.ErrTransport; other statuses are *core.APIError.
func (r requester) send(ctx context.Context, req request) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.method, r.url(req.path, req.query), req.body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}

	started := time.Now()
	resp, err := r.http.Do(httpReq)
	if err != nil {
		r.log.Debug("request failed",
			zap.String("method", req.method),
			zap.String("path", req.path),
			zap.String("request_id", requestID),
			zap.Error(err))
		return nil, fmt.Errorf("%s %s: %w", req.method, req.path, errors.Join(core.ErrTransport, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.method, req.path, errors.Join(core.ErrTransport, err))
	}

	r.log.Debug("request completed",
		zap.String("method", req.method),
		zap.String("path", req.path),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(started)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s %s: %w", req.method, req.path, &core.APIError{Status: resp.StatusCode, Detail: parseDetail(body)})
	}
	return body, nil
}

// call sends req and decodes a JSON answer into out (which may be nil)
func (r requester) call(ctx context.Context, req request, out any) error {
	body, err := r.send(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s %s: %w: %v", req.method, req.path, core.ErrMalformedResponse, err)
	}
	return nil
}

func jsonBody(v any) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// Client implements core.Backend over the proctoring REST API
type Client struct {
	r requester
}

// Ensure Client implements Backend
var _ core.Backend = (*Client)(nil)

func New(cfg Config) (*Client, error) {
	r, err := newRequester(cfg, DefaultBaseURL)
	if err != nil {
		return nil, err
	}
	return &Client{r: r}, nil
}

// ============================================
// IDENTITY
// ============================================

func (c *Client) Login(ctx context.Context, creds core.Credentials) (string, error) {
	form := url.Values{}
	form.Set("username", creds.Username)
	form.Set("password", creds.Password)

	var tok tokenDTO
	err := c.r.call(ctx, request{
		method:      http.MethodPost,
		path:        "/auth/login",
		body:        strings.NewReader(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	}, &tok)
	if err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("POST /auth/login: %w: missing access_token", core.ErrMalformedResponse)
	}
	return tok.AccessToken, nil
}

func (c *Client) Register(ctx context.Context, reg core.Registration) error {
	body, err := jsonBody(registerDTO{Username: reg.Username, Email: reg.Email, Password: reg.Password, Role: string(reg.Role)})
	if err != nil {
		return err
	}
	return c.r.call(ctx, request{
		method:      http.MethodPost,
		path:        "/auth/register",
		body:        body,
		contentType: "application/json",
	}, nil)
}

func (c *Client) Me(ctx context.Context, token string) (*core.User, error) {
	var dto userDTO
	if err := c.r.call(ctx, request{method: http.MethodGet, path: "/users/me", token: token}, &dto); err != nil {
		return nil, err
	}
	user := dto.toCore()
	return &user, nil
}

// ============================================
// MONITORING
// ============================================

func (c *Client) Alerts(ctx context.Context, q core.AlertQuery) ([]core.Alert, error) {
	query := url.Values{}
	if q.Confidence != nil {
		query.Set("confidence", strconv.FormatFloat(*q.Confidence, 'f', -1, 64))
	}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.SessionID != nil {
		query.Set("session_id", strconv.FormatInt(*q.SessionID, 10))
	}

	var dtos []alertDTO
	if err := c.r.call(ctx, request{method: http.MethodGet, path: "/alerts", query: query}, &dtos); err != nil {
		return nil, err
	}
	alerts := make([]core.Alert, 0, len(dtos))
	for _, d := range dtos {
		alerts = append(alerts, d.toCore())
	}
	return alerts, nil
}

func (c *Client) SessionStats(ctx context.Context, sessionID int64) (*core.SessionStats, error) {
	var dto statsDTO
	path := fmt.Sprintf("/session/%d/stats", sessionID)
	if err := c.r.call(ctx, request{method: http.MethodGet, path: path}, &dto); err != nil {
		return nil, err
	}
	stats := dto.toCore(sessionID)
	return &stats, nil
}

func (c *Client) ActiveExamination(ctx context.Context) (*core.Examination, error) {
	var dto *examDTO
	if err := c.r.call(ctx, request{method: http.MethodGet, path: "/examinations/active"}, &dto); err != nil {
		return nil, err
	}
	if dto == nil {
		return nil, nil
	}
	exam := dto.toCore()
	return &exam, nil
}

func (c *Client) UserCount(ctx context.Context, role core.Role) (int, error) {
	var dto countDTO
	query := url.Values{"role": {string(role)}}
	if err := c.r.call(ctx, request{method: http.MethodGet, path: "/users/count", query: query}, &dto); err != nil {
		return 0, err
	}
	return dto.Count, nil
}

func (c *Client) ExportURL(sessionID int64) string {
	return c.r.url(fmt.Sprintf("/session/%d/export", sessionID), nil)
}

// Export streams the report of a session into w and returns the file name
// the backend suggested, if any
func (c *Client) Export(ctx context.Context, sessionID int64, w io.Writer) (string, error) {
	path := fmt.Sprintf("/session/%d/export", sessionID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.r.url(path, nil), nil)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.r.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", path, errors.Join(core.ErrTransport, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		return "", fmt.Errorf("GET %s: %w", path, &core.APIError{Status: resp.StatusCode, Detail: parseDetail(body)})
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", fmt.Errorf("GET %s: %w", path, errors.Join(core.ErrTransport, err))
	}

	filename := fmt.Sprintf("session_%d_report.csv", sessionID)
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		filename = params["filename"]
	}
	return filename, nil
}

// ============================================
// ADMINISTRATION (bearer protected)
// ============================================

func (c *Client) Examinations(ctx context.Context, token string) ([]core.Examination, error) {
	var dtos []examDTO
	if err := c.r.call(ctx, request{method: http.MethodGet, path: "/examinations", token: token}, &dtos); err != nil {
		return nil, err
	}
	exams := make([]core.Examination, 0, len(dtos))
	for _, d := range dtos {
		exams = append(exams, d.toCore())
	}
	return exams, nil
}

func (c *Client) CreateExamination(ctx context.Context, token string, exam core.NewExamination) (*core.Examination, error) {
	body, err := jsonBody(newExamDTO{Title: exam.Title, CourseCode: exam.CourseCode, DurationMinutes: exam.DurationMinutes})
	if err != nil {
		return nil, err
	}
	var dto examDTO
	err = c.r.call(ctx, request{
		method:      http.MethodPost,
		path:        "/examinations",
		token:       token,
		body:        body,
		contentType: "application/json",
	}, &dto)
	if err != nil {
		return nil, err
	}
	created := dto.toCore()
	return &created, nil
}

func (c *Client) FinalizeExamination(ctx context.Context, token string, examID int64) error {
	path := fmt.Sprintf("/examinations/%d/finalize", examID)
	return c.r.call(ctx, request{method: http.MethodPost, path: path, token: token}, nil)
}

func (c *Client) Users(ctx context.Context, token string, role core.Role) ([]core.User, error) {
	query := url.Values{}
	if role != "" {
		query.Set("role", string(role))
	}
	var dtos []userDTO
	if err := c.r.call(ctx, request{method: http.MethodGet, path: "/users", query: query, token: token}, &dtos); err != nil {
		return nil, err
	}
	users := make([]core.User, 0, len(dtos))
	for _, d := range dtos {
		users = append(users, d.toCore())
	}
	return users, nil
}
