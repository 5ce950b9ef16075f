package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lborres/bantay/core"
)

// Wire schemas of the proctoring backend. Every response body is decoded
// into one of these and converted to a core type at the boundary.

// flexTime accepts null, unix seconds (float) or an ISO-8601 string.
// Timestamps without a zone are taken as UTC.
type flexTime struct {
	time.Time
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

func (t *flexTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	if b[0] != '"' {
		var secs float64
		if err := json.Unmarshal(b, &secs); err != nil {
			return fmt.Errorf("timestamp: %w", err)
		}
		whole, frac := math.Modf(secs)
		t.Time = time.Unix(int64(whole), int64(frac*1e9)).UTC()
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return t.UnmarshalJSON([]byte(strconv.FormatFloat(secs, 'f', -1, 64)))
	}
	for _, layout := range isoLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognized format %q", s)
}

// flexBool accepts true/false as well as the 0/1 some columns are stored as
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	switch strings.Trim(strings.TrimSpace(string(b)), `"`) {
	case "true", "1":
		*f = true
	case "false", "0", "null", "":
		*f = false
	default:
		return fmt.Errorf("boolean: unrecognized value %s", b)
	}
	return nil
}

type alertDTO struct {
	EventID    int64    `json:"event_id"`
	EventType  string   `json:"event_type"`
	Confidence float64  `json:"confidence"`
	Timestamp  flexTime `json:"timestamp"`
	Source     string   `json:"source"`
	CreatedAt  flexTime `json:"created_at"`
}

func (d alertDTO) toCore() core.Alert {
	return core.Alert{
		EventID:    d.EventID,
		EventType:  d.EventType,
		Confidence: math.Min(1, math.Max(0, d.Confidence)),
		Timestamp:  d.Timestamp.Time,
		Source:     core.Source(strings.ToLower(d.Source)),
		CreatedAt:  d.CreatedAt.Time,
	}
}

type userDTO struct {
	ID        int64    `json:"id"`
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	Role      string   `json:"role"`
	IsActive  flexBool `json:"is_active"`
	CreatedAt flexTime `json:"created_at"`
}

func (d userDTO) toCore() core.User {
	return core.User{
		ID:        d.ID,
		Username:  d.Username,
		Email:     d.Email,
		Role:      core.Role(strings.ToLower(d.Role)),
		IsActive:  bool(d.IsActive),
		CreatedAt: d.CreatedAt.Time,
	}
}

type examDTO struct {
	ID              int64    `json:"id"`
	Title           string   `json:"title"`
	CourseCode      string   `json:"course_code"`
	StartTime       flexTime `json:"start_time"`
	DurationMinutes int      `json:"duration_minutes"`
	IsActive        flexBool `json:"is_active"`
	CreatedAt       flexTime `json:"created_at"`
}

func (d examDTO) toCore() core.Examination {
	return core.Examination{
		ID:              d.ID,
		Title:           d.Title,
		CourseCode:      d.CourseCode,
		StartTime:       d.StartTime.Time,
		DurationMinutes: d.DurationMinutes,
		IsActive:        bool(d.IsActive),
		CreatedAt:       d.CreatedAt.Time,
	}
}

type newExamDTO struct {
	Title           string `json:"title"`
	CourseCode      string `json:"course_code"`
	DurationMinutes int    `json:"duration_minutes"`
}

type registerDTO struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type statsDTO struct {
	SessionID            int64          `json:"session_id"`
	TotalEvents          int            `json:"total_events"`
	HighConfidenceEvents int            `json:"high_confidence_events"`
	EventTypes           map[string]int `json:"event_types"`
	EventTypeCounts      map[string]int `json:"event_type_counts"`
	AverageConfidence    float64        `json:"average_confidence"`
}

func (d statsDTO) toCore(sessionID int64) core.SessionStats {
	counts := d.EventTypes
	if counts == nil {
		counts = d.EventTypeCounts
	}
	if counts == nil {
		counts = map[string]int{}
	}
	if d.SessionID != 0 {
		sessionID = d.SessionID
	}
	return core.SessionStats{
		SessionID:            sessionID,
		TotalEvents:          d.TotalEvents,
		AverageConfidence:    d.AverageConfidence,
		EventTypeCounts:      counts,
		HighConfidenceEvents: d.HighConfidenceEvents,
	}
}

type tokenDTO struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type countDTO struct {
	Count int `json:"count"`
}

// mediaStatusDTO uses pointers so absent fields can be defaulted
type mediaStatusDTO struct {
	CameraActive   *bool `json:"camera_active"`
	CaptionsActive *bool `json:"captions_active"`
}

func (d mediaStatusDTO) toCore() core.MediaStatus {
	st := core.MediaStatus{CaptionsActive: true}
	if d.CameraActive != nil {
		st.CameraActive = *d.CameraActive
	}
	if d.CaptionsActive != nil {
		st.CaptionsActive = *d.CaptionsActive
	}
	return st
}

// errorDTO is the backend error body. detail is either a message or a list
// of validation errors.
type errorDTO struct {
	Detail json.RawMessage `json:"detail"`
}

type validationErrorDTO struct {
	Msg string `json:"msg"`
	Loc []any  `json:"loc"`
}

func parseDetail(body []byte) string {
	var e errorDTO
	if err := json.Unmarshal(body, &e); err != nil || len(e.Detail) == 0 {
		return ""
	}
	var msg string
	if err := json.Unmarshal(e.Detail, &msg); err == nil {
		return msg
	}
	var list []validationErrorDTO
	if err := json.Unmarshal(e.Detail, &list); err == nil && len(list) > 0 {
		return list[0].Msg
	}
	return ""
}
