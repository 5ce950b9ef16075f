package core

import "time"

type Role string

const (
	RoleStudent     Role = "student"
	RoleInvigilator Role = "invigilator"
	RoleProctor     Role = "proctor"
	RoleAdmin       Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleInvigilator, RoleProctor, RoleAdmin:
		return true
	}
	return false
}

// User is the identity resolved from a bearer token
//
// Snapshots are never mutated locally; a new one replaces the old on every resolution
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// Examination is a timed proctored exam instance owned by the backend
type Examination struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	CourseCode      string    `json:"courseCode"`
	StartTime       time.Time `json:"startTime"`
	DurationMinutes int       `json:"durationMinutes"`
	IsActive        bool      `json:"isActive"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Duration returns the scheduled length of the examination
func (e *Examination) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}

type Source string

const (
	SourceVideo Source = "video"
	SourceAudio Source = "audio"
)

// Alert is a flagged event produced by the detection service
type Alert struct {
	EventID    int64     `json:"eventId"`
	EventType  string    `json:"eventType"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"` // zero when the detector did not report one
	Source     Source    `json:"source"`
	CreatedAt  time.Time `json:"createdAt"`
}

// SessionStats is recomputed server-side on every request
type SessionStats struct {
	SessionID            int64          `json:"sessionId"`
	TotalEvents          int            `json:"totalEvents"`
	AverageConfidence    float64        `json:"averageConfidence"`
	EventTypeCounts      map[string]int `json:"eventTypeCounts"`
	HighConfidenceEvents int            `json:"highConfidenceEvents"`
}

// DashboardStats aggregates the headline counters of the dashboard
type DashboardStats struct {
	TotalStudents      int `json:"totalStudents"`
	ActiveSessions     int `json:"activeSessions"`
	DetectedViolations int `json:"detectedViolations"`
	CriticalAlerts     int `json:"criticalAlerts"`
}

// MediaStatus reports the local capture service state
type MediaStatus struct {
	CameraActive   bool `json:"cameraActive"`
	CaptionsActive bool `json:"captionsActive"`
}

// AlertQuery is the server-side part of an alert filter
type AlertQuery struct {
	Confidence *float64 // omitted when nil, the backend applies its own default
	Limit      int
	SessionID  *int64
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

type NewExamination struct {
	Title           string `json:"title"`
	CourseCode      string `json:"courseCode"`
	DurationMinutes int    `json:"durationMinutes"`
}
