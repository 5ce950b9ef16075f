package services

import "github.com/lborres/bantay/core"

// Operation ids the dashboard adapters bind handlers to
const (
	OpGetSession     = "getSession"
	OpLogin          = "login"
	OpLogout         = "logout"
	OpRegister       = "register"
	OpListAlerts     = "listAlerts"
	OpSetAlertFilter = "setAlertFilter"
	OpViolationFeed  = "getViolationFeed"
	OpDashboardStats = "getDashboardStats"
	OpSessionStats   = "getSessionStats"
	OpActiveExam     = "getActiveExamination"
	OpSessionSummary = "getSessionSummary"
	OpFinalizeExam   = "finalizeExamination"
	OpListExams      = "listExaminations"
	OpCreateExam     = "createExamination"
	OpListStudents   = "listStudents"
	OpAddStudent     = "addStudent"
	OpExportReport   = "exportReport"
	OpMediaStatus    = "getMediaStatus"
	OpToggleMedia    = "toggleMedia"
)

// DashboardEndpoints returns the framework-agnostic route table of the
// dashboard API, relative to its base path.
//
// Protected endpoints require an authenticated session; adapters enforce it.
func DashboardEndpoints() []core.Endpoint {
	return []core.Endpoint{
		endpoint("GET", "/session", false, OpGetSession, "Get the current authentication session"),
		endpoint("POST", "/login", false, OpLogin, "Log in with username and password"),
		endpoint("POST", "/logout", false, OpLogout, "Log out and clear the persisted token"),
		endpoint("POST", "/register", false, OpRegister, "Create an account without logging in"),

		endpoint("GET", "/alerts", true, OpListAlerts, "Get the alerts matching the active filter"),
		endpoint("PUT", "/alerts/filter", true, OpSetAlertFilter, "Change the alert filter and restart its poll"),
		endpoint("GET", "/feed", true, OpViolationFeed, "Get the live violation feed"),
		endpoint("GET", "/stats", true, OpDashboardStats, "Get the headline dashboard counters"),
		endpoint("GET", "/stats/session", true, OpSessionStats, "Get the statistics of the selected session"),
		endpoint("GET", "/exam/active", true, OpActiveExam, "Get the active examination and its countdown"),
		endpoint("GET", "/summary", true, OpSessionSummary, "Get the integrity report of the active examination"),
		endpoint("GET", "/export", true, OpExportReport, "Redirect to the report download of the active examination"),

		endpoint("GET", "/exams", true, OpListExams, "List examinations, optionally filtered by search"),
		endpoint("POST", "/exams", true, OpCreateExam, "Create an examination"),
		endpoint("POST", "/exams/:id/finalize", true, OpFinalizeExam, "Finalize an examination; requires X-Confirm: true"),
		endpoint("GET", "/students", true, OpListStudents, "List students, optionally filtered by search"),
		endpoint("POST", "/students", true, OpAddStudent, "Register a student account"),

		endpoint("GET", "/media", true, OpMediaStatus, "Get the capture service status"),
		endpoint("POST", "/media/:device/:action", true, OpToggleMedia, "Start or stop the camera or captions"),
	}
}

func endpoint(method, path string, protected bool, opID, desc string) core.Endpoint {
	return core.Endpoint{
		Path:      path,
		Method:    method,
		Protected: protected,
		Metadata: core.EndpointMetadata{
			OperationID: opID,
			Description: desc,
		},
	}
}
