package fiber

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/bantay"
	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/services"
)

// dashboardHandlers maps operation ids to their handlers
func dashboardHandlers(b *bantay.Bantay) map[string]fiber.Handler {
	return map[string]fiber.Handler{
		services.OpGetSession:     handleGetSession(b),
		services.OpLogin:          handleLogin(b),
		services.OpLogout:         handleLogout(b),
		services.OpRegister:       handleRegister(b),
		services.OpListAlerts:     handleListAlerts(b),
		services.OpSetAlertFilter: handleSetAlertFilter(b),
		services.OpViolationFeed:  handleViolationFeed(b),
		services.OpDashboardStats: handleDashboardStats(b),
		services.OpSessionStats:   handleSessionStats(b),
		services.OpActiveExam:     handleActiveExam(b),
		services.OpSessionSummary: handleSessionSummary(b),
		services.OpExportReport:   handleExportReport(b),
		services.OpListExams:      handleListExams(b),
		services.OpCreateExam:     handleCreateExam(b),
		services.OpFinalizeExam:   handleFinalizeExam(b),
		services.OpListStudents:   handleListStudents(b),
		services.OpAddStudent:     handleAddStudent(b),
		services.OpMediaStatus:    handleMediaStatus(b),
		services.OpToggleMedia:    handleToggleMedia(b),
	}
}

// ============================================
// SESSION
// ============================================

func handleGetSession(b *bantay.Bantay) fiber.Handler {
	return func(c fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(b.Session.State())
	}
}

func handleLogin(b *bantay.Bantay) fiber.Handler {
	return func(c fiber.Ctx) error {
		var input core.Credentials
		if err := c.Bind().Body(&input); err != nil {
			return invalidBody(c)
		}
		return formResponse(c, b.Forms.Login(c.Context(), input))
	}
}

func handleLogout(b *bantay.Bantay) fiber.Handler {
	return func(c fiber.Ctx) error {
		return formResponse(c, b.Forms.Logout(c.Context(), headerConfirmer(c)))
	}
}

func handleRegister(b *bantay.Bantay) fiber.Handler {
	return func(c fiber.Ctx) error {
		var input core.Registration
		if err := c.Bind().Body(&input); err != nil {
			return invalidBody(c)
		}
		return formResponse(c, b.Forms.Register(c.Context(), input))
	}
}

// ============================================
// LIVE VIEWS
// ============================================

func handleListAlerts(b *bantay.Bantay) fiber.Handler {
	return func(c fiber.Ctx) error {
		return c.JSON(b.Alerts.Snapshot())
	}
}

func handleSetAlertFilter(b *bantay.Bantay) fiber.Handler {
	return func(c fiber.Ctx) error {
		filter := b.Alerts.Filter()
		if err := c.Bind().Body(&filter); err != nil {
			return invalidBody(c)
		}
		if err := b.Alerts.SetFilter(filter); err != nil {
			return handleError(c, err)
		}
		return c.JSON(b.Alerts.Snapshot())
	}
}

func handleViolationFeed(b *bantay.Bantay) fiber.Handler {
	return func(c fiber.Ctx) error {
		return c.JSON(b.Feed.Snapshot())
	}
}

func handleDashboardStats(b *bantay.Bantay) fiber.Handler {
	return func(c fiber.Ctx) error {
		return c.JSON(b.Stats.Snapshot())
	}
}

// handleSessionStats switches the stats panel when ?session_id is given
func handleSessionStats(b *bantay.Bantay) fiber.Handler {
	return func(c fiber.Ctx) error {
		if raw := c.Query("session_id"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				return c.Status(http.StatusBadRequest).JSON(core.ErrorResponse{
					Error: "session_id must be a positive integer",
					Code:  http.StatusBadRequest,
				})
			}
			b.SessionStats.SetSession(id)
		}
		return c.JSON(b.SessionStats.Snapshot())
	}
}

func handleActiveExam(b *bantay.Bantay) fiber.Handler {
	return func(c fiber.Ctx) error {
		return c.JSON(b.ActiveExam.Snapshot())
	}
}

func handleSessionSummary(b *bantay.Bantay) fiber.Handler {
	return func(c fiber.Ctx) error {
		summary, err := b.Summary.Load(c.Context())
		if err != nil {
			return handleError(c, err)
		}
		return c.JSON(summary)
	}
}

func handleExportReport(b *bantay.Bantay) fiber.Handler {
	return func(c fiber.Ctx) error {
		url, err := b.Summary.ExportURL(c.Context())
		if err != nil {
			return handleError(c, err)
		}
		return c.Redirect().Status(http.StatusFound).To(url)
	}
}

// ============================================
// ADMINISTRATION (protected)
// ============================================

func handleListExams(b *bantay.Bantay) fiber.Handler {
	return func(c fiber.Ctx) error {
		exams, err := b.Directory.Examinations(c.Context(), c.Query("search"))
		if err != nil {
			return handleError(c, err)
		}
		return c.JSON(exams)
	}
}

func handleCreateExam(b *bantay.Bantay) fiber.Handler {
	return func(c fiber.Ctx) error {
		var input core.NewExamination
		if err := c.Bind().Body(&input); err != nil {
			return invalidBody(c)
		}
		return formResponse(c, b.Forms.CreateExamination(c.Context(), input))
	}
}

func handleFinalizeExam(b *bantay.Bantay) fiber.Handler {
	return func(c fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil || id <= 0 {
			return c.Status(http.StatusBadRequest).JSON(core.ErrorResponse{
				Error: "invalid examination id",
				Code:  http.StatusBadRequest,
			})
		}
		return formResponse(c, b.Forms.FinalizeExamination(c.Context(), id, headerConfirmer(c)))
	}
}

func handleListStudents(b *bantay.Bantay) fiber.Handler {
	return func(c fiber.Ctx) error {
		students, err := b.Directory.Students(c.Context(), c.Query("search"))
		if err != nil {
			return handleError(c, err)
		}
		return c.JSON(students)
	}
}

func handleAddStudent(b *bantay.Bantay) fiber.Handler {
	return func(c fiber.Ctx) error {
		var input core.Registration
		if err := c.Bind().Body(&input); err != nil {
			return invalidBody(c)
		}
		return formResponse(c, b.Forms.AddStudent(c.Context(), input))
	}
}

// ============================================
// MEDIA
// ============================================

func handleMediaStatus(b *bantay.Bantay) fiber.Handler {
	return func(c fiber.Ctx) error {
		status := b.Media.Refresh(c.Context())
		return c.JSON(fiber.Map{
			"status":    status,
			"streamUrl": b.Media.StreamURL(),
		})
	}
}

func handleToggleMedia(b *bantay.Bantay) fiber.Handler {
	return func(c fiber.Ctx) error {
		var on bool
		switch c.Params("action") {
		case "start":
			on = true
		case "stop":
			on = false
		default:
			return c.Status(http.StatusBadRequest).JSON(core.ErrorResponse{
				Error: "action must be start or stop",
				Code:  http.StatusBadRequest,
			})
		}

		var ok bool
		switch c.Params("device") {
		case "camera":
			ok = b.Media.SetCamera(c.Context(), on)
		case "captions":
			ok = b.Media.SetCaptions(c.Context(), on)
		default:
			return c.Status(http.StatusBadRequest).JSON(core.ErrorResponse{
				Error: "device must be camera or captions",
				Code:  http.StatusBadRequest,
			})
		}

		status := http.StatusOK
		if !ok {
			status = http.StatusBadGateway
		}
		return c.Status(status).JSON(fiber.Map{
			"ok":     ok,
			"status": b.Media.Status(),
		})
	}
}

// ============================================
// RESPONSES
// ============================================

func invalidBody(c fiber.Ctx) error {
	return c.Status(http.StatusBadRequest).JSON(core.ErrorResponse{
		Error: "invalid request body",
		Code:  http.StatusBadRequest,
	})
}

// formResponse writes a form result with the status matching its outcome
func formResponse(c fiber.Ctx, r services.FormResult) error {
	status := http.StatusOK
	switch r.Outcome {
	case services.OutcomeRejected:
		status = mapErrorToStatus(r.Err)
		if status == http.StatusInternalServerError {
			status = http.StatusUnprocessableEntity
		}
	case services.OutcomeConnectionError:
		status = http.StatusBadGateway
	case services.OutcomeCancelled:
		status = http.StatusPreconditionRequired
	}
	return c.Status(status).JSON(r)
}

// handleError maps service errors to appropriate HTTP responses
func handleError(c fiber.Ctx, err error) error {
	status := mapErrorToStatus(err)
	message := core.DetailOf(err)
	return c.Status(status).JSON(core.ErrorResponse{
		Error:   err.Error(),
		Message: message,
		Code:    status,
	})
}

// mapErrorToStatus maps bantay error types to HTTP status codes
func mapErrorToStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch {
	case errors.Is(err, core.ErrUnauthorized),
		errors.Is(err, core.ErrNotAuthenticated):
		return http.StatusUnauthorized

	case errors.Is(err, core.ErrInvalidConfidence),
		errors.Is(err, core.ErrInvalidSource),
		errors.Is(err, core.ErrTitleRequired),
		errors.Is(err, core.ErrCourseCodeRequired),
		errors.Is(err, core.ErrInvalidDuration),
		errors.Is(err, core.ErrUsernameRequired),
		errors.Is(err, core.ErrEmailRequired),
		errors.Is(err, core.ErrPasswordRequired),
		errors.Is(err, core.ErrInvalidRole):
		return http.StatusBadRequest

	case errors.Is(err, core.ErrNoActiveExamination):
		return http.StatusNotFound

	case errors.Is(err, core.ErrConfirmationDeclined):
		return http.StatusPreconditionRequired

	case core.IsTransport(err):
		return http.StatusBadGateway
	}

	var apiErr *core.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		return apiErr.Status
	}
	return http.StatusInternalServerError
}
