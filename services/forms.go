package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lborres/bantay/core"
)

type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomeRejected        Outcome = "rejected"
	OutcomeConnectionError Outcome = "connection_error"
	OutcomeCancelled       Outcome = "cancelled" // confirmation declined, nothing was sent
)

const (
	MsgConnectionError  = "Error connecting to server."
	MsgNotAuthenticated = "Please log in to continue."
	MsgCancelled        = "Cancelled."

	PromptFinalize = "Are you sure you want to finalize this examination? This will stop all AI monitoring."
	PromptLogout   = "Are you sure you want to log out?"
)

// FormResult is the outcome of one form submission
type FormResult struct {
	Outcome Outcome `json:"outcome"`
	Message string  `json:"message"`
	Data    any     `json:"data,omitempty"`
	Err     error   `json:"-"`
}

func (r FormResult) OK() bool {
	return r.Outcome == OutcomeSuccess
}

// Forms runs the one-shot request/response flows. None of them retry.
type Forms struct {
	api     core.Backend
	session *SessionStore
	log     *zap.Logger
}

func NewForms(api core.Backend, session *SessionStore, log *zap.Logger) *Forms {
	if log == nil {
		log = zap.NewNop()
	}
	return &Forms{api: api, session: session, log: log}
}

func (f *Forms) Login(ctx context.Context, creds core.Credentials) FormResult {
	creds.Username = strings.TrimSpace(creds.Username)
	if creds.Username == "" {
		return rejected(core.ErrUsernameRequired)
	}
	if creds.Password == "" {
		return rejected(core.ErrPasswordRequired)
	}

	err := f.session.Authenticate(ctx, creds)
	return f.result("login", err, fmt.Sprintf("Logged in as %s.", creds.Username), "Invalid username or password.", nil)
}

// Register creates an account for the person at the keyboard; it never logs in
func (f *Forms) Register(ctx context.Context, reg core.Registration) FormResult {
	if err := validateRegistration(&reg); err != nil {
		return rejected(err)
	}
	err := f.session.SignUp(ctx, reg)
	return f.result("register", err, "Registration successful. Please log in.", "Registration failed. Username might be taken.", nil)
}

// AddStudent registers a student account on behalf of staff
func (f *Forms) AddStudent(ctx context.Context, reg core.Registration) FormResult {
	reg.Role = core.RoleStudent
	if err := validateRegistration(&reg); err != nil {
		return rejected(err)
	}
	err := f.session.SignUp(ctx, reg)
	return f.result("add_student", err, "Student registered successfully!", "Failed to register student. Email or username might be taken.", nil)
}

func (f *Forms) CreateExamination(ctx context.Context, exam core.NewExamination) FormResult {
	exam.Title = strings.TrimSpace(exam.Title)
	exam.CourseCode = strings.TrimSpace(exam.CourseCode)
	switch {
	case exam.Title == "":
		return rejected(core.ErrTitleRequired)
	case exam.CourseCode == "":
		return rejected(core.ErrCourseCodeRequired)
	case exam.DurationMinutes <= 0:
		return rejected(core.ErrInvalidDuration)
	}

	created, err := authorized(ctx, f.session, func(ctx context.Context, token string) (*core.Examination, error) {
		return f.api.CreateExamination(ctx, token, exam)
	})
	var data any
	if created != nil {
		data = created
	}
	return f.result("create_examination", err, "Examination created successfully!", "Failed to create examination.", data)
}

// FinalizeExamination asks confirm first; a declined prompt sends nothing
func (f *Forms) FinalizeExamination(ctx context.Context, examID int64, confirm core.Confirmer) FormResult {
	if !confirmed(ctx, confirm, PromptFinalize) {
		return cancelled()
	}
	_, err := authorized(ctx, f.session, func(ctx context.Context, token string) (struct{}, error) {
		return struct{}{}, f.api.FinalizeExamination(ctx, token, examID)
	})
	return f.result("finalize_examination", err, "Examination finalized successfully.", "Failed to finalize", nil)
}

// FinalizeActive finalizes whichever examination is currently active
func (f *Forms) FinalizeActive(ctx context.Context, confirm core.Confirmer) FormResult {
	exam, err := f.api.ActiveExamination(ctx)
	if err != nil {
		return f.result("finalize_examination", err, "", "Failed to finalize", nil)
	}
	if exam == nil {
		return rejected(core.ErrNoActiveExamination)
	}
	return f.FinalizeExamination(ctx, exam.ID, confirm)
}

func (f *Forms) Logout(ctx context.Context, confirm core.Confirmer) FormResult {
	if !confirmed(ctx, confirm, PromptLogout) {
		return cancelled()
	}
	f.session.Logout()
	return FormResult{Outcome: OutcomeSuccess, Message: "Logged out."}
}

func (f *Forms) result(flow string, err error, success, fallback string, data any) FormResult {
	if err == nil {
		return FormResult{Outcome: OutcomeSuccess, Message: success, Data: data}
	}

	switch {
	case errors.Is(err, core.ErrNotAuthenticated):
		return FormResult{Outcome: OutcomeRejected, Message: MsgNotAuthenticated, Err: err}
	case core.IsTransport(err), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		f.log.Warn("form submission failed", zap.String("flow", flow), zap.Error(err))
		return FormResult{Outcome: OutcomeConnectionError, Message: MsgConnectionError, Err: err}
	}

	msg := core.DetailOf(err)
	if msg == "" {
		msg = fallback
	}
	f.log.Info("form rejected", zap.String("flow", flow), zap.Error(err))
	return FormResult{Outcome: OutcomeRejected, Message: msg, Err: err}
}

func validateRegistration(reg *core.Registration) error {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.TrimSpace(reg.Email)
	switch {
	case reg.Username == "":
		return core.ErrUsernameRequired
	case reg.Email == "":
		return core.ErrEmailRequired
	case reg.Password == "":
		return core.ErrPasswordRequired
	}
	reg.Role = core.Role(strings.ToLower(strings.TrimSpace(string(reg.Role))))
	if reg.Role == "" {
		reg.Role = core.RoleStudent
	}
	if !reg.Role.Valid() {
		return fmt.Errorf("%w: got %q", core.ErrInvalidRole, reg.Role)
	}
	return nil
}

func confirmed(ctx context.Context, confirm core.Confirmer, prompt string) bool {
	return confirm != nil && confirm.Confirm(ctx, prompt)
}

func rejected(err error) FormResult {
	return FormResult{Outcome: OutcomeRejected, Message: err.Error(), Err: err}
}

func cancelled() FormResult {
	return FormResult{Outcome: OutcomeCancelled, Message: MsgCancelled, Err: core.ErrConfirmationDeclined}
}
