package services

import (
	"context"
	"errors"
	"strings"

	"github.com/lborres/bantay/core"
)

// Directory lists the bearer-protected catalogues: students and examinations
type Directory struct {
	api     core.AdminAPI
	session *SessionStore
}

func NewDirectory(api core.AdminAPI, session *SessionStore) *Directory {
	return &Directory{api: api, session: session}
}

// Students lists users with the student role whose username or email
// contains search, case-insensitively
func (d *Directory) Students(ctx context.Context, search string) ([]core.User, error) {
	users, err := authorized(ctx, d.session, func(ctx context.Context, token string) ([]core.User, error) {
		return d.api.Users(ctx, token, core.RoleStudent)
	})
	if err != nil {
		return nil, err
	}
	return FilterUsers(users, search), nil
}

// Examinations lists examinations whose title or course code contains search
func (d *Directory) Examinations(ctx context.Context, search string) ([]core.Examination, error) {
	exams, err := authorized(ctx, d.session, func(ctx context.Context, token string) ([]core.Examination, error) {
		return d.api.Examinations(ctx, token)
	})
	if err != nil {
		return nil, err
	}
	return FilterExaminations(exams, search), nil
}

func FilterUsers(users []core.User, search string) []core.User {
	term := strings.ToLower(strings.TrimSpace(search))
	result := make([]core.User, 0, len(users))
	for _, u := range users {
		if term == "" ||
			strings.Contains(strings.ToLower(u.Username), term) ||
			strings.Contains(strings.ToLower(u.Email), term) {
			result = append(result, u)
		}
	}
	return result
}

func FilterExaminations(exams []core.Examination, search string) []core.Examination {
	term := strings.ToLower(strings.TrimSpace(search))
	result := make([]core.Examination, 0, len(exams))
	for _, e := range exams {
		if term == "" ||
			strings.Contains(strings.ToLower(e.Title), term) ||
			strings.Contains(strings.ToLower(e.CourseCode), term) {
			result = append(result, e)
		}
	}
	return result
}

// authorized runs a protected call with the current token. Without a token
// no request is made; a 401 answer invalidates the session.
func authorized[T any](ctx context.Context, session *SessionStore, call func(context.Context, string) (T, error)) (T, error) {
	var zero T
	token := session.Token()
	if token == "" {
		return zero, core.ErrNotAuthenticated
	}
	v, err := call(ctx, token)
	if errors.Is(err, core.ErrUnauthorized) {
		session.Invalidate(err)
	}
	return v, err
}
