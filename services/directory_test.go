package services

import (
	"context"
	"errors"
	"testing"

	"github.com/lborres/bantay/core"
)

func roster() []core.User {
	return []core.User{
		{ID: 1, Username: "Maria.Santos", Email: "maria@uni.edu", Role: core.RoleStudent},
		{ID: 2, Username: "jdelacruz", Email: "Juan.DelaCruz@uni.edu", Role: core.RoleStudent},
		{ID: 3, Username: "ana", Email: "ana@college.edu", Role: core.RoleStudent},
	}
}

func TestFilterUsers(t *testing.T) {
	tests := []struct {
		name    string
		search  string
		wantIDs []int64
	}{
		{name: "empty search keeps all", search: "", wantIDs: []int64{1, 2, 3}},
		{name: "username is case-insensitive", search: "MARIA", wantIDs: []int64{1}},
		{name: "email matches", search: "delacruz@", wantIDs: []int64{2}},
		{name: "shared domain", search: "uni.edu", wantIDs: []int64{1, 2}},
		{name: "surrounding spaces ignored", search: "  ana ", wantIDs: []int64{3}},
		{name: "no match", search: "zzz", wantIDs: []int64{}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := FilterUsers(roster(), test.search)
			if len(got) != len(test.wantIDs) {
				t.Fatalf("got %d users, want %d", len(got), len(test.wantIDs))
			}
			for i, id := range test.wantIDs {
				if got[i].ID != id {
					t.Errorf("user[%d] = %d, want %d", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestFilterExaminations(t *testing.T) {
	exams := []core.Examination{
		{ID: 1, Title: "Data Structures", CourseCode: "CS201"},
		{ID: 2, Title: "Operating Systems", CourseCode: "CS340"},
	}

	if got := FilterExaminations(exams, "cs3"); len(got) != 1 || got[0].ID != 2 {
		t.Errorf("course code search = %+v", got)
	}
	if got := FilterExaminations(exams, "data"); len(got) != 1 || got[0].ID != 1 {
		t.Errorf("title search = %+v", got)
	}
}

func TestDirectory_Students(t *testing.T) {
	// Arrange
	api := NewFakeBackend()
	var role core.Role
	api.UsersFunc = func(ctx context.Context, token string, r core.Role) ([]core.User, error) {
		role = r
		return roster(), nil
	}
	_, store := newAuthenticatedForms(t, api)
	dir := NewDirectory(api, store)

	// Act
	got, err := dir.Students(context.Background(), "ana")

	// Assert
	if err != nil {
		t.Fatalf("Students() error = %v", err)
	}
	if len(got) != 1 || got[0].Username != "ana" {
		t.Errorf("Students() = %+v", got)
	}
	if role != core.RoleStudent {
		t.Errorf("requested role %q, want student", role)
	}
	if tokens := api.Tokens(); tokens[len(tokens)-1] != "tok-alice" {
		t.Errorf("bearer token = %q", tokens[len(tokens)-1])
	}
}

func TestDirectory_UnauthorizedInvalidates(t *testing.T) {
	api := NewFakeBackend()
	api.ExamsFunc = func(ctx context.Context, token string) ([]core.Examination, error) { return nil, errExpired }
	_, store := newAuthenticatedForms(t, api)
	dir := NewDirectory(api, store)

	_, err := dir.Examinations(context.Background(), "")

	if !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("Examinations() error = %v, want ErrUnauthorized", err)
	}
	if store.Token() != "" {
		t.Error("session kept a token the backend rejected")
	}
}
