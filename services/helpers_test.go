package services

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/lborres/bantay/core"
)

var (
	errUnreachable = errors.Join(core.ErrTransport, errors.New("dial tcp 127.0.0.1:8000: connect: connection refused"))
	errExpired     = &core.APIError{Status: http.StatusUnauthorized, Detail: "Could not validate credentials"}
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func testUser(name string) *core.User {
	return &core.User{ID: 7, Username: name, Email: name + "@example.com", Role: core.RoleInvigilator, IsActive: true}
}

// fastViews polls quickly enough for tests to observe several ticks
func fastViews() ViewOptions {
	return ViewOptions{Interval: 10 * time.Millisecond}
}
