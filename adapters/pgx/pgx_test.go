package pgx

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/lborres/bantay/core"
)

// requires a reachable PostgreSQL; skipped otherwise
func newTestAdapter(t *testing.T, profile string) *Adapter {
	t.Helper()
	dsn := os.Getenv("BANTAY_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("BANTAY_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(pool.Close)

	a := New(pool, profile)
	if err := a.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	t.Cleanup(func() { a.ClearToken(context.Background()) })
	return a
}

// Requirement: tokens round-trip and clear; saving twice overwrites
func TestAdapter_RoundTrip(t *testing.T) {
	// Arrange
	a := newTestAdapter(t, "test-roundtrip")
	ctx := context.Background()
	a.ClearToken(ctx)

	// Act
	if _, err := a.LoadToken(ctx); !errors.Is(err, core.ErrTokenNotFound) {
		t.Fatalf("Expected ErrTokenNotFound, got %v", err)
	}
	if err := a.SaveToken(ctx, "tok-1"); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}
	if err := a.SaveToken(ctx, "tok-2"); err != nil {
		t.Fatalf("SaveToken overwrite failed: %v", err)
	}
	got, err := a.LoadToken(ctx)

	// Assert
	if err != nil || got != "tok-2" {
		t.Fatalf("Expected tok-2, got %q, %v", got, err)
	}
	if err := a.ClearToken(ctx); err != nil {
		t.Fatalf("ClearToken failed: %v", err)
	}
	if _, err := a.LoadToken(ctx); !errors.Is(err, core.ErrTokenNotFound) {
		t.Errorf("Expected ErrTokenNotFound after clear, got %v", err)
	}
}

// Requirement: profiles do not see each other's tokens
func TestAdapter_ProfilesIsolated(t *testing.T) {
	a := newTestAdapter(t, "test-profile-a")
	b := newTestAdapter(t, "test-profile-b")
	ctx := context.Background()

	a.SaveToken(ctx, "tok-a")
	b.ClearToken(ctx)

	if _, err := b.LoadToken(ctx); !errors.Is(err, core.ErrTokenNotFound) {
		t.Errorf("Expected profile b to be empty, got %v", err)
	}
}

func TestNew_DefaultProfile(t *testing.T) {
	if a := New(nil, ""); a.profile != DefaultProfile {
		t.Errorf("Expected %q, got %q", DefaultProfile, a.profile)
	}
}
