package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lborres/bantay/core"
)

// Requirement: a saved token is loaded back until it is cleared
func TestStorage_RoundTrip(t *testing.T) {
	// Arrange
	s := New(0)
	ctx := context.Background()

	// Act
	if _, err := s.LoadToken(ctx); !errors.Is(err, core.ErrTokenNotFound) {
		t.Fatalf("Expected ErrTokenNotFound on empty storage, got %v", err)
	}
	if err := s.SaveToken(ctx, "tok-1"); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}
	got, err := s.LoadToken(ctx)

	// Assert
	if err != nil || got != "tok-1" {
		t.Fatalf("Expected tok-1, got %q, %v", got, err)
	}
	if err := s.ClearToken(ctx); err != nil {
		t.Fatalf("ClearToken failed: %v", err)
	}
	if _, err := s.LoadToken(ctx); !errors.Is(err, core.ErrTokenNotFound) {
		t.Errorf("Expected ErrTokenNotFound after clear, got %v", err)
	}
}

// Requirement: a token older than the ttl is reported missing
func TestStorage_TTL(t *testing.T) {
	s := New(20 * time.Millisecond)
	ctx := context.Background()
	s.SaveToken(ctx, "tok-1")

	time.Sleep(40 * time.Millisecond)

	if _, err := s.LoadToken(ctx); !errors.Is(err, core.ErrTokenNotFound) {
		t.Errorf("Expected expired token to be missing, got %v", err)
	}
}

func TestStorage_Stats(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	s.LoadToken(ctx)
	s.SaveToken(ctx, "a")
	s.SaveToken(ctx, "b")
	s.LoadToken(ctx)
	s.ClearToken(ctx)

	want := core.StorageStats{Loads: 2, Misses: 1, Saves: 2, Clears: 1}
	if got := s.Stats(); got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
}
