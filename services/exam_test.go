package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lborres/bantay/core"
)

func TestRemaining(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		duration time.Duration
		now      time.Time
		want     string
	}{
		{name: "before start counts full duration", duration: time.Hour, now: start.Add(-time.Minute), want: "01:01:00"},
		{name: "midway", duration: 90 * time.Minute, now: start.Add(45*time.Minute + 30*time.Second), want: "00:44:30"},
		{name: "exactly at end", duration: time.Hour, now: start.Add(time.Hour), want: "00:00:00"},
		{name: "elapsed clamps to zero", duration: time.Hour, now: start.Add(61 * time.Minute), want: "00:00:00"},
		{name: "sub-second remainder truncates", duration: time.Minute, now: start.Add(59*time.Second + 400*time.Millisecond), want: "00:00:00"},
		{name: "long exam", duration: 120 * time.Hour, now: start, want: "120:00:00"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			left := Remaining(start, test.duration, test.now)
			if left < 0 {
				t.Fatalf("Remaining() = %v, must never be negative", left)
			}
			if got := FormatRemaining(left); got != test.want {
				t.Errorf("FormatRemaining() = %q, want %q", got, test.want)
			}
		})
	}
}

func TestActiveExamView_Countdown(t *testing.T) {
	// Arrange
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	now := start.Add(10 * time.Minute)
	api := NewFakeBackend()
	api.ActiveExamFunc = func(ctx context.Context) (*core.Examination, error) {
		return &core.Examination{ID: 1, Title: "Algorithms", StartTime: start, DurationMinutes: 60, IsActive: true}, nil
	}
	view := NewActiveExamView(api, 5*time.Millisecond, ViewOptions{Interval: time.Hour})
	view.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	// Act
	view.Start(context.Background())
	defer view.Stop()

	// Assert
	waitFor(t, time.Second, func() bool { return view.Snapshot().Remaining == "00:50:00" })

	mu.Lock()
	now = start.Add(2 * time.Hour)
	mu.Unlock()
	waitFor(t, time.Second, func() bool { return view.Snapshot().Remaining == "00:00:00" })
	if view.Snapshot().Seconds != 0 {
		t.Errorf("Seconds = %d, want 0", view.Snapshot().Seconds)
	}
}

func TestActiveExamView_NoActiveExam(t *testing.T) {
	api := NewFakeBackend()
	view := NewActiveExamView(api, 5*time.Millisecond, ViewOptions{Interval: time.Hour})

	view.Start(context.Background())
	defer view.Stop()
	waitFor(t, time.Second, func() bool { return !view.Snapshot().UpdatedAt.IsZero() })

	snap := view.Snapshot()
	if snap.Exam != nil || snap.Remaining != "" {
		t.Errorf("snapshot = %+v, want no exam and no countdown", snap)
	}
}

func TestActiveExamView_ExamChangeRestartsCountdown(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	exam := &core.Examination{ID: 1, StartTime: start, DurationMinutes: 30}
	api := NewFakeBackend()
	api.ActiveExamFunc = func(ctx context.Context) (*core.Examination, error) {
		mu.Lock()
		defer mu.Unlock()
		return exam, nil
	}
	view := NewActiveExamView(api, time.Hour, fastViews())
	view.now = func() time.Time { return start }

	view.Start(context.Background())
	defer view.Stop()
	waitFor(t, time.Second, func() bool { return view.Snapshot().Remaining == "00:30:00" })

	mu.Lock()
	exam = &core.Examination{ID: 2, StartTime: start, DurationMinutes: 90}
	mu.Unlock()

	// the countdown interval is an hour, so only the change can refresh it
	waitFor(t, time.Second, func() bool { return view.Snapshot().Remaining == "01:30:00" })
}
