package services

import (
	"context"
	"sync"
	"time"

	"github.com/lborres/bantay/core"
)

type ActiveExamSnapshot struct {
	Exam      *core.Examination `json:"exam"`
	Remaining string            `json:"remaining,omitempty"` // HH:MM:SS, empty without an active exam
	Seconds   int64             `json:"secondsRemaining"`
	UpdatedAt time.Time         `json:"updatedAt"`
	Error     string            `json:"error,omitempty"`
}

// ActiveExamView polls the active examination and drives a local
// countdown to its scheduled end. The countdown restarts whenever the
// examination changes.
type ActiveExamView struct {
	api       core.MonitoringAPI
	opts      ViewOptions
	countdown time.Duration
	now       func() time.Time
	lv        liveView
	clock     liveView

	mu        sync.Mutex
	exam      *core.Examination
	remaining time.Duration
	updatedAt time.Time
	lastErr   error
}

// NewActiveExamView polls at opts.Interval and ticks the countdown every countdown
func NewActiveExamView(api core.MonitoringAPI, countdown time.Duration, opts ViewOptions) *ActiveExamView {
	if countdown <= 0 {
		countdown = core.DefaultCountdownInterval
	}
	return &ActiveExamView{api: api, opts: opts, countdown: countdown, now: time.Now}
}

func (v *ActiveExamView) Start(ctx context.Context) {
	v.clock.start(ctx, nil, v.launchClock)
	v.lv.start(ctx, nil, v.launch)
}

func (v *ActiveExamView) Stop() {
	v.lv.stop()
	v.clock.stop()
}

func (v *ActiveExamView) Unmount() {
	v.Stop()
	v.mu.Lock()
	defer v.mu.Unlock()
	v.exam = nil
	v.remaining = 0
	v.updatedAt = time.Time{}
	v.lastErr = nil
}

func (v *ActiveExamView) Exam() *core.Examination {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.exam
}

func (v *ActiveExamView) Snapshot() ActiveExamSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	snap := ActiveExamSnapshot{Exam: v.exam, UpdatedAt: v.updatedAt, Error: errorText(v.lastErr)}
	if v.exam != nil {
		snap.Remaining = FormatRemaining(v.remaining)
		snap.Seconds = int64(v.remaining / time.Second)
	}
	return snap
}

func (v *ActiveExamView) launch(ctx context.Context) *core.PollHandle {
	return core.StartPoll(ctx, v.opts.poll("active_exam", core.DefaultActiveExamInterval), v.api.ActiveExamination, v.apply, v.fail)
}

func (v *ActiveExamView) launchClock(ctx context.Context) *core.PollHandle {
	cfg := v.opts.poll("countdown", v.countdown)
	cfg.Interval = v.countdown
	cfg.Observer = nil // local only, nothing worth counting
	return core.StartPoll(ctx, cfg,
		func(context.Context) (time.Time, error) { return v.now(), nil },
		v.tick, nil)
}

func (v *ActiveExamView) apply(exam *core.Examination) {
	v.mu.Lock()
	changed := !sameExam(v.exam, exam)
	v.exam = exam
	v.updatedAt = time.Now()
	v.lastErr = nil
	if changed {
		v.remaining = remainingFor(exam, v.now())
	}
	v.mu.Unlock()

	if changed {
		v.clock.restart(nil, v.launchClock)
	}
}

func (v *ActiveExamView) tick(now time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.remaining = remainingFor(v.exam, now)
}

func (v *ActiveExamView) fail(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lastErr = err
}

func remainingFor(exam *core.Examination, now time.Time) time.Duration {
	if exam == nil {
		return 0
	}
	return Remaining(exam.StartTime, exam.Duration(), now)
}

func sameExam(a, b *core.Examination) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID == b.ID && a.StartTime.Equal(b.StartTime) && a.DurationMinutes == b.DurationMinutes
}
