package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lborres/bantay/core"
)

// ViewOptions configures the schedule of one live view
type ViewOptions struct {
	Interval time.Duration
	Logger   *zap.Logger
	Observer core.PollObserver
}

func (o ViewOptions) poll(name string, fallback time.Duration) core.PollConfig {
	interval := o.Interval
	if interval <= 0 {
		interval = fallback
	}
	return core.PollConfig{Name: name, Interval: interval, Logger: o.logger(), Observer: o.Observer}
}

func (o ViewOptions) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// liveView owns the single poll handle of a view. Its lock serializes
// lifecycle changes only and is never taken by poll callbacks, so stopping
// a handle while holding it cannot deadlock with a result being applied.
type liveView struct {
	mu     sync.Mutex
	ctx    context.Context
	handle *core.PollHandle
}

// start launches the schedule unless one is already running.
// reset runs first and may be nil.
func (lv *liveView) start(ctx context.Context, reset func(), launch func(context.Context) *core.PollHandle) {
	lv.mu.Lock()
	defer lv.mu.Unlock()
	if lv.handle != nil {
		return
	}
	if reset != nil {
		reset()
	}
	lv.ctx = ctx
	lv.handle = launch(ctx)
}

// restart stops the current schedule, runs reset, and launches a
// replacement when the view is started. The old handle is stopped before
// the new one exists.
func (lv *liveView) restart(reset func(), launch func(context.Context) *core.PollHandle) {
	lv.mu.Lock()
	defer lv.mu.Unlock()
	lv.handle.Stop()
	lv.handle = nil
	if reset != nil {
		reset()
	}
	if lv.ctx != nil {
		lv.handle = launch(lv.ctx)
	}
}

func (lv *liveView) stop() {
	lv.mu.Lock()
	defer lv.mu.Unlock()
	lv.handle.Stop()
	lv.handle = nil
	lv.ctx = nil
}

func (lv *liveView) running() bool {
	lv.mu.Lock()
	defer lv.mu.Unlock()
	return lv.handle != nil
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
