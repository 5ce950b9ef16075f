package core

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PollConfig configures one polling schedule
type PollConfig struct {
	Name     string
	Interval time.Duration
	Logger   *zap.Logger
	Observer PollObserver
}

// PollHandle owns one running schedule. Every view keeps exactly one per
// dependency key and stops it before starting its replacement.
type PollHandle struct {
	cancel context.CancelFunc
	done   chan struct{}

	// mu serializes result application and guards stopped; once Stop
	// returns no in-flight tick can reach onResult or onError
	mu      sync.Mutex
	stopped bool
}

// StartPoll invokes fetch immediately and then on every interval tick.
//
// Ticks follow the wall clock: a slow fetch never delays the next tick, so
// fetches may overlap. Results are applied in arrival order. A failed tick is
// logged and handed to onError (which may be nil); it never stops the schedule.
func StartPoll[T any](parent context.Context, cfg PollConfig, fetch func(context.Context) (T, error), onResult func(T), onError func(error)) *PollHandle {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(parent)
	h := &PollHandle{cancel: cancel, done: make(chan struct{})}

	var inflight sync.WaitGroup
	tick := func() {
		defer inflight.Done()
		started := time.Now()
		value, err := fetch(ctx)
		latency := time.Since(started)

		h.mu.Lock()
		defer h.mu.Unlock()

		if h.stopped || ctx.Err() != nil {
			observe(cfg, TickDiscarded, latency)
			return
		}
		if err != nil {
			observe(cfg, TickFailure, latency)
			log.Warn("poll tick failed", zap.String("view", cfg.Name), zap.Duration("latency", latency), zap.Error(err))
			if onError != nil {
				onError(err)
			}
			return
		}
		observe(cfg, TickSuccess, latency)
		onResult(value)
	}

	inflight.Add(1)
	go tick()

	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer func() {
			ticker.Stop()
			inflight.Wait()
			close(h.done)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				inflight.Add(1)
				go tick()
			}
		}
	}()

	return h
}

// Stop ends the schedule permanently. In-flight fetches are cancelled and
// whatever they return is discarded.
func (h *PollHandle) Stop() {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
	h.cancel()
}

// Done is closed once the schedule has stopped and every in-flight tick returned
func (h *PollHandle) Done() <-chan struct{} {
	return h.done
}

func observe(cfg PollConfig, outcome TickOutcome, latency time.Duration) {
	if cfg.Observer != nil {
		cfg.Observer.ObserveTick(cfg.Name, outcome, latency)
	}
}
