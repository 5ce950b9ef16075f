package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lborres/bantay/core"
)

// DefaultStatsSessionID is the session the stats panel shows until another is selected
const DefaultStatsSessionID int64 = 1

type DashboardStatsSnapshot struct {
	core.DashboardStats
	UpdatedAt time.Time `json:"updatedAt"`
	Error     string    `json:"error,omitempty"`
}

// statsUpdate carries whichever sub-fetches succeeded in one tick
type statsUpdate struct {
	students    *int
	examKnown   bool
	exam        *core.Examination
	sessionStat *core.SessionStats
}

// DashboardStatsView merges three independent fetches into the headline
// counters. Each part updates on its own; a tick fails only when all do.
type DashboardStatsView struct {
	api  core.MonitoringAPI
	opts ViewOptions
	lv   liveView

	mu        sync.Mutex
	stats     core.DashboardStats
	updatedAt time.Time
	lastErr   error
}

func NewDashboardStatsView(api core.MonitoringAPI, opts ViewOptions) *DashboardStatsView {
	return &DashboardStatsView{api: api, opts: opts}
}

func (v *DashboardStatsView) Start(ctx context.Context) {
	v.lv.start(ctx, nil, v.launch)
}

func (v *DashboardStatsView) Stop() {
	v.lv.stop()
}

func (v *DashboardStatsView) Unmount() {
	v.lv.stop()
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stats = core.DashboardStats{}
	v.updatedAt = time.Time{}
	v.lastErr = nil
}

func (v *DashboardStatsView) Snapshot() DashboardStatsSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return DashboardStatsSnapshot{DashboardStats: v.stats, UpdatedAt: v.updatedAt, Error: errorText(v.lastErr)}
}

func (v *DashboardStatsView) launch(ctx context.Context) *core.PollHandle {
	return core.StartPoll(ctx, v.opts.poll("dashboard_stats", core.DefaultStatsInterval), v.fetch, v.apply, v.fail)
}

func (v *DashboardStatsView) fetch(ctx context.Context) (statsUpdate, error) {
	var u statsUpdate
	var errs []error

	if count, err := v.api.UserCount(ctx, core.RoleStudent); err != nil {
		errs = append(errs, err)
	} else {
		u.students = &count
	}

	exam, err := v.api.ActiveExamination(ctx)
	if err != nil {
		errs = append(errs, err)
	} else {
		u.examKnown = true
		u.exam = exam
	}

	if exam != nil {
		if st, err := v.api.SessionStats(ctx, exam.ID); err != nil {
			errs = append(errs, err)
		} else {
			u.sessionStat = st
		}
	}

	if u.students == nil && !u.examKnown {
		return u, errors.Join(errs...)
	}
	if len(errs) > 0 {
		v.opts.logger().Debug("dashboard stats partially updated", zap.Error(errors.Join(errs...)))
	}
	return u, nil
}

func (v *DashboardStatsView) apply(u statsUpdate) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if u.students != nil {
		v.stats.TotalStudents = *u.students
	}
	if u.examKnown {
		switch {
		case u.exam == nil:
			v.stats.ActiveSessions = 0
		case u.sessionStat != nil:
			v.stats.ActiveSessions = 1
			v.stats.DetectedViolations = u.sessionStat.TotalEvents
			v.stats.CriticalAlerts = u.sessionStat.HighConfidenceEvents
		}
	}
	v.updatedAt = time.Now()
	v.lastErr = nil
}

func (v *DashboardStatsView) fail(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lastErr = err
}

type SessionStatsSnapshot struct {
	SessionID int64              `json:"sessionId"`
	Stats     *core.SessionStats `json:"stats"`
	UpdatedAt time.Time          `json:"updatedAt"`
	Error     string             `json:"error,omitempty"`
}

// SessionStatsView polls the statistics of one examination session
type SessionStatsView struct {
	api  core.MonitoringAPI
	opts ViewOptions
	lv   liveView

	mu        sync.Mutex
	sessionID int64
	stats     *core.SessionStats
	updatedAt time.Time
	lastErr   error
}

func NewSessionStatsView(api core.MonitoringAPI, sessionID int64, opts ViewOptions) *SessionStatsView {
	if sessionID <= 0 {
		sessionID = DefaultStatsSessionID
	}
	return &SessionStatsView{api: api, opts: opts, sessionID: sessionID}
}

func (v *SessionStatsView) Start(ctx context.Context) {
	v.lv.start(ctx, nil, v.launch)
}

func (v *SessionStatsView) Stop() {
	v.lv.stop()
}

// Unmount stops the poll and drops the stats; the selected session is kept
func (v *SessionStatsView) Unmount() {
	v.lv.stop()
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stats = nil
	v.updatedAt = time.Time{}
	v.lastErr = nil
}

func (v *SessionStatsView) SessionID() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sessionID
}

// SetSession switches the polled session; the previous stats are dropped
func (v *SessionStatsView) SetSession(id int64) {
	if id <= 0 || id == v.SessionID() {
		return
	}
	v.lv.restart(func() {
		v.mu.Lock()
		v.sessionID = id
		v.stats = nil
		v.updatedAt = time.Time{}
		v.lastErr = nil
		v.mu.Unlock()
	}, v.launch)
}

func (v *SessionStatsView) Snapshot() SessionStatsSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return SessionStatsSnapshot{SessionID: v.sessionID, Stats: v.stats, UpdatedAt: v.updatedAt, Error: errorText(v.lastErr)}
}

func (v *SessionStatsView) launch(ctx context.Context) *core.PollHandle {
	id := v.SessionID()
	return core.StartPoll(ctx, v.opts.poll("session_stats", core.DefaultStatsInterval),
		func(ctx context.Context) (*core.SessionStats, error) {
			return v.api.SessionStats(ctx, id)
		},
		v.apply, v.fail)
}

func (v *SessionStatsView) apply(st *core.SessionStats) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stats = st
	v.updatedAt = time.Now()
	v.lastErr = nil
}

func (v *SessionStatsView) fail(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lastErr = err
}
