package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lborres/bantay/core"
)

type FeedSnapshot struct {
	Exam          *core.Examination `json:"exam"`
	Events        []core.Alert      `json:"events"`
	LatestID      *int64            `json:"latestId,omitempty"`
	Notifications int               `json:"notifications"`
	UpdatedAt     time.Time         `json:"updatedAt"`
	Error         string            `json:"error,omitempty"`
}

type feedResult struct {
	exam   *core.Examination
	events []core.Alert
}

// FeedView is the live violation feed. It scopes the alert query to the
// active examination and fires the notifier when a new event reaches the
// top of the list.
type FeedView struct {
	api      core.MonitoringAPI
	notifier core.Notifier
	opts     ViewOptions
	limit    int
	lv       liveView

	mu            sync.Mutex
	ctx           context.Context
	exam          *core.Examination
	events        []core.Alert
	lastID        *int64
	notifications int
	updatedAt     time.Time
	lastErr       error
}

func NewFeedView(api core.MonitoringAPI, notifier core.Notifier, opts ViewOptions) *FeedView {
	return &FeedView{
		api:      api,
		notifier: notifier,
		opts:     opts,
		limit:    core.DefaultFeedLimit,
	}
}

// Start mounts the feed. The tracked event id is forgotten, so the first
// poll after mount never notifies.
func (v *FeedView) Start(ctx context.Context) {
	v.lv.start(ctx, func() {
		v.mu.Lock()
		v.ctx = ctx
		v.lastID = nil
		v.mu.Unlock()
	}, v.launch)
}

func (v *FeedView) Stop() {
	v.lv.stop()
}

// Unmount stops the poll and forgets everything the feed displayed
func (v *FeedView) Unmount() {
	v.lv.stop()
	v.mu.Lock()
	defer v.mu.Unlock()
	v.exam = nil
	v.events = nil
	v.lastID = nil
	v.updatedAt = time.Time{}
	v.lastErr = nil
}

func (v *FeedView) Snapshot() FeedSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	events := make([]core.Alert, len(v.events))
	copy(events, v.events)
	snap := FeedSnapshot{
		Exam:          v.exam,
		Events:        events,
		Notifications: v.notifications,
		UpdatedAt:     v.updatedAt,
		Error:         errorText(v.lastErr),
	}
	if v.lastID != nil {
		id := *v.lastID
		snap.LatestID = &id
	}
	return snap
}

func (v *FeedView) launch(ctx context.Context) *core.PollHandle {
	return core.StartPoll(ctx, v.opts.poll("feed", core.DefaultFeedInterval), v.fetch, v.apply, v.fail)
}

func (v *FeedView) fetch(ctx context.Context) (feedResult, error) {
	// an unreachable backend fails the tick; any other answer falls back
	// to the unscoped feed
	exam, err := v.api.ActiveExamination(ctx)
	if err != nil {
		if core.IsTransport(err) {
			return feedResult{}, err
		}
		v.opts.logger().Debug("active examination unavailable, feed unscoped", zap.Error(err))
		exam = nil
	}

	q := core.AlertQuery{Limit: v.limit}
	if exam != nil {
		id := exam.ID
		q.SessionID = &id
	}
	events, err := v.api.Alerts(ctx, q)
	if err != nil {
		return feedResult{}, err
	}
	return feedResult{exam: exam, events: events}, nil
}

func (v *FeedView) apply(r feedResult) {
	v.mu.Lock()
	var fire *core.Alert
	if len(r.events) > 0 {
		newest := r.events[0]
		if v.lastID != nil && *v.lastID != newest.EventID {
			fire = &newest
			v.notifications++
		}
		id := newest.EventID
		v.lastID = &id
	}
	v.exam = r.exam
	v.events = r.events
	v.updatedAt = time.Now()
	v.lastErr = nil
	ctx := v.ctx
	v.mu.Unlock()

	if fire != nil && v.notifier != nil {
		v.notifier.Notify(ctx, *fire)
	}
}

func (v *FeedView) fail(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lastErr = err
}
