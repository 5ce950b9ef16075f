package services

import (
	"context"
	"sync"
	"time"

	"github.com/lborres/bantay/core"
)

// AlertsSnapshot is what the alerts view currently displays
type AlertsSnapshot struct {
	Filter    core.AlertFilter `json:"filter"`
	Alerts    []core.Alert     `json:"alerts"`
	UpdatedAt time.Time        `json:"updatedAt"`
	Error     string           `json:"error,omitempty"` // last failed tick, cleared on success
}

// AlertsView polls the alert stream for the active filter. The confidence
// threshold is sent to the backend; the source is filtered locally.
type AlertsView struct {
	api   core.MonitoringAPI
	opts  ViewOptions
	limit int
	lv    liveView

	mu        sync.Mutex
	filter    core.AlertFilter
	alerts    []core.Alert
	updatedAt time.Time
	lastErr   error
}

func NewAlertsView(api core.MonitoringAPI, filter core.AlertFilter, opts ViewOptions) *AlertsView {
	if filter.Source == "" {
		filter.Source = core.SourceAll
	}
	return &AlertsView{
		api:    api,
		opts:   opts,
		limit:  core.DefaultAlertLimit,
		filter: filter,
	}
}

func (v *AlertsView) Start(ctx context.Context) {
	v.lv.start(ctx, nil, v.launch)
}

func (v *AlertsView) Stop() {
	v.lv.stop()
}

// Unmount stops the poll and drops the displayed alerts. The filter is kept.
func (v *AlertsView) Unmount() {
	v.lv.stop()
	v.mu.Lock()
	defer v.mu.Unlock()
	v.alerts = nil
	v.updatedAt = time.Time{}
	v.lastErr = nil
}

func (v *AlertsView) Filter() core.AlertFilter {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filter
}

// SetFilter validates f, clears the displayed set and restarts the poll
// against the new filter. An unchanged filter is a no-op.
func (v *AlertsView) SetFilter(f core.AlertFilter) error {
	if f.Source == "" {
		f.Source = core.SourceAll
	}
	if err := f.Validate(); err != nil {
		return err
	}
	if sameFilter(v.Filter(), f) {
		return nil
	}

	v.lv.restart(func() {
		v.mu.Lock()
		v.filter = f
		v.alerts = nil
		v.updatedAt = time.Time{}
		v.lastErr = nil
		v.mu.Unlock()
	}, v.launch)
	return nil
}

func (v *AlertsView) Snapshot() AlertsSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	alerts := make([]core.Alert, len(v.alerts))
	copy(alerts, v.alerts)
	return AlertsSnapshot{
		Filter:    v.filter,
		Alerts:    alerts,
		UpdatedAt: v.updatedAt,
		Error:     errorText(v.lastErr),
	}
}

func (v *AlertsView) launch(ctx context.Context) *core.PollHandle {
	return core.StartPoll(ctx, v.opts.poll("alerts", core.DefaultAlertsInterval), v.fetch, v.apply, v.fail)
}

func (v *AlertsView) fetch(ctx context.Context) ([]core.Alert, error) {
	filter := v.Filter()
	alerts, err := v.api.Alerts(ctx, filter.Query(v.limit))
	if err != nil {
		return nil, err
	}
	shown := make([]core.Alert, 0, len(alerts))
	for _, a := range alerts {
		if filter.Matches(a) {
			shown = append(shown, a)
		}
	}
	return shown, nil
}

func (v *AlertsView) apply(alerts []core.Alert) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.alerts = alerts
	v.updatedAt = time.Now()
	v.lastErr = nil
}

func (v *AlertsView) fail(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lastErr = err
}

func sameFilter(a, b core.AlertFilter) bool {
	if a.Confidence != b.Confidence || a.Source != b.Source {
		return false
	}
	if a.SessionID == nil || b.SessionID == nil {
		return a.SessionID == nil && b.SessionID == nil
	}
	return *a.SessionID == *b.SessionID
}
