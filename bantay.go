package bantay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lborres/bantay/adapters/memory"
	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/services"
)

// interfaces
type (
	Backend      = core.Backend
	MediaService = core.MediaService
	TokenStorage = core.TokenStorage
	Notifier     = core.Notifier
	Confirmer    = core.Confirmer
	PollObserver = core.PollObserver
)

// HTTPAdapter exposes a running dashboard over some HTTP framework
type HTTPAdapter interface {
	RegisterRoutes(b *Bantay) error
}

type (
	User           = core.User
	Examination    = core.Examination
	Alert          = core.Alert
	AlertFilter    = core.AlertFilter
	SessionState   = core.SessionState
	SessionConfig  = core.SessionConfig
	PollIntervals  = core.PollIntervals
	Credentials    = core.Credentials
	Registration   = core.Registration
	NewExamination = core.NewExamination
	FormResult     = services.FormResult
)

// Constructors & helpers (convenience re-exports)
var (
	DefaultSessionConfig = core.DefaultSessionConfig
	DefaultPollIntervals = core.DefaultPollIntervals
	DefaultAlertFilter   = core.DefaultAlertFilter
)

var (
	ErrTransport         = core.ErrTransport
	ErrMalformedResponse = core.ErrMalformedResponse
	ErrUnauthorized      = core.ErrUnauthorized
	ErrNotAuthenticated  = core.ErrNotAuthenticated
	ErrLoginFailed       = core.ErrLoginFailed
	ErrRegisterFailed    = core.ErrRegisterFailed
)

var (
	ErrBackendRequired     = core.ErrBackendRequired
	ErrNoActiveExamination = core.ErrNoActiveExamination
)

type Config struct {
	Backend Backend // required
	Media   MediaService
	Storage TokenStorage // defaults to in-memory storage
	HTTP    HTTPAdapter

	Logger   *zap.Logger
	Observer PollObserver
	Notifier Notifier

	SessionConfig  *SessionConfig
	Intervals      PollIntervals
	AlertFilter    *AlertFilter
	StatsSessionID int64
}

// Bantay wires the session store, the live views and the form flows of one dashboard
type Bantay struct {
	Backend Backend

	Session      *services.SessionStore
	Alerts       *services.AlertsView
	Feed         *services.FeedView
	Stats        *services.DashboardStatsView
	SessionStats *services.SessionStatsView
	ActiveExam   *services.ActiveExamView

	Summary   *services.SummaryService
	Media     *services.MediaControl
	Forms     *services.Forms
	Directory *services.Directory

	Logger *zap.Logger

	mu          sync.Mutex
	ctx         context.Context // set between Start and Stop
	mounted     bool
	unsubscribe func()
}

func New(config Config) (*Bantay, error) {
	if config.Backend == nil {
		return nil, ErrBackendRequired
	}

	// Set Defaults

	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}

	storage := config.Storage
	if storage == nil {
		storage = memory.New(0)
	}

	sessionConfig := config.SessionConfig
	if sessionConfig == nil {
		defaults := DefaultSessionConfig()
		sessionConfig = &defaults
	}

	filter := DefaultAlertFilter()
	if config.AlertFilter != nil {
		filter = *config.AlertFilter
	}
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("alert filter: %w", err)
	}

	statsSession := config.StatsSessionID
	if statsSession <= 0 {
		statsSession = services.DefaultStatsSessionID
	}

	intervals := config.Intervals.WithDefaults()
	view := func(name string, interval time.Duration) services.ViewOptions {
		return services.ViewOptions{
			Interval: interval,
			Logger:   log.Named(name),
			Observer: config.Observer,
		}
	}

	session := services.NewSessionStore(*sessionConfig, config.Backend, storage, log.Named("session"))

	b := &Bantay{
		Backend:      config.Backend,
		Session:      session,
		Alerts:       services.NewAlertsView(config.Backend, filter, view("alerts", intervals.Alerts)),
		Feed:         services.NewFeedView(config.Backend, config.Notifier, view("feed", intervals.Feed)),
		Stats:        services.NewDashboardStatsView(config.Backend, view("stats", intervals.Stats)),
		SessionStats: services.NewSessionStatsView(config.Backend, statsSession, view("session_stats", intervals.Stats)),
		ActiveExam:   services.NewActiveExamView(config.Backend, intervals.Countdown, view("exam", intervals.ActiveExam)),
		Summary:      services.NewSummaryService(config.Backend, log.Named("summary")),
		Media:        services.NewMediaControl(config.Media, log.Named("media")),
		Forms:        services.NewForms(config.Backend, session, log.Named("forms")),
		Directory:    services.NewDirectory(config.Backend, session),
		Logger:       log,
	}

	if config.HTTP != nil {
		if err := config.HTTP.RegisterRoutes(b); err != nil {
			return nil, err
		}
	}

	return b, nil
}

// Start loads the persisted session. The live views run only while the
// session is authenticated: they mount when it becomes Authenticated and
// unmount, dropping what they displayed, as soon as it leaves that state.
func (b *Bantay) Start(ctx context.Context) {
	b.mu.Lock()
	if b.unsubscribe == nil {
		b.ctx = ctx
		b.unsubscribe = b.Session.Subscribe(func(core.SessionState) { b.follow() })
	}
	b.mu.Unlock()

	b.follow()
	b.Session.Start(ctx)
}

// follow mounts or unmounts the views to match the current session state.
// It reads the state itself so out of order calls converge.
func (b *Bantay) follow() {
	authenticated := b.Session.State().Authenticated()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx == nil {
		return
	}
	switch {
	case authenticated && !b.mounted:
		b.mounted = true
		b.Logger.Debug("session authenticated, mounting live views")
		b.Alerts.Start(b.ctx)
		b.Feed.Start(b.ctx)
		b.Stats.Start(b.ctx)
		b.SessionStats.Start(b.ctx)
		b.ActiveExam.Start(b.ctx)
	case !authenticated && b.mounted:
		b.mounted = false
		b.Logger.Debug("session left authenticated state, unmounting live views")
		b.unmountLocked()
	}
}

func (b *Bantay) unmountLocked() {
	b.Alerts.Unmount()
	b.Feed.Unmount()
	b.Stats.Unmount()
	b.SessionStats.Unmount()
	b.ActiveExam.Unmount()
}

// Stop halts every poll; responses still in flight are discarded
func (b *Bantay) Stop() {
	b.mu.Lock()
	if b.unsubscribe != nil {
		b.unsubscribe()
		b.unsubscribe = nil
	}
	b.ctx = nil
	b.mounted = false
	b.mu.Unlock()

	// views may also have been started directly, without the session gate
	b.Alerts.Stop()
	b.Feed.Stop()
	b.Stats.Stop()
	b.SessionStats.Stop()
	b.ActiveExam.Stop()
	b.Session.Close()
}
