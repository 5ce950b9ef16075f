package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/pkg/crypto"
)

// SessionStore owns the bearer token and the identity resolved from it.
// It is the only writer of the persisted token.
type SessionStore struct {
	config  core.SessionConfig
	api     core.IdentityAPI
	storage core.TokenStorage
	log     *zap.Logger

	base   context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	token     string
	user      *core.User
	status    core.SessionStatus
	loading   bool
	expiresAt *time.Time
	gen       uint64 // bumped on every token change; stale resolutions compare against it
	changed   chan struct{}

	subs    map[int]func(core.SessionState)
	nextSub int
	pending []core.SessionState

	deliverMu sync.Mutex
	storageMu sync.Mutex
}

func NewSessionStore(config core.SessionConfig, api core.IdentityAPI, storage core.TokenStorage, log *zap.Logger) *SessionStore {
	if config.ResolveTimeout <= 0 {
		config.ResolveTimeout = core.DefaultResolveTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &SessionStore{
		config:  config,
		api:     api,
		storage: storage,
		log:     log,
		base:    base,
		cancel:  cancel,
		status:  core.StatusUnauthenticated,
		loading: true,
		changed: make(chan struct{}),
		subs:    make(map[int]func(core.SessionState)),
	}
}

// Start restores the persisted token, if any, and resolves it
func (s *SessionStore) Start(ctx context.Context) {
	token, err := s.storage.LoadToken(ctx)
	if err != nil {
		if !errors.Is(err, core.ErrTokenNotFound) {
			s.log.Warn("failed to load persisted token", zap.Error(err))
		}
		token = ""
	}
	s.setToken(token)
}

// Close abandons any identity lookup still in flight
func (s *SessionStore) Close() {
	s.cancel()
}

// Authenticate exchanges credentials for a token. On failure the session is
// left untouched and the error is returned for display.
func (s *SessionStore) Authenticate(ctx context.Context, creds core.Credentials) error {
	token, err := s.api.Login(ctx, creds)
	if err != nil {
		s.log.Info("login failed", zap.String("username", creds.Username), zap.Error(err))
		return err
	}
	if token == "" {
		return core.ErrLoginFailed
	}
	if s.holds(token) {
		s.log.Debug("login returned the current token, session kept", zap.String("token", crypto.Fingerprint(token)))
		return nil
	}
	s.setToken(token)
	return nil
}

// holds reports whether token is the one the session is already authenticated with
func (s *SessionStore) holds(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == core.StatusAuthenticated && crypto.SameToken(s.token, token)
}

func (s *SessionStore) Login(ctx context.Context, username, password string) bool {
	return s.Authenticate(ctx, core.Credentials{Username: username, Password: password}) == nil
}

// SignUp creates an account. It never logs the new account in.
func (s *SessionStore) SignUp(ctx context.Context, reg core.Registration) error {
	if err := s.api.Register(ctx, reg); err != nil {
		s.log.Info("registration failed", zap.String("username", reg.Username), zap.Error(err))
		return err
	}
	return nil
}

func (s *SessionStore) Register(ctx context.Context, username, email, password string, role core.Role) bool {
	return s.SignUp(ctx, core.Registration{Username: username, Email: email, Password: password, Role: role}) == nil
}

// Logout clears the token and its persisted copy before returning
func (s *SessionStore) Logout() {
	s.setToken("")
}

// Invalidate drops a token the backend rejected on a protected request
func (s *SessionStore) Invalidate(reason error) {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()
	s.reject(gen, reason)
}

// reject publishes a transient Invalid state, then clears the token of
// generation gen. A newer token is left alone.
func (s *SessionStore) reject(gen uint64, reason error) {
	s.mu.Lock()
	if s.gen != gen || s.token == "" {
		s.mu.Unlock()
		return
	}
	s.log.Info("session invalidated", zap.String("token", crypto.Fingerprint(s.token)), zap.Error(reason))
	s.status = core.StatusInvalid
	s.loading = false
	s.user = nil
	s.publishLocked()

	s.gen++
	cleared := s.gen
	s.token = ""
	s.expiresAt = nil
	s.status = core.StatusUnauthenticated
	s.publishLocked()
	s.mu.Unlock()

	s.persist(cleared, "")
	s.flush()
}

// Refresh resolves the current token again, e.g. after a transport failure
func (s *SessionStore) Refresh() {
	if token := s.Token(); token != "" {
		s.setToken(token)
	}
}

// Token returns the current bearer token or "" when there is none
func (s *SessionStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *SessionStore) State() core.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Subscribe registers fn for every state change, delivered in order.
// The returned func removes the subscription.
func (s *SessionStore) Subscribe(fn func(core.SessionState)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Wait blocks until the session is no longer loading
func (s *SessionStore) Wait(ctx context.Context) (core.SessionState, error) {
	for {
		s.mu.Lock()
		if !s.loading {
			state := s.stateLocked()
			s.mu.Unlock()
			return state, nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return s.State(), ctx.Err()
		}
	}
}

func (s *SessionStore) setToken(token string) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.token = token
	s.user = nil
	s.expiresAt = nil
	if exp, ok := crypto.TokenExpiry(token); ok {
		s.expiresAt = &exp
	}
	if token == "" {
		s.status = core.StatusUnauthenticated
		s.loading = false
	} else {
		s.status = core.StatusResolving
		s.loading = true
	}
	s.publishLocked()
	s.mu.Unlock()

	s.persist(gen, token)
	s.flush()

	if token != "" {
		go s.resolve(gen, token)
	}
}

func (s *SessionStore) resolve(gen uint64, token string) {
	timer := time.AfterFunc(s.config.ResolveTimeout, func() {
		s.mu.Lock()
		if s.gen != gen || !s.loading {
			s.mu.Unlock()
			return
		}
		s.log.Warn("identity lookup timed out", zap.Duration("timeout", s.config.ResolveTimeout))
		s.loading = false
		s.status = core.StatusUnauthenticated
		s.publishLocked()
		s.mu.Unlock()
		s.flush()
	})

	user, err := s.api.Me(s.base, token)
	timer.Stop()

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}

	switch {
	case err == nil && user != nil:
		s.user = user
		s.status = core.StatusAuthenticated
		s.loading = false
		s.publishLocked()
		s.mu.Unlock()
		s.log.Debug("session resolved", zap.String("username", user.Username), zap.String("role", string(user.Role)))
		s.flush()

	case err != nil && core.IsTransport(err):
		// keep the token; the next Start or Refresh retries
		s.status = core.StatusUnauthenticated
		s.loading = false
		s.publishLocked()
		s.mu.Unlock()
		s.log.Warn("identity lookup failed", zap.String("token", crypto.Fingerprint(token)), zap.Error(err))
		s.flush()

	default:
		s.mu.Unlock()
		if err == nil {
			err = core.ErrUnauthorized
		}
		s.reject(gen, err)
	}
}

func (s *SessionStore) persist(gen uint64, token string) {
	s.storageMu.Lock()
	defer s.storageMu.Unlock()

	s.mu.Lock()
	current := s.gen == gen
	s.mu.Unlock()
	if !current {
		return
	}

	ctx := context.Background()
	var err error
	if token == "" {
		err = s.storage.ClearToken(ctx)
	} else {
		err = s.storage.SaveToken(ctx, token)
	}
	if err != nil {
		s.log.Error("failed to persist token", zap.Bool("clear", token == ""), zap.Error(err))
	}
}

func (s *SessionStore) stateLocked() core.SessionState {
	return core.SessionState{
		Token:     s.token,
		User:      s.user,
		Status:    s.status,
		Loading:   s.loading,
		ExpiresAt: s.expiresAt,
	}
}

func (s *SessionStore) publishLocked() {
	s.pending = append(s.pending, s.stateLocked())
	close(s.changed)
	s.changed = make(chan struct{})
}

// flush delivers queued states to subscribers. Whoever holds deliverMu
// drains the queue, so nested or concurrent calls just return.
func (s *SessionStore) flush() {
	for {
		if !s.deliverMu.TryLock() {
			return
		}
		for {
			s.mu.Lock()
			batch := s.pending
			s.pending = nil
			subs := make([]func(core.SessionState), 0, len(s.subs))
			for _, fn := range s.subs {
				subs = append(subs, fn)
			}
			s.mu.Unlock()

			if len(batch) == 0 {
				break
			}
			for _, state := range batch {
				for _, fn := range subs {
					fn(state)
				}
			}
		}
		s.deliverMu.Unlock()

		s.mu.Lock()
		empty := len(s.pending) == 0
		s.mu.Unlock()
		if empty {
			return
		}
	}
}
