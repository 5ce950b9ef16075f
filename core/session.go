package core

import "time"

type SessionStatus string

const (
	StatusUnauthenticated SessionStatus = "unauthenticated"
	StatusResolving       SessionStatus = "resolving"
	StatusAuthenticated   SessionStatus = "authenticated"
	StatusInvalid         SessionStatus = "invalid"
)

// TokenStorageKey is the fixed key the bearer token is persisted under
const TokenStorageKey = "bantay.token"

const DefaultResolveTimeout = 3 * time.Second

type SessionConfig struct {
	// ResolveTimeout bounds how long Loading may stay true while the
	// identity lookup is pending. The lookup itself is not cancelled.
	ResolveTimeout time.Duration
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		ResolveTimeout: DefaultResolveTimeout,
	}
}

// SessionState is an immutable snapshot of the authentication session
//
// User is non-nil only when Status is StatusAuthenticated
type SessionState struct {
	Token     string        `json:"-"` // Never expose in JSON
	User      *User         `json:"user"`
	Status    SessionStatus `json:"status"`
	Loading   bool          `json:"loading"`
	ExpiresAt *time.Time    `json:"expiresAt,omitempty"`
}

func (s SessionState) Authenticated() bool {
	return s.Status == StatusAuthenticated && s.User != nil
}
