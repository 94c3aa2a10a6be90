package analytics

import (
	"errors"
	"sync"
	"time"

	"fitfunnel/api/models"
	"fitfunnel/api/utils"
)

var ErrEmptyUserID = errors.New("user id must not be empty")

// SessionManager owns the session identity. It is the only writer of the
// session id and user id.
type SessionManager struct {
	mu      sync.RWMutex
	session models.Session
	now     func() time.Time
	newID   func(time.Time) string
}

// NewSessionManager starts a fresh anonymous session.
func NewSessionManager(opts ...SessionOption) *SessionManager {
	m := &SessionManager{
		now:   time.Now,
		newID: utils.GenerateSessionID,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.session = models.Session{ID: m.newID(m.now())}
	return m
}

type SessionOption func(*SessionManager)

// WithSessionIDFunc overrides session id generation.
func WithSessionIDFunc(fn func(time.Time) string) SessionOption {
	return func(m *SessionManager) { m.newID = fn }
}

// WithSessionClock overrides the clock fed to id generation.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(m *SessionManager) { m.now = now }
}

func (m *SessionManager) Current() models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// Identify attaches userID to the current session. Repeating the same id is
// a no-op.
func (m *SessionManager) Identify(userID string) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	m.mu.Lock()
	m.session.UserID = userID
	m.mu.Unlock()
	return nil
}

// Reset replaces the session with a new id and no user.
func (m *SessionManager) Reset() models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = models.Session{ID: m.newID(m.now())}
	return m.session
}
