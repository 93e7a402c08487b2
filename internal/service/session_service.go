package service

import (
	"sync"
	"time"

	"github.com/sitekeep/adminauth/internal/config"
	"github.com/sitekeep/adminauth/internal/repository"
)

type Session struct {
	Token        string
	Username     string
	Email        string
	Provider     string
	CreatedAt    time.Time
	LastActivity time.Time
}

type SessionServiceConfig struct {
	// Clock defaults to time.Now
	Clock func() time.Time
}

// SessionService keeps sessions and per-username login attempts in memory.
// Nothing survives a restart.
type SessionService struct {
	policy   *PolicyService
	now      func() time.Time
	sessions map[string]*Session
	attempts map[string]*repository.LockoutRecord
	mutex    sync.RWMutex
}

func NewSessionService(config SessionServiceConfig, policy *PolicyService) *SessionService {
	now := config.Clock
	if now == nil {
		now = time.Now
	}
	return &SessionService{
		policy:   policy,
		now:      now,
		sessions: make(map[string]*Session),
		attempts: make(map[string]*repository.LockoutRecord),
	}
}

// CreateSession stores a local provider session for username. It does not
// touch login attempts, callers clear them after checking the lock.
func (ss *SessionService) CreateSession(username string, token string) {
	ss.CreateSessionFor(Identity{
		Username: username,
		Provider: config.ProviderLocal,
	}, token)
}

func (ss *SessionService) CreateSessionFor(identity Identity, token string) {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	now := ss.now()

	ss.sessions[token] = &Session{
		Token:        token,
		Username:     identity.Username,
		Email:        identity.Email,
		Provider:     identity.Provider,
		CreatedAt:    now,
		LastActivity: now,
	}
}

// GetSession returns a copy of a valid session and refreshes its activity.
// Invalid sessions are removed and reported as absent.
func (ss *SessionService) GetSession(token string) (Session, bool) {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	session, ok := ss.validate(token)
	if !ok {
		return Session{}, false
	}

	return *session, true
}

func (ss *SessionService) IsValidSession(token string) bool {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	_, ok := ss.validate(token)
	return ok
}

// validate must be called with the write lock held
func (ss *SessionService) validate(token string) (*Session, bool) {
	session, ok := ss.sessions[token]
	if !ok {
		return nil, false
	}

	now := ss.now()

	if !ss.alive(session, now) {
		delete(ss.sessions, token)
		return nil, false
	}

	session.LastActivity = now
	return session, true
}

func (ss *SessionService) alive(session *Session, now time.Time) bool {
	timeout := ss.policy.Get().SessionTimeout()
	return now.Sub(session.LastActivity) < timeout && now.Sub(session.CreatedAt) < SessionMaxLifetime
}

func (ss *SessionService) DeleteSession(token string) {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()
	delete(ss.sessions, token)
}

// CleanupExpired drops every session that is no longer valid and returns how
// many were removed. Attempt records that the next failure would reset
// anyway are dropped as well.
func (ss *SessionService) CleanupExpired() int {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	now := ss.now()
	removed := 0

	for token, session := range ss.sessions {
		if !ss.alive(session, now) {
			delete(ss.sessions, token)
			removed++
		}
	}

	for key, record := range ss.attempts {
		if record.IsLocked(now) {
			continue
		}
		if record.Expired(now) || now.Sub(record.LastAttempt) > AttemptWindow {
			delete(ss.attempts, key)
		}
	}

	return removed
}

func (ss *SessionService) Count() int {
	ss.mutex.RLock()
	defer ss.mutex.RUnlock()
	return len(ss.sessions)
}

// TrackedAttempts returns how many usernames have attempt records.
func (ss *SessionService) TrackedAttempts() int {
	ss.mutex.RLock()
	defer ss.mutex.RUnlock()
	return len(ss.attempts)
}

func (ss *SessionService) RecordFailedLogin(username string) LoginAttemptResult {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	key := normalizeKey(username)

	record, ok := ss.attempts[key]
	if !ok {
		record = &repository.LockoutRecord{}
		ss.attempts[key] = record
	}

	return applyFailedAttempt(record, ss.now(), ss.policy.Get())
}

func (ss *SessionService) ClearLoginAttempts(username string) {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()
	delete(ss.attempts, normalizeKey(username))
}

// IsAccountLocked does not clear expired locks, the next failure does.
func (ss *SessionService) IsAccountLocked(username string) bool {
	ss.mutex.RLock()
	defer ss.mutex.RUnlock()

	record, ok := ss.attempts[normalizeKey(username)]
	return ok && record.IsLocked(ss.now())
}

func (ss *SessionService) GetRemainingLockTime(username string) int {
	ss.mutex.RLock()
	defer ss.mutex.RUnlock()
	return remainingLockTime(ss.attempts[normalizeKey(username)], ss.now())
}

func (ss *SessionService) AttemptStatus(username string) AttemptStatus {
	ss.mutex.RLock()
	defer ss.mutex.RUnlock()
	return attemptStatus(ss.attempts[normalizeKey(username)], ss.now(), ss.policy.Get())
}

func (ss *SessionService) UpdateSettings(update SettingsUpdate) SecurityPolicy {
	return ss.policy.Update(update)
}

func (ss *SessionService) Policy() SecurityPolicy {
	return ss.policy.Get()
}
