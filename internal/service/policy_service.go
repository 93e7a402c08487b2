package service

import (
	"math"
	"sync"
	"time"
)

const (
	// AttemptWindow is how long a failure counts towards a lockout.
	AttemptWindow = time.Hour
	// SessionMaxLifetime caps a session regardless of activity.
	SessionMaxLifetime = 7 * 24 * time.Hour
)

const (
	DefaultSessionTimeout   = 60
	DefaultMaxLoginAttempts = 5
	DefaultLockoutDuration  = 15
)

type policyRange struct {
	min, max float64
}

var (
	sessionTimeoutRange   = policyRange{5, 1440}
	maxLoginAttemptsRange = policyRange{3, 10}
	lockoutDurationRange  = policyRange{5, 120}
)

type SecurityPolicy struct {
	SessionTimeoutMinutes  int `json:"sessionTimeout"`
	MaxLoginAttempts       int `json:"maxLoginAttempts"`
	LockoutDurationMinutes int `json:"lockoutDuration"`
}

func DefaultSecurityPolicy() SecurityPolicy {
	return SecurityPolicy{
		SessionTimeoutMinutes:  DefaultSessionTimeout,
		MaxLoginAttempts:       DefaultMaxLoginAttempts,
		LockoutDurationMinutes: DefaultLockoutDuration,
	}
}

func (p SecurityPolicy) SessionTimeout() time.Duration {
	return time.Duration(p.SessionTimeoutMinutes) * time.Minute
}

func (p SecurityPolicy) LockoutDuration() time.Duration {
	return time.Duration(p.LockoutDurationMinutes) * time.Minute
}

// SettingsUpdate carries the tunables of a settings write. Nil fields are
// left untouched.
type SettingsUpdate struct {
	SessionTimeout   *float64 `json:"sessionTimeout"`
	MaxLoginAttempts *float64 `json:"maxLoginAttempts"`
	LockoutDuration  *float64 `json:"lockoutDuration"`
}

// PolicyService holds the process-wide security policy. Changes apply to
// checks made after the update, never to locks already computed.
type PolicyService struct {
	policy SecurityPolicy
	mutex  sync.RWMutex
}

func NewPolicyService() *PolicyService {
	return &PolicyService{
		policy: DefaultSecurityPolicy(),
	}
}

func (ps *PolicyService) Get() SecurityPolicy {
	ps.mutex.RLock()
	defer ps.mutex.RUnlock()
	return ps.policy
}

// Update applies every field that is a finite number within its range and
// silently keeps the prior value for anything else.
func (ps *PolicyService) Update(update SettingsUpdate) SecurityPolicy {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	ps.policy.SessionTimeoutMinutes = pick(update.SessionTimeout, sessionTimeoutRange, ps.policy.SessionTimeoutMinutes)
	ps.policy.MaxLoginAttempts = pick(update.MaxLoginAttempts, maxLoginAttemptsRange, ps.policy.MaxLoginAttempts)
	ps.policy.LockoutDurationMinutes = pick(update.LockoutDuration, lockoutDurationRange, ps.policy.LockoutDurationMinutes)

	return ps.policy
}

func pick(value *float64, r policyRange, prior int) int {
	if value == nil || math.IsNaN(*value) || math.IsInf(*value, 0) {
		return prior
	}
	if *value < r.min || *value > r.max {
		return prior
	}
	return int(math.Trunc(*value))
}

// Float is a helper for building a SettingsUpdate from integers.
func Float(v int) *float64 {
	f := float64(v)
	return &f
}
