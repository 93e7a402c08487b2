package service

import (
	"context"
	"errors"
	"time"

	"github.com/sitekeep/adminauth/internal/repository"
	"github.com/sitekeep/adminauth/internal/utils/tlog"
)

type LockoutServiceConfig struct {
	// Strict treats an unreadable store as locked
	Strict bool
	// Clock defaults to time.Now
	Clock func() time.Time
}

// LockoutService tracks failed logins per client IP in a persisted
// repository. Every call reloads and prunes the stored set first.
type LockoutService struct {
	config LockoutServiceConfig
	repo   repository.LockoutRepository
	policy *PolicyService
	now    func() time.Time
}

func NewLockoutService(config LockoutServiceConfig, repo repository.LockoutRepository, policy *PolicyService) *LockoutService {
	now := config.Clock
	if now == nil {
		now = time.Now
	}
	return &LockoutService{
		config: config,
		repo:   repo,
		policy: policy,
		now:    now,
	}
}

func (ls *LockoutService) RecordFailedAttempt(ctx context.Context, ip string, username string) (LoginAttemptResult, error) {
	var result LoginAttemptResult
	policy := ls.policy.Get()
	now := ls.now()

	err := ls.repo.Update(ctx, now, func(set repository.LockoutSet) bool {
		record, ok := set[ip]
		if !ok {
			record = &repository.LockoutRecord{FailedUsernames: []string{}}
			set[ip] = record
		}
		result = applyFailedAttempt(record, now, policy)
		record.AddUsername(normalizeKey(username))
		return true
	})

	if err != nil {
		if err := ls.storeFailure("record", err); err != nil {
			return LoginAttemptResult{}, err
		}
		if ls.config.Strict {
			return LoginAttemptResult{Locked: true}, nil
		}
		return LoginAttemptResult{RemainingAttempts: max(0, policy.MaxLoginAttempts-1)}, nil
	}

	return result, nil
}

func (ls *LockoutService) IsLocked(ctx context.Context, ip string) (bool, error) {
	status, err := ls.Status(ctx, ip)
	if err != nil {
		return false, err
	}
	return status.Locked, nil
}

func (ls *LockoutService) GetRemainingLockTime(ctx context.Context, ip string) (int, error) {
	status, err := ls.Status(ctx, ip)
	if err != nil {
		return 0, err
	}
	return status.RemainingLockTime, nil
}

func (ls *LockoutService) Status(ctx context.Context, ip string) (AttemptStatus, error) {
	var status AttemptStatus
	policy := ls.policy.Get()
	now := ls.now()

	err := ls.repo.Update(ctx, now, func(set repository.LockoutSet) bool {
		status = attemptStatus(set[ip], now, policy)
		return false
	})

	if err != nil {
		if err := ls.storeFailure("status", err); err != nil {
			return AttemptStatus{}, err
		}
		if ls.config.Strict {
			until := now.Add(policy.LockoutDuration())
			return AttemptStatus{Locked: true, RemainingLockTime: int(policy.LockoutDuration().Seconds()), LockedUntil: &until}, nil
		}
		return AttemptStatus{RemainingAttempts: policy.MaxLoginAttempts}, nil
	}

	return status, nil
}

func (ls *LockoutService) ClearLockout(ctx context.Context, ip string) error {
	return ls.repo.Update(ctx, ls.now(), func(set repository.LockoutSet) bool {
		if _, ok := set[ip]; !ok {
			return false
		}
		delete(set, ip)
		return true
	})
}

// List returns a copy of every live record, keyed by IP.
func (ls *LockoutService) List(ctx context.Context) (repository.LockoutSet, error) {
	var out repository.LockoutSet

	err := ls.repo.Update(ctx, ls.now(), func(set repository.LockoutSet) bool {
		out = set.Clone()
		return false
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}

// storeFailure logs an unavailable store and returns err only when the
// caller went away, in which case there is no decision to make.
func (ls *LockoutService) storeFailure(operation string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	tlog.App.Error().Err(err).Str("operation", operation).Bool("strict", ls.config.Strict).Msg("Lockout store unavailable")
	return nil
}
