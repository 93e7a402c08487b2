package service

import (
	"math"
	"strings"
	"time"

	"github.com/sitekeep/adminauth/internal/repository"
)

type LoginAttemptResult struct {
	Locked            bool `json:"locked"`
	RemainingAttempts int  `json:"remainingAttempts"`
}

type AttemptStatus struct {
	Locked            bool       `json:"locked"`
	RemainingAttempts int        `json:"remainingAttempts"`
	RemainingLockTime int        `json:"remainingLockTime"`
	LockedUntil       *time.Time `json:"-"`
}

// applyFailedAttempt counts one failure against record. A failure outside the
// tracking window, or after a lock ran out, starts a new count at 1.
func applyFailedAttempt(record *repository.LockoutRecord, now time.Time, policy SecurityPolicy) LoginAttemptResult {
	if record.Attempts == 0 || record.Expired(now) || now.Sub(record.LastAttempt) > AttemptWindow {
		record.Attempts = 1
		record.LockedUntil = nil
	} else {
		record.Attempts++
	}

	record.LastAttempt = now

	if record.Attempts >= policy.MaxLoginAttempts {
		until := now.Add(policy.LockoutDuration())
		record.LockedUntil = &until
	}

	return LoginAttemptResult{
		Locked:            record.LockedUntil != nil,
		RemainingAttempts: max(0, policy.MaxLoginAttempts-record.Attempts),
	}
}

func remainingLockTime(record *repository.LockoutRecord, now time.Time) int {
	if record == nil || !record.IsLocked(now) {
		return 0
	}
	return max(0, int(math.Ceil(record.LockedUntil.Sub(now).Seconds())))
}

func attemptStatus(record *repository.LockoutRecord, now time.Time, policy SecurityPolicy) AttemptStatus {
	if record == nil {
		return AttemptStatus{RemainingAttempts: policy.MaxLoginAttempts}
	}

	if record.IsLocked(now) {
		until := *record.LockedUntil
		return AttemptStatus{
			Locked:            true,
			RemainingLockTime: remainingLockTime(record, now),
			LockedUntil:       &until,
		}
	}

	if record.Expired(now) || now.Sub(record.LastAttempt) > AttemptWindow {
		return AttemptStatus{RemainingAttempts: policy.MaxLoginAttempts}
	}

	return AttemptStatus{RemainingAttempts: max(0, policy.MaxLoginAttempts-record.Attempts)}
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
