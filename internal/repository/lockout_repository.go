package repository

import (
	"context"
	"errors"
	"slices"
	"time"
)

// ErrStoreUnreadable is returned by strict repositories when the persisted
// lockout state cannot be decoded.
var ErrStoreUnreadable = errors.New("lockout store is unreadable")

// LockoutRecord tracks failed logins for one client key.
type LockoutRecord struct {
	Attempts        int        `json:"attempts"`
	LastAttempt     time.Time  `json:"lastAttempt"`
	LockedUntil     *time.Time `json:"lockedUntil,omitempty"`
	FailedUsernames []string   `json:"failedUsernames"`
}

// IsLocked reports whether the record refuses logins at now.
func (r *LockoutRecord) IsLocked(now time.Time) bool {
	return r.LockedUntil != nil && r.LockedUntil.After(now)
}

// Expired reports whether the record carries a lock that has run out.
func (r *LockoutRecord) Expired(now time.Time) bool {
	return r.LockedUntil != nil && !r.LockedUntil.After(now)
}

// AddUsername records a username, keeping the list unique.
func (r *LockoutRecord) AddUsername(username string) {
	if username == "" || slices.Contains(r.FailedUsernames, username) {
		return
	}
	r.FailedUsernames = append(r.FailedUsernames, username)
}

func (r *LockoutRecord) clone() *LockoutRecord {
	c := *r
	if r.LockedUntil != nil {
		t := *r.LockedUntil
		c.LockedUntil = &t
	}
	c.FailedUsernames = slices.Clone(r.FailedUsernames)
	if c.FailedUsernames == nil {
		c.FailedUsernames = []string{}
	}
	return &c
}

// LockoutSet maps a client key (usually an IP) to its record.
type LockoutSet map[string]*LockoutRecord

// Clone returns a deep copy of the set.
func (s LockoutSet) Clone() LockoutSet {
	c := make(LockoutSet, len(s))
	for key, record := range s {
		c[key] = record.clone()
	}
	return c
}

// Prune removes every record whose lock has run out and reports whether
// anything was removed.
func (s LockoutSet) Prune(now time.Time) bool {
	pruned := false
	for key, record := range s {
		if record == nil || record.Expired(now) {
			delete(s, key)
			pruned = true
		}
	}
	return pruned
}

// LockoutMutator changes the set in place and reports whether it did.
type LockoutMutator func(set LockoutSet) bool

// LockoutRepository persists lockout records. Update loads the full set,
// prunes expired locks, applies fn and writes the set back when either step
// changed it.
type LockoutRepository interface {
	Update(ctx context.Context, now time.Time, fn LockoutMutator) error
	Close() error
}

// load-prune-mutate, shared by the backends
func apply(set LockoutSet, now time.Time, fn LockoutMutator) bool {
	pruned := set.Prune(now)
	changed := fn(set)
	return pruned || changed
}
