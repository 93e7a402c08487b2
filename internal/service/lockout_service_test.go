package service_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sitekeep/adminauth/internal/repository"
	"github.com/sitekeep/adminauth/internal/service"

	"gotest.tools/v3/assert"
)

func setupLockoutService(t *testing.T, path string, strict bool, clock *fakeClock) (*service.LockoutService, *service.PolicyService) {
	t.Helper()
	policy := service.NewPolicyService()
	repo := repository.NewFileRepository(repository.FileRepositoryConfig{Path: path, Strict: strict})
	lockouts := service.NewLockoutService(service.LockoutServiceConfig{Strict: strict, Clock: clock.Now}, repo, policy)
	return lockouts, policy
}

func TestLockoutServiceRecordFailedAttempt(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	lockouts, _ := setupLockoutService(t, filepath.Join(t.TempDir(), "lockouts.json"), false, clock)

	for i := 1; i <= 4; i++ {
		result, err := lockouts.RecordFailedAttempt(ctx, "203.0.113.7", "Admin")
		assert.NilError(t, err)
		assert.Assert(t, !result.Locked)
		assert.Equal(t, 5-i, result.RemainingAttempts)
	}

	locked, err := lockouts.IsLocked(ctx, "203.0.113.7")
	assert.NilError(t, err)
	assert.Assert(t, !locked)

	result, err := lockouts.RecordFailedAttempt(ctx, "203.0.113.7", "root")
	assert.NilError(t, err)
	assert.DeepEqual(t, service.LoginAttemptResult{Locked: true, RemainingAttempts: 0}, result)

	locked, err = lockouts.IsLocked(ctx, "203.0.113.7")
	assert.NilError(t, err)
	assert.Assert(t, locked)

	remaining, err := lockouts.GetRemainingLockTime(ctx, "203.0.113.7")
	assert.NilError(t, err)
	assert.Equal(t, 900, remaining)

	// Other IPs are unaffected
	locked, err = lockouts.IsLocked(ctx, "198.51.100.1")
	assert.NilError(t, err)
	assert.Assert(t, !locked)

	// Usernames are lowercased and deduplicated
	set, err := lockouts.List(ctx)
	assert.NilError(t, err)
	assert.DeepEqual(t, []string{"admin", "root"}, set["203.0.113.7"].FailedUsernames)
}

func TestLockoutServiceDurability(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	path := filepath.Join(t.TempDir(), "lockouts.json")

	lockouts, _ := setupLockoutService(t, path, false, clock)
	for range 5 {
		_, err := lockouts.RecordFailedAttempt(ctx, "203.0.113.7", "admin")
		assert.NilError(t, err)
	}

	// A fresh instance over the same file sees the same state
	restarted, _ := setupLockoutService(t, path, false, clock)

	set, err := restarted.List(ctx)
	assert.NilError(t, err)

	record := set["203.0.113.7"]
	assert.Assert(t, record != nil)
	assert.Equal(t, 5, record.Attempts)
	assert.Assert(t, record.LockedUntil.Equal(clock.Now().Add(15*time.Minute)))

	locked, err := restarted.IsLocked(ctx, "203.0.113.7")
	assert.NilError(t, err)
	assert.Assert(t, locked)
}

func TestLockoutServicePrunesOnRead(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	path := filepath.Join(t.TempDir(), "lockouts.json")

	lockouts, _ := setupLockoutService(t, path, false, clock)
	for range 5 {
		_, err := lockouts.RecordFailedAttempt(ctx, "203.0.113.7", "admin")
		assert.NilError(t, err)
	}

	clock.Advance(15 * time.Minute)

	// Any read-triggering call prunes the expired lock
	locked, err := lockouts.IsLocked(ctx, "198.51.100.1")
	assert.NilError(t, err)
	assert.Assert(t, !locked)

	data, err := os.ReadFile(path)
	assert.NilError(t, err)

	var onDisk map[string]any
	assert.NilError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, 0, len(onDisk))

	// Counting starts over
	result, err := lockouts.RecordFailedAttempt(ctx, "203.0.113.7", "admin")
	assert.NilError(t, err)
	assert.Equal(t, 4, result.RemainingAttempts)
}

func TestLockoutServiceClear(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	lockouts, _ := setupLockoutService(t, filepath.Join(t.TempDir(), "lockouts.json"), false, clock)

	for range 5 {
		_, err := lockouts.RecordFailedAttempt(ctx, "203.0.113.7", "admin")
		assert.NilError(t, err)
	}

	assert.NilError(t, lockouts.ClearLockout(ctx, "203.0.113.7"))

	status, err := lockouts.Status(ctx, "203.0.113.7")
	assert.NilError(t, err)
	assert.DeepEqual(t, service.AttemptStatus{RemainingAttempts: 5}, status)

	// Clearing an unknown key is a no-op
	assert.NilError(t, lockouts.ClearLockout(ctx, "198.51.100.1"))
}

func TestLockoutServiceCorruptStore(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	path := filepath.Join(t.TempDir(), "lockouts.json")

	assert.NilError(t, os.WriteFile(path, []byte("\x00\x01 garbage"), 0600))

	// Fail open
	lockouts, _ := setupLockoutService(t, path, false, clock)

	locked, err := lockouts.IsLocked(ctx, "203.0.113.7")
	assert.NilError(t, err)
	assert.Assert(t, !locked)

	// Strict fails closed
	assert.NilError(t, os.WriteFile(path, []byte("\x00\x01 garbage"), 0600))
	strict, _ := setupLockoutService(t, path, true, clock)

	locked, err = strict.IsLocked(ctx, "203.0.113.7")
	assert.NilError(t, err)
	assert.Assert(t, locked)

	remaining, err := strict.GetRemainingLockTime(ctx, "203.0.113.7")
	assert.NilError(t, err)
	assert.Equal(t, 900, remaining)

	result, err := strict.RecordFailedAttempt(ctx, "203.0.113.7", "admin")
	assert.NilError(t, err)
	assert.Assert(t, result.Locked)

	_, err = strict.List(ctx)
	assert.ErrorIs(t, err, repository.ErrStoreUnreadable)
}

func TestLockoutServiceCancelledContext(t *testing.T) {
	clock := newFakeClock()
	lockouts, _ := setupLockoutService(t, filepath.Join(t.TempDir(), "lockouts.json"), true, clock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := lockouts.IsLocked(ctx, "203.0.113.7")
	assert.ErrorIs(t, err, context.Canceled)
}
