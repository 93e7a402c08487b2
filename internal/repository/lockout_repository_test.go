package repository_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sitekeep/adminauth/internal/repository"

	"gotest.tools/v3/assert"
)

var baseTime = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

type backend struct {
	name string
	// open returns a fresh repository over the same storage each call
	open func(t *testing.T) repository.LockoutRepository
}

func backends(t *testing.T) []backend {
	dir := t.TempDir()

	return []backend{
		{
			name: "file",
			open: func(t *testing.T) repository.LockoutRepository {
				return repository.NewFileRepository(repository.FileRepositoryConfig{
					Path: filepath.Join(dir, "lockouts.json"),
				})
			},
		},
		{
			name: "sqlite",
			open: func(t *testing.T) repository.LockoutRepository {
				db, err := repository.OpenSQLite(filepath.Join(dir, "lockouts.db"))
				assert.NilError(t, err)
				return repository.NewSQLiteRepository(db, false)
			},
		},
		{
			name: "bbolt",
			open: func(t *testing.T) repository.LockoutRepository {
				repo, err := repository.NewBoltRepositoryFromFile(filepath.Join(dir, "lockouts.bolt"), false)
				assert.NilError(t, err)
				return repo
			},
		},
	}
}

func snapshot(t *testing.T, repo repository.LockoutRepository, now time.Time) repository.LockoutSet {
	var out repository.LockoutSet
	err := repo.Update(context.Background(), now, func(set repository.LockoutSet) bool {
		out = set.Clone()
		return false
	})
	assert.NilError(t, err)
	return out
}

func TestLockoutRepositoryRoundTrip(t *testing.T) {
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			lockedUntil := baseTime.Add(15 * time.Minute)

			repo := b.open(t)
			err := repo.Update(context.Background(), baseTime, func(set repository.LockoutSet) bool {
				set["203.0.113.7"] = &repository.LockoutRecord{
					Attempts:        3,
					LastAttempt:     baseTime,
					LockedUntil:     &lockedUntil,
					FailedUsernames: []string{"admin", "root"},
				}
				set["198.51.100.1"] = &repository.LockoutRecord{
					Attempts:    1,
					LastAttempt: baseTime,
				}
				return true
			})
			assert.NilError(t, err)
			assert.NilError(t, repo.Close())

			// Fresh instance over the same storage
			reopened := b.open(t)
			defer reopened.Close()

			set := snapshot(t, reopened, baseTime.Add(time.Minute))
			assert.Equal(t, 2, len(set))

			record := set["203.0.113.7"]
			assert.Assert(t, record != nil)
			assert.Equal(t, 3, record.Attempts)
			assert.Assert(t, record.LastAttempt.Equal(baseTime))
			assert.Assert(t, record.LockedUntil != nil)
			assert.Assert(t, record.LockedUntil.Equal(lockedUntil))
			assert.DeepEqual(t, []string{"admin", "root"}, record.FailedUsernames)

			other := set["198.51.100.1"]
			assert.Assert(t, other != nil)
			assert.Equal(t, 1, other.Attempts)
			assert.Assert(t, other.LockedUntil == nil)
			assert.DeepEqual(t, []string{}, other.FailedUsernames)
		})
	}
}

func TestLockoutRepositoryPrunesExpired(t *testing.T) {
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			expired := baseTime.Add(-time.Minute)
			active := baseTime.Add(10 * time.Minute)

			repo := b.open(t)
			defer repo.Close()

			err := repo.Update(context.Background(), baseTime.Add(-time.Hour), func(set repository.LockoutSet) bool {
				set["expired"] = &repository.LockoutRecord{Attempts: 5, LastAttempt: baseTime.Add(-time.Hour), LockedUntil: &expired}
				set["active"] = &repository.LockoutRecord{Attempts: 5, LastAttempt: baseTime, LockedUntil: &active}
				return true
			})
			assert.NilError(t, err)

			// A read-only update still prunes and persists
			set := snapshot(t, repo, baseTime)
			assert.Equal(t, 1, len(set))
			assert.Assert(t, set["active"] != nil)

			set = snapshot(t, repo, baseTime)
			_, ok := set["expired"]
			assert.Assert(t, !ok)
		})
	}
}

func TestFileRepositoryPruneInspection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lockouts.json")
	expired := baseTime.Add(-time.Second)

	err := os.WriteFile(path, []byte(`{
  "10.0.0.1": {"attempts": 5, "lastAttempt": "2025-03-14T08:45:00Z", "lockedUntil": "`+expired.Format(time.RFC3339)+`", "failedUsernames": ["admin"]},
  "10.0.0.2": {"attempts": 2, "lastAttempt": "2025-03-14T08:59:00Z", "failedUsernames": []}
}`), 0600)
	assert.NilError(t, err)

	repo := repository.NewFileRepository(repository.FileRepositoryConfig{Path: path})

	set := snapshot(t, repo, baseTime)
	assert.Equal(t, 1, len(set))

	// Inspect the file directly
	data, err := os.ReadFile(path)
	assert.NilError(t, err)

	var onDisk map[string]json.RawMessage
	assert.NilError(t, json.Unmarshal(data, &onDisk))

	_, ok := onDisk["10.0.0.1"]
	assert.Assert(t, !ok)
	_, ok = onDisk["10.0.0.2"]
	assert.Assert(t, ok)
}

func TestFileRepositoryNoWriteWithoutChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lockouts.json")
	repo := repository.NewFileRepository(repository.FileRepositoryConfig{Path: path})

	set := snapshot(t, repo, baseTime)
	assert.Equal(t, 0, len(set))

	_, err := os.Stat(path)
	assert.Assert(t, os.IsNotExist(err))
}

func TestFileRepositoryCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lockouts.json")
	assert.NilError(t, os.WriteFile(path, []byte("{not json"), 0600))

	// Fail open: start fresh and overwrite the corrupt file on the next write
	repo := repository.NewFileRepository(repository.FileRepositoryConfig{Path: path})

	set := snapshot(t, repo, baseTime)
	assert.Equal(t, 0, len(set))

	err := repo.Update(context.Background(), baseTime, func(set repository.LockoutSet) bool {
		set["10.0.0.1"] = &repository.LockoutRecord{Attempts: 1, LastAttempt: baseTime}
		return true
	})
	assert.NilError(t, err)

	set = snapshot(t, repo, baseTime)
	assert.Equal(t, 1, len(set))

	// Strict: refuse to read
	assert.NilError(t, os.WriteFile(path, []byte("{not json"), 0600))

	strict := repository.NewFileRepository(repository.FileRepositoryConfig{Path: path, Strict: true})
	called := false

	err = strict.Update(context.Background(), baseTime, func(set repository.LockoutSet) bool {
		called = true
		return false
	})
	assert.ErrorIs(t, err, repository.ErrStoreUnreadable)
	assert.Assert(t, !called)
}

func TestLockoutRecord(t *testing.T) {
	until := baseTime.Add(time.Minute)
	record := &repository.LockoutRecord{Attempts: 3, LastAttempt: baseTime, LockedUntil: &until}

	assert.Assert(t, record.IsLocked(baseTime))
	assert.Assert(t, !record.Expired(baseTime))
	assert.Assert(t, !record.IsLocked(until))
	assert.Assert(t, record.Expired(until))

	record.AddUsername("admin")
	record.AddUsername("admin")
	record.AddUsername("")
	record.AddUsername("root")
	assert.DeepEqual(t, []string{"admin", "root"}, record.FailedUsernames)

	unlocked := &repository.LockoutRecord{Attempts: 1, LastAttempt: baseTime}
	assert.Assert(t, !unlocked.IsLocked(baseTime))
	assert.Assert(t, !unlocked.Expired(baseTime.Add(48*time.Hour)))
}

func TestContextCancelled(t *testing.T) {
	repo := repository.NewFileRepository(repository.FileRepositoryConfig{Path: filepath.Join(t.TempDir(), "lockouts.json")})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := repo.Update(ctx, baseTime, func(set repository.LockoutSet) bool { return true })
	assert.ErrorIs(t, err, context.Canceled)
}
