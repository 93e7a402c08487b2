package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sitekeep/adminauth/internal/utils/tlog"

	"go.etcd.io/bbolt"
)

var lockoutBucket = []byte("lockouts")

// BoltRepository stores one JSON encoded record per key. bbolt holds an
// exclusive file lock, so only one process can use the database at a time.
type BoltRepository struct {
	db     *bbolt.DB
	strict bool
}

func NewBoltRepository(db *bbolt.DB, strict bool) *BoltRepository {
	return &BoltRepository{
		db:     db,
		strict: strict,
	}
}

// NewBoltRepositoryFromFile opens a bbolt database at path.
func NewBoltRepositoryFromFile(path string, strict bool) (*BoltRepository, error) {
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}

	return NewBoltRepository(db, strict), nil
}

func (repo *BoltRepository) Update(ctx context.Context, now time.Time, fn LockoutMutator) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return repo.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(lockoutBucket)
		if err != nil {
			return err
		}

		set := LockoutSet{}

		err = b.ForEach(func(k, v []byte) error {
			var record LockoutRecord
			if err := json.Unmarshal(v, &record); err != nil {
				if repo.strict {
					return fmt.Errorf("%w: %s: %w", ErrStoreUnreadable, k, err)
				}
				tlog.App.Warn().Err(err).Str("key", string(k)).Msg("Dropping unreadable lockout entry")
				return nil
			}
			set[string(k)] = &record
			return nil
		})

		if err != nil {
			return err
		}

		if !apply(set, now, fn) {
			return nil
		}

		// rewrite the bucket so dropped and pruned keys disappear
		if err := tx.DeleteBucket(lockoutBucket); err != nil {
			return err
		}

		b, err = tx.CreateBucket(lockoutBucket)
		if err != nil {
			return err
		}

		for key, record := range set {
			if record.FailedUsernames == nil {
				record.FailedUsernames = []string{}
			}
			data, err := json.Marshal(record)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(key), data); err != nil {
				return err
			}
		}

		return nil
	})
}

// Close closes the underlying bbolt database.
func (repo *BoltRepository) Close() error {
	return repo.db.Close()
}
