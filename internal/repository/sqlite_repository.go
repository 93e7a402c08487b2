package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sitekeep/adminauth/internal/assets"
	"github.com/sitekeep/adminauth/internal/utils/tlog"

	"github.com/golang-migrate/migrate/v4"
	sqliteMigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

// immediate transactions take the write lock up front so concurrent
// read-modify-write cycles from other processes wait instead of failing
const sqliteParams = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"

// OpenSQLite opens the database at path and applies pending migrations.
func OpenSQLite(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", "file:"+path+sqliteParams)

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	migrations, err := iofs.New(assets.Migrations, "migrations")

	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create migrations: %w", err)
	}

	target, err := sqliteMigrate.WithInstance(db, &sqliteMigrate.Config{})

	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sqlite instance: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", migrations, "sqlite", target)

	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// SQLiteRepository runs every update in one transaction, so workers sharing
// the database file never lose increments.
type SQLiteRepository struct {
	db     *sql.DB
	strict bool
}

func NewSQLiteRepository(db *sql.DB, strict bool) *SQLiteRepository {
	return &SQLiteRepository{
		db:     db,
		strict: strict,
	}
}

func (repo *SQLiteRepository) Update(ctx context.Context, now time.Time, fn LockoutMutator) error {
	tx, err := repo.db.BeginTx(ctx, nil)

	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer tx.Rollback()

	set, err := repo.load(ctx, tx)

	if err != nil {
		return err
	}

	if !apply(set, now, fn) {
		return tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM "lockouts"`); err != nil {
		return fmt.Errorf("failed to clear lockouts: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO "lockouts" ("key", "attempts", "last_attempt", "locked_until", "failed_usernames") VALUES (?, ?, ?, ?, ?)`)

	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}

	defer stmt.Close()

	for key, record := range set {
		usernames := record.FailedUsernames
		if usernames == nil {
			usernames = []string{}
		}

		encoded, err := json.Marshal(usernames)
		if err != nil {
			return fmt.Errorf("failed to encode usernames: %w", err)
		}

		var lockedUntil sql.NullString
		if record.LockedUntil != nil {
			lockedUntil = sql.NullString{String: record.LockedUntil.UTC().Format(time.RFC3339Nano), Valid: true}
		}

		_, err = stmt.ExecContext(ctx, key, record.Attempts, record.LastAttempt.UTC().Format(time.RFC3339Nano), lockedUntil, string(encoded))

		if err != nil {
			return fmt.Errorf("failed to insert lockout for %s: %w", key, err)
		}
	}

	return tx.Commit()
}

func (repo *SQLiteRepository) Close() error {
	return repo.db.Close()
}

func (repo *SQLiteRepository) load(ctx context.Context, tx *sql.Tx) (LockoutSet, error) {
	rows, err := tx.QueryContext(ctx, `SELECT "key", "attempts", "last_attempt", "locked_until", "failed_usernames" FROM "lockouts"`)

	if err != nil {
		return nil, fmt.Errorf("failed to query lockouts: %w", err)
	}

	defer rows.Close()

	set := LockoutSet{}

	for rows.Next() {
		var key, lastAttempt, usernames string
		var attempts int
		var lockedUntil sql.NullString

		if err := rows.Scan(&key, &attempts, &lastAttempt, &lockedUntil, &usernames); err != nil {
			return nil, fmt.Errorf("failed to scan lockout: %w", err)
		}

		record, err := decodeRow(attempts, lastAttempt, lockedUntil, usernames)

		if err != nil {
			if repo.strict {
				return nil, fmt.Errorf("%w: %s: %w", ErrStoreUnreadable, key, err)
			}
			tlog.App.Warn().Err(err).Str("key", key).Msg("Dropping unreadable lockout row")
			continue
		}

		set[key] = record
	}

	return set, rows.Err()
}

func decodeRow(attempts int, lastAttempt string, lockedUntil sql.NullString, usernames string) (*LockoutRecord, error) {
	last, err := time.Parse(time.RFC3339Nano, lastAttempt)
	if err != nil {
		return nil, err
	}

	record := &LockoutRecord{
		Attempts:        attempts,
		LastAttempt:     last,
		FailedUsernames: []string{},
	}

	if lockedUntil.Valid {
		until, err := time.Parse(time.RFC3339Nano, lockedUntil.String)
		if err != nil {
			return nil, err
		}
		record.LockedUntil = &until
	}

	if err := json.Unmarshal([]byte(usernames), &record.FailedUsernames); err != nil {
		return nil, err
	}

	return record, nil
}
