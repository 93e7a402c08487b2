package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sitekeep/adminauth/internal/config"
	"github.com/sitekeep/adminauth/internal/repository"
	"github.com/sitekeep/adminauth/internal/utils/tlog"
)

// SetupLockoutRepository opens the persisted lockout store selected by cfg.
func SetupLockoutRepository(cfg config.LockoutConfig) (repository.LockoutRepository, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))

	if backend == "" {
		backend = config.LockoutBackendFile
	}

	path := cfg.Path

	if path == "" {
		switch backend {
		case config.LockoutBackendSQLite:
			path = "./data/adminauth.db"
		case config.LockoutBackendBolt:
			path = "./data/lockouts.bolt"
		default:
			path = "./data/lockouts.json"
		}
	}

	tlog.App.Debug().Str("backend", backend).Str("path", path).Bool("strict", cfg.Strict).Msg("Opening lockout store")

	switch backend {
	case config.LockoutBackendFile:
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create lockout directory %s: %w", dir, err)
		}

		return repository.NewFileRepository(repository.FileRepositoryConfig{
			Path:   path,
			Strict: cfg.Strict,
		}), nil
	case config.LockoutBackendSQLite:
		db, err := repository.OpenSQLite(path)

		if err != nil {
			return nil, err
		}

		return repository.NewSQLiteRepository(db, cfg.Strict), nil
	case config.LockoutBackendBolt:
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create lockout directory %s: %w", dir, err)
		}

		return repository.NewBoltRepositoryFromFile(path, cfg.Strict)
	default:
		return nil, fmt.Errorf("unknown lockout backend %q", cfg.Backend)
	}
}
