package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/sitekeep/adminauth/internal/utils"
	"github.com/sitekeep/adminauth/internal/utils/tlog"
)

type FileRepositoryConfig struct {
	Path   string
	Strict bool
}

// FileRepository keeps the lockout set in a single JSON document. Writes
// replace the whole file. The mutex only serialises writers in this process,
// across processes the last writer wins.
type FileRepository struct {
	config FileRepositoryConfig
	mutex  sync.Mutex
}

func NewFileRepository(config FileRepositoryConfig) *FileRepository {
	return &FileRepository{
		config: config,
	}
}

func (repo *FileRepository) Update(ctx context.Context, now time.Time, fn LockoutMutator) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	repo.mutex.Lock()
	defer repo.mutex.Unlock()

	set, err := repo.load()
	if err != nil {
		if repo.config.Strict {
			return err
		}
		tlog.App.Warn().Err(err).Str("path", repo.config.Path).Msg("Lockout file unreadable, starting fresh")
		set = LockoutSet{}
	}

	if !apply(set, now, fn) {
		return nil
	}

	return repo.persist(set)
}

func (repo *FileRepository) Close() error {
	return nil
}

func (repo *FileRepository) load() (LockoutSet, error) {
	data, err := os.ReadFile(repo.config.Path)

	if errors.Is(err, fs.ErrNotExist) {
		return LockoutSet{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnreadable, err)
	}

	set := LockoutSet{}

	if len(data) == 0 {
		return set, nil
	}

	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnreadable, err)
	}

	return set, nil
}

func (repo *FileRepository) persist(set LockoutSet) error {
	for _, record := range set {
		if record.FailedUsernames == nil {
			record.FailedUsernames = []string{}
		}
	}

	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode lockouts: %w", err)
	}

	if err := utils.WriteFileAtomic(repo.config.Path, data, 0600); err != nil {
		return fmt.Errorf("failed to write lockouts: %w", err)
	}

	return nil
}
