package snapshot

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/arthur-debert/fleetup/pkg/errors"
	"github.com/arthur-debert/fleetup/pkg/filesystem"
	"github.com/arthur-debert/fleetup/pkg/logging"
	"github.com/arthur-debert/fleetup/pkg/vcs"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/rs/zerolog"
	"github.com/zeebo/blake3"
)

const backupPattern = "flake-*.lock"

// Handle identifies one backup of the lock file
type Handle struct {
	Path   string
	Digest string
}

// Store backs up and restores a single lock file
type Store struct {
	fs       filesystem.FS
	lockPath string
	vcs      vcs.VCS
	tempDir  string
	logger   zerolog.Logger
}

// NewStore creates a store for lockPath. Backups go to the system temp dir.
func NewStore(fsys filesystem.FS, lockPath string, v vcs.VCS) *Store {
	return &Store{
		fs:       fsys,
		lockPath: lockPath,
		vcs:      v,
		logger:   logging.GetLogger("snapshot"),
	}
}

// WithTempDir places backups in dir instead of the system temp dir
func (s *Store) WithTempDir(dir string) *Store {
	s.tempDir = dir
	return s
}

// LockPath returns the path of the lock file this store manages
func (s *Store) LockPath() string {
	return s.lockPath
}

// Backup copies the lock file to a private temp file. It returns a nil
// handle when there is no lock file yet.
func (s *Store) Backup() (*Handle, error) {
	data, err := s.fs.ReadFile(s.lockPath)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info().Str("lock", s.lockPath).Msg("No lock file, nothing to back up")
			return nil, nil
		}
		return nil, errors.Wrapf(err, errors.ErrLockIO, "read %s", s.lockPath)
	}

	path, err := s.fs.WriteTemp(s.tempDir, backupPattern, data)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrLockIO, "write lock backup")
	}

	h := &Handle{Path: path, Digest: digest(data)}
	s.logger.Debug().
		Str("lock", s.lockPath).
		Str("backup", h.Path).
		Str("digest", h.Digest).
		Msg("Lock file backed up")
	return h, nil
}

// Restore writes the backup over the lock file. It is a no-op when h is nil
// or its file is gone, and may be called any number of times.
func (s *Store) Restore(h *Handle) error {
	if h == nil {
		return nil
	}
	data, err := s.fs.ReadFile(h.Path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug().Str("backup", h.Path).Msg("Backup already gone, nothing to restore")
			return nil
		}
		return errors.Wrapf(err, errors.ErrLockIO, "read backup %s", h.Path)
	}
	if got := digest(data); got != h.Digest {
		return errors.Newf(errors.ErrLockIO, "backup %s is corrupt", h.Path).
			WithDetail("want", h.Digest).
			WithDetail("got", got)
	}

	perm := os.FileMode(0644)
	if info, err := s.fs.Stat(s.lockPath); err == nil {
		perm = info.Mode().Perm()
	}
	if err := s.fs.WriteFile(s.lockPath, data, perm); err != nil {
		return errors.Wrapf(err, errors.ErrLockIO, "restore %s", s.lockPath)
	}
	s.logger.Info().Str("lock", s.lockPath).Msg("Lock file restored from backup")
	return nil
}

// Cleanup deletes the backup file. Nil handles and missing files are fine.
func (s *Store) Cleanup(h *Handle) error {
	if h == nil {
		return nil
	}
	if err := s.fs.Remove(h.Path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, errors.ErrLockIO, "remove backup %s", h.Path)
	}
	s.logger.Debug().Str("backup", h.Path).Msg("Backup removed")
	return nil
}

// HasChanges reports whether version control sees the lock file as modified
func (s *Store) HasChanges(ctx context.Context) (bool, error) {
	return s.vcs.Changed(ctx, filepath.Base(s.lockPath))
}

// Diff returns a unified diff from the backup to the current lock file. The
// result is empty when they are identical or h is nil.
func (s *Store) Diff(h *Handle) (string, error) {
	if h == nil {
		return "", nil
	}
	before, err := s.fs.ReadFile(h.Path)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrLockIO, "read backup %s", h.Path)
	}
	after, err := s.fs.ReadFile(s.lockPath)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrLockIO, "read %s", s.lockPath)
	}
	if digest(before) == digest(after) {
		return "", nil
	}

	name := filepath.Base(s.lockPath)
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: name + " (before)",
		ToFile:   name,
		Context:  3,
	})
}

func digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
