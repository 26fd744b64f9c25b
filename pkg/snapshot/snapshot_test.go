package snapshot_test

import (
	"context"
	"testing"

	"github.com/arthur-debert/fleetup/pkg/errors"
	"github.com/arthur-debert/fleetup/pkg/filesystem"
	"github.com/arthur-debert/fleetup/pkg/runner/runnertest"
	"github.com/arthur-debert/fleetup/pkg/snapshot"
	"github.com/arthur-debert/fleetup/pkg/vcs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lockPath = "/flake/flake.lock"

func newStore(t *testing.T) (*snapshot.Store, filesystem.FS) {
	t.Helper()
	fsys := filesystem.NewMemory()
	v, err := vcs.New("none", runnertest.New(), "/flake")
	require.NoError(t, err)
	return snapshot.NewStore(fsys, lockPath, v).WithTempDir("/tmp"), fsys
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	contents := map[string][]byte{
		"empty":  {},
		"json":   []byte(`{"nodes":{"root":{"inputs":{"nixpkgs":"nixpkgs"}},"nixpkgs":{}},"root":"root","version":7}` + "\n"),
		"binary": {0x00, 0xff, 0x10, '\n', 0x80},
	}

	for name, original := range contents {
		t.Run(name, func(t *testing.T) {
			store, fsys := newStore(t)
			require.NoError(t, fsys.WriteFile(lockPath, original, 0644))

			h, err := store.Backup()
			require.NoError(t, err)
			require.NotNil(t, h)
			assert.NotEqual(t, lockPath, h.Path)
			assert.Len(t, h.Digest, 64)

			require.NoError(t, fsys.WriteFile(lockPath, []byte(`{"mutated":true}`), 0644))
			require.NoError(t, store.Restore(h))

			got, err := fsys.ReadFile(lockPath)
			require.NoError(t, err)
			assert.Equal(t, original, got)
		})
	}
}

func TestBackupWithoutLockFile(t *testing.T) {
	store, _ := newStore(t)

	h, err := store.Backup()
	require.NoError(t, err)
	assert.Nil(t, h)

	assert.NoError(t, store.Restore(h))
	assert.NoError(t, store.Cleanup(h))
}

func TestRestoreIsIdempotent(t *testing.T) {
	store, fsys := newStore(t)
	require.NoError(t, fsys.WriteFile(lockPath, []byte("v1"), 0644))

	h, err := store.Backup()
	require.NoError(t, err)

	require.NoError(t, fsys.WriteFile(lockPath, []byte("v2"), 0644))
	require.NoError(t, store.Restore(h))
	require.NoError(t, store.Restore(h))

	got, err := fsys.ReadFile(lockPath)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))
}

func TestRestoreAfterCleanupIsNoop(t *testing.T) {
	store, fsys := newStore(t)
	require.NoError(t, fsys.WriteFile(lockPath, []byte("v1"), 0644))

	h, err := store.Backup()
	require.NoError(t, err)
	require.NoError(t, store.Cleanup(h))

	_, err = fsys.Stat(h.Path)
	assert.Error(t, err, "backup should be gone")

	require.NoError(t, fsys.WriteFile(lockPath, []byte("v2"), 0644))
	require.NoError(t, store.Restore(h))

	got, err := fsys.ReadFile(lockPath)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got))

	assert.NoError(t, store.Cleanup(h), "second cleanup")
}

func TestRestoreRejectsCorruptBackup(t *testing.T) {
	store, fsys := newStore(t)
	require.NoError(t, fsys.WriteFile(lockPath, []byte("v1"), 0644))

	h, err := store.Backup()
	require.NoError(t, err)
	require.NoError(t, fsys.WriteFile(h.Path, []byte("garbage"), 0600))

	err = store.Restore(h)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrLockIO))
	assert.True(t, errors.IsFatal(err))
}

func TestDiff(t *testing.T) {
	store, fsys := newStore(t)
	require.NoError(t, fsys.WriteFile(lockPath, []byte("{\n  \"rev\": \"aaa\"\n}\n"), 0644))

	h, err := store.Backup()
	require.NoError(t, err)

	diff, err := store.Diff(h)
	require.NoError(t, err)
	assert.Empty(t, diff)

	require.NoError(t, fsys.WriteFile(lockPath, []byte("{\n  \"rev\": \"bbb\"\n}\n"), 0644))
	diff, err = store.Diff(h)
	require.NoError(t, err)
	assert.Contains(t, diff, "--- flake.lock (before)")
	assert.Contains(t, diff, "+++ flake.lock")
	assert.Contains(t, diff, "-  \"rev\": \"aaa\"")
	assert.Contains(t, diff, "+  \"rev\": \"bbb\"")
}

func TestHasChangesAsksVCS(t *testing.T) {
	f := runnertest.New()
	f.On("jj diff --stat flake.lock").Outputs("flake.lock | 4 ++--\n1 file changed, 2 insertions(+), 2 deletions(-)\n")
	v, err := vcs.New("jj", f, "/flake")
	require.NoError(t, err)

	store := snapshot.NewStore(filesystem.NewMemory(), lockPath, v)
	changed, err := store.HasChanges(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"jj diff --stat flake.lock"}, f.Commands())
}
