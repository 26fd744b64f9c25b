package inputs

import (
	"context"
	"testing"

	"github.com/arthur-debert/fleetup/pkg/errors"
	"github.com/arthur-debert/fleetup/pkg/filesystem"
	"github.com/arthur-debert/fleetup/pkg/runner/runnertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLock = `{
  "nodes": {
    "colmena": {"locked": {"rev": "c1"}},
    "home-manager": {"locked": {"rev": "h1"}},
    "nixpkgs": {"locked": {"rev": "n1"}},
    "nixpkgs-kernel": {"locked": {"rev": "k1"}},
    "nixpkgs-unstable": {"locked": {"rev": "u1"}},
    "root": {"inputs": {"nixpkgs": "nixpkgs"}}
  },
  "root": "root",
  "version": 7
}`

const nixPrefix = "nix --extra-experimental-features nix-command flakes flake update"

func newResolver(t *testing.T, lock string) (*Resolver, *runnertest.Fake) {
	t.Helper()
	fsys := filesystem.NewMemory()
	if lock != "" {
		require.NoError(t, fsys.WriteFile("/flake/flake.lock", []byte(lock), 0644))
	}
	f := runnertest.New()
	r := NewResolver(fsys, f, Options{
		FlakeRoot:            "/flake",
		LockPath:             "/flake/flake.lock",
		ExperimentalFeatures: "nix-command flakes",
	})
	return r, f
}

func TestAllInputsExcludesRoot(t *testing.T) {
	r, _ := newResolver(t, testLock)

	all, err := r.AllInputs()
	require.NoError(t, err)
	assert.Len(t, all, 5)
	assert.NotContains(t, all, "root")
	assert.Contains(t, all, "nixpkgs-kernel")
}

func TestSelectableInputs(t *testing.T) {
	r, _ := newResolver(t, testLock)

	tests := []struct {
		name    string
		exclude map[string]struct{}
		want    []string
	}{
		{
			name: "no exclusions",
			want: []string{"colmena", "home-manager", "nixpkgs", "nixpkgs-kernel", "nixpkgs-unstable"},
		},
		{
			name:    "kernel excluded",
			exclude: map[string]struct{}{"nixpkgs-kernel": {}},
			want:    []string{"colmena", "home-manager", "nixpkgs", "nixpkgs-unstable"},
		},
		{
			name:    "excluding root or unknown names changes nothing",
			exclude: map[string]struct{}{"root": {}, "does-not-exist": {}},
			want:    []string{"colmena", "home-manager", "nixpkgs", "nixpkgs-kernel", "nixpkgs-unstable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.SelectableInputs(tt.exclude)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "root")
		})
	}
}

func TestAllInputsMissingLock(t *testing.T) {
	r, _ := newResolver(t, "")
	_, err := r.AllInputs()
	assert.True(t, errors.IsErrorCode(err, errors.ErrLockIO))
}

func TestAllInputsBadJSON(t *testing.T) {
	r, _ := newResolver(t, "{not json")
	_, err := r.AllInputs()
	assert.True(t, errors.IsErrorCode(err, errors.ErrLockParse))
}

func TestResolveExclusions(t *testing.T) {
	r, _ := newResolver(t, testLock)

	got, err := r.ResolveExclusions([]string{"nixpkgs-kernel"})
	require.NoError(t, err)
	assert.Equal(t, []string{"nixpkgs-kernel"}, got)

	got, err = r.ResolveExclusions([]string{"nixpkgs-*"})
	require.NoError(t, err)
	assert.Equal(t, []string{"nixpkgs-kernel", "nixpkgs-unstable"}, got)

	_, err = r.ResolveExclusions([]string{"nothing-matches"})
	assert.True(t, errors.IsErrorCode(err, errors.ErrEmptySelection))

	_, err = r.ResolveExclusions([]string{"*"})
	assert.True(t, errors.IsErrorCode(err, errors.ErrEmptySelection), "excluding everything leaves nothing to retry")

	_, err = r.ResolveExclusions([]string{"[bad"})
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
}

func TestUpdateAll(t *testing.T) {
	r, f := newResolver(t, testLock)

	require.NoError(t, r.UpdateAll(context.Background()))
	assert.Equal(t, []string{nixPrefix}, f.Commands())
	assert.Equal(t, "/flake", f.Calls[0].Dir)
}

func TestUpdateAllFailure(t *testing.T) {
	r, f := newResolver(t, testLock)
	f.On(nixPrefix).Fails(1)

	err := r.UpdateAll(context.Background())
	assert.True(t, errors.IsErrorCode(err, errors.ErrUpdate))
	assert.False(t, errors.IsFatal(err))
}

func TestUpdateSelectedEmptyRunsNothing(t *testing.T) {
	r, f := newResolver(t, testLock)

	err := r.UpdateSelected(context.Background(), nil)
	assert.True(t, errors.IsErrorCode(err, errors.ErrEmptySelection))

	err = r.UpdateSelected(context.Background(), []string{})
	assert.True(t, errors.IsErrorCode(err, errors.ErrEmptySelection))

	assert.Empty(t, f.Calls)
}

func TestUpdateSelectedOrderAndShortCircuit(t *testing.T) {
	r, f := newResolver(t, testLock)
	f.On(nixPrefix + " home-manager").Fails(1)

	err := r.UpdateSelected(context.Background(), []string{"nixpkgs", "home-manager", "colmena"})
	require.Error(t, err)
	assert.Equal(t, "home-manager", errors.GetErrorDetails(err)["input"])

	assert.Equal(t, []string{
		nixPrefix + " colmena",
		nixPrefix + " home-manager",
	}, f.Commands())
}

func TestCheck(t *testing.T) {
	r, f := newResolver(t, testLock)
	require.NoError(t, r.Check(context.Background()))
	assert.True(t, f.Ran("nix --extra-experimental-features nix-command flakes flake check"))
}

func TestNixWithoutExperimentalFeatures(t *testing.T) {
	f := runnertest.New()
	r := NewResolver(filesystem.NewMemory(), f, Options{LockPath: "/flake.lock"})
	require.NoError(t, r.UpdateAll(context.Background()))
	assert.Equal(t, []string{"nix flake update"}, f.Commands())
}
