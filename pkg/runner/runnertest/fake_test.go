package runnertest

import (
	"context"
	"testing"

	"github.com/arthur-debert/fleetup/pkg/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeRules(t *testing.T) {
	f := New()
	f.On("colmena build").Fails(1).Once()
	f.On("nvd diff").Outputs("<<< /run/current-system\n")

	ctx := context.Background()

	_, err := f.Run(ctx, runner.Command{Name: "colmena", Args: []string{"build"}})
	require.Error(t, err)

	_, err = f.Run(ctx, runner.Command{Name: "colmena", Args: []string{"build"}})
	require.NoError(t, err, "Once rule must be exhausted after one match")

	res, err := f.Run(ctx, runner.Command{Name: "nvd", Args: []string{"diff", "a", "b"}})
	require.NoError(t, err)
	assert.Contains(t, res.Stdout, "current-system")

	assert.Equal(t, 2, f.Count("colmena build"))
	assert.True(t, f.Ran("nvd"))
	assert.False(t, f.Ran("jj"))
}

func TestFakeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := New()
	_, err := f.Run(ctx, runner.Command{Name: "nix"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.Calls)
}
