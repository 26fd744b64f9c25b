package safety

import (
	"context"
	"testing"

	"github.com/arthur-debert/fleetup/pkg/errors"
	"github.com/arthur-debert/fleetup/pkg/runner/runnertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginctlSessions(t *testing.T) {
	f := runnertest.New()
	f.On("loginctl list-sessions").Outputs(
		"     2 1000 adebert seat0 tty2\n" +
			"     5 1000 adebert       pts/1\n")
	f.On("loginctl show-session 2").Outputs("Name=adebert\nType=wayland\nActive=yes\n")
	f.On("loginctl show-session 5").Outputs("Name=adebert\nType=tty\nActive=no\n")

	l := &Loginctl{Runner: f}
	sessions, err := l.Sessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Session{
		{ID: "2", User: "adebert", Type: "wayland", Active: true},
		{ID: "5", User: "adebert", Type: "tty", Active: false},
	}, sessions)
	assert.True(t, sessions[0].Graphical())
	assert.False(t, sessions[1].Graphical())
	assert.True(t, f.Calls[0].Quiet)
}

func TestLoginctlUserFallsBackToListing(t *testing.T) {
	f := runnertest.New()
	f.On("loginctl list-sessions").Outputs("3 1000 adebert seat0 tty1\n")
	f.On("loginctl show-session 3").Outputs("Type=x11\nActive=yes\n")

	sessions, err := (&Loginctl{Runner: f}).Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "adebert", sessions[0].User)
}

func TestLoginctlFailure(t *testing.T) {
	f := runnertest.New()
	f.On("loginctl list-sessions").Fails(1)

	_, err := (&Loginctl{Runner: f}).Sessions(context.Background())
	assert.True(t, errors.IsErrorCode(err, errors.ErrSessions))
	assert.False(t, errors.IsFatal(err))
}

func TestLoginctlFeedsAnalyzer(t *testing.T) {
	f := runnertest.New()
	f.On("loginctl list-sessions").Outputs("2 1000 adebert seat0 tty2\n")
	f.On("loginctl show-session 2").Outputs("Name=adebert\nType=x11\nActive=yes\n")

	a := NewAnalyzer(testRules, &Loginctl{Runner: f})
	r := a.Analyze(context.Background(), "[U.]  #1  kwin  6.3.4 -> 6.3.5\n", "adebert")
	assert.True(t, r.UnsafeImmediate)
}

func TestDiffer(t *testing.T) {
	f := runnertest.New()
	f.On("nvd diff /run/current-system /nix/store/abc-system").Outputs("[U.] #1 kwin 6.3.4 -> 6.3.5\n")

	d := &Differ{Runner: f}
	out, err := d.Diff(context.Background(), "/nix/store/abc-system")
	require.NoError(t, err)
	assert.Contains(t, out, "kwin")

	f = runnertest.New()
	f.On("nvd").Fails(2)
	_, err = (&Differ{Runner: f}).Diff(context.Background(), "/nix/store/abc-system")
	assert.True(t, errors.IsErrorCode(err, errors.ErrDiff))
}
