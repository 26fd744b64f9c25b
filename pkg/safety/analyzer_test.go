package safety

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSessions struct {
	sessions []Session
	err      error
}

func (s staticSessions) Sessions(context.Context) ([]Session, error) {
	return s.sessions, s.err
}

var (
	testRules = Rules{
		GPUPackages:     []string{"nvidia-x11", "nvidia-open"},
		DesktopPackages: []string{"plasma-workspace", "kwin", "xwayland"},
	}
	noSessions      = staticSessions{}
	waylandSessions = staticSessions{sessions: []Session{
		{ID: "2", User: "adebert", Type: "wayland", Active: true},
	}}
)

func analyze(t *testing.T, inv SessionInventory, diff string) *Report {
	t.Helper()
	return NewAnalyzer(testRules, inv).Analyze(context.Background(), diff, "adebert")
}

func TestGPUMajorMinorChange(t *testing.T) {
	diff := "<<< /run/current-system\n>>> /nix/store/abc-system\n" +
		"Version changes:\n" +
		"[U.]  #1  nvidia-x11  570.172.08-6.15.8 -> 575.1-6.15.8\n"

	r := analyze(t, noSessions, diff)
	assert.True(t, r.RequiresReboot)
	assert.True(t, r.UnsafeImmediate)
	require.Len(t, r.Warnings, 1)
	assert.Contains(t, r.Warnings[0], "major/minor")
	assert.Contains(t, r.Warnings[0], "570.172 -> 575.1")
	assert.False(t, r.Safe())
}

func TestGPUPatchChangeIsSafe(t *testing.T) {
	diff := "[U.]  #1  nvidia-x11  570.172.08-6.15.8 -> 570.172.10-6.15.8\n"

	r := analyze(t, noSessions, diff)
	assert.False(t, r.RequiresReboot)
	assert.False(t, r.UnsafeImmediate)
	assert.Empty(t, r.Warnings)
	assert.True(t, r.Safe())
}

func TestGPUUnparseableVersionIsUnsafe(t *testing.T) {
	r := analyze(t, noSessions, "[C.]  #1  nvidia-open  beta -> stable\n")
	assert.True(t, r.RequiresReboot)
	assert.True(t, r.UnsafeImmediate)
	assert.Len(t, r.Warnings, 1)
}

func TestKernelChangeRequiresReboot(t *testing.T) {
	diffs := []string{
		"linux-6.6.30 -> linux-6.7.12",
		"[U.]  #3  linux  6.6.30 -> 6.7.12",
		"[U.]  #3  linux-zen-6.6.30 -> linux-zen-6.7.12",
	}

	for _, diff := range diffs {
		for _, inv := range []SessionInventory{noSessions, waylandSessions} {
			t.Run(diff, func(t *testing.T) {
				r := analyze(t, inv, diff)
				assert.True(t, r.RequiresReboot)
				assert.False(t, r.UnsafeImmediate)
				require.Len(t, r.Warnings, 1)
				assert.Contains(t, r.Warnings[0], "kernel")
			})
		}
	}
}

func TestKernelRuleIgnoresOtherLinuxPackages(t *testing.T) {
	r := analyze(t, noSessions, "[U.]  #9  util-linux  2.39.3 -> 2.40.1\n[U.]  #10 linux-firmware  20240909 -> 20241017\n")
	assert.Empty(t, r.Warnings)
	assert.False(t, r.RequiresReboot)
}

func TestKernelOnlyFirstMatchWarns(t *testing.T) {
	r := analyze(t, noSessions, "linux-6.6.30 -> linux-6.7.12\nlinux-headers-6.6.30 -> linux-headers-6.7.12\n")
	assert.Len(t, r.Warnings, 1)
}

func TestDesktopChangesUnderGraphicalSession(t *testing.T) {
	diff := "[U.]  #4  kwin  6.3.4 -> 6.3.5\n[U.]  #5  plasma-workspace  6.3.4 -> 6.3.5\n"

	r := analyze(t, waylandSessions, diff)
	assert.True(t, r.UnsafeImmediate)
	assert.True(t, r.RequiresReboot, "unsafe implies reboot")
	require.Len(t, r.Warnings, 1)
	assert.Contains(t, r.Warnings[0], "kwin, plasma-workspace")
}

func TestDesktopChangesWithoutSession(t *testing.T) {
	diff := "[U.]  #4  kwin  6.3.4 -> 6.3.5\n"
	tests := []struct {
		name string
		inv  SessionInventory
	}{
		{"no sessions", noSessions},
		{"tty session", staticSessions{sessions: []Session{{User: "adebert", Type: "tty", Active: true}}}},
		{"inactive wayland", staticSessions{sessions: []Session{{User: "adebert", Type: "wayland", Active: false}}}},
		{"other user", staticSessions{sessions: []Session{{User: "guest", Type: "x11", Active: true}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := analyze(t, tt.inv, diff)
			assert.Empty(t, r.Warnings)
			assert.False(t, r.UnsafeImmediate)
		})
	}
}

func TestDesktopAddedPackageIsIgnored(t *testing.T) {
	r := analyze(t, waylandSessions, "Added packages:\n[A+]  #1  xwayland  24.1.6\n")
	assert.Empty(t, r.Warnings)
}

func TestSessionErrorAssumesGraphical(t *testing.T) {
	inv := staticSessions{err: fmt.Errorf("loginctl: not found")}
	r := analyze(t, inv, "[C.]  #4  xwayland  24.1.5 -> 24.1.6\n")
	assert.True(t, r.UnsafeImmediate)
	assert.Len(t, r.Warnings, 1)
}

func TestCombinedRules(t *testing.T) {
	diff := "[U.]  #1  nvidia-x11  550.1 -> 570.1\n[U.]  #2  linux  6.6.1 -> 6.7.1\n[U.]  #3  kwin  6.3.4 -> 6.3.5\n"
	r := analyze(t, waylandSessions, diff)
	assert.Len(t, r.Warnings, 3)
	assert.True(t, r.RequiresReboot)
	assert.True(t, r.UnsafeImmediate)
}

func TestEmptyDiffIsSafe(t *testing.T) {
	r := analyze(t, waylandSessions, "")
	assert.True(t, r.Safe())
}

func TestUnknownReport(t *testing.T) {
	r := Unknown(fmt.Errorf("nvd exited 1"))
	assert.True(t, r.RequiresReboot)
	assert.True(t, r.UnsafeImmediate)
	require.Len(t, r.Warnings, 1)
	assert.Contains(t, r.Warnings[0], "nvd exited 1")
}

func TestFinalizeInvariant(t *testing.T) {
	r := &Report{UnsafeImmediate: true}
	r.finalize()
	assert.True(t, r.RequiresReboot)

	var nilReport *Report
	assert.True(t, nilReport.Safe())
}
