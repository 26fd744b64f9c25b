package safety

import (
	"context"

	"github.com/arthur-debert/fleetup/pkg/errors"
	"github.com/arthur-debert/fleetup/pkg/runner"
)

// Differ produces the closure diff between two systems
type Differ struct {
	Runner runner.Runner
	// Command defaults to "nvd"
	Command string
	// Current defaults to /run/current-system
	Current string
}

// Diff returns the diff text from the running system to candidate. The diff
// is also streamed to the terminal.
func (d *Differ) Diff(ctx context.Context, candidate string) (string, error) {
	cmd, current := d.Command, d.Current
	if cmd == "" {
		cmd = "nvd"
	}
	if current == "" {
		current = "/run/current-system"
	}
	res, err := d.Runner.Run(ctx, runner.Command{Name: cmd, Args: []string{"diff", current, candidate}})
	if err != nil {
		return res.Stdout, errors.Wrapf(err, errors.ErrDiff, "diff %s against %s", candidate, current)
	}
	return res.Stdout, nil
}
