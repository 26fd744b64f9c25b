package deploy

import (
	"context"
	"encoding/json"
	"slices"
	"strings"

	"github.com/arthur-debert/fleetup/pkg/errors"
	"github.com/arthur-debert/fleetup/pkg/logging"
	"github.com/arthur-debert/fleetup/pkg/runner"
	"github.com/rs/zerolog"
)

// nodeNamesExpr lists the hive's node names
const nodeNamesExpr = "{ nodes, ... }: builtins.attrNames nodes"

// Executor applies a Plan with colmena
type Executor struct {
	runner    runner.Runner
	command   string
	flakeRoot string
	logger    zerolog.Logger
}

// NewExecutor creates an Executor. command defaults to "colmena".
func NewExecutor(r runner.Runner, command, flakeRoot string) *Executor {
	if command == "" {
		command = "colmena"
	}
	return &Executor{
		runner:    r,
		command:   command,
		flakeRoot: flakeRoot,
		logger:    logging.GetLogger("deploy"),
	}
}

// LocalCommand is the command that applies goal to this machine
func (e *Executor) LocalCommand(goal Goal) runner.Command {
	return e.cmd("apply-local", "--sudo", string(goal))
}

// RemoteCommand is the command that applies goal to hosts. Boot deploys
// reboot the targets.
func (e *Executor) RemoteCommand(goal Goal, hosts []string) runner.Command {
	args := []string{"apply", string(goal), "--on", strings.Join(hosts, ",")}
	if goal == GoalBoot {
		args = append(args, "--reboot")
	}
	return e.cmd(args...)
}

// Apply runs the plan, local first. An empty plan runs nothing.
func (e *Executor) Apply(ctx context.Context, plan Plan) error {
	if plan.Empty() {
		e.logger.Info().Msg("Nothing selected for deployment")
		return nil
	}
	if plan.deployLocal() {
		if _, err := e.runner.Run(ctx, e.LocalCommand(plan.Local)); err != nil {
			return errors.Wrapf(err, errors.ErrDeploy, "local %s failed", plan.Local)
		}
	}
	if plan.deployRemote() {
		if _, err := e.runner.Run(ctx, e.RemoteCommand(plan.Remote, plan.RemoteHosts)); err != nil {
			return errors.Wrapf(err, errors.ErrDeploy, "remote %s failed", plan.Remote).
				WithDetail("hosts", plan.RemoteHosts)
		}
	}
	return nil
}

// CollectGarbage runs gcArgs on every host
func (e *Executor) CollectGarbage(ctx context.Context, hosts, gcArgs []string) error {
	if len(hosts) == 0 || len(gcArgs) == 0 {
		return nil
	}
	args := append([]string{"exec", "--on", strings.Join(hosts, ","), "--"}, gcArgs...)
	if _, err := e.runner.Run(ctx, e.cmd(args...)); err != nil {
		return errors.Wrap(err, errors.ErrDeploy, "remote garbage collection failed")
	}
	return nil
}

// RemoteHosts returns the deploy targets other than localHost. Configured
// hosts win; otherwise the hive is asked for its node names.
func (e *Executor) RemoteHosts(ctx context.Context, configured []string, localHost string) ([]string, error) {
	hosts := configured
	if len(hosts) == 0 {
		res, err := e.runner.Run(ctx, runner.Command{
			Name:  e.command,
			Args:  []string{"eval", "-E", nodeNamesExpr},
			Dir:   e.flakeRoot,
			Quiet: true,
		})
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrDeploy, "list fleet nodes")
		}
		if err := json.Unmarshal([]byte(strings.TrimSpace(res.Stdout)), &hosts); err != nil {
			return nil, errors.Wrap(err, errors.ErrDeploy, "parse fleet node list")
		}
	}

	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if h != "" && h != localHost && !slices.Contains(out, h) {
			out = append(out, h)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (e *Executor) cmd(args ...string) runner.Command {
	return runner.Command{Name: e.command, Args: args, Dir: e.flakeRoot}
}
