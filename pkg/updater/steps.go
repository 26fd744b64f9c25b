package updater

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/fleetup/pkg/deploy"
	"github.com/arthur-debert/fleetup/pkg/errors"
	"github.com/arthur-debert/fleetup/pkg/registry"
	"github.com/arthur-debert/fleetup/pkg/runner"
	"github.com/arthur-debert/fleetup/pkg/safety"
	"github.com/arthur-debert/fleetup/pkg/strategy"
	"github.com/arthur-debert/fleetup/pkg/vcs"
)

// Step names
const (
	StepBackup              = "backup"
	StepUpdateAll           = "update-all"
	StepUpdateSelected      = "update-selected"
	StepUpdateExtraPackages = "update-extra-packages"
	StepFlakeCheck          = "flake-check"
	StepBuild               = "build"
	StepCommitLock          = "commit-lock"
	StepCheckSafety         = "check-safety"
	StepShowDiffAndPrompt   = "show-diff-and-prompt"
	StepRestore             = "restore"
	StepAlert               = "alert"
	StepRemoteGC            = "remote-gc"
)

type stepFunc = func(context.Context, *RunContext) error

func (u *Updater) registerSteps() registry.Registry[strategy.Step[*RunContext]] {
	reg := registry.New[strategy.Step[*RunContext]]()
	add := func(name, desc string, fn stepFunc) {
		registry.MustRegister(reg, name, strategy.NewStep(name, desc, fn))
	}

	add(StepBackup, "Backing up lock file", u.backup)
	add(StepUpdateAll, "Updating all inputs", u.updateAll)
	add(StepUpdateSelected, "Updating inputs with exclusions", u.updateSelected)
	add(StepUpdateExtraPackages, "Updating extra packages", u.updateExtraPackages)
	add(StepFlakeCheck, "Checking flake", u.flakeCheck)
	add(StepBuild, "Building all hosts", u.build)
	add(StepCommitLock, "Committing lock file", u.commitLock)
	add(StepCheckSafety, "Checking deployment safety", u.checkSafety)
	add(StepShowDiffAndPrompt, "Choosing deployment", u.showDiffAndPrompt)
	add(StepRestore, "Restoring lock file", u.restore)
	add(StepAlert, "Alerting", u.alert)
	add(StepRemoteGC, "Collecting garbage on remote hosts", u.remoteGC)
	return reg
}

func (u *Updater) backup(_ context.Context, rc *RunContext) error {
	if rc.BackedUp {
		return nil
	}
	h, err := u.store.Backup()
	if err != nil {
		return err
	}
	rc.Backup, rc.BackedUp = h, true
	return nil
}

func (u *Updater) updateAll(ctx context.Context, _ *RunContext) error {
	return u.inputs.UpdateAll(ctx)
}

func (u *Updater) updateSelected(ctx context.Context, rc *RunContext) error {
	if rc.Backup == nil {
		return errors.New(errors.ErrNoUndoPoint, "no lock file backup to fall back on")
	}

	excluded, err := u.inputs.ResolveExclusions(u.cfg.Update.RetryExclude)
	if err != nil {
		return err
	}
	skip := make(map[string]struct{}, len(excluded))
	for _, name := range excluded {
		skip[name] = struct{}{}
	}
	selected, err := u.inputs.SelectableInputs(skip)
	if err != nil {
		return err
	}

	rc.Exclusions = excluded
	u.console.Info("Holding back: %s", strings.Join(excluded, ", "))
	return u.inputs.UpdateSelected(ctx, selected)
}

func (u *Updater) updateExtraPackages(ctx context.Context, _ *RunContext) error {
	cmds, err := u.cfg.ExtraUpdateCommands()
	if err != nil {
		return err
	}
	for _, argv := range cmds {
		if _, err := u.runner.Run(ctx, runner.Command{Name: argv[0], Args: argv[1:], Dir: u.flakeRoot}); err != nil {
			return errors.Wrapf(err, errors.ErrUpdate, "extra update command %s", argv[0])
		}
	}
	return nil
}

func (u *Updater) flakeCheck(ctx context.Context, _ *RunContext) error {
	if !u.cfg.Nix.Check {
		u.console.Info("Flake check disabled")
		return nil
	}
	return u.inputs.Check(ctx)
}

func (u *Updater) build(ctx context.Context, rc *RunContext) error {
	extra, err := u.cfg.BuildArgs()
	if err != nil {
		return err
	}
	args := append(extra, rc.ExtraArgs...)
	if err := u.builder.BuildAll(ctx, args); err != nil {
		return err
	}
	rc.AllBuilt = true
	return nil
}

func (u *Updater) commitLock(ctx context.Context, rc *RunContext) error {
	diff, err := u.store.Diff(rc.Backup)
	if err != nil {
		u.console.Warning("Could not diff lock file: %v", err)
	}
	rc.LockDiff = diff

	changed, err := u.store.HasChanges(ctx)
	if err != nil {
		u.console.Warning("Could not query version control: %v", err)
		return nil
	}
	if !changed {
		rc.LockCommit = vcs.Unchanged
		u.console.Info("Lock file unchanged")
		return nil
	}

	action, err := u.vcs.Commit(ctx, filepath.Base(u.store.LockPath()), u.cfg.VCS.CommitMessage)
	if err != nil {
		u.console.Warning("Could not commit lock file: %v", err)
		return nil
	}
	rc.LockCommit = action
	return nil
}

func (u *Updater) checkSafety(ctx context.Context, rc *RunContext) error {
	host := u.cfg.LocalHost()
	candidate, err := u.builder.BuildOne(ctx, host, rc.AllBuilt)
	if err != nil {
		return err
	}
	rc.Candidate = candidate

	rc.Diff, rc.Safety = u.assess(ctx, candidate)
	return nil
}

// assess diffs candidate against the running system and classifies it
func (u *Updater) assess(ctx context.Context, candidate string) (string, *safety.Report) {
	diff, err := u.differ.Diff(ctx, candidate)
	if err != nil {
		if ctx.Err() != nil {
			return "", safety.Unknown(ctx.Err())
		}
		u.console.Warning("Could not compare systems: %v", err)
		return diff, safety.Unknown(err)
	}
	return diff, u.analyzer.Analyze(ctx, diff, u.user)
}

func (u *Updater) showDiffAndPrompt(ctx context.Context, rc *RunContext) error {
	hosts, err := u.deployer.RemoteHosts(ctx, u.cfg.Fleet.RemoteHosts, u.cfg.LocalHost())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		u.console.Warning("Could not list remote hosts, offering local deploy only: %v", err)
		hosts = nil
	}
	rc.RemoteHosts = hosts

	req := deploy.Request{LocalHost: u.cfg.LocalHost(), RemoteHosts: hosts}
	if rc.Safety != nil && !rc.Safety.Safe() {
		req.Warnings = rc.Safety.Warnings
		req.RecommendBoot = rc.Safety.RequiresReboot
	}

	u.console.Bell()
	plan, ok, err := u.selector.Select(ctx, req)
	if err != nil {
		return err
	}
	if !ok {
		u.console.Info("Not deploying")
		return nil
	}

	rc.Plan = plan
	if err := u.deployer.Apply(ctx, plan); err != nil {
		return err
	}
	rc.Deployed = !plan.Empty()
	return nil
}

func (u *Updater) remoteGC(ctx context.Context, rc *RunContext) error {
	if !rc.Deployed || rc.Plan.Remote == deploy.GoalSkip || len(rc.Plan.RemoteHosts) == 0 {
		return nil
	}
	gc, err := u.cfg.GCArgs()
	if err != nil {
		return err
	}
	if err := u.deployer.CollectGarbage(ctx, rc.Plan.RemoteHosts, gc); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		u.console.Warning("Remote garbage collection failed: %v", err)
	}
	return nil
}

func (u *Updater) restore(_ context.Context, rc *RunContext) error {
	if !rc.BackedUp {
		return errors.New(errors.ErrNoUndoPoint, "lock file was never backed up")
	}
	if err := u.store.Restore(rc.Backup); err != nil {
		return err
	}
	rc.Restores++
	return nil
}

func (u *Updater) alert(_ context.Context, _ *RunContext) error {
	u.console.Bell()
	return nil
}
