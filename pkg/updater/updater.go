package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/fleetup/pkg/build"
	"github.com/arthur-debert/fleetup/pkg/config"
	"github.com/arthur-debert/fleetup/pkg/deploy"
	fuerrors "github.com/arthur-debert/fleetup/pkg/errors"
	"github.com/arthur-debert/fleetup/pkg/filesystem"
	"github.com/arthur-debert/fleetup/pkg/inputs"
	"github.com/arthur-debert/fleetup/pkg/logging"
	"github.com/arthur-debert/fleetup/pkg/runner"
	"github.com/arthur-debert/fleetup/pkg/safety"
	"github.com/arthur-debert/fleetup/pkg/snapshot"
	"github.com/arthur-debert/fleetup/pkg/strategy"
	"github.com/arthur-debert/fleetup/pkg/ui"
	"github.com/arthur-debert/fleetup/pkg/vcs"
	"github.com/rs/zerolog"
)

// Exit codes
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitInterrupted = 130
)

// Deps are the collaborators of an Updater. Zero values get defaults:
// the OS filesystem, the exec runner, stdin, stdout and loginctl.
type Deps struct {
	Config    *config.Config
	FlakeRoot string
	FS        filesystem.FS
	Runner    runner.Runner
	Console   *ui.Console
	Input     io.Reader
	Sessions  safety.SessionInventory
	// User owns the graphical session the safety check looks for
	User string
	// TempDir holds the lock backup; empty means the system temp dir
	TempDir string
}

// Updater runs update and deploy strategies
type Updater struct {
	cfg       *config.Config
	flakeRoot string
	user      string
	runner    runner.Runner
	console   *ui.Console

	store    *snapshot.Store
	vcs      vcs.VCS
	inputs   *inputs.Resolver
	builder  *build.Executor
	differ   *safety.Differ
	analyzer *safety.Analyzer
	selector *deploy.Selector
	deployer *deploy.Executor

	engine *strategy.Engine[*RunContext]
	logger zerolog.Logger
}

// New wires an Updater from deps
func New(d Deps) (*Updater, error) {
	if d.Config == nil {
		return nil, fuerrors.New(fuerrors.ErrInternal, "updater needs a configuration")
	}
	if err := d.Config.Validate(); err != nil {
		return nil, err
	}
	if d.FS == nil {
		d.FS = filesystem.NewOS()
	}
	if d.Runner == nil {
		d.Runner = runner.NewExecRunner()
	}
	if d.Console == nil {
		d.Console = ui.Stdout()
	}
	if d.Input == nil {
		d.Input = os.Stdin
	}
	if d.Sessions == nil {
		d.Sessions = &safety.Loginctl{Runner: d.Runner}
	}
	if d.User == "" {
		d.User = os.Getenv("USER")
	}

	cfg := d.Config
	v, err := vcs.New(cfg.VCS.Backend, d.Runner, d.FlakeRoot)
	if err != nil {
		return nil, err
	}
	lockPath := filepath.Join(d.FlakeRoot, cfg.Flake.LockFile)

	u := &Updater{
		cfg:       cfg,
		flakeRoot: d.FlakeRoot,
		user:      d.User,
		runner:    d.Runner,
		console:   d.Console,
		store:     snapshot.NewStore(d.FS, lockPath, v).WithTempDir(d.TempDir),
		vcs:       v,
		inputs: inputs.NewResolver(d.FS, d.Runner, inputs.Options{
			FlakeRoot:            d.FlakeRoot,
			LockPath:             lockPath,
			NixCommand:           cfg.Nix.Command,
			ExperimentalFeatures: cfg.Nix.ExperimentalFeatures,
		}),
		builder: build.NewExecutor(d.FS, d.Runner, build.Options{
			FlakeRoot: d.FlakeRoot,
			Command:   cfg.Build.Command,
			ResultDir: cfg.Build.ResultDir,
		}),
		differ: &safety.Differ{
			Runner:  d.Runner,
			Command: cfg.Diff.Command,
			Current: cfg.Diff.CurrentSystem,
		},
		analyzer: safety.NewAnalyzer(safety.Rules{
			GPUPackages:     cfg.Safety.GPUPackages,
			DesktopPackages: cfg.Safety.DesktopPackages,
		}, d.Sessions),
		selector: deploy.NewSelector(d.Console, d.Input),
		deployer: deploy.NewExecutor(d.Runner, cfg.Build.Command, d.FlakeRoot),
		logger:   logging.GetLogger("updater"),
	}
	u.engine = strategy.NewEngine(u.registerSteps(), u.hooks())
	return u, nil
}

// Outcome summarizes a finished run
type Outcome struct {
	RunID      string
	Kind       ui.Outcome
	Message    string
	Strategy   string
	Exclusions []string
	Plan       deploy.Plan
	Deployed   bool
	Safety     *safety.Report
	// Restores is how many times the lock was put back from the backup
	Restores int
}

// ExitCode maps the outcome to the process exit status
func (o *Outcome) ExitCode() int {
	switch o.Kind {
	case ui.OutcomeSuccess, ui.OutcomeWithExclusions:
		return ExitOK
	case ui.OutcomeInterrupted:
		return ExitInterrupted
	default:
		return ExitFailure
	}
}

// RunOptions parameterize one run
type RunOptions struct {
	// ID defaults to a fresh ULID
	ID string
	// BuildArgs are passed through to the builder
	BuildArgs []string
}

// Run performs one full update. The returned error carries fatal failures
// and interruption only; ordinary failures are reported in the Outcome. The
// lock backup is removed before Run returns.
func (u *Updater) Run(ctx context.Context, opts RunOptions) (*Outcome, error) {
	rc := newRunContext(opts.ID, opts.BuildArgs)
	out := &Outcome{RunID: rc.ID}
	u.logger.Info().Str("run", rc.ID).Strs("buildArgs", rc.ExtraArgs).Msg("Starting update run")

	failure := u.run(ctx, rc, out)

	u.finish(ctx, rc)
	out.Exclusions = rc.Exclusions
	out.Plan, out.Deployed, out.Safety = rc.Plan, rc.Deployed, rc.Safety
	out.Restores = rc.Restores
	out.Kind, out.Message = u.classify(ctx, rc, out, failure)
	u.console.Summary(out.Kind, out.Message)
	u.logger.Info().
		Str("run", rc.ID).
		Str("outcome", string(out.Kind)).
		Str("message", out.Message).
		Msg("Update run finished")

	return out, fatalOnly(ctx, failure)
}

// run drives the update chain then the deploy strategy and returns the
// failure that stopped it, if any
func (u *Updater) run(ctx context.Context, rc *RunContext, out *Outcome) error {
	res, err := u.engine.Run(ctx, UpdateChain(), rc)
	out.Strategy = finalName(res)
	if err != nil {
		return err
	}
	if !res.Succeeded {
		return res.Err
	}
	rc.Strategy = res.Final.Name
	rc.LockSettled = true

	res, err = u.engine.Run(ctx, DeployStrategy(), rc)
	if err != nil || !res.Succeeded {
		out.Strategy = Deploy
		if err == nil {
			err = res.Err
		}
		return err
	}
	return nil
}

// finish puts the lock back if the run was interrupted mid update, then
// drops the backup
func (u *Updater) finish(ctx context.Context, rc *RunContext) {
	if ctx.Err() != nil && rc.BackedUp && !rc.LockSettled {
		if err := u.store.Restore(rc.Backup); err != nil {
			u.console.Error("Could not restore lock file: %v", err)
		} else {
			rc.Restores++
			u.console.Warning("Interrupted, lock file restored")
		}
	}
	if err := u.store.Cleanup(rc.Backup); err != nil {
		u.console.Warning("Could not remove lock backup: %v", err)
	}
}

func (u *Updater) classify(ctx context.Context, rc *RunContext, out *Outcome, err error) (ui.Outcome, string) {
	switch {
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		return ui.OutcomeInterrupted, "Interrupted"
	case err != nil && fuerrors.IsFatal(err):
		return ui.OutcomeFailed, fmt.Sprintf("Update aborted: %v", err)
	case out.Strategy == RestoreAndExit:
		return ui.OutcomeRestored, "Update failed, lock file restored"
	case out.Strategy == Deploy:
		return ui.OutcomeFailed, fmt.Sprintf("Update built but deployment failed: %v", err)
	case !rc.LockSettled:
		return ui.OutcomeFailed, fmt.Sprintf("Update failed: %v", err)
	case len(rc.Exclusions) > 0:
		return ui.OutcomeWithExclusions, "Update succeeded with exclusions: " + strings.Join(rc.Exclusions, ", ")
	default:
		return ui.OutcomeSuccess, "Update succeeded"
	}
}

func (u *Updater) hooks() strategy.Hooks {
	return strategy.Hooks{
		StepStarted: func(_ string, desc string) {
			u.console.Action("%s", desc)
		},
		StepFinished: func(step string, err error) {
			switch {
			case err == nil:
				u.console.Success("%s done", step)
			case errors.Is(err, context.Canceled):
				u.console.Warning("%s interrupted", step)
			default:
				u.console.Error("%s failed: %v", step, err)
			}
		},
		StrategyFailed: func(s *strategy.Strategy, _ string, _ error) {
			if s.FailureMessage != "" {
				u.console.Warning("%s", s.FailureMessage)
			}
		},
		StrategySucceeded: func(s *strategy.Strategy) {
			if s.SuccessMessage != "" {
				u.console.Success("%s", s.SuccessMessage)
			}
		},
		RecoveryFailed: func(step string, err error) {
			u.logger.Warn().Str("step", step).Err(err).Msg("Recovery step failed")
		},
	}
}

// Inputs lists the lock file's inputs and the set a selective retry would
// update
func (u *Updater) Inputs(extraExclude []string) (all []string, excluded []string, selected []string, err error) {
	all, err = u.inputs.SelectableInputs(nil)
	if err != nil {
		return nil, nil, nil, err
	}

	patterns := append(append([]string(nil), u.cfg.Update.RetryExclude...), extraExclude...)
	excluded, err = u.inputs.ResolveExclusions(patterns)
	if err != nil {
		return all, nil, nil, err
	}
	skip := make(map[string]struct{}, len(excluded))
	for _, name := range excluded {
		skip[name] = struct{}{}
	}
	selected, err = u.inputs.SelectableInputs(skip)
	return all, excluded, selected, err
}

// Assess diffs candidate against the running system and returns the
// safety report, without building or deploying anything
func (u *Updater) Assess(ctx context.Context, candidate string) *safety.Report {
	_, report := u.assess(ctx, candidate)
	return report
}

func finalName(res strategy.Result) string {
	if res.Final == nil {
		return ""
	}
	return res.Final.Name
}

// fatalOnly drops ordinary step failures, which the Outcome already reports
func fatalOnly(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if fuerrors.IsFatal(err) || ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
