// Package vcs answers the two questions the updater asks version control:
// did the lock file change, and how should the change be committed.
package vcs

import (
	"context"
	"strings"

	"github.com/arthur-debert/fleetup/pkg/config"
	"github.com/arthur-debert/fleetup/pkg/errors"
	"github.com/arthur-debert/fleetup/pkg/logging"
	"github.com/arthur-debert/fleetup/pkg/runner"
	"github.com/rs/zerolog"
)

// CommitAction reports what CommitLock did
type CommitAction string

const (
	// Unchanged means there was nothing to commit
	Unchanged CommitAction = "unchanged"
	// Committed means a new commit was created
	Committed CommitAction = "committed"
	// Folded means the change was folded into the previous bump commit
	Folded CommitAction = "folded"
)

// VCS is implemented per backend
type VCS interface {
	// Changed reports whether path differs from its last committed state
	Changed(ctx context.Context, path string) (bool, error)

	// Commit records path. When the previous commit's description starts
	// with message the change is folded into it instead.
	Commit(ctx context.Context, path, message string) (CommitAction, error)
}

// CommitLock commits path when it changed
func CommitLock(ctx context.Context, v VCS, path, message string) (CommitAction, error) {
	changed, err := v.Changed(ctx, path)
	if err != nil || !changed {
		return Unchanged, err
	}
	return v.Commit(ctx, path, message)
}

// New returns the backend named by backend, running commands in dir
func New(backend string, r runner.Runner, dir string) (VCS, error) {
	logger := logging.GetLogger("vcs")
	switch backend {
	case config.BackendJJ:
		return &jj{r: r, dir: dir, logger: logger}, nil
	case config.BackendGit:
		return &git{r: r, dir: dir, logger: logger}, nil
	case config.BackendNone:
		return none{}, nil
	default:
		return nil, errors.Newf(errors.ErrConfigValid, "unknown vcs backend %q", backend)
	}
}

func run(ctx context.Context, r runner.Runner, dir, name string, args ...string) (string, error) {
	res, err := r.Run(ctx, runner.Command{Name: name, Args: args, Dir: dir, Quiet: true})
	if err != nil {
		return res.Stdout, errors.Wrapf(err, errors.ErrVCS, "%s %s failed", name, strings.Join(args, " "))
	}
	return res.Stdout, nil
}

// jj drives a jujutsu working copy
type jj struct {
	r      runner.Runner
	dir    string
	logger zerolog.Logger
}

func (j *jj) Changed(ctx context.Context, path string) (bool, error) {
	out, err := run(ctx, j.r, j.dir, "jj", "diff", "--stat", path)
	if err != nil {
		return false, err
	}
	out = strings.TrimSpace(out)
	return out != "" && !strings.Contains(out, "0 files changed"), nil
}

func (j *jj) Commit(ctx context.Context, path, message string) (CommitAction, error) {
	desc, err := run(ctx, j.r, j.dir, "jj", "log", "-r", "@-", "--no-graph", "-T", "description")
	if err != nil {
		return Unchanged, err
	}

	if strings.HasPrefix(strings.TrimSpace(desc), message) {
		j.logger.Info().Str("path", path).Msg("Folding lock change into previous bump commit")
		if _, err := run(ctx, j.r, j.dir, "jj", "squash", "--into", "@-", path); err != nil {
			return Unchanged, err
		}
		return Folded, nil
	}

	if _, err := run(ctx, j.r, j.dir, "jj", "commit", "-m", message, path); err != nil {
		return Unchanged, err
	}
	return Committed, nil
}

// git drives a plain git checkout
type git struct {
	r      runner.Runner
	dir    string
	logger zerolog.Logger
}

func (g *git) Changed(ctx context.Context, path string) (bool, error) {
	out, err := run(ctx, g.r, g.dir, "git", "status", "--porcelain", "--", path)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

func (g *git) Commit(ctx context.Context, path, message string) (CommitAction, error) {
	if _, err := run(ctx, g.r, g.dir, "git", "add", "--", path); err != nil {
		return Unchanged, err
	}

	// An empty repository has no HEAD; that simply means nothing to fold into.
	subject, headErr := run(ctx, g.r, g.dir, "git", "log", "-1", "--format=%s")
	if headErr == nil && strings.HasPrefix(strings.TrimSpace(subject), message) {
		g.logger.Info().Str("path", path).Msg("Amending previous bump commit")
		if _, err := run(ctx, g.r, g.dir, "git", "commit", "--amend", "--no-edit", "--", path); err != nil {
			return Unchanged, err
		}
		return Folded, nil
	}

	if _, err := run(ctx, g.r, g.dir, "git", "commit", "-m", message, "--", path); err != nil {
		return Unchanged, err
	}
	return Committed, nil
}

// none disables version control integration
type none struct{}

func (none) Changed(context.Context, string) (bool, error) { return false, nil }

func (none) Commit(context.Context, string, string) (CommitAction, error) {
	return Unchanged, nil
}
