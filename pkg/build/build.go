// Package build runs colmena to build the fleet's system closures.
package build

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/arthur-debert/fleetup/pkg/errors"
	"github.com/arthur-debert/fleetup/pkg/filesystem"
	"github.com/arthur-debert/fleetup/pkg/logging"
	"github.com/arthur-debert/fleetup/pkg/runner"
	"github.com/rs/zerolog"
)

var (
	// colmena reports the built closure as a quoted path in its log output
	quotedStorePath = regexp.MustCompile(`"(/nix/store/[^"\s]+)"`)
	bareStorePath   = regexp.MustCompile(`^/nix/store/\S+$`)
)

// Options configures an Executor
type Options struct {
	FlakeRoot string
	// Command defaults to "colmena"
	Command string
	// ResultDir holds the per-host result links, relative to FlakeRoot
	ResultDir string
}

// Executor builds all hosts or a single host
type Executor struct {
	opts   Options
	fs     filesystem.FS
	runner runner.Runner
	logger zerolog.Logger
}

// NewExecutor creates an Executor
func NewExecutor(fsys filesystem.FS, r runner.Runner, opts Options) *Executor {
	if opts.Command == "" {
		opts.Command = "colmena"
	}
	if opts.ResultDir == "" {
		opts.ResultDir = ".gcroots"
	}
	return &Executor{
		opts:   opts,
		fs:     fsys,
		runner: r,
		logger: logging.GetLogger("build"),
	}
}

// BuildAll builds every host, keeping per-host result links
func (e *Executor) BuildAll(ctx context.Context, extraArgs []string) error {
	args := append([]string{"build", "--keep-result"}, extraArgs...)
	if _, err := e.runner.Run(ctx, e.command(args...)); err != nil {
		return errors.Wrap(err, errors.ErrBuild, "build all hosts")
	}
	return nil
}

// ResultLink returns where BuildAll leaves host's result link
func (e *Executor) ResultLink(host string) string {
	return filepath.Join(e.opts.FlakeRoot, e.opts.ResultDir, "node-"+host)
}

// BuildOne returns the system closure for host. With preferLinks set, a
// result link from BuildAll that still points at an existing path is used
// instead of building again.
func (e *Executor) BuildOne(ctx context.Context, host string, preferLinks bool) (string, error) {
	if preferLinks {
		if path, ok := e.linkedResult(host); ok {
			e.logger.Info().Str("host", host).Str("path", path).Msg("Using existing build result")
			return path, nil
		}
	}

	res, err := e.runner.Run(ctx, e.command("build", "--on", host))
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrBuild, "build %s", host).WithDetail("host", host)
	}

	path := storePath(res.Stdout, res.Stderr)
	if path == "" {
		return "", errors.Newf(errors.ErrBuildOutput, "no store path in build output for %s", host).
			WithDetail("host", host)
	}
	e.logger.Info().Str("host", host).Str("path", path).Msg("Built host")
	return path, nil
}

func (e *Executor) linkedResult(host string) (string, bool) {
	link := e.ResultLink(host)
	target, err := e.fs.Readlink(link)
	if err != nil {
		e.logger.Debug().Str("link", link).Err(err).Msg("No usable result link")
		return "", false
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(link), target)
	}
	if _, err := e.fs.Stat(target); err != nil {
		e.logger.Debug().Str("link", link).Str("target", target).Msg("Result link is broken")
		return "", false
	}
	return target, true
}

func (e *Executor) command(args ...string) runner.Command {
	return runner.Command{Name: e.opts.Command, Args: args, Dir: e.opts.FlakeRoot}
}

// storePath finds the built closure path in colmena's output
func storePath(stdout, stderr string) string {
	for _, out := range []string{stderr, stdout} {
		if m := quotedStorePath.FindAllStringSubmatch(out, -1); len(m) > 0 {
			return m[len(m)-1][1]
		}
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); bareStorePath.MatchString(line) {
			return line
		}
	}
	return ""
}
