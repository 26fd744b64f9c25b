// Package inputs reads the flake lock graph and refreshes its inputs with
// nix flake update, either all at once or one named input at a time.
package inputs

import (
	"context"
	"sort"

	"github.com/arthur-debert/fleetup/pkg/errors"
	"github.com/arthur-debert/fleetup/pkg/filesystem"
	"github.com/arthur-debert/fleetup/pkg/logging"
	"github.com/arthur-debert/fleetup/pkg/runner"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
)

// Options configures a Resolver
type Options struct {
	FlakeRoot string
	LockPath  string

	// NixCommand defaults to "nix"
	NixCommand string
	// ExperimentalFeatures is passed as --extra-experimental-features when set
	ExperimentalFeatures string
}

// Resolver computes update sets and drives nix
type Resolver struct {
	opts   Options
	fs     filesystem.FS
	runner runner.Runner
	logger zerolog.Logger
}

// NewResolver creates a resolver
func NewResolver(fsys filesystem.FS, r runner.Runner, opts Options) *Resolver {
	if opts.NixCommand == "" {
		opts.NixCommand = "nix"
	}
	return &Resolver{
		opts:   opts,
		fs:     fsys,
		runner: r,
		logger: logging.GetLogger("inputs"),
	}
}

// AllInputs returns every node name of the lock graph except root. The graph
// is read fresh on each call.
func (r *Resolver) AllInputs() (map[string]struct{}, error) {
	g, err := LoadGraph(r.fs, r.opts.LockPath)
	if err != nil {
		return nil, err
	}
	all := make(map[string]struct{}, len(g.Nodes))
	for _, name := range g.Names() {
		all[name] = struct{}{}
	}
	return all, nil
}

// SelectableInputs returns AllInputs minus exclude in lexicographic order
func (r *Resolver) SelectableInputs(exclude map[string]struct{}) ([]string, error) {
	all, err := r.AllInputs()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(all))
	for name := range all {
		if _, skip := exclude[name]; skip {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// ResolveExclusions expands glob patterns against the input names. The
// result is sorted, never empty, and always leaves at least one input to
// update.
func (r *Resolver) ResolveExclusions(patterns []string) ([]string, error) {
	all, err := r.AllInputs()
	if err != nil {
		return nil, err
	}

	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, errors.Newf(errors.ErrInvalidInput, "invalid exclusion pattern %q", p)
		}
	}

	var excluded []string
	for name := range all {
		for _, p := range patterns {
			if ok, _ := doublestar.Match(p, name); ok {
				excluded = append(excluded, name)
				break
			}
		}
	}
	sort.Strings(excluded)

	if len(excluded) == 0 {
		return nil, errors.New(errors.ErrEmptySelection, "exclusion patterns match no input").
			WithDetail("patterns", patterns)
	}
	if len(excluded) == len(all) {
		return nil, errors.New(errors.ErrEmptySelection, "exclusion patterns match every input").
			WithDetail("patterns", patterns)
	}
	return excluded, nil
}

// UpdateAll refreshes every input
func (r *Resolver) UpdateAll(ctx context.Context) error {
	if _, err := r.runner.Run(ctx, r.nix("flake", "update")); err != nil {
		return errors.Wrap(err, errors.ErrUpdate, "update all inputs")
	}
	return nil
}

// UpdateSelected refreshes each named input in sorted order, stopping at the
// first failure. An empty list is an error and runs nothing.
func (r *Resolver) UpdateSelected(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return errors.New(errors.ErrEmptySelection, "no inputs selected for update")
	}
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	for _, name := range sorted {
		r.logger.Info().Str("input", name).Msg("Updating input")
		if _, err := r.runner.Run(ctx, r.nix("flake", "update", name)); err != nil {
			return errors.Wrapf(err, errors.ErrUpdate, "update input %s", name).
				WithDetail("input", name)
		}
	}
	return nil
}

// Check runs nix flake check
func (r *Resolver) Check(ctx context.Context) error {
	if _, err := r.runner.Run(ctx, r.nix("flake", "check")); err != nil {
		return errors.Wrap(err, errors.ErrUpdate, "flake check failed")
	}
	return nil
}

func (r *Resolver) nix(args ...string) runner.Command {
	var full []string
	if r.opts.ExperimentalFeatures != "" {
		full = append(full, "--extra-experimental-features", r.opts.ExperimentalFeatures)
	}
	return runner.Command{
		Name: r.opts.NixCommand,
		Args: append(full, args...),
		Dir:  r.opts.FlakeRoot,
	}
}
