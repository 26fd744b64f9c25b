// Package runnertest provides a scripted Runner for tests.
package runnertest

import (
	"context"
	"fmt"
	"strings"

	"github.com/arthur-debert/fleetup/pkg/runner"
)

// Rule scripts the outcome of commands whose command line starts with Prefix
type Rule struct {
	Prefix   string
	Stdout   string
	Stderr   string
	ExitCode int
	// Times limits how often the rule matches; zero means always.
	Times int

	used int
	hook func()
}

// Fails makes the rule exit with the given non-zero code
func (r *Rule) Fails(code int) *Rule {
	r.ExitCode = code
	return r
}

// Outputs sets captured stdout
func (r *Rule) Outputs(stdout string) *Rule {
	r.Stdout = stdout
	return r
}

// Errors sets captured stderr
func (r *Rule) Errors(stderr string) *Rule {
	r.Stderr = stderr
	return r
}

// Once limits the rule to a single match
func (r *Rule) Once() *Rule {
	r.Times = 1
	return r
}

// Do runs fn when the rule matches, before the result is returned
func (r *Rule) Do(fn func()) *Rule {
	r.hook = fn
	return r
}

// Fake is a Runner that records calls and answers from scripted rules.
// Commands matching no rule succeed with empty output.
type Fake struct {
	Calls []runner.Command
	rules []*Rule
}

// New creates an empty Fake
func New() *Fake {
	return &Fake{}
}

// On adds a rule for commands starting with prefix. Rules are consulted in
// the order they were added.
func (f *Fake) On(prefix string) *Rule {
	r := &Rule{Prefix: prefix}
	f.rules = append(f.rules, r)
	return r
}

// Run implements runner.Runner
func (f *Fake) Run(ctx context.Context, cmd runner.Command) (runner.Result, error) {
	if err := ctx.Err(); err != nil {
		return runner.Result{ExitCode: -1}, &runner.CommandError{Name: cmd.Name, Args: cmd.Args, ExitCode: -1, Err: err}
	}
	f.Calls = append(f.Calls, cmd)

	line := cmd.String()
	for _, r := range f.rules {
		if !strings.HasPrefix(line, r.Prefix) {
			continue
		}
		if r.Times > 0 && r.used >= r.Times {
			continue
		}
		r.used++
		if r.hook != nil {
			r.hook()
		}
		res := runner.Result{Stdout: r.Stdout, Stderr: r.Stderr, ExitCode: r.ExitCode}
		if r.ExitCode != 0 {
			return res, &runner.CommandError{
				Name:     cmd.Name,
				Args:     cmd.Args,
				Stdout:   r.Stdout,
				Stderr:   r.Stderr,
				ExitCode: r.ExitCode,
				Err:      fmt.Errorf("exit status %d", r.ExitCode),
			}
		}
		return res, nil
	}
	return runner.Result{}, nil
}

// Commands returns every recorded command line
func (f *Fake) Commands() []string {
	out := make([]string, 0, len(f.Calls))
	for _, c := range f.Calls {
		out = append(out, c.String())
	}
	return out
}

// Count returns how many recorded command lines start with prefix
func (f *Fake) Count(prefix string) int {
	n := 0
	for _, c := range f.Calls {
		if strings.HasPrefix(c.String(), prefix) {
			n++
		}
	}
	return n
}

// Ran reports whether any recorded command line starts with prefix
func (f *Fake) Ran(prefix string) bool {
	return f.Count(prefix) > 0
}
