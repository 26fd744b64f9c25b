// Package runner is the boundary between fleetup and the external tools it
// drives (nix, colmena, nvd, loginctl, jj, git).
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/arthur-debert/fleetup/pkg/logging"
	"github.com/rs/zerolog"
)

// Command describes one external invocation
type Command struct {
	Name string
	Args []string
	Dir  string

	// Quiet suppresses streaming to the terminal; output is still captured.
	Quiet bool
}

// String renders the command line for display
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result holds the captured output of a finished command
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Combined returns stdout followed by stderr
func (r Result) Combined() string {
	return r.Stdout + r.Stderr
}

// CommandError is returned when a command cannot start or exits non-zero
type CommandError struct {
	Name     string
	Args     []string
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Name, strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += ": " + lastLine(e.Stderr)
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Runner executes external commands. Calls block until the child exits;
// there is no timeout.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs commands with os/exec, teeing their output to the terminal
// writers while capturing it.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer

	// OnStart is called before each command starts, used to print the
	// "Running: ..." line.
	OnStart func(Command)

	logger zerolog.Logger
}

// NewExecRunner creates a runner streaming to the process stdout/stderr
func NewExecRunner() *ExecRunner {
	return &ExecRunner{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		logger: logging.GetLogger("runner"),
	}
}

// Run implements Runner
func (r *ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	if r.OnStart != nil {
		r.OnStart(c)
	}
	logging.LogCommand(r.logger, c.Name, c.Args)

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdin = os.Stdin

	var stdout, stderr bytes.Buffer
	if c.Quiet || r.Stdout == nil {
		cmd.Stdout = &stdout
	} else {
		cmd.Stdout = io.MultiWriter(r.Stdout, &stdout)
	}
	if c.Quiet || r.Stderr == nil {
		cmd.Stderr = &stderr
	} else {
		cmd.Stderr = io.MultiWriter(r.Stderr, &stderr)
	}

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) && res.ExitCode == 0 {
			res.ExitCode = -1
		}
		r.logger.Debug().
			Str("command", c.Name).
			Int("exitCode", res.ExitCode).
			Err(err).
			Msg("Command failed")
		return res, &CommandError{
			Name:     c.Name,
			Args:     c.Args,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
			ExitCode: res.ExitCode,
			Err:      err,
		}
	}

	r.logger.Debug().Str("command", c.Name).Msg("Command succeeded")
	return res, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
