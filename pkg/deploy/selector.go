package deploy

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/arthur-debert/fleetup/pkg/logging"
	"github.com/arthur-debert/fleetup/pkg/ui"
	"github.com/rs/zerolog"
)

// Defaults per target class
const (
	DefaultLocalGoal  = GoalSwitch
	DefaultRemoteGoal = GoalBoot
)

// Request describes what the selector should offer
type Request struct {
	LocalHost   string
	RemoteHosts []string

	// Warnings are shown above the prompt; RecommendBoot annotates the local
	// choice. Neither changes the defaults.
	Warnings      []string
	RecommendBoot bool
}

// Selector runs the interactive deployment prompt. Invalid input is asked
// again without limit; cancelling ctx abandons the prompt.
type Selector struct {
	console *ui.Console
	in      *bufio.Reader
	pending chan lineResult
	eof     error
	logger  zerolog.Logger
}

type lineResult struct {
	line string
	err  error
}

// NewSelector reads answers from in and prints prompts to console
func NewSelector(console *ui.Console, in io.Reader) *Selector {
	return &Selector{
		console: console,
		in:      bufio.NewReader(in),
		logger:  logging.GetLogger("deploy"),
	}
}

// Select asks for a plan. It returns false when the user chose to exit or
// the input ended.
func (s *Selector) Select(ctx context.Context, req Request) (Plan, bool, error) {
	if len(req.Warnings) > 0 {
		s.console.Box("Deploying now may disrupt this machine", req.Warnings)
	}

	deploy, err := s.topLevel(ctx)
	if err != nil || !deploy {
		return Plan{}, false, err
	}

	plan := Plan{Local: GoalSkip, Remote: GoalSkip, RemoteHosts: req.RemoteHosts}

	label := "Local"
	if req.LocalHost != "" {
		label = fmt.Sprintf("Local (%s)", req.LocalHost)
	}
	if req.RecommendBoot {
		label += ", boot recommended"
	}
	if plan.Local, err = s.goal(ctx, label, DefaultLocalGoal); err != nil {
		return s.abandon(err)
	}

	if len(req.RemoteHosts) > 0 {
		label := fmt.Sprintf("Remote (%s)", strings.Join(req.RemoteHosts, ", "))
		if plan.Remote, err = s.goal(ctx, label, DefaultRemoteGoal); err != nil {
			return s.abandon(err)
		}
	}

	s.logger.Info().Str("plan", plan.String()).Msg("Deployment selected")
	return plan, true, nil
}

// abandon turns end of input into a plain exit
func (s *Selector) abandon(err error) (Plan, bool, error) {
	if err == io.EOF {
		s.newline()
		return Plan{}, false, nil
	}
	return Plan{}, false, err
}

func (s *Selector) topLevel(ctx context.Context) (bool, error) {
	for {
		s.prompt("1) exit  2) deploy\nChoice: ")
		line, err := s.readLine(ctx)
		if err == io.EOF {
			s.newline()
			return false, nil
		}
		if err != nil {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "1", "exit":
			return false, nil
		case "2", "deploy":
			return true, nil
		}
		s.console.Warning("Please answer 1 or 2")
	}
}

func (s *Selector) goal(ctx context.Context, label string, def Goal) (Goal, error) {
	for {
		s.prompt(fmt.Sprintf("%s: 1) switch  2) boot  3) skip [%s]: ", label, def))
		line, err := s.readLine(ctx)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(line) == "" {
			return def, nil
		}
		if g, ok := parseGoal(line); ok {
			return g, nil
		}
		s.console.Warning("Please answer switch, boot or skip (or 1-3)")
	}
}

func (s *Selector) prompt(text string) {
	_, _ = fmt.Fprint(s.console.Writer(), text)
}

func (s *Selector) newline() {
	_, _ = fmt.Fprintln(s.console.Writer())
}

// readLine waits for the next input line or for ctx to end. Each call
// starts at most one read; a read abandoned by ctx is picked up by the next
// call, so stdin is never read outside a prompt.
func (s *Selector) readLine(ctx context.Context) (string, error) {
	if s.eof != nil {
		return "", s.eof
	}
	if s.pending == nil {
		ch := make(chan lineResult, 1)
		s.pending = ch
		go func() {
			line, err := s.in.ReadString('\n')
			ch <- lineResult{line: line, err: err}
		}()
	}
	select {
	case <-ctx.Done():
		s.newline()
		return "", ctx.Err()
	case r := <-s.pending:
		s.pending = nil
		if r.err != nil {
			s.eof = r.err
			if r.line != "" {
				return r.line, nil
			}
			return "", r.err
		}
		return r.line, nil
	}
}
