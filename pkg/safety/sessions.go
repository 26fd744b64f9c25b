package safety

import (
	"bufio"
	"context"
	"strings"

	"github.com/arthur-debert/fleetup/pkg/errors"
	"github.com/arthur-debert/fleetup/pkg/runner"
)

// Session is one login session
type Session struct {
	ID     string
	User   string
	Type   string
	Active bool
}

// Graphical reports whether the session runs a windowing system
func (s Session) Graphical() bool {
	switch s.Type {
	case "x11", "wayland", "mir":
		return true
	}
	return false
}

// SessionInventory lists the machine's login sessions
type SessionInventory interface {
	Sessions(ctx context.Context) ([]Session, error)
}

// Loginctl reads sessions from systemd-logind
type Loginctl struct {
	Runner runner.Runner
	// Command defaults to "loginctl"
	Command string
}

// Sessions implements SessionInventory
func (l *Loginctl) Sessions(ctx context.Context) ([]Session, error) {
	cmd := l.Command
	if cmd == "" {
		cmd = "loginctl"
	}

	res, err := l.Runner.Run(ctx, runner.Command{
		Name:  cmd,
		Args:  []string{"list-sessions", "--no-legend"},
		Quiet: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrSessions, "list login sessions")
	}

	var sessions []Session
	sc := bufio.NewScanner(strings.NewReader(res.Stdout))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		props, err := l.Runner.Run(ctx, runner.Command{
			Name:  cmd,
			Args:  []string{"show-session", fields[0], "-p", "Name", "-p", "Type", "-p", "Active"},
			Quiet: true,
		})
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrSessions, "inspect session %s", fields[0])
		}
		s := parseSessionProps(props.Stdout)
		s.ID = fields[0]
		if s.User == "" && len(fields) >= 3 {
			s.User = fields[2]
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func parseSessionProps(out string) Session {
	var s Session
	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		switch key {
		case "Name":
			s.User = value
		case "Type":
			s.Type = value
		case "Active":
			s.Active = value == "yes"
		}
	}
	return s
}
