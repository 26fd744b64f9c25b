// Package deploy asks which deployment goal to use for the local machine and
// for the remote fleet, then runs colmena to apply it.
package deploy

import "strings"

// Goal is what to do with a target class
type Goal string

const (
	// GoalSwitch activates the new system now
	GoalSwitch Goal = "switch"
	// GoalBoot makes the new system the default for the next boot
	GoalBoot Goal = "boot"
	// GoalSkip leaves the target alone
	GoalSkip Goal = "skip"
)

var goals = []Goal{GoalSwitch, GoalBoot, GoalSkip}

// parseGoal accepts a menu number or a goal name
func parseGoal(input string) (Goal, bool) {
	input = strings.ToLower(strings.TrimSpace(input))
	for i, g := range goals {
		if input == string(g) || input == string(rune('1'+i)) {
			return g, true
		}
	}
	return "", false
}

// Plan is the chosen goal per target class
type Plan struct {
	Local       Goal
	Remote      Goal
	RemoteHosts []string
}

// Empty reports whether the plan deploys nothing
func (p Plan) Empty() bool {
	return !p.deployLocal() && !p.deployRemote()
}

func (p Plan) deployLocal() bool {
	return p.Local == GoalSwitch || p.Local == GoalBoot
}

func (p Plan) deployRemote() bool {
	return (p.Remote == GoalSwitch || p.Remote == GoalBoot) && len(p.RemoteHosts) > 0
}

// String renders the plan for logs and the summary
func (p Plan) String() string {
	local, remote := p.Local, p.Remote
	if local == "" {
		local = GoalSkip
	}
	if remote == "" || len(p.RemoteHosts) == 0 {
		remote = GoalSkip
	}
	return "local=" + string(local) + " remote=" + string(remote)
}
