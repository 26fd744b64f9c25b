package safety

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/arthur-debert/fleetup/pkg/logging"
	"github.com/rs/zerolog"
)

var (
	version = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)

	// linux-6.6.1, "linux  6.6.1 -> 6.7.2", linux-zen-6.7 but not util-linux
	kernel = regexp.MustCompile(`(?i)(?:^|[\s\]#/])linux(?:-[a-z]+)*[- ]+\d+\.\d+`)
)

// Rules are the package name fragments the analyzer looks for
type Rules struct {
	GPUPackages     []string
	DesktopPackages []string
}

// Analyzer turns a closure diff into a Report
type Analyzer struct {
	rules    Rules
	sessions SessionInventory
	logger   zerolog.Logger
}

// NewAnalyzer creates an Analyzer
func NewAnalyzer(rules Rules, sessions SessionInventory) *Analyzer {
	return &Analyzer{
		rules:    rules,
		sessions: sessions,
		logger:   logging.GetLogger("safety"),
	}
}

// Analyze classifies diff for user. An empty user matches any session owner.
func (a *Analyzer) Analyze(ctx context.Context, diff, user string) *Report {
	r := &Report{}
	lines := strings.Split(diff, "\n")

	a.checkGPU(r, lines)
	a.checkKernel(r, lines)
	if a.graphicalSession(ctx, user) {
		a.checkDesktop(r, lines)
	}

	r.finalize()
	a.logger.Info().
		Int("warnings", len(r.Warnings)).
		Bool("requiresReboot", r.RequiresReboot).
		Bool("unsafeImmediate", r.UnsafeImmediate).
		Msg("Safety analysis complete")
	return r
}

func (a *Analyzer) checkGPU(r *Report, lines []string) {
	for _, line := range lines {
		pkg := matchFragment(line, a.rules.GPUPackages)
		if pkg == "" {
			continue
		}
		before, after, ok := strings.Cut(line, "->")
		if !ok {
			continue
		}
		oldMajor, oldMinor, okOld := majorMinor(before)
		newMajor, newMinor, okNew := majorMinor(after)
		if !okOld || !okNew {
			r.warn(fmt.Sprintf("GPU driver %s changes in a way that could not be parsed", pkg), true, true)
			continue
		}
		if oldMajor != newMajor || oldMinor != newMinor {
			r.warn(fmt.Sprintf("GPU driver %s major/minor version change: %d.%d -> %d.%d",
				pkg, oldMajor, oldMinor, newMajor, newMinor), true, true)
		}
	}
}

func (a *Analyzer) checkKernel(r *Report, lines []string) {
	for _, line := range lines {
		if kernel.MatchString(line) {
			r.warn("kernel changes: "+strings.Join(strings.Fields(line), " "), true, false)
			return
		}
	}
}

func (a *Analyzer) checkDesktop(r *Report, lines []string) {
	seen := map[string]bool{}
	for _, line := range lines {
		if !changedEntry(line) {
			continue
		}
		if pkg := matchFragment(line, a.rules.DesktopPackages); pkg != "" {
			seen[pkg] = true
		}
	}
	if len(seen) == 0 {
		return
	}
	pkgs := make([]string, 0, len(seen))
	for p := range seen {
		pkgs = append(pkgs, p)
	}
	sort.Strings(pkgs)
	r.warn("desktop packages change under the active graphical session: "+strings.Join(pkgs, ", "), false, true)
}

// graphicalSession reports whether user has an active windowing session.
// Without a session list the answer is yes.
func (a *Analyzer) graphicalSession(ctx context.Context, user string) bool {
	if a.sessions == nil {
		return true
	}
	sessions, err := a.sessions.Sessions(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Could not list sessions, assuming a graphical session is active")
		return true
	}
	for _, s := range sessions {
		if s.Active && s.Graphical() && (user == "" || s.User == user) {
			a.logger.Debug().Str("session", s.ID).Str("type", s.Type).Msg("Active graphical session")
			return true
		}
	}
	return false
}

// changedEntry matches nvd's upgraded/changed markers and plain version moves
func changedEntry(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "[U") ||
		strings.HasPrefix(trimmed, "[C") ||
		strings.Contains(line, "->")
}

func matchFragment(line string, fragments []string) string {
	lower := strings.ToLower(line)
	for _, f := range fragments {
		if f != "" && strings.Contains(lower, strings.ToLower(f)) {
			return f
		}
	}
	return ""
}

func majorMinor(s string) (int, int, bool) {
	m := version.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	major, err1 := strconv.Atoi(m[1])
	minor, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return major, minor, true
}
