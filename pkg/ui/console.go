// Package ui prints fleetup's progress lines, the final summary and the
// safety box.
//
// Every step prints an action line before it runs and one colored line
// after. Colors are dropped when the output is not a terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/pterm/pterm"
)

// Outcome classifies how a run ended
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeWithExclusions Outcome = "exclusions"
	OutcomeRestored       Outcome = "restored"
	OutcomeInterrupted    Outcome = "interrupted"
	OutcomeFailed         Outcome = "failed"
)

var (
	actionStyle  = pterm.NewStyle(pterm.FgCyan, pterm.Bold)
	successStyle = pterm.NewStyle(pterm.FgGreen)
	warningStyle = pterm.NewStyle(pterm.FgYellow)
	errorStyle   = pterm.NewStyle(pterm.FgRed, pterm.Bold)
	infoStyle    = pterm.NewStyle(pterm.FgDefault)
	runningStyle = pterm.NewStyle(pterm.FgGray)
)

// Console writes styled lines to one output
type Console struct {
	out      io.Writer
	color    bool
	renderer *lipgloss.Renderer
}

// New creates a Console on out. Color is enabled only for terminals.
func New(out io.Writer) *Console {
	color := false
	if f, ok := out.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return NewWithColor(out, color)
}

// NewWithColor creates a Console with color forced on or off
func NewWithColor(out io.Writer, color bool) *Console {
	r := lipgloss.NewRenderer(out)
	if !color {
		r.SetColorProfile(termenv.Ascii)
	}
	return &Console{out: out, color: color, renderer: r}
}

// Stdout returns a Console on the process stdout
func Stdout() *Console {
	return New(os.Stdout)
}

// Writer returns the underlying output
func (c *Console) Writer() io.Writer {
	return c.out
}

func (c *Console) line(style *pterm.Style, prefix, msg string) {
	text := prefix + msg
	if c.color {
		text = style.Sprint(text)
	}
	_, _ = fmt.Fprintln(c.out, text)
}

// Action announces a step
func (c *Console) Action(format string, args ...any) {
	c.line(actionStyle, "==> ", fmt.Sprintf(format, args...))
}

// Success reports a step that worked
func (c *Console) Success(format string, args ...any) {
	c.line(successStyle, "✓ ", fmt.Sprintf(format, args...))
}

// Warning reports a soft failure
func (c *Console) Warning(format string, args ...any) {
	c.line(warningStyle, "! ", fmt.Sprintf(format, args...))
}

// Error reports a failed step
func (c *Console) Error(format string, args ...any) {
	c.line(errorStyle, "✗ ", fmt.Sprintf(format, args...))
}

// Info prints a plain line
func (c *Console) Info(format string, args ...any) {
	c.line(infoStyle, "", fmt.Sprintf(format, args...))
}

// Running echoes an external command before it starts
func (c *Console) Running(cmdline string) {
	c.line(runningStyle, "Running: ", cmdline)
}

// Bell rings the terminal bell
func (c *Console) Bell() {
	_, _ = fmt.Fprint(c.out, "\a")
}

// Summary prints the single line describing how the run ended
func (c *Console) Summary(outcome Outcome, msg string) {
	style := c.renderer.NewStyle().Bold(true).Padding(0, 1)
	switch outcome {
	case OutcomeSuccess:
		style = style.Foreground(lipgloss.AdaptiveColor{Light: "#1a7f37", Dark: "#3fb950"})
	case OutcomeWithExclusions, OutcomeInterrupted:
		style = style.Foreground(lipgloss.AdaptiveColor{Light: "#9a6700", Dark: "#d29922"})
	default:
		style = style.Foreground(lipgloss.AdaptiveColor{Light: "#cf222e", Dark: "#f85149"})
	}
	_, _ = fmt.Fprintln(c.out, style.Render(msg))
}

// Box prints title and lines inside a rounded border
func (c *Console) Box(title string, lines []string) {
	warn := lipgloss.AdaptiveColor{Light: "#9a6700", Dark: "#d29922"}
	titleStyle := c.renderer.NewStyle().Bold(true).Foreground(warn)
	box := c.renderer.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(warn).
		Padding(0, 1)

	body := make([]string, 0, len(lines)+1)
	body = append(body, titleStyle.Render(title))
	for _, l := range lines {
		body = append(body, "• "+l)
	}
	_, _ = fmt.Fprintln(c.out, box.Render(strings.Join(body, "\n")))
}
