package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Terminal palette indexes, so output follows the user's color scheme
var (
	cyan   = lipgloss.Color("6")
	yellow = lipgloss.Color("3")
	red    = lipgloss.Color("1")
	green  = lipgloss.Color("2")
)

type styles struct {
	label   lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
	success lipgloss.Style
	detail  lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		label:   r.NewStyle().Foreground(cyan),
		warning: r.NewStyle().Foreground(yellow),
		err:     r.NewStyle().Foreground(red).Bold(true),
		success: r.NewStyle().Foreground(green),
		detail:  r.NewStyle().Faint(true),
	}
}

// Console writes operator-facing lines. Colors are only used when the
// output is a terminal and NO_COLOR is unset.
type Console struct {
	out    io.Writer
	color  bool
	styles styles
}

// NewConsole creates a Console writing to out
func NewConsole(out io.Writer) *Console {
	return newConsole(out, lipgloss.NewRenderer(out), ColorEnabled(out))
}

// NewPlainConsole creates a Console that never colors its output
func NewPlainConsole(out io.Writer) *Console {
	return newConsole(out, lipgloss.NewRenderer(out), false)
}

func newConsole(out io.Writer, r *lipgloss.Renderer, color bool) *Console {
	return &Console{out: out, color: color, styles: newStyles(r)}
}

// ColorEnabled reports whether w is a terminal that should get colors
func ColorEnabled(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (c *Console) paint(style lipgloss.Style, text string) string {
	if !c.color {
		return text
	}
	return style.Render(text)
}

// Line prints an uncolored line
func (c *Console) Line(format string, args ...interface{}) {
	fmt.Fprintf(c.out, format+"\n", args...)
}

// Warning prints a warning in yellow
func (c *Console) Warning(format string, args ...interface{}) {
	fmt.Fprintln(c.out, c.paint(c.styles.warning, fmt.Sprintf(format, args...)))
}

// Error prints an error in red
func (c *Console) Error(format string, args ...interface{}) {
	fmt.Fprintln(c.out, c.paint(c.styles.err, fmt.Sprintf(format, args...)))
}

// Success prints a success message in green
func (c *Console) Success(format string, args ...interface{}) {
	fmt.Fprintln(c.out, c.paint(c.styles.success, fmt.Sprintf(format, args...)))
}

// Info prints a label and value
func (c *Console) Info(label, value string) {
	fmt.Fprintf(c.out, "%s: %s\n", c.paint(c.styles.label, label), value)
}

// Detail prints an indented, dimmed line
func (c *Console) Detail(format string, args ...interface{}) {
	fmt.Fprintln(c.out, "\t"+c.paint(c.styles.detail, fmt.Sprintf(format, args...)))
}
