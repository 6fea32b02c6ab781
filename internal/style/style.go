// Package style provides consistent terminal styling for coordctl output.
package style

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var colorEnabled = term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == ""

func init() {
	if !colorEnabled {
		lipgloss.SetColorProfile(0)
	}
}

var (
	Bold    = lipgloss.NewStyle().Bold(true)
	Dim     = lipgloss.NewStyle().Faint(true)
	Success = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	Warn    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	Fail    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// PrintWarning writes a styled warning to stderr.
func PrintWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", Warn.Render("!"), fmt.Sprintf(format, args...))
}

// PrintError writes a styled error to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", Fail.Render("✗"), fmt.Sprintf(format, args...))
}

// PrintSuccess writes a styled success line to stdout.
func PrintSuccess(format string, args ...any) {
	fmt.Printf("%s %s\n", Success.Render("✓"), fmt.Sprintf(format, args...))
}
