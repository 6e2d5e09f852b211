package console

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"
)

// Palette — muted, dark-terminal friendly, same register as the
// teacher's CLI output package.
var (
	accent = lipgloss.Color("99")
	ok     = lipgloss.Color("76")
	bad    = lipgloss.Color("204")
	warn   = lipgloss.Color("214")
	dim    = lipgloss.Color("243")
	faint  = lipgloss.Color("238")
)

var (
	AccentStyle  = lipgloss.NewStyle().Foreground(accent)
	SuccessStyle = lipgloss.NewStyle().Foreground(ok)
	ErrorStyle   = lipgloss.NewStyle().Foreground(bad)
	WarnStyle    = lipgloss.NewStyle().Foreground(warn)
	MutedStyle   = lipgloss.NewStyle().Foreground(dim)
	BoldStyle    = lipgloss.NewStyle().Bold(true)
)

func Bold(s string) string  { return BoldStyle.Render(s) }
func Muted(s string) string { return MutedStyle.Render(s) }

func SuccessMsg(format string, a ...any) string {
	return SuccessStyle.Render("✓") + " " + fmt.Sprintf(format, a...)
}

func WarnMsg(format string, a ...any) string {
	return WarnStyle.Render("!") + " " + fmt.Sprintf(format, a...)
}

func ErrorMsg(format string, a ...any) string {
	return ErrorStyle.Render("✗") + " " + fmt.Sprintf(format, a...)
}

func connectedLabel(v bool) string {
	if v {
		return SuccessStyle.Render("up")
	}
	return ErrorStyle.Render("down")
}

// Table renders headers/rows with rounded borders and zebra-striped
// body rows.
func Table(headers []string, rows [][]string) string {
	headerStyle := lipgloss.NewStyle().Foreground(accent).Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	oddStyle := cellStyle.Foreground(dim)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(faint)).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row%2 == 0:
				return oddStyle
			default:
				return cellStyle
			}
		}).
		Headers(headers...).
		Rows(rows...)

	return t.String()
}

// ConfigureColorProfile detects whether out is a real terminal and
// sets lipgloss's color profile accordingly: full color on a TTY,
// ASCII-safe otherwise (piped output, CI, a TERM=dumb session).
func ConfigureColorProfile(out *os.File) {
	if isTerminal(out) {
		lipgloss.SetColorProfile(termenv.ColorProfile())
		return
	}
	lipgloss.SetColorProfile(termenv.Ascii)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
