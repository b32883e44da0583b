package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/rshade/costlens/internal/engine"
)

// Layout defaults used when the terminal size is unknown.
const (
	defaultWidth  = 100
	defaultHeight = 30
	minHeight     = 5
	summaryHeight = 7
	borderPadding = 2
)

// Palette.
const (
	colorPrimary  = lipgloss.Color("39")
	colorSubtle   = lipgloss.Color("244")
	colorOK       = lipgloss.Color("42")
	colorWarning  = lipgloss.Color("214")
	colorCritical = lipgloss.Color("196")
	colorSelected = lipgloss.Color("57")
)

// Shared styles.
//
//nolint:gochecknoglobals // Lip Gloss styles are immutable values.
var (
	HeaderStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	LabelStyle    = lipgloss.NewStyle().Foreground(colorSubtle)
	ValueStyle    = lipgloss.NewStyle().Bold(true)
	SubtleStyle   = lipgloss.NewStyle().Foreground(colorSubtle).Italic(true)
	InfoStyle     = lipgloss.NewStyle().Foreground(colorPrimary)
	OKStyle       = lipgloss.NewStyle().Foreground(colorOK)
	WarningStyle  = lipgloss.NewStyle().Foreground(colorWarning)
	CriticalStyle = lipgloss.NewStyle().Foreground(colorCritical).Bold(true)
	BoxStyle      = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(0, 1)

	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorPrimary).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true)
	TableSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("229")).
				Background(colorSelected).
				Bold(false)
)

// OutputMode selects how results are presented on the terminal.
type OutputMode int

// Output modes.
const (
	// OutputModePlain writes tab-aligned text without ANSI styling.
	OutputModePlain OutputMode = iota
	// OutputModeStyled writes a Lip Gloss summary but no interactive program.
	OutputModeStyled
	// OutputModeInteractive runs the Bubble Tea program.
	OutputModeInteractive
)

// String returns the mode name.
func (m OutputMode) String() string {
	switch m {
	case OutputModeStyled:
		return "styled"
	case OutputModeInteractive:
		return "interactive"
	default:
		return "plain"
	}
}

// DetectOutputMode picks the richest mode the terminal supports. plain forces
// plain output; noColor, NO_COLOR or CI downgrade to plain as well. Styled
// output needs a terminal on stdout; interactive also needs one on stdin.
func DetectOutputMode(plain, noColor bool) OutputMode {
	if plain || noColor || os.Getenv("NO_COLOR") != "" || os.Getenv("CI") != "" {
		return OutputModePlain
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return OutputModePlain
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return OutputModeStyled
	}
	return OutputModeInteractive
}

// TerminalWidth returns the width of stdout, or defaultWidth when stdout is
// not a terminal.
func TerminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}

// RenderTrend colors a trend label.
func RenderTrend(t engine.TrendLabel) string {
	if t == engine.TrendRising {
		return WarningStyle.Render(string(t))
	}
	return OKStyle.Render(string(t))
}

// RenderAdvice colors an advice message by severity.
func RenderAdvice(a engine.Advice) string {
	switch a {
	case engine.AdviceRising:
		return CriticalStyle.Render(a.Message())
	case engine.AdviceOptimized:
		return OKStyle.Render(a.Message())
	case engine.AdviceNoData:
		return SubtleStyle.Render(a.Message())
	default:
		return InfoStyle.Render(a.Message())
	}
}
